package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run scheduled backups and retention",
}

var scheduleRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run every due policy once, then reap expired backups",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "schedule run")
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.Tick(cmd.Context())
		if err != nil {
			return err
		}
		for _, rec := range result.Ran {
			printRecordLine(rec)
		}
		fmt.Printf("Ran %d scheduled backup(s), %d failed, reaped %d backup(s)\n",
			len(result.Ran), len(result.Failed), len(result.Reaped.Deleted))
		return result.Err()
	},
}

var scheduleServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduler until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "schedule serve")
		if err != nil {
			return err
		}
		defer a.Close()

		return a.Serve(cmd.Context())
	},
}

var reapCmd = &cobra.Command{
	Use:   "reap",
	Short: "Delete automatic backups past their policy's retention",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "reap")
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.Reap(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Reaped %d backup(s)\n", len(result.Deleted))
		return nil
	},
}

func init() {
	scheduleCmd.AddCommand(scheduleRunCmd)
	scheduleCmd.AddCommand(scheduleServeCmd)
}
