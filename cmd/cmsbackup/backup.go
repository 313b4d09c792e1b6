package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"cmsbackup/internal/model"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Create and manage backups",
}

var backupCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a manual backup",
	RunE: func(cmd *cobra.Command, args []string) error {
		rawKind, _ := cmd.Flags().GetString("kind")
		name, _ := cmd.Flags().GetString("name")
		description, _ := cmd.Flags().GetString("description")

		kind, err := model.ParseKind(rawKind)
		if err != nil {
			return err
		}

		a, err := newApp(cmd, "backup create")
		if err != nil {
			return err
		}
		defer a.Close()

		rec, err := a.CreateBackup(cmd.Context(), kind, name, description)
		if rec != nil {
			printRecord(rec)
		}
		if err != nil {
			return fmt.Errorf("backup failed: %w", err)
		}
		return nil
	},
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List backups, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		rawKind, _ := cmd.Flags().GetString("kind")
		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		filter := model.BackupFilter{Status: model.Status(status), Limit: limit, Offset: offset}
		if rawKind != "" {
			kind, err := model.ParseKind(rawKind)
			if err != nil {
				return err
			}
			filter.Kind = kind
		}
		if cmd.Flags().Changed("automatic") {
			automatic, _ := cmd.Flags().GetBool("automatic")
			filter.Automatic = &automatic
		}

		a, err := newApp(cmd, "backup list")
		if err != nil {
			return err
		}
		defer a.Close()

		recs, err := a.ListBackups(cmd.Context(), filter)
		if err != nil {
			return err
		}
		if len(recs) == 0 {
			fmt.Println("No backups.")
			return nil
		}
		for _, rec := range recs {
			printRecordLine(rec)
		}
		return nil
	},
}

var backupShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show one backup",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		a, err := newApp(cmd, "backup show")
		if err != nil {
			return err
		}
		defer a.Close()

		rec, err := a.GetBackup(cmd.Context(), id)
		if err != nil {
			return err
		}
		printRecord(rec)
		return nil
	},
}

var backupDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a backup and its artifacts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		a, err := newApp(cmd, "backup delete")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.DeleteBackup(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Printf("Deleted backup #%d\n", id)
		return nil
	},
}

var backupStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize the catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "backup stats")
		if err != nil {
			return err
		}
		defer a.Close()

		stats, err := a.Stats(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Total:      %d\n", stats.Total)
		fmt.Printf("Completed:  %d\n", stats.Completed)
		fmt.Printf("Failed:     %d\n", stats.Failed)
		fmt.Printf("Size:       %s\n", formatBytes(stats.TotalSizeBytes))
		fmt.Printf("Latest:     %s\n", formatTime(stats.LatestCompleted))
		return nil
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore ID",
	Short: "Replace live content with a completed backup",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		a, err := newApp(cmd, "restore")
		if err != nil {
			return err
		}
		defer a.Close()

		rec, err := a.Restore(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("restore failed: %w", err)
		}
		fmt.Printf("Restored %s backup #%d (%s)\n", rec.Kind, rec.ID, rec.Name)
		return nil
	},
}

var mediaCmd = &cobra.Command{
	Use:   "media",
	Short: "Manage media snapshots",
}

var mediaArchiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Copy the media tree into a new snapshot directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "media archive")
		if err != nil {
			return err
		}
		defer a.Close()

		archive, err := a.ArchiveMedia(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Archived %d file(s), %s, to %s\n", archive.Files, formatBytes(archive.Bytes), archive.Dir)
		return nil
	},
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func init() {
	backupCreateCmd.Flags().StringP("kind", "k", string(model.KindFull), "Backup kind: full, database, files or settings")
	backupCreateCmd.Flags().String("name", "", "Backup name (default: generated)")
	backupCreateCmd.Flags().String("description", "", "Free-form description")

	backupListCmd.Flags().StringP("kind", "k", "", "Only this kind")
	backupListCmd.Flags().String("status", "", "Only this status")
	backupListCmd.Flags().Bool("automatic", false, "Only automatic (true) or manual (false) backups")
	backupListCmd.Flags().IntP("limit", "n", 50, "Maximum number of backups to show")
	backupListCmd.Flags().Int("offset", 0, "Number of backups to skip")

	backupCmd.AddCommand(backupCreateCmd)
	backupCmd.AddCommand(backupListCmd)
	backupCmd.AddCommand(backupShowCmd)
	backupCmd.AddCommand(backupDeleteCmd)
	backupCmd.AddCommand(backupStatsCmd)

	mediaCmd.AddCommand(mediaArchiveCmd)
}
