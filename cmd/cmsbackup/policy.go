package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"cmsbackup/internal/backup"
	"cmsbackup/internal/model"
)

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Manage scheduled backup policies",
}

// policyRequestFromFlags reads the shared create/update flags.
func policyRequestFromFlags(cmd *cobra.Command) backup.PolicyRequest {
	name, _ := cmd.Flags().GetString("name")
	kind, _ := cmd.Flags().GetString("kind")
	frequency, _ := cmd.Flags().GetString("frequency")
	retention, _ := cmd.Flags().GetInt("retention")
	at, _ := cmd.Flags().GetString("at")
	disabled, _ := cmd.Flags().GetBool("disabled")

	return backup.PolicyRequest{
		Name:               name,
		Enabled:            !disabled,
		Kind:               model.Kind(kind),
		Frequency:          model.Frequency(frequency),
		RetentionDays:      retention,
		ScheduledTimeOfDay: at,
	}
}

func addPolicyFlags(cmd *cobra.Command) {
	cmd.Flags().String("name", "", "Policy name (default: generated)")
	cmd.Flags().StringP("kind", "k", string(model.KindFull), "Backup kind: full, database, files or settings")
	cmd.Flags().StringP("frequency", "f", string(model.FrequencyDaily), "hourly, daily, weekly or monthly")
	cmd.Flags().IntP("retention", "r", 30, "Days to keep automatic backups")
	cmd.Flags().String("at", "", "Preferred time of day, HH:MM")
	cmd.Flags().Bool("disabled", false, "Create the policy disabled")
}

var policyCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a policy",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "policy create")
		if err != nil {
			return err
		}
		defer a.Close()

		p, err := a.CreatePolicy(cmd.Context(), policyRequestFromFlags(cmd))
		if err != nil {
			return err
		}
		printPolicy(p)
		return nil
	},
}

var policyUpdateCmd = &cobra.Command{
	Use:   "update ID",
	Short: "Replace the settings of a policy",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		a, err := newApp(cmd, "policy update")
		if err != nil {
			return err
		}
		defer a.Close()

		p, err := a.UpdatePolicy(cmd.Context(), id, policyRequestFromFlags(cmd))
		if err != nil {
			return err
		}
		printPolicy(p)
		return nil
	},
}

var policyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List policies",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "policy list")
		if err != nil {
			return err
		}
		defer a.Close()

		ps, err := a.ListPolicies(cmd.Context())
		if err != nil {
			return err
		}
		if len(ps) == 0 {
			fmt.Println("No policies.")
			return nil
		}
		for _, p := range ps {
			printPolicy(p)
		}
		return nil
	},
}

var policyShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show one policy",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		a, err := newApp(cmd, "policy show")
		if err != nil {
			return err
		}
		defer a.Close()

		p, err := a.GetPolicy(cmd.Context(), id)
		if err != nil {
			return err
		}
		printPolicy(p)
		return nil
	},
}

var policyDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a policy; its backups are kept",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		a, err := newApp(cmd, "policy delete")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.DeletePolicy(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Printf("Deleted policy #%d\n", id)
		return nil
	},
}

func init() {
	addPolicyFlags(policyCreateCmd)
	addPolicyFlags(policyUpdateCmd)

	policyCmd.AddCommand(policyCreateCmd)
	policyCmd.AddCommand(policyUpdateCmd)
	policyCmd.AddCommand(policyListCmd)
	policyCmd.AddCommand(policyShowCmd)
	policyCmd.AddCommand(policyDeleteCmd)
}
