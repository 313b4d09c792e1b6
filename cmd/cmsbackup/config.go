package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"cmsbackup/internal/app"
	"cmsbackup/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		mediaRoot, _ := cmd.Flags().GetString("media-root")

		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"], mediaRoot)
		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}
		if err := app.Migrate(cfg); err != nil {
			return err
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir:   %s\n", defaults["base_dir"])
		fmt.Printf("Media Root: %s\n", mediaRoot)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := readConfig()
		if err != nil {
			return err
		}

		fmt.Printf("Configuration from %s:\n\n", path)
		fmt.Printf("Base Dir:   %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:    %s\n", cfg.LogDir)
		fmt.Printf("Media Root: %s\n", cfg.MediaRoot)
		fmt.Printf("Database:   %s %s\n", cfg.Database.Type, cfg.Database.DataDir)
		switch cfg.Vault.Type {
		case "s3":
			fmt.Printf("Vault:      s3://%s/%s\n", cfg.Vault.S3Bucket, cfg.Vault.S3Prefix)
		case "filesystem":
			fmt.Printf("Vault:      %s\n", cfg.Vault.FSVaultRoot)
		default:
			fmt.Printf("Vault:      %s\n", cfg.Vault.Type)
		}
		interval, err := cfg.Scheduler.TickInterval()
		if err != nil {
			return err
		}
		fmt.Printf("Scheduler:  every %s\n", interval)
		return nil
	},
}

var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the database schema and vault access",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "config check")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.VerifySetup(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("OK")
		return nil
	},
}

func init() {
	configInitCmd.Flags().String("media-root", "", "Directory holding uploaded media files")
	configInitCmd.MarkFlagRequired("media-root")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configCheckCmd)
}
