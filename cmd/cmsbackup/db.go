package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"cmsbackup/internal/app"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Database maintenance",
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := readConfig()
		if err != nil {
			return err
		}
		if err := app.Migrate(cfg); err != nil {
			return err
		}
		fmt.Println("Database is up to date.")
		return nil
	},
}

var dbSchemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "db schema")
		if err != nil {
			return err
		}
		defer a.Close()

		schema, err := a.Schema(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Print(schema)
		return nil
	},
}

var dbSnapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Upload a copy of the catalog database to the vault",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "db snapshot")
		if err != nil {
			return err
		}
		defer a.Close()

		key, err := a.SnapshotCatalog(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Catalog uploaded as %s\n", key)
		return nil
	},
}

func init() {
	dbCmd.AddCommand(dbMigrateCmd)
	dbCmd.AddCommand(dbSchemaCmd)
	dbCmd.AddCommand(dbSnapshotCmd)
}
