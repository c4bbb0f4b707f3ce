/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

/*
Package main provides the CLI commands for managing database migrations in the Tally application.
This includes commands for applying and rolling back migrations.
*/

package main

import (
	"database/sql"
	"fmt"
	"log"

	"github.com/blnkfinance/tally"
	"github.com/blnkfinance/tally/database"
	migrate "github.com/rubenv/sql-migrate"
	"github.com/spf13/cobra"
)

const migrationSchema = "tally"

// migrateCommands creates the root command for migration-related operations.
func migrateCommands(t *tallyInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "run tally database migrations",
	}

	cmd.AddCommand(migrateUpCommands(t))
	cmd.AddCommand(migrateDownCommands(t))

	return cmd
}

// migrationSource reads the embedded sql/*.sql files.
func migrationSource() migrate.MigrationSource {
	return migrate.EmbedFileSystemMigrationSource{
		FileSystem: tally.SQLFiles,
		Root:       "sql",
	}
}

// runMigrations connects to the configured database and applies migrations in the given direction.
func runMigrations(t *tallyInstance, direction migrate.MigrationDirection) (int, error) {
	if t.cnf.DataSource.Dns == "" {
		return 0, fmt.Errorf("data_source.dns is not configured")
	}

	db, err := database.ConnectDB(t.cnf.DataSource)
	if err != nil {
		return 0, fmt.Errorf("error connecting to database: %v", err)
	}
	defer func(db *sql.DB) {
		_ = db.Close()
	}(db)

	migrate.SetSchema(migrationSchema)
	return migrate.Exec(db, "postgres", migrationSource(), direction)
}

// migrateUpCommands creates the command for applying migrations.
func migrateUpCommands(t *tallyInstance) *cobra.Command {
	return &cobra.Command{
		Use: "up",
		Run: func(cmd *cobra.Command, args []string) {
			n, err := runMigrations(t, migrate.Up)
			if err != nil {
				log.Printf("Error migrating up: %v", err)
				return
			}
			fmt.Printf("Applied %d migrations!\n", n)
		},
	}
}

// migrateDownCommands creates the command for rolling back migrations.
func migrateDownCommands(t *tallyInstance) *cobra.Command {
	return &cobra.Command{
		Use: "down",
		Run: func(cmd *cobra.Command, args []string) {
			n, err := runMigrations(t, migrate.Down)
			if err != nil {
				log.Printf("Error migrating down: %v", err)
				return
			}
			fmt.Printf("Rolled back %d migrations!\n", n)
		},
	}
}
