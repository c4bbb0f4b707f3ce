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

package main

import (
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/blnkfinance/tally"
	"github.com/blnkfinance/tally/config"
	"github.com/blnkfinance/tally/database"
	"github.com/blnkfinance/tally/internal/notification"
	redis_db "github.com/blnkfinance/tally/internal/redis-db"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.elastic.co/apm/module/apmlogrus/v2"
)

// Tally represents the CLI application, encapsulating the root Cobra command.
type Tally struct {
	cmd *cobra.Command // Root command for the CLI application
}

// tallyInstance holds the ledger service and its configuration for the
// lifetime of a command.
type tallyInstance struct {
	tally *tally.Tally          // Ledger service initialized from configuration
	cnf   *config.Configuration // Configuration object holding runtime settings
	redis *redis_db.Redis       // Shared Redis connection, nil when Redis is not configured
}

func init() {
	logrus.AddHook(&apmlogrus.Hook{})
}

// recoverPanic handles any panics during program execution and logs the error using Logrus.
func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec) // Log the recovered panic
		os.Exit(1)        // Exit the program with an error status
	}
}

// preRun loads the configuration and builds the ledger service before any command runs.
func preRun(app *tallyInstance, configFile *string) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		// Initialize configuration from the specified configuration file.
		err := config.InitConfig(*configFile)
		if err != nil {
			log.Fatal("error loading config", err)
		}

		// Fetch the configuration settings.
		cnf, err := config.Fetch()
		if err != nil {
			return err
		}

		// Build the service and its collaborators.
		if err := setupTally(app, cnf); err != nil {
			notification.NotifyError(err) // Notify via the internal notification system
			log.Fatal(err)                // Log the fatal error
		}
		app.cnf = cnf

		return nil
	}
}

// setupTally connects the datasource and Redis named in the configuration and
// constructs the ledger service. Ledgers live in memory only when the config
// opts in with data_source.memory; without Redis locks and colors stay in process.
func setupTally(app *tallyInstance, cfg *config.Configuration) error {
	datasource, err := newDatasource(cfg)
	if err != nil {
		return err
	}

	var client redis.UniversalClient
	if cfg.Redis.Dns != "" {
		r, err := redis_db.NewRedisClient(cfg.Redis.Dns, cfg.Redis.SkipTLSVerify)
		if err != nil {
			return fmt.Errorf("error connecting to redis: %v", err)
		}
		app.redis = r
		client = r.Client()
	}

	opts, err := tally.OptionsFromConfig(cfg, client)
	if err != nil {
		return fmt.Errorf("error creating tally: %v", err)
	}
	app.tally = tally.NewTally(datasource, opts)
	return nil
}

func newDatasource(cfg *config.Configuration) (database.IDataSource, error) {
	if cfg.DataSource.Dns == "" {
		if !cfg.DataSource.Memory {
			return nil, errors.New("data source DNS is required")
		}
		logrus.Warn("data_source.memory is set: ledgers are kept in memory and lost on restart")
		return database.NewMemoryDataSource(), nil
	}
	db, err := database.NewDataSource(cfg)
	if err != nil {
		return nil, fmt.Errorf("error getting datasource: %v", err)
	}
	return db, nil
}

// close releases the queue client and the Redis connection.
func (app *tallyInstance) close() {
	if app.tally != nil {
		if err := app.tally.Close(); err != nil {
			logrus.Errorf("error closing event publisher: %v", err)
		}
	}
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			logrus.Errorf("error closing redis: %v", err)
		}
	}
}

// NewCLI creates the command-line interface (CLI) for the Tally application.
func NewCLI() *Tally {
	var configFile string // Configuration file path (defaults to ./tally.json)
	t := &tallyInstance{}

	var rootCmd = &cobra.Command{
		Use:   "tally",
		Short: "Per-user balance ledger",
		Run:   func(cmd *cobra.Command, args []string) {},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./tally.json", "Configuration file for tally")
	rootCmd.PersistentPreRunE = preRun(t, &configFile)
	rootCmd.PersistentPostRun = func(cmd *cobra.Command, args []string) { t.close() }

	rootCmd.AddCommand(serverCommands(t))
	rootCmd.AddCommand(workerCommands(t))
	rootCmd.AddCommand(migrateCommands(t))
	rootCmd.AddCommand(ledgerCommands(t))
	rootCmd.AddCommand(configCommands())

	return &Tally{cmd: rootCmd}
}

// executeCLI runs the root command, handling any errors that occur during execution.
func (w Tally) executeCLI() {
	if err := w.cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err) // Print any errors that occur
		os.Exit(1)                   // Exit the program with an error status
	}
}

func main() {
	defer recoverPanic()

	cli := NewCLI()
	cli.executeCLI()
}
