// Command gudang runs the Gudang Mitra warehouse request service and its
// maintenance commands.
package main

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gudangmitra/gudang/internal/config"
	"github.com/gudangmitra/gudang/internal/db"
)

// options carries persistent flags and the loaded configuration to subcommands.
type options struct {
	envFile  string
	dbPath   string
	logPath  string
	debug    bool
	cfg      config.Config
	closeLog func()
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:          "gudang",
		Short:        "Warehouse item request service",
		Long:         `Gudang Mitra tracks warehouse stock and the item requests users submit against it.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.envFile)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("db") {
				cfg.DBPath = opts.dbPath
			}
			if cmd.Flags().Changed("log") {
				cfg.LogPath = opts.logPath
			}
			opts.cfg = cfg

			opts.closeLog, err = setupLogger(cfg.LogPath, opts.debug)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.closeLog != nil {
				opts.closeLog()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.envFile, "env-file", "", "environment file to load (default: .env if present)")
	flags.StringVarP(&opts.dbPath, "db", "d", "", "SQLite database path (default: $GUDANG_DB or gudang.sqlite3)")
	flags.StringVarP(&opts.logPath, "log", "l", "", "also append logs to this file")
	flags.BoolVar(&opts.debug, "debug", false, "log debug messages")

	root.AddCommand(
		newServeCmd(opts),
		newInitCmd(opts),
		newUserCmd(opts),
		newExportCmd(opts),
	)
	return root
}

// openDatabase opens an existing database and brings its schema up to date.
func openDatabase(path string) (*sql.DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("database %s: %w (run 'gudang init' first)", path, err)
	}
	database, err := db.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.EnsureSchema(database); err != nil {
		database.Close()
		return nil, fmt.Errorf("ensuring schema: %w", err)
	}
	return database, nil
}
