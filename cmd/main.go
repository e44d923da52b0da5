package main

import (
	"fmt"
	"io"
	"os"

	"github.com/google/logger"
	"github.com/spf13/cobra"

	"prizedraw/internal/config"
	"prizedraw/internal/services"
	"prizedraw/internal/store/sqlstore"
)

var (
	configPath string

	cfg     config.Config
	appLog  *logger.Logger
	logFile *os.File
)

var rootCmd = &cobra.Command{
	Use:           "prizedraw",
	Short:         "Prize events: registration, tickets and winner draws",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}

		var out io.Writer = os.Stderr
		if cfg.LogFile != "" {
			f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o660)
			if err != nil {
				return fmt.Errorf("open log file: %w", err)
			}
			out, logFile = f, f
		}
		appLog = logger.Init("prizedraw", cfg.Verbose, false, out)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a TOML config file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(userCmd)
}

// openService opens the configured store and builds the lottery service on
// it. The caller closes the store.
func openService() (*sqlstore.Store, *services.LotteryService, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, nil, err
	}
	st, err := sqlstore.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	logger.Infof("Opened %s store", st.Driver())
	return st, services.NewLotteryService(st, services.WithLocation(loc)), nil
}

// closeLogging releases the log file opened for the command. It runs after
// Execute returns because cobra skips post-run hooks when RunE fails. The
// logger closes every writer it was handed, so it must not be closed while
// that writer is stderr.
func closeLogging() {
	if appLog != nil && logFile != nil {
		appLog.Close()
	}
	appLog, logFile = nil, nil
}

func execute() error {
	defer closeLogging()
	return rootCmd.Execute()
}

func main() {
	if err := execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
