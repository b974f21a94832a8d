// Command tq manages tasks and suggestions directly against the configured
// store.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"va-tasks/internal/config"
	"va-tasks/internal/logging"
	"va-tasks/internal/storage"
	"va-tasks/pkg/eventgraph"
	"va-tasks/pkg/suggest"
)

// app is the state shared by every subcommand, set up in PersistentPreRunE.
type app struct {
	cfg    *config.Config
	log    *zap.Logger
	stores *storage.Stores
	events *eventgraph.Bus
	engine *suggest.Engine
}

var (
	configPath string
	verbose    bool
	cli        app
)

var rootCmd = &cobra.Command{
	Use:           "tq",
	Short:         "Task queue and suggestion engine CLI",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if verbose {
			cfg.Logging.Level = "debug"
		} else if os.Getenv("VA_LOG_LEVEL") == "" {
			cfg.Logging.Level = "warn"
		}
		cfg.Logging.Format = "console"
		logger, err := logging.New(cfg.Logging)
		if err != nil {
			return err
		}
		cli.cfg, cli.log = cfg, logger

		if cmd.Annotations["store"] == "none" {
			return nil
		}
		stores, err := storage.Open(cmd.Context(), cfg.Store, logger)
		if err != nil {
			return fmt.Errorf("open storage: %w", err)
		}
		cli.stores = stores
		cli.events = eventgraph.NewBus(stores.Events)
		cli.engine = suggest.New(stores.Tasks, cli.events, logger, suggest.WithListLimit(cfg.Suggest.ListLimit))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if cli.stores != nil {
			cli.stores.Close()
		}
		if cli.log != nil {
			_ = cli.log.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("VA_CONFIG"), "path to YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(initCmd, taskCmd, ingestCmd, suggestCmd, applyCmd, feedbackCmd, eventsCmd, tokenCmd)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the tasks and events tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		// storage.Open has already ensured both tables.
		printJSON(map[string]string{"status": "ok", "driver": cli.cfg.Store.Driver})
		return nil
	},
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fatal("%v", err)
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid task id %q", s)
	}
	return id, nil
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fatal("encode JSON: %v", err)
	}
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "tq: "+format+"\n", args...)
	os.Exit(1)
}
