// Command finance-agent runs the profile-aware finance client as a local
// service or as one-shot profile commands.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/pennywise/finance-client/internal/app"
	"github.com/pennywise/finance-client/internal/infrastructure/config"
	"github.com/pennywise/finance-client/pkg/logger"
)

const serviceName = "finance-agent"

var (
	cfg *config.Config
	log zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:           serviceName,
	Short:         "finance-agent keeps a finance profile selection and the data scoped to it",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(cmd.Context())
		if err != nil {
			return err
		}
		if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
			c.LogLevel = lvl
		}
		if file, _ := cmd.Flags().GetString("log-file"); file != "" {
			c.LogFile = file
		}
		cfg = c
		log = logger.Init(logger.Options{
			Level:   cfg.LogLevel,
			Pretty:  cfg.IsDevelopment(),
			File:    cfg.LogFile,
			Service: serviceName,
		})
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Close()
	},
}

func main() {
	rootCmd.PersistentFlags().String("log-level", "", "log level (trace, debug, info, warn, error); overrides LOG_LEVEL")
	rootCmd.PersistentFlags().String("log-file", "", "also write logs to this rotated file; overrides LOG_FILE")

	rootCmd.AddCommand(newServeCommand(), newLoginCommand(), newLogoutCommand(), newProfilesCommand())

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// withAgent builds an agent, restores the persisted session and runs fn.
func withAgent(ctx context.Context, fn func(ctx context.Context, a *app.Agent) error) error {
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(ctx); err != nil {
			log.Warn().Err(err).Msg("shutdown finished with errors")
		}
	}()
	if err := a.Start(ctx); err != nil {
		return err
	}
	return fn(ctx, a)
}
