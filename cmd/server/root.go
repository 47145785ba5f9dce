package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"market-cache-api/internal/config"
	"market-cache-api/internal/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newRootCmd() *cobra.Command {
	v := viper.New()
	var envFile string

	cmd := &cobra.Command{
		Use:           "market-cache-api",
		Short:         "Caching API in front of the BONK dashboard's market data providers",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(v, envFile)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				return err
			}

			log := logger.New(cfg.LogLevel, cfg.LogType, os.Stderr)
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := serve(ctx, cfg, log); err != nil {
				log.Error().Err(err).Msg("server stopped")
				return err
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	flags.String("port", "", "HTTP listen port")
	flags.String("db", "", "SQLite database path")
	flags.String("log-level", "", "trace, debug, info, warn or error")
	flags.Bool("no-auth", false, "serve the cache management routes without operator login")

	for key, flag := range map[string]string{
		config.KeyPort:         "port",
		config.KeyDatabasePath: "db",
		config.KeyLogLevel:     "log-level",
	} {
		_ = v.BindPFlag(key, flags.Lookup(flag))
	}
	cmd.PreRunE = func(cmd *cobra.Command, _ []string) error {
		noAuth, err := cmd.Flags().GetBool("no-auth")
		if err != nil {
			return err
		}
		if noAuth {
			v.Set(config.KeyAdminAuth, false)
		}
		return nil
	}

	cmd.SetContext(context.Background())
	return cmd
}
