// Kisaan Sahayak advisory service.
//
// The binary runs the HTTP API (serve), answers a single question from
// the terminal (ask), and carries small operator helpers for inspecting
// configuration and issuing user tokens.
package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/kisaansahayak/sahayak/internal/config"
)

// version is set at build time.
var version = "dev"

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "sahayak",
		Short:         "Kisaan Sahayak - farmer advisory service",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")

	load := func() (*config.Config, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		if version != "dev" {
			cfg.Version = version
		}
		setupLogging(cfg.Log)
		return cfg, nil
	}

	rootCmd.AddCommand(
		newServeCmd(load),
		newAskCmd(load),
		newConfigCmd(load),
		newTokenCmd(load),
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintln(cmd.OutOrStdout(), "sahayak", version)
			},
		},
	)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}

type loader func() (*config.Config, error)

func setupLogging(cfg config.LogConfig) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if cfg.Format == "json" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
}
