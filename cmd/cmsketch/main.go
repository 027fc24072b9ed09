package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/Borislavv/cmsketch/pkg/config"
	"github.com/Borislavv/cmsketch/pkg/logger"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const configEnv = "CMSKETCH_CONFIG"

// app holds what the root command resolves before any subcommand runs.
type app struct {
	configPath string
	logLevel   string
	cfg        *config.Sketch
	logCloser  io.Closer
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "cmsketch",
		Short:         "Count-Min Sketch frequency estimation",
		Long:          "Build, query, merge and serve Count-Min Sketches of text or integer keys.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setUp()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.logCloser != nil {
				return a.logCloser.Close()
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "path to a yaml config (default $"+configEnv+")")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "overrides logs.level from config")

	rootCmd.AddCommand(newCountCmd(a))
	rootCmd.AddCommand(newQueryCmd(a))
	rootCmd.AddCommand(newMergeCmd(a))
	rootCmd.AddCommand(newInfoCmd(a))
	rootCmd.AddCommand(newServeCmd(a))

	return rootCmd
}

func (a *app) setUp() (err error) {
	if err = godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	if a.configPath == "" {
		a.configPath = os.Getenv(configEnv)
	}
	if a.configPath == "" {
		a.cfg = config.Default()
	} else if a.cfg, err = config.LoadConfig(a.configPath); err != nil {
		return err
	}
	if a.logLevel != "" {
		a.cfg.Sketch.Logs.Level = a.logLevel
	}

	if a.logCloser, err = logger.Configure(a.cfg); err != nil {
		return fmt.Errorf("configure logger: %w", err)
	}
	if a.configPath != "" {
		log.Debug().Msgf("[config] loaded from %s", a.configPath)
	}
	return nil
}
