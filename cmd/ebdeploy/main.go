package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	version   = "1.0.0"
	commit    = ""
	buildDate = "10/18/2026"
)

// Create the root command
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ebdeploy",
		Short: "Roll application bundles out to AWS Elastic Beanstalk",
		Long: `ebdeploy packages files into a zip, stores it in S3, registers it as an
application version and switches an Elastic Beanstalk environment to it,
then follows enhanced health until the environment is Ready.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringP("log", "l", "info", "log level (trace, debug, info, warn, error)")
	cmd.PersistentFlags().String("config", "", "config file (default $XDG_CONFIG_HOME/ebdeploy/config.yaml)")
	cmd.PersistentFlags().String("proxy", "", "route AWS API calls through this HTTP proxy")

	cmd.PersistentPreRunE = func(c *cobra.Command, args []string) error {
		name, _ := c.Flags().GetString("log")
		level, err := zerolog.ParseLevel(name)
		if err != nil || level == zerolog.NoLevel {
			return fmt.Errorf("unknown log level %q", name)
		}
		zerolog.SetGlobalLevel(level)
		if proxy, _ := c.Flags().GetString("proxy"); proxy != "" {
			_ = os.Setenv("HTTP_PROXY", proxy)
			_ = os.Setenv("HTTPS_PROXY", proxy)
		}
		return nil
	}

	cmd.AddCommand(newVersionCmd(), newDeployCmd(), newHealthCmd(), newHistoryCmd())
	return cmd
}

// Create the version command
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("ebdeploy %s (%s) %s\n", version, commit, buildDate)
		},
	}
}

// Human readable logs on stderr; stdout carries command output
func setupLogger() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

func main() {
	setupLogger()
	// Interrupting a deploy stops the health wait; the ledger still records the result.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		log.Error().Err(err).Msg("ebdeploy failed")
		os.Exit(1)
	}
}
