package main

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	core "github.com/3cpo-dev/ebdeploy/internal/core"
	prov "github.com/3cpo-dev/ebdeploy/internal/providers"
	bean "github.com/3cpo-dev/ebdeploy/internal/providers/beanstalk"
	s3store "github.com/3cpo-dev/ebdeploy/internal/providers/s3store"
	"github.com/3cpo-dev/ebdeploy/pkg/api"
)

// Load the config and apply command line overrides
func resolveConfig(cmd *cobra.Command) (prov.Config, error) {
	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, err := core.LoadConfig(cfgPath)
	if err != nil {
		return cfg, err
	}
	flags := cmd.Flags()
	overrideString(flags, "region", &cfg.AWS.Region)
	overrideString(flags, "application", &cfg.Application.Name)
	overrideString(flags, "environment", &cfg.Application.Environment)
	overrideString(flags, "bucket", &cfg.Application.Bucket)
	overrideString(flags, "app-version", &cfg.Application.Version)
	overrideString(flags, "metadata", &cfg.Application.Metadata)
	overrideString(flags, "history", &cfg.History.Path)
	if flags.Changed("timestamp") {
		v, _ := flags.GetBool("timestamp")
		cfg.Deploy.Timestamp = &v
	}
	if flags.Changed("wait") {
		v, _ := flags.GetBool("wait")
		cfg.Deploy.WaitForDeploy = &v
	}
	if flags.Changed("timeout") {
		cfg.Deploy.Timeout, _ = flags.GetDuration("timeout")
	}
	if flags.Changed("interval") {
		cfg.Deploy.PollInterval, _ = flags.GetDuration("interval")
	}
	if flags.Changed("only-on-change") {
		cfg.Deploy.OnlyOnChange, _ = flags.GetBool("only-on-change")
	}
	if flags.Changed("no-history") {
		cfg.History.Disabled, _ = flags.GetBool("no-history")
	}
	return cfg, nil
}

func overrideString(flags *pflag.FlagSet, name string, dst *string) {
	if flags.Lookup(name) == nil || !flags.Changed(name) {
		return
	}
	*dst, _ = flags.GetString(name)
}

func addTargetFlags(cmd *cobra.Command) {
	cmd.Flags().String("region", "", "AWS region")
	cmd.Flags().String("application", "", "Elastic Beanstalk application name")
	cmd.Flags().String("environment", "", "Elastic Beanstalk environment name")
}

func openHistory(ctx context.Context, cfg prov.Config) (*core.Store, error) {
	path := cfg.History.Path
	if path == "" {
		path = core.DefaultStorePath()
	}
	store, err := core.NewStore(path)
	if err != nil {
		return nil, err
	}
	if err := store.Ping(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("history %s: %w", path, err)
	}
	return store, nil
}

func newPoller(cfg prov.Config) *core.Poller {
	poller := core.NewPoller()
	if cfg.Deploy.PollInterval > 0 {
		poller.Interval = cfg.Deploy.PollInterval
	}
	poller.OnlyOnChange = cfg.Deploy.OnlyOnChange
	return poller
}

// deploymentStatus maps a rollout result onto the ledger status.
func deploymentStatus(out core.Outcome, err error) api.DeploymentStatus {
	switch {
	case err != nil:
		return api.DeployFailed
	case !out.Verified():
		return api.DeployUnverified
	default:
		return api.DeploySucceeded
	}
}

// Deploy a bundle
func newDeployCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deploy [paths...]",
		Short: "Zip paths, upload them and roll the environment to the new version",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			opts, err := core.BuildOptions(cfg, time.Now())
			if err != nil {
				return err
			}
			bundle, err := core.BuildArchive(opts.Filename, args)
			if err != nil {
				return err
			}
			log.Debug().Str("sha256", bundle.Checksum()).Str("file", bundle.Name).Msg("archive built")

			sess, err := prov.NewSession(cfg)
			if err != nil {
				return err
			}
			store := s3store.New(sess, opts.Bucket, opts.Key)
			env := bean.New(sess, opts.ApplicationName, opts.EnvironmentName)

			transition := core.LogTransition

			var history *core.Store
			var deploymentID string
			if !cfg.History.Disabled {
				history, err = openHistory(ctx, cfg)
				if err != nil {
					log.Warn().Err(err).Msg("deployment history unavailable")
				} else {
					defer history.Close()
					deploymentID, err = history.BeginDeployment(ctx, opts, time.Now())
					if err != nil {
						log.Warn().Err(err).Msg("record deployment")
						history = nil
					} else {
						transition = history.TransitionRecorder(ctx, deploymentID, transition)
					}
				}
			}

			out, deployErr := core.NewOrchestrator(newPoller(cfg), transition).Rollout(ctx, opts, bundle, store, env)

			if history != nil {
				status := deploymentStatus(out, deployErr)
				if err := history.FinishDeployment(ctx, deploymentID, status, deployErr, time.Now()); err != nil {
					log.Warn().Err(err).Msg("record deployment result")
				}
			}
			if deployErr != nil {
				return deployErr
			}
			fmt.Printf("deployed %s to %s/%s\n", opts.VersionLabel, opts.ApplicationName, opts.EnvironmentName)
			return nil
		},
	}
	addTargetFlags(cmd)
	cmd.Flags().String("bucket", "", "S3 bucket receiving the bundle")
	cmd.Flags().String("app-version", "", "application version (defaults to project metadata)")
	cmd.Flags().String("metadata", "", "project metadata file used for name/version fallback")
	cmd.Flags().Bool("timestamp", true, "append a timestamp to the version label")
	cmd.Flags().Bool("wait", true, "wait until the environment reports Ready")
	cmd.Flags().Duration("timeout", 0, "bound the health wait (0 waits forever)")
	cmd.Flags().Duration("interval", core.DefaultPollInterval, "delay between health checks")
	cmd.Flags().Bool("only-on-change", false, "log transitions only when health fields change")
	cmd.Flags().String("history", "", "deployment history database")
	cmd.Flags().Bool("no-history", false, "do not record the deployment")
	return cmd
}

// Describe current environment health
func newHealthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Show the enhanced health of an environment",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.Application.Environment == "" {
				return prov.ValidationError{Field: "application.environment", Message: "value is required"}
			}
			sess, err := prov.NewSession(cfg)
			if err != nil {
				return err
			}
			env := bean.New(sess, cfg.Application.Name, cfg.Application.Environment)
			report, err := env.DescribeHealth(cmd.Context())
			if err != nil {
				return err
			}
			snap := report.Snapshot()
			sev := core.SeverityOf(snap.Color)
			fmt.Printf("%s/%s\t%s(%s)\n", env.Application(), env.Name(), core.TerminalStyle(sev, snap.HealthStatus), core.TerminalStyle(sev, snap.Status))
			for _, c := range snap.Causes {
				fmt.Printf("  - %s\n", c)
			}
			return nil
		},
	}
	addTargetFlags(cmd)
	return cmd
}

// List recorded deployments
func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [deployment-id]",
		Short: "List recorded deployments, or the transitions of one deployment",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			store, err := openHistory(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()
			if len(args) == 1 {
				ts, err := store.Transitions(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				for _, t := range ts {
					fmt.Printf("%d\t%s(%s) -> %s(%s)\t%s\n", t.Seq, t.PreviousHealth, t.PreviousStatus,
						t.Health, t.Status, humanize.Time(time.UnixMilli(t.ObservedAt)))
				}
				return nil
			}
			limit, _ := cmd.Flags().GetInt("limit")
			ds, err := store.ListDeployments(cmd.Context(), cfg.Application.Name, cfg.Application.Environment, limit)
			if err != nil {
				return err
			}
			for _, d := range ds {
				fmt.Printf("%s\t%s/%s\t%s\t%s\t%s\n", d.ID, d.Application, d.Environment, d.VersionLabel,
					d.Status, humanize.Time(time.UnixMilli(d.StartedAt)))
			}
			return nil
		},
	}
	cmd.Flags().String("application", "", "filter by application")
	cmd.Flags().String("environment", "", "filter by environment")
	cmd.Flags().String("history", "", "deployment history database")
	cmd.Flags().Int("limit", 20, "maximum deployments to list")
	return cmd
}
