package core

import (
	"context"
	"errors"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Orchestrator drives upload, version registration, environment update and
// the optional convergence wait for one bundle.
type Orchestrator struct {
	poller     *Poller
	ownPoller  bool
	transition TransitionFunc
	logger     zerolog.Logger
}

// Outcome is the result of one rollout.
type Outcome struct {
	Bundle *Bundle
	// Final is the Ready snapshot. It is nil when the wait was disabled or
	// the environment has no enhanced health reporting.
	Final *HealthSnapshot
}

// Verified reports whether the environment was observed Ready.
func (o Outcome) Verified() bool { return o.Final != nil }

// NewOrchestrator wires an orchestrator. A nil poller uses NewPoller and a
// nil transition func uses LogTransition.
func NewOrchestrator(poller *Poller, transition TransitionFunc) *Orchestrator {
	o := &Orchestrator{poller: poller, transition: transition, logger: log.Logger}
	if o.poller == nil {
		o.poller = NewPoller()
		o.ownPoller = true
	}
	if o.transition == nil {
		o.transition = LogTransition
	}
	return o
}

// WithLogger replaces the orchestrator logger, and the poller's when the
// orchestrator created it.
func (o *Orchestrator) WithLogger(l zerolog.Logger) *Orchestrator {
	o.logger = l
	if o.ownPoller {
		o.poller.Logger = l
	}
	return o
}

// Deploy uploads b through store and rolls env to opts.VersionLabel. It
// returns b unchanged so callers can forward it. Collaborator errors are
// returned as-is.
func (o *Orchestrator) Deploy(ctx context.Context, opts Options, b *Bundle, store ObjectStore, env Environment) (*Bundle, error) {
	out, err := o.Rollout(ctx, opts, b, store, env)
	if err != nil {
		return nil, err
	}
	return out.Bundle, nil
}

// Rollout performs Deploy and also reports whether the environment was seen
// converging to Ready.
func (o *Orchestrator) Rollout(ctx context.Context, opts Options, b *Bundle, store ObjectStore, env Environment) (Outcome, error) {
	if opts.VersionLabel == "" {
		return Outcome{}, ErrMissingVersionLabel
	}
	loc := store.Location()
	logger := o.logger.With().
		Str("environment", env.Name()).
		Str("version", opts.VersionLabel).
		Logger()

	start := time.Now()
	logger.Info().
		Str("bucket", loc.Bucket).
		Str("key", loc.Key).
		Str("size", humanize.Bytes(uint64(len(b.Contents)))).
		Msg("uploading bundle")
	if err := store.Upload(ctx, b); err != nil {
		if !errors.Is(err, ErrBucketMissing) {
			return Outcome{}, err
		}
		logger.Info().Str("bucket", loc.Bucket).Msg("bucket missing, creating")
		if err := store.Create(ctx); err != nil {
			return Outcome{}, err
		}
		if err := store.Upload(ctx, b); err != nil {
			return Outcome{}, err
		}
	}

	// An already registered label fails here; the update below still applies it.
	if err := env.CreateVersion(ctx, opts.VersionLabel, loc); err != nil {
		logger.Error().Err(err).Msg("create application version")
	}

	if err := env.Update(ctx, opts.VersionLabel); err != nil {
		return Outcome{}, err
	}
	logger.Info().Msg("environment update requested")

	if opts.WaitForDeploy {
		p := o.poller
		if opts.WaitTimeout > 0 {
			cp := *p
			cp.Timeout = opts.WaitTimeout
			p = &cp
		}
		final, err := p.Poll(ctx, env, o.transition, nil)
		if err != nil {
			return Outcome{}, err
		}
		if final != nil {
			logger.Info().
				Str("health", final.HealthStatus).
				Dur("took", time.Since(start)).
				Msg("environment ready")
		}
		return Outcome{Bundle: b, Final: final}, nil
	}
	return Outcome{Bundle: b}, nil
}
