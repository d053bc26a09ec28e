package core

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultPollInterval gives the backend time to reflect an update before each health check.
const DefaultPollInterval = 2 * time.Second

// Poller waits for an environment to report Ready.
type Poller struct {
	// Interval is the delay before every health query.
	Interval time.Duration
	// Timeout bounds the whole wait when positive.
	Timeout time.Duration
	// OnlyOnChange suppresses transition calls when retained fields are unchanged.
	OnlyOnChange bool
	Logger       zerolog.Logger
}

// NewPoller creates a poller with the default interval and no deadline.
func NewPoller() *Poller {
	return &Poller{Interval: DefaultPollInterval, Logger: log.Logger}
}

// Poll queries env until its status is Ready. previous may be nil. A nil
// snapshot with a nil error means the environment lacks enhanced health
// reporting and the wait was skipped.
func (p *Poller) Poll(ctx context.Context, env Environment, logTransition TransitionFunc, previous *HealthSnapshot) (*HealthSnapshot, error) {
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	timer := time.NewTimer(p.Interval)
	defer timer.Stop()

	for attempt := 1; ; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}

		report, err := env.DescribeHealth(ctx)
		if err != nil {
			if errors.Is(err, ErrHealthUnsupported) {
				p.Logger.Warn().
					Str("environment", env.Name()).
					Msg("environment doesn't support enhanced health reporting; it is transitioning but the wait can't complete")
				return nil, nil
			}
			return nil, err
		}
		current := report.Snapshot()
		p.Logger.Debug().
			Int("attempt", attempt).
			Str("environment", env.Name()).
			Str("status", current.Status).
			Msg("health polled")

		if previous != nil && logTransition != nil && !(p.OnlyOnChange && previous.Equal(current)) {
			logTransition(env, *previous, current)
		}

		if current.Status == StatusReady {
			return &current, nil
		}
		previous = &current
		timer.Reset(p.Interval)
	}
}
