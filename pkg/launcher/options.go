package launcher

import (
	"context"
	"time"

	log "github.com/rs/zerolog"

	"github.com/maxgio92/stacksampler/pkg/sampler"
)

type Option func(l *Launcher) error

// WithSampler sets the sampler run at every cycle. By default the launcher
// samples goroutines into a new recorder.
func WithSampler(s *sampler.Sampler) Option {
	return func(l *Launcher) error {
		l.sampler = s
		return nil
	}
}

// WithContext sets the parent context: cancelling it cancels the launcher.
func WithContext(ctx context.Context) Option {
	return func(l *Launcher) error {
		if ctx != nil {
			l.parent = ctx
		}
		return nil
	}
}

func WithInterval(interval time.Duration) Option {
	return func(l *Launcher) error {
		if err := validateInterval(interval); err != nil {
			return err
		}
		l.interval.Store(int64(interval))
		return nil
	}
}

func WithLogger(logger log.Logger) Option {
	return func(l *Launcher) error {
		l.logger = logger
		return nil
	}
}

func WithMetrics(m *Metrics) Option {
	return func(l *Launcher) error {
		l.metrics = m
		return nil
	}
}
