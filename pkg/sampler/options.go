package sampler

import (
	log "github.com/rs/zerolog"

	"github.com/maxgio92/stacksampler/pkg/signature"
)

type Option func(s *Sampler)

func WithSnapshotter(snapshotter Snapshotter) Option {
	return func(s *Sampler) {
		s.snapshotter = snapshotter
	}
}

// WithBuilder sets the strategy turning a captured stack into a signature.
func WithBuilder(builder signature.Builder) Option {
	return func(s *Sampler) {
		if builder != nil {
			s.builder = builder
		}
	}
}

func WithLogger(logger log.Logger) Option {
	return func(s *Sampler) {
		s.logger = logger
	}
}
