package sampler

import (
	"fmt"

	"github.com/pkg/errors"
	log "github.com/rs/zerolog"

	"github.com/maxgio92/stacksampler/pkg/recorder"
	"github.com/maxgio92/stacksampler/pkg/signature"
)

var (
	ErrSnapshotFailure = errors.New("error taking stack snapshot")
)

// Snapshotter captures every call stack live in the host process at the
// moment of the call.
type Snapshotter interface {
	Snapshot() ([]signature.Stack, error)
}

// SnapshotFunc adapts a function to the Snapshotter interface.
type SnapshotFunc func() ([]signature.Stack, error)

func (f SnapshotFunc) Snapshot() ([]signature.Stack, error) {
	return f()
}

// Sampler takes one sample of the program: it snapshots the live stacks
// and records the signature of each of them.
type Sampler struct {
	recorder    *recorder.Recorder
	snapshotter Snapshotter
	builder     signature.Builder
	logger      log.Logger
}

func NewSampler(rec *recorder.Recorder, opts ...Option) *Sampler {
	s := &Sampler{
		recorder: rec,
		builder:  signature.Build,
		logger:   log.Nop(),
	}
	for _, f := range opts {
		f(s)
	}
	if s.recorder == nil {
		s.recorder = recorder.NewRecorder()
	}
	if s.snapshotter == nil {
		s.snapshotter = NewGoroutineSnapshotter()
	}

	return s
}

// Recorder returns the database the sampler records into.
func (s *Sampler) Recorder() *recorder.Recorder {
	return s.recorder
}

// Sample runs one capture-and-record pass and returns how many stacks were
// recorded. Nothing is recorded when the snapshot fails.
func (s *Sampler) Sample() (int, error) {
	stacks, err := s.snapshot()
	if err != nil {
		return 0, err
	}

	sigs := make([]string, 0, len(stacks))
	for _, stack := range stacks {
		if len(stack) == 0 {
			continue
		}
		sigs = append(sigs, s.builder(stack))
	}
	for _, sig := range sigs {
		s.recorder.Record(sig)
	}
	s.logger.Trace().Int("stacks", len(sigs)).Msg("recorded sample")

	return len(sigs), nil
}

// snapshot wraps both ErrSnapshotFailure and the snapshotter's own error, so
// either can be matched with errors.Is.
func (s *Sampler) snapshot() (stacks []signature.Stack, err error) {
	defer func() {
		if r := recover(); r != nil {
			stacks = nil
			err = errors.Wrap(ErrSnapshotFailure, fmt.Sprintf("panic: %v", r))
		}
	}()

	stacks, err = s.snapshotter.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSnapshotFailure, err)
	}

	return stacks, nil
}

func (s *Sampler) Query(pattern string, maxRecords int) ([]recorder.ProfileRecord, int, error) {
	return s.recorder.Query(pattern, maxRecords)
}

func (s *Sampler) Show(limit int, opts ...recorder.ShowOption) (string, error) {
	return s.recorder.Show(limit, opts...)
}
