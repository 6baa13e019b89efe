package launcher

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	log "github.com/rs/zerolog"

	"github.com/maxgio92/stacksampler/pkg/recorder"
	"github.com/maxgio92/stacksampler/pkg/sampler"
	"github.com/maxgio92/stacksampler/pkg/tracker"
)

const (
	// DefaultInterval is the default sleep between two samples.
	DefaultInterval = time.Millisecond

	// MaxInterval is the exclusive upper bound of the sampling interval.
	MaxInterval = 10 * time.Second
)

var (
	ErrInvalidInterval = errors.New("interval must be greater than 0 and less than 10s")
	ErrAlreadyStarted  = errors.New("launcher already started")
)

// Launcher runs a sampling loop on its own goroutine. It is created paused
// and its loop must be started explicitly with Start.
//
// Every cycle of the loop sleeps for the interval, updates the cadence
// tracker, waits while paused, and finally takes a sample.
type Launcher struct {
	sampler  *sampler.Sampler
	tracker  *tracker.Tracker
	interval atomic.Int64
	logger   log.Logger
	metrics  *Metrics

	parent context.Context
	ctx    context.Context
	cancel context.CancelFunc

	// gate is closed while the launcher is active, and replaced by an open
	// channel on pause.
	gate     chan struct{}
	active   bool
	gateLock sync.Mutex

	started atomic.Bool
	done    chan struct{}
}

func NewLauncher(opts ...Option) (*Launcher, error) {
	l := &Launcher{
		tracker: tracker.New(),
		logger:  log.Nop(),
		parent:  context.Background(),
		gate:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	l.interval.Store(int64(DefaultInterval))
	for _, f := range opts {
		if err := f(l); err != nil {
			return nil, err
		}
	}
	if l.sampler == nil {
		l.sampler = sampler.NewSampler(recorder.NewRecorder(), sampler.WithLogger(l.logger))
	}
	l.ctx, l.cancel = context.WithCancel(l.parent)
	l.metrics.setInterval(l.Interval())
	l.metrics.setPaused(true)

	return l, nil
}

// Launch creates a launcher, starts its loop and unpauses it.
func Launch(opts ...Option) (*Launcher, error) {
	l, err := NewLauncher(opts...)
	if err != nil {
		return nil, err
	}
	if err = l.Start(); err != nil {
		return nil, err
	}
	l.Unpause()

	return l, nil
}

// Start runs the sampling loop on a new goroutine. It returns once the loop
// has entered its first cycle, or has exited because the launcher was
// already cancelled.
func (l *Launcher) Start() error {
	if !l.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	running := make(chan struct{})
	go l.loop(sync.OnceFunc(func() { close(running) }))
	<-running

	return nil
}

func (l *Launcher) loop(running func()) {
	defer close(l.done)
	defer running()
	l.logger.Info().Dur("interval", l.Interval()).Msg("starting launcher")

	prev := time.Now()
	// Cancellation is only checked here: a cancelled launcher that is paused
	// keeps waiting on the gate until it is unpaused.
	for l.ctx.Err() == nil {
		running()
		time.Sleep(l.Interval())
		l.tracker.Snap(prev)
		l.waitActive()
		prev = time.Now()
		l.sample()
	}

	l.logger.Info().Msg("stopping launcher")
}

func (l *Launcher) sample() {
	n, err := l.sampler.Sample()
	if err != nil {
		l.metrics.failed()
		l.logger.Error().Err(err).Msg("error sampling, skipping cycle")
		return
	}
	l.metrics.sampled(n)
}

func (l *Launcher) waitActive() {
	l.gateLock.Lock()
	gate := l.gate
	l.gateLock.Unlock()

	<-gate
}

// Pause suspends sampling until Unpause is called.
func (l *Launcher) Pause() {
	l.gateLock.Lock()
	defer l.gateLock.Unlock()

	if l.active {
		l.gate = make(chan struct{})
		l.active = false
		l.metrics.setPaused(true)
	}
}

// Unpause resumes sampling. On a launcher that was not started yet, the loop
// begins sampling as soon as Start is called.
func (l *Launcher) Unpause() {
	l.gateLock.Lock()
	defer l.gateLock.Unlock()

	if !l.active {
		close(l.gate)
		l.active = true
		l.metrics.setPaused(false)
	}
}

func (l *Launcher) IsPaused() bool {
	l.gateLock.Lock()
	defer l.gateLock.Unlock()

	return !l.active
}

// SetInterval changes the sleep between two samples, starting from the
// next cycle, and resets the cadence statistics.
func (l *Launcher) SetInterval(interval time.Duration) error {
	if err := validateInterval(interval); err != nil {
		return err
	}
	l.interval.Store(int64(interval))
	l.tracker.Reset()
	l.metrics.setInterval(interval)
	l.logger.Debug().Dur("interval", interval).Msg("changed sampling interval")

	return nil
}

func (l *Launcher) Interval() time.Duration {
	return time.Duration(l.interval.Load())
}

// Cancel stops the launcher for good.
//
// The loop observes the cancellation only at the start of a cycle, so a
// paused launcher does not stop until it is unpaused: call Unpause too to
// make sure the goroutine exits.
func (l *Launcher) Cancel() {
	l.cancel()
}

// Done is closed when the loop goroutine exits.
func (l *Launcher) Done() <-chan struct{} {
	return l.done
}

// Wait blocks until the loop goroutine exits or ctx is done.
func (l *Launcher) Wait(ctx context.Context) error {
	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "error waiting for the launcher to stop")
	}
}

// IsRunning reports whether the loop goroutine was started and has not
// exited yet.
func (l *Launcher) IsRunning() bool {
	if !l.started.Load() {
		return false
	}
	select {
	case <-l.done:
		return false
	default:
		return true
	}
}

func (l *Launcher) Sampler() *sampler.Sampler {
	return l.sampler
}

func (l *Launcher) Recorder() *recorder.Recorder {
	return l.sampler.Recorder()
}

func (l *Launcher) Query(pattern string, maxRecords int) ([]recorder.ProfileRecord, int, error) {
	return l.sampler.Query(pattern, maxRecords)
}

func (l *Launcher) Show(limit int, opts ...recorder.ShowOption) (string, error) {
	return l.sampler.Show(limit, opts...)
}

// Stats returns the cadence achieved since start or the last interval
// change.
func (l *Launcher) Stats() (tracker.Summary, error) {
	return l.tracker.Stats()
}

func validateInterval(interval time.Duration) error {
	if interval <= 0 || interval >= MaxInterval {
		return errors.Wrapf(ErrInvalidInterval, "got %s", interval)
	}
	return nil
}
