// Package tracker measures the cadence the sampling loop actually achieves.
// Since the wait between two samples depends on scheduling and on the cost
// of each pass, the real cadence drifts from the configured interval.
package tracker

import (
	"math"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/pkg/errors"
)

// Waits are tracked in microseconds, from 1µs to one minute.
const (
	minWaitMicros = 1
	maxWaitMicros = int64(time.Minute / time.Microsecond)
)

var (
	ErrNoSamples = errors.New("no samples taken")
)

// Summary describes the waits observed between successive samples.
type Summary struct {
	Calls int64
	Mean  time.Duration
	Stdev time.Duration
	P50   time.Duration
	P90   time.Duration
	P99   time.Duration
}

// Tracker accumulates the elapsed time between successive samples.
// It is safe for concurrent use, so that it can be reset or read while the
// sampling loop snaps.
type Tracker struct {
	calls     int64
	waitSum   float64
	waitSumSq float64
	hist      *hdrhistogram.Histogram
	now       func() time.Time
	lock      sync.Mutex
}

func New() *Tracker {
	return &Tracker{
		hist: hdrhistogram.New(minWaitMicros, maxWaitMicros, 3),
		now:  time.Now,
	}
}

// Reset zeroes all counters.
func (t *Tracker) Reset() {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.calls = 0
	t.waitSum = 0
	t.waitSumSq = 0
	t.hist.Reset()
}

// Snap records the time elapsed since prev.
func (t *Tracker) Snap(prev time.Time) {
	wait := t.now().Sub(prev)

	t.lock.Lock()
	defer t.lock.Unlock()

	s := wait.Seconds()
	t.calls++
	t.waitSum += s
	t.waitSumSq += s * s

	us := int64(wait / time.Microsecond)
	us = min(max(us, minWaitMicros), maxWaitMicros)
	// The value is clamped into the trackable range, so recording cannot fail.
	_ = t.hist.RecordValue(us)
}

// Stats returns the mean and standard deviation of the waits, and
// ErrNoSamples when nothing was snapped since the last reset.
func (t *Tracker) Stats() (Summary, error) {
	t.lock.Lock()
	defer t.lock.Unlock()

	if t.calls == 0 {
		return Summary{}, ErrNoSamples
	}

	n := float64(t.calls)
	mean := t.waitSum / n
	variance := math.Max(0, t.waitSumSq/n-mean*mean)

	return Summary{
		Calls: t.calls,
		Mean:  seconds(mean),
		Stdev: seconds(math.Sqrt(variance)),
		P50:   time.Duration(t.hist.ValueAtPercentile(50)) * time.Microsecond,
		P90:   time.Duration(t.hist.ValueAtPercentile(90)) * time.Microsecond,
		P99:   time.Duration(t.hist.ValueAtPercentile(99)) * time.Microsecond,
	}, nil
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
