package sampler

import (
	"runtime"
	"sync"

	"github.com/maxgio92/stacksampler/pkg/signature"
	"github.com/maxgio92/stacksampler/pkg/symcache"
)

// GoroutineSnapshotter captures the stacks of all goroutines of the
// process, running (On-CPU) as well as waiting (Off-CPU), through
// runtime.GoroutineProfile. The stack of the goroutine taking the snapshot
// is left out.
type GoroutineSnapshotter struct {
	stacks    []runtime.StackRecord
	symbols   *symcache.SymCache
	selfFrame *signature.Frame
	lock      sync.Mutex
}

func NewGoroutineSnapshotter() *GoroutineSnapshotter {
	return &GoroutineSnapshotter{symbols: symcache.NewSymCache()}
}

func (g *GoroutineSnapshotter) Snapshot() ([]signature.Stack, error) {
	g.lock.Lock()
	defer g.lock.Unlock()

	if g.selfFrame == nil {
		// Determine the frame of this func so we can hide the sampling
		// goroutine from the snapshot.
		rpc := make([]uintptr, 1)
		if n := runtime.Callers(1, rpc); n > 0 {
			rf, _ := runtime.CallersFrames(rpc).Next()
			self := signature.FromRuntimeFrame(rf)
			g.selfFrame = &self
		}
	}

	// We don't know how many goroutines exist, so grow g.stacks until the
	// profile fits, overshooting by 10% as more goroutines may be launched in
	// between two calls. Once large enough the buffer is reused.
	var records []runtime.StackRecord
	for {
		n, ok := runtime.GoroutineProfile(g.stacks)
		if ok {
			records = g.stacks[:n]
			break
		}
		g.stacks = make([]runtime.StackRecord, int(float64(n)*1.1)+1)
	}

	stacks := make([]signature.Stack, 0, len(records))
nextStack:
	for i := range records {
		var stack signature.Stack
		for _, pc := range records[i].Stack() {
			for _, f := range g.frames(pc) {
				if g.selfFrame != nil && f == *g.selfFrame {
					continue nextStack
				}
				stack = append(stack, f)
			}
		}
		stacks = append(stacks, stack)
	}

	return stacks, nil
}

// frames symbolizes one PC, expanding inlined calls innermost first.
func (g *GoroutineSnapshotter) frames(pc uintptr) []signature.Frame {
	if frames, err := g.symbols.Get(uint64(pc)); err == nil {
		return frames
	}

	var frames []signature.Frame
	it := runtime.CallersFrames([]uintptr{pc})
	for {
		rf, more := it.Next()
		frames = append(frames, signature.FromRuntimeFrame(rf))
		if !more {
			break
		}
	}
	g.symbols.Set(uint64(pc), frames)

	return frames
}
