package symcache

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/maxgio92/stacksampler/pkg/signature"
)

var (
	ErrMissing = errors.New("key does not exist")
)

type addr uint64

// SymCache maps program counters to the frames they symbolize to.
// A single PC yields several frames when calls were inlined.
type SymCache struct {
	syms map[addr][]signature.Frame
	lock sync.RWMutex
}

func NewSymCache() *SymCache {
	cache := new(SymCache)
	cache.syms = make(map[addr][]signature.Frame)

	return cache
}

func (s *SymCache) Set(ip uint64, frames []signature.Frame) {
	s.lock.Lock()
	s.syms[addr(ip)] = frames
	s.lock.Unlock()
}

func (s *SymCache) Get(ip uint64) ([]signature.Frame, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	frames, ok := s.syms[addr(ip)]
	if !ok {
		return nil, ErrMissing
	}

	return frames, nil
}

func (s *SymCache) Len() int {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return len(s.syms)
}
