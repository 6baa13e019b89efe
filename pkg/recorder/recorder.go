package recorder

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
)

const (
	// MatchAll is the default query filter.
	MatchAll = ".*"

	// DefaultMaxRecords is the default number of records returned by Query.
	DefaultMaxRecords = 10

	// NoLimit makes Query return every matching record.
	NoLimit = -1
)

var (
	ErrInvalidFilter = errors.New("invalid filter pattern")
)

// ProfileRecord is a report row: how many hits a label got.
type ProfileRecord struct {
	Label string
	Hits  uint64
}

// Recorder is a frequency database counting hits per stack signature.
// It is safe for concurrent use.
type Recorder struct {
	hits map[string]uint64
	lock sync.RWMutex
}

func NewRecorder() *Recorder {
	r := new(Recorder)
	r.hits = make(map[string]uint64)

	return r
}

// Record increments the hit count of the signature.
func (r *Recorder) Record(sig string) {
	r.lock.Lock()
	r.hits[sig]++
	r.lock.Unlock()
}

// Len returns the number of distinct signatures recorded.
func (r *Recorder) Len() int {
	r.lock.RLock()
	defer r.lock.RUnlock()

	return len(r.hits)
}

// Hits returns the hit count of one full signature.
func (r *Recorder) Hits(sig string) uint64 {
	r.lock.RLock()
	defer r.lock.RUnlock()

	return r.hits[sig]
}

// signatures returns a copy of the database sorted by signature.
func (r *Recorder) signatures() []ProfileRecord {
	r.lock.RLock()
	records := make([]ProfileRecord, 0, len(r.hits))
	for sig, hits := range r.hits {
		records = append(records, ProfileRecord{Label: sig, Hits: hits})
	}
	r.lock.RUnlock()

	sort.Slice(records, func(i, j int) bool {
		return records[i].Label < records[j].Label
	})

	return records
}
