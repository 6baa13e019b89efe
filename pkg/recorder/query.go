package recorder

import (
	"regexp"
	"sort"

	"github.com/pkg/errors"

	"github.com/maxgio92/stacksampler/pkg/signature"
)

// Query ranks frame descriptors by hits.
//
// Every stored signature is split into its descriptors, and the signature's
// hits are added to each descriptor the pattern matches (regexp search, not
// full match). A descriptor occurring twice in one stack is counted twice.
// Records are sorted by descending hits, ties by label, and truncated to
// maxRecords unless it is negative.
//
// The second return value is the number of distinct signatures in the
// database, regardless of the filter and of maxRecords.
//
// The scan holds the read side of the lock Record takes exclusively: no
// signature is recorded while a query runs, but queries may overlap.
func (r *Recorder) Query(pattern string, maxRecords int) ([]ProfileRecord, int, error) {
	filter, err := regexp.Compile(pattern)
	if err != nil {
		return nil, 0, errors.Wrapf(ErrInvalidFilter, "error compiling %q: %v", pattern, err)
	}

	calls := make(map[string]uint64)

	r.lock.RLock()
	total := len(r.hits)
	for sig, hits := range r.hits {
		for _, d := range signature.Split(sig) {
			if filter.MatchString(d) {
				calls[d] += hits
			}
		}
	}
	r.lock.RUnlock()

	records := make([]ProfileRecord, 0, len(calls))
	for label, hits := range calls {
		records = append(records, ProfileRecord{Label: label, Hits: hits})
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].Hits != records[j].Hits {
			return records[i].Hits > records[j].Hits
		}
		return records[i].Label < records[j].Label
	})

	if maxRecords >= 0 && len(records) > maxRecords {
		records = records[:maxRecords]
	}

	return records, total, nil
}
