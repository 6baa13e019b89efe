package recorder

import (
	"fmt"
	"strings"
)

// NoSamples is what Show reports for an empty result set.
const NoSamples = "no samples"

const showQueryRecords = 100

type showOptions struct {
	records   []ProfileRecord
	hasQuery  bool
	rowSep    string
	columnSep string
}

type ShowOption func(o *showOptions)

// WithQuery makes Show render an already computed query result instead of
// querying the database.
func WithQuery(records []ProfileRecord) ShowOption {
	return func(o *showOptions) {
		o.records = records
		o.hasQuery = true
	}
}

func WithRowSeparator(sep string) ShowOption {
	return func(o *showOptions) {
		o.rowSep = sep
	}
}

func WithColumnSeparator(sep string) ShowOption {
	return func(o *showOptions) {
		o.columnSep = sep
	}
}

// Show renders the top limit records as a table of label, hits, and
// percentage of the hits of the whole result set.
func (r *Recorder) Show(limit int, opts ...ShowOption) (string, error) {
	o := &showOptions{rowSep: "\n", columnSep: " | "}
	for _, f := range opts {
		f(o)
	}

	records := o.records
	if !o.hasQuery {
		var err error
		records, _, err = r.Query(MatchAll, max(limit, showQueryRecords))
		if err != nil {
			return "", err
		}
	}

	return Format(records, limit, o.rowSep, o.columnSep), nil
}

// Format renders records the way Show does.
func Format(records []ProfileRecord, limit int, rowSep, columnSep string) string {
	var total uint64
	for _, rec := range records {
		total += rec.Hits
	}
	if total == 0 {
		return NoSamples
	}

	if limit >= 0 && len(records) > limit {
		records = records[:limit]
	}

	rows := make([]string, 0, len(records)+1)
	rows = append(rows, strings.Join([]string{"function", "hits", "percent"}, columnSep))
	for _, rec := range records {
		rows = append(rows, strings.Join([]string{
			rec.Label,
			fmt.Sprintf("%d", rec.Hits),
			fmt.Sprintf("%.2f%%", Percent(rec.Hits, total)),
		}, columnSep))
	}

	return strings.Join(rows, rowSep)
}

// Percent returns hits as a percentage of total, 0 when total is 0.
func Percent(hits, total uint64) float64 {
	if total == 0 {
		return 0
	}
	return float64(hits) * 100 / float64(total)
}
