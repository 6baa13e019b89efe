package profile

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/olekukonko/tablewriter"
	dto "github.com/prometheus/client_model/go"
	"golang.org/x/sys/unix"

	"github.com/maxgio92/stacksampler/pkg/recorder"
	"github.com/maxgio92/stacksampler/pkg/signature"
	"github.com/maxgio92/stacksampler/pkg/tracker"
)

type report struct {
	records   []recorder.ProfileRecord
	total     int
	limit     int
	stats     tracker.Summary
	statsErr  error
	metrics   []*dto.MetricFamily
	residency map[string]float64
	wall      time.Duration
	cpu       time.Duration
}

func (r *report) write(w io.Writer) {
	var hits uint64
	for _, rec := range r.records {
		hits += rec.Hits
	}

	fmt.Fprintf(w, "Distinct stacks: %d\n", r.total)
	if hits == 0 {
		fmt.Fprintln(w, recorder.NoSamples)
	} else {
		records := r.records
		if len(records) > r.limit {
			records = records[:r.limit]
		}
		tbl := tablewriter.NewWriter(w)
		tbl.SetHeader([]string{"Function", "Module", "Hits", "Percent"})
		tbl.SetAutoWrapText(false)
		for _, rec := range records {
			fn, module := splitLabel(rec.Label)
			tbl.Append([]string{
				fn,
				module,
				fmt.Sprintf("%d", rec.Hits),
				fmt.Sprintf("%.2f%%", recorder.Percent(rec.Hits, hits)),
			})
		}
		tbl.Render()
	}

	if r.residency != nil {
		r.writeResidency(w)
	}

	if r.statsErr != nil {
		fmt.Fprintf(w, "Sampling cadence: %v\n", r.statsErr)
	} else {
		fmt.Fprintf(w, "Sampling cadence: %d cycles, mean %s, stdev %s, p50 %s, p90 %s, p99 %s\n",
			r.stats.Calls, r.stats.Mean, r.stats.Stdev, r.stats.P50, r.stats.P90, r.stats.P99)
	}
	fmt.Fprintf(w, "Samples: %.0f, failed: %.0f, stacks recorded: %.0f\n",
		counterValue(r.metrics, "stacksampler_samples_total"),
		counterValue(r.metrics, "stacksampler_snapshot_failures_total"),
		counterValue(r.metrics, "stacksampler_stacks_recorded_total"))
	if r.cpu > 0 {
		fmt.Fprintf(w, "Process CPU time: %s over %s wall time\n", r.cpu, r.wall.Round(time.Millisecond))
	}
}

// writeResidency prints the residency fraction of every stack trace,
// highest first.
func (r *report) writeResidency(w io.Writer) {
	sigs := make([]string, 0, len(r.residency))
	for sig := range r.residency {
		sigs = append(sigs, sig)
	}
	sort.Slice(sigs, func(i, j int) bool {
		if r.residency[sigs[i]] != r.residency[sigs[j]] {
			return r.residency[sigs[i]] > r.residency[sigs[j]]
		}
		return sigs[i] < sigs[j]
	})

	fmt.Fprintln(w, "Residency Stack trace")
	for _, sig := range sigs {
		fmt.Fprintf(w, "%4.1f%%     %s\n", r.residency[sig]*100, sig)
	}
}

func splitLabel(label string) (string, string) {
	f := signature.ParseDescriptor(label)
	return f.Function, f.Module
}

func counterValue(families []*dto.MetricFamily, name string) float64 {
	for _, mf := range families {
		if mf.GetName() == name && len(mf.GetMetric()) > 0 {
			return mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	return 0
}

// cpuTime returns the user and system CPU time consumed by the process.
func cpuTime() (time.Duration, error) {
	var ru unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &ru); err != nil {
		return 0, err
	}
	return time.Duration(ru.Utime.Nano() + ru.Stime.Nano()), nil
}
