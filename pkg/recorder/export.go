package recorder

import (
	"bufio"
	"fmt"
	"io"
	"time"

	"github.com/google/pprof/profile"
	"github.com/pkg/errors"

	"github.com/maxgio92/stacksampler/pkg/signature"
)

// WriteFolded writes the database in folded stack format, one
// "signature count" line per distinct stack, ordered by signature.
func (r *Recorder) WriteFolded(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, rec := range r.signatures() {
		if _, err := fmt.Fprintf(bw, "%s %d\n", rec.Label, rec.Hits); err != nil {
			return errors.Wrap(err, "error writing folded stacks")
		}
	}

	return errors.Wrap(bw.Flush(), "error flushing folded stacks")
}

// BuildProfile converts the database into a pprof profile. Each distinct
// signature becomes one sample valued with its hits and with hits*period
// of wall time.
func (r *Recorder) BuildProfile(period time.Duration) *profile.Profile {
	prof := &profile.Profile{
		SampleType: []*profile.ValueType{
			{Type: "samples", Unit: "count"},
			{Type: "wall", Unit: "nanoseconds"},
		},
		PeriodType: &profile.ValueType{Type: "wall", Unit: "nanoseconds"},
		Period:     int64(period),
		TimeNanos:  time.Now().UnixNano(),
	}
	m := &profile.Mapping{ID: 1, HasFunctions: true}
	prof.Mapping = []*profile.Mapping{m}

	funcIdx := make(map[string]*profile.Function)
	locationIdx := make(map[string]*profile.Location)

	for _, rec := range r.signatures() {
		descriptors := signature.Split(rec.Label)
		// pprof lists locations leaf first.
		locs := make([]*profile.Location, 0, len(descriptors))
		for i := len(descriptors) - 1; i >= 0; i-- {
			d := descriptors[i]
			location, ok := locationIdx[d]
			if !ok {
				frame := signature.ParseDescriptor(d)
				name := frame.Function
				if frame.Module != "" {
					name = frame.Module + "." + frame.Function
				}
				function, ok := funcIdx[name]
				if !ok {
					function = &profile.Function{
						ID:         uint64(len(prof.Function)) + 1,
						Name:       name,
						SystemName: name,
					}
					funcIdx[name] = function
					prof.Function = append(prof.Function, function)
				}
				location = &profile.Location{
					ID:      uint64(len(prof.Location)) + 1,
					Mapping: m,
					Line:    []profile.Line{{Function: function}},
				}
				locationIdx[d] = location
				prof.Location = append(prof.Location, location)
			}
			locs = append(locs, location)
		}
		prof.Sample = append(prof.Sample, &profile.Sample{
			Location: locs,
			Value:    []int64{int64(rec.Hits), int64(rec.Hits) * int64(period)},
		})
	}

	return prof
}

// WriteProfile writes the database as a gzipped pprof profile.
func (r *Recorder) WriteProfile(w io.Writer, period time.Duration) error {
	return errors.Wrap(r.BuildProfile(period).Write(w), "error writing pprof profile")
}
