package recorder_test

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/pprof/profile"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxgio92/stacksampler/pkg/recorder"
	"github.com/maxgio92/stacksampler/pkg/signature"
)

func record(r *recorder.Recorder, sig string, n int) {
	for i := 0; i < n; i++ {
		r.Record(sig)
	}
}

func TestRecord(t *testing.T) {
	r := recorder.NewRecorder()
	assert.Equal(t, 0, r.Len())

	r.Record("main(main);f(main)")
	r.Record("main(main);f(main)")
	r.Record("main(main);g(main)")

	assert.Equal(t, 2, r.Len())
	assert.Equal(t, uint64(2), r.Hits("main(main);f(main)"))
	assert.Equal(t, uint64(1), r.Hits("main(main);g(main)"))
	assert.Equal(t, uint64(0), r.Hits("missing"))
}

func TestRecordConcurrent(t *testing.T) {
	const (
		writers   = 16
		perWriter = 1000
	)
	r := recorder.NewRecorder()

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < perWriter; j++ {
				r.Record("shared")
				r.Record(fmt.Sprintf("writer-%d", i%4))
				if j%100 == 0 {
					_, _, err := r.Query(recorder.MatchAll, recorder.NoLimit)
					assert.NoError(t, err)
				}
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, uint64(writers*perWriter), r.Hits("shared"))
	for i := 0; i < 4; i++ {
		assert.Equal(t, uint64(writers/4*perWriter), r.Hits(fmt.Sprintf("writer-%d", i)))
	}
	assert.Equal(t, 5, r.Len())
}

func TestQueryAccumulatesPerDescriptor(t *testing.T) {
	r := recorder.NewRecorder()
	record(r, "main(main);a(p);b(p)", 5)
	record(r, "main(main);a(p);c(p)", 3)
	record(r, "main(main);b(p);b(p)", 2)

	records, total, err := r.Query(recorder.MatchAll, recorder.NoLimit)
	require.NoError(t, err)
	assert.Equal(t, 3, total)

	want := map[string]uint64{}
	for _, sig := range []struct {
		sig  string
		hits uint64
	}{
		{"main(main);a(p);b(p)", 5},
		{"main(main);a(p);c(p)", 3},
		{"main(main);b(p);b(p)", 2},
	} {
		for _, d := range signature.Split(sig.sig) {
			want[d] += sig.hits
		}
	}

	got := map[string]uint64{}
	for _, rec := range records {
		got[rec.Label] = rec.Hits
	}
	assert.Equal(t, want, got)
	assert.Equal(t, uint64(9), got["b(p)"], "b appears twice in one stack and is counted twice")

	assert.Equal(t, []recorder.ProfileRecord{
		{Label: "main(main)", Hits: 10},
		{Label: "b(p)", Hits: 9},
		{Label: "a(p)", Hits: 8},
		{Label: "c(p)", Hits: 3},
	}, records)
}

func TestQueryLimitAndFilter(t *testing.T) {
	r := recorder.NewRecorder()
	record(r, "main(main);alpha(p)", 4)
	record(r, "main(main);beta(p)", 3)
	record(r, "main(main);gamma(q)", 2)

	records, total, err := r.Query(recorder.MatchAll, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, records, 2)
	assert.Equal(t, "main(main)", records[0].Label)
	assert.Equal(t, "alpha(p)", records[1].Label)

	records, total, err = r.Query(`\(p\)`, recorder.DefaultMaxRecords)
	require.NoError(t, err)
	assert.Equal(t, 3, total, "total counts distinct signatures independent of the filter")
	assert.Equal(t, []recorder.ProfileRecord{
		{Label: "alpha(p)", Hits: 4},
		{Label: "beta(p)", Hits: 3},
	}, records)

	// Search semantics: the pattern may match anywhere in the descriptor.
	records, _, err = r.Query("amm", recorder.NoLimit)
	require.NoError(t, err)
	assert.Equal(t, []recorder.ProfileRecord{{Label: "gamma(q)", Hits: 2}}, records)

	records, total, err = r.Query(recorder.MatchAll, 0)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, 3, total)
}

func TestQueryTiesAreStable(t *testing.T) {
	r := recorder.NewRecorder()
	record(r, "z(p)", 1)
	record(r, "y(p)", 1)
	record(r, "x(p)", 1)

	for i := 0; i < 5; i++ {
		records, _, err := r.Query("", recorder.NoLimit)
		require.NoError(t, err)
		assert.Equal(t, []string{"x(p)", "y(p)", "z(p)"}, labels(records))
	}
}

func TestQueryInvalidFilter(t *testing.T) {
	r := recorder.NewRecorder()
	r.Record("main(main)")

	_, _, err := r.Query("(unclosed", recorder.NoLimit)
	require.Error(t, err)
	assert.True(t, errors.Is(err, recorder.ErrInvalidFilter))
	assert.Equal(t, recorder.ErrInvalidFilter, errors.Cause(err))
}

func TestShowEmpty(t *testing.T) {
	r := recorder.NewRecorder()

	out, err := r.Show(10)
	require.NoError(t, err)
	assert.Equal(t, recorder.NoSamples, out)

	out, err = r.Show(10, recorder.WithQuery(nil))
	require.NoError(t, err)
	assert.Equal(t, recorder.NoSamples, out)
}

func TestShow(t *testing.T) {
	r := recorder.NewRecorder()
	record(r, "f(p)", 3)
	record(r, "g(p)", 1)

	out, err := r.Show(10)
	require.NoError(t, err)
	assert.Equal(t, strings.Join([]string{
		"function | hits | percent",
		"f(p) | 3 | 75.00%",
		"g(p) | 1 | 25.00%",
	}, "\n"), out)

	out, err = r.Show(1, recorder.WithRowSeparator("<br>"), recorder.WithColumnSeparator(","))
	require.NoError(t, err)
	assert.Equal(t, "function,hits,percent<br>f(p),3,75.00%", out)
}

func TestShowPrecomputedQuery(t *testing.T) {
	r := recorder.NewRecorder()
	records := []recorder.ProfileRecord{{Label: "a", Hits: 1}, {Label: "b", Hits: 1}}

	out, err := r.Show(1, recorder.WithQuery(records), recorder.WithColumnSeparator(" "))
	require.NoError(t, err)
	// The percentage refers to the whole precomputed result set.
	assert.Equal(t, "function hits percent\na 1 50.00%", out)
}

func TestResidency(t *testing.T) {
	r := recorder.NewRecorder()
	assert.Empty(t, r.Residency())

	record(r, "a", 3)
	record(r, "b", 1)

	res := r.Residency()
	assert.InDelta(t, 0.75, res["a"], 1e-9)
	assert.InDelta(t, 0.25, res["b"], 1e-9)
}

func TestWriteFolded(t *testing.T) {
	r := recorder.NewRecorder()
	record(r, "main(main);g(p)", 2)
	record(r, "main(main);f(p)", 1)

	var buf bytes.Buffer
	require.NoError(t, r.WriteFolded(&buf))
	assert.Equal(t, "main(main);f(p) 1\nmain(main);g(p) 2\n", buf.String())
}

func TestWriteProfile(t *testing.T) {
	r := recorder.NewRecorder()
	record(r, "main(main);f(example.com/p)", 2)
	record(r, "main(main);(*T).g(example.com/p)", 1)

	var buf bytes.Buffer
	require.NoError(t, r.WriteProfile(&buf, time.Millisecond))

	prof, err := profile.Parse(&buf)
	require.NoError(t, err)
	require.NoError(t, prof.CheckValid())
	require.Len(t, prof.Sample, 2)
	assert.Len(t, prof.Function, 3)

	stacks := map[string]int64{}
	for _, s := range prof.Sample {
		var names []string
		for _, loc := range s.Location {
			names = append(names, loc.Line[0].Function.Name)
		}
		stacks[strings.Join(names, ";")] = s.Value[0]
		assert.Equal(t, s.Value[0]*int64(time.Millisecond), s.Value[1])
	}
	assert.Equal(t, map[string]int64{
		"example.com/p.f;main.main":      2,
		"example.com/p.(*T).g;main.main": 1,
	}, stacks)
}

func labels(records []recorder.ProfileRecord) []string {
	out := make([]string, 0, len(records))
	for _, rec := range records {
		out = append(out, rec.Label)
	}
	return out
}
