package profile

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	pprof "github.com/google/pprof/profile"
	"github.com/pkg/errors"
	log "github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxgio92/stacksampler/internal/commands/options"
	"github.com/maxgio92/stacksampler/pkg/launcher"
	"github.com/maxgio92/stacksampler/pkg/recorder"
	"github.com/maxgio92/stacksampler/pkg/tracker"
)

func newTestCommand(t *testing.T, args ...string) (*bytes.Buffer, error) {
	t.Helper()
	opts := options.NewCommonOptions(
		options.WithContext(context.Background()),
		options.WithLogger(log.Nop()),
	)
	cmd := NewCommand(opts)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	return &out, cmd.Execute()
}

func TestProfileCommand(t *testing.T) {
	dir := t.TempDir()
	pprofPath := filepath.Join(dir, "profile.pb.gz")
	foldedPath := filepath.Join(dir, "stacks.folded")

	out, err := newTestCommand(t,
		"--duration", "300ms",
		"--interval", "2ms",
		"--spin", "5ms",
		"--sleep", "5ms",
		"--filter", "workload",
		"--limit", "5",
		"--pprof", pprofPath,
		"--folded", foldedPath,
	)
	require.NoError(t, err)

	report := out.String()
	assert.Contains(t, report, "Distinct stacks:")
	assert.Contains(t, report, "github.com/maxgio92/stacksampler/internal/workload")
	assert.Contains(t, report, "Sampling cadence:")

	f, err := os.Open(pprofPath)
	require.NoError(t, err)
	defer f.Close()
	prof, err := pprof.Parse(f)
	require.NoError(t, err)
	assert.NotEmpty(t, prof.Sample)

	folded, err := os.ReadFile(foldedPath)
	require.NoError(t, err)
	assert.Contains(t, string(folded), "(github.com/maxgio92/stacksampler/internal/workload)")
}

func TestProfileCommandResidency(t *testing.T) {
	out, err := newTestCommand(t,
		"--duration", "100ms",
		"--interval", "2ms",
		"--residency",
	)
	require.NoError(t, err)

	report := out.String()
	assert.Contains(t, report, "Residency Stack trace")
	assert.Contains(t, report, "workload)")
}

func TestProfileCommandInvalidInterval(t *testing.T) {
	_, err := newTestCommand(t, "--interval", "10s")
	require.Error(t, err)
	assert.Equal(t, launcher.ErrInvalidInterval, errors.Cause(err))
}

func TestProfileCommandInvalidFilter(t *testing.T) {
	_, err := newTestCommand(t, "--filter", "(")
	require.Error(t, err)
	assert.Equal(t, recorder.ErrInvalidFilter, errors.Cause(err))
}

func TestProfileCommandConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("duration: 100ms\ninterval: 5ms\nlimit: 2\npretty: false\n"), 0o600))

	o := &Options{CommonOptions: options.NewCommonOptions(
		options.WithContext(context.Background()),
		options.WithConfigPath(path),
	)}
	cmd := newCommand(o)
	require.NoError(t, cmd.ParseFlags([]string{"--limit", "1", "--workers", "3"}))

	cfg, err := o.config(cmd)
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Limit, "flags override the config file")
	assert.Equal(t, 3, cfg.Workload.Workers)
	assert.Equal(t, 100*time.Millisecond, cfg.Duration)
	assert.Equal(t, 5*time.Millisecond, cfg.Interval)
	assert.False(t, cfg.Pretty)
}

func TestReportEmpty(t *testing.T) {
	r := &report{limit: 10, statsErr: tracker.ErrNoSamples}
	var buf bytes.Buffer
	r.write(&buf)

	out := buf.String()
	assert.Contains(t, out, "Distinct stacks: 0")
	assert.Contains(t, out, recorder.NoSamples)
	assert.Contains(t, out, tracker.ErrNoSamples.Error())
	assert.NotContains(t, out, "Process CPU time")
}

func TestReportTable(t *testing.T) {
	r := &report{
		records: []recorder.ProfileRecord{
			{Label: "Spin(example.com/w)", Hits: 3},
			{Label: "Sleep(example.com/w)", Hits: 1},
		},
		total: 2,
		limit: 1,
	}
	var buf bytes.Buffer
	r.write(&buf)

	out := buf.String()
	assert.Contains(t, out, "Spin")
	assert.Contains(t, out, "example.com/w")
	assert.Contains(t, out, "75.00%")
	assert.False(t, strings.Contains(out, "Sleep"), "rows beyond the limit are not rendered")
}

func TestReportResidency(t *testing.T) {
	r := &report{
		limit:    10,
		statsErr: tracker.ErrNoSamples,
		residency: map[string]float64{
			"main(main);Sleep(example.com/w)": 0.25,
			"main(main);Spin(example.com/w)":  0.75,
		},
	}
	var buf bytes.Buffer
	r.write(&buf)

	out := buf.String()
	assert.Contains(t, out, "Residency Stack trace\n")
	assert.Contains(t, out, "75.0%     main(main);Spin(example.com/w)\n")
	assert.Contains(t, out, "25.0%     main(main);Sleep(example.com/w)\n")
	assert.Less(t, strings.Index(out, "Spin"), strings.Index(out, "Sleep"), "highest residency first")
}

func TestReportWithoutResidency(t *testing.T) {
	r := &report{limit: 10, statsErr: tracker.ErrNoSamples}
	var buf bytes.Buffer
	r.write(&buf)

	assert.NotContains(t, buf.String(), "Residency")
}
