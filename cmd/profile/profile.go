package profile

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/maxgio92/stacksampler/internal/commands/options"
	"github.com/maxgio92/stacksampler/internal/config"
	"github.com/maxgio92/stacksampler/internal/logging"
	"github.com/maxgio92/stacksampler/internal/workload"
	"github.com/maxgio92/stacksampler/pkg/launcher"
	"github.com/maxgio92/stacksampler/pkg/recorder"
)

type Options struct {
	interval   time.Duration
	duration   time.Duration
	filter     string
	limit      int
	workers    int
	spin       time.Duration
	sleep      time.Duration
	pprofPath  string
	foldedPath string
	residency  bool
	*options.CommonOptions
}

func NewCommand(opts *options.CommonOptions) *cobra.Command {
	return newCommand(&Options{CommonOptions: opts})
}

func newCommand(o *Options) *cobra.Command {
	d := config.Default()

	cmd := &cobra.Command{
		Use:   "profile",
		Short: "profile samples a synthetic workload and ranks the functions found most often on its stacks",
		RunE:  o.Run,
	}
	cmd.Flags().DurationVar(&o.interval, "interval", d.Interval, "the sleep between two samples, in (0, 10s)")
	cmd.Flags().DurationVar(&o.duration, "duration", d.Duration, "how long to profile the workload")
	cmd.Flags().StringVar(&o.filter, "filter", d.Filter, "regular expression selecting the reported frames")
	cmd.Flags().IntVar(&o.limit, "limit", d.Limit, "the number of reported frames")
	cmd.Flags().IntVar(&o.workers, "workers", d.Workload.Workers, "the number of workload goroutines")
	cmd.Flags().DurationVar(&o.spin, "spin", d.Workload.Spin, "the CPU-bound time of each workload round")
	cmd.Flags().DurationVar(&o.sleep, "sleep", d.Workload.Sleep, "the idle time of each workload round")
	cmd.Flags().BoolVar(&o.residency, "residency", false, "also print the residency fraction per stack trace")
	cmd.Flags().StringVar(&o.pprofPath, "pprof", "", "write the collected stacks as a pprof profile to this file")
	cmd.Flags().StringVar(&o.foldedPath, "folded", "", "write the collected stacks in folded format to this file")

	return cmd
}

func (o *Options) Run(cmd *cobra.Command, _ []string) error {
	cfg, err := o.config(cmd)
	if err != nil {
		return err
	}

	logCfg := logging.Config{Level: cfg.LogLevel, Pretty: cfg.Pretty, Output: os.Stderr}
	if o.Debug {
		logCfg.Level = "debug"
	}
	logger := logging.New(logCfg)

	reg := prometheus.NewRegistry()
	l, err := launcher.NewLauncher(
		launcher.WithContext(o.Ctx),
		launcher.WithInterval(cfg.Interval),
		launcher.WithLogger(logging.NewWithComponent(logCfg, "launcher")),
		launcher.WithMetrics(launcher.NewMetrics(reg)),
	)
	if err != nil {
		return err
	}

	before, err := cpuTime()
	if err != nil {
		logger.Debug().Err(err).Msg("error reading process cpu time")
	}
	start := time.Now()

	if err = l.Start(); err != nil {
		return err
	}
	l.Unpause()
	logger.Info().Dur("duration", cfg.Duration).Int("workers", cfg.Workload.Workers).Msg("profiling workload")

	ctx, cancel := context.WithTimeout(o.Ctx, cfg.Duration)
	defer cancel()
	w := workload.Workload{Workers: cfg.Workload.Workers, Spin: cfg.Workload.Spin, Sleep: cfg.Workload.Sleep}
	if err = w.Run(ctx); err != nil {
		return errors.Wrap(err, "error running the workload")
	}

	// The loop only observes the cancellation once unpaused.
	l.Cancel()
	l.Unpause()
	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.Interval+time.Second)
	defer waitCancel()
	if err = l.Wait(waitCtx); err != nil {
		return err
	}

	r := &report{
		wall:  time.Since(start),
		limit: cfg.Limit,
	}
	if after, err := cpuTime(); err == nil && before > 0 {
		r.cpu = after - before
	}
	r.records, r.total, err = l.Query(cfg.Filter, recorder.NoLimit)
	if err != nil {
		return err
	}
	r.stats, r.statsErr = l.Stats()
	if o.residency {
		r.residency = l.Recorder().Residency()
	}
	if r.metrics, err = reg.Gather(); err != nil {
		logger.Debug().Err(err).Msg("error gathering metrics")
	}
	r.write(cmd.OutOrStdout())

	if o.pprofPath != "" {
		if err = writeFile(o.pprofPath, func(f *os.File) error {
			return l.Recorder().WriteProfile(f, cfg.Interval)
		}); err != nil {
			return err
		}
		logger.Info().Str("path", o.pprofPath).Msg("wrote pprof profile")
	}
	if o.foldedPath != "" {
		if err = writeFile(o.foldedPath, func(f *os.File) error {
			return l.Recorder().WriteFolded(f)
		}); err != nil {
			return err
		}
		logger.Info().Str("path", o.foldedPath).Msg("wrote folded stacks")
	}

	return nil
}

// config loads the config file, then applies the flags set on the command
// line over it.
func (o *Options) config(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("interval") {
		cfg.Interval = o.interval
	}
	if flags.Changed("duration") {
		cfg.Duration = o.duration
	}
	if flags.Changed("filter") {
		cfg.Filter = o.filter
	}
	if flags.Changed("limit") {
		cfg.Limit = o.limit
	}
	if flags.Changed("workers") {
		cfg.Workload.Workers = o.workers
	}
	if flags.Changed("spin") {
		cfg.Workload.Spin = o.spin
	}
	if flags.Changed("sleep") {
		cfg.Workload.Sleep = o.sleep
	}

	return cfg, cfg.Validate()
}

func writeFile(path string, write func(f *os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, fmt.Sprintf("error creating %s", path))
	}
	if err = write(f); err != nil {
		f.Close()
		return err
	}

	return errors.Wrap(f.Close(), fmt.Sprintf("error closing %s", path))
}
