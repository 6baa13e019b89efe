package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/maxgio92/stacksampler/cmd/profile"
	"github.com/maxgio92/stacksampler/internal/commands/options"
	"github.com/maxgio92/stacksampler/internal/logging"
)

func NewRootCmd(opts *options.CommonOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:               "stacksampler",
		Short:             "stacksampler is a statistical goroutine stack profiler",
		Long:              `stacksampler periodically snapshots the goroutine stacks of a program and ranks the call paths it observes most often.`,
		DisableAutoGenTag: true,
		SilenceUsage:      true,
	}
	cmd.AddCommand(profile.NewCommand(opts))
	cmd.PersistentFlags().BoolVar(&opts.Debug, "debug", false, "Sets log level to debug")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "Path to a YAML config file")

	return cmd
}

// Execute adds all child commands to the root commands and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := logging.New(logging.DefaultConfig())

	go func() {
		<-ctx.Done()
		logger.Debug().Msg("terminating...")
	}()

	opts := options.NewCommonOptions(
		options.WithContext(ctx),
		options.WithLogger(logger),
	)

	if err := NewRootCmd(opts).Execute(); err != nil {
		os.Exit(1)
	}
}
