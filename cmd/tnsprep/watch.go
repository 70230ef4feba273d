package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/recera/tnsprep/cmd/tnsprep/internal/runner"
	"github.com/recera/tnsprep/cmd/tnsprep/internal/ui"
	"github.com/recera/tnsprep/cmd/tnsprep/internal/watch"
	"github.com/spf13/cobra"
)

func newWatchCommand(flags *globalFlags) *cobra.Command {
	var outDir string
	var noCache bool

	cmd := &cobra.Command{
		Use:   "watch [paths...]",
		Short: "Preprocess templates whenever they change",
		Long: `Preprocesses every template once, then watches the given paths and
re-processes templates as they are saved. Stop with Ctrl+C.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := flags.setup(cmd)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return e.watch(ctx, cmd, args, outputMode(e, outDir, false), noCache, flags.verbose)
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Mirror results into this directory")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "Bypass the result cache")

	return cmd
}

func (e *env) watch(ctx context.Context, cmd *cobra.Command, paths []string, mode runner.Mode, noCache, verbose bool) error {
	r, cleanup, err := e.newRunner(cmd, paths, mode, noCache)
	if err != nil {
		return err
	}
	defer cleanup()

	out := cmd.OutOrStdout()
	opts := ui.SummaryOptions{Mode: mode, Verbose: verbose}

	summary, err := r.Run(ctx, paths)
	if err != nil {
		return err
	}
	ui.RenderSummary(out, summary, opts)

	w, err := watch.New(paths, watch.Options{
		Debounce: e.cfg.Watch.Debounce,
		Filter:   r.IsSource,
		Exclude:  e.cfg.Exclude,
		Logger:   &e.log,
	})
	if err != nil {
		return err
	}
	defer w.Close()

	e.log.Info().Int("dirs", len(w.Dirs())).Msg("watching for changes")

	return w.Run(ctx, func(changed []string) {
		summary, err := r.Run(ctx, changed)
		if err != nil {
			e.log.Error().Err(err).Msg("preprocessing failed")
			return
		}
		ui.RenderSummary(out, summary, opts)
	})
}
