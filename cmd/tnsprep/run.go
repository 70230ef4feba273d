package main

import (
	"context"
	"fmt"

	"github.com/recera/tnsprep/cmd/tnsprep/internal/runner"
	"github.com/recera/tnsprep/cmd/tnsprep/internal/ui"
	"github.com/spf13/cobra"
)

func newRunCommand(flags *globalFlags) *cobra.Command {
	var outDir string
	var stdout bool
	var noCache bool

	cmd := &cobra.Command{
		Use:   "run [paths...]",
		Short: "Preprocess templates",
		Long: `Preprocesses every template found under the given paths (default: the
current directory). Results are written next to each source with the
configured suffix, mirrored into --out, or printed with --stdout.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := flags.setup(cmd)
			if err != nil {
				return err
			}

			mode := outputMode(e, outDir, stdout)
			summary, err := e.runOnce(cmd.Context(), cmd, args, mode, noCache)
			if err != nil {
				return err
			}

			report := cmd.OutOrStdout()
			if mode == runner.ModeStdout {
				report = cmd.ErrOrStderr()
			}
			ui.RenderSummary(report, summary, ui.SummaryOptions{Mode: mode, Verbose: flags.verbose})

			return failure(summary)
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Mirror results into this directory")
	cmd.Flags().BoolVar(&stdout, "stdout", false, "Print results instead of writing files")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "Bypass the result cache")
	cmd.MarkFlagsMutuallyExclusive("out", "stdout")

	return cmd
}

func outputMode(e *env, outDir string, stdout bool) runner.Mode {
	switch {
	case stdout:
		return runner.ModeStdout
	case outDir != "":
		e.cfg.OutDir = outDir
		return runner.ModeOutDir
	case e.cfg.OutDir != "":
		return runner.ModeOutDir
	default:
		return runner.ModeSuffix
	}
}

// newRunner builds a runner for paths; directories among them anchor the
// output location of files passed later, as watch does on every change
func (e *env) newRunner(cmd *cobra.Command, paths []string, mode runner.Mode, noCache bool) (*runner.Runner, func(), error) {
	c, err := e.openCache(noCache)
	if err != nil {
		return nil, nil, err
	}

	r := runner.New(e.pre, runner.Options{
		Mode:       mode,
		Extensions: e.cfg.Extensions,
		Exclude:    e.cfg.Exclude,
		OutDir:     e.cfg.OutDir,
		OutSuffix:  e.cfg.OutSuffix,
		Parallel:   e.cfg.Parallel,
		Stdout:     cmd.OutOrStdout(),
		Cache:      c,
		Logger:     &e.log,
		CacheKey:   e.cacheKey(),
		BaseDirs:   baseDirs(paths),
	})

	cleanup := func() {
		if c == nil {
			return
		}
		if err := c.Close(); err != nil {
			e.log.Warn().Err(err).Msg("failed to save cache index")
		}
	}
	return r, cleanup, nil
}

func (e *env) runOnce(ctx context.Context, cmd *cobra.Command, paths []string, mode runner.Mode, noCache bool) (*runner.Summary, error) {
	r, cleanup, err := e.newRunner(cmd, paths, mode, noCache)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	summary, err := r.Run(ctx, paths)
	if err != nil {
		return nil, fmt.Errorf("preprocessing failed: %w", err)
	}
	return summary, nil
}

func baseDirs(paths []string) []string {
	if len(paths) == 0 {
		return []string{"."}
	}
	return paths
}

// failure turns file errors into the command's exit error
func failure(summary *runner.Summary) error {
	failed := summary.Failed()
	if len(failed) == 0 {
		return nil
	}
	if len(failed) == 1 {
		return failed[0].Err
	}
	return fmt.Errorf("%d of %d files failed", len(failed), len(summary.Files))
}
