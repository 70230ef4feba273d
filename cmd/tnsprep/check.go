package main

import (
	"github.com/recera/tnsprep/cmd/tnsprep/internal/runner"
	"github.com/recera/tnsprep/cmd/tnsprep/internal/ui"
	"github.com/spf13/cobra"
)

func newCheckCommand(flags *globalFlags) *cobra.Command {
	var noCache bool

	cmd := &cobra.Command{
		Use:   "check [paths...]",
		Short: "Parse and transform templates without writing",
		Long: `Runs the preprocessor over every template and reports the result without
touching the file system. Exits non-zero when a template is malformed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := flags.setup(cmd)
			if err != nil {
				return err
			}

			summary, err := e.runOnce(cmd.Context(), cmd, args, runner.ModeCheck, noCache)
			if err != nil {
				return err
			}

			ui.RenderSummary(cmd.OutOrStdout(), summary, ui.SummaryOptions{Mode: runner.ModeCheck, Verbose: flags.verbose})
			return failure(summary)
		},
	}

	cmd.Flags().BoolVar(&noCache, "no-cache", false, "Bypass the result cache")

	return cmd
}
