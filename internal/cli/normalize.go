package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/fitsaga/internal/plan"
)

// NormalizeResult is the output of the normalize command.
type NormalizeResult struct {
	Plan     *plan.Plan     `json:"plan"`
	Warnings []plan.Warning `json:"warnings"`
}

// NewNormalizeCommand creates the normalize command.
func NewNormalizeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "normalize <plan-file>",
		Short: "Validate a plan file and print its canonical form",
		Long: `Validate a plan file and print the normalized plan without storing it.

Example:
  fitsaga normalize plans/hybrid_week.json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNormalize(rootOpts, args[0], cmd)
		},
	}
}

func runNormalize(opts *RootOptions, path string, cmd *cobra.Command) error {
	f := formatter(cmd, opts)

	draft, err := plan.LoadFile(path)
	if err != nil {
		return f.Fail(ExitCommandError, CodeInvalidArgs, err, nil)
	}
	p, warnings, err := plan.Normalize(draft)
	if err != nil {
		return fail(f, err)
	}
	if warnings == nil {
		warnings = []plan.Warning{}
	}

	return f.Render(NormalizeResult{Plan: p, Warnings: warnings}, func(w io.Writer) {
		data, _ := json.MarshalIndent(p, "", "  ")
		fmt.Fprintln(w, string(data))
		printWarnings(w, warnings)
	})
}
