package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/fitsaga/internal/plan"
)

// IngestOptions holds flags for the ingest command.
type IngestOptions struct {
	*RootOptions
	User string
}

// NewIngestCommand creates the ingest command.
func NewIngestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &IngestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "ingest <plan-file>",
		Short: "Store a workout plan and make it the user's active plan",
		Long: `Normalize a plan file (.json, .yaml or .cue), store it, merge its
exercises into the catalog and point the user's active plan at it.

If any write fails, every earlier write is undone.

Example:
  fitsaga ingest --db ./fitsaga.db --user u1 plans/push_pull.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.User, "user", "", "owning user id (required)")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func runIngest(opts *IngestOptions, path string, cmd *cobra.Command) error {
	f := formatter(cmd, opts.RootOptions)

	draft, err := plan.LoadFile(path)
	if err != nil {
		return f.Fail(ExitCommandError, CodeInvalidArgs, err, nil)
	}

	a, closeFn, err := openApp(commandContext(cmd), opts.RootOptions)
	if err != nil {
		return err
	}
	defer closeFn()

	res, err := a.Plans.Ingest(commandContext(cmd), opts.User, draft)
	if err != nil {
		return fail(f, err)
	}
	slog.Debug("plan ingested", "plan", res.PlanID, "user", opts.User)

	return f.Render(res, func(w io.Writer) {
		fmt.Fprintf(w, "✓ Plan %s is now active for %s\n", res.PlanID, opts.User)
		fmt.Fprintf(w, "  %d exercises (%d new in catalog, %d updated)\n",
			len(res.Exercises), len(res.CatalogInserted), len(res.CatalogIncremented))
		printWarnings(w, res.Warnings)
	})
}

func printWarnings(w io.Writer, warnings []plan.Warning) {
	for _, warn := range warnings {
		fmt.Fprintf(w, "  ⚠ %s\n", warn)
	}
}
