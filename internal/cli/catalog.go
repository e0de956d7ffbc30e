package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/fitsaga/internal/catalog"
)

// NewCatalogCommand creates the catalog command.
func NewCatalogCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "catalog [exercise-name]",
		Short: "Show the exercise catalog",
		Long: `List every catalog entry, or show one entry by exercise name.
Names are matched after normalization, so "Bench  Press" finds bench_press.

Example:
  fitsaga catalog --db ./fitsaga.db
  fitsaga catalog --db ./fitsaga.db "Bench Press"`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			return runCatalog(rootOpts, name, cmd)
		},
	}
}

func runCatalog(opts *RootOptions, name string, cmd *cobra.Command) error {
	f := formatter(cmd, opts)
	a, closeFn, err := openApp(commandContext(cmd), opts)
	if err != nil {
		return err
	}
	defer closeFn()

	if name != "" {
		e, err := a.Catalog.Lookup(commandContext(cmd), name)
		if err != nil {
			return fail(f, err)
		}
		return f.Render(e, func(w io.Writer) { printEntry(w, e) })
	}

	entries, err := a.Catalog.List(commandContext(cmd))
	if err != nil {
		return fail(f, err)
	}
	return f.Render(entries, func(w io.Writer) {
		if len(entries) == 0 {
			fmt.Fprintln(w, "Catalog is empty.")
			return
		}
		for _, e := range entries {
			printEntry(w, e)
		}
	})
}

func printEntry(w io.Writer, e catalog.Entry) {
	fmt.Fprintf(w, "%-24s %-12s hits=%d  %s\n", e.Name, e.Category, e.HitCount, e.DisplayName)
}
