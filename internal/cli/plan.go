package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/fitsaga/internal/ingest"
)

// PlanOptions holds flags shared by the plan subcommands.
type PlanOptions struct {
	*RootOptions
	User string
}

// NewPlanCommand creates the plan command and its subcommands.
func NewPlanCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PlanOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Manage stored workout plans",
	}
	cmd.PersistentFlags().StringVar(&opts.User, "user", "", "owning user id (required)")
	_ = cmd.MarkPersistentFlagRequired("user")

	cmd.AddCommand(&cobra.Command{
		Use:           "delete <plan-id>",
		Short:         "Delete a plan, clearing the active pointer if it pointed at it",
		Example:       "  fitsaga plan delete --db ./fitsaga.db --user u1 <plan-id>",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlanDelete(opts, args[0], cmd)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:           "activate <plan-id>",
		Short:         "Make a stored plan the user's active plan",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlanActivate(opts, args[0], cmd)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:           "show [plan-id]",
		Short:         "Show a plan (the active plan if no id is given)",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id := ""
			if len(args) == 1 {
				id = args[0]
			}
			return runPlanShow(opts, id, cmd)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:           "list",
		Short:         "List the user's plans",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlanList(opts, cmd)
		},
	})

	return cmd
}

// PlanChange is the output of plan delete and plan activate.
type PlanChange struct {
	PlanID string `json:"planId"`
	UserID string `json:"userId"`
}

func runPlanDelete(opts *PlanOptions, planID string, cmd *cobra.Command) error {
	f := formatter(cmd, opts.RootOptions)
	a, closeFn, err := openApp(commandContext(cmd), opts.RootOptions)
	if err != nil {
		return err
	}
	defer closeFn()

	if err := a.Plans.Delete(commandContext(cmd), opts.User, planID); err != nil {
		return fail(f, err)
	}
	return f.Render(PlanChange{PlanID: planID, UserID: opts.User}, func(w io.Writer) {
		fmt.Fprintf(w, "✓ Deleted plan %s\n", planID)
	})
}

func runPlanActivate(opts *PlanOptions, planID string, cmd *cobra.Command) error {
	f := formatter(cmd, opts.RootOptions)
	a, closeFn, err := openApp(commandContext(cmd), opts.RootOptions)
	if err != nil {
		return err
	}
	defer closeFn()

	if err := a.Plans.SetActive(commandContext(cmd), opts.User, planID); err != nil {
		return fail(f, err)
	}
	return f.Render(PlanChange{PlanID: planID, UserID: opts.User}, func(w io.Writer) {
		fmt.Fprintf(w, "✓ Plan %s is now active for %s\n", planID, opts.User)
	})
}

func runPlanShow(opts *PlanOptions, planID string, cmd *cobra.Command) error {
	f := formatter(cmd, opts.RootOptions)
	a, closeFn, err := openApp(commandContext(cmd), opts.RootOptions)
	if err != nil {
		return err
	}
	defer closeFn()

	var p ingest.StoredPlan
	if planID == "" {
		p, err = a.Plans.Active(commandContext(cmd), opts.User)
	} else {
		p, err = a.Plans.Get(commandContext(cmd), opts.User, planID)
	}
	if err != nil {
		return fail(f, err)
	}

	return f.Render(p, func(w io.Writer) {
		fmt.Fprintf(w, "%s  %s (created %s)\n", p.ID, p.Name, p.CreatedAt)
		for _, day := range p.WeeklyPlan {
			focus := day.Focus
			if focus == "" {
				focus = "-"
			}
			switch {
			case len(day.Sessions) > 0:
				fmt.Fprintf(w, "  day %d  %-8s %s (%d sessions)\n", day.DayOfWeek, day.Kind, focus, len(day.Sessions))
			case len(day.Blocks) > 0:
				fmt.Fprintf(w, "  day %d  %-8s %s (%d blocks)\n", day.DayOfWeek, day.Kind, focus, len(day.Blocks))
			default:
				fmt.Fprintf(w, "  day %d  %-8s %s\n", day.DayOfWeek, day.Kind, focus)
			}
		}
	})
}

func runPlanList(opts *PlanOptions, cmd *cobra.Command) error {
	f := formatter(cmd, opts.RootOptions)
	a, closeFn, err := openApp(commandContext(cmd), opts.RootOptions)
	if err != nil {
		return err
	}
	defer closeFn()

	plans, err := a.Plans.List(commandContext(cmd), opts.User)
	if err != nil {
		return fail(f, err)
	}
	active := ""
	if u, err := a.Plans.User(commandContext(cmd), opts.User); err == nil {
		active = u.ActivePlanID
	}

	return f.Render(plans, func(w io.Writer) {
		if len(plans) == 0 {
			fmt.Fprintln(w, "No plans.")
			return
		}
		for _, p := range plans {
			marker := " "
			if p.ID == active {
				marker = "*"
			}
			fmt.Fprintf(w, "%s %s  %s\n", marker, p.ID, p.Name)
		}
	})
}
