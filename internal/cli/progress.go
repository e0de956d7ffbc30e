package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// UserOptions holds flags for commands that read one user's records.
type UserOptions struct {
	*RootOptions
	User string
}

// NewStreakCommand creates the streak command.
func NewStreakCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &UserOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "streak",
		Short: "Show a user's workout streak",
		Long: `Show a user's workout streak as of now. A streak whose last workout day
started more than 48 hours ago is reported as inactive with a current
streak of 0.

Example:
  fitsaga streak --db ./fitsaga.db --user u1 --tz Europe/Berlin`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStreak(opts, cmd)
		},
	}
	cmd.Flags().StringVar(&opts.User, "user", "", "user id (required)")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func runStreak(opts *UserOptions, cmd *cobra.Command) error {
	f := formatter(cmd, opts.RootOptions)
	a, closeFn, err := openApp(commandContext(cmd), opts.RootOptions)
	if err != nil {
		return err
	}
	defer closeFn()

	st, err := a.Streaks.Status(commandContext(cmd), opts.User)
	if err != nil {
		return fail(f, err)
	}

	return f.Render(st, func(w io.Writer) {
		if st.LastWorkoutDate == "" {
			fmt.Fprintf(w, "No workouts recorded for %s.\n", opts.User)
			return
		}
		state := "active"
		if !st.IsActive {
			state = "inactive"
		}
		fmt.Fprintf(w, "Current streak: %d (%s)\n", st.CurrentStreak, state)
		fmt.Fprintf(w, "Longest streak: %d\n", st.LongestStreak)
		fmt.Fprintf(w, "Total workouts: %d\n", st.TotalWorkouts)
		fmt.Fprintf(w, "Last workout:   %s\n", st.LastWorkoutDate)
	})
}

// NewAchievementsCommand creates the achievements command.
func NewAchievementsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &UserOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "achievements",
		Short:         "List a user's unlocked achievements",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAchievements(opts, cmd)
		},
	}
	cmd.Flags().StringVar(&opts.User, "user", "", "user id (required)")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func runAchievements(opts *UserOptions, cmd *cobra.Command) error {
	f := formatter(cmd, opts.RootOptions)
	a, closeFn, err := openApp(commandContext(cmd), opts.RootOptions)
	if err != nil {
		return err
	}
	defer closeFn()

	recs, err := a.Achievements.List(commandContext(cmd), opts.User)
	if err != nil {
		return fail(f, err)
	}

	return f.Render(recs, func(w io.Writer) {
		if len(recs) == 0 {
			fmt.Fprintf(w, "No achievements for %s.\n", opts.User)
			return
		}
		for _, r := range recs {
			fmt.Fprintf(w, "%s %-16s %-8s %s (%s)\n", r.Icon, r.Type, r.Tier, r.DisplayName, r.UnlockedAt)
		}
	})
}
