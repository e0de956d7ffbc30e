package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/fitsaga/internal/streak"
)

// CompleteOptions holds flags for the complete command.
type CompleteOptions struct {
	*RootOptions
	User   string
	Date   string
	Volume float64
}

// NewCompleteCommand creates the complete command.
func NewCompleteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompleteOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "complete",
		Short: "Record a finished workout",
		Long: `Record a finished workout: advance the user's streak and unlock any
achievements it earns. The streak update and the unlocks succeed or fail
together.

--date is a calendar day (YYYY-MM-DD) in the --tz zone; it defaults to today.
--volume is the user's cumulative lifted volume in kg, checked against the
volume achievements.

Example:
  fitsaga complete --db ./fitsaga.db --user u1
  fitsaga complete --db ./fitsaga.db --user u1 --date 2025-03-04 --volume 12500`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runComplete(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.User, "user", "", "user id (required)")
	cmd.Flags().StringVar(&opts.Date, "date", "", "workout day as YYYY-MM-DD (default today)")
	cmd.Flags().Float64Var(&opts.Volume, "volume", 0, "cumulative lifted volume in kg")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func runComplete(opts *CompleteOptions, cmd *cobra.Command) error {
	f := formatter(cmd, opts.RootOptions)

	c := streak.Completion{UserID: opts.User}
	if opts.Date != "" {
		loc, err := time.LoadLocation(opts.Timezone)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --tz", err)
		}
		day, err := time.ParseInLocation(time.DateOnly, opts.Date, loc)
		if err != nil {
			return f.Fail(ExitCommandError, CodeInvalidArgs, fmt.Errorf("--date: %w", err), nil)
		}
		c.Date = day.Add(12 * time.Hour)
	}
	if cmd.Flags().Changed("volume") {
		v := opts.Volume
		c.TotalVolumeKg = &v
	}

	a, closeFn, err := openApp(commandContext(cmd), opts.RootOptions)
	if err != nil {
		return err
	}
	defer closeFn()

	out, err := a.Streaks.Complete(commandContext(cmd), c)
	if err != nil {
		return fail(f, err)
	}

	return f.Render(out, func(w io.Writer) {
		fmt.Fprintf(w, "✓ Streak %d (longest %d, %d workouts)\n",
			out.CurrentStreak, out.LongestStreak, out.TotalWorkouts)
		printUnlocked(w, out.AchievementsUnlocked)
	})
}

// VolumeOptions holds flags for the volume command.
type VolumeOptions struct {
	*RootOptions
	User  string
	Total float64
}

// VolumeResult is the output of the volume command.
type VolumeResult struct {
	AchievementsUnlocked []string `json:"achievementsUnlocked"`
}

// NewVolumeCommand creates the volume command.
func NewVolumeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VolumeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "volume",
		Short: "Unlock volume achievements for a lifted total",
		Long: `Unlock every volume achievement whose threshold the user's cumulative
lifted volume has reached, without recording a workout.

Example:
  fitsaga volume --db ./fitsaga.db --user u1 --total 52000`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVolume(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.User, "user", "", "user id (required)")
	cmd.Flags().Float64Var(&opts.Total, "total", 0, "cumulative lifted volume in kg (required)")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("total")

	return cmd
}

func runVolume(opts *VolumeOptions, cmd *cobra.Command) error {
	f := formatter(cmd, opts.RootOptions)

	a, closeFn, err := openApp(commandContext(cmd), opts.RootOptions)
	if err != nil {
		return err
	}
	defer closeFn()

	unlocked, err := a.Streaks.CheckVolume(commandContext(cmd), opts.User, opts.Total)
	if err != nil {
		return fail(f, err)
	}

	return f.Render(VolumeResult{AchievementsUnlocked: unlocked}, func(w io.Writer) {
		if len(unlocked) == 0 {
			fmt.Fprintln(w, "No new achievements.")
			return
		}
		printUnlocked(w, unlocked)
	})
}

func printUnlocked(w io.Writer, types []string) {
	if len(types) == 0 {
		return
	}
	fmt.Fprintf(w, "  Unlocked: %s\n", strings.Join(types, ", "))
}
