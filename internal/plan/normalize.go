package plan

import (
	"fmt"
	"log/slog"
	"math"
	"strings"
)

// Normalizer turns drafts into canonical plans.
type Normalizer struct {
	logger *slog.Logger
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithLogger sets the logger that receives one WARN record per repair.
func WithLogger(l *slog.Logger) Option {
	return func(n *Normalizer) {
		if l != nil {
			n.logger = l
		}
	}
}

// NewNormalizer creates a Normalizer.
func NewNormalizer(opts ...Option) *Normalizer {
	n := &Normalizer{logger: slog.Default()}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize validates d and returns its canonical form with the list of
// repairs made along the way. A fatal problem returns a *ValidationError
// and no plan.
func Normalize(d *Draft) (*Plan, []Warning, error) {
	return NewNormalizer().Normalize(d)
}

// Normalize validates d and returns its canonical form. See the package
// documentation for the rules.
func (n *Normalizer) Normalize(d *Draft) (*Plan, []Warning, error) {
	if d == nil {
		return nil, nil, root().fail("plan is empty")
	}
	w := &warnings{}

	name := d.Name.Trimmed()
	if name == "" {
		return nil, nil, &ValidationError{Path: "name", Message: "plan name is required", Day: -1, Session: -1, Block: -1, Exercise: -1}
	}
	if len(d.WeeklyPlan) == 0 {
		return nil, nil, &ValidationError{Path: "weeklyPlan", Message: "at least one day is required", Day: -1, Session: -1, Block: -1, Exercise: -1}
	}
	if len(d.WeeklyPlan) != 7 {
		w.add("weeklyPlan", "has %d days, expected 7", len(d.WeeklyPlan))
	}

	p := &Plan{Name: name, WeeklyPlan: make([]Day, 0, len(d.WeeklyPlan))}
	for i := range d.WeeklyPlan {
		day, err := n.day(&d.WeeklyPlan[i], root().inDay(i), w)
		if err != nil {
			return nil, nil, err
		}
		p.WeeklyPlan = append(p.WeeklyPlan, day)
	}

	if d.DailyRoutine != nil {
		routine, err := n.routine(d.DailyRoutine, w)
		if err != nil {
			return nil, nil, err
		}
		p.DailyRoutine = routine
	}

	for _, warn := range w.list {
		n.logger.Warn("plan repaired", "plan", name, "path", warn.Path, "warning", warn.Message)
	}
	n.logger.Debug("plan normalized",
		"plan", name,
		"days", len(p.WeeklyPlan),
		"warnings", len(w.list),
	)
	return p, w.list, nil
}

func (n *Normalizer) day(dd *DraftDay, loc location, w *warnings) (Day, error) {
	if len(dd.Blocks) > 0 && len(dd.Sessions) > 0 {
		return Day{}, loc.fail("day has both blocks and sessions")
	}

	day := Day{
		DayOfWeek:         dayOfWeek(dd.DayOfWeek, loc, w),
		Focus:             dd.Focus.Trimmed(),
		Notes:             dd.Notes.Ptr(),
		EstimatedDuration: positive(dd.EstimatedDuration),
	}

	switch {
	case len(dd.Blocks) > 0:
		day.Kind = DaySingle
		blocks, err := n.blocks(dd.Blocks, loc, w)
		if err != nil {
			return Day{}, err
		}
		day.Blocks = blocks
	case len(dd.Sessions) > 0:
		day.Kind = DayMulti
		day.Sessions = make([]Session, 0, len(dd.Sessions))
		for j := range dd.Sessions {
			s, err := n.session(&dd.Sessions[j], j, loc.inSession(j), w)
			if err != nil {
				return Day{}, err
			}
			day.Sessions = append(day.Sessions, s)
		}
	default:
		day.Kind = DayRest
	}
	return day, nil
}

// dayOfWeek accepts integers 1 through 7. Anything else falls back to the
// day's position in the week.
func dayOfWeek(num Number, loc location, w *warnings) int {
	if num.Valid && num.Value == math.Trunc(num.Value) && num.Value >= 1 && num.Value <= 7 {
		return int(num.Value)
	}
	fallback := loc.day%7 + 1
	if num.Set {
		w.add(loc.String(), "invalid day_of_week %q, using %d", num.Raw, fallback)
	} else {
		w.add(loc.String(), "missing day_of_week, using %d", fallback)
	}
	return fallback
}

func (n *Normalizer) session(ds *DraftSession, index int, loc location, w *warnings) (Session, error) {
	supplied := ds.TimeOfDay.Value
	tod := InferTimeOfDay(supplied, ds.SessionName.Value, index)
	if ds.TimeOfDay.Set && !TimeOfDay(strings.ToLower(strings.TrimSpace(supplied))).Valid() {
		w.add(loc.String(), "invalid time_of_day %q, using %s", supplied, tod)
	}

	blocks, err := n.blocks(ds.Blocks, loc, w)
	if err != nil {
		return Session{}, err
	}
	if len(blocks) == 0 {
		w.add(loc.String(), "session has no blocks")
	}
	return Session{
		SessionName:       ds.SessionName.Trimmed(),
		TimeOfDay:         tod,
		EstimatedDuration: positive(ds.EstimatedDuration),
		Blocks:            blocks,
	}, nil
}

func (n *Normalizer) blocks(in []DraftBlock, loc location, w *warnings) ([]Block, error) {
	out := make([]Block, 0, len(in))
	for k := range in {
		b, err := n.block(&in[k], loc.inBlock(k), w)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func (n *Normalizer) block(db *DraftBlock, loc location, w *warnings) (Block, error) {
	typ := BlockType(strings.ToLower(db.Type.Trimmed()))
	if !typ.Valid() {
		if db.Type.Set {
			w.add(loc.String(), "unknown block type %q, using single", db.Type.Value)
		} else {
			w.add(loc.String(), "missing block type, using single")
		}
		typ = BlockSingle
	}

	exercises, err := n.exercises(db.Exercises, loc, w)
	if err != nil {
		return Block{}, err
	}
	if len(exercises) == 0 {
		w.add(loc.String(), "block has no exercises")
	}

	b := Block{Type: typ, Title: db.Title.Ptr(), Exercises: exercises}
	rounds, roundsOK := db.Rounds.Positive()
	duration, durationOK := db.DurationMinutes.Positive()

	switch typ {
	case BlockSuperset:
		if !roundsOK {
			rounds = DefaultRounds
			w.add(loc.String(), "superset rounds %s, using %d", describe(db.Rounds), DefaultRounds)
		}
		b.Rounds = &rounds
	case BlockAMRAP:
		if !durationOK {
			duration = DefaultDurationMinutes
			w.add(loc.String(), "amrap duration_minutes %s, using %d", describe(db.DurationMinutes), DefaultDurationMinutes)
		}
		b.DurationMinutes = &duration
	case BlockCircuit:
		if roundsOK {
			b.Rounds = &rounds
		} else if db.Rounds.Set {
			w.add(loc.String(), "ignoring invalid circuit rounds %q", db.Rounds.Raw)
		}
		if durationOK {
			b.DurationMinutes = &duration
		} else if db.DurationMinutes.Set {
			w.add(loc.String(), "ignoring invalid circuit duration_minutes %q", db.DurationMinutes.Raw)
		}
		if !roundsOK && !durationOK {
			rounds = DefaultRounds
			b.Rounds = &rounds
			w.add(loc.String(), "circuit has neither rounds nor duration, using %d rounds", DefaultRounds)
		}
	}
	return b, nil
}

func (n *Normalizer) exercises(in []DraftExercise, loc location, w *warnings) ([]Exercise, error) {
	out := make([]Exercise, 0, len(in))
	for m := range in {
		ex, err := exercise(&in[m], loc.inExercise(m), w)
		if err != nil {
			return nil, err
		}
		out = append(out, ex)
	}
	return out, nil
}

func exercise(de *DraftExercise, loc location, w *warnings) (Exercise, error) {
	name := de.ExerciseName.Trimmed()
	if name == "" {
		return Exercise{}, loc.fail("exercise_name is required")
	}

	cat := Category(strings.ToLower(de.Category.Trimmed()))
	if !cat.Valid() {
		inferred := InferCategory(name)
		if de.Category.Set && de.Category.Trimmed() != "" {
			w.add(loc.String(), "invalid category %q, using %s", de.Category.Value, inferred)
		}
		cat = inferred
	}

	metrics := de.MetricsTemplate
	if metrics == nil {
		metrics = map[string]any{}
	}
	return Exercise{
		ExerciseName:         name,
		Category:             cat,
		MetricsTemplate:      metrics,
		Notes:                de.Notes.Ptr(),
		OriginalExerciseName: de.OriginalExerciseName.Ptr(),
		RPE:                  de.RPE.Ptr(),
	}, nil
}

func (n *Normalizer) routine(dr *DraftRoutine, w *warnings) (*DailyRoutine, error) {
	exercises, err := n.exercises(dr.Exercises, root().inRoutine(), w)
	if err != nil {
		return nil, err
	}
	return &DailyRoutine{
		Focus:     dr.Focus.Trimmed(),
		Notes:     dr.Notes.Ptr(),
		Exercises: exercises,
	}, nil
}

func positive(num Number) *float64 {
	if v, ok := num.Positive(); ok {
		return &v
	}
	return nil
}

func describe(num Number) string {
	if !num.Set {
		return "missing"
	}
	return fmt.Sprintf("%q invalid", num.Raw)
}

type warnings struct {
	list []Warning
}

func (w *warnings) add(path, format string, args ...any) {
	w.list = append(w.list, Warning{Path: path, Message: fmt.Sprintf(format, args...)})
}
