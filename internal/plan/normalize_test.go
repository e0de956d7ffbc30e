package plan

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietNormalizer() *Normalizer {
	return NewNormalizer(WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func mustDecode(t *testing.T, raw string) *Draft {
	t.Helper()
	d, err := Decode([]byte(raw))
	require.NoError(t, err)
	return d
}

func loadFixture(t *testing.T, name string) *Draft {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", "plans", name))
	require.NoError(t, err)
	d, err := Decode(data)
	require.NoError(t, err)
	return d
}

// TestNormalize_Golden pins the canonical output of a plan exercising
// every day shape and every repair path.
func TestNormalize_Golden(t *testing.T) {
	p, warns, err := quietNormalizer().Normalize(loadFixture(t, "hybrid_week.json"))
	require.NoError(t, err)

	data, err := json.MarshalIndent(p, "", "  ")
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "hybrid_week", append(data, '\n'))

	assert.Equal(t, []Warning{
		{Path: "weeklyPlan", Message: "has 3 days, expected 7"},
		{Path: "weeklyPlan[0].blocks[1].exercises[0]", Message: `invalid category "conditioning", using main`},
		{Path: "weeklyPlan[0].blocks[1]", Message: "amrap duration_minutes missing, using 10"},
		{Path: "weeklyPlan[1].sessions[0]", Message: `invalid time_of_day "dawn", using morning`},
		{Path: "weeklyPlan[1].sessions[1].blocks[0]", Message: `unknown block type "pyramid", using single`},
	}, warns)
}

func TestNormalize_Idempotent(t *testing.T) {
	n := quietNormalizer()
	first, _, err := n.Normalize(loadFixture(t, "hybrid_week.json"))
	require.NoError(t, err)

	data, err := json.Marshal(first)
	require.NoError(t, err)
	second, warns, err := n.Normalize(mustDecode(t, string(data)))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	// Only the week-length warning survives a second pass.
	assert.Equal(t, []Warning{{Path: "weeklyPlan", Message: "has 3 days, expected 7"}}, warns)
}

func TestNormalize_DayShapes(t *testing.T) {
	d := mustDecode(t, `{
		"name": "Shapes",
		"weeklyPlan": [
			{"day_of_week": 1, "blocks": [{"type": "single", "exercises": [{"exercise_name": "Row"}]}]},
			{"day_of_week": 2, "sessions": [{"blocks": [{"type": "single", "exercises": [{"exercise_name": "Run"}]}]}]},
			{"day_of_week": 3},
			{"day_of_week": 4, "blocks": [], "sessions": []}
		]
	}`)

	p, _, err := quietNormalizer().Normalize(d)
	require.NoError(t, err)
	require.Len(t, p.WeeklyPlan, 4)

	assert.Equal(t, DaySingle, p.WeeklyPlan[0].Kind)
	assert.Len(t, p.WeeklyPlan[0].Blocks, 1)
	assert.Nil(t, p.WeeklyPlan[0].Sessions)

	assert.Equal(t, DayMulti, p.WeeklyPlan[1].Kind)
	assert.Len(t, p.WeeklyPlan[1].Sessions, 1)
	assert.Nil(t, p.WeeklyPlan[1].Blocks)

	assert.Equal(t, DayRest, p.WeeklyPlan[2].Kind)
	assert.Equal(t, DayRest, p.WeeklyPlan[3].Kind)
}

func TestNormalize_FatalErrors(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantPath string
		wantDay  int
		wantBlk  int
		wantEx   int
	}{
		{
			name:     "missing plan name",
			input:    `{"weeklyPlan": [{"day_of_week": 1}]}`,
			wantPath: "name",
			wantDay:  -1, wantBlk: -1, wantEx: -1,
		},
		{
			name:     "blank plan name",
			input:    `{"name": "   ", "weeklyPlan": [{"day_of_week": 1}]}`,
			wantPath: "name",
			wantDay:  -1, wantBlk: -1, wantEx: -1,
		},
		{
			name:     "no days",
			input:    `{"name": "x", "weeklyPlan": []}`,
			wantPath: "weeklyPlan",
			wantDay:  -1, wantBlk: -1, wantEx: -1,
		},
		{
			name: "both blocks and sessions",
			input: `{"name": "x", "weeklyPlan": [
				{"day_of_week": 1},
				{"day_of_week": 2,
				 "blocks": [{"type": "single", "exercises": [{"exercise_name": "a"}]}],
				 "sessions": [{"blocks": []}]}
			]}`,
			wantPath: "weeklyPlan[1]",
			wantDay:  1, wantBlk: -1, wantEx: -1,
		},
		{
			name: "missing exercise name in block",
			input: `{"name": "x", "weeklyPlan": [
				{"day_of_week": 1, "blocks": [
					{"type": "single", "exercises": [{"exercise_name": "a"}]},
					{"type": "single", "exercises": [{"exercise_name": "b"}, {"category": "main"}]}
				]}
			]}`,
			wantPath: "weeklyPlan[0].blocks[1].exercises[1]",
			wantDay:  0, wantBlk: 1, wantEx: 1,
		},
		{
			name: "blank exercise name in session",
			input: `{"name": "x", "weeklyPlan": [
				{"day_of_week": 1, "sessions": [
					{"blocks": [{"type": "single", "exercises": [{"exercise_name": "  "}]}]}
				]}
			]}`,
			wantPath: "weeklyPlan[0].sessions[0].blocks[0].exercises[0]",
			wantDay:  0, wantBlk: 0, wantEx: 0,
		},
		{
			name: "missing exercise name in daily routine",
			input: `{"name": "x", "weeklyPlan": [{"day_of_week": 1}],
				"dailyRoutine": {"focus": "m", "exercises": [{"exercise_name": null}]}}`,
			wantPath: "dailyRoutine.exercises[0]",
			wantDay:  -1, wantBlk: -1, wantEx: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, warns, err := quietNormalizer().Normalize(mustDecode(t, tt.input))
			require.Error(t, err)
			assert.Nil(t, p)
			assert.Nil(t, warns)

			var ve *ValidationError
			require.True(t, errors.As(err, &ve), "want *ValidationError, got %T", err)
			assert.Equal(t, tt.wantPath, ve.Path)
			assert.Equal(t, tt.wantDay, ve.Day)
			assert.Equal(t, tt.wantBlk, ve.Block)
			assert.Equal(t, tt.wantEx, ve.Exercise)
		})
	}
}

func TestNormalize_NilDraft(t *testing.T) {
	_, _, err := quietNormalizer().Normalize(nil)
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestNormalize_BlockNumerics(t *testing.T) {
	f := func(v float64) *float64 { return &v }

	tests := []struct {
		name         string
		block        string
		wantType     BlockType
		wantRounds   *float64
		wantDuration *float64
		wantWarnings int
	}{
		{"superset numeric rounds", `{"type": "superset", "rounds": 5}`, BlockSuperset, f(5), nil, 0},
		{"superset string rounds", `{"type": "superset", "rounds": " 2.5 "}`, BlockSuperset, f(2.5), nil, 0},
		{"superset missing rounds", `{"type": "superset"}`, BlockSuperset, f(3), nil, 1},
		{"superset zero rounds", `{"type": "superset", "rounds": 0}`, BlockSuperset, f(3), nil, 1},
		{"superset negative rounds", `{"type": "superset", "rounds": -2}`, BlockSuperset, f(3), nil, 1},
		{"superset rounds with unit", `{"type": "superset", "rounds": "5 rounds"}`, BlockSuperset, f(5), nil, 0},
		{"superset garbage rounds", `{"type": "superset", "rounds": "lots"}`, BlockSuperset, f(3), nil, 1},
		{"superset trailing number ignored", `{"type": "superset", "rounds": "x5"}`, BlockSuperset, f(3), nil, 1},
		{"superset infinite rounds", `{"type": "superset", "rounds": "Inf"}`, BlockSuperset, f(3), nil, 1},
		{"superset drops duration", `{"type": "superset", "rounds": 4, "duration_minutes": 12}`, BlockSuperset, f(4), nil, 0},
		{"amrap numeric duration", `{"type": "amrap", "duration_minutes": 15}`, BlockAMRAP, nil, f(15), 0},
		{"amrap string duration", `{"type": "AMRAP", "duration_minutes": "8"}`, BlockAMRAP, nil, f(8), 0},
		{"amrap duration with unit", `{"type": "amrap", "duration_minutes": "12 min"}`, BlockAMRAP, nil, f(12), 0},
		{"amrap missing duration", `{"type": "amrap", "rounds": 3}`, BlockAMRAP, nil, f(10), 1},
		{"circuit rounds only", `{"type": "circuit", "rounds": 4}`, BlockCircuit, f(4), nil, 0},
		{"circuit duration only", `{"type": "circuit", "duration_minutes": "20"}`, BlockCircuit, nil, f(20), 0},
		{"circuit both", `{"type": "circuit", "rounds": 2, "duration_minutes": 20}`, BlockCircuit, f(2), f(20), 0},
		{"circuit neither", `{"type": "circuit"}`, BlockCircuit, f(3), nil, 1},
		{"circuit invalid rounds valid duration", `{"type": "circuit", "rounds": "x", "duration_minutes": 9}`, BlockCircuit, nil, f(9), 1},
		{"single drops numerics", `{"type": "single", "rounds": 4, "duration_minutes": 9}`, BlockSingle, nil, nil, 0},
		{"unknown type", `{"type": "emom", "rounds": 4}`, BlockSingle, nil, nil, 1},
		{"missing type", `{}`, BlockSingle, nil, nil, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var db DraftBlock
			require.NoError(t, json.Unmarshal([]byte(tt.block), &db))
			db.Exercises = []DraftExercise{{ExerciseName: T("Push Up")}}

			w := &warnings{}
			b, err := quietNormalizer().block(&db, root().inDay(0).inBlock(0), w)
			require.NoError(t, err)

			assert.Equal(t, tt.wantType, b.Type)
			assert.Equal(t, tt.wantRounds, b.Rounds)
			assert.Equal(t, tt.wantDuration, b.DurationMinutes)
			assert.Len(t, w.list, tt.wantWarnings, "warnings: %v", w.list)
		})
	}
}

func TestNormalize_DayOfWeek(t *testing.T) {
	d := mustDecode(t, `{
		"name": "Days",
		"weeklyPlan": [
			{"day_of_week": "3"},
			{"day_of_week": 9},
			{"day_of_week": 2.5},
			{},
			{"day_of_week": "monday"},
			{"day_of_week": 7},
			{"day_of_week": 1},
			{"day_of_week": 0}
		]
	}`)

	p, warns, err := quietNormalizer().Normalize(d)
	require.NoError(t, err)

	var got []int
	for _, day := range p.WeeklyPlan {
		got = append(got, day.DayOfWeek)
	}
	assert.Equal(t, []int{3, 2, 3, 4, 5, 7, 1, 1}, got)
	// 8 days plus five repaired day_of_week values.
	assert.Len(t, warns, 6)
}

func TestNormalize_CategoryHandling(t *testing.T) {
	d := mustDecode(t, `{
		"name": "Cats",
		"weeklyPlan": [{"day_of_week": 1, "blocks": [{"type": "single", "exercises": [
			{"exercise_name": "Squat", "category": "COOLDOWN"},
			{"exercise_name": "Foam Roll Quads"},
			{"exercise_name": "Cool-down Walk", "category": "stretching"},
			{"exercise_name": "Deadlift", "category": ""}
		]}]}]
	}`)

	p, warns, err := quietNormalizer().Normalize(d)
	require.NoError(t, err)

	ex := p.WeeklyPlan[0].Blocks[0].Exercises
	assert.Equal(t, CategoryCooldown, ex[0].Category)
	assert.Equal(t, CategoryWarmup, ex[1].Category)
	assert.Equal(t, CategoryCooldown, ex[2].Category)
	assert.Equal(t, CategoryMain, ex[3].Category)

	// Only the explicit invalid value is reported; the short week is the other.
	require.Len(t, warns, 2)
	assert.Equal(t, "weeklyPlan[0].blocks[0].exercises[2]", warns[1].Path)
}

func TestNormalize_ExerciseOptionalFields(t *testing.T) {
	d := mustDecode(t, `{
		"name": "Fields",
		"weeklyPlan": [{"day_of_week": 1, "blocks": [{"type": "single", "title": "Main", "exercises": [
			{"exercise_name": " Pull Up ", "rpe": 9, "notes": "", "original_exercise_name": "Chin Up"}
		]}]}]
	}`)

	p, _, err := quietNormalizer().Normalize(d)
	require.NoError(t, err)

	b := p.WeeklyPlan[0].Blocks[0]
	require.NotNil(t, b.Title)
	assert.Equal(t, "Main", *b.Title)

	ex := b.Exercises[0]
	assert.Equal(t, "Pull Up", ex.ExerciseName)
	require.NotNil(t, ex.RPE)
	assert.Equal(t, "9", *ex.RPE)
	require.NotNil(t, ex.Notes)
	assert.Equal(t, "", *ex.Notes)
	require.NotNil(t, ex.OriginalExerciseName)
	assert.Equal(t, "Chin Up", *ex.OriginalExerciseName)
	assert.Equal(t, map[string]any{}, ex.MetricsTemplate)
}

func TestNormalize_SessionTimeOfDay(t *testing.T) {
	d := mustDecode(t, `{
		"name": "Sessions",
		"weeklyPlan": [{"day_of_week": 1, "sessions": [
			{"session_name": "Lift", "time_of_day": "Evening", "blocks": [{"type": "single", "exercises": [{"exercise_name": "a"}]}]},
			{"session_name": "Night Swim", "blocks": [{"type": "single", "exercises": [{"exercise_name": "b"}]}]},
			{"session_name": "Extra", "time_of_day": "lunch", "blocks": []}
		]}]
	}`)

	p, warns, err := quietNormalizer().Normalize(d)
	require.NoError(t, err)

	s := p.WeeklyPlan[0].Sessions
	assert.Equal(t, Evening, s[0].TimeOfDay)
	assert.Equal(t, Evening, s[1].TimeOfDay)
	assert.Equal(t, Evening, s[2].TimeOfDay)
	assert.NotNil(t, s[2].Blocks)
	assert.Empty(t, s[2].Blocks)

	var paths []string
	for _, w := range warns {
		paths = append(paths, w.Path)
	}
	assert.Contains(t, paths, "weeklyPlan[0].sessions[2]")
}

func TestPlan_Exercises(t *testing.T) {
	p, _, err := quietNormalizer().Normalize(loadFixture(t, "hybrid_week.json"))
	require.NoError(t, err)

	var names []string
	for _, ex := range p.Exercises() {
		names = append(names, ex.ExerciseName)
	}
	assert.Equal(t, []string{
		"Back Squat", "Hip Mobility Flow", "Burpees",
		"Easy Run", "Static Stretch Hamstrings",
		"Cat Cow",
	}, names)
}

func TestValidationError_Message(t *testing.T) {
	err := root().inDay(2).inBlock(0).inExercise(4).fail("exercise_name is required")
	assert.Equal(t, "invalid plan at weeklyPlan[2].blocks[0].exercises[4]: exercise_name is required", err.Error())

	bare := &ValidationError{Message: "plan is empty"}
	assert.Equal(t, "invalid plan: plan is empty", bare.Error())
}
