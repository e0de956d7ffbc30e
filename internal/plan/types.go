package plan

// DayKind tags the shape of a canonical Day.
type DayKind string

const (
	DayRest   DayKind = "rest"
	DaySingle DayKind = "single"
	DayMulti  DayKind = "multi"
)

// BlockType is the structure of a block of exercises.
type BlockType string

const (
	BlockSingle   BlockType = "single"
	BlockSuperset BlockType = "superset"
	BlockAMRAP    BlockType = "amrap"
	BlockCircuit  BlockType = "circuit"
)

// Valid reports whether t is a known block type.
func (t BlockType) Valid() bool {
	switch t {
	case BlockSingle, BlockSuperset, BlockAMRAP, BlockCircuit:
		return true
	}
	return false
}

// Category is the phase of a workout an exercise belongs to.
type Category string

const (
	CategoryWarmup   Category = "warmup"
	CategoryMain     Category = "main"
	CategoryCooldown Category = "cooldown"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryWarmup, CategoryMain, CategoryCooldown:
		return true
	}
	return false
}

// TimeOfDay places a session within a multi-session day.
type TimeOfDay string

const (
	Morning TimeOfDay = "morning"
	Evening TimeOfDay = "evening"
)

// Valid reports whether t is a known time of day.
func (t TimeOfDay) Valid() bool {
	return t == Morning || t == Evening
}

// Default block numerics.
const (
	DefaultRounds          = 3
	DefaultDurationMinutes = 10
)

// Plan is a normalized workout plan.
type Plan struct {
	Name         string        `json:"name" jsonschema:"minLength=1"`
	WeeklyPlan   []Day         `json:"weeklyPlan" jsonschema:"minItems=1"`
	DailyRoutine *DailyRoutine `json:"dailyRoutine"`
}

// Day is one entry of the weekly plan. Exactly one of Blocks or Sessions
// is set, selected by Kind; rest days carry neither.
type Day struct {
	Kind              DayKind   `json:"kind" jsonschema:"enum=rest,enum=single,enum=multi"`
	DayOfWeek         int       `json:"day_of_week" jsonschema:"minimum=1,maximum=7"`
	Focus             string    `json:"focus"`
	Notes             *string   `json:"notes"`
	EstimatedDuration *float64  `json:"estimated_duration,omitempty"`
	Blocks            []Block   `json:"blocks,omitempty"`
	Sessions          []Session `json:"sessions,omitempty"`
}

// Session is one training session of a multi-session day.
type Session struct {
	SessionName       string    `json:"session_name"`
	TimeOfDay         TimeOfDay `json:"time_of_day" jsonschema:"enum=morning,enum=evening"`
	EstimatedDuration *float64  `json:"estimated_duration,omitempty"`
	Blocks            []Block   `json:"blocks"`
}

// Block groups exercises. Rounds is set for superset and optionally
// circuit blocks; DurationMinutes for amrap and optionally circuit.
type Block struct {
	Type            BlockType  `json:"type" jsonschema:"enum=single,enum=superset,enum=amrap,enum=circuit"`
	Title           *string    `json:"title"`
	Rounds          *float64   `json:"rounds,omitempty"`
	DurationMinutes *float64   `json:"duration_minutes,omitempty"`
	Exercises       []Exercise `json:"exercises"`
}

// Exercise is one prescribed movement.
type Exercise struct {
	ExerciseName         string         `json:"exercise_name" jsonschema:"minLength=1"`
	Category             Category       `json:"category" jsonschema:"enum=warmup,enum=main,enum=cooldown"`
	MetricsTemplate      map[string]any `json:"metrics_template"`
	Notes                *string        `json:"notes"`
	OriginalExerciseName *string        `json:"original_exercise_name"`
	RPE                  *string        `json:"rpe"`
}

// DailyRoutine is a short routine meant to be done every day.
type DailyRoutine struct {
	Focus     string     `json:"focus"`
	Notes     *string    `json:"notes"`
	Exercises []Exercise `json:"exercises"`
}

// Exercises returns every exercise in the plan in document order: each
// day's blocks (or each session's blocks), then the daily routine.
func (p *Plan) Exercises() []Exercise {
	var out []Exercise
	for _, day := range p.WeeklyPlan {
		for _, b := range day.Blocks {
			out = append(out, b.Exercises...)
		}
		for _, s := range day.Sessions {
			for _, b := range s.Blocks {
				out = append(out, b.Exercises...)
			}
		}
	}
	if p.DailyRoutine != nil {
		out = append(out, p.DailyRoutine.Exercises...)
	}
	return out
}

// Document is the stored form of a plan.
type Document struct {
	UserID string `json:"userId"`
	Plan
	CreatedAt string `json:"createdAt"`
}
