package achievement

// Tier ranks an achievement.
type Tier string

const (
	Bronze   Tier = "bronze"
	Silver   Tier = "silver"
	Gold     Tier = "gold"
	Platinum Tier = "platinum"
)

// Trigger names the counter an achievement threshold is measured on.
type Trigger string

const (
	TriggerFirstWorkout Trigger = "first_workout"
	TriggerStreak       Trigger = "streak"
	TriggerWorkouts     Trigger = "workouts"
	TriggerVolume       Trigger = "volume"
)

// Achievement types.
const (
	FirstWorkout = "first_workout"
	Streak7      = "streak_7"
	Streak30     = "streak_30"
	Workouts10   = "workouts_10"
	Workouts50   = "workouts_50"
	Workouts100  = "workouts_100"
	Volume10000  = "volume_10000"
	Volume50000  = "volume_50000"
)

// Definition is a fixed (type, displayName, tier) tuple with the threshold
// that unlocks it.
type Definition struct {
	Type        string  `json:"type"`
	DisplayName string  `json:"displayName"`
	Description string  `json:"description"`
	Icon        string  `json:"icon"`
	Tier        Tier    `json:"tier"`
	Trigger     Trigger `json:"trigger"`
	Threshold   float64 `json:"threshold"`
}

var definitions = []Definition{
	{FirstWorkout, "First Step", "Complete your first workout", "🎯", Bronze, TriggerFirstWorkout, 1},
	{Streak7, "Week Warrior", "7-day workout streak", "🔥", Silver, TriggerStreak, 7},
	{Streak30, "Month Master", "30-day workout streak", "⚡", Gold, TriggerStreak, 30},
	{Workouts10, "Getting Started", "Complete 10 workouts", "💪", Bronze, TriggerWorkouts, 10},
	{Workouts50, "Committed", "Complete 50 workouts", "🏋️", Silver, TriggerWorkouts, 50},
	{Workouts100, "Century Club", "Complete 100 workouts", "🎖️", Gold, TriggerWorkouts, 100},
	{Volume10000, "Heavy Lifter", "Lift 10,000kg total volume", "🏆", Gold, TriggerVolume, 10000},
	{Volume50000, "Beast Mode", "Lift 50,000kg total", "💎", Platinum, TriggerVolume, 50000},
}

// Definitions returns every known achievement in display order.
func Definitions() []Definition {
	out := make([]Definition, len(definitions))
	copy(out, definitions)
	return out
}

// Lookup returns the definition for typ.
func Lookup(typ string) (Definition, bool) {
	for _, d := range definitions {
		if d.Type == typ {
			return d, true
		}
	}
	return Definition{}, false
}

// ForStreak returns the streak achievements reached at currentStreak.
func ForStreak(currentStreak int) []Definition {
	return reached(TriggerStreak, float64(currentStreak))
}

// ForWorkoutCount returns the workout-count achievements reached at total.
func ForWorkoutCount(total int) []Definition {
	return reached(TriggerWorkouts, float64(total))
}

// ForVolume returns the volume achievements reached at totalKg.
func ForVolume(totalKg float64) []Definition {
	return reached(TriggerVolume, totalKg)
}

func reached(trigger Trigger, value float64) []Definition {
	var out []Definition
	for _, d := range definitions {
		if d.Trigger == trigger && value >= d.Threshold {
			out = append(out, d)
		}
	}
	return out
}
