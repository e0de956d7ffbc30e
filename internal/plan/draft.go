package plan

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// Draft is a plan as submitted by a client, before normalization.
// Unknown fields are ignored.
type Draft struct {
	Name         Text          `json:"name"`
	WeeklyPlan   []DraftDay    `json:"weeklyPlan"`
	DailyRoutine *DraftRoutine `json:"dailyRoutine"`
}

// DraftDay may carry Blocks, Sessions or neither.
type DraftDay struct {
	DayOfWeek         Number         `json:"day_of_week"`
	Focus             Text           `json:"focus"`
	Notes             Text           `json:"notes"`
	EstimatedDuration Number         `json:"estimated_duration"`
	Blocks            []DraftBlock   `json:"blocks"`
	Sessions          []DraftSession `json:"sessions"`
}

// DraftSession is one session of a multi-session day.
type DraftSession struct {
	SessionName       Text         `json:"session_name"`
	TimeOfDay         Text         `json:"time_of_day"`
	EstimatedDuration Number       `json:"estimated_duration"`
	Blocks            []DraftBlock `json:"blocks"`
}

// DraftBlock is a block as submitted. Type is matched case-insensitively;
// Rounds and DurationMinutes are kept only where the type uses them.
type DraftBlock struct {
	Type            Text            `json:"type"`
	Title           Text            `json:"title"`
	Rounds          Number          `json:"rounds"`
	DurationMinutes Number          `json:"duration_minutes"`
	Exercises       []DraftExercise `json:"exercises"`
}

// DraftExercise is a single exercise. A missing or unknown Category is
// inferred from the name.
type DraftExercise struct {
	ExerciseName         Text           `json:"exercise_name"`
	Category             Text           `json:"category"`
	MetricsTemplate      map[string]any `json:"metrics_template"`
	Notes                Text           `json:"notes"`
	OriginalExerciseName Text           `json:"original_exercise_name"`
	RPE                  Text           `json:"rpe"`
}

// DraftRoutine is the optional routine repeated every day.
type DraftRoutine struct {
	Focus     Text            `json:"focus"`
	Notes     Text            `json:"notes"`
	Exercises []DraftExercise `json:"exercises"`
}

// Text is a string field that also accepts JSON numbers and booleans.
// Null and absent leave Set false.
type Text struct {
	Value string
	Set   bool
}

// T returns a set Text.
func T(s string) Text {
	return Text{Value: s, Set: true}
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*t = Text{}
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = T(s)
	case len(data) > 0 && (data[0] == '{' || data[0] == '['):
		return fmt.Errorf("expected text, got %s", jsonKind(data))
	default:
		// Numbers and booleans keep their literal form.
		*t = T(string(data))
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (t Text) MarshalJSON() ([]byte, error) {
	if !t.Set {
		return []byte("null"), nil
	}
	return json.Marshal(t.Value)
}

// Trimmed returns the value with surrounding whitespace removed.
func (t Text) Trimmed() string {
	return strings.TrimSpace(t.Value)
}

// Ptr returns nil for an unset Text, otherwise a pointer to its value.
func (t Text) Ptr() *string {
	if !t.Set {
		return nil
	}
	s := t.Value
	return &s
}

// Number is a numeric field that also accepts strings, read up to the end
// of their leading number ("12 min" is 12).
//
// Set reports that the field was present and not null. Valid reports that
// it parsed to a finite number.
type Number struct {
	Value float64
	Set   bool
	Valid bool
	Raw   string
}

// N returns a valid Number.
func N(v float64) Number {
	return Number{Value: v, Set: true, Valid: true, Raw: strconv.FormatFloat(v, 'f', -1, 64)}
}

// UnmarshalJSON implements json.Unmarshaler. Values that are not numbers
// decode as Set but not Valid instead of failing the whole document.
func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = Number{}
		return nil
	}
	*n = Number{Set: true, Raw: string(data)}

	text := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
		n.Raw = text
	}
	v, ok := leadingFloat(text)
	if !ok {
		return nil
	}
	n.Value = v
	n.Valid = true
	return nil
}

// leadingFloat parses the longest decimal prefix of s after leading
// whitespace, so "5 rounds" reads as 5. It reports false when s has no
// numeric prefix or the prefix is not finite.
func leadingFloat(s string) (float64, bool) {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	digits := 0
	for ; i < len(s) && isDigit(s[i]); i++ {
		digits++
	}
	if i < len(s) && s[i] == '.' {
		i++
		for ; i < len(s) && isDigit(s[i]); i++ {
			digits++
		}
	}
	if digits == 0 {
		return 0, false
	}

	end := i
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		k := j
		for k < len(s) && isDigit(s[k]) {
			k++
		}
		// An exponent marker without digits is trailing text.
		if k > j {
			end = k
		}
	}

	v, err := strconv.ParseFloat(s[:end], 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func isDigit(c byte) bool {
	return '0' <= c && c <= '9'
}

// MarshalJSON implements json.Marshaler.
func (n Number) MarshalJSON() ([]byte, error) {
	switch {
	case !n.Set:
		return []byte("null"), nil
	case n.Valid:
		return json.Marshal(n.Value)
	default:
		return json.Marshal(n.Raw)
	}
}

// Positive returns the value if it is a finite number greater than zero.
func (n Number) Positive() (float64, bool) {
	if n.Valid && n.Value > 0 {
		return n.Value, true
	}
	return 0, false
}

func jsonKind(data []byte) string {
	if len(data) > 0 && data[0] == '{' {
		return "object"
	}
	return "array"
}
