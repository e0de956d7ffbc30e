package plan

import (
	"fmt"
	"strings"
)

// ValidationError is a fatal normalization failure. Day, Session, Block
// and Exercise are zero-based indexes into the draft, or -1 when the
// error is not scoped that deep.
type ValidationError struct {
	Path     string
	Message  string
	Day      int
	Session  int
	Block    int
	Exercise int
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("invalid plan: %s", e.Message)
	}
	return fmt.Sprintf("invalid plan at %s: %s", e.Path, e.Message)
}

// Warning is a non-fatal repair made during normalization.
type Warning struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (w Warning) String() string {
	return w.Path + ": " + w.Message
}

// location tracks where the normalizer is in the draft.
type location struct {
	day, session, block, exercise int
	routine                       bool
}

func root() location {
	return location{day: -1, session: -1, block: -1, exercise: -1}
}

func (l location) inDay(i int) location {
	l.day = i
	return l
}

func (l location) inSession(i int) location {
	l.session = i
	return l
}

func (l location) inBlock(i int) location {
	l.block = i
	return l
}

func (l location) inExercise(i int) location {
	l.exercise = i
	return l
}

func (l location) inRoutine() location {
	l.routine = true
	return l
}

func (l location) String() string {
	var b strings.Builder
	if l.routine {
		b.WriteString("dailyRoutine")
	} else if l.day >= 0 {
		fmt.Fprintf(&b, "weeklyPlan[%d]", l.day)
	}
	if l.session >= 0 {
		fmt.Fprintf(&b, ".sessions[%d]", l.session)
	}
	if l.block >= 0 {
		fmt.Fprintf(&b, ".blocks[%d]", l.block)
	}
	if l.exercise >= 0 {
		if b.Len() > 0 {
			b.WriteString(".")
		}
		fmt.Fprintf(&b, "exercises[%d]", l.exercise)
	}
	return b.String()
}

func (l location) fail(format string, args ...any) *ValidationError {
	return &ValidationError{
		Path:     l.String(),
		Message:  fmt.Sprintf(format, args...),
		Day:      l.day,
		Session:  l.session,
		Block:    l.block,
		Exercise: l.exercise,
	}
}
