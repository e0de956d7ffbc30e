package plan

import (
	"regexp"
	"strings"
)

// Keyword lists for InferCategory, checked in this order.
var (
	cooldownKeywords = []string{"cooldown", "cool down", "cool-down", "static stretch"}
	warmupKeywords   = []string{"warmup", "warm up", "warm-up", "stretch", "mobility", "foam roll", "activation"}
)

// InferCategory classifies an exercise by keywords in its name.
//
// Precedence: cooldown keywords, then warmup keywords, then main.
// "Static stretch" is therefore cooldown even though "stretch" alone is
// warmup.
func InferCategory(name string) Category {
	lower := strings.ToLower(name)
	for _, kw := range cooldownKeywords {
		if strings.Contains(lower, kw) {
			return CategoryCooldown
		}
	}
	for _, kw := range warmupKeywords {
		if strings.Contains(lower, kw) {
			return CategoryWarmup
		}
	}
	return CategoryMain
}

var (
	amWord = regexp.MustCompile(`\bam\b`)
	pmWord = regexp.MustCompile(`\bpm\b`)
)

// InferTimeOfDay picks morning or evening for the session at index.
//
// Precedence:
//  1. supplied is already "morning" or "evening" (any case)
//  2. supplied, then sessionName, contains "morning" or the word "am"
//     (morning) or "evening", "night" or the word "pm" (evening)
//  3. index 0 is morning, every later session is evening
func InferTimeOfDay(supplied, sessionName string, index int) TimeOfDay {
	if t := TimeOfDay(strings.ToLower(strings.TrimSpace(supplied))); t.Valid() {
		return t
	}
	for _, text := range []string{supplied, sessionName} {
		if t, ok := timeOfDayKeyword(text); ok {
			return t
		}
	}
	if index == 0 {
		return Morning
	}
	return Evening
}

func timeOfDayKeyword(text string) (TimeOfDay, bool) {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "morning"), amWord.MatchString(lower):
		return Morning, true
	case strings.Contains(lower, "evening"), strings.Contains(lower, "night"), pmWord.MatchString(lower):
		return Evening, true
	}
	return "", false
}
