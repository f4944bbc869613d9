package domain

import (
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"
)

// InvalidChoice builds an ErrInvalidParameter error for a value that is not
// one of choices. The closest choice by edit distance is suggested.
func InvalidChoice(param, value string, choices []string) error {
	if s := Suggest(value, choices); s != "" {
		return fmt.Errorf("%w: %s %q is not one of [%s] (did you mean %q?)",
			ErrInvalidParameter, param, value, strings.Join(choices, ", "), s)
	}
	return fmt.Errorf("%w: %s %q is not one of [%s]",
		ErrInvalidParameter, param, value, strings.Join(choices, ", "))
}

// CheckChoice returns nil if value is one of choices.
func CheckChoice(param, value string, choices []string) error {
	for _, c := range choices {
		if c == value {
			return nil
		}
	}
	return InvalidChoice(param, value, choices)
}

// Suggest returns the choice closest to value, or "" when none is within
// half the length of value.
func Suggest(value string, choices []string) string {
	best := ""
	bestDist := -1
	v := strings.ToLower(value)
	for _, c := range choices {
		d := levenshtein.ComputeDistance(v, strings.ToLower(c))
		if bestDist < 0 || d < bestDist {
			best, bestDist = c, d
		}
	}
	if bestDist < 0 || bestDist > (len(value)+1)/2 {
		return ""
	}
	return best
}
