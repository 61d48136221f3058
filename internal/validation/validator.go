// Package validation holds request-shape validators for the HTTP layer,
// adapted from the teacher's internal/validation/validator.go: the
// generic range/enum helpers are kept verbatim in spirit, the
// poker-specific validators (blinds, buy-ins, game actions) are replaced
// with the minesweeper domain's own (difficulty, coordinates, step
// actions).
package validation

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRange = errors.New("value out of valid range")
	ErrInvalidEnum  = errors.New("invalid enum value")
)

// ValidateIntRange validates that value falls within [min, max].
func ValidateIntRange(value, min, max int, fieldName string) error {
	if value < min || value > max {
		return fmt.Errorf("%w: %s must be between %d and %d", ErrInvalidRange, fieldName, min, max)
	}
	return nil
}

// ValidateEnum validates that value is one of allowed.
func ValidateEnum(value string, allowed []string, fieldName string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("%w: %s must be one of %v", ErrInvalidEnum, fieldName, allowed)
}

// ValidDifficulties mirrors boardspec's known difficulty keys; kept here
// rather than importing boardspec, so this package has no dependency on
// the match core and can be reused purely at the transport boundary.
var ValidDifficulties = []string{"beginner", "intermediate", "intermediate-classic", "expert", "expert-classic"}

// ValidateDifficulty validates a create_match difficulty key.
func ValidateDifficulty(difficulty string) error {
	return ValidateEnum(difficulty, ValidDifficulties, "difficulty")
}

// ValidStepActions are the send_step action kinds spec.md §3 allows.
var ValidStepActions = []string{"reveal", "flag", "chord"}

// ValidateStepAction validates a send_step action kind.
func ValidateStepAction(action string) error {
	return ValidateEnum(action, ValidStepActions, "action")
}

// ValidateCoordinate validates (x, y) lies within a width x height board
// (spec.md §4.3.4: out-of-bounds coordinates are BadRequest).
func ValidateCoordinate(width, height, x, y int) error {
	if err := ValidateIntRange(x, 0, width-1, "x"); err != nil {
		return err
	}
	return ValidateIntRange(y, 0, height-1, "y")
}

// ValidFinishOutcomes are the finish outcomes a client may self-report
// (spec.md §4.3 finish); draw/forfeit are assignable by a client the way
// win/lose are, but the server may still coerce win -> forfeit per the
// anti-cheat heuristic (spec.md §9) regardless of what was submitted.
var ValidFinishOutcomes = []string{"win", "lose", "draw", "forfeit"}

// ValidateFinishOutcome validates a finish request's self-reported outcome.
func ValidateFinishOutcome(outcome string) error {
	return ValidateEnum(outcome, ValidFinishOutcomes, "outcome")
}

// ValidateLimit clamps a client-supplied page-size-like parameter into a
// sane range, defaulting when unset.
func ValidateLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
