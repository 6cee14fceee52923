package engine

import (
	"encoding/json"

	"exam-session-service/internal/domain"
)

// Field is an optional overlay value. Set distinguishes "not edited" from
// an edit to the zero value.
type Field[T any] struct {
	Value T
	Set   bool
}

func Some[T any](v T) Field[T] {
	return Field[T]{Value: v, Set: true}
}

// Or returns the overlay value when set, otherwise base.
func (f Field[T]) Or(base T) T {
	if f.Set {
		return f.Value
	}
	return base
}

// Draft is the uncommitted overlay for one question. TimeSpentSeconds holds
// only the time accumulated while the draft was open.
type Draft struct {
	Answer           Field[json.RawMessage]
	IsCorrect        Field[bool]
	Confidence       Field[int]
	TimeSpentSeconds int
}

// Edited reports whether the draft changes any attempt field besides time.
func (d Draft) Edited() bool {
	return d.Answer.Set || d.IsCorrect.Set || d.Confidence.Set
}

// Resolve applies d over base: draft fields win when set, time is additive.
// Review and rationale flags are never carried by drafts.
func Resolve(base domain.Attempt, d Draft) domain.Attempt {
	out := base
	out.Answer = d.Answer.Or(base.Answer)
	out.IsCorrect = d.IsCorrect.Or(base.IsCorrect)
	out.ConfidenceLevel = d.Confidence.Or(base.ConfidenceLevel)
	out.TimeSpentSeconds = base.TimeSpentSeconds + d.TimeSpentSeconds
	return out
}
