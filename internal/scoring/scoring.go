// Package scoring derives scores and time analysis from committed attempts.
// Everything here is a pure function of its inputs.
package scoring

import (
	"math"

	"exam-session-service/internal/domain"
)

// Outcome is the classification of one question.
type Outcome string

const (
	OutcomeCorrect     Outcome = "correct"
	OutcomeIncorrect   Outcome = "incorrect"
	OutcomeUnattempted Outcome = "unattempted"
)

// Scheme holds the marking rules. PenaltyByType overrides IncorrectMarks for
// specific question types.
type Scheme struct {
	CorrectMarks   int
	IncorrectMarks int
	PenaltyByType  map[string]int
}

// DefaultScheme awards +3 per correct answer and -1 per incorrect answer,
// except odd-one-out and para-jumble questions which carry no penalty.
func DefaultScheme() Scheme {
	return Scheme{
		CorrectMarks:   3,
		IncorrectMarks: -1,
		PenaltyByType: map[string]int{
			domain.TypeOddOneOut:  0,
			domain.TypeParaJumble: 0,
		},
	}
}

// Penalty returns the marks for an incorrect answer on a question of type t.
func (s Scheme) Penalty(t string) int {
	if p, ok := s.PenaltyByType[t]; ok {
		return p
	}
	return s.IncorrectMarks
}

// Marks returns the marks contributed by one outcome.
func (s Scheme) Marks(o Outcome, questionType string) int {
	switch o {
	case OutcomeCorrect:
		return s.CorrectMarks
	case OutcomeIncorrect:
		return s.Penalty(questionType)
	default:
		return 0
	}
}

// TypeLookup resolves a question id to its type. Unknown ids may return "".
type TypeLookup func(questionID string) string

// Classify places an attempt into exactly one outcome.
func Classify(a domain.Attempt) Outcome {
	switch {
	case !a.Answered():
		return OutcomeUnattempted
	case a.IsCorrect:
		return OutcomeCorrect
	default:
		return OutcomeIncorrect
	}
}

// QuestionOutcome is one row of the per-question analysis.
type QuestionOutcome struct {
	QuestionID       string  `json:"questionId"`
	Type             string  `json:"type,omitempty"`
	Outcome          Outcome `json:"outcome"`
	Marks            int     `json:"marks"`
	TimeSpentSeconds int     `json:"timeSpentSeconds"`
	ConfidenceLevel  int     `json:"confidenceLevel"`
	MarkedForReview  bool    `json:"markedForReview"`
}

// TimeDistribution splits time spent by outcome.
type TimeDistribution struct {
	CorrectSeconds        int `json:"correctSeconds"`
	IncorrectSeconds      int `json:"incorrectSeconds"`
	UnattemptedSeconds    int `json:"unattemptedSeconds"`
	TotalSeconds          int `json:"totalSeconds"`
	CorrectPercentage     int `json:"correctPercentage"`
	IncorrectPercentage   int `json:"incorrectPercentage"`
	UnattemptedPercentage int `json:"unattemptedPercentage"`
}

// Analysis is the derived score and time breakdown of a session.
type Analysis struct {
	TotalQuestions       int               `json:"totalQuestions"`
	CorrectCount         int               `json:"correctCount"`
	IncorrectCount       int               `json:"incorrectCount"`
	UnattemptedCount     int               `json:"unattemptedCount"`
	MarkedForReviewCount int               `json:"markedForReviewCount"`
	CorrectMarks         int               `json:"correctMarks"`
	IncorrectMarks       int               `json:"incorrectMarks"`
	TotalMarks           int               `json:"totalMarks"`
	ScoredMarks          int               `json:"scoredMarks"`
	Percentage           int               `json:"percentage"`
	Time                 TimeDistribution  `json:"time"`
	Questions            []QuestionOutcome `json:"questions"`
}

// Derive scores the attempts over order. Questions without an attempt count as
// unattempted with no time.
func Derive(attempts map[string]domain.Attempt, order []string, types TypeLookup, scheme Scheme) Analysis {
	out := Analysis{
		TotalQuestions: len(order),
		Questions:      make([]QuestionOutcome, 0, len(order)),
	}
	for _, id := range order {
		a := attempts[id]
		qType := ""
		if types != nil {
			qType = types(id)
		}
		outcome := Classify(a)
		marks := scheme.Marks(outcome, qType)

		switch outcome {
		case OutcomeCorrect:
			out.CorrectCount++
			out.CorrectMarks += marks
			out.Time.CorrectSeconds += a.TimeSpentSeconds
		case OutcomeIncorrect:
			out.IncorrectCount++
			out.IncorrectMarks += marks
			out.Time.IncorrectSeconds += a.TimeSpentSeconds
		default:
			out.UnattemptedCount++
			out.Time.UnattemptedSeconds += a.TimeSpentSeconds
		}
		if a.MarkedForReview {
			out.MarkedForReviewCount++
		}
		out.Questions = append(out.Questions, QuestionOutcome{
			QuestionID:       id,
			Type:             qType,
			Outcome:          outcome,
			Marks:            marks,
			TimeSpentSeconds: a.TimeSpentSeconds,
			ConfidenceLevel:  a.ConfidenceLevel,
			MarkedForReview:  a.MarkedForReview,
		})
	}

	out.TotalMarks = out.TotalQuestions * scheme.CorrectMarks
	out.ScoredMarks = out.CorrectMarks + out.IncorrectMarks
	out.Percentage = percent(out.ScoredMarks, out.TotalMarks)

	t := &out.Time
	t.TotalSeconds = t.CorrectSeconds + t.IncorrectSeconds + t.UnattemptedSeconds
	t.CorrectPercentage = percent(t.CorrectSeconds, t.TotalSeconds)
	t.IncorrectPercentage = percent(t.IncorrectSeconds, t.TotalSeconds)
	t.UnattemptedPercentage = percent(t.UnattemptedSeconds, t.TotalSeconds)
	return out
}

// percent rounds halves toward positive infinity, so -2.5 becomes -2 and
// 2.5 becomes 3.
func percent(part, whole int) int {
	if whole == 0 {
		return 0
	}
	return int(math.Floor(float64(part*100)/float64(whole) + 0.5))
}
