package engine

import (
	"encoding/json"
	"testing"
	"time"

	"exam-session-service/internal/domain"
)

func TestResolveOverlayPrecedence(t *testing.T) {
	base := domain.Attempt{
		QuestionID:       "q1",
		Answer:           json.RawMessage(`"A"`),
		IsCorrect:        true,
		TimeSpentSeconds: 30,
		ConfidenceLevel:  2,
		MarkedForReview:  true,
	}

	got := Resolve(base, Draft{TimeSpentSeconds: 5})
	if string(got.Answer) != `"A"` || !got.IsCorrect || got.ConfidenceLevel != 2 || got.TimeSpentSeconds != 35 {
		t.Fatalf("empty draft should only add time, got %+v", got)
	}

	got = Resolve(base, Draft{
		Answer:     Some(json.RawMessage(`"B"`)),
		IsCorrect:  Some(false),
		Confidence: Some(0),
	})
	if string(got.Answer) != `"B"` || got.IsCorrect || got.ConfidenceLevel != 0 {
		t.Fatalf("draft fields should win, got %+v", got)
	}
	if !got.MarkedForReview || got.TimeSpentSeconds != 30 {
		t.Fatalf("untouched fields should be preserved, got %+v", got)
	}

	cleared := Resolve(base, Draft{Answer: Some[json.RawMessage](nil)})
	if cleared.Answered() {
		t.Fatalf("explicit nil answer should clear the response, got %s", cleared.Answer)
	}
}

func TestAccountantFloorsAndResets(t *testing.T) {
	clk := newFakeClock()
	acc := NewAccountant(clk.now)

	clk.advance(2500 * time.Millisecond)
	if got := acc.Elapsed(); got != 2 {
		t.Fatalf("expected floored 2s, got %d", got)
	}
	if got := acc.Take(); got != 2 {
		t.Fatalf("expected take 2s, got %d", got)
	}
	if got := acc.Elapsed(); got != 0 {
		t.Fatalf("expected reset segment, got %d", got)
	}

	clk.advance(-5 * time.Second)
	if got := acc.Elapsed(); got != 0 {
		t.Fatalf("clock skew must not produce negative time, got %d", got)
	}
}
