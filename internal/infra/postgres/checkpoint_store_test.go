package postgres

import (
	"encoding/json"
	"testing"
	"time"

	"exam-session-service/internal/domain"
)

func TestAttemptRowsKeepUnansweredNull(t *testing.T) {
	row := toAttemptRow("s1", domain.Attempt{QuestionID: "q1", Answer: json.RawMessage(`null`), MarkedForReview: true})
	if row.UserAnswer != "" {
		t.Fatalf("expected null answer to map to SQL NULL, got %q", row.UserAnswer)
	}
	back := fromAttemptRow(row)
	if back.Answered() || !back.MarkedForReview || back.SessionID != "s1" {
		t.Fatalf("unexpected attempt: %+v", back)
	}

	row = toAttemptRow("s1", domain.Attempt{QuestionID: "q2", Answer: json.RawMessage(`["a","c"]`)})
	if got := string(fromAttemptRow(row).Answer); got != `["a","c"]` {
		t.Fatalf("unexpected answer %s", got)
	}
}

func TestSessionRowDefaultsOrder(t *testing.T) {
	now := time.Date(2024, 11, 23, 8, 0, 0, 0, time.UTC)
	row := toSessionRow(domain.SessionSummary{SessionID: "s1", Status: domain.StatusCompleted}, now)
	if row.QuestionOrder == nil || !row.UpdatedAt.Equal(now) {
		t.Fatalf("unexpected row: %+v", row)
	}
	if fromSessionRow(row).Status != domain.StatusCompleted {
		t.Fatalf("status lost in mapping")
	}
}
