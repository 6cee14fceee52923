package memory

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"exam-session-service/internal/domain"
)

func TestCheckpointStoreRoundTrip(t *testing.T) {
	store := NewCheckpointStore()
	ctx := context.Background()

	if _, err := store.LoadCheckpoint(ctx, "s1"); !errors.Is(err, domain.ErrCheckpointNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	cp := domain.Checkpoint{
		Summary: domain.SessionSummary{SessionID: "s1", UserID: "u1", QuestionOrder: []string{"q1", "q2"}},
		Attempts: []domain.Attempt{
			{QuestionID: "q1", SessionID: "s1", Answer: json.RawMessage(`"b"`), TimeSpentSeconds: 12},
		},
	}
	if err := store.SaveCheckpoint(ctx, cp); err != nil {
		t.Fatalf("save: %v", err)
	}
	cp.Attempts[0].TimeSpentSeconds = 99

	got, err := store.LoadCheckpoint(ctx, "s1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Attempts[0].TimeSpentSeconds != 12 {
		t.Fatalf("stored checkpoint shares memory with caller: %+v", got.Attempts[0])
	}
	if len(got.Summary.QuestionOrder) != 2 {
		t.Fatalf("expected order restored, got %v", got.Summary.QuestionOrder)
	}
}
