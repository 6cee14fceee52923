package engine

import (
	"errors"
	"testing"

	"exam-session-service/internal/domain"
)

func TestOrderLookups(t *testing.T) {
	ids := []string{"q1", "q2", "q3"}
	order, err := NewOrder(ids)
	if err != nil {
		t.Fatalf("new order: %v", err)
	}
	ids[0] = "mutated"

	if order.Len() != 3 {
		t.Fatalf("expected 3 ids, got %d", order.Len())
	}
	if id, err := order.IDAt(0); err != nil || id != "q1" {
		t.Fatalf("expected q1 at 0, got %q (%v)", id, err)
	}
	if i, err := order.IndexOf("q3"); err != nil || i != 2 {
		t.Fatalf("expected q3 at 2, got %d (%v)", i, err)
	}
	if _, err := order.IDAt(3); !errors.Is(err, domain.ErrInvalidIndex) {
		t.Fatalf("expected invalid index, got %v", err)
	}
	if _, err := order.IDAt(-1); !errors.Is(err, domain.ErrInvalidIndex) {
		t.Fatalf("expected invalid index for -1, got %v", err)
	}
	if _, err := order.IndexOf("q9"); !errors.Is(err, domain.ErrUnknownQuestion) {
		t.Fatalf("expected unknown question, got %v", err)
	}

	copied := order.IDs()
	copied[1] = "changed"
	if id, _ := order.IDAt(1); id != "q2" {
		t.Fatalf("order mutated through IDs copy: %q", id)
	}
}

func TestOrderRejectsDuplicates(t *testing.T) {
	if _, err := NewOrder([]string{"q1", "q2", "q1"}); !errors.Is(err, domain.ErrDuplicateQuestion) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
}
