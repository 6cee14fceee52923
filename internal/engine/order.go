package engine

import (
	"fmt"

	"exam-session-service/internal/domain"
)

// Order is the immutable question sequence fixed at session start.
type Order struct {
	ids   []string
	index map[string]int
}

// NewOrder copies ids into a stable sequence. Duplicates are rejected.
func NewOrder(ids []string) (Order, error) {
	o := Order{
		ids:   make([]string, len(ids)),
		index: make(map[string]int, len(ids)),
	}
	for i, id := range ids {
		if _, dup := o.index[id]; dup {
			return Order{}, fmt.Errorf("%w: %s", domain.ErrDuplicateQuestion, id)
		}
		o.ids[i] = id
		o.index[id] = i
	}
	return o, nil
}

// Len returns the number of questions.
func (o Order) Len() int { return len(o.ids) }

// IDAt returns the question id at index i.
func (o Order) IDAt(i int) (string, error) {
	if i < 0 || i >= len(o.ids) {
		return "", fmt.Errorf("%w: %d of %d", domain.ErrInvalidIndex, i, len(o.ids))
	}
	return o.ids[i], nil
}

// IndexOf returns the position of id.
func (o Order) IndexOf(id string) (int, error) {
	i, ok := o.index[id]
	if !ok {
		return 0, fmt.Errorf("%w: %s", domain.ErrUnknownQuestion, id)
	}
	return i, nil
}

// Contains reports whether id is part of the order.
func (o Order) Contains(id string) bool {
	_, ok := o.index[id]
	return ok
}

// IDs returns a copy of the sequence.
func (o Order) IDs() []string {
	out := make([]string, len(o.ids))
	copy(out, o.ids)
	return out
}
