package engine

import (
	"fmt"

	"exam-session-service/internal/domain"
)

// GoTo moves to index i. In exam mode the active question's segment is
// folded and its draft handled per the navigation policy before moving.
// Staying on the same index still folds the trailing segment.
func (e *Engine) GoTo(i int) error {
	if !e.active {
		return domain.ErrNoActiveSession
	}
	if i < 0 || i >= e.order.Len() {
		return fmt.Errorf("%w: %d of %d", domain.ErrInvalidIndex, i, e.order.Len())
	}
	if e.session.Mode != domain.ModeExam {
		e.session.CurrentIndex = i
		return nil
	}
	e.leaveActive(i == e.session.CurrentIndex)
	e.session.CurrentIndex = i
	e.timer.Reset()
	return nil
}

// Next moves forward, wrapping from the last question to the first.
func (e *Engine) Next() error {
	n, err := e.navigable()
	if err != nil {
		return err
	}
	return e.GoTo((e.session.CurrentIndex + 1) % n)
}

// Previous moves back, wrapping from the first question to the last.
func (e *Engine) Previous() error {
	n, err := e.navigable()
	if err != nil {
		return err
	}
	return e.GoTo((e.session.CurrentIndex - 1 + n) % n)
}

// Settle treats every open draft as if the user left its question: the
// trailing segment is folded, then drafts are merged under CommitOnNavigate
// or dropped (keeping their time) under DiscardOnNavigate. Used before the
// session is unloaded. Review mode has nothing to settle.
func (e *Engine) Settle() error {
	if !e.active {
		return domain.ErrNoActiveSession
	}
	if e.session.Mode != domain.ModeExam {
		return nil
	}
	e.foldSegment()
	for _, id := range e.order.ids {
		if e.policy == CommitOnNavigate {
			e.merge(id)
		} else {
			e.dropEdits(id)
		}
	}
	e.timer.Reset()
	return nil
}

func (e *Engine) navigable() (int, error) {
	if !e.active {
		return 0, domain.ErrNoActiveSession
	}
	n := e.order.Len()
	if n == 0 {
		return 0, fmt.Errorf("%w: empty question order", domain.ErrInvalidIndex)
	}
	return n, nil
}

func (e *Engine) leaveActive(stay bool) {
	id := e.activeID()
	e.foldSegment()
	switch {
	case e.policy == CommitOnNavigate:
		e.merge(id)
	case !stay:
		e.dropEdits(id)
	}
}
