// Package engine implements the exam session state machine: the question
// order, committed attempts, draft overlays, per-question time accounting
// and navigation. An Engine is not safe for concurrent use; callers
// serialize events.
package engine

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"exam-session-service/internal/domain"
)

// Policy decides what happens to an uncommitted draft when the user leaves
// its question.
type Policy int

const (
	// CommitOnNavigate folds pending edits into the attempt.
	CommitOnNavigate Policy = iota
	// DiscardOnNavigate drops pending edits unless they were saved explicitly.
	DiscardOnNavigate
)

// ParsePolicy maps config values ("commit", "discard") to a Policy.
func ParsePolicy(raw string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "commit":
		return CommitOnNavigate, nil
	case "discard":
		return DiscardOnNavigate, nil
	default:
		return CommitOnNavigate, fmt.Errorf("unknown navigation policy %q", raw)
	}
}

func (p Policy) String() string {
	if p == DiscardOnNavigate {
		return "discard"
	}
	return "commit"
}

type Option func(*Engine)

// WithClock injects the time source used for segment accounting.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithPolicy(p Policy) Option {
	return func(e *Engine) { e.policy = p }
}

// InitParams seeds a session. ExistingAttempts and ElapsedSeconds are used
// when resuming from persisted state.
type InitParams struct {
	Session          domain.Session
	QuestionIDs      []string
	ExistingAttempts []domain.Attempt
	ElapsedSeconds   int
	PassageIDs       map[string]string
}

type Engine struct {
	now    func() time.Time
	policy Policy

	active   bool
	session  domain.Session
	order    Order
	attempts map[string]domain.Attempt
	drafts   map[string]Draft
	timer    *Accountant
}

func New(opts ...Option) *Engine {
	e := &Engine{now: time.Now, policy: CommitOnNavigate}
	for _, opt := range opts {
		opt(e)
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// InitializeSession fixes the question order, seeds a bare attempt for every
// question and overlays any existing attempts. Completed sessions open in
// review mode.
func (e *Engine) InitializeSession(p InitParams) error {
	order, err := NewOrder(p.QuestionIDs)
	if err != nil {
		return err
	}

	session := p.Session
	if p.ElapsedSeconds > 0 {
		session.ElapsedSeconds = p.ElapsedSeconds
	}
	if session.Status == domain.StatusCompleted {
		session.Mode = domain.ModeSolution
	} else {
		session.Mode = domain.ModeExam
		session.Status = domain.StatusInProgress
	}
	if session.StartedAt.IsZero() {
		session.StartedAt = e.now()
	}
	if session.CurrentIndex < 0 || session.CurrentIndex >= order.Len() {
		session.CurrentIndex = 0
	}

	attempts := make(map[string]domain.Attempt, order.Len())
	for _, id := range order.ids {
		a := domain.Attempt{QuestionID: id, SessionID: session.ID, UserID: session.UserID}
		if pid := p.PassageIDs[id]; pid != "" {
			a.PassageID = &pid
		}
		attempts[id] = a
	}
	for _, existing := range p.ExistingAttempts {
		seeded, ok := attempts[existing.QuestionID]
		if !ok {
			continue
		}
		existing.SessionID = session.ID
		if existing.UserID == "" {
			existing.UserID = session.UserID
		}
		if existing.PassageID == nil {
			existing.PassageID = seeded.PassageID
		}
		existing.Answer = cloneRaw(existing.Answer)
		attempts[existing.QuestionID] = existing
	}

	e.session = session
	e.order = order
	e.attempts = attempts
	e.drafts = make(map[string]Draft)
	e.timer = NewAccountant(e.now)
	e.active = true
	return nil
}

// Reset tears the session down.
func (e *Engine) Reset() {
	e.active = false
	e.session = domain.Session{}
	e.order = Order{}
	e.attempts = nil
	e.drafts = nil
	e.timer = nil
}

// SubmitDraftAnswer records an answer edit in the question's draft without
// touching the committed attempt.
func (e *Engine) SubmitDraftAnswer(questionID string, answer json.RawMessage, isCorrect bool) error {
	if err := e.editable(questionID); err != nil {
		return err
	}
	d := e.drafts[questionID]
	d.Answer = Some(cloneRaw(answer))
	d.IsCorrect = Some(isCorrect)
	e.drafts[questionID] = d
	e.foldSegment()
	return nil
}

// UpdateConfidence records a confidence edit in the question's draft.
func (e *Engine) UpdateConfidence(questionID string, level int) error {
	if err := e.editable(questionID); err != nil {
		return err
	}
	if level < 0 || level > 3 {
		return fmt.Errorf("%w: %d", domain.ErrInvalidConfidence, level)
	}
	d := e.drafts[questionID]
	d.Confidence = Some(level)
	e.drafts[questionID] = d
	e.foldSegment()
	return nil
}

// CommitDraft merges the draft for questionID into its attempt after folding
// the trailing time segment. A non-nil markForReview is applied to the attempt.
func (e *Engine) CommitDraft(questionID string, markForReview *bool) error {
	if err := e.editable(questionID); err != nil {
		return err
	}
	e.foldSegment()
	e.merge(questionID)
	if markForReview != nil {
		a := e.attempts[questionID]
		a.MarkedForReview = *markForReview
		e.attempts[questionID] = a
	}
	return nil
}

// DiscardDraft drops pending edits for questionID. Time accumulated while the
// draft was open stays with the attempt.
func (e *Engine) DiscardDraft(questionID string) error {
	if err := e.editable(questionID); err != nil {
		return err
	}
	e.foldSegment()
	e.dropEdits(questionID)
	return nil
}

// ToggleMarkForReview flips the review flag directly on the attempt.
func (e *Engine) ToggleMarkForReview(questionID string) (bool, error) {
	if err := e.editable(questionID); err != nil {
		return false, err
	}
	a := e.attempts[questionID]
	a.MarkedForReview = !a.MarkedForReview
	e.attempts[questionID] = a
	return a.MarkedForReview, nil
}

// MarkRationaleViewed records that the explanation was opened. Allowed in
// both modes.
func (e *Engine) MarkRationaleViewed(questionID string) error {
	if err := e.known(questionID); err != nil {
		return err
	}
	a := e.attempts[questionID]
	a.RationaleViewed = true
	e.attempts[questionID] = a
	return nil
}

// Submit commits every outstanding draft and switches to review mode.
func (e *Engine) Submit() error {
	if !e.active {
		return domain.ErrNoActiveSession
	}
	if e.session.Mode != domain.ModeExam {
		return domain.ErrReviewMode
	}
	e.foldSegment()
	for _, id := range e.order.ids {
		e.merge(id)
	}
	completedAt := e.now()
	e.session.Mode = domain.ModeSolution
	e.session.Status = domain.StatusCompleted
	e.session.CompletedAt = &completedAt
	return nil
}

// Tick advances the display-only elapsed counter. It never touches attempts.
func (e *Engine) Tick() int {
	if e.active && e.session.Mode == domain.ModeExam {
		e.session.ElapsedSeconds++
	}
	return e.session.ElapsedSeconds
}

// RemainingSeconds is the time left on a timed session, 0 when untimed.
func (e *Engine) RemainingSeconds() int {
	if e.session.TimeLimitSeconds <= 0 {
		return 0
	}
	if r := e.session.TimeLimitSeconds - e.session.ElapsedSeconds; r > 0 {
		return r
	}
	return 0
}

// Expired reports whether a timed session ran out of time.
func (e *Engine) Expired() bool {
	return e.active && e.session.TimeLimitSeconds > 0 && e.session.ElapsedSeconds >= e.session.TimeLimitSeconds
}

// Active reports whether a session is initialized.
func (e *Engine) Active() bool { return e.active }

// Policy returns the navigation policy applied when leaving a question.
func (e *Engine) Policy() Policy { return e.policy }

// Order returns the session's question order.
func (e *Engine) Order() Order { return e.order }

// CurrentIndex returns the index of the active question.
func (e *Engine) CurrentIndex() int { return e.session.CurrentIndex }

// Session returns a copy of the session record.
func (e *Engine) Session() domain.Session {
	s := e.session
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		s.CompletedAt = &t
	}
	return s
}

// CurrentQuestionID returns the id at the current index.
func (e *Engine) CurrentQuestionID() (string, error) {
	if !e.active {
		return "", domain.ErrNoActiveSession
	}
	return e.order.IDAt(e.session.CurrentIndex)
}

// CurrentAttempt returns the working view of a question: the draft over the
// committed attempt when a draft exists.
func (e *Engine) CurrentAttempt(questionID string) (domain.Attempt, error) {
	if err := e.known(questionID); err != nil {
		return domain.Attempt{}, err
	}
	a := e.attempts[questionID]
	if d, ok := e.drafts[questionID]; ok {
		return Resolve(a, d), nil
	}
	return a, nil
}

// Attempt returns the committed attempt for a question.
func (e *Engine) Attempt(questionID string) (domain.Attempt, error) {
	if err := e.known(questionID); err != nil {
		return domain.Attempt{}, err
	}
	return e.attempts[questionID], nil
}

// Draft returns the pending overlay for a question, if any.
func (e *Engine) Draft(questionID string) (Draft, bool) {
	d, ok := e.drafts[questionID]
	return d, ok
}

// Attempts returns the committed attempts in question order.
func (e *Engine) Attempts() []domain.Attempt {
	out := make([]domain.Attempt, 0, e.order.Len())
	for _, id := range e.order.ids {
		out = append(out, e.attempts[id])
	}
	return out
}

// AttemptsByID returns a copy of the committed attempt store.
func (e *Engine) AttemptsByID() map[string]domain.Attempt {
	out := make(map[string]domain.Attempt, len(e.attempts))
	for id, a := range e.attempts {
		out[id] = a
	}
	return out
}

func (e *Engine) known(questionID string) error {
	if !e.active {
		return domain.ErrNoActiveSession
	}
	if !e.order.Contains(questionID) {
		return fmt.Errorf("%w: %s", domain.ErrUnknownQuestion, questionID)
	}
	return nil
}

func (e *Engine) editable(questionID string) error {
	if err := e.known(questionID); err != nil {
		return err
	}
	if e.session.Mode != domain.ModeExam {
		return domain.ErrReviewMode
	}
	return nil
}

func (e *Engine) activeID() string {
	id, err := e.order.IDAt(e.session.CurrentIndex)
	if err != nil {
		return ""
	}
	return id
}

// foldSegment attributes the elapsed segment to the active question (its
// draft when one is open) and starts a new segment.
func (e *Engine) foldSegment() {
	elapsed := e.timer.Take()
	id := e.activeID()
	if id == "" || elapsed == 0 {
		return
	}
	if d, ok := e.drafts[id]; ok {
		d.TimeSpentSeconds += elapsed
		e.drafts[id] = d
		return
	}
	a := e.attempts[id]
	a.TimeSpentSeconds += elapsed
	e.attempts[id] = a
}

func (e *Engine) merge(questionID string) {
	d, ok := e.drafts[questionID]
	if !ok {
		return
	}
	e.attempts[questionID] = Resolve(e.attempts[questionID], d)
	delete(e.drafts, questionID)
}

func (e *Engine) dropEdits(questionID string) {
	d, ok := e.drafts[questionID]
	if !ok {
		return
	}
	a := e.attempts[questionID]
	a.TimeSpentSeconds += d.TimeSpentSeconds
	e.attempts[questionID] = a
	delete(e.drafts, questionID)
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	return append(json.RawMessage(nil), raw...)
}
