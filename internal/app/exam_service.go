package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"exam-session-service/internal/domain"
	"exam-session-service/internal/engine"
	"exam-session-service/internal/scoring"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// SessionRepository abstracts where live sessions are kept (in-memory, Redis-marked, etc).
type SessionRepository interface {
	Put(session *Session)
	Get(sessionID string) (*Session, bool)
	Delete(sessionID string)
}

// QuestionSetRepository loads question sets (from cache/backing store).
type QuestionSetRepository interface {
	GetQuestionSet(ctx context.Context, setID string) (domain.QuestionSet, error)
}

// CheckpointStore persists session summaries and attempt batches.
type CheckpointStore interface {
	SaveCheckpoint(ctx context.Context, cp domain.Checkpoint) error
	LoadCheckpoint(ctx context.Context, sessionID string) (domain.Checkpoint, error)
}

// SaveFailedNotice is surfaced to the user when a checkpoint could not be stored.
const SaveFailedNotice = "progress not saved yet, it will be retried at the next checkpoint"

// ExamService contains the exam session use cases.
type ExamService struct {
	sessions    SessionRepository
	sets        QuestionSetRepository
	checkpoints CheckpointStore

	scheme   scoring.Scheme
	policies map[string]engine.Policy
	now      func() time.Time
	newID    func() string
	resumes  singleflight.Group
}

type Option func(*ExamService)

// WithClock injects the time source shared by every engine the service creates.
func WithClock(now func() time.Time) Option {
	return func(s *ExamService) { s.now = now }
}

func WithScheme(scheme scoring.Scheme) Option {
	return func(s *ExamService) { s.scheme = scheme }
}

// WithFlowPolicy sets the navigation policy for sessions started in flow.
func WithFlowPolicy(flow string, p engine.Policy) Option {
	return func(s *ExamService) { s.policies[flow] = p }
}

func WithIDGenerator(newID func() string) Option {
	return func(s *ExamService) { s.newID = newID }
}

func NewExamService(sessions SessionRepository, sets QuestionSetRepository, checkpoints CheckpointStore, opts ...Option) *ExamService {
	s := &ExamService{
		sessions:    sessions,
		sets:        sets,
		checkpoints: checkpoints,
		scheme:      scoring.DefaultScheme(),
		policies:    make(map[string]engine.Policy),
		now:         time.Now,
		newID:       func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartRequest describes a new session.
type StartRequest struct {
	QuestionSetID string `json:"questionSetId"`
	UserID        string `json:"userId"`
	Flow          string `json:"flow"`
}

// Progress is the snapshot handed to transports after every event.
type Progress struct {
	Session           domain.Session   `json:"session"`
	QuestionOrder     []string         `json:"questionOrder"`
	CurrentQuestionID string           `json:"currentQuestionId,omitempty"`
	Current           *domain.Attempt  `json:"current,omitempty"`
	Analysis          scoring.Analysis `json:"analysis"`
	RemainingSeconds  int              `json:"remainingSeconds"`
	Notice            string           `json:"notice,omitempty"`
}

// MoveKind names a navigation action.
type MoveKind string

const (
	MoveNext     MoveKind = "next"
	MovePrevious MoveKind = "previous"
	MoveGoTo     MoveKind = "goto"
)

// Move is a navigation request. Index is used by MoveGoTo only.
type Move struct {
	Kind  MoveKind `json:"kind"`
	Index int      `json:"index"`
}

// TickResult reports the display timer after a tick.
type TickResult struct {
	ElapsedSeconds   int  `json:"elapsedSeconds"`
	RemainingSeconds int  `json:"remainingSeconds"`
	Expired          bool `json:"expired"`
}

// Start creates a session over a question set and stores its first checkpoint.
func (s *ExamService) Start(ctx context.Context, req StartRequest) (Progress, error) {
	if req.QuestionSetID == "" || req.UserID == "" {
		return Progress{}, fmt.Errorf("%w: question set and user are required", domain.ErrInvalidRequest)
	}
	set, err := s.sets.GetQuestionSet(ctx, req.QuestionSetID)
	if err != nil {
		return Progress{}, err
	}

	passages := make(map[string]string, len(set.Questions))
	for _, q := range set.Questions {
		passages[q.ID] = q.PassageID
	}

	eng := s.newEngine(req.Flow)
	err = eng.InitializeSession(engine.InitParams{
		Session: domain.Session{
			ID:               s.newID(),
			UserID:           req.UserID,
			QuestionSetID:    set.ID,
			Flow:             req.Flow,
			TimeLimitSeconds: set.TimeLimitSeconds,
			StartedAt:        s.now(),
		},
		QuestionIDs: set.QuestionIDs(),
		PassageIDs:  passages,
	})
	if err != nil {
		return Progress{}, err
	}

	session := newSession(set, eng)
	s.sessions.Put(session)

	session.mu.Lock()
	defer session.mu.Unlock()
	_ = s.checkpointLocked(ctx, session)
	return s.progressLocked(session), nil
}

// Resume returns the live session or rebuilds it from its last checkpoint.
func (s *ExamService) Resume(ctx context.Context, sessionID string) (Progress, error) {
	return s.apply(ctx, sessionID, func(*Session) error { return nil })
}

// Answer records an answer for a question as a draft. Correctness is decided
// against the question set.
func (s *ExamService) Answer(ctx context.Context, sessionID, questionID string, answer json.RawMessage) (Progress, error) {
	return s.apply(ctx, sessionID, func(session *Session) error {
		q, ok := session.set.Question(questionID)
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrUnknownQuestion, questionID)
		}
		return session.engine.SubmitDraftAnswer(questionID, answer, CheckAnswer(q, answer))
	})
}

func (s *ExamService) SetConfidence(ctx context.Context, sessionID, questionID string, level int) (Progress, error) {
	return s.apply(ctx, sessionID, func(session *Session) error {
		return session.engine.UpdateConfidence(questionID, level)
	})
}

func (s *ExamService) ToggleReview(ctx context.Context, sessionID, questionID string) (Progress, error) {
	return s.apply(ctx, sessionID, func(session *Session) error {
		_, err := session.engine.ToggleMarkForReview(questionID)
		return err
	})
}

// ClearResponse drops the pending edits for a question.
func (s *ExamService) ClearResponse(ctx context.Context, sessionID, questionID string) (Progress, error) {
	return s.apply(ctx, sessionID, func(session *Session) error {
		return session.engine.DiscardDraft(questionID)
	})
}

func (s *ExamService) ViewRationale(ctx context.Context, sessionID, questionID string) (Progress, error) {
	return s.apply(ctx, sessionID, func(session *Session) error {
		return session.engine.MarkRationaleViewed(questionID)
	})
}

func (s *ExamService) Navigate(ctx context.Context, sessionID string, move Move) (Progress, error) {
	return s.apply(ctx, sessionID, func(session *Session) error {
		switch move.Kind {
		case MoveNext:
			return session.engine.Next()
		case MovePrevious:
			return session.engine.Previous()
		case MoveGoTo:
			return session.engine.GoTo(move.Index)
		default:
			return fmt.Errorf("%w: unsupported move %q", domain.ErrInvalidRequest, move.Kind)
		}
	})
}

// Save commits the active question and pushes a checkpoint. Under
// commit-on-navigate, drafts on other questions are committed too.
func (s *ExamService) Save(ctx context.Context, sessionID string) (Progress, error) {
	return s.apply(ctx, sessionID, func(session *Session) error {
		if session.engine.Session().Mode == domain.ModeExam {
			if err := s.commitActive(session, nil); err != nil {
				return err
			}
			if session.engine.Policy() == engine.CommitOnNavigate {
				if err := session.engine.Settle(); err != nil {
					return err
				}
			}
		}
		_ = s.checkpointLocked(ctx, session)
		return nil
	})
}

// SaveAndNext commits the active question (optionally marking it for review),
// moves forward and pushes a checkpoint.
func (s *ExamService) SaveAndNext(ctx context.Context, sessionID string, markForReview *bool) (Progress, error) {
	return s.apply(ctx, sessionID, func(session *Session) error {
		if err := s.commitActive(session, markForReview); err != nil {
			return err
		}
		if err := session.engine.Next(); err != nil {
			return err
		}
		_ = s.checkpointLocked(ctx, session)
		return nil
	})
}

// Submit scores the session and switches it to review. A session without an
// id is refused so nothing is lost.
func (s *ExamService) Submit(ctx context.Context, sessionID string) (Progress, error) {
	if sessionID == "" {
		return Progress{}, domain.ErrMissingSessionID
	}
	return s.apply(ctx, sessionID, func(session *Session) error {
		if session.engine.Session().ID == "" {
			return domain.ErrMissingSessionID
		}
		if err := session.engine.Submit(); err != nil {
			return err
		}
		_ = s.checkpointLocked(ctx, session)
		return nil
	})
}

// Checkpoint pushes the current state without changing it.
func (s *ExamService) Checkpoint(ctx context.Context, sessionID string) (Progress, error) {
	return s.apply(ctx, sessionID, func(session *Session) error {
		_ = s.checkpointLocked(ctx, session)
		return nil
	})
}

// Analysis derives the score and time breakdown of a session.
func (s *ExamService) Analysis(ctx context.Context, sessionID string) (scoring.Analysis, error) {
	progress, err := s.Resume(ctx, sessionID)
	if err != nil {
		return scoring.Analysis{}, err
	}
	return progress.Analysis, nil
}

// Tick advances the display timer of a session, restoring it from its
// checkpoint when it is not live.
func (s *ExamService) Tick(ctx context.Context, sessionID string) (TickResult, error) {
	session, err := s.acquire(ctx, sessionID)
	if err != nil {
		return TickResult{}, err
	}
	defer session.mu.Unlock()
	elapsed := session.engine.Tick()
	return TickResult{
		ElapsedSeconds:   elapsed,
		RemainingSeconds: session.engine.RemainingSeconds(),
		Expired:          session.engine.Expired() && session.engine.Session().Mode == domain.ModeExam,
	}, nil
}

// Close settles every open draft, stores a best-effort checkpoint and drops
// the session from the live registry.
func (s *ExamService) Close(ctx context.Context, sessionID string) error {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil
	}
	session.mu.Lock()
	defer session.mu.Unlock()
	if session.closed {
		return nil
	}
	if err := session.engine.Settle(); err != nil {
		log.Printf("settle session %s: %v", sessionID, err)
	}
	err := s.checkpointLocked(ctx, session)

	// Removed under the lock: callers already waiting on it see closed and
	// look the session up again.
	s.sessions.Delete(sessionID)
	session.closed = true
	return err
}

func (s *ExamService) apply(ctx context.Context, sessionID string, fn func(*Session) error) (Progress, error) {
	session, err := s.acquire(ctx, sessionID)
	if err != nil {
		return Progress{}, err
	}
	defer session.mu.Unlock()
	if err := fn(session); err != nil {
		return Progress{}, err
	}
	return s.progressLocked(session), nil
}

// acquire returns the live session locked, restoring it when needed. A
// session closed while the caller waited for its lock is looked up again.
func (s *ExamService) acquire(ctx context.Context, sessionID string) (*Session, error) {
	for {
		session, err := s.lookup(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		session.mu.Lock()
		if !session.closed {
			return session, nil
		}
		session.mu.Unlock()
	}
}

func (s *ExamService) lookup(ctx context.Context, sessionID string) (*Session, error) {
	if session, ok := s.sessions.Get(sessionID); ok {
		return session, nil
	}
	// Concurrent requests for the same session share one rebuild.
	result, err, _ := s.resumes.Do(sessionID, func() (interface{}, error) {
		if session, ok := s.sessions.Get(sessionID); ok {
			return session, nil
		}
		session, err := s.restore(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		s.sessions.Put(session)
		return session, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*Session), nil
}

func (s *ExamService) restore(ctx context.Context, sessionID string) (*Session, error) {
	cp, err := s.checkpoints.LoadCheckpoint(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrCheckpointNotFound) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, err
	}
	sum := cp.Summary
	set, err := s.sets.GetQuestionSet(ctx, sum.QuestionSetID)
	if err != nil {
		return nil, err
	}

	order := sum.QuestionOrder
	if len(order) == 0 {
		order = set.QuestionIDs()
	}
	passages := make(map[string]string, len(set.Questions))
	for _, q := range set.Questions {
		passages[q.ID] = q.PassageID
	}

	eng := s.newEngine(sum.Flow)
	err = eng.InitializeSession(engine.InitParams{
		Session: domain.Session{
			ID:               sum.SessionID,
			UserID:           sum.UserID,
			QuestionSetID:    sum.QuestionSetID,
			Flow:             sum.Flow,
			Status:           sum.Status,
			TimeLimitSeconds: sum.TimeLimitSeconds,
			CurrentIndex:     sum.CurrentQuestionIndex,
			StartedAt:        sum.StartedAt,
			CompletedAt:      sum.CompletedAt,
		},
		QuestionIDs:      order,
		ExistingAttempts: cp.Attempts,
		ElapsedSeconds:   sum.TimeSpentSeconds,
		PassageIDs:       passages,
	})
	if err != nil {
		return nil, fmt.Errorf("restore session %s: %w", sessionID, err)
	}
	return newSession(set, eng), nil
}

func (s *ExamService) newEngine(flow string) *engine.Engine {
	return engine.New(engine.WithClock(s.now), engine.WithPolicy(s.policies[flow]))
}

func (s *ExamService) commitActive(session *Session, markForReview *bool) error {
	current, err := session.engine.CurrentQuestionID()
	if err != nil {
		return err
	}
	return session.engine.CommitDraft(current, markForReview)
}

// checkpointLocked pushes the whole committed state. A failure never rolls
// back the engine; the next checkpoint resends everything.
func (s *ExamService) checkpointLocked(ctx context.Context, session *Session) error {
	cp := s.snapshotLocked(session)
	if err := s.checkpoints.SaveCheckpoint(ctx, cp); err != nil {
		session.lastSaveErr = err
		log.Printf("checkpoint for session %s failed: %v", cp.Summary.SessionID, err)
		return err
	}
	session.lastSaveErr = nil
	return nil
}

func (s *ExamService) snapshotLocked(session *Session) domain.Checkpoint {
	eng := session.engine
	sess := eng.Session()
	analysis := s.analysisLocked(session)

	attempts := make([]domain.Attempt, 0, eng.Order().Len())
	for _, a := range eng.Attempts() {
		if a.HasActivity() {
			attempts = append(attempts, a)
		}
	}

	return domain.Checkpoint{
		Summary: domain.SessionSummary{
			SessionID:            sess.ID,
			UserID:               sess.UserID,
			QuestionSetID:        sess.QuestionSetID,
			Flow:                 sess.Flow,
			TimeSpentSeconds:     sess.ElapsedSeconds,
			TimeLimitSeconds:     sess.TimeLimitSeconds,
			Status:               sess.Status,
			TotalQuestions:       analysis.TotalQuestions,
			CorrectAnswers:       analysis.CorrectCount,
			ScorePercentage:      analysis.Percentage,
			CurrentQuestionIndex: sess.CurrentIndex,
			QuestionOrder:        eng.Order().IDs(),
			StartedAt:            sess.StartedAt,
			CompletedAt:          sess.CompletedAt,
		},
		Attempts: attempts,
	}
}

func (s *ExamService) analysisLocked(session *Session) scoring.Analysis {
	eng := session.engine
	return scoring.Derive(eng.AttemptsByID(), eng.Order().IDs(), session.questionType, s.scheme)
}

func (s *ExamService) progressLocked(session *Session) Progress {
	eng := session.engine
	p := Progress{
		Session:          eng.Session(),
		QuestionOrder:    eng.Order().IDs(),
		Analysis:         s.analysisLocked(session),
		RemainingSeconds: eng.RemainingSeconds(),
	}
	if id, err := eng.CurrentQuestionID(); err == nil {
		p.CurrentQuestionID = id
		if current, err := eng.CurrentAttempt(id); err == nil {
			p.Current = &current
		}
	}
	if session.lastSaveErr != nil {
		p.Notice = SaveFailedNotice
	}
	return p
}
