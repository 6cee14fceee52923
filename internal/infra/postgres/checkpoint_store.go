package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"exam-session-service/internal/domain"
	"github.com/uptrace/bun"
)

type sessionRow struct {
	bun.BaseModel `bun:"table:exam_sessions"`

	ID                   string     `bun:"id,pk"`
	UserID               string     `bun:"user_id"`
	QuestionSetID        string     `bun:"question_set_id"`
	Flow                 string     `bun:"flow"`
	TimeSpentSeconds     int        `bun:"time_spent_seconds"`
	TimeLimitSeconds     int        `bun:"time_limit_seconds"`
	Status               string     `bun:"status"`
	TotalQuestions       int        `bun:"total_questions"`
	CorrectAnswers       int        `bun:"correct_answers"`
	ScorePercentage      int        `bun:"score_percentage"`
	CurrentQuestionIndex int        `bun:"current_question_index"`
	QuestionOrder        []string   `bun:"question_order,array"`
	StartedAt            time.Time  `bun:"started_at"`
	CompletedAt          *time.Time `bun:"completed_at,nullzero"`
	UpdatedAt            time.Time  `bun:"updated_at"`
}

type attemptRow struct {
	bun.BaseModel `bun:"table:question_attempts"`

	SessionID        string  `bun:"session_id,pk"`
	QuestionID       string  `bun:"question_id,pk"`
	UserID           string  `bun:"user_id"`
	PassageID        *string `bun:"passage_id,nullzero"`
	UserAnswer       string  `bun:"user_answer,type:jsonb,nullzero"`
	IsCorrect        bool    `bun:"is_correct"`
	TimeSpentSeconds int     `bun:"time_spent_seconds"`
	ConfidenceLevel  int     `bun:"confidence_level"`
	MarkedForReview  bool    `bun:"marked_for_review"`
	RationaleViewed  bool    `bun:"rationale_viewed"`
}

var (
	sessionColumns = []string{
		"user_id", "question_set_id", "flow", "time_spent_seconds", "time_limit_seconds", "status",
		"total_questions", "correct_answers", "score_percentage", "current_question_index",
		"question_order", "started_at", "completed_at", "updated_at",
	}
	attemptColumns = []string{
		"user_id", "passage_id", "user_answer", "is_correct", "time_spent_seconds",
		"confidence_level", "marked_for_review", "rationale_viewed",
	}
)

// CheckpointStore persists session summaries and attempt batches with bun.
// Every save replaces the whole batch, so a failed save is repaired by the next one.
type CheckpointStore struct {
	db  *bun.DB
	now func() time.Time
}

func NewCheckpointStore(db *bun.DB) *CheckpointStore {
	return &CheckpointStore{db: db, now: time.Now}
}

func (s *CheckpointStore) SaveCheckpoint(ctx context.Context, cp domain.Checkpoint) error {
	session := toSessionRow(cp.Summary, s.now())
	attempts := make([]attemptRow, 0, len(cp.Attempts))
	for _, a := range cp.Attempts {
		attempts = append(attempts, toAttemptRow(cp.Summary.SessionID, a))
	}

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		q := tx.NewInsert().Model(&session).On("CONFLICT (id) DO UPDATE")
		for _, col := range sessionColumns {
			q = q.Set(col + " = EXCLUDED." + col)
		}
		if _, err := q.Exec(ctx); err != nil {
			return err
		}

		// rows missing from the batch belong to attempts without activity
		del := tx.NewDelete().Model((*attemptRow)(nil)).Where("session_id = ?", session.ID)
		if len(attempts) > 0 {
			ids := make([]string, 0, len(attempts))
			for _, a := range attempts {
				ids = append(ids, a.QuestionID)
			}
			del = del.Where("question_id NOT IN (?)", bun.In(ids))
		}
		if _, err := del.Exec(ctx); err != nil {
			return err
		}
		if len(attempts) == 0 {
			return nil
		}
		aq := tx.NewInsert().Model(&attempts).On("CONFLICT (session_id, question_id) DO UPDATE")
		for _, col := range attemptColumns {
			aq = aq.Set(col + " = EXCLUDED." + col)
		}
		_, err := aq.Exec(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("save checkpoint %s: %w", cp.Summary.SessionID, err)
	}
	return nil
}

func (s *CheckpointStore) LoadCheckpoint(ctx context.Context, sessionID string) (domain.Checkpoint, error) {
	var session sessionRow
	err := s.db.NewSelect().Model(&session).Where("id = ?", sessionID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Checkpoint{}, domain.ErrCheckpointNotFound
	}
	if err != nil {
		return domain.Checkpoint{}, fmt.Errorf("load session %s: %w", sessionID, err)
	}

	var rows []attemptRow
	if err := s.db.NewSelect().Model(&rows).Where("session_id = ?", sessionID).Scan(ctx); err != nil {
		return domain.Checkpoint{}, fmt.Errorf("load attempts %s: %w", sessionID, err)
	}

	cp := domain.Checkpoint{Summary: fromSessionRow(session)}
	for _, r := range rows {
		cp.Attempts = append(cp.Attempts, fromAttemptRow(r))
	}
	return cp, nil
}

func toSessionRow(sum domain.SessionSummary, now time.Time) sessionRow {
	order := sum.QuestionOrder
	if order == nil {
		order = []string{}
	}
	return sessionRow{
		ID:                   sum.SessionID,
		UserID:               sum.UserID,
		QuestionSetID:        sum.QuestionSetID,
		Flow:                 sum.Flow,
		TimeSpentSeconds:     sum.TimeSpentSeconds,
		TimeLimitSeconds:     sum.TimeLimitSeconds,
		Status:               string(sum.Status),
		TotalQuestions:       sum.TotalQuestions,
		CorrectAnswers:       sum.CorrectAnswers,
		ScorePercentage:      sum.ScorePercentage,
		CurrentQuestionIndex: sum.CurrentQuestionIndex,
		QuestionOrder:        order,
		StartedAt:            sum.StartedAt,
		CompletedAt:          sum.CompletedAt,
		UpdatedAt:            now,
	}
}

func fromSessionRow(r sessionRow) domain.SessionSummary {
	return domain.SessionSummary{
		SessionID:            r.ID,
		UserID:               r.UserID,
		QuestionSetID:        r.QuestionSetID,
		Flow:                 r.Flow,
		TimeSpentSeconds:     r.TimeSpentSeconds,
		TimeLimitSeconds:     r.TimeLimitSeconds,
		Status:               domain.Status(r.Status),
		TotalQuestions:       r.TotalQuestions,
		CorrectAnswers:       r.CorrectAnswers,
		ScorePercentage:      r.ScorePercentage,
		CurrentQuestionIndex: r.CurrentQuestionIndex,
		QuestionOrder:        r.QuestionOrder,
		StartedAt:            r.StartedAt,
		CompletedAt:          r.CompletedAt,
	}
}

func toAttemptRow(sessionID string, a domain.Attempt) attemptRow {
	row := attemptRow{
		SessionID:        sessionID,
		QuestionID:       a.QuestionID,
		UserID:           a.UserID,
		PassageID:        a.PassageID,
		IsCorrect:        a.IsCorrect,
		TimeSpentSeconds: a.TimeSpentSeconds,
		ConfidenceLevel:  a.ConfidenceLevel,
		MarkedForReview:  a.MarkedForReview,
		RationaleViewed:  a.RationaleViewed,
	}
	if a.Answered() {
		row.UserAnswer = string(a.Answer)
	}
	return row
}

func fromAttemptRow(r attemptRow) domain.Attempt {
	a := domain.Attempt{
		QuestionID:       r.QuestionID,
		SessionID:        r.SessionID,
		UserID:           r.UserID,
		PassageID:        r.PassageID,
		IsCorrect:        r.IsCorrect,
		TimeSpentSeconds: r.TimeSpentSeconds,
		ConfidenceLevel:  r.ConfidenceLevel,
		MarkedForReview:  r.MarkedForReview,
		RationaleViewed:  r.RationaleViewed,
	}
	if r.UserAnswer != "" {
		a.Answer = json.RawMessage(r.UserAnswer)
	}
	return a
}
