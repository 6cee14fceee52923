package domain

import (
	"bytes"
	"encoding/json"
	"time"
)

// Question types with content-specific scoring rules.
const (
	TypeMCQ        = "mcq"
	TypeOddOneOut  = "odd_one_out"
	TypeParaJumble = "para_jumble"
	TypeSummary    = "para_summary"
)

// Mode is the interaction mode of a session.
type Mode string

const (
	// ModeExam accepts answers and tracks time per question.
	ModeExam Mode = "exam"
	// ModeSolution is the post-submission review; navigation has no side effects.
	ModeSolution Mode = "solution"
)

// Status is the persisted lifecycle state of a session.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// Session identifies one practice or mock attempt by a user.
type Session struct {
	ID               string     `json:"id"`
	UserID           string     `json:"userId"`
	QuestionSetID    string     `json:"questionSetId"`
	Flow             string     `json:"flow"`
	Mode             Mode       `json:"mode"`
	Status           Status     `json:"status"`
	TimeLimitSeconds int        `json:"timeLimitSeconds"` // 0 means untimed
	ElapsedSeconds   int        `json:"elapsedSeconds"`
	CurrentIndex     int        `json:"currentIndex"`
	StartedAt        time.Time  `json:"startedAt"`
	CompletedAt      *time.Time `json:"completedAt,omitempty"`
}

// Attempt is the committed record of a user's interaction with one question.
type Attempt struct {
	QuestionID       string          `json:"question_id"`
	SessionID        string          `json:"session_id"`
	UserID           string          `json:"user_id"`
	PassageID        *string         `json:"passage_id,omitempty"`
	Answer           json.RawMessage `json:"user_answer,omitempty"`
	IsCorrect        bool            `json:"is_correct"`
	TimeSpentSeconds int             `json:"time_spent_seconds"`
	ConfidenceLevel  int             `json:"confidence_level"`
	MarkedForReview  bool            `json:"marked_for_review"`
	RationaleViewed  bool            `json:"rationale_viewed"`
}

// Answered reports whether an answer payload is present.
func (a Attempt) Answered() bool {
	trimmed := bytes.TrimSpace(a.Answer)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

// HasActivity reports whether the attempt carries anything worth persisting.
func (a Attempt) HasActivity() bool {
	return a.Answered() || a.TimeSpentSeconds > 0 || a.ConfidenceLevel > 0 || a.MarkedForReview || a.RationaleViewed
}

// Option is a selectable choice for a question.
type Option struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Question carries the metadata the service needs to check and score answers.
type Question struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	PassageID     string          `json:"passageId,omitempty"`
	Prompt        string          `json:"prompt"`
	Options       []Option        `json:"options,omitempty"`
	CorrectAnswer json.RawMessage `json:"correctAnswer"`
	Rationale     string          `json:"rationale,omitempty"`
}

// QuestionSet is an ordered collection of questions served as one session.
type QuestionSet struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	TimeLimitSeconds int        `json:"timeLimitSeconds"`
	Questions        []Question `json:"questions"`
}

// QuestionIDs returns the ids in set order.
func (s QuestionSet) QuestionIDs() []string {
	ids := make([]string, 0, len(s.Questions))
	for _, q := range s.Questions {
		ids = append(ids, q.ID)
	}
	return ids
}

// Question looks up a question by id.
func (s QuestionSet) Question(id string) (Question, bool) {
	for _, q := range s.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

// SessionSummary is the persisted view of a session.
type SessionSummary struct {
	SessionID            string     `json:"session_id"`
	UserID               string     `json:"user_id"`
	QuestionSetID        string     `json:"question_set_id"`
	Flow                 string     `json:"flow"`
	TimeSpentSeconds     int        `json:"time_spent_seconds"`
	TimeLimitSeconds     int        `json:"time_limit_seconds"`
	Status               Status     `json:"status"`
	TotalQuestions       int        `json:"total_questions"`
	CorrectAnswers       int        `json:"correct_answers"`
	ScorePercentage      int        `json:"score_percentage"`
	CurrentQuestionIndex int        `json:"current_question_index"`
	QuestionOrder        []string   `json:"question_order"`
	StartedAt            time.Time  `json:"started_at"`
	CompletedAt          *time.Time `json:"completed_at,omitempty"`
}

// Checkpoint is what gets pushed to the backing store at save points.
type Checkpoint struct {
	Summary  SessionSummary `json:"summary"`
	Attempts []Attempt      `json:"attempts"`
}
