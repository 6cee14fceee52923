package domain

import "errors"

var (
	// ErrNoActiveSession is returned when the engine is used before initialization or after reset.
	ErrNoActiveSession = errors.New("no active session")
	// ErrUnknownQuestion indicates a question id outside the session's question order.
	ErrUnknownQuestion = errors.New("unknown question")
	// ErrInvalidIndex indicates a question index outside the session's question order.
	ErrInvalidIndex = errors.New("invalid question index")
	// ErrDuplicateQuestion indicates the same question id appears twice in an order.
	ErrDuplicateQuestion = errors.New("duplicate question in order")
	// ErrReviewMode is returned when an answer mutation is attempted after submission.
	ErrReviewMode = errors.New("session is in review mode")
	// ErrInvalidConfidence indicates a confidence level outside 0..3.
	ErrInvalidConfidence = errors.New("confidence level must be between 0 and 3")
	// ErrMissingSessionID blocks destructive actions when the session has no id.
	ErrMissingSessionID = errors.New("session id missing")
	// ErrSessionNotFound is returned when a session is neither live nor checkpointed.
	ErrSessionNotFound = errors.New("exam session not found")
	// ErrQuestionSetNotFound indicates the question set could not be loaded.
	ErrQuestionSetNotFound = errors.New("question set not found")
	// ErrInvalidRequest wraps malformed caller input.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrCheckpointNotFound indicates no checkpoint exists for a session.
	ErrCheckpointNotFound = errors.New("checkpoint not found")
)
