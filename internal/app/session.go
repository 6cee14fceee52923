package app

import (
	"sync"

	"exam-session-service/internal/domain"
	"exam-session-service/internal/engine"
)

// Session is a live exam session: the engine plus the question set it serves.
// The mutex serializes events arriving from different transports; the engine
// itself is single-threaded.
type Session struct {
	mu     sync.Mutex
	set    domain.QuestionSet
	types  map[string]string
	engine *engine.Engine

	lastSaveErr error
	closed      bool
}

func newSession(set domain.QuestionSet, eng *engine.Engine) *Session {
	types := make(map[string]string, len(set.Questions))
	for _, q := range set.Questions {
		types[q.ID] = q.Type
	}
	return &Session{set: set, types: types, engine: eng}
}

// ID returns the session id.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Session().ID
}

func (s *Session) questionType(id string) string {
	return s.types[id]
}
