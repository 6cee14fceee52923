package memory

import (
	"context"
	"encoding/json"
	"sync"

	"exam-session-service/internal/domain"
)

// CheckpointStore keeps the latest checkpoint per session in process memory.
// Checkpoints are stored as JSON so callers never share slices with the store.
type CheckpointStore struct {
	mu          sync.RWMutex
	checkpoints map[string][]byte
}

func NewCheckpointStore() *CheckpointStore {
	return &CheckpointStore{checkpoints: make(map[string][]byte)}
}

func (s *CheckpointStore) SaveCheckpoint(_ context.Context, cp domain.Checkpoint) error {
	raw, err := json.Marshal(cp)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkpoints[cp.Summary.SessionID] = raw
	return nil
}

func (s *CheckpointStore) LoadCheckpoint(_ context.Context, sessionID string) (domain.Checkpoint, error) {
	s.mu.RLock()
	raw, ok := s.checkpoints[sessionID]
	s.mu.RUnlock()
	if !ok {
		return domain.Checkpoint{}, domain.ErrCheckpointNotFound
	}
	var cp domain.Checkpoint
	if err := json.Unmarshal(raw, &cp); err != nil {
		return domain.Checkpoint{}, err
	}
	return cp, nil
}
