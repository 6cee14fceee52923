package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"exam-session-service/internal/app"
	"exam-session-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

// CheckpointStore keeps the latest checkpoint of each session in Redis and
// optionally writes through to a durable store.
//
//	SET  exam:checkpoint:{sessionID}           {summary json}
//	HSET exam:checkpoint:{sessionID}:attempts  {questionID} {attempt json}
type CheckpointStore struct {
	client  *redis.Client
	ttl     time.Duration
	durable app.CheckpointStore
}

// NewCheckpointStore returns a Redis checkpoint store. durable may be nil.
func NewCheckpointStore(client *redis.Client, ttl time.Duration, durable app.CheckpointStore) *CheckpointStore {
	return &CheckpointStore{client: client, ttl: ttl, durable: durable}
}

func (s *CheckpointStore) SaveCheckpoint(ctx context.Context, cp domain.Checkpoint) error {
	id := cp.Summary.SessionID
	summary, err := json.Marshal(cp.Summary)
	if err != nil {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.summaryKey(id), summary, s.ttl)
		// the batch replaces the previous one; attempts that dropped out must not come back
		pipe.Del(ctx, s.attemptsKey(id))
		for _, a := range cp.Attempts {
			raw, err := json.Marshal(a)
			if err != nil {
				return err
			}
			pipe.HSet(ctx, s.attemptsKey(id), a.QuestionID, raw)
		}
		if s.ttl > 0 {
			pipe.Expire(ctx, s.attemptsKey(id), s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("cache checkpoint %s: %w", id, err)
	}

	if s.durable != nil {
		return s.durable.SaveCheckpoint(ctx, cp)
	}
	return nil
}

func (s *CheckpointStore) LoadCheckpoint(ctx context.Context, sessionID string) (domain.Checkpoint, error) {
	raw, err := s.client.Get(ctx, s.summaryKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		if s.durable != nil {
			return s.durable.LoadCheckpoint(ctx, sessionID)
		}
		return domain.Checkpoint{}, domain.ErrCheckpointNotFound
	}
	if err != nil {
		return domain.Checkpoint{}, err
	}

	var cp domain.Checkpoint
	if err := json.Unmarshal(raw, &cp.Summary); err != nil {
		return domain.Checkpoint{}, fmt.Errorf("decode checkpoint %s: %w", sessionID, err)
	}

	byID, err := s.client.HGetAll(ctx, s.attemptsKey(sessionID)).Result()
	if err != nil {
		return domain.Checkpoint{}, err
	}
	// keep question order so resumes are deterministic
	for _, qid := range cp.Summary.QuestionOrder {
		rawAttempt, ok := byID[qid]
		if !ok {
			continue
		}
		var a domain.Attempt
		if err := json.Unmarshal([]byte(rawAttempt), &a); err != nil {
			return domain.Checkpoint{}, fmt.Errorf("decode attempt %s: %w", qid, err)
		}
		cp.Attempts = append(cp.Attempts, a)
	}
	return cp, nil
}

func (s *CheckpointStore) summaryKey(sessionID string) string {
	return "exam:checkpoint:" + sessionID
}

func (s *CheckpointStore) attemptsKey(sessionID string) string {
	return "exam:checkpoint:" + sessionID + ":attempts"
}
