package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// AnswerCache keeps in-progress answers in Redis so saves during a quiz
// are cheap. Answers live in a hash per session and expire with the
// session TTL; Submit drains the hash and persists the graded result.
type AnswerCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewAnswerCache(rdb *redis.Client, ttl time.Duration) *AnswerCache {
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}
	return &AnswerCache{rdb: rdb, ttl: ttl}
}

func answersKey(sessionID int64) string {
	return fmt.Sprintf("quizdesk:session:%d:answers", sessionID)
}

func (c *AnswerCache) SaveAnswer(ctx context.Context, sessionID int64, questionID string, payload json.RawMessage) error {
	key := answersKey(sessionID)
	if err := c.rdb.HSet(ctx, key, questionID, string(payload)).Err(); err != nil {
		return fmt.Errorf("cache answer: %w", err)
	}
	if err := c.rdb.Expire(ctx, key, c.ttl).Err(); err != nil {
		return fmt.Errorf("touch answer ttl: %w", err)
	}
	return nil
}

func (c *AnswerCache) Answers(ctx context.Context, sessionID int64) (map[string]json.RawMessage, error) {
	raw, err := c.rdb.HGetAll(ctx, answersKey(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("load answers: %w", err)
	}
	out := make(map[string]json.RawMessage, len(raw))
	for questionID, payload := range raw {
		out[questionID] = json.RawMessage(payload)
	}
	return out, nil
}

func (c *AnswerCache) Clear(ctx context.Context, sessionID int64) error {
	if err := c.rdb.Del(ctx, answersKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("clear answers: %w", err)
	}
	return nil
}
