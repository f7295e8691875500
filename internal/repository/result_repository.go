package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/mcqprep-backend/internal/config"
	"github.com/stemsi/mcqprep-backend/internal/quiz"
)

// ResultRepository keeps graded outcomes in Redis until they expire.
type ResultRepository struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewResultRepository creates a new ResultRepository.
func NewResultRepository(rdb *redis.Client, ttl time.Duration) *ResultRepository {
	return &ResultRepository{rdb: rdb, ttl: ttl}
}

// Save stores the outcome of a session.
func (r *ResultRepository) Save(ctx context.Context, sessionID string, outcome quiz.Outcome) error {
	raw, err := json.Marshal(outcome)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, config.CacheKey.SessionResultKey(sessionID), raw, r.ttl).Err()
}

// Get returns the outcome of a session, or nil if none is stored.
func (r *ResultRepository) Get(ctx context.Context, sessionID string) (*quiz.Outcome, error) {
	raw, err := r.rdb.Get(ctx, config.CacheKey.SessionResultKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var outcome quiz.Outcome
	if err := json.Unmarshal(raw, &outcome); err != nil {
		return nil, err
	}
	return &outcome, nil
}
