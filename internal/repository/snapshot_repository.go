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

// Snapshot hash fields.
const (
	snapshotFieldSubject = "quizSubject"
	snapshotFieldTime    = "quizTimeLeft"
	snapshotFieldAnswers = "quizAnswers"
	snapshotFieldIndex   = "quizCurrentIndex"
)

// SnapshotRepository keeps the in-progress snapshot of each session in a Redis hash.
type SnapshotRepository struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewSnapshotRepository creates a new SnapshotRepository. Snapshots expire
// after ttl even if their session never clears them.
func NewSnapshotRepository(rdb *redis.Client, ttl time.Duration) *SnapshotRepository {
	return &SnapshotRepository{rdb: rdb, ttl: ttl}
}

// For returns the snapshot store of one session.
func (r *SnapshotRepository) For(sessionID string) quiz.SnapshotStore {
	return &sessionSnapshot{repo: r, key: config.CacheKey.SessionSnapshotKey(sessionID)}
}

type sessionSnapshot struct {
	repo *SnapshotRepository
	key  string
}

func (s *sessionSnapshot) Save(ctx context.Context, snap quiz.Snapshot) error {
	answers, err := json.Marshal(snap.Answers)
	if err != nil {
		return err
	}

	_, err = s.repo.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.key,
			snapshotFieldSubject, snap.Subject,
			snapshotFieldTime, snap.TimeRemaining,
			snapshotFieldAnswers, answers,
			snapshotFieldIndex, snap.CurrentIndex,
		)
		pipe.Expire(ctx, s.key, s.repo.ttl)
		return nil
	})
	return err
}

func (s *sessionSnapshot) Clear(ctx context.Context) error {
	err := s.repo.rdb.Del(ctx, s.key).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}
