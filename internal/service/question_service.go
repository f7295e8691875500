package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/mcqprep-backend/internal/config"
	"github.com/stemsi/mcqprep-backend/internal/model"
	"github.com/stemsi/mcqprep-backend/internal/quiz"
)

const questionCacheTTL = 24 * time.Hour

// QuestionStore is a question bank backend.
type QuestionStore interface {
	ListBySelection(ctx context.Context, key model.SelectionKey) ([]model.QuestionRecord, error)
	ListSelections(ctx context.Context) ([]model.SelectionKey, error)
}

// QuestionService serves question sets and the selection catalog, caching
// both in Redis. A nil Redis client disables caching.
type QuestionService struct {
	store QuestionStore
	rdb   *redis.Client
	log   zerolog.Logger
}

// NewQuestionService creates a new QuestionService.
func NewQuestionService(store QuestionStore, rdb *redis.Client, log zerolog.Logger) *QuestionService {
	return &QuestionService{
		store: store,
		rdb:   rdb,
		log:   log.With().Str("component", "question_service").Logger(),
	}
}

// Questions returns the question set of key, reporting quiz.ErrQuestionsNotFound
// when the selection has none.
func (s *QuestionService) Questions(ctx context.Context, key model.SelectionKey) ([]model.QuestionRecord, error) {
	cacheKey := config.CacheKey.QuestionSetKey(key.Subject, key.Year, key.Board)

	if s.rdb != nil {
		data, err := s.rdb.Get(ctx, cacheKey).Bytes()
		switch {
		case err == nil:
			var questions []model.QuestionRecord
			if err := json.Unmarshal(data, &questions); err == nil && len(questions) > 0 {
				return questions, nil
			}
			s.log.Warn().Str("key", cacheKey).Msg("Dropping unreadable cached question set")
		case !errors.Is(err, redis.Nil):
			s.log.Warn().Err(err).Str("key", cacheKey).Msg("Question cache unavailable, reading store")
		}
	}

	questions, err := s.store.ListBySelection(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	if len(questions) == 0 {
		return nil, quiz.ErrQuestionsNotFound
	}

	s.cache(ctx, cacheKey, questions)
	return questions, nil
}

// Catalog returns subjects with their years and boards, in store order.
func (s *QuestionService) Catalog(ctx context.Context) ([]model.CatalogSubject, error) {
	cacheKey := config.CacheKey.CatalogKey()

	if s.rdb != nil {
		if data, err := s.rdb.Get(ctx, cacheKey).Bytes(); err == nil {
			var catalog []model.CatalogSubject
			if err := json.Unmarshal(data, &catalog); err == nil {
				return catalog, nil
			}
		}
	}

	keys, err := s.store.ListSelections(ctx)
	if err != nil {
		return nil, fmt.Errorf("list selections: %w", err)
	}

	catalog := BuildCatalog(keys)
	s.cache(ctx, cacheKey, catalog)
	return catalog, nil
}

// PrewarmAllCaches loads every question set and the catalog into Redis on
// application startup.
func (s *QuestionService) PrewarmAllCaches(ctx context.Context) error {
	if s.rdb == nil {
		return nil
	}

	keys, err := s.store.ListSelections(ctx)
	if err != nil {
		return fmt.Errorf("list selections: %w", err)
	}

	if len(keys) == 0 {
		s.log.Info().Msg("No question sets to prewarm")
		return nil
	}

	s.log.Info().Int("count", len(keys)).Msg("Prewarming question sets...")

	warmed := 0
	for _, key := range keys {
		questions, err := s.store.ListBySelection(ctx, key)
		if err != nil || len(questions) == 0 {
			s.log.Warn().
				Err(err).
				Str("selection", key.String()).
				Msg("Failed to warm question set, skipping")
			continue
		}
		s.cache(ctx, config.CacheKey.QuestionSetKey(key.Subject, key.Year, key.Board), questions)
		warmed++
	}
	s.cache(ctx, config.CacheKey.CatalogKey(), BuildCatalog(keys))

	s.log.Info().
		Int("warmed", warmed).
		Int("total", len(keys)).
		Msg("Prewarming complete")
	return nil
}

// InvalidateAll drops every cached question set and the catalog.
func (s *QuestionService) InvalidateAll(ctx context.Context) error {
	if s.rdb == nil {
		return nil
	}

	keys := []string{config.CacheKey.CatalogKey()}
	iter := s.rdb.Scan(ctx, 0, config.CacheKey.QuestionSetPattern(), 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan question cache: %w", err)
	}

	return s.rdb.Del(ctx, keys...).Err()
}

func (s *QuestionService) cache(ctx context.Context, key string, v interface{}) {
	if s.rdb == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := s.rdb.Set(ctx, key, data, questionCacheTTL).Err(); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Failed to cache")
	}
}

// BuildCatalog groups selection keys by subject and year, keeping first-seen order.
func BuildCatalog(keys []model.SelectionKey) []model.CatalogSubject {
	var catalog []model.CatalogSubject
	subjectIdx := map[string]int{}
	yearIdx := map[string]int{}

	for _, k := range keys {
		si, ok := subjectIdx[k.Subject]
		if !ok {
			si = len(catalog)
			subjectIdx[k.Subject] = si
			catalog = append(catalog, model.CatalogSubject{
				Subject: k.Subject,
				Name:    quiz.DisplayName(k.Subject),
			})
		}

		subj := &catalog[si]
		yk := k.Subject + "/" + k.Year
		yi, ok := yearIdx[yk]
		if !ok {
			yi = len(subj.Years)
			yearIdx[yk] = yi
			subj.Years = append(subj.Years, model.CatalogYear{Year: k.Year})
		}
		subj.Years[yi].Boards = append(subj.Years[yi].Boards, k.Board)
	}
	return catalog
}
