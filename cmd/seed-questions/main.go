package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/stemsi/mcqprep-backend/internal/config"
	"github.com/stemsi/mcqprep-backend/internal/database"
	"github.com/stemsi/mcqprep-backend/internal/logger"
	"github.com/stemsi/mcqprep-backend/internal/model"
	"github.com/stemsi/mcqprep-backend/internal/repository"
	"github.com/stemsi/mcqprep-backend/internal/service"
)

// seed-questions imports a YAML question dataset into PostgreSQL, replacing
// every question set it contains, then drops the cached copies in Redis.
//
// Usage: seed-questions [path/to/questions.yaml]
func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	path := cfg.QuestionsFile
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	// ─── Load Dataset ──────────────────────────────────────────────────
	fileRepo, err := repository.NewQuestionFileRepository(path)
	if err != nil {
		log.Fatal().Err(err).Str("file", path).Msg("Failed to load question file")
	}
	sets := fileRepo.Selections()

	keys := make([]model.SelectionKey, 0, len(sets))
	for k := range sets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	questionRepo := repository.NewQuestionRepository(pool)

	fmt.Printf("=== Seeding %d question sets from %s ===\n", len(keys), path)

	total := 0
	for _, key := range keys {
		questions := sets[key]
		if err := questionRepo.ReplaceSelection(ctx, key, questions); err != nil {
			log.Fatal().Err(err).Str("selection", key.String()).Msg("Failed to import question set")
		}
		total += len(questions)
		fmt.Printf("  %-40s %3d questions\n", key, len(questions))
	}

	// ─── Invalidate Cache ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Warn().Err(err).Msg("Redis unavailable, cached question sets were not invalidated")
	} else {
		defer rdb.Close()
		questionService := service.NewQuestionService(questionRepo, rdb, log)
		if err := questionService.InvalidateAll(ctx); err != nil {
			log.Warn().Err(err).Msg("Failed to invalidate question cache")
		}
	}

	fmt.Printf("=== Done: %d questions imported ===\n", total)
}
