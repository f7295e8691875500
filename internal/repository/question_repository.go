package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/mcqprep-backend/internal/model"
)

// QuestionRepository handles question bank access in PostgreSQL.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

// ListBySelection retrieves the questions of one subject/year/board, in order.
// An unknown selection yields an empty slice.
func (r *QuestionRepository) ListBySelection(ctx context.Context, key model.SelectionKey) ([]model.QuestionRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, question_text, options, correct_option, image_ref
		 FROM questions
		 WHERE subject = $1 AND year = $2 AND board = $3
		 ORDER BY position`,
		key.Subject, key.Year, key.Board,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.QuestionRecord
	for rows.Next() {
		var q model.QuestionRecord
		if err := rows.Scan(&q.ID, &q.Text, &q.Options, &q.CorrectOption, &q.ImageRef); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// ListSelections returns every subject/year/board that has at least one question.
func (r *QuestionRepository) ListSelections(ctx context.Context) ([]model.SelectionKey, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT DISTINCT subject, year, board
		 FROM questions
		 ORDER BY subject, year DESC, board`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []model.SelectionKey
	for rows.Next() {
		var k model.SelectionKey
		if err := rows.Scan(&k.Subject, &k.Year, &k.Board); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// ReplaceSelection swaps the question set of key for questions in a single
// transaction. Positions follow slice order. Nothing is written unless every
// question is valid.
func (r *QuestionRepository) ReplaceSelection(ctx context.Context, key model.SelectionKey, questions []model.QuestionRecord) error {
	for i := range questions {
		if err := questions[i].Validate(); err != nil {
			return fmt.Errorf("%s question %d: %w", key, i+1, err)
		}
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM questions WHERE subject = $1 AND year = $2 AND board = $3`,
		key.Subject, key.Year, key.Board,
	); err != nil {
		return fmt.Errorf("delete old questions: %w", err)
	}

	batch := &pgx.Batch{}
	for i, q := range questions {
		batch.Queue(
			`INSERT INTO questions (subject, year, board, position, question_text, options, correct_option, image_ref)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			key.Subject, key.Year, key.Board, i, q.Text, q.Options, q.CorrectOption, q.ImageRef,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert questions: %w", err)
	}

	return tx.Commit(ctx)
}
