package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/google/uuid"
	"github.com/stemsi/mcqprep-backend/internal/model"
	"gopkg.in/yaml.v3"
)

// questionNamespace seeds the deterministic IDs of file-backed questions.
var questionNamespace = uuid.MustParse("6f1c7a52-3d0e-4b8e-9a57-2f4b8c1d9e30")

// questionDataset is the three-level layout of a question file:
//
//	physics-1st:
//	  "2023":
//	    dhaka:
//	      - question: Unit of force?
//	        options: [Newton, Joule, Watt, Pascal]
//	        answer: Newton
type questionDataset map[string]map[string]map[string][]model.QuestionRecord

// QuestionFileRepository serves a read-only question dataset loaded from YAML.
type QuestionFileRepository struct {
	data questionDataset
}

// NewQuestionFileRepository loads and validates the dataset at path.
func NewQuestionFileRepository(path string) (*QuestionFileRepository, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open question file: %w", err)
	}
	defer f.Close()

	return ParseQuestionFile(f)
}

// ParseQuestionFile decodes and validates a dataset from r.
func ParseQuestionFile(r io.Reader) (*QuestionFileRepository, error) {
	var data questionDataset
	if err := yaml.NewDecoder(r).Decode(&data); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode question file: %w", err)
	}

	for subject, years := range data {
		for year, boards := range years {
			for board, questions := range boards {
				key := model.SelectionKey{Subject: subject, Year: year, Board: board}
				for i := range questions {
					q := &questions[i]
					if err := q.Validate(); err != nil {
						return nil, fmt.Errorf("%s question %d: %w", key, i+1, err)
					}
					q.ID = uuid.NewSHA1(questionNamespace, []byte(key.String()+"#"+strconv.Itoa(i)))
				}
			}
		}
	}

	return &QuestionFileRepository{data: data}, nil
}

// ListBySelection returns the questions of key. An unknown selection yields
// an empty slice.
func (r *QuestionFileRepository) ListBySelection(_ context.Context, key model.SelectionKey) ([]model.QuestionRecord, error) {
	questions := r.data[key.Subject][key.Year][key.Board]
	out := make([]model.QuestionRecord, len(questions))
	copy(out, questions)
	return out, nil
}

// ListSelections returns every subject/year/board with at least one question,
// ordered like QuestionRepository.ListSelections.
func (r *QuestionFileRepository) ListSelections(_ context.Context) ([]model.SelectionKey, error) {
	var keys []model.SelectionKey
	for subject, years := range r.data {
		for year, boards := range years {
			for board, questions := range boards {
				if len(questions) > 0 {
					keys = append(keys, model.SelectionKey{Subject: subject, Year: year, Board: board})
				}
			}
		}
	}

	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.Subject != b.Subject {
			return a.Subject < b.Subject
		}
		if a.Year != b.Year {
			return a.Year > b.Year
		}
		return a.Board < b.Board
	})
	return keys, nil
}

// Selections returns every question set in the file, for seeding.
func (r *QuestionFileRepository) Selections() map[model.SelectionKey][]model.QuestionRecord {
	out := make(map[model.SelectionKey][]model.QuestionRecord)
	for subject, years := range r.data {
		for year, boards := range years {
			for board, questions := range boards {
				out[model.SelectionKey{Subject: subject, Year: year, Board: board}] = questions
			}
		}
	}
	return out
}
