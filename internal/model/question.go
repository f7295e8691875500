package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// OptionsPerQuestion is the fixed number of choices of every question (A to D).
const OptionsPerQuestion = 4

// ErrInvalidQuestion is wrapped by every QuestionRecord.Validate failure.
var ErrInvalidQuestion = errors.New("invalid question")

// QuestionRecord is a single multiple-choice question as served by the question bank.
// Records are immutable once loaded; sessions reference them, never copy-and-edit them.
type QuestionRecord struct {
	ID            uuid.UUID `json:"id" yaml:"-"`
	Text          string    `json:"question" yaml:"question"`
	Options       []string  `json:"options" yaml:"options"`
	CorrectOption string    `json:"answer" yaml:"answer"`
	ImageRef      *string   `json:"image,omitempty" yaml:"image,omitempty"`
}

// HasOption reports whether value is one of the record's options.
func (q *QuestionRecord) HasOption(value string) bool {
	for _, opt := range q.Options {
		if opt == value {
			return true
		}
	}
	return false
}

// Validate checks that q has text and exactly OptionsPerQuestion distinct,
// non-blank options, one of which is the correct answer.
func (q *QuestionRecord) Validate() error {
	if strings.TrimSpace(q.Text) == "" {
		return fmt.Errorf("%w: empty question text", ErrInvalidQuestion)
	}
	if len(q.Options) != OptionsPerQuestion {
		return fmt.Errorf("%w: %d options, want %d", ErrInvalidQuestion, len(q.Options), OptionsPerQuestion)
	}
	seen := make(map[string]struct{}, len(q.Options))
	for _, opt := range q.Options {
		if strings.TrimSpace(opt) == "" {
			return fmt.Errorf("%w: blank option", ErrInvalidQuestion)
		}
		if _, dup := seen[opt]; dup {
			return fmt.Errorf("%w: duplicate option %q", ErrInvalidQuestion, opt)
		}
		seen[opt] = struct{}{}
	}
	if !q.HasOption(q.CorrectOption) {
		return fmt.Errorf("%w: answer %q is not one of its options", ErrInvalidQuestion, q.CorrectOption)
	}
	return nil
}

// QuestionForStudent is a question without the correct answer, sent while a session runs.
type QuestionForStudent struct {
	Index    int      `json:"index"`
	Text     string   `json:"question"`
	Options  []string `json:"options"`
	ImageRef *string  `json:"image,omitempty"`
}

// ForStudent strips the correct option from q.
func (q *QuestionRecord) ForStudent(index int) QuestionForStudent {
	return QuestionForStudent{
		Index:    index,
		Text:     q.Text,
		Options:  q.Options,
		ImageRef: q.ImageRef,
	}
}
