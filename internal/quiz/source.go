package quiz

import (
	"context"
	"errors"

	"github.com/stemsi/mcqprep-backend/internal/model"
)

// ErrQuestionsNotFound is returned by a QuestionSource when nothing is stored
// under the requested selection.
var ErrQuestionsNotFound = errors.New("no questions for selection")

// QuestionSource resolves a selection to its ordered question sequence.
// It is queried once per session initialisation and must not mutate the
// returned records afterwards.
type QuestionSource interface {
	Questions(ctx context.Context, key model.SelectionKey) ([]model.QuestionRecord, error)
}

// Snapshot is the transient, same-device copy of a running session.
type Snapshot struct {
	Subject       string         `json:"subject"`
	TimeRemaining int            `json:"time_left"`
	Answers       map[int]string `json:"answers"`
	CurrentIndex  int            `json:"current_index"`
}

// SnapshotStore persists the snapshot of a single session. The controller
// acquires it when the session becomes ready and clears it on every exit path.
type SnapshotStore interface {
	Save(ctx context.Context, snap Snapshot) error
	Clear(ctx context.Context) error
}

type nopSnapshots struct{}

func (nopSnapshots) Save(context.Context, Snapshot) error { return nil }
func (nopSnapshots) Clear(context.Context) error          { return nil }
