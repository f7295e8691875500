package quiz

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/stemsi/mcqprep-backend/internal/model"
)

// The helpers in this file are read-only projections of State for the
// presentation layer. Nothing here feeds back into the controller.

// ButtonState is the look of a question in the picker strip.
type ButtonState string

const (
	ButtonCurrent    ButtonState = "current"
	ButtonAnswered   ButtonState = "answered"
	ButtonUnanswered ButtonState = "unanswered"
)

// Action is what the primary button does.
type Action string

const (
	ActionNext   Action = "next"
	ActionSubmit Action = "submit"
	ActionNone   Action = "none"
)

// QuestionButton is one entry in the picker strip.
type QuestionButton struct {
	Index    int         `json:"index"`
	Label    string      `json:"label"`
	State    ButtonState `json:"state"`
	Disabled bool        `json:"disabled"`
}

// OptionView is one selectable option of the current question.
type OptionView struct {
	Letter   string `json:"letter"`
	Value    string `json:"value"`
	Selected bool   `json:"selected"`
	Disabled bool   `json:"disabled"`
}

// View bundles every projection the quiz screen needs.
type View struct {
	Title         string                    `json:"title"`
	Subtitle      string                    `json:"subtitle"`
	Clock         string                    `json:"clock"`
	Progress      string                    `json:"progress,omitempty"`
	Question      *model.QuestionForStudent `json:"question,omitempty"`
	Options       []OptionView              `json:"options,omitempty"`
	Buttons       []QuestionButton          `json:"buttons,omitempty"`
	PrimaryAction Action                    `json:"primary_action"`
	Message       string                    `json:"message,omitempty"`
}

// FormatClock renders seconds as zero-padded mm:ss.
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

// DisplayName turns a slug such as "physics-1st" into "physics 1st".
func DisplayName(slug string) string {
	return strings.ReplaceAll(slug, "-", " ")
}

// StatusMessage is the user-facing text for a non-ready status.
func StatusMessage(status LoadStatus) string {
	switch status {
	case StatusLoading:
		return "Loading questions..."
	case StatusMissingSelection:
		return "Please select a subject, year, and board to view questions."
	case StatusNotFound:
		return "No questions found for this subject, year, and board. Please check your selection."
	case StatusLoadFailed:
		return "Error loading questions. Please try again."
	default:
		return ""
	}
}

// QuestionButtons projects the picker strip.
func QuestionButtons(s State) []QuestionButton {
	buttons := make([]QuestionButton, s.TotalQuestions)
	for i := range buttons {
		state := ButtonUnanswered
		switch {
		case i == s.CurrentIndex:
			state = ButtonCurrent
		case s.Answers[i] != "":
			state = ButtonAnswered
		}
		buttons[i] = QuestionButton{
			Index:    i,
			Label:    strconv.Itoa(i + 1),
			State:    state,
			Disabled: s.Submitted,
		}
	}
	return buttons
}

// OptionViews projects the options of the current question. Once the question
// is answered every option is disabled.
func OptionViews(s State) []OptionView {
	q := s.Current()
	if q == nil {
		return nil
	}

	chosen, answered := s.Answers[s.CurrentIndex]
	views := make([]OptionView, len(q.Options))
	for i, opt := range q.Options {
		views[i] = OptionView{
			Letter:   string(rune('A' + i)),
			Value:    opt,
			Selected: answered && chosen == opt,
			Disabled: answered || s.Submitted,
		}
	}
	return views
}

// PrimaryAction reports what the Next/Submit button does.
func PrimaryAction(s State) Action {
	if s.Status != StatusReady || s.Submitted {
		return ActionNone
	}
	if s.CurrentIndex == s.TotalQuestions-1 {
		return ActionSubmit
	}
	return ActionNext
}

// Project builds the full screen view of s.
func Project(s State) View {
	v := View{
		Title:         fmt.Sprintf("%s MCQ Test", DisplayName(s.Selection.Subject)),
		Subtitle:      fmt.Sprintf("(%s Board %s)", DisplayName(s.Selection.Board), s.Selection.Year),
		Clock:         FormatClock(s.TimeRemaining),
		PrimaryAction: PrimaryAction(s),
		Message:       StatusMessage(s.Status),
	}

	if q := s.Current(); q != nil {
		fs := q.ForStudent(s.CurrentIndex)
		v.Question = &fs
		v.Progress = fmt.Sprintf("Question %d of %d", s.CurrentIndex+1, s.TotalQuestions)
		v.Options = OptionViews(s)
		v.Buttons = QuestionButtons(s)
	}
	return v
}
