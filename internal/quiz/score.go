package quiz

import (
	"math"
	"time"

	"github.com/stemsi/mcqprep-backend/internal/model"
)

// DefaultPassThreshold is the minimum percentage that passes a quiz.
const DefaultPassThreshold = 60.0

const (
	passedMessage = "Congratulations! You passed the quiz."
	failedMessage = "Better luck next time!"
)

// ReviewItem is one row of the detailed review.
type ReviewItem struct {
	Index         int     `json:"index"`
	Question      string  `json:"question"`
	ImageRef      *string `json:"image,omitempty"`
	UserAnswer    string  `json:"user_answer"`
	Answered      bool    `json:"answered"`
	Correct       bool    `json:"correct"`
	CorrectOption string  `json:"correct_answer"`
}

// Score is the graded outcome of a Result.
type Score struct {
	CorrectCount   int          `json:"correct_count"`
	TotalQuestions int          `json:"total_questions"`
	Percentage     float64      `json:"percentage"`
	Passed         bool         `json:"passed"`
	Message        string       `json:"message"`
	Review         []ReviewItem `json:"review"`
}

// Grade scores r. Percentage is rounded to two decimals before it is compared
// with threshold.
func Grade(r Result, threshold float64) Score {
	review := make([]ReviewItem, 0, len(r.Questions))
	correct := 0

	for i, q := range r.Questions {
		item := gradeOne(i, q, r.Answers[i])
		if item.Correct {
			correct++
		}
		review = append(review, item)
	}

	var pct float64
	if r.TotalQuestions > 0 {
		pct = math.Round(float64(correct)/float64(r.TotalQuestions)*100*100) / 100
	}
	passed := r.TotalQuestions > 0 && pct >= threshold

	msg := failedMessage
	if passed {
		msg = passedMessage
	}

	return Score{
		CorrectCount:   correct,
		TotalQuestions: r.TotalQuestions,
		Percentage:     pct,
		Passed:         passed,
		Message:        msg,
		Review:         review,
	}
}

func gradeOne(index int, q model.QuestionRecord, answer string) ReviewItem {
	return ReviewItem{
		Index:         index,
		Question:      q.Text,
		ImageRef:      q.ImageRef,
		UserAnswer:    answer,
		Answered:      answer != "",
		Correct:       answer != "" && answer == q.CorrectOption,
		CorrectOption: q.CorrectOption,
	}
}

// Outcome is a graded session as kept for the review screen.
type Outcome struct {
	Result   Result        `json:"result"`
	Score    Score         `json:"score"`
	Trigger  SubmitTrigger `json:"submit_trigger"`
	GradedAt time.Time     `json:"graded_at"`
}
