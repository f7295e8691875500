package websocket

import (
	"github.com/stemsi/mcqprep-backend/internal/quiz"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAnswer  Action = "answer"
	ActionNext    Action = "next"
	ActionGoTo    Action = "goto"
	ActionAdvance Action = "advance"
	ActionSubmit  Action = "submit"
	ActionPing    Action = "ping"
)

// Request is any client message. Option is set for answer, Index for goto.
type Request struct {
	Action Action `json:"action"`
	Option string `json:"option,omitempty"`
	Index  *int   `json:"index,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventState     Event = "state"
	EventTick      Event = "tick"
	EventSubmitted Event = "submitted"
	EventGraded    Event = "graded"
	EventClosed    Event = "closed"
	EventError     Event = "error"
	EventPong      Event = "pong"
)

// StateResponse carries the full session after a change. Seq orders pushed
// states; direct replies to a command that changed nothing carry none.
type StateResponse struct {
	Event   Event      `json:"event"`
	Seq     uint64     `json:"seq,omitempty"`
	Changed bool       `json:"changed"`
	State   quiz.State `json:"state"`
	View    quiz.View  `json:"view"`
}

// TickResponse is sent once per second while the countdown runs.
type TickResponse struct {
	Event         Event  `json:"event"`
	Seq           uint64 `json:"seq"`
	TimeRemaining int    `json:"time_remaining"`
	Clock         string `json:"clock"`
}

// SubmittedResponse announces that the session is frozen and grading follows.
type SubmittedResponse struct {
	Event   Event              `json:"event"`
	Trigger quiz.SubmitTrigger `json:"trigger"`
}

// GradedResponse carries the review payload.
type GradedResponse struct {
	Event   Event        `json:"event"`
	Outcome quiz.Outcome `json:"outcome"`
}

type ClosedResponse struct {
	Event Event `json:"event"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Code  string `json:"code,omitempty"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
