package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/mcqprep-backend/internal/model"
	"github.com/stemsi/mcqprep-backend/internal/quiz"
)

// manualScheduler queues callbacks until the test fires them.
type manualScheduler struct {
	mu      sync.Mutex
	pending []*manualHandle
}

type manualHandle struct {
	s       *manualScheduler
	fn      func()
	repeat  bool
	stopped bool
}

func (h *manualHandle) Stop() {
	h.s.mu.Lock()
	h.stopped = true
	h.s.mu.Unlock()
}

func (m *manualScheduler) Every(_ time.Duration, fn func()) quiz.Handle {
	return m.add(fn, true)
}

func (m *manualScheduler) After(_ time.Duration, fn func()) quiz.Handle {
	return m.add(fn, false)
}

func (m *manualScheduler) add(fn func(), repeat bool) quiz.Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := &manualHandle{s: m, fn: fn, repeat: repeat}
	m.pending = append(m.pending, h)
	return h
}

// flushDeliveries fires every pending one-shot callback.
func (m *manualScheduler) flushDeliveries() {
	m.mu.Lock()
	var fns []func()
	for _, h := range m.pending {
		if !h.repeat && !h.stopped {
			h.stopped = true
			fns = append(fns, h.fn)
		}
	}
	m.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

type staticSource map[model.SelectionKey][]model.QuestionRecord

func (s staticSource) Questions(_ context.Context, key model.SelectionKey) ([]model.QuestionRecord, error) {
	qs, ok := s[key]
	if !ok {
		return nil, quiz.ErrQuestionsNotFound
	}
	return qs, nil
}

type memResults struct {
	mu   sync.Mutex
	data map[string]quiz.Outcome
}

func (m *memResults) Save(_ context.Context, id string, o quiz.Outcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[id] = o
	return nil
}

func (m *memResults) Get(_ context.Context, id string) (*quiz.Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.data[id]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

var chemistry = model.SelectionKey{Subject: "chemistry", Year: "2023", Board: "dhaka"}

func newTestSessionService(t *testing.T) (*QuizSessionService, *manualScheduler, *memResults, *TicketService) {
	t.Helper()
	sched := &manualScheduler{}
	results := &memResults{data: map[string]quiz.Outcome{}}
	tickets := NewTicketService("test-secret", time.Hour)
	source := staticSource{
		chemistry: {
			{Text: "Symbol of sodium?", Options: []string{"S", "Na", "So", "N"}, CorrectOption: "Na"},
			{Text: "Symbol of iron?", Options: []string{"Fe", "Ir", "I", "F"}, CorrectOption: "Fe"},
		},
	}
	svc := NewQuizSessionService(source, nil, results, tickets, SessionSettings{Scheduler: sched}, zerolog.Nop())
	return svc, sched, results, tickets
}

func TestQuizSessionService_Start(t *testing.T) {
	svc, _, _, tickets := newTestSessionService(t)

	started, err := svc.Start(context.Background(), chemistry)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if started.State.Status != quiz.StatusReady {
		t.Fatalf("expected READY, got %s", started.State.Status)
	}
	if started.State.TimeRemaining != 1500 {
		t.Errorf("expected 1500s budget, got %d", started.State.TimeRemaining)
	}
	if started.View.Title != "chemistry MCQ Test" {
		t.Errorf("unexpected title %q", started.View.Title)
	}

	claims, err := tickets.Validate(started.Ticket)
	if err != nil {
		t.Fatalf("ticket: %v", err)
	}
	if claims.SessionID != started.SessionID {
		t.Errorf("ticket bound to %q, want %q", claims.SessionID, started.SessionID)
	}
	if svc.Count() != 1 {
		t.Errorf("expected 1 live session, got %d", svc.Count())
	}
}

func TestQuizSessionService_StartWithoutSelection(t *testing.T) {
	svc, _, _, _ := newTestSessionService(t)

	started, err := svc.Start(context.Background(), model.SelectionKey{Subject: "chemistry"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if started.State.Status != quiz.StatusMissingSelection {
		t.Fatalf("expected MISSING_SELECTION, got %s", started.State.Status)
	}
	if _, _, err := svc.SelectAnswer(started.SessionID, "Na"); !errors.Is(err, quiz.ErrNotReady) {
		t.Errorf("expected ErrNotReady, got %v", err)
	}

	view, err := svc.Reselect(context.Background(), started.SessionID, chemistry)
	if err != nil {
		t.Fatalf("reselect: %v", err)
	}
	if view.State.Status != quiz.StatusReady {
		t.Errorf("expected READY after reselect, got %s", view.State.Status)
	}
}

func TestQuizSessionService_FullRun(t *testing.T) {
	svc, sched, results, _ := newTestSessionService(t)
	ctx := context.Background()

	started, _ := svc.Start(ctx, chemistry)
	id := started.SessionID

	events, cancel, err := svc.Subscribe(id)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	if changed, _, err := svc.SelectAnswer(id, "Na"); err != nil || !changed {
		t.Fatalf("answer: changed=%v err=%v", changed, err)
	}
	if changed, _, _ := svc.SelectAnswer(id, "S"); changed {
		t.Error("second answer to the same question should not change anything")
	}

	submitted, view, err := svc.Advance(id)
	if err != nil || submitted {
		t.Fatalf("advance from first question: submitted=%v err=%v", submitted, err)
	}
	if view.State.CurrentIndex != 1 || view.View.PrimaryAction != quiz.ActionSubmit {
		t.Fatalf("expected last question with submit action, got %+v", view.View)
	}

	if _, _, err := svc.SelectAnswer(id, "Ir"); err != nil {
		t.Fatalf("answer: %v", err)
	}
	if submitted, _, _ := svc.Advance(id); !submitted {
		t.Fatal("advance on last question should submit")
	}

	if _, err := svc.Result(ctx, id); !errors.Is(err, ErrResultNotReady) {
		t.Errorf("expected ErrResultNotReady before delivery, got %v", err)
	}

	sched.flushDeliveries()

	outcome, err := svc.Result(ctx, id)
	if err != nil {
		t.Fatalf("result: %v", err)
	}
	if outcome.Score.CorrectCount != 1 || outcome.Score.Percentage != 50 || outcome.Score.Passed {
		t.Errorf("unexpected score %+v", outcome.Score)
	}
	if outcome.Trigger != quiz.TriggerManual {
		t.Errorf("expected manual trigger, got %s", outcome.Trigger)
	}
	if _, ok := results.data[id]; !ok {
		t.Error("expected the outcome to be stored")
	}

	var graded bool
	for len(events) > 0 {
		if ev := <-events; ev.Kind == EventGraded {
			graded = ev.Outcome != nil
		}
	}
	if !graded {
		t.Error("expected a graded event with the outcome")
	}
}

func TestQuizSessionService_CloseAfterSubmitStillGrades(t *testing.T) {
	svc, sched, _, _ := newTestSessionService(t)
	ctx := context.Background()

	started, _ := svc.Start(ctx, chemistry)
	id := started.SessionID

	events, cancel, _ := svc.Subscribe(id)
	defer cancel()

	if _, _, err := svc.Submit(id); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := svc.Close(id); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := svc.State(id); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected closed session to be gone, got %v", err)
	}

	sched.flushDeliveries()

	outcome, err := svc.Result(ctx, id)
	if err != nil {
		t.Fatalf("result after close: %v", err)
	}
	if outcome.Score.CorrectCount != 0 {
		t.Errorf("expected nothing correct, got %d", outcome.Score.CorrectCount)
	}

	var sawGraded bool
	for ev := range events {
		if ev.Kind == EventGraded {
			sawGraded = true
		}
	}
	if !sawGraded {
		t.Error("subscriber should see the graded event before the stream ends")
	}
}

func TestQuizSessionService_Errors(t *testing.T) {
	svc, _, _, _ := newTestSessionService(t)
	ctx := context.Background()

	if _, err := svc.State("missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
	if _, err := svc.Result(ctx, "missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}

	started, _ := svc.Start(ctx, chemistry)
	if _, err := svc.GoTo(started.SessionID, 5); !errors.Is(err, quiz.ErrIndexOutOfRange) {
		t.Errorf("expected ErrIndexOutOfRange, got %v", err)
	}
	if _, _, err := svc.SelectAnswer(started.SessionID, "Gold"); !errors.Is(err, quiz.ErrUnknownOption) {
		t.Errorf("expected ErrUnknownOption, got %v", err)
	}

	unknown, _ := svc.Start(ctx, model.SelectionKey{Subject: "biology", Year: "2023", Board: "dhaka"})
	if unknown.State.Status != quiz.StatusNotFound {
		t.Errorf("expected NOT_FOUND, got %s", unknown.State.Status)
	}
	if _, _, err := svc.Submit(unknown.SessionID); !errors.Is(err, quiz.ErrNotReady) {
		t.Errorf("expected ErrNotReady, got %v", err)
	}
}

func TestQuizSessionService_ReapIdle(t *testing.T) {
	svc, _, _, _ := newTestSessionService(t)
	started, _ := svc.Start(context.Background(), chemistry)

	events, _, _ := svc.Subscribe(started.SessionID)

	if n := svc.ReapIdle(time.Hour); n != 0 {
		t.Fatalf("fresh session should not be reaped, reaped %d", n)
	}
	if n := svc.ReapIdle(-time.Second); n != 1 {
		t.Fatalf("expected 1 reaped session, got %d", n)
	}
	if svc.Count() != 0 {
		t.Errorf("expected no live sessions, got %d", svc.Count())
	}

	for range events {
	}
}

func TestQuizSessionService_Shutdown(t *testing.T) {
	svc, _, results, _ := newTestSessionService(t)
	started, _ := svc.Start(context.Background(), chemistry)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc.Shutdown(ctx)

	if svc.Count() != 0 {
		t.Errorf("expected every session closed, got %d", svc.Count())
	}
	if _, ok := results.data[started.SessionID]; ok {
		t.Error("undelivered session should not have a stored result yet")
	}
}

func TestQuizSessionService_ShutdownWaitsForDelivery(t *testing.T) {
	results := &memResults{data: map[string]quiz.Outcome{}}
	source := staticSource{chemistry: {{Text: "q", Options: []string{"a", "b"}, CorrectOption: "a"}}}
	svc := NewQuizSessionService(source, nil, results, NewTicketService("s", time.Hour),
		SessionSettings{SubmitDelay: time.Millisecond}, zerolog.Nop())

	started, err := svc.Start(context.Background(), chemistry)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	svc.Shutdown(ctx)

	results.mu.Lock()
	outcome, ok := results.data[started.SessionID]
	results.mu.Unlock()
	if !ok {
		t.Fatal("expected the aborted session to be graded before shutdown returned")
	}
	if outcome.Trigger != quiz.TriggerAbort {
		t.Errorf("expected abort trigger, got %s", outcome.Trigger)
	}
}

func TestQuizSessionService_ReselectSameKeyKeepsProgress(t *testing.T) {
	svc, _, _, _ := newTestSessionService(t)
	ctx := context.Background()

	started, _ := svc.Start(ctx, chemistry)
	id := started.SessionID
	svc.SelectAnswer(id, "Na")
	svc.Next(id)

	view, err := svc.Reselect(ctx, id, chemistry)
	if err != nil {
		t.Fatalf("reselect: %v", err)
	}
	if view.State.Answers[0] != "Na" || view.State.CurrentIndex != 1 {
		t.Errorf("expected progress to be kept, got %+v", view.State)
	}
}

func TestLiveSession_BroadcastOrdering(t *testing.T) {
	sess := &liveSession{id: "s", subs: make(map[int]chan SessionEvent)}
	events, cancel := sess.subscribe()
	defer cancel()

	submitted := quiz.State{Status: quiz.StatusReady, Submitted: true}
	closed := submitted
	closed.Closed = true

	sess.broadcast(SessionEvent{Seq: 2, Kind: quiz.EventAnswered})
	sess.broadcast(SessionEvent{Seq: 1, Kind: quiz.EventTick})
	sess.broadcast(SessionEvent{Seq: 3, Kind: quiz.EventSubmitted, State: submitted})
	// Close won the race against the delivery of the result.
	sess.broadcast(SessionEvent{Seq: 5, Kind: quiz.EventClosed, State: closed})
	sess.broadcast(SessionEvent{Seq: 4, Kind: EventGraded, State: submitted, Outcome: &quiz.Outcome{}})

	var kinds []quiz.EventKind
	for ev := range events {
		kinds = append(kinds, ev.Kind)
	}

	want := []quiz.EventKind{quiz.EventAnswered, quiz.EventSubmitted, quiz.EventClosed, EventGraded}
	if len(kinds) != len(want) {
		t.Fatalf("expected %v, got %v", want, kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("event %d: expected %s, got %s", i, want[i], kinds[i])
		}
	}
}
