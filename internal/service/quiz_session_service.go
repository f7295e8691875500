package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/mcqprep-backend/internal/model"
	"github.com/stemsi/mcqprep-backend/internal/quiz"
)

// Session errors.
var (
	ErrSessionNotFound = errors.New("quiz session not found")
	ErrResultNotReady  = errors.New("result not delivered yet")
)

// EventGraded follows quiz.EventDelivered once the result has been scored.
const EventGraded quiz.EventKind = "graded"

const (
	subscriberBuffer   = 32
	outcomeSaveTimeout = 3 * time.Second
	shutdownPoll       = 20 * time.Millisecond
)

// SnapshotProvider hands out the snapshot store of one session.
type SnapshotProvider interface {
	For(sessionID string) quiz.SnapshotStore
}

// ResultStore keeps graded outcomes after their session is gone.
type ResultStore interface {
	Save(ctx context.Context, sessionID string, outcome quiz.Outcome) error
	Get(ctx context.Context, sessionID string) (*quiz.Outcome, error)
}

// SessionSettings tunes every session the service creates.
type SessionSettings struct {
	Duration      time.Duration
	SubmitDelay   time.Duration
	PassThreshold float64
	// Scheduler defaults to the wall clock.
	Scheduler quiz.Scheduler
}

// SessionView is what clients see of a session.
type SessionView struct {
	SessionID string     `json:"session_id"`
	State     quiz.State `json:"state"`
	View      quiz.View  `json:"view"`
}

// StartedSession is returned once when a session is created.
type StartedSession struct {
	SessionView
	Ticket          string    `json:"ticket"`
	TicketExpiresAt time.Time `json:"ticket_expires_at"`
}

// SessionEvent is pushed to subscribers of a session.
type SessionEvent struct {
	Seq     uint64         `json:"seq"`
	Kind    quiz.EventKind `json:"kind"`
	State   quiz.State     `json:"state"`
	Outcome *quiz.Outcome  `json:"outcome,omitempty"`
}

// QuizSessionService hosts live quiz sessions keyed by ID.
type QuizSessionService struct {
	questions quiz.QuestionSource
	snapshots SnapshotProvider
	results   ResultStore
	tickets   *TicketService
	settings  SessionSettings
	log       zerolog.Logger

	mu       sync.RWMutex
	sessions map[string]*liveSession
}

// NewQuizSessionService creates a new QuizSessionService. snapshots and
// results may be nil.
func NewQuizSessionService(
	questions quiz.QuestionSource,
	snapshots SnapshotProvider,
	results ResultStore,
	tickets *TicketService,
	settings SessionSettings,
	log zerolog.Logger,
) *QuizSessionService {
	if settings.PassThreshold <= 0 {
		settings.PassThreshold = quiz.DefaultPassThreshold
	}
	if settings.Scheduler == nil {
		settings.Scheduler = quiz.NewClock()
	}
	return &QuizSessionService{
		questions: questions,
		snapshots: snapshots,
		results:   results,
		tickets:   tickets,
		settings:  settings,
		log:       log.With().Str("component", "quiz_session_service").Logger(),
		sessions:  make(map[string]*liveSession),
	}
}

// Start creates a session for key and signs its ticket. An incomplete or
// unknown selection still creates a session; its status says why it has no
// questions.
func (s *QuizSessionService) Start(ctx context.Context, key model.SelectionKey) (*StartedSession, error) {
	id := uuid.New().String()
	sess := &liveSession{id: id, subs: make(map[int]chan SessionEvent)}
	sess.touch()

	var snapshots quiz.SnapshotStore
	if s.snapshots != nil {
		snapshots = s.snapshots.For(id)
	}

	sess.ctrl = quiz.NewController(s.questions, quiz.Config{
		Duration:    s.settings.Duration,
		SubmitDelay: s.settings.SubmitDelay,
		Scheduler:   s.settings.Scheduler,
		Snapshots:   snapshots,
		Observer:    s.observer(sess),
		Log:         s.log.With().Str("session_id", id).Logger(),
	})

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()

	if _, err := sess.ctrl.Load(ctx, key); err != nil {
		s.discard(sess)
		return nil, fmt.Errorf("load session: %w", err)
	}

	ticket, expiresAt, err := s.tickets.Issue(id)
	if err != nil {
		s.discard(sess)
		return nil, err
	}

	s.log.Info().Str("session_id", id).Str("selection", key.String()).Msg("Session started")

	return &StartedSession{
		SessionView:     viewOf(id, sess.ctrl.State()),
		Ticket:          ticket,
		TicketExpiresAt: expiresAt,
	}, nil
}

// Reselect re-initialises a session for a new selection. Any running timer
// or pending result of the previous selection is dropped.
func (s *QuizSessionService) Reselect(ctx context.Context, id string, key model.SelectionKey) (*SessionView, error) {
	sess, err := s.get(id)
	if err != nil {
		return nil, err
	}
	if _, err := sess.ctrl.Load(ctx, key); err != nil {
		return nil, err
	}
	v := viewOf(id, sess.ctrl.State())
	return &v, nil
}

// State returns the current view of a session.
func (s *QuizSessionService) State(id string) (*SessionView, error) {
	sess, err := s.get(id)
	if err != nil {
		return nil, err
	}
	v := viewOf(id, sess.ctrl.State())
	return &v, nil
}

// SelectAnswer records option for the current question. changed is false
// when the question was already answered.
func (s *QuizSessionService) SelectAnswer(id, option string) (bool, *SessionView, error) {
	return s.command(id, func(c *quiz.Controller) (bool, error) { return c.SelectAnswer(option) })
}

// Next moves to the following question.
func (s *QuizSessionService) Next(id string) (bool, *SessionView, error) {
	return s.command(id, (*quiz.Controller).Next)
}

// GoTo jumps to question index.
func (s *QuizSessionService) GoTo(id string, index int) (*SessionView, error) {
	_, v, err := s.command(id, func(c *quiz.Controller) (bool, error) { return true, c.GoTo(index) })
	return v, err
}

// Advance presses the primary button. submitted reports whether it submitted.
func (s *QuizSessionService) Advance(id string) (bool, *SessionView, error) {
	return s.command(id, (*quiz.Controller).Advance)
}

// Submit ends a session manually.
func (s *QuizSessionService) Submit(id string) (bool, *SessionView, error) {
	return s.command(id, func(c *quiz.Controller) (bool, error) {
		st := c.State()
		switch {
		case st.Closed:
			return false, quiz.ErrSessionClosed
		case st.Status != quiz.StatusReady:
			return false, quiz.ErrNotReady
		}
		return c.Submit(quiz.TriggerManual), nil
	})
}

// Close discards a session. A submitted session still delivers and stores
// its result.
func (s *QuizSessionService) Close(id string) error {
	sess, err := s.get(id)
	if err != nil {
		return err
	}
	s.discard(sess)
	return nil
}

// Result returns the graded outcome of a session.
func (s *QuizSessionService) Result(ctx context.Context, id string) (*quiz.Outcome, error) {
	s.mu.RLock()
	sess, live := s.sessions[id]
	s.mu.RUnlock()

	if live {
		sess.touch()
		if o := sess.outcome(); o != nil {
			return o, nil
		}
	}

	if s.results != nil {
		o, err := s.results.Get(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("get result: %w", err)
		}
		if o != nil {
			return o, nil
		}
	}

	if live {
		return nil, ErrResultNotReady
	}
	return nil, ErrSessionNotFound
}

// Subscribe streams the events of a session. The channel is closed when the
// session ends; call cancel to stop listening earlier.
func (s *QuizSessionService) Subscribe(id string) (<-chan SessionEvent, func(), error) {
	sess, err := s.get(id)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := sess.subscribe()
	return ch, cancel, nil
}

// ReapIdle closes sessions nobody has touched for idle and reports how many
// were closed.
func (s *QuizSessionService) ReapIdle(idle time.Duration) int {
	cutoff := time.Now().Add(-idle).UnixNano()

	s.mu.RLock()
	var stale []*liveSession
	for _, sess := range s.sessions {
		if sess.lastSeen.Load() < cutoff {
			stale = append(stale, sess)
		}
	}
	s.mu.RUnlock()

	for _, sess := range stale {
		s.discard(sess)
	}
	return len(stale)
}

// Count returns the number of live sessions.
func (s *QuizSessionService) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Shutdown aborts every running session, waits until ctx is done for their
// results to be delivered, then closes everything.
func (s *QuizSessionService) Shutdown(ctx context.Context) {
	s.mu.RLock()
	all := make([]*liveSession, 0, len(s.sessions))
	for _, sess := range s.sessions {
		all = append(all, sess)
	}
	s.mu.RUnlock()

	aborted := 0
	for _, sess := range all {
		if sess.ctrl.Submit(quiz.TriggerAbort) {
			aborted++
		}
	}
	s.log.Info().Int("sessions", len(all)).Int("aborted", aborted).Msg("Shutting down sessions")

	ticker := time.NewTicker(shutdownPoll)
	defer ticker.Stop()
wait:
	for !allDelivered(all) {
		select {
		case <-ctx.Done():
			s.log.Warn().Msg("Shutdown deadline reached before every result was delivered")
			break wait
		case <-ticker.C:
		}
	}

	for _, sess := range all {
		s.discard(sess)
	}
}

// ─── Internals ─────────────────────────────────────────────────────────────

func (s *QuizSessionService) get(id string) (*liveSession, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	sess.touch()
	return sess, nil
}

func (s *QuizSessionService) command(id string, fn func(*quiz.Controller) (bool, error)) (bool, *SessionView, error) {
	sess, err := s.get(id)
	if err != nil {
		return false, nil, err
	}
	changed, err := fn(sess.ctrl)
	if err != nil {
		return false, nil, err
	}
	v := viewOf(id, sess.ctrl.State())
	return changed, &v, nil
}

func (s *QuizSessionService) discard(sess *liveSession) {
	s.mu.Lock()
	delete(s.sessions, sess.id)
	s.mu.Unlock()

	sess.ctrl.Close()
}

func (s *QuizSessionService) observer(sess *liveSession) quiz.Observer {
	return func(ev quiz.Event) {
		out := SessionEvent{Seq: ev.Seq, Kind: ev.Kind, State: ev.State}

		switch ev.Kind {
		case quiz.EventLoaded:
			sess.setOutcome(nil)
		case quiz.EventDelivered:
			if ev.Result == nil {
				break
			}
			outcome := quiz.Outcome{
				Result:   *ev.Result,
				Score:    quiz.Grade(*ev.Result, s.settings.PassThreshold),
				Trigger:  ev.State.Trigger,
				GradedAt: time.Now().UTC(),
			}
			sess.setOutcome(&outcome)
			s.storeOutcome(sess.id, outcome)

			s.log.Info().
				Str("session_id", sess.id).
				Int("correct", outcome.Score.CorrectCount).
				Int("total", outcome.Score.TotalQuestions).
				Float64("percentage", outcome.Score.Percentage).
				Bool("passed", outcome.Score.Passed).
				Msg("Session graded")

			out.Kind = EventGraded
			out.Outcome = &outcome
		}

		sess.broadcast(out)
	}
}

func (s *QuizSessionService) storeOutcome(id string, outcome quiz.Outcome) {
	if s.results == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), outcomeSaveTimeout)
	defer cancel()

	if err := s.results.Save(ctx, id, outcome); err != nil {
		s.log.Error().Err(err).Str("session_id", id).Msg("Failed to store result")
	}
}

func viewOf(id string, st quiz.State) SessionView {
	return SessionView{SessionID: id, State: st, View: quiz.Project(st)}
}

func allDelivered(sessions []*liveSession) bool {
	for _, sess := range sessions {
		st := sess.ctrl.State()
		if st.Submitted && !st.Delivered {
			return false
		}
	}
	return true
}

// ─── liveSession ───────────────────────────────────────────────────────────

type liveSession struct {
	id       string
	ctrl     *quiz.Controller
	lastSeen atomic.Int64

	mu         sync.Mutex
	graded     *quiz.Outcome
	subs       map[int]chan SessionEvent
	nextSub    int
	subsClosed bool

	lastSeq         uint64
	sentGraded      bool
	sentClosed      bool
	closedSubmitted bool
}

func (l *liveSession) touch() {
	l.lastSeen.Store(time.Now().UnixNano())
}

func (l *liveSession) outcome() *quiz.Outcome {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.graded
}

func (l *liveSession) setOutcome(o *quiz.Outcome) {
	l.mu.Lock()
	l.graded = o
	l.mu.Unlock()
}

func (l *liveSession) subscribe() (<-chan SessionEvent, func()) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch := make(chan SessionEvent, subscriberBuffer)
	if l.subsClosed {
		close(ch)
		return ch, func() {}
	}

	id := l.nextSub
	l.nextSub++
	l.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			if c, ok := l.subs[id]; ok {
				delete(l.subs, id)
				close(c)
			}
		})
	}
}

// broadcast delivers ev to every subscriber without blocking; a subscriber
// whose buffer is full misses the event. State-only events older than one
// already sent are dropped, so subscribers never step back to stale state.
// Subscriptions end once the session is closed and has nothing left to
// deliver.
func (l *liveSession) broadcast(ev SessionEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.subsClosed {
		return
	}
	if ev.Seq < l.lastSeq && stateOnly(ev.Kind) {
		return
	}
	if ev.Seq > l.lastSeq {
		l.lastSeq = ev.Seq
	}

	switch ev.Kind {
	case EventGraded:
		l.sentGraded = true
	case quiz.EventClosed:
		l.sentClosed = true
		l.closedSubmitted = ev.State.Submitted
	}

	for _, ch := range l.subs {
		select {
		case ch <- ev:
		default:
		}
	}

	if l.sentClosed && (!l.closedSubmitted || l.sentGraded) {
		for id, ch := range l.subs {
			delete(l.subs, id)
			close(ch)
		}
		l.subsClosed = true
	}
}

func stateOnly(kind quiz.EventKind) bool {
	switch kind {
	case quiz.EventTick, quiz.EventAnswered, quiz.EventNavigated, quiz.EventLoaded:
		return true
	}
	return false
}
