package quiz

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/mcqprep-backend/internal/model"
)

const (
	DefaultDuration     = 1500 * time.Second
	DefaultTickInterval = time.Second
	DefaultSubmitDelay  = 800 * time.Millisecond

	// snapshotEveryTicks bounds how stale the persisted time_left may get.
	snapshotEveryTicks = 15
	snapshotTimeout    = 2 * time.Second
)

// Controller errors. Status problems (missing selection, not found, lookup
// failure) are states, not errors; see LoadStatus.
var (
	ErrNotReady         = errors.New("session is not ready")
	ErrAlreadySubmitted = errors.New("session already submitted")
	ErrIndexOutOfRange  = errors.New("question index out of range")
	ErrUnknownOption    = errors.New("option does not belong to the current question")
	ErrSessionClosed    = errors.New("session is closed")
	ErrLookupFailed     = errors.New("question lookup failed")
)

// LoadStatus is the load state of a session.
type LoadStatus string

const (
	StatusLoading          LoadStatus = "LOADING"
	StatusReady            LoadStatus = "READY"
	StatusNotFound         LoadStatus = "NOT_FOUND"
	StatusMissingSelection LoadStatus = "MISSING_SELECTION"
	StatusLoadFailed       LoadStatus = "LOAD_FAILED"
)

// SubmitTrigger records what ended a session.
type SubmitTrigger string

const (
	TriggerManual  SubmitTrigger = "manual"
	TriggerTimeout SubmitTrigger = "timeout"
	TriggerAbort   SubmitTrigger = "abort"
)

// Config tunes a Controller. Zero values fall back to the defaults.
type Config struct {
	Duration     time.Duration
	TickInterval time.Duration
	SubmitDelay  time.Duration
	Scheduler    Scheduler
	Snapshots    SnapshotStore
	Observer     Observer
	Log          zerolog.Logger
}

// Result is the payload handed to the review screen once a session is submitted.
type Result struct {
	Answers        map[int]string         `json:"answers"`
	TotalQuestions int                    `json:"total_questions"`
	Subject        string                 `json:"subject"`
	Questions      []model.QuestionRecord `json:"questions"`
}

// State is a read-only copy of a session.
type State struct {
	Selection      model.SelectionKey     `json:"selection"`
	Status         LoadStatus             `json:"status"`
	Questions      []model.QuestionRecord `json:"-"`
	CurrentIndex   int                    `json:"current_index"`
	TotalQuestions int                    `json:"total_questions"`
	Answers        map[int]string         `json:"answers"`
	TimeRemaining  int                    `json:"time_remaining"`
	Submitted      bool                   `json:"submitted"`
	Trigger        SubmitTrigger          `json:"submit_trigger,omitempty"`
	Delivered      bool                   `json:"delivered"`
	Closed         bool                   `json:"closed"`
}

// Current returns the question at CurrentIndex, or nil when the session is not ready.
func (s State) Current() *model.QuestionRecord {
	if s.Status != StatusReady || s.CurrentIndex < 0 || s.CurrentIndex >= len(s.Questions) {
		return nil
	}
	return &s.Questions[s.CurrentIndex]
}

// Controller owns the state of one quiz session: question progression,
// answer capture, the countdown and the hand-off of the result.
//
// Every event (user action, tick, delivery) runs to completion under mu, so
// handlers never interleave. Observer callbacks run after mu is released.
type Controller struct {
	mu sync.Mutex

	source    QuestionSource
	sched     Scheduler
	snapshots SnapshotStore
	observe   Observer
	log       zerolog.Logger

	budget      int
	interval    time.Duration
	submitDelay time.Duration

	key       model.SelectionKey
	status    LoadStatus
	questions []model.QuestionRecord
	current   int
	answers   map[int]string
	remaining int
	submitted bool
	trigger   SubmitTrigger
	delivered bool
	closed    bool

	// epoch invalidates callbacks scheduled before the last cancellation.
	epoch         uint64
	ticker        Handle
	delivery      Handle
	autoSubmitted bool
	acquired      bool

	// seq numbers emitted events in the order their state was taken.
	seq uint64
}

// NewController creates an idle controller. Call Load to start a session.
func NewController(source QuestionSource, cfg Config) *Controller {
	if cfg.Duration <= 0 {
		cfg.Duration = DefaultDuration
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.SubmitDelay <= 0 {
		cfg.SubmitDelay = DefaultSubmitDelay
	}
	if cfg.Scheduler == nil {
		cfg.Scheduler = NewClock()
	}
	if cfg.Snapshots == nil {
		cfg.Snapshots = nopSnapshots{}
	}

	return &Controller{
		source:      source,
		sched:       cfg.Scheduler,
		snapshots:   cfg.Snapshots,
		observe:     cfg.Observer,
		log:         cfg.Log.With().Str("component", "quiz_controller").Logger(),
		budget:      int(cfg.Duration / time.Second),
		interval:    cfg.TickInterval,
		submitDelay: cfg.SubmitDelay,
		status:      StatusLoading,
		answers:     map[int]string{},
	}
}

// Load (re)initialises the session for key. Any running timer or pending
// delivery is cancelled before the new session starts. Loading the key the
// session already holds changes nothing, except after a failed lookup, which
// is retried.
func (c *Controller) Load(ctx context.Context, key model.SelectionKey) (LoadStatus, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return c.status, ErrSessionClosed
	}
	if key == c.key && c.status != StatusLoading && c.status != StatusLoadFailed {
		status := c.status
		c.mu.Unlock()
		return status, nil
	}

	c.cancelTimersLocked()
	c.releaseSnapshotLocked()

	c.key = key
	c.status = StatusLoading
	c.questions = nil
	c.current = 0
	c.answers = map[int]string{}
	c.remaining = c.budget
	c.submitted = false
	c.trigger = ""
	c.delivered = false
	c.autoSubmitted = false

	log := c.log.With().Str("selection", key.String()).Logger()

	if !key.Complete() {
		c.status = StatusMissingSelection
		log.Debug().Msg("Selection incomplete")
		ev := c.eventLocked(EventLoaded)
		c.mu.Unlock()
		c.emit(ev)
		return StatusMissingSelection, nil
	}

	questions, err := c.lookup(ctx, key)
	switch {
	case errors.Is(err, ErrQuestionsNotFound) || (err == nil && len(questions) == 0):
		c.status = StatusNotFound
		log.Info().Msg("No questions for selection")
	case err != nil:
		c.status = StatusLoadFailed
		log.Error().Err(err).Msg("Failed to load questions")
	default:
		c.status = StatusReady
		c.questions = questions
		c.acquired = true
		c.startTimerLocked()
		c.saveSnapshotLocked()
		log.Info().Int("questions", len(questions)).Int("time_budget", c.budget).Msg("Session ready")
	}

	events := []Event{c.eventLocked(EventLoaded)}
	if c.status == StatusReady && c.remaining <= 0 {
		c.autoSubmitted = true
		if ev, ok := c.submitLocked(TriggerTimeout); ok {
			events = append(events, ev)
		}
	}
	status := c.status
	c.mu.Unlock()

	c.emit(events...)
	return status, nil
}

// lookup queries the source, converting a panic into ErrLookupFailed.
func (c *Controller) lookup(ctx context.Context, key model.SelectionKey) (questions []model.QuestionRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			questions = nil
			err = fmt.Errorf("%w: %v", ErrLookupFailed, r)
		}
	}()

	questions, err = c.source.Questions(ctx, key)
	if err != nil && !errors.Is(err, ErrQuestionsNotFound) {
		err = fmt.Errorf("%w: %w", ErrLookupFailed, err)
	}
	return questions, err
}

// SelectAnswer records option for the current question. The first answer to
// a question is binding: later calls for the same question are no-ops and
// report false.
func (c *Controller) SelectAnswer(option string) (bool, error) {
	c.mu.Lock()
	if err := c.checkRunningLocked(); err != nil {
		c.mu.Unlock()
		return false, err
	}
	if _, answered := c.answers[c.current]; answered {
		c.mu.Unlock()
		return false, nil
	}
	if !c.questions[c.current].HasOption(option) {
		c.mu.Unlock()
		return false, ErrUnknownOption
	}

	c.answers[c.current] = option
	c.saveSnapshotLocked()
	ev := c.eventLocked(EventAnswered)
	c.mu.Unlock()

	c.emit(ev)
	return true, nil
}

// Next advances to the following question. It never wraps: at the last
// question it is a no-op and reports false.
func (c *Controller) Next() (bool, error) {
	c.mu.Lock()
	if err := c.checkRunningLocked(); err != nil {
		c.mu.Unlock()
		return false, err
	}
	if c.current >= len(c.questions)-1 {
		c.mu.Unlock()
		return false, nil
	}

	c.current++
	c.saveSnapshotLocked()
	ev := c.eventLocked(EventNavigated)
	c.mu.Unlock()

	c.emit(ev)
	return true, nil
}

// GoTo jumps to index. Earlier questions need not be answered.
func (c *Controller) GoTo(index int) error {
	c.mu.Lock()
	if err := c.checkRunningLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	if index < 0 || index >= len(c.questions) {
		c.mu.Unlock()
		return ErrIndexOutOfRange
	}

	c.current = index
	c.saveSnapshotLocked()
	ev := c.eventLocked(EventNavigated)
	c.mu.Unlock()

	c.emit(ev)
	return nil
}

// Advance is the primary button: Submit on the last question, Next otherwise.
// It reports whether the session was submitted.
func (c *Controller) Advance() (bool, error) {
	c.mu.Lock()
	if err := c.checkRunningLocked(); err != nil {
		c.mu.Unlock()
		return false, err
	}
	last := c.current == len(c.questions)-1
	c.mu.Unlock()

	if last {
		return c.Submit(TriggerManual), nil
	}
	_, err := c.Next()
	return false, err
}

// Submit freezes the session. The timer stops immediately; after the submit
// delay the snapshot is cleared and the Result is delivered to the observer.
// Only the first call has any effect.
func (c *Controller) Submit(trigger SubmitTrigger) bool {
	c.mu.Lock()
	ev, ok := c.submitLocked(trigger)
	c.mu.Unlock()

	if ok {
		c.emit(ev)
	}
	return ok
}

// Close discards the session. An unsubmitted session has its timer stopped
// and its snapshot cleared; a submitted one still completes its delivery.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if !c.submitted {
		c.cancelTimersLocked()
		c.releaseSnapshotLocked()
	}
	c.closed = true
	ev := c.eventLocked(EventClosed)
	c.mu.Unlock()

	c.emit(ev)
}

// State returns a copy of the session state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

// ─── Timer ─────────────────────────────────────────────────────────────────

func (c *Controller) startTimerLocked() {
	c.epoch++
	epoch := c.epoch
	c.ticker = c.sched.Every(c.interval, func() { c.tick(epoch) })
}

// cancelTimersLocked stops the tick and any pending delivery and invalidates
// callbacks that were already queued.
func (c *Controller) cancelTimersLocked() {
	if c.ticker != nil {
		c.ticker.Stop()
		c.ticker = nil
	}
	if c.delivery != nil {
		c.delivery.Stop()
		c.delivery = nil
	}
	c.epoch++
}

func (c *Controller) tick(epoch uint64) {
	c.mu.Lock()
	if epoch != c.epoch || c.closed || c.status != StatusReady || c.submitted || c.remaining <= 0 {
		c.mu.Unlock()
		return
	}

	c.remaining--
	events := []Event{c.eventLocked(EventTick)}

	if c.remaining == 0 {
		if !c.autoSubmitted {
			c.autoSubmitted = true
			if ev, ok := c.submitLocked(TriggerTimeout); ok {
				events = append(events, ev)
			}
		}
	} else if c.remaining%snapshotEveryTicks == 0 {
		c.saveSnapshotLocked()
	}
	c.mu.Unlock()

	c.emit(events...)
}

// ─── Submission ────────────────────────────────────────────────────────────

func (c *Controller) submitLocked(trigger SubmitTrigger) (Event, bool) {
	if c.closed || c.status != StatusReady || c.submitted {
		return Event{}, false
	}

	c.submitted = true
	c.trigger = trigger
	if c.ticker != nil {
		c.ticker.Stop()
		c.ticker = nil
	}
	c.epoch++

	result := c.resultLocked()
	epoch := c.epoch
	c.delivery = c.sched.After(c.submitDelay, func() { c.deliver(epoch, result) })

	c.log.Info().
		Str("selection", c.key.String()).
		Str("trigger", string(trigger)).
		Int("answered", len(c.answers)).
		Int("total", len(c.questions)).
		Int("time_remaining", c.remaining).
		Msg("Session submitted")

	return c.eventLocked(EventSubmitted), true
}

func (c *Controller) deliver(epoch uint64, result Result) {
	c.mu.Lock()
	if epoch != c.epoch || c.delivered {
		c.mu.Unlock()
		return
	}
	c.delivery = nil
	c.delivered = true
	c.releaseSnapshotLocked()

	ev := c.eventLocked(EventDelivered)
	ev.Result = &result
	c.mu.Unlock()

	c.emit(ev)
}

// resultLocked builds the frozen payload. Questions are shared, answers copied.
func (c *Controller) resultLocked() Result {
	return Result{
		Answers:        copyAnswers(c.answers),
		TotalQuestions: len(c.questions),
		Subject:        c.key.Subject,
		Questions:      c.questions,
	}
}

// ─── Snapshot ──────────────────────────────────────────────────────────────

// Snapshot I/O runs under mu so that a Clear can never be overtaken by a Save.
func (c *Controller) saveSnapshotLocked() {
	if !c.acquired {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
	defer cancel()

	snap := Snapshot{
		Subject:       c.key.Subject,
		TimeRemaining: c.remaining,
		Answers:       copyAnswers(c.answers),
		CurrentIndex:  c.current,
	}
	if err := c.snapshots.Save(ctx, snap); err != nil {
		c.log.Warn().Err(err).Msg("Failed to save snapshot")
	}
}

func (c *Controller) releaseSnapshotLocked() {
	if !c.acquired {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
	defer cancel()

	if err := c.snapshots.Clear(ctx); err != nil {
		c.log.Warn().Err(err).Msg("Failed to clear snapshot")
	}
	c.acquired = false
}

// ─── Helpers ───────────────────────────────────────────────────────────────

func (c *Controller) checkRunningLocked() error {
	switch {
	case c.closed:
		return ErrSessionClosed
	case c.status != StatusReady:
		return ErrNotReady
	case c.submitted:
		return ErrAlreadySubmitted
	}
	return nil
}

func (c *Controller) stateLocked() State {
	return State{
		Selection:      c.key,
		Status:         c.status,
		Questions:      c.questions,
		CurrentIndex:   c.current,
		TotalQuestions: len(c.questions),
		Answers:        copyAnswers(c.answers),
		TimeRemaining:  c.remaining,
		Submitted:      c.submitted,
		Trigger:        c.trigger,
		Delivered:      c.delivered,
		Closed:         c.closed,
	}
}

func (c *Controller) eventLocked(kind EventKind) Event {
	c.seq++
	return Event{Seq: c.seq, Kind: kind, State: c.stateLocked()}
}

func (c *Controller) emit(events ...Event) {
	if c.observe == nil {
		return
	}
	for _, ev := range events {
		c.observe(ev)
	}
}

func copyAnswers(src map[int]string) map[int]string {
	dst := make(map[int]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
