package quiz_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/stemsi/mcqprep-backend/internal/model"
	"github.com/stemsi/mcqprep-backend/internal/quiz"
)

// fakeScheduler records scheduled callbacks and fires them on demand.
type fakeScheduler struct {
	mu      sync.Mutex
	repeats []*fakeHandle
	afters  []*fakeHandle
}

type fakeHandle struct {
	sched   *fakeScheduler
	fn      func()
	delay   time.Duration
	stopped bool
}

func (h *fakeHandle) Stop() {
	h.sched.mu.Lock()
	h.stopped = true
	h.sched.mu.Unlock()
}

func (f *fakeScheduler) Every(interval time.Duration, fn func()) quiz.Handle {
	f.mu.Lock()
	defer f.mu.Unlock()
	h := &fakeHandle{sched: f, fn: fn, delay: interval}
	f.repeats = append(f.repeats, h)
	return h
}

func (f *fakeScheduler) After(delay time.Duration, fn func()) quiz.Handle {
	f.mu.Lock()
	defer f.mu.Unlock()
	h := &fakeHandle{sched: f, fn: fn, delay: delay}
	f.afters = append(f.afters, h)
	return h
}

// Tick fires every live repeating callback n times.
func (f *fakeScheduler) Tick(n int) {
	for i := 0; i < n; i++ {
		for _, fn := range f.live(f.repeatsCopy()) {
			fn()
		}
	}
}

// Flush fires every pending one-shot callback once.
func (f *fakeScheduler) Flush() {
	f.mu.Lock()
	var fns []func()
	for _, h := range f.afters {
		if !h.stopped {
			h.stopped = true
			fns = append(fns, h.fn)
		}
	}
	f.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// ActiveRepeats counts repeating callbacks that have not been stopped.
func (f *fakeScheduler) ActiveRepeats() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, h := range f.repeats {
		if !h.stopped {
			n++
		}
	}
	return n
}

// PendingAfters counts one-shot callbacks that have neither fired nor been stopped.
func (f *fakeScheduler) PendingAfters() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, h := range f.afters {
		if !h.stopped {
			n++
		}
	}
	return n
}

func (f *fakeScheduler) repeatsCopy() []*fakeHandle {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*fakeHandle(nil), f.repeats...)
}

func (f *fakeScheduler) live(hs []*fakeHandle) []func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	var fns []func()
	for _, h := range hs {
		if !h.stopped {
			fns = append(fns, h.fn)
		}
	}
	return fns
}

// mapSource is an in-memory three-level question source.
type mapSource struct {
	data  map[string]map[string]map[string][]model.QuestionRecord
	err   error
	panic bool
	calls int
}

func (s *mapSource) Questions(_ context.Context, key model.SelectionKey) ([]model.QuestionRecord, error) {
	s.calls++
	if s.panic {
		panic("dataset exploded")
	}
	if s.err != nil {
		return nil, s.err
	}
	qs, ok := s.data[key.Subject][key.Year][key.Board]
	if !ok {
		return nil, quiz.ErrQuestionsNotFound
	}
	return qs, nil
}

// memSnapshots records snapshot traffic.
type memSnapshots struct {
	mu     sync.Mutex
	last   *quiz.Snapshot
	saves  int
	clears int
}

func (m *memSnapshots) Save(_ context.Context, snap quiz.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last = &snap
	m.saves++
	return nil
}

func (m *memSnapshots) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last = nil
	m.clears++
	return nil
}

func (m *memSnapshots) Present() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last != nil
}

// recorder collects observer events.
type recorder struct {
	mu     sync.Mutex
	events []quiz.Event
}

func (r *recorder) Observe(ev quiz.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) Count(kind quiz.EventKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func (r *recorder) Results() []quiz.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []quiz.Result
	for _, ev := range r.events {
		if ev.Result != nil {
			out = append(out, *ev.Result)
		}
	}
	return out
}

var errBackendDown = errors.New("backend down")

func question(text, correct string, options ...string) model.QuestionRecord {
	return model.QuestionRecord{Text: text, Options: options, CorrectOption: correct}
}

func physicsSource() *mapSource {
	return &mapSource{data: map[string]map[string]map[string][]model.QuestionRecord{
		"physics-1st": {
			"2023": {
				"dhaka": {
					question("Unit of force?", "Newton", "Newton", "Joule", "Watt", "Pascal"),
					question("Unit of energy?", "Joule", "Newton", "Joule", "Watt", "Pascal"),
					question("Unit of power?", "Watt", "Newton", "Joule", "Watt", "Pascal"),
				},
				"rajshahi": {
					question("Speed of light?", "3e8 m/s", "3e8 m/s", "3e6 m/s", "340 m/s", "1 m/s"),
				},
				"comilla": {},
			},
		},
	}}
}

var dhaka = model.SelectionKey{Subject: "physics-1st", Year: "2023", Board: "dhaka"}
