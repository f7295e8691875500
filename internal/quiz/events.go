package quiz

// EventKind names a session transition.
type EventKind string

const (
	EventLoaded    EventKind = "loaded"
	EventTick      EventKind = "tick"
	EventAnswered  EventKind = "answered"
	EventNavigated EventKind = "navigated"
	EventSubmitted EventKind = "submitted"
	EventDelivered EventKind = "delivered"
	EventClosed    EventKind = "closed"
)

// Event is emitted after every transition. Result is set only on EventDelivered.
//
// Observers run outside the controller lock, so events of one session may
// reach them out of order when two goroutines drive it. Seq increases with
// every event and orders them by the state they carry.
type Event struct {
	Seq    uint64
	Kind   EventKind
	State  State
	Result *Result
}

// Observer receives session events. It is called outside the controller lock
// and may call back into the controller.
type Observer func(Event)
