package learnmap

import "sync"

// EventKind names the mutation that produced an [Event].
type EventKind string

const (
	EventInitialized      EventKind = "initialized"
	EventArticleAdded     EventKind = "article_added"
	EventArticleUpdated   EventKind = "article_updated"
	EventQuestionAdded    EventKind = "question_added"
	EventQuestionLinked   EventKind = "question_linked"
	EventPositionsApplied EventKind = "positions_applied"
)

// Event is published to subscribers after every accepted mutation.
// IDs lists the entities touched by the mutation; for EventInitialized it
// lists every entity in insertion order.
type Event struct {
	Kind EventKind
	IDs  []string
}

// Topology reports whether the event changed the node/edge set, which
// requires a full re-layout.
func (e Event) Topology() bool {
	switch e.Kind {
	case EventInitialized, EventArticleAdded, EventQuestionAdded, EventQuestionLinked:
		return true
	}
	return false
}

// Subscriber receives graph events.
type Subscriber func(Event)

type subscription struct {
	id int
	fn Subscriber
}

// hub fans events out to subscribers in registration order.
type hub struct {
	mu     sync.Mutex
	nextID int
	subs   []subscription
}

func (h *hub) subscribe(fn Subscriber) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	id := h.nextID
	h.subs = append(h.subs, subscription{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			for i, s := range h.subs {
				if s.id == id {
					h.subs = append(h.subs[:i:i], h.subs[i+1:]...)
					return
				}
			}
		})
	}
}

func (h *hub) publish(ev Event) {
	h.mu.Lock()
	subs := make([]subscription, len(h.subs))
	copy(subs, h.subs)
	h.mu.Unlock()

	for _, s := range subs {
		s.fn(ev)
	}
}
