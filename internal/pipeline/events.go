package pipeline

import (
	"sync"
	"time"
)

type EventType string

const (
	EventStageStart    EventType = "stage.start"
	EventStageComplete EventType = "stage.complete"
	EventStageDegraded EventType = "stage.degraded"
	EventRunRecorded   EventType = "run.recorded"
	EventKnownFix      EventType = "kb.match"
)

// Stage names published on the bus.
const (
	StageClassify     = "classify"
	StageBrainstorm   = "brainstorm"
	StageDisambiguate = "disambiguate"
	StageProbe        = "probe"
	StageJudge        = "judge"
	StageRecord       = "record"
)

type Event struct {
	Type      EventType
	Timestamp time.Time
	RunID     string
	Stage     string
	Detail    string
	Data      interface{}
}

type EventHandler func(Event)

// EventBus delivers events synchronously on the publishing goroutine.
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]EventHandler
	history     []Event
	maxHistory  int
}

func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[EventType][]EventHandler),
		history:     make([]Event, 0),
		maxHistory:  100,
	}
}

func (e *EventBus) Subscribe(eventType EventType, handler EventHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.subscribers[eventType] = append(e.subscribers[eventType], handler)
}

func (e *EventBus) SubscribeAll(handler EventHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.subscribers["*"] = append(e.subscribers["*"], handler)
}

func (e *EventBus) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	e.mu.Lock()
	e.history = append(e.history, event)
	if len(e.history) > e.maxHistory {
		e.history = e.history[1:]
	}

	handlers := make([]EventHandler, 0)
	handlers = append(handlers, e.subscribers[event.Type]...)
	handlers = append(handlers, e.subscribers["*"]...)
	e.mu.Unlock()

	for _, handler := range handlers {
		handler(event)
	}
}

func (e *EventBus) RecentEvents(n int) []Event {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if n > len(e.history) {
		n = len(e.history)
	}
	out := make([]Event, n)
	copy(out, e.history[len(e.history)-n:])
	return out
}

// RunEvents returns the retained events of one run in publish order.
func (e *EventBus) RunEvents(runID string) []Event {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var result []Event
	for _, ev := range e.history {
		if ev.RunID == runID {
			result = append(result, ev)
		}
	}
	return result
}
