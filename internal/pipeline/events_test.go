package pipeline

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestEventBus_Subscribe(t *testing.T) {
	bus := NewEventBus()
	received := false

	bus.Subscribe(EventStageStart, func(e Event) {
		received = true
	})

	bus.Publish(Event{
		Type:  EventStageStart,
		Stage: StageClassify,
	})

	if !received {
		t.Error("handler should have received the event")
	}
}

func TestEventBus_SubscribeAll(t *testing.T) {
	bus := NewEventBus()
	count := 0

	bus.SubscribeAll(func(e Event) {
		count++
	})

	bus.Publish(Event{Type: EventStageStart})
	bus.Publish(Event{Type: EventStageComplete})
	bus.Publish(Event{Type: EventRunRecorded})

	if count != 3 {
		t.Errorf("expected 3 events, got %d", count)
	}
}

func TestEventBus_Publish_ToCorrectHandlers(t *testing.T) {
	bus := NewEventBus()
	startCount := 0
	degradedCount := 0

	bus.Subscribe(EventStageStart, func(e Event) {
		startCount++
	})
	bus.Subscribe(EventStageDegraded, func(e Event) {
		degradedCount++
	})

	bus.Publish(Event{Type: EventStageStart})
	bus.Publish(Event{Type: EventStageStart})
	bus.Publish(Event{Type: EventStageDegraded})

	if startCount != 2 {
		t.Errorf("expected 2 start events, got %d", startCount)
	}
	if degradedCount != 1 {
		t.Errorf("expected 1 degraded event, got %d", degradedCount)
	}
}

func TestEventBus_RecentEvents(t *testing.T) {
	bus := NewEventBus()

	for i := 0; i < 5; i++ {
		bus.Publish(Event{
			Type:  EventStageComplete,
			Stage: string(rune('a' + i)),
		})
	}

	recent := bus.RecentEvents(3)
	if len(recent) != 3 {
		t.Errorf("expected 3 recent events, got %d", len(recent))
	}

	if recent[0].Stage != "c" || recent[2].Stage != "e" {
		t.Error("should return most recent events in order")
	}
}

func TestEventBus_RunEvents(t *testing.T) {
	bus := NewEventBus()

	bus.Publish(Event{Type: EventStageStart, RunID: "1", Stage: StageClassify})
	bus.Publish(Event{Type: EventStageStart, RunID: "2", Stage: StageClassify})
	bus.Publish(Event{Type: EventStageComplete, RunID: "1", Stage: StageClassify})

	got := bus.RunEvents("1")
	if len(got) != 2 || got[1].Type != EventStageComplete {
		t.Errorf("unexpected run events: %+v", got)
	}
}

func TestEventBus_HistoryLimit(t *testing.T) {
	bus := NewEventBus()
	bus.maxHistory = 5

	for i := 0; i < 10; i++ {
		bus.Publish(Event{Type: EventStageComplete, Stage: string(rune('0' + i))})
	}

	all := bus.RecentEvents(100)
	if len(all) != 5 {
		t.Errorf("expected 5 events (maxHistory), got %d", len(all))
	}

	if all[0].Stage != "5" {
		t.Errorf("oldest event should be '5', got '%s'", all[0].Stage)
	}
}

func TestEventBus_ConcurrentPublish(t *testing.T) {
	bus := NewEventBus()
	var count int64
	var wg sync.WaitGroup

	bus.SubscribeAll(func(e Event) {
		atomic.AddInt64(&count, 1)
	})

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Publish(Event{Type: EventStageComplete})
		}()
	}

	wg.Wait()

	if count != 100 {
		t.Errorf("expected 100 events handled, got %d", count)
	}
}

func TestEventBus_Timestamp(t *testing.T) {
	bus := NewEventBus()

	before := time.Now()
	bus.Publish(Event{Type: EventStageStart})
	after := time.Now()

	recent := bus.RecentEvents(1)
	if len(recent) != 1 {
		t.Fatal("expected one event")
	}
	if recent[0].Timestamp.Before(before) || recent[0].Timestamp.After(after) {
		t.Error("zero timestamps should be filled at publish time")
	}
}
