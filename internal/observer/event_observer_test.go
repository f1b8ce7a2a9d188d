package observer

import (
	"context"
	"sync"
	"testing"
	"time"
)

type recordingObserver struct {
	mu     sync.Mutex
	events []StageEvent
	done   chan struct{}
}

func (r *recordingObserver) OnEvent(ctx context.Context, event StageEvent) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
	r.done <- struct{}{}
}

func (r *recordingObserver) GetObserverName() string { return "recording_observer" }

type panickyObserver struct{}

func (p *panickyObserver) OnEvent(ctx context.Context, event StageEvent) { panic("boom") }
func (p *panickyObserver) GetObserverName() string                       { return "panicky_observer" }

func TestEventPublisher_NotifiesAllObservers(t *testing.T) {
	pub := NewEventPublisher()
	rec := &recordingObserver{done: make(chan struct{}, 1)}
	pub.Subscribe(&panickyObserver{})
	pub.Subscribe(rec)

	pub.NotifyObservers(context.Background(), StageEvent{
		AnalysisID: "a-1",
		Stage:      StageDescribing,
		Success:    true,
		Timestamp:  time.Now(),
	})

	select {
	case <-rec.done:
	case <-time.After(2 * time.Second):
		t.Fatal("observer was never notified")
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(rec.events))
	}
	if rec.events[0].Stage != StageDescribing {
		t.Errorf("unexpected stage %q", rec.events[0].Stage)
	}
}

func TestEventPublisher_Unsubscribe(t *testing.T) {
	pub := NewEventPublisher()
	rec := &recordingObserver{done: make(chan struct{}, 2)}
	pub.Subscribe(rec)
	pub.Unsubscribe(rec)

	pub.NotifyObservers(context.Background(), StageEvent{Stage: StageDone})

	select {
	case <-rec.done:
		t.Fatal("unsubscribed observer was notified")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestMetricsObserver_Counts(t *testing.T) {
	m := NewMetricsObserver()
	ctx := context.Background()

	m.OnEvent(ctx, StageEvent{Stage: StageAccepted})
	m.OnEvent(ctx, StageEvent{Stage: StageAccepted})
	m.OnEvent(ctx, StageEvent{Stage: StageDone, Elapsed: 2 * time.Second})
	m.OnEvent(ctx, StageEvent{Stage: StageFailed})

	metrics := m.GetMetrics()
	if metrics["analyses_started"].(int64) != 2 {
		t.Errorf("expected 2 started, got %v", metrics["analyses_started"])
	}
	if metrics["analyses_completed"].(int64) != 1 {
		t.Errorf("expected 1 completed, got %v", metrics["analyses_completed"])
	}
	if metrics["analyses_failed"].(int64) != 1 {
		t.Errorf("expected 1 failed, got %v", metrics["analyses_failed"])
	}
	if metrics["avg_processing_time"].(time.Duration) != 2*time.Second {
		t.Errorf("unexpected avg processing time %v", metrics["avg_processing_time"])
	}
}
