package observer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Stage identifies a step of the transcription pipeline.
type Stage string

const (
	StageAccepted    Stage = "accepted"
	StageAnalyzing   Stage = "analyzing"
	StageDescribing  Stage = "describing"
	StageGenerating  Stage = "generating"
	StageTranslating Stage = "translating"
	StagePersisting  Stage = "persisting"
	StageDone        Stage = "done"
	StageFailed      Stage = "failed"
)

// StageEvent reports progress of one analysis run. Events are broadcast to
// the log and to connected websocket clients.
type StageEvent struct {
	AnalysisID string                 `json:"analysis_id"`
	UserID     string                 `json:"user_id"`
	Stage      Stage                  `json:"stage"`
	Success    bool                   `json:"success"`
	Message    string                 `json:"message,omitempty"`
	Elapsed    time.Duration          `json:"elapsed,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// Observer defines the interface for event observers
type Observer interface {
	OnEvent(ctx context.Context, event StageEvent)
	GetObserverName() string
}

// Subject defines the interface for event publishers
type Subject interface {
	Subscribe(observer Observer)
	Unsubscribe(observer Observer)
	NotifyObservers(ctx context.Context, event StageEvent)
}

// LoggingObserver logs pipeline stage events
type LoggingObserver struct {
	logger *logrus.Logger
}

// NewLoggingObserver creates a new logging observer
func NewLoggingObserver(logger *logrus.Logger) Observer {
	return &LoggingObserver{
		logger: logger,
	}
}

// OnEvent handles stage events by logging them
func (o *LoggingObserver) OnEvent(ctx context.Context, event StageEvent) {
	fields := logrus.Fields{
		"analysis_id": event.AnalysisID,
		"user_id":     event.UserID,
		"stage":       event.Stage,
		"success":     event.Success,
	}
	if event.Elapsed > 0 {
		fields["elapsed"] = event.Elapsed
	}
	if event.Message != "" {
		fields["message"] = event.Message
	}
	for k, v := range event.Metadata {
		fields[k] = v
	}

	switch {
	case event.Stage == StageFailed:
		o.logger.WithFields(fields).Error("Analysis failed")
	case event.Stage == StageDone:
		o.logger.WithFields(fields).Info("Analysis completed")
	case !event.Success:
		o.logger.WithFields(fields).Warn("Analysis stage degraded")
	default:
		o.logger.WithFields(fields).Debug("Analysis stage")
	}
}

// GetObserverName returns the observer name
func (o *LoggingObserver) GetObserverName() string {
	return "logging_observer"
}

// MetricsObserver keeps running counters of pipeline outcomes
type MetricsObserver struct {
	mu              sync.RWMutex
	started         int64
	completed       int64
	failed          int64
	totalProcessing time.Duration
}

// NewMetricsObserver creates a new metrics observer
func NewMetricsObserver() *MetricsObserver {
	return &MetricsObserver{}
}

// OnEvent handles stage events by collecting metrics
func (o *MetricsObserver) OnEvent(ctx context.Context, event StageEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch event.Stage {
	case StageAccepted:
		o.started++
	case StageDone:
		o.completed++
		o.totalProcessing += event.Elapsed
	case StageFailed:
		o.failed++
	}
}

// GetObserverName returns the observer name
func (o *MetricsObserver) GetObserverName() string {
	return "metrics_observer"
}

// GetMetrics returns current metrics
func (o *MetricsObserver) GetMetrics() map[string]interface{} {
	o.mu.RLock()
	defer o.mu.RUnlock()

	avgProcessing := time.Duration(0)
	if o.completed > 0 {
		avgProcessing = o.totalProcessing / time.Duration(o.completed)
	}

	return map[string]interface{}{
		"analyses_started":      o.started,
		"analyses_completed":    o.completed,
		"analyses_failed":       o.failed,
		"total_processing_time": o.totalProcessing,
		"avg_processing_time":   avgProcessing,
	}
}

// EventPublisher implements the Subject interface
type EventPublisher struct {
	mu        sync.RWMutex
	observers []Observer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher() *EventPublisher {
	return &EventPublisher{
		observers: make([]Observer, 0),
	}
}

// Subscribe adds an observer
func (p *EventPublisher) Subscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, observer)
}

// Unsubscribe removes an observer
func (p *EventPublisher) Unsubscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, obs := range p.observers {
		if obs.GetObserverName() == observer.GetObserverName() {
			p.observers = append(p.observers[:i], p.observers[i+1:]...)
			break
		}
	}
}

// NotifyObservers notifies all observers of an event
func (p *EventPublisher) NotifyObservers(ctx context.Context, event StageEvent) {
	p.mu.RLock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	p.mu.RUnlock()

	// Notify observers concurrently
	for _, observer := range observers {
		go func(obs Observer) {
			defer func() {
				if r := recover(); r != nil {
					// Log panic but don't crash the application
					logrus.WithField("observer", obs.GetObserverName()).
						WithField("panic", r).
						Error("Observer panicked while handling event")
				}
			}()
			obs.OnEvent(ctx, event)
		}(observer)
	}
}
