package services

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/manthysbr/aulesql/internal/core/domain"
)

type EventType string

const (
	EventTypeStep  EventType = "step"
	EventTypeDone  EventType = "done"
	EventTypeTrace EventType = "trace"
)

type Event struct {
	RunID     domain.RunID `json:"run_id"`
	Type      EventType    `json:"type"`
	Data      string       `json:"data"` // JSON payload
	Timestamp int64        `json:"timestamp"`
}

type EventBus struct {
	logger *slog.Logger
	mu     sync.RWMutex
	subs   map[domain.RunID][]chan Event
}

func NewEventBus(logger *slog.Logger) *EventBus {
	return &EventBus{
		logger: logger,
		subs:   make(map[domain.RunID][]chan Event),
	}
}

// Subscribe returns a channel that receives events for one run
func (b *EventBus) Subscribe(runID domain.RunID) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, 100) // Buffer to prevent blocking publisher
	b.subs[runID] = append(b.subs[runID], ch)

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()

			subscribers := b.subs[runID]
			for i, sub := range subscribers {
				if sub == ch {
					close(ch)
					b.subs[runID] = append(subscribers[:i], subscribers[i+1:]...)
					break
				}
			}
			if len(b.subs[runID]) == 0 {
				delete(b.subs, runID)
			}
		})
	}

	return ch, unsub
}

// Publish sends an event to all subscribers of the run
func (b *EventBus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	subscribers, ok := b.subs[e.RunID]
	if !ok {
		return
	}

	for _, ch := range subscribers {
		select {
		case ch <- e:
		default:
			// If channel is full, drop event to prevent blocking the agent loop
			b.logger.Warn("event bus channel full, dropping event", "run_id", string(e.RunID))
		}
	}
}

// PublishStep announces a transcript step as it is appended
func (b *EventBus) PublishStep(runID domain.RunID, step domain.Step) {
	b.publishJSON(runID, EventTypeStep, step)
}

// PublishDone announces the end of a run
func (b *EventBus) PublishDone(runID domain.RunID, result domain.RunResult) {
	b.publishJSON(runID, EventTypeDone, map[string]any{
		"outcome":    result.Outcome,
		"answer":     result.Answer,
		"error":      result.Error,
		"iterations": result.Iterations,
	})
}

func (b *EventBus) publishJSON(runID domain.RunID, t EventType, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		b.logger.Warn("failed to encode event", "run_id", string(runID), "error", err)
		return
	}
	b.Publish(Event{
		RunID:     runID,
		Type:      t,
		Data:      string(payload),
		Timestamp: time.Now().UnixMilli(),
	})
}
