package sync

import (
	"sync"

	"github.com/fakturo/fakturo/internal/core/interfaces"
	"github.com/fakturo/fakturo/pkg/models"
)

// EventBus fans sync lifecycle notifications out to any number of
// subscribed observers. Registration is additive; subscribing does not
// displace earlier observers.
type EventBus struct {
	mu        sync.RWMutex
	observers []interfaces.SyncObserver
}

// NewEventBus creates an empty event bus
func NewEventBus() *EventBus {
	return &EventBus{}
}

// Subscribe adds an observer. Returns an unsubscribe function.
func (b *EventBus) Subscribe(observer interfaces.SyncObserver) func() {
	b.mu.Lock()
	b.observers = append(b.observers, observer)
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, o := range b.observers {
			if o == observer {
				b.observers = append(b.observers[:i], b.observers[i+1:]...)
				return
			}
		}
	}
}

func (b *EventBus) snapshot() []interfaces.SyncObserver {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]interfaces.SyncObserver(nil), b.observers...)
}

// PublishStarted notifies observers that a run began
func (b *EventBus) PublishStarted(info interfaces.RunInfo) {
	for _, observer := range b.snapshot() {
		observer.OnSyncStarted(info)
	}
}

// PublishProgress notifies observers of a stage transition
func (b *EventBus) PublishProgress(progress models.SyncProgress) {
	for _, observer := range b.snapshot() {
		observer.OnSyncProgress(progress)
	}
}

// PublishCompleted notifies observers of a finished run
func (b *EventBus) PublishCompleted(result *models.SyncResult) {
	for _, observer := range b.snapshot() {
		observer.OnSyncCompleted(result)
	}
}

// PublishError notifies observers of a run failure
func (b *EventBus) PublishError(err error) {
	for _, observer := range b.snapshot() {
		observer.OnSyncError(err)
	}
}
