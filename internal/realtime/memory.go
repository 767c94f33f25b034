package realtime

import (
	"context"
	"sync"

	"textile-store/internal/domain"
)

const subscriberBuffer = 64

type subscription struct {
	table string
	event domain.ChangeEvent
	ch    chan domain.Change
}

type memoryBroker struct {
	mu     sync.RWMutex
	subs   map[*subscription]struct{}
	closed bool
}

// NewMemoryBroker delivers changes within this process only.
func NewMemoryBroker() Broker {
	return &memoryBroker{subs: make(map[*subscription]struct{})}
}

// Publish never blocks; a subscriber whose buffer is full misses the change.
func (b *memoryBroker) Publish(_ context.Context, change domain.Change) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs {
		if sub.table != change.Table || !change.Matches(sub.event) {
			continue
		}
		select {
		case sub.ch <- change:
		default:
		}
	}
	return nil
}

func (b *memoryBroker) Subscribe(ctx context.Context, table string, event domain.ChangeEvent) (<-chan domain.Change, error) {
	sub := &subscription{table: table, event: event, ch: make(chan domain.Change, subscriberBuffer)}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(sub.ch)
		return sub.ch, nil
	}
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.remove(sub)
	}()

	return sub.ch, nil
}

func (b *memoryBroker) remove(sub *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub]; ok {
		delete(b.subs, sub)
		close(sub.ch)
	}
}

func (b *memoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs {
		delete(b.subs, sub)
		close(sub.ch)
	}
	b.closed = true
	return nil
}
