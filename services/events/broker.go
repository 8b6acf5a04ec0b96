package eventsvc

import (
	"context"
	"sync"

	"github.com/trezcool/elimu/core/purchase"
)

// Publisher broadcasts payment messages to the running checkouts.
type Publisher interface {
	Publish(ctx context.Context, msg purchase.Message) error
}

// Broker is an in-process payment message bus, used when no AMQP server is configured.
type Broker struct {
	mutex  sync.RWMutex
	nextID int
	subs   map[int]chan purchase.Message
}

var (
	_ purchase.Events = (*Broker)(nil)
	_ Publisher       = (*Broker)(nil)
)

func NewBroker() *Broker {
	return &Broker{subs: make(map[int]chan purchase.Message)}
}

// Subscribe returns a channel receiving every message published until ctx is done.
func (b *Broker) Subscribe(ctx context.Context) (<-chan purchase.Message, error) {
	ch := make(chan purchase.Message, 8)

	b.mutex.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mutex.Unlock()

	go func() {
		<-ctx.Done()
		b.mutex.Lock()
		delete(b.subs, id)
		close(ch)
		b.mutex.Unlock()
	}()
	return ch, nil
}

// Publish delivers msg to every subscriber. Slow subscribers miss messages rather than block.
func (b *Broker) Publish(_ context.Context, msg purchase.Message) error {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- msg:
		default:
		}
	}
	return nil
}

func (b *Broker) Subscribers() int {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	return len(b.subs)
}
