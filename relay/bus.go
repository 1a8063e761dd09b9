package relay

import (
	"context"
	"sync"

	"github.com/chuka-black-market/marketplace/models"
)

// Bus carries published messages to every hub subscribed to it. A hub
// publishes to the bus and delivers to its own connections only what comes
// back from the bus, so several server processes can share one channel.
type Bus interface {
	Publish(ctx context.Context, msg *models.Message) error
	Subscribe(handler func(msg *models.Message)) (unsubscribe func(), err error)
}

// LocalBus delivers synchronously inside the process.
type LocalBus struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[int]func(*models.Message)
}

func NewLocalBus() *LocalBus {
	return &LocalBus{handlers: make(map[int]func(*models.Message))}
}

func (b *LocalBus) Publish(ctx context.Context, msg *models.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, h := range b.handlers {
		h(msg)
	}
	return nil
}

func (b *LocalBus) Subscribe(handler func(*models.Message)) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.handlers[id] = handler
	return func() {
		b.mu.Lock()
		delete(b.handlers, id)
		b.mu.Unlock()
	}, nil
}
