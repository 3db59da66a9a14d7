// Package subpub is a small in-process fan-out used to stream session state
// updates to SSE subscribers. Each update carries a monotonically increasing
// sequence number; a subscriber only receives updates newer than the last
// one it has seen, and a subscriber that cannot keep up is disconnected
// rather than allowed to block the publisher.
package subpub

import (
	"context"
	"sync"
)

type SubPub[K any] struct {
	mu          sync.Mutex
	subscribers []*subscriber[K]
}

type subscriber[K any] struct {
	idx    int64
	ch     chan K
	ctx    context.Context
	cancel context.CancelFunc
}

func New[K any]() *SubPub[K] {
	return &SubPub[K]{}
}

// Subscribe registers interest in updates after the given sequence number,
// subject to ctx. The returned function blocks until the next update and
// reports false when the subscription is over.
func (sp *SubPub[K]) Subscribe(ctx context.Context, idx int64) func() (K, bool) {
	subCtx, cancel := context.WithCancel(ctx)

	// Buffered so a publisher never blocks on a slow subscriber.
	ch := make(chan K, 10)
	sub := &subscriber[K]{
		idx:    idx,
		ch:     ch,
		ctx:    subCtx,
		cancel: cancel,
	}

	sp.mu.Lock()
	sp.subscribers = append(sp.subscribers, sub)
	sp.mu.Unlock()

	return func() (K, bool) {
		select {
		case msg, ok := <-ch:
			if !ok {
				var zero K
				return zero, false
			}
			return msg, true
		case <-subCtx.Done():
			// Drain anything already buffered before giving up.
			select {
			case msg, ok := <-ch:
				if ok {
					return msg, true
				}
			default:
			}
			var zero K
			return zero, false
		}
	}
}

// Publish delivers an update to every subscriber that has not yet seen
// sequence number idx. Subscribers with a full buffer are behind the live
// state and get cut off; they are expected to resubscribe from scratch.
func (sp *SubPub[K]) Publish(idx int64, message K) {
	sp.mu.Lock()
	defer sp.mu.Unlock()

	remaining := sp.subscribers[:0]
	for _, sub := range sp.subscribers {
		select {
		case <-sub.ctx.Done():
			close(sub.ch)
			continue
		default:
		}

		if sub.idx >= idx {
			remaining = append(remaining, sub)
			continue
		}

		select {
		case sub.ch <- message:
			sub.idx = idx
			remaining = append(remaining, sub)
		default:
			close(sub.ch)
			sub.cancel()
		}
	}
	sp.subscribers = remaining
}
