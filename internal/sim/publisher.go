package sim

import (
	"sync/atomic"

	"github.com/san-kum/gravsim/internal/dynamo"
)

// Publisher receives a snapshot after every completed tick. Publish is
// called from the scheduler goroutine; a slow publisher delays the next
// tick. Snapshots must be treated as read-only.
//
// Publish may call Start, Stop or Close on the scheduler that is publishing.
// Those calls do not wait for the loop; they return at once and are applied
// when Publish returns.
type Publisher interface {
	Publish(s dynamo.Snapshot)
}

// PublisherFunc adapts a function to the Publisher interface.
type PublisherFunc func(s dynamo.Snapshot)

func (f PublisherFunc) Publish(s dynamo.Snapshot) { f(s) }

// ChannelPublisher hands snapshots to a consumer goroutine through a
// buffered channel. When the buffer is full the oldest queued snapshot is
// discarded, so Publish never blocks and the consumer always catches up to
// the latest state.
type ChannelPublisher struct {
	ch      chan dynamo.Snapshot
	dropped atomic.Uint64
}

// NewChannelPublisher returns a publisher buffering up to buffer snapshots.
func NewChannelPublisher(buffer int) *ChannelPublisher {
	if buffer < 1 {
		buffer = 1
	}
	return &ChannelPublisher{ch: make(chan dynamo.Snapshot, buffer)}
}

// Publish queues s, discarding the oldest queued snapshot if the buffer is full.
func (c *ChannelPublisher) Publish(s dynamo.Snapshot) {
	for {
		select {
		case c.ch <- s:
			return
		default:
		}
		select {
		case <-c.ch:
			c.dropped.Add(1)
		default:
		}
	}
}

// C returns the channel snapshots are delivered on. It is never closed.
func (c *ChannelPublisher) C() <-chan dynamo.Snapshot { return c.ch }

// Dropped returns how many snapshots were discarded unread.
func (c *ChannelPublisher) Dropped() uint64 { return c.dropped.Load() }

// Fanout publishes to each publisher in order. Every publisher after the
// first gets its own copy of the body slice.
type Fanout []Publisher

// Publish forwards s to every publisher.
func (f Fanout) Publish(s dynamo.Snapshot) {
	for i, p := range f {
		if i == 0 {
			p.Publish(s)
			continue
		}
		p.Publish(s.Clone())
	}
}
