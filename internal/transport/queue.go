package transport

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/colibrishin/dx-api-sub000/internal/protocol"
)

// Packet is one raw datagram as it came off the socket.
type Packet struct {
	From net.Addr
	At   time.Time
	Data []byte
}

// Queue is the inbound datagram queue shared by the receive loop and
// whichever goroutine drains it. Entries stay raw until a consumer asks for a
// specific kind, so unrelated messages survive a targeted search.
type Queue struct {
	mu      sync.Mutex
	items   []Packet
	limit   int
	dropped int
	ready   chan struct{}
}

// NewQueue returns a queue holding at most limit packets; when full the
// oldest packet is dropped. limit <= 0 means unbounded.
func NewQueue(limit int) *Queue {
	return &Queue{
		limit: limit,
		ready: make(chan struct{}, 1),
	}
}

// Push appends p and wakes a waiter. It reports whether an old packet had to
// be dropped to make room.
func (q *Queue) Push(p Packet) bool {
	q.mu.Lock()
	dropped := false
	if q.limit > 0 && len(q.items) >= q.limit {
		q.items[0] = Packet{}
		q.items = q.items[1:]
		q.dropped++
		dropped = true
	}
	q.items = append(q.items, p)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
	return dropped
}

// PopAny removes and returns the oldest packet.
func (q *Queue) PopAny() (Packet, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return Packet{}, false
	}
	p := q.items[0]
	q.items[0] = Packet{}
	q.items = q.items[1:]
	return p, true
}

// FindAndRemove removes the oldest packet that decodes as one of kinds.
func (q *Queue) FindAndRemove(kinds ...protocol.Kind) (Packet, protocol.Message, bool) {
	return q.FindAndRemoveFunc(nil, kinds...)
}

// FindAndRemoveFunc is FindAndRemove with an extra predicate on the decoded
// message. With no kinds every valid message is a candidate. Packets that
// fail to decode as a candidate are skipped, not removed.
func (q *Queue) FindAndRemoveFunc(match func(protocol.Message) bool, kinds ...protocol.Kind) (Packet, protocol.Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, p := range q.items {
		m, ok := candidate(p.Data, kinds)
		if !ok || (match != nil && !match(m)) {
			continue
		}
		q.items = append(q.items[:i], q.items[i+1:]...)
		return p, m, true
	}
	return Packet{}, nil, false
}

func candidate(data []byte, kinds []protocol.Kind) (protocol.Message, bool) {
	if len(kinds) == 0 {
		m, err := protocol.Decode(data)
		return m, err == nil
	}
	for _, k := range kinds {
		if m, err := protocol.DecodeAs(k, data); err == nil {
			return m, true
		}
	}
	return nil, false
}

// Wait blocks until the queue is non-empty or ctx is done.
func (q *Queue) Wait(ctx context.Context) error {
	for {
		if q.Len() > 0 {
			return nil
		}
		select {
		case <-q.ready:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Dropped returns how many packets were discarded because the queue was full.
func (q *Queue) Dropped() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
