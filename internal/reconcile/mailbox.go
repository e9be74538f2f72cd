package reconcile

import (
	"slices"
	"sync"

	"github.com/colibrishin/dx-api-sub000/internal/protocol"
)

type slot struct {
	key  EntityKey
	kind protocol.Kind
}

// Mailbox holds the latest unconsumed gameplay record per entity and kind.
// Inbound traffic is treated as level-triggered state: a newer record for
// the same slot replaces the older one, so at most one record per kind is
// applied to an entity each tick.
type Mailbox struct {
	mu      sync.Mutex
	pending map[slot]protocol.Message
}

func NewMailbox() *Mailbox {
	return &Mailbox{pending: make(map[slot]protocol.Message)}
}

// Put stores m under key, replacing whatever was pending for that kind.
func (mb *Mailbox) Put(key EntityKey, m protocol.Message) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.pending[slot{key: key, kind: protocol.KindOf(m)}] = m
}

// Ingest files a decoded record under the entity it refers to. It reports
// false for records that are not gameplay traffic.
func (mb *Mailbox) Ingest(m protocol.Message) bool {
	key, ok := KeyOf(m)
	if !ok {
		return false
	}
	mb.Put(key, m)
	return true
}

// Take removes and returns the pending record of kind for key.
func (mb *Mailbox) Take(key EntityKey, kind protocol.Kind) (protocol.Message, bool) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	s := slot{key: key, kind: kind}
	m, ok := mb.pending[s]
	if ok {
		delete(mb.pending, s)
	}
	return m, ok
}

// TakeOwned removes the pending records of kind for every entity owned by
// player in room, one per entity, ordered by key.
func (mb *Mailbox) TakeOwned(room, player int32, kind protocol.Kind) []protocol.Message {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	var keys []EntityKey
	for s := range mb.pending {
		if s.kind == kind && s.key.Room == room && s.key.Player == player {
			keys = append(keys, s.key)
		}
	}
	slices.SortFunc(keys, EntityKey.compare)

	out := make([]protocol.Message, 0, len(keys))
	for _, k := range keys {
		s := slot{key: k, kind: kind}
		out = append(out, mb.pending[s])
		delete(mb.pending, s)
	}
	return out
}

func (mb *Mailbox) Len() int {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	return len(mb.pending)
}

// Reset discards everything pending, e.g. between matches.
func (mb *Mailbox) Reset() {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	clear(mb.pending)
}
