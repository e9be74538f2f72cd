package session

import (
	"net"
	"time"

	"github.com/colibrishin/dx-api-sub000/internal/protocol"
)

// Sweep evicts every connection whose last contact is older than staleAfter.
func (r *Registry) Sweep(staleAfter time.Duration) []Eviction {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-staleAfter)
	var stale []Key
	for k, c := range r.conns {
		if c.LastContact.Before(cutoff) {
			stale = append(stale, k)
		}
	}
	return r.evictLocked(stale)
}

// EvictAddr evicts every connection registered from addr.
func (r *Registry) EvictAddr(addr net.Addr) []Eviction {
	r.mu.Lock()
	defer r.mu.Unlock()

	var keys []Key
	for k, c := range r.conns {
		if sameAddr(c.Addr, addr) {
			keys = append(keys, k)
		}
	}
	return r.evictLocked(keys)
}

func (r *Registry) evictLocked(keys []Key) []Eviction {
	out := make([]Eviction, 0, len(keys))
	last := map[int32]int{}
	for _, k := range keys {
		ev := r.dropLocked(k)
		ev.Room = nil
		if k.Room != protocol.LobbyRoomID {
			last[k.Room] = len(out)
		}
		out = append(out, ev)
	}
	// only the last eviction per room carries the roster left behind
	for id, i := range last {
		if rm, ok := r.rooms[id]; ok {
			view := r.roomViewLocked(rm)
			out[i].Room = &view
		}
	}
	return out
}
