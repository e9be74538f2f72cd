package transport

import (
	"net"
	"sync"
)

// BadClients collects peer addresses that failed at the transport level so a
// sweep can evict them later.
type BadClients struct {
	mu    sync.Mutex
	addrs map[string]net.Addr
}

func NewBadClients() *BadClients {
	return &BadClients{addrs: make(map[string]net.Addr)}
}

func (b *BadClients) Mark(addr net.Addr) {
	if addr == nil {
		return
	}
	b.mu.Lock()
	b.addrs[addr.String()] = addr
	b.mu.Unlock()
}

// Drain returns every marked address and clears the list.
func (b *BadClients) Drain() []net.Addr {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]net.Addr, 0, len(b.addrs))
	for _, a := range b.addrs {
		out = append(out, a)
	}
	clear(b.addrs)
	return out
}

func (b *BadClients) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.addrs)
}
