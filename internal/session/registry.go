package session

import (
	"errors"
	"math/rand/v2"
	"net"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/colibrishin/dx-api-sub000/internal/protocol"
)

var (
	ErrLobbyFull        = errors.New("lobby is full")
	ErrRoomFull         = errors.New("room is full")
	ErrBadRoom          = errors.New("invalid room id")
	ErrInMatch          = errors.New("room is already in a match")
	ErrAddrMismatch     = errors.New("sender address does not match the registered connection")
	ErrUnknownPlayer    = errors.New("unknown player")
	ErrNotHost          = errors.New("only the lowest player id may start the match")
	ErrNotEnoughPlayers = errors.New("a match needs at least two players")
	ErrNotStarted       = errors.New("match has not been initialised")
	ErrBadValue         = errors.New("invalid selection")
)

type Key struct {
	Room   int32
	Player int32
}

// Setup is the room-scoped state a player builds before the match starts.
type Setup struct {
	Character protocol.Character
	Items     [protocol.ItemSlots]int32
	FrameTime int64
}

// Conn is a connection record. Lobby-only players are keyed under
// protocol.LobbyRoomID.
type Conn struct {
	Key
	Addr        net.Addr
	Name        string
	LastContact time.Time
	Stage       Stage
	Setup       Setup
	done        bool
}

type room struct {
	id      int32
	members []int32
	match   *match
}

type match struct {
	id        string
	init      MatchInit
	loaded    map[int32]bool
	started   bool
	startedAt time.Time
	result    *Result
}

type lobbySlot struct {
	present bool
	player  int32
}

// Registry is the authoritative server-side session state. It is created at
// server start, owned by the server and safe for concurrent use by the
// dispatch, broadcast and sweep loops.
type Registry struct {
	mu    sync.Mutex
	conns map[Key]*Conn
	lobby [protocol.LobbyCapacity]lobbySlot
	rooms map[int32]*room

	now     func() time.Time
	matchID func() string
	seed    func() uint64
}

type Option func(*Registry)

func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

func WithMatchIDs(next func() string) Option {
	return func(r *Registry) { r.matchID = next }
}

func WithSeeds(next func() uint64) Option {
	return func(r *Registry) { r.seed = next }
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		conns:   make(map[Key]*Conn),
		rooms:   make(map[int32]*room),
		now:     time.Now,
		matchID: func() string { return uuid.NewString() },
		seed:    rand.Uint64,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func sameAddr(a, b net.Addr) bool {
	return a != nil && b != nil && a.String() == b.String()
}

// lookup returns the record for k after re-validating the sender. A record
// reached from a different address is discarded, not trusted.
// Callers hold r.mu.
func (r *Registry) lookup(k Key, addr net.Addr) (*Conn, error) {
	c, ok := r.conns[k]
	if !ok {
		return nil, ErrUnknownPlayer
	}
	if !sameAddr(c.Addr, addr) {
		r.dropLocked(k)
		return nil, ErrAddrMismatch
	}
	c.LastContact = r.now()
	return c, nil
}

// Verify re-validates and touches the connection at k.
func (r *Registry) Verify(k Key, addr net.Addr) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := r.lookup(k, addr)
	return err
}

// Conn returns a copy of the record at k.
func (r *Registry) Conn(k Key) (Conn, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[k]
	if !ok {
		return Conn{}, false
	}
	return *c, true
}

// dropLocked removes the record at k from whichever registry holds it and
// reports the resulting room state. Callers hold r.mu.
func (r *Registry) dropLocked(k Key) Eviction {
	c, ok := r.conns[k]
	ev := Eviction{Key: k}
	if !ok {
		return ev
	}
	ev.Addr = c.Addr
	delete(r.conns, k)

	if k.Room == protocol.LobbyRoomID {
		r.clearSlotLocked(k.Player)
		return ev
	}

	rm, ok := r.rooms[k.Room]
	if !ok {
		return ev
	}
	rm.members = slices.DeleteFunc(rm.members, func(p int32) bool { return p == k.Player })
	if len(rm.members) == 0 {
		delete(r.rooms, k.Room)
		return ev
	}

	view := r.roomViewLocked(rm)
	ev.Room = &view
	if m := rm.match; m != nil && !m.started {
		delete(m.loaded, k.Player)
		if b, released := r.tryReleaseLocked(rm); released {
			ev.Barrier = &b
		}
	}
	return ev
}

// Eviction describes a removed connection and what it left behind.
type Eviction struct {
	Key
	Addr net.Addr
	// Room is the remaining room state, nil for lobby players or when the
	// room emptied.
	Room *RoomView
	// Barrier is set when the removal completed a pending load barrier.
	Barrier *Barrier
}
