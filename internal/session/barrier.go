package session

import (
	"net"
	"slices"
	"time"

	"github.com/colibrishin/dx-api-sub000/internal/protocol"
)

// MatchInit is the aggregated setup of every room member, frozen when the
// host starts the match.
type MatchInit struct {
	MatchID    string
	Room       int32
	Players    []int32
	Characters []protocol.Character
	Items      [][protocol.ItemSlots]int32
	WindSeed   uint64
	Addrs      []net.Addr
	// Repeat is set when the match had already been initialised and this
	// call only returns the frozen payload again.
	Repeat bool
}

// Barrier reports the state of a room's load barrier after one report.
type Barrier struct {
	Room     int32
	MatchID  string
	Loaded   int
	Expected int
	// Released is true for exactly the report that completed the barrier.
	Released bool
	// Started is true when the barrier had been released before.
	Started   bool
	StartedAt time.Time
	Addrs     []net.Addr
}

type Result struct {
	MatchID   string
	Room      int32
	Winner    int32
	Players   []int32
	StartedAt time.Time
	EndedAt   time.Time
}

// StartMatch freezes every member's setup into one MatchInit. Only the
// member with the lowest player id may do this; a repeat request returns the
// same payload.
func (r *Registry) StartMatch(k Key, addr net.Addr) (MatchInit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.lookup(k, addr); err != nil {
		return MatchInit{}, err
	}
	rm := r.rooms[k.Room]
	if rm == nil {
		return MatchInit{}, ErrUnknownPlayer
	}
	if rm.match != nil {
		init := rm.match.init
		init.Addrs = r.roomViewLocked(rm).Addrs()
		init.Repeat = true
		return init, nil
	}
	if slices.Min(rm.members) != k.Player {
		return MatchInit{}, ErrNotHost
	}
	if len(rm.members) < 2 {
		return MatchInit{}, ErrNotEnoughPlayers
	}

	init := MatchInit{
		MatchID:  r.matchID(),
		Room:     rm.id,
		WindSeed: r.seed(),
	}
	for _, p := range rm.members {
		c := r.conns[Key{Room: rm.id, Player: p}]
		ch := c.Setup.Character
		if ch == protocol.CharacterUnset {
			ch = protocol.DefaultCharacter
		}
		init.Players = append(init.Players, p)
		init.Characters = append(init.Characters, ch)
		init.Items = append(init.Items, c.Setup.Items)
		c.Stage = StageLoadingAssets
	}

	rm.match = &match{
		id:     init.MatchID,
		init:   init,
		loaded: make(map[int32]bool, len(rm.members)),
	}
	init.Addrs = r.roomViewLocked(rm).Addrs()
	return init, nil
}

// MarkLoaded records that player finished loading. The barrier releases
// once every registered member has reported; duplicates never count twice.
func (r *Registry) MarkLoaded(k Key, addr net.Addr, frameTime int64) (Barrier, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, err := r.lookup(k, addr)
	if err != nil {
		return Barrier{}, err
	}
	rm := r.rooms[k.Room]
	if rm == nil || rm.match == nil {
		return Barrier{}, ErrNotStarted
	}
	c.Setup.FrameTime = frameTime

	m := rm.match
	if m.started {
		return r.barrierLocked(rm, false), nil
	}
	m.loaded[k.Player] = true
	b, _ := r.tryReleaseLocked(rm)
	return b, nil
}

func (r *Registry) tryReleaseLocked(rm *room) (Barrier, bool) {
	m := rm.match
	if m.started || len(m.loaded) < len(rm.members) {
		return r.barrierLocked(rm, false), false
	}
	m.started = true
	m.startedAt = r.now()
	for _, p := range rm.members {
		if c := r.conns[Key{Room: rm.id, Player: p}]; c != nil {
			c.Stage = StageInMatch
		}
	}
	return r.barrierLocked(rm, true), true
}

func (r *Registry) barrierLocked(rm *room, released bool) Barrier {
	m := rm.match
	return Barrier{
		Room:      rm.id,
		MatchID:   m.id,
		Loaded:    len(m.loaded),
		Expected:  len(rm.members),
		Released:  released,
		Started:   m.started && !released,
		StartedAt: m.startedAt,
		Addrs:     r.roomViewLocked(rm).Addrs(),
	}
}

// FinishMatch records the outcome reported by a member. Only the first report
// creates a Result (first == true); the room is torn down once every member
// has reported or left.
func (r *Registry) FinishMatch(k Key, addr net.Addr, winner int32) (res Result, first bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, err := r.lookup(k, addr)
	if err != nil {
		return Result{}, false, err
	}
	rm := r.rooms[k.Room]
	if rm == nil || rm.match == nil || !rm.match.started {
		return Result{}, false, ErrNotStarted
	}

	m := rm.match
	if m.result == nil {
		m.result = &Result{
			MatchID:   m.id,
			Room:      rm.id,
			Winner:    winner,
			Players:   slices.Clone(m.init.Players),
			StartedAt: m.startedAt,
			EndedAt:   r.now(),
		}
		first = true
	}
	res = *m.result
	c.done = true

	for _, p := range rm.members {
		if mc := r.conns[Key{Room: rm.id, Player: p}]; mc != nil && !mc.done {
			return res, first, nil
		}
	}
	for _, p := range slices.Clone(rm.members) {
		delete(r.conns, Key{Room: rm.id, Player: p})
	}
	delete(r.rooms, rm.id)
	return res, first, nil
}
