package session

import (
	"cmp"
	"net"
	"slices"

	"github.com/colibrishin/dx-api-sub000/internal/protocol"
)

type Member struct {
	Player    int32
	Name      string
	Addr      net.Addr
	Stage     Stage
	Character protocol.Character
}

type RoomView struct {
	ID      int32
	Members []Member
	InMatch bool
}

// Addrs lists every member address except those of skip.
func (v RoomView) Addrs(skip ...int32) []net.Addr {
	var out []net.Addr
	for _, m := range v.Members {
		if slices.Contains(skip, m.Player) {
			continue
		}
		out = append(out, m.Addr)
	}
	return out
}

// JoinRoom puts player into room id and takes them out of the lobby or the
// room they were in before; the latter comes back as an eviction. A repeat
// join from the same address returns the current roster unchanged.
func (r *Registry) JoinRoom(id, player int32, name string, addr net.Addr) (RoomView, *Eviction, error) {
	if id == protocol.LobbyRoomID {
		return RoomView{}, nil, ErrBadRoom
	}
	if len(name) > protocol.NameSize {
		return RoomView{}, nil, ErrBadValue
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	k := Key{Room: id, Player: player}
	if _, ok := r.conns[k]; ok {
		if _, err := r.lookup(k, addr); err != nil {
			return RoomView{}, nil, err
		}
		return r.roomViewLocked(r.rooms[id]), nil, nil
	}

	rm, ok := r.rooms[id]
	if !ok {
		rm = &room{id: id}
		r.rooms[id] = rm
	}
	if rm.match != nil {
		return RoomView{}, nil, ErrInMatch
	}
	if len(rm.members) >= protocol.RoomCapacity {
		return RoomView{}, nil, ErrRoomFull
	}

	var moved *Eviction
	for other := range r.conns {
		if other.Player != player || other.Room == id {
			continue
		}
		ev := r.dropLocked(other)
		if other.Room != protocol.LobbyRoomID {
			moved = &ev
		}
	}

	r.conns[k] = &Conn{
		Key:         k,
		Addr:        addr,
		Name:        name,
		LastContact: r.now(),
		Stage:       StageInRoom,
		Setup:       Setup{Character: protocol.CharacterUnset},
	}
	rm.members = append(rm.members, player)
	slices.Sort(rm.members)
	return r.roomViewLocked(rm), moved, nil
}

// LeaveRoom removes player and returns the eviction describing what remains.
func (r *Registry) LeaveRoom(id, player int32, addr net.Addr) (Eviction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := Key{Room: id, Player: player}
	if _, err := r.lookup(k, addr); err != nil {
		return Eviction{}, err
	}
	return r.dropLocked(k), nil
}

func (r *Registry) SelectCharacter(k Key, addr net.Addr, ch protocol.Character) error {
	if ch < protocol.CharacterCannon || ch > protocol.CharacterShotgun {
		return ErrBadValue
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	c, err := r.setupLocked(k, addr)
	if err != nil {
		return err
	}
	c.Setup.Character = ch
	c.Stage = StageAwaitingMatchStart
	return nil
}

func (r *Registry) SelectItems(k Key, addr net.Addr, items [protocol.ItemSlots]int32) error {
	for _, it := range items {
		if it < 0 {
			return ErrBadValue
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	c, err := r.setupLocked(k, addr)
	if err != nil {
		return err
	}
	c.Setup.Items = items
	if c.Stage == StageInRoom {
		c.Stage = StageSetupSelecting
	}
	return nil
}

func (r *Registry) setupLocked(k Key, addr net.Addr) (*Conn, error) {
	if k.Room == protocol.LobbyRoomID {
		return nil, ErrBadRoom
	}
	c, err := r.lookup(k, addr)
	if err != nil {
		return nil, err
	}
	if rm := r.rooms[k.Room]; rm != nil && rm.match != nil {
		return nil, ErrInMatch
	}
	return c, nil
}

// Room returns the roster of room id.
func (r *Registry) Room(id int32) (RoomView, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rm, ok := r.rooms[id]
	if !ok {
		return RoomView{}, false
	}
	return r.roomViewLocked(rm), true
}

// Rooms returns every room ordered by id.
func (r *Registry) Rooms() []RoomView {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RoomView, 0, len(r.rooms))
	for _, rm := range r.rooms {
		out = append(out, r.roomViewLocked(rm))
	}
	slices.SortFunc(out, func(a, b RoomView) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// Peers validates the sender and returns the addresses of the other members
// of a running match.
func (r *Registry) Peers(k Key, addr net.Addr) ([]net.Addr, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.lookup(k, addr); err != nil {
		return nil, err
	}
	rm := r.rooms[k.Room]
	if rm == nil || rm.match == nil || !rm.match.started {
		return nil, ErrNotStarted
	}
	return r.roomViewLocked(rm).Addrs(k.Player), nil
}

func (r *Registry) roomViewLocked(rm *room) RoomView {
	v := RoomView{ID: rm.id, InMatch: rm.match != nil}
	for _, p := range rm.members {
		c := r.conns[Key{Room: rm.id, Player: p}]
		if c == nil {
			continue
		}
		v.Members = append(v.Members, Member{
			Player:    p,
			Name:      c.Name,
			Addr:      c.Addr,
			Stage:     c.Stage,
			Character: c.Setup.Character,
		})
	}
	return v
}
