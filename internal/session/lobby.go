package session

import (
	"net"

	"github.com/colibrishin/dx-api-sub000/internal/protocol"
)

type LobbyEntry struct {
	Player int32
	Name   string
}

type LobbyView struct {
	Players []LobbyEntry
	Addrs   []net.Addr
}

// JoinLobby registers player in the lobby roster. Joining again from the same
// address only refreshes the record.
func (r *Registry) JoinLobby(player int32, name string, addr net.Addr) (LobbyView, error) {
	if len(name) > protocol.NameSize {
		return LobbyView{}, ErrBadValue
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	k := Key{Room: protocol.LobbyRoomID, Player: player}
	if _, ok := r.conns[k]; ok {
		if _, err := r.lookup(k, addr); err != nil {
			return LobbyView{}, err
		}
		return r.lobbyViewLocked(), nil
	}

	slot := -1
	for i := range r.lobby {
		if !r.lobby[i].present {
			slot = i
			break
		}
	}
	if slot < 0 {
		return LobbyView{}, ErrLobbyFull
	}

	r.lobby[slot] = lobbySlot{present: true, player: player}
	r.conns[k] = &Conn{
		Key:         k,
		Addr:        addr,
		Name:        name,
		LastContact: r.now(),
		Stage:       StageInLobby,
		Setup:       Setup{Character: protocol.CharacterUnset},
	}
	return r.lobbyViewLocked(), nil
}

func (r *Registry) LeaveLobby(player int32, addr net.Addr) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := Key{Room: protocol.LobbyRoomID, Player: player}
	if _, err := r.lookup(k, addr); err != nil {
		return err
	}
	r.dropLocked(k)
	return nil
}

// Lobby returns the roster in slot order plus every lobby address.
func (r *Registry) Lobby() LobbyView {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lobbyViewLocked()
}

func (r *Registry) lobbyViewLocked() LobbyView {
	var v LobbyView
	for _, s := range r.lobby {
		if !s.present {
			continue
		}
		c := r.conns[Key{Room: protocol.LobbyRoomID, Player: s.player}]
		if c == nil {
			continue
		}
		v.Players = append(v.Players, LobbyEntry{Player: s.player, Name: c.Name})
		v.Addrs = append(v.Addrs, c.Addr)
	}
	return v
}

func (r *Registry) clearSlotLocked(player int32) {
	for i := range r.lobby {
		if r.lobby[i].present && r.lobby[i].player == player {
			r.lobby[i] = lobbySlot{}
		}
	}
}
