package server

import (
	"github.com/colibrishin/dx-api-sub000/internal/protocol"
	"github.com/colibrishin/dx-api-sub000/internal/session"
)

// name converts a registered name. The registry refuses names wider than
// the wire field, so the conversion cannot fail here.
func name(s string) protocol.Name {
	n, _ := protocol.NewName(s)
	return n
}

func lobbyInfo(v session.LobbyView) *protocol.LobbyInfo {
	m := &protocol.LobbyInfo{PlayerCount: int32(len(v.Players))}
	for i := range m.Players {
		m.Players[i] = protocol.NoPlayer
	}
	for i, e := range v.Players {
		if i == protocol.LobbyCapacity {
			break
		}
		m.Players[i] = e.Player
		m.Names[i] = name(e.Name)
	}
	return m
}

func roomInfo(v session.RoomView) *protocol.RoomInfo {
	m := &protocol.RoomInfo{PlayerCount: int32(len(v.Members))}
	for i := range m.Players {
		m.Players[i] = protocol.NoPlayer
	}
	for i, mb := range v.Members {
		if i == protocol.RoomCapacity {
			break
		}
		m.Players[i] = mb.Player
		m.Names[i] = name(mb.Name)
	}
	return m
}

func gameInit(init session.MatchInit) *protocol.GameInit {
	m := &protocol.GameInit{
		PlayerCount: int32(len(init.Players)),
		WindSeed:    init.WindSeed,
	}
	for i := range m.Players {
		m.Players[i] = protocol.NoPlayer
		m.Characters[i] = protocol.CharacterUnset
	}
	for i, p := range init.Players {
		if i == protocol.RoomCapacity {
			break
		}
		m.Players[i] = p
		m.Characters[i] = init.Characters[i]
		m.Items[i] = init.Items[i]
	}
	return m
}
