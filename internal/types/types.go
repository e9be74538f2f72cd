package types

import (
	"github.com/colibrishin/dx-api-sub000/internal/feed"
	"github.com/colibrishin/dx-api-sub000/internal/session"
	"github.com/colibrishin/dx-api-sub000/internal/store"
	api "github.com/colibrishin/dx-api-sub000/pkg/types"
)

type ClientMessage struct {
	Type string `json:"type"` // "Snapshot"
}

type ServerMessage struct {
	Type     string            `json:"type"` // "Event" | "Snapshot" | "Error"
	Event    *api.Event        `json:"event,omitempty"`
	Snapshot *api.FeedSnapshot `json:"snapshot,omitempty"`
	Error    string            `json:"error,omitempty"`
}

func Event(ev feed.Event) api.Event {
	out := api.Event{
		Type:    string(ev.Type),
		Room:    ev.Room,
		MatchID: ev.MatchID,
		At:      ev.At,
	}
	switch ev.Type {
	case feed.EvtPlayerJoined, feed.EvtPlayerLeft, feed.EvtPlayerEvicted:
		p := ev.Player
		out.Player = &p
	case feed.EvtMatchEnded:
		w := ev.Winner
		out.Winner = &w
	}
	return out
}

func Snapshot(v feed.View) api.FeedSnapshot {
	out := api.FeedSnapshot{
		Room:       v.Room,
		Version:    v.Version,
		Spectators: v.NumClients,
		Recent:     make([]api.Event, 0, len(v.Recent)),
	}
	for _, ev := range v.Recent {
		out.Recent = append(out.Recent, Event(ev))
	}
	return out
}

func Lobby(v session.LobbyView) []api.LobbyPlayer {
	out := make([]api.LobbyPlayer, 0, len(v.Players))
	for _, p := range v.Players {
		out = append(out, api.LobbyPlayer{Player: p.Player, Name: p.Name})
	}
	return out
}

func Room(v session.RoomView) api.Room {
	out := api.Room{ID: v.ID, InMatch: v.InMatch, Members: make([]api.Member, 0, len(v.Members))}
	for _, m := range v.Members {
		out.Members = append(out.Members, api.Member{
			Player:    m.Player,
			Name:      m.Name,
			Stage:     m.Stage.String(),
			Character: int32(m.Character),
		})
	}
	return out
}

func Result(r store.Result) api.MatchResult {
	return api.MatchResult{
		MatchID:   r.MatchID,
		Room:      r.Room,
		Winner:    r.Winner,
		Players:   r.Players,
		StartedAt: r.StartedAt,
		EndedAt:   r.EndedAt,
	}
}
