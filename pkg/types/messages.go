// Package types holds the JSON shapes served by the HTTP API and streamed
// over the spectator websocket.
package types

import "time"

// Event is one room lifecycle transition.
//
//	type: "PlayerJoined" | "PlayerLeft" | "PlayerEvicted" |
//	      "MatchInit" | "MatchStart" | "MatchEnded"
//	room: number (0 is the lobby)
//	player: number, omitted for match-wide events
//	match_id: string, set once a match exists
//	winner: number, MatchEnded only (-1 when nobody survived)
type Event struct {
	Type    string    `json:"type"`
	Room    int32     `json:"room"`
	Player  *int32    `json:"player,omitempty"`
	MatchID string    `json:"match_id,omitempty"`
	Winner  *int32    `json:"winner,omitempty"`
	At      time.Time `json:"at"`
}

type LobbyPlayer struct {
	Player int32  `json:"player"`
	Name   string `json:"name"`
}

type Member struct {
	Player    int32  `json:"player"`
	Name      string `json:"name"`
	Stage     string `json:"stage"`
	Character int32  `json:"character"` // -1 until chosen
}

type Room struct {
	ID      int32    `json:"id"`
	InMatch bool     `json:"in_match"`
	Members []Member `json:"members"`
}

type MatchResult struct {
	MatchID   string    `json:"match_id"`
	Room      int32     `json:"room"`
	Winner    int32     `json:"winner"`
	Players   []int32   `json:"players"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
}
