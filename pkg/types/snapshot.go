package types

// FeedSnapshot answers a spectator's "Snapshot" request.
//
//	room: number
//	version: number, bumped on every published event
//	spectators: number
//	recent: Event[], oldest first, at most 16
type FeedSnapshot struct {
	Room       int32   `json:"room"`
	Version    int     `json:"version"`
	Spectators int     `json:"spectators"`
	Recent     []Event `json:"recent"`
}
