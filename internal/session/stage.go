package session

// Stage is where a connection is in the match lifecycle.
type Stage int

const (
	StageUnregistered Stage = iota
	StageInLobby
	StageInRoom
	StageSetupSelecting
	StageAwaitingMatchStart
	StageLoadingAssets
	StageInMatch
)

var stageNames = [...]string{
	StageUnregistered:       "unregistered",
	StageInLobby:            "in_lobby",
	StageInRoom:             "in_room",
	StageSetupSelecting:     "setup_selecting",
	StageAwaitingMatchStart: "awaiting_match_start",
	StageLoadingAssets:      "loading_assets",
	StageInMatch:            "in_match",
}

func (s Stage) String() string {
	if s >= 0 && int(s) < len(stageNames) {
		return stageNames[s]
	}
	return "unknown"
}
