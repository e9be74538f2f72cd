package store

import (
	"context"
	"time"
)

// Result is one finished match.
type Result struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	MatchID   string    `gorm:"uniqueIndex;size:64" json:"match_id"`
	Room      int32     `json:"room"`
	Winner    int32     `json:"winner"`
	Players   []int32   `gorm:"serializer:json" json:"players"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `gorm:"index" json:"ended_at"`
}

// Store persists match results. Saving the same MatchID twice keeps the
// first result.
type Store interface {
	Save(ctx context.Context, r Result) error
	Recent(ctx context.Context, limit int) ([]Result, error)
	Close() error
}
