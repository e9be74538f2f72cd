package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exercise(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)
	first, second := uuid.NewString(), uuid.NewString()

	require.NoError(t, s.Save(ctx, Result{MatchID: first, Room: 1, Winner: 2, Players: []int32{1, 2}, EndedAt: base}))
	require.NoError(t, s.Save(ctx, Result{MatchID: second, Room: 3, Winner: 4, Players: []int32{3, 4}, EndedAt: base.Add(time.Minute)}))
	// a duplicate report keeps the first outcome
	require.NoError(t, s.Save(ctx, Result{MatchID: first, Room: 1, Winner: 1, EndedAt: base.Add(time.Hour)}))

	got, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	var mine []Result
	for _, r := range got {
		if r.MatchID == first || r.MatchID == second {
			mine = append(mine, r)
		}
	}
	require.Len(t, mine, 2)
	assert.Equal(t, second, mine[0].MatchID, "newest first")
	assert.Equal(t, int32(2), mine[1].Winner)
	assert.Equal(t, []int32{1, 2}, mine[1].Players)

	got, err = s.Recent(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	exercise(t, s)
	assert.NoError(t, s.Close())
}

func TestGormStore(t *testing.T) {
	dsn := os.Getenv("ARTY_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("ARTY_TEST_DATABASE_URL not set")
	}
	s, err := OpenPostgres(dsn)
	require.NoError(t, err)
	defer s.Close()
	exercise(t, s)
}
