package server

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colibrishin/dx-api-sub000/internal/feed"
	"github.com/colibrishin/dx-api-sub000/internal/hub"
	"github.com/colibrishin/dx-api-sub000/internal/protocol"
	"github.com/colibrishin/dx-api-sub000/internal/session"
	"github.com/colibrishin/dx-api-sub000/internal/store"
	"github.com/colibrishin/dx-api-sub000/internal/transport"
)

const within = 2 * time.Second

func testConfig() Config {
	return Config{
		LobbyBroadcastInterval: 50 * time.Millisecond,
		SweepInterval:          time.Hour,
		StaleAfter:             time.Hour,
	}
}

type harness struct {
	srv   *Server
	store *store.MemoryStore
	hub   *hub.Hub
}

func startServer(t *testing.T, cfg Config) *harness {
	t.Helper()
	ep, err := transport.Listen("127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	h := hub.NewHub(ctx)
	st := store.NewMemoryStore()
	srv := New(cfg, ep, session.NewRegistry(), h, st, nil)

	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(time.Second):
			t.Errorf("server did not stop")
		}
		assert.NoError(t, srv.Close())
	})
	return &harness{srv: srv, store: st, hub: h}
}

type peer struct {
	t    *testing.T
	ep   *transport.Endpoint
	to   net.Addr
	room int32
	id   int32
}

func dial(t *testing.T, srv *Server, id int32) *peer {
	t.Helper()
	ep, err := transport.Listen("127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = ep.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		_ = ep.Close()
	})
	return &peer{t: t, ep: ep, to: srv.Addr(), id: id}
}

func (p *peer) send(m protocol.Message) {
	p.t.Helper()
	require.NoError(p.t, protocol.Create(p.room, p.id, m))
	require.NoError(p.t, p.ep.Send(m, p.to))
}

// expect waits for a message of kind k accepted by match.
func (p *peer) expect(k protocol.Kind, match func(protocol.Message) bool) protocol.Message {
	p.t.Helper()
	var got protocol.Message
	require.Eventually(p.t, func() bool {
		_, m, ok := p.ep.Queue().FindAndRemoveFunc(match, k)
		got = m
		return ok
	}, within, 5*time.Millisecond, "waiting for %s", k)
	return got
}

func anyMsg(protocol.Message) bool { return true }

func (p *peer) joinRoom(room int32) *protocol.RoomInfo {
	p.t.Helper()
	p.room = room
	n, err := protocol.NewName(fmt.Sprintf("p%d", p.id))
	require.NoError(p.t, err)
	p.send(&protocol.RoomJoin{Name: n})
	return p.expect(protocol.KindRoomInfo, func(m protocol.Message) bool {
		return m.Head().PlayerID == p.id
	}).(*protocol.RoomInfo)
}

func TestServer_PingPong(t *testing.T) {
	h := startServer(t, testConfig())
	c := dial(t, h.srv, 1)

	c.send(&protocol.Ping{SentAt: 42})
	pong := c.expect(protocol.KindPong, anyMsg).(*protocol.Pong)
	assert.Equal(t, int64(42), pong.SentAt)
	assert.NotZero(t, pong.ServerTime)
}

func TestServer_IgnoresGarbage(t *testing.T) {
	h := startServer(t, testConfig())
	c := dial(t, h.srv, 1)

	c.ep.SendRaw([]byte("definitely not a record"), c.to)
	junk := make([]byte, protocol.HeaderSize)
	junk[4] = 0xee
	c.ep.SendRaw(junk, c.to)

	c.send(&protocol.Ping{SentAt: 1})
	c.expect(protocol.KindPong, anyMsg)
}

func TestServer_LobbyBroadcastReachesEveryone(t *testing.T) {
	h := startServer(t, testConfig())
	a := dial(t, h.srv, 1)
	b := dial(t, h.srv, 2)

	alice, _ := protocol.NewName("alice")
	bob, _ := protocol.NewName("bob")
	a.send(&protocol.LobbyJoin{Name: alice})
	a.expect(protocol.KindLobbyInfo, anyMsg)
	b.send(&protocol.LobbyJoin{Name: bob})

	full := func(m protocol.Message) bool { return m.(*protocol.LobbyInfo).PlayerCount == 2 }
	for _, p := range []*peer{a, b} {
		info := p.expect(protocol.KindLobbyInfo, full).(*protocol.LobbyInfo)
		names := []string{info.Names[0].String(), info.Names[1].String()}
		assert.ElementsMatch(t, []string{"alice", "bob"}, names)
		assert.Equal(t, protocol.NoPlayer, info.Players[2])
	}
}

func TestServer_RoomJoinPushesRosterToOthers(t *testing.T) {
	h := startServer(t, testConfig())
	a := dial(t, h.srv, 1)
	b := dial(t, h.srv, 2)

	info := a.joinRoom(5)
	assert.Equal(t, int32(1), info.PlayerCount)

	info = b.joinRoom(5)
	assert.Equal(t, int32(2), info.PlayerCount)
	assert.Equal(t, [protocol.RoomCapacity]int32{1, 2, protocol.NoPlayer, protocol.NoPlayer}, info.Players)

	pushed := a.expect(protocol.KindRoomInfo, func(m protocol.Message) bool {
		return m.(*protocol.RoomInfo).PlayerCount == 2
	}).(*protocol.RoomInfo)
	assert.Equal(t, info.Players, pushed.Players)
}

func TestServer_SwitchingRoomsUpdatesOldRoster(t *testing.T) {
	h := startServer(t, testConfig())
	a := dial(t, h.srv, 1)
	b := dial(t, h.srv, 2)

	a.joinRoom(5)
	b.joinRoom(5)
	a.expect(protocol.KindRoomInfo, func(m protocol.Message) bool {
		return m.(*protocol.RoomInfo).PlayerCount == 2
	})

	info := b.joinRoom(6)
	assert.Equal(t, int32(1), info.PlayerCount)

	left := a.expect(protocol.KindRoomInfo, func(m protocol.Message) bool {
		return m.Head().RoomID == 5 && m.(*protocol.RoomInfo).PlayerCount == 1
	}).(*protocol.RoomInfo)
	assert.Equal(t, int32(1), left.Players[0])

	v, ok := h.srv.Registry().Room(5)
	require.True(t, ok)
	require.Len(t, v.Members, 1)
	assert.Equal(t, int32(1), v.Members[0].Player)
}

func TestServer_RejectsLobbyAsRoom(t *testing.T) {
	h := startServer(t, testConfig())
	c := dial(t, h.srv, 1)

	c.send(&protocol.RoomJoin{})
	nogo := c.expect(protocol.KindNoGo, anyMsg).(*protocol.NoGo)
	assert.Equal(t, protocol.KindRoomJoin, nogo.AckKind)
	assert.Equal(t, protocol.ReasonBadValue, nogo.Reason)
}

// startedMatch brings two players through setup and the load barrier.
func startedMatch(t *testing.T, h *harness) (*peer, *peer) {
	t.Helper()
	a := dial(t, h.srv, 1)
	b := dial(t, h.srv, 2)
	a.joinRoom(9)
	b.joinRoom(9)

	a.send(&protocol.RoomStart{})
	a.expect(protocol.KindGameInit, anyMsg)
	b.expect(protocol.KindGameInit, anyMsg)

	a.send(&protocol.LoadDone{})
	a.expect(protocol.KindNoGo, anyMsg)
	b.send(&protocol.LoadDone{})
	a.expect(protocol.KindGameStart, anyMsg)
	b.expect(protocol.KindGameStart, anyMsg)
	return a, b
}

func TestServer_GameInitFillsDefaultCharacter(t *testing.T) {
	h := startServer(t, testConfig())
	a := dial(t, h.srv, 1)
	b := dial(t, h.srv, 2)
	a.joinRoom(3)
	b.joinRoom(3)

	b.send(&protocol.RoomSelectCharacter{Character: protocol.CharacterMissile})
	ack := b.expect(protocol.KindGo, anyMsg).(*protocol.Go)
	assert.Equal(t, protocol.KindRoomSelectCharacter, ack.AckKind)

	b.send(&protocol.RoomSelectItems{Items: [protocol.ItemSlots]int32{1, 1, 2, 0}})
	b.expect(protocol.KindGo, func(m protocol.Message) bool {
		return m.(*protocol.Go).AckKind == protocol.KindRoomSelectItems
	})

	// only the host may start
	b.send(&protocol.RoomStart{})
	nogo := b.expect(protocol.KindNoGo, anyMsg).(*protocol.NoGo)
	assert.Equal(t, protocol.ReasonNotHost, nogo.Reason)

	a.send(&protocol.RoomStart{})
	for _, p := range []*peer{a, b} {
		gi := p.expect(protocol.KindGameInit, anyMsg).(*protocol.GameInit)
		assert.Equal(t, int32(2), gi.PlayerCount)
		assert.Equal(t, int32(1), gi.Players[0])
		assert.Equal(t, protocol.DefaultCharacter, gi.Characters[0])
		assert.Equal(t, protocol.CharacterMissile, gi.Characters[1])
		assert.Equal(t, [protocol.ItemSlots]int32{1, 1, 2, 0}, gi.Items[1])
		assert.Equal(t, protocol.NoPlayer, gi.Players[2])
	}

	// a repeated start reaches the sender only, with the same payload
	a.send(&protocol.RoomStart{})
	again := a.expect(protocol.KindGameInit, anyMsg).(*protocol.GameInit)
	assert.Equal(t, protocol.CharacterMissile, again.Characters[1])
	time.Sleep(50 * time.Millisecond)
	_, _, ok := b.ep.Queue().FindAndRemove(protocol.KindGameInit)
	assert.False(t, ok)
}

func TestServer_LoadBarrierReleasesOnce(t *testing.T) {
	h := startServer(t, testConfig())
	a, b := startedMatch(t, h)

	// a late duplicate from b is answered to b alone
	b.send(&protocol.LoadDone{})
	b.expect(protocol.KindGameStart, anyMsg)

	time.Sleep(50 * time.Millisecond)
	_, _, ok := a.ep.Queue().FindAndRemove(protocol.KindGameStart)
	assert.False(t, ok, "host saw a second GameStart")
}

func TestServer_RelaysGameplayToPeers(t *testing.T) {
	h := startServer(t, testConfig())
	a, b := startedMatch(t, h)

	fire := &protocol.Fire{ObjectType: protocol.ObjectProjectile, ObjectID: 1, Rotation: 0.5, Charge: 0.9}
	a.send(fire)
	got := b.expect(protocol.KindFire, anyMsg)
	assert.Equal(t, fire, got)

	time.Sleep(50 * time.Millisecond)
	_, _, ok := a.ep.Queue().FindAndRemove(protocol.KindFire)
	assert.False(t, ok, "sender got its own record back")
}

func TestServer_GameOverRecordsResultOnce(t *testing.T) {
	h := startServer(t, testConfig())
	a, b := startedMatch(t, h)

	ctx := context.Background()
	f := h.hub.Feed(ctx, 9, true)
	require.NotNil(t, f)
	events := make(chan feed.Event, feed.History+4)
	f.Inbox() <- feed.Subscribe{ClientID: "test", Outbox: events}

	a.send(&protocol.GameOver{Winner: 2})
	a.expect(protocol.KindGo, func(m protocol.Message) bool {
		return m.(*protocol.Go).AckKind == protocol.KindGameOver
	})
	b.send(&protocol.GameOver{Winner: 2})
	b.expect(protocol.KindGo, func(m protocol.Message) bool {
		return m.(*protocol.Go).AckKind == protocol.KindGameOver
	})

	// retries after teardown are still acknowledged
	a.send(&protocol.GameOver{Winner: 2})
	a.expect(protocol.KindGo, anyMsg)

	res, err := h.store.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, int32(2), res[0].Winner)
	assert.Equal(t, []int32{1, 2}, res[0].Players)

	_, ok := h.srv.Registry().Room(9)
	assert.False(t, ok)

	deadline := time.After(within)
	for {
		select {
		case ev := <-events:
			if ev.Type == feed.EvtMatchEnded {
				assert.Equal(t, int32(2), ev.Winner)
				return
			}
		case <-deadline:
			t.Fatalf("no MatchEnded event")
		}
	}
}

func TestServer_SweepEvictsSilentPlayers(t *testing.T) {
	cfg := testConfig()
	cfg.SweepInterval = 20 * time.Millisecond
	cfg.StaleAfter = 150 * time.Millisecond
	h := startServer(t, cfg)

	a := dial(t, h.srv, 1)
	b := dial(t, h.srv, 2)
	a.joinRoom(4)
	b.joinRoom(4)

	// b keeps itself alive, a goes silent
	stop := time.After(600 * time.Millisecond)
	tick := time.NewTicker(30 * time.Millisecond)
	defer tick.Stop()
loop:
	for {
		select {
		case <-tick.C:
			b.send(&protocol.Ping{})
		case <-stop:
			break loop
		}
	}

	v, ok := h.srv.Registry().Room(4)
	require.True(t, ok)
	require.Len(t, v.Members, 1)
	assert.Equal(t, int32(2), v.Members[0].Player)

	b.expect(protocol.KindRoomInfo, func(m protocol.Message) bool {
		return m.(*protocol.RoomInfo).PlayerCount == 1
	})
}
