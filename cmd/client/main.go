// Command client is a headless player: it joins a room, plays its turns by
// firing at random opponents and reports the result.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand/v2"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/colibrishin/dx-api-sub000/internal/client"
	"github.com/colibrishin/dx-api-sub000/internal/config"
	"github.com/colibrishin/dx-api-sub000/internal/logging"
	"github.com/colibrishin/dx-api-sub000/internal/protocol"
	"github.com/colibrishin/dx-api-sub000/internal/reconcile"
	"github.com/colibrishin/dx-api-sub000/internal/reliable"
	"github.com/colibrishin/dx-api-sub000/internal/round"
	"github.com/colibrishin/dx-api-sub000/internal/transport"
)

const frame = 16 * time.Millisecond

func main() {
	player := flag.Int("player", 1, "player id")
	name := flag.String("name", "bot", "display name")
	room := flag.Int("room", 1, "room to join")
	players := flag.Int("players", 2, "players the host waits for before starting")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	log, err := logging.New(cfg.LogLevel, cfg.Dev)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer log.Sync()
	log = log.With(zap.Int("player", *player))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := play(ctx, cfg, log, int32(*player), *name, int32(*room), *players); err != nil {
		log.Fatal("bot stopped", zap.Error(err))
	}
}

func play(ctx context.Context, cfg config.Config, log *zap.Logger, player int32, name string, room int32, want int) error {
	serverAddr, err := net.ResolveUDPAddr("udp", cfg.ServerAddr)
	if err != nil {
		return fmt.Errorf("resolve server: %w", err)
	}
	ep, err := transport.Listen(":0",
		transport.WithLogger(log.Named("transport")),
		transport.WithQueueCapacity(cfg.QueueCapacity),
	)
	if err != nil {
		return err
	}
	defer ep.Close()
	go func() { _ = ep.Run(ctx) }()

	sess, err := client.NewSession(ep, serverAddr, player, name,
		client.WithLogger(log),
		client.WithRetry(reliable.Options{Interval: cfg.RetryInterval, MaxAttempts: cfg.RetryAttempts}),
	)
	if err != nil {
		return err
	}

	rtt, _, err := sess.Ping(ctx)
	if err != nil {
		return err
	}
	log.Info("server reachable", zap.Duration("rtt", rtt))

	if _, err := sess.JoinLobby(ctx); err != nil {
		return err
	}
	info, err := sess.JoinRoom(ctx, room)
	if err != nil {
		return err
	}
	ch := protocol.Character(rand.IntN(int(protocol.CharacterShotgun) + 1))
	if err := sess.SelectCharacter(ctx, ch); err != nil {
		return err
	}

	init, err := awaitInit(ctx, sess, info, want)
	if err != nil {
		return err
	}
	start, err := sess.ReportLoaded(ctx, frame)
	if err != nil {
		return err
	}
	log.Info("match started", zap.Time("server_time", start), zap.Int32("players", init.PlayerCount))

	m, err := client.NewMatch(sess, init, client.DefaultMatchOptions())
	if err != nil {
		return err
	}
	return loop(ctx, m, log)
}

// awaitInit starts the match when this bot is the host and enough players
// are in; otherwise it waits for the host.
func awaitInit(ctx context.Context, sess *client.Session, info *protocol.RoomInfo, want int) (*protocol.GameInit, error) {
	for {
		host := true
		for _, p := range info.Players[:info.PlayerCount] {
			if p < sess.Player() {
				host = false
			}
		}
		if !host {
			return sess.AwaitGameInit(ctx)
		}
		if int(info.PlayerCount) >= want {
			return sess.StartMatch(ctx)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
		// a repeated join just returns the current roster
		var err error
		if info, err = sess.JoinRoom(ctx, sess.Room()); err != nil {
			return nil, err
		}
	}
}

func loop(ctx context.Context, m *client.Match, log *zap.Logger) error {
	t := time.NewTicker(frame)
	defer t.Stop()
	fired := false
	var inFlight *reconcile.EntityKey

	for !m.Over() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}

		events, err := m.Tick(ctx, frame)
		if err != nil {
			return err
		}
		for _, ev := range events {
			log.Debug("round", zap.String("event", string(ev.Type)), zap.Int32("player", ev.Player), zap.Float32("wind", ev.Wind))
			if ev.Type == round.EvtTurnStarted {
				fired = false
			}
		}

		// resolve last frame's shot once its Fire went out
		if inFlight != nil {
			target, at := pickTarget(m)
			if err := m.ReportHit(*inFlight, protocol.HitCharacter, target, at, 20+rand.Float32()*30); err != nil {
				return err
			}
			inFlight = nil
		}

		me := m.Local()
		if fired || m.Round().Phase() != round.PhaseInProgress || m.Round().Current() != me.PlayerID() {
			continue
		}
		fired = true
		proj := m.Launch(0.3 + rand.Float32()*0.7)
		inFlight = &proj
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-m.Reported():
		if err == nil {
			log.Info("result reported", zap.Int32("winner", m.Round().Winner()))
		}
		return err
	}
}

func pickTarget(m *client.Match) (int32, protocol.Vec2) {
	var alive []*client.Avatar
	for _, e := range m.Roster().Entrants() {
		a := e.(*client.Avatar)
		if a != m.Local() && !a.Eliminated() {
			alive = append(alive, a)
		}
	}
	if len(alive) == 0 {
		return protocol.NoPlayer, protocol.Vec2{}
	}
	a := alive[rand.IntN(len(alive))]
	return a.PlayerID(), a.Transform().Position
}
