package server

import (
	"context"
	"net"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/colibrishin/dx-api-sub000/internal/feed"
	"github.com/colibrishin/dx-api-sub000/internal/hub"
	"github.com/colibrishin/dx-api-sub000/internal/protocol"
	"github.com/colibrishin/dx-api-sub000/internal/session"
	"github.com/colibrishin/dx-api-sub000/internal/store"
	"github.com/colibrishin/dx-api-sub000/internal/transport"
)

type Config struct {
	LobbyBroadcastInterval time.Duration
	SweepInterval          time.Duration
	StaleAfter             time.Duration
}

// Server is the authoritative session server. It owns the registry for its
// whole lifetime; every loop it runs shares that one instance.
type Server struct {
	cfg   Config
	ep    *transport.Endpoint
	reg   *session.Registry
	hub   *hub.Hub
	store store.Store
	log   *zap.Logger
	now   func() time.Time
}

func New(cfg Config, ep *transport.Endpoint, reg *session.Registry, h *hub.Hub, st store.Store, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		cfg:   cfg,
		ep:    ep,
		reg:   reg,
		hub:   h,
		store: st,
		log:   log,
		now:   time.Now,
	}
}

func (s *Server) Addr() net.Addr              { return s.ep.Addr() }
func (s *Server) Registry() *session.Registry { return s.reg }

// Run blocks until ctx is done or one of the loops fails.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.ep.Run(ctx) })
	g.Go(func() error { return s.dispatch(ctx) })
	g.Go(func() error { return every(ctx, s.cfg.LobbyBroadcastInterval, s.broadcastLobby) })
	g.Go(func() error { return every(ctx, s.cfg.SweepInterval, s.sweep) })

	s.log.Info("session server running", zap.Stringer("addr", s.ep.Addr()))
	return g.Wait()
}

// Close releases the socket and the result store.
func (s *Server) Close() error {
	return multierr.Combine(s.ep.Close(), s.store.Close())
}

func every(ctx context.Context, d time.Duration, fn func(context.Context)) error {
	t := time.NewTicker(d)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			fn(ctx)
		}
	}
}

func (s *Server) dispatch(ctx context.Context) error {
	q := s.ep.Queue()
	for {
		if err := q.Wait(ctx); err != nil {
			return nil
		}
		for {
			p, ok := q.PopAny()
			if !ok {
				break
			}
			s.handle(ctx, p)
		}
	}
}

// send stamps m for room/player and writes it to to.
func (s *Server) send(room, player int32, m protocol.Message, to ...net.Addr) {
	if err := protocol.Create(room, player, m); err != nil {
		s.log.Error("build message", zap.Stringer("kind", protocol.KindOf(m)), zap.Error(err))
		return
	}
	for _, a := range to {
		if err := s.ep.Send(m, a); err != nil {
			s.log.Error("send", zap.Stringer("kind", protocol.KindOf(m)), zap.Error(err))
			return
		}
	}
}

func (s *Server) publish(ctx context.Context, ev feed.Event) {
	if s.hub == nil {
		return
	}
	ev.At = s.now()
	s.hub.Publish(ctx, ev)
}

func (s *Server) broadcastLobby(context.Context) {
	v := s.reg.Lobby()
	if len(v.Addrs) == 0 {
		return
	}
	s.send(protocol.LobbyRoomID, protocol.NoPlayer, lobbyInfo(v), v.Addrs...)
}

func (s *Server) sweep(ctx context.Context) {
	evs := s.reg.Sweep(s.cfg.StaleAfter)
	for _, a := range s.ep.BadClients().Drain() {
		evs = append(evs, s.reg.EvictAddr(a)...)
	}

	for _, ev := range evs {
		s.log.Info("evicted connection",
			zap.Int32("room", ev.Key.Room),
			zap.Int32("player", ev.Key.Player),
			zap.Stringer("addr", ev.Addr),
		)
		s.afterRemoval(ctx, ev)
		s.publish(ctx, feed.Event{Type: feed.EvtPlayerEvicted, Room: ev.Key.Room, Player: ev.Key.Player})
		s.retireFeed(ev.Key.Room)
	}
}

// retireFeed drops the feed of a room that no longer exists.
func (s *Server) retireFeed(room int32) {
	if s.hub == nil || room == protocol.LobbyRoomID {
		return
	}
	if _, ok := s.reg.Room(room); !ok {
		s.hub.Remove(room)
	}
}

// afterRemoval tells whoever is left in the room.
func (s *Server) afterRemoval(ctx context.Context, ev session.Eviction) {
	if ev.Room != nil {
		s.send(ev.Room.ID, protocol.NoPlayer, roomInfo(*ev.Room), ev.Room.Addrs()...)
	}
	if ev.Barrier != nil && ev.Barrier.Released {
		s.releaseBarrier(ctx, *ev.Barrier)
	}
}
