package server

import (
	"context"
	"errors"
	"net"

	"go.uber.org/zap"

	"github.com/colibrishin/dx-api-sub000/internal/feed"
	"github.com/colibrishin/dx-api-sub000/internal/protocol"
	"github.com/colibrishin/dx-api-sub000/internal/session"
	"github.com/colibrishin/dx-api-sub000/internal/store"
	"github.com/colibrishin/dx-api-sub000/internal/transport"
)

func (s *Server) handle(ctx context.Context, p transport.Packet) {
	m, err := protocol.Decode(p.Data)
	if err != nil {
		s.log.Debug("ignored datagram", zap.Stringer("from", p.From), zap.Error(err))
		return
	}
	h := m.Head()
	k := session.Key{Room: h.RoomID, Player: h.PlayerID}

	switch msg := m.(type) {
	case *protocol.Ping:
		s.onPing(k, p.From, msg)
	case *protocol.LobbyJoin:
		s.onLobbyJoin(ctx, k, p.From, msg)
	case *protocol.LobbyLeave:
		s.onLobbyLeave(ctx, k, p.From)
	case *protocol.RoomJoin:
		s.onRoomJoin(ctx, k, p.From, msg)
	case *protocol.RoomLeave:
		s.onRoomLeave(ctx, k, p.From)
	case *protocol.RoomSelectCharacter:
		s.ack(k, p.From, protocol.KindRoomSelectCharacter, s.reg.SelectCharacter(k, p.From, msg.Character))
	case *protocol.RoomSelectItems:
		s.ack(k, p.From, protocol.KindRoomSelectItems, s.reg.SelectItems(k, p.From, msg.Items))
	case *protocol.RoomStart:
		s.onRoomStart(ctx, k, p.From)
	case *protocol.LoadDone:
		s.onLoadDone(ctx, k, p.From, msg)
	case *protocol.GameOver:
		s.onGameOver(ctx, k, p.From, msg)
	default:
		if h.Kind.InMatch() {
			s.relay(k, p)
			return
		}
		s.log.Debug("ignored message",
			zap.Stringer("kind", h.Kind),
			zap.Stringer("from", p.From),
		)
	}
}

func reasonFor(err error) protocol.Reason {
	switch {
	case errors.Is(err, session.ErrLobbyFull):
		return protocol.ReasonLobbyFull
	case errors.Is(err, session.ErrRoomFull):
		return protocol.ReasonRoomFull
	case errors.Is(err, session.ErrInMatch):
		return protocol.ReasonInMatch
	case errors.Is(err, session.ErrNotHost):
		return protocol.ReasonNotHost
	case errors.Is(err, session.ErrNotEnoughPlayers):
		return protocol.ReasonWaiting
	case errors.Is(err, session.ErrBadValue), errors.Is(err, session.ErrBadRoom):
		return protocol.ReasonBadValue
	case errors.Is(err, session.ErrUnknownPlayer),
		errors.Is(err, session.ErrAddrMismatch),
		errors.Is(err, session.ErrNotStarted):
		return protocol.ReasonUnknownPlayer
	}
	return protocol.ReasonNone
}

// ack answers a request with Go when err is nil and NoGo otherwise.
func (s *Server) ack(k session.Key, to net.Addr, kind protocol.Kind, err error) {
	if err == nil {
		s.send(k.Room, k.Player, &protocol.Go{AckKind: kind}, to)
		return
	}
	s.reject(k, to, kind, err)
}

func (s *Server) reject(k session.Key, to net.Addr, kind protocol.Kind, err error) {
	s.log.Debug("rejected request",
		zap.Stringer("kind", kind),
		zap.Int32("room", k.Room),
		zap.Int32("player", k.Player),
		zap.Error(err),
	)
	s.send(k.Room, k.Player, &protocol.NoGo{AckKind: kind, Reason: reasonFor(err)}, to)
}

func (s *Server) onPing(k session.Key, from net.Addr, msg *protocol.Ping) {
	// unregistered clients may ping too
	_ = s.reg.Verify(k, from)
	s.send(k.Room, k.Player, &protocol.Pong{SentAt: msg.SentAt, ServerTime: s.now().UnixNano()}, from)
}

func (s *Server) onLobbyJoin(ctx context.Context, k session.Key, from net.Addr, msg *protocol.LobbyJoin) {
	v, err := s.reg.JoinLobby(k.Player, msg.Name.String(), from)
	if err != nil {
		s.reject(k, from, protocol.KindLobbyJoin, err)
		return
	}
	s.send(protocol.LobbyRoomID, k.Player, lobbyInfo(v), from)
	s.publish(ctx, feed.Event{Type: feed.EvtPlayerJoined, Room: protocol.LobbyRoomID, Player: k.Player})
}

func (s *Server) onLobbyLeave(ctx context.Context, k session.Key, from net.Addr) {
	err := s.reg.LeaveLobby(k.Player, from)
	// leaving twice is fine
	if err != nil && !errors.Is(err, session.ErrUnknownPlayer) {
		s.reject(k, from, protocol.KindLobbyLeave, err)
		return
	}
	s.send(protocol.LobbyRoomID, k.Player, &protocol.Go{AckKind: protocol.KindLobbyLeave}, from)
	if err == nil {
		s.publish(ctx, feed.Event{Type: feed.EvtPlayerLeft, Room: protocol.LobbyRoomID, Player: k.Player})
	}
}

func (s *Server) onRoomJoin(ctx context.Context, k session.Key, from net.Addr, msg *protocol.RoomJoin) {
	v, moved, err := s.reg.JoinRoom(k.Room, k.Player, msg.Name.String(), from)
	if err != nil {
		s.reject(k, from, protocol.KindRoomJoin, err)
		return
	}
	if moved != nil {
		s.afterRemoval(ctx, *moved)
		s.publish(ctx, feed.Event{Type: feed.EvtPlayerLeft, Room: moved.Key.Room, Player: k.Player})
		s.retireFeed(moved.Key.Room)
	}
	s.send(k.Room, k.Player, roomInfo(v), from)
	s.send(k.Room, protocol.NoPlayer, roomInfo(v), v.Addrs(k.Player)...)
	s.publish(ctx, feed.Event{Type: feed.EvtPlayerJoined, Room: k.Room, Player: k.Player})
}

func (s *Server) onRoomLeave(ctx context.Context, k session.Key, from net.Addr) {
	ev, err := s.reg.LeaveRoom(k.Room, k.Player, from)
	if err != nil && !errors.Is(err, session.ErrUnknownPlayer) {
		s.reject(k, from, protocol.KindRoomLeave, err)
		return
	}
	s.send(k.Room, k.Player, &protocol.Go{AckKind: protocol.KindRoomLeave}, from)
	if err != nil {
		return
	}
	s.afterRemoval(ctx, ev)
	s.publish(ctx, feed.Event{Type: feed.EvtPlayerLeft, Room: k.Room, Player: k.Player})
	s.retireFeed(k.Room)
}

func (s *Server) onRoomStart(ctx context.Context, k session.Key, from net.Addr) {
	init, err := s.reg.StartMatch(k, from)
	if err != nil {
		s.reject(k, from, protocol.KindRoomStart, err)
		return
	}
	if init.Repeat {
		s.send(k.Room, k.Player, gameInit(init), from)
		return
	}

	s.log.Info("match initialised",
		zap.String("match_id", init.MatchID),
		zap.Int32("room", init.Room),
		zap.Int32s("players", init.Players),
	)
	s.send(k.Room, protocol.NoPlayer, gameInit(init), init.Addrs...)
	s.publish(ctx, feed.Event{Type: feed.EvtMatchInit, Room: init.Room, MatchID: init.MatchID})
}

func (s *Server) onLoadDone(ctx context.Context, k session.Key, from net.Addr, msg *protocol.LoadDone) {
	b, err := s.reg.MarkLoaded(k, from, msg.FrameTime)
	switch {
	case err != nil:
		s.reject(k, from, protocol.KindLoadDone, err)
	case b.Released:
		s.releaseBarrier(ctx, b)
	case b.Started:
		s.send(k.Room, k.Player, &protocol.GameStart{ServerTime: b.StartedAt.UnixNano()}, from)
	default:
		s.send(k.Room, k.Player, &protocol.NoGo{AckKind: protocol.KindLoadDone, Reason: protocol.ReasonWaiting}, from)
	}
}

// releaseBarrier sends the one GameStart every member of b waits for.
func (s *Server) releaseBarrier(ctx context.Context, b session.Barrier) {
	s.log.Info("match started",
		zap.String("match_id", b.MatchID),
		zap.Int32("room", b.Room),
		zap.Int("players", b.Expected),
	)
	s.send(b.Room, protocol.NoPlayer, &protocol.GameStart{ServerTime: b.StartedAt.UnixNano()}, b.Addrs...)
	s.publish(ctx, feed.Event{Type: feed.EvtMatchStart, Room: b.Room, MatchID: b.MatchID})
}

func (s *Server) onGameOver(ctx context.Context, k session.Key, from net.Addr, msg *protocol.GameOver) {
	res, first, err := s.reg.FinishMatch(k, from, msg.Winner)
	// retries after teardown still need their ack
	s.send(k.Room, k.Player, &protocol.Go{AckKind: protocol.KindGameOver}, from)
	if err != nil {
		return
	}
	if !first {
		s.retireFeed(k.Room)
		return
	}

	s.log.Info("match ended",
		zap.String("match_id", res.MatchID),
		zap.Int32("room", res.Room),
		zap.Int32("winner", res.Winner),
	)
	if err := s.store.Save(ctx, store.Result{
		MatchID:   res.MatchID,
		Room:      res.Room,
		Winner:    res.Winner,
		Players:   res.Players,
		StartedAt: res.StartedAt,
		EndedAt:   res.EndedAt,
	}); err != nil {
		s.log.Error("save match result", zap.String("match_id", res.MatchID), zap.Error(err))
	}
	s.publish(ctx, feed.Event{Type: feed.EvtMatchEnded, Room: res.Room, MatchID: res.MatchID, Winner: res.Winner})
	s.retireFeed(res.Room)
}

// relay forwards a gameplay record untouched to the sender's opponents.
func (s *Server) relay(k session.Key, p transport.Packet) {
	peers, err := s.reg.Peers(k, p.From)
	if err != nil {
		s.log.Debug("dropped relay",
			zap.Int32("room", k.Room),
			zap.Int32("player", k.Player),
			zap.Error(err),
		)
		return
	}
	for _, a := range peers {
		s.ep.SendRaw(p.Data, a)
	}
}
