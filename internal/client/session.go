package client

import (
	"context"
	"fmt"
	"net"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/colibrishin/dx-api-sub000/internal/protocol"
	"github.com/colibrishin/dx-api-sub000/internal/reliable"
	"github.com/colibrishin/dx-api-sub000/internal/transport"
)

// Session is one player's conversation with the session server. Its methods
// block until the server answered or the retry budget ran out; they are not
// meant to be called concurrently.
type Session struct {
	ep     *transport.Endpoint
	server net.Addr
	player int32
	name   protocol.Name
	room   int32
	retry  reliable.Options
	log    *zap.Logger
	now    func() time.Time
}

type Option func(*Session)

func WithRetry(o reliable.Options) Option {
	return func(s *Session) { s.retry = o }
}

func WithLogger(log *zap.Logger) Option {
	return func(s *Session) { s.log = log }
}

// NewSession prepares a session for player over ep. ep's receive loop must
// be running.
func NewSession(ep *transport.Endpoint, server net.Addr, player int32, name string, opts ...Option) (*Session, error) {
	n, err := protocol.NewName(name)
	if err != nil {
		return nil, fmt.Errorf("player name %q: %w", name, err)
	}
	s := &Session{
		ep:     ep,
		server: server,
		player: player,
		name:   n,
		room:   protocol.LobbyRoomID,
		retry:  reliable.DefaultOptions(),
		log:    zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Session) Player() int32                 { return s.player }
func (s *Session) Room() int32                   { return s.room }
func (s *Session) Endpoint() *transport.Endpoint { return s.ep }

// request stamps m for room and retries it until a reply of one of expect
// arrives. A NoGo acknowledging m's kind comes back as a *RejectError.
func (s *Session) request(ctx context.Context, room int32, m protocol.Message, match func(protocol.Message) bool, expect ...protocol.Kind) (protocol.Message, error) {
	kind := protocol.KindOf(m)
	if err := protocol.Create(room, s.player, m); err != nil {
		return nil, err
	}

	rep, err := reliable.SendAndRetry(ctx, s.ep, reliable.Request{
		Msg:    m,
		To:     s.server,
		Expect: append(expect, protocol.KindNoGo),
		Match: func(r protocol.Message) bool {
			if ng, ok := r.(*protocol.NoGo); ok {
				return ng.AckKind == kind
			}
			return match == nil || match(r)
		},
	}, s.retry)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", kind, err)
	}
	if rep.Attempts > 1 {
		s.log.Debug("request needed retries", zap.Stringer("kind", kind), zap.Int("attempts", rep.Attempts))
	}
	if ng, ok := rep.Message.(*protocol.NoGo); ok {
		return nil, &RejectError{Kind: kind, Reason: ng.Reason}
	}
	return rep.Message, nil
}

// acked sends m and waits for the Go acknowledging it.
func (s *Session) acked(ctx context.Context, m protocol.Message) error {
	kind := protocol.KindOf(m)
	_, err := s.request(ctx, s.room, m, func(r protocol.Message) bool {
		g, ok := r.(*protocol.Go)
		return ok && g.AckKind == kind
	}, protocol.KindGo)
	return err
}

// Ping measures the round trip to the server and returns the server clock.
func (s *Session) Ping(ctx context.Context) (time.Duration, time.Time, error) {
	sent := s.now()
	m, err := s.request(ctx, s.room, &protocol.Ping{SentAt: sent.UnixNano()}, func(r protocol.Message) bool {
		return r.(*protocol.Pong).SentAt == sent.UnixNano()
	}, protocol.KindPong)
	if err != nil {
		return 0, time.Time{}, err
	}
	return s.now().Sub(sent), time.Unix(0, m.(*protocol.Pong).ServerTime), nil
}

// KeepAlive touches the server-side record without waiting for an answer.
func (s *Session) KeepAlive() error {
	m := &protocol.Ping{SentAt: s.now().UnixNano()}
	if err := protocol.Create(s.room, s.player, m); err != nil {
		return err
	}
	return s.ep.Send(m, s.server)
}

func (s *Session) listed(players []int32) bool {
	return slices.Contains(players, s.player)
}

func (s *Session) JoinLobby(ctx context.Context) (*protocol.LobbyInfo, error) {
	m, err := s.request(ctx, protocol.LobbyRoomID, &protocol.LobbyJoin{Name: s.name}, func(r protocol.Message) bool {
		return s.listed(r.(*protocol.LobbyInfo).Players[:])
	}, protocol.KindLobbyInfo)
	if err != nil {
		return nil, err
	}
	s.room = protocol.LobbyRoomID
	return m.(*protocol.LobbyInfo), nil
}

// JoinRoom moves the player into room. The returned roster is the one the
// server answered with.
func (s *Session) JoinRoom(ctx context.Context, room int32) (*protocol.RoomInfo, error) {
	m, err := s.request(ctx, room, &protocol.RoomJoin{Name: s.name}, func(r protocol.Message) bool {
		return r.Head().RoomID == room && s.listed(r.(*protocol.RoomInfo).Players[:])
	}, protocol.KindRoomInfo)
	if err != nil {
		return nil, err
	}
	s.room = room
	return m.(*protocol.RoomInfo), nil
}

func (s *Session) SelectCharacter(ctx context.Context, ch protocol.Character) error {
	return s.acked(ctx, &protocol.RoomSelectCharacter{Character: ch})
}

func (s *Session) SelectItems(ctx context.Context, items [protocol.ItemSlots]int32) error {
	return s.acked(ctx, &protocol.RoomSelectItems{Items: items})
}

// StartMatch asks the server to freeze the room's setup. Only the host may.
func (s *Session) StartMatch(ctx context.Context) (*protocol.GameInit, error) {
	m, err := s.request(ctx, s.room, &protocol.RoomStart{}, s.forRoom, protocol.KindGameInit)
	if err != nil {
		return nil, err
	}
	return m.(*protocol.GameInit), nil
}

func (s *Session) forRoom(r protocol.Message) bool { return r.Head().RoomID == s.room }

// AwaitGameInit waits for the host to start the match.
func (s *Session) AwaitGameInit(ctx context.Context) (*protocol.GameInit, error) {
	q := s.ep.Queue()
	for {
		if _, m, ok := q.FindAndRemoveFunc(s.forRoom, protocol.KindGameInit); ok {
			return m.(*protocol.GameInit), nil
		}
		if err := s.waitNext(ctx); err != nil {
			return nil, err
		}
	}
}

// waitNext blocks until something new may have arrived.
func (s *Session) waitNext(ctx context.Context) error {
	t := time.NewTimer(s.retry.Interval)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ReportLoaded reports that assets are loaded and blocks at the load
// barrier until the server releases it. The report is repeated while other
// members are still loading, so a lost GameStart is recovered.
func (s *Session) ReportLoaded(ctx context.Context, frameTime time.Duration) (time.Time, error) {
	for {
		m, err := s.request(ctx, s.room, &protocol.LoadDone{FrameTime: int64(frameTime)}, s.forRoom, protocol.KindGameStart)
		if err == nil {
			return time.Unix(0, m.(*protocol.GameStart).ServerTime), nil
		}
		if !IsReason(err, protocol.ReasonWaiting) {
			return time.Time{}, err
		}
		// the broadcast may already be queued
		if _, m, ok := s.ep.Queue().FindAndRemoveFunc(s.forRoom, protocol.KindGameStart); ok {
			return time.Unix(0, m.(*protocol.GameStart).ServerTime), nil
		}
		if err := s.waitNext(ctx); err != nil {
			return time.Time{}, err
		}
	}
}

func (s *Session) ReportGameOver(ctx context.Context, winner int32) error {
	return s.acked(ctx, &protocol.GameOver{Winner: winner})
}

// Leave leaves the current room, or the lobby when not in a room.
func (s *Session) Leave(ctx context.Context) error {
	var m protocol.Message = &protocol.RoomLeave{}
	if s.room == protocol.LobbyRoomID {
		m = &protocol.LobbyLeave{}
	}
	if err := s.acked(ctx, m); err != nil {
		return err
	}
	s.room = protocol.LobbyRoomID
	return nil
}
