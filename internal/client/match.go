package client

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/colibrishin/dx-api-sub000/internal/protocol"
	"github.com/colibrishin/dx-api-sub000/internal/reconcile"
	"github.com/colibrishin/dx-api-sub000/internal/round"
)

var ErrNotInMatch = errors.New("local player is not part of this match")

var gameplayKinds = []protocol.Kind{
	protocol.KindPosition,
	protocol.KindStop,
	protocol.KindFiring,
	protocol.KindFire,
	protocol.KindItemArm,
	protocol.KindItemFire,
	protocol.KindProjectileSelect,
	protocol.KindHit,
}

// staleKinds can still trickle in once a match runs: keep-alive pongs and
// late duplicates of bootstrap replies. Nothing waits for them any more.
var staleKinds = []protocol.Kind{
	protocol.KindPong,
	protocol.KindLobbyInfo,
	protocol.KindRoomInfo,
	protocol.KindGameInit,
	protocol.KindGameStart,
	protocol.KindGo,
	protocol.KindNoGo,
}

type MatchOptions struct {
	Round         round.Options
	// PositionEvery throttles transform refreshes while moving, in ticks.
	PositionEvery int
	// KeepAlive is how often an otherwise quiet client pings the server.
	KeepAlive     time.Duration
}

func DefaultMatchOptions() MatchOptions {
	return MatchOptions{
		Round:         round.DefaultOptions(),
		PositionEvery: 6,
		KeepAlive:     2 * time.Second,
	}
}

// Match drives one running match on the client: inbound gameplay goes
// through the mailbox into the remote avatars, the local avatar is
// announced, and the mirrored round manager is ticked.
type Match struct {
	sess      *Session
	init      *protocol.GameInit
	roster    *Roster
	local     *Avatar
	mailbox   *reconcile.Mailbox
	announcer *reconcile.Announcer
	remotes   []*reconcile.Remote
	rounds    *round.Manager
	opts      MatchOptions

	nextObject int32
	sinceAlive time.Duration
	ended      bool
	reported   chan error
	log        *zap.Logger
}

func NewMatch(sess *Session, init *protocol.GameInit, opts MatchOptions) (*Match, error) {
	m := &Match{
		sess:    sess,
		init:    init,
		mailbox:  reconcile.NewMailbox(),
		opts:     opts,
		reported: make(chan error, 1),
		log:      sess.log,
	}

	room := sess.Room()
	var avatars []*Avatar
	for i := range int(init.PlayerCount) {
		p := init.Players[i]
		a := NewAvatar(p, init.Characters[i])
		avatars = append(avatars, a)
		if p == sess.Player() {
			m.local = a
		}
	}
	if m.local == nil {
		return nil, ErrNotInMatch
	}
	m.roster = NewRoster(avatars...)
	for _, a := range avatars {
		if a == m.local {
			continue
		}
		m.remotes = append(m.remotes, reconcile.NewRemote(reconcile.CharacterKey(room, a.PlayerID()), a, m.roster))
	}
	m.announcer = reconcile.NewAnnouncer(reconcile.CharacterKey(room, sess.Player()), opts.PositionEvery)

	ro := opts.Round
	ro.Seed = init.WindSeed
	rounds, err := round.NewManager(m.roster.Entrants(), ro)
	if err != nil {
		return nil, fmt.Errorf("round manager: %w", err)
	}
	m.rounds = rounds
	return m, nil
}

func (m *Match) Local() *Avatar           { return m.local }
func (m *Match) Roster() *Roster          { return m.roster }
func (m *Match) Round() *round.Manager    { return m.rounds }
func (m *Match) Init() *protocol.GameInit { return m.init }

// Launch fires a projectile from the local avatar and returns its key. The
// caller resolves it later with ReportHit.
func (m *Match) Launch(charge float32) reconcile.EntityKey {
	m.nextObject++
	m.local.SetState(reconcile.StateFired)
	m.local.Fire(m.local.Transform(), charge)
	return reconcile.EntityKey{
		Room:   m.sess.Room(),
		Player: m.sess.Player(),
		Object: protocol.ObjectProjectile,
		ID:     m.nextObject,
	}
}

// ReportHit applies a hit decided locally and tells the other clients.
func (m *Match) ReportHit(obj reconcile.EntityKey, target protocol.HitTarget, targetPlayer int32, at protocol.Vec2, damage float32) error {
	hit, err := reconcile.Hit(obj, target, targetPlayer, at, damage)
	if err != nil {
		return err
	}
	if target == protocol.HitCharacter {
		m.roster.ApplyDamage(targetPlayer, damage, at)
	}
	m.roster.Destroy(obj, at)
	return m.sess.ep.Send(hit, m.sess.server)
}

// Tick runs one frame and never waits on the server. When the round manager
// ends the match, the result is reported once in the background; ctx bounds
// that report and Reported delivers its outcome.
func (m *Match) Tick(ctx context.Context, dt time.Duration) ([]round.Event, error) {
	m.drain()
	for _, r := range m.remotes {
		r.Apply(m.mailbox)
	}

	out, err := m.announcer.Observe(m.local.Snapshot())
	if err != nil {
		return nil, err
	}
	if out != nil {
		if err := m.sess.ep.Send(out, m.sess.server); err != nil {
			return nil, err
		}
		m.sinceAlive = 0
	}
	m.sinceAlive += dt
	if m.opts.KeepAlive > 0 && m.sinceAlive >= m.opts.KeepAlive {
		m.sinceAlive = 0
		if err := m.sess.KeepAlive(); err != nil {
			return nil, err
		}
	}

	events := m.rounds.Tick(dt)
	if m.ended || !round.ContainsEvent(events, round.EvtMatchEnded) {
		return events, nil
	}
	m.ended = true
	winner := m.rounds.Winner()
	m.log.Info("match over", zap.Int32("winner", winner))
	go func() {
		err := m.sess.ReportGameOver(ctx, winner)
		if err != nil {
			err = fmt.Errorf("report game over: %w", err)
		}
		m.reported <- err
	}()
	return events, nil
}

// Over reports whether the mirrored round manager has ended the match.
func (m *Match) Over() bool { return m.ended }

// Reported yields the outcome of the GameOver report once it is acked or
// has given up.
func (m *Match) Reported() <-chan error { return m.reported }

// drain moves this room's gameplay into the mailbox and throws away what
// nobody will ask for. The GameOver ack is left for the pending report.
func (m *Match) drain() {
	room := m.sess.Room()
	q := m.sess.ep.Queue()
	for {
		_, msg, ok := q.FindAndRemoveFunc(func(msg protocol.Message) bool {
			return msg.Head().RoomID == room
		}, gameplayKinds...)
		if !ok {
			break
		}
		m.mailbox.Ingest(msg)
	}

	stale := func(msg protocol.Message) bool {
		switch r := msg.(type) {
		case *protocol.Go:
			return r.AckKind != protocol.KindGameOver
		case *protocol.NoGo:
			return r.AckKind != protocol.KindGameOver
		}
		if protocol.KindOf(msg).InMatch() {
			return msg.Head().RoomID != room
		}
		return true
	}
	kinds := append(slices.Clone(staleKinds), gameplayKinds...)
	for {
		if _, _, ok := q.FindAndRemoveFunc(stale, kinds...); !ok {
			return
		}
	}
}
