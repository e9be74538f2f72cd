package round

import (
	"errors"
	"math/rand/v2"
	"time"
)

var ErrNotEnoughEntrants = errors.New("a round needs at least two entrants")
var ErrDuplicateEntrant = errors.New("entrant listed twice")

// NoWinner is recorded when the last survivors are eliminated together.
const NoWinner int32 = -1

const DefaultTurnBudget = 60 * time.Second

const DefaultMaxWind float32 = 10

type Phase string

const (
	PhaseStart      Phase = "start"
	PhaseInProgress Phase = "in_progress"
	PhaseWaiting    Phase = "waiting"
	PhaseNextTurn   Phase = "next_turn"
	PhaseEnd        Phase = "end"
)

// Entrant is the view of a player's own state machine the manager needs.
// Physics, rendering and input stay behind it.
type Entrant interface {
	PlayerID() int32
	Eliminated() bool
	// Firing reports an ordinance in flight: fired, using an item or
	// ending the turn.
	Firing() bool
	// Settled reports every projectile resolved and every fired count
	// consumed.
	Settled() bool
	Idle() bool
	SetMovable(bool)
	// EndTurn forces the entrant's own state machine to its turn-end state.
	EndTurn()
}

type EventType string

const (
	EvtTurnStarted  EventType = "TurnStarted"
	EvtWaiting      EventType = "Waiting"
	EvtTurnTimedOut EventType = "TurnTimedOut"
	EvtTurnEnded    EventType = "TurnEnded"
	EvtMatchEnded   EventType = "MatchEnded"
)

type Event struct {
	Type   EventType
	Player int32
	Wind   float32
}

type Options struct {
	TurnBudget time.Duration
	MaxWind    float32
	// Seed makes the wind sequence reproducible across mirrors.
	Seed uint64
}

func DefaultOptions() Options {
	return Options{TurnBudget: DefaultTurnBudget, MaxWind: DefaultMaxWind}
}

// Manager grants motive control to one entrant at a time and rotates it
// until one survivor is left. It is not safe for concurrent use; the owner
// ticks it from one goroutine.
type Manager struct {
	opts     Options
	entrants []Entrant
	queue    rotation
	current  Entrant
	phase    Phase
	elapsed  time.Duration
	wind     float32
	winner   int32
	ended    bool
	rng      *rand.Rand
}

func NewManager(entrants []Entrant, opts Options) (*Manager, error) {
	if len(entrants) < 2 {
		return nil, ErrNotEnoughEntrants
	}
	seen := make(map[int32]bool, len(entrants))
	for _, e := range entrants {
		if seen[e.PlayerID()] {
			return nil, ErrDuplicateEntrant
		}
		seen[e.PlayerID()] = true
	}
	if opts.TurnBudget <= 0 {
		opts.TurnBudget = DefaultTurnBudget
	}
	if opts.MaxWind <= 0 {
		opts.MaxWind = DefaultMaxWind
	}

	return &Manager{
		opts:     opts,
		entrants: append([]Entrant(nil), entrants...),
		phase:    PhaseStart,
		winner:   NoWinner,
		rng:      rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15)),
	}, nil
}

// Tick advances the machine by dt and returns what happened.
func (m *Manager) Tick(dt time.Duration) []Event {
	var events []Event

	switch m.phase {
	case PhaseStart:
		m.start(&events)

	case PhaseInProgress:
		if m.checkWin(&events) {
			break
		}
		m.elapsed += dt
		switch {
		case m.current.Firing():
			m.phase = PhaseWaiting
			events = append(events, Event{Type: EvtWaiting, Player: m.current.PlayerID(), Wind: m.wind})
		case m.current.Eliminated():
			m.current.SetMovable(false)
			m.phase = PhaseWaiting
			events = append(events, Event{Type: EvtWaiting, Player: m.current.PlayerID(), Wind: m.wind})
		case m.elapsed > m.opts.TurnBudget:
			m.current.EndTurn()
			m.current.SetMovable(false)
			m.phase = PhaseWaiting
			events = append(events, Event{Type: EvtTurnTimedOut, Player: m.current.PlayerID(), Wind: m.wind})
		}

	case PhaseWaiting:
		if m.current.Settled() && (m.current.Idle() || m.current.Eliminated()) {
			m.phase = PhaseNextTurn
			events = append(events, Event{Type: EvtTurnEnded, Player: m.current.PlayerID(), Wind: m.wind})
		}

	case PhaseNextTurn:
		m.current.SetMovable(false)
		m.sampleWind()
		m.rotate()
		m.current.SetMovable(true)
		m.elapsed = 0
		if m.checkWin(&events) {
			break
		}
		m.phase = PhaseInProgress
		events = append(events, Event{Type: EvtTurnStarted, Player: m.current.PlayerID(), Wind: m.wind})

	case PhaseEnd:
	}

	return events
}

func (m *Manager) start(events *[]Event) {
	first := 0
	for i, e := range m.entrants {
		if !e.Eliminated() {
			first = i
			break
		}
	}
	m.current = m.entrants[first]
	for i := 1; i < len(m.entrants); i++ {
		m.queue.push(m.entrants[(first+i)%len(m.entrants)])
	}
	for _, e := range m.entrants {
		e.SetMovable(false)
	}

	m.sampleWind()
	m.current.SetMovable(true)
	m.elapsed = 0
	m.phase = PhaseInProgress
	*events = append(*events, Event{Type: EvtTurnStarted, Player: m.current.PlayerID(), Wind: m.wind})
	m.checkWin(events)
}

// rotate hands control to the next entrant that is still in play.
// Eliminated entrants go back into the queue so every lap re-checks them.
func (m *Manager) rotate() {
	outgoing := m.current
	m.queue.push(outgoing)
	for range m.queue.len() {
		next, _ := m.queue.pop()
		if next.Eliminated() {
			m.queue.push(next)
			continue
		}
		m.current = next
		return
	}
	// nobody left to hand over to; keep the outgoing entrant out of the queue
	m.queue.dropBack()
	m.current = outgoing
}

// checkWin ends the match when at most one entrant is still in play. It
// overrides whatever transition the caller was about to make.
func (m *Manager) checkWin(events *[]Event) bool {
	if m.phase == PhaseEnd {
		return true
	}
	alive := survivors(m.entrants)
	if len(alive) > 1 {
		return false
	}

	m.winner = NoWinner
	if len(alive) == 1 {
		m.winner = alive[0].PlayerID()
	}
	m.phase = PhaseEnd
	if !m.ended {
		m.ended = true
		for _, e := range m.entrants {
			e.SetMovable(false)
		}
		*events = append(*events, Event{Type: EvtMatchEnded, Player: m.winner, Wind: m.wind})
	}
	return true
}

func (m *Manager) sampleWind() {
	m.wind = (m.rng.Float32()*2 - 1) * m.opts.MaxWind
}

func (m *Manager) Phase() Phase  { return m.phase }
func (m *Manager) Wind() float32 { return m.wind }
func (m *Manager) Winner() int32 { return m.winner }

// Current returns the player holding motive control, or NoWinner before the
// first tick.
func (m *Manager) Current() int32 {
	if m.current == nil {
		return NoWinner
	}
	return m.current.PlayerID()
}

// Remaining is what is left of the active turn's budget.
func (m *Manager) Remaining() time.Duration {
	if r := m.opts.TurnBudget - m.elapsed; r > 0 {
		return r
	}
	return 0
}

// Rotation lists the queued player ids, front first.
func (m *Manager) Rotation() []int32 { return m.queue.ids() }

// Entrants lists every player id that started the match.
func (m *Manager) Entrants() []int32 {
	out := make([]int32, len(m.entrants))
	for i, e := range m.entrants {
		out[i] = e.PlayerID()
	}
	return out
}
