package client

import (
	"cmp"
	"slices"

	"github.com/colibrishin/dx-api-sub000/internal/protocol"
	"github.com/colibrishin/dx-api-sub000/internal/reconcile"
	"github.com/colibrishin/dx-api-sub000/internal/round"
)

const DefaultHealth float32 = 100

// Avatar is the minimal character model the headless client plays with. It
// is both the round manager's view of a player and the body a Remote drives.
type Avatar struct {
	player     int32
	character  protocol.Character
	health     float32
	state      reconcile.State
	transform  reconcile.Transform
	movable    bool
	inFlight   int
	early      int
	charge     float32
	projectile int32
	armed      [2]int32
}

func NewAvatar(player int32, ch protocol.Character) *Avatar {
	return &Avatar{player: player, character: ch, health: DefaultHealth}
}

func (a *Avatar) PlayerID() int32                { return a.player }
func (a *Avatar) Character() protocol.Character  { return a.character }
func (a *Avatar) Health() float32                { return a.health }
func (a *Avatar) State() reconcile.State         { return a.state }
func (a *Avatar) Transform() reconcile.Transform { return a.transform }
func (a *Avatar) Movable() bool                  { return a.movable }
func (a *Avatar) InFlight() int                  { return a.inFlight }

func (a *Avatar) Eliminated() bool { return a.health <= 0 }

func (a *Avatar) Firing() bool {
	return a.state == reconcile.StateFired || a.state == reconcile.StateItemFired
}

func (a *Avatar) Settled() bool { return a.inFlight == 0 }

// Idle is true once nothing the player started is still moving or charging.
func (a *Avatar) Idle() bool {
	return a.state != reconcile.StateMoving && a.state != reconcile.StateCharging
}

// SetMovable hands control over or takes it away. Losing control clears
// what the finished turn left behind; gaining it keeps the current state,
// since a remote player's Fire may already have been applied.
func (a *Avatar) SetMovable(b bool) {
	if !b && a.movable {
		a.state = reconcile.StateIdle
		a.charge = 0
	}
	a.movable = b
}

func (a *Avatar) EndTurn() {
	a.state = reconcile.StateIdle
	a.charge = 0
}

// Snapshot is what the announcer compares tick to tick.
func (a *Avatar) Snapshot() reconcile.LocalSnapshot {
	return reconcile.LocalSnapshot{
		State:      a.state,
		Transform:  a.transform,
		Charge:     a.charge,
		ItemSlot:   a.armed[0],
		Item:       a.armed[1],
		Projectile: a.projectile,
	}
}

func (a *Avatar) SetTransform(t reconcile.Transform) { a.transform = t }
func (a *Avatar) SetState(s reconcile.State)         { a.state = s }

func (a *Avatar) Fire(at reconcile.Transform, charge float32) {
	a.transform = at
	a.charge = charge
	if a.early > 0 {
		a.early--
		return
	}
	a.inFlight++
}

func (a *Avatar) ArmItem(slot, item int32) { a.armed = [2]int32{slot, item} }

func (a *Avatar) UseItem(slot, item int32, at protocol.Vec2) {
	a.armed = [2]int32{slot, item}
	a.transform.Position = at
}

func (a *Avatar) SelectProjectile(p int32) { a.projectile = p }

// resolve settles one projectile. A hit that overtook its Fire is held
// until the Fire shows up.
func (a *Avatar) resolve() {
	if a.inFlight > 0 {
		a.inFlight--
		return
	}
	a.early++
}

// Roster holds every avatar of a match and applies hit consequences to them.
type Roster struct {
	avatars map[int32]*Avatar
}

func NewRoster(avatars ...*Avatar) *Roster {
	r := &Roster{avatars: make(map[int32]*Avatar, len(avatars))}
	for _, a := range avatars {
		r.avatars[a.player] = a
	}
	return r
}

func (r *Roster) Get(player int32) *Avatar { return r.avatars[player] }

func (r *Roster) ApplyDamage(player int32, damage float32, _ protocol.Vec2) {
	if a := r.avatars[player]; a != nil {
		a.health -= damage
	}
}

// Destroy resolves a projectile of its owner.
func (r *Roster) Destroy(key reconcile.EntityKey, _ protocol.Vec2) {
	if key.Object != protocol.ObjectProjectile {
		return
	}
	if a := r.avatars[key.Player]; a != nil {
		a.resolve()
	}
}

// Entrants lists the avatars ordered by player id, the order turns rotate in.
func (r *Roster) Entrants() []round.Entrant {
	avs := make([]*Avatar, 0, len(r.avatars))
	for _, a := range r.avatars {
		avs = append(avs, a)
	}
	slices.SortFunc(avs, func(a, b *Avatar) int { return cmp.Compare(a.player, b.player) })
	out := make([]round.Entrant, len(avs))
	for i, a := range avs {
		out[i] = a
	}
	return out
}
