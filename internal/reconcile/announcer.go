package reconcile

import (
	"github.com/colibrishin/dx-api-sub000/internal/protocol"
)

// LocalSnapshot is what the locally controlled entity looks like on one tick.
type LocalSnapshot struct {
	State      State
	Transform  Transform
	Charge     float32
	ItemSlot   int32
	Item       int32
	Projectile int32
}

// Announcer turns the local entity's state transitions into outbound
// records. Each transition is announced once, on the tick it is observed;
// a tick with no change produces nothing except for the throttled transform
// refresh while moving.
type Announcer struct {
	key           EntityKey
	positionEvery int

	primed     bool
	state      State
	projectile int32
	sent       Transform
	ticks      int
}

// NewAnnouncer returns an announcer for key. While moving, a Position refresh
// is emitted every positionEvery ticks if the transform changed; zero turns
// refreshes off.
func NewAnnouncer(key EntityKey, positionEvery int) *Announcer {
	return &Announcer{key: key, positionEvery: positionEvery}
}

func (a *Announcer) Key() EntityKey { return a.key }

// Observe compares s with the previous tick and returns at most one record,
// already stamped for sending, or nil.
func (a *Announcer) Observe(s LocalSnapshot) (protocol.Message, error) {
	if !a.primed {
		a.primed = true
		a.projectile = s.Projectile
	}

	var m protocol.Message
	switch {
	case s.State != a.state:
		m = a.transition(a.state, s)
		a.state = s.State
		a.ticks = 0
	case s.Projectile != a.projectile:
		a.projectile = s.Projectile
		m = &protocol.ProjectileSelect{Projectile: s.Projectile}
	case s.State == StateMoving && a.positionEvery > 0:
		a.ticks++
		if a.ticks >= a.positionEvery && s.Transform != a.sent {
			a.ticks = 0
			m = a.position(s.Transform)
		}
	}
	if m == nil {
		return nil, nil
	}
	if err := protocol.Create(a.key.Room, a.key.Player, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (a *Announcer) transition(from State, s LocalSnapshot) protocol.Message {
	t := s.Transform
	switch s.State {
	case StateMoving:
		return a.position(t)
	case StateIdle:
		if from != StateMoving {
			return nil
		}
		a.sent = t
		return &protocol.Stop{ObjectType: a.key.Object, ObjectID: a.key.ID, Position: t.Position}
	case StateCharging:
		return &protocol.Firing{Position: t.Position, Rotation: t.Rotation}
	case StateFired:
		return &protocol.Fire{
			ObjectType: a.key.Object,
			ObjectID:   a.key.ID,
			Position:   t.Position,
			Rotation:   t.Rotation,
			Charge:     s.Charge,
		}
	case StateItemArmed:
		return &protocol.ItemArm{Slot: s.ItemSlot, Item: s.Item}
	case StateItemFired:
		return &protocol.ItemFire{Slot: s.ItemSlot, Item: s.Item, Position: t.Position}
	}
	return nil
}

func (a *Announcer) position(t Transform) protocol.Message {
	a.sent = t
	return &protocol.Position{
		ObjectType: a.key.Object,
		ObjectID:   a.key.ID,
		Position:   t.Position,
		Offset:     t.Offset,
		Rotation:   t.Rotation,
		Direction:  t.Direction,
	}
}

// Hit builds the record announcing that one of the local player's objects
// struck something. Hits are decided by the owning client alone.
func Hit(obj EntityKey, target protocol.HitTarget, targetPlayer int32, at protocol.Vec2, damage float32) (protocol.Message, error) {
	m := &protocol.Hit{
		ObjectType:   obj.Object,
		ObjectID:     obj.ID,
		Target:       target,
		TargetPlayer: targetPlayer,
		Position:     at,
		Damage:       damage,
	}
	if err := protocol.Create(obj.Room, obj.Player, m); err != nil {
		return nil, err
	}
	return m, nil
}
