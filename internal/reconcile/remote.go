package reconcile

import (
	"github.com/colibrishin/dx-api-sub000/internal/protocol"
)

// Body is the physical side of a mirrored entity.
type Body interface {
	SetTransform(Transform)
	SetState(State)
	Fire(at Transform, charge float32)
	ArmItem(slot, item int32)
	UseItem(slot, item int32, at protocol.Vec2)
	SelectProjectile(projectile int32)
}

// ObjectRegistry receives the consequences of hits computed by other clients.
type ObjectRegistry interface {
	ApplyDamage(player int32, damage float32, at protocol.Vec2)
	Destroy(key EntityKey, at protocol.Vec2)
}

// Remote mirrors an entity controlled by another client. It is held by the
// entity next to its Body rather than being part of it.
type Remote struct {
	key     EntityKey
	body    Body
	objects ObjectRegistry

	state State
	t     Transform
}

func NewRemote(key EntityKey, body Body, objects ObjectRegistry) *Remote {
	return &Remote{key: key, body: body, objects: objects}
}

func (r *Remote) Key() EntityKey       { return r.key }
func (r *Remote) State() State         { return r.state }
func (r *Remote) Transform() Transform { return r.t }

// Apply consumes at most one pending record per kind for this entity and
// returns how many it applied. Hits on the owner's objects are applied from
// their carried position only.
func (r *Remote) Apply(mb *Mailbox) int {
	n := 0
	take := func(k protocol.Kind) protocol.Message {
		m, ok := mb.Take(r.key, k)
		if ok {
			n++
		}
		return m
	}

	if m, ok := take(protocol.KindProjectileSelect).(*protocol.ProjectileSelect); ok {
		r.body.SelectProjectile(m.Projectile)
	}
	if m, ok := take(protocol.KindPosition).(*protocol.Position); ok {
		r.t = Transform{Position: m.Position, Offset: m.Offset, Rotation: m.Rotation, Direction: m.Direction}
		r.body.SetTransform(r.t)
		r.setState(StateMoving)
	}
	if m, ok := take(protocol.KindStop).(*protocol.Stop); ok {
		r.t.Position = m.Position
		r.t.Offset = protocol.Vec2{}
		r.body.SetTransform(r.t)
		r.setState(StateIdle)
	}
	if m, ok := take(protocol.KindFiring).(*protocol.Firing); ok {
		r.t.Position, r.t.Rotation = m.Position, m.Rotation
		r.body.SetTransform(r.t)
		r.setState(StateCharging)
	}
	if m, ok := take(protocol.KindFire).(*protocol.Fire); ok {
		r.t.Position, r.t.Rotation = m.Position, m.Rotation
		r.setState(StateFired)
		r.body.Fire(r.t, m.Charge)
	}
	if m, ok := take(protocol.KindItemArm).(*protocol.ItemArm); ok {
		r.setState(StateItemArmed)
		r.body.ArmItem(m.Slot, m.Item)
	}
	if m, ok := take(protocol.KindItemFire).(*protocol.ItemFire); ok {
		r.setState(StateItemFired)
		r.body.UseItem(m.Slot, m.Item, m.Position)
	}

	if r.key.Object == protocol.ObjectCharacter && r.objects != nil {
		for _, m := range mb.TakeOwned(r.key.Room, r.key.Player, protocol.KindHit) {
			r.hit(m.(*protocol.Hit))
			n++
		}
	}
	return n
}

func (r *Remote) setState(s State) {
	r.state = s
	r.body.SetState(s)
}

func (r *Remote) hit(h *protocol.Hit) {
	if h.Target == protocol.HitCharacter {
		r.objects.ApplyDamage(h.TargetPlayer, h.Damage, h.Position)
	}
	if h.ObjectType == protocol.ObjectProjectile {
		r.objects.Destroy(EntityKey{
			Room:   r.key.Room,
			Player: r.key.Player,
			Object: h.ObjectType,
			ID:     h.ObjectID,
		}, h.Position)
	}
}
