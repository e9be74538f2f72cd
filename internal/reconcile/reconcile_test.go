package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colibrishin/dx-api-sub000/internal/protocol"
)

// observe runs one announcer tick that must not fail.
func observe(t *testing.T, a *Announcer, s LocalSnapshot) protocol.Message {
	t.Helper()
	m, err := a.Observe(s)
	require.NoError(t, err)
	return m
}

func TestAnnouncer_OneRecordPerTransition(t *testing.T) {
	a := NewAnnouncer(CharacterKey(2, 7), 0)
	at := Transform{Position: protocol.Vec2{X: 10, Y: 20}, Rotation: 0.3, Direction: 1}

	ticks := []struct {
		snap LocalSnapshot
		want protocol.Kind
	}{
		{snap: LocalSnapshot{State: StateIdle}, want: protocol.KindInvalid},
		{snap: LocalSnapshot{State: StateMoving, Transform: at}, want: protocol.KindPosition},
		{snap: LocalSnapshot{State: StateMoving, Transform: at}, want: protocol.KindInvalid},
		{snap: LocalSnapshot{State: StateIdle, Transform: at}, want: protocol.KindStop},
		{snap: LocalSnapshot{State: StateIdle, Transform: at}, want: protocol.KindInvalid},
		{snap: LocalSnapshot{State: StateCharging, Transform: at}, want: protocol.KindFiring},
		{snap: LocalSnapshot{State: StateCharging, Transform: at}, want: protocol.KindInvalid},
		{snap: LocalSnapshot{State: StateFired, Transform: at, Charge: 0.75}, want: protocol.KindFire},
		{snap: LocalSnapshot{State: StateIdle, Transform: at}, want: protocol.KindInvalid},
		{snap: LocalSnapshot{State: StateItemArmed, ItemSlot: 1, Item: 4}, want: protocol.KindItemArm},
		{snap: LocalSnapshot{State: StateItemFired, ItemSlot: 1, Item: 4}, want: protocol.KindItemFire},
		{snap: LocalSnapshot{State: StateItemFired, ItemSlot: 1, Item: 4, Projectile: 2}, want: protocol.KindProjectileSelect},
		{snap: LocalSnapshot{State: StateItemFired, ItemSlot: 1, Item: 4, Projectile: 2}, want: protocol.KindInvalid},
	}

	for i, tc := range ticks {
		m := observe(t, a, tc.snap)
		if tc.want == protocol.KindInvalid {
			assert.Nil(t, m, "tick %d", i)
			continue
		}
		require.NotNil(t, m, "tick %d", i)
		assert.Equal(t, tc.want, protocol.KindOf(m), "tick %d", i)
		assert.True(t, protocol.Valid(m), "tick %d", i)
		assert.Equal(t, int32(2), m.Head().RoomID)
		assert.Equal(t, int32(7), m.Head().PlayerID)

		if f, ok := m.(*protocol.Fire); ok {
			assert.Equal(t, float32(0.75), f.Charge)
			assert.Equal(t, protocol.ObjectCharacter, f.ObjectType)
		}
	}
}

func TestAnnouncer_SimultaneousChangesSpreadOverTicks(t *testing.T) {
	a := NewAnnouncer(CharacterKey(1, 1), 0)
	require.Nil(t, observe(t, a, LocalSnapshot{Projectile: 0}))

	m := observe(t, a, LocalSnapshot{State: StateCharging, Projectile: 1})
	require.NotNil(t, m)
	assert.Equal(t, protocol.KindFiring, protocol.KindOf(m))

	m = observe(t, a, LocalSnapshot{State: StateCharging, Projectile: 1})
	require.NotNil(t, m)
	assert.Equal(t, protocol.KindProjectileSelect, protocol.KindOf(m))
	assert.Nil(t, observe(t, a, LocalSnapshot{State: StateCharging, Projectile: 1}))
}

func TestAnnouncer_ThrottlesPositionWhileMoving(t *testing.T) {
	a := NewAnnouncer(CharacterKey(1, 1), 3)
	x := float32(0)
	snap := func() LocalSnapshot {
		x++
		return LocalSnapshot{State: StateMoving, Transform: Transform{Position: protocol.Vec2{X: x}}}
	}

	var sent []float32
	for range 10 {
		if m := observe(t, a, snap()); m != nil {
			sent = append(sent, m.(*protocol.Position).Position.X)
		}
	}
	// start of movement, then every third tick
	assert.Equal(t, []float32{1, 4, 7, 10}, sent)

	// standing still while "moving" sends nothing new
	still := LocalSnapshot{State: StateMoving, Transform: Transform{Position: protocol.Vec2{X: x}}}
	for range 6 {
		assert.Nil(t, observe(t, a, still))
	}
}

func stamped(t *testing.T, room, player int32, m protocol.Message) protocol.Message {
	t.Helper()
	require.NoError(t, protocol.Create(room, player, m))
	return m
}

func TestMailbox_LatestWins(t *testing.T) {
	mb := NewMailbox()
	key := CharacterKey(3, 2)

	for i := range 5 {
		ok := mb.Ingest(stamped(t, 3, 2, &protocol.Position{ObjectType: protocol.ObjectCharacter, Position: protocol.Vec2{X: float32(i)}}))
		require.True(t, ok)
	}
	mb.Ingest(stamped(t, 3, 2, &protocol.Fire{Charge: 0.5}))
	assert.Equal(t, 2, mb.Len())

	m, ok := mb.Take(key, protocol.KindPosition)
	require.True(t, ok)
	assert.Equal(t, float32(4), m.(*protocol.Position).Position.X)

	_, ok = mb.Take(key, protocol.KindPosition)
	assert.False(t, ok)

	// Fire without an object field belongs to the sender's character
	_, ok = mb.Take(key, protocol.KindFire)
	assert.True(t, ok)

	assert.False(t, mb.Ingest(stamped(t, 3, 2, &protocol.RoomStart{})))
	assert.Equal(t, 0, mb.Len())
}

func TestMailbox_TakeOwnedKeepsOnePerObject(t *testing.T) {
	mb := NewMailbox()
	for _, id := range []int32{3, 1, 3, 2} {
		mb.Ingest(stamped(t, 1, 5, &protocol.Hit{ObjectType: protocol.ObjectProjectile, ObjectID: id, Damage: float32(id)}))
	}
	mb.Ingest(stamped(t, 1, 6, &protocol.Hit{ObjectType: protocol.ObjectProjectile, ObjectID: 1}))

	got := mb.TakeOwned(1, 5, protocol.KindHit)
	require.Len(t, got, 3)
	for i, id := range []int32{1, 2, 3} {
		assert.Equal(t, id, got[i].(*protocol.Hit).ObjectID)
	}
	assert.Equal(t, 1, mb.Len())
	mb.Reset()
	assert.Equal(t, 0, mb.Len())
}

type call struct {
	what string
	args []any
}

type fakeBody struct{ calls []call }

func (b *fakeBody) SetTransform(t Transform) { b.calls = append(b.calls, call{"transform", []any{t}}) }
func (b *fakeBody) SetState(s State)         { b.calls = append(b.calls, call{"state", []any{s}}) }
func (b *fakeBody) Fire(at Transform, charge float32) {
	b.calls = append(b.calls, call{"fire", []any{at, charge}})
}
func (b *fakeBody) ArmItem(slot, item int32) { b.calls = append(b.calls, call{"arm", []any{slot, item}}) }
func (b *fakeBody) UseItem(slot, item int32, at protocol.Vec2) {
	b.calls = append(b.calls, call{"use", []any{slot, item, at}})
}
func (b *fakeBody) SelectProjectile(p int32) { b.calls = append(b.calls, call{"select", []any{p}}) }

type fakeObjects struct {
	damaged   map[int32]float32
	destroyed []EntityKey
	at        []protocol.Vec2
}

func (o *fakeObjects) ApplyDamage(player int32, damage float32, at protocol.Vec2) {
	if o.damaged == nil {
		o.damaged = map[int32]float32{}
	}
	o.damaged[player] += damage
	o.at = append(o.at, at)
}

func (o *fakeObjects) Destroy(key EntityKey, at protocol.Vec2) {
	o.destroyed = append(o.destroyed, key)
}

func TestRemote_AppliesLatestPerKind(t *testing.T) {
	mb := NewMailbox()
	body := &fakeBody{}
	r := NewRemote(CharacterKey(1, 2), body, &fakeObjects{})

	mb.Ingest(stamped(t, 1, 2, &protocol.Position{ObjectType: protocol.ObjectCharacter, Position: protocol.Vec2{X: 1}}))
	mb.Ingest(stamped(t, 1, 2, &protocol.Position{ObjectType: protocol.ObjectCharacter, Position: protocol.Vec2{X: 9}, Direction: -1}))
	// another player's record is not ours to apply
	mb.Ingest(stamped(t, 1, 3, &protocol.Position{ObjectType: protocol.ObjectCharacter, Position: protocol.Vec2{X: 50}}))

	assert.Equal(t, 1, r.Apply(mb))
	assert.Equal(t, StateMoving, r.State())
	assert.Equal(t, protocol.Vec2{X: 9}, r.Transform().Position)
	assert.Equal(t, int32(-1), r.Transform().Direction)
	assert.Equal(t, 1, mb.Len())

	assert.Equal(t, 0, r.Apply(mb))

	mb.Ingest(stamped(t, 1, 2, &protocol.Fire{Position: protocol.Vec2{X: 9, Y: 3}, Rotation: 1.2, Charge: 0.6}))
	assert.Equal(t, 1, r.Apply(mb))
	assert.Equal(t, StateFired, r.State())
	last := body.calls[len(body.calls)-1]
	assert.Equal(t, "fire", last.what)
	assert.Equal(t, float32(0.6), last.args[1])
}

func TestRemote_HitsComeFromCarriedPosition(t *testing.T) {
	mb := NewMailbox()
	objects := &fakeObjects{}
	r := NewRemote(CharacterKey(4, 1), &fakeBody{}, objects)

	at := protocol.Vec2{X: 120, Y: 44}
	for _, h := range []struct {
		id     int32
		target protocol.HitTarget
		player int32
		at     protocol.Vec2
		damage float32
	}{
		{id: 7, target: protocol.HitCharacter, player: 2, at: at, damage: 35},
		{id: 8, target: protocol.HitGround, player: protocol.NoPlayer, at: protocol.Vec2{X: 1}},
	} {
		m, err := Hit(EntityKey{Room: 4, Player: 1, Object: protocol.ObjectProjectile, ID: h.id}, h.target, h.player, h.at, h.damage)
		require.NoError(t, err)
		require.True(t, protocol.Valid(m))
		mb.Ingest(m)
	}

	assert.Equal(t, 2, r.Apply(mb))
	assert.Equal(t, map[int32]float32{2: 35}, objects.damaged)
	assert.Equal(t, []protocol.Vec2{at}, objects.at)
	assert.Equal(t, []EntityKey{
		{Room: 4, Player: 1, Object: protocol.ObjectProjectile, ID: 7},
		{Room: 4, Player: 1, Object: protocol.ObjectProjectile, ID: 8},
	}, objects.destroyed)
}
