package reconcile

import (
	"cmp"

	"github.com/colibrishin/dx-api-sub000/internal/protocol"
)

// EntityKey identifies one replicated game object.
type EntityKey struct {
	Room   int32
	Player int32
	Object protocol.ObjectType
	ID     int32
}

// CharacterKey is the key of player's own character. Every player controls
// exactly one, always object id 0.
func CharacterKey(room, player int32) EntityKey {
	return EntityKey{Room: room, Player: player, Object: protocol.ObjectCharacter}
}

func (k EntityKey) compare(o EntityKey) int {
	if c := cmp.Compare(k.Room, o.Room); c != 0 {
		return c
	}
	if c := cmp.Compare(k.Player, o.Player); c != 0 {
		return c
	}
	if c := cmp.Compare(k.Object, o.Object); c != 0 {
		return c
	}
	return cmp.Compare(k.ID, o.ID)
}

// KeyOf returns the entity a gameplay record is about. Records without an
// object field, or with ObjectNone, refer to the sender's character.
func KeyOf(m protocol.Message) (EntityKey, bool) {
	h := m.Head()
	if !h.Kind.InMatch() {
		return EntityKey{}, false
	}
	k := CharacterKey(h.RoomID, h.PlayerID)

	var obj protocol.ObjectType
	var id int32
	switch msg := m.(type) {
	case *protocol.Position:
		obj, id = msg.ObjectType, msg.ObjectID
	case *protocol.Stop:
		obj, id = msg.ObjectType, msg.ObjectID
	case *protocol.Fire:
		obj, id = msg.ObjectType, msg.ObjectID
	case *protocol.Hit:
		obj, id = msg.ObjectType, msg.ObjectID
	}
	if obj != protocol.ObjectNone {
		k.Object, k.ID = obj, id
	}
	return k, true
}

// State is the replicated part of an entity's state machine.
type State int

const (
	StateIdle State = iota
	StateMoving
	StateCharging
	StateFired
	StateItemArmed
	StateItemFired
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateMoving:
		return "moving"
	case StateCharging:
		return "charging"
	case StateFired:
		return "fired"
	case StateItemArmed:
		return "item_armed"
	case StateItemFired:
		return "item_fired"
	}
	return "unknown"
}

type Transform struct {
	Position  protocol.Vec2
	Offset    protocol.Vec2
	Rotation  float32
	Direction int32
}
