package protocol

import (
	"bytes"
	"errors"
)

const (
	HeaderSize    = 16
	NameSize      = 16
	LobbyCapacity = 16
	RoomCapacity  = 4
	ItemSlots     = 4

	// LobbyRoomID is the room id lobby-only connections are keyed under.
	LobbyRoomID int32 = 0
	// NoPlayer fills unused player slots in roster payloads.
	NoPlayer int32 = -1
)

var ErrNameTooLong = errors.New("name does not fit in a message")

// Header is the common prefix of every record on the wire.
type Header struct {
	Checksum uint32
	Kind     Kind
	RoomID   int32
	PlayerID int32
}

func (h *Header) Head() *Header { return h }

// Message is implemented by every record in the catalog. The set is closed:
// only types declared in this package satisfy it.
type Message interface {
	Head() *Header
	kind() Kind
}

// KindOf returns the kind m is encoded as, independent of its header.
func KindOf(m Message) Kind { return m.kind() }

type Name [NameSize]byte

func NewName(s string) (Name, error) {
	var n Name
	if len(s) > NameSize {
		return n, ErrNameTooLong
	}
	copy(n[:], s)
	return n, nil
}

func (n Name) String() string {
	if i := bytes.IndexByte(n[:], 0); i >= 0 {
		return string(n[:i])
	}
	return string(n[:])
}

type Vec2 struct {
	X, Y float32
}

type Character int32

const (
	CharacterUnset   Character = -1
	CharacterCannon  Character = 0
	CharacterMissile Character = 1
	CharacterShotgun Character = 2

	DefaultCharacter = CharacterCannon
)

type ObjectType int32

const (
	ObjectNone       ObjectType = 0
	ObjectCharacter  ObjectType = 1
	ObjectProjectile ObjectType = 2
	ObjectItem       ObjectType = 3
)

type HitTarget int32

const (
	HitGround    HitTarget = 1
	HitCharacter HitTarget = 2
)

// Reason codes carried by NoGo.
type Reason int32

const (
	ReasonNone Reason = iota
	ReasonWaiting
	ReasonNotHost
	ReasonRoomFull
	ReasonLobbyFull
	ReasonInMatch
	ReasonUnknownPlayer
	ReasonBadValue
)

type Ping struct {
	Header
	SentAt int64
}

type Pong struct {
	Header
	SentAt     int64
	ServerTime int64
}

type LobbyJoin struct {
	Header
	Name Name
}

type LobbyLeave struct {
	Header
}

type LobbyInfo struct {
	Header
	PlayerCount int32
	Players     [LobbyCapacity]int32
	Names       [LobbyCapacity]Name
}

type RoomJoin struct {
	Header
	Name Name
}

type RoomLeave struct {
	Header
}

type RoomInfo struct {
	Header
	PlayerCount int32
	Players     [RoomCapacity]int32
	Names       [RoomCapacity]Name
}

type RoomSelectCharacter struct {
	Header
	Character Character
}

type RoomSelectItems struct {
	Header
	Items [ItemSlots]int32
}

type RoomStart struct {
	Header
}

type GameInit struct {
	Header
	PlayerCount int32
	Players     [RoomCapacity]int32
	Characters  [RoomCapacity]Character
	Items       [RoomCapacity][ItemSlots]int32
	WindSeed    uint64
}

type LoadDone struct {
	Header
	FrameTime int64
}

type GameStart struct {
	Header
	ServerTime int64
}

type Go struct {
	Header
	AckKind Kind
}

type NoGo struct {
	Header
	AckKind Kind
	Reason  Reason
}

type Position struct {
	Header
	ObjectType ObjectType
	ObjectID   int32
	Position   Vec2
	Offset     Vec2
	Rotation   float32
	Direction  int32
}

type Stop struct {
	Header
	ObjectType ObjectType
	ObjectID   int32
	Position   Vec2
}

type Firing struct {
	Header
	Position Vec2
	Rotation float32
}

type Fire struct {
	Header
	ObjectType ObjectType
	ObjectID   int32
	Position   Vec2
	Rotation   float32
	Charge     float32
}

type ItemArm struct {
	Header
	Slot int32
	Item int32
}

type ItemFire struct {
	Header
	Slot     int32
	Item     int32
	Position Vec2
}

type ProjectileSelect struct {
	Header
	Projectile int32
}

type Hit struct {
	Header
	ObjectType   ObjectType
	ObjectID     int32
	Target       HitTarget
	TargetPlayer int32
	Position     Vec2
	Damage       float32
}

type GameOver struct {
	Header
	Winner int32
}

func (*Ping) kind() Kind                { return KindPing }
func (*Pong) kind() Kind                { return KindPong }
func (*LobbyJoin) kind() Kind           { return KindLobbyJoin }
func (*LobbyLeave) kind() Kind          { return KindLobbyLeave }
func (*LobbyInfo) kind() Kind           { return KindLobbyInfo }
func (*RoomJoin) kind() Kind            { return KindRoomJoin }
func (*RoomLeave) kind() Kind           { return KindRoomLeave }
func (*RoomInfo) kind() Kind            { return KindRoomInfo }
func (*RoomSelectCharacter) kind() Kind { return KindRoomSelectCharacter }
func (*RoomSelectItems) kind() Kind     { return KindRoomSelectItems }
func (*RoomStart) kind() Kind           { return KindRoomStart }
func (*GameInit) kind() Kind            { return KindGameInit }
func (*LoadDone) kind() Kind            { return KindLoadDone }
func (*GameStart) kind() Kind           { return KindGameStart }
func (*Go) kind() Kind                  { return KindGo }
func (*NoGo) kind() Kind                { return KindNoGo }
func (*Position) kind() Kind            { return KindPosition }
func (*Stop) kind() Kind                { return KindStop }
func (*Firing) kind() Kind              { return KindFiring }
func (*Fire) kind() Kind                { return KindFire }
func (*ItemArm) kind() Kind             { return KindItemArm }
func (*ItemFire) kind() Kind            { return KindItemFire }
func (*ProjectileSelect) kind() Kind    { return KindProjectileSelect }
func (*Hit) kind() Kind                 { return KindHit }
func (*GameOver) kind() Kind            { return KindGameOver }

var factories = [kindCount]func() Message{
	KindPing:                func() Message { return new(Ping) },
	KindPong:                func() Message { return new(Pong) },
	KindLobbyJoin:           func() Message { return new(LobbyJoin) },
	KindLobbyLeave:          func() Message { return new(LobbyLeave) },
	KindLobbyInfo:           func() Message { return new(LobbyInfo) },
	KindRoomJoin:            func() Message { return new(RoomJoin) },
	KindRoomLeave:           func() Message { return new(RoomLeave) },
	KindRoomInfo:            func() Message { return new(RoomInfo) },
	KindRoomSelectCharacter: func() Message { return new(RoomSelectCharacter) },
	KindRoomSelectItems:     func() Message { return new(RoomSelectItems) },
	KindRoomStart:           func() Message { return new(RoomStart) },
	KindGameInit:            func() Message { return new(GameInit) },
	KindLoadDone:            func() Message { return new(LoadDone) },
	KindGameStart:           func() Message { return new(GameStart) },
	KindGo:                  func() Message { return new(Go) },
	KindNoGo:                func() Message { return new(NoGo) },
	KindPosition:            func() Message { return new(Position) },
	KindStop:                func() Message { return new(Stop) },
	KindFiring:              func() Message { return new(Firing) },
	KindFire:                func() Message { return new(Fire) },
	KindItemArm:             func() Message { return new(ItemArm) },
	KindItemFire:            func() Message { return new(ItemFire) },
	KindProjectileSelect:    func() Message { return new(ProjectileSelect) },
	KindHit:                 func() Message { return new(Hit) },
	KindGameOver:            func() Message { return new(GameOver) },
}

// New returns a zero record of kind k.
func New(k Kind) (Message, error) {
	if !k.Valid() {
		return nil, ErrUnknownKind
	}
	return factories[k](), nil
}
