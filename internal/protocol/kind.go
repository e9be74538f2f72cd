package protocol

import "fmt"

type Kind uint32

const (
	KindInvalid Kind = iota
	KindPing
	KindPong
	KindLobbyJoin
	KindLobbyLeave
	KindLobbyInfo
	KindRoomJoin
	KindRoomLeave
	KindRoomInfo
	KindRoomSelectCharacter
	KindRoomSelectItems
	KindRoomStart
	KindGameInit
	KindLoadDone
	KindGameStart
	KindGo
	KindNoGo
	KindPosition
	KindStop
	KindFiring
	KindFire
	KindItemArm
	KindItemFire
	KindProjectileSelect
	KindHit
	KindGameOver

	kindCount
)

var kindNames = [kindCount]string{
	KindInvalid:             "Invalid",
	KindPing:                "Ping",
	KindPong:                "Pong",
	KindLobbyJoin:           "LobbyJoin",
	KindLobbyLeave:          "LobbyLeave",
	KindLobbyInfo:           "LobbyInfo",
	KindRoomJoin:            "RoomJoin",
	KindRoomLeave:           "RoomLeave",
	KindRoomInfo:            "RoomInfo",
	KindRoomSelectCharacter: "RoomSelectCharacter",
	KindRoomSelectItems:     "RoomSelectItems",
	KindRoomStart:           "RoomStart",
	KindGameInit:            "GameInit",
	KindLoadDone:            "LoadDone",
	KindGameStart:           "GameStart",
	KindGo:                  "Go",
	KindNoGo:                "NoGo",
	KindPosition:            "Position",
	KindStop:                "Stop",
	KindFiring:              "Firing",
	KindFire:                "Fire",
	KindItemArm:             "ItemArm",
	KindItemFire:            "ItemFire",
	KindProjectileSelect:    "ProjectileSelect",
	KindHit:                 "Hit",
	KindGameOver:            "GameOver",
}

func (k Kind) Valid() bool { return k > KindInvalid && k < kindCount }

func (k Kind) String() string {
	if k < kindCount {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint32(k))
}

// InMatch reports whether k is one of the gameplay kinds the server relays
// between room members once a match is running.
func (k Kind) InMatch() bool {
	switch k {
	case KindPosition, KindStop, KindFiring, KindFire,
		KindItemArm, KindItemFire, KindProjectileSelect, KindHit:
		return true
	}
	return false
}
