package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
)

// MaxDatagram is the practical single-packet limit every record must fit in.
const MaxDatagram = 1200

// magic seeds the checksum so foreign or corrupted buffers don't self-validate.
const magic = "ARTY/1"

var (
	ErrUnknownKind = errors.New("unknown message kind")
	ErrTooLarge    = errors.New("message exceeds datagram limit")
	ErrShort       = errors.New("datagram shorter than header")
	ErrNotKind     = errors.New("bytes are not a message of this kind")
	ErrChecksum    = errors.New("checksum mismatch")
)

var (
	order   = binary.LittleEndian
	table   = crc32.MakeTable(crc32.Castagnoli)
	seed    = crc32.Update(0, table, []byte(magic))
	sizes   [kindCount]int
	MaxSize int
)

func init() {
	for k := KindInvalid + 1; k < kindCount; k++ {
		n := binary.Size(factories[k]())
		if n < HeaderSize || n > MaxDatagram {
			panic(fmt.Sprintf("protocol: %s has invalid wire size %d", k, n))
		}
		sizes[k] = n
		if n > MaxSize {
			MaxSize = n
		}
	}
}

// SizeOf returns the fixed wire size of kind k, or 0 if k is unknown.
func SizeOf(k Kind) int {
	if !k.Valid() {
		return 0
	}
	return sizes[k]
}

// Create fills m's header for the given room and player and stamps its
// checksum. It is the only way records should be prepared for sending.
func Create(room, player int32, m Message) error {
	h := m.Head()
	h.Checksum = 0
	h.Kind = m.kind()
	h.RoomID = room
	h.PlayerID = player

	b, err := encode(m)
	if err != nil {
		return err
	}
	h.Checksum = sum(b)
	return nil
}

// Marshal encodes m as-is. Callers normally run Create first.
func Marshal(m Message) ([]byte, error) {
	return encode(m)
}

// Checksum recomputes the checksum of m without touching its header.
func Checksum(m Message) (uint32, error) {
	b, err := encode(m)
	if err != nil {
		return 0, err
	}
	return sum(b), nil
}

// Valid reports whether m's embedded checksum matches its contents.
func Valid(m Message) bool {
	c, err := Checksum(m)
	return err == nil && c == m.Head().Checksum
}

// PeekKind reads the kind field of a raw record without validating it.
func PeekKind(b []byte) (Kind, error) {
	if len(b) < HeaderSize {
		return KindInvalid, ErrShort
	}
	return Kind(order.Uint32(b[4:8])), nil
}

// Decode interprets b as whatever kind its header claims.
func Decode(b []byte) (Message, error) {
	k, err := PeekKind(b)
	if err != nil {
		return nil, err
	}
	return DecodeAs(k, b)
}

// DecodeAs interprets b as a candidate of kind k. A size, kind or checksum
// mismatch means b is not that kind; none of them are fatal.
func DecodeAs(k Kind, b []byte) (Message, error) {
	if !k.Valid() {
		return nil, ErrUnknownKind
	}
	if len(b) != sizes[k] {
		return nil, ErrNotKind
	}
	if Kind(order.Uint32(b[4:8])) != k {
		return nil, ErrNotKind
	}
	if order.Uint32(b[0:4]) != sum(b) {
		return nil, ErrChecksum
	}
	m := factories[k]()
	if err := binary.Read(bytes.NewReader(b), order, m); err != nil {
		return nil, fmt.Errorf("decode %s: %w", k, err)
	}
	return m, nil
}

func encode(m Message) ([]byte, error) {
	if m == nil || !m.kind().Valid() {
		return nil, ErrUnknownKind
	}
	var buf bytes.Buffer
	buf.Grow(sizes[m.kind()])
	if err := binary.Write(&buf, order, m); err != nil {
		return nil, fmt.Errorf("encode %s: %w", m.kind(), err)
	}
	if buf.Len() > MaxDatagram {
		return nil, ErrTooLarge
	}
	return buf.Bytes(), nil
}

// sum hashes everything after the checksum field.
func sum(b []byte) uint32 {
	return crc32.Update(seed, table, b[4:])
}
