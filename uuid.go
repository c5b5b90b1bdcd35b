package gatt

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrInvalidUUID is returned by ParseUUID for strings that are neither
// the dashed 36-character form nor the bare 32 hex digit form.
var ErrInvalidUUID = errors.New("invalid UUID string")

// baseUUID is the Bluetooth base UUID 00000000-0000-1000-8000-00805f9b34fb,
// stored in the little-endian byte order used on the wire.
var baseUUID = [16]byte{
	0xfb, 0x34, 0x9b, 0x5f, 0x80, 0x00, 0x00, 0x80,
	0x00, 0x10, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
}

// A UUID is a BLE UUID. It holds a 16-bit, 32-bit or 128-bit value;
// the compact forms are aliases into the Bluetooth base UUID.
// UUIDs compare equal (see Equal) when their 128-bit expansions match,
// so UUID16(0x2902) equals its expanded 128-bit form.
type UUID struct {
	n int // 2, 4 or 16
	b [16]byte
}

// UUID16 converts a uint16 (such as 0x1800) to a UUID.
func UUID16(i uint16) UUID {
	u := UUID{n: 2}
	binary.LittleEndian.PutUint16(u.b[:], i)
	return u
}

// UUID32 converts a uint32 to a UUID.
func UUID32(i uint32) UUID {
	u := UUID{n: 4}
	binary.LittleEndian.PutUint32(u.b[:], i)
	return u
}

// UUID128 wraps a full 128-bit UUID given in little-endian (controller) order.
func UUID128(b [16]byte) UUID {
	return UUID{n: 16, b: b}
}

// ParseUUID parses a 128-bit UUID string, either in the dashed
// "xxxxxxxx-xxxx-xxxx-xxxx-xxxxxxxxxxxx" form or as 32 hex digits.
func ParseUUID(s string) (UUID, error) {
	if len(s) != 36 && len(s) != 32 {
		return UUID{}, fmt.Errorf("%w: %q has length %d", ErrInvalidUUID, s, len(s))
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return UUID{}, fmt.Errorf("%w: %q: %v", ErrInvalidUUID, s, err)
	}
	var b [16]byte
	copy(b[:], reverse(id[:]))
	return UUID128(b), nil
}

// MustParseUUID parses a UUID string like ParseUUID, but panics in case of
// error. It is meant for UUID literals in static configuration.
func MustParseUUID(s string) UUID {
	u, err := ParseUUID(s)
	if err != nil {
		panic(err)
	}
	return u
}

// Len returns the length of the compact UUID form in bytes: 2, 4 or 16.
func (u UUID) Len() int {
	return u.n
}

// Bytes returns the compact form of u in little-endian order.
func (u UUID) Bytes() []byte {
	b := make([]byte, u.n)
	copy(b, u.b[:u.n])
	return b
}

// Uint16 returns the 16-bit value of u and whether u is a 16-bit UUID.
func (u UUID) Uint16() (uint16, bool) {
	if u.n != 2 {
		return 0, false
	}
	return binary.LittleEndian.Uint16(u.b[:]), true
}

// Uint32 returns the 32-bit value of u and whether u is a 32-bit UUID.
func (u UUID) Uint32() (uint32, bool) {
	if u.n != 4 {
		return 0, false
	}
	return binary.LittleEndian.Uint32(u.b[:]), true
}

// Expand returns the canonical 128-bit form of u in little-endian order.
// It is suitable as a map key.
func (u UUID) Expand() [16]byte {
	switch u.n {
	case 2:
		b := baseUUID
		copy(b[12:14], u.b[:2])
		return b
	case 4:
		b := baseUUID
		copy(b[12:16], u.b[:4])
		return b
	}
	return u.b
}

// Equal reports whether u and v expand to the same 128-bit UUID.
func (u UUID) Equal(v UUID) bool {
	return u.Expand() == v.Expand()
}

// IsZero reports whether u was never initialized.
func (u UUID) IsZero() bool {
	return u.n == 0
}

// String formats 16-bit and 32-bit UUIDs as hex numbers and 128-bit UUIDs
// in the canonical dashed form.
func (u UUID) String() string {
	switch u.n {
	case 2:
		v, _ := u.Uint16()
		return fmt.Sprintf("0x%04x", v)
	case 4:
		v, _ := u.Uint32()
		return fmt.Sprintf("0x%08x", v)
	}
	var id uuid.UUID
	copy(id[:], reverse(u.b[:]))
	return id.String()
}

// reverse returns a reversed copy of u.
func reverse(u []byte) []byte {
	// Special-case 16 bit UUIDS for speed.
	l := len(u)
	if l == 2 {
		return []byte{u[1], u[0]}
	}
	b := make([]byte, l)
	for i := 0; i < l; i++ {
		b[i] = u[l-i-1]
	}
	return b
}
