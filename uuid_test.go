package gatt

import (
	"bytes"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUID16(t *testing.T) {
	if want, got := UUID128([16]byte{0xfb, 0x34, 0x9b, 0x5f, 0x80, 0x00, 0x00, 0x80, 0x00, 0x10, 0x00, 0x00, 0x00, 0x18, 0x00, 0x00}), UUID16(0x1800); !got.Equal(want) {
		t.Errorf("UUID16: got %x, want %x", got.Expand(), want.Expand())
	}
}

func TestUUID16EqualsExpansionForAllValues(t *testing.T) {
	for i := 0; i <= 0xffff; i++ {
		short := UUID16(uint16(i))
		long := UUID128(short.Expand())
		if !short.Equal(long) || !long.Equal(short) {
			t.Fatalf("UUID16(0x%04x) not equal to its 128-bit expansion %s", i, long)
		}
	}
}

func TestUUID32Expansion(t *testing.T) {
	u := UUID32(0x12345678)
	want := MustParseUUID("12345678-0000-1000-8000-00805f9b34fb")
	assert.True(t, u.Equal(want))
	assert.Equal(t, "0x12345678", u.String())
	assert.False(t, u.Equal(UUID16(0x5678)))
}

func TestUUIDString(t *testing.T) {
	cases := []struct {
		u    UUID
		want string
	}{
		{u: UUID16(0x2902), want: "0x2902"},
		{u: UUID16(0x0001), want: "0x0001"},
		{u: UUID32(0xabcd), want: "0x0000abcd"},
		{u: MustParseUUID("F9DFBD73-0181-433A-8091-372E0CA8A598"), want: "f9dfbd73-0181-433a-8091-372e0ca8a598"},
		{u: UUID128(UUID16(0x1234).Expand()), want: "00001234-0000-1000-8000-00805f9b34fb"},
	}

	for _, tt := range cases {
		if got := tt.u.String(); got != tt.want {
			t.Errorf("String(): got %q want %q", got, tt.want)
		}
	}
}

func TestParseUUIDByteOrder(t *testing.T) {
	// Same value as the brightness characteristic literal of the lamp firmware.
	want := [16]byte{
		0x98, 0xA5, 0xA8, 0x0C, 0x2E, 0x37, 0x91, 0x80,
		0x3A, 0x43, 0x81, 0x01, 0x73, 0xBD, 0xDF, 0xF9,
	}
	u, err := ParseUUID("F9DFBD73-0181-433A-8091-372E0CA8A598")
	require.NoError(t, err)
	assert.Equal(t, want, u.Expand())
	assert.Equal(t, 16, u.Len())

	bare, err := ParseUUID("f9dfbd730181433a8091372e0ca8a598")
	require.NoError(t, err)
	assert.True(t, u.Equal(bare))
}

func TestParseUUIDInvalid(t *testing.T) {
	for _, s := range []string{
		"",
		"1800",
		"00001234-0000-1000-8000-00805f9b34f",
		"00001234-0000-1000-8000-00805F9B34FB0",
		"0000123g-0000-1000-8000-00805f9b34fb",
		"0000123400001000800000805f9b34f",
		"{00001234-0000-1000-8000-00805f9b34fb}",
		"00001234_0000_1000_8000_00805f9b34fb",
	} {
		_, err := ParseUUID(s)
		assert.ErrorIs(t, err, ErrInvalidUUID, "ParseUUID(%q)", s)
	}
}

func TestMustParseUUIDPanics(t *testing.T) {
	assert.Panics(t, func() { MustParseUUID("not-a-uuid") })
	assert.NotPanics(t, func() { MustParseUUID("4E0F5E1E-FC5B-4D67-8E30-2A83B336476B") })
}

func TestParseFormatRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	const hexdigits = "0123456789abcdefABCDEF"
	for i := 0; i < 1000; i++ {
		var sb strings.Builder
		for j := 0; j < 32; j++ {
			if i%2 == 0 && (j == 8 || j == 12 || j == 16 || j == 20) {
				sb.WriteByte('-')
			}
			sb.WriteByte(hexdigits[r.Intn(len(hexdigits))])
		}
		s := sb.String()

		u, err := ParseUUID(s)
		require.NoError(t, err, s)
		back, err := ParseUUID(u.String())
		require.NoError(t, err, u.String())
		if !back.Equal(u) {
			t.Fatalf("round trip of %q: got %s want %s", s, back, u)
		}
	}
}

func TestReverse(t *testing.T) {
	cases := []struct {
		fwd  []byte
		back []byte
	}{
		{fwd: []byte{0, 1}, back: []byte{1, 0}},
		{fwd: []byte{0, 1, 2}, back: []byte{2, 1, 0}},
		{fwd: []byte{0, 1, 2, 3}, back: []byte{3, 2, 1, 0}},
		{
			fwd:  []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15},
			back: []byte{15, 14, 13, 12, 11, 10, 9, 8, 7, 6, 5, 4, 3, 2, 1, 0},
		},
	}

	for _, tt := range cases {
		got := reverse(tt.fwd)
		if !bytes.Equal(got, tt.back) {
			t.Errorf("reverse(%x): got %x want %x", tt.fwd, got, tt.back)
		}
	}
}

func BenchmarkUUIDString128(b *testing.B) {
	u := MustParseUUID("F9DFBD73-0181-433A-8091-372E0CA8A598")
	for i := 0; i < b.N; i++ {
		_ = u.String()
	}
}

func BenchmarkUUIDEqual(b *testing.B) {
	u, v := UUID16(0x2902), UUID128(UUID16(0x2902).Expand())
	for i := 0; i < b.N; i++ {
		u.Equal(v)
	}
}
