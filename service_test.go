package gatt

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCharacteristicBuilder(t *testing.T) {
	c := NewCharacteristic(UUID16(0x2a19)).
		Properties(PropRead).
		Name("level").
		Permissions(PermRead).
		MaxValueLen(2).
		Properties(PropNotify).
		Value([]byte{1, 2, 3}).
		Build()

	assert.Equal(t, "level", c.Name())
	assert.False(t, c.ShowName())
	assert.Equal(t, 2, c.MaxValueLen())
	assert.Equal(t, PermRead, c.Permissions())
	assert.Equal(t, PropRead|PropNotify, c.Properties())
	assert.Equal(t, []byte{1, 2}, c.Value(), "initial value is truncated")

	descs := c.Descriptors()
	require.Len(t, descs, 1)
	assert.True(t, descs[0].UUID().Equal(ClientCharacteristicConfigUUID))
	assert.Equal(t, []byte{0, 0}, descs[0].Value())
	assert.Equal(t, PermRead|PermWrite, descs[0].Permissions())
	assert.Equal(t, RespondAuto, descs[0].ResponseMode())
	assert.Same(t, c, descs[0].Characteristic())

	_, bound := c.Handle()
	assert.False(t, bound)
}

func TestCharacteristicDescriptors(t *testing.T) {
	cases := []struct {
		props    Property
		showName bool
		want     []UUID
	}{
		{props: PropRead, want: nil},
		{props: PropRead | PropWrite | PropWriteWithoutResponse, want: nil},
		{props: PropNotify, want: []UUID{ClientCharacteristicConfigUUID}},
		{props: PropIndicate, want: []UUID{ClientCharacteristicConfigUUID}},
		{props: PropNotify | PropIndicate, want: []UUID{ClientCharacteristicConfigUUID}},
		{props: PropRead, showName: true, want: []UUID{UserDescriptionUUID}},
		{props: PropNotify, showName: true, want: []UUID{ClientCharacteristicConfigUUID, UserDescriptionUUID}},
	}

	for _, tt := range cases {
		b := NewCharacteristic(UUID16(0x2a00)).Name("x").Properties(tt.props)
		if tt.showName {
			b.ShowName()
		}
		var got []UUID
		for _, d := range b.Build().Descriptors() {
			got = append(got, d.UUID())
		}
		assert.Equal(t, tt.want, got, "props %08b showName %v", tt.props, tt.showName)
	}
}

func TestCharacteristicMaxValueLenBounds(t *testing.T) {
	assert.Equal(t, MaxValueLen, NewCharacteristic(UUID16(1)).Build().MaxValueLen())
	assert.Equal(t, MaxValueLen, NewCharacteristic(UUID16(1)).MaxValueLen(10000).Build().MaxValueLen())
	assert.Equal(t, 0, NewCharacteristic(UUID16(1)).MaxValueLen(-1).Build().MaxValueLen())
}

func TestCharacteristicSetValue(t *testing.T) {
	c := NewCharacteristic(UUID16(0x2a19)).MaxValueLen(3).Build()

	assert.False(t, c.SetValue([]byte{1, 2, 3}))
	assert.Equal(t, []byte{1, 2, 3}, c.Value())
	assert.True(t, c.SetValue([]byte{4, 5, 6, 7}))
	assert.Equal(t, []byte{4, 5, 6}, c.Value())

	in := []byte{9}
	c.SetValue(in)
	in[0] = 0
	out := c.Value()
	out[0] = 1
	assert.Equal(t, []byte{9}, c.Value(), "SetValue and Value copy")
}

func TestCharacteristicConcurrentAccess(t *testing.T) {
	c := NewCharacteristic(UUID16(0x2a19)).MaxValueLen(4).Build()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(b byte) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.SetValue([]byte{b, b, b, b, b})
			}
		}(byte(i))
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				v := c.Value()
				if len(v) != 0 && len(v) != 4 {
					t.Errorf("torn value %v", v)
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestServiceBuilder(t *testing.T) {
	a := NewCharacteristic(UUID16(0x2a01)).Properties(PropRead).Build()
	b := NewCharacteristic(UUID16(0x2a02)).Properties(PropNotify).Build()
	c := NewCharacteristic(UUID16(0x2a03)).Name("c").ShowName().Properties(PropIndicate).Build()
	svc := NewService(UUID16(0x1800)).Name("gap").Characteristic(c).Characteristic(a).Characteristic(b).Build()

	assert.True(t, svc.Primary())
	assert.Equal(t, "gap", svc.Name())
	chars := svc.Characteristics()
	require.Len(t, chars, 3)
	assert.Same(t, c, chars[0], "declaration order, same instances")
	assert.Same(t, a, chars[1])
	assert.Same(t, b, chars[2])
	assert.Equal(t, uint16(1+2+2+1+2+2), svc.NumHandles())

	// A change through the external holder is visible through the service.
	a.SetValue([]byte("x"))
	assert.Equal(t, []byte("x"), svc.Characteristics()[1].Value())

	assert.False(t, NewService(UUID16(0x1801)).Primary(false).Build().Primary())
	assert.Equal(t, uint16(1), NewService(UUID16(0x1801)).Build().NumHandles())
}

func TestServiceDuplicateCharacteristicPanics(t *testing.T) {
	b := NewService(UUID16(0x1800)).Characteristic(NewCharacteristic(UUID16(0x2a00)).Build())
	assert.Panics(t, func() {
		b.Characteristic(NewCharacteristic(UUID128(UUID16(0x2a00).Expand())).Build())
	})
	assert.NotPanics(t, func() {
		b.Characteristic(NewCharacteristic(UUID16(0x2a01)).Build())
	})
}

func TestProfileBuilder(t *testing.T) {
	s1 := NewService(UUID16(0x1800)).Build()
	s2 := NewService(UUID16(0x1801)).Build()
	p := NewProfile(3).Name("lamp").Service(s1).Service(s2).Build()

	assert.Equal(t, uint16(3), p.AppID())
	assert.Equal(t, "lamp", p.Name())
	assert.Equal(t, []*Service{s1, s2}, p.Services())
	iface, ok := p.Interface()
	assert.False(t, ok)
	assert.Equal(t, InterfaceNone, iface)

	p.setInterface(4)
	iface, ok = p.Interface()
	assert.True(t, ok)
	assert.Equal(t, Interface(4), iface)
}

func TestDescriptorSubscribed(t *testing.T) {
	c := NewCharacteristic(UUID16(0x2a00)).Properties(PropNotify | PropIndicate).Build()
	d := c.Descriptors()[0]

	cases := []struct {
		value            []byte
		notify, indicate bool
	}{
		{value: []byte{0, 0}},
		{value: []byte{1, 0}, notify: true},
		{value: []byte{2, 0}, indicate: true},
		{value: []byte{3, 0}, notify: true, indicate: true},
		{value: []byte{1}},
	}
	for _, tt := range cases {
		d.setValue(tt.value)
		notify, indicate := d.subscribed()
		assert.Equal(t, tt.notify, notify, "%v", tt.value)
		assert.Equal(t, tt.indicate, indicate, "%v", tt.value)
	}
}

func TestSessionValidity(t *testing.T) {
	s := newSession()
	_, ok := s.get()
	assert.False(t, ok)

	s.set(Conn{Interface: 3, ID: ConnIDNone})
	_, ok = s.get()
	assert.False(t, ok, "sentinel connection id")

	s.set(Conn{Interface: InterfaceNone, ID: 0})
	_, ok = s.get()
	assert.False(t, ok, "sentinel interface")

	s.set(Conn{Interface: 3, ID: 0, MTU: DefaultMTU})
	_, ok = s.get()
	assert.True(t, ok)
	assert.False(t, s.setMTU(1, 100), "other link")
	assert.True(t, s.setMTU(0, 100))
	c, _ := s.get()
	assert.Equal(t, 100, c.MTU)

	prev := s.clear()
	assert.Equal(t, ConnID(0), prev.ID)
	_, ok = s.get()
	assert.False(t, ok)
}
