package gatt

import "sync"

// A Descriptor is a characteristic descriptor added by the server on behalf
// of its characteristic.
type Descriptor struct {
	uuid  UUID
	char  *Characteristic
	perms Permission
	mode  ResponseMode

	mu    sync.RWMutex
	value []byte
	n     uint16
	bound bool
}

func newCCCD(c *Characteristic) *Descriptor {
	return &Descriptor{
		uuid:  gattAttrClientCharacteristicConfigUUID,
		char:  c,
		perms: PermRead | PermWrite,
		mode:  RespondAuto,
		value: append([]byte{}, cccdDisabled...),
	}
}

func newUserDescription(c *Characteristic, name string) *Descriptor {
	return &Descriptor{
		uuid:  gattAttrUserDescriptionUUID,
		char:  c,
		perms: PermRead,
		mode:  RespondAuto,
		value: []byte(name),
	}
}

// UUID returns the descriptor's UUID.
func (d *Descriptor) UUID() UUID { return d.uuid }

// Characteristic returns the characteristic the descriptor belongs to.
func (d *Descriptor) Characteristic() *Characteristic { return d.char }

// Permissions returns the attribute permissions.
func (d *Descriptor) Permissions() Permission { return d.perms }

// ResponseMode reports who answers reads and writes of the descriptor.
func (d *Descriptor) ResponseMode() ResponseMode { return d.mode }

// Value returns a copy of the descriptor value.
func (d *Descriptor) Value() []byte {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]byte{}, d.value...)
}

func (d *Descriptor) setValue(b []byte) {
	v := append([]byte{}, b...)
	d.mu.Lock()
	d.value = v
	d.mu.Unlock()
}

// Handle returns the handle assigned by the controller and whether
// the descriptor has been registered yet.
func (d *Descriptor) Handle() (uint16, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.n, d.bound
}

func (d *Descriptor) setHandle(n uint16) {
	d.mu.Lock()
	d.n, d.bound = n, true
	d.mu.Unlock()
}

// subscribed reports the CCCD notify and indicate bits.
func (d *Descriptor) subscribed() (notify, indicate bool) {
	v := d.Value()
	if len(v) < 2 {
		return false, false
	}
	flags := uint16(v[0]) | uint16(v[1])<<8
	return flags&gattCCCNotifyFlag != 0, flags&gattCCCIndicateFlag != 0
}
