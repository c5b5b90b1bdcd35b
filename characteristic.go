package gatt

import "sync"

// A ReadRequest is a characteristic read request from a connected device.
type ReadRequest struct {
	Conn           ConnID
	Characteristic *Characteristic
	// Offset is the value offset requested by a long read. The server skips
	// the first Offset bytes of whatever the handler writes.
	Offset int
}

// A ReadHandler handles GATT read requests.
type ReadHandler interface {
	ServeRead(resp ReadResponseWriter, req *ReadRequest)
}

// ReadHandlerFunc is an adapter to allow the use of
// ordinary functions as ReadHandlers. If f is a function
// with the appropriate signature, ReadHandlerFunc(f) is a
// ReadHandler that calls f.
type ReadHandlerFunc func(resp ReadResponseWriter, req *ReadRequest)

// ServeRead returns f(r, req).
func (f ReadHandlerFunc) ServeRead(resp ReadResponseWriter, req *ReadRequest) {
	f(resp, req)
}

// A WriteRequest is a characteristic write request from a connected device.
type WriteRequest struct {
	Conn           ConnID
	Characteristic *Characteristic
	Offset         int
	// NeedResponse is false for write-without-response.
	NeedResponse bool
}

// A WriteHandler handles GATT write requests.
// Write and WriteNR requests are presented identically;
// the server will ensure that a response is sent if appropriate.
// The data passed to ServeWrite is already truncated to the
// characteristic's maximum value length.
type WriteHandler interface {
	ServeWrite(req *WriteRequest, data []byte) (status Status)
}

// WriteHandlerFunc is an adapter to allow the use of
// ordinary functions as WriteHandlers. If f is a function
// with the appropriate signature, WriteHandlerFunc(f) is a
// WriteHandler that calls f.
type WriteHandlerFunc func(req *WriteRequest, data []byte) Status

// ServeWrite returns f(req, data).
func (f WriteHandlerFunc) ServeWrite(req *WriteRequest, data []byte) Status {
	return f(req, data)
}

// A Characteristic is a BLE characteristic. It is created by a
// CharacteristicBuilder and may be shared between the service declaring it
// and any code pushing notifications; all methods are safe for concurrent use.
type Characteristic struct {
	uuid     UUID
	name     string
	showName bool
	maxLen   int
	perms    Permission
	props    Property
	rhandler ReadHandler
	whandler WriteHandler
	descs    []*Descriptor

	mu     sync.RWMutex
	value  []byte
	valuen uint16 // value handle; set on registration, needed when notifying
	bound  bool
}

// UUID returns the characteristic's UUID.
func (c *Characteristic) UUID() UUID { return c.uuid }

// Name returns the human-readable name, if any.
func (c *Characteristic) Name() string { return c.name }

// ShowName reports whether the name is exposed through a
// Characteristic User Description descriptor.
func (c *Characteristic) ShowName() bool { return c.showName }

// MaxValueLen returns the maximum value length in bytes.
func (c *Characteristic) MaxValueLen() int { return c.maxLen }

// Permissions returns the attribute permissions.
func (c *Characteristic) Permissions() Permission { return c.perms }

// Properties returns the characteristic properties.
func (c *Characteristic) Properties() Property { return c.props }

// Descriptors returns the descriptors added after the characteristic,
// in registration order.
func (c *Characteristic) Descriptors() []*Descriptor {
	return append([]*Descriptor(nil), c.descs...)
}

// Value returns a copy of the cached value.
func (c *Characteristic) Value() []byte {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]byte{}, c.value...)
}

// SetValue replaces the cached value. Values longer than MaxValueLen are
// truncated; SetValue reports whether that happened.
func (c *Characteristic) SetValue(b []byte) (truncated bool) {
	if len(b) > c.maxLen {
		b, truncated = b[:c.maxLen], true
	}
	v := append([]byte{}, b...)
	c.mu.Lock()
	c.value = v
	c.mu.Unlock()
	return truncated
}

// Handle returns the value handle assigned by the controller and whether
// the characteristic has been registered yet.
func (c *Characteristic) Handle() (uint16, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.valuen, c.bound
}

func (c *Characteristic) setHandle(n uint16) {
	c.mu.Lock()
	c.valuen, c.bound = n, true
	c.mu.Unlock()
}

// A CharacteristicBuilder accumulates the attributes of a characteristic.
// Attributes may be set in any order; Build freezes them.
type CharacteristicBuilder struct {
	uuid     UUID
	name     string
	showName bool
	maxLen   int
	perms    Permission
	props    Property
	value    []byte
	rhandler ReadHandler
	whandler WriteHandler
}

// NewCharacteristic starts the declaration of a characteristic.
// The maximum value length defaults to MaxValueLen.
func NewCharacteristic(u UUID) *CharacteristicBuilder {
	return &CharacteristicBuilder{uuid: u, maxLen: MaxValueLen}
}

// Name sets the human-readable name.
func (b *CharacteristicBuilder) Name(n string) *CharacteristicBuilder {
	b.name = n
	return b
}

// ShowName exposes the name through a Characteristic User Description (0x2901).
func (b *CharacteristicBuilder) ShowName() *CharacteristicBuilder {
	b.showName = true
	return b
}

// MaxValueLen sets the maximum value length. Values are capped at MaxValueLen.
func (b *CharacteristicBuilder) MaxValueLen(n int) *CharacteristicBuilder {
	switch {
	case n < 0:
		n = 0
	case n > MaxValueLen:
		n = MaxValueLen
	}
	b.maxLen = n
	return b
}

// Permissions adds attribute permissions.
func (b *CharacteristicBuilder) Permissions(p Permission) *CharacteristicBuilder {
	b.perms |= p
	return b
}

// Properties adds characteristic properties.
func (b *CharacteristicBuilder) Properties(p Property) *CharacteristicBuilder {
	b.props |= p
	return b
}

// Value sets the initial cached value.
func (b *CharacteristicBuilder) Value(v []byte) *CharacteristicBuilder {
	b.value = append([]byte{}, v...)
	return b
}

// OnRead routes read requests to h.
func (b *CharacteristicBuilder) OnRead(h ReadHandler) *CharacteristicBuilder {
	b.rhandler = h
	return b
}

// OnReadFunc calls OnRead(ReadHandlerFunc(f)).
func (b *CharacteristicBuilder) OnReadFunc(f func(resp ReadResponseWriter, req *ReadRequest)) *CharacteristicBuilder {
	return b.OnRead(ReadHandlerFunc(f))
}

// OnWrite routes write requests to h.
func (b *CharacteristicBuilder) OnWrite(h WriteHandler) *CharacteristicBuilder {
	b.whandler = h
	return b
}

// OnWriteFunc calls OnWrite(WriteHandlerFunc(f)).
func (b *CharacteristicBuilder) OnWriteFunc(f func(req *WriteRequest, data []byte) Status) *CharacteristicBuilder {
	return b.OnWrite(WriteHandlerFunc(f))
}

// Build returns the characteristic. A notify or indicate capable
// characteristic gets a CCCD, and one declared with ShowName gets a
// user description, in that order.
func (b *CharacteristicBuilder) Build() *Characteristic {
	c := &Characteristic{
		uuid:     b.uuid,
		name:     b.name,
		showName: b.showName,
		maxLen:   b.maxLen,
		perms:    b.perms,
		props:    b.props,
		rhandler: b.rhandler,
		whandler: b.whandler,
	}
	c.SetValue(b.value)
	if c.props.Pushable() {
		c.descs = append(c.descs, newCCCD(c))
	}
	if c.showName {
		c.descs = append(c.descs, newUserDescription(c, c.name))
	}
	return c
}
