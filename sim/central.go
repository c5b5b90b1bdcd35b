package sim

import (
	"context"
	"errors"
	"net"

	"github.com/XC-/lampgatt"
	"github.com/XC-/lampgatt/internal/loop"
	"github.com/sirupsen/logrus"
)

var (
	ErrNotConnected    = errors.New("sim: no central connected")
	ErrConnected       = errors.New("sim: central already connected")
	ErrNoApp           = errors.New("sim: no app registered")
	ErrPayloadTooLong  = errors.New("sim: value exceeds link MTU")
	ErrLinkLost        = errors.New("sim: link lost before response")
	ErrInvalidMTU      = errors.New("sim: invalid MTU")
	DefaultCentralAddr = gatt.BDAddr{HardwareAddr: net.HardwareAddr{0xc0, 0xff, 0xee, 0x00, 0x00, 0x01}}
)

// A Notification is a value pushed to the simulated central.
type Notification struct {
	Handle  uint16
	Value   []byte
	Confirm bool
}

type link struct {
	id   gatt.ConnID
	addr gatt.BDAddr
	mtu  uint16
}

// Connect opens a link from a simulated central at addr. The connect
// event goes to every registered interface, and advertising stops.
func (c *Controller) Connect(addr gatt.BDAddr) (gatt.ConnID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.link != nil {
		return gatt.ConnIDNone, ErrConnected
	}
	if len(c.apps) == 0 {
		return gatt.ConnIDNone, ErrNoApp
	}
	c.link = &link{id: c.nextConn, addr: addr, mtu: gatt.DefaultMTU}
	c.nextConn++
	c.advertising = false
	c.log.WithFields(logrus.Fields{"conn_id": c.link.id, "remote": addr}).Debug("central connected")
	c.broadcast(gatt.ConnectEvent{ConnID: c.link.id, RemoteAddr: addr})
	return c.link.id, nil
}

// Disconnect closes the link. Requests still waiting for a response
// fail with ErrLinkLost.
func (c *Controller) Disconnect(reason uint8) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.link == nil {
		return ErrNotConnected
	}
	l := c.link
	c.link = nil
	c.tx.FailAll(ErrLinkLost)
	c.broadcast(gatt.DisconnectEvent{ConnID: l.id, RemoteAddr: l.addr, Reason: reason})
	return nil
}

// ExchangeMTU negotiates the link MTU.
func (c *Controller) ExchangeMTU(mtu uint16) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.link == nil {
		return ErrNotConnected
	}
	if mtu < gatt.DefaultMTU {
		return ErrInvalidMTU
	}
	c.link.mtu = mtu
	c.broadcast(gatt.MTUEvent{ConnID: c.link.id, MTU: mtu})
	return nil
}

// Connected reports whether a simulated central is connected.
func (c *Controller) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.link != nil
}

// Notifications returns the values pushed to the simulated central.
// Values are dropped when nobody receives them and the buffer is full.
func (c *Controller) Notifications() <-chan Notification {
	return c.notes
}

// Read reads the attribute at handle, starting at offset, and waits for
// the response. Events must be delivered by Run meanwhile.
func (c *Controller) Read(ctx context.Context, handle, offset uint16) ([]byte, gatt.Status, error) {
	r, err := c.transact(ctx, handle, func(conn gatt.ConnID, trans uint32) gatt.Event {
		return gatt.ReadEvent{ConnID: conn, TransID: trans, Handle: handle, Offset: offset, IsLong: offset > 0}
	})
	if err != nil {
		return nil, 0, err
	}
	return r.Value, r.Status, nil
}

// Write writes value to the attribute at handle and waits for the
// response.
func (c *Controller) Write(ctx context.Context, handle uint16, value []byte) (gatt.Status, error) {
	r, err := c.transact(ctx, handle, func(conn gatt.ConnID, trans uint32) gatt.Event {
		return gatt.WriteEvent{ConnID: conn, TransID: trans, Handle: handle, Value: copyBytes(value), NeedResponse: true}
	})
	if err != nil {
		return 0, err
	}
	return r.Status, nil
}

// PrepareWrite queues part of a long write at offset and waits for the
// response.
func (c *Controller) PrepareWrite(ctx context.Context, handle, offset uint16, value []byte) (gatt.Status, error) {
	r, err := c.transact(ctx, handle, func(conn gatt.ConnID, trans uint32) gatt.Event {
		return gatt.WriteEvent{ConnID: conn, TransID: trans, Handle: handle, Offset: offset, Value: copyBytes(value), NeedResponse: true, IsPrepare: true}
	})
	if err != nil {
		return 0, err
	}
	return r.Status, nil
}

// WriteCommand writes value to the attribute at handle without asking
// for a response.
func (c *Controller) WriteCommand(handle uint16, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.link == nil {
		return ErrNotConnected
	}
	c.post(c.owner(handle), gatt.WriteEvent{ConnID: c.link.id, TransID: c.tx.Next(), Handle: handle, Value: copyBytes(value)})
	return nil
}

func (c *Controller) transact(ctx context.Context, handle uint16, ev func(gatt.ConnID, uint32) gatt.Event) (loop.Reply, error) {
	c.mu.Lock()
	if c.link == nil {
		c.mu.Unlock()
		return loop.Reply{}, ErrNotConnected
	}
	id, ch := c.tx.Begin()
	c.post(c.owner(handle), ev(c.link.id, id))
	c.mu.Unlock()
	return c.tx.Wait(ctx, id, ch)
}

// owner returns the interface of the service whose handle block holds
// handle, or the first registered interface. Called with c.mu held.
func (c *Controller) owner(handle uint16) gatt.Interface {
	for _, s := range c.services {
		if handle >= s.handle && handle <= s.end {
			return s.iface
		}
	}
	if ii := c.interfaces(); len(ii) > 0 {
		return ii[0]
	}
	return gatt.InterfaceNone
}

func copyBytes(b []byte) []byte {
	return append([]byte(nil), b...)
}
