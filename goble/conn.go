package goble

import (
	"context"
	"net"

	"github.com/XC-/lampgatt"
	"github.com/XC-/lampgatt/internal/loop"
	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
)

// track returns the connection id of bc. go-ble has no connect callback
// on the server side, so a link is reported to the engine when its first
// request arrives, and its loss when bc is disconnected.
func (c *Controller) track(bc ble.Conn) gatt.ConnID {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id, ok := c.conns[bc]; ok {
		return id
	}
	id := c.nextConn
	c.nextConn++
	c.conns[bc] = id
	c.byID[id] = bc
	addr := bdaddr(bc.RemoteAddr())
	c.log.WithFields(logrus.Fields{"conn_id": id, "remote": addr}).Info("central connected")

	ifaces := c.interfaces()
	for _, iface := range ifaces {
		c.q.Post(iface, gatt.ConnectEvent{ConnID: id, RemoteAddr: addr})
	}
	if mtu := bc.TxMTU(); mtu > gatt.DefaultMTU {
		for _, iface := range ifaces {
			c.q.Post(iface, gatt.MTUEvent{ConnID: id, MTU: uint16(mtu)})
		}
	}
	go c.watch(bc, id, addr)
	return id
}

func (c *Controller) watch(bc ble.Conn, id gatt.ConnID, addr gatt.BDAddr) {
	<-bc.Disconnected()
	c.mu.Lock()
	delete(c.conns, bc)
	delete(c.byID, id)
	for k := range c.subs {
		if k.conn == id {
			delete(c.subs, k)
		}
	}
	ifaces := c.interfaces()
	c.mu.Unlock()

	c.tx.FailAll(ErrNotConnected)
	for _, iface := range ifaces {
		c.q.Post(iface, gatt.DisconnectEvent{ConnID: id, RemoteAddr: addr})
	}
}

// forward posts a request event and waits for the engine's response.
func (c *Controller) forward(iface gatt.Interface, ev func(transID uint32) gatt.Event) (loop.Reply, error) {
	id, ch := c.tx.Begin()
	c.q.Post(iface, ev(id))
	ctx, cancel := context.WithTimeout(context.Background(), RequestTimeout)
	defer cancel()
	return c.tx.Wait(ctx, id, ch)
}

func (c *Controller) readHandler(iface gatt.Interface, h uint16) ble.ReadHandler {
	return ble.ReadHandlerFunc(func(req ble.Request, rsp ble.ResponseWriter) {
		conn := c.track(req.Conn())
		off := req.Offset()
		r, err := c.forward(iface, func(id uint32) gatt.Event {
			return gatt.ReadEvent{ConnID: conn, TransID: id, Handle: h, Offset: uint16(off), IsLong: off > 0}
		})
		if err != nil {
			c.log.WithError(err).WithField("handle", h).Warn("read not answered")
			rsp.SetStatus(ble.ATTError(gatt.StatusUnexpectedError))
			return
		}
		rsp.SetStatus(ble.ATTError(r.Status))
		if r.Status.OK() {
			rsp.Write(r.Value)
		}
	})
}

func (c *Controller) writeHandler(iface gatt.Interface, h uint16) ble.WriteHandler {
	return ble.WriteHandlerFunc(func(req ble.Request, rsp ble.ResponseWriter) {
		conn := c.track(req.Conn())
		data := append([]byte(nil), req.Data()...)
		off := req.Offset()
		r, err := c.forward(iface, func(id uint32) gatt.Event {
			return gatt.WriteEvent{ConnID: conn, TransID: id, Handle: h, Offset: uint16(off), Value: data, NeedResponse: true}
		})
		if err != nil {
			c.log.WithError(err).WithField("handle", h).Warn("write not answered")
			rsp.SetStatus(ble.ATTError(gatt.StatusUnexpectedError))
			return
		}
		rsp.SetStatus(ble.ATTError(r.Status))
	})
}

// notifyHandler keeps the notifier of a subscription until the central
// unsubscribes or disconnects.
func (c *Controller) notifyHandler(h uint16, indicate bool) ble.NotifyHandler {
	return ble.NotifyHandlerFunc(func(req ble.Request, n ble.Notifier) {
		key := subKey{conn: c.track(req.Conn()), handle: h, indicate: indicate}
		log := c.log.WithFields(logrus.Fields{"conn_id": key.conn, "handle": h, "indicate": indicate})

		c.mu.Lock()
		c.subs[key] = n
		c.mu.Unlock()
		log.Info("subscribed")

		<-n.Context().Done()

		c.mu.Lock()
		if c.subs[key] == n {
			delete(c.subs, key)
		}
		c.mu.Unlock()
		log.Info("unsubscribed")
	})
}

func bdaddr(a ble.Addr) gatt.BDAddr {
	if a == nil {
		return gatt.BDAddr{}
	}
	hw, err := net.ParseMAC(a.String())
	if err != nil {
		return gatt.BDAddr{}
	}
	return gatt.BDAddr{HardwareAddr: hw}
}

func bleUUID(u gatt.UUID) ble.UUID {
	return ble.UUID(u.Bytes())
}

var propertyMap = []struct {
	gatt gatt.Property
	ble  ble.Property
}{
	{gatt.PropBroadcast, ble.CharBroadcast},
	{gatt.PropRead, ble.CharRead},
	{gatt.PropWriteWithoutResponse, ble.CharWriteNR},
	{gatt.PropWrite, ble.CharWrite},
	{gatt.PropNotify, ble.CharNotify},
	{gatt.PropIndicate, ble.CharIndicate},
	{gatt.PropAuthSignedWrite, ble.CharSignedWrite},
	{gatt.PropExtended, ble.CharExtended},
}

func bleProperty(p gatt.Property) ble.Property {
	var out ble.Property
	for _, m := range propertyMap {
		if p.Has(m.gatt) {
			out |= m.ble
		}
	}
	return out
}
