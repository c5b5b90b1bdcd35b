// Package goble adapts a github.com/go-ble/ble device to gatt.Controller.
//
// go-ble serves a complete attribute database and calls per-attribute
// handlers, while the engine registers attributes one step at a time and
// expects completion events. The adapter bridges the two: it builds the
// go-ble services step by step, republishing them as they grow, and
// acknowledges every step with the event a callback-driven stack would
// send. Handles seen by the engine are allocated here, sequentially from
// FirstHandle; go-ble keeps its own handle numbering on the air.
//
// Reads and writes from a central are forwarded to the engine as events
// and block until the engine responds. Descriptors are served by go-ble
// from their initial value.
package goble

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/XC-/lampgatt"
	"github.com/XC-/lampgatt/internal/loop"
	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
)

// FirstHandle is the first attribute handle allocated.
const FirstHandle = 1

// RequestTimeout bounds how long a central request waits for the engine.
var RequestTimeout = 5 * time.Second

var (
	ErrUnknownService     = errors.New("goble: unknown service handle")
	ErrUnknownTransaction = errors.New("goble: unknown transaction")
	ErrNotSubscribed      = errors.New("goble: central not subscribed")
	ErrNotConnected       = errors.New("goble: no such connection")
)

const firstInterface gatt.Interface = 3

type service struct {
	iface   gatt.Interface
	svc     *ble.Service
	handle  uint16
	end     uint16
	next    uint16
	last    *ble.Characteristic
	started bool
}

// A Controller drives a ble.Device.
type Controller struct {
	dev ble.Device
	log *logrus.Entry
	q   *loop.Queue
	tx  *loop.Pending

	mu         sync.Mutex
	name       string
	uuids      []ble.UUID
	apps       map[uint16]gatt.Interface
	nextIface  gatt.Interface
	nextHandle uint32
	services   []*service
	cancelAdv  context.CancelFunc

	conns    map[ble.Conn]gatt.ConnID
	byID     map[gatt.ConnID]ble.Conn
	nextConn gatt.ConnID
	subs     map[subKey]ble.Notifier
}

type subKey struct {
	conn     gatt.ConnID
	handle   uint16
	indicate bool
}

// New returns a controller for dev.
func New(dev ble.Device, l *logrus.Logger) *Controller {
	return &Controller{
		dev:        dev,
		log:        l.WithField("component", "goble"),
		q:          loop.NewQueue(),
		tx:         loop.NewPending(),
		apps:       make(map[uint16]gatt.Interface),
		nextIface:  firstInterface,
		nextHandle: FirstHandle,
		conns:      make(map[ble.Conn]gatt.ConnID),
		byID:       make(map[gatt.ConnID]ble.Conn),
		subs:       make(map[subKey]ble.Notifier),
	}
}

// Run delivers events to h in order until ctx is done, then stops
// advertising and the device.
func (c *Controller) Run(ctx context.Context, h gatt.EventHandler) error {
	err := c.q.Run(ctx, h)
	c.mu.Lock()
	if c.cancelAdv != nil {
		c.cancelAdv()
		c.cancelAdv = nil
	}
	c.mu.Unlock()
	if serr := c.dev.Stop(); serr != nil {
		c.log.WithError(serr).Warn("stop device")
	}
	return err
}

func (c *Controller) SetDeviceName(name string) error {
	c.mu.Lock()
	c.name = name
	c.mu.Unlock()
	return nil
}

// ConfigureAdvertising validates d and keeps the name and service UUIDs;
// go-ble encodes the payload itself when advertising starts.
func (c *Controller) ConfigureAdvertising(d *gatt.AdvertisingData) error {
	status := gatt.StatusSuccess
	if _, err := d.Marshal(); err != nil {
		c.log.WithError(err).WithField("scan_response", d.ScanResponse).Warn("advertising payload rejected")
		status = gatt.StatusIllegalParam
	}
	if d.ScanResponse {
		c.q.Post(gatt.InterfaceNone, gatt.ScanResponseDataSetEvent{Status: status})
		return nil
	}
	if status.OK() {
		c.mu.Lock()
		if d.IncludeName && d.Name != "" {
			c.name = d.Name
		}
		c.uuids = c.uuids[:0]
		for _, u := range d.ServiceUUIDs {
			c.uuids = append(c.uuids, bleUUID(u))
		}
		c.mu.Unlock()
	}
	c.q.Post(gatt.InterfaceNone, gatt.AdvDataSetEvent{Status: status})
	return nil
}

// StartAdvertising (re)starts advertising in the background. go-ble
// chooses the interval itself; p is only validated.
func (c *Controller) StartAdvertising(p *gatt.AdvertisingParams) error {
	if err := p.Validate(); err != nil {
		c.q.Post(gatt.InterfaceNone, gatt.AdvStartEvent{Status: gatt.StatusIllegalParam})
		return nil
	}
	c.mu.Lock()
	if c.cancelAdv != nil {
		c.cancelAdv()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancelAdv = cancel
	name, uuids := c.name, append([]ble.UUID(nil), c.uuids...)
	c.mu.Unlock()

	c.q.Post(gatt.InterfaceNone, gatt.AdvStartEvent{Status: gatt.StatusSuccess})
	go func() {
		err := c.dev.AdvertiseNameAndServices(ctx, name, uuids...)
		status := gatt.StatusSuccess
		if err != nil && !errors.Is(err, context.Canceled) {
			c.log.WithError(err).Warn("advertising stopped")
			status = gatt.StatusGattError
		}
		if ctx.Err() == nil {
			c.q.Post(gatt.InterfaceNone, gatt.AdvStopEvent{Status: status})
		}
	}()
	return nil
}

func (c *Controller) RegisterApp(appID uint16) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if iface, ok := c.apps[appID]; ok {
		c.q.Post(iface, gatt.RegisterEvent{Status: gatt.StatusAlreadyOpen, AppID: appID})
		return nil
	}
	iface := c.nextIface
	c.nextIface++
	c.apps[appID] = iface
	c.q.Post(iface, gatt.RegisterEvent{Status: gatt.StatusSuccess, AppID: appID})
	return nil
}

func (c *Controller) CreateService(iface gatt.Interface, id gatt.ServiceID, numHandles uint16) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if numHandles == 0 || c.nextHandle+uint32(numHandles)-1 > 0xffff {
		c.q.Post(iface, gatt.CreateEvent{Status: gatt.StatusNoResources, ServiceID: id})
		return nil
	}
	h := uint16(c.nextHandle)
	c.nextHandle += uint32(numHandles)
	c.services = append(c.services, &service{
		iface:  iface,
		svc:    ble.NewService(bleUUID(id.UUID)),
		handle: h,
		end:    h + numHandles - 1,
		next:   h + 1,
	})
	c.q.Post(iface, gatt.CreateEvent{Status: gatt.StatusSuccess, ServiceHandle: h, ServiceID: id})
	return nil
}

func (c *Controller) service(handle uint16) (*service, bool) {
	for _, s := range c.services {
		if s.handle == handle {
			return s, true
		}
	}
	return nil, false
}

// StartService publishes the service to the device.
func (c *Controller) StartService(serviceHandle uint16) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.service(serviceHandle)
	if !ok {
		return ErrUnknownService
	}
	s.started = true
	status := c.publish()
	c.q.Post(s.iface, gatt.StartEvent{Status: status, ServiceHandle: serviceHandle})
	return nil
}

// publish replaces the device's attribute database with the started
// services. Called with c.mu held.
func (c *Controller) publish() gatt.Status {
	var svcs []*ble.Service
	for _, s := range c.services {
		if s.started {
			svcs = append(svcs, s.svc)
		}
	}
	if err := c.dev.SetServices(svcs); err != nil {
		c.log.WithError(err).Warn("set services")
		return gatt.StatusInternalError
	}
	return gatt.StatusSuccess
}

func (c *Controller) AddCharacteristic(serviceHandle uint16, u gatt.UUID, perm gatt.Permission, prop gatt.Property, val gatt.AttrValue, mode gatt.ResponseMode) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.service(serviceHandle)
	if !ok {
		return ErrUnknownService
	}
	ev := gatt.AddCharEvent{ServiceHandle: serviceHandle, CharUUID: u}
	if uint32(s.next)+1 > uint32(s.end) {
		ev.Status = gatt.StatusNoResources
		c.q.Post(s.iface, ev)
		return nil
	}
	h := s.next + 1
	s.next += 2

	ch := s.svc.NewCharacteristic(bleUUID(u))
	if prop.Has(gatt.PropRead) {
		ch.HandleRead(c.readHandler(s.iface, h))
	}
	if prop&(gatt.PropWrite|gatt.PropWriteWithoutResponse) != 0 {
		ch.HandleWrite(c.writeHandler(s.iface, h))
	}
	if prop.Has(gatt.PropNotify) {
		ch.HandleNotify(c.notifyHandler(h, false))
	}
	if prop.Has(gatt.PropIndicate) {
		ch.HandleIndicate(c.notifyHandler(h, true))
	}
	ch.Property = bleProperty(prop)
	if len(val.Value) > 0 && mode == gatt.RespondAuto {
		ch.SetValue(val.Value)
	}
	s.last = ch

	ev.Status = c.publish()
	if ev.Status.OK() {
		ev.AttrHandle = h
	}
	c.q.Post(s.iface, ev)
	return nil
}

// AddDescriptor adds a static descriptor to the last characteristic.
// go-ble creates the client characteristic configuration descriptor
// itself, so only its handle is allocated.
func (c *Controller) AddDescriptor(serviceHandle uint16, u gatt.UUID, perm gatt.Permission, val gatt.AttrValue, mode gatt.ResponseMode) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.service(serviceHandle)
	if !ok {
		return ErrUnknownService
	}
	ev := gatt.AddDescriptorEvent{ServiceHandle: serviceHandle, DescrUUID: u}
	switch {
	case s.last == nil:
		ev.Status = gatt.StatusWrongState
	case s.next > s.end:
		ev.Status = gatt.StatusNoResources
	default:
		h := s.next
		s.next++
		if !u.Equal(gatt.ClientCharacteristicConfigUUID) {
			s.last.NewDescriptor(bleUUID(u)).SetValue(val.Value)
			ev.Status = c.publish()
		}
		if ev.Status.OK() {
			ev.AttrHandle = h
		}
	}
	c.q.Post(s.iface, ev)
	return nil
}

// SendResponse answers a request blocked in a go-ble handler.
func (c *Controller) SendResponse(iface gatt.Interface, conn gatt.ConnID, transID uint32, status gatt.Status, rsp *gatt.Response) error {
	v := append([]byte(nil), rsp.Value.Bytes()...)
	if !c.tx.Complete(transID, loop.Reply{Value: v, Status: status}) {
		return ErrUnknownTransaction
	}
	c.q.Post(iface, gatt.ResponseEvent{Status: gatt.StatusSuccess, Handle: rsp.Handle})
	return nil
}

// SendIndicate writes value to the notifier go-ble opened when the
// central subscribed to attrHandle.
func (c *Controller) SendIndicate(iface gatt.Interface, conn gatt.ConnID, attrHandle uint16, value []byte, needConfirm bool) error {
	c.mu.Lock()
	n, ok := c.subs[subKey{conn: conn, handle: attrHandle, indicate: needConfirm}]
	c.mu.Unlock()
	if !ok {
		return ErrNotSubscribed
	}
	if _, err := n.Write(value); err != nil {
		return fmt.Errorf("goble: push to handle %d: %w", attrHandle, err)
	}
	if needConfirm {
		c.q.Post(iface, gatt.ConfirmEvent{Status: gatt.StatusSuccess, ConnID: conn, Handle: attrHandle})
	}
	return nil
}

func (c *Controller) interfaces() []gatt.Interface {
	ii := make([]gatt.Interface, 0, len(c.apps))
	for _, iface := range c.apps {
		ii = append(ii, iface)
	}
	sort.Slice(ii, func(i, j int) bool { return ii[i] < ii[j] })
	return ii
}
