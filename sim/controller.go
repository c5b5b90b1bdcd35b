// Package sim implements an in-process gatt.Controller.
//
// The controller behaves like a callback-driven BLE stack: every request
// is acknowledged later by an event, delivered in FIFO order on the
// goroutine calling Run. Attribute handles are allocated sequentially
// from FirstHandle, each service reserving the number of handles it was
// created with. The controller also plays the central side of a link, so
// tests and the lampd command can connect, read, write and receive
// notifications without a radio.
package sim

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/XC-/lampgatt"
	"github.com/XC-/lampgatt/internal/loop"
	"github.com/sirupsen/logrus"
)

// FirstHandle is the first attribute handle allocated.
const FirstHandle = 40

// firstInterface is the interface assigned to the first registered app.
const firstInterface gatt.Interface = 3

var (
	ErrUnknownInterface   = errors.New("sim: unknown interface")
	ErrUnknownService     = errors.New("sim: unknown service handle")
	ErrUnknownTransaction = errors.New("sim: unknown transaction")
)

// service is the handle block reserved by CreateService.
type service struct {
	iface   gatt.Interface
	id      gatt.ServiceID
	handle  uint16
	end     uint16
	next    uint16
	chars   int
	started bool
}

func (s *service) alloc(n uint16) (uint16, bool) {
	if uint32(s.next)+uint32(n)-1 > uint32(s.end) {
		return 0, false
	}
	h := s.next
	s.next += n
	return h, true
}

// A Controller is a simulated BLE controller. The zero value is not
// usable; use New.
type Controller struct {
	log *logrus.Entry
	q   *loop.Queue
	tx  *loop.Pending

	mu sync.Mutex

	name        string
	advData     []byte
	scanData    []byte
	params      gatt.AdvertisingParams
	advertising bool

	apps       map[uint16]gatt.Interface
	nextIface  gatt.Interface
	nextHandle uint32
	services   map[uint16]*service

	link     *link
	nextConn gatt.ConnID
	notes    chan Notification
}

// New returns a controller logging to l.
func New(l *logrus.Logger) *Controller {
	return &Controller{
		log:        l.WithField("component", "sim"),
		q:          loop.NewQueue(),
		tx:         loop.NewPending(),
		apps:       make(map[uint16]gatt.Interface),
		nextIface:  firstInterface,
		nextHandle: FirstHandle,
		services:   make(map[uint16]*service),
		notes:      make(chan Notification, 64),
	}
}

// Run delivers queued events to h, one at a time and in order, until ctx
// is done. Events posted before Run are kept and delivered first.
func (c *Controller) Run(ctx context.Context, h gatt.EventHandler) error {
	return c.q.Run(ctx, h)
}

// Flush synchronously delivers queued events to h until the queue is
// empty, including events posted while handling them. It returns the
// number of events delivered. Flush must not be used concurrently with
// Run.
func (c *Controller) Flush(h gatt.EventHandler) int {
	return c.q.Flush(h)
}

func (c *Controller) post(iface gatt.Interface, ev gatt.Event) {
	c.q.Post(iface, ev)
}

// broadcast queues ev for every registered interface, in registration
// order. Called with c.mu held.
func (c *Controller) broadcast(ev gatt.Event) {
	for _, iface := range c.interfaces() {
		c.post(iface, ev)
	}
}

func (c *Controller) interfaces() []gatt.Interface {
	ii := make([]gatt.Interface, 0, len(c.apps))
	for _, iface := range c.apps {
		ii = append(ii, iface)
	}
	sort.Slice(ii, func(i, j int) bool { return ii[i] < ii[j] })
	return ii
}

func (c *Controller) SetDeviceName(name string) error {
	c.mu.Lock()
	c.name = name
	c.mu.Unlock()
	c.log.WithField("name", name).Debug("device name set")
	return nil
}

// ConfigureAdvertising encodes d. A payload that does not fit is
// reported with StatusIllegalParam in the completion event.
func (c *Controller) ConfigureAdvertising(d *gatt.AdvertisingData) error {
	b, err := d.Marshal()
	status := gatt.StatusSuccess
	if err != nil {
		c.log.WithError(err).WithField("scan_response", d.ScanResponse).Warn("advertising payload rejected")
		status = gatt.StatusIllegalParam
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if d.ScanResponse {
		if err == nil {
			c.scanData = b
		}
		c.post(gatt.InterfaceNone, gatt.ScanResponseDataSetEvent{Status: status})
		return nil
	}
	if err == nil {
		c.advData = b
	}
	c.post(gatt.InterfaceNone, gatt.AdvDataSetEvent{Status: status})
	return nil
}

func (c *Controller) StartAdvertising(p *gatt.AdvertisingParams) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := p.Validate(); err != nil {
		c.log.WithError(err).Warn("advertising parameters rejected")
		c.post(gatt.InterfaceNone, gatt.AdvStartEvent{Status: gatt.StatusIllegalParam})
		return nil
	}
	c.params = *p
	c.advertising = true
	c.post(gatt.InterfaceNone, gatt.AdvStartEvent{Status: gatt.StatusSuccess})
	return nil
}

func (c *Controller) RegisterApp(appID uint16) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if iface, ok := c.apps[appID]; ok {
		c.post(iface, gatt.RegisterEvent{Status: gatt.StatusAlreadyOpen, AppID: appID})
		return nil
	}
	iface := c.nextIface
	c.nextIface++
	c.apps[appID] = iface
	c.log.WithFields(logrus.Fields{"app_id": appID, "iface": iface}).Debug("app registered")
	c.post(iface, gatt.RegisterEvent{Status: gatt.StatusSuccess, AppID: appID})
	return nil
}

func (c *Controller) knownInterface(iface gatt.Interface) bool {
	for _, i := range c.apps {
		if i == iface {
			return true
		}
	}
	return false
}

// CreateService reserves numHandles handles, starting with the service
// declaration.
func (c *Controller) CreateService(iface gatt.Interface, id gatt.ServiceID, numHandles uint16) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.knownInterface(iface) {
		return ErrUnknownInterface
	}
	switch {
	case numHandles == 0:
		c.post(iface, gatt.CreateEvent{Status: gatt.StatusIllegalParam, ServiceID: id})
		return nil
	case c.nextHandle+uint32(numHandles)-1 > 0xffff:
		c.post(iface, gatt.CreateEvent{Status: gatt.StatusNoResources, ServiceID: id})
		return nil
	}
	h := uint16(c.nextHandle)
	c.nextHandle += uint32(numHandles)
	c.services[h] = &service{
		iface:  iface,
		id:     id,
		handle: h,
		end:    h + numHandles - 1,
		next:   h + 1,
	}
	c.log.WithFields(logrus.Fields{"handle": h, "num_handles": numHandles, "uuid": id.UUID}).Debug("service created")
	c.post(iface, gatt.CreateEvent{Status: gatt.StatusSuccess, ServiceHandle: h, ServiceID: id})
	return nil
}

func (c *Controller) StartService(serviceHandle uint16) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.services[serviceHandle]
	if !ok {
		return ErrUnknownService
	}
	s.started = true
	c.post(s.iface, gatt.StartEvent{Status: gatt.StatusSuccess, ServiceHandle: serviceHandle})
	return nil
}

// AddCharacteristic allocates the declaration and value handles; the
// event carries the value handle.
func (c *Controller) AddCharacteristic(serviceHandle uint16, u gatt.UUID, perm gatt.Permission, prop gatt.Property, val gatt.AttrValue, mode gatt.ResponseMode) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.services[serviceHandle]
	if !ok {
		return ErrUnknownService
	}
	ev := gatt.AddCharEvent{ServiceHandle: serviceHandle, CharUUID: u}
	if len(val.Value) > val.MaxLen {
		ev.Status = gatt.StatusIllegalParam
		c.post(s.iface, ev)
		return nil
	}
	decl, ok := s.alloc(2)
	if !ok {
		ev.Status = gatt.StatusNoResources
		c.post(s.iface, ev)
		return nil
	}
	s.chars++
	ev.AttrHandle = decl + 1
	c.post(s.iface, ev)
	return nil
}

// AddDescriptor allocates one handle for a descriptor of the most
// recently added characteristic.
func (c *Controller) AddDescriptor(serviceHandle uint16, u gatt.UUID, perm gatt.Permission, val gatt.AttrValue, mode gatt.ResponseMode) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.services[serviceHandle]
	if !ok {
		return ErrUnknownService
	}
	ev := gatt.AddDescriptorEvent{ServiceHandle: serviceHandle, DescrUUID: u}
	if s.chars == 0 {
		ev.Status = gatt.StatusWrongState
		c.post(s.iface, ev)
		return nil
	}
	h, ok := s.alloc(1)
	if !ok {
		ev.Status = gatt.StatusNoResources
		c.post(s.iface, ev)
		return nil
	}
	ev.AttrHandle = h
	c.post(s.iface, ev)
	return nil
}

// SendResponse answers a pending read or write of the simulated central.
func (c *Controller) SendResponse(iface gatt.Interface, conn gatt.ConnID, transID uint32, status gatt.Status, rsp *gatt.Response) error {
	if !c.tx.Complete(transID, loop.Reply{Value: copyBytes(rsp.Value.Bytes()), Status: status}) {
		return ErrUnknownTransaction
	}
	c.post(iface, gatt.ResponseEvent{Status: gatt.StatusSuccess, Handle: rsp.Handle})
	return nil
}

// SendIndicate hands value to the simulated central. It fails when the
// link is gone or the value does not fit the link MTU.
func (c *Controller) SendIndicate(iface gatt.Interface, conn gatt.ConnID, attrHandle uint16, value []byte, needConfirm bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.link == nil || c.link.id != conn {
		return ErrNotConnected
	}
	if len(value) > int(c.link.mtu)-3 {
		return ErrPayloadTooLong
	}
	n := Notification{Handle: attrHandle, Value: append([]byte(nil), value...), Confirm: needConfirm}
	select {
	case c.notes <- n:
	default:
		c.log.WithField("handle", attrHandle).Debug("notification queue full, dropping")
	}
	if needConfirm {
		c.post(iface, gatt.ConfirmEvent{Status: gatt.StatusSuccess, ConnID: conn, Handle: attrHandle})
	}
	return nil
}

// DeviceName returns the name set by SetDeviceName.
func (c *Controller) DeviceName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.name
}

// Advertising reports whether the controller is advertising.
func (c *Controller) Advertising() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.advertising
}

// AdvertisingParams returns the parameters of the last successful
// StartAdvertising.
func (c *Controller) AdvertisingParams() gatt.AdvertisingParams {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.params
}

// AdvertisingPacket returns the encoded advertising payload.
func (c *Controller) AdvertisingPacket() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]byte(nil), c.advData...)
}

// ScanResponsePacket returns the encoded scan response payload.
func (c *Controller) ScanResponsePacket() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]byte(nil), c.scanData...)
}

// Queued returns the number of events not delivered yet.
func (c *Controller) Queued() int {
	return c.q.Len()
}
