// Package gatttest provides a recording gatt.Controller for tests.
package gatttest

import (
	"fmt"
	"strings"
	"sync"

	"github.com/XC-/lampgatt"
)

// Controller operations, as recorded in Call.Op.
const (
	OpSetDeviceName        = "SetDeviceName"
	OpConfigureAdvertising = "ConfigureAdvertising"
	OpStartAdvertising     = "StartAdvertising"
	OpRegisterApp          = "RegisterApp"
	OpCreateService        = "CreateService"
	OpStartService         = "StartService"
	OpAddCharacteristic    = "AddCharacteristic"
	OpAddDescriptor        = "AddDescriptor"
	OpSendResponse         = "SendResponse"
	OpSendIndicate         = "SendIndicate"
)

// A Call is one recorded controller request. Only the fields relevant
// to Op are set.
type Call struct {
	Op            string
	Name          string
	Adv           *gatt.AdvertisingData
	Params        *gatt.AdvertisingParams
	AppID         uint16
	Iface         gatt.Interface
	ServiceID     gatt.ServiceID
	NumHandles    uint16
	ServiceHandle uint16
	UUID          gatt.UUID
	Perm          gatt.Permission
	Prop          gatt.Property
	Val           gatt.AttrValue
	Mode          gatt.ResponseMode
	Conn          gatt.ConnID
	TransID       uint32
	Status        gatt.Status
	Handle        uint16
	Value         []byte
	Confirm       bool
}

func (c Call) String() string {
	switch c.Op {
	case OpRegisterApp:
		return fmt.Sprintf("%s(%d)", c.Op, c.AppID)
	case OpCreateService:
		return fmt.Sprintf("%s(%s)", c.Op, c.ServiceID.UUID)
	case OpStartService:
		return fmt.Sprintf("%s(%d)", c.Op, c.ServiceHandle)
	case OpAddCharacteristic, OpAddDescriptor:
		return fmt.Sprintf("%s(%d, %s)", c.Op, c.ServiceHandle, c.UUID)
	case OpSendResponse:
		return fmt.Sprintf("%s(%d, %s, % X)", c.Op, c.Handle, c.Status, c.Value)
	case OpSendIndicate:
		return fmt.Sprintf("%s(%d, % X)", c.Op, c.Handle, c.Value)
	}
	return c.Op
}

// Controller records every request. It never produces events; tests feed
// them to the server themselves.
type Controller struct {
	mu    sync.Mutex
	calls []Call
	fail  map[string]error
}

// New returns an empty recording controller.
func New() *Controller {
	return &Controller{fail: make(map[string]error)}
}

// Fail makes every later request of op return err. A nil err clears it.
func (c *Controller) Fail(op string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		delete(c.fail, op)
		return
	}
	c.fail[op] = err
}

// Calls returns the recorded requests in order.
func (c *Controller) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Call(nil), c.calls...)
}

// Ops returns the String form of the recorded requests of the given
// operations, or of all requests if ops is empty.
func (c *Controller) Ops(ops ...string) []string {
	var out []string
	for _, call := range c.Calls() {
		if len(ops) == 0 || contains(ops, call.Op) {
			out = append(out, call.String())
		}
	}
	return out
}

// Last returns the most recent request of op.
func (c *Controller) Last(op string) (Call, bool) {
	calls := c.Calls()
	for i := len(calls) - 1; i >= 0; i-- {
		if calls[i].Op == op {
			return calls[i], true
		}
	}
	return Call{}, false
}

// Count returns the number of recorded requests of op.
func (c *Controller) Count(op string) int {
	n := 0
	for _, call := range c.Calls() {
		if call.Op == op {
			n++
		}
	}
	return n
}

// Reset forgets the recorded requests.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.calls = nil
	c.mu.Unlock()
}

// Dump formats the recorded requests one per line.
func (c *Controller) Dump() string {
	return strings.Join(c.Ops(), "\n")
}

func (c *Controller) record(call Call) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, call)
	return c.fail[call.Op]
}

func contains(ss []string, s string) bool {
	for _, t := range ss {
		if t == s {
			return true
		}
	}
	return false
}

func (c *Controller) SetDeviceName(name string) error {
	return c.record(Call{Op: OpSetDeviceName, Name: name})
}

func (c *Controller) ConfigureAdvertising(d *gatt.AdvertisingData) error {
	return c.record(Call{Op: OpConfigureAdvertising, Adv: d})
}

func (c *Controller) StartAdvertising(p *gatt.AdvertisingParams) error {
	return c.record(Call{Op: OpStartAdvertising, Params: p})
}

func (c *Controller) RegisterApp(appID uint16) error {
	return c.record(Call{Op: OpRegisterApp, AppID: appID})
}

func (c *Controller) CreateService(iface gatt.Interface, id gatt.ServiceID, numHandles uint16) error {
	return c.record(Call{Op: OpCreateService, Iface: iface, ServiceID: id, NumHandles: numHandles})
}

func (c *Controller) StartService(serviceHandle uint16) error {
	return c.record(Call{Op: OpStartService, ServiceHandle: serviceHandle})
}

func (c *Controller) AddCharacteristic(serviceHandle uint16, u gatt.UUID, perm gatt.Permission, prop gatt.Property, val gatt.AttrValue, mode gatt.ResponseMode) error {
	return c.record(Call{Op: OpAddCharacteristic, ServiceHandle: serviceHandle, UUID: u, Perm: perm, Prop: prop, Val: val, Mode: mode})
}

func (c *Controller) AddDescriptor(serviceHandle uint16, u gatt.UUID, perm gatt.Permission, val gatt.AttrValue, mode gatt.ResponseMode) error {
	return c.record(Call{Op: OpAddDescriptor, ServiceHandle: serviceHandle, UUID: u, Perm: perm, Val: val, Mode: mode})
}

func (c *Controller) SendResponse(iface gatt.Interface, conn gatt.ConnID, transID uint32, status gatt.Status, rsp *gatt.Response) error {
	v := append([]byte{}, rsp.Value.Bytes()...)
	return c.record(Call{Op: OpSendResponse, Iface: iface, Conn: conn, TransID: transID, Status: status, Handle: rsp.Handle, Value: v})
}

func (c *Controller) SendIndicate(iface gatt.Interface, conn gatt.ConnID, attrHandle uint16, value []byte, needConfirm bool) error {
	v := append([]byte{}, value...)
	return c.record(Call{Op: OpSendIndicate, Iface: iface, Conn: conn, Handle: attrHandle, Value: v, Confirm: needConfirm})
}
