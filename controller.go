package gatt

import "fmt"

// An Interface identifies a registered application on the controller.
type Interface uint8

// InterfaceNone is the interface of an application that is not registered.
const InterfaceNone Interface = 0xff

// A ConnID identifies a link to a central.
type ConnID uint16

// ConnIDNone is the connection id used when no central is connected.
const ConnIDNone ConnID = 0xffff

// A ResponseMode selects who answers reads and writes of an attribute.
type ResponseMode uint8

const (
	// RespondByApp routes reads and writes to the server as events.
	RespondByApp ResponseMode = iota
	// RespondAuto lets the controller answer from the stored value.
	RespondAuto
)

func (m ResponseMode) String() string {
	if m == RespondAuto {
		return "auto"
	}
	return "app"
}

// An AttrValue is the initial value of an attribute added to the controller.
type AttrValue struct {
	MaxLen int
	Value  []byte
}

// A ServiceID identifies a service to be created.
type ServiceID struct {
	UUID    UUID
	InstID  uint8
	Primary bool
}

func (id ServiceID) String() string {
	kind := "secondary"
	if id.Primary {
		kind = "primary"
	}
	return fmt.Sprintf("%s/%d (%s)", id.UUID, id.InstID, kind)
}

// A Controller is the Bluetooth stack the server drives. Every method
// issues a request and returns without waiting for its completion; the
// outcome arrives later as an Event passed to Server.HandleEvent.
// A returned error means the request was not accepted at all.
type Controller interface {
	SetDeviceName(name string) error
	// ConfigureAdvertising sets the advertising payload, or the scan
	// response payload when d.ScanResponse is set.
	ConfigureAdvertising(d *AdvertisingData) error
	StartAdvertising(p *AdvertisingParams) error

	RegisterApp(appID uint16) error
	CreateService(iface Interface, id ServiceID, numHandles uint16) error
	StartService(serviceHandle uint16) error
	AddCharacteristic(serviceHandle uint16, u UUID, perm Permission, prop Property, val AttrValue, mode ResponseMode) error
	AddDescriptor(serviceHandle uint16, u UUID, perm Permission, val AttrValue, mode ResponseMode) error

	SendResponse(iface Interface, conn ConnID, transID uint32, status Status, rsp *Response) error
	SendIndicate(iface Interface, conn ConnID, attrHandle uint16, value []byte, needConfirm bool) error
}

// An EventHandler consumes controller events. *Server is an EventHandler.
type EventHandler interface {
	HandleEvent(iface Interface, ev Event)
}
