package gatt

import "fmt"

// An EventKind names the kind of a controller event.
type EventKind uint8

// GATT server events.
const (
	KindRegister EventKind = iota
	KindCreate
	KindStart
	KindAddChar
	KindAddDescriptor
	KindConnect
	KindDisconnect
	KindRead
	KindWrite
	KindResponse
	KindSetAttrValue
	KindConfirm
	KindMTU
)

// GAP events.
const (
	KindAdvDataSet EventKind = 0x80 + iota
	KindScanResponseDataSet
	KindAdvStart
	KindAdvStop
	KindConnParamsUpdate
)

var kindNames = map[EventKind]string{
	KindRegister:            "register",
	KindCreate:              "create",
	KindStart:               "start",
	KindAddChar:             "add-char",
	KindAddDescriptor:       "add-char-descr",
	KindConnect:             "connect",
	KindDisconnect:          "disconnect",
	KindRead:                "read",
	KindWrite:               "write",
	KindResponse:            "response",
	KindSetAttrValue:        "set-attr-value",
	KindConfirm:             "confirm",
	KindMTU:                 "mtu",
	KindAdvDataSet:          "adv-data-set",
	KindScanResponseDataSet: "scan-rsp-data-set",
	KindAdvStart:            "adv-start",
	KindAdvStop:             "adv-stop",
	KindConnParamsUpdate:    "conn-params-update",
}

func (k EventKind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("event(0x%02x)", uint8(k))
}

// An Event is a notification from the controller.
type Event interface {
	Kind() EventKind
}

// RegisterEvent reports the outcome of Controller.RegisterApp.
// The interface passed along with it is the one assigned to the app.
type RegisterEvent struct {
	Status Status
	AppID  uint16
}

// CreateEvent reports the outcome of Controller.CreateService.
type CreateEvent struct {
	Status        Status
	ServiceHandle uint16
	ServiceID     ServiceID
}

// StartEvent reports the outcome of Controller.StartService.
type StartEvent struct {
	Status        Status
	ServiceHandle uint16
}

// AddCharEvent reports the outcome of Controller.AddCharacteristic.
type AddCharEvent struct {
	Status        Status
	AttrHandle    uint16
	ServiceHandle uint16
	CharUUID      UUID
}

// AddDescriptorEvent reports the outcome of Controller.AddDescriptor.
type AddDescriptorEvent struct {
	Status        Status
	AttrHandle    uint16
	ServiceHandle uint16
	DescrUUID     UUID
}

// ConnectEvent reports a new link from a central.
type ConnectEvent struct {
	ConnID     ConnID
	RemoteAddr BDAddr
}

// DisconnectEvent reports the loss of a link.
type DisconnectEvent struct {
	ConnID     ConnID
	RemoteAddr BDAddr
	Reason     uint8
}

// ReadEvent is a read request from a central.
type ReadEvent struct {
	ConnID  ConnID
	TransID uint32
	Handle  uint16
	Offset  uint16
	IsLong  bool
}

// WriteEvent is a write request from a central.
type WriteEvent struct {
	ConnID       ConnID
	TransID      uint32
	Handle       uint16
	Offset       uint16
	Value        []byte
	NeedResponse bool
	IsPrepare    bool
}

// ResponseEvent confirms that a response was sent.
type ResponseEvent struct {
	Status Status
	Handle uint16
}

// SetAttrValueEvent confirms an attribute value update in the controller.
type SetAttrValueEvent struct {
	Status        Status
	ServiceHandle uint16
	AttrHandle    uint16
}

// ConfirmEvent reports the outcome of an indication or notification.
type ConfirmEvent struct {
	Status Status
	ConnID ConnID
	Handle uint16
}

// MTUEvent reports the MTU negotiated on a link.
type MTUEvent struct {
	ConnID ConnID
	MTU    uint16
}

// AdvDataSetEvent reports the outcome of configuring the advertising payload.
type AdvDataSetEvent struct{ Status Status }

// ScanResponseDataSetEvent reports the outcome of configuring the scan response payload.
type ScanResponseDataSetEvent struct{ Status Status }

// AdvStartEvent reports the outcome of Controller.StartAdvertising.
type AdvStartEvent struct{ Status Status }

// AdvStopEvent reports that advertising stopped.
type AdvStopEvent struct{ Status Status }

// ConnParamsUpdateEvent reports updated link parameters.
type ConnParamsUpdateEvent struct {
	Status      Status
	RemoteAddr  BDAddr
	MinInterval uint16
	MaxInterval uint16
	Latency     uint16
	Timeout     uint16
}

func (RegisterEvent) Kind() EventKind            { return KindRegister }
func (CreateEvent) Kind() EventKind              { return KindCreate }
func (StartEvent) Kind() EventKind               { return KindStart }
func (AddCharEvent) Kind() EventKind             { return KindAddChar }
func (AddDescriptorEvent) Kind() EventKind       { return KindAddDescriptor }
func (ConnectEvent) Kind() EventKind             { return KindConnect }
func (DisconnectEvent) Kind() EventKind          { return KindDisconnect }
func (ReadEvent) Kind() EventKind                { return KindRead }
func (WriteEvent) Kind() EventKind               { return KindWrite }
func (ResponseEvent) Kind() EventKind            { return KindResponse }
func (SetAttrValueEvent) Kind() EventKind        { return KindSetAttrValue }
func (ConfirmEvent) Kind() EventKind             { return KindConfirm }
func (MTUEvent) Kind() EventKind                 { return KindMTU }
func (AdvDataSetEvent) Kind() EventKind          { return KindAdvDataSet }
func (ScanResponseDataSetEvent) Kind() EventKind { return KindScanResponseDataSet }
func (AdvStartEvent) Kind() EventKind            { return KindAdvStart }
func (AdvStopEvent) Kind() EventKind             { return KindAdvStop }
func (ConnParamsUpdateEvent) Kind() EventKind    { return KindConnParamsUpdate }
