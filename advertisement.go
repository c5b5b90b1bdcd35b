package gatt

import (
	"errors"
	"fmt"

	"github.com/mcuadros/go-defaults"
)

// MaxEIRPacketLength is the maximum allowed advertising
// and scan response packet length.
const MaxEIRPacketLength = 31

// ErrEIRPacketTooLong is the error returned when an advertising
// or scan response packet is too long.
var ErrEIRPacketTooLong = errors.New("max packet length is 31")

// advertising data field types
const (
	typeFlags            = 0x01 // Flags
	typeSomeUUID16       = 0x02 // Incomplete List of 16-bit Service Class UUIDs
	typeSomeUUID32       = 0x04 // Incomplete List of 32-bit Service Class UUIDs
	typeSomeUUID128      = 0x06 // Incomplete List of 128-bit Service Class UUIDs
	typeShortName        = 0x08 // Shortened Local Name
	typeCompleteName     = 0x09 // Complete Local Name
	typeTxPower          = 0x0A // Tx Power Level
	typeSlaveConnInt     = 0x12 // Slave Connection Interval Range
	typeAppearance       = 0x19 // Appearance
	typeManufacturerData = 0xFF // Manufacturer Specific Data
)

// Advertising PDU types.
const (
	AdvTypeInd        uint8 = 0x00 // connectable undirected
	AdvTypeDirectHigh uint8 = 0x01
	AdvTypeScanInd    uint8 = 0x02
	AdvTypeNonConnInd uint8 = 0x03
	AdvTypeDirectLow  uint8 = 0x04
)

// Own address types.
const (
	AddrTypePublic    uint8 = 0x00
	AddrTypeRandom    uint8 = 0x01
	AddrTypeRPAPublic uint8 = 0x02
	AddrTypeRPARandom uint8 = 0x03
)

// AdvChannelAll enables advertising on channels 37, 38 and 39.
const AdvChannelAll uint8 = 0x07

// AdvertisingParams are the link-layer advertising parameters.
// Intervals are in units of 0.625 ms.
type AdvertisingParams struct {
	MinInterval  uint16 `default:"32" yaml:"min_interval"`
	MaxInterval  uint16 `default:"64" yaml:"max_interval"`
	Type         uint8  `yaml:"type"`
	OwnAddrType  uint8  `yaml:"own_addr_type"`
	ChannelMap   uint8  `default:"7" yaml:"channel_map"`
	FilterPolicy uint8  `yaml:"filter_policy"`
}

// DefaultAdvertisingParams returns connectable undirected advertising on
// all channels every 20 to 40 ms, from a resolvable private address.
func DefaultAdvertisingParams() *AdvertisingParams {
	p := &AdvertisingParams{Type: AdvTypeInd, OwnAddrType: AddrTypeRPAPublic}
	defaults.SetDefaults(p)
	return p
}

// Validate checks the parameters against the ranges accepted by the controller.
func (p *AdvertisingParams) Validate() error {
	switch {
	case p.MinInterval < 0x20 || p.MaxInterval > 0x4000:
		return fmt.Errorf("advertising interval [0x%x, 0x%x] out of range [0x20, 0x4000]", p.MinInterval, p.MaxInterval)
	case p.MinInterval > p.MaxInterval:
		return fmt.Errorf("advertising min interval 0x%x above max interval 0x%x", p.MinInterval, p.MaxInterval)
	case p.ChannelMap&AdvChannelAll == 0:
		return errors.New("advertising channel map is empty")
	case p.Type > AdvTypeDirectLow:
		return fmt.Errorf("unknown advertising type 0x%x", p.Type)
	}
	return nil
}

// AdvertisingData is the content of the advertising payload, or of the
// scan response payload when ScanResponse is set.
type AdvertisingData struct {
	ScanResponse   bool
	Name           string
	IncludeName    bool
	IncludeTxPower bool
	TxPower        int8
	Appearance     Appearance
	// Preferred connection interval range, in units of 1.25 ms.
	MinInterval      uint16 `default:"6"`
	MaxInterval      uint16 `default:"16"`
	ManufacturerData []byte
	ServiceUUIDs     []UUID
	Flags            uint8 `default:"6"`
}

// NewAdvertisingData returns advertising data with general discoverable,
// LE-only flags and a 7.5 to 20 ms preferred connection interval.
func NewAdvertisingData(scanResponse bool) *AdvertisingData {
	d := &AdvertisingData{ScanResponse: scanResponse}
	defaults.SetDefaults(d)
	return d
}

// Marshal encodes d as an EIR packet. Service UUIDs that do not fit are
// left out and the name is shortened to the remaining room.
// Manufacturer data that does not fit is an error.
func (d *AdvertisingData) Marshal() ([]byte, error) {
	p := new(advPacket)
	if d.Flags != 0 && !d.ScanResponse {
		p.appendField(typeFlags, []byte{d.Flags})
	}
	for _, u := range d.ServiceUUIDs {
		p.appendUUIDFit(u)
	}
	if d.Appearance != AppearanceUnknown {
		p.appendFieldFit(typeAppearance, []byte{uint8(d.Appearance), uint8(d.Appearance >> 8)})
	}
	if d.IncludeTxPower {
		p.appendFieldFit(typeTxPower, []byte{byte(d.TxPower)})
	}
	if d.MinInterval != 0 || d.MaxInterval != 0 {
		p.appendFieldFit(typeSlaveConnInt, []byte{
			uint8(d.MinInterval), uint8(d.MinInterval >> 8),
			uint8(d.MaxInterval), uint8(d.MaxInterval >> 8),
		})
	}
	if len(d.ManufacturerData) > 0 && !p.appendFieldFit(typeManufacturerData, d.ManufacturerData) {
		return nil, ErrEIRPacketTooLong
	}
	if d.IncludeName && d.Name != "" {
		p.appendNameFit(d.Name)
	}
	return p.data, nil
}

type advPacket struct {
	data []byte
}

// appendField appends a BLE advertising packet field.
func (p *advPacket) appendField(typ byte, data []byte) {
	// A field consists of len, typ, data.
	// Len is 1 byte for typ plus len(data).
	p.data = append(p.data, byte(len(data)+1))
	p.data = append(p.data, typ)
	p.data = append(p.data, data...)
}

// appendFieldFit appends the field if it fits in the packet,
// and reports whether it did.
func (p *advPacket) appendFieldFit(typ byte, data []byte) bool {
	if len(p.data)+2+len(data) > MaxEIRPacketLength {
		return false
	}
	p.appendField(typ, data)
	return true
}

// appendUUIDFit appends a BLE advertised service UUID
// packet field if it fits in the packet, and reports
// whether the UUID fit.
func (p *advPacket) appendUUIDFit(u UUID) bool {
	// Err on the side of safety and assume that there might be
	// other services available: Use typeSomeUUID instead
	// of typeAllUUID.
	switch u.Len() {
	case 2:
		return p.appendFieldFit(typeSomeUUID16, u.Bytes())
	case 4:
		return p.appendFieldFit(typeSomeUUID32, u.Bytes())
	}
	return p.appendFieldFit(typeSomeUUID128, u.Bytes())
}

// appendNameFit appends the name, shortened as necessary.
func (p *advPacket) appendNameFit(name string) bool {
	typ := byte(typeCompleteName)
	max := MaxEIRPacketLength - len(p.data) - 2
	if max <= 0 {
		return false
	}
	if len(name) > max {
		name = name[:max]
		typ = typeShortName
	}
	p.appendField(typ, []byte(name))
	return true
}
