package gatt

// This file includes constants from the Bluetooth Core Specification.

var (
	gattAttrGAPUUID  = UUID16(0x1800)
	gattAttrGATTUUID = UUID16(0x1801)

	gattAttrPrimaryServiceUUID   = UUID16(0x2800)
	gattAttrSecondaryServiceUUID = UUID16(0x2801)
	gattAttrCharacteristicUUID   = UUID16(0x2803)

	gattAttrUserDescriptionUUID            = UUID16(0x2901)
	gattAttrClientCharacteristicConfigUUID = UUID16(0x2902)
)

// ClientCharacteristicConfigUUID is the UUID of the Client Characteristic
// Configuration Descriptor (CCCD).
var ClientCharacteristicConfigUUID = gattAttrClientCharacteristicConfigUUID

// UserDescriptionUUID is the UUID of the Characteristic User Description
// descriptor.
var UserDescriptionUUID = gattAttrUserDescriptionUUID

// CCCD values. The descriptor is two bytes, little-endian.
const (
	gattCCCNotifyFlag   = 0x0001
	gattCCCIndicateFlag = 0x0002
)

// cccdDisabled is the initial CCCD value: notifications and indications off.
var cccdDisabled = []byte{0x00, 0x00}

// Do not re-order the bit flags below;
// they are organized to match the Bluetooth Core Specification.

// A Property is a set of characteristic property flags, as advertised in
// the characteristic declaration.
type Property uint8

// Characteristic property flags.
const (
	PropBroadcast            Property = 1 << iota // the characteristic value may be broadcast
	PropRead                                      // the characteristic may be read
	PropWriteWithoutResponse                      // the characteristic may be written to, with no reply
	PropWrite                                     // the characteristic may be written to, with a reply
	PropNotify                                    // the characteristic supports notifications
	PropIndicate                                  // the characteristic supports indications
	PropAuthSignedWrite                           // the characteristic supports signed writes
	PropExtended                                  // extended properties descriptor present
)

// Has reports whether all flags in q are set in p.
func (p Property) Has(q Property) bool {
	return p&q == q
}

// Pushable reports whether p allows notifications or indications.
func (p Property) Pushable() bool {
	return p&(PropNotify|PropIndicate) != 0
}

// A Permission is a set of attribute access permissions enforced by the
// controller.
type Permission uint16

// Attribute permissions.
const (
	PermRead Permission = 1 << iota
	PermReadEncrypted
	PermReadEncryptedMITM
	_
	PermWrite
	PermWriteEncrypted
	PermWriteEncryptedMITM
	PermWriteSigned
	PermWriteSignedMITM
)

// An Appearance is a GAP appearance value from the Bluetooth assigned
// numbers registry.
type Appearance uint16

// A few well-known appearance values.
const (
	AppearanceUnknown         Appearance = 0x0000
	AppearanceGenericPhone    Appearance = 0x0040
	AppearanceGenericComputer Appearance = 0x0080
	AppearanceGenericWatch    Appearance = 0x00c0
	AppearanceGenericSensor   Appearance = 0x0540
	AppearanceGenericLight    Appearance = 0x07c0
	AppearanceLightBulb       Appearance = 0x0597
)

// EIR flag bits used in advertising data.
const (
	flagLimitedDiscoverable = 1 << iota // LE Limited Discoverable Mode
	flagGeneralDiscoverable             // LE General Discoverable Mode
	flagLEOnly                          // BR/EDR Not Supported. Bit 37 of LMP Feature Mask Definitions (Page 0)
	flagBothController                  // Simultaneous LE and BR/EDR to Same Device Capable (Controller).
	flagBothHost                        // Simultaneous LE and BR/EDR to Same Device Capable (Host).
)
