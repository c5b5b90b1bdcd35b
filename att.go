package gatt

import "fmt"

// A Status is the result code carried by controller events and by
// attribute protocol responses. Values below 0x80 are ATT error codes;
// the upper range holds GATT-level codes reported by the controller.
type Status uint8

// ATT error codes.
const (
	StatusSuccess                Status = 0x00
	StatusInvalidHandle          Status = 0x01
	StatusReadNotPermitted       Status = 0x02
	StatusWriteNotPermitted      Status = 0x03
	StatusInvalidPDU             Status = 0x04
	StatusInsufficientAuth       Status = 0x05
	StatusRequestNotSupported    Status = 0x06
	StatusInvalidOffset          Status = 0x07
	StatusInsufficientAuthz      Status = 0x08
	StatusPrepareQueueFull       Status = 0x09
	StatusAttributeNotFound      Status = 0x0a
	StatusAttributeNotLong       Status = 0x0b
	StatusInsufficientKeySize    Status = 0x0c
	StatusInvalidAttributeLength Status = 0x0d
	StatusUnexpectedError        Status = 0x0e
	StatusInsufficientEncryption Status = 0x0f
	StatusUnsupportedGroupType   Status = 0x10
	StatusInsufficientResources  Status = 0x11
)

// GATT-level codes reported by the controller for local operations.
const (
	StatusNoResources     Status = 0x80
	StatusInternalError   Status = 0x81
	StatusWrongState      Status = 0x82
	StatusDatabaseFull    Status = 0x83
	StatusBusy            Status = 0x84
	StatusGattError       Status = 0x85
	StatusIllegalParam    Status = 0x87
	StatusNotFound        Status = 0x89
	StatusAlreadyOpen     Status = 0x8e
	StatusOutOfRange      Status = 0x8f
	StatusConnectionError Status = 0x92
)

var statusNames = map[Status]string{
	StatusSuccess:                "success",
	StatusInvalidHandle:          "invalid handle",
	StatusReadNotPermitted:       "read not permitted",
	StatusWriteNotPermitted:      "write not permitted",
	StatusInvalidPDU:             "invalid PDU",
	StatusInsufficientAuth:       "insufficient authentication",
	StatusRequestNotSupported:    "request not supported",
	StatusInvalidOffset:          "invalid offset",
	StatusInsufficientAuthz:      "insufficient authorization",
	StatusPrepareQueueFull:       "prepare queue full",
	StatusAttributeNotFound:      "attribute not found",
	StatusAttributeNotLong:       "attribute not long",
	StatusInsufficientKeySize:    "insufficient encryption key size",
	StatusInvalidAttributeLength: "invalid attribute value length",
	StatusUnexpectedError:        "unlikely error",
	StatusInsufficientEncryption: "insufficient encryption",
	StatusUnsupportedGroupType:   "unsupported group type",
	StatusInsufficientResources:  "insufficient resources",
	StatusNoResources:            "no resources",
	StatusInternalError:          "internal error",
	StatusWrongState:             "wrong state",
	StatusDatabaseFull:           "database full",
	StatusBusy:                   "busy",
	StatusGattError:              "error",
	StatusIllegalParam:           "illegal parameter",
	StatusNotFound:               "not found",
	StatusAlreadyOpen:            "already open",
	StatusOutOfRange:             "out of range",
	StatusConnectionError:        "connection error",
}

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return fmt.Sprintf("status(0x%02x)", uint8(s))
}

// OK reports whether s is StatusSuccess.
func (s Status) OK() bool { return s == StatusSuccess }

// A StatusError is a non-success Status reported by the controller.
type StatusError struct {
	Op     string
	Status Status
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %s (0x%02x)", e.Op, e.Status, uint8(e.Status))
}
