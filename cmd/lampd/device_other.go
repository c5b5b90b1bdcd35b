//go:build !linux

package main

import (
	"errors"

	"github.com/go-ble/ble"
)

func newDevice(int) (ble.Device, error) {
	return nil, errors.New("the goble backend is only supported on linux")
}
