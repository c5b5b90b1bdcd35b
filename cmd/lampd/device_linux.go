package main

import (
	"github.com/go-ble/ble"
	"github.com/go-ble/ble/linux"
)

func newDevice(id int) (ble.Device, error) {
	dev, err := linux.NewDevice(ble.OptDeviceID(id))
	if err != nil {
		return nil, err
	}
	return dev, nil
}
