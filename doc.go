// Package gatt provides a Bluetooth Low Energy GATT server engine for
// callback-driven controllers.
//
// Gatt (Generic Attribute Profile) is the protocol used to write
// BLE peripherals (servers) and centrals (clients).
//
// STATUS
//
// Peripheral support only: declare characteristics, services and
// profiles, register them with a controller, advertise, accept a single
// connection, and serve reads and writes. Central support is out of scope.
//
// CONTROLLERS
//
// A controller only accepts the registration steps of a profile in one
// order: register the application, create a service, start it, add each
// characteristic and then its descriptors. Every step completes later,
// as an event. The Server issues each step once the event of the
// previous one has arrived, so a Controller implementation only forwards
// requests and events. Implementations in this module:
//
//     sim       in-process controller, also scripts a central
//     goble     Linux HCI controller via github.com/go-ble/ble
//     gatttest  recording fake for tests
//
// USAGE
//
//     level := gatt.NewCharacteristic(gatt.MustParseUUID("F9DFBD73-0181-433A-8091-372E0CA8A598")).
//         Name("Brightness").
//         MaxValueLen(1).
//         Permissions(gatt.PermRead | gatt.PermWrite).
//         Properties(gatt.PropRead | gatt.PropWrite | gatt.PropNotify).
//         OnWriteFunc(func(req *gatt.WriteRequest, data []byte) gatt.Status {
//             setBrightness(data[0])
//             return gatt.StatusSuccess
//         }).
//         Build()
//     svc := gatt.NewService(serviceUUID).Characteristic(level).Build()
//     profile := gatt.NewProfile(0).Name("lamp").Service(svc).Build()
//
//     srv := gatt.NewServer(ctrl, gatt.Name("lamp"), gatt.DeviceAppearance(gatt.AppearanceLightBulb))
//     srv.AdvertiseService(svc)
//     srv.AddProfile(profile)
//     srv.Start()
//
// The controller then delivers every event to srv.HandleEvent, one at a
// time. Characteristic values may be pushed from any goroutine with
// srv.Notify and srv.Indicate.
//
// REFERENCES
//
// Bluetooth Core Specification, Vol 3, Part F (ATT) and Part G (GATT).
package gatt
