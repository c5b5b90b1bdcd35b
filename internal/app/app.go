// Package app exposes a lamp over GATT.
package app

import (
	"context"
	"math/rand"
	"time"

	"github.com/XC-/lampgatt"
	"github.com/XC-/lampgatt/internal/lamp"
	"github.com/sirupsen/logrus"
)

// AppID is the application id the lamp profile registers with.
const AppID = 0

var (
	ServiceUUID     = gatt.MustParseUUID("4E0F5E1E-FC5B-4D67-8E30-2A83B336476B")
	BrightnessUUID  = gatt.MustParseUUID("F9DFBD73-0181-433A-8091-372E0CA8A598")
	TemperatureUUID = gatt.MustParseUUID("CA344E9B-7445-43AA-AD20-43A33C8101E9")
)

// App binds a lamp to its GATT profile. Writes from the central update
// the lamp; lamp changes made with notify set are pushed to the central.
type App struct {
	lamp        *lamp.Lamp
	log         *logrus.Entry
	srv         *gatt.Server
	brightness  *gatt.Characteristic
	temperature *gatt.Characteristic
	service     *gatt.Service
	profile     *gatt.Profile
}

// New declares the lamp profile for l.
func New(l *lamp.Lamp, logger *logrus.Logger) *App {
	a := &App{lamp: l, log: logger.WithField("component", "lamp")}
	s := l.State()
	a.brightness = a.characteristic(BrightnessUUID, "Brightness", s.Brightness, l.Brightness, l.SetBrightness)
	a.temperature = a.characteristic(TemperatureUUID, "Temperature", s.Temperature, l.Temperature, l.SetTemperature)
	a.service = gatt.NewService(ServiceUUID).
		Name("Lamp").
		Characteristic(a.brightness).
		Characteristic(a.temperature).
		Build()
	a.profile = gatt.NewProfile(AppID).Name("lamp").Service(a.service).Build()
	return a
}

func (a *App) characteristic(u gatt.UUID, name string, initial uint8, get func() uint8, set func(uint8, bool)) *gatt.Characteristic {
	var c *gatt.Characteristic
	c = gatt.NewCharacteristic(u).
		Name(name).
		ShowName().
		MaxValueLen(1).
		Permissions(gatt.PermRead | gatt.PermWrite).
		Properties(gatt.PropRead | gatt.PropWrite | gatt.PropNotify).
		Value([]byte{initial}).
		OnReadFunc(func(resp gatt.ReadResponseWriter, req *gatt.ReadRequest) {
			resp.Write([]byte{get()})
		}).
		OnWriteFunc(func(req *gatt.WriteRequest, data []byte) gatt.Status {
			if len(data) == 0 {
				return gatt.StatusInvalidAttributeLength
			}
			set(data[0], false)
			c.SetValue([]byte{get()})
			a.log.WithFields(logrus.Fields{"conn_id": req.Conn, "characteristic": name, "value": get()}).Info("set by central")
			return gatt.StatusSuccess
		}).
		Build()
	return c
}

// Attach declares the lamp profile on srv and starts pushing lamp
// changes to it. It must be called before srv.Start.
func (a *App) Attach(srv *gatt.Server) error {
	if err := srv.AdvertiseService(a.service); err != nil {
		return err
	}
	if err := srv.AddProfile(a.profile); err != nil {
		return err
	}
	a.srv = srv
	a.lamp.OnChange(a.changed)
	return nil
}

func (a *App) changed(s lamp.State, notify bool) {
	if !notify {
		return
	}
	a.log.WithField("state", s).Debug("lamp changed")
	a.srv.Notify(a.brightness, []byte{s.Brightness})
	a.srv.Notify(a.temperature, []byte{s.Temperature})
}

func (a *App) Brightness() *gatt.Characteristic  { return a.brightness }
func (a *App) Temperature() *gatt.Characteristic { return a.temperature }
func (a *App) Service() *gatt.Service            { return a.service }
func (a *App) Profile() *gatt.Profile            { return a.profile }

// Demo sets random lamp values every interval until ctx is done.
func (a *App) Demo(ctx context.Context, every time.Duration, rnd *rand.Rand) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		b, temp := uint8(rnd.Intn(256)), uint8(rnd.Intn(256))
		a.log.WithFields(logrus.Fields{"brightness": b, "temperature": temp}).Info("setting random values")
		a.lamp.SetBrightness(b, true)
		a.lamp.SetTemperature(temp, true)
	}
}
