package app

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/XC-/lampgatt"
	"github.com/XC-/lampgatt/gatttest"
	"github.com/XC-/lampgatt/internal/lamp"
	"github.com/XC-/lampgatt/sim"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

const (
	brightnessHandle  = 42
	temperatureHandle = 46
)

type AppTestSuite struct {
	suite.Suite
	lamp   *lamp.Lamp
	app    *App
	ctrl   *sim.Controller
	srv    *gatt.Server
	ctx    context.Context
	cancel context.CancelFunc
}

func (s *AppTestSuite) SetupTest() {
	l, _ := test.NewNullLogger()
	s.lamp = lamp.New()
	s.lamp.SetTemperature(30, false)
	s.app = New(s.lamp, l)
	s.ctrl = sim.New(l)
	s.srv = gatt.NewServer(s.ctrl, gatt.Logger(l))
	s.Require().NoError(s.app.Attach(s.srv))
	s.Require().NoError(s.srv.Start())
	s.ctrl.Flush(s.srv)

	s.ctx, s.cancel = context.WithTimeout(context.Background(), 2*time.Second)
	go s.ctrl.Run(s.ctx, s.srv)
}

func (s *AppTestSuite) TearDownTest() {
	s.cancel()
}

func (s *AppTestSuite) connect() {
	_, err := s.ctrl.Connect(sim.DefaultCentralAddr)
	s.Require().NoError(err)
	s.Require().Eventually(s.srv.IsConnected, time.Second, time.Millisecond)
}

func (s *AppTestSuite) TestAttributeTable() {
	want := []struct {
		handle uint16
		uuid   gatt.UUID
		name   string
	}{
		{40, ServiceUUID, "Lamp"},
		{brightnessHandle, BrightnessUUID, "Brightness"},
		{43, gatt.ClientCharacteristicConfigUUID, "Brightness"},
		{44, gatt.UserDescriptionUUID, "Brightness"},
		{temperatureHandle, TemperatureUUID, "Temperature"},
		{47, gatt.ClientCharacteristicConfigUUID, "Temperature"},
		{48, gatt.UserDescriptionUUID, "Temperature"},
	}
	attrs := s.srv.Attributes()
	s.Require().Len(attrs, len(want))
	for i, w := range want {
		s.Equal(w.handle, attrs[i].Handle)
		s.True(w.uuid.Equal(attrs[i].UUID), "attribute %d", i)
		s.Equal(w.name, attrs[i].Name)
	}
	s.Equal([]byte{30}, s.app.Temperature().Value(), "initial value")
}

func (s *AppTestSuite) TestCentralWritesLamp() {
	s.connect()

	status, err := s.ctrl.Write(s.ctx, brightnessHandle, []byte{150})
	s.Require().NoError(err)
	s.Equal(gatt.StatusSuccess, status)
	s.Equal(uint8(lamp.MaxBrightness), s.lamp.Brightness())
	s.Equal([]byte{100}, s.app.Brightness().Value())

	v, status, err := s.ctrl.Read(s.ctx, brightnessHandle, 0)
	s.Require().NoError(err)
	s.Equal(gatt.StatusSuccess, status)
	s.Equal([]byte{100}, v)

	status, err = s.ctrl.Write(s.ctx, temperatureHandle, []byte{20})
	s.Require().NoError(err)
	s.Equal(gatt.StatusSuccess, status)
	s.Equal(uint8(20), s.lamp.Temperature())

	status, err = s.ctrl.Write(s.ctx, temperatureHandle, nil)
	s.Require().NoError(err)
	s.Equal(gatt.StatusInvalidAttributeLength, status)
	s.Equal(uint8(20), s.lamp.Temperature())

	v, _, err = s.ctrl.Read(s.ctx, 44, 0)
	s.Require().NoError(err)
	s.Equal([]byte("Brightness"), v)

	s.Empty(s.ctrl.Notifications(), "central writes are not echoed")
}

func (s *AppTestSuite) TestLampChangesNotify() {
	s.lamp.SetBrightness(5, true)
	s.Equal([]byte{5}, s.app.Brightness().Value(), "value kept while disconnected")
	s.Empty(s.ctrl.Notifications())

	s.connect()
	s.lamp.SetBrightness(55, true)
	want := []sim.Notification{
		{Handle: brightnessHandle, Value: []byte{55}},
		{Handle: temperatureHandle, Value: []byte{30}},
	}
	for _, w := range want {
		select {
		case n := <-s.ctrl.Notifications():
			s.Equal(w, n)
		case <-time.After(time.Second):
			s.FailNow("missing notification", "%+v", w)
		}
	}

	s.lamp.SetTemperature(9, false)
	s.Empty(s.ctrl.Notifications())
	v, _, err := s.ctrl.Read(s.ctx, temperatureHandle, 0)
	s.Require().NoError(err)
	s.Equal([]byte{9}, v, "reads come from the lamp")
}

func TestAppTestSuite(t *testing.T) {
	suite.Run(t, new(AppTestSuite))
}

func TestAttachTwice(t *testing.T) {
	l, _ := test.NewNullLogger()
	a := New(lamp.New(), l)
	srv := gatt.NewServer(gatttest.New(), gatt.Logger(l))
	require.NoError(t, a.Attach(srv))
	assert.Error(t, a.Attach(srv), "duplicate app id")
}

func TestDemo(t *testing.T) {
	l, hook := test.NewNullLogger()
	lp := lamp.New()
	a := New(lp, l)
	require.NoError(t, a.Attach(gatt.NewServer(gatttest.New(), gatt.Logger(l))))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		a.Demo(ctx, time.Millisecond, rand.New(rand.NewSource(1)))
	}()
	require.Eventually(t, func() bool {
		for _, e := range hook.AllEntries() {
			if e.Message == "setting random values" && e.Level == logrus.InfoLevel {
				return true
			}
		}
		return false
	}, time.Second, time.Millisecond)
	cancel()
	<-done
	assert.LessOrEqual(t, lp.Brightness(), uint8(lamp.MaxBrightness))
}
