package gatt

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// ErrServerStarted is returned when the server is modified or started
// after Start has been called.
var ErrServerStarted = errors.New("server already started")

// advertising payloads that must be configured before advertising starts
const (
	advPendingData = 1 << iota
	advPendingScanResponse
)

// A Server is a GATT server driving a Controller. Servers are
// single-shot: declare profiles, call Start once, then feed every
// controller event to HandleEvent.
type Server struct {
	ctrl       Controller
	logger     *logrus.Logger
	gatts      *logrus.Entry
	gap        *logrus.Entry
	name       string
	appearance Appearance
	txPower    int8
	advParams  *AdvertisingParams
	connect    func(c Conn)
	disconnect func(c Conn)
	registered func(p *Profile)

	handles *registry
	reg     *registrar
	sess    *session

	mu          sync.Mutex
	started     bool
	advServices []*Service
	profiles    []*Profile
	advPending  int
	advertising bool
}

// NewServer creates a Server driving ctrl with the specified options.
// See also Server.Option.
// See http://dave.cheney.net/2014/10/17/functional-options-for-friendly-apis for more discussion.
func NewServer(ctrl Controller, opts ...option) *Server {
	s := &Server{
		ctrl:       ctrl,
		name:       "gatt",
		appearance: AppearanceGenericComputer,
		advParams:  DefaultAdvertisingParams(),
		handles:    newRegistry(),
		sess:       newSession(),
	}
	Logger(logrus.New())(s)
	for _, opt := range opts {
		opt(s)
	}
	s.reg = newRegistrar(ctrl, s.handles, s.gatts)
	s.reg.live = s.profileLive
	return s
}

type option func(*Server) option

// Option sets the options specified.
// It returns an option to restore the last arg's previous value.
// Options are best used with NewServer; they must not be changed
// once the server has started.
// See http://commandcenter.blogspot.com.au/2014/01/self-referential-functions-and-design.html for more discussion.
func (s *Server) Option(opts ...option) (prev option) {
	for _, opt := range opts {
		prev = opt(s)
	}
	return prev
}

// Name sets the device name, used as GAP device name and in advertising.
func Name(n string) option {
	return func(s *Server) option {
		prev := s.name
		s.name = n
		return Name(prev)
	}
}

// DeviceAppearance sets the GAP appearance value.
func DeviceAppearance(a Appearance) option {
	return func(s *Server) option {
		prev := s.appearance
		s.appearance = a
		return DeviceAppearance(prev)
	}
}

// TxPower sets the transmit power level advertised, in dBm.
func TxPower(dbm int8) option {
	return func(s *Server) option {
		prev := s.txPower
		s.txPower = dbm
		return TxPower(prev)
	}
}

// Logger sets the logger. The server logs GATT server activity with
// component=gatts and advertising with component=gap.
func Logger(l *logrus.Logger) option {
	return func(s *Server) option {
		prev := s.logger
		s.logger = l
		s.gatts = l.WithField("component", "gatts")
		s.gap = l.WithField("component", "gap")
		if s.reg != nil {
			s.reg.log = s.gatts
		}
		return Logger(prev)
	}
}

// AdvertisingParameters sets the parameters used whenever advertising
// is started or restarted.
func AdvertisingParameters(p *AdvertisingParams) option {
	return func(s *Server) option {
		prev := s.advParams
		s.advParams = p
		return AdvertisingParameters(prev)
	}
}

// Connect sets a function to be called when a central connects.
func Connect(f func(c Conn)) option {
	return func(s *Server) option {
		prev := s.connect
		s.connect = f
		return Connect(prev)
	}
}

// Disconnect sets a function to be called when the central disconnects.
func Disconnect(f func(c Conn)) option {
	return func(s *Server) option {
		prev := s.disconnect
		s.disconnect = f
		return Disconnect(prev)
	}
}

// Registered sets a function to be called when all services of a profile
// have been registered with the controller.
func Registered(f func(p *Profile)) option {
	return func(s *Server) option {
		prev := s.registered
		s.registered = f
		return Registered(prev)
	}
}

// AdvertiseService adds the UUID of svc to the advertising payload.
func (s *Server) AdvertiseService(svc *Service) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrServerStarted
	}
	s.advServices = append(s.advServices, svc)
	return nil
}

// AddProfile declares a profile to be registered by Start.
func (s *Server) AddProfile(p *Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrServerStarted
	}
	if err := s.reg.add(p); err != nil {
		return err
	}
	s.profiles = append(s.profiles, p)
	return nil
}

// Start sets the device name, configures the advertising and scan
// response payloads, and requests the registration of every profile.
// Start returns once the requests are issued; progress is driven by
// the events passed to HandleEvent.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrServerStarted
	}
	if err := s.advParams.Validate(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.started = true
	s.advPending = advPendingData | advPendingScanResponse
	adv, scan := s.advertisingData(false), s.advertisingData(true)
	s.mu.Unlock()

	if err := s.ctrl.SetDeviceName(s.name); err != nil {
		return fmt.Errorf("set device name: %w", err)
	}
	if err := s.ctrl.ConfigureAdvertising(adv); err != nil {
		return fmt.Errorf("configure advertising data: %w", err)
	}
	if err := s.ctrl.ConfigureAdvertising(scan); err != nil {
		return fmt.Errorf("configure scan response: %w", err)
	}
	s.reg.start()
	return nil
}

// advertisingData builds the advertising or scan response payload.
// Called with s.mu held.
func (s *Server) advertisingData(scanResponse bool) *AdvertisingData {
	d := NewAdvertisingData(scanResponse)
	d.Name = s.name
	d.IncludeName = true
	d.IncludeTxPower = true
	d.TxPower = s.txPower
	d.Appearance = s.appearance
	if !scanResponse {
		for _, svc := range s.advServices {
			d.ServiceUUIDs = append(d.ServiceUUIDs, svc.uuid)
		}
	}
	return d
}

// IsConnected reports whether a central is connected.
func (s *Server) IsConnected() bool {
	_, ok := s.sess.get()
	return ok
}

// Conn returns the current link and whether there is one.
func (s *Server) Conn() (Conn, bool) {
	return s.sess.get()
}

// Advertising reports whether the controller confirmed that it is advertising.
func (s *Server) Advertising() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.advertising
}

// RegistrationState returns the registration progress of the profile with
// the given application id, and the error that halted it, if any.
func (s *Server) RegistrationState(appID uint16) (RegistrationState, error) {
	return s.reg.state(appID)
}

// Attributes returns the attribute table bound so far, ordered by handle.
func (s *Server) Attributes() []Attribute {
	hh := s.handles.sorted()
	aa := make([]Attribute, len(hh))
	for i, h := range hh {
		aa[i] = h.attribute()
	}
	return aa
}

func (s *Server) profileLive(p *Profile) {
	if s.registered != nil {
		s.registered(p)
	}
}

// HandleEvent is the single entry point for controller events. Events
// must be delivered one at a time; iface is the interface the event is
// about (the one assigned to the app for RegisterEvent).
func (s *Server) HandleEvent(iface Interface, ev Event) {
	switch ev := ev.(type) {
	case RegisterEvent:
		s.reg.onRegister(iface, ev)
	case CreateEvent:
		s.reg.onCreate(iface, ev)
	case StartEvent:
		s.reg.onStart(iface, ev)
	case AddCharEvent:
		s.reg.onAddChar(iface, ev)
	case AddDescriptorEvent:
		s.reg.onAddDescriptor(iface, ev)

	case ConnectEvent:
		s.handleConnect(iface, ev)
	case DisconnectEvent:
		s.handleDisconnect(ev)
	case MTUEvent:
		if s.sess.setMTU(ev.ConnID, int(ev.MTU)) {
			s.gatts.WithFields(logrus.Fields{"conn_id": ev.ConnID, "mtu": ev.MTU}).Debug("mtu updated")
		}

	case ReadEvent:
		s.serveRead(iface, ev)
	case WriteEvent:
		s.serveWrite(iface, ev)

	case ResponseEvent:
		s.gatts.WithFields(logrus.Fields{"handle": ev.Handle, "status": ev.Status}).Debug("response sent")
	case SetAttrValueEvent:
		s.gatts.WithFields(logrus.Fields{"handle": ev.AttrHandle, "status": ev.Status}).Debug("attribute value set")
	case ConfirmEvent:
		s.gatts.WithFields(logrus.Fields{"handle": ev.Handle, "conn_id": ev.ConnID, "status": ev.Status}).Debug("confirm")

	case AdvDataSetEvent:
		s.advertisingConfigured(advPendingData, ev.Status)
	case ScanResponseDataSetEvent:
		s.advertisingConfigured(advPendingScanResponse, ev.Status)
	case AdvStartEvent:
		s.advertisingStarted(ev.Status)
	case AdvStopEvent:
		s.mu.Lock()
		s.advertising = false
		s.mu.Unlock()
		s.gap.WithField("status", ev.Status).Info("advertising stopped")
	case ConnParamsUpdateEvent:
		s.gap.WithFields(logrus.Fields{
			"status":       ev.Status,
			"min_interval": ev.MinInterval,
			"max_interval": ev.MaxInterval,
			"latency":      ev.Latency,
			"timeout":      ev.Timeout,
		}).Debug("connection parameters updated")

	default:
		s.gatts.WithField("kind", ev.Kind()).Debug("unhandled event")
	}
}

func (s *Server) handleConnect(iface Interface, ev ConnectEvent) {
	c := Conn{Interface: iface, ID: ev.ConnID, RemoteAddr: ev.RemoteAddr, MTU: DefaultMTU}
	s.sess.set(c)
	s.mu.Lock()
	s.advertising = false
	s.mu.Unlock()
	s.gatts.WithFields(logrus.Fields{"conn_id": ev.ConnID, "remote": ev.RemoteAddr}).Info("connected")
	if s.connect != nil {
		s.connect(c)
	}
}

func (s *Server) handleDisconnect(ev DisconnectEvent) {
	prev := s.sess.clear()
	s.gatts.WithFields(logrus.Fields{"conn_id": ev.ConnID, "remote": ev.RemoteAddr, "reason": ev.Reason}).Info("disconnected")
	s.startAdvertising()
	if s.disconnect != nil {
		s.disconnect(prev)
	}
}

func (s *Server) advertisingConfigured(bit int, status Status) {
	if !status.OK() {
		s.gap.WithField("status", status).Warn("advertising payload not configured")
		return
	}
	s.mu.Lock()
	s.advPending &^= bit
	ready := s.advPending == 0
	s.mu.Unlock()
	if ready {
		s.startAdvertising()
	}
}

func (s *Server) advertisingStarted(status Status) {
	if !status.OK() {
		s.gap.WithField("status", status).Warn("advertising start failed")
		return
	}
	s.mu.Lock()
	s.advertising = true
	s.mu.Unlock()
	s.gap.Info("advertising started")
}

func (s *Server) startAdvertising() {
	if err := s.ctrl.StartAdvertising(s.advParams); err != nil {
		s.gap.WithError(err).Warn("start advertising")
	}
}

func (s *Server) serveRead(iface Interface, ev ReadEvent) {
	log := s.gatts.WithFields(logrus.Fields{"conn_id": ev.ConnID, "handle": ev.Handle, "offset": ev.Offset})
	rsp := &Response{Handle: ev.Handle, Offset: ev.Offset}
	status := StatusSuccess

	h, ok := s.handles.resolve(ev.Handle)
	switch {
	case !ok:
		log.Warn("read of unknown handle")
		status = StatusInvalidHandle
	case h.typ == typCharacteristic:
		status = s.readCharacteristic(h.char, ev, rsp)
	case h.typ == typDescriptor:
		rsp.Value.Write(h.desc.Value())
	default:
		status = StatusReadNotPermitted
	}

	if status.OK() && !rsp.Value.trimFront(int(ev.Offset)) {
		status = StatusInvalidOffset
	}
	if !status.OK() {
		rsp.Value.Reset()
	}
	log.WithField("status", status).Debugf("read % X", rsp.Value.Bytes())
	s.respond(iface, ev.ConnID, ev.TransID, status, rsp)
}

func (s *Server) readCharacteristic(c *Characteristic, ev ReadEvent, rsp *Response) Status {
	if c.rhandler == nil {
		rsp.Value.Write(c.Value())
		return StatusSuccess
	}
	w := newReadResponseWriter(rsp)
	c.rhandler.ServeRead(w, &ReadRequest{Conn: ev.ConnID, Characteristic: c, Offset: int(ev.Offset)})
	return w.status
}

func (s *Server) serveWrite(iface Interface, ev WriteEvent) {
	log := s.gatts.WithFields(logrus.Fields{"conn_id": ev.ConnID, "handle": ev.Handle, "len": len(ev.Value)})
	rsp := &Response{Handle: ev.Handle, Offset: ev.Offset}
	status := StatusSuccess

	h, ok := s.handles.resolve(ev.Handle)
	switch {
	case ev.IsPrepare:
		log.Warn("prepared write not supported")
		status = StatusRequestNotSupported
	case !ok:
		log.Warn("write to unknown handle")
		status = StatusInvalidHandle
	case h.typ == typCharacteristic:
		status = s.writeCharacteristic(h.char, ev, log)
		if status.OK() {
			rsp.Value.Write(h.char.Value())
		}
	case h.typ == typDescriptor:
		h.desc.setValue(ev.Value)
		if h.desc.uuid.Equal(gattAttrClientCharacteristicConfigUUID) {
			notify, indicate := h.desc.subscribed()
			log.WithFields(logrus.Fields{"notify": notify, "indicate": indicate}).Info("client configuration changed")
		}
		rsp.Value.Write(h.desc.Value())
	default:
		status = StatusWriteNotPermitted
	}

	if !ev.NeedResponse {
		return
	}
	if !status.OK() {
		rsp.Value.Reset()
	}
	s.respond(iface, ev.ConnID, ev.TransID, status, rsp)
}

// writeCharacteristic stores the written bytes at ev.Offset and hands the
// resulting value to the write handler. A value rejected by the handler
// is rolled back.
func (s *Server) writeCharacteristic(c *Characteristic, ev WriteEvent, log *logrus.Entry) Status {
	prev := c.Value()
	off := int(ev.Offset)
	if off > len(prev) {
		log.WithField("offset", off).Warn("write offset beyond value")
		return StatusInvalidOffset
	}
	data := append(prev[:off:off], ev.Value...)
	if len(data) > c.maxLen {
		log.WithField("max_len", c.maxLen).Warn("write exceeds maximum value length, truncating")
		data = data[:c.maxLen]
	}
	c.SetValue(data)
	if c.whandler == nil {
		return StatusSuccess
	}
	req := &WriteRequest{Conn: ev.ConnID, Characteristic: c, Offset: off, NeedResponse: ev.NeedResponse}
	status := c.whandler.ServeWrite(req, append([]byte{}, data...))
	if !status.OK() {
		c.SetValue(prev)
	}
	return status
}

func (s *Server) respond(iface Interface, conn ConnID, transID uint32, status Status, rsp *Response) {
	if err := s.ctrl.SendResponse(iface, conn, transID, status, rsp); err != nil {
		s.gatts.WithError(err).WithFields(logrus.Fields{"conn_id": conn, "handle": rsp.Handle}).Warn("send response")
	}
}
