package gatt

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
)

// A RegistrationState is the progress of a profile through the
// controller registration sequence.
type RegistrationState int

// Registration states, in the order a profile goes through them.
// The service, characteristic and descriptor states repeat for every
// declared entity.
const (
	RegDeclared RegistrationState = iota
	RegAppRegistering
	RegAppRegistered
	RegServiceCreating
	RegServiceCreated
	RegServiceStarting
	RegServiceStarted
	RegCharAdding
	RegCharAdded
	RegDescriptorAdding
	RegDescriptorAdded
	RegLive
)

var regStateNames = [...]string{
	RegDeclared:         "declared",
	RegAppRegistering:   "app-registering",
	RegAppRegistered:    "app-registered",
	RegServiceCreating:  "service-creating",
	RegServiceCreated:   "service-created",
	RegServiceStarting:  "service-starting",
	RegServiceStarted:   "service-started",
	RegCharAdding:       "char-adding",
	RegCharAdded:        "char-added",
	RegDescriptorAdding: "descriptor-adding",
	RegDescriptorAdded:  "descriptor-added",
	RegLive:             "live",
}

func (s RegistrationState) String() string {
	if s >= 0 && int(s) < len(regStateNames) {
		return regStateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// ErrUnknownProfile is returned for an application id that was never added.
var ErrUnknownProfile = errors.New("unknown profile")

// registration tracks one profile. svc, char and desc index the entity
// the pending request is about; together with state and svcHandle they
// form the pending operation. A service may be shared between profiles,
// so its handle for this profile is kept here rather than on the Service.
type registration struct {
	profile   *Profile
	state     RegistrationState
	svc       int
	char      int
	desc      int
	svcHandle uint16
	err       error
}

func (r *registration) service() *Service { return r.profile.services[r.svc] }

func (r *registration) characteristic() *Characteristic {
	return r.service().chars[r.char]
}

func (r *registration) descriptor() *Descriptor {
	return r.characteristic().descs[r.desc]
}

// A request is a controller call computed under the registrar lock and
// issued after it is released.
type request struct {
	op   string
	call func() error
}

// registrar drives every profile through the registration sequence.
// Each transition is triggered by the matching success event and issues
// exactly one request.
type registrar struct {
	ctrl    Controller
	handles *registry
	log     *logrus.Entry
	live    func(p *Profile)

	mu      sync.Mutex
	byApp   map[uint16]*registration
	byIface map[Interface]*registration
}

func newRegistrar(ctrl Controller, handles *registry, log *logrus.Entry) *registrar {
	return &registrar{
		ctrl:    ctrl,
		handles: handles,
		log:     log,
		byApp:   make(map[uint16]*registration),
		byIface: make(map[Interface]*registration),
	}
}

// add declares p. It fails if another profile uses the same application id.
func (g *registrar) add(p *Profile) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.byApp[p.appID]; ok {
		return fmt.Errorf("profile with app id %d already added", p.appID)
	}
	g.byApp[p.appID] = &registration{profile: p, state: RegDeclared}
	return nil
}

// start issues the app registration of every declared profile.
func (g *registrar) start() {
	g.mu.Lock()
	var reqs []*registration
	for _, r := range g.byApp {
		if r.state == RegDeclared {
			r.state = RegAppRegistering
			reqs = append(reqs, r)
		}
	}
	g.mu.Unlock()

	sort.Slice(reqs, func(i, j int) bool { return reqs[i].profile.appID < reqs[j].profile.appID })
	for _, r := range reqs {
		appID := r.profile.appID
		g.issue(r, &request{op: "register app", call: func() error { return g.ctrl.RegisterApp(appID) }})
	}
}

// state returns the registration state of the profile with the given app id.
func (g *registrar) state(appID uint16) (RegistrationState, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.byApp[appID]
	if !ok {
		return RegDeclared, ErrUnknownProfile
	}
	return r.state, r.err
}

// issue sends req to the controller. A refused request halts the profile.
func (g *registrar) issue(r *registration, req *request) {
	if req == nil {
		return
	}
	if err := req.call(); err != nil {
		g.mu.Lock()
		r.err = fmt.Errorf("%s: %w", req.op, err)
		g.mu.Unlock()
		g.log.WithError(err).WithField("app_id", r.profile.appID).Warnf("%s failed", req.op)
	}
}

// fail records a non-success status for the pending operation of r.
// The registration does not advance. Called with g.mu held.
func (g *registrar) fail(r *registration, op string, status Status) {
	r.err = &StatusError{Op: op, Status: status}
	g.log.WithFields(logrus.Fields{
		"app_id": r.profile.appID,
		"state":  r.state,
		"status": status,
	}).Warnf("%s failed", op)
}

// unexpected logs an event that does not match the pending operation.
func (g *registrar) unexpected(kind EventKind, fields logrus.Fields) {
	g.log.WithFields(fields).Warnf("unexpected %s event", kind)
}

func (g *registrar) onRegister(iface Interface, ev RegisterEvent) {
	g.mu.Lock()
	r, ok := g.byApp[ev.AppID]
	if !ok || r.state != RegAppRegistering {
		g.mu.Unlock()
		g.unexpected(ev.Kind(), logrus.Fields{"app_id": ev.AppID, "iface": iface})
		return
	}
	if !ev.Status.OK() {
		g.fail(r, "register app", ev.Status)
		g.mu.Unlock()
		return
	}
	if prev, ok := g.byIface[iface]; ok && prev != r {
		g.mu.Unlock()
		g.unexpected(ev.Kind(), logrus.Fields{"app_id": ev.AppID, "iface": iface, "owner": prev.profile.appID})
		return
	}
	r.profile.setInterface(iface)
	g.byIface[iface] = r
	r.state = RegAppRegistered
	g.log.WithFields(logrus.Fields{"app_id": ev.AppID, "iface": iface}).Info("app registered")
	req := g.beginService(r)
	g.mu.Unlock()
	g.issue(r, req)
}

func (g *registrar) onCreate(iface Interface, ev CreateEvent) {
	g.mu.Lock()
	r, ok := g.byIface[iface]
	if !ok || r.state != RegServiceCreating || !r.service().uuid.Equal(ev.ServiceID.UUID) {
		g.mu.Unlock()
		g.unexpected(ev.Kind(), logrus.Fields{"iface": iface, "service": ev.ServiceID})
		return
	}
	if !ev.Status.OK() {
		g.fail(r, "create service", ev.Status)
		g.mu.Unlock()
		return
	}
	svc := r.service()
	g.bind(serviceHandle(ev.ServiceHandle, svc))
	if _, bound := svc.Handle(); !bound {
		svc.setHandle(ev.ServiceHandle)
	}
	r.svcHandle = ev.ServiceHandle
	r.state = RegServiceCreated
	g.log.WithFields(logrus.Fields{"service": svc.uuid, "handle": ev.ServiceHandle}).Debug("service created")

	r.state = RegServiceStarting
	n := ev.ServiceHandle
	g.mu.Unlock()
	g.issue(r, &request{op: "start service", call: func() error { return g.ctrl.StartService(n) }})
}

func (g *registrar) onStart(iface Interface, ev StartEvent) {
	g.mu.Lock()
	r, ok := g.byIface[iface]
	if !ok || r.state != RegServiceStarting || r.svcHandle != ev.ServiceHandle {
		g.mu.Unlock()
		g.unexpected(ev.Kind(), logrus.Fields{"iface": iface, "handle": ev.ServiceHandle})
		return
	}
	if !ev.Status.OK() {
		g.fail(r, "start service", ev.Status)
		g.mu.Unlock()
		return
	}
	r.state = RegServiceStarted
	g.log.WithFields(logrus.Fields{"service": r.service().uuid, "handle": ev.ServiceHandle}).Debug("service started")
	r.char = 0
	req := g.beginCharacteristic(r)
	g.mu.Unlock()
	g.issue(r, req)
}

func (g *registrar) onAddChar(iface Interface, ev AddCharEvent) {
	g.mu.Lock()
	r, ok := g.byIface[iface]
	if !ok || r.state != RegCharAdding || r.svcHandle != ev.ServiceHandle || !r.characteristic().uuid.Equal(ev.CharUUID) {
		g.mu.Unlock()
		g.unexpected(ev.Kind(), logrus.Fields{"iface": iface, "service_handle": ev.ServiceHandle, "uuid": ev.CharUUID})
		return
	}
	if !ev.Status.OK() {
		g.fail(r, "add characteristic", ev.Status)
		g.mu.Unlock()
		return
	}
	c := r.characteristic()
	g.bind(characteristicHandle(ev.AttrHandle, c))
	if _, bound := c.Handle(); !bound {
		c.setHandle(ev.AttrHandle)
	}
	r.state = RegCharAdded
	g.log.WithFields(logrus.Fields{"uuid": c.uuid, "handle": ev.AttrHandle}).Debug("characteristic added")
	r.desc = 0
	req := g.beginDescriptor(r)
	g.mu.Unlock()
	g.issue(r, req)
}

func (g *registrar) onAddDescriptor(iface Interface, ev AddDescriptorEvent) {
	g.mu.Lock()
	r, ok := g.byIface[iface]
	if !ok || r.state != RegDescriptorAdding || r.svcHandle != ev.ServiceHandle || !r.descriptor().uuid.Equal(ev.DescrUUID) {
		g.mu.Unlock()
		g.unexpected(ev.Kind(), logrus.Fields{"iface": iface, "service_handle": ev.ServiceHandle, "uuid": ev.DescrUUID})
		return
	}
	if !ev.Status.OK() {
		g.fail(r, "add descriptor", ev.Status)
		g.mu.Unlock()
		return
	}
	d := r.descriptor()
	g.bind(descriptorHandle(ev.AttrHandle, d))
	if _, bound := d.Handle(); !bound {
		d.setHandle(ev.AttrHandle)
	}
	r.state = RegDescriptorAdded
	g.log.WithFields(logrus.Fields{"uuid": d.uuid, "handle": ev.AttrHandle}).Debug("descriptor added")
	r.desc++
	req := g.beginDescriptor(r)
	g.mu.Unlock()
	g.issue(r, req)
}

// bind records h, keeping the first binding of a handle. Called with g.mu held.
func (g *registrar) bind(h handle) {
	if !g.handles.bind(h) {
		prev, _ := g.handles.resolve(h.n)
		g.log.WithFields(logrus.Fields{
			"handle": h.n,
			"uuid":   h.uuid(),
			"owner":  prev.uuid(),
		}).Warn("handle already bound, ignoring")
	}
}

// The begin* methods move r to its next pending operation and return the
// request for it, or nil once the profile is live. Called with g.mu held.

func (g *registrar) beginService(r *registration) *request {
	if r.svc >= len(r.profile.services) {
		return g.finish(r)
	}
	svc := r.service()
	iface := r.profile.iface
	id := ServiceID{UUID: svc.uuid, InstID: 0, Primary: svc.primary}
	n := svc.NumHandles()
	r.state = RegServiceCreating
	return &request{op: "create service", call: func() error { return g.ctrl.CreateService(iface, id, n) }}
}

func (g *registrar) beginCharacteristic(r *registration) *request {
	svc := r.service()
	if r.char >= len(svc.chars) {
		r.svc++
		return g.beginService(r)
	}
	c := svc.chars[r.char]
	sn := r.svcHandle
	val := AttrValue{MaxLen: c.maxLen, Value: c.Value()}
	r.state = RegCharAdding
	return &request{op: "add characteristic", call: func() error {
		return g.ctrl.AddCharacteristic(sn, c.uuid, c.perms, c.props, val, RespondByApp)
	}}
}

func (g *registrar) beginDescriptor(r *registration) *request {
	c := r.characteristic()
	if r.desc >= len(c.descs) {
		r.char++
		return g.beginCharacteristic(r)
	}
	d := c.descs[r.desc]
	sn := r.svcHandle
	v := d.Value()
	val := AttrValue{MaxLen: len(v), Value: v}
	r.state = RegDescriptorAdding
	return &request{op: "add descriptor", call: func() error {
		return g.ctrl.AddDescriptor(sn, d.uuid, d.perms, val, d.mode)
	}}
}

func (g *registrar) finish(r *registration) *request {
	r.state = RegLive
	g.log.WithFields(logrus.Fields{"app_id": r.profile.appID, "profile": r.profile.name}).Info("profile live")
	if g.live != nil {
		p := r.profile
		return &request{op: "live", call: func() error {
			g.live(p)
			return nil
		}}
	}
	return nil
}
