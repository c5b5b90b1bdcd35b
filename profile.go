package gatt

import "sync"

// A Profile is an application registration unit: the controller assigns
// it an interface once its application id has been registered.
type Profile struct {
	appID    uint16
	name     string
	services []*Service

	mu    sync.RWMutex
	iface Interface
}

// AppID returns the application id chosen by the caller.
func (p *Profile) AppID() uint16 { return p.appID }

// Name returns the profile name.
func (p *Profile) Name() string { return p.name }

// Services returns the profile's services in registration order.
func (p *Profile) Services() []*Service {
	return append([]*Service(nil), p.services...)
}

// Interface returns the interface assigned by the controller and whether
// the application has been registered yet.
func (p *Profile) Interface() (Interface, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.iface, p.iface != InterfaceNone
}

func (p *Profile) setInterface(i Interface) {
	p.mu.Lock()
	p.iface = i
	p.mu.Unlock()
}

// A ProfileBuilder accumulates the attributes of a profile.
type ProfileBuilder struct {
	appID    uint16
	name     string
	services []*Service
}

// NewProfile starts the declaration of a profile with the given application id.
func NewProfile(appID uint16) *ProfileBuilder {
	return &ProfileBuilder{appID: appID}
}

// Name sets the profile name.
func (b *ProfileBuilder) Name(n string) *ProfileBuilder {
	b.name = n
	return b
}

// Service appends s to the profile.
func (b *ProfileBuilder) Service(s *Service) *ProfileBuilder {
	b.services = append(b.services, s)
	return b
}

// Build returns the profile.
func (b *ProfileBuilder) Build() *Profile {
	return &Profile{
		appID:    b.appID,
		name:     b.name,
		services: append([]*Service(nil), b.services...),
		iface:    InterfaceNone,
	}
}
