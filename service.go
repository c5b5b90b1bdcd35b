package gatt

import (
	"sync"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// A Service is a BLE service. Its characteristics are the same
// instances passed to the builder, in declaration order.
type Service struct {
	uuid     UUID
	name     string
	showName bool
	primary  bool
	chars    []*Characteristic

	mu    sync.RWMutex
	n     uint16
	bound bool
}

// UUID returns the service's UUID.
func (s *Service) UUID() UUID { return s.uuid }

// Name returns the human-readable name, if any.
func (s *Service) Name() string { return s.name }

// ShowName reports whether the name should be displayed.
func (s *Service) ShowName() bool { return s.showName }

// Primary reports whether s is a primary service.
func (s *Service) Primary() bool { return s.primary }

// Characteristics returns the characteristics in declaration order.
func (s *Service) Characteristics() []*Characteristic {
	return append([]*Characteristic(nil), s.chars...)
}

// NumHandles returns the number of handles the controller must reserve
// for s: one for the service declaration, two per characteristic
// (declaration and value) and one per descriptor.
func (s *Service) NumHandles() uint16 {
	n := uint16(1)
	for _, c := range s.chars {
		n += 2 + uint16(len(c.descs))
	}
	return n
}

// Handle returns the service handle assigned by the controller and
// whether the service has been created yet.
func (s *Service) Handle() (uint16, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.n, s.bound
}

func (s *Service) setHandle(n uint16) {
	s.mu.Lock()
	s.n, s.bound = n, true
	s.mu.Unlock()
}

// A ServiceBuilder accumulates the attributes of a service.
type ServiceBuilder struct {
	uuid     UUID
	name     string
	showName bool
	primary  bool
	chars    *orderedmap.OrderedMap[[16]byte, *Characteristic]
}

// NewService starts the declaration of a primary service.
func NewService(u UUID) *ServiceBuilder {
	return &ServiceBuilder{
		uuid:    u,
		primary: true,
		chars:   orderedmap.New[[16]byte, *Characteristic](),
	}
}

// Name sets the human-readable name.
func (b *ServiceBuilder) Name(n string) *ServiceBuilder {
	b.name = n
	return b
}

// ShowName marks the name as displayable.
func (b *ServiceBuilder) ShowName() *ServiceBuilder {
	b.showName = true
	return b
}

// Primary sets whether the service is primary (the default) or secondary.
func (b *ServiceBuilder) Primary(p bool) *ServiceBuilder {
	b.primary = p
	return b
}

// Characteristic appends c to the service. The service keeps a reference
// to c, not a copy. Characteristic panics if the service already
// contains another characteristic with the same UUID.
func (b *ServiceBuilder) Characteristic(c *Characteristic) *ServiceBuilder {
	key := c.uuid.Expand()
	if _, ok := b.chars.Get(key); ok {
		panic("service already contains a characteristic with uuid " + c.uuid.String())
	}
	b.chars.Set(key, c)
	return b
}

// Build returns the service.
func (b *ServiceBuilder) Build() *Service {
	s := &Service{
		uuid:     b.uuid,
		name:     b.name,
		showName: b.showName,
		primary:  b.primary,
		chars:    make([]*Characteristic, 0, b.chars.Len()),
	}
	for pair := b.chars.Oldest(); pair != nil; pair = pair.Next() {
		s.chars = append(s.chars, pair.Value)
	}
	return s
}
