package gatt

import (
	"sort"

	"github.com/cornelk/hashmap"
)

type handleType int

const (
	typService handleType = iota
	typCharacteristic
	typDescriptor
)

func (t handleType) String() string {
	switch t {
	case typService:
		return "service"
	case typCharacteristic:
		return "characteristic"
	case typDescriptor:
		return "descriptor"
	}
	return "unknown"
}

// handle is the entity bound to a controller-assigned handle.
// Exactly one of svc, char and desc is set, according to typ.
type handle struct {
	n    uint16
	typ  handleType
	svc  *Service
	char *Characteristic
	desc *Descriptor
}

func serviceHandle(n uint16, s *Service) handle {
	return handle{n: n, typ: typService, svc: s}
}

func characteristicHandle(n uint16, c *Characteristic) handle {
	return handle{n: n, typ: typCharacteristic, char: c}
}

func descriptorHandle(n uint16, d *Descriptor) handle {
	return handle{n: n, typ: typDescriptor, desc: d}
}

func (h handle) uuid() UUID {
	switch h.typ {
	case typService:
		return h.svc.uuid
	case typCharacteristic:
		return h.char.uuid
	}
	return h.desc.uuid
}

// registry maps controller-assigned handles to entities. Handles are
// bound once and never rebound; lookups are lock-free.
type registry struct {
	m *hashmap.Map[uint16, handle]
}

func newRegistry() *registry {
	return &registry{m: hashmap.New[uint16, handle]()}
}

// bind records h under h.n. It reports false, leaving the existing
// binding in place, if the handle is already bound.
func (r *registry) bind(h handle) bool {
	return r.m.Insert(h.n, h)
}

// resolve returns the entity bound to n.
func (r *registry) resolve(n uint16) (handle, bool) {
	return r.m.Get(n)
}

func (r *registry) len() int {
	return r.m.Len()
}

// sorted returns all bindings in ascending handle order.
func (r *registry) sorted() []handle {
	hh := make([]handle, 0, r.m.Len())
	r.m.Range(func(_ uint16, h handle) bool {
		hh = append(hh, h)
		return true
	})
	sort.Slice(hh, func(i, j int) bool { return hh[i].n < hh[j].n })
	return hh
}

// An Attribute describes one bound handle of the attribute table.
type Attribute struct {
	Handle uint16
	Type   string // "service", "characteristic" or "descriptor"
	UUID   UUID
	Name   string
}

func (h handle) attribute() Attribute {
	a := Attribute{Handle: h.n, Type: h.typ.String(), UUID: h.uuid()}
	switch h.typ {
	case typService:
		a.Name = h.svc.name
	case typCharacteristic:
		a.Name = h.char.name
	case typDescriptor:
		a.Name = h.desc.char.name
	}
	return a
}
