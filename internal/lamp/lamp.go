// Package lamp holds the state of the lamp.
package lamp

import (
	"fmt"
	"sync"
)

// MaxBrightness is the brightness of a fully lit lamp, in percent.
const MaxBrightness = 100

// State is a snapshot of the lamp.
type State struct {
	Brightness  uint8 `yaml:"brightness"`
	Temperature uint8 `yaml:"temperature"`
}

func (s State) String() string {
	return fmt.Sprintf("brightness=%d%% temperature=%d", s.Brightness, s.Temperature)
}

// A ChangeFunc is called after every change with the new state. notify
// is the value passed to the setter.
type ChangeFunc func(s State, notify bool)

// A Lamp is safe for concurrent use. The zero value is an unlit lamp.
type Lamp struct {
	mu       sync.RWMutex
	state    State
	onChange ChangeFunc
}

func New() *Lamp {
	return &Lamp{}
}

func (l *Lamp) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

func (l *Lamp) Brightness() uint8 { return l.State().Brightness }

func (l *Lamp) Temperature() uint8 { return l.State().Temperature }

// SetBrightness sets the brightness, clamped to MaxBrightness.
func (l *Lamp) SetBrightness(v uint8, notify bool) {
	if v > MaxBrightness {
		v = MaxBrightness
	}
	l.update(func(s *State) { s.Brightness = v }, notify)
}

func (l *Lamp) SetTemperature(v uint8, notify bool) {
	l.update(func(s *State) { s.Temperature = v }, notify)
}

// OnChange sets the change callback, replacing the previous one. The
// callback runs on the goroutine of the setter, without the lamp lock.
func (l *Lamp) OnChange(f ChangeFunc) {
	l.mu.Lock()
	l.onChange = f
	l.mu.Unlock()
}

func (l *Lamp) update(f func(*State), notify bool) {
	l.mu.Lock()
	f(&l.state)
	s, cb := l.state, l.onChange
	l.mu.Unlock()
	if cb != nil {
		cb(s, notify)
	}
}
