// Package hal abstracts the relay and tank-level hardware. The real
// GPIO implementation lives outside this repository; the sim types
// here are used by default and in tests.
package hal

import (
	"log"
	"sync"

	"github.com/flora-home/flora/internal/model"
)

// PumpDriver switches one relay channel per pump id and exposes the
// driver feedback line.
type PumpDriver interface {
	On(pump int) error
	Off(pump int) error
	// Fault reports whether the driver feedback disagrees with the
	// commanded state (e.g. blown fuse, stuck relay).
	Fault(pump int) bool
}

// TankGauge reads the reservoir fill-level sensors.
type TankGauge interface {
	Level() model.TankLevel
}

// SimPump is a log-only pump driver.
type SimPump struct {
	mu sync.Mutex
	on map[int]bool
}

var _ PumpDriver = (*SimPump)(nil)

func NewSimPump() *SimPump {
	return &SimPump{on: make(map[int]bool)}
}

func (s *SimPump) On(pump int) error {
	s.mu.Lock()
	s.on[pump] = true
	s.mu.Unlock()
	log.Printf("hal(sim): pump %d ON", pump)
	return nil
}

func (s *SimPump) Off(pump int) error {
	s.mu.Lock()
	s.on[pump] = false
	s.mu.Unlock()
	log.Printf("hal(sim): pump %d OFF", pump)
	return nil
}

func (s *SimPump) Fault(int) bool { return false }

// Active reports the simulated relay state.
func (s *SimPump) Active(pump int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.on[pump]
}

// StaticTank reports a fixed fill level.
type StaticTank struct {
	Lvl model.TankLevel
}

var _ TankGauge = (*StaticTank)(nil)

func (t *StaticTank) Level() model.TankLevel { return t.Lvl }
