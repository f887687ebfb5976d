// Package engine implements the irrigation policy evaluator: a single
// worker goroutine owning all mutable daemon state, fed by a merged
// stream of sensor readings, control commands and periodic ticks.
package engine

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"github.com/flora-home/flora/internal/config"
	"github.com/flora-home/flora/internal/hal"
	"github.com/flora-home/flora/internal/model"
	"github.com/flora-home/flora/internal/report"
	"github.com/flora-home/flora/pkg/rollavg"
)

// Light readings are averaged over the last lightWindow samples to get
// the period average used for the min/max comparisons.
const lightWindow = 12

// Event is an input consumed by the engine worker.
type Event interface{ isEvent() }

// ReadingEvent carries one decoded sensor message.
type ReadingEvent struct {
	Sensor  string
	Reading model.Reading
}

// ControlKind selects the operator command carried by a ControlEvent.
type ControlKind int

const (
	CtlManIrrigation ControlKind = iota // Value = pump id
	CtlManDuration                      // Value = seconds
	CtlAutoReport                       // Value = 0|1
	CtlAutoIrrigation                   // Value = 0|1
	CtlManReport                        // trigger only
)

// ControlEvent carries one operator command.
type ControlEvent struct {
	Kind  ControlKind
	Value int
}

func (ReadingEvent) isEvent() {}
func (ControlEvent) isEvent() {}

// Snapshot is the publishable slice of engine state after a cycle or a
// control command.
type Snapshot struct {
	Status         model.Status
	AutoReport     bool
	AutoIrrigation bool
	ManDuration    int
	ManualActive   bool
	Tank           model.TankLevel
	Pumps          []model.PumpState
}

// Hooks are the engine's outputs. All callbacks are invoked from the
// worker goroutine; nil hooks are skipped.
type Hooks struct {
	OnState    func(Snapshot)
	OnWarnings func([]model.Warning)
	OnEvent    func(model.IrrigationEvent)
	OnReading  func(sensor, plant string, r model.Reading)
	OnReport   func(report.Data)
}

type Engine struct {
	cfg   *config.Config
	pumps hal.PumpDriver
	tank  hal.TankGauge
	hooks Hooks

	events chan Event
	now    func() time.Time

	readings map[string]*model.Reading
	light    map[string]*rollavg.Window
	flags    map[string]model.Flags
	idx      map[string]int // sensor -> bit position in alert vectors
	state    map[int]*model.PumpState
	ctl      model.ControlState
	allStale bool

	filters alertSet
	cycled  atomic.Bool
}

func New(cfg *config.Config, pumps hal.PumpDriver, tank hal.TankGauge, hooks Hooks) *Engine {
	e := &Engine{
		cfg:      cfg,
		pumps:    pumps,
		tank:     tank,
		hooks:    hooks,
		events:   make(chan Event, 64),
		now:      time.Now,
		readings: make(map[string]*model.Reading),
		light:    make(map[string]*rollavg.Window),
		flags:    make(map[string]model.Flags),
		idx:      make(map[string]int),
		state: map[int]*model.PumpState{
			1: {ID: 1},
			2: {ID: 2},
		},
		ctl: model.ControlState{
			AutoReport:     cfg.General.AutoReport,
			AutoIrrigation: cfg.General.AutoIrrigation,
			ManDuration:    int(cfg.General.DurationMan.Seconds()),
			Tank:           model.TankOK,
		},
		allStale: true,
	}
	for i, name := range cfg.Order {
		e.idx[name] = i
	}
	e.filters = newAlertSet(cfg.Alerts)
	return e
}

// Submit queues an event for the worker. Drops with a log line when
// the queue is saturated; inputs are state updates, losing one under
// overload is preferable to blocking the MQTT callback.
func (e *Engine) Submit(ev Event) {
	select {
	case e.events <- ev:
	default:
		log.Printf("engine: event queue full, dropping %T", ev)
	}
}

// Ready reports whether at least one evaluation cycle has completed.
func (e *Engine) Ready() bool { return e.cycled.Load() }

// Run executes the worker loop until ctx is cancelled. With the daemon
// loop disabled in the configuration a single cycle is evaluated and
// Run returns.
func (e *Engine) Run(ctx context.Context) {
	if !e.cfg.Daemon.Enabled {
		e.cycle(e.now())
		e.drainRuns(ctx)
		log.Printf("engine: single evaluation finished in non-daemon mode")
		return
	}

	tick := time.NewTicker(e.cfg.General.ProcessingPeriod)
	defer tick.Stop()
	// Pump run durations are honored at 1s granularity, independent
	// of the much coarser processing period.
	expire := time.NewTicker(time.Second)
	defer expire.Stop()

	e.cycle(e.now())
	for {
		select {
		case <-ctx.Done():
			e.stopAll(e.now())
			return
		case ev := <-e.events:
			e.handle(ev)
		case <-tick.C:
			e.cycle(e.now())
		case <-expire.C:
			e.expirePumps(e.now(), true)
		}
	}
}

// drainRuns blocks until every pump run started by the single
// evaluation has finished. Exiting with a relay still on would leave
// the pump running unattended.
func (e *Engine) drainRuns(ctx context.Context) {
	for {
		now := e.now()
		active := false
		for _, pid := range []int{1, 2} {
			if e.state[pid].Running(now) {
				active = true
			}
		}
		if !active {
			return
		}
		select {
		case <-ctx.Done():
			e.stopAll(e.now())
			return
		case <-time.After(time.Second):
			e.expirePumps(e.now(), true)
		}
	}
}

func (e *Engine) handle(ev Event) {
	switch ev := ev.(type) {
	case ReadingEvent:
		e.applyReading(ev)
	case ControlEvent:
		e.applyControl(ev)
	}
}

func (e *Engine) applyReading(ev ReadingEvent) {
	p, ok := e.cfg.Profiles[ev.Sensor]
	if !ok {
		log.Printf("engine: reading from unknown sensor %q ignored", ev.Sensor)
		return
	}
	r := ev.Reading
	if r.ReceivedAt.IsZero() {
		r.ReceivedAt = e.now()
	}
	// Mi Flora sensors occasionally report a spurious zero moisture
	// value; discard it unless the plant really was almost dry.
	if prev := e.readings[ev.Sensor]; prev != nil && r.Moisture == 0 && prev.Moisture > 5 {
		log.Printf("engine: %s: discarding zero-moisture glitch (last %d%%)", ev.Sensor, prev.Moisture)
		return
	}
	e.readings[ev.Sensor] = &r

	w := e.light[ev.Sensor]
	if w == nil {
		w = rollavg.New(lightWindow)
		e.light[ev.Sensor] = w
	}
	w.Add(float64(r.Light))

	if e.hooks.OnReading != nil {
		e.hooks.OnReading(ev.Sensor, p.Plant, r)
	}
}

func (e *Engine) applyControl(ev ControlEvent) {
	now := e.now()
	switch ev.Kind {
	case CtlManIrrigation:
		e.startManual(ev.Value, now)
	case CtlManDuration:
		if ev.Value > 0 {
			e.ctl.ManDuration = ev.Value
			log.Printf("engine: manual irrigation duration set to %ds", ev.Value)
		}
	case CtlAutoReport:
		e.ctl.AutoReport = ev.Value != 0
		log.Printf("engine: auto report %v", e.ctl.AutoReport)
	case CtlAutoIrrigation:
		e.ctl.AutoIrrigation = ev.Value != 0
		log.Printf("engine: auto irrigation %v", e.ctl.AutoIrrigation)
	case CtlManReport:
		e.emitReport("manual", now)
		return
	}
	e.pushState(now)
}

func (e *Engine) pushState(now time.Time) {
	if e.hooks.OnState != nil {
		e.hooks.OnState(e.snapshot(now))
	}
}
