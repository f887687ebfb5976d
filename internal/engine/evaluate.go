package engine

import (
	"log"
	"time"

	"github.com/flora-home/flora/internal/alert"
	"github.com/flora-home/flora/internal/config"
	"github.com/flora-home/flora/internal/model"
	"github.com/flora-home/flora/internal/report"
)

// pumpAgg combines the per-sensor results for one pump before the
// start decision. Eligibility and veto are aggregated after every
// sensor of the pump has been evaluated.
type pumpAgg struct {
	anyLive   bool
	eligible  bool
	veto      bool
	trigSens  string
	trigMoist int
}

// cycle runs one full evaluation: staleness, threshold checks, pump
// aggregation, auto start decision, system warnings, alert filtering
// and state publication.
func (e *Engine) cycle(now time.Time) {
	e.expirePumps(now, false)

	tankLvl := e.tank.Level()
	e.ctl.Tank = tankLvl

	var warnings []model.Warning
	agg := map[int]*pumpAgg{1: {}, 2: {}}

	for _, name := range e.cfg.Order {
		p := e.cfg.Profiles[name]
		a := agg[p.Pump]
		r := e.readings[name]
		if r.Stale(now, e.cfg.MQTT.MessageTimeout) {
			warnings = append(warnings, model.NewWarning(model.WarnOffline, name,
				"no data from %s for more than %s", name, e.cfg.MQTT.MessageTimeout))
			delete(e.flags, name)
			continue
		}
		a.anyLive = true

		la := float64(r.Light)
		if w := e.light[name]; w != nil && w.Ready() {
			la = w.Mean()
		}
		f := p.Check(*r, e.cfg.General.BattLow, la)
		e.flags[name] = f
		warnings = append(warnings, sensorWarnings(name, p, *r, f)...)

		if f.Eligible() && (!a.eligible || r.Moisture < a.trigMoist) {
			a.eligible = true
			a.trigSens = name
			a.trigMoist = r.Moisture
		}
		if f.Veto() {
			a.veto = true
		}
	}

	e.allStale = true
	for _, a := range agg {
		if a.anyLive {
			e.allStale = false
		}
	}

	// Night window and rest period are hard vetoes; they override any
	// dryness signal. Manual runs are not affected.
	if e.ctl.AutoIrrigation && !e.night(now) && tankLvl != model.TankEmpty {
		for _, pid := range []int{1, 2} {
			a := agg[pid]
			ps := e.state[pid]
			if !a.anyLive || !a.eligible || a.veto {
				continue
			}
			if ps.Running(now) || ps.Resting(now) {
				continue
			}
			e.startPump(ps, model.ModeAuto, e.cfg.General.DurationAuto(pid), now, a.trigSens, a.trigMoist)
		}
	}

	for _, pid := range []int{1, 2} {
		if e.state[pid].Status == model.PumpFault {
			warnings = append(warnings, model.NewWarning(model.WarnPumpFault, "",
				"pump %d driver reports a fault", pid))
		}
	}
	switch tankLvl {
	case model.TankEmpty:
		warnings = append(warnings, model.NewWarning(model.WarnTankEmpty, "", "water tank is empty"))
	case model.TankLow:
		warnings = append(warnings, model.NewWarning(model.WarnTankLow, "", "water tank is low"))
	}

	if e.checkAlerts(now, warnings) && e.ctl.AutoReport {
		e.emitReport("alert", now)
	}

	e.cycled.Store(true)
	if e.hooks.OnWarnings != nil && len(warnings) > 0 {
		e.hooks.OnWarnings(warnings)
	}
	e.pushState(now)
}

// night reports whether now falls into [night_begin, night_end). The
// window may wrap around midnight; begin == end disables it.
func (e *Engine) night(now time.Time) bool {
	t := now.Hour()*60 + now.Minute()
	b := int(e.cfg.General.NightBegin)
	n := int(e.cfg.General.NightEnd)
	switch {
	case b == n:
		return false
	case b < n:
		return t >= b && t < n
	default:
		return t >= b || t < n
	}
}

// startManual begins a manual run, overriding every automatic veto.
// A manual command on an already running pump resets the run to the
// manual duration.
func (e *Engine) startManual(pump int, now time.Time) {
	ps, ok := e.state[pump]
	if !ok {
		log.Printf("engine: manual irrigation for unknown pump %d ignored", pump)
		return
	}
	dur := time.Duration(e.ctl.ManDuration) * time.Second
	if e.startPump(ps, model.ModeManual, dur, now, "", 0) {
		log.Printf("engine: manual irrigation on pump %d for %s", pump, dur)
	}
}

// startPump switches the relay on and records the run. The dry-run
// guard applies to both modes: an empty tank always blocks.
func (e *Engine) startPump(ps *model.PumpState, mode model.PumpMode, dur time.Duration,
	now time.Time, sensor string, moisture int) bool {

	if e.tank.Level() == model.TankEmpty {
		ps.Status = model.PumpTankEmpty
		log.Printf("engine: pump %d not started, tank empty", ps.ID)
		return false
	}
	if err := e.pumps.On(ps.ID); err != nil {
		ps.Status = model.PumpFault
		log.Printf("engine: pump %d start failed: %v", ps.ID, err)
		return false
	}
	ps.Mode = mode
	ps.RunUntil = now.Add(dur)
	ps.LastRun = now
	ps.Status = model.PumpOK

	evt := model.NewIrrigationEvent(ps.ID, mode, dur, now)
	if mode == model.ModeAuto {
		evt.Sensor = sensor
		evt.Moisture = moisture
		log.Printf("engine: auto irrigation on pump %d for %s (sensor %s at %d%%)",
			ps.ID, dur, sensor, moisture)
	}
	if e.hooks.OnEvent != nil {
		e.hooks.OnEvent(evt)
	}
	return true
}

// expirePumps finishes elapsed runs and aborts active ones on tank
// empty or driver fault. The rest period starts when an automatic run
// ends.
func (e *Engine) expirePumps(now time.Time, push bool) {
	changed := false
	for _, pid := range []int{1, 2} {
		ps := e.state[pid]
		if ps.Mode == model.ModeNone {
			continue
		}
		switch {
		case !now.Before(ps.RunUntil):
			e.finishRun(ps, now, model.PumpOK)
			changed = true
		case e.tank.Level() == model.TankEmpty:
			log.Printf("engine: pump %d aborted, tank ran empty", pid)
			e.finishRun(ps, now, model.PumpTankEmpty)
			changed = true
		case e.pumps.Fault(pid):
			log.Printf("engine: pump %d aborted, driver fault", pid)
			e.finishRun(ps, now, model.PumpFault)
			changed = true
		}
	}
	if changed && push {
		e.pushState(now)
	}
}

func (e *Engine) finishRun(ps *model.PumpState, now time.Time, status model.PumpStatus) {
	if err := e.pumps.Off(ps.ID); err != nil {
		log.Printf("engine: pump %d stop failed: %v", ps.ID, err)
		status = model.PumpFault
	}
	if ps.Mode == model.ModeAuto {
		ps.RestUntil = now.Add(e.cfg.General.Rest)
	}
	ps.Mode = model.ModeNone
	ps.RunUntil = time.Time{}
	ps.Status = status
}

// stopAll is the shutdown path: relays off, no rest bookkeeping.
func (e *Engine) stopAll(now time.Time) {
	for _, pid := range []int{1, 2} {
		if e.state[pid].Mode != model.ModeNone {
			e.finishRun(e.state[pid], now, model.PumpOK)
		}
	}
}

func (e *Engine) snapshot(now time.Time) Snapshot {
	status := model.StatusOnline
	if e.allStale {
		status = model.StatusIdle
	}
	manual := false
	pumps := make([]model.PumpState, 0, 2)
	for _, pid := range []int{1, 2} {
		ps := e.state[pid]
		if ps.Mode == model.ModeManual && ps.Running(now) {
			manual = true
		}
		pumps = append(pumps, *ps)
	}
	return Snapshot{
		Status:         status,
		AutoReport:     e.ctl.AutoReport,
		AutoIrrigation: e.ctl.AutoIrrigation,
		ManDuration:    e.ctl.ManDuration,
		ManualActive:   manual,
		Tank:           e.ctl.Tank,
		Pumps:          pumps,
	}
}

func (e *Engine) emitReport(trigger string, now time.Time) {
	if e.hooks.OnReport == nil {
		return
	}
	sensors := make([]report.SensorStatus, 0, len(e.cfg.Order))
	for _, name := range e.cfg.Order {
		p := e.cfg.Profiles[name]
		r := e.readings[name]
		st := report.SensorStatus{
			Sensor: name,
			Plant:  p.Plant,
			Pump:   p.Pump,
			Valid:  !r.Stale(now, e.cfg.MQTT.MessageTimeout),
			Flags:  e.flags[name],
			Limits: p,
		}
		if st.Valid {
			rc := *r
			st.Reading = &rc
		}
		sensors = append(sensors, st)
	}
	pumps := []model.PumpState{*e.state[1], *e.state[2]}
	e.hooks.OnReport(report.Build(now, trigger, sensors, pumps, e.ctl.Tank, e.ctl))
}

// ---- alert filtering ----

type alertSet struct {
	group   *alert.Group
	filters []kindFilter
}

type kindFilter struct {
	f     *alert.Filter
	kinds []model.WarningKind
}

func newAlertSet(cfg config.Alerts) alertSet {
	g := alert.NewGroup(cfg.DeferTime, cfg.RepeatTime)
	return alertSet{
		group: g,
		filters: []kindFilter{
			{g.NewFilter("battery", cfg.Battery), []model.WarningKind{model.WarnBattery}},
			{g.NewFilter("temperature", cfg.Temperature), []model.WarningKind{model.WarnCold, model.WarnHot}},
			{g.NewFilter("moisture", cfg.Moisture), []model.WarningKind{model.WarnCritDry, model.WarnCritWet}},
			{g.NewFilter("moisture-info", cfg.MoistureInfo), []model.WarningKind{model.WarnDry, model.WarnWet}},
			{g.NewFilter("conductivity", cfg.Conductivity), []model.WarningKind{model.WarnFertilize, model.WarnExcessFert}},
			{g.NewFilter("light", cfg.Light), []model.WarningKind{model.WarnDark, model.WarnBright}},
			{g.NewFilter("sensor", cfg.Sensor), []model.WarningKind{model.WarnOffline}},
			{g.NewFilter("pump", cfg.Pump), []model.WarningKind{model.WarnPumpFault}},
			{g.NewFilter("tank-low", cfg.TankLow), []model.WarningKind{model.WarnTankLow}},
			{g.NewFilter("tank-empty", cfg.TankEmpty), []model.WarningKind{model.WarnTankEmpty}},
		},
	}
}

// checkAlerts feeds this cycle's warnings through every filter and
// reports whether any of them fired.
func (e *Engine) checkAlerts(now time.Time, warnings []model.Warning) bool {
	vectors := make(map[model.WarningKind]uint64)
	for _, w := range warnings {
		bit := uint64(1)
		if w.Sensor != "" {
			bit = 1 << uint(e.idx[w.Sensor])
		}
		vectors[w.Kind] |= bit
	}
	fired := false
	for _, kf := range e.filters.filters {
		var vec uint64
		for _, k := range kf.kinds {
			vec |= vectors[k]
		}
		if kf.f.Check(now, vec) {
			log.Printf("engine: alert: %s", kf.f.Name())
			fired = true
		}
	}
	return fired
}

// sensorWarnings translates comparison flags into warnings.
func sensorWarnings(name string, p model.Profile, r model.Reading, f model.Flags) []model.Warning {
	var out []model.Warning
	add := func(kind model.WarningKind, format string, args ...any) {
		out = append(out, model.NewWarning(kind, name, format, args...))
	}
	if f.BattLow {
		add(model.WarnBattery, "battery low (%d%%)", r.Battery)
	}
	if f.TempLow {
		add(model.WarnCold, "too cold (%.1f°C, min %.1f°C)", r.Temperature, p.TempMin)
	}
	if f.TempHigh {
		add(model.WarnHot, "too hot (%.1f°C, max %.1f°C)", r.Temperature, p.TempMax)
	}
	if f.CondLow {
		add(model.WarnFertilize, "fertilizer low (%dµS/cm, min %dµS/cm)", r.Conductivity, p.CondMin)
	}
	if f.CondHigh {
		add(model.WarnExcessFert, "excess fertilizer (%dµS/cm, max %dµS/cm)", r.Conductivity, p.CondMax)
	}
	if f.MoistCritLow {
		add(model.WarnCritDry, "critically dry (%d%%, min %d%%)", r.Moisture, p.MoistMin)
	}
	if f.MoistLow {
		add(model.WarnDry, "dry (%d%%, target %d%%)", r.Moisture, p.MoistLo)
	}
	if f.MoistHigh {
		add(model.WarnWet, "too wet, check water distribution (%d%%, target %d%%)", r.Moisture, p.MoistHi)
	}
	if f.MoistCritHigh {
		add(model.WarnCritWet, "critically wet (%d%%, max %d%%)", r.Moisture, p.MoistMax)
	}
	if f.LightLow {
		add(model.WarnDark, "not enough light (min %dlx)", p.LightMin)
	}
	if f.LightHigh {
		add(model.WarnBright, "too much light (max %dlx)", p.LightMax)
	}
	return out
}
