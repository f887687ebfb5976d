// Package alert filters warning conditions into report triggers.
//
// Filter modes:
//
//	0 - never alert
//	1 - immediate alert on a condition becoming active
//	2 - like 1, repeated every repeat interval while still active
//	3 - deferred: alert only if the defer interval since the last
//	    alert of any kind has expired
//	4 - like 3, repeated every repeat interval while still active
package alert

import "time"

// Group shares the cross-kind defer timestamp between its filters.
// Not safe for concurrent use; all filters are driven by the single
// engine worker.
type Group struct {
	deferTime  time.Duration
	repeatTime time.Duration
	last       time.Time // last alert of any kind
}

func NewGroup(deferTime, repeatTime time.Duration) *Group {
	return &Group{deferTime: deferTime, repeatTime: repeatTime}
}

// Filter tracks one alert kind over a bit vector of condition sources
// (one bit per sensor, or a single bit for system conditions).
type Filter struct {
	group  *Group
	mode   int
	name   string
	tstamp time.Time
	flag   bool
	prev   uint64
}

func (g *Group) NewFilter(name string, mode int) *Filter {
	return &Filter{group: g, mode: mode, name: name}
}

func (f *Filter) deferExpired(now time.Time) bool {
	return f.group.last.IsZero() || now.Sub(f.group.last) > f.group.deferTime
}

func (f *Filter) repeatExpired(now time.Time) bool {
	return now.Sub(f.tstamp) > f.group.repeatTime
}

// Check feeds the current condition vector and reports whether an
// alert fires this cycle. A set bit that was clear before counts as a
// rising edge.
func (f *Filter) Check(now time.Time, active uint64) bool {
	if f.mode == 0 {
		f.prev = active
		return false
	}

	rising := active&^f.prev != 0
	f.prev = active

	fire := false
	if rising {
		f.tstamp = now
		f.flag = true
		switch f.mode {
		case 1, 2:
			fire = true
		case 3, 4:
			fire = f.deferExpired(now)
		}
	}

	if active != 0 {
		if f.mode == 2 && !f.tstamp.IsZero() && f.repeatExpired(now) {
			fire = true
			f.tstamp = now
		}
		if (f.mode == 3 || f.mode == 4) && f.flag && f.deferExpired(now) {
			fire = true
			f.tstamp = now
			if f.mode == 3 {
				// one-shot: further deferred emissions need a new edge
				f.flag = false
			}
		}
	} else {
		f.tstamp = time.Time{}
		f.flag = false
	}

	if fire {
		f.group.last = now
	}
	return fire
}

// Name identifies the filter in logs.
func (f *Filter) Name() string { return f.name }
