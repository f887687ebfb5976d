package model

import "time"

// PumpMode distinguishes how a run was started.
type PumpMode string

const (
	ModeNone   PumpMode = ""
	ModeManual PumpMode = "manual"
	ModeAuto   PumpMode = "auto"
)

// PumpStatus is the outcome of the last pump activation.
type PumpStatus int

const (
	PumpOK        PumpStatus = 0
	PumpTankEmpty PumpStatus = 1
	PumpFault     PumpStatus = 2
)

func (s PumpStatus) String() string {
	switch s {
	case PumpOK:
		return "o.k."
	case PumpTankEmpty:
		return "tank empty"
	default:
		return "driver fault"
	}
}

// PumpState tracks one relay channel. The rest deadline applies to
// automatic mode only; manual starts ignore it.
type PumpState struct {
	ID        int        `json:"id"`
	Mode      PumpMode   `json:"mode"`
	RunUntil  time.Time  `json:"run_until"`
	LastRun   time.Time  `json:"last_run"`
	RestUntil time.Time  `json:"rest_until"`
	Status    PumpStatus `json:"status"`
}

func (p *PumpState) Running(now time.Time) bool {
	return p.Mode != ModeNone && now.Before(p.RunUntil)
}

func (p *PumpState) Resting(now time.Time) bool {
	return now.Before(p.RestUntil)
}

// Remaining returns the run time left, zero when idle.
func (p *PumpState) Remaining(now time.Time) time.Duration {
	if !p.Running(now) {
		return 0
	}
	return p.RunUntil.Sub(now)
}
