package model

// TankLevel is the discrete fill state of the water reservoir.
type TankLevel int

const (
	TankEmpty TankLevel = 0
	TankLow   TankLevel = 1
	TankOK    TankLevel = 2
)

func (t TankLevel) String() string {
	switch t {
	case TankEmpty:
		return "empty"
	case TankLow:
		return "low"
	default:
		return "ok"
	}
}

// ControlState holds the operator-adjustable daemon flags. It is
// mutated only by the engine worker, between evaluation cycles.
type ControlState struct {
	AutoReport     bool
	AutoIrrigation bool
	ManDuration    int // seconds, manual irrigation runtime
	Tank           TankLevel
}

// Status is the daemon state published on the status topic. Dead is
// never published directly, it is set by the broker via last will.
type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
	StatusIdle    Status = "idle"
	StatusDead    Status = "dead"
)
