package sim

// ControlMode is the torpedo guidance variant. The only legal transition is
// ModeWire to ModeAutonomous; it never reverts.
type ControlMode string

const (
	// ModeWire accepts live heading/speed/depth commands from the owner.
	ModeWire ControlMode = "wire"
	// ModeAutonomous keeps converging on the last commanded targets but
	// rejects new guidance commands.
	ModeAutonomous ControlMode = "autonomous"
)

// Submarine is the full per-boat record held by the world store.
//
// Kinematic and resource fields (position, depth, heading, pitch, speed,
// battery, health, rudder servo angle) are written only by the tick commit.
// Intent fields (Throttle, RudderCmd, Planes, TargetDepth, PassiveBearing,
// snorkel/blow requests) are written by command intake under the world lock
// and read by the next tick's snapshot.
type Submarine struct {
	ID      string  `json:"id"`
	OwnerID uint    `json:"-"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Depth   float64 `json:"depth"`
	Heading float64 `json:"heading"`
	Pitch   float64 `json:"pitch"`
	Speed   float64 `json:"speed"`

	Throttle    float64  `json:"throttle"`
	RudderCmd   float64  `json:"rudder_cmd"`
	RudderAngle float64  `json:"rudder_angle"`
	Planes      float64  `json:"planes"`
	TargetDepth *float64 `json:"target_depth"`

	Battery    float64 `json:"battery"`
	Snorkeling bool    `json:"is_snorkeling"`

	BlowActive  bool    `json:"blow_active"`
	BlowCharges float64 `json:"blow_charge"`
	BlowUntil   float64 `json:"-"`

	PassiveBearing float64 `json:"passive_dir"`

	Health    float64 `json:"health"`
	Destroyed bool    `json:"destroyed"`

	// lastContactAt throttles passive sonar reports per observer.
	lastContactAt float64
	// pingReadyAt gates the active sonar cooldown, in simulated seconds.
	pingReadyAt float64
}

// Torpedo is the full per-weapon record held by the world store.
type Torpedo struct {
	ID       string  `json:"id"`
	OwnerID  uint    `json:"-"`
	ParentID string  `json:"parent_sub"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Depth    float64 `json:"depth"`
	Heading  float64 `json:"heading"`
	Speed    float64 `json:"speed"`

	TargetHeading float64 `json:"-"`
	TargetDepth   float64 `json:"-"`
	TargetSpeed   float64 `json:"-"`

	Mode       ControlMode `json:"mode"`
	WireLength float64     `json:"wire_length"`

	// Fuel is the remaining run time in seconds; at zero the torpedo
	// expires without detonating.
	Fuel     float64 `json:"fuel"`
	AutoPing bool    `json:"auto_ping"`

	// Armed flips once the arming delay elapses; the proximity fuze is
	// inert before that.
	Armed      bool    `json:"-"`
	LaunchedAt float64 `json:"-"`

	nextSelfPingAt float64
}

// WireIntact reports whether the torpedo still accepts guidance commands.
func (t *Torpedo) WireIntact() bool { return t.Mode == ModeWire }

// loseWire performs the one-directional wire to autonomous transition.
// Calling it on an already autonomous torpedo is a no-op.
func (t *Torpedo) loseWire() {
	if t.Mode == ModeWire {
		t.Mode = ModeAutonomous
	}
}
