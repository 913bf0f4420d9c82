package sim

// EventType enumerates the telemetry events a tick can emit.
type EventType string

const (
	EventSnapshot       EventType = "snapshot"
	EventContact        EventType = "contact"
	EventEcho           EventType = "echo"
	EventTorpedoContact EventType = "torpedo_contact"
	EventTorpedoPing    EventType = "torpedo_ping"
	EventExplosion      EventType = "explosion"
)

// Event is a single addressed telemetry record. UserID selects the
// recipient; the dispatcher groups events per user before handing them to
// the transport.
type Event struct {
	UserID  uint      `json:"-"`
	Type    EventType `json:"event"`
	Payload any       `json:"data"`
}

// SnapshotPayload carries the recipient's own entities, sent once per tick.
type SnapshotPayload struct {
	Subs      []Submarine `json:"subs"`
	Torpedoes []Torpedo   `json:"torpedoes"`
	Tick      uint64      `json:"tick"`
	Time      float64     `json:"time"`
}

// ContactPayload reports a passive detection or a heard active ping.
type ContactPayload struct {
	Kind            string  `json:"type"` // "passive" | "active_ping_detected"
	ObserverSubID   string  `json:"observer_sub_id"`
	Bearing         float64 `json:"bearing"`
	BearingRelative float64 `json:"bearing_relative"`
	RangeClass      string  `json:"range_class,omitempty"`
	SNR             float64 `json:"snr"`
	Time            float64 `json:"time"`
}

// EchoPayload reports one deferred active-sonar return.
type EchoPayload struct {
	ObserverSubID   string  `json:"observer_sub_id"`
	Bearing         float64 `json:"bearing"`
	BearingRelative float64 `json:"bearing_relative"`
	Range           float64 `json:"range"`
	Quality         float64 `json:"quality"`
	VerticalAngle   float64 `json:"vertical_angle"`
	EstimatedDepth  float64 `json:"estimated_depth"`
	Time            float64 `json:"time"`
}

// TorpedoContactPayload reports a passive detection by a torpedo's seeker.
type TorpedoContactPayload struct {
	TorpedoID string  `json:"torpedo_id"`
	Bearing   float64 `json:"bearing"`
	SNR       float64 `json:"snr"`
	Time      float64 `json:"time"`
}

// TorpedoEchoContact is one return inside a torpedo self-ping report.
type TorpedoEchoContact struct {
	Bearing float64 `json:"bearing"`
	Range   float64 `json:"range"`
	Depth   float64 `json:"depth"`
}

// TorpedoPingPayload reports the contacts seen by one torpedo auto-ping.
type TorpedoPingPayload struct {
	TorpedoID string               `json:"torpedo_id"`
	Contacts  []TorpedoEchoContact `json:"contacts"`
	Time      float64              `json:"time"`
}

// ExplosionTarget records the per-victim distance and applied damage.
type ExplosionTarget struct {
	SubID    string  `json:"sub_id"`
	Distance float64 `json:"distance"`
	Damage   float64 `json:"damage"`
}

// ExplosionPayload reports a warhead detonation.
type ExplosionPayload struct {
	TorpedoID   string            `json:"torpedo_id"`
	At          [3]float64        `json:"at"`
	BlastRadius float64           `json:"blast_radius"`
	Targets     []ExplosionTarget `json:"targets"`
	Time        float64           `json:"time"`
}

// UserEvents is the ordered event list for one recipient, produced once per
// tick for the transport collaborator.
type UserEvents struct {
	UserID uint
	Events []Event
}

// groupEvents splits a flat addressed-event slice into stable per-user
// batches, preserving emission order within each user.
func groupEvents(events []Event) []UserEvents {
	if len(events) == 0 {
		return nil
	}
	byUser := make(map[uint]int)
	batches := make([]UserEvents, 0, 4)
	for _, ev := range events {
		idx, ok := byUser[ev.UserID]
		if !ok {
			idx = len(batches)
			byUser[ev.UserID] = idx
			batches = append(batches, UserEvents{UserID: ev.UserID})
		}
		batches[idx].Events = append(batches[idx].Events, ev)
	}
	return batches
}
