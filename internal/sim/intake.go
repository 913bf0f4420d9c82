package sim

import (
	"math"

	"github.com/google/uuid"
)

// ControlInput carries the optional control-surface fields of one control
// command. Nil pointers leave the corresponding setpoint untouched;
// TargetDepth uses a double pointer so callers can clear the depth hold.
type ControlInput struct {
	Throttle    *float64
	RudderDeg   *float64
	Planes      *float64
	TargetDepth **float64
}

// SetControl applies throttle, rudder, planes, and depth-hold intents to an
// owned submarine. Every field is validated before any of them is applied,
// so a rejected command leaves the boat untouched. Pure intent mutation;
// physics consumes the values on the next tick.
func (w *World) SetControl(ownerID uint, subID string, in ControlInput) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	s, err := w.ownedSubLocked(ownerID, subID)
	if err != nil {
		return err
	}

	maxDeg := w.cfg.Sub.MaxRudderDeg
	if in.Throttle != nil {
		if v := *in.Throttle; v < 0 || v > 1 {
			return Validationf("throttle %.3f outside [0,1]", v)
		}
	}
	if in.RudderDeg != nil {
		if v := *in.RudderDeg; v < -maxDeg || v > maxDeg {
			return Validationf("rudder %.1f outside ±%.1f deg", v, maxDeg)
		}
	}
	if in.Planes != nil {
		if v := *in.Planes; v < -1 || v > 1 {
			return Validationf("planes %.3f outside [-1,1]", v)
		}
	}
	if in.TargetDepth != nil && *in.TargetDepth != nil {
		if v := **in.TargetDepth; v < 0 || v > w.cfg.Sub.MaxDepth {
			return Validationf("target depth %.1f outside [0,%.0f]", v, w.cfg.Sub.MaxDepth)
		}
	}

	if in.Throttle != nil {
		s.Throttle = *in.Throttle
	}
	if in.RudderDeg != nil {
		s.RudderCmd = *in.RudderDeg / maxDeg
	}
	if in.Planes != nil {
		s.Planes = *in.Planes
	}
	if in.TargetDepth != nil {
		if *in.TargetDepth == nil {
			s.TargetDepth = nil
		} else {
			depth := **in.TargetDepth
			s.TargetDepth = &depth
		}
	}
	return nil
}

// SetSnorkel toggles the snorkel. Engaging is refused below the snorkel
// depth; once engaged it stays on until toggled off or the boat dives past
// the threshold plus hysteresis margin.
func (w *World) SetSnorkel(ownerID uint, subID string, on bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	s, err := w.ownedSubLocked(ownerID, subID)
	if err != nil {
		return err
	}
	if on && s.Depth > w.cfg.Sub.SnorkelDepth {
		return Rulef("too deep to snorkel: %.1fm > %.1fm", s.Depth, w.cfg.Sub.SnorkelDepth)
	}
	s.Snorkeling = on
	return nil
}

// TriggerBlow starts an emergency ballast blow, consuming one charge.
func (w *World) TriggerBlow(ownerID uint, subID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	s, err := w.ownedSubLocked(ownerID, subID)
	if err != nil {
		return err
	}
	if s.BlowCharges < 1 {
		return Rulef("no blow charge available")
	}
	s.BlowCharges -= 1
	s.BlowActive = true
	s.BlowUntil = w.now + w.cfg.Sub.EmergencyBlow.DurationSec
	return nil
}

// SetPassiveArray steers the passive listening array to a world bearing.
func (w *World) SetPassiveArray(ownerID uint, subID string, bearing float64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	s, err := w.ownedSubLocked(ownerID, subID)
	if err != nil {
		return err
	}
	s.PassiveBearing = wrapAngle(bearing)
	return nil
}

// PingRequest describes one active sonar emission.
type PingRequest struct {
	BeamwidthDeg     float64
	MaxRange         float64
	CenterBearingRel float64 // radians, relative to own heading
}

// Ping emits an active pulse: debits battery by beamwidth and range,
// queues one deferred echo per reflector inside the beam, and immediately
// notifies every other boat in detection range that it heard the ping.
// Returns the battery cost.
func (w *World) Ping(ownerID uint, subID string, req PingRequest) (float64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	s, err := w.ownedSubLocked(ownerID, subID)
	if err != nil {
		return 0, err
	}

	acfg := w.cfg.Sonar.Active
	if req.BeamwidthDeg <= 0 || req.BeamwidthDeg > 360 {
		return 0, Validationf("beamwidth %.1f outside (0,360]", req.BeamwidthDeg)
	}
	if req.MaxRange <= 0 {
		return 0, Validationf("max range must be positive")
	}
	maxRange := math.Min(req.MaxRange, acfg.MaxRange)

	if w.now < s.pingReadyAt {
		return 0, Rulef("sonar recharging")
	}
	cost := acfg.CostPerPing + req.BeamwidthDeg*acfg.CostPerDegree
	if s.Battery < acfg.MinBattery {
		return 0, Rulef("battery too low to ping")
	}
	if s.Battery < cost {
		return 0, Rulef("not enough battery for %.1f-degree ping", req.BeamwidthDeg)
	}

	s.Battery = clamp(s.Battery-cost, 0, w.cfg.Sub.Battery.Max)
	s.pingReadyAt = w.now + acfg.CooldownSec

	center := wrapAngle(s.Heading + req.CenterBearingRel)
	halfBeam := radians(req.BeamwidthDeg) / 2

	for _, tgt := range w.subs {
		if tgt.ID == s.ID || tgt.Destroyed {
			continue
		}
		rng := distance3(s.X, s.Y, s.Depth, tgt.X, tgt.Y, tgt.Depth)
		if rng > maxRange {
			continue
		}
		brg := math.Atan2(tgt.Y-s.Y, tgt.X-s.X)
		if math.Abs(wrapAngle(brg-center)) > halfBeam {
			continue
		}
		level := 18.0 - rng/400.0
		if tgt.Snorkeling {
			level += 8.0
		}
		w.echoes = append(w.echoes, pendingEcho{
			FireAt:        w.now + 2*rng/acfg.SoundSpeed,
			Range:         rng,
			Bearing:       brg,
			EchoLevel:     level,
			ObserverSubID: s.ID,
			OwnerID:       s.OwnerID,
			ObserverDepth: s.Depth,
			TargetDepth:   tgt.Depth,
		})
	}

	// The pulse itself is heard instantly by everyone close enough,
	// revealing the emitter's rough bearing but not its position.
	for _, other := range w.subs {
		if other.ID == s.ID || other.Destroyed {
			continue
		}
		snr := 5.0*(req.BeamwidthDeg/90.0) - distance2(s.X, s.Y, other.X, other.Y)/800.0
		if snr <= 1.0 {
			continue
		}
		brg := math.Atan2(s.Y-other.Y, s.X-other.X)
		w.outbox = append(w.outbox, Event{
			UserID: other.OwnerID,
			Type:   EventContact,
			Payload: ContactPayload{
				Kind:            "active_ping_detected",
				ObserverSubID:   other.ID,
				Bearing:         brg,
				BearingRelative: wrapAngle(brg - other.Heading),
				SNR:             snr,
				Time:            w.now,
			},
		})
	}

	return cost, nil
}

// LaunchRequest describes one torpedo launch.
type LaunchRequest struct {
	WireLength float64
	Tube       int // 0 = center, negative = port, positive = starboard
}

// LaunchTorpedo spawns a wire-guided torpedo ahead of the parent boat.
// The battery debit and the torpedo creation happen under one lock
// acquisition so no partial launch state is ever observable.
func (w *World) LaunchTorpedo(ownerID uint, subID string, req LaunchRequest) (Torpedo, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	s, err := w.ownedSubLocked(ownerID, subID)
	if err != nil {
		return Torpedo{}, err
	}
	if s.Destroyed {
		return Torpedo{}, Rulef("submarine is destroyed")
	}

	tcfg := w.cfg.Torpedo
	wire := req.WireLength
	if wire <= 0 {
		wire = tcfg.DefaultWire
	}
	if wire > tcfg.MaxWire {
		wire = tcfg.MaxWire
	}

	cost := tcfg.LaunchCostBase + wire*tcfg.LaunchCostPerM
	if s.Battery < cost {
		return Torpedo{}, Rulef("not enough battery to launch (%.1f needed)", cost)
	}
	s.Battery = clamp(s.Battery-cost, 0, w.cfg.Sub.Battery.Max)

	cosH, sinH := math.Cos(s.Heading), math.Sin(s.Heading)
	lateral := float64(req.Tube) * tcfg.TubeSpacing
	t := &Torpedo{
		ID:            uuid.NewString(),
		OwnerID:       ownerID,
		ParentID:      s.ID,
		X:             s.X + cosH*tcfg.NoseOffset - sinH*lateral,
		Y:             s.Y + sinH*tcfg.NoseOffset + cosH*lateral,
		Depth:         s.Depth,
		Heading:       s.Heading,
		Speed:         tcfg.Speed,
		TargetHeading: s.Heading,
		TargetDepth:   s.Depth,
		TargetSpeed:   tcfg.Speed,
		Mode:          ModeWire,
		WireLength:    wire,
		Fuel:          tcfg.LifetimeSec,
		LaunchedAt:    w.now,
	}
	w.torps[t.ID] = t
	return *t, nil
}

// TorpedoHeadingInput is either an absolute heading or a relative turn,
// with an optional dt hint scaling the single-command turn budget.
type TorpedoHeadingInput struct {
	Heading *float64 // radians, absolute
	Turn    *float64 // radians, relative
	DtHint  float64  // seconds; defaults to one tick
}

// SetTorpedoHeading steers a wire-guided torpedo, rate-limited by the
// configured turn rate. Rejected once the wire is lost.
func (w *World) SetTorpedoHeading(ownerID uint, torpID string, in TorpedoHeadingInput) (float64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	t, err := w.ownedTorpedoLocked(ownerID, torpID)
	if err != nil {
		return 0, err
	}
	if !t.WireIntact() {
		return 0, Rulef("wire lost: torpedo is autonomous")
	}

	dt := in.DtHint
	if dt <= 0 {
		dt = w.cfg.TickInterval()
	}
	maxTurn := radians(w.cfg.Torpedo.TurnRateDeg) * dt

	switch {
	case in.Heading != nil:
		desired := wrapAngle(*in.Heading)
		diff := wrapAngle(desired - t.TargetHeading)
		t.TargetHeading = wrapAngle(t.TargetHeading + clamp(diff, -maxTurn, maxTurn))
	case in.Turn != nil:
		t.TargetHeading = wrapAngle(t.TargetHeading + clamp(*in.Turn, -maxTurn, maxTurn))
	default:
		return 0, Validationf("heading or turn required")
	}
	return t.TargetHeading, nil
}

// SetTorpedoDepth retargets a wire-guided torpedo's running depth.
func (w *World) SetTorpedoDepth(ownerID uint, torpID string, depth float64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	t, err := w.ownedTorpedoLocked(ownerID, torpID)
	if err != nil {
		return err
	}
	if !t.WireIntact() {
		return Rulef("wire lost: torpedo is autonomous")
	}
	if depth < 0 || depth > w.cfg.Torpedo.MaxDepth {
		return Validationf("depth %.1f outside [0,%.0f]", depth, w.cfg.Torpedo.MaxDepth)
	}
	t.TargetDepth = depth
	return nil
}

// SetTorpedoSpeed retargets a wire-guided torpedo's speed.
func (w *World) SetTorpedoSpeed(ownerID uint, torpID string, speed float64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	t, err := w.ownedTorpedoLocked(ownerID, torpID)
	if err != nil {
		return err
	}
	if !t.WireIntact() {
		return Rulef("wire lost: torpedo is autonomous")
	}
	if speed < 0 || speed > w.cfg.Torpedo.MaxSpeed {
		return Validationf("speed %.1f outside [0,%.1f]", speed, w.cfg.Torpedo.MaxSpeed)
	}
	t.TargetSpeed = speed
	return nil
}

// ToggleTorpedoPing flips the seeker auto-ping flag and reports the new
// state. The toggle itself needs an intact wire; a torpedo that went
// autonomous with auto-ping on keeps pinging with whatever it had.
func (w *World) ToggleTorpedoPing(ownerID uint, torpID string) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	t, err := w.ownedTorpedoLocked(ownerID, torpID)
	if err != nil {
		return false, err
	}
	if !t.WireIntact() {
		return false, Rulef("wire lost: torpedo is autonomous")
	}
	t.AutoPing = !t.AutoPing
	return t.AutoPing, nil
}

// Detonate fires the warhead immediately, regardless of range. Damage is
// resolved under the lock and the torpedo is removed; the explosion event
// reaches every user on the next dispatch.
func (w *World) Detonate(ownerID uint, torpID string) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	t, err := w.ownedTorpedoLocked(ownerID, torpID)
	if err != nil {
		return 0, err
	}

	subs := make([]*Submarine, 0, len(w.subs))
	for _, s := range w.subs {
		subs = append(subs, s)
	}
	payload := resolveDetonation(*t, subs, &w.cfg.Torpedo, w.now)

	users := make(map[uint]struct{}, len(w.subs))
	for _, s := range w.subs {
		users[s.OwnerID] = struct{}{}
	}
	users[t.OwnerID] = struct{}{}
	for uid := range users {
		w.outbox = append(w.outbox, Event{UserID: uid, Type: EventExplosion, Payload: payload})
	}

	delete(w.torps, torpID)
	w.pendingDeletes = append(w.pendingDeletes, torpID)
	return len(payload.Targets), nil
}
