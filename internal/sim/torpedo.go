package sim

import (
	"math"

	"github.com/edsabi/AISubBrawl/internal/config"
)

// torpedoOutcome says what happened to a torpedo during one tick.
type torpedoOutcome int

const (
	torpedoRunning torpedoOutcome = iota
	torpedoExpired                // fuel exhausted or left the ring; no detonation
	torpedoDetonated
)

// stepTorpedo advances one torpedo by dt. Pure function of the snapshot:
// parent may be nil when the launching boat no longer exists, which counts
// as a lost wire. Enemy proximity is checked against the snapshot's boats.
func stepTorpedo(t Torpedo, parent *Submarine, enemies []Submarine, dt, now float64, cfg *config.Config) (Torpedo, torpedoOutcome) {
	tcfg := &cfg.Torpedo

	// Wire continuity: geometric distance to the parent against the length
	// fixed at launch. The transition is one-way; guidance keeps converging
	// on the last commanded targets afterward.
	if t.Mode == ModeWire {
		if parent == nil || distance2(t.X, t.Y, parent.X, parent.Y) > t.WireLength {
			t.loseWire()
		}
	}

	turnStep := radians(tcfg.TurnRateDeg) * dt
	t.Heading = approachAngle(t.Heading, t.TargetHeading, turnStep)
	t.Depth = clamp(approach(t.Depth, t.TargetDepth, tcfg.DepthRateMps*dt), 0, tcfg.MaxDepth)
	t.Speed = clamp(approach(t.Speed, t.TargetSpeed, tcfg.AccelMps2*dt), 0, tcfg.MaxSpeed)

	t.X += math.Cos(t.Heading) * t.Speed * dt
	t.Y += math.Sin(t.Heading) * t.Speed * dt

	t.Fuel -= dt
	if t.Fuel <= 0 {
		return t, torpedoExpired
	}
	wc := &cfg.World
	if distance2(t.X, t.Y, wc.RingX, wc.RingY) > wc.RingRadius {
		return t, torpedoExpired
	}

	if !t.Armed && now-t.LaunchedAt >= tcfg.ArmingDelaySec {
		t.Armed = true
	}
	if t.Armed && tcfg.ProximityFuze > 0 {
		for i := range enemies {
			e := &enemies[i]
			if e.Destroyed || e.OwnerID == t.OwnerID {
				continue
			}
			if distance3(t.X, t.Y, t.Depth, e.X, e.Y, e.Depth) <= tcfg.ProximityFuze {
				return t, torpedoDetonated
			}
		}
	}

	return t, torpedoRunning
}

// seekerEvents produces the torpedo's own sensor reports: a passive contact
// when a boat sits inside the seeker cone, and a periodic self-ping contact
// list while auto-ping is on. Both go only to the owning user.
func seekerEvents(t *Torpedo, subs []Submarine, cfg *config.TorpedoConfig, now float64) []Event {
	var events []Event
	halfBeam := radians(cfg.SeekerBeamDeg) / 2

	var best *Submarine
	bestRange := cfg.SeekerRange
	for i := range subs {
		s := &subs[i]
		if s.Destroyed || s.OwnerID == t.OwnerID {
			continue
		}
		rng := distance3(t.X, t.Y, t.Depth, s.X, s.Y, s.Depth)
		if rng > cfg.SeekerRange {
			continue
		}
		brg := math.Atan2(s.Y-t.Y, s.X-t.X)
		if math.Abs(wrapAngle(brg-t.Heading)) > halfBeam {
			continue
		}
		if rng <= bestRange {
			best = s
			bestRange = rng
		}
	}

	if best != nil {
		brg := math.Atan2(best.Y-t.Y, best.X-t.X)
		events = append(events, Event{
			UserID: t.OwnerID,
			Type:   EventTorpedoContact,
			Payload: TorpedoContactPayload{
				TorpedoID: t.ID,
				Bearing:   brg,
				SNR:       12.0 - bestRange/100.0,
				Time:      now,
			},
		})
	}

	if t.AutoPing && now >= t.nextSelfPingAt {
		t.nextSelfPingAt = now + cfg.SelfPingPeriod
		contacts := make([]TorpedoEchoContact, 0, 2)
		for i := range subs {
			s := &subs[i]
			if s.Destroyed || s.OwnerID == t.OwnerID {
				continue
			}
			rng := distance3(t.X, t.Y, t.Depth, s.X, s.Y, s.Depth)
			if rng > cfg.SeekerRange {
				continue
			}
			contacts = append(contacts, TorpedoEchoContact{
				Bearing: math.Atan2(s.Y-t.Y, s.X-t.X),
				Range:   rng,
				Depth:   s.Depth,
			})
		}
		events = append(events, Event{
			UserID: t.OwnerID,
			Type:   EventTorpedoPing,
			Payload: TorpedoPingPayload{
				TorpedoID: t.ID,
				Contacts:  contacts,
				Time:      now,
			},
		})
	}

	return events
}
