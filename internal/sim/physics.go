package sim

import (
	"math"

	"github.com/edsabi/AISubBrawl/internal/config"
)

// stepSubmarine advances one boat by dt seconds. Pure function of
// (state, dt, config): it operates on a value copy from the tick snapshot
// and returns the next state with every bounded quantity clamped, so an
// out-of-range input command can never push the committed state outside its
// invariants.
func stepSubmarine(s Submarine, dt, now float64, cfg *config.SubConfig) Submarine {
	yawRate := radians(cfg.YawRateDeg)
	pitchRate := radians(cfg.PitchRateDeg)
	maxRudder := radians(cfg.MaxRudderDeg)
	rudderStep := radians(cfg.RudderRateDeg) * dt

	dead := s.Battery <= 0

	// Rudder servo slews toward the normalized command; a dead battery
	// freezes the control surfaces where they are.
	if !dead {
		cmd := clamp(s.RudderCmd, -1, 1)
		s.RudderAngle = approach(s.RudderAngle, cmd*maxRudder, rudderStep)
	}
	s.RudderAngle = clamp(s.RudderAngle, -maxRudder, maxRudder)

	rudderFrac := 0.0
	if maxRudder > 0 {
		rudderFrac = s.RudderAngle / maxRudder
	}
	s.Heading = wrapAngle(s.Heading + yawRate*rudderFrac*dt)

	// Planes map to a pitch target; the depth-hold autopilot takes over
	// only while the planes are near neutral.
	throttle := clamp(s.Throttle, 0, 1)
	vDown := cfg.NeutralBias * (1 - throttle)

	if !dead {
		targetPitch := clamp(s.Planes*cfg.PlanesEffect, -1, 1) * radians(20)
		autopilot := s.TargetDepth != nil && math.Abs(s.Planes) < 0.05
		if autopilot {
			errM := *s.TargetDepth - s.Depth
			targetPitch = clamp(-errM*radians(0.5), -radians(25), radians(25))
			vDown += clamp(errM*0.02, -1.5, 1.5)
		}
		s.Pitch = approach(s.Pitch, targetPitch, pitchRate*dt)
	}

	// Speed approaches throttle demand under an acceleration cap; with a
	// dead battery propulsion decays to zero instead.
	demand := throttle * cfg.MaxSpeed
	if dead {
		demand = 0
	}
	s.Speed = clamp(approach(s.Speed, demand, cfg.AccelMps2*dt), 0, cfg.MaxSpeed)

	// Emergency blow overrides buoyancy while its timer runs.
	if s.BlowActive {
		if now < s.BlowUntil {
			vDown -= cfg.EmergencyBlow.UpwardMps
		} else {
			s.BlowActive = false
		}
	}

	// Bow-up pitch generates lift that shallows the boat.
	vDown -= math.Sin(s.Pitch) * s.Speed * cfg.LiftGain

	s.Depth = clamp(s.Depth+vDown*dt, 0, cfg.MaxDepth)

	s.X += math.Cos(s.Heading) * s.Speed * dt
	s.Y += math.Sin(s.Heading) * s.Speed * dt

	// Battery: drain from propulsion and control-surface use, recharge
	// while the snorkel is actually usable.
	bat := &cfg.Battery
	drain := throttle*bat.DrainPerThrottleSec + (math.Abs(s.RudderCmd)+math.Abs(s.Planes))*bat.SurfaceDrainSec
	s.Battery = clamp(s.Battery-drain*dt, 0, bat.Max)

	if s.Snorkeling {
		if s.Depth <= cfg.SnorkelDepth+cfg.SnorkelHysteresis {
			s.Battery = clamp(s.Battery+bat.RechargePerSec*dt, 0, bat.Max)
			s.BlowCharges = clamp(s.BlowCharges+cfg.EmergencyBlow.RechargePerSec*dt, 0, cfg.EmergencyBlow.MaxCharges)
		} else {
			// Dove past the threshold plus margin: mast is underwater.
			s.Snorkeling = false
		}
	}

	// Structural damage past crush depth, proportional to excess.
	if s.Depth > cfg.CrushDepth {
		over := s.Depth - cfg.CrushDepth
		s.Health -= (over / 100.0) * cfg.CrushDpsPer100m * dt
	}
	if s.Health <= 0 {
		s.Health = 0
		s.Destroyed = true
	}

	return s
}
