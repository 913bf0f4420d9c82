package sim

import "github.com/edsabi/AISubBrawl/internal/config"

// resolveDetonation applies a warhead burst at the torpedo's position to
// every submarine inside the blast radius. Damage falls off linearly with
// distance: peak at zero, nothing at the radius. Health clamps at zero and
// boats that reach it are marked destroyed; the tick excludes them from the
// next step. Friendly boats are not spared.
func resolveDetonation(t Torpedo, subs []*Submarine, cfg *config.TorpedoConfig, now float64) ExplosionPayload {
	payload := ExplosionPayload{
		TorpedoID:   t.ID,
		At:          [3]float64{t.X, t.Y, t.Depth},
		BlastRadius: cfg.BlastRadius,
		Time:        now,
	}

	for _, s := range subs {
		if s.Destroyed {
			continue
		}
		d := distance3(t.X, t.Y, t.Depth, s.X, s.Y, s.Depth)
		if d >= cfg.BlastRadius {
			continue
		}
		dmg := cfg.PeakDamage * (1 - d/cfg.BlastRadius)
		s.Health -= dmg
		if s.Health <= 0 {
			s.Health = 0
			s.Destroyed = true
		}
		payload.Targets = append(payload.Targets, ExplosionTarget{
			SubID:    s.ID,
			Distance: d,
			Damage:   dmg,
		})
	}
	return payload
}
