package sim

import (
	"math"
	"math/rand"

	"github.com/edsabi/AISubBrawl/internal/config"
)

// rangeClass coarsens a passive range estimate; passive sonar never reports
// exact distance.
func rangeClass(rng float64) string {
	switch {
	case rng < 1200:
		return "short"
	case rng < 3000:
		return "medium"
	default:
		return "long"
	}
}

// passiveSNR models target loudness at the observer: base level plus
// speed-driven flow noise and snorkel machinery, minus range and depth
// falloff.
func passiveSNR(observer, target *Submarine, cfg *config.Config) (snr, rng float64) {
	pcfg := &cfg.Sonar.Passive
	rng = distance2(observer.X, observer.Y, target.X, target.Y)
	snr = pcfg.BaseSNR + pcfg.SpeedNoiseGain*(target.Speed/cfg.Sub.MaxSpeed)
	if target.Snorkeling {
		snr += pcfg.SnorkelBonus
	}
	snr -= (rng / 1000.0) * pcfg.FalloffPerKm
	snr -= (target.Depth / 200.0) * pcfg.DepthFalloffPer
	return snr, rng
}

// passiveContacts computes the tick's passive detections over the snapshot.
// A contact is emitted only when the observer's steered array covers the
// true bearing, the signal clears the noise floor, and the per-observer
// report interval has elapsed. Results go to the observing owner only.
func passiveContacts(subs []Submarine, cfg *config.Config, rng *rand.Rand, now float64) []Event {
	pcfg := &cfg.Sonar.Passive
	halfBeam := radians(pcfg.BeamwidthDeg) / 2
	var events []Event

	for i := range subs {
		obs := &subs[i]
		if obs.Destroyed {
			continue
		}
		interval := pcfg.ReportIntervalMin + rng.Float64()*(pcfg.ReportIntervalMax-pcfg.ReportIntervalMin)
		if now-obs.lastContactAt < interval {
			continue
		}
		for j := range subs {
			tgt := &subs[j]
			if i == j || tgt.Destroyed {
				continue
			}
			brg := math.Atan2(tgt.Y-obs.Y, tgt.X-obs.X)
			if math.Abs(wrapAngle(brg-obs.PassiveBearing)) > halfBeam {
				continue
			}
			snr, dist := passiveSNR(obs, tgt, cfg)
			if snr < pcfg.SNRFloor || dist > cfg.Sonar.Active.MaxRange {
				continue
			}

			// Shallow targets smear the bearing estimate more.
			jitter := radians(1.0)
			if tgt.Depth < 50 {
				jitter = radians(pcfg.BearingJitterDeg)
			}
			reported := wrapAngle(brg + (rng.Float64()*2-1)*jitter)

			events = append(events, Event{
				UserID: obs.OwnerID,
				Type:   EventContact,
				Payload: ContactPayload{
					Kind:            "passive",
					ObserverSubID:   obs.ID,
					Bearing:         reported,
					BearingRelative: wrapAngle(reported - obs.Heading),
					RangeClass:      rangeClass(dist),
					SNR:             snr,
					Time:            now,
				},
			})
			obs.lastContactAt = now
			break
		}
	}
	return events
}

// echoQuality maps an echo level to a 0..1 confidence; the estimate noise
// scales with what quality leaves on the table.
func echoQuality(level float64) float64 {
	return 1.0 / (1.0 + math.Exp(-(level-10.0)/6.0))
}

// processEchoes converts due echo entries into echo events addressed to the
// pinging user, perturbing range, bearing, and depth inversely to quality.
func processEchoes(due []pendingEcho, subs []Submarine, cfg *config.ActiveSonarConfig, rng *rand.Rand, now float64) []Event {
	if len(due) == 0 {
		return nil
	}
	headings := make(map[string]float64, len(subs))
	for i := range subs {
		headings[subs[i].ID] = subs[i].Heading
	}

	events := make([]Event, 0, len(due))
	for _, p := range due {
		q := echoQuality(p.EchoLevel)
		brgNoise := radians(cfg.BearingSigmaDeg) * (1 - q)
		rngNoise := math.Max(5.0, cfg.RangeSigmaM*(1-q))

		estBrg := wrapAngle(p.Bearing + (rng.Float64()*2-1)*brgNoise)
		estRng := math.Max(1.0, p.Range+(rng.Float64()*2-1)*rngNoise)

		dz := p.TargetDepth - p.ObserverDepth
		horiz := math.Max(1e-3, math.Sqrt(math.Max(0, p.Range*p.Range-dz*dz)))
		vertical := math.Atan2(dz, horiz)
		depthSigma := math.Max(3.0, 30.0*(1-q))
		estDepth := p.TargetDepth + rng.NormFloat64()*depthSigma

		events = append(events, Event{
			UserID: p.OwnerID,
			Type:   EventEcho,
			Payload: EchoPayload{
				ObserverSubID:   p.ObserverSubID,
				Bearing:         estBrg,
				BearingRelative: wrapAngle(estBrg - headings[p.ObserverSubID]),
				Range:           estRng,
				Quality:         q,
				VerticalAngle:   vertical,
				EstimatedDepth:  estDepth,
				Time:            now,
			},
		})
	}
	return events
}
