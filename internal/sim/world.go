package sim

import (
	"math"
	"math/rand"
	"sync"

	"github.com/google/uuid"

	"github.com/edsabi/AISubBrawl/internal/config"
)

// pendingEcho is one deferred active-sonar return waiting for its round-trip
// travel time to elapse. Entries are consumed by whichever tick reaches
// FireAt; the requester never blocks on them.
type pendingEcho struct {
	FireAt        float64
	Range         float64
	Bearing       float64
	EchoLevel     float64
	ObserverSubID string
	OwnerID       uint
	ObserverDepth float64
	TargetDepth   float64
}

// World is the canonical entity store. One exclusive mutex guards every
// mutation; the simulation loop is the sole writer of kinematic state, while
// command intake writes only pending-intent fields under the same lock.
type World struct {
	mu    sync.Mutex
	cfg   *config.Config
	subs  map[string]*Submarine
	torps map[string]*Torpedo

	tick uint64
	now  float64

	echoes         []pendingEcho
	outbox         []Event
	pendingDeletes []string

	rng *rand.Rand
}

// NewWorld builds an empty world around the merged config. The rng seeds
// spawn placement and intake-side noise only; tick compute owns its own
// generator.
func NewWorld(cfg *config.Config, rng *rand.Rand) *World {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &World{
		cfg:   cfg,
		subs:  make(map[string]*Submarine),
		torps: make(map[string]*Torpedo),
		rng:   rng,
	}
}

// snapshot is the immutable working copy one tick computes against.
type snapshot struct {
	tick      uint64
	now       float64
	dt        float64
	subs      []Submarine
	torps     []Torpedo
	dueEchoes []pendingEcho
	queued    []Event
	deletes   []string
	users     []uint
}

// takeSnapshot copies the entity set, pops due echoes, and drains events
// queued by intake since the last tick. Lock hold time is bounded by the
// entity count.
func (w *World) takeSnapshot(dt float64) snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	snap := snapshot{
		tick: w.tick + 1,
		now:  w.now,
		dt:   dt,
		subs: make([]Submarine, 0, len(w.subs)),
	}

	userSet := make(map[uint]struct{})
	for _, s := range w.subs {
		snap.subs = append(snap.subs, *s)
		userSet[s.OwnerID] = struct{}{}
	}
	snap.torps = make([]Torpedo, 0, len(w.torps))
	for _, t := range w.torps {
		snap.torps = append(snap.torps, *t)
		userSet[t.OwnerID] = struct{}{}
	}
	snap.users = make([]uint, 0, len(userSet))
	for uid := range userSet {
		snap.users = append(snap.users, uid)
	}

	fireBy := w.now + dt
	if len(w.echoes) > 0 {
		keep := w.echoes[:0]
		for _, e := range w.echoes {
			if e.FireAt <= fireBy {
				snap.dueEchoes = append(snap.dueEchoes, e)
			} else {
				keep = append(keep, e)
			}
		}
		w.echoes = keep
	}

	snap.queued = w.outbox
	w.outbox = nil
	snap.deletes = w.pendingDeletes
	w.pendingDeletes = nil

	return snap
}

// commit writes one tick's computed state back into the store. Only
// kinematic, resource, and derived fields are assigned so that intent
// fields written by intake during the compute phase survive.
func (w *World) commit(res *tickResult) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for i := range res.subs {
		next := &res.subs[i]
		live, ok := w.subs[next.ID]
		if !ok {
			continue
		}
		live.X = next.X
		live.Y = next.Y
		live.Depth = next.Depth
		live.Heading = next.Heading
		live.Pitch = next.Pitch
		live.Speed = next.Speed
		live.RudderAngle = next.RudderAngle
		live.Battery = next.Battery
		live.Snorkeling = next.Snorkeling
		live.BlowActive = next.BlowActive
		live.BlowCharges = next.BlowCharges
		live.Health = next.Health
		live.Destroyed = next.Destroyed
		live.lastContactAt = next.lastContactAt
	}

	for i := range res.torps {
		next := &res.torps[i]
		live, ok := w.torps[next.ID]
		if !ok {
			continue
		}
		live.X = next.X
		live.Y = next.Y
		live.Depth = next.Depth
		live.Heading = next.Heading
		live.Speed = next.Speed
		live.Fuel = next.Fuel
		live.Armed = next.Armed
		live.nextSelfPingAt = next.nextSelfPingAt
		if next.Mode == ModeAutonomous {
			live.loseWire()
		}
	}

	for _, id := range res.removedTorpIDs {
		delete(w.torps, id)
	}

	w.tick = res.tick
	w.now = res.now
}

// Tick returns the committed tick counter.
func (w *World) Tick() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.tick
}

// Now returns the committed simulated time in seconds.
func (w *World) Now() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.now
}

// EntityCounts reports live submarine and torpedo counts for diagnostics.
func (w *World) EntityCounts() (subs, torps int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.subs), len(w.torps)
}

// SnapshotFor copies the entities owned by one user, for the state endpoint.
func (w *World) SnapshotFor(ownerID uint) ([]Submarine, []Torpedo) {
	w.mu.Lock()
	defer w.mu.Unlock()

	subs := make([]Submarine, 0, 1)
	for _, s := range w.subs {
		if s.OwnerID == ownerID {
			subs = append(subs, *s)
		}
	}
	torps := make([]Torpedo, 0, 1)
	for _, t := range w.torps {
		if t.OwnerID == ownerID {
			torps = append(torps, *t)
		}
	}
	return subs, torps
}

// RegisterSubmarine spawns a boat for the given user at a safe random
// position inside the ring and returns a copy of the record.
func (w *World) RegisterSubmarine(ownerID uint) Submarine {
	w.mu.Lock()
	defer w.mu.Unlock()

	x, y := w.randomSpawnLocked()
	bat := w.cfg.Sub.Battery
	s := &Submarine{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		X:           x,
		Y:           y,
		Depth:       80 + w.rng.Float64()*100,
		Heading:     wrapAngle(-math.Pi + w.rng.Float64()*2*math.Pi),
		Throttle:    0.2,
		Battery:     bat.InitialMin + w.rng.Float64()*(bat.InitialMax-bat.InitialMin),
		BlowCharges: w.cfg.Sub.EmergencyBlow.MaxCharges,
		Health:      100,
	}
	w.subs[s.ID] = s
	return *s
}

// randomSpawnLocked picks a point in the spawn annulus keeping the safe
// separation from every existing boat, falling back to the ring center.
func (w *World) randomSpawnLocked() (float64, float64) {
	wc := w.cfg.World
	for attempt := 0; attempt < 50; attempt++ {
		ang := -math.Pi + w.rng.Float64()*2*math.Pi
		r := wc.SpawnMinRadius + w.rng.Float64()*(wc.SpawnMaxRadius-wc.SpawnMinRadius)
		x := wc.RingX + math.Cos(ang)*r
		y := wc.RingY + math.Sin(ang)*r
		ok := true
		for _, s := range w.subs {
			if distance2(x, y, s.X, s.Y) < wc.SafeSpawnSeparation {
				ok = false
				break
			}
		}
		if ok {
			return x, y
		}
	}
	return wc.RingX, wc.RingY
}

// ownedSubLocked resolves a submarine id for a caller, distinguishing
// missing entities from foreign ones.
func (w *World) ownedSubLocked(ownerID uint, subID string) (*Submarine, error) {
	s, ok := w.subs[subID]
	if !ok {
		return nil, NotFoundf("submarine %s not found", subID)
	}
	if s.OwnerID != ownerID {
		return nil, Rulef("submarine %s is not yours", subID)
	}
	return s, nil
}

func (w *World) ownedTorpedoLocked(ownerID uint, torpID string) (*Torpedo, error) {
	t, ok := w.torps[torpID]
	if !ok {
		return nil, NotFoundf("torpedo %s not found", torpID)
	}
	if t.OwnerID != ownerID {
		return nil, Rulef("torpedo %s is not yours", torpID)
	}
	return t, nil
}
