package sim

import (
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/edsabi/AISubBrawl/internal/config"
	"github.com/edsabi/AISubBrawl/internal/telemetry"
)

// Dispatcher receives one tick's per-user event batches. Delivery transport
// is the collaborator's concern; the engine never blocks on it.
type Dispatcher interface {
	Deliver(batches []UserEvents)
}

// PersistBatch is one tick's durable write set: a full upsert of the live
// entities plus the ids removed this tick.
type PersistBatch struct {
	Tick             uint64
	Subs             []Submarine
	Torpedoes        []Torpedo
	DeletedTorpedoes []string
}

// Persister commits one batch per tick. A failed commit is retried on the
// following tick; the in-memory world stays authoritative in between.
type Persister interface {
	CommitBatch(batch PersistBatch) error
}

type nopDispatcher struct{}

func (nopDispatcher) Deliver([]UserEvents) {}

type nopPersister struct{}

func (nopPersister) CommitBatch(PersistBatch) error { return nil }

// EngineOptions wires the engine's collaborators. Zero values fall back to
// no-op implementations, which the tests rely on.
type EngineOptions struct {
	Dispatcher Dispatcher
	Persister  Persister
	Counters   *telemetry.Counters
	Logger     zerolog.Logger
	Rand       *rand.Rand
}

// Engine drives the fixed-rate loop: snapshot under the lock, compute pure
// next-state outside it, commit atomically, dispatch events and persistence
// outside the lock again.
type Engine struct {
	world      *World
	cfg        *config.Config
	dispatcher Dispatcher
	persister  Persister
	counters   *telemetry.Counters
	log        zerolog.Logger
	rng        *rand.Rand

	// carriedDeletes holds removal ids whose durable commit failed and
	// must ride along with the next batch.
	carriedDeletes []string
}

// NewEngine builds an engine around a world and its merged config.
func NewEngine(w *World, cfg *config.Config, opts EngineOptions) *Engine {
	if opts.Dispatcher == nil {
		opts.Dispatcher = nopDispatcher{}
	}
	if opts.Persister == nil {
		opts.Persister = nopPersister{}
	}
	if opts.Counters == nil {
		opts.Counters = telemetry.NewCounters()
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Engine{
		world:      w,
		cfg:        cfg,
		dispatcher: opts.Dispatcher,
		persister:  opts.Persister,
		counters:   opts.Counters,
		log:        opts.Logger,
		rng:        opts.Rand,
	}
}

// Counters exposes the read-only diagnostics counters.
func (e *Engine) Counters() *telemetry.Counters { return e.counters }

// maxTickIntervals bounds one tick's integration step. A stalled or
// suspended process resumes with a clamped dt instead of integrating the
// whole gap in a single step.
const maxTickIntervals = 4.0

// Run drives ticks at the configured rate until stop closes. Ticks never
// overlap and are never skipped: a slow tick delays the next one.
func (e *Engine) Run(stop <-chan struct{}) {
	interval := time.Duration(float64(time.Second) * e.cfg.TickInterval())
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			last = now
			e.RunTick(clampTickDelta(dt, e.cfg.TickInterval()))
		}
	}
}

// clampTickDelta keeps a wall-clock elapsed time inside sane integration
// bounds for one tick.
func clampTickDelta(dt, interval float64) float64 {
	if dt <= 0 {
		return interval
	}
	if limit := interval * maxTickIntervals; dt > limit {
		return limit
	}
	return dt
}

// RunTick executes one full tick cycle with the given elapsed time.
func (e *Engine) RunTick(dt float64) {
	tickStart := time.Now()

	snap := e.world.takeSnapshot(dt)
	fetchDone := time.Now()

	res := e.compute(snap)
	computeDone := time.Now()

	e.world.commit(&res)
	commitDone := time.Now()

	e.dispatch(snap, &res)
	dispatchDone := time.Now()

	e.counters.RecordTick(
		fetchDone.Sub(tickStart),
		computeDone.Sub(fetchDone),
		commitDone.Sub(computeDone),
		dispatchDone.Sub(commitDone),
		dispatchDone.Sub(tickStart),
	)
}

// tickResult is the computed next state handed to commit and dispatch.
type tickResult struct {
	tick           uint64
	now            float64
	subs           []Submarine
	torps          []Torpedo
	removedTorpIDs []string
	events         []Event
}

// compute runs every per-tick system against the immutable snapshot. No
// lock is held and nothing here touches the live world.
func (e *Engine) compute(snap snapshot) tickResult {
	now := snap.now + snap.dt
	res := tickResult{tick: snap.tick, now: now}

	// Physics. Destroyed boats pass through untouched and are excluded
	// from every other system.
	res.subs = make([]Submarine, 0, len(snap.subs))
	for _, s := range snap.subs {
		if s.Destroyed {
			res.subs = append(res.subs, s)
			continue
		}
		res.subs = append(res.subs, stepSubmarine(s, snap.dt, now, &e.cfg.Sub))
	}

	subByID := make(map[string]*Submarine, len(res.subs))
	for i := range res.subs {
		subByID[res.subs[i].ID] = &res.subs[i]
	}

	// Torpedo guidance, wire continuity, fuel, fuzing.
	var detonations []Torpedo
	res.torps = make([]Torpedo, 0, len(snap.torps))
	for _, t := range snap.torps {
		next, outcome := stepTorpedo(t, subByID[t.ParentID], res.subs, snap.dt, now, e.cfg)
		switch outcome {
		case torpedoRunning:
			res.torps = append(res.torps, next)
		case torpedoExpired:
			res.removedTorpIDs = append(res.removedTorpIDs, next.ID)
		case torpedoDetonated:
			res.removedTorpIDs = append(res.removedTorpIDs, next.ID)
			detonations = append(detonations, next)
		}
	}

	// Damage resolution for proximity detonations, broadcast to everyone.
	if len(detonations) > 0 {
		subPtrs := make([]*Submarine, 0, len(res.subs))
		for i := range res.subs {
			subPtrs = append(subPtrs, &res.subs[i])
		}
		for _, det := range detonations {
			payload := resolveDetonation(det, subPtrs, &e.cfg.Torpedo, now)
			for _, uid := range snap.users {
				res.events = append(res.events, Event{UserID: uid, Type: EventExplosion, Payload: payload})
			}
		}
	}

	// Sensing over the post-integration state.
	res.events = append(res.events, passiveContacts(res.subs, e.cfg, e.rng, now)...)
	for i := range res.torps {
		res.events = append(res.events, seekerEvents(&res.torps[i], res.subs, &e.cfg.Torpedo, now)...)
	}
	res.events = append(res.events, processEchoes(snap.dueEchoes, res.subs, &e.cfg.Sonar.Active, e.rng, now)...)

	return res
}

// dispatch builds the per-user snapshot events, groups everything by
// recipient, and hands the batches to the transport and storage
// collaborators. Runs outside the world lock.
func (e *Engine) dispatch(snap snapshot, res *tickResult) {
	events := make([]Event, 0, len(res.events)+len(snap.queued)+len(snap.users))

	for _, uid := range snap.users {
		payload := SnapshotPayload{Tick: res.tick, Time: res.now}
		for i := range res.subs {
			if res.subs[i].OwnerID == uid {
				payload.Subs = append(payload.Subs, res.subs[i])
			}
		}
		for i := range res.torps {
			if res.torps[i].OwnerID == uid {
				payload.Torpedoes = append(payload.Torpedoes, res.torps[i])
			}
		}
		events = append(events, Event{UserID: uid, Type: EventSnapshot, Payload: payload})
	}

	events = append(events, snap.queued...)
	events = append(events, res.events...)

	e.dispatcher.Deliver(groupEvents(events))
	e.counters.RecordDispatch(len(events), len(res.subs)+len(res.torps))

	deletes := make([]string, 0, len(e.carriedDeletes)+len(snap.deletes)+len(res.removedTorpIDs))
	deletes = append(deletes, e.carriedDeletes...)
	deletes = append(deletes, snap.deletes...)
	deletes = append(deletes, res.removedTorpIDs...)

	batch := PersistBatch{
		Tick:             res.tick,
		Subs:             res.subs,
		Torpedoes:        res.torps,
		DeletedTorpedoes: deletes,
	}
	if err := e.persister.CommitBatch(batch); err != nil {
		// In-memory state stays authoritative; carry the deletions so the
		// next successful commit converges.
		e.carriedDeletes = deletes
		e.counters.RecordPersistFailure()
		e.log.Error().Err(err).Uint64("tick", res.tick).Msg("persistence commit failed, retrying next tick")
		return
	}
	e.carriedDeletes = nil
}
