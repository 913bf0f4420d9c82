// Package telemetry exposes the simulation loop's read-only diagnostic
// counters. Everything is atomic so the performance endpoint can read while
// the loop writes.
package telemetry

import (
	"sync/atomic"
	"time"
)

// Counters accumulates per-phase tick timings and dispatch volume.
type Counters struct {
	ticks            atomic.Uint64
	fetchMicros      atomic.Int64
	physicsMicros    atomic.Int64
	commitMicros     atomic.Int64
	dispatchMicros   atomic.Int64
	tickMillis       atomic.Int64
	eventsDispatched atomic.Uint64
	lastEntities     atomic.Uint64
	persistFailures  atomic.Uint64
}

// Snapshot is the JSON shape served by the diagnostics endpoint.
type Snapshot struct {
	Ticks            uint64 `json:"ticks"`
	FetchMicros      int64  `json:"fetchMicros"`
	PhysicsMicros    int64  `json:"physicsMicros"`
	CommitMicros     int64  `json:"commitMicros"`
	DispatchMicros   int64  `json:"dispatchMicros"`
	TickMillis       int64  `json:"tickDurationMillis"`
	EventsDispatched uint64 `json:"eventsDispatched"`
	LastEntities     uint64 `json:"lastTickEntities"`
	PersistFailures  uint64 `json:"persistFailures"`
}

// NewCounters returns zeroed counters.
func NewCounters() *Counters {
	return &Counters{}
}

// RecordTick stores one tick's phase durations and totals.
func (c *Counters) RecordTick(fetch, physics, commit, dispatch, total time.Duration) {
	c.ticks.Add(1)
	c.fetchMicros.Store(fetch.Microseconds())
	c.physicsMicros.Store(physics.Microseconds())
	c.commitMicros.Store(commit.Microseconds())
	c.dispatchMicros.Store(dispatch.Microseconds())
	c.tickMillis.Store(total.Milliseconds())
}

// RecordDispatch accumulates delivered events and entity volume.
func (c *Counters) RecordDispatch(events, entities int) {
	if events > 0 {
		c.eventsDispatched.Add(uint64(events))
	}
	if entities < 0 {
		entities = 0
	}
	c.lastEntities.Store(uint64(entities))
}

// RecordPersistFailure counts a failed storage commit.
func (c *Counters) RecordPersistFailure() {
	c.persistFailures.Add(1)
}

// Snapshot copies the counters for serving.
func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		Ticks:            c.ticks.Load(),
		FetchMicros:      c.fetchMicros.Load(),
		PhysicsMicros:    c.physicsMicros.Load(),
		CommitMicros:     c.commitMicros.Load(),
		DispatchMicros:   c.dispatchMicros.Load(),
		TickMillis:       c.tickMillis.Load(),
		EventsDispatched: c.eventsDispatched.Load(),
		LastEntities:     c.lastEntities.Load(),
		PersistFailures:  c.persistFailures.Load(),
	}
}
