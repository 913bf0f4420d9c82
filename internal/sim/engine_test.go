package sim

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edsabi/AISubBrawl/internal/config"
	"github.com/edsabi/AISubBrawl/internal/telemetry"
)

type recordingDispatcher struct {
	ticks [][]UserEvents
}

func (d *recordingDispatcher) Deliver(batches []UserEvents) {
	d.ticks = append(d.ticks, batches)
}

type flakyPersister struct {
	batches  []PersistBatch
	failures int
}

func (p *flakyPersister) CommitBatch(b PersistBatch) error {
	p.batches = append(p.batches, b)
	if p.failures > 0 {
		p.failures--
		return errors.New("disk full")
	}
	return nil
}

func newTestEngine(t *testing.T, w *World, disp Dispatcher, pers Persister) *Engine {
	t.Helper()
	return NewEngine(w, w.cfg, EngineOptions{
		Dispatcher: disp,
		Persister:  pers,
		Counters:   telemetry.NewCounters(),
		Rand:       rand.New(rand.NewSource(7)),
	})
}

func TestRunTickAdvancesWorldAndDispatches(t *testing.T) {
	w := newTestWorld(t)
	s := addSub(w, "s1", 1, 0, 0, 100)
	s.Throttle = 1

	disp := &recordingDispatcher{}
	e := newTestEngine(t, w, disp, nil)

	e.RunTick(0.1)

	assert.Equal(t, uint64(1), w.Tick())
	assert.InDelta(t, 0.1, w.Now(), 1e-9)
	assert.Greater(t, s.Speed, 0.0, "throttle demand reached the propulsion model")

	require.Len(t, disp.ticks, 1)
	require.Len(t, disp.ticks[0], 1)
	batch := disp.ticks[0][0]
	assert.Equal(t, uint(1), batch.UserID)
	require.NotEmpty(t, batch.Events)
	assert.Equal(t, EventSnapshot, batch.Events[0].Type, "own-state snapshot leads every tick")

	counters := e.Counters().Snapshot()
	assert.Equal(t, uint64(1), counters.Ticks)
	assert.Equal(t, uint64(0), counters.PersistFailures)
}

func TestRunTickSkipsDestroyedBoats(t *testing.T) {
	w := newTestWorld(t)
	wreck := addSub(w, "s1", 1, 123, 0, 100)
	wreck.Destroyed = true
	wreck.Throttle = 1

	e := newTestEngine(t, w, nil, nil)
	e.RunTick(0.1)

	assert.Equal(t, 123.0, wreck.X, "wrecks do not move")
	assert.Equal(t, 0.0, wreck.Speed)
}

func TestRunTickCarriesFailedDeletions(t *testing.T) {
	w := newTestWorld(t)
	addSub(w, "s1", 1, 0, 0, 100)
	w.torps["t1"] = &Torpedo{
		ID:       "t1",
		OwnerID:  1,
		ParentID: "s1",
		Mode:     ModeWire,
		Fuel:     0.05, // expires on the first tick
	}

	pers := &flakyPersister{failures: 1}
	e := newTestEngine(t, w, nil, pers)

	e.RunTick(0.1)
	require.Len(t, pers.batches, 1)
	assert.Equal(t, []string{"t1"}, pers.batches[0].DeletedTorpedoes)
	assert.Equal(t, uint64(1), e.Counters().Snapshot().PersistFailures)
	assert.NotContains(t, w.torps, "t1", "memory stays authoritative despite the failed commit")

	e.RunTick(0.1)
	require.Len(t, pers.batches, 2)
	assert.Equal(t, []string{"t1"}, pers.batches[1].DeletedTorpedoes,
		"the deletion rides along until a commit lands")

	e.RunTick(0.1)
	require.Len(t, pers.batches, 3)
	assert.Empty(t, pers.batches[2].DeletedTorpedoes)
}

func TestRunTickDeliversDeferredEcho(t *testing.T) {
	w := newTestWorld(t)
	addSub(w, "s1", 1, 0, 0, 100)
	addSub(w, "s2", 2, 1000, 0, 100)

	_, err := w.Ping(1, "s1", PingRequest{BeamwidthDeg: 30, MaxRange: 6000})
	require.NoError(t, err)

	disp := &recordingDispatcher{}
	e := newTestEngine(t, w, disp, nil)

	// Round trip for 1000m at 1500m/s is ~1.33s; a one-second tick is too
	// early, the next one covers it.
	e.RunTick(1.0)
	require.Len(t, disp.ticks, 1)
	assert.False(t, hasEventType(disp.ticks[0], EventEcho))

	e.RunTick(1.0)
	require.Len(t, disp.ticks, 2)
	assert.True(t, hasEventType(disp.ticks[1], EventEcho))
}

func hasEventType(batches []UserEvents, typ EventType) bool {
	for _, b := range batches {
		for _, ev := range b.Events {
			if ev.Type == typ {
				return true
			}
		}
	}
	return false
}

func TestClampTickDelta(t *testing.T) {
	interval := 0.1

	assert.Equal(t, 0.1, clampTickDelta(0, interval), "non-positive deltas fall back to one interval")
	assert.Equal(t, 0.1, clampTickDelta(-1, interval))
	assert.Equal(t, 0.1, clampTickDelta(0.1, interval))
	assert.InDelta(t, 0.13, clampTickDelta(0.13, interval), 1e-9, "a slow tick integrates its real elapsed time")
	assert.InDelta(t, interval*maxTickIntervals, clampTickDelta(30.0, interval), 1e-9,
		"a suspended process never integrates the whole gap in one step")
}

func TestRunTickProximityDetonationBroadcasts(t *testing.T) {
	cfg := config.Default()
	w := NewWorld(cfg, rand.New(rand.NewSource(3)))
	addSub(w, "s1", 1, -500, 0, 100)
	victim := addSub(w, "s2", 2, 10, 0, 100)

	w.torps["t1"] = &Torpedo{
		ID:          "t1",
		OwnerID:     1,
		ParentID:    "s1",
		Mode:        ModeAutonomous,
		Fuel:        100,
		Depth:       100,
		TargetDepth: 100,
		LaunchedAt:  -10, // long past the arming delay
	}

	disp := &recordingDispatcher{}
	e := newTestEngine(t, w, disp, nil)
	e.RunTick(0.1)

	assert.True(t, hasEventType(disp.ticks[0], EventExplosion))
	assert.Less(t, victim.Health, 100.0)
	assert.NotContains(t, w.torps, "t1")
}
