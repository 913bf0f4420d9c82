package sim

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edsabi/AISubBrawl/internal/config"
)

func newTestWorld(t *testing.T) *World {
	t.Helper()
	return NewWorld(config.Default(), rand.New(rand.NewSource(42)))
}

func addSub(w *World, id string, owner uint, x, y, depth float64) *Submarine {
	s := &Submarine{
		ID:      id,
		OwnerID: owner,
		X:       x,
		Y:       y,
		Depth:   depth,
		Battery: 80,
		Health:  100,
	}
	w.subs[id] = s
	return s
}

func TestRegisterSubmarineSpawnsInsideAnnulus(t *testing.T) {
	w := newTestWorld(t)
	wc := w.cfg.World

	for i := 0; i < 5; i++ {
		s := w.RegisterSubmarine(uint(i + 1))
		r := distance2(s.X, s.Y, wc.RingX, wc.RingY)
		assert.GreaterOrEqual(t, r, wc.SpawnMinRadius)
		assert.LessOrEqual(t, r, wc.SpawnMaxRadius)
		assert.GreaterOrEqual(t, s.Battery, w.cfg.Sub.Battery.InitialMin)
		assert.LessOrEqual(t, s.Battery, w.cfg.Sub.Battery.InitialMax)
		assert.Equal(t, 100.0, s.Health)
	}
}

func TestSetControlValidation(t *testing.T) {
	w := newTestWorld(t)
	addSub(w, "s1", 1, 0, 0, 100)

	bad := 1.5
	err := w.SetControl(1, "s1", ControlInput{Throttle: &bad})
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))

	rudder := 45.0
	err = w.SetControl(1, "s1", ControlInput{RudderDeg: &rudder})
	assert.Equal(t, KindValidation, KindOf(err))

	ok := 0.7
	require.NoError(t, w.SetControl(1, "s1", ControlInput{Throttle: &ok}))
	assert.Equal(t, 0.7, w.subs["s1"].Throttle)

	// Rudder commands normalize against the hard-stop angle.
	rudder = 15.0
	require.NoError(t, w.SetControl(1, "s1", ControlInput{RudderDeg: &rudder}))
	assert.InDelta(t, 0.5, w.subs["s1"].RudderCmd, 1e-9)
}

func TestSetControlRejectedCommandMutatesNothing(t *testing.T) {
	w := newTestWorld(t)
	s := addSub(w, "s1", 1, 0, 0, 100)
	s.Throttle = 0.2
	s.Planes = -0.3
	hold := 120.0
	s.TargetDepth = &hold

	goodThrottle := 0.9
	badPlanes := 5.0
	err := w.SetControl(1, "s1", ControlInput{Throttle: &goodThrottle, Planes: &badPlanes})
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))

	assert.Equal(t, 0.2, s.Throttle, "the valid field of a rejected command must not land")
	assert.Equal(t, -0.3, s.Planes)

	goodRudder := 10.0
	badDepth := -5.0
	depthPtr := &badDepth
	err = w.SetControl(1, "s1", ControlInput{RudderDeg: &goodRudder, TargetDepth: &depthPtr})
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))
	assert.Equal(t, 0.0, s.RudderCmd)
	require.NotNil(t, s.TargetDepth)
	assert.Equal(t, 120.0, *s.TargetDepth)
}

func TestSetControlOwnershipAndMissing(t *testing.T) {
	w := newTestWorld(t)
	addSub(w, "s1", 1, 0, 0, 100)

	v := 0.5
	err := w.SetControl(2, "s1", ControlInput{Throttle: &v})
	assert.Equal(t, KindRule, KindOf(err), "someone else's boat refuses commands")

	err = w.SetControl(1, "nope", ControlInput{Throttle: &v})
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestSetControlDepthHoldClear(t *testing.T) {
	w := newTestWorld(t)
	addSub(w, "s1", 1, 0, 0, 100)

	depth := 200.0
	ptr := &depth
	require.NoError(t, w.SetControl(1, "s1", ControlInput{TargetDepth: &ptr}))
	require.NotNil(t, w.subs["s1"].TargetDepth)
	assert.Equal(t, 200.0, *w.subs["s1"].TargetDepth)

	var cleared *float64
	require.NoError(t, w.SetControl(1, "s1", ControlInput{TargetDepth: &cleared}))
	assert.Nil(t, w.subs["s1"].TargetDepth)
}

func TestSetSnorkelDepthGate(t *testing.T) {
	w := newTestWorld(t)
	s := addSub(w, "s1", 1, 0, 0, 100)

	err := w.SetSnorkel(1, "s1", true)
	assert.Equal(t, KindRule, KindOf(err), "too deep to raise the mast")

	s.Depth = 10
	require.NoError(t, w.SetSnorkel(1, "s1", true))
	assert.True(t, s.Snorkeling)
	require.NoError(t, w.SetSnorkel(1, "s1", false))
	assert.False(t, s.Snorkeling)
}

func TestTriggerBlowConsumesCharge(t *testing.T) {
	w := newTestWorld(t)
	s := addSub(w, "s1", 1, 0, 0, 300)
	s.BlowCharges = 1

	require.NoError(t, w.TriggerBlow(1, "s1"))
	assert.True(t, s.BlowActive)
	assert.Equal(t, 0.0, s.BlowCharges)
	assert.Equal(t, w.cfg.Sub.EmergencyBlow.DurationSec, s.BlowUntil)

	err := w.TriggerBlow(1, "s1")
	assert.Equal(t, KindRule, KindOf(err), "no charge left")
}

func TestPingQueuesDeferredEcho(t *testing.T) {
	w := newTestWorld(t)
	addSub(w, "s1", 1, 0, 0, 100)
	addSub(w, "s2", 2, 1000, 0, 100)

	cost, err := w.Ping(1, "s1", PingRequest{BeamwidthDeg: 30, MaxRange: 6000})
	require.NoError(t, err)
	assert.InDelta(t, 1.0+30*0.01, cost, 1e-9)
	assert.InDelta(t, 80-cost, w.subs["s1"].Battery, 1e-9)

	require.Len(t, w.echoes, 1)
	echo := w.echoes[0]
	assert.InDelta(t, 2*1000/w.cfg.Sonar.Active.SoundSpeed, echo.FireAt, 1e-9,
		"echo arrival depends on actual target range, not the requested max")
	assert.InDelta(t, 18.0-1000.0/400.0, echo.EchoLevel, 1e-9)
	assert.Equal(t, uint(1), echo.OwnerID)
}

func TestPingCooldownAndBatteryGate(t *testing.T) {
	w := newTestWorld(t)
	s := addSub(w, "s1", 1, 0, 0, 100)

	_, err := w.Ping(1, "s1", PingRequest{BeamwidthDeg: 20, MaxRange: 2000})
	require.NoError(t, err)

	_, err = w.Ping(1, "s1", PingRequest{BeamwidthDeg: 20, MaxRange: 2000})
	assert.Equal(t, KindRule, KindOf(err), "sonar cooldown")

	s.pingReadyAt = 0
	s.Battery = w.cfg.Sonar.Active.MinBattery - 1
	_, err = w.Ping(1, "s1", PingRequest{BeamwidthDeg: 20, MaxRange: 2000})
	assert.Equal(t, KindRule, KindOf(err), "battery floor")

	_, err = w.Ping(1, "s1", PingRequest{BeamwidthDeg: 0, MaxRange: 2000})
	assert.Equal(t, KindValidation, KindOf(err))
	_, err = w.Ping(1, "s1", PingRequest{BeamwidthDeg: 400, MaxRange: 2000})
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestPingIsHeardByNearbyBoats(t *testing.T) {
	w := newTestWorld(t)
	addSub(w, "s1", 1, 0, 0, 100)
	addSub(w, "s2", 2, 1000, 0, 100)

	_, err := w.Ping(1, "s1", PingRequest{BeamwidthDeg: 90, MaxRange: 6000})
	require.NoError(t, err)

	require.Len(t, w.outbox, 1)
	ev := w.outbox[0]
	assert.Equal(t, uint(2), ev.UserID)
	assert.Equal(t, EventContact, ev.Type)
	payload := ev.Payload.(ContactPayload)
	assert.Equal(t, "active_ping_detected", payload.Kind)
	assert.InDelta(t, 5.0-1000.0/800.0, payload.SNR, 1e-9)
}

func TestLaunchTorpedoDebitsBatteryAtomically(t *testing.T) {
	w := newTestWorld(t)
	s := addSub(w, "s1", 1, 100, 200, 150)

	torp, err := w.LaunchTorpedo(1, "s1", LaunchRequest{})
	require.NoError(t, err)

	cost := w.cfg.Torpedo.LaunchCostBase + w.cfg.Torpedo.DefaultWire*w.cfg.Torpedo.LaunchCostPerM
	assert.InDelta(t, 80-cost, s.Battery, 1e-9)

	assert.Equal(t, ModeWire, torp.Mode)
	assert.Equal(t, w.cfg.Torpedo.DefaultWire, torp.WireLength)
	assert.Equal(t, w.cfg.Torpedo.LifetimeSec, torp.Fuel)
	assert.InDelta(t, 100+w.cfg.Torpedo.NoseOffset, torp.X, 1e-9, "spawns ahead of the bow")
	assert.Equal(t, 150.0, torp.Depth)
	require.Contains(t, w.torps, torp.ID)
}

func TestLaunchTorpedoWireClampAndBatteryGate(t *testing.T) {
	w := newTestWorld(t)
	s := addSub(w, "s1", 1, 0, 0, 150)

	torp, err := w.LaunchTorpedo(1, "s1", LaunchRequest{WireLength: 99999})
	require.NoError(t, err)
	assert.Equal(t, w.cfg.Torpedo.MaxWire, torp.WireLength)

	s.Battery = 0.5
	_, err = w.LaunchTorpedo(1, "s1", LaunchRequest{})
	assert.Equal(t, KindRule, KindOf(err))
	assert.Equal(t, 0.5, s.Battery, "a refused launch leaves the battery alone")
}

func TestTorpedoGuidanceRequiresWire(t *testing.T) {
	w := newTestWorld(t)
	addSub(w, "s1", 1, 0, 0, 150)
	torp, err := w.LaunchTorpedo(1, "s1", LaunchRequest{WireLength: 500})
	require.NoError(t, err)

	hdg := radians(90)
	got, err := w.SetTorpedoHeading(1, torp.ID, TorpedoHeadingInput{Heading: &hdg, DtHint: 1})
	require.NoError(t, err)
	assert.InDelta(t, radians(w.cfg.Torpedo.TurnRateDeg), got, 1e-9,
		"one command turns at most one turn-rate budget")

	require.NoError(t, w.SetTorpedoDepth(1, torp.ID, 300))
	require.NoError(t, w.SetTorpedoSpeed(1, torp.ID, 20))

	w.torps[torp.ID].loseWire()

	_, err = w.SetTorpedoHeading(1, torp.ID, TorpedoHeadingInput{Heading: &hdg})
	assert.Equal(t, KindRule, KindOf(err))
	assert.Equal(t, KindRule, KindOf(w.SetTorpedoDepth(1, torp.ID, 100)))
	assert.Equal(t, KindRule, KindOf(w.SetTorpedoSpeed(1, torp.ID, 10)))
	_, err = w.ToggleTorpedoPing(1, torp.ID)
	assert.Equal(t, KindRule, KindOf(err))
}

func TestDetonateRemovesTorpedoAndDamages(t *testing.T) {
	w := newTestWorld(t)
	addSub(w, "s1", 1, 0, 0, 150)
	victim := addSub(w, "s2", 2, 30, 0, 150)

	torp, err := w.LaunchTorpedo(1, "s1", LaunchRequest{})
	require.NoError(t, err)

	affected, err := w.Detonate(1, torp.ID)
	require.NoError(t, err)
	assert.Greater(t, affected, 0)
	assert.Less(t, victim.Health, 100.0)

	assert.NotContains(t, w.torps, torp.ID)
	assert.Contains(t, w.pendingDeletes, torp.ID)

	// Explosion events queued for both users.
	users := map[uint]bool{}
	for _, ev := range w.outbox {
		require.Equal(t, EventExplosion, ev.Type)
		users[ev.UserID] = true
	}
	assert.True(t, users[1])
	assert.True(t, users[2])
}

func TestSnapshotPopsDueEchoesOnly(t *testing.T) {
	w := newTestWorld(t)
	addSub(w, "s1", 1, 0, 0, 100)
	w.echoes = []pendingEcho{
		{FireAt: 0.05, ObserverSubID: "s1", OwnerID: 1},
		{FireAt: 5.0, ObserverSubID: "s1", OwnerID: 1},
	}

	snap := w.takeSnapshot(0.1)
	require.Len(t, snap.dueEchoes, 1)
	assert.Equal(t, 0.05, snap.dueEchoes[0].FireAt)
	require.Len(t, w.echoes, 1)
	assert.Equal(t, 5.0, w.echoes[0].FireAt)
}

func TestCommitPreservesIntentWrites(t *testing.T) {
	w := newTestWorld(t)
	s := addSub(w, "s1", 1, 0, 0, 100)

	snap := w.takeSnapshot(0.1)

	// A command lands while the tick is computing.
	throttle := 0.9
	require.NoError(t, w.SetControl(1, "s1", ControlInput{Throttle: &throttle}))

	next := snap.subs[0]
	next.X = 42
	next.Speed = 3
	w.commit(&tickResult{tick: snap.tick, now: snap.now + snap.dt, subs: []Submarine{next}})

	assert.Equal(t, 42.0, s.X, "kinematics come from the tick")
	assert.Equal(t, 3.0, s.Speed)
	assert.Equal(t, 0.9, s.Throttle, "the mid-tick command survives the commit")
	assert.Equal(t, uint64(1), w.tick)
	assert.InDelta(t, 0.1, w.now, 1e-9)
}
