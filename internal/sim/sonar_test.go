package sim

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edsabi/AISubBrawl/internal/config"
)

func TestRangeClass(t *testing.T) {
	assert.Equal(t, "short", rangeClass(0))
	assert.Equal(t, "short", rangeClass(1199))
	assert.Equal(t, "medium", rangeClass(1200))
	assert.Equal(t, "medium", rangeClass(2999))
	assert.Equal(t, "long", rangeClass(3000))
}

func TestEchoQualitySigmoid(t *testing.T) {
	assert.InDelta(t, 0.5, echoQuality(10), 1e-9)
	assert.Greater(t, echoQuality(20), echoQuality(10))
	assert.Less(t, echoQuality(0), 0.2)
	assert.Greater(t, echoQuality(40), 0.99)
}

func TestPassiveContactsBeamAndFloorGating(t *testing.T) {
	cfg := config.Default()
	rng := rand.New(rand.NewSource(11))

	subs := []Submarine{
		{ID: "obs", OwnerID: 1, Depth: 100, PassiveBearing: 0},
		{ID: "ahead", OwnerID: 2, X: 500, Depth: 100},
		{ID: "abeam", OwnerID: 3, Y: 500, Depth: 100},
		{ID: "faint", OwnerID: 4, X: 3000, Depth: 600},
	}

	events := passiveContacts(subs, cfg, rng, 10.0)
	require.Len(t, events, 1, "only the in-beam, above-floor target reports")

	ev := events[0]
	assert.Equal(t, uint(1), ev.UserID)
	payload := ev.Payload.(ContactPayload)
	assert.Equal(t, "passive", payload.Kind)
	assert.Equal(t, "obs", payload.ObserverSubID)
	assert.Equal(t, "short", payload.RangeClass)
	assert.InDelta(t, 0.0, payload.Bearing, radians(cfg.Sonar.Passive.BearingJitterDeg)+1e-9)
	assert.GreaterOrEqual(t, payload.SNR, cfg.Sonar.Passive.SNRFloor)
}

func TestPassiveContactsReportInterval(t *testing.T) {
	cfg := config.Default()
	rng := rand.New(rand.NewSource(11))

	subs := []Submarine{
		{ID: "obs", OwnerID: 1, Depth: 100, PassiveBearing: 0, lastContactAt: 9.5},
		{ID: "ahead", OwnerID: 2, X: 500, Depth: 100},
	}

	events := passiveContacts(subs, cfg, rng, 10.0)
	assert.Empty(t, events, "a report half a second after the last one is suppressed")

	events = passiveContacts(subs, cfg, rng, 14.0)
	assert.Len(t, events, 1)
}

func TestProcessEchoesHighQualityReturn(t *testing.T) {
	cfg := config.Default()
	rng := rand.New(rand.NewSource(5))

	subs := []Submarine{{ID: "obs", OwnerID: 1, Heading: radians(45), Depth: 100}}
	due := []pendingEcho{{
		FireAt:        1.0,
		Range:         1000,
		Bearing:       radians(30),
		EchoLevel:     40, // very strong return
		ObserverSubID: "obs",
		OwnerID:       1,
		ObserverDepth: 100,
		TargetDepth:   100,
	}}

	events := processEchoes(due, subs, &cfg.Sonar.Active, rng, 1.4)
	require.Len(t, events, 1)

	payload := events[0].Payload.(EchoPayload)
	assert.Greater(t, payload.Quality, 0.99)
	assert.InDelta(t, 1000.0, payload.Range, 5.0, "strong echoes barely smear the range")
	assert.InDelta(t, radians(30), payload.Bearing, 0.01)
	assert.InDelta(t, radians(30)-radians(45), payload.BearingRelative, 0.01)
	assert.InDelta(t, 0.0, payload.VerticalAngle, 1e-9, "co-depth target sits on the horizontal")
	assert.InDelta(t, 100.0, payload.EstimatedDepth, 15.0)
	assert.Equal(t, uint(1), events[0].UserID)
}

func TestProcessEchoesWeakReturnIsNoisy(t *testing.T) {
	cfg := config.Default()
	rng := rand.New(rand.NewSource(5))

	due := []pendingEcho{{
		Range:         3000,
		EchoLevel:     2, // barely above the noise
		ObserverSubID: "obs",
		OwnerID:       1,
		ObserverDepth: 100,
		TargetDepth:   400,
	}}

	events := processEchoes(due, []Submarine{{ID: "obs", OwnerID: 1}}, &cfg.Sonar.Active, rng, 4.0)
	require.Len(t, events, 1)

	payload := events[0].Payload.(EchoPayload)
	assert.Less(t, payload.Quality, 0.3)
	assert.Greater(t, payload.VerticalAngle, 0.0, "deeper target reads as a downward angle")
}
