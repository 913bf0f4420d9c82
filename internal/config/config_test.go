package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValues(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 10, cfg.TickHz)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 6.0, cfg.Sub.MaxSpeed)
	assert.Equal(t, 900.0, cfg.Sub.MaxDepth)
	assert.Equal(t, 500.0, cfg.Sub.CrushDepth)
	assert.Equal(t, 1500.0, cfg.Torpedo.MaxWire)
	assert.Equal(t, 25.0, cfg.Torpedo.ProximityFuze)
	assert.Equal(t, 1500.0, cfg.Sonar.Active.SoundSpeed)
	assert.Equal(t, 6000.0, cfg.World.RingRadius)
}

func TestTickInterval(t *testing.T) {
	cfg := Default()
	assert.InDelta(t, 0.1, cfg.TickInterval(), 1e-9)

	cfg.TickHz = 20
	assert.InDelta(t, 0.05, cfg.TickInterval(), 1e-9)

	cfg.TickHz = 0
	assert.InDelta(t, 0.1, cfg.TickInterval(), 1e-9, "nonsense rates fall back to the default")
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	data := `{
  "tick_hz": 20,
  "sub": {"max_speed": 8.5},
  "torpedo": {"blast_radius": 90}
}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "game_config.json"), []byte(data), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, 20, cfg.TickHz)
	assert.Equal(t, 8.5, cfg.Sub.MaxSpeed)
	assert.Equal(t, 90.0, cfg.Torpedo.BlastRadius)

	// Untouched keys keep their defaults, including nested siblings.
	assert.Equal(t, 900.0, cfg.Sub.MaxDepth)
	assert.Equal(t, 100.0, cfg.Torpedo.PeakDamage)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.TickHz)
}

func TestLoadMalformedFileFails(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "game_config.json"), []byte("{nope"), 0o644))

	_, err := Load(dir)
	assert.Error(t, err)
}
