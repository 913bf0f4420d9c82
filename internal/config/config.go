package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config is the merged, immutable runtime configuration. It is assembled
// once at startup and passed by reference into every subsystem; nothing
// mutates it after Load returns.
type Config struct {
	TickHz   int           `json:"tick_hz" mapstructure:"tick_hz"`
	World    WorldConfig   `json:"world" mapstructure:"world"`
	Sub      SubConfig     `json:"sub" mapstructure:"sub"`
	Torpedo  TorpedoConfig `json:"torpedo" mapstructure:"torpedo"`
	Sonar    SonarConfig   `json:"sonar" mapstructure:"sonar"`
	LogLevel string        `json:"log_level" mapstructure:"log_level"`
	Listen   string        `json:"listen" mapstructure:"listen"`
	Database string        `json:"database" mapstructure:"database"`
}

// WorldConfig describes the playable ring and spawn placement rules.
type WorldConfig struct {
	RingX               float64 `json:"ring_x" mapstructure:"ring_x"`
	RingY               float64 `json:"ring_y" mapstructure:"ring_y"`
	RingRadius          float64 `json:"ring_radius" mapstructure:"ring_radius"`
	SpawnMinRadius      float64 `json:"spawn_min_r" mapstructure:"spawn_min_r"`
	SpawnMaxRadius      float64 `json:"spawn_max_r" mapstructure:"spawn_max_r"`
	SafeSpawnSeparation float64 `json:"safe_spawn_separation" mapstructure:"safe_spawn_separation"`
}

// BatteryConfig tunes charge, drain, and snorkel recharge rates.
type BatteryConfig struct {
	Max                 float64 `json:"max" mapstructure:"max"`
	InitialMin          float64 `json:"initial_min" mapstructure:"initial_min"`
	InitialMax          float64 `json:"initial_max" mapstructure:"initial_max"`
	DrainPerThrottleSec float64 `json:"drain_per_throttle_per_s" mapstructure:"drain_per_throttle_per_s"`
	SurfaceDrainSec     float64 `json:"surface_drain_per_s" mapstructure:"surface_drain_per_s"`
	RechargePerSec      float64 `json:"recharge_per_s_snorkel" mapstructure:"recharge_per_s_snorkel"`
}

// BlowConfig tunes the emergency ballast blow.
type BlowConfig struct {
	DurationSec    float64 `json:"duration_s" mapstructure:"duration_s"`
	UpwardMps      float64 `json:"upward_mps" mapstructure:"upward_mps"`
	MaxCharges     float64 `json:"max_charges" mapstructure:"max_charges"`
	RechargePerSec float64 `json:"recharge_per_s_at_snorkel" mapstructure:"recharge_per_s_at_snorkel"`
}

// SubConfig tunes submarine kinematics and resources.
type SubConfig struct {
	MaxSpeed          float64       `json:"max_speed" mapstructure:"max_speed"`
	AccelMps2         float64       `json:"accel_mps2" mapstructure:"accel_mps2"`
	YawRateDeg        float64       `json:"yaw_rate_deg_s" mapstructure:"yaw_rate_deg_s"`
	PitchRateDeg      float64       `json:"pitch_rate_deg_s" mapstructure:"pitch_rate_deg_s"`
	MaxRudderDeg      float64       `json:"max_rudder_deg" mapstructure:"max_rudder_deg"`
	RudderRateDeg     float64       `json:"rudder_rate_deg_s" mapstructure:"rudder_rate_deg_s"`
	PlanesEffect      float64       `json:"planes_effect" mapstructure:"planes_effect"`
	NeutralBias       float64       `json:"neutral_bias" mapstructure:"neutral_bias"`
	LiftGain          float64       `json:"lift_gain" mapstructure:"lift_gain"`
	MaxDepth          float64       `json:"max_depth" mapstructure:"max_depth"`
	SnorkelDepth      float64       `json:"snorkel_depth" mapstructure:"snorkel_depth"`
	SnorkelHysteresis float64       `json:"snorkel_hysteresis_m" mapstructure:"snorkel_hysteresis_m"`
	CrushDepth        float64       `json:"crush_depth" mapstructure:"crush_depth"`
	CrushDpsPer100m   float64       `json:"crush_dps_per_100m" mapstructure:"crush_dps_per_100m"`
	Battery           BatteryConfig `json:"battery" mapstructure:"battery"`
	EmergencyBlow     BlowConfig    `json:"emergency_blow" mapstructure:"emergency_blow"`
}

// TorpedoConfig tunes torpedo kinematics, guidance, and warhead behavior.
type TorpedoConfig struct {
	Speed          float64 `json:"speed" mapstructure:"speed"`
	MaxSpeed       float64 `json:"max_speed" mapstructure:"max_speed"`
	AccelMps2      float64 `json:"accel_mps2" mapstructure:"accel_mps2"`
	TurnRateDeg    float64 `json:"turn_rate_deg_s" mapstructure:"turn_rate_deg_s"`
	DepthRateMps   float64 `json:"depth_rate_m_s" mapstructure:"depth_rate_m_s"`
	MaxDepth       float64 `json:"max_depth" mapstructure:"max_depth"`
	BlastRadius    float64 `json:"blast_radius" mapstructure:"blast_radius"`
	PeakDamage     float64 `json:"peak_damage" mapstructure:"peak_damage"`
	LifetimeSec    float64 `json:"lifetime_s" mapstructure:"lifetime_s"`
	DefaultWire    float64 `json:"default_wire" mapstructure:"default_wire"`
	MaxWire        float64 `json:"max_wire" mapstructure:"max_wire"`
	NoseOffset     float64 `json:"nose_offset_m" mapstructure:"nose_offset_m"`
	TubeSpacing    float64 `json:"tube_spacing_m" mapstructure:"tube_spacing_m"`
	ArmingDelaySec float64 `json:"arming_delay_s" mapstructure:"arming_delay_s"`
	ProximityFuze  float64 `json:"proximity_fuze_m" mapstructure:"proximity_fuze_m"`
	LaunchCostBase float64 `json:"launch_cost_base" mapstructure:"launch_cost_base"`
	LaunchCostPerM float64 `json:"launch_cost_per_wire_m" mapstructure:"launch_cost_per_wire_m"`
	SeekerRange    float64 `json:"seeker_range" mapstructure:"seeker_range"`
	SeekerBeamDeg  float64 `json:"seeker_beam_deg" mapstructure:"seeker_beam_deg"`
	SelfPingPeriod float64 `json:"self_ping_period_s" mapstructure:"self_ping_period_s"`
}

// PassiveSonarConfig tunes the listening model.
type PassiveSonarConfig struct {
	BaseSNR           float64 `json:"base_snr" mapstructure:"base_snr"`
	SpeedNoiseGain    float64 `json:"speed_noise_gain" mapstructure:"speed_noise_gain"`
	SnorkelBonus      float64 `json:"snorkel_bonus" mapstructure:"snorkel_bonus"`
	BeamwidthDeg      float64 `json:"beamwidth_deg" mapstructure:"beamwidth_deg"`
	BearingJitterDeg  float64 `json:"bearing_jitter_deg" mapstructure:"bearing_jitter_deg"`
	SNRFloor          float64 `json:"snr_floor" mapstructure:"snr_floor"`
	FalloffPerKm      float64 `json:"falloff_per_km" mapstructure:"falloff_per_km"`
	DepthFalloffPer   float64 `json:"depth_falloff_per_200m" mapstructure:"depth_falloff_per_200m"`
	ReportIntervalMin float64 `json:"report_interval_min_s" mapstructure:"report_interval_min_s"`
	ReportIntervalMax float64 `json:"report_interval_max_s" mapstructure:"report_interval_max_s"`
}

// ActiveSonarConfig tunes ping emission, cost, and echo noise.
type ActiveSonarConfig struct {
	MaxRange        float64 `json:"max_range" mapstructure:"max_range"`
	SoundSpeed      float64 `json:"sound_speed" mapstructure:"sound_speed"`
	RangeSigmaM     float64 `json:"rng_sigma_m" mapstructure:"rng_sigma_m"`
	BearingSigmaDeg float64 `json:"brg_sigma_deg" mapstructure:"brg_sigma_deg"`
	CostPerPing     float64 `json:"cost_per_ping" mapstructure:"cost_per_ping"`
	CostPerDegree   float64 `json:"cost_per_degree" mapstructure:"cost_per_degree"`
	MinBattery      float64 `json:"min_battery" mapstructure:"min_battery"`
	CooldownSec     float64 `json:"cooldown_s" mapstructure:"cooldown_s"`
}

// SonarConfig bundles both sensing models.
type SonarConfig struct {
	Passive PassiveSonarConfig `json:"passive" mapstructure:"passive"`
	Active  ActiveSonarConfig  `json:"active" mapstructure:"active"`
}

// Load reads the optional JSON config file from configDir, deep-merges it
// over the defaults, and returns the materialized Config. A missing file is
// not an error; a malformed file is.
func Load(configDir string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("game_config")
	v.SetConfigType("json")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return cfg, nil
}

// Default returns the built-in configuration with no file overrides.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		panic(fmt.Sprintf("config defaults do not unmarshal: %v", err))
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("tick_hz", 10)
	v.SetDefault("log_level", "info")
	v.SetDefault("listen", ":5000")
	v.SetDefault("database", "sub_brawl.sqlite3")

	v.SetDefault("world.ring_x", 0.0)
	v.SetDefault("world.ring_y", 0.0)
	v.SetDefault("world.ring_radius", 6000.0)
	v.SetDefault("world.spawn_min_r", 500.0)
	v.SetDefault("world.spawn_max_r", 4500.0)
	v.SetDefault("world.safe_spawn_separation", 800.0)

	v.SetDefault("sub.max_speed", 6.0)
	v.SetDefault("sub.accel_mps2", 0.5)
	v.SetDefault("sub.yaw_rate_deg_s", 20.0)
	v.SetDefault("sub.pitch_rate_deg_s", 12.0)
	v.SetDefault("sub.max_rudder_deg", 30.0)
	v.SetDefault("sub.rudder_rate_deg_s", 60.0)
	v.SetDefault("sub.planes_effect", 1.0)
	v.SetDefault("sub.neutral_bias", 0.008)
	v.SetDefault("sub.lift_gain", 0.45)
	v.SetDefault("sub.max_depth", 900.0)
	v.SetDefault("sub.snorkel_depth", 15.0)
	v.SetDefault("sub.snorkel_hysteresis_m", 2.0)
	v.SetDefault("sub.crush_depth", 500.0)
	v.SetDefault("sub.crush_dps_per_100m", 30.0)

	v.SetDefault("sub.battery.max", 100.0)
	v.SetDefault("sub.battery.initial_min", 40.0)
	v.SetDefault("sub.battery.initial_max", 80.0)
	v.SetDefault("sub.battery.drain_per_throttle_per_s", 0.02)
	v.SetDefault("sub.battery.surface_drain_per_s", 0.004)
	v.SetDefault("sub.battery.recharge_per_s_snorkel", 0.25)

	v.SetDefault("sub.emergency_blow.duration_s", 10.0)
	v.SetDefault("sub.emergency_blow.upward_mps", 5.0)
	v.SetDefault("sub.emergency_blow.max_charges", 1.0)
	v.SetDefault("sub.emergency_blow.recharge_per_s_at_snorkel", 0.06)

	v.SetDefault("torpedo.speed", 12.0)
	v.SetDefault("torpedo.max_speed", 24.0)
	v.SetDefault("torpedo.accel_mps2", 2.0)
	v.SetDefault("torpedo.turn_rate_deg_s", 30.0)
	v.SetDefault("torpedo.depth_rate_m_s", 6.0)
	v.SetDefault("torpedo.max_depth", 900.0)
	v.SetDefault("torpedo.blast_radius", 60.0)
	v.SetDefault("torpedo.peak_damage", 100.0)
	v.SetDefault("torpedo.lifetime_s", 240.0)
	v.SetDefault("torpedo.default_wire", 600.0)
	v.SetDefault("torpedo.max_wire", 1500.0)
	v.SetDefault("torpedo.nose_offset_m", 12.0)
	v.SetDefault("torpedo.tube_spacing_m", 2.0)
	v.SetDefault("torpedo.arming_delay_s", 1.0)
	v.SetDefault("torpedo.proximity_fuze_m", 25.0)
	v.SetDefault("torpedo.launch_cost_base", 1.0)
	v.SetDefault("torpedo.launch_cost_per_wire_m", 0.002)
	v.SetDefault("torpedo.seeker_range", 800.0)
	v.SetDefault("torpedo.seeker_beam_deg", 60.0)
	v.SetDefault("torpedo.self_ping_period_s", 3.0)

	v.SetDefault("sonar.passive.base_snr", 8.0)
	v.SetDefault("sonar.passive.speed_noise_gain", 0.6)
	v.SetDefault("sonar.passive.snorkel_bonus", 8.0)
	v.SetDefault("sonar.passive.beamwidth_deg", 60.0)
	v.SetDefault("sonar.passive.bearing_jitter_deg", 3.0)
	v.SetDefault("sonar.passive.snr_floor", 5.0)
	v.SetDefault("sonar.passive.falloff_per_km", 2.0)
	v.SetDefault("sonar.passive.depth_falloff_per_200m", 1.0)
	v.SetDefault("sonar.passive.report_interval_min_s", 2.0)
	v.SetDefault("sonar.passive.report_interval_max_s", 4.0)

	v.SetDefault("sonar.active.max_range", 6000.0)
	v.SetDefault("sonar.active.sound_speed", 1500.0)
	v.SetDefault("sonar.active.rng_sigma_m", 40.0)
	v.SetDefault("sonar.active.brg_sigma_deg", 1.5)
	v.SetDefault("sonar.active.cost_per_ping", 1.0)
	v.SetDefault("sonar.active.cost_per_degree", 0.01)
	v.SetDefault("sonar.active.min_battery", 5.0)
	v.SetDefault("sonar.active.cooldown_s", 5.0)
}

// TickInterval returns the configured tick period in seconds.
func (c *Config) TickInterval() float64 {
	hz := c.TickHz
	if hz <= 0 {
		hz = 10
	}
	return 1.0 / float64(hz)
}
