// Package flappy implements a headless Flappy Bird world used to score evolved networks.
package flappy

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all world parameters.
type Config struct {
	World   WorldConfig   `yaml:"world"`
	Bird    BirdConfig    `yaml:"bird"`
	Pipe    PipeConfig    `yaml:"pipe"`
	Rewards RewardsConfig `yaml:"rewards"`
	Agent   AgentConfig   `yaml:"agent"`
}

// WorldConfig holds the playfield dimensions.
type WorldConfig struct {
	Width        float64 `yaml:"width"`
	Height       float64 `yaml:"height"`
	GroundHeight float64 `yaml:"ground_height"`
	Speed        float64 `yaml:"speed"` // horizontal scroll per tick, also scales bird physics
}

// BirdConfig holds bird geometry and physics.
type BirdConfig struct {
	X            float64 `yaml:"x"`
	StartY       float64 `yaml:"start_y"`
	Width        float64 `yaml:"width"`
	Height       float64 `yaml:"height"`
	MaxVelocity  float64 `yaml:"max_velocity"`
	DropRate     float64 `yaml:"drop_rate"`     // velocity gained per tick, times speed
	JumpHeight   float64 `yaml:"jump_height"`   // instant rise on flap, times speed
	JumpVelocity float64 `yaml:"jump_velocity"` // velocity after a flap; negative is upwards
}

// PipeConfig holds obstacle geometry and spawning.
type PipeConfig struct {
	Width           float64 `yaml:"width"`
	Gap             float64 `yaml:"gap"`
	GapOffset       float64 `yaml:"gap_offset"`      // max vertical shift of the gap centre
	SpawnFrequency  float64 `yaml:"spawn_frequency"` // ticks between spawns times speed
	OffScreenOffset float64 `yaml:"off_screen_offset"`
}

// RewardsConfig holds the fitness shaping terms.
type RewardsConfig struct {
	Alive   float64 `yaml:"alive"`   // per tick survived
	Score   float64 `yaml:"score"`   // entering and leaving a gap
	Penalty float64 `yaml:"penalty"` // touching the ceiling or the ground
}

// AgentConfig controls how a network drives the bird.
type AgentConfig struct {
	FlapThreshold   float64 `yaml:"flap_threshold"`
	NormalizeInputs bool    `yaml:"normalize_inputs"`
	MaxTicks        int     `yaml:"max_ticks"`
}

// DefaultConfig returns the embedded defaults.
func DefaultConfig() *Config {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		panic(fmt.Sprintf("flappy: parsing embedded defaults: %v", err))
	}
	return cfg
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first parameter that would make the world degenerate.
func (c *Config) Validate() error {
	switch {
	case c.World.Width <= 0 || c.World.Height <= 0:
		return fmt.Errorf("world dimensions must be positive")
	case c.World.GroundHeight < 0 || c.World.GroundHeight >= c.World.Height:
		return fmt.Errorf("ground_height must be in [0, height)")
	case c.World.Speed <= 0:
		return fmt.Errorf("speed must be positive")
	case c.Bird.Width <= 0 || c.Bird.Height <= 0:
		return fmt.Errorf("bird dimensions must be positive")
	case c.Pipe.Width <= 0 || c.Pipe.Gap <= c.Bird.Height:
		return fmt.Errorf("pipe gap must be taller than the bird")
	case c.Pipe.GapOffset < 0:
		return fmt.Errorf("gap_offset cannot be negative")
	case c.Pipe.SpawnFrequency < c.World.Speed:
		return fmt.Errorf("spawn_frequency must be at least speed")
	case c.Agent.MaxTicks < 0:
		return fmt.Errorf("max_ticks cannot be negative")
	}
	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// spawnInterval is the number of ticks between two pipe pairs.
func (c *Config) spawnInterval() int {
	return max(1, int(c.Pipe.SpawnFrequency/c.World.Speed))
}

// groundY is the top edge of the ground.
func (c *Config) groundY() float64 {
	return c.World.Height - c.World.GroundHeight
}
