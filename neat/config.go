package neat

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/ini.v1"
)

// Config stores the configuration parameters for the NEAT algorithm.
type Config struct {
	Neat         NeatConfig
	Genome       GenomeConfig
	Reproduction ReproductionConfig
	SpeciesSet   SpeciesSetConfig
	Stagnation   StagnationConfig
}

// NeatConfig holds parameters specific to the NEAT algorithm itself.
type NeatConfig struct {
	PopSize              int     `ini:"pop_size"`
	FitnessCriterion     string  `ini:"fitness_criterion"` // max, min or mean
	FitnessThreshold     float64 `ini:"fitness_threshold"`
	NoFitnessTermination bool    `ini:"no_fitness_termination"`
	ResetOnExtinction    bool    `ini:"reset_on_extinction"`
	MaxGenerations       int     `ini:"max_generations"` // 0 runs until the fitness threshold is met
	Seed                 int64   `ini:"seed"`            // 0 seeds from the clock
	Workers              int     `ini:"workers"`         // concurrent fitness evaluations
}

// GenomeConfig holds parameters specific to the structure and mutation of genomes.
type GenomeConfig struct {
	NumInputs         int    `ini:"num_inputs"`
	NumOutputs        int    `ini:"num_outputs"`
	NumHidden         int    `ini:"num_hidden"`
	BiasNode          bool   `ini:"bias_node"`
	AllowRecurrent    bool   `ini:"allow_recurrent"`
	InitialConnection string `ini:"initial_connection"` // unconnected, full, partial <fraction>
	HiddenActivation  string `ini:"hidden_activation"`
	OutputActivation  string `ini:"output_activation"`
	SplitActivation   string `ini:"split_activation"` // nodes created by add-node; keep it linear to preserve the network function
	Aggregation       string `ini:"aggregation"`

	CompatibilityExcessCoefficient   float64 `ini:"compatibility_excess_coefficient"`
	CompatibilityDisjointCoefficient float64 `ini:"compatibility_disjoint_coefficient"`
	CompatibilityWeightCoefficient   float64 `ini:"compatibility_weight_coefficient"`
	CompatibilityNormalizeThreshold  int     `ini:"compatibility_normalize_threshold"`

	// Probability that each operator is applied to an offspring.
	NodeAddProb       float64 `ini:"node_add_prob"`
	ConnAddProb       float64 `ini:"conn_add_prob"`
	WeightPerturbProb float64 `ini:"weight_perturb_prob"`
	ToggleEnableProb  float64 `ini:"toggle_enable_prob"`

	WeightInitMean    float64 `ini:"weight_init_mean"`
	WeightInitStdev   float64 `ini:"weight_init_stdev"`
	WeightInitType    string  `ini:"weight_init_type"` // gaussian or uniform
	WeightMutateRate  float64 `ini:"weight_mutate_rate"`
	WeightReplaceRate float64 `ini:"weight_replace_rate"`
	WeightMutatePower float64 `ini:"weight_mutate_power"`
	WeightMaxValue    float64 `ini:"weight_max_value"`
	WeightMinValue    float64 `ini:"weight_min_value"`

	EnabledMutateRate  float64 `ini:"enabled_mutate_rate"`
	DisableInheritProb float64 `ini:"disable_inherit_prob"`

	// Derived by Validate.
	InputKeys  []int `ini:"-"`
	OutputKeys []int `ini:"-"`
	BiasKey    int   `ini:"-"` // 0 when there is no bias node
}

// ReproductionConfig holds parameters related to reproduction.
type ReproductionConfig struct {
	Elitism              int     `ini:"elitism"`
	SurvivalThreshold    float64 `ini:"survival_threshold"`
	MinSpeciesSize       int     `ini:"min_species_size"`
	CrossoverMaxDistance float64 `ini:"crossover_max_distance"` // 0 disables the eligibility check
}

// SpeciesSetConfig holds parameters related to speciation.
type SpeciesSetConfig struct {
	CompatibilityThreshold float64 `ini:"compatibility_threshold"`
}

// StagnationConfig holds parameters related to species stagnation.
type StagnationConfig struct {
	SpeciesFitnessFunc string `ini:"species_fitness_func"`
	MaxStagnation      int    `ini:"max_stagnation"`
	SpeciesElitism     int    `ini:"species_elitism"`
}

// DefaultConfig returns a configuration with the classic NEAT parameters for a
// network of the given shape. The returned config is already validated.
func DefaultConfig(numInputs, numOutputs int) *Config {
	c := &Config{
		Neat: NeatConfig{
			PopSize:          150,
			FitnessCriterion: "max",
			FitnessThreshold: 100,
			MaxGenerations:   100,
			Workers:          4,
		},
		Genome: GenomeConfig{
			NumInputs:                        numInputs,
			NumOutputs:                       numOutputs,
			BiasNode:                         true,
			InitialConnection:                "full",
			HiddenActivation:                 "tanh",
			OutputActivation:                 "tanh",
			SplitActivation:                  "identity",
			Aggregation:                      "sum",
			CompatibilityExcessCoefficient:   1.0,
			CompatibilityDisjointCoefficient: 1.0,
			CompatibilityWeightCoefficient:   0.4,
			CompatibilityNormalizeThreshold:  20,
			NodeAddProb:                      0.03,
			ConnAddProb:                      0.05,
			WeightPerturbProb:                0.8,
			ToggleEnableProb:                 0.01,
			WeightInitMean:                   0.0,
			WeightInitStdev:                  1.0,
			WeightInitType:                   "gaussian",
			WeightMutateRate:                 0.9,
			WeightReplaceRate:                0.1,
			WeightMutatePower:                0.5,
			WeightMaxValue:                   30,
			WeightMinValue:                   -30,
			EnabledMutateRate:                0.01,
			DisableInheritProb:               0.75,
		},
		Reproduction: ReproductionConfig{
			Elitism:           1,
			SurvivalThreshold: 0.2,
			MinSpeciesSize:    1,
		},
		SpeciesSet: SpeciesSetConfig{CompatibilityThreshold: 3.0},
		Stagnation: StagnationConfig{
			SpeciesFitnessFunc: "max",
			MaxStagnation:      15,
			SpeciesElitism:     1,
		},
	}
	if err := c.Validate(); err != nil {
		// Only reachable with a non-positive shape.
		panic(err)
	}
	return c
}

// LoadConfig loads configuration parameters from an INI file. Keys missing from the
// file keep the values of DefaultConfig.
func LoadConfig(filePath string) (*Config, error) {
	cfg, err := ini.LoadSources(ini.LoadOptions{
		IgnoreInlineComment:         true,
		UnescapeValueCommentSymbols: true,
	}, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file '%s': %w", filePath, err)
	}
	return configFromINI(cfg)
}

// ParseConfig loads configuration parameters from INI data held in memory.
func ParseConfig(data []byte) (*Config, error) {
	cfg, err := ini.LoadSources(ini.LoadOptions{
		IgnoreInlineComment:         true,
		UnescapeValueCommentSymbols: true,
	}, data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return configFromINI(cfg)
}

func configFromINI(cfg *ini.File) (*Config, error) {
	genome := cfg.Section("DefaultGenome")
	// The shape only seeds the defaults; MapTo below applies the real values and
	// Validate rejects non-positive ones.
	config := DefaultConfig(
		max(1, genome.Key("num_inputs").MustInt(1)),
		max(1, genome.Key("num_outputs").MustInt(1)),
	)

	sections := []struct {
		name   string
		target interface{}
	}{
		{"NEAT", &config.Neat},
		{"DefaultGenome", &config.Genome},
		{"DefaultReproduction", &config.Reproduction},
		{"DefaultSpeciesSet", &config.SpeciesSet},
		{"DefaultStagnation", &config.Stagnation},
	}
	for _, s := range sections {
		if err := cfg.Section(s.name).MapTo(s.target); err != nil {
			return nil, fmt.Errorf("failed to map [%s] section: %w", s.name, err)
		}
	}

	config.Genome.WeightInitType = cleanIniString(config.Genome.WeightInitType)
	config.Genome.InitialConnection = cleanIniString(config.Genome.InitialConnection)
	config.Genome.HiddenActivation = cleanIniString(config.Genome.HiddenActivation)
	config.Genome.OutputActivation = cleanIniString(config.Genome.OutputActivation)
	config.Genome.SplitActivation = cleanIniString(config.Genome.SplitActivation)
	config.Genome.Aggregation = cleanIniString(config.Genome.Aggregation)
	config.Neat.FitnessCriterion = cleanIniString(config.Neat.FitnessCriterion)
	config.Stagnation.SpeciesFitnessFunc = cleanIniString(config.Stagnation.SpeciesFitnessFunc)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks every option and derives the node key layout. It returns a
// *ConfigError describing the first invalid value.
func (c *Config) Validate() error {
	g := &c.Genome
	if c.Neat.PopSize <= 0 {
		return &ConfigError{"pop_size", "must be positive"}
	}
	if c.Neat.MaxGenerations < 0 {
		return &ConfigError{"max_generations", "cannot be negative"}
	}
	if c.Neat.Workers <= 0 {
		return &ConfigError{"workers", "must be positive"}
	}
	if _, ok := fitnessCriteria[strings.ToLower(c.Neat.FitnessCriterion)]; !ok {
		return &ConfigError{"fitness_criterion", fmt.Sprintf("'%s' must be one of max, min, mean", c.Neat.FitnessCriterion)}
	}
	if g.NumInputs <= 0 {
		return &ConfigError{"num_inputs", "must be positive"}
	}
	if g.NumOutputs <= 0 {
		return &ConfigError{"num_outputs", "must be positive"}
	}
	if g.NumHidden < 0 {
		return &ConfigError{"num_hidden", "cannot be negative"}
	}
	if _, err := g.connectionFraction(); err != nil {
		return err
	}
	if _, err := GetActivation(g.HiddenActivation); err != nil {
		return &ConfigError{"hidden_activation", err.Error()}
	}
	if _, err := GetActivation(g.OutputActivation); err != nil {
		return &ConfigError{"output_activation", err.Error()}
	}
	if _, err := GetActivation(g.SplitActivation); err != nil {
		return &ConfigError{"split_activation", err.Error()}
	}
	if _, err := GetAggregation(g.Aggregation); err != nil {
		return &ConfigError{"aggregation", err.Error()}
	}

	for _, nv := range []namedValue{
		{"compatibility_excess_coefficient", g.CompatibilityExcessCoefficient},
		{"compatibility_disjoint_coefficient", g.CompatibilityDisjointCoefficient},
		{"compatibility_weight_coefficient", g.CompatibilityWeightCoefficient},
		{"compatibility_threshold", c.SpeciesSet.CompatibilityThreshold},
		{"weight_init_stdev", g.WeightInitStdev},
		{"weight_mutate_power", g.WeightMutatePower},
		{"crossover_max_distance", c.Reproduction.CrossoverMaxDistance},
	} {
		if nv.value < 0 {
			return &ConfigError{nv.name, "cannot be negative"}
		}
	}
	for _, nv := range []namedValue{
		{"node_add_prob", g.NodeAddProb},
		{"conn_add_prob", g.ConnAddProb},
		{"weight_perturb_prob", g.WeightPerturbProb},
		{"toggle_enable_prob", g.ToggleEnableProb},
		{"weight_mutate_rate", g.WeightMutateRate},
		{"weight_replace_rate", g.WeightReplaceRate},
		{"enabled_mutate_rate", g.EnabledMutateRate},
		{"disable_inherit_prob", g.DisableInheritProb},
		{"survival_threshold", c.Reproduction.SurvivalThreshold},
	} {
		if nv.value < 0 || nv.value > 1 {
			return &ConfigError{nv.name, "must be between 0 and 1"}
		}
	}
	if g.WeightMutateRate+g.WeightReplaceRate > 1 {
		return &ConfigError{"weight_mutate_rate", "plus weight_replace_rate cannot exceed 1"}
	}
	if g.WeightMaxValue < g.WeightMinValue {
		return &ConfigError{"weight_max_value", "cannot be less than weight_min_value"}
	}
	switch strings.ToLower(g.WeightInitType) {
	case "gaussian", "normal", "uniform":
	default:
		return &ConfigError{"weight_init_type", fmt.Sprintf("'%s' must be gaussian or uniform", g.WeightInitType)}
	}
	if c.Reproduction.Elitism < 0 {
		return &ConfigError{"elitism", "cannot be negative"}
	}
	if c.Reproduction.MinSpeciesSize <= 0 {
		return &ConfigError{"min_species_size", "must be positive"}
	}
	if c.Stagnation.MaxStagnation <= 0 {
		return &ConfigError{"max_stagnation", "must be positive"}
	}
	if c.Stagnation.SpeciesElitism < 0 {
		return &ConfigError{"species_elitism", "cannot be negative"}
	}
	if _, ok := StatFunctions[strings.ToLower(c.Stagnation.SpeciesFitnessFunc)]; !ok {
		return &ConfigError{"species_fitness_func", fmt.Sprintf("unknown function '%s'", c.Stagnation.SpeciesFitnessFunc)}
	}

	// Inputs are -1..-n, the bias node follows them, outputs are 0..m-1.
	g.InputKeys = make([]int, g.NumInputs)
	for i := range g.InputKeys {
		g.InputKeys[i] = -(i + 1)
	}
	g.OutputKeys = make([]int, g.NumOutputs)
	for i := range g.OutputKeys {
		g.OutputKeys[i] = i
	}
	g.BiasKey = 0
	if g.BiasNode {
		g.BiasKey = -(g.NumInputs + 1)
	}
	return nil
}

type namedValue struct {
	name  string
	value float64
}

var fitnessCriteria = map[string]func([]float64) float64{
	"max":  MaxFloat,
	"min":  MinFloat,
	"mean": Mean,
}

// connectionFraction parses initial_connection and returns the probability that each
// initial connection is created.
func (gc *GenomeConfig) connectionFraction() (float64, error) {
	parts := strings.Fields(gc.InitialConnection)
	if len(parts) == 0 {
		return 0, &ConfigError{"initial_connection", "is empty"}
	}
	switch parts[0] {
	case "unconnected":
		return 0, nil
	case "full":
		return 1, nil
	case "partial":
		if len(parts) != 2 {
			return 0, &ConfigError{"initial_connection", "partial needs a fraction, e.g. 'partial 0.5'"}
		}
		f, err := strconv.ParseFloat(parts[1], 64)
		if err != nil || f < 0 || f > 1 {
			return 0, &ConfigError{"initial_connection", fmt.Sprintf("invalid partial fraction '%s'", parts[1])}
		}
		return f, nil
	default:
		return 0, &ConfigError{"initial_connection", fmt.Sprintf("invalid type '%s'", parts[0])}
	}
}

// IsInput reports whether key names an input node.
func (gc *GenomeConfig) IsInput(key int) bool {
	return key < 0 && key >= -gc.NumInputs
}

// IsBias reports whether key names the bias node.
func (gc *GenomeConfig) IsBias(key int) bool {
	return gc.BiasNode && key == gc.BiasKey
}

// cleanIniString removes inline comments and trims whitespace from a string read from INI.
func cleanIniString(s string) string {
	if idx := strings.IndexAny(s, "#;"); idx != -1 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}
