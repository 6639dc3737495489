package config

import (
	"bytes"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// Defaults for an evaluation run.
const (
	DefaultBackend    = "cpu"
	DefaultBatchSize  = 128
	DefaultSeed       = 16
	DefaultThreshold  = 0.5
	DefaultLogEvery   = 10
	DefaultPendingCap = 1024
	DefaultDataRoot   = "/mnt/data/medical/luna16/subset9"
	DefaultModelPath  = "LUNA16_resnet.json.gz"
)

// Config captures the runtime knobs for an evaluation run.
type Config struct {
	Backend   string `yaml:"backend"`
	Device    int    `yaml:"device"`
	BatchSize int    `yaml:"batch_size"`
	Seed      int64  `yaml:"seed"`
	// DataRoots are shard directories evaluated together, e.g. several LUNA16 subsets.
	DataRoots   []string `yaml:"data_roots"`
	ModelPath   string   `yaml:"model_path"`
	Threshold   float64  `yaml:"threshold"`
	NumWorkers  int      `yaml:"num_workers"`
	PendingCap  int      `yaml:"pending_cap"`
	Shuffle     bool     `yaml:"shuffle"`
	MaxSamples  int      `yaml:"max_samples"`
	LogEvery    int      `yaml:"log_every"`
	Predictions string   `yaml:"predictions"`
	PlotDir     string   `yaml:"plot_dir"`
}

// Overrides captures CLI supplied values. Zero values leave the config untouched.
type Overrides struct {
	Backend     string
	Device      *int
	BatchSize   int
	Seed        int64
	DataRoots   []string
	ModelPath   string
	Threshold   *float64
	NumWorkers  int
	PendingCap  int
	Shuffle     bool
	MaxSamples  int
	LogEvery    int
	Predictions string
	PlotDir     string
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Backend:    DefaultBackend,
		BatchSize:  DefaultBatchSize,
		Seed:       DefaultSeed,
		DataRoots:  []string{DefaultDataRoot},
		ModelPath:  DefaultModelPath,
		Threshold:  DefaultThreshold,
		LogEvery:   DefaultLogEvery,
		PendingCap: DefaultPendingCap,
	}
}

// Load reads a Config from YAML on top of the defaults. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "open config")
	}

	cfg, err := parse(raw)
	if err != nil {
		return nil, errors.Wrap(err, "parse config")
	}
	return cfg, nil
}

func parse(raw []byte) (*Config, error) {
	cfg := Default()
	if len(bytes.TrimSpace(raw)) == 0 {
		return cfg, nil
	}
	if err := yaml.UnmarshalStrict(raw, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyOverrides updates c using any non-zero override.
func (c *Config) ApplyOverrides(o Overrides) {
	if o.Backend != "" {
		c.Backend = o.Backend
	}
	if o.Device != nil {
		c.Device = *o.Device
	}
	if o.BatchSize > 0 {
		c.BatchSize = o.BatchSize
	}
	if o.Seed != 0 {
		c.Seed = o.Seed
	}
	if len(o.DataRoots) > 0 {
		c.DataRoots = append([]string(nil), o.DataRoots...)
	}
	if o.ModelPath != "" {
		c.ModelPath = o.ModelPath
	}
	if o.Threshold != nil {
		c.Threshold = *o.Threshold
	}
	if o.NumWorkers > 0 {
		c.NumWorkers = o.NumWorkers
	}
	if o.PendingCap > 0 {
		c.PendingCap = o.PendingCap
	}
	if o.Shuffle {
		c.Shuffle = true
	}
	if o.MaxSamples > 0 {
		c.MaxSamples = o.MaxSamples
	}
	if o.LogEvery > 0 {
		c.LogEvery = o.LogEvery
	}
	if o.Predictions != "" {
		c.Predictions = o.Predictions
	}
	if o.PlotDir != "" {
		c.PlotDir = o.PlotDir
	}
}

// Validate verifies the config is runnable.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.Backend == "" {
		return errors.New("backend must be set")
	}
	if c.Device < 0 {
		return errors.Errorf("device must be >= 0 (got %d)", c.Device)
	}
	if c.BatchSize <= 0 {
		return errors.Errorf("batch_size must be > 0 (got %d)", c.BatchSize)
	}
	if len(c.DataRoots) == 0 {
		return errors.New("data_roots must name at least one directory")
	}
	seen := make(map[string]bool, len(c.DataRoots))
	for _, root := range c.DataRoots {
		if root == "" {
			return errors.New("data_roots contains an empty path")
		}
		if seen[root] {
			return errors.Errorf("data_roots lists %s twice", root)
		}
		seen[root] = true
	}
	if c.ModelPath == "" {
		return errors.New("model_path must be set")
	}
	if c.Threshold < 0 || c.Threshold >= 1 {
		return errors.Errorf("threshold must be in [0, 1) (got %g)", c.Threshold)
	}
	if c.NumWorkers < 0 {
		return errors.Errorf("num_workers must be >= 0 (got %d)", c.NumWorkers)
	}
	if c.PendingCap < 0 {
		return errors.Errorf("pending_cap must be >= 0 (got %d)", c.PendingCap)
	}
	if c.MaxSamples < 0 {
		return errors.Errorf("max_samples must be >= 0 (got %d)", c.MaxSamples)
	}
	if c.NumWorkers == 0 {
		c.NumWorkers = 1
	}
	if c.LogEvery <= 0 {
		c.LogEvery = DefaultLogEvery
	}
	if c.PendingCap == 0 {
		c.PendingCap = DefaultPendingCap
	}
	return nil
}
