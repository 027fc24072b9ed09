package config

import (
	"errors"
	"fmt"
	"gopkg.in/yaml.v3"
	"os"
	"path/filepath"
	"time"
)

const (
	Prod = "prod"
	Dev  = "dev"
	Test = "test"
)

const (
	KindString = "string"
	KindInt    = "int"
)

var InvalidConfigError = errors.New("invalid config")

type Sketch struct {
	Sketch SketchBox `yaml:"sketch"`
}

func (c *Sketch) IsProd() bool {
	return c.Sketch.Env == Prod
}

func (c *Sketch) IsDev() bool {
	return c.Sketch.Env == Dev
}

func (c *Sketch) IsTest() bool {
	return c.Sketch.Env == Test
}

type SketchBox struct {
	Env         string      `yaml:"env"`
	Kind        string      `yaml:"kind"` // "string" or "int"
	Dimensions  Dimensions  `yaml:"dimensions"`
	ErrorRate   ErrorRate   `yaml:"error_rate"`
	Logs        Logs        `yaml:"logs"`
	Persistence Persistence `yaml:"persistence"`
	Server      Server      `yaml:"server"`
	Admission   Admission   `yaml:"admission"`
}

// Dimensions are used as is when Width and Depth are set, otherwise they are derived from ErrorRate.
type Dimensions struct {
	Width int    `yaml:"width"`
	Depth int    `yaml:"depth"`
	Seed  uint64 `yaml:"seed"`
}

type ErrorRate struct {
	Epsilon float64 `yaml:"epsilon"` // relative error, (0, 1)
	Delta   float64 `yaml:"delta"`   // failure probability, (0, 1)
}

type Logs struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`        // empty means stderr
	MaxSizeMB  int    `yaml:"max_size_mb"` // rotation threshold of File
	MaxBackups int    `yaml:"max_backups"`
}

// Dump configures snapshot persistence. A restored dump takes precedence over the configured
// dimensions and seed unless Strict is set, in which case a dump of another shape is refused.
type Dump struct {
	IsEnabled    bool          `yaml:"enabled"`
	Strict       bool          `yaml:"strict"`
	Format       string        `yaml:"format"` // raw, gzip or zstd
	Dir          string        `yaml:"dump_dir"`
	Name         string        `yaml:"dump_name"`
	MaxFiles     int           `yaml:"max_files"`
	RotatePolicy string        `yaml:"rotate_policy"` // fixed or ring
	Interval     time.Duration `yaml:"interval"`      // zero disables periodic dumps
}

type Persistence struct {
	Dump Dump `yaml:"dump"`
}

type Server struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	MaxBodySize  int           `yaml:"max_body_size"` // bytes, bounds POST /merge snapshots
}

// Admission configures the TinyLFU behind GET /admit. A zero Window disables it.
type Admission struct {
	Window         uint64 `yaml:"window"`          // additions before the frequency sketch is aged
	DoorkeeperBits int    `yaml:"doorkeeper_bits"` // bloom filter size
}

// Default returns a config usable without a file.
func Default() *Sketch {
	return &Sketch{
		Sketch: SketchBox{
			Env:       Prod,
			Kind:      KindString,
			ErrorRate: ErrorRate{Epsilon: 0.001, Delta: 0.001},
			Logs:      Logs{Level: "info", MaxSizeMB: 100, MaxBackups: 3},
			Persistence: Persistence{Dump: Dump{
				Format:       "raw",
				Dir:          "./dump",
				Name:         "sketch",
				MaxFiles:     7,
				RotatePolicy: "fixed",
			}},
			Server: Server{
				Addr:         ":8020",
				ReadTimeout:  5 * time.Second,
				WriteTimeout: 5 * time.Second,
				MaxBodySize:  64 << 20,
			},
			Admission: Admission{Window: 1 << 20, DoorkeeperBits: 1 << 18},
		},
	}
}

func LoadConfig(path string) (*Sketch, error) {
	path, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute config filepath: %w", err)
	}

	if _, err = os.Stat(path); err != nil {
		return nil, fmt.Errorf("stat config path: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config yaml file %s: %w", path, err)
	}

	cfg := Default()
	if err = yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml from %s: %w", path, err)
	}

	if err = cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the values which cannot be repaired by defaults.
func (c *Sketch) Validate() error {
	box := c.Sketch
	if box.Kind != KindString && box.Kind != KindInt {
		return fmt.Errorf("%w: kind must be %q or %q, got %q", InvalidConfigError, KindString, KindInt, box.Kind)
	}
	if box.Dimensions.Width < 0 || box.Dimensions.Depth < 0 {
		return fmt.Errorf("%w: negative dimensions %dx%d", InvalidConfigError, box.Dimensions.Depth, box.Dimensions.Width)
	}
	if !box.HasDimensions() {
		if r := box.ErrorRate; !(r.Epsilon > 0 && r.Epsilon < 1) || !(r.Delta > 0 && r.Delta < 1) {
			return fmt.Errorf("%w: error_rate epsilon and delta must be in (0, 1)", InvalidConfigError)
		}
	}
	switch box.Persistence.Dump.Format {
	case "raw", "gzip", "zstd":
	default:
		return fmt.Errorf("%w: unknown dump format %q", InvalidConfigError, box.Persistence.Dump.Format)
	}
	switch box.Persistence.Dump.RotatePolicy {
	case "fixed", "ring":
	default:
		return fmt.Errorf("%w: unknown rotate policy %q", InvalidConfigError, box.Persistence.Dump.RotatePolicy)
	}
	if box.Persistence.Dump.RotatePolicy == "ring" && box.Persistence.Dump.MaxFiles < 1 {
		return fmt.Errorf("%w: ring rotation needs max_files >= 1", InvalidConfigError)
	}
	return nil
}

// HasDimensions reports whether explicit width and depth were configured.
func (b SketchBox) HasDimensions() bool {
	return b.Dimensions.Width > 0 && b.Dimensions.Depth > 0
}
