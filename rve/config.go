package rve

import (
	"bytes"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// GeometryConfig groups the RVE box and its discretization.
type GeometryConfig struct {
	BoxSize float64 `yaml:"box_size"` // edge length of the cubic RVE (must be > 0)
	Points  int     `yaml:"points"`   // voxels per edge (must be even and >= 2)
}

// BandConfig groups the martensite banding parameters.
type BandConfig struct {
	Count       int     `yaml:"count"`        // number of bands (0 = no banding)
	Width       float64 `yaml:"width"`        // band thickness in box units
	Axis        string  `yaml:"axis"`         // band normal: "x", "y" (default) or "z"
	Filling     float64 `yaml:"filling"`      // fraction of band volume requested from the sampler (default 0.99)
	MergeGrains bool    `yaml:"merge_grains"` // collapse all band grains into one band grain on output
}

// PhaseConfig groups the matrix phase split.
type PhaseConfig struct {
	FerriteRatio float64 `yaml:"ferrite_ratio"` // 1 = all ferrite, 0 = all martensite islands
}

// InclusionConfig groups the non-growing inclusion parameters.
type InclusionConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Ratio       float64 `yaml:"ratio"`        // fraction of box volume occupied by inclusions (default 0.01)
	MaxAttempts int     `yaml:"max_attempts"` // seed draws per inclusion before aborting
}

// GrowthConfig groups RSA and tessellation parameters.
type GrowthConfig struct {
	ShrinkFactor    float64 `yaml:"shrink_factor"`     // volume shrink target in (0, 1]; axes scale by its cube root
	MaxSeedAttempts int     `yaml:"max_seed_attempts"` // seed draws per grain before aborting
	MinSeedSpacing  float64 `yaml:"min_seed_spacing"`  // minimum seed distance in voxels
	Step            float64 `yaml:"step"`              // ellipsoid scale increment per growth iteration
	Workers         int     `yaml:"workers"`           // goroutines computing tessellation shells (1 = serial)
}

// Config is the full generator configuration. It is passed by value into
// every component constructor; nothing reads configuration from globals.
type Config struct {
	Seed       int64           `yaml:"seed"`
	Geometry   GeometryConfig  `yaml:"geometry"`
	Bands      BandConfig      `yaml:"bands"`
	Phases     PhaseConfig     `yaml:"phases"`
	Inclusions InclusionConfig `yaml:"inclusions"`
	Growth     GrowthConfig    `yaml:"growth"`
}

// DefaultConfig returns the configuration used when no file or flag
// overrides a value.
func DefaultConfig() Config {
	return Config{
		Seed:     42,
		Geometry: GeometryConfig{BoxSize: 30, Points: 50},
		Bands:    BandConfig{Count: 0, Width: 3, Axis: "y", Filling: 0.99},
		Phases:   PhaseConfig{FerriteRatio: 0.95},
		Inclusions: InclusionConfig{
			Enabled:     false,
			Ratio:       0.01,
			MaxAttempts: 500,
		},
		Growth: GrowthConfig{
			ShrinkFactor:    0.5,
			MaxSeedAttempts: 1000,
			MinSeedSpacing:  1,
			Step:            0.05,
			Workers:         1,
		},
	}
}

// LoadConfig reads a YAML configuration file on top of DefaultConfig.
// Unknown keys are rejected so typos surface as errors.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// validBandAxes is the set of recognized band normals.
var validBandAxes = map[string]bool{"x": true, "y": true, "z": true}

// Validate checks geometry and ratio inputs. All failures are
// *ConfigurationError.
func (c Config) Validate() error {
	g := c.Geometry
	if !(g.BoxSize > 0) || math.IsInf(g.BoxSize, 0) {
		return configErrorf("geometry.box_size", "must be a finite positive number, got %v", g.BoxSize)
	}
	if g.Points < 2 {
		return configErrorf("geometry.points", "must be at least 2, got %d", g.Points)
	}
	if g.Points%2 != 0 {
		return configErrorf("geometry.points", "must be even, got %d", g.Points)
	}

	b := c.Bands
	if b.Count < 0 {
		return configErrorf("bands.count", "must be non-negative, got %d", b.Count)
	}
	if b.Count > 0 {
		if !(b.Width > 0) {
			return configErrorf("bands.width", "must be positive when bands are requested, got %v", b.Width)
		}
		if float64(b.Count)*b.Width > g.BoxSize {
			return configErrorf("bands.width", "band volume %d*%v*%v^2 exceeds box volume %v^3",
				b.Count, b.Width, g.BoxSize, g.BoxSize)
		}
		if !(b.Filling > 0 && b.Filling <= 1) {
			return configErrorf("bands.filling", "must be in (0, 1], got %v", b.Filling)
		}
	}
	if !validBandAxes[b.Axis] {
		return configErrorf("bands.axis", "unknown axis %q (expected x, y or z)", b.Axis)
	}

	if !(c.Phases.FerriteRatio >= 0 && c.Phases.FerriteRatio <= 1) {
		return configErrorf("phases.ferrite_ratio", "must be in [0, 1], got %v", c.Phases.FerriteRatio)
	}

	in := c.Inclusions
	if in.Enabled {
		if !(in.Ratio > 0 && in.Ratio < 1) {
			return configErrorf("inclusions.ratio", "must be in (0, 1), got %v", in.Ratio)
		}
		if in.MaxAttempts < 1 {
			return configErrorf("inclusions.max_attempts", "must be at least 1, got %d", in.MaxAttempts)
		}
	}

	gr := c.Growth
	if !(gr.ShrinkFactor > 0 && gr.ShrinkFactor <= 1) {
		return configErrorf("growth.shrink_factor", "must be in (0, 1], got %v", gr.ShrinkFactor)
	}
	if gr.MaxSeedAttempts < 1 {
		return configErrorf("growth.max_seed_attempts", "must be at least 1, got %d", gr.MaxSeedAttempts)
	}
	if gr.MinSeedSpacing < 0 {
		return configErrorf("growth.min_seed_spacing", "must be non-negative, got %v", gr.MinSeedSpacing)
	}
	if !(gr.Step > 0) {
		return configErrorf("growth.step", "must be positive, got %v", gr.Step)
	}
	if gr.Workers < 0 {
		return configErrorf("growth.workers", "must be non-negative, got %d", gr.Workers)
	}
	return nil
}

// BinSize returns the voxel edge length.
func (c Config) BinSize() float64 {
	return c.Geometry.BoxSize / float64(c.Geometry.Points)
}

// VoxelVolume returns the volume of one voxel.
func (c Config) VoxelVolume() float64 {
	h := c.BinSize()
	return h * h * h
}

// BoxVolume returns the volume of the RVE.
func (c Config) BoxVolume() float64 {
	l := c.Geometry.BoxSize
	return l * l * l
}

// AxisScale returns the factor applied to every grain semi-axis before
// placement: the cube root of the volume shrink target.
func (c Config) AxisScale() float64 {
	return math.Cbrt(c.Growth.ShrinkFactor)
}
