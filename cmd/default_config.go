package cmd

import (
	"bytes"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/rvegen/rvegen/rve"
	"github.com/rvegen/rvegen/rve/input"
)

// Preset is a named steel microstructure in defaults.yaml: generator
// settings plus the grain statistics they are sampled from.
type Preset struct {
	Description string          `yaml:"description"`
	Config      yaml.Node       `yaml:"config"` // decoded over rve.DefaultConfig()
	Input       input.InputSpec `yaml:"input"`
}

// Defaults represents the full defaults.yaml structure.
// All top-level sections must be listed to satisfy KnownFields(true) strict parsing.
type Defaults struct {
	Version string            `yaml:"version"`
	Presets map[string]Preset `yaml:"presets"`
}

// loadDefaults parses defaults.yaml with strict field checking.
func loadDefaults(path string) (*Defaults, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading defaults file: %w", err)
	}
	var d Defaults
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&d); err != nil {
		return nil, fmt.Errorf("parsing defaults YAML: %w", err)
	}
	return &d, nil
}

// PresetNames returns the preset names in sorted order.
func (d *Defaults) PresetNames() []string {
	names := make([]string, 0, len(d.Presets))
	for name := range d.Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve returns the generator config and input spec of a named preset.
// Config keys not set by the preset keep their defaults; unknown keys are
// rejected.
func (d *Defaults) Resolve(name string) (rve.Config, *input.InputSpec, error) {
	cfg := rve.DefaultConfig()
	p, ok := d.Presets[name]
	if !ok {
		return cfg, nil, fmt.Errorf("unknown preset %q; available: %v", name, d.PresetNames())
	}
	if !p.Config.IsZero() {
		// Node.Decode has no strict mode, so round-trip through a decoder.
		raw, err := yaml.Marshal(&p.Config)
		if err != nil {
			return cfg, nil, fmt.Errorf("preset %s: %w", name, err)
		}
		decoder := yaml.NewDecoder(bytes.NewReader(raw))
		decoder.KnownFields(true)
		if err := decoder.Decode(&cfg); err != nil {
			return cfg, nil, fmt.Errorf("preset %s config: %w", name, err)
		}
	}
	spec := p.Input
	return cfg, &spec, nil
}
