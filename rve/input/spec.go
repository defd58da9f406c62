package input

import (
	"bytes"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/rvegen/rvegen/rve"
)

// InputSpec is the statistical description of a microstructure.
// Loaded from YAML via LoadInputSpec(path).
type InputSpec struct {
	Version string      `yaml:"version"`
	Phases  []PhaseSpec `yaml:"phases"`
}

// PhaseSpec describes the grains of one phase, optionally restricted to one
// role. A phase is described either by distributions or by a measured table
// (File); a table takes precedence.
type PhaseSpec struct {
	Phase string `yaml:"phase"`          // ferrite, martensite, pearlite or bainite
	Role  string `yaml:"role,omitempty"` // band, matrix, inclusion; empty matches any role

	// Diameter is the equivalent sphere diameter.
	Diameter DistSpec `yaml:"diameter"`
	// AspectB and AspectC are the b/a and c/a semi-axis ratios (default 1).
	AspectB *DistSpec `yaml:"aspect_b,omitempty"`
	AspectC *DistSpec `yaml:"aspect_c,omitempty"`
	// Alpha is the shape rotation about z in degrees (default uniform [0, 180)).
	Alpha *DistSpec `yaml:"alpha,omitempty"`

	// File is a measured grain table with columns a,b,c,alpha,phi1,PHI,phi2.
	File string `yaml:"file,omitempty"`
}

// DistSpec parameterizes a value distribution.
type DistSpec struct {
	Type   string              `yaml:"type"`
	Params map[string]float64  `yaml:"params,omitempty"`
	PDF    map[float64]float64 `yaml:"pdf,omitempty"`
}

var (
	validDistTypes = map[string]bool{
		"gaussian": true, "lognormal": true, "uniform": true, "empirical": true, "constant": true,
	}
	validRoles = map[string]bool{
		"": true, string(rve.RoleBand): true, string(rve.RoleMatrix): true, string(rve.RoleInclusion): true,
	}
)

// LoadInputSpec reads and parses a YAML input specification file.
// Uses strict parsing: unrecognized keys (typos) are rejected.
func LoadInputSpec(path string) (*InputSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading input spec: %w", err)
	}
	var spec InputSpec
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&spec); err != nil {
		return nil, fmt.Errorf("parsing input spec: %w", err)
	}
	return &spec, nil
}

// Validate checks that all fields in the spec are valid.
func (s *InputSpec) Validate() error {
	if len(s.Phases) == 0 {
		return fmt.Errorf("at least one phase required")
	}
	seen := make(map[string]bool)
	for i, p := range s.Phases {
		prefix := fmt.Sprintf("phases[%d]", i)
		if _, err := rve.ParsePhase(p.Phase); err != nil {
			return fmt.Errorf("%s: %w", prefix, err)
		}
		if !validRoles[p.Role] {
			return fmt.Errorf("%s: unknown role %q; valid: band, matrix, inclusion, or empty", prefix, p.Role)
		}
		key := p.Phase + "/" + p.Role
		if seen[key] {
			return fmt.Errorf("%s: duplicate entry for phase %q role %q", prefix, p.Phase, p.Role)
		}
		seen[key] = true
		if p.File != "" {
			continue
		}
		if err := validateDistSpec(prefix+".diameter", &p.Diameter); err != nil {
			return err
		}
		optional := []struct {
			name string
			dist *DistSpec
		}{{"aspect_b", p.AspectB}, {"aspect_c", p.AspectC}, {"alpha", p.Alpha}}
		for _, o := range optional {
			if o.dist == nil {
				continue
			}
			if err := validateDistSpec(prefix+"."+o.name, o.dist); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateDistSpec(prefix string, d *DistSpec) error {
	if !validDistTypes[d.Type] {
		return fmt.Errorf("%s: unknown distribution type %q; valid: gaussian, lognormal, uniform, empirical, constant", prefix, d.Type)
	}
	for name, val := range d.Params {
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return fmt.Errorf("%s.params.%s must be a finite number, got %f", prefix, name, val)
		}
	}
	return nil
}
