package input

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"path/filepath"

	"github.com/rvegen/rvegen/rve"
)

// ErrNoPhase is returned by a source that has nothing for the requested
// phase and role.
var ErrNoPhase = errors.New("no grain description for phase")

// maxGrainsPerRequest bounds a single request so a degenerate distribution
// cannot loop forever.
const maxGrainsPerRequest = 1_000_000

func sourceKey(p rve.Phase, role string) string {
	return p.String() + "/" + role
}

// lookup prefers an entry for the exact role, then one for any role.
func lookup[T any](m map[string]T, req rve.SampleRequest) (T, bool) {
	if v, ok := m[sourceKey(req.Phase, string(req.Role))]; ok {
		return v, true
	}
	v, ok := m[sourceKey(req.Phase, "")]
	return v, ok
}

// fill draws grains until their summed volume reaches req.TargetVolume.
func fill(req rve.SampleRequest, draw func() rve.GrainSpec) ([]rve.GrainSpec, error) {
	var out []rve.GrainSpec
	total := 0.0
	for total < req.TargetVolume {
		if len(out) >= maxGrainsPerRequest {
			return nil, fmt.Errorf("%s %s: %d grains drawn without reaching volume %g",
				req.Role, req.Phase, len(out), req.TargetVolume)
		}
		s := clampAxes(draw(), req.MaxAxis)
		s.Phase = req.Phase
		out = append(out, s)
		total += s.Volume()
	}
	return out, nil
}

// clampAxes scales a grain uniformly so no semi-axis exceeds maxAxis.
func clampAxes(s rve.GrainSpec, maxAxis float64) rve.GrainSpec {
	if maxAxis <= 0 {
		return s
	}
	longest := math.Max(s.A, math.Max(s.B, s.C))
	if longest <= maxAxis {
		return s
	}
	f := maxAxis / longest
	s.A, s.B, s.C = s.A*f, s.B*f, s.C*f
	return s
}

// randomTexture draws Bunge Euler angles (degrees) uniformly over SO(3).
func randomTexture(rng *rand.Rand) (phi1, PHI, phi2 float64) {
	phi1 = rng.Float64() * 360
	PHI = math.Acos(1-2*rng.Float64()) * 180 / math.Pi
	phi2 = rng.Float64() * 360
	return phi1, PHI, phi2
}

// === DistributionSource ===

type grainSampler struct {
	diameter         ValueSampler
	aspectB, aspectC ValueSampler
	alpha            ValueSampler
}

// DistributionSource samples grains from per-phase statistical
// descriptions: equivalent diameter, semi-axis ratios and shape rotation.
// Texture angles are random.
type DistributionSource struct {
	samplers map[string]*grainSampler
	rng      *rand.Rand
}

// NewDistributionSource builds samplers for every phase of spec that is
// described by distributions.
func NewDistributionSource(spec *InputSpec, rng *rand.Rand) (*DistributionSource, error) {
	src := &DistributionSource{samplers: make(map[string]*grainSampler), rng: rng}
	for i, p := range spec.Phases {
		if p.File != "" {
			continue
		}
		phase, err := rve.ParsePhase(p.Phase)
		if err != nil {
			return nil, fmt.Errorf("phases[%d]: %w", i, err)
		}
		gs := &grainSampler{
			aspectB: &ConstantSampler{value: 1},
			aspectC: &ConstantSampler{value: 1},
			alpha:   &UniformSampler{min: 0, max: 180},
		}
		if gs.diameter, err = NewValueSampler(p.Diameter); err != nil {
			return nil, fmt.Errorf("phases[%d].diameter: %w", i, err)
		}
		optional := []struct {
			name string
			spec *DistSpec
			dst  *ValueSampler
		}{
			{"aspect_b", p.AspectB, &gs.aspectB},
			{"aspect_c", p.AspectC, &gs.aspectC},
			{"alpha", p.Alpha, &gs.alpha},
		}
		for _, o := range optional {
			if o.spec == nil {
				continue
			}
			if *o.dst, err = NewValueSampler(*o.spec); err != nil {
				return nil, fmt.Errorf("phases[%d].%s: %w", i, o.name, err)
			}
		}
		src.samplers[sourceKey(phase, p.Role)] = gs
	}
	return src, nil
}

// Sample implements rve.GrainSource.
func (s *DistributionSource) Sample(req rve.SampleRequest) ([]rve.GrainSpec, error) {
	gs, ok := lookup(s.samplers, req)
	if !ok {
		return nil, fmt.Errorf("%w %s (role %s)", ErrNoPhase, req.Phase, req.Role)
	}
	return fill(req, func() rve.GrainSpec { return gs.draw(s.rng) })
}

// draw converts an equivalent diameter and two aspect ratios into semi-axes
// of the same volume.
func (gs *grainSampler) draw(rng *rand.Rand) rve.GrainSpec {
	d := gs.diameter.Sample(rng)
	rb := gs.aspectB.Sample(rng)
	rc := gs.aspectC.Sample(rng)
	if !(rb > 0) {
		rb = 1
	}
	if !(rc > 0) {
		rc = 1
	}
	a := d / 2 / math.Cbrt(rb*rc)
	s := rve.GrainSpec{A: a, B: a * rb, C: a * rc, Alpha: gs.alpha.Sample(rng)}
	s.Phi1, s.PHI, s.Phi2 = randomTexture(rng)
	return s
}

// === CSVSource ===

// CSVSource resamples measured grain tables with replacement.
type CSVSource struct {
	tables map[string][]rve.GrainSpec
	rng    *rand.Rand
}

// NewCSVSource creates a source over already-read tables keyed by phase
// (any role).
func NewCSVSource(tables map[rve.Phase][]rve.GrainSpec, rng *rand.Rand) *CSVSource {
	src := &CSVSource{tables: make(map[string][]rve.GrainSpec, len(tables)), rng: rng}
	for p, rows := range tables {
		src.tables[sourceKey(p, "")] = rows
	}
	return src
}

// LoadCSVSource reads the table of every phase in spec that names a file.
// Relative paths resolve against baseDir.
func LoadCSVSource(spec *InputSpec, baseDir string, rng *rand.Rand) (*CSVSource, error) {
	src := &CSVSource{tables: make(map[string][]rve.GrainSpec), rng: rng}
	for i, p := range spec.Phases {
		if p.File == "" {
			continue
		}
		phase, err := rve.ParsePhase(p.Phase)
		if err != nil {
			return nil, fmt.Errorf("phases[%d]: %w", i, err)
		}
		path := p.File
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		rows, err := ReadGrainTable(path, phase)
		if err != nil {
			return nil, fmt.Errorf("phases[%d]: %w", i, err)
		}
		src.tables[sourceKey(phase, p.Role)] = rows
	}
	return src, nil
}

// Sample implements rve.GrainSource.
func (s *CSVSource) Sample(req rve.SampleRequest) ([]rve.GrainSpec, error) {
	rows, ok := lookup(s.tables, req)
	if !ok || len(rows) == 0 {
		return nil, fmt.Errorf("%w %s (role %s)", ErrNoPhase, req.Phase, req.Role)
	}
	return fill(req, func() rve.GrainSpec { return rows[s.rng.Intn(len(rows))] })
}

// === SourceSet ===

// SourceSet asks each source in turn, skipping sources with nothing for
// the requested phase.
type SourceSet []rve.GrainSource

// Sample implements rve.GrainSource.
func (set SourceSet) Sample(req rve.SampleRequest) ([]rve.GrainSpec, error) {
	for _, src := range set {
		specs, err := src.Sample(req)
		if errors.Is(err, ErrNoPhase) {
			continue
		}
		return specs, err
	}
	return nil, fmt.Errorf("%w %s (role %s)", ErrNoPhase, req.Phase, req.Role)
}

// NewSpecSource builds the source described by spec: measured tables first,
// then distributions. rng drives every draw.
func NewSpecSource(spec *InputSpec, baseDir string, rng *rand.Rand) (SourceSet, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	tables, err := LoadCSVSource(spec, baseDir, rng)
	if err != nil {
		return nil, err
	}
	dists, err := NewDistributionSource(spec, rng)
	if err != nil {
		return nil, err
	}
	return SourceSet{tables, dists}, nil
}
