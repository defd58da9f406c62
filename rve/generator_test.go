package rve

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rvegen/rvegen/rve/trace"
)

// sphereSource returns spheres alternating between radius r and 0.8r until
// the requested volume is reached.
type sphereSource struct {
	radius   map[Role]float64
	reversed bool
	err      error
	requests []SampleRequest
}

func (s *sphereSource) Sample(req SampleRequest) ([]GrainSpec, error) {
	s.requests = append(s.requests, req)
	if s.err != nil {
		return nil, s.err
	}
	r := s.radius[req.Role]
	if r == 0 {
		r = 1
	}
	if req.MaxAxis > 0 && r > req.MaxAxis {
		r = req.MaxAxis
	}
	var out []GrainSpec
	total := 0.0
	for i := 0; total < req.TargetVolume; i++ {
		ri := r
		if i%2 == 1 {
			ri = 0.8 * r
		}
		spec := GrainSpec{A: ri, B: ri, C: ri, Alpha: float64(i * 17 % 180), Phi1: float64(i)}
		total += spec.Volume()
		out = append(out, spec)
	}
	if s.reversed {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out, nil
}

// boxConfig is a 20^3 box on a 20^3 lattice (unit voxels).
func boxConfig() Config {
	cfg := DefaultConfig()
	cfg.Geometry = GeometryConfig{BoxSize: 20, Points: 20}
	return cfg
}

func runGenerator(t *testing.T, cfg Config, src GrainSource, opts ...GeneratorOption) *Result {
	t.Helper()
	gen, err := NewGenerator(cfg, src, opts...)
	require.NoError(t, err)
	res, err := gen.Run()
	require.NoError(t, err)
	return res
}

func assertCompleteLabeling(t *testing.T, res *Result) {
	t.Helper()
	lab := res.Labeling
	require.NotNil(t, lab)
	require.Len(t, lab.Voxels, res.Grid.Len())
	total := 0
	for i, g := range lab.Grains {
		assert.Equal(t, int32(i+1), g.ID)
		assert.Greater(t, g.Voxels, 0, "final grain %d", g.ID)
		total += g.Voxels
	}
	assert.Equal(t, res.Grid.Len(), total)
	for idx, rec := range lab.Voxels {
		l := res.Grid.At(idx)
		require.True(t, l.IsGrain(), "voxel %d is %v", idx, l)
		assert.Equal(t, l.ID, rec.GrainID)
		assert.Equal(t, int(lab.Grains[rec.GrainID-1].Phase), rec.PhaseID)
	}
}

func TestGenerator_MatrixOnly(t *testing.T) {
	// GIVEN a 20^3 box and grains of radius ~5
	cfg := boxConfig()
	src := &sphereSource{radius: map[Role]float64{RoleMatrix: 5}}

	// WHEN generated
	res := runGenerator(t, cfg, src)

	// THEN every voxel carries a dense final ID and the split was requested
	assert.Equal(t, StatusSuccess, res.Status)
	assertCompleteLabeling(t, res)
	require.Len(t, src.requests, 2)
	assert.Equal(t, Ferrite, src.requests[0].Phase)
	assert.InDelta(t, 8000*0.95, src.requests[0].TargetVolume, 1e-9)
	assert.Equal(t, Martensite, src.requests[1].Phase)
	assert.InDelta(t, 8000*0.05, src.requests[1].TargetVolume, 1e-9)
	assert.Len(t, res.Seeds, res.Catalog.Len())
	assert.Equal(t, NewRunKey(cfg.Seed), res.Key)
}

func TestGenerator_FerriteOnlySkipsMartensiteRequest(t *testing.T) {
	cfg := boxConfig()
	cfg.Phases.FerriteRatio = 1
	src := &sphereSource{radius: map[Role]float64{RoleMatrix: 5}}

	res := runGenerator(t, cfg, src)

	require.Len(t, src.requests, 1)
	for _, g := range res.Labeling.Grains {
		assert.Equal(t, Ferrite, g.Phase)
	}
}

func TestGenerator_OversizedGrainsStillFillTheBox(t *testing.T) {
	// GIVEN two grains whose volume far exceeds the box
	cfg := boxConfig()
	src := &sphereSource{radius: map[Role]float64{RoleMatrix: 15}}

	// WHEN generated with grain tracing
	res := runGenerator(t, cfg, src, WithTraceLevel(trace.TraceLevelGrains))

	// THEN both survive, the box is full and growth stalled in RSA
	require.Len(t, res.Labeling.Grains, 2)
	assertCompleteLabeling(t, res)
	summary := trace.Summarize(res.Trace)
	assert.GreaterOrEqual(t, summary.Stalled, 1)
	assert.Equal(t, res.Catalog.Len(), summary.Filled+summary.Stalled, "one outcome per grain")
}

// fixedSource returns the same grain table for every request.
type fixedSource []GrainSpec

func (s fixedSource) Sample(SampleRequest) ([]GrainSpec, error) {
	return append([]GrainSpec(nil), s...), nil
}

func TestGenerator_FixedGrainTable(t *testing.T) {
	// GIVEN ten known ellipsoids well below the box volume and no bands
	cfg := boxConfig()
	cfg.Phases.FerriteRatio = 1
	var src fixedSource
	total := 0.0
	for i := 0; i < 10; i++ {
		spec := GrainSpec{A: 3.5 - 0.2*float64(i), B: 2.5, C: 2, Alpha: float64(18 * i), Phase: Ferrite}
		total += spec.Volume()
		src = append(src, spec)
	}
	require.Less(t, total, cfg.BoxVolume())

	// WHEN generated
	res := runGenerator(t, cfg, src, WithTraceLevel(trace.TraceLevelGrains))

	// THEN the run succeeds with ten grains and no unassigned voxel
	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, 0, res.Grid.Count(Unassigned))
	require.Len(t, res.Labeling.Grains, 10)
	assertCompleteLabeling(t, res)
	summary := trace.Summarize(res.Trace)
	assert.Equal(t, 10, summary.SeededGrains)
	assert.Equal(t, 10, summary.Filled+summary.Stalled)
}

func TestGenerator_Bands(t *testing.T) {
	cfg := boxConfig()
	cfg.Bands.Count = 1
	cfg.Bands.Width = 4
	src := &sphereSource{radius: map[Role]float64{RoleMatrix: 5, RoleBand: 3}}

	res := runGenerator(t, cfg, src)

	assertCompleteLabeling(t, res)
	require.NotEmpty(t, src.requests)
	band := src.requests[0]
	assert.Equal(t, RoleBand, band.Role)
	assert.Equal(t, 2.0, band.MaxAxis)
	assert.InDelta(t, 4*20*20*0.99, band.TargetVolume, 1e-9)
	assert.InDelta(t, (8000-1600)*0.95, src.requests[1].TargetVolume, 1e-9)

	// Band voxels belong only to band grains
	mask := res.Layout.Mask()
	for idx, rec := range res.Labeling.Voxels {
		if mask.Region(res.Grid.Voxel(idx)) == RegionBand {
			assert.Equal(t, RegionBand, res.Labeling.Grains[rec.GrainID-1].Region)
		}
	}
}

func TestGenerator_MergedBand(t *testing.T) {
	cfg := boxConfig()
	cfg.Bands.Count = 2
	cfg.Bands.Width = 2
	cfg.Bands.MergeGrains = true
	src := &sphereSource{radius: map[Role]float64{RoleMatrix: 5, RoleBand: 1}}

	res := runGenerator(t, cfg, src)

	assertCompleteLabeling(t, res)
	bandGrains := 0
	for _, g := range res.Labeling.Grains {
		if g.Region == RegionBand {
			bandGrains++
		}
	}
	assert.Equal(t, 1, bandGrains)
	last := res.Labeling.Grains[len(res.Labeling.Grains)-1]
	assert.Equal(t, res.Labeling.Report.BandGrain, last.ID)
}

func TestGenerator_Inclusions(t *testing.T) {
	cfg := boxConfig()
	cfg.Inclusions.Enabled = true
	src := &sphereSource{radius: map[Role]float64{RoleMatrix: 5, RoleInclusion: 1}}

	res := runGenerator(t, cfg, src)

	assertCompleteLabeling(t, res)
	require.NotEmpty(t, res.Inclusions)
	inclusions := 0
	for _, g := range res.Labeling.Grains {
		if !g.Inclusion {
			continue
		}
		inclusions++
		require.Greater(t, g.Host, int32(0))
		host := res.Labeling.Grains[g.Host-1]
		assert.False(t, host.Inclusion)
	}
	assert.Equal(t, len(res.Inclusions), inclusions)
	inc := src.requests[len(src.requests)-1]
	assert.Equal(t, RoleInclusion, inc.Role)
	assert.InDelta(t, 80, inc.TargetVolume, 1e-9)
	assert.InDelta(t, 4.5, inc.MaxAxis, 1e-12)
}

func TestGenerator_Deterministic(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config, *sphereSource)
	}{
		{"same inputs", func(*Config, *sphereSource) {}},
		{"parallel shells", func(c *Config, _ *sphereSource) { c.Growth.Workers = 4 }},
		{"reversed sampler output", func(_ *Config, s *sphereSource) { s.reversed = true }},
	}
	cfg := boxConfig()
	cfg.Bands.Count = 1
	cfg.Bands.Width = 4
	cfg.Inclusions.Enabled = true
	radii := map[Role]float64{RoleMatrix: 4, RoleBand: 2, RoleInclusion: 1}
	want := runGenerator(t, cfg, &sphereSource{radius: radii})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := cfg
			src := &sphereSource{radius: radii}
			tt.mutate(&c, src)

			got := runGenerator(t, c, src)

			assert.Equal(t, want.Grid.Labels(), got.Grid.Labels())
			assert.Equal(t, want.Labeling.Report, got.Labeling.Report)
		})
	}
}

func TestGenerator_SeedChangesMicrostructure(t *testing.T) {
	radii := map[Role]float64{RoleMatrix: 4}
	a := boxConfig()
	b := boxConfig()
	b.Seed = a.Seed + 1

	ra := runGenerator(t, a, &sphereSource{radius: radii})
	rb := runGenerator(t, b, &sphereSource{radius: radii})

	assert.NotEqual(t, ra.Grid.Labels(), rb.Grid.Labels())
}

func TestNewGenerator_Errors(t *testing.T) {
	wide := boxConfig()
	wide.Bands.Count = 2
	wide.Bands.Width = 15

	_, err := NewGenerator(wide, &sphereSource{})
	var ce *ConfigurationError
	assert.True(t, errors.As(err, &ce), "expected *ConfigurationError, got %v", err)

	_, err = NewGenerator(boxConfig(), nil)
	assert.Error(t, err)
}

func TestGenerator_RunTwice(t *testing.T) {
	gen, err := NewGenerator(boxConfig(), &sphereSource{radius: map[Role]float64{RoleMatrix: 5}})
	require.NoError(t, err)
	_, err = gen.Run()
	require.NoError(t, err)

	_, err = gen.Run()
	assert.Error(t, err)
}

func TestGenerator_SourceErrors(t *testing.T) {
	boom := errors.New("boom")
	gen, err := NewGenerator(boxConfig(), &sphereSource{err: boom})
	require.NoError(t, err)

	_, err = gen.Run()
	assert.ErrorIs(t, err, boom)
}

// badSource returns a grain with a zero semi-axis.
type badSource struct{}

func (badSource) Sample(SampleRequest) ([]GrainSpec, error) {
	return []GrainSpec{{A: 1, B: 0, C: 1}}, nil
}

// tinySource returns only grains smaller than a voxel.
type tinySource struct{}

func (tinySource) Sample(SampleRequest) ([]GrainSpec, error) {
	return []GrainSpec{{A: 0.1, B: 0.1, C: 0.1}}, nil
}

func TestGenerator_RejectsUnusableSamples(t *testing.T) {
	for _, src := range []GrainSource{badSource{}, tinySource{}} {
		gen, err := NewGenerator(boxConfig(), src)
		require.NoError(t, err)
		_, err = gen.Run()
		assert.Error(t, err)
	}
}

func TestGenerator_TraceStages(t *testing.T) {
	cfg := boxConfig()
	cfg.Bands.Count = 1
	cfg.Bands.Width = 4
	cfg.Inclusions.Enabled = true
	src := &sphereSource{radius: map[Role]float64{RoleMatrix: 5, RoleBand: 2, RoleInclusion: 1}}

	res := runGenerator(t, cfg, src, WithTraceLevel(trace.TraceLevelStages))

	var stages []string
	for _, s := range res.Trace.Stages {
		stages = append(stages, s.Stage)
	}
	assert.Equal(t, []string{StageRSA(RegionBand), StageRSA(RegionMatrix), StageTessellation, StageInclusions, StagePeriodicity}, stages)
	assert.Empty(t, res.Trace.Seeds, "seeds are only traced at grain level")
}
