package rve

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/rvegen/rvegen/rve/trace"
)

// Result is everything one generation run produces.
type Result struct {
	Key        RunKey
	Config     Config
	Layout     *BandLayout
	Catalog    *GrainCatalog
	Inclusions []*Grain
	Seeds      map[int32]Voxel
	Grid       *VoxelGrid // final labels, Grain(id) for every voxel
	Labeling   *Labeling
	Trace      *trace.GrowthTrace
	Status     string
}

// StatusSuccess is the only status a Result is returned with; failures are
// returned as errors.
const StatusSuccess = "success"

// GeneratorOption customizes a Generator.
type GeneratorOption func(*Generator)

// WithTraceLevel enables growth tracing at the given level.
func WithTraceLevel(level trace.TraceLevel) GeneratorOption {
	return func(g *Generator) {
		if level != trace.TraceLevelNone && level != "" {
			g.trace = trace.NewGrowthTrace(level)
		}
	}
}

// Generator runs the full pipeline: band layout, RSA over bands and matrix,
// tessellation, inclusion placement and periodicity repair.
type Generator struct {
	cfg    Config
	source GrainSource
	rng    *PartitionedRNG
	trace  *trace.GrowthTrace
	hasRun bool
}

// NewGenerator validates cfg and prepares a run. A *ConfigurationError is
// returned before any voxel is placed.
func NewGenerator(cfg Config, source GrainSource, opts ...GeneratorOption) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if source == nil {
		return nil, fmt.Errorf("generator: grain source is nil")
	}
	g := &Generator{
		cfg:    cfg,
		source: source,
		rng:    NewPartitionedRNG(NewRunKey(cfg.Seed)),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Run executes the pipeline once. Calling Run twice is an error.
func (g *Generator) Run() (*Result, error) {
	if g.hasRun {
		return nil, fmt.Errorf("generator: Run called more than once")
	}
	g.hasRun = true
	cfg := g.cfg

	// 1. Band partition
	layout, err := NewBandLayout(cfg)
	if err != nil {
		return nil, err
	}
	grid := NewVoxelGrid(cfg.Geometry.Points, cfg.Geometry.BoxSize)
	layout.Apply(grid)
	logrus.Infof("grid %d^3, bin size %.4g, %d bands (%d marker voxels)",
		grid.N(), grid.BinSize(), len(layout.Centers()), grid.Count(BandMarker))

	// 2. Catalogs
	catalog, inclusions, err := g.buildCatalogs(layout)
	if err != nil {
		return nil, err
	}
	if catalog.Len() == 0 {
		return nil, fmt.Errorf("generator: grain source produced no grain larger than one voxel")
	}
	mean, std := catalog.VolumeStats()
	logrus.Infof("catalog: %d grains (%d dropped), volume mean %.4g std %.4g, recommended box size %.4g",
		catalog.Len(), catalog.Dropped(), mean, std, catalog.RecommendedBoxSize())

	// 3. RSA, bands first so matrix grains cannot take band voxels
	rsa := NewRSAEngine(cfg, g.rng, g.trace)
	seeds := make(map[int32]Voxel, catalog.Len())
	for _, r := range []Region{RegionBand, RegionMatrix} {
		if len(catalog.ByRegion(r)) == 0 {
			continue
		}
		placed, err := rsa.Run(catalog.Grains(), grid, layout.Mask(), r)
		if err != nil {
			return nil, err
		}
		for id, v := range placed {
			seeds[id] = v
		}
	}

	// 4. Tessellation
	if err := NewTessellation(cfg, g.trace).Run(catalog.Grains(), seeds, grid); err != nil {
		return nil, err
	}

	// 5. Inclusions
	if len(inclusions) > 0 {
		if err := NewInclusionPlacer(cfg, g.rng, g.trace).Run(grid, inclusions); err != nil {
			return nil, err
		}
	}

	// 6. Periodicity repair and final labels
	repair := NewPeriodicityRepair(RepairOptions{MergeBandGrains: cfg.Bands.MergeGrains}, g.trace)
	labeling, err := repair.Run(grid, catalog.Grains(), inclusions)
	if err != nil {
		return nil, err
	}
	logrus.Infof("done: %d final grains, %d wrapped, %d fragments remapped",
		len(labeling.Grains), len(labeling.Report.Wrapped), labeling.Report.Fragments)

	return &Result{
		Key:        g.rng.Key(),
		Config:     cfg,
		Layout:     layout,
		Catalog:    catalog,
		Inclusions: inclusions,
		Seeds:      seeds,
		Grid:       grid,
		Labeling:   labeling,
		Trace:      g.trace,
		Status:     StatusSuccess,
	}, nil
}

// buildCatalogs requests grains for every role and orders them. Growing
// grains share one ID space starting at 1; inclusions have their own.
func (g *Generator) buildCatalogs(layout *BandLayout) (*GrainCatalog, []*Grain, error) {
	cfg := g.cfg
	var entries []CatalogEntry

	bandVol := layout.BandVolume()
	if cfg.Bands.Count > 0 {
		specs, err := g.sample(SampleRequest{
			Role:         RoleBand,
			Phase:        Martensite,
			TargetVolume: bandVol * cfg.Bands.Filling,
			MaxAxis:      cfg.Bands.Width / 2,
		})
		if err != nil {
			return nil, nil, err
		}
		for _, s := range specs {
			entries = append(entries, CatalogEntry{Spec: s, Region: RegionBand})
		}
	}

	matrixVol := cfg.BoxVolume() - bandVol
	split := []struct {
		phase Phase
		vol   float64
	}{
		{Ferrite, matrixVol * cfg.Phases.FerriteRatio},
		{Martensite, matrixVol * (1 - cfg.Phases.FerriteRatio)},
	}
	for _, s := range split {
		if s.vol < cfg.VoxelVolume() {
			continue
		}
		specs, err := g.sample(SampleRequest{Role: RoleMatrix, Phase: s.phase, TargetVolume: s.vol})
		if err != nil {
			return nil, nil, err
		}
		for _, spec := range specs {
			entries = append(entries, CatalogEntry{Spec: spec, Region: RegionMatrix})
		}
	}
	catalog := NewGrainCatalog(entries, cfg.AxisScale(), cfg.VoxelVolume(), 1)

	if !cfg.Inclusions.Enabled {
		return catalog, nil, nil
	}
	specs, err := g.sample(SampleRequest{
		Role:         RoleInclusion,
		Phase:        Martensite,
		TargetVolume: cfg.BoxVolume() * cfg.Inclusions.Ratio,
		MaxAxis:      (float64(cfg.Geometry.Points)/2 - 1) * cfg.BinSize() / 2,
	})
	if err != nil {
		return nil, nil, err
	}
	incEntries := make([]CatalogEntry, len(specs))
	for i, s := range specs {
		incEntries[i] = CatalogEntry{Spec: s, Region: RegionMatrix}
	}
	// Inclusions do not grow, so their axes are not shrunk.
	inc := NewGrainCatalog(incEntries, 1, cfg.VoxelVolume(), 1)
	logrus.Infof("inclusions: %d (%.4g of box volume)", inc.Len(), inc.TotalVolume()/cfg.BoxVolume())
	return catalog, inc.Grains(), nil
}

func (g *Generator) sample(req SampleRequest) ([]GrainSpec, error) {
	specs, err := g.source.Sample(req)
	if err != nil {
		return nil, fmt.Errorf("sampling %s %s grains: %w", req.Role, req.Phase, err)
	}
	for i, s := range specs {
		if !(s.A > 0 && s.B > 0 && s.C > 0) || math.IsInf(s.A+s.B+s.C, 0) {
			return nil, fmt.Errorf("sampling %s %s grains: row %d has non-positive semi-axes (%v, %v, %v)",
				req.Role, req.Phase, i, s.A, s.B, s.C)
		}
		if s.Phase == 0 {
			specs[i].Phase = req.Phase
		}
	}
	logrus.Debugf("sampled %d %s %s grains for volume %.4g", len(specs), req.Role, req.Phase, req.TargetVolume)
	return specs, nil
}
