package rve

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// smallConfig is a 10^3 box on a 20^3 lattice (bin size 0.5).
func smallConfig() Config {
	cfg := DefaultConfig()
	cfg.Geometry = GeometryConfig{BoxSize: 10, Points: 20}
	cfg.Growth.MaxSeedAttempts = 200
	return cfg
}

func TestRSAEngine_GrainsStayInsideEllipsoidAndTarget(t *testing.T) {
	// GIVEN a handful of ellipsoids in an empty matrix
	cfg := smallConfig()
	specs := []GrainSpec{
		{A: 2, B: 1.5, C: 1, Alpha: 30, Phase: Ferrite},
		{A: 1.5, B: 1.5, C: 1.5, Phase: Ferrite},
		{A: 1, B: 1, C: 2, Alpha: 100, Phase: Martensite},
	}
	catalog := NewGrainCatalog(matrixEntries(specs...), cfg.AxisScale(), cfg.VoxelVolume(), 1)
	grid := NewVoxelGrid(cfg.Geometry.Points, cfg.Geometry.BoxSize)
	engine := NewRSAEngine(cfg, NewPartitionedRNG(NewRunKey(cfg.Seed)), nil)

	// WHEN the matrix pass runs
	seeds, err := engine.Run(catalog.Grains(), grid, NewMatrixMask(cfg.Geometry.Points), RegionMatrix)
	require.NoError(t, err)

	// THEN each grain sits inside its tolerance ellipsoid and under its target
	require.Len(t, seeds, 3)
	byID := map[int32]*Grain{}
	for _, g := range catalog.Grains() {
		byID[g.ID] = g
		assert.LessOrEqual(t, g.CurrentVolume, g.TargetVolume, "grain %d", g.ID)
		assert.LessOrEqual(t, g.CurrentVolume, g.PlacedVolume, "grain %d", g.ID)
		assert.Contains(t, []GrainState{StateFilled, StateStalled}, g.State)
		assert.Equal(t, seeds[g.ID], g.Seed)
	}
	counts := map[int32]int{}
	for idx := 0; idx < grid.Len(); idx++ {
		l := grid.At(idx)
		if !l.IsGrain() {
			continue
		}
		g := byID[l.ID]
		require.NotNil(t, g)
		counts[l.ID]++
		off := grid.Offset(g.Seed, grid.Voxel(idx))
		assert.LessOrEqual(t, g.Radius(off, grid.BinSize()), 1.0+1e-12)
	}
	for id, n := range counts {
		assert.Equal(t, byID[id].Voxels, n, "voxel bookkeeping of grain %d", id)
	}
	assert.Len(t, engine.Seeds(), 3)
}

func TestRSAEngine_LoneGrainFills(t *testing.T) {
	cfg := smallConfig()
	catalog := NewGrainCatalog(matrixEntries(sphere(1.5, Ferrite)), cfg.AxisScale(), cfg.VoxelVolume(), 1)
	grid := NewVoxelGrid(cfg.Geometry.Points, cfg.Geometry.BoxSize)

	_, err := NewRSAEngine(cfg, NewPartitionedRNG(NewRunKey(1)), nil).
		Run(catalog.Grains(), grid, NewMatrixMask(cfg.Geometry.Points), RegionMatrix)
	require.NoError(t, err)

	g := catalog.Grains()[0]
	assert.Equal(t, StateFilled, g.State)
	assert.Greater(t, g.Voxels, 1)
}

func TestRSAEngine_SeedingExhausted(t *testing.T) {
	// GIVEN a seed spacing no two voxels of the box can keep
	cfg := smallConfig()
	cfg.Growth.MinSeedSpacing = 100
	cfg.Growth.MaxSeedAttempts = 25
	catalog := NewGrainCatalog(matrixEntries(sphere(1, Ferrite), sphere(1, Ferrite)), cfg.AxisScale(), cfg.VoxelVolume(), 1)
	grid := NewVoxelGrid(cfg.Geometry.Points, cfg.Geometry.BoxSize)

	// WHEN the pass runs
	_, err := NewRSAEngine(cfg, NewPartitionedRNG(NewRunKey(1)), nil).
		Run(catalog.Grains(), grid, NewMatrixMask(cfg.Geometry.Points), RegionMatrix)

	// THEN the second grain exhausts its retry budget
	var se *SeedingExhaustedError
	require.True(t, errors.As(err, &se), "expected *SeedingExhaustedError, got %v", err)
	assert.Equal(t, int32(2), se.GrainID)
	assert.Equal(t, 25, se.Attempts)
	assert.Equal(t, StageRSA(RegionMatrix), se.Stage)
}

func TestRSAEngine_NoCandidatesExhaustsImmediately(t *testing.T) {
	cfg := smallConfig()
	entries := []CatalogEntry{{Spec: sphere(1, Martensite), Region: RegionBand}}
	catalog := NewGrainCatalog(entries, cfg.AxisScale(), cfg.VoxelVolume(), 1)
	grid := NewVoxelGrid(cfg.Geometry.Points, cfg.Geometry.BoxSize)

	// A matrix-only mask has no band seed candidates
	_, err := NewRSAEngine(cfg, NewPartitionedRNG(NewRunKey(1)), nil).
		Run(catalog.Grains(), grid, NewMatrixMask(cfg.Geometry.Points), RegionBand)

	var se *SeedingExhaustedError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 0, se.Attempts)
}

func TestRSAEngine_BandGrainsClaimOnlyBandVoxels(t *testing.T) {
	// GIVEN one band of width 2 and band grains larger than the band
	cfg := smallConfig()
	cfg.Bands.Count = 1
	cfg.Bands.Width = 2
	layout, err := NewBandLayout(cfg)
	require.NoError(t, err)
	grid := NewVoxelGrid(cfg.Geometry.Points, cfg.Geometry.BoxSize)
	layout.Apply(grid)
	markers := grid.Count(BandMarker)

	entries := []CatalogEntry{
		{Spec: GrainSpec{A: 3, B: 3, C: 3, Phase: Martensite}, Region: RegionBand},
		{Spec: GrainSpec{A: 2, B: 3, C: 2, Phase: Martensite}, Region: RegionBand},
	}
	catalog := NewGrainCatalog(entries, cfg.AxisScale(), cfg.VoxelVolume(), 1)

	// WHEN the band pass runs
	_, err = NewRSAEngine(cfg, NewPartitionedRNG(NewRunKey(3)), nil).
		Run(catalog.Grains(), grid, layout.Mask(), RegionBand)
	require.NoError(t, err)

	// THEN every claimed voxel is a former band marker
	claimed := 0
	for idx := 0; idx < grid.Len(); idx++ {
		if grid.At(idx).IsGrain() {
			claimed++
			assert.Equal(t, RegionBand, layout.Mask().Region(grid.Voxel(idx)))
		}
	}
	assert.Greater(t, claimed, 0)
	assert.Equal(t, markers, claimed+grid.Count(BandMarker))
	assert.Equal(t, 0, grid.Count(Unassigned)-(grid.Len()-markers))
}

func TestRSAEngine_IgnoresOtherRegions(t *testing.T) {
	cfg := smallConfig()
	entries := []CatalogEntry{
		{Spec: sphere(1, Martensite), Region: RegionBand},
		{Spec: sphere(1.2, Ferrite), Region: RegionMatrix},
	}
	catalog := NewGrainCatalog(entries, cfg.AxisScale(), cfg.VoxelVolume(), 1)
	grid := NewVoxelGrid(cfg.Geometry.Points, cfg.Geometry.BoxSize)

	seeds, err := NewRSAEngine(cfg, NewPartitionedRNG(NewRunKey(1)), nil).
		Run(catalog.Grains(), grid, NewMatrixMask(cfg.Geometry.Points), RegionMatrix)
	require.NoError(t, err)

	require.Len(t, seeds, 1)
	band := catalog.ByRegion(RegionBand)[0]
	assert.Equal(t, StatePending, band.State)
	assert.Equal(t, 0, band.Voxels)
}

func TestRSAEngine_GrowsEachGrainBeforeSeedingTheNext(t *testing.T) {
	// GIVEN one large grain and eight small ones in an otherwise empty box
	cfg := smallConfig()
	specs := []GrainSpec{sphere(3, Ferrite)}
	for i := 0; i < 8; i++ {
		specs = append(specs, sphere(0.8, Ferrite))
	}

	for seed := int64(1); seed <= 20; seed++ {
		catalog := NewGrainCatalog(matrixEntries(specs...), cfg.AxisScale(), cfg.VoxelVolume(), 1)
		grid := NewVoxelGrid(cfg.Geometry.Points, cfg.Geometry.BoxSize)

		// WHEN the matrix pass runs
		_, err := NewRSAEngine(cfg, NewPartitionedRNG(NewRunKey(seed)), nil).
			Run(catalog.Grains(), grid, NewMatrixMask(cfg.Geometry.Points), RegionMatrix)
		require.NoError(t, err, "seed %d", seed)

		// THEN the largest grain reached its cap untouched by the others
		grains := catalog.Grains()
		first := grains[0]
		require.Equal(t, int32(1), first.ID)
		assert.Equal(t, StateFilled, first.State, "seed %d", seed)
		assert.LessOrEqual(t, first.CurrentVolume, first.PlacedVolume)
		assert.Greater(t, first.CurrentVolume+grid.VoxelVolume(), first.PlacedVolume, "seed %d", seed)

		// AND no later seed lies inside its ellipsoid
		for _, g := range grains[1:] {
			assert.False(t, first.Encloses(grid.Offset(first.Seed, g.Seed), grid.BinSize()),
				"seed %d: grain %d seeded inside grain 1", seed, g.ID)
			assert.Equal(t, GrainLabel(g.ID), grid.At(grid.Index(g.Seed)))
		}
	}
}

func TestRSAEngine_SeedsOnlyWhereSpaceIsLeft(t *testing.T) {
	// GIVEN an unshrunk grain whose ellipsoid covers all but the box corners
	cfg := smallConfig()
	cfg.Growth.ShrinkFactor = 1
	entries := matrixEntries(sphere(6.5, Ferrite), sphere(1, Ferrite))
	catalog := NewGrainCatalog(entries, cfg.AxisScale(), cfg.VoxelVolume(), 1)
	grid := NewVoxelGrid(cfg.Geometry.Points, cfg.Geometry.BoxSize)

	// WHEN the pass runs
	_, err := NewRSAEngine(cfg, NewPartitionedRNG(NewRunKey(5)), nil).
		Run(catalog.Grains(), grid, NewMatrixMask(cfg.Geometry.Points), RegionMatrix)
	require.NoError(t, err)

	// THEN the first grain took its whole ellipsoid without reaching its cap
	// and the second was seeded in the corners it left free
	first, second := catalog.Grains()[0], catalog.Grains()[1]
	assert.Equal(t, StateFilled, first.State)
	assert.Less(t, first.CurrentVolume, first.PlacedVolume)
	assert.Greater(t, first.Radius(grid.Offset(first.Seed, second.Seed), grid.BinSize()), 1.0)
	assert.Equal(t, GrainLabel(second.ID), grid.At(grid.Index(second.Seed)))
	assert.Greater(t, second.Voxels, 0)
}
