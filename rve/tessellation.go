package rve

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/rvegen/rvegen/rve/trace"
)

// Tessellation assigns every voxel left after RSA to the grain whose growth
// front reaches it first. It reuses the RSA stepping without the ellipsoid
// limit or volume cap; the ellipsoid radius only orders the fronts.
type Tessellation struct {
	cfg   Config
	trace *trace.GrowthTrace
}

// NewTessellation creates a tessellation stage. tr may be nil.
func NewTessellation(cfg Config, tr *trace.GrowthTrace) *Tessellation {
	return &Tessellation{cfg: cfg, trace: tr}
}

// Run grows every grain of grains from its current territory until no
// unassigned voxel is left. seeds gives the ellipsoid origin of each grain.
// Band markers nobody reaches stay on the grid as reserved voxels. A
// *GrowthStallError reports unassigned voxels no front could reach.
func (t *Tessellation) Run(grains []*Grain, seeds map[int32]Voxel, grid *VoxelGrid) error {
	ordered := make([]*Grain, len(grains))
	copy(ordered, grains)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	byID := make(map[int32]*Grain, len(ordered))
	for _, g := range ordered {
		byID[g.ID] = g
	}
	territory := make(map[int32][]int, len(ordered))
	unassigned, markers := 0, 0
	for idx := 0; idx < grid.Len(); idx++ {
		l := grid.At(idx)
		switch l.Kind {
		case KindUnassigned:
			unassigned++
		case KindBandMarker:
			markers++
		case KindGrain:
			if _, ok := byID[l.ID]; !ok {
				return fmt.Errorf("%s: voxel %d owned by unknown grain %d", StageTessellation, idx, l.ID)
			}
			territory[l.ID] = append(territory[l.ID], idx)
		}
	}

	gr := newGrower(grid, tessellationPolicy, t.cfg.Growth.Step, t.cfg.Growth.Workers)
	bandGrains := false
	for _, g := range ordered {
		seed, ok := seeds[g.ID]
		if !ok {
			return fmt.Errorf("%s: no seed for grain %d", StageTessellation, g.ID)
		}
		g.Seed = seed
		owned := territory[g.ID]
		if len(owned) == 0 {
			idx := grid.Index(seed)
			if !tessellationPolicy.CanClaim(g, grid.At(idx)) || !grid.Claim(idx, g.ID) {
				logrus.Warnf("%s: grain %d has no territory and its seed is taken; skipping", StageTessellation, g.ID)
				continue
			}
			g.addVoxel(grid.VoxelVolume())
			owned = []int{idx}
		}
		if g.Region == RegionBand {
			bandGrains = true
		}
		gr.add(g, owned)
	}
	gr.claimable = grid.Count(Unassigned)
	if bandGrains {
		gr.claimable += grid.Count(BandMarker)
	}

	if err := gr.run(); err != nil {
		return err
	}
	remaining := grid.Count(Unassigned)
	t.trace.RecordStage(trace.StageRecord{
		Stage: StageTessellation, Grains: len(gr.fronts), Iterations: gr.iterations,
		Claimed: gr.claimed, Remaining: remaining,
	})
	logrus.Debugf("%s: %d unassigned and %d band voxels before, %d claimed in %d iterations",
		StageTessellation, unassigned, markers, gr.claimed, gr.iterations)
	if remaining > 0 {
		return &GrowthStallError{Remaining: remaining}
	}
	return nil
}
