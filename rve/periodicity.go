package rve

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/rvegen/rvegen/rve/trace"
)

// RepairOptions tunes the final renumbering.
type RepairOptions struct {
	// MergeBandGrains collapses every band grain, together with leftover band
	// markers, into a single band grain.
	MergeBandGrains bool
}

// RepairReport describes what PeriodicityRepair found and changed.
type RepairReport struct {
	Wrapped   []int32 // grains whose territory crosses a periodic face (final IDs)
	Fragments int     // detached fragments remapped to a neighbouring grain
	Remapped  int     // voxels relabeled by fragment repair
	Dropped   []int32 // grains left without voxels (input IDs)
	BandGrain int32   // final ID of the leftover/merged band grain, 0 if none
}

// VoxelRecord is one row of the per-voxel table handed to the mesher.
type VoxelRecord struct {
	GrainID int32
	PhaseID int
	X, Y, Z float64
}

// Labeling is the output of PeriodicityRepair.
type Labeling struct {
	Voxels []VoxelRecord
	Grains []*Grain // final grain table, Grains[i].ID == i+1
	Report RepairReport
}

// PeriodicityRepair makes every grain one periodic-connected territory and
// resolves band markers and inclusion labels into one dense grain ID space.
// Running it again on its own output changes nothing.
type PeriodicityRepair struct {
	opts  RepairOptions
	trace *trace.GrowthTrace
}

// NewPeriodicityRepair creates the repair stage. tr may be nil.
func NewPeriodicityRepair(opts RepairOptions, tr *trace.GrowthTrace) *PeriodicityRepair {
	return &PeriodicityRepair{opts: opts, trace: tr}
}

// Run repairs grid in place and returns the labeled table. grains are the
// grown grains, inclusions the placed inclusions (ID k for InclusionLabel(k)).
func (p *PeriodicityRepair) Run(grid *VoxelGrid, grains, inclusions []*Grain) (*Labeling, error) {
	byID := make(map[int32]*Grain, len(grains))
	for _, g := range grains {
		byID[g.ID] = g
	}
	incByID := make(map[int32]*Grain, len(inclusions))
	for _, inc := range inclusions {
		incByID[inc.ID] = inc
	}
	for idx := 0; idx < grid.Len(); idx++ {
		l := grid.At(idx)
		switch l.Kind {
		case KindUnassigned:
			return nil, fmt.Errorf("%s: voxel %d is unassigned", StagePeriodicity, idx)
		case KindGrain:
			if _, ok := byID[l.ID]; !ok {
				return nil, fmt.Errorf("%s: voxel %d owned by unknown grain %d", StagePeriodicity, idx, l.ID)
			}
		case KindInclusion:
			if _, ok := incByID[l.ID]; !ok {
				return nil, fmt.Errorf("%s: voxel %d holds unknown inclusion %d", StagePeriodicity, idx, l.ID)
			}
		}
	}

	report := RepairReport{}
	final := p.renumber(grid, grains, inclusions, &report)
	// A remapped fragment can border another grain's fragment, so repeat
	// until a pass changes nothing.
	for pass := 0; pass < maxRepairPasses; pass++ {
		if !p.repairFragments(grid, final, &report, pass == 0) {
			break
		}
	}

	vv := grid.VoxelVolume()
	for _, g := range final {
		g.Voxels = 0
	}
	records := make([]VoxelRecord, grid.Len())
	for idx := range records {
		g := final[grid.At(idx).ID-1]
		g.Voxels++
		c := grid.Center(grid.Voxel(idx))
		records[idx] = VoxelRecord{GrainID: g.ID, PhaseID: int(g.Phase), X: c.X, Y: c.Y, Z: c.Z}
	}
	for _, g := range final {
		g.CurrentVolume = float64(g.Voxels) * vv
	}

	p.trace.RecordStage(trace.StageRecord{
		Stage: StagePeriodicity, Grains: len(final), Claimed: report.Remapped,
	})
	if report.Fragments > 0 {
		logrus.Infof("%s: remapped %d fragments (%d voxels)", StagePeriodicity, report.Fragments, report.Remapped)
	}
	return &Labeling{Voxels: records, Grains: final, Report: report}, nil
}

// component is one periodic 6-connected set of voxels with the same label.
type component struct {
	voxels  []int
	wrapped bool
}

// components returns the grain components of grid keyed by grain ID, each
// list ordered by first voxel index.
func components(grid *VoxelGrid) map[int32][]component {
	n := grid.N()
	visited := make([]bool, grid.Len())
	out := make(map[int32][]component)
	var queue []int
	for start := 0; start < grid.Len(); start++ {
		l := grid.At(start)
		if visited[start] || !l.IsGrain() {
			continue
		}
		comp := component{}
		visited[start] = true
		queue = append(queue[:0], start)
		for len(queue) > 0 {
			idx := queue[0]
			queue = queue[1:]
			comp.voxels = append(comp.voxels, idx)
			v := grid.Voxel(idx)
			for _, step := range faceSteps {
				w := Voxel{v.X + step.X, v.Y + step.Y, v.Z + step.Z}
				nb := grid.Index(w)
				if grid.At(nb) != l {
					continue
				}
				if w.X < 0 || w.X >= n || w.Y < 0 || w.Y >= n || w.Z < 0 || w.Z >= n {
					comp.wrapped = true
				}
				if visited[nb] {
					continue
				}
				visited[nb] = true
				queue = append(queue, nb)
			}
		}
		out[l.ID] = append(out[l.ID], comp)
	}
	return out
}

const maxRepairPasses = 8

var faceSteps = []Voxel{{-1, 0, 0}, {1, 0, 0}, {0, -1, 0}, {0, 1, 0}, {0, 0, -1}, {0, 0, 1}}

// repairFragments keeps, for every grain, the component holding its seed
// (or the largest) and hands the other components to the grain that
// dominates their boundary. Band grains and inclusions are left as they are:
// a merged band spans several layers and an inclusion keeps its stamp.
// It reports whether any voxel changed; wrapped grains are recorded only
// when record is set.
func (p *PeriodicityRepair) repairFragments(grid *VoxelGrid, final []*Grain, report *RepairReport, record bool) bool {
	comps := components(grid)
	exempt := func(id int32) bool {
		g := final[id-1]
		return g.Inclusion || g.Region == RegionBand
	}

	changed := false
	var nbuf []int
	for _, g := range final {
		cs := comps[g.ID]
		if len(cs) == 0 {
			continue
		}
		if exempt(g.ID) {
			for _, c := range cs {
				if c.wrapped && record {
					report.Wrapped = append(report.Wrapped, g.ID)
					break
				}
			}
			continue
		}
		keep := mainComponent(grid, cs, g)
		if cs[keep].wrapped && record {
			report.Wrapped = append(report.Wrapped, g.ID)
		}
		for i, c := range cs {
			if i == keep {
				continue
			}
			counts := make(map[int32]int)
			for _, idx := range c.voxels {
				nbuf = grid.Neighbors(idx, nbuf[:0])
				for _, nb := range nbuf {
					l := grid.At(nb)
					if l.ID != g.ID && !final[l.ID-1].Inclusion {
						counts[l.ID]++
					}
				}
			}
			target, best := int32(0), 0
			for nid, cnt := range counts {
				if cnt > best || (cnt == best && nid < target) {
					target, best = nid, cnt
				}
			}
			if target == 0 {
				continue
			}
			for _, idx := range c.voxels {
				grid.relabel(idx, GrainLabel(target))
			}
			changed = true
			report.Fragments++
			report.Remapped += len(c.voxels)
			logrus.Debugf("%s: fragment of grain %d (%d voxels) merged into grain %d",
				StagePeriodicity, g.ID, len(c.voxels), target)
		}
	}
	return changed
}

// mainComponent picks the component a grain keeps.
func mainComponent(grid *VoxelGrid, cs []component, g *Grain) int {
	if len(cs) == 1 {
		return 0
	}
	seed := grid.Index(g.Seed)
	for i, c := range cs {
		for _, idx := range c.voxels {
			if idx == seed {
				return i
			}
		}
	}
	best := 0
	for i, c := range cs {
		if len(c.voxels) > len(cs[best].voxels) {
			best = i
		}
	}
	return best
}

// renumber allocates final IDs: surviving grains in ascending input ID,
// then placed inclusions by index, then one band grain for leftover band
// markers (and, with MergeBandGrains, all band grains). The grid is
// relabeled to the final IDs.
func (p *PeriodicityRepair) renumber(grid *VoxelGrid, grains, inclusions []*Grain, report *RepairReport) []*Grain {
	hist := grid.Histogram()

	ordered := make([]*Grain, len(grains))
	copy(ordered, grains)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })
	incs := make([]*Grain, len(inclusions))
	copy(incs, inclusions)
	sort.Slice(incs, func(i, j int) bool { return incs[i].ID < incs[j].ID })

	grainMap := make(map[int32]int32, len(ordered))
	incMap := make(map[int32]int32, len(incs))
	var final []*Grain
	var bandSources []*Grain

	for _, g := range ordered {
		if hist[GrainLabel(g.ID)] == 0 {
			report.Dropped = append(report.Dropped, g.ID)
			continue
		}
		if p.opts.MergeBandGrains && g.Region == RegionBand {
			bandSources = append(bandSources, g)
			continue
		}
		ng := *g
		ng.ID = int32(len(final) + 1)
		ng.shape, ng.body = nil, nil
		grainMap[g.ID] = ng.ID
		final = append(final, &ng)
	}
	for _, inc := range incs {
		if hist[InclusionLabel(inc.ID)] == 0 {
			continue
		}
		ng := *inc
		ng.ID = int32(len(final) + 1)
		ng.shape, ng.body = nil, nil
		ng.Inclusion = true
		if h, ok := grainMap[inc.Host]; ok {
			ng.Host = h
		}
		incMap[inc.ID] = ng.ID
		final = append(final, &ng)
	}

	var bandID int32
	if hist[BandMarker] > 0 || len(bandSources) > 0 {
		band := &Grain{Phase: Martensite, Region: RegionBand, State: StateFilled}
		if len(bandSources) > 0 {
			// The merged grain keeps the shape and texture of the largest band grain.
			src := bandSources[0]
			band.A, band.B, band.C = src.A, src.B, src.C
			band.A0, band.B0, band.C0 = src.A0, src.B0, src.C0
			band.Alpha, band.Phi1, band.PHI, band.Phi2 = src.Alpha, src.Phi1, src.PHI, src.Phi2
			band.Phase = src.Phase
			band.Seed = src.Seed
		} else {
			for idx := 0; idx < grid.Len(); idx++ {
				if grid.At(idx) == BandMarker {
					band.Seed = grid.Voxel(idx)
					break
				}
			}
		}
		bandID = int32(len(final) + 1)
		band.ID = bandID
		for _, src := range bandSources {
			grainMap[src.ID] = bandID
			band.TargetVolume += src.TargetVolume
		}
		band.TargetVolume += float64(hist[BandMarker]) * grid.VoxelVolume()
		final = append(final, band)
	}
	report.BandGrain = bandID

	for idx := 0; idx < grid.Len(); idx++ {
		l := grid.At(idx)
		switch l.Kind {
		case KindGrain:
			grid.relabel(idx, GrainLabel(grainMap[l.ID]))
		case KindInclusion:
			grid.relabel(idx, GrainLabel(incMap[l.ID]))
		case KindBandMarker:
			grid.relabel(idx, GrainLabel(bandID))
		}
	}
	return final
}
