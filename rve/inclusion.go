package rve

import (
	"math"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/rvegen/rvegen/rve/trace"
)

// InclusionPlacer stamps non-growing inclusions into grains after
// tessellation. Each inclusion is placed whole or not at all, and only where
// every stamped voxel belongs to one host grain.
type InclusionPlacer struct {
	cfg   Config
	rng   *PartitionedRNG
	trace *trace.GrowthTrace
}

// NewInclusionPlacer creates a placer drawing seeds from rng. tr may be nil.
func NewInclusionPlacer(cfg Config, rng *PartitionedRNG, tr *trace.GrowthTrace) *InclusionPlacer {
	return &InclusionPlacer{cfg: cfg, rng: rng, trace: tr}
}

// Run places inclusions in ID order (descending volume). Inclusion with ID k
// is stamped as InclusionLabel(k). A *SeedingExhaustedError aborts the run.
func (p *InclusionPlacer) Run(grid *VoxelGrid, inclusions []*Grain) error {
	ordered := make([]*Grain, len(inclusions))
	copy(ordered, inclusions)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	rng := p.rng.ForSubsystem(SubsystemInclusions)
	maxAttempts := p.cfg.Inclusions.MaxAttempts
	stamped := 0
	for _, inc := range ordered {
		stamp := stampOffsets(inc, grid)
		if stamp == nil {
			return &SeedingExhaustedError{Stage: StageInclusions, GrainID: inc.ID}
		}
		placed := false
		for attempt := 1; attempt <= maxAttempts; attempt++ {
			seed := grid.Voxel(rng.Intn(grid.Len()))
			host, ok := p.fits(grid, seed, stamp)
			if !ok {
				continue
			}
			for _, off := range stamp {
				grid.Reserve(grid.Index(Voxel{seed.X + off.X, seed.Y + off.Y, seed.Z + off.Z}), inc.ID)
			}
			inc.Seed = seed
			inc.Host = host
			inc.Voxels = len(stamp)
			inc.CurrentVolume = float64(len(stamp)) * grid.VoxelVolume()
			inc.State = StateFilled
			stamped += len(stamp)
			p.trace.RecordSeed(trace.SeedRecord{
				Stage: StageInclusions, GrainID: inc.ID, Attempts: attempt,
				X: seed.X, Y: seed.Y, Z: seed.Z, Host: host,
			})
			placed = true
			break
		}
		if !placed {
			return &SeedingExhaustedError{Stage: StageInclusions, GrainID: inc.ID, Attempts: maxAttempts}
		}
		logrus.Debugf("%s: inclusion %d placed in grain %d (%d voxels)", StageInclusions, inc.ID, inc.Host, inc.Voxels)
	}
	p.trace.RecordStage(trace.StageRecord{
		Stage: StageInclusions, Grains: len(ordered), Claimed: stamped, Remaining: grid.Count(Unassigned),
	})
	return nil
}

// fits reports whether the stamp centred at seed lies entirely inside one
// grain and returns that grain.
func (p *InclusionPlacer) fits(grid *VoxelGrid, seed Voxel, stamp []Voxel) (int32, bool) {
	host := grid.At(grid.Index(seed))
	if !host.IsGrain() {
		return 0, false
	}
	for _, off := range stamp {
		if grid.At(grid.Index(Voxel{seed.X + off.X, seed.Y + off.Y, seed.Z + off.Z})) != host {
			return 0, false
		}
	}
	return host.ID, true
}

// stampOffsets lists the voxel offsets inside the tolerance ellipsoid of
// inc. It returns nil if the ellipsoid does not fit in the periodic box
// without overlapping its own image.
func stampOffsets(inc *Grain, grid *VoxelGrid) []Voxel {
	bin := grid.BinSize()
	reach := int(math.Ceil((math.Max(inc.A, math.Max(inc.B, inc.C)) + bin/2) / bin))
	if 2*reach+1 > grid.N() {
		return nil
	}
	var out []Voxel
	for dz := -reach; dz <= reach; dz++ {
		for dy := -reach; dy <= reach; dy++ {
			for dx := -reach; dx <= reach; dx++ {
				off := Voxel{dx, dy, dz}
				if inc.Radius(off, bin) <= 1 {
					out = append(out, off)
				}
			}
		}
	}
	return out
}
