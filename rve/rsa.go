package rve

import (
	"math/rand"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/rvegen/rvegen/rve/trace"
)

// Stage names used in errors, logs and traces.
const (
	StageTessellation = "tessellation"
	StageInclusions   = "inclusions"
	StagePeriodicity  = "periodicity"
)

// StageRSA returns the stage name of the RSA pass over region r.
func StageRSA(r Region) string {
	return "rsa_" + r.String()
}

// RSAEngine performs random sequential addition: grains are taken largest
// first, and each one is seeded in the space still free and grown inside its
// own ellipsoid before the next is seeded. One engine serves every pass of a
// run so seed spacing is enforced across passes.
type RSAEngine struct {
	cfg   Config
	rng   *PartitionedRNG
	trace *trace.GrowthTrace
	seeds []Voxel
}

// NewRSAEngine creates an engine drawing seeds from rng. tr may be nil.
func NewRSAEngine(cfg Config, rng *PartitionedRNG, tr *trace.GrowthTrace) *RSAEngine {
	return &RSAEngine{cfg: cfg, rng: rng, trace: tr}
}

// Run places and grows the grains of region r on grid. Grains of other
// regions are ignored. It returns the seed of every grain placed; a
// *SeedingExhaustedError aborts the pass. Grains that stop short of their
// volume cap are Stalled, which is not an error.
func (e *RSAEngine) Run(grains []*Grain, grid *VoxelGrid, mask *RegionMask, r Region) (map[int32]Voxel, error) {
	stage := StageRSA(r)
	rng := e.rng.ForSubsystem(SubsystemRSA(r))

	pass := make([]*Grain, 0, len(grains))
	for _, g := range grains {
		if g.Region == r {
			pass = append(pass, g)
		}
	}
	sort.Slice(pass, func(i, j int) bool { return pass[i].ID < pass[j].ID })

	candidates := mask.SeedCandidates(grid, r)
	seeds := make(map[int32]Voxel, len(pass))
	vv := grid.VoxelVolume()
	iterations, claimed, stalled := 0, 0, 0

	for i, g := range pass {
		idx, attempts, ok := e.placeSeed(g, grid, &candidates, pass[:i], rng)
		if !ok {
			return seeds, &SeedingExhaustedError{Stage: stage, GrainID: g.ID, Attempts: attempts}
		}
		grid.Claim(idx, g.ID)
		g.Seed = grid.Voxel(idx)
		g.State = StateGrowing
		g.addVoxel(vv)
		seeds[g.ID] = g.Seed
		e.seeds = append(e.seeds, g.Seed)
		e.trace.RecordSeed(trace.SeedRecord{
			Stage: stage, GrainID: g.ID, Attempts: attempts,
			X: g.Seed.X, Y: g.Seed.Y, Z: g.Seed.Z,
		})

		gr := newGrower(grid, rsaPolicy, e.cfg.Growth.Step, 1)
		front := gr.add(g, []int{idx})
		if err := gr.run(); err != nil {
			return seeds, err
		}
		iterations += gr.iterations
		claimed += gr.claimed + 1

		if rsaPolicy.Saturated(g, vv) || front.blocked == 0 {
			g.State = StateFilled
		} else {
			g.State = StateStalled
			stalled++
			logrus.Debugf("%s: grain %d stalled at %.3g of %.3g", stage, g.ID, g.CurrentVolume, g.rsaCap())
		}
		e.trace.RecordGrain(trace.GrainRecord{
			Stage: stage, GrainID: g.ID, Voxels: g.Voxels,
			Volume: g.CurrentVolume, Target: g.TargetVolume, State: g.State.String(),
		})
	}

	e.trace.RecordStage(trace.StageRecord{
		Stage: stage, Grains: len(pass), Iterations: iterations,
		Claimed: claimed, Remaining: grid.Count(Unassigned),
	})
	if stalled > 0 {
		logrus.Infof("%s: %d of %d grains stalled before reaching their volume cap", stage, stalled, len(pass))
	}
	return seeds, nil
}

// placeSeed draws voxels uniformly from candidates until one is free for g,
// keeps MinSeedSpacing from every earlier seed and lies outside the shrunk
// ellipsoid of every grain in placed. Candidates found taken are dropped
// from the pool without costing an attempt; at most MaxSeedAttempts free
// voxels are tried.
func (e *RSAEngine) placeSeed(g *Grain, grid *VoxelGrid, candidates *[]int, placed []*Grain, rng *rand.Rand) (int, int, bool) {
	maxAttempts := e.cfg.Growth.MaxSeedAttempts
	attempts := 0
	for attempts < maxAttempts && len(*candidates) > 0 {
		pool := *candidates
		k := rng.Intn(len(pool))
		idx := pool[k]
		if !regionClaims(g, grid.At(idx)) {
			pool[k] = pool[len(pool)-1]
			*candidates = pool[:len(pool)-1]
			continue
		}
		attempts++
		v := grid.Voxel(idx)
		if !e.spaced(grid, v) || enclosed(grid, placed, v) {
			continue
		}
		return idx, attempts, true
	}
	return 0, attempts, false
}

// enclosed reports whether v lies inside the shrunk ellipsoid of any grain
// in placed.
func enclosed(grid *VoxelGrid, placed []*Grain, v Voxel) bool {
	for _, p := range placed {
		if p.Encloses(grid.Offset(p.Seed, v), grid.BinSize()) {
			return true
		}
	}
	return false
}

// spaced reports whether v keeps the minimum distance to all placed seeds.
func (e *RSAEngine) spaced(grid *VoxelGrid, v Voxel) bool {
	spacing := e.cfg.Growth.MinSeedSpacing
	if spacing <= 0 {
		return true
	}
	for _, s := range e.seeds {
		if grid.Distance(s, v) < spacing {
			return false
		}
	}
	return true
}

// Seeds returns every seed this engine has placed, in placement order.
func (e *RSAEngine) Seeds() []Voxel {
	return e.seeds
}
