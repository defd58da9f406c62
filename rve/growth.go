package rve

import (
	"container/heap"
	"math"

	"golang.org/x/sync/errgroup"
)

// ClaimPolicy is the strategy that turns the shared shell-growth stepping
// into capped RSA growth or uncapped tessellation.
type ClaimPolicy interface {
	// Limit is the largest normalized ellipsoid radius a grain may grow to.
	Limit() float64
	// CanClaim reports whether grain g may take a voxel currently labeled l.
	CanClaim(g *Grain, l Label) bool
	// Saturated reports whether g must stop before taking another voxel.
	Saturated(g *Grain, voxelVolume float64) bool
}

// regionClaims is the occupancy rule shared by both policies: band grains
// take band markers, matrix grains take unassigned voxels.
func regionClaims(g *Grain, l Label) bool {
	if g.Region == RegionBand {
		return l.Kind == KindBandMarker
	}
	return l.Kind == KindUnassigned
}

var (
	rsaPolicy          ClaimPolicy = cappedPolicy{}
	tessellationPolicy ClaimPolicy = uncappedPolicy{}
)

// cappedPolicy confines a grain to its tolerance ellipsoid and the volume of
// its shrunk ellipsoid.
type cappedPolicy struct{}

func (cappedPolicy) Limit() float64                  { return 1 }
func (cappedPolicy) CanClaim(g *Grain, l Label) bool { return regionClaims(g, l) }
func (cappedPolicy) Saturated(g *Grain, voxelVolume float64) bool {
	return g.CurrentVolume+voxelVolume > g.rsaCap()
}

// uncappedPolicy lets grains grow until occupancy stops them. Every grain
// may fill unassigned voxels; band grains also absorb leftover band markers.
type uncappedPolicy struct{}

func (uncappedPolicy) Limit() float64 { return math.Inf(1) }
func (uncappedPolicy) CanClaim(g *Grain, l Label) bool {
	return l.Kind == KindUnassigned || (g.Region == RegionBand && l.Kind == KindBandMarker)
}
func (uncappedPolicy) Saturated(*Grain, float64) bool { return false }

// === GrowthFront ===

type candidate struct {
	idx    int
	radius float64
}

// candidateHeap orders candidates by radius, then by linear index so equal
// radii resolve the same way on every run.
type candidateHeap []candidate

func (h candidateHeap) Len() int { return len(h) }
func (h candidateHeap) Less(i, j int) bool {
	if h[i].radius != h[j].radius {
		return h[i].radius < h[j].radius
	}
	return h[i].idx < h[j].idx
}
func (h candidateHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *candidateHeap) Push(x any) {
	*h = append(*h, x.(candidate))
}

func (h *candidateHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[0 : n-1]
	return item
}

// growthFront holds one grain's candidate voxels for its next shells.
// pending collects freshly exposed neighbours whose radius is not computed
// yet; nextShell moves them into the heap.
type growthFront struct {
	grain   *Grain
	heap    candidateHeap
	pending []int
	seen    map[int]struct{}
	blocked int  // candidates inside the limit lost to another owner
	done    bool // saturated or exhausted
}

// === grower ===

// grower runs the shell-by-shell competition shared by RSA and tessellation.
// Per round every active grain computes its next shell (optionally in
// parallel), then claims are applied serially in ascending grain ID, so a
// contested voxel always goes to the larger grain.
type grower struct {
	grid    *VoxelGrid
	policy  ClaimPolicy
	step    float64
	workers int
	fronts  []*growthFront
	nbuf    []int

	// claimable counts voxels some grain could still take; growth ends
	// early when it reaches zero.
	claimable  int
	iterations int
	claimed    int
}

func newGrower(grid *VoxelGrid, policy ClaimPolicy, step float64, workers int) *grower {
	if workers < 1 {
		workers = 1
	}
	return &grower{grid: grid, policy: policy, step: step, workers: workers, claimable: -1}
}

// add registers g as a growing grain whose territory is owned. The
// territory is marked seen before any of it is exposed so a grain never
// queues its own voxels.
func (gr *grower) add(g *Grain, owned []int) *growthFront {
	f := &growthFront{grain: g, seen: make(map[int]struct{}, 8*len(owned))}
	for _, idx := range owned {
		f.seen[idx] = struct{}{}
	}
	for _, idx := range owned {
		gr.expose(f, idx)
	}
	gr.fronts = append(gr.fronts, f)
	return f
}

// expose queues the unseen neighbours of idx as candidates for f. Labels
// are checked at claim time, where a lost candidate counts as blocked.
func (gr *grower) expose(f *growthFront, idx int) {
	gr.nbuf = gr.grid.Neighbors(idx, gr.nbuf[:0])
	for _, nb := range gr.nbuf {
		if _, ok := f.seen[nb]; ok {
			continue
		}
		f.seen[nb] = struct{}{}
		f.pending = append(f.pending, nb)
	}
}

// nextShell computes the radii of pending candidates and pops every
// candidate inside scale. It touches only f, so fronts may run concurrently.
func (gr *grower) nextShell(f *growthFront, scale float64) []candidate {
	g := f.grain
	limit := gr.policy.Limit()
	for _, idx := range f.pending {
		r := g.Radius(gr.grid.Offset(g.Seed, gr.grid.Voxel(idx)), gr.grid.bin)
		if r > limit {
			continue
		}
		heap.Push(&f.heap, candidate{idx: idx, radius: r})
	}
	f.pending = f.pending[:0]

	var shell []candidate
	for f.heap.Len() > 0 && f.heap[0].radius <= scale {
		shell = append(shell, heap.Pop(&f.heap).(candidate))
	}
	return shell
}

// claim applies one candidate for f. It reports whether the voxel was taken.
func (gr *grower) claim(f *growthFront, c candidate) bool {
	g := f.grain
	l := gr.grid.At(c.idx)
	if !gr.policy.CanClaim(g, l) || !gr.grid.Claim(c.idx, g.ID) {
		f.blocked++
		return false
	}
	g.addVoxel(gr.grid.VoxelVolume())
	gr.claimed++
	if gr.claimable > 0 {
		gr.claimable--
	}
	gr.expose(f, c.idx)
	return true
}

// run grows all registered fronts until every front is done, no claimable
// voxel is left, or the policy limit is passed.
func (gr *grower) run() error {
	vv := gr.grid.VoxelVolume()
	limit := gr.policy.Limit()
	scale := 0.0
	shells := make([][]candidate, len(gr.fronts))

	for {
		if gr.claimable == 0 {
			return nil
		}
		gr.iterations++
		if err := gr.computeShells(shells, scale); err != nil {
			return err
		}

		for i, f := range gr.fronts {
			for _, c := range shells[i] {
				if f.done {
					break
				}
				if gr.policy.Saturated(f.grain, vv) {
					f.done = true
					break
				}
				gr.claim(f, c)
			}
			shells[i] = nil
		}

		next, ok := gr.nextRadius()
		if !ok {
			return nil
		}
		if next <= scale {
			continue
		}
		scale = math.Max(scale+gr.step, next)
		if scale > limit {
			scale = limit
		}
	}
}

// computeShells fills shells[i] for every active front.
func (gr *grower) computeShells(shells [][]candidate, scale float64) error {
	if gr.workers == 1 {
		for i, f := range gr.fronts {
			if !f.done {
				shells[i] = gr.nextShell(f, scale)
			}
		}
		return nil
	}
	var eg errgroup.Group
	eg.SetLimit(gr.workers)
	for i, f := range gr.fronts {
		if f.done {
			continue
		}
		eg.Go(func() error {
			shells[i] = gr.nextShell(f, scale)
			return nil
		})
	}
	return eg.Wait()
}

// nextRadius returns the smallest radius any active front still holds.
// Pending candidates are folded into the heaps first.
func (gr *grower) nextRadius() (float64, bool) {
	best := math.Inf(1)
	found := false
	for _, f := range gr.fronts {
		if f.done {
			continue
		}
		if len(f.pending) > 0 {
			gr.nextShell(f, math.Inf(-1))
		}
		if f.heap.Len() == 0 {
			f.done = true
			continue
		}
		if r := f.heap[0].radius; r < best {
			best = r
		}
		found = true
	}
	return best, found
}
