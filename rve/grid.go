package rve

import "gonum.org/v1/gonum/spatial/r3"

// Voxel is an integer lattice coordinate.
type Voxel struct {
	X, Y, Z int
}

// VoxelGrid is a cubic, periodic lattice of ownership labels over the RVE.
//
// Voxel (x, y, z) has linear index x + n*(y + n*z) and its centre at
// ((x+0.5)*bin, (y+0.5)*bin, (z+0.5)*bin). Neighbourhoods wrap across faces.
type VoxelGrid struct {
	n      int
	bin    float64
	labels []Label
}

// NewVoxelGrid creates an all-unassigned grid with n voxels per edge over a
// box of edge length boxSize.
func NewVoxelGrid(n int, boxSize float64) *VoxelGrid {
	return &VoxelGrid{
		n:      n,
		bin:    boxSize / float64(n),
		labels: make([]Label, n*n*n),
	}
}

// N returns the number of voxels per edge.
func (g *VoxelGrid) N() int { return g.n }

// Len returns the total number of voxels.
func (g *VoxelGrid) Len() int { return len(g.labels) }

// BinSize returns the voxel edge length.
func (g *VoxelGrid) BinSize() float64 { return g.bin }

// VoxelVolume returns the volume of one voxel.
func (g *VoxelGrid) VoxelVolume() float64 { return g.bin * g.bin * g.bin }

// Index returns the linear index of v after wrapping it into the box.
func (g *VoxelGrid) Index(v Voxel) int {
	return g.wrap(v.X) + g.n*(g.wrap(v.Y)+g.n*g.wrap(v.Z))
}

// Voxel returns the lattice coordinate of linear index idx.
func (g *VoxelGrid) Voxel(idx int) Voxel {
	x := idx % g.n
	idx /= g.n
	return Voxel{X: x, Y: idx % g.n, Z: idx / g.n}
}

// Center returns the physical centre of voxel v.
func (g *VoxelGrid) Center(v Voxel) r3.Vec {
	return r3.Vec{
		X: (float64(v.X) + 0.5) * g.bin,
		Y: (float64(v.Y) + 0.5) * g.bin,
		Z: (float64(v.Z) + 0.5) * g.bin,
	}
}

// At returns the label of linear index idx.
func (g *VoxelGrid) At(idx int) Label { return g.labels[idx] }

// Claim gives an unassigned or band-marked voxel to grain id. It returns
// false, leaving the voxel untouched, if any other label is present.
func (g *VoxelGrid) Claim(idx int, id int32) bool {
	switch g.labels[idx].Kind {
	case KindUnassigned, KindBandMarker:
		g.labels[idx] = GrainLabel(id)
		return true
	}
	return false
}

// Reserve stamps a grain voxel with the pending label of inclusion k.
func (g *VoxelGrid) Reserve(idx int, k int32) bool {
	if !g.labels[idx].IsGrain() {
		return false
	}
	g.labels[idx] = InclusionLabel(k)
	return true
}

// mark stamps an unassigned voxel with l. Only band layout uses it.
func (g *VoxelGrid) mark(idx int, l Label) {
	if g.labels[idx].IsUnassigned() {
		g.labels[idx] = l
	}
}

// relabel overwrites a voxel unconditionally. Reserved for renumbering passes.
func (g *VoxelGrid) relabel(idx int, l Label) {
	g.labels[idx] = l
}

// Count returns the number of voxels holding exactly l.
func (g *VoxelGrid) Count(l Label) int {
	n := 0
	for _, x := range g.labels {
		if x == l {
			n++
		}
	}
	return n
}

// Histogram returns the voxel count per label.
func (g *VoxelGrid) Histogram() map[Label]int {
	h := make(map[Label]int)
	for _, l := range g.labels {
		h[l]++
	}
	return h
}

// Labels returns a copy of the label array in linear-index order.
func (g *VoxelGrid) Labels() []Label {
	out := make([]Label, len(g.labels))
	copy(out, g.labels)
	return out
}

// Clone returns a deep copy of the grid.
func (g *VoxelGrid) Clone() *VoxelGrid {
	return &VoxelGrid{n: g.n, bin: g.bin, labels: g.Labels()}
}

// Neighbors appends the six face neighbours of idx (periodic) to buf.
func (g *VoxelGrid) Neighbors(idx int, buf []int) []int {
	v := g.Voxel(idx)
	return append(buf,
		g.Index(Voxel{v.X - 1, v.Y, v.Z}),
		g.Index(Voxel{v.X + 1, v.Y, v.Z}),
		g.Index(Voxel{v.X, v.Y - 1, v.Z}),
		g.Index(Voxel{v.X, v.Y + 1, v.Z}),
		g.Index(Voxel{v.X, v.Y, v.Z - 1}),
		g.Index(Voxel{v.X, v.Y, v.Z + 1}),
	)
}

// Offset returns the minimum-image displacement from a to b in voxels.
// Each component lies in [-n/2, n/2).
func (g *VoxelGrid) Offset(a, b Voxel) Voxel {
	return Voxel{X: g.delta(b.X - a.X), Y: g.delta(b.Y - a.Y), Z: g.delta(b.Z - a.Z)}
}

// Distance returns the periodic Euclidean distance between a and b in voxels.
func (g *VoxelGrid) Distance(a, b Voxel) float64 {
	d := g.Offset(a, b)
	return r3.Norm(r3.Vec{X: float64(d.X), Y: float64(d.Y), Z: float64(d.Z)})
}

func (g *VoxelGrid) wrap(i int) int {
	i %= g.n
	if i < 0 {
		i += g.n
	}
	return i
}

func (g *VoxelGrid) delta(d int) int {
	d = g.wrap(d)
	if d >= g.n/2 {
		d -= g.n
	}
	return d
}
