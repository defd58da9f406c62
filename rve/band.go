package rve

import "math"

// layerInfo classifies one lattice layer along the band normal.
type layerInfo struct {
	region       Region
	seedExcluded bool
}

// RegionMask partitions the grid into band and matrix voxels and flags the
// boundary shells in which no seed may be placed. Bands are slabs, so the
// mask is stored per layer along the band normal.
type RegionMask struct {
	n      int
	axis   int
	layers []layerInfo
}

// NewMatrixMask returns a mask with no bands.
func NewMatrixMask(n int) *RegionMask {
	return &RegionMask{n: n, layers: make([]layerInfo, n)}
}

func (m *RegionMask) layer(v Voxel) layerInfo {
	switch m.axis {
	case 0:
		return m.layers[v.X]
	case 2:
		return m.layers[v.Z]
	}
	return m.layers[v.Y]
}

// Region returns the region voxel v belongs to.
func (m *RegionMask) Region(v Voxel) Region {
	return m.layer(v).region
}

// Seedable reports whether a grain of region r may be seeded at v.
func (m *RegionMask) Seedable(v Voxel, r Region) bool {
	l := m.layer(v)
	return l.region == r && !l.seedExcluded
}

// SeedCandidates returns, in linear-index order, every voxel of grid where a
// region-r grain may be seeded.
func (m *RegionMask) SeedCandidates(grid *VoxelGrid, r Region) []int {
	var out []int
	for idx := 0; idx < grid.Len(); idx++ {
		if m.Seedable(grid.Voxel(idx), r) {
			out = append(out, idx)
		}
	}
	return out
}

// BandLayout places evenly spaced band slabs in the box.
type BandLayout struct {
	cfg     Config
	centers []float64
	mask    *RegionMask
}

var axisIndex = map[string]int{"x": 0, "y": 1, "z": 2}

// NewBandLayout builds the deterministic band partition for cfg.
func NewBandLayout(cfg Config) (*BandLayout, error) {
	b := cfg.Bands
	n := cfg.Geometry.Points
	box := cfg.Geometry.BoxSize
	if b.Count < 0 {
		return nil, configErrorf("bands.count", "must be non-negative, got %d", b.Count)
	}
	axis, ok := axisIndex[b.Axis]
	if !ok {
		return nil, configErrorf("bands.axis", "unknown axis %q (expected x, y or z)", b.Axis)
	}
	layout := &BandLayout{cfg: cfg, mask: &RegionMask{n: n, axis: axis, layers: make([]layerInfo, n)}}
	if b.Count == 0 {
		return layout, nil
	}
	if !(b.Width > 0) {
		return nil, configErrorf("bands.width", "must be positive when bands are requested, got %v", b.Width)
	}
	if float64(b.Count)*b.Width*box*box > box*box*box {
		return nil, configErrorf("bands.width", "band volume %v exceeds box volume %v",
			float64(b.Count)*b.Width*box*box, box*box*box)
	}

	bin := cfg.BinSize()
	spacing := box / float64(b.Count)
	band := make([]int, n) // band index per layer, -1 for matrix
	for k := range band {
		band[k] = -1
	}
	for i := 0; i < b.Count; i++ {
		c := (float64(i) + 0.5) * spacing
		layout.centers = append(layout.centers, c)
		layers := 0
		for k := 0; k < n; k++ {
			pos := (float64(k) + 0.5) * bin
			if math.Abs(pos-c) <= b.Width/2+1e-9*bin {
				if band[k] >= 0 {
					return nil, configErrorf("bands.width", "bands %d and %d overlap", band[k], i)
				}
				band[k] = i
				layers++
			}
		}
		if layers == 0 {
			return nil, configErrorf("bands.width", "band %d of width %v covers no voxel layer (bin size %v)", i, b.Width, bin)
		}
	}

	for k := 0; k < n; k++ {
		if band[k] >= 0 {
			layout.mask.layers[k].region = RegionBand
		}
	}
	// Seed-excluded shells: the face layers of each run of equal region,
	// when the run is thick enough to keep an interior.
	for k := 0; k < n; k++ {
		start, length := runOf(band, k)
		if length < 3 {
			continue
		}
		if k == start || k == (start+length-1)%n {
			layout.mask.layers[k].seedExcluded = true
		}
	}
	return layout, nil
}

// runOf returns the first layer and length of the periodic run of equal
// band index containing layer k.
func runOf(band []int, k int) (start, length int) {
	n := len(band)
	start = k
	for length = 1; length < n; length++ {
		prev := (start - 1 + n) % n
		if band[prev] != band[k] {
			break
		}
		start = prev
	}
	if length == n {
		return 0, n
	}
	length = 1
	for j := (start + 1) % n; band[j] == band[k] && j != start; j = (j + 1) % n {
		length++
	}
	return start, length
}

// Mask returns the region partition.
func (l *BandLayout) Mask() *RegionMask { return l.mask }

// Centers returns the band centre coordinates along the band normal.
func (l *BandLayout) Centers() []float64 { return l.centers }

// BandVolume returns the nominal band volume count*width*box^2.
func (l *BandLayout) BandVolume() float64 {
	box := l.cfg.Geometry.BoxSize
	return float64(l.cfg.Bands.Count) * l.cfg.Bands.Width * box * box
}

// Apply stamps BandMarker on every band voxel of grid.
func (l *BandLayout) Apply(grid *VoxelGrid) {
	if len(l.centers) == 0 {
		return
	}
	for idx := 0; idx < grid.Len(); idx++ {
		if l.mask.Region(grid.Voxel(idx)) == RegionBand {
			grid.mark(idx, BandMarker)
		}
	}
}
