// Package report renders figures of a generated RVE: the grain volume
// distribution and label slices through the voxel grid.
package report

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/rvegen/rvegen/rve"
)

// Figure size used for every saved plot.
const (
	figWidth  = 6 * vg.Inch
	figHeight = 6 * vg.Inch
)

// VolumeHistogram plots the distribution of final grain volumes against the
// requested target volumes and saves it to path (format from extension).
func VolumeHistogram(grains []*rve.Grain, bins int, path string) error {
	if len(grains) == 0 {
		return fmt.Errorf("volume histogram: no grains")
	}
	final := make(plotter.Values, 0, len(grains))
	target := make(plotter.Values, 0, len(grains))
	for _, g := range grains {
		final = append(final, g.CurrentVolume)
		target = append(target, g.TargetVolume)
	}

	p := plot.New()
	p.Title.Text = "Grain volume distribution"
	p.X.Label.Text = "Volume"
	p.Y.Label.Text = "Grains"

	finalHist, err := plotter.NewHist(final, bins)
	if err != nil {
		return fmt.Errorf("volume histogram: %w", err)
	}
	finalHist.FillColor = palette.Heat(4, 1).Colors()[1]
	targetHist, err := plotter.NewHist(target, bins)
	if err != nil {
		return fmt.Errorf("volume histogram: %w", err)
	}
	targetHist.FillColor = nil
	targetHist.LineStyle.Width = vg.Points(1.5)

	p.Add(finalHist, targetHist)
	p.Legend.Add("final", finalHist)
	p.Legend.Add("target", targetHist)
	p.Legend.Top = true

	if err := p.Save(figWidth, figHeight, path); err != nil {
		return fmt.Errorf("saving %s: %w", path, err)
	}
	return nil
}

// Slice is one layer of the grid normal to the z axis, as a heat map grid.
// Values are the grain IDs (or phase IDs) of the layer.
type Slice struct {
	n      int
	bin    float64
	values []float64
}

// NewSlice extracts layer z of grid. byPhase selects phase IDs instead of
// grain IDs; phases maps a final grain ID to its phase.
func NewSlice(grid *rve.VoxelGrid, z int, phases map[int32]rve.Phase, byPhase bool) *Slice {
	n := grid.N()
	s := &Slice{n: n, bin: grid.BinSize(), values: make([]float64, n*n)}
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			l := grid.At(grid.Index(rve.Voxel{X: x, Y: y, Z: z}))
			v := float64(l.ID)
			if !l.IsGrain() {
				v = 0
			} else if byPhase {
				v = float64(phases[l.ID])
			}
			s.values[y*n+x] = v
		}
	}
	return s
}

// Dims implements plotter.GridXYZ.
func (s *Slice) Dims() (c, r int) { return s.n, s.n }

// Z implements plotter.GridXYZ.
func (s *Slice) Z(c, r int) float64 { return s.values[r*s.n+c] }

// X implements plotter.GridXYZ.
func (s *Slice) X(c int) float64 { return (float64(c) + 0.5) * s.bin }

// Y implements plotter.GridXYZ.
func (s *Slice) Y(r int) float64 { return (float64(r) + 0.5) * s.bin }

// SliceHeatMap renders the mid-plane z layer of grid and saves it to path.
func SliceHeatMap(grid *rve.VoxelGrid, grains []*rve.Grain, byPhase bool, path string) error {
	phases := make(map[int32]rve.Phase, len(grains))
	for _, g := range grains {
		phases[g.ID] = g.Phase
	}
	slice := NewSlice(grid, grid.N()/2, phases, byPhase)

	colors := len(grains)
	title := "Grain IDs, z mid-plane"
	if byPhase {
		colors = 4
		title = "Phases, z mid-plane"
	}
	if colors < 2 {
		colors = 2
	}
	hm := plotter.NewHeatMap(slice, palette.Heat(colors, 1))

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "x"
	p.Y.Label.Text = "y"
	p.Add(hm)

	if err := p.Save(figWidth, figHeight, path); err != nil {
		return fmt.Errorf("saving %s: %w", path, err)
	}
	return nil
}
