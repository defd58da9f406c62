package rve

import (
	"math"
	"sort"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"
)

// GrainCatalog is the ordered table of candidate grains. Order and IDs are a
// pure function of grain content: descending target volume, then measured
// axes, then phase and angles. Shuffling the input reproduces the catalog.
type GrainCatalog struct {
	grains  []*Grain
	dropped int
}

// CatalogEntry pairs an input row with the region it is placed in.
type CatalogEntry struct {
	Spec   GrainSpec
	Region Region
}

// NewGrainCatalog shrinks every entry's semi-axes by axisScale, drops grains
// whose target volume is below minVolume, sorts and assigns IDs firstID,
// firstID+1, ...
func NewGrainCatalog(entries []CatalogEntry, axisScale, minVolume float64, firstID int32) *GrainCatalog {
	c := &GrainCatalog{grains: make([]*Grain, 0, len(entries))}
	for _, e := range entries {
		s := e.Spec
		vol := s.Volume()
		if !(vol >= minVolume) {
			c.dropped++
			logrus.Debugf("dropping grain a=%.3g b=%.3g c=%.3g: volume %.3g below one voxel", s.A, s.B, s.C, vol)
			continue
		}
		c.grains = append(c.grains, &Grain{
			Phase:        s.Phase,
			Region:       e.Region,
			A:            s.A * axisScale,
			B:            s.B * axisScale,
			C:            s.C * axisScale,
			A0:           s.A,
			B0:           s.B,
			C0:           s.C,
			Alpha:        s.Alpha,
			Phi1:         s.Phi1,
			PHI:          s.PHI,
			Phi2:         s.Phi2,
			TargetVolume: vol,
			PlacedVolume: vol * axisScale * axisScale * axisScale,
		})
	}
	if c.dropped > 0 {
		logrus.Warnf("dropped %d grains smaller than one voxel", c.dropped)
	}

	sort.SliceStable(c.grains, func(i, j int) bool { return grainLess(c.grains[i], c.grains[j]) })
	for i, g := range c.grains {
		g.ID = firstID + int32(i)
	}
	return c
}

// grainLess is the growth priority order.
func grainLess(a, b *Grain) bool {
	keys := [][2]float64{
		{b.TargetVolume, a.TargetVolume},
		{b.A0, a.A0},
		{b.B0, a.B0},
		{b.C0, a.C0},
		{float64(a.Phase), float64(b.Phase)},
		{float64(a.Region), float64(b.Region)},
		{a.Alpha, b.Alpha},
		{a.Phi1, b.Phi1},
		{a.PHI, b.PHI},
		{a.Phi2, b.Phi2},
	}
	for _, k := range keys {
		if k[0] != k[1] {
			return k[0] < k[1]
		}
	}
	return false
}

// Grains returns the grains in ID order.
func (c *GrainCatalog) Grains() []*Grain { return c.grains }

// Len returns the number of grains kept.
func (c *GrainCatalog) Len() int { return len(c.grains) }

// Dropped returns how many entries were discarded as sub-voxel.
func (c *GrainCatalog) Dropped() int { return c.dropped }

// ByRegion returns the grains placed in region r, in ID order.
func (c *GrainCatalog) ByRegion(r Region) []*Grain {
	var out []*Grain
	for _, g := range c.grains {
		if g.Region == r {
			out = append(out, g)
		}
	}
	return out
}

// TotalVolume returns the summed target volume.
func (c *GrainCatalog) TotalVolume() float64 {
	total := 0.0
	for _, g := range c.grains {
		total += g.TargetVolume
	}
	return total
}

// RecommendedBoxSize returns the edge of a cube holding the catalog's total
// volume.
func (c *GrainCatalog) RecommendedBoxSize() float64 {
	return math.Cbrt(c.TotalVolume())
}

// VolumeStats returns mean and standard deviation of the target volumes.
func (c *GrainCatalog) VolumeStats() (mean, std float64) {
	if len(c.grains) == 0 {
		return 0, 0
	}
	vols := make([]float64, len(c.grains))
	for i, g := range c.grains {
		vols[i] = g.TargetVolume
	}
	if len(vols) == 1 {
		return vols[0], 0
	}
	return stat.MeanStdDev(vols, nil)
}
