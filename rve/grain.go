package rve

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Phase is a material constituent. Numeric values are the phase IDs written
// to the voxel table.
type Phase int

const (
	Ferrite    Phase = 1
	Martensite Phase = 2
	Pearlite   Phase = 3
	Bainite    Phase = 4
)

var phaseNames = map[Phase]string{
	Ferrite:    "ferrite",
	Martensite: "martensite",
	Pearlite:   "pearlite",
	Bainite:    "bainite",
}

func (p Phase) String() string {
	if s, ok := phaseNames[p]; ok {
		return s
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// ParsePhase maps a phase name to its Phase.
func ParsePhase(s string) (Phase, error) {
	for p, name := range phaseNames {
		if name == s {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown phase %q", s)
}

// Region is the part of the domain a grain is placed in.
type Region uint8

const (
	RegionMatrix Region = iota
	RegionBand
)

func (r Region) String() string {
	if r == RegionBand {
		return "band"
	}
	return "matrix"
}

// GrainState tracks a grain through growth.
type GrainState uint8

const (
	StatePending GrainState = iota
	StateGrowing
	StateFilled
	StateStalled
)

func (s GrainState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateGrowing:
		return "growing"
	case StateFilled:
		return "filled"
	case StateStalled:
		return "stalled"
	}
	return "unknown"
}

// GrainSpec is one row of statistical input: measured (unshrunk) semi-axes
// and orientation angles in degrees.
type GrainSpec struct {
	A, B, C float64
	Alpha   float64 // shape rotation about z
	Phi1    float64 // Bunge Euler angles (texture), carried to the output
	PHI     float64
	Phi2    float64
	Phase   Phase
}

// Volume returns the ellipsoid volume 4/3*pi*a*b*c.
func (s GrainSpec) Volume() float64 {
	return 4.0 / 3.0 * math.Pi * s.A * s.B * s.C
}

// Grain is a catalog entry plus its growth state.
//
// Everything except CurrentVolume, Voxels, Seed and State is fixed once the
// catalog is built.
type Grain struct {
	ID     int32
	Phase  Phase
	Region Region

	// A, B, C are the shrunk semi-axes used for placement; A0, B0, C0 are
	// the measured ones TargetVolume derives from.
	A, B, C    float64
	A0, B0, C0 float64
	Alpha      float64
	Phi1       float64
	PHI        float64
	Phi2       float64

	// TargetVolume is the measured ellipsoid volume. PlacedVolume is the
	// volume of the shrunk ellipsoid and caps RSA growth; tessellation grows
	// grains past both.
	TargetVolume  float64
	PlacedVolume  float64
	CurrentVolume float64
	Voxels        int
	Seed          Voxel

	// State is the outcome of RSA growth. Tessellation does not change it,
	// so a Filled grain may end well above its target volume.
	State GrainState

	// Inclusion marks a former inclusion in the final grain table; Host is
	// the grain it sits in.
	Inclusion bool
	Host      int32

	// shape is the tolerance ellipsoid and body the bare one, each prepared
	// for a given bin size.
	shape *ellipsoid
	body  *ellipsoid
}

// Spec returns the measured input row the grain was built from.
func (g *Grain) Spec() GrainSpec {
	return GrainSpec{A: g.A0, B: g.B0, C: g.C0, Alpha: g.Alpha, Phi1: g.Phi1, PHI: g.PHI, Phi2: g.Phi2, Phase: g.Phase}
}

// Radius returns the normalized radius of a voxel offset (in voxels) from
// the seed: values <= 1 lie inside the grain ellipsoid inflated by half a
// voxel edge.
func (g *Grain) Radius(offset Voxel, bin float64) float64 {
	if g.shape == nil || g.shape.bin != bin {
		g.shape = newEllipsoid(g.A, g.B, g.C, g.Alpha, bin, bin/2)
	}
	return g.shape.radius(offset)
}

// Encloses reports whether a voxel offset from the seed lies inside the
// grain's shrunk ellipsoid, without the half-voxel tolerance.
func (g *Grain) Encloses(offset Voxel, bin float64) bool {
	reach := math.Max(g.A, math.Max(g.B, g.C)) / bin
	if math.Abs(float64(offset.X)) > reach || math.Abs(float64(offset.Y)) > reach || math.Abs(float64(offset.Z)) > reach {
		return false
	}
	if g.body == nil || g.body.bin != bin {
		g.body = newEllipsoid(g.A, g.B, g.C, g.Alpha, bin, 0)
	}
	return g.body.radius(offset) <= 1
}

// rsaCap is the volume RSA growth stops at.
func (g *Grain) rsaCap() float64 {
	if g.PlacedVolume > 0 {
		return g.PlacedVolume
	}
	return g.TargetVolume
}

func (g *Grain) addVoxel(voxelVolume float64) {
	g.Voxels++
	g.CurrentVolume = float64(g.Voxels) * voxelVolume
}

// ellipsoid evaluates the normalized quadratic form of a rotated ellipsoid
// whose semi-axes carry a tolerance h.
type ellipsoid struct {
	bin        float64
	ta, tb, tc float64
	toLocal    r3.Rotation
}

func newEllipsoid(a, b, c, alphaDeg, bin, h float64) *ellipsoid {
	return &ellipsoid{
		bin:     bin,
		ta:      a + h,
		tb:      b + h,
		tc:      c + h,
		toLocal: r3.NewRotation(-alphaDeg*math.Pi/180, r3.Vec{Z: 1}),
	}
}

func (e *ellipsoid) radius(d Voxel) float64 {
	p := r3.Vec{X: float64(d.X) * e.bin, Y: float64(d.Y) * e.bin, Z: float64(d.Z) * e.bin}
	q := e.toLocal.Rotate(p)
	x, y, z := q.X/e.ta, q.Y/e.tb, q.Z/e.tc
	return math.Sqrt(x*x + y*y + z*z)
}
