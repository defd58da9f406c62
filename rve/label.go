package rve

import "fmt"

// LabelKind discriminates the voxel ownership variants.
type LabelKind uint8

const (
	// KindUnassigned marks a voxel no grain owns yet.
	KindUnassigned LabelKind = iota
	// KindGrain marks a voxel owned by a grain.
	KindGrain
	// KindBandMarker marks band-interior voxels reserved for band grains.
	KindBandMarker
	// KindInclusion marks voxels stamped by an inclusion awaiting final numbering.
	KindInclusion
)

// Label is the ownership state of one voxel. The zero value is Unassigned.
type Label struct {
	Kind LabelKind
	ID   int32 // grain ID for KindGrain, 1-based inclusion index for KindInclusion
}

var (
	// Unassigned is the label of a voxel nobody owns.
	Unassigned = Label{}
	// BandMarker is the label stamped on band voxels before RSA.
	BandMarker = Label{Kind: KindBandMarker}
)

// GrainLabel returns the label of grain id.
func GrainLabel(id int32) Label { return Label{Kind: KindGrain, ID: id} }

// InclusionLabel returns the pending label of inclusion k (1-based).
func InclusionLabel(k int32) Label { return Label{Kind: KindInclusion, ID: k} }

// IsGrain reports whether the voxel is owned by a grain.
func (l Label) IsGrain() bool { return l.Kind == KindGrain }

// IsUnassigned reports whether no grain, band or inclusion holds the voxel.
func (l Label) IsUnassigned() bool { return l.Kind == KindUnassigned }

func (l Label) String() string {
	switch l.Kind {
	case KindUnassigned:
		return "unassigned"
	case KindGrain:
		return fmt.Sprintf("grain(%d)", l.ID)
	case KindBandMarker:
		return "band"
	case KindInclusion:
		return fmt.Sprintf("inclusion(%d)", l.ID)
	}
	return fmt.Sprintf("label(%d,%d)", l.Kind, l.ID)
}
