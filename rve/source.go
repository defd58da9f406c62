package rve

// Role names what a batch of sampled grains is used for.
type Role string

const (
	RoleBand      Role = "band"
	RoleMatrix    Role = "matrix"
	RoleInclusion Role = "inclusion"
)

// SampleRequest asks a GrainSource for grains of one phase whose summed
// volume reaches TargetVolume.
type SampleRequest struct {
	Role         Role
	Phase        Phase
	TargetVolume float64
	// MaxAxis bounds every semi-axis when positive. Band grains are limited
	// to half the band width so they fit inside their slab.
	MaxAxis float64
}

// GrainSource supplies grain descriptors. Implementations live in rve/input:
// a generative distribution sampler and a measured-table reader.
type GrainSource interface {
	Sample(req SampleRequest) ([]GrainSpec, error)
}
