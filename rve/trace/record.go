// Package trace provides growth-trace recording for RVE generation runs.
// It stores pure data types and does not import rve.
package trace

// SeedRecord captures the seeding of one grain or inclusion.
type SeedRecord struct {
	Stage    string
	GrainID  int32
	Attempts int
	X, Y, Z  int
	Host     int32 // host grain for inclusions, 0 otherwise
}

// GrainRecord captures the outcome of growing one grain in one stage.
type GrainRecord struct {
	Stage   string
	GrainID int32
	Voxels  int
	Volume  float64
	Target  float64
	State   string
}

// StageRecord captures one pipeline stage.
type StageRecord struct {
	Stage      string
	Grains     int
	Iterations int
	Claimed    int // voxels claimed (or stamped) by this stage
	Remaining  int // unassigned voxels after the stage
}
