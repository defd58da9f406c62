package rve

import "fmt"

// ConfigurationError reports invalid geometry or ratio inputs. It is raised
// before any voxel is placed.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

func configErrorf(field, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// SeedingExhaustedError reports that the bounded seed retry budget was spent
// without finding a valid position for a grain or inclusion. Fatal for the run.
type SeedingExhaustedError struct {
	Stage    string
	GrainID  int32
	Attempts int
}

func (e *SeedingExhaustedError) Error() string {
	return fmt.Sprintf("%s: no valid seed for grain %d after %d attempts", e.Stage, e.GrainID, e.Attempts)
}

// GrowthStallError reports that tessellation stopped with unassigned voxels
// left. Valid inputs never produce it; it flags an internal consistency problem.
type GrowthStallError struct {
	Remaining int
}

func (e *GrowthStallError) Error() string {
	return fmt.Sprintf("tessellation stalled with %d unassigned voxels", e.Remaining)
}
