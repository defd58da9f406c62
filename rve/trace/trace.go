package trace

// TraceLevel controls the verbosity of growth tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelStages captures one record per pipeline stage.
	TraceLevelStages TraceLevel = "stages"
	// TraceLevelGrains additionally captures seeding and per-grain growth.
	TraceLevelGrains TraceLevel = "grains"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:   true,
	TraceLevelStages: true,
	TraceLevelGrains: true,
	"":               true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// GrowthTrace collects records during a generation run. A nil *GrowthTrace
// is valid and records nothing.
type GrowthTrace struct {
	Level  TraceLevel
	Seeds  []SeedRecord
	Grains []GrainRecord
	Stages []StageRecord
}

// NewGrowthTrace creates a GrowthTrace ready for recording.
func NewGrowthTrace(level TraceLevel) *GrowthTrace {
	return &GrowthTrace{
		Level:  level,
		Seeds:  make([]SeedRecord, 0),
		Grains: make([]GrainRecord, 0),
		Stages: make([]StageRecord, 0),
	}
}

func (t *GrowthTrace) grains() bool {
	return t != nil && t.Level == TraceLevelGrains
}

func (t *GrowthTrace) stages() bool {
	return t != nil && (t.Level == TraceLevelStages || t.Level == TraceLevelGrains)
}

// RecordSeed appends a seeding record.
func (t *GrowthTrace) RecordSeed(r SeedRecord) {
	if t.grains() {
		t.Seeds = append(t.Seeds, r)
	}
}

// RecordGrain appends a per-grain growth record.
func (t *GrowthTrace) RecordGrain(r GrainRecord) {
	if t.grains() {
		t.Grains = append(t.Grains, r)
	}
}

// RecordStage appends a stage record.
func (t *GrowthTrace) RecordStage(r StageRecord) {
	if t.stages() {
		t.Stages = append(t.Stages, r)
	}
}
