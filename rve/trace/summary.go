package trace

// TraceSummary aggregates statistics from a GrowthTrace.
type TraceSummary struct {
	SeededGrains     int
	MeanSeedAttempts float64
	MaxSeedAttempts  int
	Filled           int // per-grain outcomes; only RSA records them
	Stalled          int
	StageClaims      map[string]int // stage → voxels claimed
}

// Summarize computes aggregate statistics from a GrowthTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(t *GrowthTrace) *TraceSummary {
	summary := &TraceSummary{
		StageClaims: make(map[string]int),
	}
	if t == nil {
		return summary
	}

	summary.SeededGrains = len(t.Seeds)
	if len(t.Seeds) > 0 {
		total := 0
		for _, s := range t.Seeds {
			total += s.Attempts
			if s.Attempts > summary.MaxSeedAttempts {
				summary.MaxSeedAttempts = s.Attempts
			}
		}
		summary.MeanSeedAttempts = float64(total) / float64(len(t.Seeds))
	}

	for _, g := range t.Grains {
		switch g.State {
		case "filled":
			summary.Filled++
		case "stalled":
			summary.Stalled++
		}
	}

	for _, s := range t.Stages {
		summary.StageClaims[s.Stage] += s.Claimed
	}
	return summary
}
