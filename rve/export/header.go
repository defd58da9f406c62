package export

import (
	"fmt"
	"os"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gopkg.in/yaml.v3"

	"github.com/rvegen/rvegen/rve"
)

// HeaderVersion is the current run header format.
const HeaderVersion = 1

// RunHeader captures run metadata next to the grain and voxel tables.
type RunHeader struct {
	Version   int        `yaml:"header_version"`
	RunID     string     `yaml:"run_id"`
	CreatedAt string     `yaml:"created_at,omitempty"`
	Seed      int64      `yaml:"seed"`
	Status    string     `yaml:"status"`
	Input     string     `yaml:"input,omitempty"` // input spec path
	Config    rve.Config `yaml:"config"`
	Summary   RunSummary `yaml:"summary"`
}

// RunSummary holds aggregate statistics of a finished run.
type RunSummary struct {
	Grains          int                `yaml:"grains"`
	Inclusions      int                `yaml:"inclusions"`
	Stalled         int                `yaml:"stalled"`
	Dropped         int                `yaml:"dropped"`
	Wrapped         int                `yaml:"wrapped"`
	Fragments       int                `yaml:"fragments"`
	PhaseFractions  map[string]float64 `yaml:"phase_fractions"`
	VolumeMean      float64            `yaml:"volume_mean"`
	VolumeMedian    float64            `yaml:"volume_median"`
	VolumeP90       float64            `yaml:"volume_p90"`
	RecommendedSize float64            `yaml:"recommended_box_size"`
}

// Summarize computes the run summary from a generator result.
func Summarize(res *rve.Result) RunSummary {
	s := RunSummary{PhaseFractions: make(map[string]float64)}
	if res == nil || res.Labeling == nil {
		return s
	}
	grains := res.Labeling.Grains
	s.Grains = len(grains)
	s.Wrapped = len(res.Labeling.Report.Wrapped)
	s.Fragments = res.Labeling.Report.Fragments
	if res.Catalog != nil {
		s.Dropped = res.Catalog.Dropped()
		s.RecommendedSize = res.Catalog.RecommendedBoxSize()
	}

	total := 0
	vols := make([]float64, 0, len(grains))
	for _, g := range grains {
		if g.Inclusion {
			s.Inclusions++
		}
		if g.State == rve.StateStalled {
			s.Stalled++
		}
		s.PhaseFractions[g.Phase.String()] += float64(g.Voxels)
		total += g.Voxels
		vols = append(vols, g.CurrentVolume)
	}
	if total > 0 {
		for k, v := range s.PhaseFractions {
			s.PhaseFractions[k] = v / float64(total)
		}
	}
	if len(vols) > 0 {
		sort.Float64s(vols)
		s.VolumeMean = stat.Mean(vols, nil)
		s.VolumeMedian = stat.Quantile(0.5, stat.Empirical, vols, nil)
		s.VolumeP90 = stat.Quantile(0.9, stat.Empirical, vols, nil)
	}
	return s
}

// WriteRunHeader writes h as YAML to path.
func WriteRunHeader(path string, h *RunHeader) error {
	data, err := yaml.Marshal(h)
	if err != nil {
		return fmt.Errorf("marshaling run header: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing run header: %w", err)
	}
	return nil
}

// LoadRunHeader reads a run header written by WriteRunHeader.
func LoadRunHeader(path string) (*RunHeader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading run header: %w", err)
	}
	var h RunHeader
	if err := yaml.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("parsing run header: %w", err)
	}
	return &h, nil
}
