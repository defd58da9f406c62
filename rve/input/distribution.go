package input

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// ValueSampler draws one value of a grain statistic (diameter, aspect
// ratio, angle).
type ValueSampler interface {
	Sample(rng *rand.Rand) float64
}

// GaussianSampler produces clamped Gaussian values.
type GaussianSampler struct {
	mean, stdDev float64
	min, max     float64
}

func (s *GaussianSampler) Sample(rng *rand.Rand) float64 {
	if s.min == s.max {
		return s.min
	}
	val := rng.NormFloat64()*s.stdDev + s.mean
	return math.Min(s.max, math.Max(s.min, val))
}

// LogNormalSampler produces clamped log-normal values: X = exp(mu + sigma*Z).
// Grain equivalent diameters are usually described this way.
type LogNormalSampler struct {
	mu, sigma float64
	min, max  float64
}

func (s *LogNormalSampler) Sample(rng *rand.Rand) float64 {
	val := math.Exp(s.mu + s.sigma*rng.NormFloat64())
	// Guard against +Inf from extreme sigma values
	if math.IsInf(val, 0) || math.IsNaN(val) {
		return s.max
	}
	return math.Min(s.max, math.Max(s.min, val))
}

// UniformSampler produces values uniformly in [min, max).
type UniformSampler struct {
	min, max float64
}

func (s *UniformSampler) Sample(rng *rand.Rand) float64 {
	return s.min + rng.Float64()*(s.max-s.min)
}

// EmpiricalPDFSampler samples from an empirical probability distribution
// using inverse CDF via binary search.
type EmpiricalPDFSampler struct {
	values []float64 // sorted sample values
	cdf    []float64 // cumulative probabilities (same length as values)
}

// NewEmpiricalPDFSampler creates a sampler from a PDF map (value → probability).
// Automatically normalizes probabilities if they don't sum to 1.0.
func NewEmpiricalPDFSampler(pdf map[float64]float64) *EmpiricalPDFSampler {
	keys := make([]float64, 0, len(pdf))
	for k := range pdf {
		keys = append(keys, k)
	}
	sort.Float64s(keys)

	totalProb := 0.0
	for _, k := range keys {
		totalProb += pdf[k]
	}

	values := make([]float64, 0, len(keys))
	cdf := make([]float64, 0, len(keys))
	cumulative := 0.0
	for _, k := range keys {
		p := pdf[k]
		if p <= 0 {
			continue // skip zero or negative probabilities
		}
		cumulative += p / totalProb
		values = append(values, k)
		cdf = append(cdf, cumulative)
	}
	// Ensure last CDF entry is exactly 1.0
	if len(cdf) > 0 {
		cdf[len(cdf)-1] = 1.0
	}
	return &EmpiricalPDFSampler{values: values, cdf: cdf}
}

func (s *EmpiricalPDFSampler) Sample(rng *rand.Rand) float64 {
	if len(s.values) == 0 {
		return 0
	}
	if len(s.values) == 1 {
		return s.values[0]
	}
	idx := sort.SearchFloat64s(s.cdf, rng.Float64())
	if idx >= len(s.values) {
		idx = len(s.values) - 1
	}
	return s.values[idx]
}

// ConstantSampler always returns the same fixed value.
type ConstantSampler struct {
	value float64
}

func (s *ConstantSampler) Sample(_ *rand.Rand) float64 {
	return s.value
}

// requireParam checks that all required keys exist in a params map.
func requireParam(params map[string]float64, keys ...string) error {
	for _, k := range keys {
		if _, ok := params[k]; !ok {
			return fmt.Errorf("distribution requires parameter %q", k)
		}
	}
	return nil
}

// NewValueSampler creates a ValueSampler from a DistSpec.
func NewValueSampler(spec DistSpec) (ValueSampler, error) {
	switch spec.Type {
	case "gaussian":
		if err := requireParam(spec.Params, "mean", "std_dev", "min", "max"); err != nil {
			return nil, err
		}
		return &GaussianSampler{
			mean:   spec.Params["mean"],
			stdDev: spec.Params["std_dev"],
			min:    spec.Params["min"],
			max:    spec.Params["max"],
		}, nil

	case "lognormal":
		if err := requireParam(spec.Params, "mu", "sigma"); err != nil {
			return nil, err
		}
		s := &LogNormalSampler{
			mu:    spec.Params["mu"],
			sigma: spec.Params["sigma"],
			min:   0,
			max:   math.Inf(1),
		}
		if v, ok := spec.Params["min"]; ok {
			s.min = v
		}
		if v, ok := spec.Params["max"]; ok {
			s.max = v
		}
		return s, nil

	case "uniform":
		if err := requireParam(spec.Params, "min", "max"); err != nil {
			return nil, err
		}
		if spec.Params["max"] < spec.Params["min"] {
			return nil, fmt.Errorf("uniform distribution requires min <= max, got [%g, %g]",
				spec.Params["min"], spec.Params["max"])
		}
		return &UniformSampler{min: spec.Params["min"], max: spec.Params["max"]}, nil

	case "empirical":
		if len(spec.PDF) == 0 {
			return nil, fmt.Errorf("empirical distribution requires a non-empty pdf")
		}
		return NewEmpiricalPDFSampler(spec.PDF), nil

	case "constant":
		if err := requireParam(spec.Params, "value"); err != nil {
			return nil, err
		}
		return &ConstantSampler{value: spec.Params["value"]}, nil

	default:
		return nil, fmt.Errorf("unknown distribution type %q", spec.Type)
	}
}
