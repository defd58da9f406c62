package input

import (
	"math"
	"math/rand"
	"testing"
)

func TestGaussianSampler_ClampedToRange(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	s, err := NewValueSampler(DistSpec{
		Type:   "gaussian",
		Params: map[string]float64{"mean": 10, "std_dev": 20, "min": 2, "max": 15},
	})
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10000; i++ {
		v := s.Sample(rng)
		if v < 2 || v > 15 {
			t.Errorf("sample %d: %v outside [2, 15]", i, v)
			break
		}
	}
}

func TestLogNormalSampler_MedianMatchesMu(t *testing.T) {
	// GIVEN a log-normal diameter with median e^mu = 8
	rng := rand.New(rand.NewSource(42))
	s, err := NewValueSampler(DistSpec{
		Type:   "lognormal",
		Params: map[string]float64{"mu": math.Log(8), "sigma": 0.3},
	})
	if err != nil {
		t.Fatal(err)
	}

	// WHEN sampled many times
	n := 10000
	below := 0
	for i := 0; i < n; i++ {
		v := s.Sample(rng)
		if v <= 0 {
			t.Fatalf("sample %d: got %v, want > 0", i, v)
		}
		if v < 8 {
			below++
		}
	}

	// THEN about half the draws fall below the median
	frac := float64(below) / float64(n)
	if math.Abs(frac-0.5) > 0.03 {
		t.Errorf("fraction below median = %.3f, want ≈ 0.5", frac)
	}
}

func TestLogNormalSampler_OptionalBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	s, err := NewValueSampler(DistSpec{
		Type:   "lognormal",
		Params: map[string]float64{"mu": 0, "sigma": 2, "min": 0.5, "max": 3},
	})
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5000; i++ {
		if v := s.Sample(rng); v < 0.5 || v > 3 {
			t.Fatalf("sample %d: %v outside [0.5, 3]", i, v)
		}
	}
}

func TestUniformSampler_InRange(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	s, err := NewValueSampler(DistSpec{Type: "uniform", Params: map[string]float64{"min": 0, "max": 180}})
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5000; i++ {
		if v := s.Sample(rng); v < 0 || v >= 180 {
			t.Fatalf("sample %d: %v outside [0, 180)", i, v)
		}
	}
}

func TestEmpiricalPDFSampler_FollowsWeights(t *testing.T) {
	// GIVEN a PDF that does not sum to one
	rng := rand.New(rand.NewSource(42))
	s, err := NewValueSampler(DistSpec{Type: "empirical", PDF: map[float64]float64{1: 1, 2: 3, 4: 0}})
	if err != nil {
		t.Fatal(err)
	}

	// WHEN sampled
	counts := map[float64]int{}
	n := 20000
	for i := 0; i < n; i++ {
		counts[s.Sample(rng)]++
	}

	// THEN weights are normalized and zero-probability values never appear
	if counts[4] != 0 {
		t.Errorf("value with zero probability drawn %d times", counts[4])
	}
	if frac := float64(counts[2]) / float64(n); math.Abs(frac-0.75) > 0.02 {
		t.Errorf("P(2) = %.3f, want ≈ 0.75", frac)
	}
}

func TestConstantSampler(t *testing.T) {
	s, err := NewValueSampler(DistSpec{Type: "constant", Params: map[string]float64{"value": 1.5}})
	if err != nil {
		t.Fatal(err)
	}
	if v := s.Sample(nil); v != 1.5 {
		t.Errorf("got %v, want 1.5", v)
	}
}

func TestNewValueSampler_Errors(t *testing.T) {
	tests := []struct {
		name string
		spec DistSpec
	}{
		{"unknown type", DistSpec{Type: "weibull"}},
		{"gaussian missing max", DistSpec{Type: "gaussian", Params: map[string]float64{"mean": 1, "std_dev": 1, "min": 0}}},
		{"lognormal missing sigma", DistSpec{Type: "lognormal", Params: map[string]float64{"mu": 1}}},
		{"uniform inverted", DistSpec{Type: "uniform", Params: map[string]float64{"min": 2, "max": 1}}},
		{"empirical empty", DistSpec{Type: "empirical"}},
		{"constant missing value", DistSpec{Type: "constant"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewValueSampler(tt.spec); err == nil {
				t.Error("expected error")
			}
		})
	}
}
