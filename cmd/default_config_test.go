package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rvegen/rvegen/rve"
)

// repoDefaults locates defaults.yaml from the cmd package directory.
func repoDefaults(t *testing.T) string {
	t.Helper()
	path := "defaults.yaml"
	if _, err := os.Stat(path); os.IsNotExist(err) {
		path = "../defaults.yaml"
		if _, err := os.Stat(path); os.IsNotExist(err) {
			t.Skip("defaults.yaml not found, skipping integration test")
		}
	}
	return path
}

func TestDefaults_EveryPresetResolves(t *testing.T) {
	// GIVEN the shipped defaults.yaml
	d, err := loadDefaults(repoDefaults(t))
	require.NoError(t, err)
	require.NotEmpty(t, d.PresetNames())

	for _, name := range d.PresetNames() {
		t.Run(name, func(t *testing.T) {
			// WHEN the preset is resolved
			cfg, spec, err := d.Resolve(name)
			require.NoError(t, err)

			// THEN its config is valid and its grain statistics are well-formed
			assert.NoError(t, cfg.Validate())
			require.NotNil(t, spec)
			assert.NoError(t, spec.Validate())
			assert.NotEmpty(t, d.Presets[name].Description)
		})
	}
}

func TestDefaults_PresetKeepsUnsetDefaults(t *testing.T) {
	d, err := loadDefaults(repoDefaults(t))
	require.NoError(t, err)

	cfg, _, err := d.Resolve("banded-dual-phase")
	require.NoError(t, err)

	def := rve.DefaultConfig()
	assert.Equal(t, 2, cfg.Bands.Count)
	assert.Equal(t, def.Growth, cfg.Growth)
	assert.Equal(t, def.Seed, cfg.Seed)
}

func TestDefaults_UnknownPreset(t *testing.T) {
	d, err := loadDefaults(repoDefaults(t))
	require.NoError(t, err)

	_, _, err = d.Resolve("stainless")
	assert.ErrorContains(t, err, "unknown preset")
}

func TestDefaults_StrictParsing(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown top-level key", "version: \"1\"\nmodels: {}\n"},
		{"unknown preset key", "presets:\n  p:\n    descripton: x\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "defaults.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.body), 0644))
			_, err := loadDefaults(path)
			assert.Error(t, err)
		})
	}
}

func TestDefaults_PresetConfigTypoRejected(t *testing.T) {
	// GIVEN a preset whose config misspells a key
	path := filepath.Join(t.TempDir(), "defaults.yaml")
	body := `presets:
  p:
    description: typo
    config:
      geometry:
        box_sise: 10
    input:
      phases:
        - phase: ferrite
          diameter: {type: constant, params: {value: 2}}
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	d, err := loadDefaults(path)
	require.NoError(t, err)

	// WHEN resolved
	_, _, err = d.Resolve("p")

	// THEN the typo surfaces
	assert.ErrorContains(t, err, "box_sise")
}
