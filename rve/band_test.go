package rve

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bandConfig(count int, width float64, axis string) Config {
	cfg := DefaultConfig()
	cfg.Geometry = GeometryConfig{BoxSize: 30, Points: 30}
	cfg.Bands.Count = count
	cfg.Bands.Width = width
	cfg.Bands.Axis = axis
	return cfg
}

func TestBandLayout_NoBands_AllMatrix(t *testing.T) {
	layout, err := NewBandLayout(bandConfig(0, 3, "y"))
	require.NoError(t, err)

	grid := NewVoxelGrid(30, 30)
	layout.Apply(grid)

	assert.Equal(t, grid.Len(), grid.Count(Unassigned))
	assert.Equal(t, 0.0, layout.BandVolume())
	assert.Len(t, layout.Mask().SeedCandidates(grid, RegionMatrix), grid.Len())
}

func TestBandLayout_TwoBands_MarksLayers(t *testing.T) {
	// GIVEN two bands of width 3 in a 30^3 box with unit voxels
	layout, err := NewBandLayout(bandConfig(2, 3, "y"))
	require.NoError(t, err)

	// WHEN applied
	grid := NewVoxelGrid(30, 30)
	layout.Apply(grid)

	// THEN bands are centred at 7.5 and 22.5 and cover three y layers each
	assert.Equal(t, []float64{7.5, 22.5}, layout.Centers())
	assert.Equal(t, 2*3*30*30, grid.Count(BandMarker))
	assert.InDelta(t, 2*3*30*30.0, layout.BandVolume(), 1e-9)
	mask := layout.Mask()
	for _, y := range []int{6, 7, 8, 21, 22, 23} {
		assert.Equal(t, RegionBand, mask.Region(Voxel{X: 4, Y: y, Z: 11}), "layer y=%d", y)
	}
	for _, y := range []int{5, 9, 20, 24} {
		assert.Equal(t, RegionMatrix, mask.Region(Voxel{X: 4, Y: y, Z: 11}), "layer y=%d", y)
	}
}

func TestBandLayout_SeedShellsExcluded(t *testing.T) {
	layout, err := NewBandLayout(bandConfig(2, 3, "y"))
	require.NoError(t, err)
	mask := layout.Mask()

	// Face layers of each band are not seedable; the middle layer is
	assert.False(t, mask.Seedable(Voxel{Y: 6}, RegionBand))
	assert.True(t, mask.Seedable(Voxel{Y: 7}, RegionBand))
	assert.False(t, mask.Seedable(Voxel{Y: 8}, RegionBand))

	// The matrix layers touching a band are not seedable for matrix grains
	assert.False(t, mask.Seedable(Voxel{Y: 5}, RegionMatrix))
	assert.False(t, mask.Seedable(Voxel{Y: 9}, RegionMatrix))
	assert.True(t, mask.Seedable(Voxel{Y: 12}, RegionMatrix))

	// Nobody seeds in the other region
	assert.False(t, mask.Seedable(Voxel{Y: 12}, RegionBand))
	assert.False(t, mask.Seedable(Voxel{Y: 7}, RegionMatrix))

	grid := NewVoxelGrid(30, 30)
	layout.Apply(grid)
	assert.Len(t, mask.SeedCandidates(grid, RegionBand), 2*30*30)
}

func TestBandLayout_AxisX(t *testing.T) {
	layout, err := NewBandLayout(bandConfig(1, 3, "x"))
	require.NoError(t, err)
	mask := layout.Mask()
	assert.Equal(t, RegionBand, mask.Region(Voxel{X: 15, Y: 0, Z: 0}))
	assert.Equal(t, RegionMatrix, mask.Region(Voxel{X: 0, Y: 15, Z: 15}))
}

func TestBandLayout_ConfigurationErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"band volume exceeds box", bandConfig(2, 20, "y")},
		{"zero width", bandConfig(1, 0, "y")},
		{"unknown axis", bandConfig(1, 3, "q")},
		{"band thinner than a voxel layer", func() Config {
			cfg := bandConfig(1, 0.2, "y")
			cfg.Geometry.Points = 10 // bin size 3, band centre 15 between layer centres
			return cfg
		}()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBandLayout(tt.cfg)
			var ce *ConfigurationError
			assert.True(t, errors.As(err, &ce), "expected *ConfigurationError, got %v", err)
		})
	}
}
