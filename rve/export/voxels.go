package export

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/rvegen/rvegen/rve"
)

// voxelColumns is the header of the voxel table consumed by the mesher.
var voxelColumns = []string{"grain_id", "phase_id", "x", "y", "z"}

// WriteVoxelTable writes one row per voxel (raster order, voxel centres).
func WriteVoxelTable(path string, records []rve.VoxelRecord) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating voxel table: %w", err)
	}
	defer func() { _ = file.Close() }()
	buf := bufio.NewWriter(file)
	if err := EncodeVoxelTable(buf, records); err != nil {
		return err
	}
	if err := buf.Flush(); err != nil {
		return fmt.Errorf("flushing voxel table: %w", err)
	}
	return file.Close()
}

// EncodeVoxelTable writes records as CSV to w.
func EncodeVoxelTable(w io.Writer, records []rve.VoxelRecord) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(voxelColumns); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}
	row := make([]string, len(voxelColumns))
	for i, r := range records {
		row[0] = strconv.Itoa(int(r.GrainID))
		row[1] = strconv.Itoa(r.PhaseID)
		row[2] = formatFloat(r.X)
		row[3] = formatFloat(r.Y)
		row[4] = formatFloat(r.Z)
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("writing CSV row %d: %w", i, err)
		}
	}
	writer.Flush()
	return writer.Error()
}
