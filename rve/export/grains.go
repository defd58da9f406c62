package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/rvegen/rvegen/rve"
)

// GrainRow is one row of the grain metadata table.
type GrainRow struct {
	ID           int32
	Phase        string
	Region       string
	A, B, C      float64 // placement (shrunk) semi-axes
	A0, B0, C0   float64 // measured semi-axes
	Alpha        float64
	Phi1         float64
	PHI          float64
	Phi2         float64
	TargetVolume float64
	FinalVolume  float64
	Voxels       int
	State        string
	Inclusion    bool
	Host         int32
}

// CSV column headers for the grain table.
var grainColumns = []string{
	"id", "phase", "region", "a", "b", "c", "a0", "b0", "c0",
	"alpha", "phi1", "PHI", "phi2", "target_volume", "final_volume",
	"voxels", "state", "inclusion", "host",
}

// GrainRows converts final grains to table rows.
func GrainRows(grains []*rve.Grain) []GrainRow {
	rows := make([]GrainRow, len(grains))
	for i, g := range grains {
		rows[i] = GrainRow{
			ID:           g.ID,
			Phase:        g.Phase.String(),
			Region:       g.Region.String(),
			A:            g.A,
			B:            g.B,
			C:            g.C,
			A0:           g.A0,
			B0:           g.B0,
			C0:           g.C0,
			Alpha:        g.Alpha,
			Phi1:         g.Phi1,
			PHI:          g.PHI,
			Phi2:         g.Phi2,
			TargetVolume: g.TargetVolume,
			FinalVolume:  g.CurrentVolume,
			Voxels:       g.Voxels,
			State:        g.State.String(),
			Inclusion:    g.Inclusion,
			Host:         g.Host,
		}
	}
	return rows
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// WriteGrainTable writes the grain metadata table to path.
func WriteGrainTable(path string, grains []*rve.Grain) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating grain table: %w", err)
	}
	defer func() { _ = file.Close() }()
	if err := EncodeGrainTable(file, GrainRows(grains)); err != nil {
		return err
	}
	return file.Close()
}

// EncodeGrainTable writes rows as CSV to w.
func EncodeGrainTable(w io.Writer, rows []GrainRow) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(grainColumns); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}
	for _, r := range rows {
		row := []string{
			strconv.Itoa(int(r.ID)),
			r.Phase,
			r.Region,
			formatFloat(r.A), formatFloat(r.B), formatFloat(r.C),
			formatFloat(r.A0), formatFloat(r.B0), formatFloat(r.C0),
			formatFloat(r.Alpha), formatFloat(r.Phi1), formatFloat(r.PHI), formatFloat(r.Phi2),
			formatFloat(r.TargetVolume),
			formatFloat(r.FinalVolume),
			strconv.Itoa(r.Voxels),
			r.State,
			strconv.FormatBool(r.Inclusion),
			strconv.Itoa(int(r.Host)),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("writing CSV row %d: %w", r.ID, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// LoadGrainTable reads a grain table written by WriteGrainTable.
func LoadGrainTable(path string) ([]GrainRow, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening grain table: %w", err)
	}
	defer func() { _ = file.Close() }()

	reader := csv.NewReader(file)
	if _, err := reader.Read(); err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}
	var rows []GrainRow
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV row: %w", err)
		}
		if len(row) < len(grainColumns) {
			return nil, fmt.Errorf("CSV row has %d columns, expected %d", len(row), len(grainColumns))
		}
		r, err := parseGrainRow(row)
		if err != nil {
			return nil, err
		}
		rows = append(rows, *r)
	}
	return rows, nil
}

func parseGrainRow(row []string) (*GrainRow, error) {
	id, err := strconv.ParseInt(row[0], 10, 32)
	if err != nil {
		return nil, fmt.Errorf("parsing grain id %q: %w", row[0], err)
	}
	floats := make([]float64, 12)
	for i := range floats {
		v, err := strconv.ParseFloat(row[3+i], 64)
		if err != nil {
			return nil, fmt.Errorf("grain %d column %s: %w", id, grainColumns[3+i], err)
		}
		floats[i] = v
	}
	voxels, _ := strconv.Atoi(row[15])
	inclusion, _ := strconv.ParseBool(row[17])
	host, _ := strconv.ParseInt(row[18], 10, 32)

	return &GrainRow{
		ID:           int32(id),
		Phase:        row[1],
		Region:       row[2],
		A:            floats[0],
		B:            floats[1],
		C:            floats[2],
		A0:           floats[3],
		B0:           floats[4],
		C0:           floats[5],
		Alpha:        floats[6],
		Phi1:         floats[7],
		PHI:          floats[8],
		Phi2:         floats[9],
		TargetVolume: floats[10],
		FinalVolume:  floats[11],
		Voxels:       voxels,
		State:        row[16],
		Inclusion:    inclusion,
		Host:         int32(host),
	}, nil
}
