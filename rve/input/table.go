package input

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rvegen/rvegen/rve"
)

// Measured grain table columns. a, b and c are required; missing angle
// columns read as zero.
var (
	requiredColumns = []string{"a", "b", "c"}
	angleColumns    = []string{"alpha", "phi1", "PHI", "phi2"}
	tableColumns    = append(append([]string{}, requiredColumns...), angleColumns...)
)

// ReadGrainTable reads a measured grain table (one grain per row, header
// row first) and tags every row with phase.
func ReadGrainTable(path string, phase rve.Phase) ([]rve.GrainSpec, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening grain table: %w", err)
	}
	defer func() { _ = file.Close() }()
	specs, err := ParseGrainTable(file, phase)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return specs, nil
}

// ParseGrainTable parses a grain table from r.
func ParseGrainTable(r io.Reader, phase rve.Phase) ([]rve.GrainSpec, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	for _, name := range requiredColumns {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("grain table missing column %q", name)
		}
	}

	var specs []rve.GrainSpec
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV row: %w", err)
		}
		vals := make(map[string]float64, len(requiredColumns)+len(angleColumns))
		for _, name := range tableColumns {
			i, ok := col[name]
			if !ok {
				continue
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(row[i]), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d column %s: %w", line, name, err)
			}
			vals[name] = v
		}
		s := rve.GrainSpec{
			A: vals["a"], B: vals["b"], C: vals["c"],
			Alpha: vals["alpha"], Phi1: vals["phi1"], PHI: vals["PHI"], Phi2: vals["phi2"],
			Phase: phase,
		}
		if !(s.A > 0 && s.B > 0 && s.C > 0) {
			return nil, fmt.Errorf("line %d: semi-axes must be positive, got (%v, %v, %v)", line, s.A, s.B, s.C)
		}
		specs = append(specs, s)
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("grain table has no rows")
	}
	return specs, nil
}

// EncodeGrainTable writes specs in the measured table format, so a sampled
// catalog can be fed back through ReadGrainTable.
func EncodeGrainTable(w io.Writer, specs []rve.GrainSpec) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(tableColumns); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}
	for i, s := range specs {
		row := make([]string, 0, 7)
		for _, v := range []float64{s.A, s.B, s.C, s.Alpha, s.Phi1, s.PHI, s.Phi2} {
			row = append(row, strconv.FormatFloat(v, 'g', -1, 64))
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("writing CSV row %d: %w", i, err)
		}
	}
	writer.Flush()
	return writer.Error()
}
