// Package store keeps a SQLite registry of generated RVEs: one row per run
// and its final grain table.
package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/rvegen/rvegen/rve/export"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id     TEXT PRIMARY KEY,
	created_at BIGINT NOT NULL,
	seed       BIGINT NOT NULL,
	box_size   DOUBLE NOT NULL,
	points     INTEGER NOT NULL,
	status     TEXT NOT NULL,
	grains     INTEGER NOT NULL,
	out_dir    TEXT,
	config     TEXT
);
CREATE TABLE IF NOT EXISTS grains (
	run_id        TEXT NOT NULL,
	grain_id      INTEGER NOT NULL,
	phase         TEXT NOT NULL,
	region        TEXT NOT NULL,
	a0            DOUBLE,
	b0            DOUBLE,
	c0            DOUBLE,
	alpha         DOUBLE,
	phi1          DOUBLE,
	phi_big       DOUBLE,
	phi2          DOUBLE,
	target_volume DOUBLE,
	final_volume  DOUBLE,
	voxels        INTEGER,
	state         TEXT,
	inclusion     BOOLEAN,
	host          INTEGER,
	PRIMARY KEY (run_id, grain_id),
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);
`

// Run is one registered generation run.
type Run struct {
	RunID     string
	CreatedAt int64 // unix nanoseconds
	Seed      int64
	BoxSize   float64
	Points    int
	Status    string
	Grains    int
	OutDir    string
	Config    string // YAML
}

// Store is the run registry.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the registry at path. ":memory:" gives a
// private in-memory database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open run registry: %w", err)
	}
	// A single connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// InsertRun persists run and its grains in one transaction. If RunID is
// empty, a UUID is generated.
func (s *Store) InsertRun(run *Run, grains []export.GrainRow) error {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.CreatedAt == 0 {
		run.CreatedAt = time.Now().UnixNano()
	}
	run.Grains = len(grains)

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(`
		INSERT INTO runs (run_id, created_at, seed, box_size, points, status, grains, out_dir, config)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.CreatedAt, run.Seed, run.BoxSize, run.Points, run.Status, run.Grains, run.OutDir, run.Config,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO grains (
			run_id, grain_id, phase, region, a0, b0, c0, alpha, phi1, phi_big, phi2,
			target_volume, final_volume, voxels, state, inclusion, host
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare grain insert: %w", err)
	}
	defer stmt.Close()
	for _, g := range grains {
		_, err := stmt.Exec(
			run.RunID, g.ID, g.Phase, g.Region, g.A0, g.B0, g.C0, g.Alpha, g.Phi1, g.PHI, g.Phi2,
			g.TargetVolume, g.FinalVolume, g.Voxels, g.State, g.Inclusion, g.Host,
		)
		if err != nil {
			return fmt.Errorf("insert grain %d: %w", g.ID, err)
		}
	}
	return tx.Commit()
}

// GetRun returns a single run by ID.
func (s *Store) GetRun(runID string) (*Run, error) {
	row := s.db.QueryRow(`
		SELECT run_id, created_at, seed, box_size, points, status, grains, out_dir, config
		FROM runs WHERE run_id = ?`, runID)
	r, err := scanRun(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("run %s not found", runID)
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	return r, nil
}

// ListRuns returns all runs, newest first.
func (s *Store) ListRuns() ([]*Run, error) {
	rows, err := s.db.Query(`
		SELECT run_id, created_at, seed, box_size, points, status, grains, out_dir, config
		FROM runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Grains returns the grain table of a run in grain ID order.
func (s *Store) Grains(runID string) ([]export.GrainRow, error) {
	rows, err := s.db.Query(`
		SELECT grain_id, phase, region, a0, b0, c0, alpha, phi1, phi_big, phi2,
		       target_volume, final_volume, voxels, state, inclusion, host
		FROM grains WHERE run_id = ? ORDER BY grain_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query grains: %w", err)
	}
	defer rows.Close()

	var out []export.GrainRow
	for rows.Next() {
		var g export.GrainRow
		if err := rows.Scan(
			&g.ID, &g.Phase, &g.Region, &g.A0, &g.B0, &g.C0, &g.Alpha, &g.Phi1, &g.PHI, &g.Phi2,
			&g.TargetVolume, &g.FinalVolume, &g.Voxels, &g.State, &g.Inclusion, &g.Host,
		); err != nil {
			return nil, fmt.Errorf("scan grain: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*Run, error) {
	var r Run
	var outDir, cfg sql.NullString
	if err := sc.Scan(&r.RunID, &r.CreatedAt, &r.Seed, &r.BoxSize, &r.Points, &r.Status, &r.Grains, &outDir, &cfg); err != nil {
		return nil, err
	}
	r.OutDir = outDir.String
	r.Config = cfg.String
	return &r, nil
}
