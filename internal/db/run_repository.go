package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/unklstewy/flightpath/internal/pipeline"
	"github.com/unklstewy/flightpath/pkg/trajectory"
)

// ErrRunNotFound is returned when a run or comparison ID is unknown.
var ErrRunNotFound = errors.New("run not found")

// Run is one stored analysis.
type Run struct {
	ID              string        `json:"id"`
	CreatedAt       time.Time     `json:"created_at"`
	GroundTruth     string        `json:"ground_truth"`
	Metric          string        `json:"metric"`
	Duration        time.Duration `json:"duration_ns"`
	SourceCount     int           `json:"source_count"`
	ComparisonCount int           `json:"comparison_count"`
}

// SourceRecord is how one source loaded during a run.
type SourceRecord struct {
	Name      string `json:"name"`
	Format    string `json:"format"`
	Path      string `json:"path"`
	Samples   int    `json:"samples"`
	Malformed int    `json:"malformed"`
	Offset    int64  `json:"offset"`
	Error     string `json:"error,omitempty"`
}

// ComparisonRecord is the stored summary of one prediction.
type ComparisonRecord struct {
	ID      string             `json:"id"`
	RunID   string             `json:"run_id"`
	Source  string             `json:"source"`
	Label   string             `json:"label"`
	Summary trajectory.Summary `json:"summary"`
	Skipped int                `json:"skipped"`
	Error   string             `json:"error,omitempty"`
}

// Sentence is the one-line summary, or the error for failed comparisons.
func (c ComparisonRecord) Sentence() string {
	if c.Error != "" {
		return c.Label + ": " + c.Error
	}
	return c.Summary.Sentence(c.Label)
}

// DeviationRecord is one stored alignment.
type DeviationRecord struct {
	Index     int               `json:"index"`
	Probe     trajectory.Sample `json:"probe"`
	Reference trajectory.Sample `json:"reference"`
	Deviation float64           `json:"deviation"`
}

// RunRepository stores and reads analysis runs.
type RunRepository struct {
	db *DB
}

// NewRunRepository creates a new run repository.
func NewRunRepository(db *DB) *RunRepository {
	return &RunRepository{db: db}
}

// SaveRun stores a complete pipeline result in one transaction and returns
// the new run ID.
func (r *RunRepository) SaveRun(ctx context.Context, result *pipeline.Result) (string, error) {
	runID := uuid.NewString()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, r.db.rebind(
		`INSERT INTO runs (id, created_at, ground_truth, metric, duration_ms, source_count, comparison_count)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`),
		runID, result.StartedAt.Unix(), result.GroundTruth, result.Metric.String(),
		result.Duration.Milliseconds(), len(result.Sources), len(result.Comparisons),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	for i, s := range result.Sources {
		var samples, malformed int
		if s.Report != nil {
			samples, malformed = s.Report.Samples, s.Report.Malformed
		}
		_, err = tx.ExecContext(ctx, r.db.rebind(
			`INSERT INTO source_loads (run_id, ordinal, name, format, path, samples, malformed, offset_unix, error)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			runID, i, s.Name, string(s.Format), s.Path, samples, malformed, s.Offset, errText(s.Err),
		)
		if err != nil {
			return "", fmt.Errorf("failed to insert source %s: %w", s.Name, err)
		}
	}

	devStmt, err := tx.PrepareContext(ctx, r.db.rebind(
		`INSERT INTO deviations (comparison_id, idx, probe_time, probe_lat, probe_lon, probe_alt,
		                         ref_lat, ref_lon, ref_alt, deviation)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`))
	if err != nil {
		return "", fmt.Errorf("failed to prepare deviation insert: %w", err)
	}
	defer devStmt.Close()

	for i, c := range result.Comparisons {
		cmpID := uuid.NewString()
		s := c.Summary
		_, err = tx.ExecContext(ctx, r.db.rebind(
			`INSERT INTO comparisons (id, run_id, ordinal, source, label, sample_count,
			                          mean, stddev, min_dev, max_dev, median, rms, skipped, error)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			cmpID, runID, i, c.Source, c.Label, s.Count,
			s.Mean, s.StdDev, s.Min, s.Max, s.Median, s.RMS, c.Skipped, errText(c.Err),
		)
		if err != nil {
			return "", fmt.Errorf("failed to insert comparison %s: %w", c.Source, err)
		}

		for _, a := range c.Alignments {
			_, err = devStmt.ExecContext(ctx,
				cmpID, a.Index, a.Probe.Time, a.Probe.Latitude, a.Probe.Longitude, a.Probe.Altitude,
				a.Reference.Latitude, a.Reference.Longitude, a.Reference.Altitude, a.Deviation,
			)
			if err != nil {
				return "", fmt.Errorf("failed to insert deviation %s/%d: %w", c.Source, a.Index, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit run: %w", err)
	}
	return runID, nil
}

// ListRuns returns the most recent runs, newest first.
func (r *RunRepository) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx, r.db.rebind(
		`SELECT id, created_at, ground_truth, metric, duration_ms, source_count, comparison_count
		 FROM runs
		 ORDER BY created_at DESC, id
		 LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun returns a single run.
func (r *RunRepository) GetRun(ctx context.Context, id string) (*Run, error) {
	row := r.db.QueryRowContext(ctx, r.db.rebind(
		`SELECT id, created_at, ground_truth, metric, duration_ms, source_count, comparison_count
		 FROM runs WHERE id = ?`), id)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// GetSources returns the source loads of a run in configuration order.
func (r *RunRepository) GetSources(ctx context.Context, runID string) ([]SourceRecord, error) {
	rows, err := r.db.QueryContext(ctx, r.db.rebind(
		`SELECT name, format, path, samples, malformed, offset_unix, error
		 FROM source_loads WHERE run_id = ? ORDER BY ordinal`), runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sources: %w", err)
	}
	defer rows.Close()

	var out []SourceRecord
	for rows.Next() {
		var s SourceRecord
		if err := rows.Scan(&s.Name, &s.Format, &s.Path, &s.Samples, &s.Malformed, &s.Offset, &s.Error); err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetComparisons returns the comparisons of a run in configuration order.
func (r *RunRepository) GetComparisons(ctx context.Context, runID string) ([]ComparisonRecord, error) {
	rows, err := r.db.QueryContext(ctx, r.db.rebind(
		`SELECT `+comparisonColumns+` FROM comparisons WHERE run_id = ? ORDER BY ordinal`), runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query comparisons: %w", err)
	}
	defer rows.Close()

	var out []ComparisonRecord
	for rows.Next() {
		c, err := scanComparison(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetComparison returns a single comparison.
func (r *RunRepository) GetComparison(ctx context.Context, id string) (*ComparisonRecord, error) {
	row := r.db.QueryRowContext(ctx, r.db.rebind(
		`SELECT `+comparisonColumns+` FROM comparisons WHERE id = ?`), id)

	c, err := scanComparison(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: comparison %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetDeviations returns the stored alignments of a comparison in probe order.
func (r *RunRepository) GetDeviations(ctx context.Context, comparisonID string) ([]DeviationRecord, error) {
	rows, err := r.db.QueryContext(ctx, r.db.rebind(
		`SELECT idx, probe_time, probe_lat, probe_lon, probe_alt, ref_lat, ref_lon, ref_alt, deviation
		 FROM deviations WHERE comparison_id = ? ORDER BY idx`), comparisonID)
	if err != nil {
		return nil, fmt.Errorf("failed to query deviations: %w", err)
	}
	defer rows.Close()

	var out []DeviationRecord
	for rows.Next() {
		var d DeviationRecord
		err := rows.Scan(&d.Index, &d.Probe.Time,
			&d.Probe.Latitude, &d.Probe.Longitude, &d.Probe.Altitude,
			&d.Reference.Latitude, &d.Reference.Longitude, &d.Reference.Altitude,
			&d.Deviation)
		if err != nil {
			return nil, fmt.Errorf("failed to scan deviation: %w", err)
		}
		d.Reference.Time = d.Probe.Time
		out = append(out, d)
	}
	return out, rows.Err()
}

// DeleteRun removes a run and everything stored with it.
func (r *RunRepository) DeleteRun(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := r.deleteRuns(ctx, tx, `id = ?`, id); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteRunsBefore removes runs created before cutoff and returns how many
// were deleted. Should be called periodically to prevent unbounded growth.
func (r *RunRepository) DeleteRunsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var n int64
	err = tx.QueryRowContext(ctx, r.db.rebind(`SELECT COUNT(*) FROM runs WHERE created_at < ?`), cutoff.Unix()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count old runs: %w", err)
	}
	if n == 0 {
		return 0, nil
	}

	if err := r.deleteRuns(ctx, tx, `created_at < ?`, cutoff.Unix()); err != nil {
		return 0, err
	}
	return n, tx.Commit()
}

// deleteRuns deletes child rows before parents so it does not depend on
// foreign key cascades being enabled.
func (r *RunRepository) deleteRuns(ctx context.Context, tx *sql.Tx, where string, arg any) error {
	runs := `SELECT id FROM runs WHERE ` + where
	stmts := []struct {
		what  string
		query string
	}{
		{"deviations", `DELETE FROM deviations WHERE comparison_id IN (SELECT id FROM comparisons WHERE run_id IN (` + runs + `))`},
		{"comparisons", `DELETE FROM comparisons WHERE run_id IN (` + runs + `)`},
		{"sources", `DELETE FROM source_loads WHERE run_id IN (` + runs + `)`},
		{"runs", `DELETE FROM runs WHERE ` + where},
	}
	for _, s := range stmts {
		if _, err := tx.ExecContext(ctx, r.db.rebind(s.query), arg); err != nil {
			return fmt.Errorf("failed to delete %s: %w", s.what, err)
		}
	}
	return nil
}

const comparisonColumns = `id, run_id, source, label, sample_count, mean, stddev, min_dev, max_dev, median, rms, skipped, error`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Run, error) {
	var (
		run        Run
		createdAt  int64
		durationMS int64
	)
	err := s.Scan(&run.ID, &createdAt, &run.GroundTruth, &run.Metric, &durationMS, &run.SourceCount, &run.ComparisonCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return run, err
		}
		return run, fmt.Errorf("failed to scan run: %w", err)
	}
	run.CreatedAt = time.Unix(createdAt, 0).UTC()
	run.Duration = time.Duration(durationMS) * time.Millisecond
	return run, nil
}

func scanComparison(s scanner) (ComparisonRecord, error) {
	var c ComparisonRecord
	err := s.Scan(&c.ID, &c.RunID, &c.Source, &c.Label, &c.Summary.Count,
		&c.Summary.Mean, &c.Summary.StdDev, &c.Summary.Min, &c.Summary.Max,
		&c.Summary.Median, &c.Summary.RMS, &c.Skipped, &c.Error)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c, err
		}
		return c, fmt.Errorf("failed to scan comparison: %w", err)
	}
	return c, nil
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
