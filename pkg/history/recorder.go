package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/soundprediction/go-graphrank/pkg/types"
)

// Recorder appends analysis runs and their result mappings to a DuckDB file.
type Recorder struct {
	db *sql.DB
}

// Open opens (creating if needed) the DuckDB database at dbPath.
func Open(dbPath string) (*Recorder, error) {
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open DuckDB: %w", err)
	}

	r := &Recorder{db: db}
	if err := r.createTables(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return r, nil
}

// DB returns the underlying connection so other sinks can share the file.
func (r *Recorder) DB() *sql.DB {
	return r.db
}

func (r *Recorder) createTables(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS analysis_runs (
			id VARCHAR PRIMARY KEY,
			kind VARCHAR,
			edges INTEGER,
			nodes INTEGER,
			written INTEGER,
			unmatched INTEGER,
			communities INTEGER,
			modularity DOUBLE,
			iterations INTEGER,
			converged BOOLEAN,
			top_entities JSON,
			started_at TIMESTAMP,
			finished_at TIMESTAMP,
			error VARCHAR
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create analysis_runs table: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS analysis_results (
			run_id VARCHAR,
			entity_id VARCHAR,
			community_id BIGINT,
			score DOUBLE
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create analysis_results table: %w", err)
	}

	return nil
}

// RecordRun stores report and the mapping it produced in one transaction.
// Exactly one of partition and scores is expected to be non-nil; both may be
// nil for a run that failed before analysis.
func (r *Recorder) RecordRun(ctx context.Context, report *types.RunReport, partition types.Partition, scores types.Scores) error {
	if report == nil || report.ID == "" {
		return errors.New("run report has no id")
	}

	topJSON, err := json.Marshal(report.TopEntities)
	if err != nil {
		return fmt.Errorf("failed to marshal top entities: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	finishedAt := sql.NullTime{}
	if !report.FinishedAt.IsZero() {
		finishedAt = sql.NullTime{Time: report.FinishedAt.UTC(), Valid: true}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO analysis_runs (
			id, kind, edges, nodes, written, unmatched, communities, modularity,
			iterations, converged, top_entities, started_at, finished_at, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		report.ID,
		string(report.Kind),
		report.Edges,
		report.Nodes,
		report.Written,
		report.Unmatched,
		report.Communities,
		report.Modularity,
		report.Iterations,
		report.Converged,
		string(topJSON),
		report.StartedAt.UTC(),
		finishedAt,
		report.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", report.ID, err)
	}

	if len(partition) > 0 || len(scores) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO analysis_results (run_id, entity_id, community_id, score)
			VALUES (?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, id := range partition.SortedIDs() {
			community := sql.NullInt64{Int64: int64(partition[id]), Valid: true}
			if _, err := stmt.ExecContext(ctx, report.ID, string(id), community, sql.NullFloat64{}); err != nil {
				return fmt.Errorf("failed to insert result for %s: %w", id, err)
			}
		}
		for _, id := range scores.SortedIDs() {
			score := sql.NullFloat64{Float64: scores[id], Valid: true}
			if _, err := stmt.ExecContext(ctx, report.ID, string(id), sql.NullInt64{}, score); err != nil {
				return fmt.Errorf("failed to insert result for %s: %w", id, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Recent returns up to limit runs, newest first. An empty kind matches both
// analyses.
func (r *Recorder) Recent(ctx context.Context, kind types.AnalysisKind, limit int) ([]types.RunReport, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, kind, edges, nodes, written, unmatched, communities, modularity,
			iterations, converged, CAST(top_entities AS VARCHAR), started_at, finished_at, error
		FROM analysis_runs
	`
	args := []any{}
	if kind != "" {
		query += " WHERE kind = ?"
		args = append(args, string(kind))
	}
	query += " ORDER BY started_at DESC, id LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var reports []types.RunReport
	for rows.Next() {
		var (
			report     types.RunReport
			kindStr    string
			topJSON    sql.NullString
			finishedAt sql.NullTime
			errStr     sql.NullString
		)
		if err := rows.Scan(
			&report.ID, &kindStr, &report.Edges, &report.Nodes, &report.Written,
			&report.Unmatched, &report.Communities, &report.Modularity, &report.Iterations, &report.Converged,
			&topJSON, &report.StartedAt, &finishedAt, &errStr,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		report.Kind = types.AnalysisKind(kindStr)
		if topJSON.Valid && topJSON.String != "" && topJSON.String != "null" {
			if err := json.Unmarshal([]byte(topJSON.String), &report.TopEntities); err != nil {
				return nil, fmt.Errorf("failed to unmarshal top entities of %s: %w", report.ID, err)
			}
		}
		if finishedAt.Valid {
			report.FinishedAt = finishedAt.Time
		}
		report.Error = errStr.String
		reports = append(reports, report)
	}

	return reports, rows.Err()
}

// Results returns the stored mapping of a run as entity id → value, with
// community ids converted to float64.
func (r *Recorder) Results(ctx context.Context, runID string) (map[types.EntityID]float64, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT entity_id, community_id, score
		FROM analysis_results
		WHERE run_id = ?
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	results := make(map[types.EntityID]float64)
	for rows.Next() {
		var (
			id        string
			community sql.NullInt64
			score     sql.NullFloat64
		)
		if err := rows.Scan(&id, &community, &score); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		switch {
		case community.Valid:
			results[types.EntityID(id)] = float64(community.Int64)
		case score.Valid:
			results[types.EntityID(id)] = score.Float64
		}
	}

	return results, rows.Err()
}

// Close closes the DuckDB connection
func (r *Recorder) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}
