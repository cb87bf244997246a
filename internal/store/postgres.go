// Package store provides the Postgres persistence layer for imported
// tenants, their leases, and the import-run history that rollback hangs off.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rentfolio/rentroll/internal/rentroll"
)

// ErrRunNotFound is returned when a run ID has no import_runs row.
var ErrRunNotFound = errors.New("import run not found")

// Postgres implements rentroll.TenantStore and rentroll.RunRecorder on a
// pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// New creates a Postgres store on pool.
func New(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Run is one row of import history.
type Run struct {
	ID         string     `json:"id"`
	FileName   string     `json:"fileName"`
	Status     string     `json:"status"`
	Succeeded  int        `json:"succeeded"`
	Failed     int        `json:"failed"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}

// RollbackResult reports what a rollback removed.
type RollbackResult struct {
	RunID          string `json:"runId"`
	LeasesDeleted  int64  `json:"leasesDeleted"`
	TenantsDeleted int64  `json:"tenantsDeleted"`
}

// ----------------------------------------------------------------------------
// TenantStore
// ----------------------------------------------------------------------------

// CreateTenant inserts a tenant and returns its generated ID. The unique
// index on email surfaces duplicate rows as an insert error, which the
// importer records against the offending row.
func (p *Postgres) CreateTenant(ctx context.Context, t rentroll.NewTenant) (string, error) {
	runID, err := nullUUID(t.RunID)
	if err != nil {
		return "", err
	}

	var id pgtype.UUID
	err = p.pool.QueryRow(ctx,
		`INSERT INTO tenants (name, email, import_run_id)
		 VALUES ($1, $2, $3)
		 RETURNING id`,
		t.Name, t.Email, runID,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert tenant: %w", err)
	}
	return uuidString(id), nil
}

// DeleteTenant removes a tenant by ID. Used as the compensating action when
// the dependent lease insert fails.
func (p *Postgres) DeleteTenant(ctx context.Context, id string) error {
	var pgID pgtype.UUID
	if err := pgID.Scan(id); err != nil {
		return fmt.Errorf("invalid tenant ID: %w", err)
	}
	if _, err := p.pool.Exec(ctx, `DELETE FROM tenants WHERE id = $1`, pgID); err != nil {
		return fmt.Errorf("delete tenant: %w", err)
	}
	return nil
}

// CreateLease inserts a lease for an existing tenant and returns its ID.
func (p *Postgres) CreateLease(ctx context.Context, l rentroll.NewLease) (string, error) {
	var tenantID pgtype.UUID
	if err := tenantID.Scan(l.TenantID); err != nil {
		return "", fmt.Errorf("invalid tenant ID: %w", err)
	}
	runID, err := nullUUID(l.RunID)
	if err != nil {
		return "", err
	}

	var id pgtype.UUID
	err = p.pool.QueryRow(ctx,
		`INSERT INTO leases (tenant_id, property_address, unit_number, rent_amount_cents, due_date, status, import_run_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		tenantID, l.PropertyAddress, l.UnitNumber, l.RentAmountCents,
		pgtype.Date{Time: l.DueDate, Valid: true}, l.Status, runID,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert lease: %w", err)
	}
	return uuidString(id), nil
}

// ----------------------------------------------------------------------------
// RunRecorder
// ----------------------------------------------------------------------------

// CreateRun opens an import_runs row for a starting execution.
func (p *Postgres) CreateRun(ctx context.Context, fileName string) (string, error) {
	var id pgtype.UUID
	err := p.pool.QueryRow(ctx,
		`INSERT INTO import_runs (file_name, status)
		 VALUES ($1, 'importing')
		 RETURNING id`,
		fileName,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert import run: %w", err)
	}
	return uuidString(id), nil
}

// FinishRun records an execution's final counts and status.
func (p *Postgres) FinishRun(ctx context.Context, runID string, succeeded, failed int, status string) error {
	var id pgtype.UUID
	if err := id.Scan(runID); err != nil {
		return fmt.Errorf("invalid run ID: %w", err)
	}
	tag, err := p.pool.Exec(ctx,
		`UPDATE import_runs
		 SET status = $2, succeeded = $3, failed = $4, finished_at = now()
		 WHERE id = $1`,
		id, status, succeeded, failed,
	)
	if err != nil {
		return fmt.Errorf("finish import run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRunNotFound
	}
	return nil
}

// ----------------------------------------------------------------------------
// Run History
// ----------------------------------------------------------------------------

// ListRuns returns import history, newest first.
func (p *Postgres) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	rows, err := p.pool.Query(ctx,
		`SELECT id, file_name, status, succeeded, failed, started_at, finished_at
		 FROM import_runs
		 ORDER BY started_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list import runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r          Run
			id         pgtype.UUID
			finishedAt pgtype.Timestamptz
		)
		if err := rows.Scan(&id, &r.FileName, &r.Status, &r.Succeeded, &r.Failed, &r.StartedAt, &finishedAt); err != nil {
			return nil, fmt.Errorf("scan import run: %w", err)
		}
		r.ID = uuidString(id)
		if finishedAt.Valid {
			t := finishedAt.Time
			r.FinishedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun returns one import run by ID.
func (p *Postgres) GetRun(ctx context.Context, runID string) (*Run, error) {
	var id pgtype.UUID
	if err := id.Scan(runID); err != nil {
		return nil, fmt.Errorf("invalid run ID: %w", err)
	}

	var (
		r          Run
		finishedAt pgtype.Timestamptz
	)
	err := p.pool.QueryRow(ctx,
		`SELECT file_name, status, succeeded, failed, started_at, finished_at
		 FROM import_runs
		 WHERE id = $1`,
		id,
	).Scan(&r.FileName, &r.Status, &r.Succeeded, &r.Failed, &r.StartedAt, &finishedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get import run: %w", err)
	}

	r.ID = runID
	if finishedAt.Valid {
		t := finishedAt.Time
		r.FinishedAt = &t
	}
	return &r, nil
}

// RollbackRun deletes every lease and tenant created by a run, in one
// transaction, and marks the run rolled back. A run can be rolled back once.
func (p *Postgres) RollbackRun(ctx context.Context, runID string) (RollbackResult, error) {
	result := RollbackResult{RunID: runID}

	var id pgtype.UUID
	if err := id.Scan(runID); err != nil {
		return result, fmt.Errorf("invalid run ID: %w", err)
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return result, fmt.Errorf("begin rollback: %w", err)
	}
	defer tx.Rollback(ctx)

	var status string
	err = tx.QueryRow(ctx,
		`SELECT status FROM import_runs WHERE id = $1 FOR UPDATE`,
		id,
	).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return result, ErrRunNotFound
	}
	if err != nil {
		return result, fmt.Errorf("lock import run: %w", err)
	}
	if status == rentroll.RunStatusRolledBack {
		return result, fmt.Errorf("run %s already rolled back", runID)
	}

	// Leases first: they reference the tenants about to go.
	tag, err := tx.Exec(ctx, `DELETE FROM leases WHERE import_run_id = $1`, id)
	if err != nil {
		return result, fmt.Errorf("delete leases: %w", err)
	}
	result.LeasesDeleted = tag.RowsAffected()

	tag, err = tx.Exec(ctx, `DELETE FROM tenants WHERE import_run_id = $1`, id)
	if err != nil {
		return result, fmt.Errorf("delete tenants: %w", err)
	}
	result.TenantsDeleted = tag.RowsAffected()

	if _, err := tx.Exec(ctx,
		`UPDATE import_runs SET status = $2 WHERE id = $1`,
		id, rentroll.RunStatusRolledBack,
	); err != nil {
		return result, fmt.Errorf("mark run rolled back: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return result, fmt.Errorf("commit rollback: %w", err)
	}
	return result, nil
}

// ----------------------------------------------------------------------------
// Helpers
// ----------------------------------------------------------------------------

func uuidString(id pgtype.UUID) string {
	v, err := id.Value()
	if err != nil || v == nil {
		return ""
	}
	s, _ := v.(string)
	return s
}

// nullUUID converts an optional run ID into a scannable UUID; empty input
// yields SQL NULL, anything else must be a well-formed UUID.
func nullUUID(s string) (pgtype.UUID, error) {
	var id pgtype.UUID
	if s == "" {
		return id, nil
	}
	if err := id.Scan(s); err != nil {
		return id, fmt.Errorf("invalid run ID: %w", err)
	}
	return id, nil
}
