// Package rentroll implements the rent-roll bulk import pipeline:
// spreadsheet intake, column mapping, row validation, and transactional
// tenant+lease creation. The package has no HTTP dependencies and talks to
// persistence only through the TenantStore interface.
package rentroll

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Field is one of the canonical attributes every import must populate,
// regardless of how the source spreadsheet names its columns.
type Field string

const (
	FieldName            Field = "name"
	FieldEmail           Field = "email"
	FieldPropertyAddress Field = "property_address"
	FieldUnitNumber      Field = "unit_number"
	FieldRentAmount      Field = "rent_amount"
	FieldDueDate         Field = "due_date"
)

// Fields lists all canonical fields in display order.
var Fields = []Field{
	FieldName,
	FieldEmail,
	FieldPropertyAddress,
	FieldUnitNumber,
	FieldRentAmount,
	FieldDueDate,
}

// RequiredFields must be mapped to a concrete header before an import can
// advance past the mapping stage.
var RequiredFields = []Field{
	FieldName,
	FieldEmail,
	FieldPropertyAddress,
	FieldRentAmount,
}

// Required reports whether f must be mapped before validation can run.
func (f Field) Required() bool {
	for _, r := range RequiredFields {
		if f == r {
			return true
		}
	}
	return false
}

// RawRow maps a column header to the raw cell value for one spreadsheet row.
// Rows are produced by file intake with a uniform key set: every header is
// present in every row, missing cells as empty string.
type RawRow map[string]string

// Table is the output of file intake: the header list in original column
// order and one RawRow per data row, in original sheet order.
type Table struct {
	Headers []string
	Rows    []RawRow
}

// CandidateRecord is a normalized, validated row produced by the validator
// prior to any write against the datastore. Records are created wholesale on
// each validation pass and never mutated in place.
type CandidateRecord struct {
	Row             int    `json:"row"` // zero-based index into Table.Rows
	Name            string `json:"name"`
	Email           string `json:"email"`
	PropertyAddress string `json:"propertyAddress"`
	UnitNumber      string `json:"unitNumber,omitempty"`

	RentAmount decimal.Decimal `json:"rentAmount"`
	DueDate    time.Time       `json:"dueDate"`

	Errors []string `json:"errors,omitempty"`
}

// Valid reports whether the record passed every validation check.
func (c CandidateRecord) Valid() bool {
	return len(c.Errors) == 0
}

// RentAmountCents returns the rent amount in whole cents, rounded half up.
func (c CandidateRecord) RentAmountCents() int64 {
	return c.RentAmount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// RowOutcome records what happened to a single valid candidate during
// execution, so operators can diagnose failures beyond the aggregate counts.
type RowOutcome struct {
	Row      int    `json:"row"`
	TenantID string `json:"tenantId,omitempty"`
	LeaseID  string `json:"leaseId,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Result is the terminal outcome of an import execution. Counts accumulate
// monotonically during the run and are never revised afterward.
type Result struct {
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Outcomes  []RowOutcome `json:"outcomes"`
	Duration  time.Duration `json:"-"`
}

// NewTenant is the payload for TenantStore.CreateTenant.
type NewTenant struct {
	Name  string
	Email string
	RunID string // import run that created this tenant, for rollback
}

// NewLease is the payload for TenantStore.CreateLease.
type NewLease struct {
	TenantID        string
	PropertyAddress string
	UnitNumber      string // empty when the source had no unit column
	RentAmountCents int64
	DueDate         time.Time
	Status          string
	RunID           string
}

// LeaseStatusActive is the status assigned to every imported lease.
const LeaseStatusActive = "active"

// TenantStore is the datastore boundary the executor writes through.
// DeleteTenant exists only as the compensating action for a lease-create
// failure after a successful tenant create.
type TenantStore interface {
	CreateTenant(ctx context.Context, t NewTenant) (string, error)
	DeleteTenant(ctx context.Context, tenantID string) error
	CreateLease(ctx context.Context, l NewLease) (string, error)
}

// Phase indicates where an executing import currently is.
type Phase string

const (
	PhasePending   Phase = "pending"
	PhaseImporting Phase = "importing"
	PhaseComplete  Phase = "complete"
	PhaseFailed    Phase = "failed"
	PhaseCancelled Phase = "cancelled"
)

// Progress is a point-in-time snapshot of an executing import.
type Progress struct {
	SessionID string `json:"sessionId"`
	Phase     Phase  `json:"phase"`
	TotalRows int    `json:"totalRows"`
	Current   int    `json:"current"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	Error     string `json:"error,omitempty"`
}

// Percent returns the progress as a percentage (0-100).
func (p Progress) Percent() int {
	if p.TotalRows <= 0 {
		return 0
	}
	return (p.Current * 100) / p.TotalRows
}
