package rentroll

// executor.go performs the two-step create (tenant, then dependent lease) for
// every valid candidate, sequentially and in input order. Sequential
// processing keeps failure attribution per row and avoids write contention;
// rent rolls are small enough that latency is not the constraint.

import (
	"context"
	"fmt"
	"time"
)

// DefaultCallTimeout bounds each datastore call so a hung request cannot
// stall the batch at one row indefinitely.
const DefaultCallTimeout = 15 * time.Second

// Executor runs validated candidates against a TenantStore.
type Executor struct {
	store TenantStore

	// CallTimeout is applied per datastore call. Zero means
	// DefaultCallTimeout.
	CallTimeout time.Duration

	// OnRow, if set, is invoked after each row completes with the running
	// totals. Used by the service for progress reporting.
	OnRow func(done, succeeded, failed int)
}

// NewExecutor creates an Executor writing through store.
func NewExecutor(store TenantStore) *Executor {
	return &Executor{store: store, CallTimeout: DefaultCallTimeout}
}

// Run imports the given candidates. Invalid records are skipped without
// counting; callers normally pass ValidRecords output. One row's failure
// never aborts the batch, and Succeeded+Failed always equals the number of
// valid candidates processed — unless ctx is cancelled, in which case Run
// returns early with the counts accumulated so far and ctx.Err.
func (e *Executor) Run(ctx context.Context, candidates []CandidateRecord, runID string) (Result, error) {
	start := time.Now()
	result := Result{Outcomes: make([]RowOutcome, 0, len(candidates))}

	for _, c := range candidates {
		if !c.Valid() {
			continue
		}

		if err := ctx.Err(); err != nil {
			result.Duration = time.Since(start)
			return result, err
		}

		outcome := e.importRow(ctx, c, runID)
		if outcome.Error == "" {
			result.Succeeded++
		} else {
			result.Failed++
		}
		result.Outcomes = append(result.Outcomes, outcome)

		if e.OnRow != nil {
			e.OnRow(len(result.Outcomes), result.Succeeded, result.Failed)
		}
	}

	result.Duration = time.Since(start)
	return result, nil
}

// importRow creates the tenant and its lease as a compensated pair. Any
// panic from the store is contained to the row and counted as its failure.
func (e *Executor) importRow(ctx context.Context, c CandidateRecord, runID string) (outcome RowOutcome) {
	outcome.Row = c.Row

	defer func() {
		if r := recover(); r != nil {
			outcome.Error = fmt.Sprintf("internal error: %v", r)
		}
	}()

	ids, err := runSteps(ctx, []step{
		{
			Do: func(ctx context.Context, _ []string) (string, error) {
				ctx, cancel := e.callContext(ctx)
				defer cancel()
				id, err := e.store.CreateTenant(ctx, NewTenant{
					Name:  c.Name,
					Email: c.Email,
					RunID: runID,
				})
				outcome.TenantID = id
				return id, err
			},
			Undo: func(ctx context.Context, id string) error {
				ctx, cancel := e.callContext(ctx)
				defer cancel()
				return e.store.DeleteTenant(ctx, id)
			},
		},
		{
			Do: func(ctx context.Context, prior []string) (string, error) {
				ctx, cancel := e.callContext(ctx)
				defer cancel()
				return e.store.CreateLease(ctx, NewLease{
					TenantID:        prior[0],
					PropertyAddress: c.PropertyAddress,
					UnitNumber:      c.UnitNumber,
					RentAmountCents: c.RentAmountCents(),
					DueDate:         c.DueDate,
					Status:          LeaseStatusActive,
					RunID:           runID,
				})
			},
		},
	})
	if err != nil {
		outcome.Error = err.Error()
		return outcome
	}

	outcome.LeaseID = ids[1]
	return outcome
}

// callContext derives a per-call context with the executor's timeout.
// Batch cancellation is honored between rows, not mid-call: a row that has
// started gets to finish its pair of writes (and its compensating delete, if
// needed) so cancellation never strands a tenant without a lease.
func (e *Executor) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := e.CallTimeout
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	return context.WithTimeout(context.WithoutCancel(ctx), timeout)
}
