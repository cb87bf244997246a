package rentroll

// saga.go factors out the manual two-step "transaction" the executor relies
// on. The backing store exposes no multi-table transaction to this caller, so
// dependent writes are compensated by hand: when a later step fails, the undo
// of every completed earlier step runs in reverse order, best effort.

import "context"

// step is one unit of a compensated sequence. Do performs the write and
// returns the created resource's ID; prior holds the IDs of the completed
// earlier steps, so dependent steps can reference what they build on. Undo
// deletes the resource; it may be nil for steps that need no compensation.
type step struct {
	Do   func(ctx context.Context, prior []string) (string, error)
	Undo func(ctx context.Context, id string) error
}

// runSteps executes steps in order. On the first failure it undoes the
// completed steps in reverse and returns the failing step's error. Undo
// failures are swallowed: compensation is best effort and the original error
// is the one worth reporting.
//
// On success, returns the IDs produced by each step, aligned with steps.
func runSteps(ctx context.Context, steps []step) ([]string, error) {
	ids := make([]string, 0, len(steps))

	for _, s := range steps {
		id, err := s.Do(ctx, ids)
		if err != nil {
			for i := len(ids) - 1; i >= 0; i-- {
				if steps[i].Undo == nil {
					continue
				}
				_ = steps[i].Undo(ctx, ids[i])
			}
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, nil
}
