package tasks

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/lending/internal/audit"
	"github.com/mrlokans/lending/internal/database/loans"
)

const ReconcileAvailabilityQueue = "reconcile_availability"

// AvailabilityReconciler compares, and optionally repairs, book availability
// against open loans.
type AvailabilityReconciler interface {
	CheckAvailability(ctx context.Context) ([]loans.Drift, error)
	RepairAvailability(ctx context.Context) ([]loans.Drift, error)
}

// ReconcileAvailabilityTask runs one availability check, repairing drift when
// Repair is set. It is never retried: a failed run is reported, not replayed.
type ReconcileAvailabilityTask struct {
	Repair    bool   `json:"repair"`
	RequestID string `json:"request_id,omitempty"`
}

func (t ReconcileAvailabilityTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        ReconcileAvailabilityQueue,
		MaxAttempts: 1,
		Timeout:     5 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// Reconcile runs a single check or repair and logs the outcome.
func Reconcile(ctx context.Context, reconciler AvailabilityReconciler, repair bool) ([]loans.Drift, error) {
	if reconciler == nil {
		return nil, fmt.Errorf("availability reconciler not configured")
	}

	run := reconciler.CheckAvailability
	if repair {
		run = reconciler.RepairAvailability
	}
	drift, err := run(ctx)
	if err != nil {
		return nil, fmt.Errorf("reconcile availability: %w", err)
	}

	if len(drift) == 0 {
		log.Printf("[TASK] Availability consistent")
		return drift, nil
	}
	if repair {
		log.Printf("[TASK] Repaired availability of %d book(s)", loans.CountRepaired(drift))
	}
	for _, d := range loans.Unresolved(drift) {
		log.Printf("[TASK] Availability drift: book %d (%s) disponible=%t expected=%t open_loans=%d",
			d.BookID, d.Title, d.Stored, d.Expected, d.OpenLoans)
	}
	return drift, nil
}

func ReconcileAvailabilityProcessor(reconciler AvailabilityReconciler) backlite.QueueProcessor[ReconcileAvailabilityTask] {
	return func(ctx context.Context, task ReconcileAvailabilityTask) error {
		if task.RequestID != "" {
			ctx = audit.WithRequestID(ctx, task.RequestID)
		}
		_, err := Reconcile(ctx, reconciler, task.Repair)
		return err
	}
}

func NewReconcileAvailabilityQueue(reconciler AvailabilityReconciler) backlite.Queue {
	return backlite.NewQueue(ReconcileAvailabilityProcessor(reconciler))
}
