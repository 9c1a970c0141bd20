package tasks

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mikestefanello/backlite"
)

const defaultAuditRetentionDays = 90

// AuditPruner deletes audit events past their retention.
type AuditPruner interface {
	DeleteOldEvents(retention time.Duration) (int64, error)
}

// CleanupAuditEventsTask removes audit events older than RetentionDays.
type CleanupAuditEventsTask struct {
	RetentionDays int `json:"retention_days"`
}

func (t CleanupAuditEventsTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "cleanup_audit_events",
		MaxAttempts: 3,
		Backoff:     5 * time.Minute,
		Timeout:     2 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// PruneAuditEvents deletes events older than retentionDays and returns how many.
func PruneAuditEvents(pruner AuditPruner, retentionDays int) (int64, error) {
	if pruner == nil {
		return 0, fmt.Errorf("audit pruner not configured")
	}
	if retentionDays <= 0 {
		retentionDays = defaultAuditRetentionDays
	}

	deleted, err := pruner.DeleteOldEvents(time.Duration(retentionDays) * 24 * time.Hour)
	if err != nil {
		return 0, fmt.Errorf("cleanup audit events: %w", err)
	}
	log.Printf("[TASK] Cleaned up %d audit events older than %d days", deleted, retentionDays)
	return deleted, nil
}

func CleanupAuditEventsProcessor(pruner AuditPruner) backlite.QueueProcessor[CleanupAuditEventsTask] {
	return func(ctx context.Context, task CleanupAuditEventsTask) error {
		_, err := PruneAuditEvents(pruner, task.RetentionDays)
		return err
	}
}

func NewCleanupAuditEventsQueue(pruner AuditPruner) backlite.Queue {
	return backlite.NewQueue(CleanupAuditEventsProcessor(pruner))
}
