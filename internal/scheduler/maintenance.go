package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/mikestefanello/backlite"
	"github.com/robfig/cron/v3"

	"github.com/mrlokans/lending/internal/tasks"
)

// AuditCleanupSchedule runs the audit retention cleanup daily at 04:30.
const AuditCleanupSchedule = "30 4 * * *"

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Enqueuer hands jobs to the background task queue.
type Enqueuer interface {
	Enqueue(task backlite.Task) (string, error)
}

type Config struct {
	ReconcileEnabled   bool
	ReconcileSchedule  string
	Repair             bool
	AuditRetentionDays int
}

// MaintenanceScheduler periodically reconciles book availability with open
// loans and purges expired audit events. Jobs go through the task queue when
// one is configured and run inline otherwise.
type MaintenanceScheduler struct {
	config     Config
	reconciler tasks.AvailabilityReconciler
	pruner     tasks.AuditPruner
	queue      Enqueuer

	cron          *cron.Cron
	mu            sync.RWMutex
	isRunning     bool
	isReconciling bool
}

func NewMaintenanceScheduler(cfg Config, reconciler tasks.AvailabilityReconciler, pruner tasks.AuditPruner, queue Enqueuer) *MaintenanceScheduler {
	return &MaintenanceScheduler{
		config:     cfg,
		reconciler: reconciler,
		pruner:     pruner,
		queue:      queue,
		cron:       cron.New(cron.WithParser(parser)),
	}
}

// ValidateSchedule checks a standard 5-field cron expression.
func ValidateSchedule(schedule string) error {
	_, err := parser.Parse(schedule)
	return err
}

// Start registers the jobs and starts the cron loop. The scheduler stops when
// ctx is cancelled.
func (s *MaintenanceScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}

	if s.config.ReconcileEnabled {
		if err := ValidateSchedule(s.config.ReconcileSchedule); err != nil {
			return fmt.Errorf("invalid cron schedule '%s': %w", s.config.ReconcileSchedule, err)
		}
		if _, err := s.cron.AddFunc(s.config.ReconcileSchedule, s.RunReconcile); err != nil {
			return fmt.Errorf("failed to schedule reconcile job: %w", err)
		}
	} else {
		log.Printf("Maintenance scheduler: availability reconciliation disabled")
	}

	if s.pruner != nil {
		if _, err := s.cron.AddFunc(AuditCleanupSchedule, s.RunAuditCleanup); err != nil {
			return fmt.Errorf("failed to schedule audit cleanup job: %w", err)
		}
	}

	s.cron.Start()
	s.isRunning = true
	log.Printf("Maintenance scheduler: started (%d jobs)", len(s.cron.Entries()))

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// Stop waits for running jobs and stops the scheduler.
func (s *MaintenanceScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	ctx := s.cron.Stop()
	<-ctx.Done()

	s.isRunning = false
	log.Printf("Maintenance scheduler: stopped")
}

// IsRunning returns whether the scheduler is active
func (s *MaintenanceScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// RunReconcile checks availability once. Overlapping runs are skipped.
func (s *MaintenanceScheduler) RunReconcile() {
	if s.queue != nil {
		id, err := s.queue.Enqueue(tasks.ReconcileAvailabilityTask{Repair: s.config.Repair})
		if err != nil {
			log.Printf("Maintenance scheduler: failed to enqueue reconcile: %v", err)
			return
		}
		log.Printf("Maintenance scheduler: reconcile enqueued as task %s", id)
		return
	}

	s.mu.Lock()
	if s.isReconciling {
		s.mu.Unlock()
		log.Printf("Maintenance scheduler: reconcile already in progress, skipping")
		return
	}
	s.isReconciling = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.isReconciling = false
		s.mu.Unlock()
	}()

	if _, err := tasks.Reconcile(context.Background(), s.reconciler, s.config.Repair); err != nil {
		log.Printf("Maintenance scheduler: %v", err)
	}
}

// RunAuditCleanup purges audit events past the retention period.
func (s *MaintenanceScheduler) RunAuditCleanup() {
	if s.queue != nil {
		if _, err := s.queue.Enqueue(tasks.CleanupAuditEventsTask{RetentionDays: s.config.AuditRetentionDays}); err != nil {
			log.Printf("Maintenance scheduler: failed to enqueue audit cleanup: %v", err)
		}
		return
	}

	if _, err := tasks.PruneAuditEvents(s.pruner, s.config.AuditRetentionDays); err != nil {
		log.Printf("Maintenance scheduler: %v", err)
	}
}
