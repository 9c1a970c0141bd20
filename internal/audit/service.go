package audit

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/mrlokans/lending/internal/database/audit"
	"github.com/mrlokans/lending/internal/entities"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Loan lifecycle actions.
const (
	ActionLoanCreated  = "loan_created"
	ActionLoanUpdated  = "loan_updated"
	ActionLoanReturned = "loan_returned"
	ActionLoanDeleted  = "loan_deleted"
)

const entityLoan = "loan"

type requestIDKey struct{}

// WithRequestID attaches the request ID recorded on audit events.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestID returns the request ID stored in ctx, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// Service provides high-level audit logging functionality.
type Service struct {
	repo    *audit.Repository
	pending sync.WaitGroup
}

// NewService creates a new audit service.
func NewService(repo *audit.Repository) *Service {
	return &Service{repo: repo}
}

// Log records a generic audit event.
func (s *Service) Log(event *entities.AuditEvent) error {
	return s.repo.LogEvent(event)
}

// LogAsync records an audit event in the background (non-blocking).
func (s *Service) LogAsync(event *entities.AuditEvent) {
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		if err := s.repo.LogEvent(event); err != nil {
			log.Printf("Failed to log audit event: %v", err)
		}
	}()
}

// Wait blocks until every event queued with LogAsync has been written.
func (s *Service) Wait() {
	s.pending.Wait()
}

// LogLoan records a loan lifecycle event. Details are stored as JSON metadata.
func (s *Service) LogLoan(ctx context.Context, action string, loanID uint, details map[string]any, err error) {
	event := &entities.AuditEvent{
		EventType:   entities.AuditEventLoan,
		Action:      action,
		Description: describeLoan(action, loanID, details),
		EntityType:  entityLoan,
		EntityID:    &loanID,
		RequestID:   RequestID(ctx),
		Metadata:    encodeMetadata(details),
		Status:      entities.AuditStatusSuccess,
	}

	if err != nil {
		event.Status = entities.AuditStatusFailed
		event.ErrorMsg = truncate(err.Error(), 500)
	}

	s.LogAsync(event)
}

// LogDelete records the deletion of a registry entity (book or user).
func (s *Service) LogDelete(ctx context.Context, eventType entities.AuditEventType, entityID uint) {
	entityType := string(eventType)
	event := &entities.AuditEvent{
		EventType:   eventType,
		Action:      entityType + "_deleted",
		Description: fmt.Sprintf("Deleted %s %d", entityType, entityID),
		EntityType:  entityType,
		EntityID:    &entityID,
		RequestID:   RequestID(ctx),
		Status:      entities.AuditStatusSuccess,
	}

	s.LogAsync(event)
}

// LogReconcile records an availability check or repair run.
func (s *Service) LogReconcile(ctx context.Context, repaired bool, drifted int, err error) {
	action := "availability_checked"
	if repaired {
		action = "availability_repaired"
	}

	event := &entities.AuditEvent{
		EventType:   entities.AuditEventAvailability,
		Action:      action,
		Description: fmt.Sprintf("%d book(s) with drifted availability", drifted),
		RequestID:   RequestID(ctx),
		Metadata:    encodeMetadata(map[string]any{"drifted": drifted, "repaired": repaired}),
		Status:      entities.AuditStatusSuccess,
	}

	if err != nil {
		event.Status = entities.AuditStatusFailed
		event.ErrorMsg = truncate(err.Error(), 500)
	}

	s.LogAsync(event)
}

// GetEvents retrieves paginated audit events, optionally filtered by type.
func (s *Service) GetEvents(eventType entities.AuditEventType, limit, offset int) ([]entities.AuditEvent, int64, error) {
	if eventType == "" {
		return s.repo.GetEvents(limit, offset)
	}
	return s.repo.GetEventsByType(eventType, limit, offset)
}

// LoanHistory retrieves the events recorded for one loan, newest first.
func (s *Service) LoanHistory(loanID uint, limit, offset int) ([]entities.AuditEvent, int64, error) {
	return s.repo.GetEventsForEntity(entityLoan, loanID, limit, offset)
}

// DeleteOldEvents removes events older than the specified duration.
func (s *Service) DeleteOldEvents(retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	return s.repo.DeleteOldEvents(cutoff)
}

func describeLoan(action string, loanID uint, details map[string]any) string {
	switch action {
	case ActionLoanCreated:
		return fmt.Sprintf("Loan %d created for book %v and user %v", loanID, details["id_libro"], details["id_usuario"])
	case ActionLoanReturned:
		return fmt.Sprintf("Loan %d returned on %v", loanID, details["fecha_devolucion"])
	case ActionLoanDeleted:
		return fmt.Sprintf("Loan %d deleted", loanID)
	default:
		return fmt.Sprintf("Loan %d updated", loanID)
	}
}

func encodeMetadata(details map[string]any) string {
	if len(details) == 0 {
		return ""
	}
	data, err := json.Marshal(details)
	if err != nil {
		log.Printf("Failed to encode audit metadata: %v", err)
		return ""
	}
	return string(data)
}

// truncate shortens a string to max length.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
