package http

import (
	"github.com/mrlokans/lending/internal/database"
)

// RouterConfig contains all dependencies and configuration needed
// to create the HTTP router.
type RouterConfig struct {
	// Core dependencies
	Database *database.Database
	Books    BookService
	Users    UserService
	Loans    LoanService

	// Availability reconciliation, usually the loan service
	Availability AvailabilityChecker

	// Audit trail (optional)
	Audit AuditReader

	// Task queue client (optional). Reconciliation runs inline without it.
	TaskQueue TaskQueue

	// CORS origins; empty or "*" allows any origin
	AllowedOrigins []string

	// Application info
	Version string
}
