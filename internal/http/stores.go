package http

import (
	"context"

	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/lending/internal/database/loans"
	"github.com/mrlokans/lending/internal/entities"
	"github.com/mrlokans/lending/internal/services"
)

// This file consolidates the service interfaces used by HTTP controllers.
// Each controller depends only on the methods it calls, which keeps the
// controllers testable with small fakes.

// BookService is the book registry as seen by BooksController.
type BookService interface {
	List(ctx context.Context, onlyAvailable bool) ([]entities.Book, error)
	Get(ctx context.Context, id uint) (*entities.Book, error)
	Create(ctx context.Context, in services.CreateBookInput) (*entities.Book, error)
	Update(ctx context.Context, id uint, in services.UpdateBookInput) (bool, error)
	Delete(ctx context.Context, id uint) (bool, error)
}

// UserService is the user registry as seen by UsersController.
type UserService interface {
	List(ctx context.Context) ([]entities.UserWithLoan, error)
	Get(ctx context.Context, id uint) (*entities.User, error)
	Create(ctx context.Context, in services.CreateUserInput) (*entities.User, error)
	Update(ctx context.Context, id uint, in services.UpdateUserInput) (bool, error)
	Delete(ctx context.Context, id uint) error
}

// LoanService is the loan lifecycle as seen by LoansController.
type LoanService interface {
	List(ctx context.Context) ([]entities.Loan, error)
	ListActive(ctx context.Context) ([]entities.Loan, error)
	Get(ctx context.Context, id uint) (*entities.Loan, error)
	Create(ctx context.Context, in services.CreateLoanInput) (*entities.Loan, error)
	Update(ctx context.Context, id uint, in services.UpdateLoanInput) (bool, error)
	Return(ctx context.Context, id uint) (*entities.Loan, error)
	Delete(ctx context.Context, id uint) error
}

// AvailabilityChecker reports and repairs availability drift.
type AvailabilityChecker interface {
	CheckAvailability(ctx context.Context) ([]loans.Drift, error)
	RepairAvailability(ctx context.Context) ([]loans.Drift, error)
}

// AuditReader lists recorded audit events.
type AuditReader interface {
	GetEvents(eventType entities.AuditEventType, limit, offset int) ([]entities.AuditEvent, int64, error)
	LoanHistory(loanID uint, limit, offset int) ([]entities.AuditEvent, int64, error)
}

// TaskQueue enqueues background tasks and reports their status.
type TaskQueue interface {
	Enqueue(task backlite.Task) (string, error)
	Status(ctx context.Context, taskID string) (backlite.TaskStatus, error)
}

var (
	_ BookService         = (*services.BookService)(nil)
	_ UserService         = (*services.UserService)(nil)
	_ LoanService         = (*services.LoanService)(nil)
	_ AvailabilityChecker = (*services.LoanService)(nil)
)
