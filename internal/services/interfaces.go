package services

import (
	"context"

	"github.com/mrlokans/lending/internal/audit"
	"github.com/mrlokans/lending/internal/database/books"
	"github.com/mrlokans/lending/internal/database/loans"
	"github.com/mrlokans/lending/internal/database/users"
	"github.com/mrlokans/lending/internal/entities"
)

// BookStore persists books. Implemented by books.Repository.
type BookStore interface {
	List(ctx context.Context, onlyAvailable bool) ([]entities.Book, error)
	Get(ctx context.Context, id uint) (*entities.Book, error)
	Create(ctx context.Context, book *entities.Book) error
	Update(ctx context.Context, id uint, patch books.Patch) (bool, error)
	Delete(ctx context.Context, id uint) (bool, error)
}

// UserStore persists users. Implemented by users.Repository.
type UserStore interface {
	ListWithLoans(ctx context.Context) ([]entities.UserWithLoan, error)
	Get(ctx context.Context, id uint) (*entities.User, error)
	Create(ctx context.Context, user *entities.User) error
	Update(ctx context.Context, id uint, patch users.Patch) (bool, error)
	Delete(ctx context.Context, id uint) ([]uint, error)
}

// LoanStore runs the loan lifecycle. Implemented by loans.Repository.
type LoanStore interface {
	List(ctx context.Context) ([]entities.Loan, error)
	ListActive(ctx context.Context) ([]entities.Loan, error)
	Get(ctx context.Context, id uint) (*entities.Loan, error)
	Create(ctx context.Context, params loans.CreateParams) (*entities.Loan, error)
	Update(ctx context.Context, id uint, patch loans.Patch) (bool, error)
	Return(ctx context.Context, id uint, returnDate string) (*entities.Loan, error)
	Delete(ctx context.Context, id uint) (*entities.Loan, error)
	CheckAvailability(ctx context.Context) ([]loans.Drift, error)
	RepairAvailability(ctx context.Context) ([]loans.Drift, error)
}

// AuditLogger records committed changes. Implemented by audit.Service.
type AuditLogger interface {
	LogLoan(ctx context.Context, action string, loanID uint, details map[string]any, err error)
	LogDelete(ctx context.Context, eventType entities.AuditEventType, entityID uint)
	LogReconcile(ctx context.Context, repaired bool, drifted int, err error)
}

var (
	_ BookStore   = (*books.Repository)(nil)
	_ UserStore   = (*users.Repository)(nil)
	_ LoanStore   = (*loans.Repository)(nil)
	_ AuditLogger = (*audit.Service)(nil)
)
