// Package database provides the data access layer for the application.
//
// # Architecture
//
// The database layer is organized into domain-specific sub-packages:
//
//	database/
//	├── database.go      # Connection setup, pool limits, migrations
//	├── books/           # Book registry
//	├── users/           # User registry and the user+open loan projection
//	├── loans/           # Loan lifecycle, the only writer of book availability
//	└── audit/           # Audit trail of lifecycle events
//
// # Using Sub-packages
//
// Each sub-package provides a Repository type holding only a *gorm.DB:
//
//	db, err := database.NewDatabase(cfg.Database)
//
//	booksRepo := books.NewRepository(db.DB)
//	loansRepo := loans.NewRepository(db.DB)
//
//	loan, err := loansRepo.Create(ctx, loans.CreateParams{UserID: 1, BookID: 2, LoanDate: "2024-05-01"})
//
// # Transactions
//
// Every multi-statement operation runs inside db.Transaction. The callback's
// error decides the outcome: nil commits, anything else rolls back and is
// returned unchanged, so typed errors from internal/errs survive the rollback.
// Rows read to take a decision are locked with ForUpdate.
package database
