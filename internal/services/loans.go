package services

import (
	"context"
	"time"

	"github.com/mrlokans/lending/internal/audit"
	"github.com/mrlokans/lending/internal/database/loans"
	"github.com/mrlokans/lending/internal/entities"
	"github.com/mrlokans/lending/internal/errs"
)

// LoanService validates requests and drives the loan lifecycle.
type LoanService struct {
	store LoanStore
	audit AuditLogger
	now   func() time.Time
}

func NewLoanService(store LoanStore, audit AuditLogger) *LoanService {
	return &LoanService{store: store, audit: audit, now: time.Now}
}

// WithClock replaces the clock used to date returns.
func (s *LoanService) WithClock(now func() time.Time) *LoanService {
	s.now = now
	return s
}

func (s *LoanService) List(ctx context.Context) ([]entities.Loan, error) {
	return s.store.List(ctx)
}

func (s *LoanService) ListActive(ctx context.Context) ([]entities.Loan, error) {
	return s.store.ListActive(ctx)
}

func (s *LoanService) Get(ctx context.Context, id uint) (*entities.Loan, error) {
	return s.store.Get(ctx, id)
}

// Create lends a book. A fecha_devolucion makes it a closed historical record.
func (s *LoanService) Create(ctx context.Context, in CreateLoanInput) (*entities.Loan, error) {
	userID, err := requiredID("id_usuario", in.UserID)
	if err != nil {
		return nil, err
	}
	bookID, err := requiredID("id_libro", in.BookID)
	if err != nil {
		return nil, err
	}
	loanDate, err := validDate("fecha_prestamo", in.LoanDate)
	if err != nil {
		return nil, err
	}

	params := loans.CreateParams{UserID: userID, BookID: bookID, LoanDate: loanDate}
	if in.ReturnDate.Value != nil {
		returnDate, err := validDate("fecha_devolucion", *in.ReturnDate.Value)
		if err != nil {
			return nil, err
		}
		if returnDate < loanDate {
			return nil, errs.Validation("fecha_devolucion cannot be earlier than fecha_prestamo")
		}
		params.ReturnDate = &returnDate
	}

	loan, err := s.store.Create(ctx, params)
	if err != nil {
		return nil, err
	}
	s.logLoan(ctx, audit.ActionLoanCreated, loan.ID, nil, map[string]any{
		"id_usuario":       loan.UserID,
		"id_libro":         loan.BookID,
		"fecha_prestamo":   loan.LoanDate,
		"fecha_devolucion": loan.ReturnDate,
	})
	return loan, nil
}

// Update applies a partial update and reports whether anything was updated.
func (s *LoanService) Update(ctx context.Context, id uint, in UpdateLoanInput) (bool, error) {
	if in.UserID == nil && in.BookID == nil && in.LoanDate == nil && !in.ReturnDate.Set {
		return false, errs.Validation("at least one field is required to update")
	}

	var patch loans.Patch
	var err error
	if patch.UserID, err = optionalID("id_usuario", in.UserID); err != nil {
		return false, err
	}
	if patch.BookID, err = optionalID("id_libro", in.BookID); err != nil {
		return false, err
	}
	if in.LoanDate != nil {
		loanDate, err := validDate("fecha_prestamo", *in.LoanDate)
		if err != nil {
			return false, err
		}
		patch.LoanDate = &loanDate
	}
	if in.ReturnDate.Set {
		patch.ReturnDate = entities.ClearDate()
		if in.ReturnDate.Value != nil {
			returnDate, err := validDate("fecha_devolucion", *in.ReturnDate.Value)
			if err != nil {
				return false, err
			}
			patch.ReturnDate = entities.SetDate(returnDate)
		}
	}

	updated, err := s.store.Update(ctx, id, patch)
	if err != nil {
		s.logLoan(ctx, audit.ActionLoanUpdated, id, err, nil)
		return false, err
	}

	details := map[string]any{}
	if patch.UserID != nil {
		details["id_usuario"] = *patch.UserID
	}
	if patch.BookID != nil {
		details["id_libro"] = *patch.BookID
	}
	if patch.LoanDate != nil {
		details["fecha_prestamo"] = *patch.LoanDate
	}
	if patch.ReturnDate.Set {
		details["fecha_devolucion"] = patch.ReturnDate.Value
	}
	s.logLoan(ctx, audit.ActionLoanUpdated, id, nil, details)
	return updated, nil
}

// Return closes an open loan on today's UTC date.
func (s *LoanService) Return(ctx context.Context, id uint) (*entities.Loan, error) {
	today := entities.CalendarDate(s.now())
	loan, err := s.store.Return(ctx, id, today)
	if err != nil {
		s.logLoan(ctx, audit.ActionLoanReturned, id, err, nil)
		return nil, err
	}
	s.logLoan(ctx, audit.ActionLoanReturned, id, nil, map[string]any{
		"id_libro":         loan.BookID,
		"fecha_devolucion": today,
	})
	return loan, nil
}

// Delete removes a loan, releasing its book when the loan was open.
func (s *LoanService) Delete(ctx context.Context, id uint) error {
	loan, err := s.store.Delete(ctx, id)
	if err != nil {
		return err
	}
	s.logLoan(ctx, audit.ActionLoanDeleted, id, nil, map[string]any{
		"id_usuario": loan.UserID,
		"id_libro":   loan.BookID,
		"was_open":   loan.IsOpen(),
	})
	return nil
}

// CheckAvailability reports books whose flag disagrees with their open loans.
func (s *LoanService) CheckAvailability(ctx context.Context) ([]loans.Drift, error) {
	drift, err := s.store.CheckAvailability(ctx)
	if s.audit != nil {
		s.audit.LogReconcile(ctx, false, len(drift), err)
	}
	return drift, err
}

// RepairAvailability recomputes drifted availability flags.
func (s *LoanService) RepairAvailability(ctx context.Context) ([]loans.Drift, error) {
	drift, err := s.store.RepairAvailability(ctx)
	if s.audit != nil {
		s.audit.LogReconcile(ctx, true, len(drift), err)
	}
	return drift, err
}

// logLoan records committed changes and business rule rejections on an
// existing loan. Other failures are left to the request log.
func (s *LoanService) logLoan(ctx context.Context, action string, loanID uint, err error, details map[string]any) {
	if s.audit == nil {
		return
	}
	if err != nil && errs.KindOf(err) != errs.KindConflict && errs.KindOf(err) != errs.KindValidation {
		return
	}
	s.audit.LogLoan(ctx, action, loanID, details, err)
}
