// Package loans implements the loan lifecycle.
//
// It is the only code that changes a book's availability flag. Every
// mutating operation runs in a single transaction that both writes the loan
// and moves the flag, so after each commit a book is available exactly when
// no open loan references it.
//
// # Usage
//
//	repo := loans.NewRepository(db)
//	loan, err := repo.Create(ctx, loans.CreateParams{UserID: 1, BookID: 2, LoanDate: "2024-05-01"})
//	loan, err = repo.Return(ctx, loan.ID, "2024-05-20")
package loans

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mrlokans/lending/internal/database"
	"github.com/mrlokans/lending/internal/entities"
	"github.com/mrlokans/lending/internal/errs"
)

// Repository handles all loan database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new loans repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// CreateParams describes a new loan. A loan created with a ReturnDate is a
// closed historical record and does not touch availability.
type CreateParams struct {
	UserID     uint
	BookID     uint
	LoanDate   string
	ReturnDate *string
}

// Patch holds the fields of a partial loan update.
type Patch struct {
	UserID     *uint
	BookID     *uint
	LoanDate   *string
	ReturnDate entities.NullableDate
}

func (p Patch) IsEmpty() bool {
	return p.UserID == nil && p.BookID == nil && p.LoanDate == nil && !p.ReturnDate.Set
}

// List returns all loans with their user and book, ordered by ID.
func (r *Repository) List(ctx context.Context) ([]entities.Loan, error) {
	return r.list(ctx, false)
}

// ListActive returns the loans that have not been returned.
func (r *Repository) ListActive(ctx context.Context) ([]entities.Loan, error) {
	return r.list(ctx, true)
}

func (r *Repository) list(ctx context.Context, onlyOpen bool) ([]entities.Loan, error) {
	loans := []entities.Loan{}
	query := joined(r.db.WithContext(ctx)).Order("loans.id ASC")
	if onlyOpen {
		query = query.Where("loans.fecha_devolucion IS NULL")
	}
	if err := query.Find(&loans).Error; err != nil {
		return nil, fmt.Errorf("failed to list loans: %w", err)
	}
	return loans, nil
}

// Get retrieves a loan with its user and book.
func (r *Repository) Get(ctx context.Context, id uint) (*entities.Loan, error) {
	return getJoined(r.db.WithContext(ctx), id)
}

// Create records a loan. For an open loan the book must be available and is
// marked unavailable in the same transaction.
func (r *Repository) Create(ctx context.Context, params CreateParams) (*entities.Loan, error) {
	var created *entities.Loan
	err := r.db.WithContext(context.WithoutCancel(ctx)).Transaction(func(tx *gorm.DB) error {
		if err := userExists(tx, params.UserID); err != nil {
			return err
		}
		book, err := lockBook(tx, params.BookID)
		if err != nil {
			return err
		}

		open := params.ReturnDate == nil
		if open && !book.Available {
			return errs.ErrBookUnavailable
		}

		loan := entities.Loan{
			UserID:     params.UserID,
			BookID:     params.BookID,
			LoanDate:   params.LoanDate,
			ReturnDate: params.ReturnDate,
		}
		if err := tx.Omit(clause.Associations).Create(&loan).Error; err != nil {
			return fmt.Errorf("failed to create loan: %w", err)
		}

		if open {
			if err := setAvailability(tx, book.ID, false); err != nil {
				return err
			}
		}

		created, err = getJoined(tx, loan.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Update applies patch to a loan and moves availability accordingly. The
// effects follow from the loan before and after the patch:
//
//   - an open loan that closes or moves to another book releases its old book;
//   - a loan that is open afterwards and reopens or moves to another book
//     reserves the new book, which must be available.
//
// The book of a returned loan cannot be changed. It returns false when the
// patch is empty.
func (r *Repository) Update(ctx context.Context, id uint, patch Patch) (bool, error) {
	if patch.IsEmpty() {
		return false, nil
	}

	err := r.db.WithContext(context.WithoutCancel(ctx)).Transaction(func(tx *gorm.DB) error {
		current, err := lockLoan(tx, id)
		if err != nil {
			return err
		}

		next := *current
		cols := make(map[string]any, 4)
		if patch.UserID != nil {
			next.UserID = *patch.UserID
			cols["id_usuario"] = next.UserID
		}
		if patch.BookID != nil {
			next.BookID = *patch.BookID
			cols["id_libro"] = next.BookID
		}
		if patch.LoanDate != nil {
			next.LoanDate = *patch.LoanDate
			cols["fecha_prestamo"] = next.LoanDate
		}
		if patch.ReturnDate.Set {
			next.ReturnDate = patch.ReturnDate.Value
			cols["fecha_devolucion"] = next.ReturnDate
		}

		wasOpen, isOpen := current.IsOpen(), next.IsOpen()
		bookChanged := next.BookID != current.BookID

		if bookChanged && !wasOpen {
			return errs.ErrClosedLoanBook
		}
		if next.ReturnDate != nil && *next.ReturnDate < next.LoanDate {
			return errs.Validation("fecha_devolucion cannot be earlier than fecha_prestamo")
		}
		if next.UserID != current.UserID {
			if err := userExists(tx, next.UserID); err != nil {
				return err
			}
		}

		var target *entities.Book
		if bookChanged || (isOpen && !wasOpen) {
			if target, err = lockBook(tx, next.BookID); err != nil {
				return err
			}
		}

		if wasOpen && (!isOpen || bookChanged) {
			if err := setAvailability(tx, current.BookID, true); err != nil {
				return err
			}
		}
		if isOpen && (!wasOpen || bookChanged) {
			if !target.Available {
				return errs.ErrBookUnavailable
			}
			if err := setAvailability(tx, target.ID, false); err != nil {
				return err
			}
		}

		if err := tx.Model(&entities.Loan{}).Where("id = ?", id).Updates(cols).Error; err != nil {
			return fmt.Errorf("failed to update loan %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// Return closes an open loan on returnDate and releases its book.
func (r *Repository) Return(ctx context.Context, id uint, returnDate string) (*entities.Loan, error) {
	var returned *entities.Loan
	err := r.db.WithContext(context.WithoutCancel(ctx)).Transaction(func(tx *gorm.DB) error {
		loan, err := lockLoan(tx, id)
		if err != nil {
			return err
		}
		if !loan.IsOpen() {
			return errs.ErrAlreadyReturned
		}

		err = tx.Model(&entities.Loan{}).Where("id = ?", id).Update("fecha_devolucion", returnDate).Error
		if err != nil {
			return fmt.Errorf("failed to return loan %d: %w", id, err)
		}
		if err := setAvailability(tx, loan.BookID, true); err != nil {
			return err
		}

		returned, err = getJoined(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return returned, nil
}

// Delete removes a loan. Deleting an open loan releases its book. The deleted
// loan is returned as it was before removal.
func (r *Repository) Delete(ctx context.Context, id uint) (*entities.Loan, error) {
	var deleted *entities.Loan
	err := r.db.WithContext(context.WithoutCancel(ctx)).Transaction(func(tx *gorm.DB) error {
		loan, err := lockLoan(tx, id)
		if err != nil {
			return err
		}
		if err := tx.Delete(&entities.Loan{}, id).Error; err != nil {
			return fmt.Errorf("failed to delete loan %d: %w", id, err)
		}
		if loan.IsOpen() {
			if err := setAvailability(tx, loan.BookID, true); err != nil {
				return err
			}
		}
		deleted = loan
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

func joined(db *gorm.DB) *gorm.DB {
	return db.Joins("User").Joins("Book")
}

func getJoined(db *gorm.DB, id uint) (*entities.Loan, error) {
	var loan entities.Loan
	err := joined(db).Where("loans.id = ?", id).Take(&loan).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.NotFound("loan")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get loan %d: %w", id, err)
	}
	return &loan, nil
}

func lockLoan(tx *gorm.DB, id uint) (*entities.Loan, error) {
	var loan entities.Loan
	err := database.ForUpdate(tx).Take(&loan, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.NotFound("loan")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load loan %d: %w", id, err)
	}
	return &loan, nil
}

func lockBook(tx *gorm.DB, id uint) (*entities.Book, error) {
	var book entities.Book
	err := database.ForUpdate(tx).Take(&book, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.NotFound("book")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load book %d: %w", id, err)
	}
	return &book, nil
}

func userExists(tx *gorm.DB, id uint) error {
	var count int64
	if err := tx.Model(&entities.User{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check user %d: %w", id, err)
	}
	if count == 0 {
		return errs.NotFound("user")
	}
	return nil
}

func setAvailability(tx *gorm.DB, bookID uint, available bool) error {
	err := tx.Model(&entities.Book{}).Where("id = ?", bookID).Update("disponible", available).Error
	if err != nil {
		return fmt.Errorf("failed to set availability of book %d: %w", bookID, err)
	}
	return nil
}
