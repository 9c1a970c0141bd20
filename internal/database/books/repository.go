// Package books provides database operations for the book registry.
//
// # Usage
//
//	repo := books.NewRepository(db)
//	available, err := repo.List(ctx, true)
//
// Availability is maintained by the loans package. The registry only accepts a
// manual availability change when it agrees with the book's open loans.
package books

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/mrlokans/lending/internal/database"
	"github.com/mrlokans/lending/internal/entities"
	"github.com/mrlokans/lending/internal/errs"
)

// Repository handles all book database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new books repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Patch holds the fields of a partial book update. Nil fields are left unchanged.
type Patch struct {
	Title     *string
	Author    *string
	ISBN      *string
	Available *bool
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Title == nil && p.Author == nil && p.ISBN == nil && p.Available == nil
}

func (p Patch) columns() map[string]any {
	cols := make(map[string]any, 4)
	if p.Title != nil {
		cols["titulo"] = *p.Title
	}
	if p.Author != nil {
		cols["autor"] = *p.Author
	}
	if p.ISBN != nil {
		cols["isbn"] = *p.ISBN
	}
	if p.Available != nil {
		cols["disponible"] = *p.Available
	}
	return cols
}

// List returns all books ordered by ID, or only the available ones.
func (r *Repository) List(ctx context.Context, onlyAvailable bool) ([]entities.Book, error) {
	books := []entities.Book{}
	query := r.db.WithContext(ctx).Order("id ASC")
	if onlyAvailable {
		query = query.Where("disponible = ?", true)
	}
	if err := query.Find(&books).Error; err != nil {
		return nil, fmt.Errorf("failed to list books: %w", err)
	}
	return books, nil
}

// Get retrieves a book by ID.
func (r *Repository) Get(ctx context.Context, id uint) (*entities.Book, error) {
	var book entities.Book
	err := r.db.WithContext(ctx).Take(&book, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.NotFound("book")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get book %d: %w", id, err)
	}
	return &book, nil
}

// Create inserts a book. The caller decides the initial availability.
func (r *Repository) Create(ctx context.Context, book *entities.Book) error {
	if err := r.db.WithContext(ctx).Create(book).Error; err != nil {
		return fmt.Errorf("failed to create book: %w", err)
	}
	return nil
}

// Update applies patch to the book. It returns false when the book does not
// exist or the patch is empty.
func (r *Repository) Update(ctx context.Context, id uint, patch Patch) (bool, error) {
	if patch.IsEmpty() {
		return false, nil
	}

	found := false
	err := r.db.WithContext(context.WithoutCancel(ctx)).Transaction(func(tx *gorm.DB) error {
		var book entities.Book
		err := database.ForUpdate(tx).Take(&book, id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to load book %d: %w", id, err)
		}
		found = true

		if patch.Available != nil {
			open, err := countOpenLoans(tx, id)
			if err != nil {
				return err
			}
			if *patch.Available != (open == 0) {
				return errs.ErrAvailabilityMismatch
			}
		}

		if err := tx.Model(&entities.Book{}).Where("id = ?", id).Updates(patch.columns()).Error; err != nil {
			return fmt.Errorf("failed to update book %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return found, nil
}

// Delete removes a book. Books referenced by any loan, open or returned,
// cannot be deleted.
func (r *Repository) Delete(ctx context.Context, id uint) (bool, error) {
	found := false
	err := r.db.WithContext(context.WithoutCancel(ctx)).Transaction(func(tx *gorm.DB) error {
		var book entities.Book
		err := database.ForUpdate(tx).Take(&book, id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to load book %d: %w", id, err)
		}
		found = true

		var loans int64
		if err := tx.Model(&entities.Loan{}).Where("id_libro = ?", id).Count(&loans).Error; err != nil {
			return fmt.Errorf("failed to count loans of book %d: %w", id, err)
		}
		if loans > 0 {
			return errs.ErrBookHasLoans
		}

		if err := tx.Delete(&entities.Book{}, id).Error; err != nil {
			if errs.IsForeignKeyViolation(err) {
				return errs.ErrBookHasLoans
			}
			return fmt.Errorf("failed to delete book %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return found, nil
}

func countOpenLoans(tx *gorm.DB, bookID uint) (int64, error) {
	var open int64
	err := tx.Model(&entities.Loan{}).
		Where("id_libro = ? AND fecha_devolucion IS NULL", bookID).
		Count(&open).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count open loans of book %d: %w", bookID, err)
	}
	return open, nil
}
