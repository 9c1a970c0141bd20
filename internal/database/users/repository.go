// Package users provides database operations for the user registry.
//
// # Usage
//
//	repo := users.NewRepository(db)
//	listing, err := repo.ListWithLoans(ctx)
package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/lending/internal/database"
	"github.com/mrlokans/lending/internal/entities"
	"github.com/mrlokans/lending/internal/errs"
)

// Repository handles all user database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new users repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Patch holds the fields of a partial user update. Nil fields are left unchanged.
type Patch struct {
	Name  *string
	Email *string
}

func (p Patch) IsEmpty() bool {
	return p.Name == nil && p.Email == nil
}

// userLoanRow is one row of the users LEFT JOIN open loan LEFT JOIN books query.
type userLoanRow struct {
	ID           uint
	Name         string `gorm:"column:nombre"`
	Email        string
	RegisteredAt time.Time `gorm:"column:fecha_registro"`
	BookID       *uint
	BookTitle    *string
	BookAuthor   *string
	BookISBN     *string
}

// ListWithLoans returns every user ordered by name, each with the book of its
// open loan. When a user holds several open loans the most recent one is used.
func (r *Repository) ListWithLoans(ctx context.Context) ([]entities.UserWithLoan, error) {
	var rows []userLoanRow
	err := r.db.WithContext(ctx).
		Table("users").
		Select(`users.id, users.nombre, users.email, users.fecha_registro,
			books.id AS book_id, books.titulo AS book_title, books.autor AS book_author, books.isbn AS book_isbn`).
		Joins(`LEFT JOIN loans ON loans.id = (
			SELECT MAX(open_loans.id) FROM loans open_loans
			WHERE open_loans.id_usuario = users.id AND open_loans.fecha_devolucion IS NULL)`).
		Joins("LEFT JOIN books ON books.id = loans.id_libro").
		Order("users.nombre ASC, users.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	result := make([]entities.UserWithLoan, 0, len(rows))
	for _, row := range rows {
		item := entities.UserWithLoan{
			User: entities.User{
				ID:           row.ID,
				Name:         row.Name,
				Email:        row.Email,
				RegisteredAt: row.RegisteredAt,
			},
		}
		if row.BookID != nil {
			item.BookOnLoan = &entities.BookSummary{
				ID:     *row.BookID,
				Title:  deref(row.BookTitle),
				Author: deref(row.BookAuthor),
				ISBN:   deref(row.BookISBN),
			}
		}
		result = append(result, item)
	}
	return result, nil
}

// Get retrieves a user by ID.
func (r *Repository) Get(ctx context.Context, id uint) (*entities.User, error) {
	var user entities.User
	err := r.db.WithContext(ctx).Take(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.NotFound("user")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %d: %w", id, err)
	}
	return &user, nil
}

// Create inserts a user. The registration timestamp is assigned by the store.
func (r *Repository) Create(ctx context.Context, user *entities.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// Update applies patch to the user. It returns false when the user does not
// exist or the patch is empty.
func (r *Repository) Update(ctx context.Context, id uint, patch Patch) (bool, error) {
	if patch.IsEmpty() {
		return false, nil
	}

	cols := make(map[string]any, 2)
	if patch.Name != nil {
		cols["nombre"] = *patch.Name
	}
	if patch.Email != nil {
		cols["email"] = *patch.Email
	}

	result := r.db.WithContext(ctx).Model(&entities.User{}).Where("id = ?", id).Updates(cols)
	if result.Error != nil {
		return false, fmt.Errorf("failed to update user %d: %w", id, result.Error)
	}
	if result.RowsAffected > 0 {
		return true, nil
	}

	// Some drivers count only changed rows, so confirm the user is really missing.
	var count int64
	if err := r.db.WithContext(ctx).Model(&entities.User{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check user %d: %w", id, err)
	}
	return count > 0, nil
}

// Delete removes a user together with its returned loans. A user holding an
// open loan cannot be deleted.
func (r *Repository) Delete(ctx context.Context, id uint) ([]uint, error) {
	var removed []uint
	err := r.db.WithContext(context.WithoutCancel(ctx)).Transaction(func(tx *gorm.DB) error {
		var user entities.User
		err := database.ForUpdate(tx).Take(&user, id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errs.NotFound("user")
		}
		if err != nil {
			return fmt.Errorf("failed to load user %d: %w", id, err)
		}

		var open int64
		err = tx.Model(&entities.Loan{}).
			Where("id_usuario = ? AND fecha_devolucion IS NULL", id).
			Count(&open).Error
		if err != nil {
			return fmt.Errorf("failed to count open loans of user %d: %w", id, err)
		}
		if open > 0 {
			return errs.ErrUserHasOpenLoans
		}

		err = tx.Model(&entities.Loan{}).
			Where("id_usuario = ?", id).
			Order("id ASC").
			Pluck("id", &removed).Error
		if err != nil {
			return fmt.Errorf("failed to list loan history of user %d: %w", id, err)
		}
		if err := tx.Where("id_usuario = ?", id).Delete(&entities.Loan{}).Error; err != nil {
			return fmt.Errorf("failed to delete loan history of user %d: %w", id, err)
		}
		if err := tx.Delete(&entities.User{}, id).Error; err != nil {
			return fmt.Errorf("failed to delete user %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
