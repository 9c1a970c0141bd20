package services

import (
	"context"

	"github.com/mrlokans/lending/internal/database/books"
	"github.com/mrlokans/lending/internal/entities"
	"github.com/mrlokans/lending/internal/errs"
)

// BookService validates requests against the book registry.
type BookService struct {
	store BookStore
	audit AuditLogger
}

func NewBookService(store BookStore, audit AuditLogger) *BookService {
	return &BookService{store: store, audit: audit}
}

func (s *BookService) List(ctx context.Context, onlyAvailable bool) ([]entities.Book, error) {
	return s.store.List(ctx, onlyAvailable)
}

func (s *BookService) Get(ctx context.Context, id uint) (*entities.Book, error) {
	return s.store.Get(ctx, id)
}

// Create registers a book. A new book has no loans, so it is always
// available and an explicit disponible=false is rejected.
func (s *BookService) Create(ctx context.Context, in CreateBookInput) (*entities.Book, error) {
	title, err := requiredText("titulo", in.Title)
	if err != nil {
		return nil, err
	}
	author, err := requiredText("autor", in.Author)
	if err != nil {
		return nil, err
	}
	isbn, err := requiredText("isbn", in.ISBN)
	if err != nil {
		return nil, err
	}

	if in.Available != nil && !bool(*in.Available) {
		return nil, errs.ErrAvailabilityMismatch
	}

	book := &entities.Book{Title: title, Author: author, ISBN: isbn, Available: true}
	if err := s.store.Create(ctx, book); err != nil {
		return nil, err
	}
	return book, nil
}

// Update applies a partial update and reports whether the book exists.
func (s *BookService) Update(ctx context.Context, id uint, in UpdateBookInput) (bool, error) {
	if in.Title == nil && in.Author == nil && in.ISBN == nil && in.Available == nil {
		return false, errs.Validation("at least one field is required to update")
	}

	var patch books.Patch
	var err error
	if patch.Title, err = optionalText("titulo", in.Title); err != nil {
		return false, err
	}
	if patch.Author, err = optionalText("autor", in.Author); err != nil {
		return false, err
	}
	if patch.ISBN, err = optionalText("isbn", in.ISBN); err != nil {
		return false, err
	}
	if in.Available != nil {
		available := bool(*in.Available)
		patch.Available = &available
	}

	return s.store.Update(ctx, id, patch)
}

func (s *BookService) Delete(ctx context.Context, id uint) (bool, error) {
	found, err := s.store.Delete(ctx, id)
	if err != nil || !found {
		return found, err
	}
	if s.audit != nil {
		s.audit.LogDelete(ctx, entities.AuditEventBook, id)
	}
	return true, nil
}
