package services

import (
	"context"

	"github.com/mrlokans/lending/internal/audit"
	"github.com/mrlokans/lending/internal/database/users"
	"github.com/mrlokans/lending/internal/entities"
	"github.com/mrlokans/lending/internal/errs"
)

// UserService validates requests against the user registry.
type UserService struct {
	store UserStore
	audit AuditLogger
}

func NewUserService(store UserStore, audit AuditLogger) *UserService {
	return &UserService{store: store, audit: audit}
}

// List returns all users with the book of their open loan, ordered by name.
func (s *UserService) List(ctx context.Context) ([]entities.UserWithLoan, error) {
	return s.store.ListWithLoans(ctx)
}

func (s *UserService) Get(ctx context.Context, id uint) (*entities.User, error) {
	return s.store.Get(ctx, id)
}

func (s *UserService) Create(ctx context.Context, in CreateUserInput) (*entities.User, error) {
	name, err := requiredText("nombre", in.Name)
	if err != nil {
		return nil, err
	}
	email, err := validEmail(in.Email)
	if err != nil {
		return nil, err
	}

	user := &entities.User{Name: name, Email: email}
	if err := s.store.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) Update(ctx context.Context, id uint, in UpdateUserInput) (bool, error) {
	if in.Name == nil && in.Email == nil {
		return false, errs.Validation("at least one field (nombre or email) is required to update")
	}

	var patch users.Patch
	var err error
	if patch.Name, err = optionalText("nombre", in.Name); err != nil {
		return false, err
	}
	if in.Email != nil {
		email, err := validEmail(*in.Email)
		if err != nil {
			return false, err
		}
		patch.Email = &email
	}

	return s.store.Update(ctx, id, patch)
}

// Delete removes a user that holds no open loan, along with its loan history.
// Each removed loan is audited before the user itself.
func (s *UserService) Delete(ctx context.Context, id uint) error {
	removed, err := s.store.Delete(ctx, id)
	if err != nil {
		return err
	}
	if s.audit == nil {
		return nil
	}
	for _, loanID := range removed {
		s.audit.LogLoan(ctx, audit.ActionLoanDeleted, loanID, map[string]any{
			"id_usuario": id,
			"reason":     "user_deleted",
		}, nil)
	}
	s.audit.LogDelete(ctx, entities.AuditEventUser, id)
	return nil
}
