// Package errs defines the error taxonomy shared by the registries, the loan
// lifecycle manager and the HTTP boundary.
//
// Every failure falls in one of four kinds:
//
//   - Validation: malformed or missing input (HTTP 400)
//   - NotFound: a referenced entity does not exist (HTTP 404)
//   - Conflict: a business rule rejected the operation (HTTP 409)
//   - Internal: anything else (HTTP 500, logged server-side)
//
// Typed errors are created with Validation, NotFound and Conflict. Untyped errors
// coming from the store are classified by KindOf, which recognises unique and
// foreign key violations from SQLite and PostgreSQL as conflicts.
package errs

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"
)

// Kind classifies an error for the boundary layer.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Error is a classified failure with a client-safe message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Business rule violations raised by the loan lifecycle and the registries.
var (
	ErrBookUnavailable      = &Error{Kind: KindConflict, Message: "book is not available for loan"}
	ErrAlreadyReturned      = &Error{Kind: KindConflict, Message: "loan has already been returned"}
	ErrUserHasOpenLoans     = &Error{Kind: KindConflict, Message: "cannot delete: user has open loans"}
	ErrBookHasLoans         = &Error{Kind: KindConflict, Message: "cannot delete: book has loan records"}
	ErrClosedLoanBook       = &Error{Kind: KindConflict, Message: "cannot change the book of a returned loan"}
	ErrAvailabilityMismatch = &Error{Kind: KindConflict, Message: "availability must match the book's open loans"}
	ErrDuplicate            = &Error{Kind: KindConflict, Message: "resource already exists (duplicate email or ISBN)"}
)

// Validation returns a KindValidation error.
func Validation(format string, args ...any) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// NotFound returns a KindNotFound error for the named resource.
func NotFound(resource string) error {
	return &Error{Kind: KindNotFound, Message: resource + " not found"}
}

// Conflict returns a KindConflict error.
func Conflict(format string, args ...any) error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// KindOf classifies err. Typed errors keep their kind, store constraint
// violations are conflicts, everything else is internal.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return KindNotFound
	}
	if IsDuplicateKey(err) || IsForeignKeyViolation(err) {
		return KindConflict
	}
	return KindInternal
}

// Message returns the text that may be shown to a client.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	switch {
	case IsDuplicateKey(err):
		return ErrDuplicate.Message
	case IsForeignKeyViolation(err):
		return "operation violates a reference between records"
	case errors.Is(err, gorm.ErrRecordNotFound):
		return "record not found"
	}
	return "internal server error"
}

// IsDuplicateKey reports whether err is a unique constraint violation.
func IsDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "duplicate entry")
}

// IsForeignKeyViolation reports whether err is a foreign key violation.
func IsForeignKeyViolation(err error) bool {
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return true
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "foreign key constraint")
}
