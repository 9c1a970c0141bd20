package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/mrlokans/lending/internal/entities"
)

// FlexBool accepts a JSON boolean or the strings "true" and "false".
// Any other string decodes as false.
type FlexBool bool

func (b *FlexBool) UnmarshalJSON(data []byte) error {
	var v bool
	if err := json.Unmarshal(data, &v); err == nil {
		*b = FlexBool(v)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("expected a boolean")
	}
	*b = FlexBool(strings.TrimSpace(s) == "true")
	return nil
}

// FlexID accepts a JSON number or a numeric string.
type FlexID uint

func (id *FlexID) UnmarshalJSON(data []byte) error {
	raw := string(bytes.Trim(data, `"`))
	n, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return fmt.Errorf("expected a numeric id, got %s", data)
	}
	*id = FlexID(n)
	return nil
}

type CreateBookInput struct {
	Title     string    `json:"titulo"`
	Author    string    `json:"autor"`
	ISBN      string    `json:"isbn"`
	Available *FlexBool `json:"disponible"`
}

type UpdateBookInput struct {
	Title     *string   `json:"titulo"`
	Author    *string   `json:"autor"`
	ISBN      *string   `json:"isbn"`
	Available *FlexBool `json:"disponible"`
}

type CreateUserInput struct {
	Name  string `json:"nombre"`
	Email string `json:"email"`
}

type UpdateUserInput struct {
	Name  *string `json:"nombre"`
	Email *string `json:"email"`
}

type CreateLoanInput struct {
	UserID     *FlexID               `json:"id_usuario"`
	BookID     *FlexID               `json:"id_libro"`
	LoanDate   string                `json:"fecha_prestamo"`
	ReturnDate entities.NullableDate `json:"fecha_devolucion"`
}

// UpdateLoanInput is a partial loan update. An explicit null or empty
// fecha_devolucion reopens the loan.
type UpdateLoanInput struct {
	UserID     *FlexID               `json:"id_usuario"`
	BookID     *FlexID               `json:"id_libro"`
	LoanDate   *string               `json:"fecha_prestamo"`
	ReturnDate entities.NullableDate `json:"fecha_devolucion"`
}
