package loans

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/mrlokans/lending/internal/entities"
)

// Drift describes a book whose availability flag disagrees with its loans.
type Drift struct {
	BookID    uint   `json:"id_libro"`
	Title     string `json:"titulo"`
	Stored    bool   `json:"disponible"`
	Expected  bool   `json:"esperado"`
	OpenLoans int64  `json:"prestamos_abiertos"`
	// Repaired is set when a repair rewrote the stored flag.
	Repaired  bool   `json:"reparado"`
}

// Resolved reports whether the entry no longer breaks availability. A book
// with several open loans stays unresolved since no flag value can fix it.
func (d Drift) Resolved() bool {
	return d.OpenLoans <= 1 && (d.Stored == d.Expected || d.Repaired)
}

// Unresolved returns the entries a repair could not fix.
func Unresolved(drift []Drift) []Drift {
	out := []Drift{}
	for _, d := range drift {
		if !d.Resolved() {
			out = append(out, d)
		}
	}
	return out
}

// CountRepaired returns how many entries had their flag rewritten.
func CountRepaired(drift []Drift) int {
	n := 0
	for _, d := range drift {
		if d.Repaired {
			n++
		}
	}
	return n
}

type availabilityRow struct {
	ID        uint
	Title     string `gorm:"column:titulo"`
	Available bool   `gorm:"column:disponible"`
	OpenLoans int64
}

// CheckAvailability lists the books whose flag differs from "no open loan".
// Books with more than one open loan are reported as well.
func (r *Repository) CheckAvailability(ctx context.Context) ([]Drift, error) {
	return findDrift(r.db.WithContext(ctx))
}

// RepairAvailability recomputes the flag of every drifted book in one
// transaction. Every drifted book is returned; only the rewritten ones are
// marked Repaired.
func (r *Repository) RepairAvailability(ctx context.Context) ([]Drift, error) {
	var repaired []Drift
	err := r.db.WithContext(context.WithoutCancel(ctx)).Transaction(func(tx *gorm.DB) error {
		drift, err := findDrift(tx)
		if err != nil {
			return err
		}
		for i, d := range drift {
			if d.Stored == d.Expected {
				continue
			}
			if err := setAvailability(tx, d.BookID, d.Expected); err != nil {
				return err
			}
			drift[i].Repaired = true
		}
		repaired = drift
		return nil
	})
	if err != nil {
		return nil, err
	}
	return repaired, nil
}

func findDrift(db *gorm.DB) ([]Drift, error) {
	var rows []availabilityRow
	err := db.Model(&entities.Book{}).
		Select("books.id, books.titulo, books.disponible, COUNT(loans.id) AS open_loans").
		Joins("LEFT JOIN loans ON loans.id_libro = books.id AND loans.fecha_devolucion IS NULL").
		Group("books.id, books.titulo, books.disponible").
		Order("books.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to compute availability: %w", err)
	}

	drift := []Drift{}
	for _, row := range rows {
		expected := row.OpenLoans == 0
		if row.Available == expected && row.OpenLoans <= 1 {
			continue
		}
		drift = append(drift, Drift{
			BookID:    row.ID,
			Title:     row.Title,
			Stored:    row.Available,
			Expected:  expected,
			OpenLoans: row.OpenLoans,
		})
	}
	return drift, nil
}
