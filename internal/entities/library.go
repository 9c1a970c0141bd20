package entities

import (
	"time"
)

// Book is a title held by the library. Available is a cached projection of
// "no open loan references this book" and is only flipped by the loan lifecycle.
type Book struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	Title     string `gorm:"column:titulo;size:255;not null" json:"titulo"`
	Author    string `gorm:"column:autor;size:255;not null" json:"autor"`
	ISBN      string `gorm:"column:isbn;size:20;uniqueIndex;not null" json:"isbn"`
	Available bool   `gorm:"column:disponible;not null;index" json:"disponible"`
}

func (Book) TableName() string {
	return "books"
}

// BookSummary is the book projection embedded in user listings.
type BookSummary struct {
	ID     uint   `json:"id"`
	Title  string `json:"titulo"`
	Author string `json:"autor"`
	ISBN   string `json:"isbn"`
}

type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"column:nombre;size:255;not null;index" json:"nombre"`
	Email        string    `gorm:"column:email;size:255;uniqueIndex;not null" json:"email"`
	RegisteredAt time.Time `gorm:"column:fecha_registro;autoCreateTime" json:"fecha_registro"`
}

func (User) TableName() string {
	return "users"
}

// UserWithLoan is a user enriched with the book of its current open loan.
type UserWithLoan struct {
	User
	BookOnLoan *BookSummary `json:"libro_en_prestamo"`
}

// Loan records a book lent to a user. A loan is open while ReturnDate is nil.
type Loan struct {
	ID         uint    `gorm:"primaryKey" json:"id"`
	UserID     uint    `gorm:"column:id_usuario;not null;index" json:"id_usuario"`
	BookID     uint    `gorm:"column:id_libro;not null;index" json:"id_libro"`
	LoanDate   string  `gorm:"column:fecha_prestamo;size:10;not null" json:"fecha_prestamo"`
	ReturnDate *string `gorm:"column:fecha_devolucion;size:10;index" json:"fecha_devolucion"`
	User       User    `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"user"`
	Book       Book    `gorm:"foreignKey:BookID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"book"`
}

func (Loan) TableName() string {
	return "loans"
}

// IsOpen reports whether the loan has not been returned yet.
func (l *Loan) IsOpen() bool {
	return l.ReturnDate == nil
}
