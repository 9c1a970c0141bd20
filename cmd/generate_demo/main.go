// Command generate_demo creates a demo database with public domain books,
// a few borrowers and a mix of open and returned loans.
// Usage: go run ./cmd/generate_demo [-db path/to/demo.db]
package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/mrlokans/lending/internal/database"
	"github.com/mrlokans/lending/internal/database/books"
	"github.com/mrlokans/lending/internal/database/loans"
	"github.com/mrlokans/lending/internal/database/users"
	"github.com/mrlokans/lending/internal/entities"
	"github.com/mrlokans/lending/internal/services"
)

const defaultDemoDatabasePath = "./demo/demo.db"

type demoLoan struct {
	Email      string
	ISBN       string
	LoanDate   string
	ReturnDate string // empty while the book is still out
}

func main() {
	dbPath := flag.String("db", defaultDemoDatabasePath, "path to the demo database file")
	flag.Parse()

	log.Printf("Generating demo database at %s...", *dbPath)

	// Delete existing demo database to start fresh
	if err := os.Remove(*dbPath); err != nil && !os.IsNotExist(err) {
		log.Fatalf("Failed to remove existing demo database: %v", err)
	}

	db, err := database.NewDatabase(database.SQLiteConfig(*dbPath))
	if err != nil {
		log.Fatalf("Failed to create database: %v", err)
	}
	defer db.Close()

	if err := seed(context.Background(), db); err != nil {
		log.Fatalf("Failed to seed demo database: %v", err)
	}

	log.Println("Demo database generated successfully!")
}

func seed(ctx context.Context, db *database.Database) error {
	bookService := services.NewBookService(books.NewRepository(db.DB), nil)
	userService := services.NewUserService(users.NewRepository(db.DB), nil)
	loanService := services.NewLoanService(loans.NewRepository(db.DB), nil)

	bookIDs := make(map[string]uint)
	for _, b := range publicDomainBooks() {
		book, err := bookService.Create(ctx, services.CreateBookInput{Title: b.Title, Author: b.Author, ISBN: b.ISBN})
		if err != nil {
			return err
		}
		bookIDs[book.ISBN] = book.ID
		log.Printf("Saved: %s by %s", book.Title, book.Author)
	}

	userIDs := make(map[string]uint)
	for _, u := range borrowers() {
		user, err := userService.Create(ctx, services.CreateUserInput{Name: u.Name, Email: u.Email})
		if err != nil {
			return err
		}
		userIDs[user.Email] = user.ID
	}

	for _, l := range demoLoans() {
		userID := services.FlexID(userIDs[l.Email])
		bookID := services.FlexID(bookIDs[l.ISBN])
		in := services.CreateLoanInput{UserID: &userID, BookID: &bookID, LoanDate: l.LoanDate}
		if l.ReturnDate != "" {
			in.ReturnDate = entities.SetDate(l.ReturnDate)
		}
		if _, err := loanService.Create(ctx, in); err != nil {
			return err
		}
	}

	drift, err := loanService.CheckAvailability(ctx)
	if err != nil {
		return err
	}
	log.Printf("Created %d books, %d users, %d loans (%d drifted)", len(bookIDs), len(userIDs), len(demoLoans()), len(drift))
	return nil
}

func publicDomainBooks() []entities.Book {
	return []entities.Book{
		{Title: "Meditations", Author: "Marcus Aurelius", ISBN: "9780140449334"},
		{Title: "Pride and Prejudice", Author: "Jane Austen", ISBN: "9780141439518"},
		{Title: "Frankenstein", Author: "Mary Shelley", ISBN: "9780141439471"},
		{Title: "Moby-Dick", Author: "Herman Melville", ISBN: "9780142437247"},
		{Title: "The Origin of Species", Author: "Charles Darwin", ISBN: "9780451529060"},
		{Title: "Don Quijote de la Mancha", Author: "Miguel de Cervantes", ISBN: "9788420412146"},
		{Title: "Walden", Author: "Henry David Thoreau", ISBN: "9780691096124"},
		{Title: "Crime and Punishment", Author: "Fyodor Dostoevsky", ISBN: "9780143058144"},
	}
}

func borrowers() []entities.User {
	return []entities.User{
		{Name: "Ada Lovelace", Email: "ada@example.org"},
		{Name: "Benito Pérez Galdós", Email: "galdos@example.org"},
		{Name: "Emilia Pardo Bazán", Email: "emilia@example.org"},
		{Name: "Nikola Tesla", Email: "tesla@example.org"},
	}
}

func demoLoans() []demoLoan {
	return []demoLoan{
		{Email: "ada@example.org", ISBN: "9780140449334", LoanDate: "2024-01-08", ReturnDate: "2024-01-22"},
		{Email: "ada@example.org", ISBN: "9780141439471", LoanDate: "2024-02-01"},
		{Email: "galdos@example.org", ISBN: "9788420412146", LoanDate: "2024-01-15"},
		{Email: "emilia@example.org", ISBN: "9780141439518", LoanDate: "2023-11-02", ReturnDate: "2023-11-30"},
		{Email: "emilia@example.org", ISBN: "9780142437247", LoanDate: "2024-02-10"},
		{Email: "tesla@example.org", ISBN: "9780451529060", LoanDate: "2023-12-01", ReturnDate: "2024-01-05"},
	}
}
