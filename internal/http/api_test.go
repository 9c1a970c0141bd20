package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mikestefanello/backlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/lending/internal/audit"
	"github.com/mrlokans/lending/internal/database"
	auditrepo "github.com/mrlokans/lending/internal/database/audit"
	"github.com/mrlokans/lending/internal/database/books"
	"github.com/mrlokans/lending/internal/database/loans"
	"github.com/mrlokans/lending/internal/database/users"
	"github.com/mrlokans/lending/internal/entities"
	"github.com/mrlokans/lending/internal/services"
	"github.com/mrlokans/lending/internal/tasks"
)

type testAPI struct {
	router *gin.Engine
	db     *database.Database
	audit  *audit.Service
}

func setupAPI(t *testing.T, queue TaskQueue) *testAPI {
	t.Helper()
	db, err := database.NewDatabase(database.SQLiteConfig(filepath.Join(t.TempDir(), "api.db")))
	require.NoError(t, err)

	auditService := audit.NewService(auditrepo.NewRepository(db.DB))
	t.Cleanup(func() {
		auditService.Wait()
		db.Close()
	})

	loanService := services.NewLoanService(loans.NewRepository(db.DB), auditService)
	router := NewRouter(RouterConfig{
		Database:     db,
		Books:        services.NewBookService(books.NewRepository(db.DB), auditService),
		Users:        services.NewUserService(users.NewRepository(db.DB), auditService),
		Loans:        loanService,
		Availability: loanService,
		Audit:        auditService,
		TaskQueue:    queue,
		Version:      "test",
	})
	return &testAPI{router: router, db: db, audit: auditService}
}

func (a *testAPI) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (a *testAPI) createBook(t *testing.T, title, isbn string) entities.Book {
	t.Helper()
	w := a.do(t, "POST", "/api/books", gin.H{"titulo": title, "autor": "Author", "isbn": isbn})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[entities.Book](t, w)
}

func (a *testAPI) createUser(t *testing.T, name, email string) entities.User {
	t.Helper()
	w := a.do(t, "POST", "/api/users", gin.H{"nombre": name, "email": email})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[entities.User](t, w)
}

func (a *testAPI) createLoan(t *testing.T, userID, bookID uint) entities.Loan {
	t.Helper()
	w := a.do(t, "POST", "/api/loans", gin.H{"id_usuario": userID, "id_libro": bookID, "fecha_prestamo": "2024-01-10"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[entities.Loan](t, w)
}

func (a *testAPI) getBook(t *testing.T, id uint) entities.Book {
	t.Helper()
	w := a.do(t, "GET", "/api/books/"+itoa(id), nil)
	require.Equal(t, http.StatusOK, w.Code)
	return decode[entities.Book](t, w)
}

func itoa(id uint) string {
	raw, _ := json.Marshal(id)
	return string(raw)
}

func TestBooksAPI(t *testing.T) {
	api := setupAPI(t, nil)

	t.Run("create and get", func(t *testing.T) {
		book := api.createBook(t, "Dune", "isbn-1")
		assert.True(t, book.Available)

		got := api.getBook(t, book.ID)
		assert.Equal(t, "Dune", got.Title)
	})

	t.Run("duplicate isbn is a conflict", func(t *testing.T) {
		w := api.do(t, "POST", "/api/books", gin.H{"titulo": "Other", "autor": "A", "isbn": "isbn-1"})
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("missing title is rejected", func(t *testing.T) {
		w := api.do(t, "POST", "/api/books", gin.H{"autor": "A", "isbn": "isbn-x"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unavailable on create is a conflict", func(t *testing.T) {
		w := api.do(t, "POST", "/api/books", gin.H{"titulo": "Loaned", "autor": "A", "isbn": "isbn-u", "disponible": false})
		assert.Equal(t, http.StatusConflict, w.Code)

		for _, b := range decode[[]entities.Book](t, api.do(t, "GET", "/api/books", nil)) {
			assert.NotEqual(t, "isbn-u", b.ISBN)
		}
	})

	t.Run("malformed body is rejected", func(t *testing.T) {
		w := api.do(t, "POST", "/api/books", "{not json")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown and invalid ids", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, api.do(t, "GET", "/api/books/999", nil).Code)
		assert.Equal(t, http.StatusBadRequest, api.do(t, "GET", "/api/books/abc", nil).Code)
	})

	t.Run("update", func(t *testing.T) {
		book := api.createBook(t, "Emma", "isbn-2")

		w := api.do(t, "PUT", "/api/books/"+itoa(book.ID), gin.H{"titulo": "Emma (2nd ed.)"})
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "Emma (2nd ed.)", api.getBook(t, book.ID).Title)

		assert.Equal(t, http.StatusBadRequest, api.do(t, "PUT", "/api/books/"+itoa(book.ID), gin.H{}).Code)
		assert.Equal(t, http.StatusNotFound, api.do(t, "PUT", "/api/books/999", gin.H{"titulo": "X"}).Code)
	})

	t.Run("list filters available books", func(t *testing.T) {
		user := api.createUser(t, "Reader", "reader@example.com")
		lent := api.createBook(t, "Lent", "isbn-3")
		api.createLoan(t, user.ID, lent.ID)

		all := decode[[]entities.Book](t, api.do(t, "GET", "/api/books", nil))
		available := decode[[]entities.Book](t, api.do(t, "GET", "/api/books?disponible=true", nil))

		assert.Len(t, all, 3)
		assert.Len(t, available, 2)
		for _, b := range available {
			assert.NotEqual(t, lent.ID, b.ID)
		}
	})

	t.Run("delete", func(t *testing.T) {
		book := api.createBook(t, "Temp", "isbn-4")
		assert.Equal(t, http.StatusNoContent, api.do(t, "DELETE", "/api/books/"+itoa(book.ID), nil).Code)
		assert.Equal(t, http.StatusNotFound, api.do(t, "DELETE", "/api/books/"+itoa(book.ID), nil).Code)
	})

	t.Run("book with loans cannot be deleted", func(t *testing.T) {
		user := api.createUser(t, "Keeper", "keeper@example.com")
		book := api.createBook(t, "Kept", "isbn-5")
		loan := api.createLoan(t, user.ID, book.ID)
		require.Equal(t, http.StatusOK, api.do(t, "PUT", "/api/loans/"+itoa(loan.ID)+"/return", nil).Code)

		assert.Equal(t, http.StatusConflict, api.do(t, "DELETE", "/api/books/"+itoa(book.ID), nil).Code)
	})
}

func TestUsersAPI(t *testing.T) {
	api := setupAPI(t, nil)

	t.Run("invalid email", func(t *testing.T) {
		w := api.do(t, "POST", "/api/users", gin.H{"nombre": "Ann", "email": "not-an-email"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("duplicate email", func(t *testing.T) {
		api.createUser(t, "Ann", "ann@example.com")
		w := api.do(t, "POST", "/api/users", gin.H{"nombre": "Other Ann", "email": "ann@example.com"})
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("list shows book on loan", func(t *testing.T) {
		bob := api.createUser(t, "Bob", "bob@example.com")
		book := api.createBook(t, "Ulysses", "isbn-u")
		api.createLoan(t, bob.ID, book.ID)

		list := decode[[]entities.UserWithLoan](t, api.do(t, "GET", "/api/users", nil))
		require.Len(t, list, 2)
		assert.Equal(t, "Ann", list[0].Name)
		assert.Nil(t, list[0].BookOnLoan)
		assert.Equal(t, "Bob", list[1].Name)
		require.NotNil(t, list[1].BookOnLoan)
		assert.Equal(t, "Ulysses", list[1].BookOnLoan.Title)
	})

	t.Run("user with open loan cannot be deleted", func(t *testing.T) {
		carol := api.createUser(t, "Carol", "carol@example.com")
		book := api.createBook(t, "Middlemarch", "isbn-m")
		loan := api.createLoan(t, carol.ID, book.ID)

		w := api.do(t, "DELETE", "/api/users/"+itoa(carol.ID), nil)
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Contains(t, w.Body.String(), "open loans")

		require.Equal(t, http.StatusOK, api.do(t, "PUT", "/api/loans/"+itoa(loan.ID)+"/return", nil).Code)
		assert.Equal(t, http.StatusNoContent, api.do(t, "DELETE", "/api/users/"+itoa(carol.ID), nil).Code)
		assert.Equal(t, http.StatusNotFound, api.do(t, "GET", "/api/loans/"+itoa(loan.ID), nil).Code)
	})

	t.Run("update and delete missing user", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, api.do(t, "PUT", "/api/users/999", gin.H{"nombre": "X"}).Code)
		assert.Equal(t, http.StatusNotFound, api.do(t, "DELETE", "/api/users/999", nil).Code)
	})
}

func TestLoansAPI(t *testing.T) {
	api := setupAPI(t, nil)
	user := api.createUser(t, "Dana", "dana@example.com")
	other := api.createUser(t, "Eli", "eli@example.com")
	book := api.createBook(t, "Beloved", "isbn-b")

	loan := api.createLoan(t, user.ID, book.ID)
	api.audit.Wait()

	t.Run("created loan carries user and book", func(t *testing.T) {
		assert.Equal(t, "Dana", loan.User.Name)
		assert.Equal(t, "Beloved", loan.Book.Title)
		assert.Nil(t, loan.ReturnDate)
		assert.False(t, api.getBook(t, book.ID).Available)
	})

	t.Run("second loan of the same book is a conflict", func(t *testing.T) {
		w := api.do(t, "POST", "/api/loans", gin.H{"id_usuario": other.ID, "id_libro": book.ID, "fecha_prestamo": "2024-01-11"})
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("string ids are accepted", func(t *testing.T) {
		spare := api.createBook(t, "Spare", "isbn-s")
		w := api.do(t, "POST", "/api/loans", `{"id_usuario":"`+itoa(other.ID)+`","id_libro":"`+itoa(spare.ID)+`","fecha_prestamo":"2024-01-12"}`)
		assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	})

	t.Run("missing user is not found", func(t *testing.T) {
		spare := api.createBook(t, "Ghost", "isbn-g")
		w := api.do(t, "POST", "/api/loans", gin.H{"id_usuario": 999, "id_libro": spare.ID, "fecha_prestamo": "2024-01-12"})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("active loans", func(t *testing.T) {
		active := decode[[]entities.Loan](t, api.do(t, "GET", "/api/loans/active", nil))
		assert.Len(t, active, 2)
		all := decode[[]entities.Loan](t, api.do(t, "GET", "/api/loans", nil))
		assert.Len(t, all, 2)
	})

	t.Run("return is not repeatable", func(t *testing.T) {
		w := api.do(t, "PUT", "/api/loans/"+itoa(loan.ID)+"/return", nil)
		require.Equal(t, http.StatusOK, w.Code)
		resp := decode[struct {
			Message string        `json:"message"`
			Data    entities.Loan `json:"data"`
		}](t, w)
		require.NotNil(t, resp.Data.ReturnDate)
		assert.True(t, api.getBook(t, book.ID).Available)

		w = api.do(t, "PUT", "/api/loans/"+itoa(loan.ID)+"/return", nil)
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, http.StatusNotFound, api.do(t, "PUT", "/api/loans/999/return", nil).Code)
	})

	t.Run("reopening through update reserves the book again", func(t *testing.T) {
		w := api.do(t, "PUT", "/api/loans/"+itoa(loan.ID), `{"fecha_devolucion": null}`)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.False(t, api.getBook(t, book.ID).Available)
	})

	t.Run("return date before loan date is rejected", func(t *testing.T) {
		w := api.do(t, "PUT", "/api/loans/"+itoa(loan.ID), gin.H{"fecha_devolucion": "2023-12-31"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("deleting an open loan releases the book", func(t *testing.T) {
		api.audit.Wait()
		assert.Equal(t, http.StatusNoContent, api.do(t, "DELETE", "/api/loans/"+itoa(loan.ID), nil).Code)
		assert.True(t, api.getBook(t, book.ID).Available)
		assert.Equal(t, http.StatusNotFound, api.do(t, "DELETE", "/api/loans/"+itoa(loan.ID), nil).Code)
	})

	t.Run("history lists events newest first", func(t *testing.T) {
		api.audit.Wait()

		w := api.do(t, "GET", "/api/loans/"+itoa(loan.ID)+"/history", nil)
		require.Equal(t, http.StatusOK, w.Code)
		resp := decode[struct {
			Data  []entities.AuditEvent `json:"data"`
			Total int64                 `json:"total"`
		}](t, w)

		require.NotEmpty(t, resp.Data)
		assert.Equal(t, audit.ActionLoanDeleted, resp.Data[0].Action)
		assert.Equal(t, audit.ActionLoanCreated, resp.Data[len(resp.Data)-1].Action)
		for _, e := range resp.Data {
			assert.NotEmpty(t, e.RequestID)
		}
	})

	t.Run("audit filter rejects unknown types", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, api.do(t, "GET", "/api/audit?type=bogus", nil).Code)
		assert.Equal(t, http.StatusOK, api.do(t, "GET", "/api/audit?type=loan", nil).Code)
	})
}

func TestAdminAPI_Inline(t *testing.T) {
	api := setupAPI(t, nil)
	book := api.createBook(t, "Drifted", "isbn-d")

	report := decode[AvailabilityReport](t, api.do(t, "GET", "/api/admin/availability", nil))
	assert.True(t, report.Consistent)
	assert.Empty(t, report.Drift)

	// Corrupt the flag behind the lifecycle's back.
	require.NoError(t, api.db.DB.Model(&entities.Book{}).Where("id = ?", book.ID).Update("disponible", false).Error)

	report = decode[AvailabilityReport](t, api.do(t, "GET", "/api/admin/availability", nil))
	assert.False(t, report.Consistent)
	require.Len(t, report.Drift, 1)
	assert.Equal(t, book.ID, report.Drift[0].BookID)

	w := api.do(t, "POST", "/api/admin/availability/reconcile?repair=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	report = decode[AvailabilityReport](t, w)
	assert.True(t, report.Repaired)
	assert.True(t, report.Consistent)
	assert.Equal(t, 1, report.RepairedBooks)

	assert.True(t, api.getBook(t, book.ID).Available)
	assert.Equal(t, http.StatusNotFound, api.do(t, "GET", "/api/tasks/abc", nil).Code)
}

func TestAdminAPI_DoubleLoanStaysInconsistent(t *testing.T) {
	api := setupAPI(t, nil)
	user := api.createUser(t, "Twice", "twice@example.com")
	book := api.createBook(t, "Twice Lent", "isbn-tw")
	api.createLoan(t, user.ID, book.ID)

	// A second open loan written outside the lifecycle.
	require.NoError(t, api.db.DB.Exec("INSERT INTO loans (id_usuario, id_libro, fecha_prestamo) VALUES (?, ?, ?)",
		user.ID, book.ID, "2024-01-11").Error)

	w := api.do(t, "POST", "/api/admin/availability/reconcile?repair=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	report := decode[AvailabilityReport](t, w)
	assert.False(t, report.Consistent)
	assert.False(t, report.Repaired)
	assert.Zero(t, report.RepairedBooks)
	require.Len(t, report.Drift, 1)
	assert.Equal(t, book.ID, report.Drift[0].BookID)
	assert.Equal(t, int64(2), report.Drift[0].OpenLoans)

	report = decode[AvailabilityReport](t, api.do(t, "GET", "/api/admin/availability", nil))
	assert.False(t, report.Consistent)
	assert.Len(t, report.Drift, 1)
}

type fakeQueue struct {
	enqueued []backlite.Task
	statuses map[string]backlite.TaskStatus
	err      error
}

func (q *fakeQueue) Enqueue(task backlite.Task) (string, error) {
	if q.err != nil {
		return "", q.err
	}
	q.enqueued = append(q.enqueued, task)
	return "task-1", nil
}

func (q *fakeQueue) Status(_ context.Context, id string) (backlite.TaskStatus, error) {
	if s, ok := q.statuses[id]; ok {
		return s, nil
	}
	return backlite.TaskStatusNotFound, nil
}

func TestAdminAPI_Queued(t *testing.T) {
	queue := &fakeQueue{statuses: map[string]backlite.TaskStatus{"task-1": backlite.TaskStatusSuccess}}
	api := setupAPI(t, queue)

	req := httptest.NewRequest("POST", "/api/admin/availability/reconcile?repair=true", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	w := httptest.NewRecorder()
	api.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Contains(t, w.Body.String(), "task-1")
	require.Len(t, queue.enqueued, 1)
	task := queue.enqueued[0].(tasks.ReconcileAvailabilityTask)
	assert.True(t, task.Repair)
	assert.Equal(t, "req-42", task.RequestID)

	w = api.do(t, "GET", "/api/tasks/task-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "success")
	assert.Equal(t, http.StatusNotFound, api.do(t, "GET", "/api/tasks/missing", nil).Code)

	queue.err = errors.New("queue down")
	assert.Equal(t, http.StatusInternalServerError, api.do(t, "POST", "/api/admin/availability/reconcile", nil).Code)
}

func TestRouter_CORS(t *testing.T) {
	t.Run("any origin by default", func(t *testing.T) {
		router := NewRouter(RouterConfig{})
		req := httptest.NewRequest("GET", "/ping", nil)
		req.Header.Set("Origin", "http://client.test")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("restricted origins", func(t *testing.T) {
		router := NewRouter(RouterConfig{AllowedOrigins: []string{"http://allowed.test"}})
		req := httptest.NewRequest("GET", "/ping", nil)
		req.Header.Set("Origin", "http://blocked.test")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}
