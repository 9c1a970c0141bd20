package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/lending/internal/services"
)

type BooksController struct {
	service BookService
}

func NewBooksController(service BookService) *BooksController {
	return &BooksController{service: service}
}

// ListBooks handles GET /api/books. ?disponible=true restricts the list to
// books that can be lent.
func (bc *BooksController) ListBooks(c *gin.Context) {
	books, err := bc.service.List(c.Request.Context(), parseBoolQuery(c, "disponible"))
	if err != nil {
		respondInternalError(c, err, "list books")
		return
	}
	c.JSON(http.StatusOK, books)
}

// GetBook handles GET /api/books/:id
func (bc *BooksController) GetBook(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	book, err := bc.service.Get(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err, "get book")
		return
	}
	c.JSON(http.StatusOK, book)
}

// CreateBook handles POST /api/books
func (bc *BooksController) CreateBook(c *gin.Context) {
	var in services.CreateBookInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondBadRequest(c, "invalid request body: "+err.Error())
		return
	}
	book, err := bc.service.Create(c.Request.Context(), in)
	if err != nil {
		respondErr(c, err, "create book")
		return
	}
	respondCreated(c, book)
}

// UpdateBook handles PUT /api/books/:id
func (bc *BooksController) UpdateBook(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var in services.UpdateBookInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondBadRequest(c, "invalid request body: "+err.Error())
		return
	}
	found, err := bc.service.Update(c.Request.Context(), id, in)
	if err != nil {
		respondErr(c, err, "update book")
		return
	}
	if !found {
		respondNotFound(c, "book")
		return
	}
	respondSuccess(c, "book updated")
}

// DeleteBook handles DELETE /api/books/:id. Books with loan records are kept.
func (bc *BooksController) DeleteBook(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	found, err := bc.service.Delete(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err, "delete book")
		return
	}
	if !found {
		respondNotFound(c, "book")
		return
	}
	respondNoContent(c)
}
