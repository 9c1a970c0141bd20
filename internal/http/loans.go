package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/lending/internal/services"
)

type LoansController struct {
	service LoanService
}

func NewLoansController(service LoanService) *LoansController {
	return &LoansController{service: service}
}

// ListLoans handles GET /api/loans
func (lc *LoansController) ListLoans(c *gin.Context) {
	loans, err := lc.service.List(c.Request.Context())
	if err != nil {
		respondInternalError(c, err, "list loans")
		return
	}
	c.JSON(http.StatusOK, loans)
}

// ListActiveLoans handles GET /api/loans/active
func (lc *LoansController) ListActiveLoans(c *gin.Context) {
	loans, err := lc.service.ListActive(c.Request.Context())
	if err != nil {
		respondInternalError(c, err, "list active loans")
		return
	}
	c.JSON(http.StatusOK, loans)
}

// GetLoan handles GET /api/loans/:id
func (lc *LoansController) GetLoan(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	loan, err := lc.service.Get(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err, "get loan")
		return
	}
	c.JSON(http.StatusOK, loan)
}

// CreateLoan handles POST /api/loans. The response carries the joined user and book.
func (lc *LoansController) CreateLoan(c *gin.Context) {
	var in services.CreateLoanInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondBadRequest(c, "invalid request body: "+err.Error())
		return
	}
	loan, err := lc.service.Create(c.Request.Context(), in)
	if err != nil {
		respondErr(c, err, "create loan")
		return
	}
	respondCreated(c, loan)
}

// UpdateLoan handles PUT /api/loans/:id
func (lc *LoansController) UpdateLoan(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var in services.UpdateLoanInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondBadRequest(c, "invalid request body: "+err.Error())
		return
	}
	found, err := lc.service.Update(c.Request.Context(), id, in)
	if err != nil {
		respondErr(c, err, "update loan")
		return
	}
	if !found {
		respondNotFound(c, "loan")
		return
	}
	respondSuccess(c, "loan updated")
}

// ReturnLoan handles PUT /api/loans/:id/return
func (lc *LoansController) ReturnLoan(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	loan, err := lc.service.Return(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err, "return loan")
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "book returned", Data: loan})
}

// DeleteLoan handles DELETE /api/loans/:id
func (lc *LoansController) DeleteLoan(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := lc.service.Delete(c.Request.Context(), id); err != nil {
		respondErr(c, err, "delete loan")
		return
	}
	respondNoContent(c)
}
