package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/lending/internal/entities"
)

type AuditController struct {
	reader AuditReader
}

func NewAuditController(reader AuditReader) *AuditController {
	return &AuditController{reader: reader}
}

// GetAuditEvents returns paginated audit events, newest first.
// GET /api/audit?type=loan&limit=50&offset=0
func (ac *AuditController) GetAuditEvents(c *gin.Context) {
	limit, offset, ok := parsePagination(c)
	if !ok {
		return
	}

	eventType := entities.AuditEventType(c.Query("type"))
	if eventType != "" && !isKnownEventType(eventType) {
		respondBadRequest(c, "unknown event type: "+string(eventType))
		return
	}

	events, total, err := ac.reader.GetEvents(eventType, limit, offset)
	if err != nil {
		respondInternalError(c, err, "get audit events")
		return
	}
	c.JSON(http.StatusOK, newPaginatedResponse(events, total, limit, offset))
}

// GetLoanHistory returns the audit trail of one loan, newest first.
// GET /api/loans/:id/history
func (ac *AuditController) GetLoanHistory(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	limit, offset, ok := parsePagination(c)
	if !ok {
		return
	}

	events, total, err := ac.reader.LoanHistory(id, limit, offset)
	if err != nil {
		respondInternalError(c, err, "get loan history")
		return
	}
	c.JSON(http.StatusOK, newPaginatedResponse(events, total, limit, offset))
}

func isKnownEventType(t entities.AuditEventType) bool {
	switch t {
	case entities.AuditEventLoan, entities.AuditEventBook, entities.AuditEventUser, entities.AuditEventAvailability:
		return true
	}
	return false
}
