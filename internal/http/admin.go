package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/lending/internal/audit"
	"github.com/mrlokans/lending/internal/database/loans"
	"github.com/mrlokans/lending/internal/tasks"
)

// AvailabilityReport is the outcome of an availability check or repair.
// Consistent is false while any drift entry remains unresolved, including
// books with several open loans that no repair can fix.
type AvailabilityReport struct {
	Consistent    bool          `json:"consistent"`
	Repaired      bool          `json:"repaired"`
	RepairedBooks int           `json:"repaired_books"`
	Drift         []loans.Drift `json:"drift"`
}

// AdminController exposes availability reconciliation.
type AdminController struct {
	checker AvailabilityChecker
	queue   TaskQueue
}

// NewAdminController creates a new AdminController. queue may be nil, in
// which case reconciliation runs inside the request.
func NewAdminController(checker AvailabilityChecker, queue TaskQueue) *AdminController {
	return &AdminController{checker: checker, queue: queue}
}

// CheckAvailability handles GET /api/admin/availability
// Reports books whose availability flag disagrees with their open loans.
func (ac *AdminController) CheckAvailability(c *gin.Context) {
	drift, err := ac.checker.CheckAvailability(c.Request.Context())
	if err != nil {
		respondInternalError(c, err, "check availability")
		return
	}
	c.JSON(http.StatusOK, newAvailabilityReport(drift))
}

// Reconcile handles POST /api/admin/availability/reconcile?repair=true
// With a task queue the run is enqueued and 202 is returned with the task ID.
func (ac *AdminController) Reconcile(c *gin.Context) {
	repair := parseBoolQuery(c, "repair")

	if ac.queue != nil {
		taskID, err := ac.queue.Enqueue(tasks.ReconcileAvailabilityTask{
			Repair:    repair,
			RequestID: audit.RequestID(c.Request.Context()),
		})
		if err != nil {
			respondInternalError(c, err, "enqueue reconcile")
			return
		}
		respondAccepted(c, "reconciliation enqueued", gin.H{
			"task_id": taskID,
			"repair":  repair,
		})
		return
	}

	drift, err := tasks.Reconcile(c.Request.Context(), ac.checker, repair)
	if err != nil {
		respondInternalError(c, err, "reconcile availability")
		return
	}
	c.JSON(http.StatusOK, newAvailabilityReport(drift))
}

func newAvailabilityReport(drift []loans.Drift) AvailabilityReport {
	if drift == nil {
		drift = []loans.Drift{}
	}
	repaired := loans.CountRepaired(drift)
	return AvailabilityReport{
		Consistent:    len(loans.Unresolved(drift)) == 0,
		Repaired:      repaired > 0,
		RepairedBooks: repaired,
		Drift:         drift,
	}
}
