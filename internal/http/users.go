package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/lending/internal/services"
)

type UsersController struct {
	service UserService
}

func NewUsersController(service UserService) *UsersController {
	return &UsersController{service: service}
}

// ListUsers handles GET /api/users. Each user carries the book of its
// current open loan in libro_en_prestamo, or null.
func (uc *UsersController) ListUsers(c *gin.Context) {
	users, err := uc.service.List(c.Request.Context())
	if err != nil {
		respondInternalError(c, err, "list users")
		return
	}
	c.JSON(http.StatusOK, users)
}

func (uc *UsersController) GetUser(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	user, err := uc.service.Get(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err, "get user")
		return
	}
	c.JSON(http.StatusOK, user)
}

func (uc *UsersController) CreateUser(c *gin.Context) {
	var in services.CreateUserInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondBadRequest(c, "invalid request body: "+err.Error())
		return
	}
	user, err := uc.service.Create(c.Request.Context(), in)
	if err != nil {
		respondErr(c, err, "create user")
		return
	}
	respondCreated(c, user)
}

func (uc *UsersController) UpdateUser(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var in services.UpdateUserInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondBadRequest(c, "invalid request body: "+err.Error())
		return
	}
	found, err := uc.service.Update(c.Request.Context(), id, in)
	if err != nil {
		respondErr(c, err, "update user")
		return
	}
	if !found {
		respondNotFound(c, "user")
		return
	}
	respondSuccess(c, "user updated")
}

// DeleteUser handles DELETE /api/users/:id. Users with open loans are kept;
// their closed loans are removed along with them.
func (uc *UsersController) DeleteUser(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := uc.service.Delete(c.Request.Context(), id); err != nil {
		respondErr(c, err, "delete user")
		return
	}
	respondNoContent(c)
}
