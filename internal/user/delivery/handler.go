package delivery

import (
	"net/http"

	"investor-portal/internal/user/usecase"
	"investor-portal/pkg/apperror"

	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	userUsecase usecase.UserUsecase
}

func NewUserHandler(userUsecase usecase.UserUsecase) *UserHandler {
	return &UserHandler{userUsecase: userUsecase}
}

// Unsubscribe is reached from an email link, so it answers in plain text.
func (h *UserHandler) Unsubscribe(c *gin.Context) {
	if err := h.userUsecase.Unsubscribe(c.Request.Context(), c.Query("token")); err != nil {
		c.String(apperror.HTTPStatus(err), apperror.Message(err))
		return
	}
	c.String(http.StatusOK, "You have been unsubscribed from investor updates.")
}
