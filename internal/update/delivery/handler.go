package delivery

import (
	"errors"
	"net/http"
	"strconv"

	"investor-portal/internal/update/dto"
	"investor-portal/internal/update/usecase"
	"investor-portal/pkg/apperror"

	"github.com/gin-gonic/gin"
)

type UpdateHandler struct {
	updateUsecase usecase.UpdateUsecase
	// Per-recipient failure reasons are hidden in production.
	production bool
}

func NewUpdateHandler(updateUsecase usecase.UpdateUsecase, production bool) *UpdateHandler {
	return &UpdateHandler{updateUsecase: updateUsecase, production: production}
}

func (h *UpdateHandler) SendUpdate(c *gin.Context) {
	var req dto.SendUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperror.Respond(c, apperror.Validation("Title and content required."))
		return
	}

	res, err := h.updateUsecase.SendUpdate(c.Request.Context(), req.Title, req.ContentMD)
	if errors.Is(err, usecase.ErrDeliveryFailed) {
		body := dto.SendUpdateFailure{
			Error:   "Failed to send update",
			Type:    "Network",
			Message: "All emails failed to send. Please check your email configuration and try again.",
			Failed:  res.Failed,
		}
		if !h.production {
			body.Details = res.FailedRecipients
		}
		c.JSON(http.StatusInternalServerError, body)
		return
	}
	if err != nil {
		apperror.Respond(c, err)
		return
	}

	if h.production {
		for i := range res.FailedRecipients {
			res.FailedRecipients[i].Error = ""
		}
	}

	status := http.StatusOK
	if res.Failed > 0 {
		status = http.StatusMultiStatus
	}
	c.JSON(status, res)
}

func (h *UpdateHandler) ListUpdates(c *gin.Context) {
	limit := usecase.DefaultListLimit
	if limitStr := c.Query("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	updates, err := h.updateUsecase.ListRecent(c.Request.Context(), limit)
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.UpdatesResponse{Updates: updates})
}
