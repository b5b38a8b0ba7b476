package delivery

import (
	"crypto/subtle"
	"net/http"

	"investor-portal/internal/seed/usecase"
	"investor-portal/pkg/apperror"

	"github.com/gin-gonic/gin"
)

type SeedHandler struct {
	seedUsecase *usecase.SeedUsecase
	secret      string
}

// NewSeedHandler disables seeding when secret is empty.
func NewSeedHandler(seedUsecase *usecase.SeedUsecase, secret string) *SeedHandler {
	return &SeedHandler{seedUsecase: seedUsecase, secret: secret}
}

func (h *SeedHandler) Seed(c *gin.Context) {
	provided := c.GetHeader("x-seed-secret")
	if provided == "" {
		provided = c.Query("secret")
	}
	if h.secret == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(h.secret)) != 1 {
		apperror.Respond(c, apperror.Unauthorized("Unauthorized. Provide valid x-seed-secret header or secret query param."))
		return
	}

	res, err := h.seedUsecase.Seed(c.Request.Context())
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Database seeded successfully (idempotent - duplicates skipped)",
		"data":    res,
	})
}
