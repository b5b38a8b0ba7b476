package delivery

import (
	"net/http"

	"investor-portal/internal/allowlist/dto"
	"investor-portal/internal/allowlist/usecase"
	authdelivery "investor-portal/internal/auth/delivery"
	"investor-portal/pkg/apperror"

	"github.com/gin-gonic/gin"
)

type AllowlistHandler struct {
	allowlistUsecase usecase.AllowlistUsecase
}

func NewAllowlistHandler(allowlistUsecase usecase.AllowlistUsecase) *AllowlistHandler {
	return &AllowlistHandler{
		allowlistUsecase: allowlistUsecase,
	}
}

// CheckAllowlist is public. The response never explains a denial.
func (h *AllowlistHandler) CheckAllowlist(c *gin.Context) {
	var req dto.CheckAllowlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperror.Respond(c, apperror.Validation("Valid email required."))
		return
	}

	res, err := h.allowlistUsecase.Check(c.Request.Context(), req.Email)
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// CreateUser syncs the signed-in principal's profile.
func (h *AllowlistHandler) CreateUser(c *gin.Context) {
	principal := authdelivery.PrincipalFromContext(c)
	if principal == nil {
		apperror.Respond(c, apperror.Unauthorized("Unauthorized"))
		return
	}

	if _, err := h.allowlistUsecase.SyncOnLogin(c.Request.Context(), principal.UID, principal.Email); err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.CreateUserResponse{OK: true})
}

func (h *AllowlistHandler) GetAllowlist(c *gin.Context) {
	domains, err := h.allowlistUsecase.List(c.Request.Context())
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.AllowlistResponse{Domains: domains})
}

func (h *AllowlistHandler) AddEntry(c *gin.Context) {
	req, ok := bindManage(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	var (
		err     error
		message string
	)
	switch req.Type {
	case dto.EntryEmail:
		err = h.allowlistUsecase.AddEmail(ctx, req.Value)
		message = "Email added and subscribed."
	case dto.EntryDomain:
		err = h.allowlistUsecase.AddDomain(ctx, req.Value)
		message = "Domain added."
	}
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ManageAllowlistResponse{Success: true, Message: message})
}

func (h *AllowlistHandler) RemoveEntry(c *gin.Context) {
	req, ok := bindManage(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	var (
		err     error
		message string
	)
	switch req.Type {
	case dto.EntryEmail:
		var domainDeleted bool
		domainDeleted, err = h.allowlistUsecase.RemoveEmail(ctx, req.Value)
		message = "Email removed."
		if domainDeleted {
			message = "Email removed. Domain deleted as it had no remaining emails."
		}
	case dto.EntryDomain:
		err = h.allowlistUsecase.RemoveDomain(ctx, req.Value)
		message = "Domain removed."
	}
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ManageAllowlistResponse{Success: true, Message: message})
}

// RequireApproved gates visitor content. Must run after AuthMiddleware.
func (h *AllowlistHandler) RequireApproved() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal := authdelivery.PrincipalFromContext(c)
		if principal == nil {
			apperror.Respond(c, apperror.Unauthorized("Unauthorized"))
			return
		}
		approved, err := h.allowlistUsecase.IsApproved(c.Request.Context(), principal.Email)
		if err != nil {
			apperror.Respond(c, apperror.Upstream("Failed to verify allowlist.", err))
			return
		}
		if !approved {
			apperror.Respond(c, apperror.Forbidden("Your email is not approved for investor access."))
			return
		}
		c.Next()
	}
}

func bindManage(c *gin.Context) (*dto.ManageAllowlistRequest, bool) {
	var req dto.ManageAllowlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperror.Respond(c, apperror.Validation("Type and value required."))
		return nil, false
	}
	if req.Type != dto.EntryEmail && req.Type != dto.EntryDomain {
		apperror.Respond(c, apperror.Validation("Type must be 'email' or 'domain'."))
		return nil, false
	}
	return &req, true
}
