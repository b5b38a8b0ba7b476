package delivery

import (
	"strings"

	authdomain "investor-portal/internal/auth/domain"
	"investor-portal/internal/auth/usecase"
	"investor-portal/pkg/apperror"

	"github.com/gin-gonic/gin"
)

const principalKey = "principal"

func AuthMiddleware(authUsecase usecase.AuthUsecase) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			apperror.Respond(c, apperror.Unauthorized("Unauthorized"))
			return
		}

		principal, err := authUsecase.Authenticate(c.Request.Context(), token)
		if err != nil {
			apperror.Respond(c, err)
			return
		}

		c.Set(principalKey, principal)
		c.Next()
	}
}

// AdminMiddleware must run after AuthMiddleware.
func AdminMiddleware(authUsecase usecase.AuthUsecase) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal := PrincipalFromContext(c)
		if principal == nil {
			apperror.Respond(c, apperror.Unauthorized("Unauthorized"))
			return
		}
		isAdmin, err := authUsecase.IsAdmin(c.Request.Context(), principal.Email)
		if err != nil {
			apperror.Respond(c, err)
			return
		}
		if !isAdmin {
			apperror.Respond(c, apperror.Forbidden("Admin privileges required."))
			return
		}
		c.Next()
	}
}

func PrincipalFromContext(c *gin.Context) *authdomain.Principal {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil
	}
	p, _ := v.(*authdomain.Principal)
	return p
}

// SetPrincipal is used by tests and alternate auth front-ends.
func SetPrincipal(c *gin.Context, p *authdomain.Principal) {
	c.Set(principalKey, p)
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || scheme != "Bearer" {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
