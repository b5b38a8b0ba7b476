package apperror

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// Respond aborts the request with the JSON error body matching err.
func Respond(c *gin.Context, err error) {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		SetRateLimitHeaders(c, rl.Limit, rl.Remaining, rl.ResetAt.UnixMilli())
		c.AbortWithStatusJSON(HTTPStatus(err), gin.H{
			"error":   "Rate limit exceeded",
			"message": Message(err),
			"resetAt": rl.ResetAt.UnixMilli(),
			"type":    "RateLimit",
		})
		return
	}
	c.AbortWithStatusJSON(HTTPStatus(err), gin.H{"error": Message(err)})
}

// BindError converts a gin binding failure into a validation error.
func BindError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return Validation("%s", ValidatorErrorToUser(verrs))
	}
	return Validation("Invalid request body.")
}

func ValidatorErrorToUser(verrs validator.ValidationErrors) string {
	var messages []string
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			messages = append(messages, fmt.Sprintf("%s is required", field))
		case "email":
			messages = append(messages, fmt.Sprintf("%s is not a valid email", field))
		case "oneof":
			messages = append(messages, fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", ")))
		case "min":
			messages = append(messages, fmt.Sprintf("%s must be at least %s characters", field, fe.Param()))
		default:
			messages = append(messages, fmt.Sprintf("validation failed on field %s", field))
		}
	}
	return strings.Join(messages, ". ")
}

func SetRateLimitHeaders(c *gin.Context, limit, remaining int, resetAtMillis int64) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(resetAtMillis, 10))
}
