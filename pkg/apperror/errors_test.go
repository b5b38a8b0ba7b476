package apperror

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{Validation("bad %s", "input"), http.StatusBadRequest},
		{Unauthorized("no token"), http.StatusUnauthorized},
		{Forbidden("not admin"), http.StatusForbidden},
		{NotFound("Domain not found."), http.StatusNotFound},
		{Conflict("Email already exists."), http.StatusConflict},
		{&RateLimitError{ResetAt: time.Now()}, http.StatusTooManyRequests},
		{Upstream("store down", errors.New("boom")), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
		{fmt.Errorf("wrapped: %w", Conflict("dup")), http.StatusConflict},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, HTTPStatus(tc.err), tc.err.Error())
	}
}

func TestUpstream_KeepsCause(t *testing.T) {
	cause := errors.New("deadline exceeded")
	err := Upstream("Failed to send update", cause)

	assert.ErrorIs(t, err, ErrUpstream)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "Failed to send update", Message(err))
}

func TestMessage_HidesForeignErrors(t *testing.T) {
	assert.Equal(t, "Internal server error.", Message(errors.New("rpc error: code = Unavailable")))
}

func TestRespond_RateLimitBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	reset := time.UnixMilli(1_700_000_000_000)
	Respond(c, &RateLimitError{Limit: 10, Remaining: 0, ResetAt: reset})

	require.Equal(t, http.StatusTooManyRequests, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "RateLimit", body["type"])
	assert.EqualValues(t, reset.UnixMilli(), body["resetAt"])
	assert.Equal(t, "10", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
}

func TestBindError(t *testing.T) {
	type payload struct {
		Type  string `binding:"required,oneof=email domain"`
		Value string `binding:"required"`
	}
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", nil)
	c.Request.Header.Set("Content-Type", "application/json")

	var p payload
	c.Request.Body = http.NoBody
	err := BindError(c.ShouldBindJSON(&p))

	assert.ErrorIs(t, err, ErrValidation)
}
