package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	updatedomain "investor-portal/internal/update/domain"
	"investor-portal/internal/update/dto"
	"investor-portal/internal/update/usecase"
	"investor-portal/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubUsecase struct {
	res   *dto.SendUpdateResponse
	err   error
	limit int
}

func (s *stubUsecase) SendUpdate(context.Context, string, string) (*dto.SendUpdateResponse, error) {
	return s.res, s.err
}

func (s *stubUsecase) ListRecent(_ context.Context, limit int) ([]*updatedomain.Update, error) {
	s.limit = limit
	return []*updatedomain.Update{{ID: "u1", Title: "Q3"}}, nil
}

func serve(h *UpdateHandler, method, path string, body any) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/send", h.SendUpdate)
	r.GET("/updates", h.ListUpdates)

	var buf bytes.Buffer
	_ = json.NewEncoder(&buf).Encode(body)
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSendUpdate_StatusMapping(t *testing.T) {
	failed := []dto.FailedRecipient{{Email: "a@x.com", Error: "mailbox unavailable"}}

	t.Run("full success", func(t *testing.T) {
		h := NewUpdateHandler(&stubUsecase{res: &dto.SendUpdateResponse{OK: true, Recipients: 2, Sent: 2}}, false)
		w := serve(h, http.MethodPost, "/send", gin.H{"title": "Q3", "content_md": "long enough content here"})
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("partial", func(t *testing.T) {
		res := &dto.SendUpdateResponse{OK: true, Recipients: 2, Sent: 1, Failed: 1, FailedRecipients: failed}
		h := NewUpdateHandler(&stubUsecase{res: res}, true)
		w := serve(h, http.MethodPost, "/send", gin.H{"title": "Q3", "content_md": "long enough content here"})
		assert.Equal(t, http.StatusMultiStatus, w.Code)
		assert.Contains(t, w.Body.String(), `"failedRecipients":[{"email":"a@x.com"}]`)
	})

	t.Run("total failure", func(t *testing.T) {
		res := &dto.SendUpdateResponse{Recipients: 1, Failed: 1, FailedRecipients: []dto.FailedRecipient{{Email: "a@x.com", Error: "boom"}}}
		h := NewUpdateHandler(&stubUsecase{res: res, err: usecase.ErrDeliveryFailed}, false)
		w := serve(h, http.MethodPost, "/send", gin.H{"title": "Q3", "content_md": "long enough content here"})
		require.Equal(t, http.StatusInternalServerError, w.Code)
		var body dto.SendUpdateFailure
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "Failed to send update", body.Error)
		assert.Equal(t, "Network", body.Type)
		assert.Equal(t, 1, body.Failed)
		assert.Zero(t, body.Sent)
		assert.Len(t, body.Details, 1)
	})

	t.Run("validation", func(t *testing.T) {
		h := NewUpdateHandler(&stubUsecase{err: apperror.Validation("Title and content required.")}, false)
		w := serve(h, http.MethodPost, "/send", gin.H{"title": ""})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestListUpdates_Limit(t *testing.T) {
	stub := &stubUsecase{}
	h := NewUpdateHandler(stub, false)

	w := serve(h, http.MethodGet, "/updates?limit=12", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 12, stub.limit)

	serve(h, http.MethodGet, "/updates?limit=abc", nil)
	assert.Equal(t, usecase.DefaultListLimit, stub.limit)
}
