package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	allowlistDelivery "investor-portal/internal/allowlist/delivery"
	allowlistRepo "investor-portal/internal/allowlist/repository"
	allowlistUsecase "investor-portal/internal/allowlist/usecase"
	"investor-portal/internal/auth/identity"
	authRepo "investor-portal/internal/auth/repository"
	authUsecase "investor-portal/internal/auth/usecase"
	ratelimitRepo "investor-portal/internal/ratelimit/repository"
	ratelimitUsecase "investor-portal/internal/ratelimit/usecase"
	seedDelivery "investor-portal/internal/seed/delivery"
	seedUsecase "investor-portal/internal/seed/usecase"
	updateDelivery "investor-portal/internal/update/delivery"
	updateRepo "investor-portal/internal/update/repository"
	updateUsecase "investor-portal/internal/update/usecase"
	userDelivery "investor-portal/internal/user/delivery"
	userRepo "investor-portal/internal/user/repository"
	userUsecase "investor-portal/internal/user/usecase"
	"investor-portal/pkg/config"
	"investor-portal/pkg/logger"
	"investor-portal/pkg/mailer"
	"investor-portal/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seedSecret = "s3cret"

type outbox struct {
	mu   sync.Mutex
	sent []*mailer.Message
}

func (o *outbox) Send(_ context.Context, msg *mailer.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, msg)
	return nil
}

func (o *outbox) recipients() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, 0, len(o.sent))
	for _, m := range o.sent {
		out = append(out, m.To)
	}
	return out
}

type portal struct {
	engine *gin.Engine
	tokens *identity.JWTProvider
	outbox *outbox
}

func newPortal(t *testing.T) *portal {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Environment:              config.EnvDevelopment,
		SiteURL:                  "https://ir.example.com",
		Brand:                    "GoAiMEX",
		EmailSubjectPrefix:       "GoAiMEX Update",
		UnsubscribeSecret:        "unsub",
		BroadcastRateLimitMax:    1,
		BroadcastRateLimitWindow: time.Hour,
		BroadcastBatchSize:       10,
		MailSendTimeout:          time.Second,
		MetricsUsername:          "prom",
		MetricsPassword:          "pw",
	}
	log := logger.Nop()

	users := userRepo.NewMemoryUserRepository()
	tokens := identity.NewJWTProvider("jwt-secret", "investor-portal", time.Hour, nil)
	auth := authUsecase.NewAuthUsecase(tokens, authRepo.NewMemoryAdminRepository())
	allowlist := allowlistUsecase.NewAllowlistUsecase(allowlistRepo.NewMemoryDomainRepository(), users, auth, log)
	unsubscribe := userUsecase.NewUserUsecase(users, cfg.UnsubscribeSecret, cfg.SiteURL, nil, log)

	box := &outbox{}
	updates := updateUsecase.NewUpdateUsecase(updateRepo.NewMemoryUpdateRepository(), allowlist, users, box, unsubscribe,
		updateUsecase.Config{SiteURL: cfg.SiteURL, SubjectPrefix: cfg.EmailSubjectPrefix, BatchSize: cfg.BroadcastBatchSize, SendTimeout: cfg.MailSendTimeout},
		nil, nil, log)
	seed := seedUsecase.NewSeedUsecase(auth, allowlist, "admin@company.com", log)

	h := NewHandler(Deps{
		Auth:      auth,
		Allowlist: allowlistDelivery.NewAllowlistHandler(allowlist),
		Users:     userDelivery.NewUserHandler(unsubscribe),
		Updates:   updateDelivery.NewUpdateHandler(updates, false),
		Seed:      seedDelivery.NewSeedHandler(seed, seedSecret),
		Limiter:   ratelimitUsecase.NewLimiter(ratelimitRepo.NewMemoryRateLimitRepository(), log),
		Metrics:   metrics.New(),
	}, cfg, log)

	return &portal{engine: h.Engine(), tokens: tokens, outbox: box}
}

func (p *portal) token(t *testing.T, uid, email string) string {
	t.Helper()
	tok, err := p.tokens.Issue(uid, email)
	require.NoError(t, err)
	return tok
}

func (p *portal) do(method, path, token string, body any, headers ...string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	p.engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	p := newPortal(t)

	w := p.do(http.MethodGet, "/api/health", "", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))
}

func TestMethodNotAllowed(t *testing.T) {
	p := newPortal(t)

	w := p.do(http.MethodGet, "/api/manage-allowlist", "", nil)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, "Method not allowed", decode(t, w)["error"])
}

func TestAdminRoutesRequireAuth(t *testing.T) {
	p := newPortal(t)

	w := p.do(http.MethodGet, "/api/get-allowlist", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = p.do(http.MethodGet, "/api/get-allowlist", p.token(t, "u1", "someone@fund.com"), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestSeedRequiresSecret(t *testing.T) {
	p := newPortal(t)

	w := p.do(http.MethodPost, "/api/seed-db", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = p.do(http.MethodPost, "/api/seed-db?secret="+seedSecret, "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMetricsBehindBasicAuth(t *testing.T) {
	p := newPortal(t)

	w := p.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.SetBasicAuth("prom", "pw")
	rec := httptest.NewRecorder()
	p.engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "rest_requests_processed_total")
}

func TestInvestorUpdateFlow(t *testing.T) {
	p := newPortal(t)

	w := p.do(http.MethodPost, "/api/seed-db", "", nil, "x-seed-secret", seedSecret)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	admin := p.token(t, "admin-uid", "admin@company.com")

	w = p.do(http.MethodPost, "/api/manage-allowlist", admin, map[string]string{"type": "domain", "value": "fund.com"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = p.do(http.MethodPost, "/api/manage-allowlist", admin, map[string]string{"type": "email", "value": "angel@gmail.com"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Domain approval lets a fund employee in; sign-in lists the address.
	w = p.do(http.MethodPost, "/api/check-allowlist", "", map[string]string{"email": "bob@fund.com"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["approved"])

	investor := p.token(t, "bob-uid", "bob@fund.com")
	w = p.do(http.MethodPost, "/api/create-user", investor, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = p.do(http.MethodPost, "/api/send-investor-update", investor, map[string]string{"title": "Q3", "content_md": "Quarterly numbers are in."})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = p.do(http.MethodPost, "/api/send-investor-update", admin, map[string]string{"title": "Q3", "content_md": "Quarterly numbers are in."})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, true, body["ok"])
	assert.EqualValues(t, 3, body["sent"])
	assert.ElementsMatch(t, []string{"admin@company.com", "angel@gmail.com", "bob@fund.com"}, p.outbox.recipients())
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Limit"))

	w = p.do(http.MethodPost, "/api/send-investor-update", admin, map[string]string{"title": "Q3 again", "content_md": "Quarterly numbers are in."})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "Too many update requests. Please try again later.", decode(t, w)["message"])

	w = p.do(http.MethodGet, "/api/updates", investor, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updates := decode(t, w)["updates"].([]any)
	require.Len(t, updates, 1)
	assert.Equal(t, "Q3", updates[0].(map[string]any)["title"])

	stranger := p.token(t, "eve-uid", "eve@elsewhere.com")
	w = p.do(http.MethodGet, "/api/updates", stranger, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
