package integration

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"hosted-payment-gateway/internal/adapter/bank"
	httpHandler "hosted-payment-gateway/internal/adapter/http/handler"
	redisStorage "hosted-payment-gateway/internal/adapter/storage/redis"
	"hosted-payment-gateway/internal/metrics"
	"hosted-payment-gateway/internal/service"
	"hosted-payment-gateway/pkg/clock"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testApp wires the full application stack: real services, the stub bank
// behind its circuit breaker, miniredis-backed stores and in-memory repos.
// Only PostgreSQL is replaced; everything above the repository interfaces is
// production code.

const (
	teamPassword = "integration-pw-1"
	adminToken   = "admin-secret"
	approvedPAN  = "4111111111111111"
	declinedPAN  = "4000000000000002"
)

type testApp struct {
	server   *httptest.Server
	redis    *miniredis.Miniredis
	tokenSvc *service.SHA256TokenService
	clock    *clock.Fake
	txRepo   *inMemoryTransactionRepo
	recorder *metrics.Recorder

	// Client that does not follow the form redirect.
	client *http.Client
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})

	replayStore := redisStorage.NewReplayStore(rdb)
	statusCache := redisStorage.NewStatusCache(rdb)

	encSvc, err := service.NewAESEncryptionService(
		hex.EncodeToString([]byte("0123456789abcdef0123456789abcdef")))
	require.NoError(t, err)
	hashSvc := service.NewArgon2HashService()
	tokenSvc := service.NewSHA256TokenService()
	sessionSvc := service.NewJWTSessionService("integration-session-secret", "hosted-payment-gateway")

	teamRepo := newInMemoryTeamRepo()
	paymentRepo := newInMemoryPaymentRepo()
	txRepo := newInMemoryTransactionRepo()
	auditRepo := newInMemoryAuditRepo()

	recorder := metrics.NewRecorder()
	clk := clock.NewFake(time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC))
	log := zerolog.Nop()

	auditSvc := service.NewAuditService(auditRepo, log)
	authSvc := service.NewAuthService(teamRepo, hashSvc, encSvc, tokenSvc, replayStore, recorder, clk,
		service.AuthServiceConfig{
			MaxFailedAttempts: 5,
			LockoutDuration:   15 * time.Minute,
			ReplayWindow:      10 * time.Minute,
			AdminToken:        adminToken,
		})

	bankAdapter := bank.NewBreaker(bank.NewStubBank(), recorder, log, bank.BreakerConfig{
		ConsecutiveFailures: 5,
		Timeout:             30 * time.Second,
		CallTimeout:         5 * time.Second,
	})

	paymentSvc := service.NewPaymentService(paymentRepo, txRepo, authSvc, bankAdapter, statusCache,
		auditSvc, recorder, clk, log, service.PaymentServiceConfig{
			DefaultExpiry:  30 * time.Minute,
			MinExpiry:      5 * time.Minute,
			MaxExpiry:      168 * time.Hour,
			MinAmount:      100,
			MaxAmount:      100_000_000,
			FormBaseURL:    "https://pay.test",
			IdempotencyTTL: 30 * time.Minute,
		})
	statusSvc := service.NewStatusService(paymentRepo, txRepo, authSvc, statusCache, recorder, clk, log,
		service.StatusServiceConfig{
			NonTerminalTTL: 30 * time.Second,
			TerminalTTL:    5 * time.Minute,
		})
	formSvc := service.NewFormService(paymentRepo, txRepo, sessionSvc, bankAdapter, statusCache,
		auditSvc, recorder, clk, log, service.FormServiceConfig{SessionTTL: 15 * time.Minute})
	teamSvc := service.NewTeamService(teamRepo, hashSvc, encSvc, auditSvc, clk, log,
		service.TeamServiceConfig{DefaultMinAmount: 100, DefaultMaxAmount: 100_000_000})

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		AuthSvc:    authSvc,
		PaymentSvc: paymentSvc,
		StatusSvc:  statusSvc,
		FormSvc:    formSvc,
		TeamSvc:    teamSvc,
		Metrics:    recorder,
		Logger:     log,
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &testApp{
		server:   server,
		redis:    mr,
		tokenSvc: tokenSvc,
		clock:    clk,
		txRepo:   txRepo,
		recorder: recorder,
		client: &http.Client{
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// --- helpers ---

func (a *testApp) postJSON(t *testing.T, path string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(a.server.URL+path, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func (a *testApp) registerTeam(t *testing.T, slug string) {
	t.Helper()
	code, body := a.postJSON(t, "/api/v1/teamregistration/register", map[string]interface{}{
		"TeamSlug": slug,
		"Password": teamPassword,
		"Name":     "Integration Shop",
	})
	require.Equal(t, http.StatusCreated, code, "register response: %v", body)
}

func (a *testApp) initToken(slug, orderID string, amount int64) string {
	return a.tokenSvc.Build(map[string]string{
		"Amount":   strconv.FormatInt(amount, 10),
		"Currency": "RUB",
		"OrderId":  orderID,
		"TeamSlug": slug,
	}, teamPassword)
}

func (a *testApp) opToken(slug, paymentID string) string {
	return a.tokenSvc.Build(map[string]string{
		"TeamSlug":  slug,
		"PaymentId": paymentID,
	}, teamPassword)
}

func (a *testApp) initPayment(t *testing.T, slug, orderID string, amount int64) string {
	t.Helper()
	code, body := a.postJSON(t, "/api/v1/paymentinit/init", map[string]interface{}{
		"TeamSlug": slug,
		"Token":    a.initToken(slug, orderID, amount),
		"Amount":   amount,
		"Currency": "RUB",
		"OrderId":  orderID,
	})
	require.Equal(t, http.StatusOK, code, "init response: %v", body)
	require.Equal(t, true, body["success"])
	paymentID := body["paymentId"].(string)
	require.True(t, strings.HasPrefix(paymentID, "pay_"))
	return paymentID
}

var sessionTokenRe = regexp.MustCompile(`name="SessionToken" value="([^"]+)"`)

// payCard walks the hosted form: render, extract the session token, submit.
// Returns the final status code and the Location header of the submit.
func (a *testApp) payCard(t *testing.T, paymentID, pan string) (int, string) {
	t.Helper()

	resp, err := http.Get(a.server.URL + "/api/v1/paymentform/render/" + paymentID)
	require.NoError(t, err)
	page, err := readBody(resp)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode, "render response: %s", page)

	m := sessionTokenRe.FindStringSubmatch(page)
	require.Len(t, m, 2, "form must carry a session token")

	form := url.Values{}
	form.Set("PaymentId", paymentID)
	form.Set("SessionToken", m[1])
	form.Set("PAN", pan)
	form.Set("Expiry", "12/30")
	form.Set("CVV", "123")

	submitResp, err := a.client.Post(a.server.URL+"/api/v1/paymentform/submit",
		"application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	require.NoError(t, err)
	submitResp.Body.Close()
	return submitResp.StatusCode, submitResp.Header.Get("Location")
}

func (a *testApp) confirm(t *testing.T, slug, paymentID string, data map[string]string) (int, map[string]interface{}) {
	t.Helper()
	req := map[string]interface{}{
		"TeamSlug":  slug,
		"Token":     a.opToken(slug, paymentID),
		"PaymentId": paymentID,
	}
	if data != nil {
		req["Data"] = data
	}
	return a.postJSON(t, "/api/v1/paymentconfirm/confirm", req)
}

func (a *testApp) cancel(t *testing.T, slug, paymentID string, data map[string]string) (int, map[string]interface{}) {
	t.Helper()
	req := map[string]interface{}{
		"TeamSlug":  slug,
		"Token":     a.opToken(slug, paymentID),
		"PaymentId": paymentID,
	}
	if data != nil {
		req["Data"] = data
	}
	return a.postJSON(t, "/api/v1/paymentcancel/cancel", req)
}

func (a *testApp) checkStatus(t *testing.T, slug, paymentID string, includeTx bool) map[string]interface{} {
	t.Helper()
	q := url.Values{}
	q.Set("TeamSlug", slug)
	q.Set("Token", a.opToken(slug, paymentID))
	q.Set("PaymentId", paymentID)
	if includeTx {
		q.Set("IncludeTransactions", "true")
	}
	resp, err := http.Get(a.server.URL + "/api/v1/paymentcheck/status?" + q.Encode())
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func readBody(resp *http.Response) (string, error) {
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, err := buf.ReadFrom(resp.Body)
	return buf.String(), err
}

func paymentStatus(t *testing.T, body map[string]interface{}) string {
	t.Helper()
	payments := body["payments"].([]interface{})
	require.NotEmpty(t, payments)
	return payments[0].(map[string]interface{})["status"].(string)
}

// --- tests ---

func TestIntegration_HealthCheck(t *testing.T) {
	app := newTestApp(t)

	resp, err := http.Get(app.server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])
}

func TestIntegration_RegisterDuplicateSlug(t *testing.T) {
	app := newTestApp(t)
	app.registerTeam(t, "dup-shop")

	code, body := app.postJSON(t, "/api/v1/teamregistration/register", map[string]interface{}{
		"TeamSlug": "dup-shop",
		"Password": teamPassword,
		"Name":     "Second",
	})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "2409", body["errorCode"])
}

func TestIntegration_FullPaymentLifecycle(t *testing.T) {
	app := newTestApp(t)
	app.registerTeam(t, "shop")

	paymentID := app.initPayment(t, "shop", "order-1", 50000)

	code, location := app.payCard(t, paymentID, approvedPAN)
	assert.Equal(t, http.StatusFound, code)
	assert.Equal(t, "/api/v1/paymentform/result/"+paymentID, location)

	confirmCode, confirmBody := app.confirm(t, "shop", paymentID, nil)
	require.Equal(t, http.StatusOK, confirmCode, "confirm response: %v", confirmBody)
	assert.Equal(t, "CONFIRMED", confirmBody["status"])

	status := app.checkStatus(t, "shop", paymentID, true)
	assert.Equal(t, "CONFIRMED", paymentStatus(t, status))

	txs := status["payments"].([]interface{})[0].(map[string]interface{})["transactions"].([]interface{})
	types := make(map[string]bool)
	for _, raw := range txs {
		types[raw.(map[string]interface{})["type"].(string)] = true
	}
	assert.True(t, types["AUTHORIZE"])
	assert.True(t, types["CAPTURE"])

	// The result page reflects the paid state.
	resp, err := http.Get(app.server.URL + "/api/v1/paymentform/result/" + paymentID)
	require.NoError(t, err)
	page, err := readBody(resp)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, page, "CONFIRMED")
}

func TestIntegration_InitRejectsBadToken(t *testing.T) {
	app := newTestApp(t)
	app.registerTeam(t, "shop")

	code, body := app.postJSON(t, "/api/v1/paymentinit/init", map[string]interface{}{
		"TeamSlug": "shop",
		"Token":    "deadbeef",
		"Amount":   50000,
		"Currency": "RUB",
		"OrderId":  "order-1",
	})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "1001", body["errorCode"])
}

func TestIntegration_InitReplayRejected(t *testing.T) {
	app := newTestApp(t)
	app.registerTeam(t, "shop")

	body := map[string]interface{}{
		"TeamSlug": "shop",
		"Token":    app.initToken("shop", "order-1", 50000),
		"Amount":   50000,
		"Currency": "RUB",
		"OrderId":  "order-1",
	}
	code, _ := app.postJSON(t, "/api/v1/paymentinit/init", body)
	require.Equal(t, http.StatusOK, code)

	// The identical signed payload inside the window is a replay.
	code, resp := app.postJSON(t, "/api/v1/paymentinit/init", body)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "1403", resp["errorCode"])
}

func TestIntegration_RepeatedOrderCreatesSeparatePayments(t *testing.T) {
	app := newTestApp(t)
	app.registerTeam(t, "shop")

	// The order id is the merchant's reference, not a uniqueness key: a
	// second init for the same order opens an independent payment.
	first := app.initPayment(t, "shop", "order-1", 50000)
	second := app.initPayment(t, "shop", "order-1", 60000)
	require.NotEqual(t, first, second)

	// A status query by order returns both attempts.
	q := url.Values{}
	q.Set("TeamSlug", "shop")
	q.Set("Token", app.tokenSvc.Build(map[string]string{
		"TeamSlug": "shop", "OrderId": "order-1",
	}, teamPassword))
	q.Set("OrderId", "order-1")
	resp, err := http.Get(app.server.URL + "/api/v1/paymentcheck/status?" + q.Encode())
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Len(t, out["payments"].([]interface{}), 2)
}

func TestIntegration_DeclinedCard(t *testing.T) {
	app := newTestApp(t)
	app.registerTeam(t, "shop")
	paymentID := app.initPayment(t, "shop", "order-1", 50000)

	code, _ := app.payCard(t, paymentID, declinedPAN)
	assert.Equal(t, http.StatusFound, code)

	status := app.checkStatus(t, "shop", paymentID, false)
	assert.Equal(t, "AUTH_FAIL", paymentStatus(t, status))
}

func TestIntegration_ConfirmIdempotentReplay(t *testing.T) {
	app := newTestApp(t)
	app.registerTeam(t, "shop")
	paymentID := app.initPayment(t, "shop", "order-1", 50000)
	app.payCard(t, paymentID, approvedPAN)

	data := map[string]string{"idempotencyKey": "confirm-once"}
	code, first := app.confirm(t, "shop", paymentID, data)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "CONFIRMED", first["status"])

	// The retry carries the same key and the same token; the cached body
	// comes back instead of a replay rejection, and the bank is not called.
	code, second := app.confirm(t, "shop", paymentID, data)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, app.txRepo.countByType(paymentID, "CAPTURE"))
}

func TestIntegration_CancelReversesAuthorizedPayment(t *testing.T) {
	app := newTestApp(t)
	app.registerTeam(t, "shop")
	paymentID := app.initPayment(t, "shop", "order-1", 50000)
	app.payCard(t, paymentID, approvedPAN)

	data := map[string]string{"externalRequestId": "cancel-once"}
	code, first := app.cancel(t, "shop", paymentID, data)
	require.Equal(t, http.StatusOK, code, "cancel response: %v", first)
	assert.Equal(t, "FULL_REVERSAL", first["operation"])
	assert.Equal(t, "CANCELLED", first["status"])

	code, second := app.cancel(t, "shop", paymentID, data)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, app.txRepo.countByType(paymentID, "REVERSE"))
}

func TestIntegration_RefundAfterConfirm(t *testing.T) {
	app := newTestApp(t)
	app.registerTeam(t, "shop")
	paymentID := app.initPayment(t, "shop", "order-1", 50000)
	app.payCard(t, paymentID, approvedPAN)
	code, _ := app.confirm(t, "shop", paymentID, nil)
	require.Equal(t, http.StatusOK, code)

	// The cancel token signs the same parameters as the confirm token, but
	// replay markers are scoped per operation, so this is not a replay.
	cancelCode, body := app.cancel(t, "shop", paymentID, nil)
	require.Equal(t, http.StatusOK, cancelCode, "cancel response: %v", body)
	assert.Equal(t, "FULL_REFUND", body["operation"])
	assert.Equal(t, "REFUNDED", body["status"])
	assert.Equal(t, 1, app.txRepo.countByType(paymentID, "REFUND"))
}

func TestIntegration_CancelRefundedPaymentRejected(t *testing.T) {
	app := newTestApp(t)
	app.registerTeam(t, "shop")
	paymentID := app.initPayment(t, "shop", "order-1", 50000)
	app.payCard(t, paymentID, approvedPAN)
	code, _ := app.confirm(t, "shop", paymentID, nil)
	require.Equal(t, http.StatusOK, code)
	code, body := app.cancel(t, "shop", paymentID, nil)
	require.Equal(t, http.StatusOK, code, "refund response: %v", body)

	// A second cancel with a fresh signature (the amount joins the token)
	// finds the payment already in its terminal state.
	token := app.tokenSvc.Build(map[string]string{
		"TeamSlug":  "shop",
		"PaymentId": paymentID,
		"Amount":    "50000",
	}, teamPassword)
	code, body = app.postJSON(t, "/api/v1/paymentcancel/cancel", map[string]interface{}{
		"TeamSlug":  "shop",
		"Token":     token,
		"PaymentId": paymentID,
		"Amount":    50000,
	})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "3409", body["errorCode"])
	assert.Equal(t, 1, app.txRepo.countByType(paymentID, "REFUND"))
}

func TestIntegration_CancelUnpaidPayment(t *testing.T) {
	app := newTestApp(t)
	app.registerTeam(t, "shop")
	paymentID := app.initPayment(t, "shop", "order-1", 50000)

	code, body := app.cancel(t, "shop", paymentID, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "FULL_CANCELLATION", body["operation"])
	assert.Equal(t, "CANCELLED", body["status"])
	// Nothing was authorized, so no bank transaction exists at all.
	txs, err := app.txRepo.ListByPaymentID(nil, paymentID)
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestIntegration_ExpiredPaymentCannotBePaid(t *testing.T) {
	app := newTestApp(t)
	app.registerTeam(t, "shop")
	paymentID := app.initPayment(t, "shop", "order-1", 50000)

	app.clock.Advance(31 * time.Minute)

	// The form link now lands on an informational status page instead of the
	// card form.
	resp, err := http.Get(app.server.URL + "/api/v1/paymentform/render/" + paymentID)
	require.NoError(t, err)
	page, err := readBody(resp)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, page, "EXPIRED")
	assert.NotContains(t, page, "SessionToken")

	status := app.checkStatus(t, "shop", paymentID, false)
	assert.Equal(t, "EXPIRED", paymentStatus(t, status))
}

func TestIntegration_LockoutAfterRepeatedBadTokens(t *testing.T) {
	app := newTestApp(t)
	app.registerTeam(t, "shop")

	for i := 0; i < 5; i++ {
		code, _ := app.postJSON(t, "/api/v1/paymentinit/init", map[string]interface{}{
			"TeamSlug": "shop",
			"Token":    fmt.Sprintf("bad-token-%d", i),
			"Amount":   50000,
			"Currency": "RUB",
			"OrderId":  "order-1",
		})
		require.Equal(t, http.StatusUnauthorized, code)
	}

	// Even a correct token is rejected while the lockout lasts.
	code, body := app.postJSON(t, "/api/v1/paymentinit/init", map[string]interface{}{
		"TeamSlug": "shop",
		"Token":    app.initToken("shop", "order-1", 50000),
		"Amount":   50000,
		"Currency": "RUB",
		"OrderId":  "order-1",
	})
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "1403", body["errorCode"])
}

func TestIntegration_TeamSelfService(t *testing.T) {
	app := newTestApp(t)
	app.registerTeam(t, "shop")

	req, _ := http.NewRequest(http.MethodGet, app.server.URL+"/api/v1/teams/me", nil)
	req.SetBasicAuth("shop", teamPassword)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	team := body["team"].(map[string]interface{})
	assert.Equal(t, "shop", team["slug"])

	// Wrong password is rejected.
	req2, _ := http.NewRequest(http.MethodGet, app.server.URL+"/api/v1/teams/me", nil)
	req2.SetBasicAuth("shop", "wrong-password")
	resp2, err := http.DefaultClient.Do(req2)
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp2.StatusCode)
}

func TestIntegration_AdminDeactivatesTeam(t *testing.T) {
	app := newTestApp(t)
	app.registerTeam(t, "shop")

	inactive := false
	raw, _ := json.Marshal(map[string]interface{}{"is_active": &inactive})
	req, _ := http.NewRequest(http.MethodPut, app.server.URL+"/api/v1/admin/teams/shop", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+adminToken)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// A deactivated team can no longer initialize payments.
	code, body := app.postJSON(t, "/api/v1/paymentinit/init", map[string]interface{}{
		"TeamSlug": "shop",
		"Token":    app.initToken("shop", "order-1", 50000),
		"Amount":   50000,
		"Currency": "RUB",
		"OrderId":  "order-1",
	})
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "1403", body["errorCode"])
}

func TestIntegration_StatusCacheServesSecondQuery(t *testing.T) {
	app := newTestApp(t)
	app.registerTeam(t, "shop")
	paymentID := app.initPayment(t, "shop", "order-1", 50000)

	before := app.recorder.Counter(metrics.PaymentCheckTotal, map[string]string{"source": "cache"})
	app.checkStatus(t, "shop", paymentID, false)
	app.checkStatus(t, "shop", paymentID, false)
	after := app.recorder.Counter(metrics.PaymentCheckTotal, map[string]string{"source": "cache"})

	assert.Equal(t, before+1, after, "second identical query must come from the cache")
}
