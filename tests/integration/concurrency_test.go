package integration

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestConcurrentConfirms verifies that racing confirm calls capture exactly
// once. The optimistic version claim admits one caller to the bank; the
// bank's own double-capture decline backs it up.
func TestConcurrentConfirms(t *testing.T) {
	app := newTestApp(t)
	app.registerTeam(t, "shop")
	paymentID := app.initPayment(t, "shop", "order-1", 50000)
	code, _ := app.payCard(t, paymentID, approvedPAN)
	require.Equal(t, http.StatusFound, code)

	concurrency := 20
	var wg sync.WaitGroup
	var success, failed atomic.Int64

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			// Distinct idempotency keys so nobody short-circuits through
			// the response cache; the race is on the payment itself.
			c, _ := app.confirm(t, "shop", paymentID, map[string]string{
				"idempotencyKey": fmt.Sprintf("race-%d", idx),
			})
			if c == http.StatusOK {
				success.Add(1)
			} else {
				failed.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(concurrency), success.Load()+failed.Load())
	assert.Equal(t, int64(1), success.Load(), "exactly one confirm may win")
	assert.Equal(t, 1, app.txRepo.countByType(paymentID, "CAPTURE"), "the bank must be charged once")

	status := app.checkStatus(t, "shop", paymentID, false)
	assert.Equal(t, "CONFIRMED", paymentStatus(t, status))
}

// TestConcurrentFormSubmits verifies that double-clicking the pay button
// authorizes the card exactly once.
func TestConcurrentFormSubmits(t *testing.T) {
	app := newTestApp(t)
	app.registerTeam(t, "shop")
	paymentID := app.initPayment(t, "shop", "order-1", 50000)

	resp, err := http.Get(app.server.URL + "/api/v1/paymentform/render/" + paymentID)
	require.NoError(t, err)
	page, err := readBody(resp)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	m := sessionTokenRe.FindStringSubmatch(page)
	require.Len(t, m, 2)

	form := url.Values{}
	form.Set("PaymentId", paymentID)
	form.Set("SessionToken", m[1])
	form.Set("PAN", approvedPAN)
	form.Set("Expiry", "12/30")
	form.Set("CVV", "123")
	body := form.Encode()

	concurrency := 10
	var wg sync.WaitGroup
	var redirected atomic.Int64

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := app.client.Post(app.server.URL+"/api/v1/paymentform/submit",
				"application/x-www-form-urlencoded", strings.NewReader(body))
			if err != nil {
				return
			}
			r.Body.Close()
			if r.StatusCode == http.StatusFound {
				redirected.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), redirected.Load(), "exactly one submit may reach the bank")
	assert.Equal(t, 1, app.txRepo.countByType(paymentID, "AUTHORIZE"))

	status := app.checkStatus(t, "shop", paymentID, false)
	assert.Equal(t, "AUTHORIZED", paymentStatus(t, status))
}

// TestConcurrentCancels verifies that racing cancels with one external
// request id reverse the authorization exactly once, and that a later retry
// is served from the idempotency cache.
func TestConcurrentCancels(t *testing.T) {
	app := newTestApp(t)
	app.registerTeam(t, "shop")
	paymentID := app.initPayment(t, "shop", "order-1", 50000)
	code, _ := app.payCard(t, paymentID, approvedPAN)
	require.Equal(t, http.StatusFound, code)

	data := map[string]string{"externalRequestId": "race-cancel"}
	concurrency := 10
	var wg sync.WaitGroup
	var success atomic.Int64

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, _ := app.cancel(t, "shop", paymentID, data)
			if c == http.StatusOK {
				success.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.GreaterOrEqual(t, success.Load(), int64(1))
	assert.Equal(t, 1, app.txRepo.countByType(paymentID, "REVERSE"), "the hold is released once")

	// The retry after the dust settles returns the cached response.
	c, body := app.cancel(t, "shop", paymentID, data)
	require.Equal(t, http.StatusOK, c)
	assert.Equal(t, "FULL_REVERSAL", body["operation"])
	assert.Equal(t, "CANCELLED", body["status"])

	status := app.checkStatus(t, "shop", paymentID, false)
	assert.Equal(t, "CANCELLED", paymentStatus(t, status))
}
