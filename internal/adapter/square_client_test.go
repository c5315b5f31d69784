package adapter

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/live-vibe/internal/config"
	apperrors "github.com/live-vibe/internal/errors"
)

func newTestSquare(t *testing.T, handler http.HandlerFunc) *SquareClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := newSquareClient(&config.SquareConfig{
		BaseURL:     srv.URL,
		AccessToken: "sq-token",
		LocationID:  "LOC1",
		APIVersion:  "2023-10-18",
		Currency:    "USD",
		Timeout:     time.Second,
	}, nil)
	fastRetry(c.p)
	return c
}

func TestSquareClient_CreatePayment(t *testing.T) {
	c := newTestSquare(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v2/payments", r.URL.Path)
		assert.Equal(t, "Bearer sq-token", r.Header.Get("Authorization"))
		assert.Equal(t, "2023-10-18", r.Header.Get("Square-Version"))

		body := decodeBody(t, r)
		assert.Equal(t, "cnon:card-nonce-ok", body["source_id"])
		assert.Equal(t, "LOC1", body["location_id"])
		assert.Equal(t, true, body["autocomplete"])
		assert.NotEmpty(t, body["idempotency_key"])
		money := body["amount_money"].(map[string]interface{})
		assert.Equal(t, float64(55000), money["amount"])
		assert.Equal(t, "USD", money["currency"])

		w.Write([]byte(`{"payment":{"id":"pay_1","status":"COMPLETED","amount_money":{"amount":55000,"currency":"USD"},"receipt_url":"https://squareup.com/receipt/pay_1"}}`))
	})

	payment, err := c.CreatePayment(testCtx(t), PaymentRequest{SourceID: "cnon:card-nonce-ok", AmountCents: 55000})
	require.NoError(t, err)
	assert.Equal(t, "pay_1", payment.ID)
	assert.Equal(t, "COMPLETED", payment.Status)
	assert.Equal(t, int64(55000), payment.AmountMoney.Amount)
	assert.Equal(t, "https://squareup.com/receipt/pay_1", payment.ReceiptURL)
}

func TestSquareClient_CreatePaymentKeepsIdempotencyKeyAcrossRetries(t *testing.T) {
	var keys []string
	c := newTestSquare(t, func(w http.ResponseWriter, r *http.Request) {
		keys = append(keys, decodeBody(t, r)["idempotency_key"].(string))
		if len(keys) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"payment":{"id":"pay_2","status":"COMPLETED"}}`))
	})

	_, err := c.CreatePayment(testCtx(t), PaymentRequest{SourceID: "cnon:ok", AmountCents: 100})
	require.NoError(t, err)
	require.Len(t, keys, 2)
	assert.Equal(t, keys[0], keys[1])
}

func TestSquareClient_CreatePaymentDeclined(t *testing.T) {
	c := newTestSquare(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		w.Write([]byte(`{"errors":[{"category":"PAYMENT_METHOD_ERROR","code":"CARD_DECLINED","detail":"Authorization error: 'CARD_DECLINED'"}]}`))
	})

	_, err := c.CreatePayment(testCtx(t), PaymentRequest{SourceID: "cnon:declined", AmountCents: 100})
	require.Error(t, err)
	cat := apperrors.Categorize(err)
	assert.Equal(t, apperrors.CategoryProvider, cat.Category)
	assert.Equal(t, "Authorization error: 'CARD_DECLINED'", cat.Message)
}

func TestSquareClient_CreatePaymentFallbackMessage(t *testing.T) {
	c := newTestSquare(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})

	_, err := c.CreatePayment(testCtx(t), PaymentRequest{SourceID: "cnon:x", AmountCents: 100})
	require.Error(t, err)
	assert.Equal(t, "Payment failed", apperrors.Categorize(err).Message)
}

func TestSquareClient_CreatePaymentValidation(t *testing.T) {
	c := newTestSquare(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("request should not be sent")
	})

	_, err := c.CreatePayment(testCtx(t), PaymentRequest{AmountCents: 100})
	assert.Error(t, err)
	_, err = c.CreatePayment(testCtx(t), PaymentRequest{SourceID: "cnon:x"})
	assert.Error(t, err)
}

func TestSquareClient_CreateCustomerAndSubscription(t *testing.T) {
	c := newTestSquare(t, func(w http.ResponseWriter, r *http.Request) {
		body := decodeBody(t, r)
		assert.NotEmpty(t, body["idempotency_key"])
		switch r.URL.Path {
		case "/v2/customers":
			assert.Equal(t, "dj@example.com", body["email_address"])
			w.Write([]byte(`{"customer":{"id":"cust_1","email_address":"dj@example.com"}}`))
		case "/v2/subscriptions":
			assert.Equal(t, "LOC1", body["location_id"])
			assert.Equal(t, "cust_1", body["customer_id"])
			w.Write([]byte(`{"subscription":{"id":"sub_1","status":"ACTIVE","plan_id":"plan_pro","customer_id":"cust_1"}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	cust, err := c.CreateCustomer(testCtx(t), CustomerRequest{EmailAddress: "dj@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "cust_1", cust.ID)

	sub, err := c.CreateSubscription(testCtx(t), SubscriptionRequest{PlanID: "plan_pro", CustomerID: cust.ID, CardID: "ccof_1"})
	require.NoError(t, err)
	assert.Equal(t, "ACTIVE", sub.Status)

	_, err = c.CreateSubscription(testCtx(t), SubscriptionRequest{PlanID: "plan_pro"})
	assert.Error(t, err)
}

func TestSquareClient_CreateCard(t *testing.T) {
	c := newTestSquare(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/cards", r.URL.Path)
		body := decodeBody(t, r)
		assert.NotEmpty(t, body["idempotency_key"])
		assert.Equal(t, "cnon:card-ok", body["source_id"])
		assert.Equal(t, map[string]interface{}{"customer_id": "cust_1"}, body["card"])
		w.Write([]byte(`{"card":{"id":"ccof_1","card_brand":"VISA","last_4":"1111","customer_id":"cust_1"}}`))
	})

	card, err := c.CreateCard(testCtx(t), CardRequest{SourceID: "cnon:card-ok", CustomerID: "cust_1"})
	require.NoError(t, err)
	assert.Equal(t, "ccof_1", card.ID)
	assert.Equal(t, "1111", card.Last4)

	_, err = c.CreateCard(testCtx(t), CardRequest{SourceID: "cnon:card-ok"})
	assert.Error(t, err)
}

func TestSquareClient_CancelSubscription(t *testing.T) {
	c := newTestSquare(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		if r.URL.Path != "/v2/subscriptions/sub_1/cancel" {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"errors":[{"code":"NOT_FOUND","detail":"Subscription not found"}]}`))
			return
		}
		w.Write([]byte(`{"subscription":{"id":"sub_1","status":"ACTIVE","canceled_date":"2026-11-17"}}`))
	})

	sub, err := c.CancelSubscription(testCtx(t), "sub_1")
	require.NoError(t, err)
	assert.Equal(t, "sub_1", sub.ID)

	_, err = c.CancelSubscription(testCtx(t), "sub_missing")
	require.Error(t, err)
	assert.Equal(t, "Subscription not found", apperrors.Categorize(err).Message)

	_, err = c.CancelSubscription(testCtx(t), "")
	assert.Error(t, err)
}
