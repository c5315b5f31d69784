package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/google/uuid"

	"github.com/live-vibe/internal/circuitbreaker"
	"github.com/live-vibe/internal/config"
	apperrors "github.com/live-vibe/internal/errors"
)

const squareProvider = "square"

// squareErrorPaths locate the message in Square's error envelope {"errors":[{"detail": ...}]}
var squareErrorPaths = []string{"errors.0.detail", "errors.0.code"}

// SquareClient calls the Square Payments, Customers and Subscriptions APIs
type SquareClient struct {
	p           *httpProvider
	accessToken string
	locationID  string
	apiVersion  string
	currency    string
}

// NewSquareClient creates a Square client for the configured environment
func NewSquareClient(cfg *config.SquareConfig) *SquareClient {
	return newSquareClient(cfg, nil)
}

func newSquareClient(cfg *config.SquareConfig, transport http.RoundTripper) *SquareClient {
	return &SquareClient{
		p:           newHTTPProvider(squareProvider, cfg.BaseURL, cfg.Timeout, transport),
		accessToken: cfg.AccessToken,
		locationID:  cfg.LocationID,
		apiVersion:  cfg.APIVersion,
		currency:    cfg.Currency,
	}
}

// Money is an amount in the smallest currency unit
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// PaymentRequest is a one-time card charge
type PaymentRequest struct {
	SourceID       string // card nonce from the Web Payments SDK
	IdempotencyKey string // generated when empty
	AmountCents    int64
	Currency       string // defaults to the configured currency
	CustomerID     string
	ReferenceID    string
	Note           string
	BuyerEmail     string
}

// Payment is the subset of Square's payment object the service stores
type Payment struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	AmountMoney   Money  `json:"amount_money"`
	SourceType    string `json:"source_type"`
	ReceiptNumber string `json:"receipt_number"`
	ReceiptURL    string `json:"receipt_url"`
	CardDetails   *struct {
		Status string `json:"status"`
		Card   struct {
			CardBrand string `json:"card_brand"`
			Last4     string `json:"last_4"`
		} `json:"card"`
	} `json:"card_details,omitempty"`
	CreatedAt string `json:"created_at"`
}

type createPaymentBody struct {
	SourceID          string `json:"source_id"`
	IdempotencyKey    string `json:"idempotency_key"`
	AmountMoney       Money  `json:"amount_money"`
	LocationID        string `json:"location_id,omitempty"`
	CustomerID        string `json:"customer_id,omitempty"`
	ReferenceID       string `json:"reference_id,omitempty"`
	Note              string `json:"note,omitempty"`
	BuyerEmailAddress string `json:"buyer_email_address,omitempty"`
	Autocomplete      bool   `json:"autocomplete"`
}

// CreatePayment charges a card. The idempotency key is fixed before the
// first attempt so retries cannot double-charge.
func (c *SquareClient) CreatePayment(ctx context.Context, req PaymentRequest) (*Payment, error) {
	if req.SourceID == "" {
		return nil, apperrors.NewInvalidParameterError("sourceId", "payment source is required")
	}
	if req.AmountCents <= 0 {
		return nil, apperrors.NewInvalidParameterError("amount", "must be greater than zero")
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = uuid.NewString()
	}
	if req.Currency == "" {
		req.Currency = c.currency
	}

	body, err := c.p.do(ctx, call{
		op:     "create_payment",
		method: http.MethodPost,
		path:   "/v2/payments",
		header: c.headers(),
		body: createPaymentBody{
			SourceID:          req.SourceID,
			IdempotencyKey:    req.IdempotencyKey,
			AmountMoney:       Money{Amount: req.AmountCents, Currency: req.Currency},
			LocationID:        c.locationID,
			CustomerID:        req.CustomerID,
			ReferenceID:       req.ReferenceID,
			Note:              req.Note,
			BuyerEmailAddress: req.BuyerEmail,
			Autocomplete:      true,
		},
		fallback:    "Payment failed",
		detailPaths: squareErrorPaths,
	})
	if err != nil {
		return nil, err
	}

	var resp struct {
		Payment Payment `json:"payment"`
	}
	if err := decodeSquare(body, &resp); err != nil {
		return nil, err
	}
	return &resp.Payment, nil
}

// CustomerRequest creates a Square customer
type CustomerRequest struct {
	GivenName    string `json:"given_name,omitempty"`
	FamilyName   string `json:"family_name,omitempty"`
	EmailAddress string `json:"email_address,omitempty"`
	PhoneNumber  string `json:"phone_number,omitempty"`
	ReferenceID  string `json:"reference_id,omitempty"`
}

// Customer is a Square customer
type Customer struct {
	ID           string `json:"id"`
	GivenName    string `json:"given_name"`
	FamilyName   string `json:"family_name"`
	EmailAddress string `json:"email_address"`
	ReferenceID  string `json:"reference_id"`
}

// CreateCustomer registers a customer for recurring billing
func (c *SquareClient) CreateCustomer(ctx context.Context, req CustomerRequest) (*Customer, error) {
	payload := struct {
		IdempotencyKey string `json:"idempotency_key"`
		CustomerRequest
	}{uuid.NewString(), req}

	body, err := c.p.do(ctx, call{
		op:          "create_customer",
		method:      http.MethodPost,
		path:        "/v2/customers",
		header:      c.headers(),
		body:        payload,
		fallback:    "Customer creation failed",
		detailPaths: squareErrorPaths,
	})
	if err != nil {
		return nil, err
	}

	var resp struct {
		Customer Customer `json:"customer"`
	}
	if err := decodeSquare(body, &resp); err != nil {
		return nil, err
	}
	return &resp.Customer, nil
}

// CardRequest stores a tokenized card on a customer
type CardRequest struct {
	SourceID   string // card nonce from the Web Payments SDK
	CustomerID string
}

// Card is a card on file
type Card struct {
	ID         string `json:"id"`
	CardBrand  string `json:"card_brand"`
	Last4      string `json:"last_4"`
	CustomerID string `json:"customer_id"`
}

// CreateCard saves a card on file so it can be charged again by a subscription
func (c *SquareClient) CreateCard(ctx context.Context, req CardRequest) (*Card, error) {
	if req.SourceID == "" || req.CustomerID == "" {
		return nil, apperrors.NewInvalidParameterError("card", "source and customer are required")
	}
	payload := struct {
		IdempotencyKey string `json:"idempotency_key"`
		SourceID       string `json:"source_id"`
		Card           struct {
			CustomerID string `json:"customer_id"`
		} `json:"card"`
	}{IdempotencyKey: uuid.NewString(), SourceID: req.SourceID}
	payload.Card.CustomerID = req.CustomerID

	body, err := c.p.do(ctx, call{
		op:          "create_card",
		method:      http.MethodPost,
		path:        "/v2/cards",
		header:      c.headers(),
		body:        payload,
		fallback:    "Card could not be saved",
		detailPaths: squareErrorPaths,
	})
	if err != nil {
		return nil, err
	}

	var resp struct {
		Card Card `json:"card"`
	}
	if err := decodeSquare(body, &resp); err != nil {
		return nil, err
	}
	return &resp.Card, nil
}

// SubscriptionRequest enrolls a customer card in a Square subscription plan
type SubscriptionRequest struct {
	PlanID     string `json:"plan_id"`
	CustomerID string `json:"customer_id"`
	CardID     string `json:"card_id"`
	StartDate  string `json:"start_date,omitempty"` // YYYY-MM-DD
}

// Subscription is a Square subscription
type Subscription struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	PlanID     string `json:"plan_id"`
	CustomerID string `json:"customer_id"`
	StartDate  string `json:"start_date"`
}

// CreateSubscription starts recurring billing for a stored card
func (c *SquareClient) CreateSubscription(ctx context.Context, req SubscriptionRequest) (*Subscription, error) {
	if req.PlanID == "" || req.CustomerID == "" || req.CardID == "" {
		return nil, apperrors.NewInvalidParameterError("subscription", "plan, customer and card are required")
	}
	payload := struct {
		IdempotencyKey string `json:"idempotency_key"`
		LocationID     string `json:"location_id"`
		SubscriptionRequest
	}{uuid.NewString(), c.locationID, req}

	body, err := c.p.do(ctx, call{
		op:          "create_subscription",
		method:      http.MethodPost,
		path:        "/v2/subscriptions",
		header:      c.headers(),
		body:        payload,
		fallback:    "Subscription creation failed",
		detailPaths: squareErrorPaths,
	})
	if err != nil {
		return nil, err
	}

	var resp struct {
		Subscription Subscription `json:"subscription"`
	}
	if err := decodeSquare(body, &resp); err != nil {
		return nil, err
	}
	return &resp.Subscription, nil
}

// CancelSubscription stops future billing of a subscription. Square keeps it
// active until the end of the paid period.
func (c *SquareClient) CancelSubscription(ctx context.Context, id string) (*Subscription, error) {
	if id == "" {
		return nil, apperrors.NewInvalidParameterError("subscriptionId", "subscription id is required")
	}
	body, err := c.p.do(ctx, call{
		op:          "cancel_subscription",
		method:      http.MethodPost,
		path:        "/v2/subscriptions/" + url.PathEscape(id) + "/cancel",
		header:      c.headers(),
		fallback:    "Subscription cancellation failed",
		detailPaths: squareErrorPaths,
	})
	if err != nil {
		return nil, err
	}

	var resp struct {
		Subscription Subscription `json:"subscription"`
	}
	if err := decodeSquare(body, &resp); err != nil {
		return nil, err
	}
	return &resp.Subscription, nil
}

func (c *SquareClient) headers() http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+c.accessToken)
	h.Set("Square-Version", c.apiVersion)
	return h
}

func decodeSquare(body []byte, dest interface{}) error {
	if err := json.Unmarshal(body, dest); err != nil {
		return apperrors.NewProviderError(squareProvider, "", fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// Stats exposes the client's circuit breaker
func (c *SquareClient) Stats() circuitbreaker.Stats {
	return c.p.Stats()
}
