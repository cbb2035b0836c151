package payment

import (
	"context"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"go.uber.org/zap"

	"github.com/teranos/vacancy/errors"
	"github.com/teranos/vacancy/internal/httpclient"
	"github.com/teranos/vacancy/logger"
)

// apiTimeout bounds each gateway call, including stripe-go's own retries
const apiTimeout = 30 * time.Second

// Stripe is the Gateway backed by the Stripe API
type Stripe struct {
	api           *client.API
	webhookSecret string
	logger        *zap.SugaredLogger
}

// NewStripe creates a gateway whose API calls go through an SSRF-guarded,
// HTTPS-only client
func NewStripe(secretKey, webhookSecret string, log *zap.SugaredLogger) *Stripe {
	httpClient := httpclient.NewSaferClient(apiTimeout, httpclient.Options{}).Client
	backends := &stripe.Backends{
		API: stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
			HTTPClient:        httpClient,
			MaxNetworkRetries: stripe.Int64(2),
		}),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, &stripe.BackendConfig{HTTPClient: httpClient}),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, &stripe.BackendConfig{HTTPClient: httpClient}),
	}
	return NewStripeWithBackends(secretKey, webhookSecret, backends, log)
}

// NewStripeWithBackends creates a gateway against custom backends (tests, proxies).
// A nil backends uses Stripe's defaults.
func NewStripeWithBackends(secretKey, webhookSecret string, backends *stripe.Backends, log *zap.SugaredLogger) *Stripe {
	return &Stripe{
		api:           client.New(secretKey, backends),
		webhookSecret: webhookSecret,
		logger:        log,
	}
}

// EnsureCustomer implements Gateway.
// The idempotency key is derived from the company id, so retries within Stripe's
// idempotency window return the customer created by the first attempt.
func (s *Stripe) EnsureCustomer(ctx context.Context, req CustomerRequest) (string, error) {
	params := &stripe.CustomerParams{
		Name: stripe.String(req.Name),
	}
	if req.Email != "" {
		params.Email = stripe.String(req.Email)
	}
	params.Context = ctx
	params.AddMetadata("companyId", req.CompanyID)
	params.SetIdempotencyKey("customer-" + req.CompanyID)

	cus, err := s.api.Customers.New(params)
	if err != nil {
		return "", errors.Wrapf(err, "failed to create billing customer for company %s", req.CompanyID)
	}

	s.logger.Infow("Created billing customer",
		logger.FieldCompanyID, req.CompanyID,
		logger.FieldCustomerRef, cus.ID)
	return cus.ID, nil
}

// CreateCheckoutSession implements Gateway
func (s *Stripe) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*Session, error) {
	quantity := req.Item.Quantity
	if quantity <= 0 {
		quantity = 1
	}

	product := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
		Name: stripe.String(req.Item.Name),
	}
	if req.Item.Description != "" {
		product.Description = stripe.String(req.Item.Description)
	}

	params := &stripe.CheckoutSessionParams{
		Customer: stripe.String(req.CustomerID),
		Mode:     stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:    stripe.String(req.Currency),
					UnitAmount:  stripe.Int64(req.Item.AmountCents),
					ProductData: product,
				},
				Quantity: stripe.Int64(quantity),
			},
		},
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
	}
	params.Context = ctx
	params.AddMetadata(MetadataJobID, req.JobPostID)

	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create checkout session for job post %s", req.JobPostID)
	}

	s.logger.Infow("Created checkout session",
		logger.FieldJobPostID, req.JobPostID,
		logger.FieldCustomerRef, req.CustomerID,
		"session_id", sess.ID)
	return &Session{ID: sess.ID, URL: sess.URL}, nil
}

// VerifyAndParseEvent implements Gateway
func (s *Stripe) VerifyAndParseEvent(payload []byte, signature string) (*Event, error) {
	return ConstructEvent(payload, signature, s.webhookSecret)
}
