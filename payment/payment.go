// Package payment adapts the external payment processor.
//
// The board never sees card data: it asks the gateway for a hosted checkout
// session carrying the job post id as metadata, and later receives a signed
// confirmation event that carries the same id back.
package payment

import (
	"context"
	"encoding/json"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/teranos/vacancy/errors"
)

// Wire constants shared with the processor
const (
	SignatureHeader        = "Stripe-Signature"
	EventCheckoutCompleted = "checkout.session.completed"
	MetadataJobID          = "jobId"
)

// CustomerRequest identifies the company a billing customer is created for
type CustomerRequest struct {
	CompanyID string
	Name      string
	Email     string
}

// LineItem is one priced row of a checkout
type LineItem struct {
	Name        string
	Description string
	AmountCents int64
	Quantity    int64
}

// CheckoutRequest describes a hosted checkout for one job post
type CheckoutRequest struct {
	CustomerID string
	JobPostID  string // Carried as metadata and returned on the confirmation event
	Item       LineItem
	Currency   string
	SuccessURL string
	CancelURL  string
}

// Session is a created checkout
type Session struct {
	ID  string
	URL string
}

// Event is a verified confirmation from the gateway
type Event struct {
	ID          string
	Type        string
	SessionID   string
	CustomerRef string
	Metadata    map[string]string
}

// JobPostID returns the correlation id carried in metadata, if any
func (e *Event) JobPostID() string {
	return e.Metadata[MetadataJobID]
}

// Gateway is the payment processor as the board uses it
type Gateway interface {
	// EnsureCustomer creates the billing customer for a company.
	// Repeated calls for the same company return the same customer.
	EnsureCustomer(ctx context.Context, req CustomerRequest) (string, error)

	// CreateCheckoutSession starts a hosted checkout and returns where to send the buyer
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*Session, error)

	// VerifyAndParseEvent authenticates a raw webhook body against its signature header.
	// Authentication failures wrap errors.ErrAuthenticity.
	VerifyAndParseEvent(payload []byte, signature string) (*Event, error)
}

// ConstructEvent verifies payload against signature using secret and decodes it.
// Only checkout completion events have their session decoded; others come back with ID and Type.
func ConstructEvent(payload []byte, signature, secret string) (*Event, error) {
	if secret == "" {
		return nil, errors.NewConfigurationError("webhook secret is not configured")
	}

	raw, err := webhook.ConstructEventWithOptions(payload, signature, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, errors.WrapAuthenticity(err)
	}

	event := &Event{ID: raw.ID, Type: string(raw.Type)}
	if event.Type != EventCheckoutCompleted {
		return event, nil
	}

	var session stripe.CheckoutSession
	if raw.Data == nil {
		return nil, errors.NewCorrelationError("event %s has no data", raw.ID)
	}
	if err := json.Unmarshal(raw.Data.Raw, &session); err != nil {
		return nil, errors.Wrap(errors.NewCorrelationError("event %s carries a malformed checkout session", raw.ID), err.Error())
	}

	event.SessionID = session.ID
	event.Metadata = session.Metadata
	if session.Customer != nil {
		event.CustomerRef = session.Customer.ID
	}
	return event, nil
}
