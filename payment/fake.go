package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/teranos/vacancy/errors"
)

// DefaultFakeWebhookSecret signs fake events when no secret is configured
const DefaultFakeWebhookSecret = "whsec_fake_local"

// Fake is an in-process Gateway for local development and tests.
// Its events use the processor's wire format and signature scheme, so the
// webhook path is exercised end to end.
type Fake struct {
	mu            sync.Mutex
	webhookSecret string
	customers     map[string]string // company id -> customer id
	sessions      map[string]CheckoutRequest

	// FailCheckout, when set, is returned by CreateCheckoutSession
	FailCheckout error
	// FailCustomer, when set, is returned by EnsureCustomer
	FailCustomer error
}

// NewFake creates a fake gateway signing with webhookSecret
func NewFake(webhookSecret string) *Fake {
	if webhookSecret == "" {
		webhookSecret = DefaultFakeWebhookSecret
	}
	return &Fake{
		webhookSecret: webhookSecret,
		customers:     make(map[string]string),
		sessions:      make(map[string]CheckoutRequest),
	}
}

// EnsureCustomer implements Gateway
func (f *Fake) EnsureCustomer(_ context.Context, req CustomerRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.FailCustomer != nil {
		return "", f.FailCustomer
	}
	if id, ok := f.customers[req.CompanyID]; ok {
		return id, nil
	}
	id := "cus_" + uuid.NewString()[:8]
	f.customers[req.CompanyID] = id
	return id, nil
}

// CreateCheckoutSession implements Gateway
func (f *Fake) CreateCheckoutSession(_ context.Context, req CheckoutRequest) (*Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.FailCheckout != nil {
		return nil, f.FailCheckout
	}
	id := "cs_" + uuid.NewString()
	f.sessions[id] = req
	return &Session{ID: id, URL: fmt.Sprintf("%s?session_id=%s", req.SuccessURL, id)}, nil
}

// VerifyAndParseEvent implements Gateway
func (f *Fake) VerifyAndParseEvent(payload []byte, signature string) (*Event, error) {
	return ConstructEvent(payload, signature, f.webhookSecret)
}

// Sessions returns the checkout requests seen so far, keyed by session id
func (f *Fake) Sessions() map[string]CheckoutRequest {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make(map[string]CheckoutRequest, len(f.sessions))
	for k, v := range f.sessions {
		out[k] = v
	}
	return out
}

// CustomerCount returns how many distinct customers were created
func (f *Fake) CustomerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.customers)
}

// CompleteSession builds a signed checkout completion event for a session this fake created.
// Returns the raw body and the signature header, as the processor would deliver them.
func (f *Fake) CompleteSession(sessionID string) ([]byte, string, error) {
	f.mu.Lock()
	req, ok := f.sessions[sessionID]
	f.mu.Unlock()
	if !ok {
		return nil, "", errors.NewNotFoundError("checkout session %s", sessionID)
	}
	return f.SignEvent("evt_"+uuid.NewString(), EventCheckoutCompleted, sessionID, req.CustomerID,
		map[string]string{MetadataJobID: req.JobPostID})
}

// SignEvent builds and signs an arbitrary event, for exercising malformed or hostile deliveries
func (f *Fake) SignEvent(eventID, eventType, sessionID, customerID string, metadata map[string]string) ([]byte, string, error) {
	object := map[string]interface{}{
		"id":       sessionID,
		"object":   "checkout.session",
		"metadata": metadata,
	}
	if customerID != "" {
		object["customer"] = customerID
	}
	body, err := json.Marshal(map[string]interface{}{
		"id":      eventID,
		"object":  "event",
		"type":    eventType,
		"created": time.Now().Unix(),
		"data":    map[string]interface{}{"object": object},
	})
	if err != nil {
		return nil, "", errors.Wrap(err, "failed to encode event")
	}

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   body,
		Secret:    f.webhookSecret,
		Timestamp: time.Now(),
	})
	return signed.Payload, signed.Header, nil
}
