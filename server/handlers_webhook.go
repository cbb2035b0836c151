package server

import (
	"io"
	"net/http"

	"github.com/teranos/vacancy/errors"
	"github.com/teranos/vacancy/logger"
	"github.com/teranos/vacancy/payment"
)

// HandlePaymentWebhook receives signed payment events.
// Forged or uncorrelated events get a 400 and events that match no company or
// post get a 422; the processor keeps redelivering any non-2xx on its own
// backoff, so a reconciliation miss heals once the missing row exists.
// Acknowledged events return an empty 200.
func (s *VacancyServer) HandlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "payload too large")
		return
	}
	signature := r.Header.Get(payment.SignatureHeader)
	if signature == "" {
		s.writeServiceError(w, r, errors.WrapAuthenticity(errors.New("missing signature header")))
		return
	}

	ctx := logger.WithComponent(r.Context(), "webhook")
	if err := s.deps.Listings.ConfirmPayment(ctx, body, signature); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}
