package listing

import (
	"context"
	"encoding/json"
	"time"

	"github.com/teranos/vacancy/errors"
	"github.com/teranos/vacancy/logger"
	"github.com/teranos/vacancy/payment"
)

// ConfirmPayment consumes a raw gateway webhook delivery.
//
// Safe to call any number of times for the same event: authenticity is checked
// before anything else, an already ACTIVE post is acknowledged without a second
// activation, and the expiration task is keyed by post id so it exists once.
// A post cancelled before the payment arrived stays cancelled.
func (s *Service) ConfirmPayment(ctx context.Context, payload []byte, signature string) error {
	event, err := s.gateway.VerifyAndParseEvent(payload, signature)
	if err != nil {
		s.logger.Warnw("Rejected payment event",
			logger.FieldError, err,
			logger.FieldErrorKind, errors.Kind(err))
		return err
	}

	log := s.logger.With(logger.FieldEventID, event.ID, logger.FieldEventType, event.Type)
	if event.Type != payment.EventCheckoutCompleted {
		log.Debugw("Ignoring payment event type")
		return nil
	}

	postID := event.JobPostID()
	if postID == "" {
		err := errors.NewCorrelationError("event %s carries no job post id", event.ID)
		log.Errorw("Payment event without correlation id", logger.FieldError, err)
		return err
	}
	log = log.With(logger.FieldJobPostID, postID, logger.FieldCustomerRef, event.CustomerRef)

	post, err := s.reconcile(ctx, event, postID)
	if err != nil {
		log.Errorw("Payment event does not reconcile",
			logger.FieldError, err,
			logger.FieldErrorKind, errors.Kind(err))
		return err
	}

	switch post.Status {
	case StatusActive:
		log.Infow("Payment replay for active post")
		return s.scheduleExpiration(ctx, post)
	case StatusCancelled, StatusExpired:
		log.Warnw("Payment confirmed for closed post, leaving it closed", logger.FieldStatus, post.Status)
		return nil
	}

	activatedAt := s.clock().UTC()
	ok, err := s.store.Activate(ctx, post.ID, activatedAt, post.Expiry(activatedAt))
	if err != nil {
		return err
	}
	if !ok {
		// Lost a race with a concurrent delivery or a cancellation; settle on what won
		current, err := s.store.Get(ctx, post.ID)
		if err != nil {
			return err
		}
		if current.Status == StatusActive {
			return s.scheduleExpiration(ctx, current)
		}
		log.Warnw("Post left pending payment before activation", logger.FieldStatus, current.Status)
		return nil
	}

	post.Status = StatusActive
	post.ActivatedAt = &activatedAt
	expiresAt := post.Expiry(activatedAt)
	post.ExpiresAt = &expiresAt
	log.Infow("Job post activated",
		logger.FieldCompanyID, post.CompanyID,
		"expires_at", expiresAt)

	if err := s.scheduleExpiration(ctx, post); err != nil {
		// The post is ACTIVE; returning the error makes the gateway redeliver,
		// and the replay path above schedules again.
		log.Errorw("Failed to schedule expiration", logger.FieldError, err)
		return err
	}
	s.notify(EventActivated, post)
	return nil
}

// reconcile maps the event back to a post owned by the paying company
func (s *Service) reconcile(ctx context.Context, event *payment.Event, postID string) (*Post, error) {
	if event.CustomerRef == "" {
		return nil, errors.NewReconciliationError("event %s has no customer reference", event.ID)
	}
	company, err := s.directory.GetCompanyByBillingCustomer(ctx, event.CustomerRef)
	if errors.IsNotFoundError(err) {
		return nil, errors.NewReconciliationError("no company for customer %s", event.CustomerRef)
	}
	if err != nil {
		return nil, err
	}

	post, err := s.store.Get(ctx, postID)
	if errors.IsNotFoundError(err) {
		return nil, errors.NewReconciliationError("job post %s does not exist", postID)
	}
	if err != nil {
		return nil, err
	}
	if post.CompanyID != company.ID {
		return nil, errors.NewReconciliationError("job post %s belongs to company %s, payment came from %s",
			postID, post.CompanyID, company.ID)
	}
	return post, nil
}

type expirePayload struct {
	JobPostID string `json:"job_post_id"`
}

// scheduleExpiration registers the expiration task for an ACTIVE post.
// The run time derives from the stored activation time, so repeats are identical.
func (s *Service) scheduleExpiration(ctx context.Context, post *Post) error {
	if post.ActivatedAt == nil {
		return errors.Newf("job post %s is active without an activation time", post.ID)
	}
	runAt := post.Expiry(*post.ActivatedAt)

	payload, err := json.Marshal(expirePayload{JobPostID: post.ID})
	if err != nil {
		return errors.Wrap(err, "failed to encode expiration payload")
	}
	handle, err := s.dispatcher.Schedule(ctx, TaskExpire, post.ID, payload, runAt)
	if err != nil {
		return errors.Wrapf(err, "failed to schedule expiration of job post %s", post.ID)
	}
	if handle == post.ExpirationTaskID {
		return nil
	}
	if err := s.store.SetExpirationTask(ctx, post.ID, handle); err != nil {
		return err
	}
	post.ExpirationTaskID = handle

	s.logger.Debugw("Expiration scheduled",
		logger.FieldJobPostID, post.ID,
		logger.FieldTaskID, handle,
		logger.FieldRunAt, runAt.Format(time.RFC3339))
	return nil
}
