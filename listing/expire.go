package listing

import (
	"context"
	"encoding/json"

	"github.com/teranos/vacancy/errors"
	"github.com/teranos/vacancy/logger"
	"github.com/teranos/vacancy/pulse/schedule"
)

// Expire closes an ACTIVE post whose listing period has ended.
// Anything else, including a post that no longer exists, is a silent no-op:
// the timer may fire after a cancellation that could not reach it.
func (s *Service) Expire(ctx context.Context, postID string) error {
	ok, err := s.store.Expire(ctx, postID, s.clock())
	if err != nil {
		return err
	}
	log := s.logger.With(logger.FieldJobPostID, postID)
	if !ok {
		log.Debugw("Expiration skipped, post not active")
		return nil
	}

	post, err := s.store.Get(ctx, postID)
	if err != nil {
		return err
	}
	log.Infow("Job post expired", logger.FieldCompanyID, post.CompanyID)
	s.notify(EventExpired, post)
	return nil
}

// ReapAbandoned cancels drafts that stayed PENDING_PAYMENT longer than the configured age,
// counted from their last edit or checkout attempt. Returns how many were cancelled.
func (s *Service) ReapAbandoned(ctx context.Context) (int, error) {
	if s.cfg.AbandonAfter <= 0 {
		return 0, nil
	}
	now := s.clock()
	ids, err := s.store.CancelStalePending(ctx, now.Add(-s.cfg.AbandonAfter), now)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		post, err := s.store.Get(ctx, id)
		if err != nil {
			s.logger.Warnw("Failed to load reaped draft", logger.FieldJobPostID, id, logger.FieldError, err)
			continue
		}
		s.notify(EventCancelled, post)
	}
	if len(ids) > 0 {
		s.logger.Infow("Cancelled abandoned drafts", logger.FieldCount, len(ids))
	}
	return len(ids), nil
}

// Handlers returns the scheduler handlers this service owns
func (s *Service) Handlers() []schedule.Handler {
	return []schedule.Handler{
		schedule.NewHandler(TaskExpire, func(ctx context.Context, task *schedule.Task) error {
			var p expirePayload
			if err := json.Unmarshal(task.Payload, &p); err != nil {
				return errors.Wrapf(err, "malformed %s payload", TaskExpire)
			}
			if p.JobPostID == "" {
				p.JobPostID = task.DedupKey
			}
			return s.Expire(ctx, p.JobPostID)
		}),
		schedule.NewHandler(TaskReapAbandoned, func(ctx context.Context, _ *schedule.Task) error {
			_, err := s.ReapAbandoned(ctx)
			return err
		}),
	}
}
