package listing

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/vacancy/account"
	"github.com/teranos/vacancy/admission"
	"github.com/teranos/vacancy/errors"
	"github.com/teranos/vacancy/logger"
	"github.com/teranos/vacancy/payment"
)

// Task names registered with the scheduler
const (
	TaskExpire        = "listing.expire"
	TaskReapAbandoned = "listing.reap-abandoned"
)

// Dispatcher schedules deferred work. Schedule is idempotent per (taskName, key).
type Dispatcher interface {
	Schedule(ctx context.Context, taskName, key string, payload []byte, runAt time.Time) (string, error)
	Cancel(ctx context.Context, handle string) error
}

// Directory resolves companies and their billing identity
type Directory interface {
	GetUser(ctx context.Context, id string) (*account.User, error)
	GetCompany(ctx context.Context, id string) (*account.Company, error)
	GetCompanyByBillingCustomer(ctx context.Context, customerID string) (*account.Company, error)
	BindBillingCustomer(ctx context.Context, companyID, customerID string) (string, error)
}

// Config carries pricing and checkout settings
type Config struct {
	Tiers        Tiers
	PublicURL    string        // Base for checkout success/cancel redirects
	Currency     string        // Lower-case ISO code
	AbandonAfter time.Duration // Drafts left unpaid this long are cancelled; 0 disables
}

// Service orchestrates the job post lifecycle
type Service struct {
	store      *Store
	directory  Directory
	gateway    payment.Gateway
	dispatcher Dispatcher
	admission  *admission.Enforcer
	notifier   Notifier
	cfg        Config
	tiersMu    sync.RWMutex
	logger     *zap.SugaredLogger
	clock      func() time.Time
}

// NewService wires the orchestrator. A nil notifier discards events.
func NewService(store *Store, directory Directory, gateway payment.Gateway, dispatcher Dispatcher,
	enforcer *admission.Enforcer, notifier Notifier, cfg Config, log *zap.SugaredLogger) *Service {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if cfg.Currency == "" {
		cfg.Currency = "usd"
	}
	cfg.PublicURL = strings.TrimRight(cfg.PublicURL, "/")
	return &Service{
		store:      store,
		directory:  directory,
		gateway:    gateway,
		dispatcher: dispatcher,
		admission:  enforcer,
		notifier:   notifier,
		cfg:        cfg,
		logger:     log,
		clock:      time.Now,
	}
}

// Store exposes the underlying store
func (s *Service) Store() *Store {
	return s.store
}

// Tiers returns the pricing table
func (s *Service) Tiers() Tiers {
	s.tiersMu.RLock()
	defer s.tiersMu.RUnlock()
	return s.cfg.Tiers
}

// SetTiers replaces the pricing table. Posts already paid for keep their duration;
// pending drafts are charged the new price on their next checkout.
func (s *Service) SetTiers(tiers Tiers) error {
	if len(tiers) == 0 {
		return errors.NewConfigurationError("pricing table must offer at least one tier")
	}
	s.tiersMu.Lock()
	s.cfg.Tiers = tiers
	s.tiersMu.Unlock()
	s.logger.Infow("Pricing tiers updated", "durations", tiers.Days())
	return nil
}

// Checkout is the result of creating a draft or retrying its payment
type Checkout struct {
	Post        *Post  `json:"post"`
	RedirectURL string `json:"redirect_url,omitempty"`
}

// CreateDraft validates attrs, persists a PENDING_PAYMENT post and starts its checkout.
// If the checkout cannot be created the post is still returned, alongside the error,
// and stays PENDING_PAYMENT so the owner can retry with InitiatePayment.
func (s *Service) CreateDraft(ctx context.Context, req admission.Request, companyID string, attrs Attributes) (*Checkout, error) {
	attrs.Normalize()
	if err := attrs.Validate(s.Tiers()); err != nil {
		return nil, err
	}
	if err := s.admission.Admit(ctx, req, admission.CostCreate); err != nil {
		return nil, err
	}

	company, err := s.directory.GetCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}

	post := &Post{CompanyID: company.ID}
	post.apply(attrs)
	if err := s.store.Insert(ctx, post); err != nil {
		return nil, err
	}

	log := logger.FromContext(ctx, s.logger).With(
		logger.FieldJobPostID, post.ID,
		logger.FieldCompanyID, company.ID)
	log.Infow("Job post drafted", "duration_days", post.DurationDays)

	url, err := s.initiatePayment(ctx, company, post)
	if err != nil {
		log.Warnw("Checkout failed, draft left pending for retry",
			logger.FieldError, err,
			logger.FieldErrorKind, errors.Kind(err))
		return &Checkout{Post: post}, err
	}
	return &Checkout{Post: post, RedirectURL: url}, nil
}

// InitiatePayment starts a new checkout for a PENDING_PAYMENT post owned by companyID
func (s *Service) InitiatePayment(ctx context.Context, req admission.Request, postID, companyID string) (*Checkout, error) {
	if err := s.admission.Admit(ctx, req, admission.CostMutation); err != nil {
		return nil, err
	}

	post, err := s.ownedPost(ctx, postID, companyID)
	if err != nil {
		return nil, err
	}
	if post.Status != StatusPendingPayment {
		return nil, errors.NewNotEligibleError("job post %s is %s, not awaiting payment", postID, post.Status)
	}
	company, err := s.directory.GetCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}

	url, err := s.initiatePayment(ctx, company, post)
	if err != nil {
		return nil, err
	}
	return &Checkout{Post: post, RedirectURL: url}, nil
}

// initiatePayment resolves the billing customer and creates the hosted checkout
func (s *Service) initiatePayment(ctx context.Context, company *account.Company, post *Post) (string, error) {
	tier, ok := s.Tiers().Lookup(post.DurationDays)
	if !ok {
		// Durations are validated against the same table; reaching this is a misconfiguration
		return "", errors.NewConfigurationError("no price tier for %d days", post.DurationDays)
	}

	customerID, err := s.billingCustomer(ctx, company)
	if err != nil {
		return "", err
	}

	sess, err := s.gateway.CreateCheckoutSession(ctx, payment.CheckoutRequest{
		CustomerID: customerID,
		JobPostID:  post.ID,
		Item: payment.LineItem{
			Name:        tier.ProductName(),
			Description: tier.Description,
			AmountCents: tier.PriceCents,
			Quantity:    1,
		},
		Currency:   s.cfg.Currency,
		SuccessURL: s.cfg.PublicURL + "/payment/success",
		CancelURL:  s.cfg.PublicURL + "/payment/cancel",
	})
	if err != nil {
		return "", err
	}
	if err := s.store.TouchCheckout(ctx, post.ID, s.clock()); err != nil {
		return "", err
	}
	return sess.URL, nil
}

// billingCustomer returns the company's gateway customer, creating and binding one on first use
func (s *Service) billingCustomer(ctx context.Context, company *account.Company) (string, error) {
	if company.BillingCustomerID != "" {
		return company.BillingCustomerID, nil
	}

	owner, err := s.directory.GetUser(ctx, company.OwnerUserID)
	if err != nil {
		return "", err
	}
	created, err := s.gateway.EnsureCustomer(ctx, payment.CustomerRequest{
		CompanyID: company.ID,
		Name:      company.Name,
		Email:     owner.Email,
	})
	if err != nil {
		return "", err
	}

	bound, err := s.directory.BindBillingCustomer(ctx, company.ID, created)
	if err != nil {
		return "", err
	}
	if bound != created {
		s.logger.Warnw("Billing customer already bound by a concurrent request",
			logger.FieldCompanyID, company.ID,
			logger.FieldCustomerRef, bound,
			"discarded", created)
	}
	company.BillingCustomerID = bound
	return bound, nil
}

// Edit updates a post owned by companyID while it is PENDING_PAYMENT or ACTIVE.
// The duration is fixed once paid for, so only drafts are checked against the
// current pricing table.
func (s *Service) Edit(ctx context.Context, req admission.Request, postID, companyID string, attrs Attributes) (*Post, error) {
	attrs.Normalize()
	if err := attrs.validateFields(); err != nil {
		return nil, err
	}
	if err := s.admission.Admit(ctx, req, admission.CostMutation); err != nil {
		return nil, err
	}

	post, err := s.ownedPost(ctx, postID, companyID)
	if err != nil {
		return nil, err
	}
	switch post.Status {
	case StatusPendingPayment:
		if err := attrs.validateDuration(s.Tiers()); err != nil {
			return nil, err
		}
	case StatusActive:
		if attrs.DurationDays != post.DurationDays {
			return nil, errors.NewNotEligibleError("listing duration of an active post cannot change")
		}
	default:
		return nil, errors.NewNotEligibleError("job post %s is %s and can no longer be edited", postID, post.Status)
	}

	status := post.Status
	post.apply(attrs)
	ok, err := s.store.Update(ctx, post, status)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.NewNotEligibleError("job post %s changed status during edit", postID)
	}

	logger.FromContext(ctx, s.logger).Infow("Job post edited",
		logger.FieldJobPostID, post.ID,
		logger.FieldCompanyID, companyID)
	return post, nil
}

// Cancel closes a post on behalf of its owner and cancels its pending expiration.
// Cancelling an already cancelled post succeeds; an expired post cannot be cancelled.
func (s *Service) Cancel(ctx context.Context, req admission.Request, postID, companyID string) error {
	if err := s.admission.Admit(ctx, req, admission.CostMutation); err != nil {
		return err
	}

	post, err := s.ownedPost(ctx, postID, companyID)
	if err != nil {
		return err
	}
	log := logger.FromContext(ctx, s.logger).With(logger.FieldJobPostID, postID, logger.FieldCompanyID, companyID)

	switch post.Status {
	case StatusCancelled:
		return nil
	case StatusExpired:
		return errors.NewNotEligibleError("job post %s has already expired", postID)
	}

	ok, err := s.store.Cancel(ctx, postID, s.clock())
	if err != nil {
		return err
	}
	// Re-read: a concurrent confirmation may have attached an expiration task
	current, err := s.store.Get(ctx, postID)
	if err != nil {
		return err
	}
	if !ok {
		switch current.Status {
		case StatusCancelled:
			return nil
		default:
			return errors.NewNotEligibleError("job post %s is %s", postID, current.Status)
		}
	}

	log.Infow("Job post cancelled", logger.FieldFromStatus, post.Status)
	if current.ExpirationTaskID != "" {
		if err := s.dispatcher.Cancel(ctx, current.ExpirationTaskID); err != nil {
			// A late firing is a no-op on a cancelled post
			log.Warnw("Failed to cancel expiration task",
				logger.FieldTaskID, current.ExpirationTaskID,
				logger.FieldError, err)
		}
	}
	s.notify(EventCancelled, current)
	return nil
}

// Get returns a post. Posts that are not ACTIVE are visible only to their owner;
// viewerCompanyID may be empty for anonymous viewers.
func (s *Service) Get(ctx context.Context, postID, viewerCompanyID string) (*Post, error) {
	post, err := s.store.Get(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.Status != StatusActive && post.CompanyID != viewerCompanyID {
		return nil, errors.NewNotFoundError("job post %s", postID)
	}
	return post, nil
}

// ListActive returns public listings
func (s *Service) ListActive(ctx context.Context, q Query) ([]*Listing, error) {
	return s.store.ListActive(ctx, q)
}

// ListByCompany returns the company's posts in every status
func (s *Service) ListByCompany(ctx context.Context, companyID string) ([]*CompanyPost, error) {
	return s.store.ListByCompany(ctx, companyID)
}

// CompanyStats returns dashboard counters
func (s *Service) CompanyStats(ctx context.Context, companyID string) (*Stats, error) {
	return s.store.CompanyStats(ctx, companyID)
}

// ownedPost loads a post and checks it belongs to companyID
func (s *Service) ownedPost(ctx context.Context, postID, companyID string) (*Post, error) {
	post, err := s.store.Get(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.CompanyID != companyID {
		return nil, errors.NewAuthorizationError("company %s does not own job post %s", companyID, postID)
	}
	return post, nil
}

func (s *Service) notify(eventType string, post *Post) {
	s.notifier.PostChanged(Event{
		Type:      eventType,
		JobPostID: post.ID,
		CompanyID: post.CompanyID,
		Status:    post.Status,
	})
}
