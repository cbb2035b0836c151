package application

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/teranos/vacancy/account"
	"github.com/teranos/vacancy/admission"
	"github.com/teranos/vacancy/errors"
	"github.com/teranos/vacancy/internal/httpclient"
	"github.com/teranos/vacancy/logger"
)

const maxCoverLetter = 10000

// Directory resolves applicants
type Directory interface {
	GetUser(ctx context.Context, id string) (*account.User, error)
	GetJobSeekerByUser(ctx context.Context, userID string) (*account.JobSeeker, error)
}

// Service implements the application workflow
type Service struct {
	store     *Store
	directory Directory
	admission *admission.Enforcer
	logger    *zap.SugaredLogger
}

// NewService creates an application service
func NewService(store *Store, directory Directory, enforcer *admission.Enforcer, log *zap.SugaredLogger) *Service {
	return &Service{store: store, directory: directory, admission: enforcer, logger: log}
}

// Store exposes the underlying store
func (s *Service) Store() *Store {
	return s.store
}

// ApplyInput is what a job seeker submits. ResumeURL overrides the profile resume.
type ApplyInput struct {
	CoverLetter string `json:"cover_letter"`
	ResumeURL   string `json:"resume_url"`
}

// Apply submits a PENDING application from userID to an ACTIVE post.
// Only job seekers may apply, and only once per post; a withdrawn application still counts.
func (s *Service) Apply(ctx context.Context, req admission.Request, userID, postID string, in ApplyInput) (*Application, error) {
	in.CoverLetter = strings.TrimSpace(in.CoverLetter)
	in.ResumeURL = strings.TrimSpace(in.ResumeURL)
	if len(in.CoverLetter) > maxCoverLetter {
		return nil, errors.NewValidationError("cover letter must be at most %d characters", maxCoverLetter)
	}
	if in.ResumeURL != "" {
		if _, err := httpclient.ValidatePublicURL(in.ResumeURL); err != nil {
			return nil, errors.NewValidationError("resume_url must be a public http(s) URL: %v", err)
		}
	}
	if err := s.admission.Admit(ctx, req, admission.CostApply); err != nil {
		return nil, err
	}

	user, err := s.directory.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Type != account.UserTypeJobSeeker {
		return nil, errors.NewNotEligibleError("user %s is not a job seeker", userID)
	}

	resume, err := s.resolveResume(ctx, userID, in.ResumeURL)
	if err != nil {
		return nil, err
	}

	a := &Application{
		UserID:      userID,
		JobPostID:   postID,
		CoverLetter: in.CoverLetter,
		ResumeURL:   resume,
	}
	log := logger.FromContext(ctx, s.logger).With(logger.FieldUserID, userID, logger.FieldJobPostID, postID)
	if err := s.store.Insert(ctx, a); err != nil {
		log.Debugw("Application rejected", logger.FieldError, err, logger.FieldErrorKind, errors.Kind(err))
		return nil, err
	}
	log.Infow("Application submitted", logger.FieldApplicationID, a.ID)
	return a, nil
}

// resolveResume prefers the override, then the profile resume, then none
func (s *Service) resolveResume(ctx context.Context, userID, override string) (string, error) {
	if override != "" {
		return override, nil
	}
	profile, err := s.directory.GetJobSeekerByUser(ctx, userID)
	if errors.IsNotFoundError(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return profile.ResumeURL, nil
}

// Withdraw lets the applicant retract a PENDING application
func (s *Service) Withdraw(ctx context.Context, req admission.Request, applicationID, userID string) (*Application, error) {
	if err := s.admission.Admit(ctx, req, admission.CostMutation); err != nil {
		return nil, err
	}

	a, err := s.store.Get(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if a.UserID != userID {
		return nil, errors.NewAuthorizationError("user %s does not own application %s", userID, applicationID)
	}
	if a.Status != StatusPending {
		return nil, errors.NewNotEligibleError("application %s is %s, only PENDING can be withdrawn", applicationID, a.Status)
	}

	ok, err := s.store.Withdraw(ctx, applicationID, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.NewNotEligibleError("application %s left PENDING before it could be withdrawn", applicationID)
	}

	logger.FromContext(ctx, s.logger).Infow("Application withdrawn",
		logger.FieldApplicationID, applicationID,
		logger.FieldUserID, userID)
	return s.store.Get(ctx, applicationID)
}

// UpdateStatus applies a review decision by the company owning the post.
// Any of the company statuses may follow any other; WITHDRAWN is final.
func (s *Service) UpdateStatus(ctx context.Context, req admission.Request, applicationID, companyID, status string) (*Application, error) {
	next, ok := ParseStatus(status)
	if !ok {
		return nil, errors.WithHintf(
			errors.NewValidationError("status %q cannot be set by a company", status),
			"one of PENDING, REVIEWED, SHORTLISTED, REJECTED, ACCEPTED")
	}
	if err := s.admission.Admit(ctx, req, admission.CostMutation); err != nil {
		return nil, err
	}

	a, err := s.store.Get(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if a.companyID != companyID {
		return nil, errors.NewAuthorizationError("company %s does not own the post of application %s", companyID, applicationID)
	}
	if a.Status == StatusWithdrawn {
		return nil, errors.NewNotEligibleError("application %s was withdrawn", applicationID)
	}

	changed, err := s.store.SetStatus(ctx, applicationID, next)
	if err != nil {
		return nil, err
	}
	if !changed {
		return nil, errors.NewNotEligibleError("application %s was withdrawn", applicationID)
	}

	logger.FromContext(ctx, s.logger).Infow("Application status changed",
		logger.FieldApplicationID, applicationID,
		logger.FieldCompanyID, companyID,
		logger.FieldFromStatus, a.Status,
		logger.FieldToStatus, next)
	return s.store.Get(ctx, applicationID)
}

// ListForPost returns the applications to a post owned by companyID
func (s *Service) ListForPost(ctx context.Context, postID, companyID string) ([]*Applicant, error) {
	owner, err := s.store.PostCompany(ctx, postID)
	if err != nil {
		return nil, err
	}
	if owner != companyID {
		return nil, errors.NewAuthorizationError("company %s does not own job post %s", companyID, postID)
	}
	return s.store.ListForPost(ctx, postID)
}

// ListForUser returns the applications a user submitted
func (s *Service) ListForUser(ctx context.Context, userID string) ([]*Submitted, error) {
	return s.store.ListForUser(ctx, userID)
}

// Save bookmarks an ACTIVE post for userID. Saving twice is a no-op.
func (s *Service) Save(ctx context.Context, req admission.Request, userID, postID string) error {
	if err := s.admission.Admit(ctx, req, admission.CostSave); err != nil {
		return err
	}
	ok, err := s.store.Save(ctx, userID, postID)
	if err != nil {
		return err
	}
	if !ok {
		return errors.NewNotFoundError("job post %s", postID)
	}
	return nil
}

// Unsave removes a bookmark
func (s *Service) Unsave(ctx context.Context, req admission.Request, userID, postID string) error {
	if err := s.admission.Admit(ctx, req, admission.CostSave); err != nil {
		return err
	}
	return s.store.Unsave(ctx, userID, postID)
}

// ListSaved returns a user's bookmarks
func (s *Service) ListSaved(ctx context.Context, userID string) ([]*Saved, error) {
	return s.store.ListSaved(ctx, userID)
}

