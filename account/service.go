package account

import (
	"context"
	"net/mail"
	"strings"

	"go.uber.org/zap"

	"github.com/teranos/vacancy/admission"
	"github.com/teranos/vacancy/errors"
	"github.com/teranos/vacancy/internal/httpclient"
	"github.com/teranos/vacancy/logger"
)

// Service implements registration and onboarding
type Service struct {
	store     *Store
	admission *admission.Enforcer
	logger    *zap.SugaredLogger
}

// NewService creates an account service
func NewService(store *Store, enforcer *admission.Enforcer, log *zap.SugaredLogger) *Service {
	return &Service{store: store, admission: enforcer, logger: log}
}

// Store exposes the underlying store for lookups by other components
func (s *Service) Store() *Store {
	return s.store
}

// Register records an authenticated user. Calling it again refreshes email and name.
func (s *Service) Register(ctx context.Context, req admission.Request, u User) (*User, error) {
	u.Email = strings.TrimSpace(u.Email)
	u.Name = strings.TrimSpace(u.Name)
	if u.ID == "" {
		return nil, errors.NewValidationError("user id is required")
	}
	if _, err := mail.ParseAddress(u.Email); err != nil {
		return nil, errors.NewValidationError("invalid email %q", u.Email)
	}
	if err := s.admission.Admit(ctx, req, admission.CostOnboard); err != nil {
		return nil, err
	}

	if err := s.store.UpsertUser(ctx, &u); err != nil {
		return nil, err
	}
	logger.FromContext(ctx, s.logger).Infow("User registered", logger.FieldUserID, u.ID)
	return s.store.GetUser(ctx, u.ID)
}

// CompanyInput is the onboarding form for a company
type CompanyInput struct {
	Name     string `json:"name"`
	Location string `json:"location"`
	About    string `json:"about"`
	LogoURL  string `json:"logo_url"`
	Website  string `json:"website"`
	XAccount string `json:"x_account"`
}

// Validate checks the form
func (in CompanyInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return errors.NewValidationError("company name is required")
	}
	if strings.TrimSpace(in.Location) == "" {
		return errors.NewValidationError("company location is required")
	}
	if len(strings.TrimSpace(in.About)) < 10 {
		return errors.NewValidationError("company description must be at least 10 characters")
	}
	for field, raw := range map[string]string{"logo_url": in.LogoURL, "website": in.Website} {
		if raw == "" {
			continue
		}
		if _, err := httpclient.ValidatePublicURL(raw); err != nil {
			return errors.NewValidationError("%s must be a public http(s) URL: %v", field, err)
		}
	}
	return nil
}

// CreateCompany onboards userID as a company
func (s *Service) CreateCompany(ctx context.Context, req admission.Request, userID string, in CompanyInput) (*Company, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if err := s.admission.Admit(ctx, req, admission.CostOnboard); err != nil {
		return nil, err
	}

	c := &Company{
		OwnerUserID: userID,
		Name:        strings.TrimSpace(in.Name),
		Location:    strings.TrimSpace(in.Location),
		About:       strings.TrimSpace(in.About),
		LogoURL:     in.LogoURL,
		Website:     in.Website,
		XAccount:    strings.TrimPrefix(strings.TrimSpace(in.XAccount), "@"),
	}
	if err := s.store.InsertCompany(ctx, c); err != nil {
		return nil, err
	}
	logger.FromContext(ctx, s.logger).Infow("Company onboarded",
		logger.FieldUserID, userID,
		logger.FieldCompanyID, c.ID)
	return c, nil
}

// JobSeekerInput is the onboarding form for a job seeker
type JobSeekerInput struct {
	Name      string `json:"name"`
	About     string `json:"about"`
	ResumeURL string `json:"resume_url"`
}

// Validate checks the form
func (in JobSeekerInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return errors.NewValidationError("name is required")
	}
	if len(strings.TrimSpace(in.About)) < 10 {
		return errors.NewValidationError("about must be at least 10 characters")
	}
	if in.ResumeURL != "" {
		if _, err := httpclient.ValidatePublicURL(in.ResumeURL); err != nil {
			return errors.NewValidationError("resume_url must be a public http(s) URL: %v", err)
		}
	}
	return nil
}

// CreateJobSeeker onboards userID as a job seeker
func (s *Service) CreateJobSeeker(ctx context.Context, req admission.Request, userID string, in JobSeekerInput) (*JobSeeker, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if err := s.admission.Admit(ctx, req, admission.CostOnboard); err != nil {
		return nil, err
	}

	js := &JobSeeker{
		UserID:    userID,
		Name:      strings.TrimSpace(in.Name),
		About:     strings.TrimSpace(in.About),
		ResumeURL: in.ResumeURL,
	}
	if err := s.store.InsertJobSeeker(ctx, js); err != nil {
		return nil, err
	}
	logger.FromContext(ctx, s.logger).Infow("Job seeker onboarded", logger.FieldUserID, userID)
	return js, nil
}

// Profile returns userID with the company or job seeker record they onboarded as
func (s *Service) Profile(ctx context.Context, userID string) (*Profile, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	p := &Profile{User: u}
	switch u.Type {
	case UserTypeCompany:
		if p.Company, err = s.store.GetCompanyByOwner(ctx, userID); err != nil {
			return nil, err
		}
	case UserTypeJobSeeker:
		if p.JobSeeker, err = s.store.GetJobSeekerByUser(ctx, userID); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// CompanyForUser returns the company owned by userID, or ErrNotEligible if the user is not a company
func (s *Service) CompanyForUser(ctx context.Context, userID string) (*Company, error) {
	c, err := s.store.GetCompanyByOwner(ctx, userID)
	if errors.IsNotFoundError(err) {
		return nil, errors.NewNotEligibleError("user %s is not onboarded as a company", userID)
	}
	return c, err
}

