// Package listing implements the job post lifecycle: paid activation,
// owner edits and cancellation, scheduled expiration and abandoned-draft cleanup.
package listing

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/teranos/vacancy/errors"
)

// Status is the lifecycle state of a job post
type Status string

const (
	StatusPendingPayment Status = "PENDING_PAYMENT"
	StatusActive         Status = "ACTIVE"
	StatusExpired        Status = "EXPIRED"
	StatusCancelled      Status = "CANCELLED"
)

// Post is a job post in any state. Only ACTIVE posts are public listings.
type Post struct {
	ID               string          `json:"id"`
	CompanyID        string          `json:"company_id"`
	Title            string          `json:"title"`
	Description      json.RawMessage `json:"description"` // Rich-text document as produced by the editor
	Location         string          `json:"location"`
	EmploymentType   string          `json:"employment_type"`
	SalaryFrom       int64           `json:"salary_from"`
	SalaryTo         int64           `json:"salary_to"`
	Benefits         []string        `json:"benefits"`
	DurationDays     int             `json:"listing_duration_days"`
	Status           Status          `json:"status"`
	ExpirationTaskID string          `json:"-"`
	ActivatedAt      *time.Time      `json:"activated_at,omitempty"`
	ExpiresAt        *time.Time      `json:"expires_at,omitempty"`
	ClosedAt         *time.Time      `json:"closed_at,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// Listing is an ACTIVE post with the public company summary shown next to it
type Listing struct {
	*Post
	CompanyName      string `json:"company_name"`
	CompanyLogoURL   string `json:"company_logo_url,omitempty"`
	CompanyLocation  string `json:"company_location"`
	ApplicationCount int    `json:"application_count"`
}

// Attributes are the company-editable fields of a post
type Attributes struct {
	Title          string          `json:"title"`
	Description    json.RawMessage `json:"description"`
	Location       string          `json:"location"`
	EmploymentType string          `json:"employment_type"`
	SalaryFrom     int64           `json:"salary_from"`
	SalaryTo       int64           `json:"salary_to"`
	Benefits       []string        `json:"benefits"`
	DurationDays   int             `json:"listing_duration_days"`
}

const maxBenefits = 50

// Normalize trims text fields, lowercases the employment type and dedupes benefits
func (a *Attributes) Normalize() {
	a.Title = strings.TrimSpace(a.Title)
	a.Location = strings.TrimSpace(a.Location)
	a.EmploymentType = strings.ToLower(strings.TrimSpace(a.EmploymentType))

	seen := make(map[string]bool, len(a.Benefits))
	benefits := make([]string, 0, len(a.Benefits))
	for _, b := range a.Benefits {
		b = strings.TrimSpace(b)
		if b == "" || seen[b] {
			continue
		}
		seen[b] = true
		benefits = append(benefits, b)
	}
	a.Benefits = benefits
}

// Validate checks shape and ranges, and that the duration is one of tiers
func (a *Attributes) Validate(tiers Tiers) error {
	if err := a.validateFields(); err != nil {
		return err
	}
	return a.validateDuration(tiers)
}

func (a *Attributes) validateFields() error {
	if a.Title == "" {
		return errors.NewValidationError("title is required")
	}
	if len(a.Title) > 200 {
		return errors.NewValidationError("title must be at most 200 characters")
	}
	if err := validateDescription(a.Description); err != nil {
		return err
	}
	if a.Location == "" {
		return errors.NewValidationError("location is required")
	}
	if a.EmploymentType == "" {
		return errors.NewValidationError("employment_type is required")
	}
	if a.SalaryFrom < 0 || a.SalaryTo < 0 {
		return errors.NewValidationError("salary must not be negative")
	}
	if a.SalaryFrom > a.SalaryTo {
		return errors.NewValidationError("salary_from (%d) must not exceed salary_to (%d)", a.SalaryFrom, a.SalaryTo)
	}
	if len(a.Benefits) > maxBenefits {
		return errors.NewValidationError("at most %d benefits", maxBenefits)
	}
	return nil
}

func (a *Attributes) validateDuration(tiers Tiers) error {
	if _, ok := tiers.Lookup(a.DurationDays); !ok {
		return errors.WithHintf(
			errors.NewValidationError("listing duration %d days is not offered", a.DurationDays),
			"offered durations: %v", tiers.Days())
	}
	return nil
}

// validateDescription requires a JSON document (object or array), or a plain JSON string
func validateDescription(raw json.RawMessage) error {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" || trimmed == `""` {
		return errors.NewValidationError("description is required")
	}
	if !json.Valid([]byte(trimmed)) {
		return errors.NewValidationError("description must be a JSON document")
	}
	switch trimmed[0] {
	case '{', '[', '"':
		return nil
	}
	return errors.NewValidationError("description must be a JSON document")
}

// apply copies attrs onto p
func (p *Post) apply(a Attributes) {
	p.Title = a.Title
	p.Description = json.RawMessage(strings.TrimSpace(string(a.Description)))
	p.Location = a.Location
	p.EmploymentType = a.EmploymentType
	p.SalaryFrom = a.SalaryFrom
	p.SalaryTo = a.SalaryTo
	p.Benefits = a.Benefits
	p.DurationDays = a.DurationDays
}

// Expiry is when a post activated at activatedAt stops being listed
func (p *Post) Expiry(activatedAt time.Time) time.Time {
	return activatedAt.AddDate(0, 0, p.DurationDays)
}
