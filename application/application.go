// Package application runs the job application review workflow and the
// job seekers' saved-post bookmarks.
//
// An application is created against an ACTIVE post only, at most once per
// (user, post), and then moves through the review states at the discretion of
// the company that owns the post. The applicant may only withdraw a PENDING one.
package application

import "time"

// Status is the review state of an application
type Status string

const (
	StatusPending     Status = "PENDING"
	StatusReviewed    Status = "REVIEWED"
	StatusShortlisted Status = "SHORTLISTED"
	StatusRejected    Status = "REJECTED"
	StatusAccepted    Status = "ACCEPTED"
	StatusWithdrawn   Status = "WITHDRAWN" // Applicant-only
)

// companySettable are the statuses a company may set, in any order
var companySettable = map[Status]bool{
	StatusPending:     true,
	StatusReviewed:    true,
	StatusShortlisted: true,
	StatusRejected:    true,
	StatusAccepted:    true,
}

// ParseStatus validates a status a company asked for
func ParseStatus(s string) (Status, bool) {
	st := Status(s)
	return st, companySettable[st]
}

// Application is one job seeker's application to one post
type Application struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	JobPostID   string    `json:"job_post_id"`
	CoverLetter string    `json:"cover_letter,omitempty"`
	ResumeURL   string    `json:"resume_url,omitempty"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	companyID string // owner of the post, filled by lookups that join it
}

// Applicant is an application as the owning company sees it
type Applicant struct {
	*Application
	Name  string `json:"applicant_name"`
	Email string `json:"applicant_email"`
	About string `json:"applicant_about,omitempty"`
}

// Submitted is an application as its applicant sees it
type Submitted struct {
	*Application
	JobTitle    string `json:"job_title"`
	CompanyName string `json:"company_name"`
	PostStatus  string `json:"post_status"`
}

// Saved is a bookmarked post
type Saved struct {
	ID          string    `json:"id"`
	JobPostID   string    `json:"job_post_id"`
	JobTitle    string    `json:"job_title"`
	Location    string    `json:"location"`
	CompanyName string    `json:"company_name"`
	PostStatus  string    `json:"post_status"`
	SavedAt     time.Time `json:"saved_at"`
}
