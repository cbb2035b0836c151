// Package account manages users and their onboarding as a company or a job seeker.
//
// Authentication happens upstream; this package trusts the user id it is given
// and only records who the user is and which side of the board they are on.
package account

import "time"

// UserType records which onboarding path a user completed.
type UserType string

const (
	UserTypeUnset     UserType = "UNSET"
	UserTypeCompany   UserType = "COMPANY"
	UserTypeJobSeeker UserType = "JOB_SEEKER"
)

// User is an authenticated person known to the board.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Type      UserType  `json:"user_type"`
	Onboarded bool      `json:"onboarded"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Company is the employer profile owned by exactly one user.
type Company struct {
	ID                string    `json:"id"`
	OwnerUserID       string    `json:"owner_user_id"`
	Name              string    `json:"name"`
	Location          string    `json:"location"`
	About             string    `json:"about"`
	LogoURL           string    `json:"logo_url,omitempty"`
	Website           string    `json:"website,omitempty"`
	XAccount          string    `json:"x_account,omitempty"`
	BillingCustomerID string    `json:"-"` // Gateway customer reference; never exposed
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// JobSeeker is the applicant profile owned by exactly one user.
type JobSeeker struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	About     string    `json:"about"`
	ResumeURL string    `json:"resume_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Profile is a user with the onboarding record matching their type, if any.
type Profile struct {
	User      *User      `json:"user"`
	Company   *Company   `json:"company,omitempty"`
	JobSeeker *JobSeeker `json:"job_seeker,omitempty"`
}
