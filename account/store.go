package account

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/teranos/vacancy/db"
	"github.com/teranos/vacancy/errors"
)

// Store persists users, companies and job seekers
type Store struct {
	db *sql.DB
}

// NewStore creates a new account store
func NewStore(database *sql.DB) *Store {
	return &Store{db: database}
}

// UpsertUser inserts the user or refreshes email and name of an existing one.
// Type and onboarding state are never touched here.
func (s *Store) UpsertUser(ctx context.Context, u *User) error {
	now := db.FormatTime(time.Now())
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, name, user_type, onboarded, created_at, updated_at)
		VALUES (?, ?, ?, ?, 0, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			email = excluded.email,
			name = excluded.name,
			updated_at = excluded.updated_at`,
		u.ID, u.Email, u.Name, UserTypeUnset, now, now)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return errors.Wrap(errors.ErrConflict, "email already registered to another user")
		}
		return errors.Wrap(err, "failed to upsert user")
	}
	return nil
}

// GetUser retrieves a user by ID
func (s *Store) GetUser(ctx context.Context, id string) (*User, error) {
	var u User
	var onboarded int
	var createdAt, updatedAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, name, user_type, onboarded, created_at, updated_at
		FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Email, &u.Name, &u.Type, &onboarded, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("user %s", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get user %s", id)
	}
	u.Onboarded = onboarded == 1
	if u.CreatedAt, err = db.ParseTime(createdAt); err != nil {
		return nil, errors.Wrapf(err, "failed to parse created_at for user %s", id)
	}
	if u.UpdatedAt, err = db.ParseTime(updatedAt); err != nil {
		return nil, errors.Wrapf(err, "failed to parse updated_at for user %s", id)
	}
	return &u, nil
}

// InsertCompany creates the company and marks its owner onboarded as COMPANY in one transaction.
// Fails with ErrNotEligible when the owner has already onboarded.
func (s *Store) InsertCompany(ctx context.Context, c *Company) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := claimUserType(ctx, tx, c.OwnerUserID, UserTypeCompany, now); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO companies (id, owner_user_id, name, location, about, logo_url, website, x_account, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID, c.OwnerUserID, c.Name, c.Location, c.About, c.LogoURL, c.Website, c.XAccount,
			db.FormatTime(now), db.FormatTime(now))
		if db.IsUniqueViolation(err) {
			return errors.NewNotEligibleError("user %s already has a company", c.OwnerUserID)
		}
		return errors.Wrap(err, "failed to insert company")
	})
}

// InsertJobSeeker creates the profile and marks its user onboarded as JOB_SEEKER in one transaction.
func (s *Store) InsertJobSeeker(ctx context.Context, js *JobSeeker) error {
	if js.ID == "" {
		js.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	js.CreatedAt, js.UpdatedAt = now, now

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := claimUserType(ctx, tx, js.UserID, UserTypeJobSeeker, now); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO job_seekers (id, user_id, name, about, resume_url, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			js.ID, js.UserID, js.Name, js.About, js.ResumeURL, db.FormatTime(now), db.FormatTime(now))
		if db.IsUniqueViolation(err) {
			return errors.NewNotEligibleError("user %s already has a job seeker profile", js.UserID)
		}
		return errors.Wrap(err, "failed to insert job seeker")
	})
}

// claimUserType moves a user from UNSET to t. Only one onboarding path can win.
func claimUserType(ctx context.Context, tx *sql.Tx, userID string, t UserType, now time.Time) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE users SET user_type = ?, onboarded = 1, updated_at = ?
		WHERE id = ? AND user_type = ?`,
		t, db.FormatTime(now), userID, UserTypeUnset)
	if err != nil {
		return errors.Wrapf(err, "failed to set user type for %s", userID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to read rows affected")
	}
	if n == 1 {
		return nil
	}

	var current UserType
	err = tx.QueryRowContext(ctx, `SELECT user_type FROM users WHERE id = ?`, userID).Scan(&current)
	if err == sql.ErrNoRows {
		return errors.NewNotFoundError("user %s", userID)
	}
	if err != nil {
		return errors.Wrapf(err, "failed to get user %s", userID)
	}
	return errors.NewNotEligibleError("user %s already onboarded as %s", userID, current)
}

const companyColumns = `id, owner_user_id, name, location, about, logo_url, website, x_account,
	billing_customer_id, created_at, updated_at`

// GetCompany retrieves a company by ID
func (s *Store) GetCompany(ctx context.Context, id string) (*Company, error) {
	return s.queryCompany(ctx, `SELECT `+companyColumns+` FROM companies WHERE id = ?`, id)
}

// GetCompanyByOwner retrieves the company owned by a user
func (s *Store) GetCompanyByOwner(ctx context.Context, userID string) (*Company, error) {
	return s.queryCompany(ctx, `SELECT `+companyColumns+` FROM companies WHERE owner_user_id = ?`, userID)
}

// GetCompanyByBillingCustomer resolves a gateway customer reference to its company
func (s *Store) GetCompanyByBillingCustomer(ctx context.Context, customerID string) (*Company, error) {
	return s.queryCompany(ctx, `SELECT `+companyColumns+` FROM companies WHERE billing_customer_id = ?`, customerID)
}

func (s *Store) queryCompany(ctx context.Context, query string, arg string) (*Company, error) {
	var c Company
	var billing sql.NullString
	var createdAt, updatedAt string
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&c.ID, &c.OwnerUserID, &c.Name, &c.Location, &c.About, &c.LogoURL, &c.Website, &c.XAccount,
		&billing, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("company %s", arg)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get company")
	}
	c.BillingCustomerID = billing.String
	if c.CreatedAt, err = db.ParseTime(createdAt); err != nil {
		return nil, errors.Wrapf(err, "failed to parse created_at for company %s", c.ID)
	}
	if c.UpdatedAt, err = db.ParseTime(updatedAt); err != nil {
		return nil, errors.Wrapf(err, "failed to parse updated_at for company %s", c.ID)
	}
	return &c, nil
}

// BindBillingCustomer records the gateway customer for a company if none is set yet.
// Returns the customer id now bound, which is the earlier one if a concurrent call won.
func (s *Store) BindBillingCustomer(ctx context.Context, companyID, customerID string) (string, error) {
	_, err := s.db.ExecContext(ctx, `
		UPDATE companies SET billing_customer_id = ?, updated_at = ?
		WHERE id = ? AND billing_customer_id IS NULL`,
		customerID, db.FormatTime(time.Now()), companyID)
	if err != nil {
		return "", errors.Wrapf(err, "failed to bind billing customer for company %s", companyID)
	}

	c, err := s.GetCompany(ctx, companyID)
	if err != nil {
		return "", err
	}
	return c.BillingCustomerID, nil
}

// GetJobSeekerByUser retrieves the job seeker profile of a user
func (s *Store) GetJobSeekerByUser(ctx context.Context, userID string) (*JobSeeker, error) {
	var js JobSeeker
	var createdAt, updatedAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, about, resume_url, created_at, updated_at
		FROM job_seekers WHERE user_id = ?`, userID).
		Scan(&js.ID, &js.UserID, &js.Name, &js.About, &js.ResumeURL, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("job seeker profile for user %s", userID)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get job seeker for user %s", userID)
	}
	if js.CreatedAt, err = db.ParseTime(createdAt); err != nil {
		return nil, errors.Wrapf(err, "failed to parse created_at for job seeker %s", js.ID)
	}
	if js.UpdatedAt, err = db.ParseTime(updatedAt); err != nil {
		return nil, errors.Wrapf(err, "failed to parse updated_at for job seeker %s", js.ID)
	}
	return &js, nil
}

// CountUsersByType returns user counts keyed by type
func (s *Store) CountUsersByType(ctx context.Context) (map[UserType]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user_type, COUNT(*) FROM users GROUP BY user_type`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to count users")
	}
	defer rows.Close()

	counts := make(map[UserType]int)
	for rows.Next() {
		var t UserType
		var n int
		if err := rows.Scan(&t, &n); err != nil {
			return nil, err
		}
		counts[t] = n
	}
	return counts, rows.Err()
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(), "failed to commit transaction")
}
