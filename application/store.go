package application

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/teranos/vacancy/db"
	"github.com/teranos/vacancy/errors"
)

// activePost is the status a post must hold to take applications or bookmarks
const activePost = "ACTIVE"

// Store persists applications and saved posts. Uniqueness on (user, post) is
// enforced by the schema; inserts report it instead of reading first.
type Store struct {
	db *sql.DB
}

// NewStore creates a new application store
func NewStore(database *sql.DB) *Store {
	return &Store{db: database}
}

const applicationColumns = `
	a.id, a.user_id, a.job_post_id, a.cover_letter, a.resume_url, a.status, a.created_at, a.updated_at`

// Insert creates a PENDING application if, at the moment of the insert, the post is ACTIVE.
// Returns ErrNotFound when the post is missing or not ACTIVE and
// ErrDuplicateApplication when the user already applied.
func (s *Store) Insert(ctx context.Context, a *Application) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	a.Status = StatusPending
	a.CreatedAt, a.UpdatedAt = now, now

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO job_applications (id, user_id, job_post_id, cover_letter, resume_url, status, created_at, updated_at)
		SELECT ?, ?, ?, ?, ?, ?, ?, ?
		WHERE EXISTS (SELECT 1 FROM job_posts WHERE id = ? AND status = ?)`,
		a.ID, a.UserID, a.JobPostID, nullString(a.CoverLetter), nullString(a.ResumeURL), a.Status,
		db.FormatTime(now), db.FormatTime(now),
		a.JobPostID, activePost)
	if db.IsUniqueViolation(err) {
		return errors.NewDuplicateApplicationError("user %s already applied to job post %s", a.UserID, a.JobPostID)
	}
	if err != nil {
		return errors.Wrap(err, "failed to insert application")
	}
	ok, err := rowsChanged(res)
	if err != nil {
		return err
	}
	if !ok {
		return errors.NewNotFoundError("job post %s is not accepting applications", a.JobPostID)
	}
	return nil
}

// Get retrieves an application together with the company owning its post
func (s *Store) Get(ctx context.Context, id string) (*Application, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+applicationColumns+`, p.company_id
		FROM job_applications a
		JOIN job_posts p ON p.id = a.job_post_id
		WHERE a.id = ?`, id)
	a := &Application{}
	err := scanApplication(row, a, &a.companyID)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("application %s", id)
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// PostCompany returns the company owning a post in any status
func (s *Store) PostCompany(ctx context.Context, postID string) (string, error) {
	var companyID string
	err := s.db.QueryRowContext(ctx, `SELECT company_id FROM job_posts WHERE id = ?`, postID).Scan(&companyID)
	if err == sql.ErrNoRows {
		return "", errors.NewNotFoundError("job post %s", postID)
	}
	if err != nil {
		return "", errors.Wrapf(err, "failed to look up job post %s", postID)
	}
	return companyID, nil
}

// Withdraw moves a PENDING application owned by userID to WITHDRAWN.
// Returns false when no such application is PENDING.
func (s *Store) Withdraw(ctx context.Context, id, userID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE job_applications SET status = ?, updated_at = ?
		WHERE id = ? AND user_id = ? AND status = ?`,
		StatusWithdrawn, db.FormatTime(time.Now()), id, userID, StatusPending)
	if err != nil {
		return false, errors.Wrapf(err, "failed to withdraw application %s", id)
	}
	return rowsChanged(res)
}

// SetStatus applies a company decision. Withdrawn applications are final;
// returns false when the application was withdrawn in the meantime.
func (s *Store) SetStatus(ctx context.Context, id string, status Status) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE job_applications SET status = ?, updated_at = ?
		WHERE id = ? AND status != ?`,
		status, db.FormatTime(time.Now()), id, StatusWithdrawn)
	if err != nil {
		return false, errors.Wrapf(err, "failed to update application %s", id)
	}
	return rowsChanged(res)
}

// ListForPost returns the applications to a post with applicant details, newest first
func (s *Store) ListForPost(ctx context.Context, postID string) ([]*Applicant, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+applicationColumns+`, u.name, u.email, COALESCE(js.about, '')
		FROM job_applications a
		JOIN users u ON u.id = a.user_id
		LEFT JOIN job_seekers js ON js.user_id = a.user_id
		WHERE a.job_post_id = ?
		ORDER BY a.created_at DESC`, postID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list applications for job post %s", postID)
	}
	defer rows.Close()

	var out []*Applicant
	for rows.Next() {
		ap := &Applicant{Application: &Application{}}
		if err := scanApplication(rows, ap.Application, &ap.Name, &ap.Email, &ap.About); err != nil {
			return nil, err
		}
		out = append(out, ap)
	}
	return out, rows.Err()
}

// ListForUser returns a user's applications with the post they target, newest first
func (s *Store) ListForUser(ctx context.Context, userID string) ([]*Submitted, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+applicationColumns+`, p.title, c.name, p.status
		FROM job_applications a
		JOIN job_posts p ON p.id = a.job_post_id
		JOIN companies c ON c.id = p.company_id
		WHERE a.user_id = ?
		ORDER BY a.created_at DESC`, userID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list applications of user %s", userID)
	}
	defer rows.Close()

	var out []*Submitted
	for rows.Next() {
		sub := &Submitted{Application: &Application{}}
		if err := scanApplication(rows, sub.Application, &sub.JobTitle, &sub.CompanyName, &sub.PostStatus); err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

// Save bookmarks an ACTIVE post. Returns false when the post is missing or not
// ACTIVE; saving twice is not an error.
func (s *Store) Save(ctx context.Context, userID, postID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO saved_job_posts (id, user_id, job_post_id, created_at)
		SELECT ?, ?, ?, ?
		WHERE EXISTS (SELECT 1 FROM job_posts WHERE id = ? AND status = ?)`,
		uuid.NewString(), userID, postID, db.FormatTime(time.Now()), postID, activePost)
	if db.IsUniqueViolation(err) {
		return true, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "failed to save job post")
	}
	return rowsChanged(res)
}

// Unsave removes a bookmark; removing a missing one is not an error
func (s *Store) Unsave(ctx context.Context, userID, postID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM saved_job_posts WHERE user_id = ? AND job_post_id = ?`, userID, postID)
	if err != nil {
		return errors.Wrap(err, "failed to unsave job post")
	}
	return nil
}

// ListSaved returns a user's bookmarks in any post status, newest first
func (s *Store) ListSaved(ctx context.Context, userID string) ([]*Saved, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sp.id, sp.job_post_id, p.title, p.location, c.name, p.status, sp.created_at
		FROM saved_job_posts sp
		JOIN job_posts p ON p.id = sp.job_post_id
		JOIN companies c ON c.id = p.company_id
		WHERE sp.user_id = ?
		ORDER BY sp.created_at DESC`, userID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list saved job posts of user %s", userID)
	}
	defer rows.Close()

	var out []*Saved
	for rows.Next() {
		sv := &Saved{}
		var savedAt string
		if err := rows.Scan(&sv.ID, &sv.JobPostID, &sv.JobTitle, &sv.Location, &sv.CompanyName, &sv.PostStatus, &savedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan saved job post")
		}
		if sv.SavedAt, err = db.ParseTime(savedAt); err != nil {
			return nil, errors.Wrapf(err, "failed to parse created_at for saved post %s", sv.ID)
		}
		out = append(out, sv)
	}
	return out, rows.Err()
}

// CountByStatus returns application counts keyed by status
func (s *Store) CountByStatus(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM job_applications GROUP BY status`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to count applications")
	}
	defer rows.Close()

	counts := make(map[Status]int)
	for rows.Next() {
		var st Status
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return nil, err
		}
		counts[st] = n
	}
	return counts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanApplication(row rowScanner, a *Application, extra ...interface{}) error {
	var coverLetter, resumeURL sql.NullString
	var createdAt, updatedAt string
	dest := append([]interface{}{
		&a.ID, &a.UserID, &a.JobPostID, &coverLetter, &resumeURL, &a.Status, &createdAt, &updatedAt,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		if err == sql.ErrNoRows {
			return err
		}
		return errors.Wrap(err, "failed to scan application")
	}
	a.CoverLetter = coverLetter.String
	a.ResumeURL = resumeURL.String

	var err error
	if a.CreatedAt, err = db.ParseTime(createdAt); err != nil {
		return errors.Wrapf(err, "failed to parse created_at for application %s", a.ID)
	}
	if a.UpdatedAt, err = db.ParseTime(updatedAt); err != nil {
		return errors.Wrapf(err, "failed to parse updated_at for application %s", a.ID)
	}
	return nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func rowsChanged(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "failed to read rows affected")
	}
	return n > 0, nil
}
