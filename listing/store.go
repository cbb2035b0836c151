package listing

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/teranos/vacancy/db"
	"github.com/teranos/vacancy/errors"
)

// Store persists job posts. Every status transition is a single conditional
// UPDATE guarded by the expected current status; callers inspect the returned
// bool instead of reading first.
type Store struct {
	db *sql.DB
}

// NewStore creates a new listing store
func NewStore(database *sql.DB) *Store {
	return &Store{db: database}
}

const postColumns = `
	p.id, p.company_id, p.title, p.description, p.location, p.employment_type,
	p.salary_from, p.salary_to, p.benefits, p.listing_duration_days, p.status,
	p.expiration_task_id, p.activated_at, p.expires_at, p.closed_at, p.created_at, p.updated_at`

// Insert persists a new post in PENDING_PAYMENT
func (s *Store) Insert(ctx context.Context, p *Post) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.Status = StatusPendingPayment
	p.CreatedAt, p.UpdatedAt = now, now

	benefits, err := encodeBenefits(p.Benefits)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO job_posts (
			id, company_id, title, description, location, employment_type,
			salary_from, salary_to, benefits, listing_duration_days, status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.CompanyID, p.Title, string(p.Description), p.Location, p.EmploymentType,
		p.SalaryFrom, p.SalaryTo, benefits, p.DurationDays, p.Status,
		db.FormatTime(now), db.FormatTime(now))
	if err != nil {
		return errors.Wrap(err, "failed to insert job post")
	}
	return nil
}

// Get retrieves a post by ID in any status
func (s *Store) Get(ctx context.Context, id string) (*Post, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM job_posts p WHERE p.id = ?`, id)
	p, err := scanPost(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("job post %s", id)
	}
	return p, err
}

// Activate moves a post from PENDING_PAYMENT to ACTIVE.
// Returns false when the post was not PENDING_PAYMENT.
func (s *Store) Activate(ctx context.Context, id string, activatedAt, expiresAt time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE job_posts
		SET status = ?, activated_at = ?, expires_at = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		StatusActive, db.FormatTime(activatedAt), db.FormatTime(expiresAt), db.FormatTime(time.Now()),
		id, StatusPendingPayment)
	if err != nil {
		return false, errors.Wrapf(err, "failed to activate job post %s", id)
	}
	return rowsChanged(res)
}

// SetExpirationTask records the scheduler handle for an active post
func (s *Store) SetExpirationTask(ctx context.Context, id, taskID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE job_posts SET expiration_task_id = ?, updated_at = ?
		WHERE id = ? AND (expiration_task_id IS NULL OR expiration_task_id != ?)`,
		taskID, db.FormatTime(time.Now()), id, taskID)
	if err != nil {
		return errors.Wrapf(err, "failed to record expiration task for job post %s", id)
	}
	return nil
}

// Expire moves an ACTIVE post to EXPIRED. Returns false for any other status.
func (s *Store) Expire(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE job_posts SET status = ?, closed_at = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		StatusExpired, db.FormatTime(at), db.FormatTime(at), id, StatusActive)
	if err != nil {
		return false, errors.Wrapf(err, "failed to expire job post %s", id)
	}
	return rowsChanged(res)
}

// Cancel moves a PENDING_PAYMENT or ACTIVE post to CANCELLED
func (s *Store) Cancel(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE job_posts SET status = ?, closed_at = ?, updated_at = ?
		WHERE id = ? AND status IN (?, ?)`,
		StatusCancelled, db.FormatTime(at), db.FormatTime(at), id, StatusPendingPayment, StatusActive)
	if err != nil {
		return false, errors.Wrapf(err, "failed to cancel job post %s", id)
	}
	return rowsChanged(res)
}

// TouchCheckout records a checkout initiation on a PENDING_PAYMENT post so the
// abandoned-draft sweep measures from the latest attempt.
func (s *Store) TouchCheckout(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE job_posts SET updated_at = ?
		WHERE id = ? AND status = ?`,
		db.FormatTime(at), id, StatusPendingPayment)
	if err != nil {
		return errors.Wrapf(err, "failed to record checkout for job post %s", id)
	}
	return nil
}

// CancelStalePending cancels every PENDING_PAYMENT post untouched since cutoff.
// Returns the ids it cancelled.
func (s *Store) CancelStalePending(ctx context.Context, cutoff, at time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		UPDATE job_posts SET status = ?, closed_at = ?, updated_at = ?
		WHERE status = ? AND updated_at <= ?
		RETURNING id`,
		StatusCancelled, db.FormatTime(at), db.FormatTime(at), StatusPendingPayment, db.FormatTime(cutoff))
	if err != nil {
		return nil, errors.Wrap(err, "failed to cancel stale drafts")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Update overwrites the editable fields of a post that is still in status.
// Returns false when the status changed since the caller read it.
func (s *Store) Update(ctx context.Context, p *Post, status Status) (bool, error) {
	benefits, err := encodeBenefits(p.Benefits)
	if err != nil {
		return false, err
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE job_posts
		SET title = ?, description = ?, location = ?, employment_type = ?,
		    salary_from = ?, salary_to = ?, benefits = ?, listing_duration_days = ?, updated_at = ?
		WHERE id = ? AND company_id = ? AND status = ?`,
		p.Title, string(p.Description), p.Location, p.EmploymentType,
		p.SalaryFrom, p.SalaryTo, benefits, p.DurationDays, db.FormatTime(now),
		p.ID, p.CompanyID, status)
	if err != nil {
		return false, errors.Wrapf(err, "failed to update job post %s", p.ID)
	}
	p.UpdatedAt = now
	return rowsChanged(res)
}

// Query filters public listings. Zero values mean "no filter".
type Query struct {
	TitleKeywords  []string // Any keyword contained in the title matches
	Location       string   // Contained in location
	EmploymentType string   // Contained in employment type
	SalaryMin      int64    // Posts paying up to at least this much
	SalaryMax      int64    // Posts starting at or below this
	CompanyID      string
	Limit          int
	Offset         int
}

const defaultListLimit = 50

// ListActive returns ACTIVE posts matching q, newest first
func (s *Store) ListActive(ctx context.Context, q Query) ([]*Listing, error) {
	var where []string
	var args []interface{}

	where = append(where, "p.status = ?")
	args = append(args, StatusActive)

	if len(q.TitleKeywords) > 0 {
		var ors []string
		for _, kw := range q.TitleKeywords {
			ors = append(ors, `p.title LIKE ? ESCAPE '\'`)
			args = append(args, containsPattern(kw))
		}
		where = append(where, "("+strings.Join(ors, " OR ")+")")
	}
	if q.Location != "" {
		where = append(where, `p.location LIKE ? ESCAPE '\'`)
		args = append(args, containsPattern(q.Location))
	}
	if q.EmploymentType != "" {
		where = append(where, `p.employment_type LIKE ? ESCAPE '\'`)
		args = append(args, containsPattern(q.EmploymentType))
	}
	if q.SalaryMin > 0 {
		where = append(where, "p.salary_to >= ?")
		args = append(args, q.SalaryMin)
	}
	if q.SalaryMax > 0 {
		where = append(where, "p.salary_from <= ?")
		args = append(args, q.SalaryMax)
	}
	if q.CompanyID != "" {
		where = append(where, "p.company_id = ?")
		args = append(args, q.CompanyID)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	args = append(args, limit, q.Offset)

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+postColumns+`,
			c.name, c.logo_url, c.location,
			(SELECT COUNT(*) FROM job_applications a WHERE a.job_post_id = p.id)
		FROM job_posts p
		JOIN companies c ON c.id = p.company_id
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY p.created_at DESC
		LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list active job posts")
	}
	defer rows.Close()

	var listings []*Listing
	for rows.Next() {
		l := &Listing{}
		p, err := scanPost(rows, &l.CompanyName, &l.CompanyLogoURL, &l.CompanyLocation, &l.ApplicationCount)
		if err != nil {
			return nil, err
		}
		l.Post = p
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

// CompanyPost is a post as its owner sees it in the dashboard
type CompanyPost struct {
	*Post
	ApplicationCount int `json:"application_count"`
}

// ListByCompany returns every post of a company in any status, newest first
func (s *Store) ListByCompany(ctx context.Context, companyID string) ([]*CompanyPost, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+postColumns+`,
			(SELECT COUNT(*) FROM job_applications a WHERE a.job_post_id = p.id)
		FROM job_posts p
		WHERE p.company_id = ?
		ORDER BY p.created_at DESC`, companyID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list company job posts")
	}
	defer rows.Close()

	var posts []*CompanyPost
	for rows.Next() {
		cp := &CompanyPost{}
		p, err := scanPost(rows, &cp.ApplicationCount)
		if err != nil {
			return nil, err
		}
		cp.Post = p
		posts = append(posts, cp)
	}
	return posts, rows.Err()
}

// Stats summarises a company's posting activity
type Stats struct {
	TotalPosts        int `json:"total_posts"`
	ActivePosts       int `json:"active_posts"`
	PendingPosts      int `json:"pending_posts"`
	TotalApplications int `json:"total_applications"`
}

// CompanyStats computes dashboard counters for a company
func (s *Store) CompanyStats(ctx context.Context, companyID string) (*Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
			(SELECT COUNT(*) FROM job_applications a
			 JOIN job_posts jp ON jp.id = a.job_post_id
			 WHERE jp.company_id = ?)
		FROM job_posts WHERE company_id = ?`,
		StatusActive, StatusPendingPayment, companyID, companyID).
		Scan(&st.TotalPosts, &st.ActivePosts, &st.PendingPosts, &st.TotalApplications)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to compute stats for company %s", companyID)
	}
	return &st, nil
}

// CountByStatus returns post counts keyed by status
func (s *Store) CountByStatus(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM job_posts GROUP BY status`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to count job posts")
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

// scanPost reads postColumns followed by any extra destinations
func scanPost(row rowScanner, extra ...interface{}) (*Post, error) {
	var p Post
	var description, benefits, createdAt, updatedAt string
	var taskID, activatedAt, expiresAt, closedAt sql.NullString

	dest := []interface{}{
		&p.ID, &p.CompanyID, &p.Title, &description, &p.Location, &p.EmploymentType,
		&p.SalaryFrom, &p.SalaryTo, &benefits, &p.DurationDays, &p.Status,
		&taskID, &activatedAt, &expiresAt, &closedAt, &createdAt, &updatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	p.Description = json.RawMessage(description)
	p.ExpirationTaskID = taskID.String
	if err := json.Unmarshal([]byte(benefits), &p.Benefits); err != nil {
		return nil, errors.Wrapf(err, "failed to decode benefits for job post %s", p.ID)
	}

	var err error
	if p.CreatedAt, err = db.ParseTime(createdAt); err != nil {
		return nil, errors.Wrapf(err, "failed to parse created_at for job post %s", p.ID)
	}
	if p.UpdatedAt, err = db.ParseTime(updatedAt); err != nil {
		return nil, errors.Wrapf(err, "failed to parse updated_at for job post %s", p.ID)
	}
	for _, f := range []struct {
		raw sql.NullString
		dst **time.Time
	}{
		{activatedAt, &p.ActivatedAt},
		{expiresAt, &p.ExpiresAt},
		{closedAt, &p.ClosedAt},
	} {
		if !f.raw.Valid {
			continue
		}
		t, err := db.ParseTime(f.raw.String)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse timestamp for job post %s", p.ID)
		}
		*f.dst = &t
	}
	return &p, nil
}

func encodeBenefits(benefits []string) (string, error) {
	if benefits == nil {
		benefits = []string{}
	}
	b, err := json.Marshal(benefits)
	if err != nil {
		return "", errors.Wrap(err, "failed to encode benefits")
	}
	return string(b), nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds a LIKE pattern matching s anywhere, case-insensitively for ASCII
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

func rowsChanged(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "failed to read rows affected")
	}
	return n > 0, nil
}
