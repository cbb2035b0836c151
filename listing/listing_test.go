package listing

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/vacancy/account"
	"github.com/teranos/vacancy/admission"
	"github.com/teranos/vacancy/am"
	"github.com/teranos/vacancy/errors"
	testdb "github.com/teranos/vacancy/internal/testing"
	"github.com/teranos/vacancy/payment"
	"github.com/teranos/vacancy/pulse/schedule"
)

var testReq = admission.Request{ClientKey: "test", UserAgent: "Mozilla/5.0", Path: "/api/posts"}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) PostChanged(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	svc      *Service
	gateway  *payment.Fake
	tasks    *schedule.Store
	registry *schedule.Registry
	ticker   *schedule.Ticker
	events   *recorder
	company  *account.Company
	rival    *account.Company
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	log := zaptest.NewLogger(t).Sugar()
	database := testdb.CreateTestDB(t)
	open := admission.NewEnforcer(nil, log)

	accounts := account.NewService(account.NewStore(database), open, log)
	onboard := func(userID, name string) *account.Company {
		_, err := accounts.Register(ctx, testReq, account.User{ID: userID, Email: userID + "@example.com", Name: name})
		require.NoError(t, err)
		c, err := accounts.CreateCompany(ctx, testReq, userID, account.CompanyInput{
			Name: name, Location: "Remote", About: "A company that hires people.",
		})
		require.NoError(t, err)
		return c
	}

	f := &fixture{
		gateway:  payment.NewFake(""),
		tasks:    schedule.NewStore(database),
		registry: schedule.NewRegistry(),
		events:   &recorder{},
		company:  onboard("owner", "Acme"),
		rival:    onboard("rival", "Globex"),
	}
	f.svc = NewService(NewStore(database), accounts.Store(), f.gateway, schedule.NewDispatcher(f.tasks, log),
		open, f.events, Config{
			Tiers:        TiersFromConfig(am.DefaultTiers),
			PublicURL:    "https://jobs.example.com/",
			AbandonAfter: 72 * time.Hour,
		}, log)
	for _, h := range f.svc.Handlers() {
		f.registry.Register(h)
	}
	f.ticker = schedule.NewTicker(f.tasks, f.registry, schedule.DefaultTickerConfig(), log)
	return f
}

func validAttrs() Attributes {
	return Attributes{
		Title:          "Senior Go Developer",
		Description:    json.RawMessage(`{"type":"doc","content":[{"type":"paragraph","content":[{"type":"text","text":"Build things."}]}]}`),
		Location:       "Berlin",
		EmploymentType: "Full-Time",
		SalaryFrom:     70000,
		SalaryTo:       90000,
		Benefits:       []string{"401k", "remote", "401k"},
		DurationDays:   30,
	}
}

// draft creates a post and returns it with the session the fake gateway recorded
func (f *fixture) draft(t *testing.T) (*Post, string) {
	t.Helper()
	before := f.gateway.Sessions()
	checkout, err := f.svc.CreateDraft(context.Background(), testReq, f.company.ID, validAttrs())
	require.NoError(t, err)
	for id := range f.gateway.Sessions() {
		if _, seen := before[id]; !seen {
			return checkout.Post, id
		}
	}
	t.Fatal("no checkout session recorded")
	return nil, ""
}

func (f *fixture) confirm(t *testing.T, sessionID string) ([]byte, string) {
	t.Helper()
	body, sig, err := f.gateway.CompleteSession(sessionID)
	require.NoError(t, err)
	require.NoError(t, f.svc.ConfirmPayment(context.Background(), body, sig))
	return body, sig
}

func (f *fixture) status(t *testing.T, postID string) Status {
	t.Helper()
	p, err := f.svc.Store().Get(context.Background(), postID)
	require.NoError(t, err)
	return p.Status
}

func TestCreateDraft(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	checkout, err := f.svc.CreateDraft(ctx, testReq, f.company.ID, validAttrs())
	require.NoError(t, err)
	post := checkout.Post

	assert.Equal(t, StatusPendingPayment, post.Status)
	assert.Equal(t, "full-time", post.EmploymentType)
	assert.Equal(t, []string{"401k", "remote"}, post.Benefits)
	assert.Contains(t, checkout.RedirectURL, "https://jobs.example.com/payment/success")

	sessions := f.gateway.Sessions()
	require.Len(t, sessions, 1)
	for _, req := range sessions {
		assert.Equal(t, post.ID, req.JobPostID)
		assert.Equal(t, "Job Posting - 30 Days", req.Item.Name)
		assert.Equal(t, int64(5900), req.Item.AmountCents)
		assert.Equal(t, "usd", req.Currency)
		assert.Equal(t, "https://jobs.example.com/payment/cancel", req.CancelURL)
	}

	// Drafts are never listed
	listings, err := f.svc.ListActive(ctx, Query{})
	require.NoError(t, err)
	assert.Empty(t, listings)

	// Billing customer is bound once and reused
	_, err = f.svc.CreateDraft(ctx, testReq, f.company.ID, validAttrs())
	require.NoError(t, err)
	assert.Equal(t, 1, f.gateway.CustomerCount())
}

func TestCreateDraft_Validation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		mutate func(a *Attributes)
	}{
		{"salary inverted", func(a *Attributes) { a.SalaryFrom, a.SalaryTo = 100, 50 }},
		{"negative salary", func(a *Attributes) { a.SalaryFrom = -1 }},
		{"duration not offered", func(a *Attributes) { a.DurationDays = 45 }},
		{"missing title", func(a *Attributes) { a.Title = "  " }},
		{"missing description", func(a *Attributes) { a.Description = nil }},
		{"description not json", func(a *Attributes) { a.Description = json.RawMessage(`<p>hi</p>`) }},
		{"description is a number", func(a *Attributes) { a.Description = json.RawMessage(`42`) }},
		{"missing location", func(a *Attributes) { a.Location = "" }},
		{"missing employment type", func(a *Attributes) { a.EmploymentType = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attrs := validAttrs()
			tt.mutate(&attrs)
			_, err := f.svc.CreateDraft(context.Background(), testReq, f.company.ID, attrs)
			assert.True(t, errors.IsValidationError(err), "got %v", err)
		})
	}
	assert.Empty(t, f.gateway.Sessions())
}

func TestCreateDraft_CheckoutFailureLeavesRecoverableDraft(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.gateway.FailCheckout = errors.New("processor unavailable")

	checkout, err := f.svc.CreateDraft(ctx, testReq, f.company.ID, validAttrs())
	require.Error(t, err)
	require.NotNil(t, checkout)
	assert.Empty(t, checkout.RedirectURL)
	assert.Equal(t, StatusPendingPayment, f.status(t, checkout.Post.ID))

	f.gateway.FailCheckout = nil
	retry, err := f.svc.InitiatePayment(ctx, testReq, checkout.Post.ID, f.company.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, retry.RedirectURL)

	_, err = f.svc.InitiatePayment(ctx, testReq, checkout.Post.ID, f.rival.ID)
	assert.ErrorIs(t, err, errors.ErrAuthorization)
}

func TestCreateDraft_MissingTierIsConfigurationError(t *testing.T) {
	f := newFixture(t)
	post, _ := f.draft(t)

	// Pricing table shrinks after the draft was validated
	require.NoError(t, f.svc.SetTiers(Tiers{{Days: 60, PriceCents: 9900}}))
	_, err := f.svc.InitiatePayment(context.Background(), testReq, post.ID, f.company.ID)
	assert.ErrorIs(t, err, errors.ErrConfiguration)
}

func TestSetTiers_RepricesPendingCheckout(t *testing.T) {
	f := newFixture(t)
	post, _ := f.draft(t)

	assert.ErrorIs(t, f.svc.SetTiers(nil), errors.ErrConfiguration)

	require.NoError(t, f.svc.SetTiers(Tiers{{Days: 30, PriceCents: 7500}}))
	before := f.gateway.Sessions()
	_, err := f.svc.InitiatePayment(context.Background(), testReq, post.ID, f.company.ID)
	require.NoError(t, err)

	var repriced int64
	for id, req := range f.gateway.Sessions() {
		if _, seen := before[id]; !seen {
			repriced = req.Item.AmountCents
		}
	}
	assert.Equal(t, int64(7500), repriced)
}

func TestConfirmPayment_ActivatesAndSchedulesExpiration(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	post, session := f.draft(t)

	before := time.Now()
	f.confirm(t, session)

	active, err := f.svc.Store().Get(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, active.Status)
	require.NotNil(t, active.ActivatedAt)
	require.NotNil(t, active.ExpiresAt)
	assert.NotEmpty(t, active.ExpirationTaskID)

	task, err := f.tasks.GetByKey(ctx, TaskExpire, post.ID)
	require.NoError(t, err)
	assert.Equal(t, active.ExpirationTaskID, task.ID)
	assert.WithinDuration(t, before.AddDate(0, 0, 30), task.RunAt, 5*time.Second)
	assert.JSONEq(t, `{"job_post_id":"`+post.ID+`"}`, string(task.Payload))

	listings, err := f.svc.ListActive(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, "Acme", listings[0].CompanyName)

	assert.Equal(t, []string{EventActivated}, f.events.types())
}

func TestConfirmPayment_ReplayIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	post, session := f.draft(t)

	body, sig := f.confirm(t, session)
	first, err := f.svc.Store().Get(ctx, post.ID)
	require.NoError(t, err)

	// Same delivery again, then a fresh delivery for the same session
	require.NoError(t, f.svc.ConfirmPayment(ctx, body, sig))
	f.confirm(t, session)

	again, err := f.svc.Store().Get(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, again.Status)
	assert.Equal(t, first.ActivatedAt, again.ActivatedAt)

	tasks, err := f.tasks.List(ctx, "", 100)
	require.NoError(t, err)
	assert.Len(t, tasks, 1, "replays must not schedule a second expiration")
	assert.Equal(t, []string{EventActivated}, f.events.types())
}

func TestConfirmPayment_TamperedSignature(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	post, session := f.draft(t)

	body, sig, err := f.gateway.CompleteSession(session)
	require.NoError(t, err)

	err = f.svc.ConfirmPayment(ctx, body, sig+"0")
	assert.ErrorIs(t, err, errors.ErrAuthenticity)
	err = f.svc.ConfirmPayment(ctx, append(body, ' '), sig)
	assert.ErrorIs(t, err, errors.ErrAuthenticity)

	assert.Equal(t, StatusPendingPayment, f.status(t, post.ID))
	tasks, err := f.tasks.List(ctx, "", 10)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestConfirmPayment_Reconciliation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	post, _ := f.draft(t)

	// The owner's bound customer
	owner, err := f.svc.directory.GetCompany(ctx, f.company.ID)
	require.NoError(t, err)
	require.NotEmpty(t, owner.BillingCustomerID)

	// Rival needs a customer too
	_, err = f.svc.directory.BindBillingCustomer(ctx, f.rival.ID, "cus_rival")
	require.NoError(t, err)

	tests := []struct {
		name     string
		customer string
		metadata map[string]string
		want     error
	}{
		{"missing job id", owner.BillingCustomerID, map[string]string{}, errors.ErrCorrelation},
		{"unknown customer", "cus_nobody", map[string]string{payment.MetadataJobID: post.ID}, errors.ErrReconciliation},
		{"missing customer", "", map[string]string{payment.MetadataJobID: post.ID}, errors.ErrReconciliation},
		{"unknown post", owner.BillingCustomerID, map[string]string{payment.MetadataJobID: "no-such-post"}, errors.ErrReconciliation},
		{"post of another company", "cus_rival", map[string]string{payment.MetadataJobID: post.ID}, errors.ErrReconciliation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, sig, err := f.gateway.SignEvent("evt_"+tt.name, payment.EventCheckoutCompleted, "cs_x", tt.customer, tt.metadata)
			require.NoError(t, err)
			err = f.svc.ConfirmPayment(ctx, body, sig)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Equal(t, StatusPendingPayment, f.status(t, post.ID))
}

func TestConfirmPayment_IgnoresOtherEventTypes(t *testing.T) {
	f := newFixture(t)
	post, _ := f.draft(t)

	body, sig, err := f.gateway.SignEvent("evt_1", "payment_intent.created", "cs_x", "", nil)
	require.NoError(t, err)
	require.NoError(t, f.svc.ConfirmPayment(context.Background(), body, sig))
	assert.Equal(t, StatusPendingPayment, f.status(t, post.ID))
}

func TestConfirmPayment_AfterCancelDoesNotResurrect(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	post, session := f.draft(t)

	require.NoError(t, f.svc.Cancel(ctx, testReq, post.ID, f.company.ID))
	f.confirm(t, session)

	assert.Equal(t, StatusCancelled, f.status(t, post.ID))
	tasks, err := f.tasks.List(ctx, "", 10)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestCancel(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	post, session := f.draft(t)
	f.confirm(t, session)

	err := f.svc.Cancel(ctx, testReq, post.ID, f.rival.ID)
	assert.ErrorIs(t, err, errors.ErrAuthorization)
	assert.Equal(t, StatusActive, f.status(t, post.ID))

	require.NoError(t, f.svc.Cancel(ctx, testReq, post.ID, f.company.ID))
	assert.Equal(t, StatusCancelled, f.status(t, post.ID))

	task, err := f.tasks.GetByKey(ctx, TaskExpire, post.ID)
	require.NoError(t, err)
	assert.Equal(t, schedule.StateCancelled, task.State)

	// Idempotent
	require.NoError(t, f.svc.Cancel(ctx, testReq, post.ID, f.company.ID))
	assert.Equal(t, []string{EventActivated, EventCancelled}, f.events.types())

	err = f.svc.Cancel(ctx, testReq, "missing", f.company.ID)
	assert.True(t, errors.IsNotFoundError(err))
}

func TestExpire(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	post, session := f.draft(t)
	f.confirm(t, session)

	// The ticker fires the scheduled task once the listing period has passed
	n, err := f.ticker.RunDue(ctx, time.Now().AddDate(0, 0, 31))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, StatusExpired, f.status(t, post.ID))

	listings, err := f.svc.ListActive(ctx, Query{})
	require.NoError(t, err)
	assert.Empty(t, listings)

	// Late or repeated firing is a no-op
	require.NoError(t, f.svc.Expire(ctx, post.ID))
	assert.Equal(t, []string{EventActivated, EventExpired}, f.events.types())

	// Expired posts cannot be cancelled
	err = f.svc.Cancel(ctx, testReq, post.ID, f.company.ID)
	assert.ErrorIs(t, err, errors.ErrNotEligible)
}

func TestExpire_AfterCancelIsNoop(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	post, session := f.draft(t)
	f.confirm(t, session)
	require.NoError(t, f.svc.Cancel(ctx, testReq, post.ID, f.company.ID))

	require.NoError(t, f.svc.Expire(ctx, post.ID))
	assert.Equal(t, StatusCancelled, f.status(t, post.ID))

	require.NoError(t, f.svc.Expire(ctx, "deleted-post"))
}

func TestEdit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	post, session := f.draft(t)

	attrs := validAttrs()
	attrs.Title = "Staff Go Developer"
	attrs.DurationDays = 60
	edited, err := f.svc.Edit(ctx, testReq, post.ID, f.company.ID, attrs)
	require.NoError(t, err)
	assert.Equal(t, "Staff Go Developer", edited.Title)
	assert.Equal(t, 60, edited.DurationDays)

	_, err = f.svc.Edit(ctx, testReq, post.ID, f.rival.ID, attrs)
	assert.ErrorIs(t, err, errors.ErrAuthorization)

	f.confirm(t, session)

	attrs.Title = "Principal Go Developer"
	_, err = f.svc.Edit(ctx, testReq, post.ID, f.company.ID, attrs)
	require.NoError(t, err)

	attrs.DurationDays = 90
	_, err = f.svc.Edit(ctx, testReq, post.ID, f.company.ID, attrs)
	assert.ErrorIs(t, err, errors.ErrNotEligible)

	got, err := f.svc.Store().Get(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "Principal Go Developer", got.Title)
	assert.Equal(t, 60, got.DurationDays)

	// Activation used the edited 60-day duration
	require.NotNil(t, got.ExpiresAt)
	assert.WithinDuration(t, got.ActivatedAt.AddDate(0, 0, 60), *got.ExpiresAt, time.Second)
}

func TestEdit_ActivePostSurvivesTierChange(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	post, session := f.draft(t)
	f.confirm(t, session)
	draft, _ := f.draft(t)

	// The 30-day tier both posts were created with is withdrawn
	require.NoError(t, f.svc.SetTiers(Tiers{{Days: 60, PriceCents: 9900}}))

	attrs := validAttrs()
	attrs.Title = "Senior Go Developer (remote)"
	edited, err := f.svc.Edit(ctx, testReq, post.ID, f.company.ID, attrs)
	require.NoError(t, err)
	assert.Equal(t, "Senior Go Developer (remote)", edited.Title)
	assert.Equal(t, StatusActive, edited.Status)

	_, err = f.svc.Edit(ctx, testReq, draft.ID, f.company.ID, validAttrs())
	assert.True(t, errors.IsValidationError(err), "drafts are still priced from the current table")
}

func TestGetVisibility(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	post, session := f.draft(t)

	_, err := f.svc.Get(ctx, post.ID, "")
	assert.True(t, errors.IsNotFoundError(err), "drafts are hidden from the public")
	_, err = f.svc.Get(ctx, post.ID, f.rival.ID)
	assert.True(t, errors.IsNotFoundError(err))

	got, err := f.svc.Get(ctx, post.ID, f.company.ID)
	require.NoError(t, err)
	assert.Equal(t, post.ID, got.ID)

	f.confirm(t, session)
	_, err = f.svc.Get(ctx, post.ID, "")
	require.NoError(t, err)
}

func TestReapAbandoned(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	stale, _ := f.draft(t)
	paid, session := f.draft(t)
	f.confirm(t, session)

	n, err := f.svc.ReapAbandoned(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "fresh drafts are kept")

	f.svc.clock = func() time.Time { return time.Now().Add(73 * time.Hour) }
	n, err = f.svc.ReapAbandoned(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Equal(t, StatusCancelled, f.status(t, stale.ID))
	assert.Equal(t, StatusActive, f.status(t, paid.ID))
}

func TestReapAbandoned_CountsFromLastCheckout(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	post, _ := f.draft(t)
	start := time.Now()

	// Checkout retried shortly before the draft would have been reaped
	f.svc.clock = func() time.Time { return start.Add(70 * time.Hour) }
	_, err := f.svc.InitiatePayment(ctx, testReq, post.ID, f.company.ID)
	require.NoError(t, err)

	f.svc.clock = func() time.Time { return start.Add(73 * time.Hour) }
	n, err := f.svc.ReapAbandoned(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "the retried checkout is still live")
	assert.Equal(t, StatusPendingPayment, f.status(t, post.ID))

	f.svc.clock = func() time.Time { return start.Add(143 * time.Hour) }
	n, err = f.svc.ReapAbandoned(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, StatusCancelled, f.status(t, post.ID))
}

func TestCompanyDashboard(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, _ = f.draft(t)
	_, session := f.draft(t)
	f.confirm(t, session)

	posts, err := f.svc.ListByCompany(ctx, f.company.ID)
	require.NoError(t, err)
	assert.Len(t, posts, 2)

	stats, err := f.svc.CompanyStats(ctx, f.company.ID)
	require.NoError(t, err)
	assert.Equal(t, &Stats{TotalPosts: 2, ActivePosts: 1, PendingPosts: 1}, stats)

	stats, err = f.svc.CompanyStats(ctx, f.rival.ID)
	require.NoError(t, err)
	assert.Equal(t, &Stats{}, stats)

	counts, err := f.svc.Store().CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[StatusActive])
}

func TestListActiveFilters(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	mk := func(title, location, employment string, from, to int64) {
		attrs := validAttrs()
		attrs.Title, attrs.Location, attrs.EmploymentType = title, location, employment
		attrs.SalaryFrom, attrs.SalaryTo = from, to
		checkout, err := f.svc.CreateDraft(ctx, testReq, f.company.ID, attrs)
		require.NoError(t, err)
		for id, req := range f.gateway.Sessions() {
			if req.JobPostID == checkout.Post.ID {
				f.confirm(t, id)
			}
		}
	}
	mk("Backend Engineer", "Berlin, Germany", "full-time", 60000, 80000)
	mk("Frontend Developer", "Remote", "contract", 40000, 50000)
	mk("100% Remote Nurse", "Lisbon", "part-time", 30000, 35000)

	tests := []struct {
		name string
		q    Query
		want []string
	}{
		{"all", Query{}, []string{"100% Remote Nurse", "Frontend Developer", "Backend Engineer"}},
		{"keyword any", Query{TitleKeywords: []string{"engineer", "developer"}}, []string{"Frontend Developer", "Backend Engineer"}},
		{"location contains", Query{Location: "berlin"}, []string{"Backend Engineer"}},
		{"employment type", Query{EmploymentType: "contract"}, []string{"Frontend Developer"}},
		{"salary min", Query{SalaryMin: 45000}, []string{"Frontend Developer", "Backend Engineer"}},
		{"salary range", Query{SalaryMin: 32000, SalaryMax: 45000}, []string{"100% Remote Nurse", "Frontend Developer"}},
		{"literal percent", Query{TitleKeywords: []string{"100%"}}, []string{"100% Remote Nurse"}},
		{"underscore is literal", Query{TitleKeywords: []string{"_"}}, nil},
		{"limit", Query{Limit: 1}, []string{"100% Remote Nurse"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			listings, err := f.svc.ListActive(ctx, tt.q)
			require.NoError(t, err)
			var titles []string
			for _, l := range listings {
				titles = append(titles, l.Title)
			}
			assert.Equal(t, tt.want, titles)
		})
	}
}

func TestAdmissionDenied(t *testing.T) {
	f := newFixture(t)
	f.svc.admission = admission.NewEnforcer(admission.NewShield(nil), zaptest.NewLogger(t).Sugar())

	bot := admission.Request{ClientKey: "x", UserAgent: "python-requests/2.31"}
	_, err := f.svc.CreateDraft(context.Background(), bot, f.company.ID, validAttrs())
	assert.True(t, errors.IsAdmissionDenied(err))

	posts, err := f.svc.ListByCompany(context.Background(), f.company.ID)
	require.NoError(t, err)
	assert.Empty(t, posts)
}
