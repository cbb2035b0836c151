package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/vacancy/account"
	"github.com/teranos/vacancy/admission"
	"github.com/teranos/vacancy/am"
	"github.com/teranos/vacancy/application"
	"github.com/teranos/vacancy/errors"
	testdb "github.com/teranos/vacancy/internal/testing"
	"github.com/teranos/vacancy/listing"
	"github.com/teranos/vacancy/payment"
	"github.com/teranos/vacancy/pulse/schedule"
	"github.com/teranos/vacancy/search"
)

const browserUA = "Mozilla/5.0 (X11; Linux x86_64) Firefox/128.0"

type testServer struct {
	srv     *VacancyServer
	gateway *payment.Fake
	ticker  *schedule.Ticker
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := zaptest.NewLogger(t).Sugar()
	database := testdb.CreateTestDB(t)
	enforcer := admission.NewEnforcer(admission.NewShield(nil), log)

	accounts := account.NewService(account.NewStore(database), enforcer, log)
	gateway := payment.NewFake("")
	tasks := schedule.NewStore(database)
	hub := NewHub(log)
	listings := listing.NewService(listing.NewStore(database), accounts.Store(), gateway,
		schedule.NewDispatcher(tasks, log), enforcer, hub, listing.Config{
			Tiers:     listing.TiersFromConfig(am.DefaultTiers),
			PublicURL: "https://jobs.example.com",
		}, log)
	registry := schedule.NewRegistry()
	for _, h := range listings.Handlers() {
		registry.Register(h)
	}
	ticker := schedule.NewTicker(tasks, registry, schedule.DefaultTickerConfig(), log)

	srv := New(am.ServerConfig{AllowedOrigins: []string{"http://localhost"}}, Deps{
		Accounts:     accounts,
		Listings:     listings,
		Applications: application.NewService(application.NewStore(database), accounts.Store(), enforcer, log),
		Searcher:     search.NewSearcher(listings.Store(), log),
		Admission:    enforcer,
		Hub:          hub,
		Ticker:       ticker,
	}, log)
	srv.StartHub()
	t.Cleanup(func() {
		srv.Stop(context.Background())
	})
	return &testServer{srv: srv, gateway: gateway, ticker: ticker}
}

func (ts *testServer) do(t *testing.T, method, path, user string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("User-Agent", browserUA)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(userHeader, user)
	}
	rec := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func (ts *testServer) onboardCompany(t *testing.T, user string) {
	t.Helper()
	rec := ts.do(t, "POST", "/api/users", user, registerRequest{Email: user + "@example.com", Name: user})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = ts.do(t, "POST", "/api/onboarding/company", user, account.CompanyInput{
		Name: "Acme", Location: "Berlin", About: "We build developer tools.",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func (ts *testServer) onboardSeeker(t *testing.T, user string) {
	t.Helper()
	rec := ts.do(t, "POST", "/api/users", user, registerRequest{Email: user + "@example.com", Name: user})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = ts.do(t, "POST", "/api/onboarding/job-seeker", user, account.JobSeekerInput{
		Name: "Bob", About: "Backend developer for ten years.", ResumeURL: "https://cv.example.com/bob.pdf",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func postBody() map[string]interface{} {
	return map[string]interface{}{
		"title":                 "Senior Go Developer",
		"description":           map[string]interface{}{"type": "doc"},
		"location":              "Berlin",
		"employment_type":       "full-time",
		"salary_from":           70000,
		"salary_to":             90000,
		"benefits":              []string{"remote"},
		"listing_duration_days": 30,
	}
}

// publish drafts a post as user and delivers its payment confirmation
func (ts *testServer) publish(t *testing.T, user string) string {
	t.Helper()
	rec := ts.do(t, "POST", "/api/posts", user, postBody())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var checkout listing.Checkout
	decode(t, rec, &checkout)
	require.NotEmpty(t, checkout.RedirectURL)
	assert.Equal(t, listing.StatusPendingPayment, checkout.Post.Status)

	var sessionID string
	for id, req := range ts.gateway.Sessions() {
		if req.JobPostID == checkout.Post.ID {
			sessionID = id
		}
	}
	require.NotEmpty(t, sessionID)

	body, sig, err := ts.gateway.CompleteSession(sessionID)
	require.NoError(t, err)
	rec = ts.deliver(t, body, sig)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Empty(t, rec.Body.String())
	return checkout.Post.ID
}

func (ts *testServer) deliver(t *testing.T, body []byte, sig string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", "/api/webhook/payment", bytes.NewReader(body))
	req.Header.Set("User-Agent", "Stripe/1.0 (+https://stripe.com/docs/webhooks)")
	if sig != "" {
		req.Header.Set(payment.SignatureHeader, sig)
	}
	rec := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestJobBoardFlow(t *testing.T) {
	ts := newTestServer(t)
	ts.onboardCompany(t, "owner")
	ts.onboardSeeker(t, "bob")

	postID := ts.publish(t, "owner")

	t.Run("active post is public", func(t *testing.T) {
		rec := ts.do(t, "GET", "/api/posts/"+postID, "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var post listing.Post
		decode(t, rec, &post)
		assert.Equal(t, listing.StatusActive, post.Status)
		require.NotNil(t, post.ExpiresAt)

		rec = ts.do(t, "GET", "/api/posts?keywords=go,rust&location=berl", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var listings []*listing.Listing
		decode(t, rec, &listings)
		require.Len(t, listings, 1)
		assert.Equal(t, "Acme", listings[0].CompanyName)
	})

	var appID string
	t.Run("apply once", func(t *testing.T) {
		rec := ts.do(t, "POST", "/api/posts/"+postID+"/applications", "bob", application.ApplyInput{CoverLetter: "Hello"})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var app application.Application
		decode(t, rec, &app)
		assert.Equal(t, application.StatusPending, app.Status)
		assert.Equal(t, "https://cv.example.com/bob.pdf", app.ResumeURL)
		appID = app.ID

		rec = ts.do(t, "POST", "/api/posts/"+postID+"/applications", "bob", application.ApplyInput{})
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("company reviews", func(t *testing.T) {
		rec := ts.do(t, "GET", "/api/posts/"+postID+"/applications", "owner", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var applicants []map[string]interface{}
		decode(t, rec, &applicants)
		require.Len(t, applicants, 1)
		assert.Equal(t, "bob@example.com", applicants[0]["applicant_email"])

		rec = ts.do(t, "GET", "/api/posts/"+postID+"/applications", "bob", nil)
		assert.Equal(t, http.StatusConflict, rec.Code, "job seekers have no company")

		rec = ts.do(t, "PATCH", "/api/applications/"+appID, "owner", statusRequest{Status: "hired"})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		var body map[string]string
		decode(t, rec, &body)
		assert.NotEmpty(t, body["hint"])

		rec = ts.do(t, "PATCH", "/api/applications/"+appID, "owner", statusRequest{Status: "SHORTLISTED"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		rec = ts.do(t, "POST", "/api/applications/"+appID+"/withdraw", "bob", nil)
		assert.Equal(t, http.StatusConflict, rec.Code, "only pending applications can be withdrawn")

		rec = ts.do(t, "GET", "/api/applications", "bob", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var mine []*application.Submitted
		decode(t, rec, &mine)
		require.Len(t, mine, 1)
		assert.Equal(t, application.StatusShortlisted, mine[0].Status)
		assert.Equal(t, "Senior Go Developer", mine[0].JobTitle)
	})

	t.Run("save and search", func(t *testing.T) {
		rec := ts.do(t, "PUT", "/api/posts/"+postID+"/save", "bob", nil)
		require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
		rec = ts.do(t, "PUT", "/api/posts/"+postID+"/save", "bob", nil)
		require.Equal(t, http.StatusNoContent, rec.Code)

		rec = ts.do(t, "GET", "/api/saved", "bob", nil)
		var saved []*application.Saved
		decode(t, rec, &saved)
		require.Len(t, saved, 1)

		rec = ts.do(t, "GET", "/api/search?q=developer+in+Berlin", "", nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var result struct {
			Filters search.Filters   `json:"filters"`
			Results []*search.Result `json:"results"`
		}
		decode(t, rec, &result)
		assert.Equal(t, "Berlin", result.Filters.Location)
		require.Len(t, result.Results, 1)
		assert.Equal(t, postID, result.Results[0].ID)
	})

	t.Run("dashboard", func(t *testing.T) {
		rec := ts.do(t, "GET", "/api/company/stats", "owner", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var stats listing.Stats
		decode(t, rec, &stats)
		assert.Equal(t, 1, stats.ActivePosts)
		assert.Equal(t, 1, stats.TotalApplications)
	})

	t.Run("cancel hides the post", func(t *testing.T) {
		rec := ts.do(t, "DELETE", "/api/posts/"+postID, "owner", nil)
		require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

		rec = ts.do(t, "GET", "/api/posts/"+postID, "", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		rec = ts.do(t, "GET", "/api/posts/"+postID, "owner", nil)
		assert.Equal(t, http.StatusOK, rec.Code)

		rec = ts.do(t, "PUT", "/api/posts/"+postID+"/save", "bob", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestDraftVisibility(t *testing.T) {
	ts := newTestServer(t)
	ts.onboardCompany(t, "owner")

	rec := ts.do(t, "POST", "/api/posts", "owner", postBody())
	require.Equal(t, http.StatusCreated, rec.Code)
	var checkout listing.Checkout
	decode(t, rec, &checkout)

	rec = ts.do(t, "GET", "/api/posts/"+checkout.Post.ID, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, "POST", "/api/posts/"+checkout.Post.ID+"/checkout", "owner", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := postBody()
	body["listing_duration_days"] = 45
	rec = ts.do(t, "PATCH", "/api/posts/"+checkout.Post.ID, "owner", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckoutUnavailable(t *testing.T) {
	ts := newTestServer(t)
	ts.onboardCompany(t, "owner")
	ts.gateway.FailCheckout = errors.New("processor unavailable")

	rec := ts.do(t, "POST", "/api/posts", "owner", postBody())
	require.Equal(t, http.StatusBadGateway, rec.Code, rec.Body.String())
	var body struct {
		Post *listing.Post `json:"post"`
	}
	decode(t, rec, &body)
	require.NotNil(t, body.Post)
	assert.Equal(t, listing.StatusPendingPayment, body.Post.Status)

	ts.gateway.FailCheckout = nil
	rec = ts.do(t, "POST", "/api/posts/"+body.Post.ID+"/checkout", "owner", nil)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestWebhookRejections(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.deliver(t, []byte(`{"id":"evt_1"}`), "t=1,v1=deadbeef")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body map[string]string
	decode(t, rec, &body)
	assert.Equal(t, "event rejected", body["error"])

	rec = ts.deliver(t, []byte(`{"id":"evt_1"}`), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	payload, sig, err := ts.gateway.SignEvent("evt_2", payment.EventCheckoutCompleted, "cs_x", "cus_x", nil)
	require.NoError(t, err)
	rec = ts.deliver(t, payload, sig)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "no correlation id")

	payload, sig, err = ts.gateway.SignEvent("evt_4", payment.EventCheckoutCompleted, "cs_x", "cus_nobody",
		map[string]string{payment.MetadataJobID: "no-such-post"})
	require.NoError(t, err)
	rec = ts.deliver(t, payload, sig)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, "customer matches no company")
	decode(t, rec, &body)
	assert.Equal(t, "event rejected", body["error"])

	payload, sig, err = ts.gateway.SignEvent("evt_3", "invoice.paid", "cs_x", "cus_x", nil)
	require.NoError(t, err)
	rec = ts.deliver(t, payload, sig)
	assert.Equal(t, http.StatusOK, rec.Code, "unrelated events are acknowledged")
}

func TestRequestGuards(t *testing.T) {
	ts := newTestServer(t)

	t.Run("missing identity", func(t *testing.T) {
		rec := ts.do(t, "POST", "/api/posts", "", postBody())
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("bots are denied", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/users", strings.NewReader(`{"email":"a@example.com"}`))
		req.Header.Set("User-Agent", "python-requests/2.31")
		req.Header.Set(userHeader, "scraper")
		rec := httptest.NewRecorder()
		ts.srv.Handler().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.JSONEq(t, `{"error":"forbidden"}`, rec.Body.String())
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/users", strings.NewReader(`{`))
		req.Header.Set("User-Agent", browserUA)
		req.Header.Set(userHeader, "someone")
		rec := httptest.NewRecorder()
		ts.srv.Handler().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("bad query parameter", func(t *testing.T) {
		rec := ts.do(t, "GET", "/api/posts?salary_min=lots", "", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		rec = ts.do(t, "GET", "/api/search", "", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("request id is echoed", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/health", nil)
		req.Header.Set("X-Request-ID", "req-42")
		rec := httptest.NewRecorder()
		ts.srv.Handler().ServeHTTP(rec, req)
		assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
	})
}

func TestCORS(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest("OPTIONS", "/api/posts", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), userHeader)

	req = httptest.NewRequest("OPTIONS", "/api/posts", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestHealthAndDraining(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, "GET", "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var health map[string]interface{}
	decode(t, rec, &health)
	assert.Equal(t, "ok", health["status"])
	assert.Contains(t, health, "pulse")
	system, ok := health["system"].(map[string]interface{})
	require.True(t, ok)
	assert.Positive(t, system["goroutines"])

	ts.srv.setState(ServerStateDraining)
	rec = ts.do(t, "GET", "/api/posts", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	rec = ts.do(t, "GET", "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListingEventsWebSocket(t *testing.T) {
	ts := newTestServer(t)
	httpServer := httptest.NewServer(ts.srv.Handler())
	t.Cleanup(httpServer.Close)
	wsURL := "ws" + strings.TrimPrefix(httpServer.URL, "http") + "/ws/listings"

	t.Run("foreign origin is refused", func(t *testing.T) {
		header := http.Header{"Origin": []string{"https://evil.example.com"}}
		_, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	hub := ts.srv.Hub()
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.PostChanged(listing.Event{
		Type:      listing.EventActivated,
		JobPostID: "post-1",
		CompanyID: "company-1",
		Status:    listing.StatusActive,
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg ListingEventMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, listing.EventActivated, msg.Type)
	assert.Equal(t, "post-1", msg.JobPostID)
	assert.Equal(t, listing.StatusActive, msg.Status)
	assert.NotZero(t, msg.Timestamp)

	conn.Close()
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestParseListQuery_ClampsLimit(t *testing.T) {
	q, err := parseListQuery(httptest.NewRequest("GET", "/api/posts?limit=5000&offset=20", nil))
	require.NoError(t, err)
	assert.Equal(t, maxListLimit, q.Limit)
	assert.Equal(t, 20, q.Offset)

	q, err = parseListQuery(httptest.NewRequest("GET", "/api/posts?limit=7", nil))
	require.NoError(t, err)
	assert.Equal(t, 7, q.Limit)

	_, err = parseListQuery(httptest.NewRequest("GET", "/api/posts?limit=-1", nil))
	assert.True(t, errors.IsValidationError(err))
}

func TestProfile(t *testing.T) {
	ts := newTestServer(t)
	ts.onboardCompany(t, "owner")

	rec := ts.do(t, "GET", "/api/users/me", "owner", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var profile account.Profile
	decode(t, rec, &profile)
	assert.Equal(t, "owner", profile.User.ID)
	assert.Equal(t, account.UserTypeCompany, profile.User.Type)
	require.NotNil(t, profile.Company)
	assert.Equal(t, "Acme", profile.Company.Name)
	assert.Nil(t, profile.JobSeeker)

	rec = ts.do(t, "GET", "/api/users/me", "stranger", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, "GET", "/api/users/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
