package search

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/vacancy/account"
	"github.com/teranos/vacancy/admission"
	testdb "github.com/teranos/vacancy/internal/testing"
	"github.com/teranos/vacancy/listing"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		query string
		want  Filters
	}{
		{
			query: "senior software engineer in San Francisco, full-time $120k - $150k",
			want: Filters{
				Keywords:       []string{"software engineer", "engineer"},
				Location:       "San Francisco",
				EmploymentType: "full-time",
				SalaryMin:      120000,
				SalaryMax:      150000,
				Limit:          DefaultLimit,
			},
		},
		{
			query: "nurse jobs near Boston paying at least $80,000",
			want: Filters{
				Keywords:  []string{"nurse"},
				Location:  "Boston",
				SalaryMin: 80000,
				Limit:     DefaultLimit,
			},
		},
		{
			query: "remote contract designer from $50k",
			want: Filters{
				Keywords:       []string{"designer"},
				EmploymentType: "contract",
				SalaryMin:      50000,
				Limit:          DefaultLimit,
			},
		},
		{
			query: "backend developer 90000-110000 minimum 95k",
			want: Filters{
				Keywords:  []string{"developer", "backend"},
				SalaryMin: 95000,
				Limit:     DefaultLimit,
			},
		},
		{
			query: "anything interesting",
			want:  Filters{Limit: DefaultLimit},
		},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, Extract(tt.query))
		})
	}
}

func TestParseSalary(t *testing.T) {
	assert.Equal(t, int64(85000), parseSalary("$85,000"))
	assert.Equal(t, int64(85000), parseSalary("85K"))
	assert.Equal(t, int64(120), parseSalary("120"))
	assert.Equal(t, int64(0), parseSalary("$"))

	assert.Equal(t, maxSalary, parseSalary("9223372036854775k"))
	assert.Equal(t, maxSalary, parseSalary("99999999999999999999999"))
	assert.Equal(t, maxSalary, Extract("engineer paying at least $9999999999999999k").SalaryMin)
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	log := zaptest.NewLogger(t).Sugar()
	database := testdb.CreateTestDB(t)
	open := admission.NewEnforcer(nil, log)
	req := admission.Request{ClientKey: "test", UserAgent: "Mozilla/5.0"}

	accounts := account.NewService(account.NewStore(database), open, log)
	_, err := accounts.Register(ctx, req, account.User{ID: "owner", Email: "owner@example.com"})
	require.NoError(t, err)
	company, err := accounts.CreateCompany(ctx, req, "owner", account.CompanyInput{
		Name: "Acme", Location: "Remote", About: "A company that hires people.",
	})
	require.NoError(t, err)

	store := listing.NewStore(database)
	post := func(title, location, employment string, from, to int64, active bool) {
		p := &listing.Post{
			CompanyID:      company.ID,
			Title:          title,
			Description:    json.RawMessage(`"About the role."`),
			Location:       location,
			EmploymentType: employment,
			SalaryFrom:     from,
			SalaryTo:       to,
			DurationDays:   30,
		}
		require.NoError(t, store.Insert(ctx, p))
		if active {
			now := time.Now()
			_, err := store.Activate(ctx, p.ID, now, p.Expiry(now))
			require.NoError(t, err)
		}
	}
	post("Senior Backend Developer and Platform Engineer", "Berlin", "full-time", 90000, 120000, true)
	post("Developer", "Berlin", "full-time", 60000, 80000, true)
	post("Staff Engineer", "Remote", "contract", 100000, 150000, true)
	post("Unpaid Developer Draft", "Berlin", "full-time", 60000, 80000, false)

	searcher := NewSearcher(store, log)

	t.Run("keywords rank by matches then closeness", func(t *testing.T) {
		results, err := searcher.Search(ctx, Filters{Keywords: []string{"developer", "engineer"}})
		require.NoError(t, err)
		var titles []string
		for _, r := range results {
			titles = append(titles, r.Title)
		}
		assert.Equal(t, []string{
			"Senior Backend Developer and Platform Engineer",
			"Developer",
			"Staff Engineer",
		}, titles)
		assert.Equal(t, 2, results[0].Matched)
		assert.Equal(t, 0, results[1].Distance)
	})

	t.Run("structured filters", func(t *testing.T) {
		f, results, err := searcher.Query(ctx, "developer in Berlin at least $100k")
		require.NoError(t, err)
		assert.Equal(t, "Berlin", f.Location)
		require.Len(t, results, 1)
		assert.Equal(t, "Senior Backend Developer and Platform Engineer", results[0].Title)
		assert.Equal(t, "Acme", results[0].CompanyName)
	})

	t.Run("no keywords is newest first", func(t *testing.T) {
		results, err := searcher.Search(ctx, Filters{Limit: 2})
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "Staff Engineer", results[0].Title)
		assert.Equal(t, -1, results[0].Distance)
	})

	t.Run("drafts never match", func(t *testing.T) {
		results, err := searcher.Search(ctx, Filters{Keywords: []string{"draft"}})
		require.NoError(t, err)
		assert.Empty(t, results)
	})
}
