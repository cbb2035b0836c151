package search

import (
	"context"
	"sort"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"go.uber.org/zap"

	"github.com/teranos/vacancy/listing"
	"github.com/teranos/vacancy/logger"
)

// candidateLimit bounds how many keyword matches are ranked before truncation
const candidateLimit = 200

// Result is a listing with its keyword rank; lower Distance ranks higher
type Result struct {
	*listing.Listing
	Matched  int `json:"matched_keywords"`
	Distance int `json:"-"`
}

// Searcher runs filters against the active listings
type Searcher struct {
	store  *listing.Store
	logger *zap.SugaredLogger
}

// NewSearcher creates a searcher over the listing store
func NewSearcher(store *listing.Store, log *zap.SugaredLogger) *Searcher {
	return &Searcher{store: store, logger: log}
}

// Query extracts filters from text and searches with them
func (s *Searcher) Query(ctx context.Context, text string) (Filters, []*Result, error) {
	f := Extract(text)
	results, err := s.Search(ctx, f)
	return f, results, err
}

// Search returns ACTIVE listings matching f. Without keywords the order is newest first;
// with keywords, titles matching more of them come first, then closer matches.
func (s *Searcher) Search(ctx context.Context, f Filters) ([]*Result, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	q := listing.Query{
		TitleKeywords:  f.Keywords,
		Location:       f.Location,
		EmploymentType: f.EmploymentType,
		SalaryMin:      f.SalaryMin,
		SalaryMax:      f.SalaryMax,
		Limit:          limit,
	}
	if len(f.Keywords) > 0 {
		q.Limit = candidateLimit
	}

	listings, err := s.store.ListActive(ctx, q)
	if err != nil {
		return nil, err
	}

	results := make([]*Result, len(listings))
	for i, l := range listings {
		results[i] = rank(l, f.Keywords)
	}
	if len(f.Keywords) > 0 {
		sort.SliceStable(results, func(i, j int) bool {
			if results[i].Matched != results[j].Matched {
				return results[i].Matched > results[j].Matched
			}
			return results[i].Distance < results[j].Distance
		})
	}
	if len(results) > limit {
		results = results[:limit]
	}

	logger.FromContext(ctx, s.logger).Debugw("Job search",
		"keywords", f.Keywords,
		"location", f.Location,
		logger.FieldCount, len(results))
	return results, nil
}

func rank(l *listing.Listing, keywords []string) *Result {
	r := &Result{Listing: l}
	best := -1
	for _, kw := range keywords {
		d := fuzzy.RankMatchNormalizedFold(kw, l.Title)
		if d < 0 {
			continue
		}
		r.Matched++
		if best < 0 || d < best {
			best = d
		}
	}
	r.Distance = best
	return r
}
