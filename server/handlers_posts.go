package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/teranos/vacancy/admission"
	"github.com/teranos/vacancy/errors"
	"github.com/teranos/vacancy/listing"
	"github.com/teranos/vacancy/search"
)

// maxSearchQuery bounds the free-text search input
const maxSearchQuery = 500

// HandleCreatePost drafts a post and starts its checkout.
// When only the checkout fails the draft is returned with 502 so the owner can retry.
func (s *VacancyServer) HandleCreatePost(w http.ResponseWriter, r *http.Request) {
	company, ok := s.companyFor(w, r)
	if !ok {
		return
	}
	var attrs listing.Attributes
	if err := readJSON(w, r, &attrs); err != nil {
		return
	}

	checkout, err := s.deps.Listings.CreateDraft(r.Context(), admissionRequest(r), company.ID, attrs)
	if err != nil {
		if checkout != nil && checkout.Post != nil &&
			statusFor(err) == http.StatusInternalServerError && !errors.Is(err, errors.ErrConfiguration) {
			s.logger.Warnw("Checkout unavailable for new draft", "error", err.Error())
			writeJSON(w, http.StatusBadGateway, map[string]interface{}{
				"error": "checkout unavailable, retry payment later",
				"post":  checkout.Post,
			})
			return
		}
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, checkout)
}

// HandleCheckout retries payment for a PENDING_PAYMENT post
func (s *VacancyServer) HandleCheckout(w http.ResponseWriter, r *http.Request) {
	company, ok := s.companyFor(w, r)
	if !ok {
		return
	}
	checkout, err := s.deps.Listings.InitiatePayment(r.Context(), admissionRequest(r), r.PathValue("id"), company.ID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, checkout)
}

// HandleGetPost returns a post. Non-active posts are visible to their owner only.
func (s *VacancyServer) HandleGetPost(w http.ResponseWriter, r *http.Request) {
	viewer := ""
	if id := userID(r); id != "" {
		if company, err := s.deps.Accounts.CompanyForUser(r.Context(), id); err == nil {
			viewer = company.ID
		}
	}
	post, err := s.deps.Listings.Get(r.Context(), r.PathValue("id"), viewer)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// HandleEditPost updates a post owned by the caller's company
func (s *VacancyServer) HandleEditPost(w http.ResponseWriter, r *http.Request) {
	company, ok := s.companyFor(w, r)
	if !ok {
		return
	}
	var attrs listing.Attributes
	if err := readJSON(w, r, &attrs); err != nil {
		return
	}
	post, err := s.deps.Listings.Edit(r.Context(), admissionRequest(r), r.PathValue("id"), company.ID, attrs)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// HandleCancelPost closes a post owned by the caller's company
func (s *VacancyServer) HandleCancelPost(w http.ResponseWriter, r *http.Request) {
	company, ok := s.companyFor(w, r)
	if !ok {
		return
	}
	if err := s.deps.Listings.Cancel(r.Context(), admissionRequest(r), r.PathValue("id"), company.ID); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleListPosts lists public listings filtered by query parameters
func (s *VacancyServer) HandleListPosts(w http.ResponseWriter, r *http.Request) {
	q, err := parseListQuery(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	listings, err := s.deps.Listings.ListActive(r.Context(), q)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if listings == nil {
		listings = []*listing.Listing{}
	}
	writeJSON(w, http.StatusOK, listings)
}

// HandleCompanyPosts lists every post of the caller's company
func (s *VacancyServer) HandleCompanyPosts(w http.ResponseWriter, r *http.Request) {
	company, ok := s.companyFor(w, r)
	if !ok {
		return
	}
	posts, err := s.deps.Listings.ListByCompany(r.Context(), company.ID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if posts == nil {
		posts = []*listing.CompanyPost{}
	}
	writeJSON(w, http.StatusOK, posts)
}

// HandleCompanyStats returns dashboard counters for the caller's company
func (s *VacancyServer) HandleCompanyStats(w http.ResponseWriter, r *http.Request) {
	company, ok := s.companyFor(w, r)
	if !ok {
		return
	}
	stats, err := s.deps.Listings.CompanyStats(r.Context(), company.ID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// HandleSearch runs a free-text job search
func (s *VacancyServer) HandleSearch(w http.ResponseWriter, r *http.Request) {
	text := strings.TrimSpace(r.URL.Query().Get("q"))
	if text == "" {
		s.writeServiceError(w, r, errors.NewValidationError("q is required"))
		return
	}
	if len(text) > maxSearchQuery {
		s.writeServiceError(w, r, errors.NewValidationError("q must be at most %d characters", maxSearchQuery))
		return
	}
	if s.deps.Admission != nil {
		if err := s.deps.Admission.Admit(r.Context(), admissionRequest(r), admission.CostRead); err != nil {
			s.writeServiceError(w, r, err)
			return
		}
	}

	filters, results, err := s.deps.Searcher.Query(r.Context(), text)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if results == nil {
		results = []*search.Result{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"filters": filters,
		"results": results,
	})
}

// parseListQuery reads listing filters from the URL
// maxListLimit caps one page of public listings
const maxListLimit = 100

func parseListQuery(r *http.Request) (listing.Query, error) {
	v := r.URL.Query()
	q := listing.Query{
		TitleKeywords:  splitList(v.Get("keywords")),
		Location:       strings.TrimSpace(v.Get("location")),
		EmploymentType: strings.TrimSpace(v.Get("employment_type")),
		CompanyID:      v.Get("company_id"),
	}
	ints := []struct {
		name string
		dst  *int64
	}{
		{"salary_min", &q.SalaryMin},
		{"salary_max", &q.SalaryMax},
	}
	for _, p := range ints {
		if raw := v.Get(p.name); raw != "" {
			n, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || n < 0 {
				return q, errors.NewValidationError("%s must be a non-negative integer", p.name)
			}
			*p.dst = n
		}
	}
	for name, dst := range map[string]*int{"limit": &q.Limit, "offset": &q.Offset} {
		if raw := v.Get(name); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				return q, errors.NewValidationError("%s must be a non-negative integer", name)
			}
			*dst = n
		}
	}
	if q.Limit > maxListLimit {
		q.Limit = maxListLimit
	}
	return q, nil
}
