package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/teranos/vacancy/account"
	"github.com/teranos/vacancy/version"
)

// HandleHealth reports liveness, build info, resource usage and pulse ticker stats
func (s *VacancyServer) HandleHealth(w http.ResponseWriter, r *http.Request) {
	versionInfo := version.Get()
	health := map[string]interface{}{
		"status":     "ok",
		"state":      stateString(s.getState()),
		"version":    versionInfo.Version,
		"commit":     versionInfo.CommitHash,
		"build_time": versionInfo.BuildTime,
		"clients":    s.deps.Hub.ClientCount(),
		"system":     getSystemMetrics(),
	}
	if s.deps.Ticker != nil {
		health["pulse"] = s.deps.Ticker.GetStats()
	}
	writeJSON(w, http.StatusOK, health)
}

// HandleWebSocket subscribes the caller to listing lifecycle events
func (s *VacancyServer) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader().Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		s.logger.Debugw("WebSocket upgrade failed", "error", err.Error())
		return
	}

	client := &Client{
		hub:  s.deps.Hub,
		conn: conn,
		send: make(chan interface{}, MaxClientMessageQueueSize),
		id:   fmt.Sprintf("%s_%d", r.RemoteAddr, time.Now().UnixNano()),
	}

	select {
	case s.deps.Hub.register <- client:
	case <-s.deps.Hub.done:
		conn.Close()
		return
	}

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		client.readPump()
	}()
	go func() {
		defer s.wg.Done()
		client.writePump()
	}()
}

// HandleRegister records the authenticated caller
func (s *VacancyServer) HandleRegister(w http.ResponseWriter, r *http.Request) {
	id, ok := requireUser(w, r)
	if !ok {
		return
	}
	var body registerRequest
	if err := readJSON(w, r, &body); err != nil {
		return
	}
	user, err := s.deps.Accounts.Register(r.Context(), admissionRequest(r), account.User{
		ID:    id,
		Email: body.Email,
		Name:  body.Name,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HandleProfile returns the caller with their onboarding record
func (s *VacancyServer) HandleProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := requireUser(w, r)
	if !ok {
		return
	}
	profile, err := s.deps.Accounts.Profile(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// HandleOnboardCompany onboards the caller as a company
func (s *VacancyServer) HandleOnboardCompany(w http.ResponseWriter, r *http.Request) {
	id, ok := requireUser(w, r)
	if !ok {
		return
	}
	var in account.CompanyInput
	if err := readJSON(w, r, &in); err != nil {
		return
	}
	company, err := s.deps.Accounts.CreateCompany(r.Context(), admissionRequest(r), id, in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, company)
}

// HandleOnboardJobSeeker onboards the caller as a job seeker
func (s *VacancyServer) HandleOnboardJobSeeker(w http.ResponseWriter, r *http.Request) {
	id, ok := requireUser(w, r)
	if !ok {
		return
	}
	var in account.JobSeekerInput
	if err := readJSON(w, r, &in); err != nil {
		return
	}
	seeker, err := s.deps.Accounts.CreateJobSeeker(r.Context(), admissionRequest(r), id, in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, seeker)
}

// companyFor resolves the caller's company, writing the error response when there is none
func (s *VacancyServer) companyFor(w http.ResponseWriter, r *http.Request) (*account.Company, bool) {
	id, ok := requireUser(w, r)
	if !ok {
		return nil, false
	}
	company, err := s.deps.Accounts.CompanyForUser(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return nil, false
	}
	return company, true
}
