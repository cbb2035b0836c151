package server

import (
	"net/http"

	"github.com/teranos/vacancy/application"
)

// HandleApply submits an application from the caller to a post
func (s *VacancyServer) HandleApply(w http.ResponseWriter, r *http.Request) {
	id, ok := requireUser(w, r)
	if !ok {
		return
	}
	var in application.ApplyInput
	if err := readJSON(w, r, &in); err != nil {
		return
	}
	app, err := s.deps.Applications.Apply(r.Context(), admissionRequest(r), id, r.PathValue("id"), in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, app)
}

// HandlePostApplications lists applicants of a post owned by the caller's company
func (s *VacancyServer) HandlePostApplications(w http.ResponseWriter, r *http.Request) {
	company, ok := s.companyFor(w, r)
	if !ok {
		return
	}
	applicants, err := s.deps.Applications.ListForPost(r.Context(), r.PathValue("id"), company.ID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if applicants == nil {
		applicants = []*application.Applicant{}
	}
	writeJSON(w, http.StatusOK, applicants)
}

// HandleMyApplications lists the caller's applications
func (s *VacancyServer) HandleMyApplications(w http.ResponseWriter, r *http.Request) {
	id, ok := requireUser(w, r)
	if !ok {
		return
	}
	apps, err := s.deps.Applications.ListForUser(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if apps == nil {
		apps = []*application.Submitted{}
	}
	writeJSON(w, http.StatusOK, apps)
}

// HandleWithdraw withdraws one of the caller's pending applications
func (s *VacancyServer) HandleWithdraw(w http.ResponseWriter, r *http.Request) {
	id, ok := requireUser(w, r)
	if !ok {
		return
	}
	app, err := s.deps.Applications.Withdraw(r.Context(), admissionRequest(r), r.PathValue("id"), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

// HandleUpdateApplicationStatus lets the owning company move an application through review
func (s *VacancyServer) HandleUpdateApplicationStatus(w http.ResponseWriter, r *http.Request) {
	company, ok := s.companyFor(w, r)
	if !ok {
		return
	}
	var body statusRequest
	if err := readJSON(w, r, &body); err != nil {
		return
	}
	app, err := s.deps.Applications.UpdateStatus(r.Context(), admissionRequest(r), r.PathValue("id"), company.ID, body.Status)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

// HandleSavePost bookmarks an active post for the caller
func (s *VacancyServer) HandleSavePost(w http.ResponseWriter, r *http.Request) {
	id, ok := requireUser(w, r)
	if !ok {
		return
	}
	if err := s.deps.Applications.Save(r.Context(), admissionRequest(r), id, r.PathValue("id")); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleUnsavePost removes a bookmark
func (s *VacancyServer) HandleUnsavePost(w http.ResponseWriter, r *http.Request) {
	id, ok := requireUser(w, r)
	if !ok {
		return
	}
	if err := s.deps.Applications.Unsave(r.Context(), admissionRequest(r), id, r.PathValue("id")); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleSavedPosts lists the caller's bookmarks
func (s *VacancyServer) HandleSavedPosts(w http.ResponseWriter, r *http.Request) {
	id, ok := requireUser(w, r)
	if !ok {
		return
	}
	saved, err := s.deps.Applications.ListSaved(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if saved == nil {
		saved = []*application.Saved{}
	}
	writeJSON(w, http.StatusOK, saved)
}
