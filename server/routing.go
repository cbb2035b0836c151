package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/teranos/vacancy/logger"
)

// setupHTTPRoutes configures all HTTP handlers
func (s *VacancyServer) setupHTTPRoutes() {
	s.mux.HandleFunc("GET /health", s.HandleHealth)
	s.mux.HandleFunc("GET /ws/listings", s.HandleWebSocket)

	// Payment processor callback; authenticated by signature, not by user
	s.mux.HandleFunc("POST /api/webhook/payment", s.HandlePaymentWebhook)

	// Accounts and onboarding
	s.mux.HandleFunc("POST /api/users", s.HandleRegister)
	s.mux.HandleFunc("GET /api/users/me", s.HandleProfile)
	s.mux.HandleFunc("POST /api/onboarding/company", s.HandleOnboardCompany)
	s.mux.HandleFunc("POST /api/onboarding/job-seeker", s.HandleOnboardJobSeeker)

	// Job posts
	s.mux.HandleFunc("GET /api/posts", s.HandleListPosts)
	s.mux.HandleFunc("POST /api/posts", s.HandleCreatePost)
	s.mux.HandleFunc("GET /api/posts/{id}", s.HandleGetPost)
	s.mux.HandleFunc("PATCH /api/posts/{id}", s.HandleEditPost)
	s.mux.HandleFunc("DELETE /api/posts/{id}", s.HandleCancelPost)
	s.mux.HandleFunc("POST /api/posts/{id}/checkout", s.HandleCheckout)
	s.mux.HandleFunc("GET /api/company/posts", s.HandleCompanyPosts)
	s.mux.HandleFunc("GET /api/company/stats", s.HandleCompanyStats)
	s.mux.HandleFunc("GET /api/search", s.HandleSearch)

	// Applications and saved jobs
	s.mux.HandleFunc("POST /api/posts/{id}/applications", s.HandleApply)
	s.mux.HandleFunc("GET /api/posts/{id}/applications", s.HandlePostApplications)
	s.mux.HandleFunc("GET /api/applications", s.HandleMyApplications)
	s.mux.HandleFunc("POST /api/applications/{id}/withdraw", s.HandleWithdraw)
	s.mux.HandleFunc("PATCH /api/applications/{id}", s.HandleUpdateApplicationStatus)
	s.mux.HandleFunc("PUT /api/posts/{id}/save", s.HandleSavePost)
	s.mux.HandleFunc("DELETE /api/posts/{id}/save", s.HandleUnsavePost)
	s.mux.HandleFunc("GET /api/saved", s.HandleSavedPosts)
}

// corsMiddleware adds CORS headers to HTTP responses using configured allowed origins.
// Uses the same origin validation as WebSocket connections (server.allowed_origins config).
func (s *VacancyServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.checkOrigin(r) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+userHeader)

		// Handle preflight requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// requestMiddleware tags the request context for logging and writes the access log
func (s *VacancyServer) requestMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)

		ctx := logger.WithRequestID(r.Context(), requestID)
		if id := userID(r); id != "" {
			ctx = logger.WithUserID(ctx, id)
		}

		if s.getState() == ServerStateDraining && r.URL.Path != "/health" {
			writeError(w, http.StatusServiceUnavailable, "server is shutting down")
			return
		}

		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r.WithContext(ctx))

		logger.FromContext(ctx, s.logger).Debugw("Request served",
			logger.FieldMethod, r.Method,
			logger.FieldPath, r.URL.Path,
			logger.FieldStatus, sw.status,
			logger.FieldDurationMS, time.Since(start).Milliseconds())
	})
}
