package server

import (
	"bufio"
	"net"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/teranos/vacancy/admission"
	"github.com/teranos/vacancy/errors"
)

// userHeader carries the caller identity set by the upstream auth layer
const userHeader = "X-User-ID"

func (s *VacancyServer) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
}

// checkOrigin validates an Origin header against the configured allowed origins.
// Prefix matching lets any port through for a configured host.
func (s *VacancyServer) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.allowedOrigins {
		if strings.HasPrefix(origin, allowed) {
			return true
		}
	}
	return false
}

// userID returns the authenticated caller, or "" for anonymous requests
func userID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(userHeader))
}

// requireUser writes 401 and returns false for anonymous requests
func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := userID(r)
	if id == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return "", false
	}
	return id, true
}

// clientKey identifies the caller for admission budgets: the user when known,
// otherwise the first forwarded address or the peer address.
func clientKey(r *http.Request) string {
	if id := userID(r); id != "" {
		return "user:" + id
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return "ip:" + strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

func admissionRequest(r *http.Request) admission.Request {
	return admission.Request{
		ClientKey: clientKey(r),
		UserAgent: r.UserAgent(),
		Path:      r.URL.Path,
	}
}

// statusWriter records the response status for request logging
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

// Hijack lets the websocket upgrade through the wrapper
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return h.Hijack()
}
