package httpclient

import (
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePublicURL(t *testing.T) {
	valid := []string{
		"https://cv.example.com/alice.pdf",
		"http://acme.io",
		" https://8.8.8.8/resume ",
	}
	for _, raw := range valid {
		_, err := ValidatePublicURL(raw)
		assert.NoError(t, err, raw)
	}

	invalid := []string{
		"acme",
		"ftp://files.example.com/cv.pdf",
		"javascript:alert(1)",
		"https://user:pw@example.com/",
		"http://localhost:8080/cv",
		"http://intranet.localhost/",
		"http://127.0.0.1/",
		"http://10.1.2.3/",
		"http://192.168.0.10/",
		"http://169.254.169.254/latest/meta-data",
		"http://[::1]/",
		"http://[fd00::1]/",
		"https:///no-host",
	}
	for _, raw := range invalid {
		_, err := ValidatePublicURL(raw)
		assert.Error(t, err, raw)
	}
}

func TestIsPrivateIP(t *testing.T) {
	cases := map[string]bool{
		"10.0.0.1":        true,
		"172.16.5.4":      true,
		"172.32.0.1":      false,
		"100.64.0.1":      true,
		"0.1.2.3":         true,
		"224.0.0.1":       true,
		"8.8.8.8":         false,
		"::1":             true,
		"fe80::1":         true,
		"fec0::1":         true,
		"2001:db8::1":     true,
		"2606:4700::1111": false,
		"::ffff:10.0.0.1": true,
	}
	for addr, want := range cases {
		assert.Equal(t, want, isPrivateIP(net.ParseIP(addr)), addr)
	}
}

func TestSaferClient_BlocksPrivateDestinations(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	strict := NewSaferClient(time.Second, Options{AllowedSchemes: []string{"http", "https"}})
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	_, err = strict.Do(req)
	assert.ErrorContains(t, err, "SSRF")

	relaxed := NewSaferClient(time.Second, Options{AllowedSchemes: []string{"http"}, AllowPrivateIP: true})
	resp, err := relaxed.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSaferClient_DefaultsToHTTPS(t *testing.T) {
	c := NewSaferClient(time.Second, Options{AllowPrivateIP: true})
	req, err := http.NewRequest(http.MethodGet, "http://example.com/", nil)
	require.NoError(t, err)
	_, err = c.Do(req)
	assert.ErrorContains(t, err, "scheme")
}

func TestSaferClient_RedirectLimit(t *testing.T) {
	hops := 0
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hops++
		http.Redirect(w, r, srv.URL+"/next", http.StatusFound)
	}))
	defer srv.Close()

	c := NewSaferClient(time.Second, Options{AllowedSchemes: []string{"http"}, AllowPrivateIP: true, MaxRedirects: 2})
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	_, err = c.Do(req)
	assert.ErrorContains(t, err, "stopped after 2 redirects")
	assert.Equal(t, 2, hops)
}
