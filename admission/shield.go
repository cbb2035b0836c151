package admission

import (
	"context"
	"strings"
)

// botSignatures are lowercase substrings found in automated client user agents.
var botSignatures = []string{
	"bot", "crawler", "spider", "scraper", "slurp",
	"curl/", "wget/", "python-requests", "python-urllib", "go-http-client",
	"httpclient", "okhttp", "axios/", "node-fetch", "headlesschrome", "phantomjs",
	"scrapy", "libwww-perl", "java/",
}

// Shield denies requests whose user agent looks automated.
// Agents matching an allowed prefix (e.g. a monitoring probe) pass regardless.
type Shield struct {
	allowedPrefixes []string
}

// NewShield creates a bot shield with case-insensitive allowed user-agent prefixes
func NewShield(allowedPrefixes []string) *Shield {
	lowered := make([]string, 0, len(allowedPrefixes))
	for _, p := range allowedPrefixes {
		if p = strings.TrimSpace(p); p != "" {
			lowered = append(lowered, strings.ToLower(p))
		}
	}
	return &Shield{allowedPrefixes: lowered}
}

// Evaluate implements Gate
func (s *Shield) Evaluate(_ context.Context, req Request, _ int) (Decision, error) {
	ua := strings.ToLower(strings.TrimSpace(req.UserAgent))
	if ua == "" {
		return Deny("missing user agent"), nil
	}
	for _, p := range s.allowedPrefixes {
		if strings.HasPrefix(ua, p) {
			return Allowed, nil
		}
	}
	for _, sig := range botSignatures {
		if strings.Contains(ua, sig) {
			return Deny("automated client: " + sig), nil
		}
	}
	return Allowed, nil
}
