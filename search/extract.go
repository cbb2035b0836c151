// Package search turns a free-text job query into listing filters and runs it
// against the public listings.
package search

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/teranos/vacancy/errors"
)

// DefaultLimit caps results when the query does not ask for more
const DefaultLimit = 10

// maxSalary bounds parsed amounts so absurd figures still filter instead of overflowing
const maxSalary int64 = 1_000_000_000

// Filters is the structured form of a job query
type Filters struct {
	Keywords       []string `json:"keywords,omitempty"`
	Location       string   `json:"location,omitempty"`
	EmploymentType string   `json:"employment_type,omitempty"`
	SalaryMin      int64    `json:"salary_min,omitempty"`
	SalaryMax      int64    `json:"salary_max,omitempty"`
	Limit          int      `json:"limit"`
}

// jobKeywords is the title vocabulary recognised in queries
var jobKeywords = []string{
	"software engineer", "developer", "programmer", "carpenter", "plumber",
	"electrician", "teacher", "nurse", "doctor", "manager", "designer",
	"marketing", "sales", "accountant", "lawyer", "chef", "driver", "mechanic",
	"engineer", "analyst", "consultant", "writer", "editor", "data scientist",
	"product manager", "ui/ux", "frontend", "backend", "full stack", "devops",
	"qa", "tester", "admin", "receptionist", "customer service", "retail",
	"warehouse", "construction", "maintenance",
}

var employmentTypes = []string{"full-time", "part-time", "contract", "remote", "hybrid", "freelance"}

// Tried in order; the first that matches wins
var locationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\bin\s+([a-zA-Z][a-zA-Z\s,]*)`),
	regexp.MustCompile(`\bat\s+([a-zA-Z][a-zA-Z\s,]*)`),
	regexp.MustCompile(`\bnear\s+([a-zA-Z][a-zA-Z\s,]*)`),
	regexp.MustCompile(`\bfrom\s+([a-zA-Z][a-zA-Z\s,]*)`),
	regexp.MustCompile(`\baround\s+([a-zA-Z][a-zA-Z\s,]*)`),
}

// locationStops end a captured location
var locationStops = map[string]bool{
	"at": true, "least": true, "minimum": true, "from": true, "paying": true,
	"with": true, "for": true, "salary": true, "earning": true, "and": true,
	"full": true, "part": true, "contract": true, "remote": true, "hybrid": true, "freelance": true,
}

var (
	salaryRangePattern = regexp.MustCompile(`(\$?\d+(?:,\d{3})*[kK]?)\s*-\s*(\$?\d+(?:,\d{3})*[kK]?)`)
	salaryMinPattern   = regexp.MustCompile(`(?:at least|minimum|from)\s*\$?(\d+(?:,\d{3})*[kK]?)`)
)

// Extract reads keywords, location, employment type and salary out of a free-text query.
// A minimum ("at least $80k") replaces any range found in the same query.
func Extract(query string) Filters {
	lower := strings.ToLower(query)
	f := Filters{Limit: DefaultLimit}

	for _, kw := range jobKeywords {
		if strings.Contains(lower, kw) {
			f.Keywords = append(f.Keywords, kw)
		}
	}

	for _, p := range locationPatterns {
		if m := p.FindStringSubmatch(query); m != nil {
			if loc := trimLocation(m[1]); loc != "" {
				f.Location = loc
				break
			}
		}
	}

	for _, et := range employmentTypes {
		if strings.Contains(lower, et) {
			f.EmploymentType = et
			break
		}
	}

	if m := salaryRangePattern.FindStringSubmatch(query); m != nil {
		f.SalaryMin = parseSalary(m[1])
		f.SalaryMax = parseSalary(m[2])
	}
	if m := salaryMinPattern.FindStringSubmatch(lower); m != nil {
		f.SalaryMin = parseSalary(m[1])
		f.SalaryMax = 0
	}
	return f
}

// trimLocation cuts the capture at the first word that starts another clause
func trimLocation(raw string) string {
	var kept []string
	for _, w := range strings.Fields(raw) {
		if locationStops[strings.ToLower(strings.Trim(w, ","))] {
			break
		}
		kept = append(kept, w)
	}
	return strings.Trim(strings.Join(kept, " "), " ,")
}

// parseSalary reads "$85,000" or "85k"
func parseSalary(s string) int64 {
	thousands := strings.ContainsAny(s, "kK")
	digits := strings.NewReplacer("$", "", ",", "", "k", "", "K", "").Replace(s)
	n, err := strconv.ParseInt(digits, 10, 64)
	if errors.Is(err, strconv.ErrRange) {
		return maxSalary
	}
	if err != nil {
		return 0
	}
	if thousands {
		if n > maxSalary/1000 {
			return maxSalary
		}
		n *= 1000
	}
	return min(n, maxSalary)
}
