package domain

import (
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode"
)

var (
	emailPattern  = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	schemePattern = regexp.MustCompile(`(?i)^https?://`)
)

// Submission is the raw, untrusted form input for a new listing.
type Submission struct {
	Name         string `json:"name"`
	URL          string `json:"url"`
	Description  string `json:"description"`
	UseCase      string `json:"useCase"`
	Region       string `json:"region"`
	ImageKey     string `json:"imageKey,omitempty"`
	AddedBy      string `json:"addedBy"`
	AddedByEmail string `json:"addedByEmail"`
}

// Normalize validates a submission and returns the cleaned listing.
//
// Checks short-circuit in this order:
//  1. required fields present (after trimming)
//  2. email is local@domain.tld shaped, as typed
//  3. text fields trimmed and truncated, region known
//  4. url gets an https:// scheme when missing and must parse as http(s)
//  5. imageKey gets the same treatment but is dropped silently when invalid
//
// The returned listing is always inactive and has no id or timestamps.
func Normalize(s Submission) (Listing, error) {
	required := []struct {
		field string
		value string
	}{
		{"name", s.Name},
		{"url", s.URL},
		{"description", s.Description},
		{"useCase", s.UseCase},
		{"region", s.Region},
		{"addedBy", s.AddedBy},
		{"addedByEmail", s.AddedByEmail},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return Listing{}, Invalid(r.field, "please fill in all required fields")
		}
	}

	// surrounding blanks make the address invalid rather than being trimmed
	email := s.AddedByEmail
	if !ValidEmail(email) {
		return Listing{}, Invalid("addedByEmail", "please enter a valid email address")
	}

	region := Region(strings.TrimSpace(s.Region))
	if !region.Valid() {
		return Listing{}, Invalid("region", "please select a region")
	}

	normalizedURL, ok := NormalizeURL(s.URL)
	if !ok {
		return Listing{}, Invalid("url", "please enter a valid URL")
	}

	l := Listing{
		Name:         Truncate(s.Name, MaxNameLen),
		URL:          normalizedURL,
		Description:  Truncate(s.Description, MaxDescriptionLen),
		UseCase:      Truncate(s.UseCase, MaxUseCaseLen),
		Region:       region,
		AddedBy:      Truncate(s.AddedBy, MaxAddedByLen),
		AddedByEmail: Truncate(email, MaxEmailLen),
		Active:       false,
	}

	if strings.TrimSpace(s.ImageKey) != "" {
		if img, ok := NormalizeURL(s.ImageKey); ok {
			l.ImageKey = img
		}
	}

	return l, nil
}

// NewSubmission converts a submission into a pending listing stamped at now.
func NewSubmission(s Submission, now time.Time) (Listing, error) {
	l, err := Normalize(s)
	if err != nil {
		return Listing{}, err
	}
	l.SubmittedAt = now.UTC()
	return l, nil
}

// ValidEmail reports whether s looks like local@domain.tld.
func ValidEmail(s string) bool {
	return emailPattern.MatchString(s)
}

// NormalizeURL trims raw, prepends https:// when no http(s) scheme is present
// and validates the result. It returns false for anything that is not an
// absolute http or https URL with a host.
func NormalizeURL(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if !schemePattern.MatchString(raw) {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", false
	}
	if u.Host == "" || strings.IndexFunc(u.Host, unicode.IsSpace) >= 0 {
		return "", false
	}
	return raw, true
}

// Truncate trims s and cuts it to at most max runes.
func Truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
