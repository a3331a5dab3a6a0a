package agents

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/jbandu/fleetscraper/internal/models/entities"
)

// Narrow store views the agents need. The repositories satisfy them; tests
// substitute fakes.
type AirlineStore interface {
	FindByCode(ctx context.Context, code string) (*entities.Airline, error)
}

type AircraftStore interface {
	FindByRegistration(ctx context.Context, registration string) (*entities.AircraftRecord, error)
}

type TypeStore interface {
	FindByCode(ctx context.Context, code string) (*entities.AircraftType, error)
}

// Source is one scrape target, ordered by ascending priority.
type Source struct {
	URL      string
	Type     string
	Priority int
}

// National registration formats accepted for tail numbers: US, two common
// hyphenated forms, unhyphenated European, and Chinese B- registrations.
var registrationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^N[0-9]{1,5}[A-Z]{0,2}$`),
	regexp.MustCompile(`^[A-Z]{1,2}-[A-Z]{3,4}$`),
	regexp.MustCompile(`^[A-Z]{2}-[A-Z]{3}$`),
	regexp.MustCompile(`^[A-Z]{2}[0-9]{3,4}$`),
	regexp.MustCompile(`^B-[0-9A-Z]{4}$`),
}

// MatchesRegistrationPattern reports whether reg fits any national format.
func MatchesRegistrationPattern(reg string) bool {
	reg = strings.ToUpper(strings.TrimSpace(reg))
	for _, p := range registrationPatterns {
		if p.MatchString(reg) {
			return true
		}
	}
	return false
}

var dateLayouts = []string{"2006-01-02", time.RFC3339, "2006-01", "2006"}

// parseDate accepts the date shapes sources actually emit.
func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func strPtr(s string) *string { return &s }
