package agents

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/jbandu/fleetscraper/internal/constants"
	"github.com/jbandu/fleetscraper/internal/logging"
	"github.com/jbandu/fleetscraper/internal/models/dtos"
	"github.com/jbandu/fleetscraper/internal/models/entities"
	"github.com/jbandu/fleetscraper/internal/scrape"
)

const discoveryHTMLBudget = 8 << 10

var registrationCandidateRe = regexp.MustCompile(`^[A-Z0-9-]{4,10}$`)

// fleetDatabaseTemplates are generic fleet listings keyed on the airline name.
var fleetDatabaseTemplates = []string{
	"https://www.planespotters.net/airline/%s",
	"https://www.airfleets.net/flottecie/%s.htm",
	"https://www.flightradar24.com/data/airlines/%s",
}

// DiscoveryAgent produces the set of registrations an airline operates.
type DiscoveryAgent struct {
	airlines  AirlineStore
	loader    scrape.PageLoader
	extractor scrape.Extractor
}

func NewDiscoveryAgent(airlines AirlineStore, loader scrape.PageLoader, extractor scrape.Extractor) *DiscoveryAgent {
	return &DiscoveryAgent{airlines: airlines, loader: loader, extractor: extractor}
}

type registrationsPayload struct {
	Registrations []string `json:"registrations"`
}

// Discover walks the ranked source list and returns the first source's yield.
// Sources that fail or come back empty are logged and skipped; when every
// source fails the result carries zero confidence and method "none".
// forceRefresh asks sources to bypass any cached copy; the HTTP loader always
// fetches live, so today it only shows up in the logs.
func (a *DiscoveryAgent) Discover(ctx context.Context, airlineCode string, override []Source, forceRefresh bool) (*dtos.DiscoveryResult, error) {
	airline, err := a.airlines.FindByCode(ctx, airlineCode)
	if err != nil {
		return nil, err
	}
	if forceRefresh {
		logging.Debug("discovery forcing re-crawl", "airline_code", airlineCode)
	}

	sources := override
	if len(sources) == 0 {
		sources, err = buildDiscoverySources(airline)
		if err != nil {
			return nil, err
		}
	}

	result := &dtos.DiscoveryResult{
		AirlineCode:  airlineCode,
		Method:       constants.SourceTypeNone,
		DiscoveredAt: time.Now().UTC(),
	}

	for _, src := range sources {
		regs, err := a.scrapeSource(ctx, airline.Name, src)
		if err != nil {
			logging.Warn("discovery source failed",
				"airline_code", airlineCode,
				"source", src.URL,
				"error", err.Error(),
			)
			continue
		}
		if len(regs) == 0 {
			logging.Debug("discovery source empty", "airline_code", airlineCode, "source", src.URL)
			continue
		}

		result.Registrations = regs
		result.SourceURLs = []string{src.URL}
		result.Method = src.Type
		result.Confidence = DiscoveryConfidence(src.Type, len(regs))
		return result, nil
	}

	return result, nil
}

func (a *DiscoveryAgent) scrapeSource(ctx context.Context, airlineName string, src Source) ([]string, error) {
	page, err := a.loader.Fetch(ctx, src.URL)
	if err != nil {
		return nil, err
	}

	html := scrape.TruncateHTML(page.HTML, discoveryHTMLBudget)
	prompt := fmt.Sprintf(
		"Extract every aircraft registration (tail number) operated by %s from this page.\n"+
			"Respond with JSON: {\"registrations\": [\"...\"]}\n\nPage HTML:\n%s",
		airlineName, html,
	)

	var payload registrationsPayload
	if err := a.extractor.ExtractJSON(ctx, prompt, scrape.ExtractOptions{MaxTokens: 2048}, &payload); err != nil {
		return nil, err
	}

	return filterRegistrations(payload.Registrations), nil
}

// buildDiscoverySources assembles the ranked list: stored source URLs first,
// then the airline's own website, then the generic fleet databases.
func buildDiscoverySources(airline *entities.Airline) ([]Source, error) {
	stored, err := airline.SourceURLs()
	if err != nil {
		return nil, fmt.Errorf("decode source urls for %s: %w", airline.IATACode, err)
	}

	var sources []Source
	for _, s := range stored {
		typ := s.Type
		if typ == "" {
			typ = constants.SourceTypeOfficial
		}
		priority := s.Priority
		if priority == 0 {
			priority = 1
		}
		sources = append(sources, Source{URL: s.URL, Type: typ, Priority: priority})
	}

	if airline.WebsiteURL != nil && *airline.WebsiteURL != "" {
		sources = append(sources, Source{URL: *airline.WebsiteURL, Type: constants.SourceTypeOfficial, Priority: 2})
	}

	slug := slugifyAirlineName(airline.Name)
	for _, tmpl := range fleetDatabaseTemplates {
		sources = append(sources, Source{
			URL:      fmt.Sprintf(tmpl, slug),
			Type:     constants.SourceTypeDatabase,
			Priority: 3,
		})
	}

	sort.SliceStable(sources, func(i, j int) bool { return sources[i].Priority < sources[j].Priority })
	return sources, nil
}

func filterRegistrations(raw []string) []string {
	seen := make(map[string]bool)
	var regs []string
	for _, r := range raw {
		reg := strings.ToUpper(strings.TrimSpace(r))
		if !registrationCandidateRe.MatchString(reg) || seen[reg] {
			continue
		}
		seen[reg] = true
		regs = append(regs, reg)
	}
	return regs
}

// DiscoveryConfidence scores a discovery outcome by source trust and yield.
func DiscoveryConfidence(sourceType string, count int) float64 {
	confidence := 0.5
	switch sourceType {
	case constants.SourceTypeOfficial:
		confidence += 0.3
	case constants.SourceTypeDatabase:
		confidence += 0.2
	}
	if count >= 10 {
		confidence += 0.1
	}
	if count >= 50 {
		confidence += 0.1
	}
	if confidence > 1.0 {
		confidence = 1.0
	}
	return confidence
}

func slugifyAirlineName(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = strings.ReplaceAll(slug, " ", "-")
	return url.PathEscape(slug)
}
