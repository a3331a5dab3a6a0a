package agents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jbandu/fleetscraper/internal/constants"
	"github.com/jbandu/fleetscraper/internal/logging"
	"github.com/jbandu/fleetscraper/internal/models/dtos"
	"github.com/jbandu/fleetscraper/internal/models/entities"
	"github.com/jbandu/fleetscraper/internal/scrape"
)

const detailsHTMLBudget = 8 << 10

// DetailsAgent resolves one registration to a merged detail record across the
// tracking databases.
type DetailsAgent struct {
	aircraft  AircraftStore
	loader    scrape.PageLoader
	extractor scrape.Extractor
}

func NewDetailsAgent(aircraft AircraftStore, loader scrape.PageLoader, extractor scrape.Extractor) *DetailsAgent {
	return &DetailsAgent{aircraft: aircraft, loader: loader, extractor: extractor}
}

func detailSources(registration string) []Source {
	reg := strings.ToUpper(registration)
	return []Source{
		{URL: fmt.Sprintf("https://www.planespotters.net/hex/%s", reg), Type: constants.SourceTypeDatabase, Priority: 1},
		{URL: fmt.Sprintf("https://www.flightradar24.com/data/aircraft/%s", strings.ToLower(reg)), Type: constants.SourceTypeTracker, Priority: 2},
		{URL: fmt.Sprintf("https://www.jetphotos.com/registration/%s", reg), Type: constants.SourceTypeDatabase, Priority: 3},
		{URL: fmt.Sprintf("https://www.airfleets.net/recherche/?key=%s", reg), Type: constants.SourceTypeDatabase, Priority: 4},
	}
}

// detailsPayload mirrors the JSON shape the extraction prompt asks for.
type detailsPayload struct {
	AircraftType      *string `json:"aircraft_type"`
	Manufacturer      *string `json:"manufacturer"`
	Model             *string `json:"model"`
	MSN               *string `json:"msn"`
	SeatConfiguration *struct {
		First          *int `json:"first"`
		Business       *int `json:"business"`
		PremiumEconomy *int `json:"premium_economy"`
		Economy        *int `json:"economy"`
		Total          *int `json:"total"`
	} `json:"seat_configuration"`
	DeliveryDate    *string `json:"delivery_date"`
	Status          *string `json:"status"`
	CurrentLocation *string `json:"current_location"`
	LastFlightDate  *string `json:"last_flight_date"`
	Engines         *string `json:"engines"`
}

// FetchDetails scrapes each detail source for one registration and merges the
// partial records with the stored record as seed. Every source failure is
// soft: the record degrades in completeness, never in availability.
func (a *DetailsAgent) FetchDetails(ctx context.Context, registration, airlineCode string) (*dtos.AircraftDetails, error) {
	registration = strings.ToUpper(strings.TrimSpace(registration))
	if registration == "" {
		return nil, constants.ErrInvalidRegistration
	}

	seed, err := a.seedFromExisting(ctx, registration)
	if err != nil {
		return nil, err
	}

	var partials []dtos.AircraftDetails
	for _, src := range detailSources(registration) {
		partial, err := a.scrapeSource(ctx, registration, src)
		if err != nil {
			logging.Debug("detail source failed",
				"registration", registration,
				"source", src.URL,
				"error", err.Error(),
			)
			continue
		}
		if partial == nil {
			continue
		}
		partials = append(partials, *partial)
	}

	merged := MergeDetails(registration, seed, partials)
	merged.ConfidenceScore = DetailsConfidence(&merged, len(partials))
	return &merged, nil
}

func (a *DetailsAgent) scrapeSource(ctx context.Context, registration string, src Source) (*dtos.AircraftDetails, error) {
	page, err := a.loader.Fetch(ctx, src.URL)
	if err != nil {
		return nil, err
	}

	title := strings.ToLower(page.Title)
	if strings.Contains(title, "not found") || strings.Contains(title, "404") {
		return nil, nil
	}

	prompt := fmt.Sprintf(
		"Extract details for aircraft registration %s from this page. Use null for anything the page does not state.\n"+
			"Respond with JSON: {\"aircraft_type\": \"...\", \"manufacturer\": \"...\", \"model\": \"...\", \"msn\": \"...\", "+
			"\"seat_configuration\": {\"first\": 0, \"business\": 0, \"premium_economy\": 0, \"economy\": 0, \"total\": 0}, "+
			"\"delivery_date\": \"YYYY-MM-DD\", \"status\": \"Active|Stored|Maintenance|Retired|Scrapped|Unknown\", "+
			"\"current_location\": \"...\", \"last_flight_date\": \"YYYY-MM-DD\", \"engines\": \"...\"}\n\nPage HTML:\n%s",
		registration, scrape.TruncateHTML(page.HTML, detailsHTMLBudget),
	)

	var payload detailsPayload
	if err := a.extractor.ExtractJSON(ctx, prompt, scrape.ExtractOptions{MaxTokens: 1024}, &payload); err != nil {
		return nil, err
	}

	return payload.toDetails(registration, src.URL), nil
}

func (p *detailsPayload) toDetails(registration, sourceURL string) *dtos.AircraftDetails {
	d := &dtos.AircraftDetails{
		Registration:    registration,
		AircraftType:    p.AircraftType,
		Manufacturer:    p.Manufacturer,
		Model:           p.Model,
		SerialNumber:    p.MSN,
		DeliveryDate:    p.DeliveryDate,
		CurrentLocation: p.CurrentLocation,
		LastFlightDate:  p.LastFlightDate,
		Engines:         p.Engines,
		Status:          string(constants.AircraftStatusUnknown),
		DataSources:     []string{sourceURL},
		ExtractedAt:     time.Now().UTC(),
	}
	if p.Status != nil && *p.Status != "" {
		d.Status = *p.Status
	}
	if p.SeatConfiguration != nil {
		d.SeatConfiguration = &dtos.SeatConfiguration{
			First:          p.SeatConfiguration.First,
			Business:       p.SeatConfiguration.Business,
			PremiumEconomy: p.SeatConfiguration.PremiumEconomy,
			Economy:        p.SeatConfiguration.Economy,
			Total:          p.SeatConfiguration.Total,
		}
	}
	return d
}

// seedFromExisting converts the stored record into a detail record so the
// merge starts from what is already known.
func (a *DetailsAgent) seedFromExisting(ctx context.Context, registration string) (*dtos.AircraftDetails, error) {
	record, err := a.aircraft.FindByRegistration(ctx, registration)
	if err != nil {
		return nil, err
	}
	return DetailsFromRecord(registration, record), nil
}

// DetailsFromRecord projects a stored aircraft record into the detail shape
// the agents and validation operate on. Nil in, nil out.
func DetailsFromRecord(registration string, record *entities.AircraftRecord) *dtos.AircraftDetails {
	if record == nil {
		return nil
	}

	seed := &dtos.AircraftDetails{
		Registration: registration,
		SerialNumber: record.Aircraft.ManufacturerSerialNumber,
		AgeYears:     record.Aircraft.AgeYears,
		Status:       record.Aircraft.Status,
		DataSources:  []string{"existing_record"},
	}

	if record.Aircraft.DeliveryDate != nil {
		seed.DeliveryDate = strPtr(record.Aircraft.DeliveryDate.Format("2006-01-02"))
	}
	if record.Aircraft.LastSeenDate != nil {
		seed.LastFlightDate = strPtr(record.Aircraft.LastSeenDate.Format("2006-01-02"))
	}
	if record.Type != nil {
		if record.Type.IATACode != nil {
			seed.AircraftType = record.Type.IATACode
		} else if record.Type.ICAOCode != nil {
			seed.AircraftType = record.Type.ICAOCode
		}
		seed.Manufacturer = strPtr(record.Type.Manufacturer)
		seed.Model = strPtr(record.Type.Model)
	}
	if record.Configuration != nil {
		seed.SeatConfiguration = &dtos.SeatConfiguration{
			First:          record.Configuration.ClassFirst,
			Business:       record.Configuration.ClassBusiness,
			PremiumEconomy: record.Configuration.ClassPremiumEconomy,
			Economy:        record.Configuration.ClassEconomy,
			Total:          record.Configuration.TotalSeats,
		}
	}
	if meta, err := record.Aircraft.Meta(); err == nil && meta != nil {
		seed.ConfidenceScore = meta.ConfidenceScore
		seed.DataSources = appendSources(seed.DataSources, meta.DataSources)
	}

	return seed
}
