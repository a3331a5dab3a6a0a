package entities

import (
	"encoding/json"
	"time"
)

// SourceURL is one entry of an airline's ordered scrape source list.
type SourceURL struct {
	URL      string `json:"url"`
	Type     string `json:"type"`
	Priority int    `json:"priority"`
}

type Airline struct {
	ID                 int64      `db:"id"`
	IATACode           string     `db:"iata_code"`
	ICAOCode           *string    `db:"icao_code"`
	Name               string     `db:"name"`
	Country            *string    `db:"country"`
	HubAirport         *string    `db:"hub_airport"`
	WebsiteURL         *string    `db:"website_url"`
	ScrapeEnabled      bool       `db:"scrape_enabled"`
	ScrapeSourceURLs   []byte     `db:"scrape_source_urls"` // JSONB, see SourceURLs()
	ScrapeScheduleCron *string    `db:"scrape_schedule_cron"`
	FleetSizeEstimate  *int       `db:"fleet_size_estimate"`
	LastScrapedAt      *time.Time `db:"last_scraped_at"`
	CreatedAt          time.Time  `db:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at"`
}

// SourceURLs decodes the stored source list. A null or empty column yields nil.
func (a *Airline) SourceURLs() ([]SourceURL, error) {
	if len(a.ScrapeSourceURLs) == 0 {
		return nil, nil
	}
	var urls []SourceURL
	if err := json.Unmarshal(a.ScrapeSourceURLs, &urls); err != nil {
		return nil, err
	}
	return urls, nil
}
