package entities

import (
	"encoding/json"
	"time"
)

// AircraftMetadata is the JSONB blob attached to an aircraft row.
type AircraftMetadata struct {
	ConfidenceScore float64  `json:"confidence_score"`
	DataSources     []string `json:"data_sources"`
	ExtractedAt     string   `json:"extracted_at"` // ISO-8601 UTC
}

type Aircraft struct {
	ID                       int64      `db:"id"`
	CurrentAirlineID         *int64     `db:"current_airline_id"`
	AircraftTypeID           *int64     `db:"aircraft_type_id"`
	Registration             string     `db:"registration"`
	ManufacturerSerialNumber *string    `db:"manufacturer_serial_number"`
	DeliveryDate             *time.Time `db:"delivery_date"`
	AgeYears                 *float64   `db:"age_years"`
	Status                   string     `db:"status"`
	LastSeenDate             *time.Time `db:"last_seen_date"`
	Metadata                 []byte     `db:"metadata"` // JSONB, see Meta()
	LastScrapedAt            *time.Time `db:"last_scraped_at"`
	CreatedAt                time.Time  `db:"created_at"`
	UpdatedAt                time.Time  `db:"updated_at"`
}

func (a *Aircraft) Meta() (*AircraftMetadata, error) {
	if len(a.Metadata) == 0 {
		return nil, nil
	}
	var m AircraftMetadata
	if err := json.Unmarshal(a.Metadata, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

type AircraftConfiguration struct {
	ID                  int64     `db:"id"`
	AircraftID          int64     `db:"aircraft_id"`
	ClassFirst          *int      `db:"class_first"`
	ClassBusiness       *int      `db:"class_business"`
	ClassPremiumEconomy *int      `db:"class_premium_economy"`
	ClassEconomy        *int      `db:"class_economy"`
	TotalSeats          *int      `db:"total_seats"`
	IsCurrent           bool      `db:"is_current"`
	CreatedAt           time.Time `db:"created_at"`
	UpdatedAt           time.Time `db:"updated_at"`
}

// AircraftRecord bundles an aircraft row with its joined reference rows.
type AircraftRecord struct {
	Aircraft      Aircraft
	Type          *AircraftType
	Configuration *AircraftConfiguration
}
