package entities

import "time"

// AircraftType is reference data: immutable from the engine's perspective.
type AircraftType struct {
	ID           int64     `db:"id"`
	IATACode     *string   `db:"iata_code"`
	ICAOCode     *string   `db:"icao_code"`
	Manufacturer string    `db:"manufacturer"`
	Model        string    `db:"model"`
	TypicalSeats *int      `db:"typical_seats"`
	MaxSeats     *int      `db:"max_seats"`
	RangeKM      *int      `db:"range_km"`
	EngineType   *string   `db:"engine_type"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}
