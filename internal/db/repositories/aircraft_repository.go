package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jbandu/fleetscraper/internal/constants"
	"github.com/jbandu/fleetscraper/internal/models/entities"

	"github.com/jmoiron/sqlx"
)

type AircraftRepository struct {
	db *sqlx.DB
}

func NewAircraftRepository(db *sqlx.DB) *AircraftRepository {
	return &AircraftRepository{db}
}

// AircraftPatch carries the fields an update may touch. Nil pointers leave the
// stored value alone; Status always overwrites.
type AircraftPatch struct {
	CurrentAirlineID *int64
	AircraftTypeID   *int64
	SerialNumber     *string
	DeliveryDate     *time.Time
	AgeYears         *float64
	Status           string
	LastSeenDate     *time.Time
	Metadata         []byte
}

// FindByRegistration loads an aircraft with its joined type and current
// configuration. Returns (nil, nil) when no row matches.
func (r *AircraftRepository) FindByRegistration(ctx context.Context, registration string) (*entities.AircraftRecord, error) {
	var aircraft entities.Aircraft
	err := r.db.QueryRowxContext(ctx, constants.GetAircraftByRegistration, registration).StructScan(&aircraft)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	record := &entities.AircraftRecord{Aircraft: aircraft}

	if aircraft.AircraftTypeID != nil {
		var t entities.AircraftType
		err = r.db.QueryRowxContext(ctx, constants.GetAircraftTypeByID, *aircraft.AircraftTypeID).StructScan(&t)
		if err == nil {
			record.Type = &t
		} else if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
	}

	var cfg entities.AircraftConfiguration
	err = r.db.QueryRowxContext(ctx, constants.GetCurrentConfiguration, aircraft.ID).StructScan(&cfg)
	if err == nil {
		record.Configuration = &cfg
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	return record, nil
}

// Insert creates a new aircraft row and returns its id. Uniqueness on
// registration is enforced by the database; a duplicate fails the insert.
func (r *AircraftRepository) Insert(ctx context.Context, a *entities.Aircraft) (int64, error) {
	var id int64
	err := r.db.QueryRowxContext(ctx, constants.InsertAircraft,
		a.CurrentAirlineID,
		a.AircraftTypeID,
		a.Registration,
		a.ManufacturerSerialNumber,
		a.DeliveryDate,
		a.AgeYears,
		a.Status,
		a.LastSeenDate,
		jsonbParam(a.Metadata),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert aircraft %s: %w", a.Registration, err)
	}
	return id, nil
}

// Update patches an existing aircraft by registration.
func (r *AircraftRepository) Update(ctx context.Context, registration string, patch *AircraftPatch) (int64, error) {
	var id int64
	err := r.db.QueryRowxContext(ctx, constants.UpdateAircraftByRegistration,
		registration,
		patch.CurrentAirlineID,
		patch.AircraftTypeID,
		patch.SerialNumber,
		patch.DeliveryDate,
		patch.AgeYears,
		patch.Status,
		patch.LastSeenDate,
		jsonbParam(patch.Metadata),
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("update aircraft: no row for registration %s", registration)
	}
	if err != nil {
		return 0, fmt.Errorf("update aircraft %s: %w", registration, err)
	}
	return id, nil
}

// ReplaceCurrentConfiguration retires any prior current rows and inserts the
// new layout in one transaction, preserving at most one is_current row.
func (r *AircraftRepository) ReplaceCurrentConfiguration(ctx context.Context, aircraftID int64, cfg *entities.AircraftConfiguration) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() // safe even after Commit

	if _, err := tx.ExecContext(ctx, constants.RetireCurrentConfigurations, aircraftID); err != nil {
		return fmt.Errorf("retire configurations: %w", err)
	}

	var id int64
	if err := tx.QueryRowxContext(ctx, constants.InsertConfiguration,
		aircraftID,
		cfg.ClassFirst,
		cfg.ClassBusiness,
		cfg.ClassPremiumEconomy,
		cfg.ClassEconomy,
		cfg.TotalSeats,
	).Scan(&id); err != nil {
		return fmt.Errorf("insert configuration: %w", err)
	}

	return tx.Commit()
}

// jsonbParam renders a JSONB parameter. lib/pq encodes []byte as bytea, so
// JSON payloads go over the wire as text.
func jsonbParam(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
