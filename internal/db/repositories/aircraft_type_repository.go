package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jbandu/fleetscraper/internal/constants"
	"github.com/jbandu/fleetscraper/internal/models/entities"

	"github.com/jmoiron/sqlx"
)

type AircraftTypeRepository struct {
	db *sqlx.DB
}

func NewAircraftTypeRepository(db *sqlx.DB) *AircraftTypeRepository {
	return &AircraftTypeRepository{db}
}

// FindByCode resolves a type by IATA or ICAO type code, case-insensitive.
func (r *AircraftTypeRepository) FindByCode(ctx context.Context, code string) (*entities.AircraftType, error) {
	var t entities.AircraftType
	err := r.db.QueryRowxContext(ctx, constants.GetAircraftTypeByCode, code).StructScan(&t)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", constants.ErrAircraftTypeNotFound, code)
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *AircraftTypeRepository) FindByID(ctx context.Context, id int64) (*entities.AircraftType, error) {
	var t entities.AircraftType
	err := r.db.QueryRowxContext(ctx, constants.GetAircraftTypeByID, id).StructScan(&t)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", constants.ErrAircraftTypeNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}
