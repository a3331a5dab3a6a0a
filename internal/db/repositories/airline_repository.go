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

type AirlineRepository struct {
	db *sqlx.DB
}

func NewAirlineRepository(db *sqlx.DB) *AirlineRepository {
	return &AirlineRepository{db}
}

// FindByCode resolves an airline by IATA or ICAO code, case-insensitive.
func (r *AirlineRepository) FindByCode(ctx context.Context, code string) (*entities.Airline, error) {
	var airline entities.Airline
	err := r.db.QueryRowxContext(ctx, constants.GetAirlineByCode, code).StructScan(&airline)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", constants.ErrAirlineNotFound, code)
	}
	if err != nil {
		return nil, err
	}
	return &airline, nil
}

func (r *AirlineRepository) TouchScrapedAt(ctx context.Context, code string) error {
	res, err := r.db.ExecContext(ctx, constants.TouchAirlineScrapedAt, code)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", constants.ErrAirlineNotFound, code)
	}
	return nil
}

// ListDue returns airlines eligible for a scheduled refresh, oldest first.
func (r *AirlineRepository) ListDue(ctx context.Context, staleDays, limit int) ([]entities.Airline, error) {
	var airlines []entities.Airline
	if err := r.db.SelectContext(ctx, &airlines, constants.ListDueAirlines, staleDays, limit); err != nil {
		return nil, err
	}
	return airlines, nil
}

func (r *AirlineRepository) ListEnabled(ctx context.Context) ([]entities.Airline, error) {
	var airlines []entities.Airline
	if err := r.db.SelectContext(ctx, &airlines, constants.ListEnabledAirlines); err != nil {
		return nil, err
	}
	return airlines, nil
}
