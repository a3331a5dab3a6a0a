package repositories

import (
	"context"

	"github.com/jbandu/fleetscraper/internal/models/entities"

	"github.com/jmoiron/sqlx"
)

// Catalog bundles the typed repositories behind one persistence seam for the
// workflow.
type Catalog struct {
	Airlines *AirlineRepository
	Aircraft *AircraftRepository
	Types    *AircraftTypeRepository
}

func NewCatalog(db *sqlx.DB) *Catalog {
	return &Catalog{
		Airlines: NewAirlineRepository(db),
		Aircraft: NewAircraftRepository(db),
		Types:    NewAircraftTypeRepository(db),
	}
}

func (c *Catalog) FindAirlineByCode(ctx context.Context, code string) (*entities.Airline, error) {
	return c.Airlines.FindByCode(ctx, code)
}

func (c *Catalog) FindAircraftByRegistration(ctx context.Context, registration string) (*entities.AircraftRecord, error) {
	return c.Aircraft.FindByRegistration(ctx, registration)
}

func (c *Catalog) FindAircraftTypeByCode(ctx context.Context, code string) (*entities.AircraftType, error) {
	return c.Types.FindByCode(ctx, code)
}

func (c *Catalog) InsertAircraft(ctx context.Context, a *entities.Aircraft) (int64, error) {
	return c.Aircraft.Insert(ctx, a)
}

func (c *Catalog) UpdateAircraft(ctx context.Context, registration string, patch *AircraftPatch) (int64, error) {
	return c.Aircraft.Update(ctx, registration, patch)
}

func (c *Catalog) ReplaceCurrentConfiguration(ctx context.Context, aircraftID int64, cfg *entities.AircraftConfiguration) error {
	return c.Aircraft.ReplaceCurrentConfiguration(ctx, aircraftID, cfg)
}

func (c *Catalog) TouchAirlineScrapedAt(ctx context.Context, code string) error {
	return c.Airlines.TouchScrapedAt(ctx, code)
}
