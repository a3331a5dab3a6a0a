package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jbandu/fleetscraper/internal/agents"
	"github.com/jbandu/fleetscraper/internal/db/repositories"
	"github.com/jbandu/fleetscraper/internal/logging"
	"github.com/jbandu/fleetscraper/internal/models/dtos"
	"github.com/jbandu/fleetscraper/internal/models/entities"
)

// Store is the persistence surface the workflow needs. *repositories.Catalog
// satisfies it; tests plug in fakes.
type Store interface {
	FindAirlineByCode(ctx context.Context, code string) (*entities.Airline, error)
	FindAircraftByRegistration(ctx context.Context, registration string) (*entities.AircraftRecord, error)
	FindAircraftTypeByCode(ctx context.Context, code string) (*entities.AircraftType, error)
	InsertAircraft(ctx context.Context, a *entities.Aircraft) (int64, error)
	UpdateAircraft(ctx context.Context, registration string, patch *repositories.AircraftPatch) (int64, error)
	ReplaceCurrentConfiguration(ctx context.Context, aircraftID int64, cfg *entities.AircraftConfiguration) error
	TouchAirlineScrapedAt(ctx context.Context, code string) error
}

// Options modify a single run.
type Options struct {
	ForceFullScrape bool
	DryRun          bool
}

// Config bounds the per-job fan-out.
type Config struct {
	Concurrency int
	BatchDelay  time.Duration
}

// Workflow drives one airline through discovery, details, validation and
// persistence.
type Workflow struct {
	discovery  *agents.DiscoveryAgent
	details    *agents.DetailsAgent
	validation *agents.ValidationAgent
	store      Store
	cfg        Config
}

func New(discovery *agents.DiscoveryAgent, details *agents.DetailsAgent, validation *agents.ValidationAgent, store Store, cfg Config) *Workflow {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}
	if cfg.BatchDelay <= 0 {
		cfg.BatchDelay = 2 * time.Second
	}
	return &Workflow{
		discovery:  discovery,
		details:    details,
		validation: validation,
		store:      store,
		cfg:        cfg,
	}
}

type validated struct {
	record dtos.AircraftDetails
	result *dtos.ValidationResult
}

// RunFullUpdate executes the four phases for one airline. An empty discovery
// is a successful run with zero counts; errors returned here are job-level
// and flow into the retry state machine.
func (w *Workflow) RunFullUpdate(ctx context.Context, airlineCode string, opts Options) (*dtos.WorkflowResult, error) {
	started := time.Now()
	result := &dtos.WorkflowResult{}
	log := logging.GetLogger().With("airline_code", airlineCode)

	// Phase 1: discovery.
	discoveryResult, err := w.discovery.Discover(ctx, airlineCode, nil, opts.ForceFullScrape)
	if err != nil {
		return nil, err
	}
	result.Details.Discovery = discoveryResult
	result.AircraftFound = len(discoveryResult.Registrations)

	log.Infow("discovery complete",
		"registrations", len(discoveryResult.Registrations),
		"method", discoveryResult.Method,
		"confidence", discoveryResult.Confidence,
	)

	if len(discoveryResult.Registrations) == 0 {
		result.DurationMS = time.Since(started).Milliseconds()
		return result, nil
	}

	// Phase 2: details fan-out.
	records := w.runDetailsPhase(ctx, airlineCode, discoveryResult.Registrations, result)

	// Phase 3: validation fan-out.
	validatedRecords := w.runValidationPhase(ctx, records, result)

	// Phase 4: persistence, sequential per aircraft.
	if opts.DryRun {
		result.AircraftSkipped = len(validatedRecords)
		log.Infow("dry run, persistence skipped", "records", len(validatedRecords))
	} else if err := w.persistAll(ctx, airlineCode, validatedRecords, result); err != nil {
		return nil, err
	}

	if n := len(validatedRecords); n > 0 {
		sum := 0.0
		for _, v := range validatedRecords {
			sum += v.record.ConfidenceScore
		}
		result.ConfidenceAvg = sum / float64(n)
	}

	result.DurationMS = time.Since(started).Milliseconds()
	log.Infow("workflow complete",
		"found", result.AircraftFound,
		"added", result.AircraftAdded,
		"updated", result.AircraftUpdated,
		"skipped", result.AircraftSkipped,
		"errors", result.Errors,
		"duration_ms", result.DurationMS,
	)
	return result, nil
}

func (w *Workflow) runDetailsPhase(ctx context.Context, airlineCode string, registrations []string, result *dtos.WorkflowResult) []dtos.AircraftDetails {
	var records []dtos.AircraftDetails

	w.forEachBatch(ctx, len(registrations), func(start, end int) {
		batch := registrations[start:end]
		out := make([]*dtos.AircraftDetails, len(batch))
		failures := make([]string, len(batch))

		var grp errgroup.Group
		for i, reg := range batch {
			i, reg := i, reg
			grp.Go(func() error {
				details, err := w.details.FetchDetails(ctx, reg, airlineCode)
				if err != nil {
					logging.Warn("details failed", "registration", reg, "error", err.Error())
					failures[i] = fmt.Sprintf("%s: %s", reg, err.Error())
					return nil
				}
				out[i] = details
				return nil
			})
		}
		_ = grp.Wait()

		for i, d := range out {
			if d != nil {
				records = append(records, *d)
			} else if failures[i] != "" {
				result.Details.Errors = append(result.Details.Errors, failures[i])
				result.Errors++
			}
		}
	})

	return records
}

func (w *Workflow) runValidationPhase(ctx context.Context, records []dtos.AircraftDetails, result *dtos.WorkflowResult) []validated {
	out := make([]validated, len(records))

	w.forEachBatch(ctx, len(records), func(start, end int) {
		var grp errgroup.Group
		for i := start; i < end; i++ {
			i := i
			grp.Go(func() error {
				candidate := records[i]

				var existing *dtos.AircraftDetails
				if record, err := w.store.FindAircraftByRegistration(ctx, candidate.Registration); err == nil {
					existing = agents.DetailsFromRecord(candidate.Registration, record)
				} else {
					logging.Warn("existing record lookup failed", "registration", candidate.Registration, "error", err.Error())
				}

				vr := w.validation.Validate(ctx, &candidate, existing)
				effective := agents.ApplyRecommended(candidate, vr.RecommendedValues)
				effective.ConfidenceScore = vr.ConfidenceScore

				if !vr.IsValid {
					logging.Warn("validation errors recorded",
						"registration", candidate.Registration,
						"summary", vr.Summary,
					)
				}

				out[i] = validated{record: effective, result: vr}
				return nil
			})
		}
		_ = grp.Wait()
	})

	return out
}

func (w *Workflow) persistAll(ctx context.Context, airlineCode string, records []validated, result *dtos.WorkflowResult) error {
	airline, err := w.store.FindAirlineByCode(ctx, airlineCode)
	if err != nil {
		return err
	}

	for _, v := range records {
		if v.record.Registration == "" {
			result.AircraftSkipped++
			continue
		}

		op, err := w.persistAircraft(ctx, airline, v.record)
		if err != nil {
			result.Errors++
			result.Details.Errors = append(result.Details.Errors, fmt.Sprintf("%s: %s", v.record.Registration, err.Error()))
			logging.Error("persist failed", "registration", v.record.Registration, "error", err.Error())
			continue
		}

		switch op {
		case "added":
			result.AircraftAdded++
		case "updated":
			result.AircraftUpdated++
		}
		result.Details.Processing = append(result.Details.Processing,
			fmt.Sprintf("%s: %s (confidence %.2f)", v.record.Registration, op, v.record.ConfidenceScore))
	}

	return w.store.TouchAirlineScrapedAt(ctx, airlineCode)
}

func (w *Workflow) persistAircraft(ctx context.Context, airline *entities.Airline, record dtos.AircraftDetails) (string, error) {
	var typeID *int64
	if record.AircraftType != nil {
		if spec, err := w.store.FindAircraftTypeByCode(ctx, *record.AircraftType); err == nil {
			typeID = &spec.ID
		} else {
			logging.Warn("aircraft type unresolved", "registration", record.Registration, "type", *record.AircraftType)
		}
	}

	meta, err := json.Marshal(entities.AircraftMetadata{
		ConfidenceScore: record.ConfidenceScore,
		DataSources:     record.DataSources,
		ExtractedAt:     record.ExtractedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return "", err
	}

	status := record.Status
	if status == "" {
		status = "Unknown"
	}

	deliveryDate := parseDatePtr(record.DeliveryDate)
	lastSeen := parseDatePtr(record.LastFlightDate)

	existing, err := w.store.FindAircraftByRegistration(ctx, record.Registration)
	if err != nil {
		return "", err
	}

	var aircraftID int64
	op := "updated"
	if existing == nil {
		op = "added"
		aircraftID, err = w.store.InsertAircraft(ctx, &entities.Aircraft{
			CurrentAirlineID:         &airline.ID,
			AircraftTypeID:           typeID,
			Registration:             record.Registration,
			ManufacturerSerialNumber: record.SerialNumber,
			DeliveryDate:             deliveryDate,
			AgeYears:                 record.AgeYears,
			Status:                   status,
			LastSeenDate:             lastSeen,
			Metadata:                 meta,
		})
	} else {
		aircraftID, err = w.store.UpdateAircraft(ctx, record.Registration, &repositories.AircraftPatch{
			CurrentAirlineID: &airline.ID,
			AircraftTypeID:   typeID,
			SerialNumber:     record.SerialNumber,
			DeliveryDate:     deliveryDate,
			AgeYears:         record.AgeYears,
			Status:           status,
			LastSeenDate:     lastSeen,
			Metadata:         meta,
		})
	}
	if err != nil {
		return "", err
	}

	if record.SeatConfiguration.PopulatedFields() > 0 {
		cfg := &entities.AircraftConfiguration{
			ClassFirst:          record.SeatConfiguration.First,
			ClassBusiness:       record.SeatConfiguration.Business,
			ClassPremiumEconomy: record.SeatConfiguration.PremiumEconomy,
			ClassEconomy:        record.SeatConfiguration.Economy,
			TotalSeats:          record.SeatConfiguration.Total,
		}
		if err := w.store.ReplaceCurrentConfiguration(ctx, aircraftID, cfg); err != nil {
			return "", fmt.Errorf("replace configuration: %w", err)
		}
	}

	return op, nil
}

// forEachBatch runs fn over [0,total) in Concurrency-sized windows with the
// inter-batch delay in between. Cancellation takes effect at batch
// boundaries; the in-flight batch always drains.
func (w *Workflow) forEachBatch(ctx context.Context, total int, fn func(start, end int)) {
	for start := 0; start < total; start += w.cfg.Concurrency {
		if ctx.Err() != nil {
			return
		}

		end := start + w.cfg.Concurrency
		if end > total {
			end = total
		}
		fn(start, end)

		if end < total {
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.cfg.BatchDelay):
			}
		}
	}
}

func parseDatePtr(s *string) *time.Time {
	if s == nil {
		return nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339, "2006-01", "2006"} {
		if t, err := time.Parse(layout, *s); err == nil {
			return &t
		}
	}
	return nil
}
