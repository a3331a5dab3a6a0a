package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/jbandu/fleetscraper/internal/constants"
	"github.com/jbandu/fleetscraper/internal/logging"
	"github.com/jbandu/fleetscraper/internal/models/dtos"
	"github.com/jbandu/fleetscraper/internal/scrape"
)

// ValidationAgent runs the rule and semantic checks over a candidate record.
// Issues are data, not errors: the agent always returns a result.
type ValidationAgent struct {
	types     TypeStore
	extractor scrape.Extractor
}

func NewValidationAgent(types TypeStore, extractor scrape.Extractor) *ValidationAgent {
	return &ValidationAgent{types: types, extractor: extractor}
}

// Validate checks candidate against format rules, internal consistency, the
// existing record, the type specification and a semantic extractor pass.
func (a *ValidationAgent) Validate(ctx context.Context, candidate, existing *dtos.AircraftDetails) *dtos.ValidationResult {
	var issues []dtos.ValidationIssue

	issues = append(issues, a.formatChecks(candidate)...)
	issues = append(issues, a.logicChecks(candidate)...)
	if existing != nil {
		issues = append(issues, a.crossReferenceChecks(candidate, existing)...)
	}
	issues = append(issues, a.typeSpecChecks(ctx, candidate)...)
	issues = append(issues, a.semanticChecks(ctx, candidate)...)

	result := &dtos.ValidationResult{
		Issues:            issues,
		RecommendedValues: make(map[string]interface{}),
		ValidatedAt:       time.Now().UTC(),
	}

	for _, issue := range issues {
		if issue.Severity != constants.SeverityInfo && issue.SuggestedValue != nil {
			result.RecommendedValues[issue.Field] = issue.SuggestedValue
		}
	}

	errorCount := result.CountBySeverity(constants.SeverityError)
	warningCount := result.CountBySeverity(constants.SeverityWarning)
	infoCount := result.CountBySeverity(constants.SeverityInfo)

	result.IsValid = errorCount == 0
	result.ConfidenceScore = clamp01(candidate.ConfidenceScore -
		0.2*float64(errorCount) -
		0.1*float64(warningCount) -
		0.05*float64(infoCount) +
		0.2*completeness(candidate))

	if len(issues) == 0 {
		result.Summary = "no issues"
	} else {
		result.Summary = fmt.Sprintf("%d issues (%d errors, %d warnings, %d info)",
			len(issues), errorCount, warningCount, infoCount)
	}

	return result
}

func (a *ValidationAgent) formatChecks(c *dtos.AircraftDetails) []dtos.ValidationIssue {
	var issues []dtos.ValidationIssue

	if c.Registration == "" || !MatchesRegistrationPattern(c.Registration) {
		issues = append(issues, dtos.ValidationIssue{
			Field:    "registration",
			Severity: constants.SeverityError,
			Message:  fmt.Sprintf("registration %q does not match any national format", c.Registration),
		})
	}

	if c.DeliveryDate != nil {
		delivered, ok := parseDate(*c.DeliveryDate)
		switch {
		case !ok:
			issues = append(issues, dtos.ValidationIssue{
				Field:    "delivery_date",
				Severity: constants.SeverityError,
				Message:  fmt.Sprintf("unparseable delivery date %q", *c.DeliveryDate),
			})
		case delivered.Year() < 1903:
			issues = append(issues, dtos.ValidationIssue{
				Field:    "delivery_date",
				Severity: constants.SeverityError,
				Message:  "delivery date predates powered flight",
			})
		case delivered.After(time.Now()):
			issues = append(issues, dtos.ValidationIssue{
				Field:    "delivery_date",
				Severity: constants.SeverityWarning,
				Message:  "delivery date is in the future",
			})
		}
	}

	if c.LastFlightDate != nil {
		if _, ok := parseDate(*c.LastFlightDate); !ok {
			issues = append(issues, dtos.ValidationIssue{
				Field:    "last_flight_date",
				Severity: constants.SeverityError,
				Message:  fmt.Sprintf("unparseable last flight date %q", *c.LastFlightDate),
			})
		}
	}

	if cfg := c.SeatConfiguration; cfg != nil {
		if sum, any := cfg.CabinSum(); any && cfg.Total != nil && sum != *cfg.Total {
			issues = append(issues, dtos.ValidationIssue{
				Field:          "seat_total",
				Severity:       constants.SeverityWarning,
				Message:        fmt.Sprintf("cabin counts sum to %d but total is %d", sum, *cfg.Total),
				SuggestedValue: sum,
			})
		}
		if cfg.Total != nil && *cfg.Total > 1000 {
			issues = append(issues, dtos.ValidationIssue{
				Field:    "seat_total",
				Severity: constants.SeverityWarning,
				Message:  fmt.Sprintf("implausible seat total %d", *cfg.Total),
			})
		}
	}

	return issues
}

func (a *ValidationAgent) logicChecks(c *dtos.AircraftDetails) []dtos.ValidationIssue {
	var issues []dtos.ValidationIssue

	if c.DeliveryDate != nil && c.LastFlightDate != nil {
		delivered, okD := parseDate(*c.DeliveryDate)
		lastFlight, okL := parseDate(*c.LastFlightDate)
		if okD && okL && lastFlight.Before(delivered) {
			issues = append(issues, dtos.ValidationIssue{
				Field:    "last_flight_date",
				Severity: constants.SeverityError,
				Message:  "last flight predates delivery",
			})
		}
	}

	if c.AgeYears != nil && c.DeliveryDate != nil {
		if delivered, ok := parseDate(*c.DeliveryDate); ok {
			expected := float64(time.Now().Year() - delivered.Year())
			if math.Abs(*c.AgeYears-expected) > 1 {
				issues = append(issues, dtos.ValidationIssue{
					Field:          "age_years",
					Severity:       constants.SeverityWarning,
					Message:        fmt.Sprintf("age %.0f inconsistent with delivery year", *c.AgeYears),
					SuggestedValue: expected,
				})
			}
		}
	}

	if !constants.IsValidAircraftStatus(c.Status) {
		issues = append(issues, dtos.ValidationIssue{
			Field:          "status",
			Severity:       constants.SeverityWarning,
			Message:        fmt.Sprintf("unknown status %q", c.Status),
			SuggestedValue: string(constants.AircraftStatusUnknown),
		})
	}

	return issues
}

func (a *ValidationAgent) crossReferenceChecks(c, existing *dtos.AircraftDetails) []dtos.ValidationIssue {
	var issues []dtos.ValidationIssue

	if existing.SerialNumber != nil && c.SerialNumber != nil && *existing.SerialNumber != *c.SerialNumber {
		issues = append(issues, dtos.ValidationIssue{
			Field:          "msn",
			Severity:       constants.SeverityError,
			Message:        fmt.Sprintf("MSN changed from %q to %q; serial numbers are immutable", *existing.SerialNumber, *c.SerialNumber),
			SuggestedValue: *existing.SerialNumber,
		})
	}

	if existing.DeliveryDate != nil && c.DeliveryDate != nil && *existing.DeliveryDate != *c.DeliveryDate {
		issues = append(issues, dtos.ValidationIssue{
			Field:    "delivery_date",
			Severity: constants.SeverityWarning,
			Message:  fmt.Sprintf("delivery date changed from %q to %q", *existing.DeliveryDate, *c.DeliveryDate),
		})
	}

	if existing.ConfidenceScore-c.ConfidenceScore > 0.2 {
		issues = append(issues, dtos.ValidationIssue{
			Field:    "confidence_score",
			Severity: constants.SeverityInfo,
			Message:  fmt.Sprintf("confidence dropped from %.2f to %.2f", existing.ConfidenceScore, c.ConfidenceScore),
		})
	}

	return issues
}

func (a *ValidationAgent) typeSpecChecks(ctx context.Context, c *dtos.AircraftDetails) []dtos.ValidationIssue {
	if c.AircraftType == nil || a.types == nil {
		return nil
	}

	spec, err := a.types.FindByCode(ctx, *c.AircraftType)
	if err != nil {
		return []dtos.ValidationIssue{{
			Field:    "aircraft_type",
			Severity: constants.SeverityWarning,
			Message:  fmt.Sprintf("aircraft type %q not in reference data", *c.AircraftType),
		}}
	}

	var issues []dtos.ValidationIssue

	if c.Manufacturer != nil && !strings.EqualFold(*c.Manufacturer, spec.Manufacturer) {
		issues = append(issues, dtos.ValidationIssue{
			Field:          "manufacturer",
			Severity:       constants.SeverityWarning,
			Message:        fmt.Sprintf("manufacturer %q does not match type's %q", *c.Manufacturer, spec.Manufacturer),
			SuggestedValue: spec.Manufacturer,
		})
	}

	if c.SeatConfiguration != nil && c.SeatConfiguration.Total != nil &&
		spec.TypicalSeats != nil && spec.MaxSeats != nil {
		total := float64(*c.SeatConfiguration.Total)
		low := 0.7 * float64(*spec.TypicalSeats)
		high := 1.1 * float64(*spec.MaxSeats)
		if total < low || total > high {
			issues = append(issues, dtos.ValidationIssue{
				Field:    "seat_total",
				Severity: constants.SeverityWarning,
				Message:  fmt.Sprintf("seat total %d outside plausible range [%.0f, %.0f] for %s", *c.SeatConfiguration.Total, low, high, spec.Model),
			})
		}
	}

	return issues
}

type semanticPayload struct {
	Issues []struct {
		Field    string `json:"field"`
		Severity string `json:"severity"`
		Message  string `json:"message"`
	} `json:"issues"`
}

// semanticChecks hands the candidate to the extractor for a plausibility
// review. Failures are silent: the pass contributes zero issues.
func (a *ValidationAgent) semanticChecks(ctx context.Context, c *dtos.AircraftDetails) []dtos.ValidationIssue {
	if a.extractor == nil {
		return nil
	}

	payload, err := json.Marshal(c)
	if err != nil {
		return nil
	}

	prompt := fmt.Sprintf(
		"Review this aircraft record for implausible or contradictory values.\n"+
			"Respond with JSON: {\"issues\": [{\"field\": \"...\", \"severity\": \"error|warning|info\", \"message\": \"...\"}]}\n\nRecord:\n%s",
		payload,
	)

	var result semanticPayload
	if err := a.extractor.ExtractJSON(ctx, prompt, scrape.ExtractOptions{MaxTokens: 1024}, &result); err != nil {
		logging.Debug("semantic validation pass failed", "registration", c.Registration, "error", err.Error())
		return nil
	}

	issues := make([]dtos.ValidationIssue, 0, len(result.Issues))
	for _, i := range result.Issues {
		severity := i.Severity
		switch severity {
		case constants.SeverityError, constants.SeverityWarning, constants.SeverityInfo:
		default:
			severity = constants.SeverityInfo
		}
		issues = append(issues, dtos.ValidationIssue{Field: i.Field, Severity: severity, Message: i.Message})
	}
	return issues
}

// completeness is the populated share of the essential fields.
func completeness(c *dtos.AircraftDetails) float64 {
	populated := 0
	if c.Registration != "" {
		populated++
	}
	if c.AircraftType != nil {
		populated++
	}
	if c.Manufacturer != nil {
		populated++
	}
	if c.Model != nil {
		populated++
	}
	if c.SerialNumber != nil {
		populated++
	}
	if c.DeliveryDate != nil {
		populated++
	}
	if c.Status != "" && c.Status != string(constants.AircraftStatusUnknown) {
		populated++
	}
	return float64(populated) / 7.0
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
