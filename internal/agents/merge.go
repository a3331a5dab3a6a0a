package agents

import (
	"time"

	"github.com/jbandu/fleetscraper/internal/constants"
	"github.com/jbandu/fleetscraper/internal/models/dtos"
)

// MergeDetails fuses an optional existing record and per-source partials into
// one detail record. Merge order is existing first, then partials in source
// priority order: for scalar fields the first non-nil value wins, so a stored
// MSN is sticky against anything a source reports later.
func MergeDetails(registration string, existing *dtos.AircraftDetails, partials []dtos.AircraftDetails) dtos.AircraftDetails {
	merged := dtos.AircraftDetails{
		Registration: registration,
		Status:       string(constants.AircraftStatusUnknown),
		ExtractedAt:  time.Now().UTC(),
	}

	ordered := make([]dtos.AircraftDetails, 0, len(partials)+1)
	if existing != nil {
		ordered = append(ordered, *existing)
	}
	ordered = append(ordered, partials...)

	for _, d := range ordered {
		merged.AircraftType = firstStr(merged.AircraftType, d.AircraftType)
		merged.Manufacturer = firstStr(merged.Manufacturer, d.Manufacturer)
		merged.Model = firstStr(merged.Model, d.Model)
		merged.SerialNumber = firstStr(merged.SerialNumber, d.SerialNumber)
		merged.DeliveryDate = firstStr(merged.DeliveryDate, d.DeliveryDate)
		merged.CurrentLocation = firstStr(merged.CurrentLocation, d.CurrentLocation)
		merged.Engines = firstStr(merged.Engines, d.Engines)
		merged.DataSources = appendSources(merged.DataSources, d.DataSources)
	}

	// Status: keep the existing value unless a source reports something more
	// specific than Unknown.
	if existing != nil && existing.Status != "" {
		merged.Status = existing.Status
	}
	for _, p := range partials {
		if p.Status != "" && p.Status != string(constants.AircraftStatusUnknown) {
			merged.Status = p.Status
			break
		}
	}

	// Seat configuration: richest candidate wins, earlier candidates on ties.
	for _, d := range ordered {
		if d.SeatConfiguration.PopulatedFields() > merged.SeatConfiguration.PopulatedFields() {
			cfg := *d.SeatConfiguration
			merged.SeatConfiguration = &cfg
		}
	}

	// Last flight date: most recent value across all candidates.
	var lastFlight *string
	var lastFlightTime time.Time
	for _, d := range ordered {
		if d.LastFlightDate == nil {
			continue
		}
		t, ok := parseDate(*d.LastFlightDate)
		if !ok {
			continue
		}
		if lastFlight == nil || t.After(lastFlightTime) {
			lastFlight, lastFlightTime = d.LastFlightDate, t
		}
	}
	merged.LastFlightDate = lastFlight

	for _, d := range ordered {
		if d.AgeYears != nil {
			merged.AgeYears = d.AgeYears
			break
		}
	}
	if merged.AgeYears == nil && merged.DeliveryDate != nil {
		if delivered, ok := parseDate(*merged.DeliveryDate); ok {
			age := float64(time.Now().Year() - delivered.Year())
			merged.AgeYears = &age
		}
	}

	return merged
}

// DetailsConfidence scores a merged record: corroboration across sources plus
// per-field completeness bonuses.
func DetailsConfidence(d *dtos.AircraftDetails, sourceCount int) float64 {
	if sourceCount > 2 {
		sourceCount = 2
	}
	confidence := 0.15 * float64(sourceCount)

	if d.AircraftType != nil {
		confidence += 0.15
	}
	if d.Manufacturer != nil {
		confidence += 0.1
	}
	if d.Model != nil {
		confidence += 0.1
	}
	if d.SerialNumber != nil {
		confidence += 0.15
	}
	if d.DeliveryDate != nil {
		confidence += 0.1
	}
	if d.SeatConfiguration.PopulatedFields() > 0 {
		confidence += 0.1
	}

	if confidence > 1.0 {
		confidence = 1.0
	}
	return confidence
}

// ApplyRecommended overlays validation's recommended values onto a copy of
// the record, producing the effective record that gets persisted.
func ApplyRecommended(d dtos.AircraftDetails, recommended map[string]interface{}) dtos.AircraftDetails {
	if d.SeatConfiguration != nil {
		cfg := *d.SeatConfiguration
		d.SeatConfiguration = &cfg
	}

	for field, value := range recommended {
		switch field {
		case "msn":
			if s, ok := value.(string); ok {
				d.SerialNumber = &s
			}
		case "delivery_date":
			if s, ok := value.(string); ok {
				d.DeliveryDate = &s
			}
		case "manufacturer":
			if s, ok := value.(string); ok {
				d.Manufacturer = &s
			}
		case "status":
			if s, ok := value.(string); ok {
				d.Status = s
			}
		case "age_years":
			if f, ok := toFloat(value); ok {
				d.AgeYears = &f
			}
		case "seat_total":
			if f, ok := toFloat(value); ok {
				total := int(f)
				if d.SeatConfiguration == nil {
					d.SeatConfiguration = &dtos.SeatConfiguration{}
				}
				d.SeatConfiguration.Total = &total
			}
		}
	}
	return d
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}

func firstStr(current, candidate *string) *string {
	if current != nil {
		return current
	}
	if candidate != nil && *candidate != "" {
		return candidate
	}
	return nil
}

func appendSources(current, extra []string) []string {
	seen := make(map[string]bool, len(current))
	for _, s := range current {
		seen[s] = true
	}
	for _, s := range extra {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		current = append(current, s)
	}
	return current
}
