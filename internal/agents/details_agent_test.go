package agents

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/jbandu/fleetscraper/internal/constants"
	"github.com/jbandu/fleetscraper/internal/models/entities"
	"github.com/jbandu/fleetscraper/internal/scrape"
)

func TestFetchDetails_SingleSource(t *testing.T) {
	loader := &fakeLoader{pages: map[string]*scrape.PageResult{
		"https://www.planespotters.net/hex/N1ZZ": {HTML: "<table>details</table>", Title: "N1ZZ | Planespotters", HTTPStatus: 200},
	}}
	extractor := &fakeExtractor{respond: func(prompt string) (string, error) {
		return `{"aircraft_type": "738", "manufacturer": "Boeing", "model": "737-800", "msn": "A", "status": "Active"}`, nil
	}}

	agent := NewDetailsAgent(&fakeAircraftStore{records: map[string]*entities.AircraftRecord{}}, loader, extractor)

	details, err := agent.FetchDetails(context.Background(), "n1zz", "ZZ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if details.Registration != "N1ZZ" {
		t.Errorf("expected normalized registration, got %q", details.Registration)
	}
	if details.SerialNumber == nil || *details.SerialNumber != "A" {
		t.Errorf("expected MSN A, got %v", details.SerialNumber)
	}
	if details.Status != "Active" {
		t.Errorf("expected Active, got %q", details.Status)
	}
	// 0.15*1 + type 0.15 + manufacturer 0.1 + model 0.1 + msn 0.15
	if math.Abs(details.ConfidenceScore-0.65) > 1e-9 {
		t.Errorf("expected confidence 0.65, got %.4f", details.ConfidenceScore)
	}
	if len(details.DataSources) != 1 {
		t.Errorf("expected one data source, got %v", details.DataSources)
	}
}

func TestFetchDetails_NotFoundTitleSkipped(t *testing.T) {
	loader := &fakeLoader{pages: map[string]*scrape.PageResult{
		"https://www.planespotters.net/hex/N9ZZ": {HTML: "<html>nothing here</html>", Title: "404 Not Found", HTTPStatus: 200},
	}}
	extractor := &fakeExtractor{respond: func(string) (string, error) {
		t.Fatal("extractor must not run for a not-found page")
		return "", nil
	}}

	agent := NewDetailsAgent(&fakeAircraftStore{records: map[string]*entities.AircraftRecord{}}, loader, extractor)

	details, err := agent.FetchDetails(context.Background(), "N9ZZ", "ZZ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if details.ConfidenceScore != 0 {
		t.Errorf("expected zero confidence with no partials, got %.2f", details.ConfidenceScore)
	}
	if details.Registration != "N9ZZ" {
		t.Errorf("registration must survive an empty scrape, got %q", details.Registration)
	}
}

func TestFetchDetails_SeededFromExistingRecord(t *testing.T) {
	msn := "44321"
	delivered := time.Date(2015, 3, 20, 0, 0, 0, 0, time.UTC)
	iata := "738"
	existing := &entities.AircraftRecord{
		Aircraft: entities.Aircraft{
			ID:                       7,
			Registration:             "N1ZZ",
			ManufacturerSerialNumber: &msn,
			DeliveryDate:             &delivered,
			Status:                   "Active",
			Metadata:                 []byte(`{"confidence_score": 0.8, "data_sources": ["https://old.example.com"]}`),
		},
		Type: &entities.AircraftType{IATACode: &iata, Manufacturer: "Boeing", Model: "737-800"},
	}

	// Every source down: the record must still carry the seeded fields.
	agent := NewDetailsAgent(
		&fakeAircraftStore{records: map[string]*entities.AircraftRecord{"N1ZZ": existing}},
		&fakeLoader{},
		&fakeExtractor{respond: func(string) (string, error) { return "", errExtractorDown }},
	)

	details, err := agent.FetchDetails(context.Background(), "N1ZZ", "ZZ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if details.SerialNumber == nil || *details.SerialNumber != "44321" {
		t.Errorf("expected seeded MSN, got %v", details.SerialNumber)
	}
	if details.Manufacturer == nil || *details.Manufacturer != "Boeing" {
		t.Errorf("expected seeded manufacturer, got %v", details.Manufacturer)
	}
	if details.DeliveryDate == nil || *details.DeliveryDate != "2015-03-20" {
		t.Errorf("expected seeded delivery date, got %v", details.DeliveryDate)
	}
	if details.Status != "Active" {
		t.Errorf("expected seeded status, got %q", details.Status)
	}
}

func TestFetchDetails_MSNStickyAgainstSources(t *testing.T) {
	msn := "A"
	existing := &entities.AircraftRecord{
		Aircraft: entities.Aircraft{ID: 7, Registration: "N1ZZ", ManufacturerSerialNumber: &msn, Status: "Active"},
	}
	loader := &fakeLoader{pages: map[string]*scrape.PageResult{
		"https://www.planespotters.net/hex/N1ZZ": {HTML: "x", Title: "N1ZZ", HTTPStatus: 200},
	}}
	extractor := &fakeExtractor{respond: func(string) (string, error) {
		return `{"msn": "C", "status": "Active"}`, nil
	}}

	agent := NewDetailsAgent(&fakeAircraftStore{records: map[string]*entities.AircraftRecord{"N1ZZ": existing}}, loader, extractor)

	details, err := agent.FetchDetails(context.Background(), "N1ZZ", "ZZ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if details.SerialNumber == nil || *details.SerialNumber != "A" {
		t.Errorf("existing MSN must win the merge, got %v", details.SerialNumber)
	}
}

func TestFetchDetails_EmptyRegistration(t *testing.T) {
	agent := NewDetailsAgent(&fakeAircraftStore{}, &fakeLoader{}, &fakeExtractor{})

	_, err := agent.FetchDetails(context.Background(), "   ", "ZZ")
	if !errors.Is(err, constants.ErrInvalidRegistration) {
		t.Fatalf("expected ErrInvalidRegistration, got %v", err)
	}
}
