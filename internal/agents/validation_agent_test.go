package agents

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jbandu/fleetscraper/internal/constants"
	"github.com/jbandu/fleetscraper/internal/models/dtos"
	"github.com/jbandu/fleetscraper/internal/models/entities"
)

func TestMatchesRegistrationPattern(t *testing.T) {
	valid := []string{"N123AB", "N1", "N99999", "G-ABCD", "VH-ABC", "D-ABCD", "HB1234", "B-18CE", "PH-BHA"}
	for _, reg := range valid {
		if !MatchesRegistrationPattern(reg) {
			t.Errorf("expected %q to match", reg)
		}
	}

	invalid := []string{"", "123", "NABCDEF", "N-", "TOOLONG-REG-X", "b?123"}
	for _, reg := range invalid {
		if MatchesRegistrationPattern(reg) {
			t.Errorf("expected %q not to match", reg)
		}
	}
}

func newTestValidationAgent(types map[string]*entities.AircraftType) *ValidationAgent {
	return NewValidationAgent(&fakeTypeStore{types: types}, nil)
}

func TestValidate_CleanRecord(t *testing.T) {
	agent := newTestValidationAgent(map[string]*entities.AircraftType{
		"738": {ID: 1, Manufacturer: "Boeing", Model: "737-800", TypicalSeats: intPtr(162), MaxSeats: intPtr(189)},
	})

	candidate := &dtos.AircraftDetails{
		Registration:    "N1ZZ",
		AircraftType:    strPtr("738"),
		Manufacturer:    strPtr("Boeing"),
		Model:           strPtr("737-800"),
		SerialNumber:    strPtr("A"),
		Status:          "Active",
		ConfidenceScore: 0.65,
	}

	result := agent.Validate(context.Background(), candidate, nil)
	if !result.IsValid {
		t.Fatalf("expected valid, got issues: %+v", result.Issues)
	}
	// 0.65 + 0.2 * 6/7 completeness
	expected := 0.65 + 0.2*6.0/7.0
	if diff := result.ConfidenceScore - expected; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("expected confidence %.4f, got %.4f", expected, result.ConfidenceScore)
	}
}

func TestValidate_BadRegistrationIsError(t *testing.T) {
	agent := newTestValidationAgent(nil)

	result := agent.Validate(context.Background(), &dtos.AircraftDetails{Registration: "???", Status: "Active"}, nil)
	if result.IsValid {
		t.Fatal("expected invalid result")
	}
	if result.CountBySeverity(constants.SeverityError) == 0 {
		t.Error("expected an error-severity issue")
	}
}

func TestValidate_MSNChangeIsErrorWithSuggestion(t *testing.T) {
	agent := newTestValidationAgent(nil)

	candidate := &dtos.AircraftDetails{
		Registration:    "N1ZZ",
		SerialNumber:    strPtr("C"),
		Status:          "Active",
		ConfidenceScore: 0.65,
	}
	existing := &dtos.AircraftDetails{
		Registration:    "N1ZZ",
		SerialNumber:    strPtr("A"),
		Status:          "Active",
		ConfidenceScore: 0.65,
	}

	result := agent.Validate(context.Background(), candidate, existing)
	if result.IsValid {
		t.Fatal("expected MSN change to invalidate the record")
	}

	var msnIssue *dtos.ValidationIssue
	for i := range result.Issues {
		if result.Issues[i].Field == "msn" {
			msnIssue = &result.Issues[i]
		}
	}
	if msnIssue == nil {
		t.Fatal("expected an msn issue")
	}
	if msnIssue.Severity != constants.SeverityError {
		t.Errorf("expected error severity, got %q", msnIssue.Severity)
	}
	if result.RecommendedValues["msn"] != "A" {
		t.Errorf("expected recommendation back to existing MSN, got %v", result.RecommendedValues["msn"])
	}
	if result.ConfidenceScore >= candidate.ConfidenceScore {
		t.Errorf("expected confidence reduced below %.2f, got %.2f", candidate.ConfidenceScore, result.ConfidenceScore)
	}
}

func TestValidate_DateLogic(t *testing.T) {
	agent := newTestValidationAgent(nil)

	candidate := &dtos.AircraftDetails{
		Registration:   "N1ZZ",
		DeliveryDate:   strPtr("2020-05-01"),
		LastFlightDate: strPtr("2019-01-01"),
		Status:         "Active",
	}
	result := agent.Validate(context.Background(), candidate, nil)
	if result.IsValid {
		t.Fatal("last flight before delivery must be an error")
	}

	// Pre-1903 delivery.
	result = agent.Validate(context.Background(), &dtos.AircraftDetails{
		Registration: "N1ZZ", DeliveryDate: strPtr("1899-01-01"), Status: "Active",
	}, nil)
	if result.IsValid {
		t.Fatal("pre-1903 delivery must be an error")
	}

	// Future delivery is only a warning.
	future := time.Now().AddDate(1, 0, 0).Format("2006-01-02")
	result = agent.Validate(context.Background(), &dtos.AircraftDetails{
		Registration: "N1ZZ", DeliveryDate: &future, Status: "Active",
	}, nil)
	if !result.IsValid {
		t.Fatal("future delivery should warn, not error")
	}
	if result.CountBySeverity(constants.SeverityWarning) == 0 {
		t.Error("expected a warning for future delivery")
	}
}

func TestValidate_AgeDriftSuggestsCorrection(t *testing.T) {
	agent := newTestValidationAgent(nil)

	delivered := fmt.Sprintf("%d-01-01", time.Now().Year()-10)
	candidate := &dtos.AircraftDetails{
		Registration: "N1ZZ",
		DeliveryDate: &delivered,
		AgeYears:     floatPtr(25),
		Status:       "Active",
	}

	result := agent.Validate(context.Background(), candidate, nil)
	if result.RecommendedValues["age_years"] != 10.0 {
		t.Errorf("expected corrected age 10, got %v", result.RecommendedValues["age_years"])
	}
}

func TestValidate_UnknownStatusSuggestsUnknown(t *testing.T) {
	agent := newTestValidationAgent(nil)

	result := agent.Validate(context.Background(), &dtos.AircraftDetails{
		Registration: "N1ZZ", Status: "Flying",
	}, nil)
	if result.RecommendedValues["status"] != "Unknown" {
		t.Errorf("expected Unknown suggested, got %v", result.RecommendedValues["status"])
	}
}

func TestValidate_SeatSumMismatch(t *testing.T) {
	agent := newTestValidationAgent(nil)

	result := agent.Validate(context.Background(), &dtos.AircraftDetails{
		Registration: "N1ZZ",
		Status:       "Active",
		SeatConfiguration: &dtos.SeatConfiguration{
			Business: intPtr(12),
			Economy:  intPtr(150),
			Total:    intPtr(189),
		},
	}, nil)
	if !result.IsValid {
		t.Fatal("seat mismatch should warn, not error")
	}
	if result.RecommendedValues["seat_total"] != 162 {
		t.Errorf("expected corrected total 162, got %v", result.RecommendedValues["seat_total"])
	}
}

func TestValidate_TypeSpecChecks(t *testing.T) {
	agent := newTestValidationAgent(map[string]*entities.AircraftType{
		"738": {ID: 1, Manufacturer: "Boeing", Model: "737-800", TypicalSeats: intPtr(162), MaxSeats: intPtr(189)},
	})

	// Manufacturer mismatch against the type's manufacturer.
	result := agent.Validate(context.Background(), &dtos.AircraftDetails{
		Registration: "N1ZZ",
		AircraftType: strPtr("738"),
		Manufacturer: strPtr("Airbus"),
		Status:       "Active",
	}, nil)
	if result.RecommendedValues["manufacturer"] != "Boeing" {
		t.Errorf("expected Boeing suggested, got %v", result.RecommendedValues["manufacturer"])
	}

	// Seat total far outside [0.7*typical, 1.1*max].
	result = agent.Validate(context.Background(), &dtos.AircraftDetails{
		Registration:      "N1ZZ",
		AircraftType:      strPtr("738"),
		Status:            "Active",
		SeatConfiguration: &dtos.SeatConfiguration{Total: intPtr(50)},
	}, nil)
	found := false
	for _, i := range result.Issues {
		if i.Field == "seat_total" && i.Severity == constants.SeverityWarning {
			found = true
		}
	}
	if !found {
		t.Error("expected seat-range warning")
	}

	// Unknown type is a warning only.
	result = agent.Validate(context.Background(), &dtos.AircraftDetails{
		Registration: "N1ZZ",
		AircraftType: strPtr("XYZ"),
		Status:       "Active",
	}, nil)
	if !result.IsValid {
		t.Error("unknown type should not invalidate the record")
	}
	if result.CountBySeverity(constants.SeverityWarning) == 0 {
		t.Error("expected unknown-type warning")
	}
}

func TestValidate_SemanticPassFailureIsSilent(t *testing.T) {
	agent := NewValidationAgent(&fakeTypeStore{}, &fakeExtractor{respond: func(string) (string, error) {
		return "", errExtractorDown
	}})

	result := agent.Validate(context.Background(), &dtos.AircraftDetails{
		Registration: "N1ZZ", Status: "Active",
	}, nil)
	if !result.IsValid {
		t.Fatalf("semantic failure must contribute no issues, got %+v", result.Issues)
	}
}

func TestValidate_SemanticIssuesAdopted(t *testing.T) {
	agent := NewValidationAgent(&fakeTypeStore{}, &fakeExtractor{respond: func(string) (string, error) {
		return `{"issues": [{"field": "model", "severity": "warning", "message": "model looks off"}, {"field": "x", "severity": "bogus", "message": "m"}]}`, nil
	}})

	result := agent.Validate(context.Background(), &dtos.AircraftDetails{
		Registration: "N1ZZ", Status: "Active",
	}, nil)
	if result.CountBySeverity(constants.SeverityWarning) != 1 {
		t.Errorf("expected one semantic warning, got %+v", result.Issues)
	}
	// Unknown severities degrade to info.
	if result.CountBySeverity(constants.SeverityInfo) != 1 {
		t.Errorf("expected bogus severity normalized to info, got %+v", result.Issues)
	}
}

func TestValidate_ConfidenceDropIsInfo(t *testing.T) {
	agent := newTestValidationAgent(nil)

	result := agent.Validate(context.Background(),
		&dtos.AircraftDetails{Registration: "N1ZZ", Status: "Active", ConfidenceScore: 0.3},
		&dtos.AircraftDetails{Registration: "N1ZZ", Status: "Active", ConfidenceScore: 0.8},
	)
	if result.CountBySeverity(constants.SeverityInfo) != 1 {
		t.Errorf("expected a confidence-drop info issue, got %+v", result.Issues)
	}
	if !result.IsValid {
		t.Error("info issues must not invalidate")
	}
}
