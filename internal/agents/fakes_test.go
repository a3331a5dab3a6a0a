package agents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jbandu/fleetscraper/internal/constants"
	"github.com/jbandu/fleetscraper/internal/models/entities"
	"github.com/jbandu/fleetscraper/internal/scrape"
)

// fakeLoader serves canned pages by URL and errors for everything else.
type fakeLoader struct {
	pages map[string]*scrape.PageResult
}

func (f *fakeLoader) Fetch(_ context.Context, pageURL string) (*scrape.PageResult, error) {
	if page, ok := f.pages[pageURL]; ok {
		return page, nil
	}
	return nil, fmt.Errorf("connection refused: %s", pageURL)
}

// fakeExtractor dispatches on the prompt and unmarshals a canned JSON
// response into out.
type fakeExtractor struct {
	respond func(prompt string) (string, error)
	calls   int
}

func (f *fakeExtractor) ExtractJSON(_ context.Context, prompt string, _ scrape.ExtractOptions, out interface{}) error {
	f.calls++
	payload, err := f.respond(prompt)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(payload), out)
}

type fakeAirlineStore struct {
	airlines map[string]*entities.Airline
}

func (f *fakeAirlineStore) FindByCode(_ context.Context, code string) (*entities.Airline, error) {
	if a, ok := f.airlines[code]; ok {
		return a, nil
	}
	return nil, fmt.Errorf("%w: %s", constants.ErrAirlineNotFound, code)
}

type fakeAircraftStore struct {
	records map[string]*entities.AircraftRecord
}

func (f *fakeAircraftStore) FindByRegistration(_ context.Context, registration string) (*entities.AircraftRecord, error) {
	return f.records[registration], nil
}

type fakeTypeStore struct {
	types map[string]*entities.AircraftType
}

func (f *fakeTypeStore) FindByCode(_ context.Context, code string) (*entities.AircraftType, error) {
	if t, ok := f.types[code]; ok {
		return t, nil
	}
	return nil, fmt.Errorf("%w: %s", constants.ErrAircraftTypeNotFound, code)
}

var errExtractorDown = errors.New("extractor timeout")

func intPtr(n int) *int           { return &n }
func floatPtr(f float64) *float64 { return &f }
