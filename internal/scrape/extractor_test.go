package scrape

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripCodeFences(t *testing.T) {
	assert.Equal(t, `{"a": 1}`, StripCodeFences(`{"a": 1}`))
	assert.Equal(t, `{"a": 1}`, StripCodeFences("```json\n{\"a\": 1}\n```"))
	assert.Equal(t, `{"a": 1}`, StripCodeFences("```\n{\"a\": 1}\n```"))
	assert.Equal(t, `{"a": 1}`, StripCodeFences("  ```json\n{\"a\": 1}\n```  "))
}

func newChatServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)

		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotEmpty(t, req["messages"])

		resp := map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": content}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestLLMExtractor_FencedJSON(t *testing.T) {
	server := newChatServer(t, "```json\n{\"registrations\": [\"N1ZZ\", \"N2ZZ\"]}\n```")
	defer server.Close()

	extractor := NewLLMExtractor(server.URL, "test-key", "test-model", 5*time.Second)

	var out struct {
		Registrations []string `json:"registrations"`
	}
	err := extractor.ExtractJSON(context.Background(), "extract", ExtractOptions{}, &out)
	require.NoError(t, err)
	assert.Equal(t, []string{"N1ZZ", "N2ZZ"}, out.Registrations)
}

func TestLLMExtractor_NonParseableOutput(t *testing.T) {
	server := newChatServer(t, "Sorry, I could not find any registrations on that page.")
	defer server.Close()

	extractor := NewLLMExtractor(server.URL, "", "test-model", 5*time.Second)

	var out map[string]interface{}
	err := extractor.ExtractJSON(context.Background(), "extract", ExtractOptions{}, &out)
	assert.ErrorContains(t, err, "non-parseable")
}

func TestLLMExtractor_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	extractor := NewLLMExtractor(server.URL, "", "test-model", 5*time.Second)

	var out map[string]interface{}
	err := extractor.ExtractJSON(context.Background(), "extract", ExtractOptions{}, &out)
	assert.ErrorContains(t, err, "status 503")
}

func TestLLMExtractor_Unconfigured(t *testing.T) {
	extractor := NewLLMExtractor("", "", "", time.Second)

	var out map[string]interface{}
	err := extractor.ExtractJSON(context.Background(), "extract", ExtractOptions{}, &out)
	assert.Error(t, err)
}
