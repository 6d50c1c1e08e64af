package rag

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicore/clinicore/pkg/knowledge"
)

func TestHTTPGuidelineSourceFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/guidelines", r.URL.Path)
		assert.Equal(t, "diabetes", r.URL.Query().Get("condition"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		json.NewEncoder(w).Encode(guidelineFetchResponse{
			Guidelines: []knowledge.Guideline{{
				ID:                "ext-1",
				Title:             "External guideline",
				Source:            "WHO",
				KeyRecommendation: "Screen annually.",
				LastUpdated:       time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			}},
		})
	}))
	defer server.Close()

	source, err := NewHTTPGuidelineSource(HTTPGuidelineSourceConfig{
		BaseURL: server.URL,
		APIKey:  "secret",
	})
	require.NoError(t, err)

	guidelines, err := source.FetchGuidelines(context.Background(), "diabetes")
	require.NoError(t, err)
	require.Len(t, guidelines, 1)
	assert.Equal(t, "ext-1", guidelines[0].ID)
}

func TestHTTPGuidelineSourceWrapsFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer server.Close()

	source, err := NewHTTPGuidelineSource(HTTPGuidelineSourceConfig{BaseURL: server.URL})
	require.NoError(t, err)

	_, err = source.FetchGuidelines(context.Background(), "asthma")
	var external *ExternalServiceError
	require.ErrorAs(t, err, &external)
	assert.Equal(t, "guideline_source", external.Service)
}

func TestHTTPGuidelineSourceRequiresBaseURL(t *testing.T) {
	_, err := NewHTTPGuidelineSource(HTTPGuidelineSourceConfig{})
	assert.Error(t, err)
}

func TestPromptBuilderBudgetDropsLowRelevanceDocuments(t *testing.T) {
	builder := newPromptBuilder(120)

	long := strings.Repeat("clinical detail ", 100)
	documents := []knowledge.ScoredDocument{
		{Document: knowledge.Document{Title: "first", Content: "short content"}, Score: 0.9},
		{Document: knowledge.Document{Title: "second", Content: long}, Score: 0.4},
	}

	prompt := builder.build("question?", documents, nil, map[string]any{"ward": "3B"})

	assert.Contains(t, prompt, "first")
	assert.NotContains(t, prompt, "second")
	assert.Contains(t, prompt, "ward: 3B")
	assert.Contains(t, prompt, "Question: question?")
}

func TestPromptBuilderIncludesGuidelines(t *testing.T) {
	builder := newPromptBuilder(4000)

	prompt := builder.build("q", nil, []knowledge.Guideline{{
		Title:             "Glycemic targets",
		Source:            "ADA",
		KeyRecommendation: "Target HbA1c below 7%.",
		LastUpdated:       time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
	}}, nil)

	assert.Contains(t, prompt, "Glycemic targets")
	assert.Contains(t, prompt, "Target HbA1c below 7%.")
	assert.Contains(t, prompt, "2025-01-10")
}
