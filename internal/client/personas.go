package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// PersonaSuggestion is the normalized persona suggestion result. The
// endpoint historically answered with a bare persona list, newer versions
// add stories, castings and the casting strategy.
type PersonaSuggestion struct {
	PersonaIDs []string
	Personas   []map[string]any
	Stories    []map[string]any
	Castings   []map[string]any
	Strategy   map[string]any
}

// SuggestPersonas asks the service to generate personas for a scenario.
// The payload is open because file provided fields pass through as given.
func (c *FluxClient) SuggestPersonas(ctx context.Context, payload map[string]any) (*PersonaSuggestion, error) {
	body, err := c.postWithRetryRaw(ctx, "/api/personas/suggest", payload)
	if err != nil {
		return nil, fmt.Errorf("failed to suggest personas: %w", err)
	}
	return decodePersonaSuggestion(body)
}

func decodePersonaSuggestion(body []byte) (*PersonaSuggestion, error) {
	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	suggestion := &PersonaSuggestion{
		PersonaIDs: []string{},
		Personas:   []map[string]any{},
		Stories:    []map[string]any{},
		Castings:   []map[string]any{},
	}

	switch p := payload.(type) {
	case []any:
		suggestion.Personas = objectList(p)
	case map[string]any:
		if list, ok := p["personas"].([]any); ok {
			suggestion.Personas = objectList(list)
		}
		if list, ok := p["stories"].([]any); ok {
			suggestion.Stories = objectList(list)
		}
		if list, ok := p["castings"].([]any); ok {
			suggestion.Castings = objectList(list)
		}
		if strategy, ok := p["strategy"].(map[string]any); ok {
			suggestion.Strategy = strategy
		}
		if rawIds, ok := p["persona_ids"].([]any); ok {
			for _, rawId := range rawIds {
				if id, ok := rawId.(string); ok && id != "" {
					suggestion.PersonaIDs = append(suggestion.PersonaIDs, id)
				}
			}
		}
	}

	if len(suggestion.PersonaIDs) == 0 {
		for _, persona := range suggestion.Personas {
			if id, ok := persona["id"].(string); ok && id != "" {
				suggestion.PersonaIDs = append(suggestion.PersonaIDs, id)
			}
		}
	}

	return suggestion, nil
}

func objectList(list []any) []map[string]any {
	out := []map[string]any{}
	for _, entry := range list {
		if obj, ok := entry.(map[string]any); ok {
			out = append(out, obj)
		}
	}
	return out
}

// ListPersonas returns the personas of a scenario, or all personas when
// scenarioID is empty.
func (c *FluxClient) ListPersonas(ctx context.Context, scenarioID string) ([]map[string]any, error) {
	var query url.Values
	if scenarioID != "" {
		query = url.Values{"scenario_id": []string{scenarioID}}
	}

	body, err := c.roundTrip(ctx, http.MethodGet, "/api/personas", query, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list personas: %w", err)
	}

	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	switch p := payload.(type) {
	case []any:
		return objectList(p), nil
	case map[string]any:
		if list, ok := p["personas"].([]any); ok {
			return objectList(list), nil
		}
		if list, ok := p["items"].([]any); ok {
			return objectList(list), nil
		}
	}
	return []map[string]any{}, nil
}

// CreatePersona creates a persona from an open payload and returns the
// created record.
func (c *FluxClient) CreatePersona(ctx context.Context, payload map[string]any) (map[string]any, error) {
	result := map[string]any{}
	if err := c.postWithRetry(ctx, "/api/personas", payload, &result); err != nil {
		return nil, fmt.Errorf("failed to create persona: %w", err)
	}
	return result, nil
}
