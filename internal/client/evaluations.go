package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	api "github.com/fluxloop/fluxloop-cli/api/v1alpha1"
)

// TriggerEvaluation starts an evaluation job for an experiment.
func (c *FluxClient) TriggerEvaluation(ctx context.Context, req api.EvaluationRequest) (*api.EvaluationTriggered, error) {
	response := &api.EvaluationTriggered{}
	if err := c.postWithRetry(ctx, "/api/evaluations", req, response); err != nil {
		return nil, fmt.Errorf("failed to trigger evaluation: %w", err)
	}
	return response, nil
}

// ListEvaluations returns the evaluation jobs of an experiment. The
// endpoint answers with a bare list or an items/evaluations envelope.
func (c *FluxClient) ListEvaluations(ctx context.Context, experimentID string, projectID string) ([]api.EvaluationJob, error) {
	query := url.Values{"project_id": []string{projectID}}
	body, err := c.roundTrip(ctx, http.MethodGet, fmt.Sprintf("/api/experiments/%s/evaluations", experimentID), query, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list evaluations: %w", err)
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		jobs := []api.EvaluationJob{}
		if err := json.Unmarshal(trimmed, &jobs); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
		return jobs, nil
	}

	envelope := struct {
		Items       []api.EvaluationJob `json:"items"`
		Evaluations []api.EvaluationJob `json:"evaluations"`
	}{}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if envelope.Items != nil {
		return envelope.Items, nil
	}
	return envelope.Evaluations, nil
}

// ListInsights returns the insight entries of an experiment.
func (c *FluxClient) ListInsights(ctx context.Context, experimentID string, projectID string) ([]api.ExperimentInsight, error) {
	query := url.Values{"project_id": []string{projectID}}
	insights := []api.ExperimentInsight{}
	if err := c.get(ctx, fmt.Sprintf("/api/experiments/%s/insights", experimentID), query, &insights); err != nil {
		return nil, fmt.Errorf("failed to fetch insights: %w", err)
	}
	return insights, nil
}

// ListRecommendations returns the recommendation entries of an experiment.
func (c *FluxClient) ListRecommendations(ctx context.Context, experimentID string, projectID string) ([]api.ExperimentInsight, error) {
	query := url.Values{"project_id": []string{projectID}}
	recommendations := []api.ExperimentInsight{}
	if err := c.get(ctx, fmt.Sprintf("/api/experiments/%s/recommendations", experimentID), query, &recommendations); err != nil {
		return nil, fmt.Errorf("failed to fetch recommendations: %w", err)
	}
	return recommendations, nil
}

// GetDecision fetches the release decision of an experiment. The raw body
// is returned alongside the parsed decision for JSON passthrough output.
func (c *FluxClient) GetDecision(ctx context.Context, experimentID string, projectID string) (*api.Decision, json.RawMessage, error) {
	query := url.Values{"project_id": []string{projectID}}
	body, err := c.roundTrip(ctx, http.MethodGet, fmt.Sprintf("/api/experiments/%s/decision", experimentID), query, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch decision: %w", err)
	}

	decision := &api.Decision{}
	if err := json.Unmarshal(body, decision); err != nil {
		return nil, nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return decision, json.RawMessage(body), nil
}
