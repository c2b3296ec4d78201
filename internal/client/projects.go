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

// ListWorkspaces returns the workspaces visible to the caller.
func (c *FluxClient) ListWorkspaces(ctx context.Context) ([]api.Workspace, error) {
	workspaces := []api.Workspace{}
	if err := c.get(ctx, "/api/workspaces", nil, &workspaces); err != nil {
		return nil, fmt.Errorf("failed to list workspaces: %w", err)
	}
	return workspaces, nil
}

// ListProjects returns all web projects visible to the caller.
func (c *FluxClient) ListProjects(ctx context.Context) ([]api.Project, error) {
	body, err := c.roundTrip(ctx, http.MethodGet, "/api/projects", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	return decodeProjectList(body)
}

func decodeProjectList(body []byte) ([]api.Project, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		projects := []api.Project{}
		if err := json.Unmarshal(trimmed, &projects); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
		return projects, nil
	}

	envelope := struct {
		Items    []api.Project `json:"items"`
		Projects []api.Project `json:"projects"`
	}{}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if envelope.Items != nil {
		return envelope.Items, nil
	}
	return envelope.Projects, nil
}

// GetProject fetches a single web project.
func (c *FluxClient) GetProject(ctx context.Context, projectID string) (*api.Project, error) {
	project := &api.Project{}
	if err := c.get(ctx, fmt.Sprintf("/api/projects/%s", projectID), nil, project); err != nil {
		return nil, fmt.Errorf("failed to fetch project: %w", err)
	}
	return project, nil
}

// CreateProject creates a new web project.
func (c *FluxClient) CreateProject(ctx context.Context, req api.CreateProjectRequest) (*api.Project, error) {
	project := &api.Project{}
	if err := c.postWithRetry(ctx, "/api/projects", req, project); err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}
	return project, nil
}

// ListScenarios returns the scenarios of a project.
func (c *FluxClient) ListScenarios(ctx context.Context, projectID string) ([]api.Scenario, error) {
	query := url.Values{"project_id": []string{projectID}}
	body, err := c.roundTrip(ctx, http.MethodGet, "/api/scenarios", query, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list scenarios: %w", err)
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		scenarios := []api.Scenario{}
		if err := json.Unmarshal(trimmed, &scenarios); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
		return scenarios, nil
	}

	envelope := struct {
		Items     []api.Scenario `json:"items"`
		Scenarios []api.Scenario `json:"scenarios"`
	}{}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if envelope.Items != nil {
		return envelope.Items, nil
	}
	return envelope.Scenarios, nil
}

// CreateScenario creates a scenario from an open payload, file provided
// fields are passed through untouched.
func (c *FluxClient) CreateScenario(ctx context.Context, payload map[string]any) (map[string]any, error) {
	result := map[string]any{}
	if err := c.postWithRetry(ctx, "/api/scenarios", payload, &result); err != nil {
		return nil, fmt.Errorf("failed to create scenario: %w", err)
	}
	return result, nil
}
