package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	api "github.com/fluxloop/fluxloop-cli/api/v1alpha1"
	"github.com/fluxloop/fluxloop-cli/pkg/requestid"
)

// FluxClient is an HTTP client for the FluxLoop platform API.
type FluxClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	retry      RetryPolicy
	requestID  string
}

func NewFluxClient(baseURL string, token string, timeout time.Duration) *FluxClient {
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &FluxClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		retry:     DefaultRetryPolicy(),
		requestID: requestid.Generate(),
	}
}

// NewFromConfig returns a new FluxLoop API client from the given config.
func NewFromConfig(config *Config) (*FluxClient, error) {
	return NewFromConfigWithTimeout(config, 60*time.Second)
}

// NewFromConfigWithTimeout returns a new FluxLoop API client with a custom
// request timeout, used for long running calls like persona suggestion.
func NewFromConfigWithTimeout(config *Config, timeout time.Duration) (*FluxClient, error) {
	httpClient, err := NewHTTPClientFromConfig(config)
	if err != nil {
		return nil, fmt.Errorf("NewFromConfig: creating HTTP client %w", err)
	}
	httpClient.Timeout = timeout

	c := NewFluxClient(config.Service.Server, config.Service.Token, timeout)
	c.httpClient = httpClient
	return c, nil
}

// WithRetryPolicy replaces the retry policy used for retried calls.
func (c *FluxClient) WithRetryPolicy(policy RetryPolicy) *FluxClient {
	c.retry = policy
	return c
}

func (c *FluxClient) newRequest(ctx context.Context, method string, path string, query url.Values, payload any) (*http.Request, error) {
	requestURL := c.baseURL + path
	if len(query) > 0 {
		requestURL += "?" + query.Encode()
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, requestURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	reqID := requestid.FromContext(ctx)
	if reqID == "" {
		reqID = c.requestID
	}
	req.Header.Set(middleware.RequestIDHeader, reqID)

	return req, nil
}

// roundTrip performs a single call and returns the response body. Non 2xx
// responses come back as *APIError with the body attached.
func (c *FluxClient) roundTrip(ctx context.Context, method string, path string, query url.Values, payload any) ([]byte, error) {
	req, err := c.newRequest(ctx, method, path, query, payload)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call service: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	zap.S().Named("client").Debugw("api call", "method", method, "path", path, "status", resp.StatusCode)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, NewAPIError(resp.StatusCode, bodyBytes)
	}

	return bodyBytes, nil
}

func decodeInto(body []byte, out any) error {
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *FluxClient) get(ctx context.Context, path string, query url.Values, out any) error {
	body, err := c.roundTrip(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return err
	}
	return decodeInto(body, out)
}

func (c *FluxClient) post(ctx context.Context, path string, payload any, out any) error {
	body, err := c.roundTrip(ctx, http.MethodPost, path, nil, payload)
	if err != nil {
		return err
	}
	return decodeInto(body, out)
}

func (c *FluxClient) delete(ctx context.Context, path string) error {
	_, err := c.roundTrip(ctx, http.MethodDelete, path, nil, nil)
	return err
}

// postWithRetryRaw retries transient failures per the configured policy
// and returns the body of the first successful response.
func (c *FluxClient) postWithRetryRaw(ctx context.Context, path string, payload any) ([]byte, error) {
	attempts := c.retry.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		body, err := c.roundTrip(ctx, http.MethodPost, path, nil, payload)
		if err == nil {
			return body, nil
		}
		lastErr = err

		apiErr := &APIError{}
		if errors.As(err, &apiErr) && !c.retry.retryableStatus(apiErr.StatusCode) {
			return nil, err
		}
		if attempt == attempts {
			break
		}
		zap.S().Named("client").Debugw("retrying api call", "path", path, "attempt", attempt, "error", err)
		if waitErr := c.retry.wait(ctx, attempt); waitErr != nil {
			break
		}
	}
	return nil, lastErr
}

func (c *FluxClient) postWithRetry(ctx context.Context, path string, payload any, out any) error {
	body, err := c.postWithRetryRaw(ctx, path, payload)
	if err != nil {
		return err
	}
	return decodeInto(body, out)
}

// CreateData registers a new file in the project data library and returns
// the data id together with the signed upload target.
func (c *FluxClient) CreateData(ctx context.Context, projectID string, req api.CreateDataRequest) (*api.CreateDataResponse, error) {
	response := &api.CreateDataResponse{}
	if err := c.post(ctx, fmt.Sprintf("/api/projects/%s/data", projectID), req, response); err != nil {
		return nil, fmt.Errorf("failed to create data record: %w", err)
	}
	return response, nil
}

// ConfirmData finalizes an upload after the content reached the signed URL.
func (c *FluxClient) ConfirmData(ctx context.Context, projectID string, dataID string, req api.ConfirmDataRequest) (*api.DataStatusResponse, error) {
	response := &api.DataStatusResponse{}
	if err := c.post(ctx, fmt.Sprintf("/api/projects/%s/data/%s/confirm", projectID, dataID), req, response); err != nil {
		return nil, fmt.Errorf("failed to confirm upload: %w", err)
	}
	return response, nil
}

// ListData returns all entries of the project data library.
func (c *FluxClient) ListData(ctx context.Context, projectID string) ([]api.DataRecord, error) {
	response := &api.DataList{}
	if err := c.get(ctx, fmt.Sprintf("/api/projects/%s/data", projectID), nil, response); err != nil {
		return nil, fmt.Errorf("failed to list data: %w", err)
	}
	return response.Items, nil
}

// ReprocessData re-runs ingestion for a data record.
func (c *FluxClient) ReprocessData(ctx context.Context, projectID string, dataID string, req api.ReprocessDataRequest) (*api.DataStatusResponse, error) {
	response := &api.DataStatusResponse{}
	if err := c.post(ctx, fmt.Sprintf("/api/projects/%s/data/%s/reprocess", projectID, dataID), req, response); err != nil {
		return nil, fmt.Errorf("failed to reprocess data: %w", err)
	}
	return response, nil
}

// BindData attaches a data record to a scenario. The caller inspects the
// returned *APIError for the already-bound and scenario-missing cases.
func (c *FluxClient) BindData(ctx context.Context, scenarioID string, req api.BindDataRequest) error {
	return c.post(ctx, fmt.Sprintf("/api/scenarios/%s/data/bind", scenarioID), req, nil)
}

// UnbindData removes a data binding from a scenario.
func (c *FluxClient) UnbindData(ctx context.Context, scenarioID string, bindingID string) error {
	if err := c.delete(ctx, fmt.Sprintf("/api/scenarios/%s/data/bind/%s", scenarioID, bindingID)); err != nil {
		return fmt.Errorf("failed to remove binding: %w", err)
	}
	return nil
}

// MaterializeGroundTruth builds the Ground Truth profile and contracts for
// a validation binding and returns the raw result object.
func (c *FluxClient) MaterializeGroundTruth(ctx context.Context, scenarioID string, req api.MaterializeRequest) (map[string]any, error) {
	body, err := c.roundTrip(ctx, http.MethodPost, fmt.Sprintf("/api/scenarios/%s/ground-truth/materialize", scenarioID), nil, req)
	if err != nil {
		return nil, err
	}

	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if result, ok := payload.(map[string]any); ok {
		return result, nil
	}
	return map[string]any{}, nil
}

// GroundTruthStatus fetches the Ground Truth state of a scenario,
// optionally narrowed to a single data record, normalized into rows.
func (c *FluxClient) GroundTruthStatus(ctx context.Context, scenarioID string, dataID string) ([]api.GroundTruthRow, error) {
	var query url.Values
	if dataID != "" {
		query = url.Values{"data_id": []string{dataID}}
	}

	body, err := c.roundTrip(ctx, http.MethodGet, fmt.Sprintf("/api/scenarios/%s/ground-truth/status", scenarioID), query, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch ground truth status: %w", err)
	}

	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return api.BuildGroundTruthRows(payload, dataID), nil
}

// GetServiceInfo reports the build details of the remote service.
func (c *FluxClient) GetServiceInfo(ctx context.Context) (*api.ServiceInfo, error) {
	response := &api.ServiceInfo{}
	if err := c.get(ctx, "/api/info", nil, response); err != nil {
		return nil, fmt.Errorf("failed to fetch service info: %w", err)
	}
	return response, nil
}
