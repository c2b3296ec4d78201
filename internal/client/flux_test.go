package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	api "github.com/fluxloop/fluxloop-cli/api/v1alpha1"
	"github.com/fluxloop/fluxloop-cli/internal/client"
	"github.com/fluxloop/fluxloop-cli/pkg/requestid"
)

var _ = Describe("flux client", func() {
	var (
		fluxClient *client.FluxClient
		ctx        context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
	})

	Describe("NewFluxClient", func() {
		It("creates client with default timeout when timeout is 0", func() {
			c := client.NewFluxClient("http://localhost:8080", "", 0)
			Expect(c).NotTo(BeNil())
		})

		It("creates client with custom timeout", func() {
			c := client.NewFluxClient("http://localhost:8080", "token", 30*time.Second)
			Expect(c).NotTo(BeNil())
		})
	})

	Describe("CreateData", func() {
		Context("successful requests", func() {
			It("sends the create payload and decodes the upload target", func() {
				var receivedRequest api.CreateDataRequest

				server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					Expect(r.Method).To(Equal(http.MethodPost))
					Expect(r.URL.Path).To(Equal("/api/projects/proj_1/data"))
					Expect(r.Header.Get("Content-Type")).To(Equal("application/json"))
					Expect(r.Header.Get("Authorization")).To(Equal("Bearer tok_123"))
					Expect(r.Header.Get("X-Request-Id")).NotTo(BeEmpty())

					_ = json.NewDecoder(r.Body).Decode(&receivedRequest)

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusOK)
					_ = json.NewEncoder(w).Encode(&api.CreateDataResponse{
						Data: api.DataRef{Id: "data_1"},
						Upload: api.UploadTarget{
							UploadUrl: "https://upload.example.com/data_1",
							Headers:   map[string]string{"x-test": "1"},
						},
					})
				}))
				defer server.Close()

				fluxClient = client.NewFluxClient(server.URL, "tok_123", 5*time.Second)

				response, err := fluxClient.CreateData(ctx, "proj_1", api.CreateDataRequest{
					Filename:          "qa.csv",
					FileType:          api.FileTypeStructured,
					MimeType:          "text/csv",
					FileSize:          42,
					DataCategory:      api.DataCategoryDataset,
					ProcessingProfile: api.ProcessingProfileDataset,
				})

				Expect(err).To(BeNil())
				Expect(response.Data.Id).To(Equal("data_1"))
				Expect(response.Upload.UploadUrl).To(Equal("https://upload.example.com/data_1"))
				Expect(response.Upload.Headers).To(HaveKeyWithValue("x-test", "1"))
				Expect(receivedRequest.DataCategory).To(Equal(api.DataCategoryDataset))
				Expect(receivedRequest.ProcessingProfile).To(Equal(api.ProcessingProfileDataset))
				Expect(receivedRequest.FileType).To(Equal(api.FileTypeStructured))
			})

			It("propagates the request id from the context", func() {
				server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					Expect(r.Header.Get("X-Request-Id")).To(Equal("req_42"))
					w.WriteHeader(http.StatusOK)
					_, _ = w.Write([]byte(`{"data": {"id": "data_1"}, "upload": {"upload_url": "https://u"}}`))
				}))
				defer server.Close()

				fluxClient = client.NewFluxClient(server.URL, "", 5*time.Second)

				_, err := fluxClient.CreateData(requestid.ToContext(ctx, "req_42"), "proj_1", api.CreateDataRequest{})
				Expect(err).To(BeNil())
			})
		})

		Context("error handling", func() {
			It("returns error when HTTP request creation fails", func() {
				fluxClient = client.NewFluxClient("http://[invalid-url", "", 5*time.Second)

				_, err := fluxClient.CreateData(ctx, "proj_1", api.CreateDataRequest{})

				Expect(err).NotTo(BeNil())
				Expect(err.Error()).To(ContainSubstring("failed to create request"))
			})

			It("returns error when HTTP client Do() fails", func() {
				fluxClient = client.NewFluxClient("http://192.0.2.0:8080", "", 1*time.Second)

				_, err := fluxClient.CreateData(ctx, "proj_1", api.CreateDataRequest{})

				Expect(err).NotTo(BeNil())
				Expect(err.Error()).To(ContainSubstring("failed to call service"))
			})

			It("returns a typed error carrying the extracted detail", func() {
				server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusBadRequest)
					_, _ = w.Write([]byte(`{"detail": "file too large"}`))
				}))
				defer server.Close()

				fluxClient = client.NewFluxClient(server.URL, "", 5*time.Second)

				_, err := fluxClient.CreateData(ctx, "proj_1", api.CreateDataRequest{})

				Expect(err).NotTo(BeNil())
				apiErr := &client.APIError{}
				Expect(errors.As(err, &apiErr)).To(BeTrue())
				Expect(apiErr.StatusCode).To(Equal(http.StatusBadRequest))
				Expect(apiErr.Detail).To(Equal("file too large"))
			})

			It("returns error when JSON unmarshal fails", func() {
				server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusOK)
					_, _ = w.Write([]byte("{invalid json}"))
				}))
				defer server.Close()

				fluxClient = client.NewFluxClient(server.URL, "", 5*time.Second)

				_, err := fluxClient.CreateData(ctx, "proj_1", api.CreateDataRequest{})

				Expect(err).NotTo(BeNil())
				Expect(err.Error()).To(ContainSubstring("failed to decode response"))
			})
		})

		Context("context handling", func() {
			It("respects context cancellation", func() {
				server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					time.Sleep(2 * time.Second)
					w.WriteHeader(http.StatusOK)
				}))
				defer server.Close()

				fluxClient = client.NewFluxClient(server.URL, "", 5*time.Second)

				canceledCtx, cancel := context.WithCancel(context.Background())
				cancel()

				_, err := fluxClient.CreateData(canceledCtx, "proj_1", api.CreateDataRequest{})

				Expect(err).NotTo(BeNil())
			})
		})
	})

	Describe("BindData", func() {
		It("sends the binding payload", func() {
			var captured map[string]any

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				Expect(r.URL.Path).To(Equal("/api/scenarios/sc_1/data/bind"))
				body, _ := io.ReadAll(r.Body)
				_ = json.Unmarshal(body, &captured)
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte(`{"ok": true}`))
			}))
			defer server.Close()

			fluxClient = client.NewFluxClient(server.URL, "", 5*time.Second)

			seed := 99
			err := fluxClient.BindData(ctx, "sc_1", api.BindDataRequest{
				DataId: "data_1",
				BindingMeta: &api.BindingMeta{
					Role:         "validation",
					SamplingSeed: &seed,
					Split:        "dev",
					LabelColumn:  "expected",
					RowFilter:    "lang = 'ko'",
				},
			})

			Expect(err).To(BeNil())
			Expect(captured["data_id"]).To(Equal("data_1"))
			meta, ok := captured["binding_meta"].(map[string]any)
			Expect(ok).To(BeTrue())
			Expect(meta["role"]).To(Equal("validation"))
			Expect(meta["sampling_seed"]).To(Equal(float64(99)))
			Expect(meta["split"]).To(Equal("dev"))
			Expect(meta["label_column"]).To(Equal("expected"))
			Expect(meta["row_filter"]).To(Equal("lang = 'ko'"))
		})

		It("omits binding meta when none is given", func() {
			var captured map[string]any

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				body, _ := io.ReadAll(r.Body)
				_ = json.Unmarshal(body, &captured)
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte(`{"ok": true}`))
			}))
			defer server.Close()

			fluxClient = client.NewFluxClient(server.URL, "", 5*time.Second)

			err := fluxClient.BindData(ctx, "sc_1", api.BindDataRequest{DataId: "data_1"})

			Expect(err).To(BeNil())
			Expect(captured).To(Equal(map[string]any{"data_id": "data_1"}))
		})

		It("surfaces the conflict status for already bound data", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusConflict)
				_, _ = w.Write([]byte(`{"detail": "already bound"}`))
			}))
			defer server.Close()

			fluxClient = client.NewFluxClient(server.URL, "", 5*time.Second)

			err := fluxClient.BindData(ctx, "sc_1", api.BindDataRequest{DataId: "data_1"})

			apiErr := &client.APIError{}
			Expect(errors.As(err, &apiErr)).To(BeTrue())
			Expect(apiErr.StatusCode).To(Equal(http.StatusConflict))
		})
	})

	Describe("MaterializeGroundTruth", func() {
		It("sends exactly the materialization parameters", func() {
			var captured map[string]any

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				Expect(r.URL.Path).To(Equal("/api/scenarios/sc_1/ground-truth/materialize"))
				body, _ := io.ReadAll(r.Body)
				_ = json.Unmarshal(body, &captured)
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte(`{"profile": {"id": "gt_profile_1"}, "gt_contracts": [{"id": "gtc_1"}, {"id": "gtc_2"}]}`))
			}))
			defer server.Close()

			fluxClient = client.NewFluxClient(server.URL, "", 5*time.Second)

			result, err := fluxClient.MaterializeGroundTruth(ctx, "sc_1", api.MaterializeRequest{
				DataId:       "data_1",
				SamplingSeed: 7,
				Split:        "test",
				LabelColumn:  "answer",
				RowFilter:    "lang = 'ko'",
			})

			Expect(err).To(BeNil())
			Expect(captured).To(Equal(map[string]any{
				"data_id":       "data_1",
				"sampling_seed": float64(7),
				"split":         "test",
				"label_column":  "answer",
				"row_filter":    "lang = 'ko'",
			}))
			Expect(api.ExtractProfileID(result)).To(Equal("gt_profile_1"))
			Expect(api.ExtractContractIDs(result)).To(Equal([]string{"gtc_1", "gtc_2"}))
		})

		It("omits unset optional parameters but always sends the seed", func() {
			var captured map[string]any

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				body, _ := io.ReadAll(r.Body)
				_ = json.Unmarshal(body, &captured)
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte(`{}`))
			}))
			defer server.Close()

			fluxClient = client.NewFluxClient(server.URL, "", 5*time.Second)

			_, err := fluxClient.MaterializeGroundTruth(ctx, "sc_1", api.MaterializeRequest{
				DataId:       "data_1",
				SamplingSeed: 42,
			})

			Expect(err).To(BeNil())
			Expect(captured).To(Equal(map[string]any{
				"data_id":       "data_1",
				"sampling_seed": float64(42),
			}))
		})

		It("returns the conflict detail for pending processing", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusConflict)
				_, _ = w.Write([]byte(`{"detail": "Dataset processing is pending."}`))
			}))
			defer server.Close()

			fluxClient = client.NewFluxClient(server.URL, "", 5*time.Second)

			_, err := fluxClient.MaterializeGroundTruth(ctx, "sc_1", api.MaterializeRequest{DataId: "data_1", SamplingSeed: 42})

			apiErr := &client.APIError{}
			Expect(errors.As(err, &apiErr)).To(BeTrue())
			Expect(apiErr.StatusCode).To(Equal(http.StatusConflict))
			Expect(apiErr.Detail).To(Equal("Dataset processing is pending."))
		})

		It("normalizes a non object result to an empty map", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte(`["unexpected"]`))
			}))
			defer server.Close()

			fluxClient = client.NewFluxClient(server.URL, "", 5*time.Second)

			result, err := fluxClient.MaterializeGroundTruth(ctx, "sc_1", api.MaterializeRequest{DataId: "data_1", SamplingSeed: 42})

			Expect(err).To(BeNil())
			Expect(result).To(BeEmpty())
		})
	})

	Describe("GroundTruthStatus", func() {
		It("filters by data id and normalizes the rows", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				Expect(r.URL.Path).To(Equal("/api/scenarios/sc_1/ground-truth/status"))
				Expect(r.URL.Query().Get("data_id")).To(Equal("data_1"))
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte(`{"items": [{
					"data_id": "data_1",
					"materialization_status": "ready",
					"ground_truth_profile_id": "gt_profile_1",
					"gt_contract_ids": ["gtc_1", "gtc_2"],
					"processing_status": "completed",
					"updated_at": "2026-03-02T12:00:00Z"
				}]}`))
			}))
			defer server.Close()

			fluxClient = client.NewFluxClient(server.URL, "", 5*time.Second)

			rows, err := fluxClient.GroundTruthStatus(ctx, "sc_1", "data_1")

			Expect(err).To(BeNil())
			Expect(rows).To(HaveLen(1))
			Expect(rows[0].DataId).To(Equal("data_1"))
			Expect(rows[0].MaterializationStatus).To(Equal("ready"))
			Expect(rows[0].GTContractCount).To(Equal(2))
		})

		It("sends no query when the data id filter is empty", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				Expect(r.URL.RawQuery).To(BeEmpty())
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte(`{"items": []}`))
			}))
			defer server.Close()

			fluxClient = client.NewFluxClient(server.URL, "", 5*time.Second)

			rows, err := fluxClient.GroundTruthStatus(ctx, "sc_1", "")

			Expect(err).To(BeNil())
			Expect(rows).To(BeEmpty())
		})
	})

	Describe("TriggerEvaluation", func() {
		It("retries transient errors until the service answers", func() {
			attempts := 0
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				attempts++
				if attempts < 3 {
					w.WriteHeader(http.StatusServiceUnavailable)
					return
				}
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte(`{"evaluation_id": "eval_1", "status": "queued"}`))
			}))
			defer server.Close()

			fluxClient = client.NewFluxClient(server.URL, "", 5*time.Second).WithRetryPolicy(client.RetryPolicy{
				MaxAttempts: 3,
				Backoff:     time.Millisecond,
				Retryable:   client.DefaultRetryPolicy().Retryable,
			})

			response, err := fluxClient.TriggerEvaluation(ctx, api.EvaluationRequest{
				ProjectId:    "proj_1",
				ExperimentId: "exp_1",
				Source:       "cli",
			})

			Expect(err).To(BeNil())
			Expect(attempts).To(Equal(3))
			Expect(response.EvaluationId).To(Equal("eval_1"))
			Expect(response.Status).To(Equal(api.EvaluationStatusQueued))
		})

		It("does not retry client errors", func() {
			attempts := 0
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				attempts++
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"detail": "experiment_id is required"}`))
			}))
			defer server.Close()

			fluxClient = client.NewFluxClient(server.URL, "", 5*time.Second).WithRetryPolicy(client.RetryPolicy{
				MaxAttempts: 3,
				Backoff:     time.Millisecond,
				Retryable:   client.DefaultRetryPolicy().Retryable,
			})

			_, err := fluxClient.TriggerEvaluation(ctx, api.EvaluationRequest{})

			Expect(err).NotTo(BeNil())
			Expect(attempts).To(Equal(1))
			apiErr := &client.APIError{}
			Expect(errors.As(err, &apiErr)).To(BeTrue())
			Expect(apiErr.Detail).To(Equal("experiment_id is required"))
		})

		It("gives up after the configured attempts", func() {
			attempts := 0
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				attempts++
				w.WriteHeader(http.StatusBadGateway)
			}))
			defer server.Close()

			fluxClient = client.NewFluxClient(server.URL, "", 5*time.Second).WithRetryPolicy(client.RetryPolicy{
				MaxAttempts: 2,
				Backoff:     time.Millisecond,
				Retryable:   client.DefaultRetryPolicy().Retryable,
			})

			_, err := fluxClient.TriggerEvaluation(ctx, api.EvaluationRequest{})

			Expect(err).NotTo(BeNil())
			Expect(attempts).To(Equal(2))
		})

		It("strips null optional fields from the payload", func() {
			var captured map[string]any
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				body, _ := io.ReadAll(r.Body)
				_ = json.Unmarshal(body, &captured)
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte(`{"evaluation_id": "eval_1", "status": "queued"}`))
			}))
			defer server.Close()

			fluxClient = client.NewFluxClient(server.URL, "", 5*time.Second)

			_, err := fluxClient.TriggerEvaluation(ctx, api.EvaluationRequest{
				ProjectId:    "proj_1",
				ExperimentId: "exp_1",
				Source:       "cli",
			})

			Expect(err).To(BeNil())
			Expect(captured).To(Equal(map[string]any{
				"project_id":    "proj_1",
				"experiment_id": "exp_1",
				"force_rerun":   false,
				"source":        "cli",
			}))
		})
	})

	Describe("ListEvaluations", func() {
		It("accepts a bare list response", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				Expect(r.URL.Path).To(Equal("/api/experiments/exp_1/evaluations"))
				Expect(r.URL.Query().Get("project_id")).To(Equal("proj_1"))
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte(`[{"id": "eval_1", "status": "running"}]`))
			}))
			defer server.Close()

			fluxClient = client.NewFluxClient(server.URL, "", 5*time.Second)

			jobs, err := fluxClient.ListEvaluations(ctx, "exp_1", "proj_1")

			Expect(err).To(BeNil())
			Expect(jobs).To(HaveLen(1))
			Expect(jobs[0].Id).To(Equal("eval_1"))
			Expect(jobs[0].Status).To(Equal(api.EvaluationStatusRunning))
		})

		It("accepts an items envelope", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte(`{"items": [{"id": "eval_1", "status": "queued", "progress": {"total": 10, "completed": 4, "failed": 1}}]}`))
			}))
			defer server.Close()

			fluxClient = client.NewFluxClient(server.URL, "", 5*time.Second)

			jobs, err := fluxClient.ListEvaluations(ctx, "exp_1", "proj_1")

			Expect(err).To(BeNil())
			Expect(jobs).To(HaveLen(1))
			Expect(jobs[0].Progress).NotTo(BeNil())
			Expect(*jobs[0].Progress.Total).To(Equal(10))
			Expect(jobs[0].Progress.Completed).To(Equal(4))
			Expect(jobs[0].Progress.Failed).To(Equal(1))
		})
	})

	Describe("GetDecision", func() {
		It("returns the parsed decision together with the raw body", func() {
			payload := `{
				"evaluation_id": "eval_1",
				"release_decision": "review",
				"decision_snapshot": {
					"overall_verdict": "fail",
					"gate_results": [{"gate_key": "run:fail_count", "status": "pass"}],
					"metrics": {"tokens_used": 12450, "cost_usd": 0.38}
				},
				"gate_results_snapshot": null
			}`
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				Expect(r.URL.Path).To(Equal("/api/experiments/exp_1/decision"))
				Expect(r.URL.Query().Get("project_id")).To(Equal("proj_1"))
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte(payload))
			}))
			defer server.Close()

			fluxClient = client.NewFluxClient(server.URL, "", 5*time.Second)

			decision, raw, err := fluxClient.GetDecision(ctx, "exp_1", "proj_1")

			Expect(err).To(BeNil())
			Expect(decision.Available()).To(BeTrue())
			Expect(*decision.ReleaseDecision).To(Equal("review"))
			Expect(decision.DecisionSnapshot.OverallVerdict).To(Equal("fail"))
			Expect(string(raw)).To(ContainSubstring(`"release_decision"`))
		})

		It("reports an unavailable decision when every field is null", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte(`{"evaluation_id": null, "release_decision": null, "decision_snapshot": null, "gate_snapshot": null, "gate_results_snapshot": null}`))
			}))
			defer server.Close()

			fluxClient = client.NewFluxClient(server.URL, "", 5*time.Second)

			decision, _, err := fluxClient.GetDecision(ctx, "exp_1", "proj_1")

			Expect(err).To(BeNil())
			Expect(decision.Available()).To(BeFalse())
		})
	})

	Describe("SuggestPersonas", func() {
		It("decodes the suggestion envelope", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				Expect(r.URL.Path).To(Equal("/api/personas/suggest"))
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte(`{
					"persona_ids": ["p1"],
					"personas": [{"id": "p1", "name": "Persona 1", "attributes": {"difficulty": "medium", "character_summary": "sample"}}],
					"stories": [{"id": "story_1", "title": "Refund flow"}],
					"castings": [{"storyId": "story_1", "status": "matched"}],
					"strategy": {"coverageNote": "covers refunds"}
				}`))
			}))
			defer server.Close()

			fluxClient = client.NewFluxClient(server.URL, "", 5*time.Second)

			suggestion, err := fluxClient.SuggestPersonas(ctx, map[string]any{"project_id": "proj_1", "scenario_id": "sc_1", "count": 3})

			Expect(err).To(BeNil())
			Expect(suggestion.PersonaIDs).To(Equal([]string{"p1"}))
			Expect(suggestion.Personas).To(HaveLen(1))
			Expect(suggestion.Stories).To(HaveLen(1))
			Expect(suggestion.Castings).To(HaveLen(1))
			Expect(suggestion.Strategy).To(HaveKeyWithValue("coverageNote", "covers refunds"))
		})

		It("accepts a bare persona list and derives the ids", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte(`[{"id": "p1", "name": "Persona 1"}, {"id": "p2", "name": "Persona 2"}]`))
			}))
			defer server.Close()

			fluxClient = client.NewFluxClient(server.URL, "", 5*time.Second)

			suggestion, err := fluxClient.SuggestPersonas(ctx, map[string]any{"scenario_id": "sc_1"})

			Expect(err).To(BeNil())
			Expect(suggestion.PersonaIDs).To(Equal([]string{"p1", "p2"}))
			Expect(suggestion.Personas).To(HaveLen(2))
			Expect(suggestion.Stories).To(BeEmpty())
		})
	})
})
