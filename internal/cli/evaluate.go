package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lthibault/jitterbug/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	api "github.com/fluxloop/fluxloop-cli/api/v1alpha1"
	"github.com/fluxloop/fluxloop-cli/internal/client"
)

type EvaluateOptions struct {
	GlobalOptions

	ProjectId    string
	ExperimentId string
	ConfigId     string
	RunIds       []string
	ForceRerun   bool
	Wait         bool
	Timeout      int
	PollInterval int
	ShowDecision bool
	JSONOutput   bool
}

func DefaultEvaluateOptions() *EvaluateOptions {
	return &EvaluateOptions{
		GlobalOptions: DefaultGlobalOptions(),
		Timeout:       600,
		PollInterval:  3,
	}
}

func NewCmdEvaluate() *cobra.Command {
	o := DefaultEvaluateOptions()
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Trigger evaluation for an experiment (server-side)",
		Long: `Trigger server-side evaluation for an experiment.

Uses the current logged-in user (JWT). If no config is provided, the server
will auto-select or use scenario defaults.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.Validate(args); err != nil {
				return err
			}
			return o.Run(cmd.Context(), args)
		},
		SilenceUsage: true,
	}
	o.Bind(cmd.Flags())

	if err := validateFlags(cmd, "experiment-id"); err != nil {
		panic(err)
	}

	return cmd
}

func (o *EvaluateOptions) Bind(fs *pflag.FlagSet) {
	o.GlobalOptions.Bind(fs)
	fs.StringVar(&o.ExperimentId, "experiment-id", o.ExperimentId, "Experiment ID")
	fs.StringVar(&o.ProjectId, "project-id", o.ProjectId, "Project ID (auto-detected from context)")
	fs.StringVar(&o.ConfigId, "config-id", o.ConfigId, "Evaluation config ID (optional)")
	fs.StringArrayVar(&o.RunIds, "run-id", o.RunIds, "Specific run IDs to evaluate (repeatable)")
	fs.BoolVar(&o.ForceRerun, "force-rerun", o.ForceRerun, "Force re-run even if job exists")
	fs.BoolVar(&o.Wait, "wait", o.Wait, "Wait for the evaluation job to complete")
	fs.IntVar(&o.Timeout, "timeout", o.Timeout, "Max seconds to wait for completion")
	fs.IntVar(&o.PollInterval, "poll-interval", o.PollInterval, "Polling interval in seconds")
	fs.BoolVar(&o.ShowDecision, "show-decision", o.ShowDecision, "Fetch and print the release decision after triggering")
	fs.BoolVar(&o.JSONOutput, "json", o.JSONOutput, "Print the release decision as raw JSON")
}

// evaluateParams carries the numeric wait parameters through struct
// validation.
type evaluateParams struct {
	ExperimentId string `validate:"required"`
	Timeout      int    `validate:"gt=0"`
	PollInterval int    `validate:"gt=0"`
}

var evaluateFlagNames = map[string]string{
	"ExperimentId": "--experiment-id",
	"Timeout":      "--timeout",
	"PollInterval": "--poll-interval",
}

func (o *EvaluateOptions) Validate(args []string) error {
	if err := o.GlobalOptions.Validate(args); err != nil {
		return err
	}

	params := evaluateParams{
		ExperimentId: o.ExperimentId,
		Timeout:      o.Timeout,
		PollInterval: o.PollInterval,
	}
	if err := validator.New().Struct(params); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
			fieldError := validationErrors[0]
			flag := evaluateFlagNames[fieldError.StructField()]
			if fieldError.Tag() == "required" {
				return fmt.Errorf("%s is required", flag)
			}
			return fmt.Errorf("%s must be greater than 0", flag)
		}
		return err
	}
	return nil
}

func (o *EvaluateOptions) Run(ctx context.Context, args []string) error {
	config, err := o.Config()
	if err != nil {
		return err
	}
	projectID, err := resolveProjectId(o.ProjectId, config)
	if err != nil {
		return err
	}

	c, err := o.Client()
	if err != nil {
		return err
	}

	triggered, err := c.TriggerEvaluation(ctx, api.EvaluationRequest{
		ProjectId:    projectID,
		ExperimentId: o.ExperimentId,
		ConfigId:     o.ConfigId,
		RunIds:       o.RunIds,
		ForceRerun:   o.ForceRerun,
		Source:       "cli",
	})
	if err != nil {
		return err
	}

	fmt.Println("✓ Evaluation triggered")
	fmt.Printf("  id: %s\n", triggered.EvaluationId)
	fmt.Printf("  status: %s\n", triggered.Status)

	if o.Wait {
		if triggered.EvaluationId == "" {
			fmt.Println("✗ Missing evaluation_id in response.")
			return fmt.Errorf("missing evaluation_id in response")
		}

		status, err := o.waitForCompletion(ctx, c, projectID, triggered.EvaluationId)
		if err != nil {
			return err
		}
		if status == api.EvaluationStatusCompleted || status == api.EvaluationStatusPartial {
			if err := o.printInsights(ctx, c, projectID); err != nil {
				return err
			}
		}
	}

	if o.ShowDecision {
		return o.showDecision(ctx, c, projectID)
	}
	return nil
}

// evalPollObserver folds one evaluation listing into display lines. It
// remembers the last reported status so unchanged polls stay silent, and
// emits each warning at most once.
type evalPollObserver struct {
	evaluationID string
	lastStatus   string
	warned       bool
}

// backlogWarnAge is how long a job may sit queued and unlocked before the
// poll loop warns about a stuck worker.
const backlogWarnAge = 30 * time.Second

func (p *evalPollObserver) observe(jobs []api.EvaluationJob, now time.Time) (lines []string, status api.EvaluationStatus, done bool) {
	var job *api.EvaluationJob
	for i := range jobs {
		if jobs[i].Id == p.evaluationID {
			job = &jobs[i]
			break
		}
	}
	if job == nil {
		if p.lastStatus != "missing" {
			lines = append(lines, "⚠ Evaluation job not visible yet. Retrying...")
			p.lastStatus = "missing"
		}
		return lines, "", false
	}

	status = job.Status
	if status == "" {
		status = api.EvaluationStatusQueued
	}
	if string(status) != p.lastStatus {
		line := fmt.Sprintf("  status: %s", status)
		if job.Progress != nil && job.Progress.Total != nil {
			line += fmt.Sprintf(" (%d/%d", job.Progress.Completed, *job.Progress.Total)
			if job.Progress.Failed > 0 {
				line += fmt.Sprintf(", failed %d", job.Progress.Failed)
			}
			line += ")"
		}
		lines = append(lines, line)
		p.lastStatus = string(status)
	}

	if status.IsTerminal() {
		return lines, status, true
	}

	if status == api.EvaluationStatusQueued && !p.warned {
		created := parseISOTime(job.CreatedAt)
		locked := parseISOTime(job.LockedAt)
		if !created.IsZero() && locked.IsZero() && now.Sub(created) > backlogWarnAge {
			lines = append(lines, "⚠ Evaluation job still queued. Worker may not be running or backlog is high.")
			p.warned = true
		}
	}
	return lines, status, false
}

func parseISOTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}
	}
	return parsed
}

func (o *EvaluateOptions) waitForCompletion(ctx context.Context, c *client.FluxClient, projectID string, evaluationID string) (api.EvaluationStatus, error) {
	fmt.Println("Waiting for evaluation job to complete...")

	interval := time.Duration(o.PollInterval) * time.Second
	ticker := jitterbug.New(interval, &jitterbug.Norm{Stdev: interval / 10})
	defer ticker.Stop()

	observer := &evalPollObserver{evaluationID: evaluationID}
	deadline := time.Now().Add(time.Duration(o.Timeout) * time.Second)

	for {
		if time.Now().After(deadline) {
			fmt.Println("✗ Timed out waiting for evaluation job.")
			return "", fmt.Errorf("timed out waiting for evaluation job")
		}

		jobs, err := c.ListEvaluations(ctx, o.ExperimentId, projectID)
		if err != nil {
			return "", err
		}
		lines, status, done := observer.observe(jobs, time.Now())
		for _, line := range lines {
			fmt.Println(line)
		}
		if done {
			return status, nil
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}

func (o *EvaluateOptions) printInsights(ctx context.Context, c *client.FluxClient, projectID string) error {
	insights, err := c.ListInsights(ctx, o.ExperimentId, projectID)
	if err != nil {
		return err
	}
	recommendations, err := c.ListRecommendations(ctx, o.ExperimentId, projectID)
	if err != nil {
		return err
	}

	if headline := firstHeadline(insights); headline != "" {
		fmt.Printf("Insights: %s\n", headline)
	}
	if headline := firstHeadline(recommendations); headline != "" {
		fmt.Printf("Recommendations: %s\n", headline)
	}
	return nil
}

func firstHeadline(entries []api.ExperimentInsight) string {
	if len(entries) == 0 {
		return ""
	}
	return entries[0].Content.Summary.Headline
}

func (o *EvaluateOptions) showDecision(ctx context.Context, c *client.FluxClient, projectID string) error {
	decision, raw, err := c.GetDecision(ctx, o.ExperimentId, projectID)
	if err != nil {
		return err
	}
	if !decision.Available() {
		fmt.Println("Decision is not available yet for this experiment.")
		return fmt.Errorf("decision not available")
	}

	if o.JSONOutput {
		var payload any
		if err := json.Unmarshal(raw, &payload); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		data, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding decision: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Print(renderDecisionText(decision))
	return nil
}

// renderDecisionText formats a release decision for the terminal. Gates
// come out one per line as "key => status (reasons)", the budget block is
// printed only when the snapshot carries metrics.
func renderDecisionText(decision *api.Decision) string {
	var b strings.Builder

	if decision.ReleaseDecision != nil && *decision.ReleaseDecision != "" {
		fmt.Fprintf(&b, "Release Decision: %s\n", *decision.ReleaseDecision)
	}
	if decision.DecisionSnapshot != nil && decision.DecisionSnapshot.OverallVerdict != "" {
		fmt.Fprintf(&b, "Overall Verdict: %s\n", decision.DecisionSnapshot.OverallVerdict)
	}

	gates := decision.GateResults()
	if len(gates) > 0 {
		b.WriteString("Gates:\n")
		for _, gate := range gates {
			status := gate.Status
			if status == "" {
				status = string(api.GateStatusUnknown)
			}
			reasons := api.NormalizeGateReasons(gate)
			if len(reasons) > 0 {
				fmt.Fprintf(&b, "  %s => %s (%s)\n", gate.GateKey, status, strings.Join(reasons, ", "))
			} else {
				fmt.Fprintf(&b, "  %s => %s\n", gate.GateKey, status)
			}
		}
	}

	if decision.DecisionSnapshot != nil && decision.DecisionSnapshot.Metrics != nil {
		metrics := decision.DecisionSnapshot.Metrics
		if metrics.TokensUsed != nil || metrics.CostUsd != nil || metrics.LatencyMs != nil {
			b.WriteString("Budget:\n")
			if metrics.TokensUsed != nil {
				fmt.Fprintf(&b, "  tokens_used: %d\n", *metrics.TokensUsed)
			}
			if metrics.CostUsd != nil {
				fmt.Fprintf(&b, "  cost_usd: %.2f\n", *metrics.CostUsd)
			}
			if metrics.LatencyMs != nil {
				fmt.Fprintf(&b, "  latency_ms: %.0f\n", *metrics.LatencyMs)
			}
		}
	}

	return b.String()
}
