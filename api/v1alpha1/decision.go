package v1alpha1

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
)

// GateResult is the verdict of a single release gate. Reasons carries the
// structured failure tokens, older snapshots pack them into the single
// Reason string instead.
type GateResult struct {
	GateKey string   `json:"gate_key"`
	Status  string   `json:"status,omitempty"`
	Reason  string   `json:"reason,omitempty"`
	Reasons []string `json:"reasons,omitempty"`
}

// BudgetMetrics are the spend counters of a decision snapshot.
type BudgetMetrics struct {
	TokensUsed *int64   `json:"tokens_used,omitempty"`
	CostUsd    *float64 `json:"cost_usd,omitempty"`
	LatencyMs  *float64 `json:"latency_ms,omitempty"`
}

// DecisionSnapshot is the frozen decision state of an experiment.
type DecisionSnapshot struct {
	OverallVerdict string         `json:"overall_verdict,omitempty"`
	GateResults    []GateResult   `json:"gate_results,omitempty"`
	Metrics        *BudgetMetrics `json:"metrics,omitempty"`
}

// Decision is the release decision endpoint response. All fields are
// optional, the server answers with nulls until an evaluation produced a
// decision.
type Decision struct {
	EvaluationId        *string           `json:"evaluation_id"`
	ReleaseDecision     *string           `json:"release_decision"`
	DecisionSnapshot    *DecisionSnapshot `json:"decision_snapshot"`
	GateSnapshot        json.RawMessage   `json:"gate_snapshot"`
	GateResultsSnapshot []GateResult      `json:"gate_results_snapshot"`
}

// Available reports whether the server produced any decision state yet.
// A response with release_decision, decision_snapshot, gate_snapshot and
// gate_results_snapshot all null means no decision exists.
func (d *Decision) Available() bool {
	if d == nil {
		return false
	}
	if d.ReleaseDecision != nil && *d.ReleaseDecision != "" {
		return true
	}
	if d.DecisionSnapshot != nil {
		return true
	}
	if rawPresent(d.GateSnapshot) {
		return true
	}
	return len(d.GateResultsSnapshot) > 0
}

// GateResults returns the gate verdicts, preferring the dedicated
// gate_results_snapshot and falling back to the decision snapshot.
func (d *Decision) GateResults() []GateResult {
	if len(d.GateResultsSnapshot) > 0 {
		return d.GateResultsSnapshot
	}
	if d.DecisionSnapshot != nil {
		return d.DecisionSnapshot.GateResults
	}
	return nil
}

var gateReasonCount = regexp.MustCompile(`:\d+$`)

// NormalizeGateReasons flattens the failure reasons of a gate into
// display tokens. The structured Reasons list is trimmed and deduped as
// is. The legacy Reason string is split on commas and semicolons and
// occurrence counters like "limit_exceeded:3" lose their ":3" suffix.
func NormalizeGateReasons(gate GateResult) []string {
	tokens := []string{}
	if len(gate.Reasons) > 0 {
		for _, reason := range gate.Reasons {
			if t := strings.TrimSpace(reason); t != "" {
				tokens = append(tokens, t)
			}
		}
	} else {
		parts := strings.FieldsFunc(gate.Reason, func(r rune) bool {
			return r == ',' || r == ';'
		})
		for _, part := range parts {
			t := strings.TrimSpace(part)
			t = gateReasonCount.ReplaceAllString(t, "")
			t = strings.TrimSpace(t)
			if t != "" {
				tokens = append(tokens, t)
			}
		}
	}

	seen := make(map[string]struct{}, len(tokens))
	out := []string{}
	for _, t := range tokens {
		if _, found := seen[t]; found {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func rawPresent(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}
