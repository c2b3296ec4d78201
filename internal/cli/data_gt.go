package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	api "github.com/fluxloop/fluxloop-cli/api/v1alpha1"
	"github.com/fluxloop/fluxloop-cli/internal/client"
)

func NewCmdDataGT() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gt",
		Short: "Manage Ground Truth materialization and status",
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
			os.Exit(1)
		},
	}
	cmd.AddCommand(NewCmdDataGTStatus())
	return cmd
}

type materializeFailure int

const (
	materializeFailureGeneric materializeFailure = iota
	materializeFailureProcessing
	materializeFailureRole
)

// classifyMaterializeFailure distinguishes the two remediable 409 cases,
// a dataset still being processed and a missing validation role binding,
// from everything else.
func classifyMaterializeFailure(statusCode int, detail string) materializeFailure {
	if statusCode != http.StatusConflict {
		return materializeFailureGeneric
	}
	lower := strings.ToLower(detail)
	for _, token := range []string{"processing", "not ready", "pending", "queued"} {
		if strings.Contains(lower, token) {
			return materializeFailureProcessing
		}
	}
	for _, token := range []string{"role", "validation"} {
		if strings.Contains(lower, token) {
			return materializeFailureRole
		}
	}
	return materializeFailureGeneric
}

func printMaterializeError(apiErr *client.APIError, scenarioID string, dataID string) {
	fmt.Printf("✗ Ground Truth materialization failed (%d)\n", apiErr.StatusCode)
	fmt.Printf("  API detail: %s\n", apiErr.Detail)
	fmt.Println("  Next actions:")

	switch classifyMaterializeFailure(apiErr.StatusCode, apiErr.Detail) {
	case materializeFailureProcessing:
		fmt.Printf("  1) Wait for dataset processing: fluxloop data show %s\n", dataID)
		fmt.Printf("  2) Retry materialization once processing is completed (fluxloop data bind %s --scenario %s --role validation)\n", dataID, scenarioID)
	case materializeFailureRole:
		fmt.Printf("  1) Ensure validation role binding: fluxloop data bind %s --scenario %s --role validation\n", dataID, scenarioID)
		fmt.Printf("  2) Verify current GT state: fluxloop data gt status --scenario %s --data-id %s\n", scenarioID, dataID)
	default:
		fmt.Printf("  1) Inspect processing state: fluxloop data show %s\n", dataID)
		fmt.Printf("  2) Check GT status and retry as needed: fluxloop data gt status --scenario %s --data-id %s\n", scenarioID, dataID)
	}
}

// materializeGroundTruth calls the materialize endpoint and, on an API
// failure, prints the remediation block before reporting the error. The
// spinner, when given, is stopped before anything is printed.
func materializeGroundTruth(ctx context.Context, c *client.FluxClient, scenarioID string, dataID string, split string, labelColumn string, rowFilter string, samplingSeed int, spinner *StatusSpinner) (map[string]any, error) {
	result, err := c.MaterializeGroundTruth(ctx, scenarioID, api.MaterializeRequest{
		DataId:       dataID,
		SamplingSeed: samplingSeed,
		Split:        split,
		LabelColumn:  labelColumn,
		RowFilter:    rowFilter,
	})
	spinner.Stop()
	if err != nil {
		apiErr := &client.APIError{}
		if errors.As(err, &apiErr) {
			printMaterializeError(apiErr, scenarioID, dataID)
			return nil, fmt.Errorf("ground truth materialization failed")
		}
		return nil, err
	}
	return result, nil
}

type DataGTStatusOptions struct {
	GlobalOptions

	Scenario string
	DataId   string
	Format   string
}

func DefaultDataGTStatusOptions() *DataGTStatusOptions {
	return &DataGTStatusOptions{
		GlobalOptions: DefaultGlobalOptions(),
	}
}

func NewCmdDataGTStatus() *cobra.Command {
	o := DefaultDataGTStatusOptions()
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show Ground Truth materialization status for a scenario",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.Validate(args); err != nil {
				return err
			}
			return o.Run(cmd.Context(), args)
		},
		SilenceUsage: true,
	}
	o.Bind(cmd.Flags())

	if err := validateFlags(cmd, "scenario"); err != nil {
		panic(err)
	}

	return cmd
}

func (o *DataGTStatusOptions) Bind(fs *pflag.FlagSet) {
	o.GlobalOptions.Bind(fs)
	fs.StringVar(&o.Scenario, "scenario", o.Scenario, "Scenario ID")
	fs.StringVar(&o.DataId, "data-id", o.DataId, "Filter by data ID")
	fs.StringVar(&o.Format, "format", o.Format, "Output format (table, json)")
}

func (o *DataGTStatusOptions) Validate(args []string) error {
	if err := o.GlobalOptions.Validate(args); err != nil {
		return err
	}
	format, err := normalizeFormat(o.Format)
	if err != nil {
		return err
	}
	o.Format = format
	return nil
}

func (o *DataGTStatusOptions) Run(ctx context.Context, args []string) error {
	c, err := o.Client()
	if err != nil {
		return err
	}

	rows, err := c.GroundTruthStatus(ctx, o.Scenario, o.DataId)
	if err != nil {
		return err
	}

	if o.Format == jsonFormat {
		data, err := json.MarshalIndent(rows, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding status rows: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	if len(rows) == 0 {
		fmt.Println("No Ground Truth status found.")
		fmt.Println("Bind validation data first: fluxloop data bind <data_id> --role validation")
		return nil
	}

	fmt.Printf("Ground Truth Status (%s)\n", o.Scenario)
	w := tabwriter.NewWriter(os.Stdout, 0, 8, 1, '\t', 0)
	fmt.Fprintln(w, "data_id\tmaterialization_status\tground_truth_profile_id\tgt_contract_count\tprocessing_status\tupdated_at")
	for _, row := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			row.DataId, row.MaterializationStatus, row.GroundTruthProfileId, row.GTContractCount, row.ProcessingStatus, row.UpdatedAt)
	}
	w.Flush()
	return nil
}
