package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	api "github.com/fluxloop/fluxloop-cli/api/v1alpha1"
	"github.com/fluxloop/fluxloop-cli/internal/client"
)

type DataBindOptions struct {
	GlobalOptions

	Scenario        string
	Role            string
	Split           string
	LabelColumn     string
	RowFilter       string
	SamplingSeed    int
	MaterializeGT   bool
	NoMaterializeGT bool
	Quiet           bool

	samplingSeedExplicit bool
}

func DefaultDataBindOptions() *DataBindOptions {
	return &DataBindOptions{
		GlobalOptions: DefaultGlobalOptions(),
		SamplingSeed:  defaultGTSamplingSeed,
		MaterializeGT: true,
	}
}

func NewCmdDataBind() *cobra.Command {
	o := DefaultDataBindOptions()
	cmd := &cobra.Command{
		Use:   "bind DATA_ID",
		Short: "Bind project data to a scenario",
		Long: `Bind project data to a scenario.

Creates an association between data in the project library and a scenario,
allowing the scenario to use this data for testing.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.Complete(cmd, args); err != nil {
				return err
			}
			if err := o.Validate(args); err != nil {
				return err
			}
			return o.Run(cmd.Context(), args)
		},
		SilenceUsage: true,
	}
	o.Bind(cmd.Flags())
	return cmd
}

func (o *DataBindOptions) Bind(fs *pflag.FlagSet) {
	o.GlobalOptions.Bind(fs)
	fs.StringVarP(&o.Scenario, "scenario", "s", o.Scenario, "Scenario ID (defaults to current context)")
	fs.StringVar(&o.Role, "role", o.Role, "Data role (e.g., 'input', 'expected', 'ground_truth')")
	fs.StringVar(&o.Split, "split", o.Split, "Ground Truth split (train|dev|test). Allowed only with --role validation.")
	fs.StringVar(&o.LabelColumn, "label-column", o.LabelColumn, "Ground Truth label column. Allowed only with --role validation.")
	fs.StringVar(&o.RowFilter, "row-filter", o.RowFilter, "Ground Truth row filter expression. Allowed only with --role validation.")
	fs.IntVar(&o.SamplingSeed, "sampling-seed", o.SamplingSeed, "Ground Truth sampling seed (default: 42). Allowed only with --role validation.")
	fs.BoolVar(&o.MaterializeGT, "materialize-gt", o.MaterializeGT, "Materialize Ground Truth profile/contracts after validation bind.")
	fs.BoolVar(&o.NoMaterializeGT, "no-materialize-gt", o.NoMaterializeGT, "Skip Ground Truth materialization after validation bind.")
	fs.BoolVarP(&o.Quiet, "quiet", "q", o.Quiet, "Minimal output")
}

func (o *DataBindOptions) Complete(cmd *cobra.Command, args []string) error {
	o.samplingSeedExplicit = cmd.Flags().Changed("sampling-seed")
	if o.NoMaterializeGT {
		o.MaterializeGT = false
	}
	return nil
}

func (o *DataBindOptions) Validate(args []string) error {
	if err := o.GlobalOptions.Validate(args); err != nil {
		return err
	}

	o.Role = normalizeRole(o.Role)

	split, err := normalizeSplit(o.Split)
	if err != nil {
		return err
	}
	o.Split = split

	gtOptionsRequested := gtOptionsUsed(o.Split, o.LabelColumn, o.RowFilter, o.SamplingSeed, o.samplingSeedExplicit)
	if gtOptionsRequested && o.Role != "validation" {
		return fmt.Errorf("--split/--label-column/--row-filter/--sampling-seed require --role validation")
	}
	return nil
}

func (o *DataBindOptions) Run(ctx context.Context, args []string) error {
	dataID := args[0]

	config, err := o.Config()
	if err != nil {
		return err
	}
	scenarioID, err := resolveScenarioId(o.Scenario, config)
	if err != nil {
		return err
	}

	c, err := o.Client()
	if err != nil {
		return err
	}

	bindRequest := api.BindDataRequest{DataId: dataID}
	if o.Role != "" {
		meta := &api.BindingMeta{Role: o.Role}
		if o.Role == "validation" {
			seed := o.SamplingSeed
			meta.SamplingSeed = &seed
			meta.Split = o.Split
			meta.LabelColumn = o.LabelColumn
			meta.RowFilter = o.RowFilter
		}
		bindRequest.BindingMeta = meta
	}

	if !o.Quiet {
		fmt.Println("Binding data to scenario...")
	}

	bindErr := c.BindData(ctx, scenarioID, bindRequest)

	alreadyBound := false
	if bindErr != nil {
		apiErr := &client.APIError{}
		if errors.As(bindErr, &apiErr) && apiErr.StatusCode == http.StatusConflict {
			alreadyBound = true
			if !o.Quiet {
				fmt.Println("⚠ Data already bound to this scenario")
			}
		} else {
			return bindErr
		}
	}

	var materializeResult map[string]any
	if o.Role == "validation" && o.MaterializeGT {
		materializeResult, err = materializeGroundTruth(ctx, c, scenarioID, dataID, o.Split, o.LabelColumn, o.RowFilter, o.SamplingSeed, nil)
		if err != nil {
			return err
		}
	}

	if o.Role == "validation" {
		profileID := api.ExtractProfileID(materializeResult)
		contractCount := len(api.ExtractContractIDs(materializeResult))
		if o.Quiet {
			fmt.Printf("data_id=%s\n", dataID)
			fmt.Printf("scenario_id=%s\n", scenarioID)
			fmt.Printf("profile_id=%s\n", orDash(profileID))
			fmt.Printf("gt_contract_count=%d\n", contractCount)
		} else {
			fmt.Println("✓ Validation (GT) binding complete")
			fmt.Printf("  data_id: %s\n", dataID)
			fmt.Printf("  scenario_id: %s\n", scenarioID)
			fmt.Printf("  profile_id: %s\n", orDash(profileID))
			fmt.Printf("  gt_contract_count: %d\n", contractCount)
		}
		return nil
	}

	if !alreadyBound && !o.Quiet {
		fmt.Println("✓ Data bound to scenario")
	}
	if o.Quiet {
		fmt.Printf("data_id=%s\n", dataID)
		fmt.Printf("scenario_id=%s\n", scenarioID)
	} else {
		fmt.Printf("  Data ID: %s\n", dataID)
		fmt.Printf("  Scenario ID: %s\n", scenarioID)
	}
	return nil
}
