package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	api "github.com/fluxloop/fluxloop-cli/api/v1alpha1"
	"github.com/fluxloop/fluxloop-cli/internal/client"
)

type DataPushOptions struct {
	GlobalOptions

	As              string
	Scenario        string
	BindCurrent     bool
	Usage           string
	Split           string
	LabelColumn     string
	RowFilter       string
	SamplingSeed    int
	MaterializeGT   bool
	NoMaterializeGT bool
	ProjectId       string
	Quiet           bool

	samplingSeedExplicit bool
}

func DefaultDataPushOptions() *DataPushOptions {
	return &DataPushOptions{
		GlobalOptions: DefaultGlobalOptions(),
		Usage:         usageContext,
		SamplingSeed:  defaultGTSamplingSeed,
		MaterializeGT: true,
	}
}

func NewCmdDataPush() *cobra.Command {
	o := DefaultDataPushOptions()
	cmd := &cobra.Command{
		Use:   "push FILE",
		Short: "Upload a file to the project data library",
		Long: `Upload a file to the project data library.

The file is automatically categorized as KNOWLEDGE (documents) or DATASET
based on its extension. Use --as to override the auto-detection.`,
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

func (o *DataPushOptions) Bind(fs *pflag.FlagSet) {
	o.GlobalOptions.Bind(fs)
	fs.StringVar(&o.As, "as", o.As, "Data category: 'document' (Knowledge) or 'dataset'. Auto-detected if not specified.")
	fs.StringVar(&o.Scenario, "scenario", o.Scenario, "Scenario ID to bind after upload (uses current context if not specified)")
	fs.BoolVar(&o.BindCurrent, "bind", o.BindCurrent, "Bind to current scenario after upload")
	fs.StringVar(&o.Usage, "usage", o.Usage, "Data usage mode: context or ground-truth")
	fs.StringVar(&o.Split, "split", o.Split, "Ground Truth split (train|dev|test). Only for --usage ground-truth.")
	fs.StringVar(&o.LabelColumn, "label-column", o.LabelColumn, "Ground Truth label column. Only for --usage ground-truth.")
	fs.StringVar(&o.RowFilter, "row-filter", o.RowFilter, "Ground Truth row filter expression. Only for --usage ground-truth.")
	fs.IntVar(&o.SamplingSeed, "sampling-seed", o.SamplingSeed, "Ground Truth sampling seed (default: 42). Only for --usage ground-truth.")
	fs.BoolVar(&o.MaterializeGT, "materialize-gt", o.MaterializeGT, "Materialize Ground Truth profile/contracts after bind (GT mode).")
	fs.BoolVar(&o.NoMaterializeGT, "no-materialize-gt", o.NoMaterializeGT, "Skip Ground Truth materialization after bind.")
	fs.StringVar(&o.ProjectId, "project-id", o.ProjectId, "Project ID (defaults to current context)")
	fs.BoolVarP(&o.Quiet, "quiet", "q", o.Quiet, "Minimal output")
}

func (o *DataPushOptions) Complete(cmd *cobra.Command, args []string) error {
	o.samplingSeedExplicit = cmd.Flags().Changed("sampling-seed")
	if o.NoMaterializeGT {
		o.MaterializeGT = false
	}
	return nil
}

func (o *DataPushOptions) Validate(args []string) error {
	if err := o.GlobalOptions.Validate(args); err != nil {
		return err
	}

	usage, err := normalizeUsage(o.Usage)
	if err != nil {
		return err
	}
	o.Usage = usage

	split, err := normalizeSplit(o.Split)
	if err != nil {
		return err
	}
	o.Split = split

	gtOptionsRequested := gtOptionsUsed(o.Split, o.LabelColumn, o.RowFilter, o.SamplingSeed, o.samplingSeedExplicit)
	if o.Usage == usageContext && gtOptionsRequested {
		return fmt.Errorf("--split/--label-column/--row-filter/--sampling-seed are only valid with --usage ground-truth")
	}
	if o.Usage == usageGroundTruth && !o.BindCurrent && o.Scenario == "" {
		return fmt.Errorf("--usage ground-truth requires --bind or --scenario")
	}
	return nil
}

func (o *DataPushOptions) Run(ctx context.Context, args []string) error {
	config, err := o.Config()
	if err != nil {
		return err
	}

	scenarioID := o.Scenario
	if o.BindCurrent && scenarioID == "" {
		scenarioID = config.Context.ScenarioId
	}
	if o.Usage == usageGroundTruth && scenarioID == "" {
		return fmt.Errorf("Ground Truth upload requires a scenario binding. Provide --scenario <id> or set current scenario then use --bind.")
	}

	file, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	info, err := os.Stat(file)
	if err != nil {
		return fmt.Errorf("file not found: %s", file)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("not a file: %s", file)
	}

	projectID, err := resolveProjectId(o.ProjectId, config)
	if err != nil {
		return err
	}

	filename := filepath.Base(file)
	fileSize := info.Size()
	mimeType := inferMimeType(file)

	var dataCategory api.DataCategory
	var fileType api.FileType
	var processingProfile api.ProcessingProfile
	if o.Usage == usageGroundTruth {
		// Ground Truth uploads are always structured datasets.
		dataCategory = api.DataCategoryDataset
		fileType = api.FileTypeStructured
		processingProfile = api.ProcessingProfileDataset
	} else {
		dataCategory = inferDataCategory(file, o.As)
		fileType = inferFileType(dataCategory)
		processingProfile = api.ProcessingProfileAuto
	}

	if !o.Quiet {
		fmt.Printf("Uploading %s...\n", filename)
		fmt.Printf("  Type: %s (%s)\n", categoryDisplay(dataCategory), dataCategory)
		fmt.Printf("  Usage: %s\n", o.Usage)
		fmt.Printf("  Size: %d bytes\n", fileSize)
	}

	c, err := o.Client()
	if err != nil {
		return err
	}

	var spinner *StatusSpinner
	if !o.Quiet {
		spinner = NewStatusSpinner("Creating upload...")
	}

	createResult, err := c.CreateData(ctx, projectID, api.CreateDataRequest{
		Filename:          filename,
		FileType:          fileType,
		MimeType:          mimeType,
		FileSize:          fileSize,
		DataCategory:      dataCategory,
		ProcessingProfile: processingProfile,
	})
	if err != nil {
		spinner.Stop()
		return err
	}

	dataID := createResult.Data.Id
	uploadURL := createResult.Upload.UploadUrl
	if dataID == "" || uploadURL == "" {
		spinner.Stop()
		return fmt.Errorf("failed to get upload URL")
	}

	spinner.Update("Uploading file...")
	content, err := os.ReadFile(file)
	if err != nil {
		spinner.Stop()
		return err
	}
	contentHash := client.HashContent(content)
	if err := client.UploadContent(ctx, uploadURL, createResult.Upload.Headers, content); err != nil {
		spinner.Stop()
		return err
	}

	spinner.Update("Confirming upload...")
	confirmed, err := c.ConfirmData(ctx, projectID, dataID, api.ConfirmDataRequest{
		FileSize:    fileSize,
		MimeType:    mimeType,
		ContentHash: contentHash,
	})
	if err != nil {
		spinner.Stop()
		return err
	}
	spinner.Stop()

	if !o.Quiet {
		status := confirmed.ProcessingStatus
		if status == "" {
			status = api.ProcessingStatusQueued
		}
		fmt.Printf("✓ Uploaded: %s\n", filename)
		fmt.Printf("  Data ID: %s\n", dataID)
		fmt.Printf("  Status: %s\n", status)
	}

	var materializeResult map[string]any
	if scenarioID != "" {
		materializeResult, err = o.bindAfterPush(ctx, c, scenarioID, dataID)
		if err != nil {
			return err
		}
	}

	if o.Usage == usageGroundTruth {
		profileID := api.ExtractProfileID(materializeResult)
		contractCount := len(api.ExtractContractIDs(materializeResult))
		if o.Quiet {
			fmt.Printf("data_id=%s\n", dataID)
			fmt.Printf("scenario_id=%s\n", orDash(scenarioID))
			fmt.Printf("profile_id=%s\n", orDash(profileID))
			fmt.Printf("gt_contract_count=%d\n", contractCount)
		} else {
			fmt.Println("✓ Ground Truth binding complete")
			fmt.Printf("  data_id: %s\n", dataID)
			fmt.Printf("  scenario_id: %s\n", scenarioID)
			fmt.Printf("  profile_id: %s\n", orDash(profileID))
			fmt.Printf("  gt_contract_count: %d\n", contractCount)
		}
	} else if o.Quiet {
		fmt.Printf("data_id=%s\n", dataID)
		if scenarioID != "" {
			fmt.Printf("scenario_id=%s\n", scenarioID)
		}
	}

	return nil
}

// bindAfterPush attaches the uploaded record to the scenario and, in
// Ground Truth mode, materializes the profile. Binding failures are fatal
// in GT mode and warnings otherwise, an existing binding is never an
// error.
func (o *DataPushOptions) bindAfterPush(ctx context.Context, c *client.FluxClient, scenarioID string, dataID string) (map[string]any, error) {
	var spinner *StatusSpinner
	if !o.Quiet {
		spinner = NewStatusSpinner("Binding to scenario...")
	}

	bindRequest := api.BindDataRequest{DataId: dataID}
	if o.Usage == usageGroundTruth {
		seed := o.SamplingSeed
		bindRequest.BindingMeta = &api.BindingMeta{
			Role:         "validation",
			SamplingSeed: &seed,
			Split:        o.Split,
			LabelColumn:  o.LabelColumn,
			RowFilter:    o.RowFilter,
		}
	}

	bindErr := c.BindData(ctx, scenarioID, bindRequest)
	spinner.Stop()

	apiErr := &client.APIError{}
	isAPIErr := errors.As(bindErr, &apiErr)

	if o.Usage == usageGroundTruth {
		switch {
		case bindErr == nil:
			if !o.Quiet {
				fmt.Printf("✓ Bound to scenario: %s\n", scenarioID)
			}
		case isAPIErr && apiErr.StatusCode == http.StatusConflict:
			if !o.Quiet {
				fmt.Println("Already bound to scenario")
			}
		default:
			return nil, bindErr
		}

		if !o.MaterializeGT {
			if !o.Quiet {
				fmt.Println("Skipped GT materialization (--no-materialize-gt)")
			}
			return nil, nil
		}

		if !o.Quiet {
			spinner = NewStatusSpinner("Materializing Ground Truth...")
		}
		result, err := materializeGroundTruth(ctx, c, scenarioID, dataID, o.Split, o.LabelColumn, o.RowFilter, o.SamplingSeed, spinner)
		if err != nil {
			return nil, err
		}
		return result, nil
	}

	switch {
	case bindErr == nil:
		if !o.Quiet {
			fmt.Printf("✓ Bound to scenario: %s\n", scenarioID)
		}
	case isAPIErr && apiErr.StatusCode == http.StatusNotFound:
		fmt.Printf("⚠ Scenario not found: %s\n", scenarioID)
	case isAPIErr && apiErr.StatusCode == http.StatusConflict:
		if !o.Quiet {
			fmt.Println("Already bound to scenario")
		}
	case isAPIErr:
		fmt.Printf("⚠ Binding failed: %d\n", apiErr.StatusCode)
	default:
		return nil, bindErr
	}
	return nil, nil
}

func orDash(value string) string {
	if value == "" {
		return "-"
	}
	return value
}
