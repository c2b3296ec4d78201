package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/thoas/go-funk"

	api "github.com/fluxloop/fluxloop-cli/api/v1alpha1"
)

const (
	usageContext     = "context"
	usageGroundTruth = "ground-truth"

	defaultGTSamplingSeed = 42
)

var (
	datasetExtensions = []string{".csv", ".json", ".jsonl", ".xlsx", ".xls", ".tsv"}
	validGTSplits     = []string{"train", "dev", "test"}
)

func NewCmdData() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "data",
		Short: "Manage project data (Knowledge & Datasets)",
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
			os.Exit(1)
		},
	}
	cmd.AddCommand(NewCmdDataPush())
	cmd.AddCommand(NewCmdDataList())
	cmd.AddCommand(NewCmdDataShow())
	cmd.AddCommand(NewCmdDataBind())
	cmd.AddCommand(NewCmdDataUnbind())
	cmd.AddCommand(NewCmdDataReprocess())
	cmd.AddCommand(NewCmdDataGT())
	return cmd
}

// inferDataCategory classifies a file as DATASET or KNOWLEDGE from its
// extension. An explicit override wins, unrecognized overrides fall back
// to extension detection.
func inferDataCategory(path string, override string) api.DataCategory {
	switch strings.ToLower(override) {
	case "dataset":
		return api.DataCategoryDataset
	case "document", "knowledge":
		return api.DataCategoryKnowledge
	}

	ext := strings.ToLower(filepath.Ext(path))
	if funk.Contains(datasetExtensions, ext) {
		return api.DataCategoryDataset
	}
	return api.DataCategoryKnowledge
}

// inferMimeType guesses the MIME type from the file extension, charset
// parameters are stripped so the payload carries the bare type.
func inferMimeType(path string) string {
	mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if mimeType == "" {
		return "application/octet-stream"
	}
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	return mimeType
}

// inferFileType maps the data category onto the file_type enum of the
// create endpoint.
func inferFileType(category api.DataCategory) api.FileType {
	if category == api.DataCategoryDataset {
		return api.FileTypeStructured
	}
	return api.FileTypeDocument
}

func categoryDisplay(category api.DataCategory) string {
	if category == api.DataCategoryDataset {
		return "Dataset"
	}
	return "Document"
}

func normalizeUsage(usage string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(usage))
	if normalized != usageContext && normalized != usageGroundTruth {
		return "", fmt.Errorf("--usage must be one of: context, ground-truth")
	}
	return normalized, nil
}

func normalizeSplit(split string) (string, error) {
	if split == "" {
		return "", nil
	}
	normalized := strings.ToLower(strings.TrimSpace(split))
	if !funk.Contains(validGTSplits, normalized) {
		return "", fmt.Errorf("--split must be one of: train, dev, test")
	}
	return normalized, nil
}

func normalizeRole(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}

// gtOptionsUsed reports whether any Ground Truth extraction option was
// requested. A seed equal to the default still counts when the flag was
// given explicitly.
func gtOptionsUsed(split string, labelColumn string, rowFilter string, samplingSeed int, samplingSeedExplicit bool) bool {
	return split != "" ||
		labelColumn != "" ||
		rowFilter != "" ||
		samplingSeedExplicit ||
		samplingSeed != defaultGTSamplingSeed
}

type DataListOptions struct {
	GlobalOptions

	ProjectId string
	Category  string
	Format    string
}

func DefaultDataListOptions() *DataListOptions {
	return &DataListOptions{
		GlobalOptions: DefaultGlobalOptions(),
	}
}

func NewCmdDataList() *cobra.Command {
	o := DefaultDataListOptions()
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all data in the project library",
		RunE: func(cmd *cobra.Command, args []string) error {
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

func (o *DataListOptions) Bind(fs *pflag.FlagSet) {
	o.GlobalOptions.Bind(fs)
	fs.StringVar(&o.ProjectId, "project-id", o.ProjectId, "Project ID (defaults to current context)")
	fs.StringVar(&o.Category, "category", o.Category, "Filter by category: 'document' or 'dataset'")
	fs.StringVar(&o.Format, "format", o.Format, "Output format (table, json)")
}

func (o *DataListOptions) Validate(args []string) error {
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

func (o *DataListOptions) Run(ctx context.Context, args []string) error {
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
	items, err := c.ListData(ctx, projectID)
	if err != nil {
		return err
	}

	if o.Category != "" {
		filter := api.DataCategoryKnowledge
		if strings.ToLower(o.Category) == "dataset" {
			filter = api.DataCategoryDataset
		}
		filtered := []api.DataRecord{}
		for _, item := range items {
			if item.DataCategory == filter {
				filtered = append(filtered, item)
			}
		}
		items = filtered
	}

	if len(items) == 0 {
		fmt.Println("No data found.")
		fmt.Println("Upload with: fluxloop data push <file>")
		return nil
	}

	if o.Format == jsonFormat {
		data, err := json.MarshalIndent(items, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding data list: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("Project Data Library (%d items)\n", len(items))
	w := tabwriter.NewWriter(os.Stdout, 0, 8, 1, '\t', 0)
	fmt.Fprintln(w, "ID\tFILENAME\tCATEGORY\tSTATUS\tSIZE")
	for _, item := range items {
		filename := item.Filename
		if filename == "" {
			filename = "N/A"
		}
		status := string(item.ProcessingStatus)
		if status == "" {
			status = "unknown"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			truncateId(item.Id), filename, categoryDisplay(item.DataCategory), status, humanSize(item.FileSize))
	}
	w.Flush()
	fmt.Println()
	fmt.Println("View details: fluxloop data show <id>")
	return nil
}

type DataShowOptions struct {
	GlobalOptions

	ProjectId string
}

func DefaultDataShowOptions() *DataShowOptions {
	return &DataShowOptions{
		GlobalOptions: DefaultGlobalOptions(),
	}
}

func NewCmdDataShow() *cobra.Command {
	o := DefaultDataShowOptions()
	cmd := &cobra.Command{
		Use:   "show DATA_ID",
		Short: "Show details of a specific data record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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

func (o *DataShowOptions) Bind(fs *pflag.FlagSet) {
	o.GlobalOptions.Bind(fs)
	fs.StringVar(&o.ProjectId, "project-id", o.ProjectId, "Project ID (defaults to current context)")
}

func (o *DataShowOptions) Validate(args []string) error {
	return o.GlobalOptions.Validate(args)
}

func (o *DataShowOptions) Run(ctx context.Context, args []string) error {
	dataID := args[0]

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

	// The service has no data GET by id, list and filter instead. Prefix
	// matches are accepted so the truncated list ids remain usable.
	items, err := c.ListData(ctx, projectID)
	if err != nil {
		return err
	}
	matching := []api.DataRecord{}
	for _, item := range items {
		if item.Id == dataID || strings.HasPrefix(item.Id, dataID) {
			matching = append(matching, item)
		}
	}

	if len(matching) == 0 {
		return fmt.Errorf("data not found: %s", dataID)
	}
	if len(matching) > 1 {
		fmt.Println("⚠ Multiple matches found. Please use a longer ID prefix.")
		for i, item := range matching {
			if i == 5 {
				break
			}
			fmt.Printf("  - %s: %s\n", item.Id, item.Filename)
		}
		return fmt.Errorf("ambiguous data id: %s", dataID)
	}

	printDataRecord(matching[0])
	return nil
}

func printDataRecord(item api.DataRecord) {
	filename := item.Filename
	if filename == "" {
		filename = "N/A"
	}
	category := item.DataCategory
	if category == "" {
		category = api.DataCategoryKnowledge
	}
	status := string(item.ProcessingStatus)
	if status == "" {
		status = "unknown"
	}

	fmt.Println()
	fmt.Printf("Data: %s\n", item.Id)
	fmt.Println()
	fmt.Printf("Filename: %s\n", filename)
	fmt.Printf("Category: %s\n", category)
	fmt.Printf("Status: %s\n", status)
	if item.FileSize > 0 {
		fmt.Printf("Size: %d bytes\n", item.FileSize)
	}
	if item.MimeType != "" {
		fmt.Printf("MIME Type: %s\n", item.MimeType)
	}
	if item.ContentHash != "" {
		hash := item.ContentHash
		if len(hash) > 16 {
			hash = hash[:16]
		}
		fmt.Printf("Content Hash: %s...\n", hash)
	}
	if item.CreatedAt != "" {
		fmt.Printf("Created: %s\n", item.CreatedAt)
	}
	if item.ProcessingError != "" {
		fmt.Println()
		fmt.Printf("Error: %s\n", item.ProcessingError)
	}
	if item.ExtractedSummary != "" {
		fmt.Println()
		fmt.Println("Summary:")
		fmt.Println(truncateText(item.ExtractedSummary, 500))
	}
}

type DataUnbindOptions struct {
	GlobalOptions

	ScenarioId string
}

func DefaultDataUnbindOptions() *DataUnbindOptions {
	return &DataUnbindOptions{
		GlobalOptions: DefaultGlobalOptions(),
	}
}

func NewCmdDataUnbind() *cobra.Command {
	o := DefaultDataUnbindOptions()
	cmd := &cobra.Command{
		Use:   "unbind BINDING_ID",
		Short: "Remove a data binding from a scenario",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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

func (o *DataUnbindOptions) Bind(fs *pflag.FlagSet) {
	o.GlobalOptions.Bind(fs)
	fs.StringVarP(&o.ScenarioId, "scenario", "s", o.ScenarioId, "Scenario ID (defaults to current context)")
}

func (o *DataUnbindOptions) Validate(args []string) error {
	return o.GlobalOptions.Validate(args)
}

func (o *DataUnbindOptions) Run(ctx context.Context, args []string) error {
	bindingID := args[0]

	config, err := o.Config()
	if err != nil {
		return err
	}
	scenarioID, err := resolveScenarioId(o.ScenarioId, config)
	if err != nil {
		return err
	}

	c, err := o.Client()
	if err != nil {
		return err
	}

	fmt.Println("Removing data binding...")
	if err := c.UnbindData(ctx, scenarioID, bindingID); err != nil {
		return err
	}
	fmt.Println("✓ Binding removed")
	return nil
}

type DataReprocessOptions struct {
	GlobalOptions

	As        string
	ProjectId string
}

func DefaultDataReprocessOptions() *DataReprocessOptions {
	return &DataReprocessOptions{
		GlobalOptions: DefaultGlobalOptions(),
	}
}

func NewCmdDataReprocess() *cobra.Command {
	o := DefaultDataReprocessOptions()
	cmd := &cobra.Command{
		Use:   "reprocess DATA_ID",
		Short: "Reprocess data with a different category or to fix processing errors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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

func (o *DataReprocessOptions) Bind(fs *pflag.FlagSet) {
	o.GlobalOptions.Bind(fs)
	fs.StringVar(&o.As, "as", o.As, "Change data category: 'document' or 'dataset'")
	fs.StringVar(&o.ProjectId, "project-id", o.ProjectId, "Project ID (defaults to current context)")
}

func (o *DataReprocessOptions) Validate(args []string) error {
	return o.GlobalOptions.Validate(args)
}

// reprocessRequest maps the --as override onto a reprocess payload. An
// unrecognized or empty override leaves the payload empty and the server
// keeps the current category.
func reprocessRequest(asType string) api.ReprocessDataRequest {
	request := api.ReprocessDataRequest{}
	switch strings.ToLower(asType) {
	case "dataset":
		request.DataCategory = api.DataCategoryDataset
		request.ProcessingProfile = api.ProcessingProfileDataset
	case "document", "knowledge":
		request.DataCategory = api.DataCategoryKnowledge
		request.ProcessingProfile = api.ProcessingProfileDocument
	}
	return request
}

func (o *DataReprocessOptions) Run(ctx context.Context, args []string) error {
	dataID := args[0]

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

	fmt.Println("Reprocessing data...")
	result, err := c.ReprocessData(ctx, projectID, dataID, reprocessRequest(o.As))
	if err != nil {
		return err
	}

	status := result.ProcessingStatus
	if status == "" {
		status = api.ProcessingStatusQueued
	}
	fmt.Println("✓ Reprocessing queued")
	fmt.Printf("  Data ID: %s\n", dataID)
	fmt.Printf("  Status: %s\n", status)
	return nil
}
