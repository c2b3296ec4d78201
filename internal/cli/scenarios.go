package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/thoas/go-funk"
	"sigs.k8s.io/yaml"

	api "github.com/fluxloop/fluxloop-cli/api/v1alpha1"
)

// scenarioProjectGetter is the slice of the API client scenario creation
// needs for the project default language lookup.
type scenarioProjectGetter interface {
	GetProject(ctx context.Context, projectID string) (*api.Project, error)
}

func NewCmdScenarios() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scenarios",
		Short: "Manage test scenarios",
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
			os.Exit(1)
		},
	}
	cmd.AddCommand(NewCmdScenariosList())
	cmd.AddCommand(NewCmdScenariosCreate())
	cmd.AddCommand(NewCmdScenariosSelect())
	return cmd
}

type ScenariosListOptions struct {
	GlobalOptions

	ProjectId string
	Output    string
}

func DefaultScenariosListOptions() *ScenariosListOptions {
	return &ScenariosListOptions{
		GlobalOptions: DefaultGlobalOptions(),
	}
}

func NewCmdScenariosList() *cobra.Command {
	o := DefaultScenariosListOptions()
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List scenarios of the current project",
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

func (o *ScenariosListOptions) Bind(fs *pflag.FlagSet) {
	o.GlobalOptions.Bind(fs)
	fs.StringVar(&o.ProjectId, "project-id", o.ProjectId, "Web Project id, defaults to the selected project")
	fs.StringVarP(&o.Output, "output", "o", o.Output, fmt.Sprintf("Output format. One of: (%s).", strings.Join(legalOutputTypes, ", ")))
}

func (o *ScenariosListOptions) Validate(args []string) error {
	if err := o.GlobalOptions.Validate(args); err != nil {
		return err
	}
	if len(o.Output) > 0 && !funk.Contains(legalOutputTypes, o.Output) {
		return fmt.Errorf("output format must be one of %s", strings.Join(legalOutputTypes, ", "))
	}
	return nil
}

func (o *ScenariosListOptions) Run(ctx context.Context, args []string) error {
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
	scenarios, err := c.ListScenarios(ctx, projectID)
	if err != nil {
		return err
	}

	switch o.Output {
	case jsonFormat:
		data, err := json.MarshalIndent(scenarios, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding scenarios: %w", err)
		}
		fmt.Println(string(data))
	case yamlFormat:
		data, err := yaml.Marshal(scenarios)
		if err != nil {
			return fmt.Errorf("encoding scenarios: %w", err)
		}
		fmt.Print(string(data))
	default:
		w := tabwriter.NewWriter(os.Stdout, 0, 8, 1, '\t', 0)
		fmt.Fprintln(w, "ID\tNAME\tDESCRIPTION\tCREATED")
		for _, scenario := range scenarios {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", scenario.Id, scenario.Name, truncateText(scenario.Description, 40), scenario.CreatedAt)
		}
		w.Flush()
	}
	return nil
}

type ScenariosCreateOptions struct {
	GlobalOptions

	Name        string
	Description string
	ProjectId   string
	Language    string
	File        string
}

func DefaultScenariosCreateOptions() *ScenariosCreateOptions {
	return &ScenariosCreateOptions{
		GlobalOptions: DefaultGlobalOptions(),
	}
}

func NewCmdScenariosCreate() *cobra.Command {
	o := DefaultScenariosCreateOptions()
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a scenario and select it",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.Validate(args); err != nil {
				return err
			}
			return o.Run(cmd.Context(), args)
		},
		SilenceUsage: true,
	}
	o.Bind(cmd.Flags())

	if err := validateFlags(cmd, "name"); err != nil {
		panic(err)
	}

	return cmd
}

func (o *ScenariosCreateOptions) Bind(fs *pflag.FlagSet) {
	o.GlobalOptions.Bind(fs)
	fs.StringVar(&o.Name, "name", o.Name, "Name of the new scenario")
	fs.StringVar(&o.Description, "description", o.Description, "Description of the new scenario")
	fs.StringVar(&o.ProjectId, "project-id", o.ProjectId, "Web Project id, defaults to the selected project")
	fs.StringVar(&o.Language, "language", o.Language, "Language for the scenario config snapshot")
	fs.StringVar(&o.File, "file", o.File, "JSON or YAML file with additional payload fields")
}

func (o *ScenariosCreateOptions) Validate(args []string) error {
	return o.GlobalOptions.Validate(args)
}

func (o *ScenariosCreateOptions) Run(ctx context.Context, args []string) error {
	config, err := o.Config()
	if err != nil {
		return err
	}
	projectID, err := resolveProjectId(o.ProjectId, config)
	if err != nil {
		return err
	}

	payload := map[string]any{
		"project_id": projectID,
		"name":       o.Name,
	}
	if o.Description != "" {
		payload["description"] = o.Description
	}
	// Fields from --file win over flags.
	if o.File != "" {
		filePayload, err := loadPayloadFile(o.File)
		if err != nil {
			return err
		}
		for key, value := range filePayload {
			payload[key] = value
		}
	}

	c, err := o.Client()
	if err != nil {
		return err
	}

	if err := o.applyLanguage(ctx, c, payload); err != nil {
		return err
	}

	response, err := c.CreateScenario(ctx, payload)
	if err != nil {
		return err
	}

	scenarioID, _ := response["scenario_id"].(string)
	if scenarioID == "" {
		scenarioID, _ = response["id"].(string)
	}
	name, _ := response["name"].(string)
	if name == "" {
		name, _ = payload["name"].(string)
	}

	fmt.Printf("✓ Created scenario: %s\n", name)
	if scenarioID == "" {
		return nil
	}
	fmt.Printf("  id: %s\n", scenarioID)

	config.Context.ScenarioId = scenarioID
	if err := config.Persist(o.ConfigFilePath); err != nil {
		return fmt.Errorf("persisting config: %w", err)
	}
	fmt.Printf("✓ Selected scenario: %s\n", scenarioID)
	return nil
}

// applyLanguage fills payload["config_snapshot"]["language"]. A language
// already present in the snapshot wins over the --language flag, which wins
// over the project default. The final fallback is "en".
func (o *ScenariosCreateOptions) applyLanguage(ctx context.Context, c scenarioProjectGetter, payload map[string]any) error {
	snapshot := map[string]any{}
	if existing, ok := payload["config_snapshot"].(map[string]any); ok {
		snapshot = existing
	}

	language := ""
	if raw, ok := snapshot["language"].(string); ok {
		language = normalizeLanguageTag(raw)
	}
	if language == "" {
		language = normalizeLanguageTag(o.Language)
	}
	if language == "" {
		if effectiveProject, ok := payload["project_id"].(string); ok && effectiveProject != "" {
			project, err := c.GetProject(ctx, effectiveProject)
			if err != nil {
				return err
			}
			if project.Settings != nil {
				language = normalizeLanguageTag(project.Settings.DefaultLanguage)
			}
		}
	}
	if language == "" {
		language = defaultLanguage
	}

	snapshot["language"] = language
	payload["config_snapshot"] = snapshot
	return nil
}

type ScenariosSelectOptions struct {
	GlobalOptions
}

func NewCmdScenariosSelect() *cobra.Command {
	o := &ScenariosSelectOptions{GlobalOptions: DefaultGlobalOptions()}
	cmd := &cobra.Command{
		Use:   "select SCENARIO_ID",
		Short: "Select the current scenario",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.Run(cmd.Context(), args)
		},
		SilenceUsage: true,
	}
	o.Bind(cmd.Flags())
	return cmd
}

func (o *ScenariosSelectOptions) Run(ctx context.Context, args []string) error {
	config, err := o.Config()
	if err != nil {
		return err
	}

	config.Context.ScenarioId = args[0]
	if err := config.Persist(o.ConfigFilePath); err != nil {
		return fmt.Errorf("persisting config: %w", err)
	}

	fmt.Printf("✓ Selected scenario: %s\n", args[0])
	return nil
}
