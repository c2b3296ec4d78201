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

func NewCmdProjects() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "Manage FluxLoop web projects",
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
			os.Exit(1)
		},
	}
	cmd.AddCommand(NewCmdProjectsList())
	cmd.AddCommand(NewCmdProjectsCreate())
	cmd.AddCommand(NewCmdProjectsSelect())
	return cmd
}

type ProjectsListOptions struct {
	GlobalOptions
	Output string
}

func DefaultProjectsListOptions() *ProjectsListOptions {
	return &ProjectsListOptions{
		GlobalOptions: DefaultGlobalOptions(),
	}
}

func NewCmdProjectsList() *cobra.Command {
	o := DefaultProjectsListOptions()
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List web projects",
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

func (o *ProjectsListOptions) Bind(fs *pflag.FlagSet) {
	o.GlobalOptions.Bind(fs)
	fs.StringVarP(&o.Output, "output", "o", o.Output, fmt.Sprintf("Output format. One of: (%s).", strings.Join(legalOutputTypes, ", ")))
}

func (o *ProjectsListOptions) Validate(args []string) error {
	if err := o.GlobalOptions.Validate(args); err != nil {
		return err
	}
	if len(o.Output) > 0 && !funk.Contains(legalOutputTypes, o.Output) {
		return fmt.Errorf("output format must be one of %s", strings.Join(legalOutputTypes, ", "))
	}
	return nil
}

func (o *ProjectsListOptions) Run(ctx context.Context, args []string) error {
	c, err := o.Client()
	if err != nil {
		return err
	}
	projects, err := c.ListProjects(ctx)
	if err != nil {
		return err
	}

	switch o.Output {
	case jsonFormat:
		data, err := json.MarshalIndent(projects, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding projects: %w", err)
		}
		fmt.Println(string(data))
	case yamlFormat:
		data, err := yaml.Marshal(projects)
		if err != nil {
			return fmt.Errorf("encoding projects: %w", err)
		}
		fmt.Print(string(data))
	default:
		w := tabwriter.NewWriter(os.Stdout, 0, 8, 1, '\t', 0)
		fmt.Fprintln(w, "ID\tNAME\tLANGUAGE\tCREATED")
		for _, project := range projects {
			language := ""
			if project.Settings != nil {
				language = project.Settings.DefaultLanguage
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", project.Id, project.Name, language, project.CreatedAt)
		}
		w.Flush()
	}
	return nil
}

type ProjectsCreateOptions struct {
	GlobalOptions

	Name        string
	Description string
	Language    string
}

func DefaultProjectsCreateOptions() *ProjectsCreateOptions {
	return &ProjectsCreateOptions{
		GlobalOptions: DefaultGlobalOptions(),
	}
}

func NewCmdProjectsCreate() *cobra.Command {
	o := DefaultProjectsCreateOptions()
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a web project and select it",
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

func (o *ProjectsCreateOptions) Bind(fs *pflag.FlagSet) {
	o.GlobalOptions.Bind(fs)
	fs.StringVar(&o.Name, "name", o.Name, "Name of the new project")
	fs.StringVar(&o.Description, "description", o.Description, "Description of the new project")
	fs.StringVar(&o.Language, "language", o.Language, "Default language for the project, e.g. en or ko")
}

func (o *ProjectsCreateOptions) Validate(args []string) error {
	return o.GlobalOptions.Validate(args)
}

func (o *ProjectsCreateOptions) Run(ctx context.Context, args []string) error {
	config, err := o.Config()
	if err != nil {
		return err
	}
	c, err := o.Client()
	if err != nil {
		return err
	}

	workspaces, err := c.ListWorkspaces(ctx)
	if err != nil {
		return err
	}
	if len(workspaces) == 0 {
		return fmt.Errorf("no workspaces available for this account")
	}

	request := api.CreateProjectRequest{
		Name:        o.Name,
		Description: o.Description,
		WorkspaceId: workspaces[0].Id,
	}
	if language := normalizeLanguageTag(o.Language); language != "" {
		request.Settings = &api.ProjectSettings{DefaultLanguage: language}
	}

	project, err := c.CreateProject(ctx, request)
	if err != nil {
		return err
	}

	config.Context.ProjectId = project.Id
	config.Context.ScenarioId = ""
	if err := config.Persist(o.ConfigFilePath); err != nil {
		return fmt.Errorf("persisting config: %w", err)
	}

	fmt.Printf("✓ Created project: %s\n", project.Name)
	fmt.Printf("  id: %s\n", project.Id)
	fmt.Printf("✓ Selected project: %s\n", project.Id)
	return nil
}

type ProjectsSelectOptions struct {
	GlobalOptions
}

func NewCmdProjectsSelect() *cobra.Command {
	o := &ProjectsSelectOptions{GlobalOptions: DefaultGlobalOptions()}
	cmd := &cobra.Command{
		Use:   "select PROJECT_ID",
		Short: "Select the current web project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.Run(cmd.Context(), args)
		},
		SilenceUsage: true,
	}
	o.Bind(cmd.Flags())
	return cmd
}

func (o *ProjectsSelectOptions) Run(ctx context.Context, args []string) error {
	projectID := args[0]

	config, err := o.Config()
	if err != nil {
		return err
	}
	c, err := o.Client()
	if err != nil {
		return err
	}

	project, err := c.GetProject(ctx, projectID)
	if err != nil {
		return err
	}

	config.Context.ProjectId = project.Id
	config.Context.ScenarioId = ""
	if err := config.Persist(o.ConfigFilePath); err != nil {
		return fmt.Errorf("persisting config: %w", err)
	}

	if project.Name != "" {
		fmt.Printf("✓ Selected project: %s (%s)\n", project.Id, project.Name)
	} else {
		fmt.Printf("✓ Selected project: %s\n", project.Id)
	}
	return nil
}
