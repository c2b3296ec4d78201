package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"sigs.k8s.io/yaml"

	"github.com/fluxloop/fluxloop-cli/internal/client"
	"github.com/fluxloop/fluxloop-cli/internal/config"
)

func NewCmdPersonas() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "personas",
		Short: "Manage test personas",
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
			os.Exit(1)
		},
	}
	cmd.AddCommand(NewCmdPersonasSuggest())
	cmd.AddCommand(NewCmdPersonasList())
	cmd.AddCommand(NewCmdPersonasCreate())
	return cmd
}

type PersonasSuggestOptions struct {
	GlobalOptions

	ScenarioId  string
	ProjectId   string
	Count       int
	Language    string
	StoriesFile string
	Stories     string
	File        string
	Timeout     int
}

func DefaultPersonasSuggestOptions() *PersonasSuggestOptions {
	return &PersonasSuggestOptions{
		GlobalOptions: DefaultGlobalOptions(),
		Count:         3,
	}
}

func NewCmdPersonasSuggest() *cobra.Command {
	o := DefaultPersonasSuggestOptions()
	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "Get AI-suggested personas for a scenario",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.Validate(args); err != nil {
				return err
			}
			return o.Run(cmd.Context(), args)
		},
		SilenceUsage: true,
	}
	o.Bind(cmd.Flags())
	if err := validateFlags(cmd, "scenario-id"); err != nil {
		panic(err)
	}

	return cmd
}

func (o *PersonasSuggestOptions) Bind(fs *pflag.FlagSet) {
	o.GlobalOptions.Bind(fs)
	fs.StringVar(&o.ScenarioId, "scenario-id", o.ScenarioId, "Scenario ID for persona suggestions")
	fs.StringVar(&o.ProjectId, "project-id", o.ProjectId, "Project ID (defaults to current context)")
	fs.IntVar(&o.Count, "count", o.Count, "Number of personas to suggest")
	fs.StringVar(&o.Language, "language", o.Language, "Preferred language code for casting (e.g., ko, en, ja)")
	fs.StringVar(&o.StoriesFile, "stories-file", o.StoriesFile, "Path to JSON/YAML stories for cast-only mode, a list or an object with a 'stories' list")
	fs.StringVar(&o.Stories, "stories", o.Stories, "Inline JSON stories for cast-only mode, a list or an object with a 'stories' list")
	fs.StringVarP(&o.File, "file", "f", o.File, "Load payload from YAML or JSON file")
	fs.IntVar(&o.Timeout, "timeout", o.Timeout, "Request timeout in seconds (default: 120, or FLUXLOOP_PERSONAS_SUGGEST_TIMEOUT env)")
}

func (o *PersonasSuggestOptions) Validate(args []string) error {
	return o.GlobalOptions.Validate(args)
}

func (o *PersonasSuggestOptions) Run(ctx context.Context, args []string) error {
	clientConfig, err := o.Config()
	if err != nil {
		return err
	}
	projectID, err := resolveProjectId(o.ProjectId, clientConfig)
	if err != nil {
		return err
	}

	payload := map[string]any{
		"project_id":  projectID,
		"scenario_id": o.ScenarioId,
		"count":       o.Count,
	}
	if language := normalizeLanguageTag(o.Language); language != "" {
		payload["language"] = language
	}
	if o.File != "" {
		fileData, err := loadPayloadFile(o.File)
		if err != nil {
			return err
		}
		// Fields from --file win over flags.
		for key, value := range fileData {
			payload[key] = value
		}
	}
	// File stories pass through as given, inline stories get defaults
	// filled in for every field the casting engine requires.
	if o.StoriesFile != "" {
		stories, err := loadStoriesFile(o.StoriesFile)
		if err != nil {
			return err
		}
		payload["stories"] = stories
		fmt.Printf("Using external stories (%d) from %s\n", len(stories), o.StoriesFile)
	}
	if o.Stories != "" {
		stories, err := parseInlineStories(o.Stories)
		if err != nil {
			return err
		}
		payload["stories"] = stories
		fmt.Printf("Using inline stories (%d) from --stories\n", len(stories))
	}

	timeout := time.Duration(o.Timeout) * time.Second
	if o.Timeout <= 0 {
		timeout = 120 * time.Second
		if env, err := config.New(); err == nil {
			timeout = env.PersonasSuggestTimeout()
		}
	}
	if timeout > 60*time.Second {
		fmt.Printf("Timeout: %.0fs\n", timeout.Seconds())
	}

	c, err := o.ClientWithTimeout(timeout)
	if err != nil {
		return err
	}

	spinner := NewStatusSpinner("Suggesting personas...")
	suggestion, err := c.SuggestPersonas(ctx, payload)
	spinner.Stop()
	if err != nil {
		timedOut := errors.Is(err, context.DeadlineExceeded)
		if !timedOut {
			var netErr net.Error
			timedOut = errors.As(err, &netErr) && netErr.Timeout()
		}
		if timedOut {
			fmt.Printf("✗ Persona suggestion timed out after %.0fs.\n", timeout.Seconds())
			fmt.Println("  Options:")
			fmt.Println("    --timeout 180                        (increase timeout)")
			fmt.Println("    FLUXLOOP_PERSONAS_SUGGEST_TIMEOUT=180  (env default)")
			return errors.New("persona suggestion timed out")
		}
		return err
	}

	if len(suggestion.Personas) > 0 {
		fmt.Println()
		fmt.Printf("✓ %d personas suggested\n", len(suggestion.Personas))
		fmt.Println()
		fmt.Println("Suggested personas:")
		w := tabwriter.NewWriter(os.Stdout, 0, 8, 1, '\t', 0)
		fmt.Fprintln(w, "DIFFICULTY\tNAME\tDESCRIPTION")
		for _, persona := range suggestion.Personas {
			name := compactText(persona["name"])
			if name == "" {
				name = "N/A"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", difficultyDisplay(personaDifficulty(persona)), name, personaDescription(persona))
		}
		_ = w.Flush()
	} else {
		fmt.Println("No personas suggested.")
	}

	fmt.Print(renderStoryCasting(suggestion.Stories, suggestion.Castings, suggestion.Strategy))

	cachePath, err := client.SaveCacheFile("personas", fmt.Sprintf("suggested_%s.yaml", o.ScenarioId), map[string]any{
		"persona_ids": suggestion.PersonaIDs,
		"personas":    suggestion.Personas,
		"stories":     suggestion.Stories,
		"castings":    suggestion.Castings,
	})
	if err != nil {
		return err
	}
	fmt.Printf("\nSaved to: %s\n", cachePath)

	if len(suggestion.PersonaIDs) > 0 {
		fmt.Printf("\nUse in synthesis: fluxloop inputs synthesize --scenario-id %s --persona-ids %s\n",
			o.ScenarioId, strings.Join(suggestion.PersonaIDs, ","))
	}
	return nil
}

func compactText(value any) string {
	if text, ok := value.(string); ok {
		return strings.TrimSpace(text)
	}
	return ""
}

func coerceStories(raw any, source string) ([]map[string]any, error) {
	candidate := raw
	if obj, ok := raw.(map[string]any); ok {
		candidate = obj["stories"]
	}
	list, ok := candidate.([]any)
	if !ok {
		return nil, fmt.Errorf("%s must contain a JSON/YAML list of story objects or an object with a 'stories' list", source)
	}
	stories := []map[string]any{}
	for _, entry := range list {
		if story, ok := entry.(map[string]any); ok {
			stories = append(stories, story)
		}
	}
	if len(stories) == 0 {
		return nil, fmt.Errorf("%s does not contain any valid story object", source)
	}
	return stories, nil
}

// normalizeInlineStory fills the fields the casting engine requires with
// sensible defaults so a bare {"title": ...} story is a complete request.
func normalizeInlineStory(raw map[string]any, index int) map[string]any {
	story := map[string]any{}
	for key, value := range raw {
		story[key] = value
	}

	storyID := compactText(story["id"])
	if storyID == "" {
		storyID = fmt.Sprintf("story_%d", index+1)
	}
	title := compactText(story["title"])
	narrative := compactText(story["narrative"])
	testFocus := compactText(story["testFocus"])
	castingQuery := compactText(story["castingQuery"])
	if title == "" {
		switch {
		case narrative != "":
			title = narrative
		case testFocus != "":
			title = testFocus
		case castingQuery != "":
			title = castingQuery
		default:
			title = fmt.Sprintf("Story %d", index+1)
		}
	}
	if narrative == "" {
		narrative = title + " context and expected user behavior."
	}
	if testFocus == "" {
		testFocus = "Validate behavior and recovery flow in a realistic scenario."
	}

	profile, _ := story["protagonistProfile"].(map[string]any)
	keyTraits := []string{}
	if rawTraits, ok := profile["keyTraits"].([]any); ok {
		for _, rawTrait := range rawTraits {
			if trait, ok := rawTrait.(string); ok && strings.TrimSpace(trait) != "" {
				keyTraits = append(keyTraits, strings.TrimSpace(trait))
			}
		}
	}
	description := compactText(profile["description"])
	if description == "" {
		description = "Representative end user in this scenario."
	}
	idealType := compactText(profile["idealType"])
	if idealType == "" {
		idealType = "general user"
	}
	if castingQuery == "" {
		parts := []string{}
		for _, part := range []string{title, narrative, testFocus} {
			if part != "" {
				parts = append(parts, part)
			}
		}
		castingQuery = strings.TrimSpace(strings.Join(parts, " "))
	}

	story["id"] = storyID
	story["title"] = title
	story["narrative"] = narrative
	story["testFocus"] = testFocus
	story["protagonistProfile"] = map[string]any{
		"description": description,
		"keyTraits":   keyTraits,
		"idealType":   idealType,
	}
	story["castingQuery"] = castingQuery
	return story
}

// storyEntry is the minimal shape the casting engine requires of a story
// taken from a file. Inline stories get their title backfilled instead.
type storyEntry struct {
	Title string `validate:"required"`
}

func validateStories(stories []map[string]any, source string) error {
	v := validator.New()
	for index, story := range stories {
		entry := storyEntry{Title: compactText(story["title"])}
		if err := v.Struct(entry); err != nil {
			return fmt.Errorf("%s: story %d is missing a title", source, index+1)
		}
	}
	return nil
}

func loadStoriesFile(path string) ([]map[string]any, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("stories file not found: %s", path)
		}
		return nil, err
	}

	var parsed any
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(content, &parsed); err != nil {
			return nil, fmt.Errorf("invalid YAML in stories file: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(content, &parsed); err != nil {
			return nil, fmt.Errorf("invalid JSON in stories file: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported stories file format: %s. Use .yaml, .yml, or .json", ext)
	}

	stories, err := coerceStories(parsed, path)
	if err != nil {
		return nil, err
	}
	if err := validateStories(stories, path); err != nil {
		return nil, err
	}
	return stories, nil
}

func parseInlineStories(raw string) ([]map[string]any, error) {
	var parsed any
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("--stories must be valid JSON: %w", err)
	}

	candidate := parsed
	if obj, ok := parsed.(map[string]any); ok {
		candidate = obj["stories"]
	}
	list, ok := candidate.([]any)
	if !ok {
		return nil, errors.New("--stories must be a JSON list or an object with a 'stories' list")
	}

	normalized := []map[string]any{}
	for index, entry := range list {
		switch item := entry.(type) {
		case string:
			if strings.TrimSpace(item) != "" {
				normalized = append(normalized, normalizeInlineStory(map[string]any{"title": strings.TrimSpace(item)}, index))
			}
		case map[string]any:
			normalized = append(normalized, normalizeInlineStory(item, index))
		}
	}
	if len(normalized) == 0 {
		return nil, errors.New("--stories does not contain any valid story input")
	}
	return normalized, nil
}

func coerceScore(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case string:
		score, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, false
		}
		return score, true
	}
	return 0, false
}

// renderStoryCasting reports per story how casting went: the matched
// persona reason, or for no_match rows the reason code and the best effort
// candidate the engine considered.
func renderStoryCasting(stories []map[string]any, castings []map[string]any, strategy map[string]any) string {
	if len(castings) == 0 {
		return ""
	}

	storyByID := map[string]map[string]any{}
	for _, story := range stories {
		if storyID := compactText(story["id"]); storyID != "" {
			storyByID[storyID] = story
		}
	}

	fallbackNote := compactText(strategy["fallbackNote"])

	var b strings.Builder
	b.WriteString("\nStory Casting\n")
	if fallbackNote != "" {
		b.WriteString("fallback used\n")
	}

	for _, row := range castings {
		storyID := compactText(row["storyId"])
		story := storyByID[storyID]
		title := compactText(story["title"])
		if title == "" {
			title = storyID
		}
		if title == "" {
			title = "Untitled story"
		}
		testFocus := compactText(story["testFocus"])
		narrative := compactText(story["narrative"])

		status := strings.ToLower(compactText(row["status"]))
		statusDisplay := status
		if statusDisplay == "" {
			statusDisplay = "unknown"
		}

		fmt.Fprintf(&b, "\n%s\n%s\n", title, statusDisplay)
		if testFocus != "" {
			b.WriteString(testFocus + "\n")
		}
		if narrative != "" {
			b.WriteString(narrative + "\n")
		}

		if status == "no_match" {
			reasonCode := strings.ToUpper(compactText(row["reasonCode"]))
			message := compactText(row["message"])
			if message == "" {
				message = compactText(row["detailReason"])
			}
			switch {
			case reasonCode != "" && message != "":
				fmt.Fprintf(&b, "%s: %s\n", reasonCode, message)
			case reasonCode != "":
				b.WriteString(reasonCode + "\n")
			case message != "":
				b.WriteString(message + "\n")
			}

			if bestEffort, ok := row["bestEffort"].(map[string]any); ok {
				personaName := compactText(bestEffort["personaName"])
				if personaName == "" {
					personaName = compactText(bestEffort["personaId"])
				}
				if score, ok := coerceScore(bestEffort["score"]); ok && personaName != "" {
					fmt.Fprintf(&b, "Best-effort: %s (%.4f)\n", personaName, score)
				} else if personaName != "" {
					fmt.Fprintf(&b, "Best-effort: %s\n", personaName)
				}
			}
			continue
		}

		if status == "matched" {
			matchReason := compactText(row["matchReason"])
			if matchReason == "" {
				matchReason = compactText(row["message"])
			}
			if matchReason != "" {
				b.WriteString(matchReason + "\n")
			}
		}
	}

	coverageNote := compactText(strategy["coverageNote"])
	diversityNote := compactText(strategy["diversityNote"])
	if coverageNote != "" || diversityNote != "" || fallbackNote != "" {
		b.WriteString("\n")
		if coverageNote != "" {
			fmt.Fprintf(&b, "Coverage: %s\n", coverageNote)
		}
		if diversityNote != "" {
			fmt.Fprintf(&b, "Diversity: %s\n", diversityNote)
		}
		if fallbackNote != "" {
			fmt.Fprintf(&b, "Fallback: %s\n", fallbackNote)
		}
	}

	return b.String()
}

func difficultyDisplay(difficulty string) string {
	switch difficulty {
	case "easy":
		return "Easy"
	case "medium":
		return "Medium"
	case "hard":
		return "Hard"
	}
	return difficulty
}

func personaDifficulty(persona map[string]any) string {
	attrs, _ := persona["attributes"].(map[string]any)
	if difficulty := compactText(attrs["difficulty"]); difficulty != "" {
		return difficulty
	}
	if difficulty := compactText(persona["difficulty"]); difficulty != "" {
		return difficulty
	}
	return "unknown"
}

func personaDescription(persona map[string]any) string {
	attrs, _ := persona["attributes"].(map[string]any)
	if description := compactText(attrs["character_summary"]); description != "" {
		return description
	}
	if description := compactText(persona["description"]); description != "" {
		return description
	}
	return "N/A"
}

type PersonasListOptions struct {
	GlobalOptions

	ScenarioId string
	Format     string
}

func DefaultPersonasListOptions() *PersonasListOptions {
	return &PersonasListOptions{
		GlobalOptions: DefaultGlobalOptions(),
		Format:        tableFormat,
	}
}

func NewCmdPersonasList() *cobra.Command {
	o := DefaultPersonasListOptions()
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List personas",
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

func (o *PersonasListOptions) Bind(fs *pflag.FlagSet) {
	o.GlobalOptions.Bind(fs)
	fs.StringVar(&o.ScenarioId, "scenario-id", o.ScenarioId, "Filter by scenario ID")
	fs.StringVar(&o.Format, "format", o.Format, "Output format (table, json)")
}

func (o *PersonasListOptions) Validate(args []string) error {
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

func (o *PersonasListOptions) Run(ctx context.Context, args []string) error {
	c, err := o.Client()
	if err != nil {
		return err
	}
	personas, err := c.ListPersonas(ctx, o.ScenarioId)
	if err != nil {
		return err
	}

	if len(personas) == 0 {
		fmt.Println("No personas found.")
		return nil
	}

	if o.Format == jsonFormat {
		data, err := json.MarshalIndent(personas, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding personas: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Println("Personas")
	w := tabwriter.NewWriter(os.Stdout, 0, 8, 1, '\t', 0)
	fmt.Fprintln(w, "ID\tNAME\tDIFFICULTY\tDESCRIPTION")
	for _, persona := range personas {
		id := compactText(persona["id"])
		if id == "" {
			id = "N/A"
		}
		name := compactText(persona["name"])
		if name == "" {
			name = "N/A"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", id, name, difficultyDisplay(personaDifficulty(persona)), truncateText(personaDescription(persona), 50))
	}
	_ = w.Flush()
	return nil
}

type PersonasCreateOptions struct {
	GlobalOptions

	Name        string
	Description string
	File        string
}

func DefaultPersonasCreateOptions() *PersonasCreateOptions {
	return &PersonasCreateOptions{
		GlobalOptions: DefaultGlobalOptions(),
	}
}

func NewCmdPersonasCreate() *cobra.Command {
	o := DefaultPersonasCreateOptions()
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a custom persona",
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

func (o *PersonasCreateOptions) Bind(fs *pflag.FlagSet) {
	o.GlobalOptions.Bind(fs)
	fs.StringVar(&o.Name, "name", o.Name, "Persona name")
	fs.StringVar(&o.Description, "description", o.Description, "Persona description")
	fs.StringVarP(&o.File, "file", "f", o.File, "Load full persona config from YAML or JSON file")
}

func (o *PersonasCreateOptions) Validate(args []string) error {
	return o.GlobalOptions.Validate(args)
}

func (o *PersonasCreateOptions) Run(ctx context.Context, args []string) error {
	payload := map[string]any{"name": o.Name}
	if o.Description != "" {
		payload["description"] = o.Description
	}
	if o.File != "" {
		fileData, err := loadPayloadFile(o.File)
		if err != nil {
			return err
		}
		// Fields from --file win over flags.
		for key, value := range fileData {
			payload[key] = value
		}
	}

	fmt.Println("Creating persona...")
	c, err := o.Client()
	if err != nil {
		return err
	}
	result, err := c.CreatePersona(ctx, payload)
	if err != nil {
		return err
	}

	personaID := compactText(result["persona_id"])
	if personaID == "" {
		personaID = "N/A"
	}
	name := compactText(result["name"])
	if name == "" {
		name = "N/A"
	}
	fmt.Println()
	fmt.Printf("✓ Persona created: %s\n", personaID)
	fmt.Printf("  Name: %s\n", name)
	if description, ok := result["description"]; ok {
		fmt.Printf("  Description: %v\n", description)
	}
	return nil
}
