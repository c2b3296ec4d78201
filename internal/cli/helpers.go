package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/thoas/go-funk"
	"sigs.k8s.io/yaml"

	"github.com/fluxloop/fluxloop-cli/internal/client"
)

const (
	jsonFormat  = "json"
	yamlFormat  = "yaml"
	tableFormat = "table"

	defaultLanguage = "en"
)

var (
	legalOutputTypes = []string{jsonFormat, yamlFormat}
	legalFormats     = []string{tableFormat, jsonFormat}
)

func validateOutputType(output string) error {
	if len(output) > 0 && !funk.Contains(legalOutputTypes, output) {
		return fmt.Errorf("output format must be one of %s", strings.Join(legalOutputTypes, ", "))
	}
	return nil
}

func normalizeFormat(format string) (string, error) {
	value := strings.ToLower(strings.TrimSpace(format))
	if value == "" {
		return tableFormat, nil
	}
	if !funk.Contains(legalFormats, value) {
		return "", fmt.Errorf("--format must be one of: %s", strings.Join(legalFormats, ", "))
	}
	return value, nil
}

// normalizeLanguageTag reduces a language code to its lowercase primary
// subtag: "EN-US" -> "en", "ko_KR" -> "ko".
func normalizeLanguageTag(value string) string {
	raw := strings.ToLower(strings.TrimSpace(value))
	if raw == "" {
		return ""
	}
	token, _, _ := strings.Cut(raw, "-")
	token, _, _ = strings.Cut(token, "_")
	return strings.TrimSpace(token)
}

func humanSize(fileSize int64) string {
	switch {
	case fileSize <= 0:
		return "-"
	case fileSize >= 1024*1024:
		return fmt.Sprintf("%.1f MB", float64(fileSize)/(1024*1024))
	case fileSize >= 1024:
		return fmt.Sprintf("%.1f KB", float64(fileSize)/1024)
	default:
		return fmt.Sprintf("%d B", fileSize)
	}
}

func truncateId(id string) string {
	if len(id) > 11 {
		return id[:8] + "..."
	}
	return id
}

func truncateText(text string, max int) string {
	if len(text) > max {
		return text[:max] + "..."
	}
	return text
}

// loadPayloadFile reads a YAML or JSON request payload into a generic map.
func loadPayloadFile(path string) (map[string]any, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading payload file: %w", err)
	}
	payload := map[string]any{}
	if err := yaml.Unmarshal(content, &payload); err != nil {
		return nil, fmt.Errorf("decoding payload file: %w", err)
	}
	return payload, nil
}

func validateFlags(cmd *cobra.Command, requiredFlags ...string) error {
	for _, flag := range requiredFlags {
		if err := cmd.MarkFlagRequired(flag); err != nil {
			return err
		}
	}

	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if funk.Contains(requiredFlags, f.Name) {
			f.Usage = fmt.Sprintf("%s (required)", f.Usage)
		}
	})

	return nil
}

func resolveProjectId(explicit string, config *client.Config) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if config != nil && config.Context.ProjectId != "" {
		return config.Context.ProjectId, nil
	}
	return "", fmt.Errorf("No Web Project selected. Select one with: fluxloop projects select <id>")
}

func resolveScenarioId(explicit string, config *client.Config) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if config != nil && config.Context.ScenarioId != "" {
		return config.Context.ScenarioId, nil
	}
	return "", fmt.Errorf("No scenario selected. Select one with: fluxloop scenarios select <id>")
}
