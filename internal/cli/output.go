package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// providerInfo describes one provider contribution.
type providerInfo struct {
	Contributor string `json:"contributor" yaml:"contributor"`
	Class       string `json:"class" yaml:"class"`
	ContentType string `json:"contentType" yaml:"contentType"`
	EnabledWhen string `json:"enabledWhen,omitempty" yaml:"enabledWhen,omitempty"`
	Source      string `json:"source,omitempty" yaml:"source,omitempty"`
}

// writeOutput writes v in the format selected by --output. Text output is
// produced by text.
func writeOutput(cmd *cobra.Command, v any, text func(w io.Writer) error) error {
	format, _ := cmd.Flags().GetString("output")
	w := cmd.OutOrStdout()

	switch format {
	case FormatText, "":
		return text(w)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q (want text, json or yaml)", format)
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
