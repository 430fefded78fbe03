package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dshills/prefchain/internal/preference"
)

// definitionInfo describes one built-in preference.
type definitionInfo struct {
	Name        string   `json:"name" yaml:"name"`
	Type        string   `json:"type" yaml:"type"`
	Default     any      `json:"default" yaml:"default"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Enum        []string `json:"enum,omitempty" yaml:"enum,omitempty"`
	Minimum     *float64 `json:"minimum,omitempty" yaml:"minimum,omitempty"`
	Maximum     *float64 `json:"maximum,omitempty" yaml:"maximum,omitempty"`
}

func newPreferencesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "preferences",
		Short: "List the built-in editor preferences",
		Long: `Preferences lists the generic editor and text editor preferences with
their type, default value and allowed range. Providers may set these and
any other preference.`,
		Args: cobra.NoArgs,
		RunE: runPreferences,
	}
}

func runPreferences(cmd *cobra.Command, _ []string) error {
	p, _, err := openPlugin(cmd)
	if err != nil {
		return err
	}
	defer p.Close()

	defs := p.Schema().All()
	infos := make([]definitionInfo, 0, len(defs))
	for _, d := range defs {
		infos = append(infos, definitionInfo{
			Name:        d.Name,
			Type:        d.Type.String(),
			Default:     d.Default,
			Description: d.Description,
			Enum:        d.Enum,
			Minimum:     d.Minimum,
			Maximum:     d.Maximum,
		})
	}

	return writeOutput(cmd, infos, func(w io.Writer) error {
		for _, d := range defs {
			fmt.Fprintf(w, "%-32s %-8s %-12v %s%s\n", d.Name, d.Type, d.Default, d.Description, bounds(d))
		}
		return nil
	})
}

func bounds(d *preference.Definition) string {
	switch {
	case d.Minimum != nil && d.Maximum != nil:
		return fmt.Sprintf(" [%v..%v]", *d.Minimum, *d.Maximum)
	case d.Minimum != nil:
		return fmt.Sprintf(" [>= %v]", *d.Minimum)
	case d.Maximum != nil:
		return fmt.Sprintf(" [<= %v]", *d.Maximum)
	}
	return ""
}
