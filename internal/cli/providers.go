package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func newProvidersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List contributed preference store providers",
		Long: `Providers lists every contributed preference store provider in
contribution order, with its factory class, target content type and
enabledWhen expression.

Contributions that fail to load are reported on the log.`,
		Args: cobra.NoArgs,
		RunE: runProviders,
	}
}

func runProviders(cmd *cobra.Command, _ []string) error {
	p, _, err := openPlugin(cmd)
	if err != nil {
		return err
	}
	defer p.Close()

	infos := []providerInfo{}
	for _, d := range p.PreferenceStoreRegistry().Descriptors() {
		infos = append(infos, describe(d))
	}

	return writeOutput(cmd, infos, func(w io.Writer) error {
		if len(infos) == 0 {
			fmt.Fprintf(w, "no providers contributed (contributions: %s)\n", p.ContributionsDir())
			return nil
		}
		for _, pi := range infos {
			fmt.Fprintf(w, "%-24s %-6s %s\n", pi.Contributor, pi.Class, pi.ContentType)
			if pi.EnabledWhen != "" {
				fmt.Fprintf(w, "%-24s enabledWhen: %s\n", "", pi.EnabledWhen)
			}
			if pi.Source != "" {
				fmt.Fprintf(w, "%-24s source: %s\n", "", pi.Source)
			}
		}
		return nil
	})
}
