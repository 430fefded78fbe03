package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/prefchain/internal/contenttype"
)

// contentTypeInfo describes one content type.
type contentTypeInfo struct {
	ID             string   `json:"id" yaml:"id"`
	Name           string   `json:"name" yaml:"name"`
	Base           string   `json:"base,omitempty" yaml:"base,omitempty"`
	FileExtensions []string `json:"fileExtensions,omitempty" yaml:"fileExtensions,omitempty"`
	FileNames      []string `json:"fileNames,omitempty" yaml:"fileNames,omitempty"`
	FilePatterns   []string `json:"filePatterns,omitempty" yaml:"filePatterns,omitempty"`
}

func newContentTypesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "content-types [file...]",
		Short: "Show the content type tree or the content types of files",
		Long: `Without arguments, content-types prints the known content type tree:
the built-in categories and every contributed content type.

With file arguments it prints the content type set detected for each file,
most specific first.`,
		RunE: runContentTypes,
	}
	return cmd
}

func runContentTypes(cmd *cobra.Command, args []string) error {
	p, _, err := openPlugin(cmd)
	if err != nil {
		return err
	}
	defer p.Close()

	types := p.ContentTypes()

	if len(args) > 0 {
		detected := make(map[string][]string, len(args))
		for _, name := range args {
			// Unreadable files are classified by name alone.
			content, _ := os.ReadFile(name)
			detected[name] = contenttype.IDs(types.SetFor(name, content))
		}
		return writeOutput(cmd, detected, func(w io.Writer) error {
			for _, name := range args {
				fmt.Fprintf(w, "%s: %s\n", name, strings.Join(detected[name], " > "))
			}
			return nil
		})
	}

	all := types.All()
	infos := make([]contentTypeInfo, 0, len(all))
	for _, ct := range all {
		info := contentTypeInfo{
			ID:             ct.ID,
			Name:           ct.Name,
			FileExtensions: ct.FileExtensions,
			FileNames:      ct.FileNames,
			FilePatterns:   ct.FilePatterns,
		}
		if ct.Base != nil {
			info.Base = ct.Base.ID
		}
		infos = append(infos, info)
	}

	return writeOutput(cmd, infos, func(w io.Writer) error {
		writeTree(w, all, nil, 0)
		return nil
	})
}

// writeTree writes the children of base, indented by depth.
func writeTree(w io.Writer, all []*contenttype.ContentType, base *contenttype.ContentType, depth int) {
	for _, ct := range all {
		if ct.Base != base {
			continue
		}
		fmt.Fprintf(w, "%s%s", strings.Repeat("  ", depth), ct.ID)
		if ct.Name != "" && ct.Name != ct.ID {
			fmt.Fprintf(w, " (%s)", ct.Name)
		}
		var matches []string
		for _, ext := range ct.FileExtensions {
			matches = append(matches, "*."+ext)
		}
		matches = append(matches, ct.FileNames...)
		matches = append(matches, ct.FilePatterns...)
		if len(matches) > 0 {
			fmt.Fprintf(w, " [%s]", strings.Join(matches, ", "))
		}
		fmt.Fprintln(w)
		writeTree(w, all, ct, depth+1)
	}
}
