package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/prefchain/internal/contenttype"
	"github.com/dshills/prefchain/internal/genericeditor"
)

// resolution is the result of resolving the preferences of one file.
type resolution struct {
	File         string            `json:"file" yaml:"file"`
	ContentTypes []string          `json:"contentTypes" yaml:"contentTypes"`
	Providers    []providerInfo    `json:"providers" yaml:"providers"`
	CustomStores int               `json:"customStores" yaml:"customStores"`
	Preferences  map[string]string `json:"preferences" yaml:"preferences"`
	Problems     []string          `json:"problems,omitempty" yaml:"problems,omitempty"`
}

func newResolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve <file>",
		Short: "Show the preferences that apply to a file",
		Long: `Resolve opens file in an editor and prints its content types, the
providers that apply to it and the resulting preference values.

A file that does not exist is resolved as an empty document.

Example usage:
  prefchain resolve nginx.conf
  prefchain resolve main.go --key tabWidth --key spacesForTabs
  prefchain resolve main.go --output json`,
		Args: cobra.ExactArgs(1),
		RunE: runResolve,
	}
	cmd.Flags().StringSliceP("key", "k", nil, "only print these preferences")
	return cmd
}

func runResolve(cmd *cobra.Command, args []string) error {
	path := args[0]
	content, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	keys, _ := cmd.Flags().GetStringSlice("key")

	p, _, err := openPlugin(cmd)
	if err != nil {
		return err
	}
	defer p.Close()

	editor := p.Open(path, content)
	defer editor.Close()

	res := resolve(p, editor, keys)
	return writeOutput(cmd, res, func(w io.Writer) error {
		return writeResolution(w, res)
	})
}

func resolve(p *genericeditor.Plugin, editor *genericeditor.TextEditor, keys []string) *resolution {
	store := editor.PreferenceStore()
	types := editor.ContentTypes()

	res := &resolution{
		File:         editor.Resource().Path,
		ContentTypes: contenttype.IDs(types),
		Providers:    []providerInfo{},
		CustomStores: len(store.CustomStores()),
		Preferences:  make(map[string]string),
	}

	for _, d := range p.PreferenceStoreRegistry().Matching(editor.Viewer(), editor, types) {
		res.Providers = append(res.Providers, describe(d))
	}

	if len(keys) == 0 {
		keys = store.Keys()
	}
	for _, k := range keys {
		if store.Contains(k) {
			res.Preferences[k] = store.String(k)
		}
	}
	for _, err := range p.Schema().Check(store, keys) {
		res.Problems = append(res.Problems, err.Error())
	}
	return res
}

func writeResolution(w io.Writer, res *resolution) error {
	fmt.Fprintf(w, "file:          %s\n", res.File)
	fmt.Fprintf(w, "content types: %s\n", strings.Join(res.ContentTypes, " > "))

	if len(res.Providers) == 0 {
		fmt.Fprintln(w, "providers:     none")
	} else {
		fmt.Fprintln(w, "providers:")
		for _, pi := range res.Providers {
			fmt.Fprintf(w, "  %s (%s for %s)\n", pi.Contributor, pi.Class, pi.ContentType)
		}
	}

	fmt.Fprintln(w, "preferences:")
	for _, k := range sortedKeys(res.Preferences) {
		fmt.Fprintf(w, "  %s = %s\n", k, res.Preferences[k])
	}

	if len(res.Problems) > 0 {
		fmt.Fprintln(w, "problems:")
		for _, p := range res.Problems {
			fmt.Fprintf(w, "  %s\n", p)
		}
	}
	return nil
}

func describe(d *genericeditor.ProviderDescriptor) providerInfo {
	pi := providerInfo{
		Contributor: d.Element.Contributor(),
		Class:       d.Element.Attribute(genericeditor.ClassAttribute),
		ContentType: d.TargetContentType,
		EnabledWhen: d.EnabledWhen(),
	}
	if ext := d.Element.Extension(); ext != nil {
		pi.Source = ext.Source
	}
	return pi
}
