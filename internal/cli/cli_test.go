package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

const confManifest = `
contributor = "conf-support"

[[extension]]
point = "contentTypes"

  [[extension.content-type]]
  id = "conf"
  name = "Configuration"
  base-type = "text.data"
  file-extensions = ["conf"]

[[extension]]
point = "genericeditor.preferenceStoreProviders"

  [[extension.provider]]
  class = "file"
  contentType = "conf"
  path = "prefs/conf.toml"

  [[extension.provider]]
  class = "lua"
  contentType = "text.data"
  script = "data.lua"
  enabledWhen = "viewer.lines > 1"
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// setup returns the config dir and a conf document.
func setup(t *testing.T) (string, string) {
	t.Helper()

	root := t.TempDir()
	config := filepath.Join(root, "config")
	contrib := filepath.Join(config, ContributionsSubdir)
	writeFile(t, filepath.Join(contrib, "conf.toml"), confManifest)
	writeFile(t, filepath.Join(contrib, "prefs", "conf.toml"), "tabWidth = 2\n")
	writeFile(t, filepath.Join(contrib, "data.lua"), "return { spacesForTabs = true }\n")

	doc := filepath.Join(root, "app.conf")
	writeFile(t, doc, "a = 1\nb = 2\n")
	return config, doc
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out, errOut bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestResolve_Text(t *testing.T) {
	config, doc := setup(t)

	out, err := run(t, "resolve", doc, "--config", config)
	if err != nil {
		t.Fatalf("resolve error = %v", err)
	}

	for _, want := range []string{
		"content types: conf > text.data > text",
		"conf-support (file for conf)",
		"conf-support (lua for text.data)",
		"tabWidth = 2",
		"spacesForTabs = true",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestResolve_JSON(t *testing.T) {
	config, doc := setup(t)

	out, err := run(t, "resolve", doc, "--config", config, "-o", "json", "--key", "tabWidth")
	if err != nil {
		t.Fatalf("resolve error = %v", err)
	}

	var res resolution
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if res.CustomStores != 2 {
		t.Errorf("customStores = %d, want 2", res.CustomStores)
	}
	if len(res.Providers) != 2 || res.Providers[0].ContentType != "conf" {
		t.Errorf("providers = %+v, want conf first", res.Providers)
	}
	if len(res.Preferences) != 1 || res.Preferences["tabWidth"] != "2" {
		t.Errorf("preferences = %v, want only tabWidth=2", res.Preferences)
	}
}

func TestResolve_MissingFileIsEmptyDocument(t *testing.T) {
	config, doc := setup(t)
	missing := filepath.Join(filepath.Dir(doc), "missing.conf")

	out, err := run(t, "resolve", missing, "--config", config, "-o", "json")
	if err != nil {
		t.Fatalf("resolve error = %v", err)
	}

	var res resolution
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	// The lua provider needs more than one line.
	if len(res.Providers) != 1 {
		t.Errorf("got %d providers, want 1", len(res.Providers))
	}
	if res.Preferences["spacesForTabs"] == "true" {
		t.Error("lua provider applied to an empty document")
	}
}

func TestResolve_RequiresFile(t *testing.T) {
	config, _ := setup(t)

	if _, err := run(t, "resolve", "--config", config); err == nil {
		t.Error("resolve without a file should fail")
	}
}

func TestProviders_YAML(t *testing.T) {
	config, _ := setup(t)

	out, err := run(t, "providers", "--config", config, "--output", "yaml")
	if err != nil {
		t.Fatalf("providers error = %v", err)
	}

	var infos []providerInfo
	if err := yaml.Unmarshal([]byte(out), &infos); err != nil {
		t.Fatalf("invalid YAML: %v\n%s", err, out)
	}
	if len(infos) != 2 {
		t.Fatalf("got %d providers, want 2", len(infos))
	}
	if infos[0].Class != "file" || infos[1].Class != "lua" {
		t.Errorf("classes = %s, %s; want contribution order file, lua", infos[0].Class, infos[1].Class)
	}
	if infos[1].EnabledWhen != "viewer.lines > 1" {
		t.Errorf("enabledWhen = %q", infos[1].EnabledWhen)
	}
	if !strings.HasSuffix(infos[0].Source, "conf.toml") {
		t.Errorf("source = %q, want the manifest path", infos[0].Source)
	}
}

func TestProviders_None(t *testing.T) {
	config := t.TempDir()

	out, err := run(t, "providers", "--config", config)
	if err != nil {
		t.Fatalf("providers error = %v", err)
	}
	if !strings.Contains(out, "no providers contributed") {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestContentTypes_Tree(t *testing.T) {
	config, _ := setup(t)

	out, err := run(t, "content-types", "--config", config)
	if err != nil {
		t.Fatalf("content-types error = %v", err)
	}

	if !strings.HasPrefix(out, "text (Text)") {
		t.Errorf("tree should start at the text root:\n%s", out)
	}
	if !strings.Contains(out, "\n  text.data (Data)\n    conf (Configuration) [*.conf]\n") {
		t.Errorf("conf not nested under text.data:\n%s", out)
	}
}

func TestContentTypes_Files(t *testing.T) {
	config, doc := setup(t)

	out, err := run(t, "content-types", "--config", config, doc)
	if err != nil {
		t.Fatalf("content-types error = %v", err)
	}
	if want := doc + ": conf > text.data > text"; !strings.Contains(out, want) {
		t.Errorf("output = %q, want %q", out, want)
	}
}

func TestUnknownOutputFormat(t *testing.T) {
	config, _ := setup(t)

	if _, err := run(t, "providers", "--config", config, "-o", "xml"); err == nil {
		t.Error("unknown output format should fail")
	}
}

func TestResolve_ReportsInvalidValues(t *testing.T) {
	config, doc := setup(t)
	writeFile(t, filepath.Join(config, ContributionsSubdir, "prefs", "conf.toml"), "tabWidth = 40\n")

	out, err := run(t, "resolve", doc, "--config", config)
	if err != nil {
		t.Fatalf("resolve error = %v", err)
	}
	if !strings.Contains(out, "problems:") || !strings.Contains(out, "preference tabWidth: invalid value 40") {
		t.Errorf("invalid tabWidth not reported:\n%s", out)
	}
}

func TestPreferences_Text(t *testing.T) {
	config, _ := setup(t)

	out, err := run(t, "preferences", "--config", config)
	if err != nil {
		t.Fatalf("preferences error = %v", err)
	}
	for _, want := range []string{"tabWidth", "[1..16]", "matchingBracketsColor", "color"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
