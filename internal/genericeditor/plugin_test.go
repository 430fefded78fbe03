package genericeditor

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dshills/prefchain/internal/contenttype"
	"github.com/dshills/prefchain/internal/logging"
)

const confManifest = `
contributor = "conf-support"

[[extension]]
point = "contentTypes"

  [[extension.content-type]]
  id = "conf"
  name = "Configuration"
  base-type = "text.data"
  file-extensions = ["conf", "cfg"]

[[extension]]
point = "genericeditor.preferenceStoreProviders"

  [[extension.provider]]
  class = "file"
  contentType = "conf"
  path = "prefs/conf.toml"

    [[extension.provider.default]]
    name = "printMarginColumn"
    value = "120"

  [[extension.provider]]
  class = "lua"
  contentType = "text.data"
  script = "data.lua"
  enabledWhen = "viewer.lines > 1"
`

func newTestPlugin(t *testing.T) (*Plugin, string) {
	t.Helper()

	root := t.TempDir()
	contrib := filepath.Join(root, "contrib")
	writeTestFile(t, filepath.Join(contrib, "conf.toml"), confManifest)
	writeTestFile(t, filepath.Join(contrib, "prefs", "conf.toml"), "tabWidth = 2\n")
	writeTestFile(t, filepath.Join(contrib, "data.lua"), "return { spacesForTabs = true, tabWidth = 6 }\n")

	config := filepath.Join(root, "config")
	writeTestFile(t, filepath.Join(config, TextEditorPreferencesFile), "lineNumberRuler = false\n")

	p, err := New(
		WithConfigDir(config),
		WithContributionsDir(contrib),
		WithLogger(logging.Null()),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(p.Close)
	return p, root
}

func TestPlugin_DefaultStores(t *testing.T) {
	p, _ := newTestPlugin(t)

	text := p.TextEditorPreferences()
	if text.Bool(LineNumberRuler) {
		t.Error("lineNumberRuler should be loaded from the config file")
	}
	if text.Int(TabWidth) != 4 {
		t.Errorf("tabWidth = %d, want 4", text.Int(TabWidth))
	}
	if !p.GenericEditorPreferences().Bool(MatchingBrackets) {
		t.Error("matchingBrackets default missing")
	}
	if len(p.DefaultStores()) != 2 {
		t.Errorf("got %d default stores, want 2", len(p.DefaultStores()))
	}
}

func TestPlugin_ContributedContentTypes(t *testing.T) {
	p, _ := newTestPlugin(t)

	ct := p.ContentTypes().ContentType("conf")
	if ct == nil {
		t.Fatal("contributed content type conf not registered")
	}
	if ct.Base.ID != contenttype.Data {
		t.Errorf("conf base = %s, want %s", ct.Base.ID, contenttype.Data)
	}
}

func TestPlugin_OpenResolvesPreferences(t *testing.T) {
	p, _ := newTestPlugin(t)

	e := p.Open("/srv/app.conf", []byte("a = 1\nb = 2\n"))
	defer e.Close()

	got := strings.Join(contenttype.IDs(e.ContentTypes()), ",")
	if got != "conf,text.data,text" {
		t.Fatalf("content types = %s", got)
	}

	store := e.PreferenceStore()
	if store.Int(TabWidth) != 2 {
		t.Errorf("tabWidth = %d, want 2 from the conf file provider", store.Int(TabWidth))
	}
	if store.Int(PrintMarginColumn) != 120 {
		t.Errorf("printMarginColumn = %d, want 120 from the provider defaults", store.Int(PrintMarginColumn))
	}
	if !store.Bool(SpacesForTabs) {
		t.Error("spacesForTabs should come from the lua provider")
	}
	if store.Bool(LineNumberRuler) {
		t.Error("lineNumberRuler should come from the text editor file")
	}
	if len(store.CustomStores()) != 2 {
		t.Errorf("got %d custom stores, want 2", len(store.CustomStores()))
	}
}

func TestPlugin_EnabledWhenUsesViewer(t *testing.T) {
	p, _ := newTestPlugin(t)

	// A one-line document disables the lua provider.
	e := p.Open("/srv/app.conf", []byte("a = 1"))
	defer e.Close()

	if e.PreferenceStore().Bool(SpacesForTabs) {
		t.Error("lua provider applied to a one-line document")
	}
	if len(e.PreferenceStore().CustomStores()) != 1 {
		t.Errorf("got %d custom stores, want 1", len(e.PreferenceStore().CustomStores()))
	}
}

func TestPlugin_UnrelatedFileUsesDefaults(t *testing.T) {
	p, _ := newTestPlugin(t)

	e := p.Open("notes.zzqqxx", []byte("hello world"))
	defer e.Close()

	store := e.PreferenceStore()
	if store.Int(TabWidth) != 4 {
		t.Errorf("tabWidth = %d, want 4", store.Int(TabWidth))
	}
	if len(store.CustomStores()) != 0 {
		t.Errorf("got %d custom stores, want none", len(store.CustomStores()))
	}
}

func TestPlugin_SaveDefaults(t *testing.T) {
	p, root := newTestPlugin(t)

	p.GenericEditorPreferences().SetValue(MatchingBrackets, false)
	if err := p.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	again, err := New(WithConfigDir(filepath.Join(root, "config")))
	if err != nil {
		t.Fatal(err)
	}
	defer again.Close()

	if again.GenericEditorPreferences().Bool(MatchingBrackets) {
		t.Error("saved value not loaded")
	}
}

func TestPlugin_WatchPicksUpNewProviders(t *testing.T) {
	p, root := newTestPlugin(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := p.Watch(ctx); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	registry := p.PreferenceStoreRegistry()
	before := len(registry.Descriptors())

	writeTestFile(t, filepath.Join(root, "contrib", "ini.toml"), `
[[extension]]
point = "genericeditor.preferenceStoreProviders"

  [[extension.provider]]
  class = "file"
  contentType = "ini"
  path = "ini.toml"
`)

	deadline := time.Now().Add(5 * time.Second)
	for len(registry.Descriptors()) != before+1 {
		if time.Now().After(deadline) {
			t.Fatalf("got %d descriptors, want %d", len(registry.Descriptors()), before+1)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestPlugin_BrokenManifestIsLogged(t *testing.T) {
	root := t.TempDir()
	contrib := filepath.Join(root, "contrib")
	writeTestFile(t, filepath.Join(contrib, "broken.toml"), "[[extension]\n")

	var logs bytes.Buffer
	p, err := New(
		WithConfigDir(filepath.Join(root, "config")),
		WithContributionsDir(contrib),
		WithLogger(logging.New(logging.Config{Output: &logs})),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer p.Close()

	if !strings.Contains(logs.String(), "broken.toml") {
		t.Errorf("broken manifest not logged: %q", logs.String())
	}
}

func TestPlugin_SchemaDefaultsAreValid(t *testing.T) {
	p, _ := newTestPlugin(t)

	schema := p.Schema()
	for _, d := range schema.All() {
		if err := d.Validate(d.Default); err != nil {
			t.Errorf("default of %s is invalid: %v", d.Name, err)
		}
	}
	for name := range TextEditorDefaults() {
		if schema.Lookup(name) == nil {
			t.Errorf("text editor default %s has no definition", name)
		}
	}
	if errs := schema.Check(p.TextEditorPreferences(), p.TextEditorPreferences().Keys()); len(errs) != 0 {
		t.Errorf("text editor store has invalid values: %v", errs)
	}
}

func TestPlugin_CloseConcurrentWithRegistryAccess(t *testing.T) {
	p, err := New(WithConfigDir(t.TempDir()), WithLogger(logging.Null()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if p.PreferenceStoreRegistry() == nil {
				t.Error("PreferenceStoreRegistry() = nil")
			}
		}()
	}
	p.Close()
	wg.Wait()

	if p.PreferenceStoreRegistry() != p.PreferenceStoreRegistry() {
		t.Error("PreferenceStoreRegistry() returned different registries")
	}
}
