package genericeditor

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/dshills/prefchain/internal/contenttype"
	"github.com/dshills/prefchain/internal/extension"
	"github.com/dshills/prefchain/internal/logging"
	"github.com/dshills/prefchain/internal/preference"
	"github.com/dshills/prefchain/internal/script"
)

// testProvider returns the store it was created with.
type testProvider struct {
	name  string
	store preference.Store
}

func (p *testProvider) PreferenceStore(Resource) preference.Store {
	return p.store
}

type fakeViewer struct {
	lines int
}

func (v *fakeViewer) LineCount() int {
	return v.lines
}

type fakeEditor struct {
	resource Resource
	types    []*contenttype.ContentType
	viewer   Viewer
}

func (e *fakeEditor) Resource() Resource                       { return e.resource }
func (e *fakeEditor) ContentTypes() []*contenttype.ContentType { return e.types }
func (e *fakeEditor) Viewer() Viewer                           { return e.viewer }

// fixture wires an extension registry with a "test" factory whose
// providers return the store registered under the element's store
// attribute.
type fixture struct {
	t        *testing.T
	types    *contenttype.Manager
	ext      *extension.Registry
	engine   *script.Engine
	stores   map[string]preference.Store
	registry *ProviderRegistry
	logs     *bytes.Buffer
	nextID   int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		t:      t,
		types:  contenttype.NewManager(),
		ext:    extension.NewRegistry(),
		engine: script.New(),
		stores: make(map[string]preference.Store),
		logs:   &bytes.Buffer{},
	}
	if err := f.ext.AddExtensionPoint(PreferenceStoreProvidersPoint, ""); err != nil {
		t.Fatal(err)
	}

	f.ext.RegisterFactory("test", func(elem *extension.Element) (any, error) {
		name := elem.Attribute("store")
		return &testProvider{name: name, store: f.stores[name]}, nil
	})
	f.ext.RegisterFactory("failing", func(*extension.Element) (any, error) {
		return nil, errors.New("cannot create")
	})
	f.ext.RegisterFactory("wrong", func(*extension.Element) (any, error) {
		return "not a provider", nil
	})

	for _, def := range []contenttype.Definition{
		{ID: "conf", BaseID: contenttype.Data, FileExtensions: []string{"conf"}},
		{ID: "conf.nginx", BaseID: "conf", FileNames: []string{"nginx.conf"}},
		{ID: "ini", BaseID: contenttype.Data, FileExtensions: []string{"ini"}},
	} {
		if _, err := f.types.Register(def); err != nil {
			t.Fatal(err)
		}
	}

	logger := logging.New(logging.Config{Level: logging.LevelDebug, Output: f.logs})
	f.registry = NewProviderRegistry(f.ext, f.engine, logger)

	t.Cleanup(func() {
		f.registry.Close()
		f.ext.Close()
		_ = f.engine.Close()
	})
	return f
}

// contribute adds one provider extension and returns its ID.
func (f *fixture) contribute(attrs map[string]string) string {
	f.t.Helper()
	f.nextID++
	id := "ext" + string(rune('a'+f.nextID))
	if _, ok := attrs["class"]; !ok {
		attrs["class"] = "test"
	}
	ext := &extension.Extension{
		ID:          id,
		Point:       PreferenceStoreProvidersPoint,
		Contributor: "contrib-" + id,
		Elements:    []*extension.Element{extension.NewElement("provider", attrs)},
	}
	if err := f.ext.AddExtension(ext); err != nil {
		f.t.Fatal(err)
	}
	return id
}

// provide contributes a provider with its own store for contentType.
func (f *fixture) provide(name, contentType string, values map[string]any) {
	f.t.Helper()
	s := preference.NewMemoryStore()
	for k, v := range values {
		s.SetValue(k, v)
	}
	f.stores[name] = s
	f.contribute(map[string]string{"store": name, "contentType": contentType})
}

func (f *fixture) set(filename string) []*contenttype.ContentType {
	return f.types.SetFor(filename, nil)
}

func providerNames(providers []StoreProvider) []string {
	names := make([]string, len(providers))
	for i, p := range providers {
		names[i] = p.(*testProvider).name
	}
	return names
}

func TestProviderRegistry_FiltersByContentType(t *testing.T) {
	f := newFixture(t)
	f.provide("conf", "conf", nil)
	f.provide("ini", "ini", nil)
	f.provide("text", contenttype.Text, nil)

	got := providerNames(f.registry.Providers(nil, nil, f.set("app.conf")))
	want := []string{"conf", "text"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Providers(app.conf) = %v, want %v", got, want)
	}

	if got := f.registry.Providers(nil, nil, nil); len(got) != 0 {
		t.Errorf("Providers(no content types) = %v, want none", providerNames(got))
	}
}

func TestProviderRegistry_SortsBySpecialization(t *testing.T) {
	f := newFixture(t)
	f.provide("text", contenttype.Text, nil)
	f.provide("data", contenttype.Data, nil)
	f.provide("nginx", "conf.nginx", nil)
	f.provide("conf-1", "conf", nil)
	f.provide("conf-2", "conf", nil)

	got := providerNames(f.registry.Providers(nil, nil, f.set("/etc/nginx.conf")))
	want := []string{"nginx", "conf-1", "conf-2", "data", "text"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Providers() = %v, want %v", got, want)
	}
}

func TestProviderRegistry_EnabledWhen(t *testing.T) {
	f := newFixture(t)
	f.stores["long"] = preference.NewMemoryStore()
	f.stores["etc"] = preference.NewMemoryStore()
	f.stores["broken"] = preference.NewMemoryStore()

	f.contribute(map[string]string{"store": "long", "contentType": "conf", "enabledWhen": "viewer.lines > 100"})
	f.contribute(map[string]string{"store": "etc", "contentType": "conf", "enabledWhen": `string.sub(resource.path, 1, 5) == "/etc/" and contentTypes[1] == "conf"`})
	f.contribute(map[string]string{"store": "broken", "contentType": "conf", "enabledWhen": "nil + 1"})

	types := f.set("/etc/app.conf")
	editor := &fakeEditor{resource: Resource{Path: "/etc/app.conf"}, types: types}

	got := providerNames(f.registry.Providers(&fakeViewer{lines: 10}, editor, types))
	if strings.Join(got, ",") != "etc" {
		t.Errorf("Providers(10 lines) = %v, want [etc]", got)
	}

	got = providerNames(f.registry.Providers(&fakeViewer{lines: 500}, editor, types))
	if strings.Join(got, ",") != "long,etc" {
		t.Errorf("Providers(500 lines) = %v, want [long etc]", got)
	}

	if !strings.Contains(f.logs.String(), "enabledWhen") {
		t.Error("runtime error in enabledWhen was not logged")
	}
}

func TestProviderRegistry_SkipsBrokenContributions(t *testing.T) {
	f := newFixture(t)
	f.provide("good", "conf", nil)
	f.contribute(map[string]string{"store": "x"})
	f.contribute(map[string]string{"contentType": "conf", "enabledWhen": "this is not lua"})
	f.contribute(map[string]string{"contentType": "conf", "class": "failing"})
	f.contribute(map[string]string{"contentType": "conf", "class": "wrong"})
	f.contribute(map[string]string{"contentType": "conf", "class": "unregistered"})

	got := providerNames(f.registry.Providers(nil, nil, f.set("a.conf")))
	if strings.Join(got, ",") != "good" {
		t.Errorf("Providers() = %v, want [good]", got)
	}

	logs := f.logs.String()
	for _, want := range []string{"contentType attribute is required", "cannot create", "wrong type", "no factory registered"} {
		if !strings.Contains(logs, want) {
			t.Errorf("log does not mention %q:\n%s", want, logs)
		}
	}
	if len(f.registry.Descriptors()) != 4 {
		t.Errorf("got %d descriptors, want 4 (invalid elements are not cached)", len(f.registry.Descriptors()))
	}
}

func TestProviderRegistry_SyncPatchesCache(t *testing.T) {
	f := newFixture(t)
	f.provide("a", "conf", nil)
	f.provide("b", "conf", nil)

	if !f.registry.IsOutOfSync() {
		t.Fatal("new registry should start out of sync")
	}
	before := f.registry.Descriptors()
	if len(before) != 2 {
		t.Fatalf("got %d descriptors, want 2", len(before))
	}
	if f.registry.IsOutOfSync() {
		t.Fatal("registry still out of sync after a lookup")
	}

	// Drop "a", add "c".
	f.ext.RemoveExtension(before[0].Element.Extension().ID)
	if !f.registry.IsOutOfSync() {
		t.Fatal("removal did not invalidate the cache")
	}
	f.provide("c", "conf", nil)

	after := f.registry.Descriptors()
	if len(after) != 2 {
		t.Fatalf("got %d descriptors, want 2", len(after))
	}
	if after[0] != before[1] {
		t.Error("still-contributed descriptor was rebuilt")
	}
	if after[1].Element.Attribute("store") != "c" {
		t.Errorf("new descriptor = %s, want c", after[1].Element.Attribute("store"))
	}

	got := providerNames(f.registry.Providers(nil, nil, f.set("a.conf")))
	if strings.Join(got, ",") != "b,c" {
		t.Errorf("Providers() = %v, want [b c]", got)
	}
}

func TestProviderRegistry_IgnoresOtherPoints(t *testing.T) {
	f := newFixture(t)
	if err := f.ext.AddExtensionPoint("other", ""); err != nil {
		t.Fatal(err)
	}
	f.registry.Descriptors()

	if err := f.ext.AddExtension(&extension.Extension{Point: "other"}); err != nil {
		t.Fatal(err)
	}
	if f.registry.IsOutOfSync() {
		t.Error("change on another point invalidated the cache")
	}
}

func TestProviderRegistry_Close(t *testing.T) {
	f := newFixture(t)
	f.registry.Descriptors()
	f.registry.Close()

	f.provide("late", "conf", nil)
	if f.registry.IsOutOfSync() {
		t.Error("closed registry still receives change events")
	}
}
