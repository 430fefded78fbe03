package genericeditor

import (
	"context"
	"fmt"
	"sort"

	"github.com/dshills/prefchain/internal/contenttype"
	"github.com/dshills/prefchain/internal/extension"
	"github.com/dshills/prefchain/internal/logging"
	"github.com/dshills/prefchain/internal/script"
)

// Attributes read from content type related elements.
const (
	ClassAttribute       = "class"
	ContentTypeAttribute = "contentType"
	EnabledWhenAttribute = "enabledWhen"
)

// ContentTypeRelatedExtension describes a contribution that applies to one
// content type and optionally only when its enabledWhen expression holds.
// T is the type of object the contribution's factory creates.
type ContentTypeRelatedExtension[T any] struct {
	// Element is the contributed configuration element.
	Element *extension.Element

	// TargetContentType is the content type ID the contribution targets.
	TargetContentType string

	enabledWhen *script.Expr
	registry    *extension.Registry
	engine      *script.Engine
	logger      *logging.Logger
	order       int
}

// NewContentTypeRelatedExtension validates elem and compiles its
// enabledWhen expression.
func NewContentTypeRelatedExtension[T any](elem *extension.Element, registry *extension.Registry, engine *script.Engine, logger *logging.Logger) (*ContentTypeRelatedExtension[T], error) {
	target := elem.Attribute(ContentTypeAttribute)
	if target == "" {
		return nil, fmt.Errorf("%w (contributed by %s)", ErrMissingContentType, elem.Contributor())
	}

	x := &ContentTypeRelatedExtension[T]{
		Element:           elem,
		TargetContentType: target,
		registry:          registry,
		engine:            engine,
		logger:            logger,
	}

	if src := elem.Attribute(EnabledWhenAttribute); src != "" {
		expr, err := script.CompileExpr(elem.Contributor()+":"+EnabledWhenAttribute, src)
		if err != nil {
			return nil, err
		}
		x.enabledWhen = expr
	}
	return x, nil
}

// EnabledWhen returns the enablement expression source, or "".
func (x *ContentTypeRelatedExtension[T]) EnabledWhen() string {
	if x.enabledWhen == nil {
		return ""
	}
	return x.enabledWhen.Source()
}

// Target returns the member of contentTypes this contribution targets.
func (x *ContentTypeRelatedExtension[T]) Target(contentTypes []*contenttype.ContentType) (*contenttype.ContentType, bool) {
	for _, ct := range contentTypes {
		if ct.ID == x.TargetContentType {
			return ct, true
		}
	}
	return nil, false
}

// Matches evaluates the enablement expression for viewer and editor.
// Contributions without one always match; evaluation errors never do.
func (x *ContentTypeRelatedExtension[T]) Matches(viewer Viewer, editor Editor) bool {
	if x.enabledWhen == nil {
		return true
	}

	ok, err := x.engine.EvalBool(context.Background(), x.enabledWhen, matchEnv(viewer, editor))
	if err != nil {
		x.logger.Warn("enabledWhen of %s: %v", x.Element.Contributor(), err)
		return false
	}
	return ok
}

// matchEnv builds the globals visible to enabledWhen expressions.
func matchEnv(viewer Viewer, editor Editor) map[string]any {
	env := map[string]any{
		"resource":     map[string]any{},
		"contentTypes": []string{},
		"viewer":       map[string]any{"lines": 0},
	}
	if editor != nil {
		res := editor.Resource()
		env["resource"] = map[string]any{
			"path": res.Path,
			"name": res.Name(),
			"ext":  res.Ext(),
		}
		env["contentTypes"] = contenttype.IDs(editor.ContentTypes())
	}
	if viewer != nil {
		env["viewer"] = map[string]any{"lines": viewer.LineCount()}
	}
	return env
}

// CreateDelegate instantiates the contributed object through the factory
// named by the class attribute.
func (x *ContentTypeRelatedExtension[T]) CreateDelegate() (T, error) {
	var zero T

	obj, err := x.registry.CreateExecutableExtension(x.Element, ClassAttribute)
	if err != nil {
		return zero, err
	}
	delegate, ok := obj.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %q created %T", ErrWrongType, x.Element.Attribute(ClassAttribute), obj)
	}
	return delegate, nil
}

// targeted pairs a contribution with the content type it matched.
type targeted[T any] struct {
	ext    *ContentTypeRelatedExtension[T]
	target *contenttype.ContentType
}

// sortBySpecialization orders contributions for more specialized content
// types first. Ties go by content type ID, then contribution order.
func sortBySpecialization[T any](items []targeted[T]) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if da, db := a.target.Depth(), b.target.Depth(); da != db {
			return da > db
		}
		if a.target.ID != b.target.ID {
			return a.target.ID < b.target.ID
		}
		return a.ext.order < b.ext.order
	})
}
