package scripting

import (
	"context"

	"github.com/wudi/pdfstudio/editor"
	"github.com/wudi/pdfstudio/observability"
)

// Engine runs user scripts against an editor session.
type Engine interface {
	// Execute runs script and returns its completion value.
	Execute(ctx context.Context, script string) (interface{}, error)

	// RegisterSession exposes s to scripts as the global `editor` object,
	// plus `getField` and `app.alert`.
	RegisterSession(s *editor.Session) error
}

// FieldProxy is a properties panel field as scripts see it.
type FieldProxy interface {
	GetValue() interface{}
	SetValue(value interface{})
}

// Options configures a script engine.
type Options struct {
	// ReadFile loads images for editor.addImage. Nil disables file access.
	ReadFile func(path string) ([]byte, error)
	Logger   observability.Logger
}

// uiField proxies one UI field.
type uiField struct {
	ui   editor.UI
	name string
}

func (f uiField) GetValue() interface{} { return f.ui.ReadField(f.name) }

func (f uiField) SetValue(value interface{}) { f.ui.SetField(f.name, stringify(value)) }
