package scripting

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/dop251/goja"

	"github.com/wudi/pdfstudio/editor"
	"github.com/wudi/pdfstudio/observability"
)

var errNoFiles = errors.New("file access is disabled")

var _ Engine = (*GojaEngine)(nil)

type GojaEngine struct {
	vm    *goja.Runtime
	opts  Options
	log   observability.Logger
	ctx   context.Context
	saved []byte
}

func NewEngine() *GojaEngine { return NewEngineWithOptions(Options{}) }

func NewEngineWithOptions(opts Options) *GojaEngine {
	vm := goja.New()
	vm.SetFieldNameMapper(goja.UncapFieldNameMapper())
	opts.Logger = observability.OrNop(opts.Logger)
	return &GojaEngine{vm: vm, opts: opts, log: opts.Logger, ctx: context.Background()}
}

// Saved returns the bytes of the last editor.save() call.
func (e *GojaEngine) Saved() []byte { return e.saved }

func (e *GojaEngine) Execute(ctx context.Context, script string) (interface{}, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	done, stopped := make(chan struct{}), make(chan struct{})
	go func() {
		defer close(stopped)
		select {
		case <-ctx.Done():
			e.vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()
	// Clear only after the watcher has exited.
	defer func() {
		close(done)
		<-stopped
		e.vm.ClearInterrupt()
	}()

	e.ctx = ctx
	defer func() { e.ctx = context.Background() }()

	val, err := e.vm.RunString(script)
	if err != nil {
		if interruptedErr, ok := err.(*goja.InterruptedError); ok {
			if cause := interruptedErr.Unwrap(); cause != nil {
				return nil, cause
			}
			return nil, context.Canceled
		}
		return nil, fmt.Errorf("script: %w", err)
	}
	if val == nil {
		return nil, nil
	}
	return val.Export(), nil
}

// throw raises err as a JavaScript exception.
func (e *GojaEngine) throw(err error) {
	panic(e.vm.NewGoError(err))
}

func (e *GojaEngine) RegisterSession(s *editor.Session) error {
	ui := s.UI()

	appObj := e.vm.NewObject()
	err := appObj.Set("alert", func(call goja.FunctionCall) goja.Value {
		ui.Notify(editor.LevelInfo, call.Argument(0).String())
		return goja.Undefined()
	})
	if err != nil {
		return err
	}
	if err := e.vm.Set("app", appObj); err != nil {
		return err
	}

	err = e.vm.Set("getField", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 1 {
			return goja.Undefined()
		}
		var field FieldProxy = uiField{ui: ui, name: call.Arguments[0].String()}
		obj := e.vm.NewObject()
		obj.DefineAccessorProperty("value",
			e.vm.ToValue(func(goja.FunctionCall) goja.Value {
				return e.vm.ToValue(field.GetValue())
			}),
			e.vm.ToValue(func(call goja.FunctionCall) goja.Value {
				if len(call.Arguments) > 0 {
					field.SetValue(call.Arguments[0].Export())
				}
				return goja.Undefined()
			}),
			goja.FLAG_TRUE,
			goja.FLAG_TRUE,
		)
		return obj
	})
	if err != nil {
		return err
	}

	ed := e.vm.NewObject()
	methods := map[string]func(goja.FunctionCall) goja.Value{
		"setTool": func(call goja.FunctionCall) goja.Value {
			if err := s.SetToolName(call.Argument(0).String()); err != nil {
				e.throw(err)
			}
			return goja.Undefined()
		},
		"tool": func(goja.FunctionCall) goja.Value { return e.vm.ToValue(string(s.Tool())) },
		"click": func(call goja.FunctionCall) goja.Value {
			if err := s.Click(point(call)); err != nil {
				e.throw(err)
			}
			return goja.Undefined()
		},
		"pointerDown": func(call goja.FunctionCall) goja.Value {
			s.PointerDown(point(call))
			return goja.Undefined()
		},
		"pointerMove": func(call goja.FunctionCall) goja.Value {
			s.PointerMove(point(call))
			return goja.Undefined()
		},
		"pointerUp": func(goja.FunctionCall) goja.Value {
			s.PointerUp()
			return goja.Undefined()
		},
		"hover": func(call goja.FunctionCall) goja.Value {
			return e.vm.ToValue(s.HoverAt(point(call)))
		},
		"key": func(call goja.FunctionCall) goja.Value {
			return e.vm.ToValue(s.KeyDown(call.Argument(0).String(), call.Argument(1).ToBoolean()))
		},
		"addText": func(call goja.FunctionCall) goja.Value {
			return e.vm.ToValue(elementValue(s.AddText(point(call))))
		},
		"addShape": func(call goja.FunctionCall) goja.Value {
			return e.vm.ToValue(elementValue(s.AddShape(point(call))))
		},
		"addCircle": func(call goja.FunctionCall) goja.Value {
			x, y := point(call)
			el, err := s.AddCircle(x, y, call.Argument(2).ToFloat())
			if err != nil {
				e.throw(err)
			}
			return e.vm.ToValue(elementValue(el))
		},
		"addImage": func(call goja.FunctionCall) goja.Value {
			if e.opts.ReadFile == nil {
				e.throw(errNoFiles)
			}
			data, err := e.opts.ReadFile(call.Argument(0).String())
			if err != nil {
				e.throw(err)
			}
			el, err := s.AddImage(data, call.Argument(1).ToFloat(), call.Argument(2).ToFloat())
			if err != nil {
				e.throw(err)
			}
			return e.vm.ToValue(elementValue(el))
		},
		"convertRun": func(call goja.FunctionCall) goja.Value {
			if err := s.ConvertRun(call.Argument(0).String()); err != nil {
				e.throw(err)
			}
			return e.vm.ToValue(elementValue(s.Scene().Selected()))
		},
		"runs": func(goja.FunctionCall) goja.Value {
			runs := s.Runs()
			out := make([]interface{}, 0, len(runs))
			for _, r := range runs {
				out = append(out, map[string]interface{}{
					"id": r.ID, "text": r.Text, "x": r.X, "y": r.Y,
					"width": r.Width, "height": r.Height, "fontSize": r.FontSize,
					"masked": s.Scene().IsMasked(r.ID),
				})
			}
			return e.vm.ToValue(out)
		},
		"elements": func(goja.FunctionCall) goja.Value {
			els := s.Scene().Elements()
			out := make([]interface{}, 0, len(els))
			for _, el := range els {
				out = append(out, elementValue(el))
			}
			return e.vm.ToValue(out)
		},
		"selected": func(goja.FunctionCall) goja.Value {
			if el := s.Scene().Selected(); el != nil {
				return e.vm.ToValue(elementValue(el))
			}
			return goja.Null()
		},
		"apply": func(call goja.FunctionCall) goja.Value {
			props, _ := call.Argument(0).Export().(map[string]interface{})
			if err := applyProps(s, props); err != nil {
				e.throw(err)
			}
			return goja.Undefined()
		},
		"deleteSelected": func(goja.FunctionCall) goja.Value {
			return e.vm.ToValue(s.DeleteSelected() != nil)
		},
		"copy":  func(goja.FunctionCall) goja.Value { return e.vm.ToValue(s.CopySelected()) },
		"paste": func(goja.FunctionCall) goja.Value { return e.vm.ToValue(elementValue(s.Paste())) },
		"loadPage": func(call goja.FunctionCall) goja.Value {
			if err := s.LoadPage(e.ctx, int(call.Argument(0).ToInteger())); err != nil {
				e.throw(err)
			}
			return goja.Undefined()
		},
		"pageCount": func(goja.FunctionCall) goja.Value { return e.vm.ToValue(s.NumPages()) },
		"page":      func(goja.FunctionCall) goja.Value { return e.vm.ToValue(s.PageNumber()) },
		"save": func(goja.FunctionCall) goja.Value {
			data, err := s.Save(e.ctx)
			if err != nil {
				e.throw(err)
			}
			e.saved = data
			return e.vm.ToValue(len(data))
		},
	}
	names := make([]string, 0, len(methods))
	for name := range methods {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := ed.Set(name, methods[name]); err != nil {
			return fmt.Errorf("register %s: %w", name, err)
		}
	}
	if err := e.vm.Set("editor", ed); err != nil {
		return err
	}
	e.log.Debug("session registered", observability.Int("methods", len(names)))
	return nil
}

func point(call goja.FunctionCall) (float64, float64) {
	return call.Argument(0).ToFloat(), call.Argument(1).ToFloat()
}

func elementValue(el *editor.Element) interface{} {
	if el == nil {
		return nil
	}
	v := map[string]interface{}{
		"id":     el.ID,
		"kind":   string(el.Kind),
		"x":      el.X,
		"y":      el.Y,
		"width":  el.Width,
		"height": el.Height,
	}
	switch el.Kind {
	case editor.KindText:
		v["text"] = el.Text
		v["fontSize"] = el.FontSize
		v["color"] = el.Color
		if el.IsReplacement {
			v["replaces"] = el.ReplacesID
		}
	case editor.KindShape:
		v["shape"] = string(el.Shape)
		v["fill"] = el.FillColor
		v["border"] = el.BorderColor
	}
	return v
}

// applyProps writes props into the panel fields of the selection's kind
// and applies them.
func applyProps(s *editor.Session, props map[string]interface{}) error {
	el := s.Scene().Selected()
	if el == nil {
		return nil
	}
	fields := map[string]string{"x": editor.FieldX, "y": editor.FieldY}
	switch el.Kind {
	case editor.KindText:
		fields["text"] = editor.FieldText
		fields["fontSize"] = editor.FieldFontSize
		fields["color"] = editor.FieldTextColor
	case editor.KindImage:
		fields["width"] = editor.FieldImageWidth
		fields["height"] = editor.FieldImageHeight
	case editor.KindShape:
		fields["width"] = editor.FieldShapeWidth
		fields["height"] = editor.FieldShapeHeight
		fields["fill"] = editor.FieldShapeFill
		fields["border"] = editor.FieldShapeBorder
	}
	ui := s.UI()
	for key, val := range props {
		name, ok := fields[key]
		if !ok {
			return fmt.Errorf("property %q does not apply to %s elements", key, el.Kind)
		}
		ui.SetField(name, stringify(val))
	}
	return s.ApplyProperties()
}

func stringify(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	}
	return fmt.Sprint(v)
}
