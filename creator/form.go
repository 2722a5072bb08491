package creator

import (
	"context"
	"fmt"
	"strings"

	"github.com/wudi/pdfstudio/coords"
	"github.com/wudi/pdfstudio/document"
)

type FieldKind string

const (
	TextField  FieldKind = "textfield"
	CheckBox   FieldKind = "checkbox"
	Dropdown   FieldKind = "dropdown"
	RadioGroup FieldKind = "radio"
)

// FormField places one field with its label. X, Y is the widget's
// lower-left corner; for radio groups it is the first option, and later
// options step down the page.
type FormField struct {
	Kind        FieldKind
	Name        string
	Placeholder string // initial text field value
	X, Y        float64
	// Width and Height size text fields; other kinds have fixed sizes.
	Width, Height float64
	Options       []string
}

type FormSpec struct {
	Title  string // default "Form"
	Fields []FormField
}

// Form page geometry.
const (
	formWidth      = 595
	formHeight     = 842
	formTitleX     = 50
	formTitleY     = 800
	formTitleSize  = 24
	labelSize      = 12
	boxSize        = 15
	dropdownWidth  = 150
	dropdownHeight = 20
	radioStep      = 25
	fieldWidth     = 200
	fieldHeight    = 20
)

// CreateForm lays out spec on a 595×842 page with a title and one label
// per field.
func (c *Creator) CreateForm(ctx context.Context, spec FormSpec) ([]byte, error) {
	if len(spec.Fields) == 0 {
		return nil, ErrNoFields
	}
	for i, f := range spec.Fields {
		if strings.TrimSpace(f.Name) == "" {
			return nil, fmt.Errorf("field %d: name is empty", i)
		}
		switch f.Kind {
		case TextField, CheckBox:
		case Dropdown, RadioGroup:
			if len(cleanOptions(f.Options)) == 0 {
				return nil, fmt.Errorf("field %q: %w", f.Name, ErrNoOptions)
			}
		default:
			return nil, fmt.Errorf("field %q: %w %q", f.Name, ErrFieldKind, f.Kind)
		}
	}

	doc := c.newDocument()
	page := doc.AddPage(formWidth, formHeight)
	font, err := doc.EmbedFont("Helvetica")
	if err != nil {
		return nil, err
	}
	label := func(text string, x, y, size float64) error {
		return page.DrawText(text, document.TextOptions{X: x, Y: y, Size: size, Font: font})
	}
	if err := label(or(spec.Title, "Form"), formTitleX, formTitleY, formTitleSize); err != nil {
		return nil, err
	}

	form := doc.Form()
	for _, f := range spec.Fields {
		if err := addField(form, page, f, label); err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
	}

	out, err := doc.Save(ctx)
	if err != nil {
		return nil, err
	}
	c.log.Info("form created")
	return out, nil
}

func addField(form *document.Form, page *document.Page, f FormField, label func(string, float64, float64, float64) error) error {
	switch f.Kind {
	case TextField:
		w, h := f.Width, f.Height
		if w <= 0 {
			w = fieldWidth
		}
		if h <= 0 {
			h = fieldHeight
		}
		if err := form.AddTextField(page, f.Name, coords.Rect{X: f.X, Y: f.Y, Width: w, Height: h}, f.Placeholder); err != nil {
			return err
		}
		return label(f.Name+":", f.X, f.Y+h+5, labelSize)
	case CheckBox:
		if err := form.AddCheckBox(page, f.Name, coords.Rect{X: f.X, Y: f.Y, Width: boxSize, Height: boxSize}, false); err != nil {
			return err
		}
		return label(f.Name, f.X+20, f.Y+2, labelSize)
	case Dropdown:
		r := coords.Rect{X: f.X, Y: f.Y, Width: dropdownWidth, Height: dropdownHeight}
		if err := form.AddDropdown(page, f.Name, cleanOptions(f.Options), r); err != nil {
			return err
		}
		return label(f.Name+":", f.X, f.Y+25, labelSize)
	case RadioGroup:
		opts := cleanOptions(f.Options)
		rects := make([]coords.Rect, len(opts))
		for i := range opts {
			rects[i] = coords.Rect{X: f.X, Y: f.Y - float64(i*radioStep), Width: boxSize, Height: boxSize}
		}
		if err := form.AddRadioGroup(page, f.Name, opts, rects); err != nil {
			return err
		}
		for i, o := range opts {
			if err := label(o, f.X+20, rects[i].Y+2, labelSize); err != nil {
				return err
			}
		}
	}
	return nil
}

// SplitOptions splits a comma-separated option list, trimming each entry
// and dropping empty ones.
func SplitOptions(s string) []string {
	return cleanOptions(strings.Split(s, ","))
}

func cleanOptions(in []string) []string {
	out := make([]string, 0, len(in))
	for _, o := range in {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
