package document

import (
	"errors"
	"testing"

	"github.com/wudi/pdfstudio/coords"
)

func TestFormFieldsSurviveSave(t *testing.T) {
	d := New()
	p := d.AddPage(595, 842)
	f := d.Form()
	if err := f.AddTextField(p, "name", coords.Rect{X: 50, Y: 700, Width: 200, Height: 20}, "Jane"); err != nil {
		t.Fatalf("text field: %v", err)
	}
	if err := f.AddCheckBox(p, "agree", coords.Rect{X: 50, Y: 650, Width: 15, Height: 15}, true); err != nil {
		t.Fatalf("checkbox: %v", err)
	}
	if err := f.AddDropdown(p, "size", []string{"S", "M", "L"}, coords.Rect{X: 50, Y: 600, Width: 150, Height: 20}); err != nil {
		t.Fatalf("dropdown: %v", err)
	}
	rects := []coords.Rect{{X: 50, Y: 550, Width: 15, Height: 15}, {X: 50, Y: 525, Width: 15, Height: 15}}
	if err := f.AddRadioGroup(p, "plan", []string{"Basic", "Pro"}, rects); err != nil {
		t.Fatalf("radio: %v", err)
	}
	if err := f.AddTextField(p, "name", coords.Rect{Width: 10, Height: 10}, ""); !errors.Is(err, ErrFieldExists) {
		t.Fatalf("expected ErrFieldExists, got %v", err)
	}

	loaded := saveAndLoad(t, d)
	lf := loaded.Form()
	fields := lf.Fields()
	if len(fields) != 4 {
		t.Fatalf("fields = %+v", fields)
	}
	want := map[string]FieldType{"name": FieldText, "agree": FieldCheckBox, "size": FieldDropdown, "plan": FieldRadio}
	for _, fl := range fields {
		if want[fl.Name] != fl.Type {
			t.Fatalf("field %q has type %q", fl.Name, fl.Type)
		}
	}
	if fl, _ := lf.Field("name"); fl.Value != "Jane" {
		t.Fatalf("text value = %q", fl.Value)
	}
	if fl, _ := lf.Field("agree"); fl.Value != "Yes" {
		t.Fatalf("checkbox value = %q", fl.Value)
	}
	if fl, _ := lf.Field("size"); len(fl.Options) != 3 || fl.Options[1] != "M" {
		t.Fatalf("dropdown options = %v", fl.Options)
	}
	if fl, _ := lf.Field("plan"); len(fl.Options) != 2 || fl.Options[0] != "Basic" || fl.Value != "" {
		t.Fatalf("radio = %+v", fl)
	}
	lp, _ := loaded.Page(0)
	annots, ok := loaded.Raw().ResolveArray(resGet(lp.Dict(), "Annots"))
	if !ok || annots.Len() != 5 {
		t.Fatalf("expected 5 widgets on the page")
	}
}

func TestFormSetters(t *testing.T) {
	d := New()
	p := d.AddPage(0, 0)
	f := d.Form()
	_ = f.AddTextField(p, "city", coords.Rect{Width: 100, Height: 20}, "")
	_ = f.AddCheckBox(p, "ok", coords.Rect{Width: 15, Height: 15}, false)
	_ = f.AddDropdown(p, "color", []string{"red", "blue"}, coords.Rect{Width: 100, Height: 20})
	_ = f.AddRadioGroup(p, "size", []string{"S", "L"}, []coords.Rect{{Width: 15, Height: 15}, {Y: 20, Width: 15, Height: 15}})

	if err := f.SetText("city", "Oslo"); err != nil {
		t.Fatalf("set text: %v", err)
	}
	if err := f.SetCheckbox("ok", true); err != nil {
		t.Fatalf("set checkbox: %v", err)
	}
	if err := f.SetChoice("color", "blue"); err != nil {
		t.Fatalf("set dropdown: %v", err)
	}
	if err := f.SetChoice("size", "L"); err != nil {
		t.Fatalf("set radio: %v", err)
	}
	if err := f.SetChoice("color", "green"); err == nil {
		t.Fatalf("expected unknown option error")
	}
	if err := f.SetText("ok", "x"); !errors.Is(err, ErrFieldType) {
		t.Fatalf("expected ErrFieldType, got %v", err)
	}
	if err := f.SetText("missing", "x"); !errors.Is(err, ErrFieldNotFound) {
		t.Fatalf("expected ErrFieldNotFound, got %v", err)
	}

	lf := saveAndLoad(t, d).Form()
	for name, want := range map[string]string{"city": "Oslo", "ok": "Yes", "color": "blue", "size": "L"} {
		if fl, _ := lf.Field(name); fl.Value != want {
			t.Fatalf("%s = %q, want %q", name, fl.Value, want)
		}
	}
}

func TestFormRejectsBadInput(t *testing.T) {
	d := New()
	p := d.AddPage(0, 0)
	f := d.Form()
	if err := f.AddTextField(p, " ", coords.Rect{}, ""); err == nil {
		t.Fatalf("expected empty name error")
	}
	if err := f.AddDropdown(p, "d", nil, coords.Rect{}); err == nil {
		t.Fatalf("expected missing options error")
	}
	if err := f.AddRadioGroup(p, "r", []string{"a", "b"}, []coords.Rect{{}}); err == nil {
		t.Fatalf("expected rect count error")
	}
	if err := f.AddCheckBox(New().AddPage(0, 0), "c", coords.Rect{}, false); !errors.Is(err, ErrForeignPage) {
		t.Fatalf("expected ErrForeignPage, got %v", err)
	}
	box := coords.Rect{X: 10, Y: 10, Width: 100, Height: 20}
	if err := f.AddTextField(p, "cjk", box, "日本"); !errors.Is(err, ErrUnencodable) {
		t.Fatalf("expected ErrUnencodable, got %v", err)
	}
	if _, ok := f.Field("cjk"); ok {
		t.Fatalf("rejected field was added")
	}
	if err := f.AddTextField(p, "name", box, "Ana"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := f.SetText("name", "日本"); !errors.Is(err, ErrUnencodable) {
		t.Fatalf("expected ErrUnencodable, got %v", err)
	}
	if fl, _ := f.Field("name"); fl.Value != "Ana" {
		t.Fatalf("value = %q", fl.Value)
	}
}
