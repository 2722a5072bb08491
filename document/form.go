package document

import (
	"errors"
	"fmt"
	"strings"

	"github.com/wudi/pdfstudio/contentstream"
	"github.com/wudi/pdfstudio/coords"
	"github.com/wudi/pdfstudio/fonts"
	"github.com/wudi/pdfstudio/ir/raw"
)

var (
	ErrFieldNotFound = errors.New("form field not found")
	ErrFieldExists   = errors.New("form field already exists")
	ErrFieldType     = errors.New("form field has a different type")
)

type FieldType string

const (
	FieldText      FieldType = "text"
	FieldCheckBox  FieldType = "checkbox"
	FieldRadio     FieldType = "radio"
	FieldDropdown  FieldType = "dropdown"
	FieldList      FieldType = "list"
	FieldButton    FieldType = "button"
	FieldSignature FieldType = "signature"
)

// Field flag bits (/Ff).
const (
	flagRadio      = 1 << 15
	flagNoToggle   = 1 << 14
	flagPushButton = 1 << 16
	flagCombo      = 1 << 17
)

const (
	checkOn  = "Yes"
	checkOff = "Off"
)

// Field describes one terminal form field.
type Field struct {
	Name    string
	Type    FieldType
	Value   string
	Options []string
	ref     raw.ObjectRef
}

// Form edits the document's interactive form (AcroForm).
type Form struct {
	doc    *Document
	acro   *raw.DictObj
	fields *raw.ArrayObj
	helv   *Font
	zadb   *Font
}

// Form returns the document's form, creating an empty one on first use.
func (d *Document) Form() *Form {
	if d.form != nil {
		return d.form
	}
	f := &Form{doc: d}
	if cat, err := d.raw.Catalog(); err == nil {
		if v, ok := cat.Get("AcroForm"); ok {
			f.acro, _ = d.raw.ResolveDict(v)
		}
	}
	if f.acro == nil {
		f.acro = raw.Dict()
	}
	if v, ok := f.acro.Get("Fields"); ok {
		f.fields, _ = d.raw.ResolveArray(v)
	}
	if f.fields == nil {
		f.fields = raw.NewArray()
		f.acro.Set("Fields", f.fields)
	}
	d.form = f
	return f
}

func (f *Form) fontsReady() error {
	if f.helv != nil {
		return nil
	}
	helv, err := f.doc.EmbedFont("Helvetica")
	if err != nil {
		return err
	}
	zadb, err := f.doc.EmbedFont("ZapfDingbats")
	if err != nil {
		return err
	}
	f.helv, f.zadb = helv, zadb
	dr, ok := f.doc.raw.ResolveDict(resGet(f.acro, "DR"))
	if !ok {
		dr = raw.Dict()
		f.acro.Set("DR", dr)
	}
	fontDict, ok := f.doc.raw.ResolveDict(resGet(dr, "Font"))
	if !ok {
		fontDict = raw.Dict()
		dr.Set("Font", fontDict)
	}
	fontDict.Set("Helv", helv.ref)
	fontDict.Set("ZaDb", zadb.ref)
	if _, ok := f.acro.Get("DA"); !ok {
		f.acro.Set("DA", raw.Str([]byte("/Helv 0 Tf 0 g")))
	}
	return nil
}

// commit links the form into the catalog.
func (f *Form) commit() {
	if f.fields.Len() == 0 {
		return
	}
	cat, err := f.doc.raw.Catalog()
	if err != nil {
		return
	}
	if _, ok := cat.Get("AcroForm"); !ok {
		cat.Set("AcroForm", f.doc.raw.Add(f.acro))
	}
	f.acro.Set("NeedAppearances", raw.Bool(true))
}

func (f *Form) checkNew(page *Page, name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("form field name is empty")
	}
	if page == nil || page.doc != f.doc {
		return ErrForeignPage
	}
	if _, ok := f.Field(name); ok {
		return fmt.Errorf("%w: %q", ErrFieldExists, name)
	}
	return f.fontsReady()
}

func (f *Form) widget(page *Page, r coords.Rect) *raw.DictObj {
	w := raw.Dict()
	w.Set("Type", raw.NameLiteral("Annot"))
	w.Set("Subtype", raw.NameLiteral("Widget"))
	w.Set("Rect", raw.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height))
	w.Set("F", raw.NumberInt(4))
	w.Set("P", raw.RefObj{R: page.ref})
	mk := raw.Dict()
	mk.Set("BC", raw.NewArray(raw.NumberInt(0), raw.NumberInt(0), raw.NumberInt(0)))
	mk.Set("BG", raw.NewArray(raw.NumberInt(1), raw.NumberInt(1), raw.NumberInt(1)))
	w.Set("MK", mk)
	return w
}

func (f *Form) attach(page *Page, widget raw.RefObj) {
	annots, ok := f.doc.raw.ResolveArray(page.getOr("Annots"))
	if !ok {
		annots = raw.NewArray()
	} else if _, isRef := page.getOr("Annots").(raw.RefObj); isRef {
		annots = raw.Clone(annots).(*raw.ArrayObj)
	}
	annots.Append(widget)
	page.dict.Set("Annots", annots)
}

// AddTextField places a single-line text field with an initial value.
func (f *Form) AddTextField(page *Page, name string, r coords.Rect, value string) error {
	if err := f.checkNew(page, name); err != nil {
		return err
	}
	shown, err := fonts.EncodeWinAnsi(value)
	if err != nil {
		return fmt.Errorf("field %q: %w", name, err)
	}
	w := f.widget(page, r)
	w.Set("FT", raw.NameLiteral("Tx"))
	w.Set("T", raw.Str(fonts.EncodePDFText(name)))
	w.Set("DA", raw.Str([]byte("/Helv 0 Tf 0 g")))
	w.Set("V", raw.Str(fonts.EncodePDFText(value)))
	f.setTextAppearance(w, r.Width, r.Height, shown)
	ref := f.doc.raw.Add(w)
	f.fields.Append(ref)
	f.attach(page, ref)
	return nil
}

// AddCheckBox places a checkbox whose on state is "Yes".
func (f *Form) AddCheckBox(page *Page, name string, r coords.Rect, checked bool) error {
	if err := f.checkNew(page, name); err != nil {
		return err
	}
	w := f.widget(page, r)
	w.Set("FT", raw.NameLiteral("Btn"))
	w.Set("T", raw.Str(fonts.EncodePDFText(name)))
	w.Set("DA", raw.Str([]byte("/ZaDb 0 Tf 0 g")))
	ap := raw.Dict()
	states := raw.Dict()
	states.Set(checkOn, f.doc.raw.Add(f.checkAppearance(r.Width, r.Height, true)))
	states.Set(checkOff, f.doc.raw.Add(f.checkAppearance(r.Width, r.Height, false)))
	ap.Set("N", states)
	w.Set("AP", ap)
	state := checkOff
	if checked {
		state = checkOn
	}
	w.Set("V", raw.NameLiteral(state))
	w.Set("AS", raw.NameLiteral(state))
	ref := f.doc.raw.Add(w)
	f.fields.Append(ref)
	f.attach(page, ref)
	return nil
}

// AddDropdown places a combo box offering options. Nothing is selected.
func (f *Form) AddDropdown(page *Page, name string, options []string, r coords.Rect) error {
	if len(options) == 0 {
		return errors.New("dropdown needs at least one option")
	}
	if err := f.checkNew(page, name); err != nil {
		return err
	}
	w := f.widget(page, r)
	w.Set("FT", raw.NameLiteral("Ch"))
	w.Set("Ff", raw.NumberInt(flagCombo))
	w.Set("T", raw.Str(fonts.EncodePDFText(name)))
	w.Set("DA", raw.Str([]byte("/Helv 0 Tf 0 g")))
	opt := raw.NewArray()
	for _, o := range options {
		opt.Append(raw.Str(fonts.EncodePDFText(o)))
	}
	w.Set("Opt", opt)
	f.setTextAppearance(w, r.Width, r.Height, nil)
	ref := f.doc.raw.Add(w)
	f.fields.Append(ref)
	f.attach(page, ref)
	return nil
}

// AddRadioGroup places one radio button per option, at rects[i]. Nothing
// is selected.
func (f *Form) AddRadioGroup(page *Page, name string, options []string, rects []coords.Rect) error {
	if len(options) == 0 {
		return errors.New("radio group needs at least one option")
	}
	if len(rects) != len(options) {
		return fmt.Errorf("radio group %q: %d options but %d rectangles", name, len(options), len(rects))
	}
	if err := f.checkNew(page, name); err != nil {
		return err
	}
	parent := raw.Dict()
	parent.Set("FT", raw.NameLiteral("Btn"))
	parent.Set("Ff", raw.NumberInt(flagRadio|flagNoToggle))
	parent.Set("T", raw.Str(fonts.EncodePDFText(name)))
	parent.Set("V", raw.NameLiteral(checkOff))
	parentRef := f.doc.raw.Add(parent)
	kids := raw.NewArray()
	for i, opt := range options {
		r := rects[i]
		w := f.widget(page, r)
		w.Set("Parent", parentRef)
		w.Set("DA", raw.Str([]byte("/ZaDb 0 Tf 0 g")))
		states := raw.Dict()
		states.Set(opt, f.doc.raw.Add(f.radioAppearance(r.Width, r.Height, true)))
		states.Set(checkOff, f.doc.raw.Add(f.radioAppearance(r.Width, r.Height, false)))
		ap := raw.Dict()
		ap.Set("N", states)
		w.Set("AP", ap)
		w.Set("AS", raw.NameLiteral(checkOff))
		ref := f.doc.raw.Add(w)
		kids.Append(ref)
		f.attach(page, ref)
	}
	parent.Set("Kids", kids)
	f.fields.Append(parentRef)
	return nil
}

func (f *Form) appearance(width, height float64, b *contentstream.Builder, font *Font, resName string) *raw.StreamObj {
	dict := raw.Dict()
	dict.Set("Type", raw.NameLiteral("XObject"))
	dict.Set("Subtype", raw.NameLiteral("Form"))
	dict.Set("BBox", raw.Rect(0, 0, width, height))
	if font != nil {
		fd := raw.Dict()
		fd.Set(resName, font.ref)
		res := raw.Dict()
		res.Set("Font", fd)
		dict.Set("Resources", res)
	}
	return raw.NewStream(dict, b.Bytes())
}

func autoSize(height float64) float64 {
	size := height * 0.6
	if size > 12 {
		size = 12
	}
	if size < 4 {
		size = 4
	}
	return size
}

// setTextAppearance draws value, already WinAnsi encoded, into the widget.
func (f *Form) setTextAppearance(w *raw.DictObj, width, height float64, value []byte) {
	b := contentstream.NewBuilder()
	b.SaveState().SetFillRGB(contentstream.White).Rectangle(0, 0, width, height).Fill()
	b.SetStrokeRGB(contentstream.Black).SetLineWidth(1).Rectangle(0.5, 0.5, width-1, height-1).Stroke()
	if len(value) > 0 {
		size := autoSize(height)
		b.BeginText().SetFont("Helv", size).SetFillRGB(contentstream.Black).
			MoveText(2, (height-size)/2+size*0.22).ShowText(value).EndText()
	}
	b.RestoreState()
	ap := raw.Dict()
	ap.Set("N", f.doc.raw.Add(f.appearance(width, height, b, f.helv, "Helv")))
	w.Set("AP", ap)
}

func (f *Form) checkAppearance(width, height float64, on bool) *raw.StreamObj {
	b := contentstream.NewBuilder()
	b.SaveState().SetFillRGB(contentstream.White).SetStrokeRGB(contentstream.Black).SetLineWidth(1).
		Rectangle(0.5, 0.5, width-1, height-1).FillStroke()
	if on {
		size := min(width, height) * 0.8
		b.BeginText().SetFont("ZaDb", size).SetFillRGB(contentstream.Black).
			MoveText((width-size*0.75)/2, (height-size*0.7)/2).ShowText([]byte("4")).EndText()
	}
	b.RestoreState()
	return f.appearance(width, height, b, f.zadb, "ZaDb")
}

func (f *Form) radioAppearance(width, height float64, on bool) *raw.StreamObj {
	r := min(width, height) / 2
	b := contentstream.NewBuilder()
	b.SaveState().SetFillRGB(contentstream.White).SetStrokeRGB(contentstream.Black).SetLineWidth(1).
		Ellipse(width/2, height/2, r-0.5, r-0.5).FillStroke()
	if on {
		b.SetFillRGB(contentstream.Black).Ellipse(width/2, height/2, r*0.45, r*0.45).Fill()
	}
	b.RestoreState()
	return f.appearance(width, height, b, nil, "")
}

// Fields lists terminal fields with fully qualified names.
func (f *Form) Fields() []Field {
	var out []Field
	seen := make(map[raw.ObjectRef]bool)
	var walk func(o raw.Object, prefix string, inheritedFT string, inheritedFf int64, depth int)
	walk = func(o raw.Object, prefix string, ft string, ff int64, depth int) {
		ref, isRef := o.(raw.RefObj)
		if isRef {
			if seen[ref.R] {
				return
			}
			seen[ref.R] = true
		}
		dict, ok := f.doc.raw.ResolveDict(o)
		if !ok || depth > 32 {
			return
		}
		name := prefix
		if t, ok := dict.Get("T"); ok {
			if s, ok := f.doc.raw.Resolve(t).(raw.StringObj); ok {
				part := fonts.DecodePDFText(s.Bytes)
				if name != "" {
					name += "."
				}
				name += part
			}
		}
		if v, ok := dict.Name("FT"); ok {
			ft = v
		}
		if v, ok := dict.Int("Ff"); ok {
			ff = v
		}
		kids, _ := f.doc.raw.ResolveArray(resGet(dict, "Kids"))
		if kids != nil && hasNamedKid(f.doc.raw, kids) {
			for _, k := range kids.Items {
				walk(k, name, ft, ff, depth+1)
			}
			return
		}
		field := Field{Name: name, Type: fieldType(ft, ff)}
		if isRef {
			field.ref = ref.R
		}
		field.Value = f.value(dict)
		field.Options = f.options(dict, field.Type, kids)
		out = append(out, field)
	}
	for _, it := range f.fields.Items {
		walk(it, "", "", 0, 0)
	}
	return out
}

func hasNamedKid(doc *raw.Document, kids *raw.ArrayObj) bool {
	for _, k := range kids.Items {
		if d, ok := doc.ResolveDict(k); ok {
			if _, ok := d.Get("T"); ok {
				return true
			}
		}
	}
	return false
}

func fieldType(ft string, ff int64) FieldType {
	switch ft {
	case "Tx":
		return FieldText
	case "Btn":
		switch {
		case ff&flagPushButton != 0:
			return FieldButton
		case ff&flagRadio != 0:
			return FieldRadio
		}
		return FieldCheckBox
	case "Ch":
		if ff&flagCombo != 0 {
			return FieldDropdown
		}
		return FieldList
	case "Sig":
		return FieldSignature
	}
	return FieldType(strings.ToLower(ft))
}

func (f *Form) value(dict *raw.DictObj) string {
	v, ok := dict.Get("V")
	if !ok {
		return ""
	}
	switch x := f.doc.raw.Resolve(v).(type) {
	case raw.StringObj:
		return fonts.DecodePDFText(x.Bytes)
	case raw.NameObj:
		if x.Val == checkOff {
			return ""
		}
		return x.Val
	}
	return ""
}

func (f *Form) options(dict *raw.DictObj, typ FieldType, kids *raw.ArrayObj) []string {
	var out []string
	switch typ {
	case FieldDropdown, FieldList:
		opt, _ := f.doc.raw.ResolveArray(resGet(dict, "Opt"))
		if opt == nil {
			return nil
		}
		for _, it := range opt.Items {
			switch x := f.doc.raw.Resolve(it).(type) {
			case raw.StringObj:
				out = append(out, fonts.DecodePDFText(x.Bytes))
			case *raw.ArrayObj:
				if x.Len() == 2 {
					if s, ok := f.doc.raw.Resolve(x.Items[0]).(raw.StringObj); ok {
						out = append(out, fonts.DecodePDFText(s.Bytes))
					}
				}
			}
		}
	case FieldRadio:
		if kids == nil {
			return nil
		}
		for _, k := range kids.Items {
			out = append(out, f.onStates(k)...)
		}
	}
	return out
}

func (f *Form) onStates(widget raw.Object) []string {
	w, ok := f.doc.raw.ResolveDict(widget)
	if !ok {
		return nil
	}
	ap, ok := f.doc.raw.ResolveDict(resGet(w, "AP"))
	if !ok {
		return nil
	}
	n, ok := f.doc.raw.ResolveDict(resGet(ap, "N"))
	if !ok {
		return nil
	}
	var out []string
	for _, k := range n.Keys() {
		if k != checkOff {
			out = append(out, k)
		}
	}
	return out
}

// Field looks up a field by fully qualified name.
func (f *Form) Field(name string) (Field, bool) {
	for _, fl := range f.Fields() {
		if fl.Name == name {
			return fl, true
		}
	}
	return Field{}, false
}

func (f *Form) lookup(name string, types ...FieldType) (Field, *raw.DictObj, error) {
	fl, ok := f.Field(name)
	if !ok {
		return Field{}, nil, fmt.Errorf("%w: %q", ErrFieldNotFound, name)
	}
	match := false
	for _, t := range types {
		if fl.Type == t {
			match = true
		}
	}
	if !match {
		return Field{}, nil, fmt.Errorf("%w: %q is %s", ErrFieldType, name, fl.Type)
	}
	dict, ok := f.doc.raw.ResolveDict(raw.RefObj{R: fl.ref})
	if !ok {
		return Field{}, nil, fmt.Errorf("%w: %q", ErrFieldNotFound, name)
	}
	return fl, dict, nil
}

// SetText sets a text field's value and regenerates its appearance.
func (f *Form) SetText(name, value string) error {
	_, dict, err := f.lookup(name, FieldText)
	if err != nil {
		return err
	}
	shown, err := fonts.EncodeWinAnsi(value)
	if err != nil {
		return fmt.Errorf("field %q: %w", name, err)
	}
	dict.Set("V", raw.Str(fonts.EncodePDFText(value)))
	if r, ok := f.rect(dict); ok {
		if err := f.fontsReady(); err != nil {
			return err
		}
		f.setTextAppearance(dict, r.Width, r.Height, shown)
	}
	return nil
}

// SetCheckbox checks or clears a checkbox.
func (f *Form) SetCheckbox(name string, checked bool) error {
	_, dict, err := f.lookup(name, FieldCheckBox)
	if err != nil {
		return err
	}
	state := checkOff
	if checked {
		state = checkOn
		if on := f.onStates(dict); len(on) > 0 {
			state = on[0]
		}
	}
	dict.Set("V", raw.NameLiteral(state))
	dict.Set("AS", raw.NameLiteral(state))
	return nil
}

// SetChoice selects value in a dropdown, list or radio group. value must be
// one of the field's options.
func (f *Form) SetChoice(name, value string) error {
	fl, dict, err := f.lookup(name, FieldDropdown, FieldList, FieldRadio)
	if err != nil {
		return err
	}
	known := false
	for _, o := range fl.Options {
		if o == value {
			known = true
		}
	}
	if !known {
		return fmt.Errorf("field %q has no option %q", name, value)
	}
	if fl.Type != FieldRadio {
		dict.Set("V", raw.Str(fonts.EncodePDFText(value)))
		if r, ok := f.rect(dict); ok {
			if err := f.fontsReady(); err != nil {
				return err
			}
			f.setTextAppearance(dict, r.Width, r.Height, []byte(value))
		}
		return nil
	}
	dict.Set("V", raw.NameLiteral(value))
	kids, _ := f.doc.raw.ResolveArray(resGet(dict, "Kids"))
	if kids == nil {
		return nil
	}
	for _, k := range kids.Items {
		w, ok := f.doc.raw.ResolveDict(k)
		if !ok {
			continue
		}
		state := checkOff
		for _, on := range f.onStates(w) {
			if on == value {
				state = on
			}
		}
		w.Set("AS", raw.NameLiteral(state))
	}
	return nil
}

func (f *Form) rect(dict *raw.DictObj) (coords.Rect, bool) {
	arr, ok := f.doc.raw.ResolveArray(resGet(dict, "Rect"))
	if !ok || arr.Len() != 4 {
		return coords.Rect{}, false
	}
	v := arr.Floats()
	if len(v) != 4 {
		return coords.Rect{}, false
	}
	return coords.Rect{X: min(v[0], v[2]), Y: min(v[1], v[3]), Width: abs(v[2] - v[0]), Height: abs(v[3] - v[1])}, true
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
