package editor

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"math"
	"strings"
	"testing"

	"github.com/wudi/pdfstudio/document"
	"github.com/wudi/pdfstudio/extractor"
	"github.com/wudi/pdfstudio/ocr"
	"github.com/wudi/pdfstudio/render"
)

// testPDF builds a 400×600 page with one line of text per entry, 40pt
// from the left edge, starting 100pt from the top.
func testPDF(t *testing.T, lines ...string) []byte {
	t.Helper()
	d := document.New()
	p := d.AddPage(400, 600)
	for i, l := range lines {
		if err := p.DrawText(l, document.TextOptions{X: 40, Y: 500 - float64(i)*40, Size: 12}); err != nil {
			t.Fatalf("draw: %v", err)
		}
	}
	d.AddPage(400, 600)
	data, err := d.Save(context.Background())
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	return data
}

func openSession(t *testing.T, cfg Config, lines ...string) (*Session, *MemoryUI) {
	t.Helper()
	ui := NewMemoryUI()
	cfg.Measurer = sixPerRune
	if cfg.OCR == nil {
		cfg.OCR = ocr.DefaultEngine()
	}
	s := NewSession(cfg, ui)
	if err := s.Open(context.Background(), testPDF(t, lines...)); err != nil {
		t.Fatalf("open: %v", err)
	}
	return s, ui
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png: %v", err)
	}
	return buf.Bytes()
}

func TestSessionOpenRendersAndExtracts(t *testing.T) {
	s, _ := openSession(t, Config{}, "Hello")
	cv := s.Canvas()
	if cv == nil || cv.Width() != 600 || cv.Height() != 900 {
		t.Fatalf("canvas = %v", cv)
	}
	runs := s.Runs()
	if len(runs) != 1 {
		t.Fatalf("runs = %+v", runs)
	}
	r := runs[0]
	if r.ID != "extracted_0" || r.Text != "Hello" {
		t.Fatalf("run = %+v", r)
	}
	if !near(r.X, 60) || !near(r.FontSize, 18) || !near(r.Y, 900-750-18) {
		t.Fatalf("run box = %+v", r)
	}
	if s.PageNumber() != 1 || s.NumPages() != 2 || s.Tool() != ToolSelect {
		t.Fatalf("page=%d pages=%d tool=%s", s.PageNumber(), s.NumPages(), s.Tool())
	}
}

func TestSessionOpenFailureKeepsState(t *testing.T) {
	s, ui := openSession(t, Config{}, "Hello")
	if err := s.Open(context.Background(), []byte("not a pdf")); err == nil {
		t.Fatalf("expected parse error")
	}
	if s.PageNumber() != 1 || len(s.Runs()) != 1 {
		t.Fatalf("state changed by failed open")
	}
	if n, _ := ui.Last(); n.Level != LevelError {
		t.Fatalf("last notification = %+v", n)
	}
	if err := s.LoadPage(context.Background(), 9); !errors.Is(err, render.ErrPageNumber) {
		t.Fatalf("expected ErrPageNumber, got %v", err)
	}
	if s.PageNumber() != 1 {
		t.Fatalf("page changed by failed load")
	}
}

func TestSessionEditTextLifecycle(t *testing.T) {
	s, ui := openSession(t, Config{}, "Hello", "World")
	if s.Overlay().Active() {
		t.Fatalf("regions exist outside edit-text")
	}
	s.SetTool(ToolEditText)
	if got := len(s.Overlay().Regions()); got != 2 {
		t.Fatalf("regions = %d", got)
	}
	run := s.Runs()[0]
	cx, cy := run.X+1, run.Y+1
	if id := s.HoverAt(cx, cy); id != run.ID {
		t.Fatalf("hover = %q", id)
	}

	if err := s.Click(cx, cy); err != nil {
		t.Fatalf("click: %v", err)
	}
	if s.Tool() != ToolSelect || s.Overlay().Active() {
		t.Fatalf("after convert: tool=%s regions=%d", s.Tool(), len(s.Overlay().Regions()))
	}
	e := s.Scene().Selected()
	if e == nil || !e.IsReplacement || e.ReplacesID != run.ID || e.Text != "Hello" || e.Color != "#000000" {
		t.Fatalf("replacement = %+v", e)
	}
	if e.Rect() != run.Rect() {
		t.Fatalf("replacement box %v, run %v", e.Rect(), run.Rect())
	}
	if !s.Scene().IsMasked(run.ID) {
		t.Fatalf("run not masked")
	}
	if !ui.PanelVisible(PanelText) || ui.ReadField(FieldText) != "Hello" {
		t.Fatalf("properties panel not filled")
	}

	err := s.ConvertRun(run.ID)
	if !errors.Is(err, ErrRunMasked) || !IsValidation(err) {
		t.Fatalf("double convert = %v", err)
	}
	if n, _ := ui.Last(); n.Level != LevelWarning {
		t.Fatalf("double convert not warned: %+v", n)
	}
	if s.Scene().Len() != 1 {
		t.Fatalf("double convert added an element")
	}

	s.SetTool(ToolEditText)
	if got := len(s.Overlay().Regions()); got != 1 {
		t.Fatalf("masked run still has a region: %d", got)
	}
	if err := s.Click(1, 1); err != nil || s.Scene().Selected() != nil {
		t.Fatalf("click on empty space: %v sel=%v", err, s.Scene().Selected())
	}

	s.SetTool(ToolSelect)
	s.PointerDown(e.X+1, e.Y+1)
	s.PointerUp()
	if s.DeleteSelected() != e {
		t.Fatalf("delete did not remove the replacement")
	}
	if s.Scene().IsMasked(run.ID) {
		t.Fatalf("run still masked after delete")
	}
	s.SetTool(ToolEditText)
	if got := len(s.Overlay().Regions()); got != 2 {
		t.Fatalf("run not hoverable again: %d regions", got)
	}
	if err := s.ConvertRun("extracted_42"); !errors.Is(err, ErrNoRun) {
		t.Fatalf("unknown run = %v", err)
	}
}

func TestSessionDragAndPanel(t *testing.T) {
	s, ui := openSession(t, Config{})
	s.SetTool(ToolShape)
	if err := s.Click(10, 10); err != nil {
		t.Fatalf("click: %v", err)
	}
	e := s.Scene().Selected()
	if e == nil || e.Kind != KindShape || e.Width != 100 || e.Height != 50 || e.FillColor != "#3498db" || e.BorderColor != "#2c3e50" {
		t.Fatalf("shape = %+v", e)
	}

	s.SetTool(ToolSelect)
	if s.Scene().Selected() != nil || ui.PanelVisible(PanelProperties) {
		t.Fatalf("switching tool should clear the selection")
	}
	s.PointerDown(20, 20)
	if !s.Dragging() {
		t.Fatalf("not dragging")
	}
	s.PointerMove(50, 60)
	if e.X != 40 || e.Y != 50 {
		t.Fatalf("dragged to (%v,%v)", e.X, e.Y)
	}
	if ui.ReadField(FieldX) != "40" || ui.ReadField(FieldY) != "50" {
		t.Fatalf("panel = %q,%q", ui.ReadField(FieldX), ui.ReadField(FieldY))
	}
	s.PointerUp()
	s.PointerMove(100, 100)
	if s.Dragging() || e.X != 40 {
		t.Fatalf("drag continued after pointer up")
	}

	s.PointerDown(500, 500)
	if s.Scene().Selected() != nil || s.Dragging() {
		t.Fatalf("click on empty canvas should clear the selection")
	}
}

func TestSessionApplyPropertiesFromFields(t *testing.T) {
	s, ui := openSession(t, Config{})
	e := s.AddText(50, 50)
	if e.Text != "New Text" || e.FontSize != 12 || e.Width != 100 || e.Height != 20 {
		t.Fatalf("new text = %+v", e)
	}

	ui.SetField(FieldFontSize, "big")
	err := s.ApplyProperties()
	if !IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if e.FontSize != 12 {
		t.Fatalf("element changed by rejected input")
	}

	ui.SetField(FieldFontSize, "24")
	ui.SetField(FieldText, "Hi")
	ui.SetField(FieldX, "70")
	if err := s.ApplyProperties(); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if e.FontSize != 24 || e.Text != "Hi" || e.X != 70 || !near(e.Width, 24) || !near(e.Height, 28.8) {
		t.Fatalf("applied = %+v", e)
	}
	if n, _ := ui.Last(); n.Level != LevelSuccess {
		t.Fatalf("last notification = %+v", n)
	}
}

func TestSessionShortcuts(t *testing.T) {
	s, _ := openSession(t, Config{})
	orig := s.AddText(10, 10)
	if s.KeyDown("v", true) {
		t.Fatalf("paste with empty clipboard was handled")
	}
	if !s.KeyDown("c", true) || !s.KeyDown("v", true) {
		t.Fatalf("copy/paste not handled")
	}
	p := s.Scene().Selected()
	if p == orig || p.X != 30 || p.Y != 30 || p.ID == orig.ID {
		t.Fatalf("pasted = %+v", p)
	}
	if !s.KeyDown("Delete", false) || s.Scene().Len() != 1 {
		t.Fatalf("delete not handled")
	}
	if s.KeyDown("Delete", false) {
		t.Fatalf("delete without selection was handled")
	}
}

func TestSessionAddCircleRejectsBadDiameter(t *testing.T) {
	s, ui := openSession(t, Config{})
	for _, d := range []float64{-30, math.NaN(), math.Inf(1)} {
		e, err := s.AddCircle(10, 10, d)
		if e != nil || !IsValidation(err) {
			t.Fatalf("diameter %v: element %+v, err %v", d, e, err)
		}
		if n, _ := ui.Last(); n.Level != LevelWarning {
			t.Fatalf("diameter %v not warned: %+v", d, n)
		}
	}
	if s.Scene().Len() != 0 {
		t.Fatalf("rejected circles were added")
	}
	e, err := s.AddCircle(10, 10, 0)
	if err != nil || e.Width != 0 || e.Shape != ShapeCircle {
		t.Fatalf("zero circle = %+v, %v", e, err)
	}
}

func TestSessionDeletePastedReplacementKeepsMask(t *testing.T) {
	s, _ := openSession(t, Config{}, "Hello")
	run := s.Runs()[0]
	if err := s.ConvertRun(run.ID); err != nil {
		t.Fatalf("convert: %v", err)
	}
	orig := s.Scene().Selected()
	if !s.CopySelected() {
		t.Fatalf("copy failed")
	}
	pasted := s.Paste()
	if pasted == nil || !pasted.IsReplacement || pasted.ReplacesID != run.ID {
		t.Fatalf("pasted = %+v", pasted)
	}
	if s.DeleteSelected() != pasted {
		t.Fatalf("deleted the wrong element")
	}
	if !s.Scene().IsMasked(run.ID) || s.Scene().Len() != 1 {
		t.Fatalf("masked = %v, elements = %d", s.Scene().IsMasked(run.ID), s.Scene().Len())
	}
	s.Scene().Select(orig)
	s.DeleteSelected()
	if s.Scene().IsMasked(run.ID) {
		t.Fatalf("run still masked after its last replacement was deleted")
	}
}

func TestSessionSaveReportsUnencodableText(t *testing.T) {
	s, ui := openSession(t, Config{}, "Hello")
	e := s.AddText(50, 50)
	e.Text = "日本"
	out, err := s.Save(context.Background())
	if !errors.Is(err, document.ErrUnencodable) || out != nil {
		t.Fatalf("save = %d bytes, %v", len(out), err)
	}
	if n, _ := ui.Last(); n.Level != LevelError {
		t.Fatalf("failure not reported: %+v", n)
	}
	if s.Scene().Len() != 1 || s.Scene().Selected() != e {
		t.Fatalf("scene changed by a failed save")
	}
}

func TestSessionAddImage(t *testing.T) {
	s, ui := openSession(t, Config{})
	e, err := s.AddImage(pngBytes(t, 300, 100), 5, 5)
	if err != nil {
		t.Fatalf("add image: %v", err)
	}
	if e.Width != 200 || e.Height != 100 || e.NaturalWidth != 300 {
		t.Fatalf("image = %+v", e)
	}
	if _, err := s.AddImage([]byte("GIF89a"), 0, 0); !errors.Is(err, document.ErrUnsupportedImage) {
		t.Fatalf("expected ErrUnsupportedImage, got %v", err)
	}

	ui.Images = [][]byte{pngBytes(t, 10, 20)}
	s.SetTool(ToolImage)
	if err := s.Click(1, 2); err != nil {
		t.Fatalf("click: %v", err)
	}
	if e := s.Scene().Selected(); e == nil || e.Kind != KindImage || e.X != 1 || e.Height != 20 {
		t.Fatalf("picked image = %+v", e)
	}
	if err := s.SetToolName("lasso"); !IsValidation(err) {
		t.Fatalf("bad tool name = %v", err)
	}
}

func TestSessionSaveEmptyIsRoundTrip(t *testing.T) {
	s, _ := openSession(t, Config{}, "Hello")
	s.SetTool(ToolEditText)
	out, err := s.Save(context.Background())
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	src := testPDF(t, "Hello")
	before := pageContent(t, src)
	after := pageContent(t, out)
	if !bytes.Equal(before, after) {
		t.Fatalf("content changed:\nbefore %q\nafter  %q", before, after)
	}
}

func TestSessionSaveWritesScene(t *testing.T) {
	s, _ := openSession(t, Config{}, "Hello")
	s.AddText(50, 50)
	run := s.Runs()[0]
	if err := s.ConvertRun(run.ID); err != nil {
		t.Fatalf("convert: %v", err)
	}
	ctx := context.Background()
	out, err := s.Save(ctx)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	again, err := s.Save(ctx)
	if err != nil {
		t.Fatalf("second save: %v", err)
	}
	if !bytes.Equal(pageContent(t, out), pageContent(t, again)) {
		t.Fatalf("repeated saves drew different content")
	}

	doc, err := document.Load(ctx, out)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	ext, err := extractor.New(doc, extractor.Config{})
	if err != nil {
		t.Fatalf("extractor: %v", err)
	}
	items, err := ext.TextItems(ctx, 0)
	if err != nil {
		t.Fatalf("text: %v", err)
	}
	var got []string
	for _, it := range items {
		got = append(got, it.Str)
	}
	joined := strings.Join(got, "|")
	if !strings.Contains(joined, "New Text") || strings.Count(joined, "Hello") != 2 {
		t.Fatalf("page text = %q", joined)
	}
	for _, it := range items {
		if it.Str == "New Text" {
			// (900 - 50 - 20) / 1.5
			if !near(it.Transform[5], 830/1.5) || !near(it.Transform[4], 50/1.5) {
				t.Fatalf("new text at %v", it.Transform)
			}
		}
	}
}

func TestSessionOCRFallback(t *testing.T) {
	engine := &fakeOCR{words: []ocr.TextWord{{Text: "scanned", Bounds: ocr.Region{X: 10, Y: 20, Width: 60, Height: 15}}}}
	s, _ := openSession(t, Config{OCR: engine, OCRLanguages: []string{"deu"}, OCRPageSegMode: 6})
	if engine.calls != 1 {
		t.Fatalf("ocr calls = %d", engine.calls)
	}
	if in := engine.last; in.DPI != 108 || in.Metadata[ocr.VarPageSegMode] != "6" || len(in.Languages) != 1 || in.Languages[0] != "deu" {
		t.Fatalf("ocr input = %+v", in)
	}
	runs := s.Runs()
	if len(runs) != 1 || runs[0].ID != "ocr_0" || runs[0].Text != "scanned" {
		t.Fatalf("runs = %+v", runs)
	}

	s2, _ := openSession(t, Config{OCR: engine}, "Typed")
	if engine.calls != 1 || s2.Runs()[0].ID != "extracted_0" {
		t.Fatalf("ocr used on a page with a text layer")
	}
}

type fakeOCR struct {
	words []ocr.TextWord
	calls int
	last  ocr.Input
}

func (f *fakeOCR) Name() string { return "fake" }

func (f *fakeOCR) Recognize(_ context.Context, in ocr.Input) (ocr.Result, error) {
	f.calls++
	f.last = in
	if in.Format != ocr.ImageFormatPNG || len(in.Image) == 0 {
		return ocr.Result{}, errors.New("bad input")
	}
	return ocr.Result{InputID: in.ID, Blocks: []ocr.TextBlock{{Lines: []ocr.TextLine{{Words: f.words}}}}}, nil
}

func pageContent(t *testing.T, data []byte) []byte {
	t.Helper()
	doc, err := document.Load(context.Background(), data)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	p, err := doc.Page(0)
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	b, err := p.ContentBytes(context.Background())
	if err != nil {
		t.Fatalf("content: %v", err)
	}
	return b
}

func TestSessionRedrawShowsSelectionAroundReplacement(t *testing.T) {
	s, _ := openSession(t, Config{}, "Hello")
	run := s.Runs()[0]
	if err := s.ConvertRun(run.ID); err != nil {
		t.Fatalf("convert: %v", err)
	}
	// The outline is 2px wide, centred 2px outside the replacement, and
	// its first dash starts at the top-left corner.
	x, y := int(run.X)-1, int(run.Y)-3
	if got := s.Canvas().At(x, y); got != selectionColor {
		t.Fatalf("selection at (%d,%d) = %v", x, y, got)
	}
}
