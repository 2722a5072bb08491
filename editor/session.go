package editor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"math"
	"strconv"
	"strings"

	"github.com/wudi/pdfstudio/canvas"
	"github.com/wudi/pdfstudio/coords"
	"github.com/wudi/pdfstudio/document"
	"github.com/wudi/pdfstudio/fonts"
	"github.com/wudi/pdfstudio/observability"
	"github.com/wudi/pdfstudio/ocr"
	"github.com/wudi/pdfstudio/recovery"
	"github.com/wudi/pdfstudio/render"
)

// Config tunes a Session. Zero values take the defaults noted per field.
type Config struct {
	Scale           float64 // 1.5
	PasteOffset     float64 // 20
	MaskMargin      float64 // 2
	SelectionMargin float64 // 2
	// OverlayOffset places the canvas inside the shell's container
	// (padding plus centering). Hit regions live in container space.
	OverlayOffset coords.Point

	DefaultText       string  // "New Text"
	DefaultFontSize   float64 // 12
	DefaultTextColor  string  // #000000
	DefaultTextWidth  float64 // 100
	DefaultTextHeight float64 // 20
	LineHeight        float64 // 1.2

	ShapeWidth  float64 // 100
	ShapeHeight float64 // 50
	ShapeFill   string  // #3498db
	ShapeBorder string  // #2c3e50

	MaxImageSize float64 // 200

	ExportCircles bool
	ExportImages  bool

	Measurer fonts.Measurer
	Faces    *fonts.FaceCache
	// OCR finds runs on pages without a text layer. Defaults to
	// ocr.DefaultEngine().
	OCR          ocr.Engine
	OCRLanguages []string
	// OCRPageSegMode is passed to Tesseract when positive.
	OCRPageSegMode int
	Recovery       recovery.Strategy
	Logger         observability.Logger
}

func (c Config) withDefaults() Config {
	def := func(v *float64, d float64) {
		if *v <= 0 {
			*v = d
		}
	}
	def(&c.Scale, 1.5)
	def(&c.PasteOffset, 20)
	def(&c.MaskMargin, 2)
	def(&c.SelectionMargin, 2)
	def(&c.DefaultFontSize, 12)
	def(&c.DefaultTextWidth, 100)
	def(&c.DefaultTextHeight, 20)
	def(&c.LineHeight, 1.2)
	def(&c.ShapeWidth, 100)
	def(&c.ShapeHeight, 50)
	def(&c.MaxImageSize, 200)
	if c.DefaultText == "" {
		c.DefaultText = "New Text"
	}
	if c.DefaultTextColor == "" {
		c.DefaultTextColor = "#000000"
	}
	if c.ShapeFill == "" {
		c.ShapeFill = "#3498db"
	}
	if c.ShapeBorder == "" {
		c.ShapeBorder = "#2c3e50"
	}
	if c.Measurer == nil {
		c.Measurer = fonts.DefaultMeasurer()
	}
	if c.OCR == nil {
		c.OCR = ocr.DefaultEngine()
	}
	c.Logger = observability.OrNop(c.Logger)
	return c
}

// pageState is everything derived from loading one page.
type pageState struct {
	number     int
	vp         render.Viewport
	space      coords.Space
	canvas     *canvas.Canvas
	background *image.RGBA
	runs       []TextRun
}

// Session is one interactive editing session over a loaded document. All
// handlers are meant to be called from a single goroutine, the shell's
// event loop; Session is not safe for concurrent use.
type Session struct {
	cfg     Config
	ui      UI
	log     observability.Logger
	painter Painter

	source []byte
	doc    *render.Document
	page   *pageState

	scene      *Scene
	overlay    *Overlay
	tool       Tool
	dragging   bool
	dragOffset coords.Point
}

// NewSession returns a session with no document. A nil ui keeps fields in
// memory.
func NewSession(cfg Config, ui UI) *Session {
	cfg = cfg.withDefaults()
	if ui == nil {
		ui = NewMemoryUI()
	}
	return &Session{
		cfg:     cfg,
		ui:      ui,
		log:     cfg.Logger,
		painter: Painter{MaskMargin: cfg.MaskMargin, SelectionMargin: cfg.SelectionMargin, Logger: cfg.Logger},
		scene:   NewScene(cfg.PasteOffset),
		overlay: NewOverlay(cfg.OverlayOffset),
		tool:    ToolSelect,
	}
}

func (s *Session) Config() Config    { return s.cfg }
func (s *Session) UI() UI            { return s.ui }
func (s *Session) Scene() *Scene     { return s.scene }
func (s *Session) Overlay() *Overlay { return s.overlay }
func (s *Session) Tool() Tool        { return s.tool }
func (s *Session) Dragging() bool    { return s.dragging }

// Canvas is the editing surface, nil until a page is loaded.
func (s *Session) Canvas() *canvas.Canvas {
	if s.page == nil {
		return nil
	}
	return s.page.canvas
}

// Runs returns the text runs of the loaded page.
func (s *Session) Runs() []TextRun {
	if s.page == nil {
		return nil
	}
	return append([]TextRun(nil), s.page.runs...)
}

// PageNumber is the 1-based loaded page, or 0.
func (s *Session) PageNumber() int {
	if s.page == nil {
		return 0
	}
	return s.page.number
}

// NumPages reports the page count of the open document.
func (s *Session) NumPages() int {
	if s.doc == nil {
		return 0
	}
	return s.doc.NumPages()
}

// Space maps the loaded page's canvas to its document coordinates.
func (s *Session) Space() coords.Space {
	if s.page == nil {
		return coords.Space{Scale: s.cfg.Scale}
	}
	return s.page.space
}

// Open parses data and loads its first page. On failure the session keeps
// whatever it had before.
func (s *Session) Open(ctx context.Context, data []byte) error {
	doc, err := render.Open(ctx, data, render.Options{
		Logger:   s.log,
		Recovery: s.cfg.Recovery,
		Faces:    s.cfg.Faces,
	})
	if err != nil {
		return s.fail("Error loading PDF", err)
	}
	ps, err := s.loadPage(ctx, doc, 1)
	if err != nil {
		return s.fail("Error loading PDF page", err)
	}
	s.source = append([]byte(nil), data...)
	s.doc = doc
	s.commitPage(ps)
	s.log.Info("document opened", observability.Int("pages", doc.NumPages()), observability.Int("bytes", len(data)))
	return nil
}

// LoadPage renders page n (1-based) as the new background and replaces
// runs and scene.
func (s *Session) LoadPage(ctx context.Context, n int) error {
	if s.doc == nil {
		return s.fail("No PDF loaded", ErrNoPage)
	}
	ps, err := s.loadPage(ctx, s.doc, n)
	if err != nil {
		return s.fail("Error loading PDF page", err)
	}
	s.commitPage(ps)
	return nil
}

func (s *Session) loadPage(ctx context.Context, doc *render.Document, n int) (*pageState, error) {
	page, err := doc.Page(n)
	if err != nil {
		return nil, err
	}
	vp := page.Viewport(s.cfg.Scale)
	cv, err := doc.NewCanvas(vp)
	if err != nil {
		return nil, err
	}
	if err := page.Render(ctx, cv, vp); err != nil {
		return nil, err
	}
	bg := image.NewRGBA(cv.Image().Bounds())
	draw.Draw(bg, bg.Bounds(), cv.Image(), image.Point{}, draw.Src)

	items, err := page.TextContent(ctx, vp)
	if err != nil {
		return nil, err
	}
	runs := RunsFromTextItems(items, vp.Height)
	if len(runs) == 0 && !ocr.IsNoop(s.cfg.OCR) {
		runs = s.recognize(ctx, n, bg)
	}
	return &pageState{
		number:     n,
		vp:         vp,
		space:      coords.Space{Scale: vp.Scale, PageHeight: vp.Height},
		canvas:     cv,
		background: bg,
		runs:       runs,
	}, nil
}

// recognize runs OCR over the rendered page. Failures leave the page
// without runs.
func (s *Session) recognize(ctx context.Context, n int, img image.Image) []TextRun {
	in, err := ocr.InputFromImage(n-1, img,
		ocr.WithLanguages(s.cfg.OCRLanguages...),
		ocr.WithDPI(int(72*s.cfg.Scale+0.5)),
		ocr.WithPageSegMode(s.cfg.OCRPageSegMode),
	)
	if err != nil {
		s.log.Warn("ocr input", observability.Int("page", n), observability.Error("error", err))
		return nil
	}
	res, err := ocr.RecognizeAll(ctx, s.cfg.OCR, []ocr.Input{in})
	if err != nil || len(res) == 0 {
		s.log.Warn("ocr failed", observability.String("engine", s.cfg.OCR.Name()), observability.Int("page", n), observability.Error("error", err))
		return nil
	}
	runs := RunsFromOCR(res[0].Words())
	s.log.Debug("ocr runs", observability.Int("page", n), observability.Int("runs", len(runs)))
	return runs
}

func (s *Session) commitPage(ps *pageState) {
	s.page = ps
	s.scene.Reset()
	s.dragging = false
	s.hidePanels()
	s.syncOverlay()
	s.Redraw()
	s.log.Debug("page loaded",
		observability.Int("page", ps.number),
		observability.Float("width", ps.vp.Width),
		observability.Float("height", ps.vp.Height),
		observability.Int("runs", len(ps.runs)))
}

// Redraw repaints the canvas from the background, masks and scene.
func (s *Session) Redraw() {
	if s.page == nil {
		return
	}
	s.painter.Redraw(s.page.canvas, s.page.background, s.scene, s.page.runs)
}

// SetTool switches mode. The selection is cleared; hit regions exist only
// while edit-text is active.
func (s *Session) SetTool(t Tool) {
	s.tool = t
	s.dragging = false
	s.clearSelection()
	if t == ToolEditText {
		s.syncOverlay()
		s.ui.Notify(LevelInfo, "Click on existing text to edit it")
		return
	}
	s.overlay.Clear()
}

// SetToolName is SetTool for a tool given by name.
func (s *Session) SetToolName(name string) error {
	t, err := ParseTool(name)
	if err != nil {
		return s.warn(err)
	}
	s.SetTool(t)
	return nil
}

func (s *Session) syncOverlay() {
	if s.tool != ToolEditText || s.page == nil {
		s.overlay.Clear()
		return
	}
	bounds := coords.Rect{Width: s.page.vp.Width, Height: s.page.vp.Height}
	s.overlay.Sync(s.page.runs, s.scene.IsMasked, bounds)
}

// PointerDown starts a drag when the select tool hits an element and
// clears the selection otherwise.
func (s *Session) PointerDown(x, y float64) {
	if s.tool != ToolSelect {
		return
	}
	e := s.scene.ElementAt(x, y)
	if e == nil {
		s.clearSelection()
		return
	}
	s.selectElement(e)
	s.dragging = true
	s.dragOffset = coords.Point{X: x - e.X, Y: y - e.Y}
}

// PointerMove drags the selection.
func (s *Session) PointerMove(x, y float64) {
	if !s.dragging || s.tool != ToolSelect {
		return
	}
	e := s.scene.Selected()
	if e == nil {
		return
	}
	e.X = x - s.dragOffset.X
	e.Y = y - s.dragOffset.Y
	s.Redraw()
	s.updatePanel()
}

// PointerUp ends any drag.
func (s *Session) PointerUp() { s.dragging = false }

// Click acts for the current tool at canvas point (x, y).
func (s *Session) Click(x, y float64) error {
	switch s.tool {
	case ToolText:
		s.AddText(x, y)
	case ToolShape:
		s.AddShape(x, y)
	case ToolImage:
		picker, ok := s.ui.(ImagePicker)
		if !ok {
			return s.warn(invalid("image", "no image source available"))
		}
		data, err := picker.PickImage()
		if err != nil {
			return s.warn(&ValidationError{Field: "image", Reason: err.Error(), Err: err})
		}
		_, err = s.AddImage(data, x, y)
		return err
	case ToolEditText:
		cx, cy := s.overlay.ToContainer(x, y)
		if r, ok := s.overlay.RegionAt(cx, cy); ok {
			return s.ConvertRun(r.RunID)
		}
		s.clearSelection()
	}
	return nil
}

// HoverAt highlights the hit region under canvas point (x, y) and returns
// its run ID.
func (s *Session) HoverAt(x, y float64) string {
	if s.tool != ToolEditText {
		return ""
	}
	return s.overlay.Hover(s.overlay.ToContainer(x, y))
}

// KeyDown handles the editor shortcuts and reports whether key was used.
func (s *Session) KeyDown(key string, ctrl bool) bool {
	switch {
	case key == "Delete" && s.scene.Selected() != nil:
		s.DeleteSelected()
	case ctrl && strings.EqualFold(key, "c") && s.scene.Selected() != nil:
		s.CopySelected()
	case ctrl && strings.EqualFold(key, "v") && s.scene.HasClipboard():
		s.Paste()
	default:
		return false
	}
	return true
}

func (s *Session) AddText(x, y float64) *Element {
	e := &Element{
		Kind:     KindText,
		X:        x,
		Y:        y,
		Text:     s.cfg.DefaultText,
		FontSize: s.cfg.DefaultFontSize,
		Color:    s.cfg.DefaultTextColor,
		Width:    s.cfg.DefaultTextWidth,
		Height:   s.cfg.DefaultTextHeight,
	}
	s.add(e, "Text element added")
	return e
}

func (s *Session) AddShape(x, y float64) *Element {
	e := &Element{
		Kind:        KindShape,
		Shape:       ShapeRectangle,
		X:           x,
		Y:           y,
		Width:       s.cfg.ShapeWidth,
		Height:      s.cfg.ShapeHeight,
		FillColor:   s.cfg.ShapeFill,
		BorderColor: s.cfg.ShapeBorder,
	}
	s.add(e, "Shape element added")
	return e
}

// AddImage decodes data and places it at (x, y), each side clamped to
// MaxImageSize.
func (s *Session) AddImage(data []byte, x, y float64) (*Element, error) {
	img, format, err := canvas.DecodeImage(data)
	if err != nil {
		return nil, s.warn(&ValidationError{Field: "image", Reason: "unsupported image", Err: document.ErrUnsupportedImage})
	}
	b := img.Bounds()
	e := &Element{
		Kind:          KindImage,
		X:             x,
		Y:             y,
		Width:         math.Min(float64(b.Dx()), s.cfg.MaxImageSize),
		Height:        math.Min(float64(b.Dy()), s.cfg.MaxImageSize),
		Image:         img,
		ImageData:     append([]byte(nil), data...),
		NaturalWidth:  b.Dx(),
		NaturalHeight: b.Dy(),
	}
	s.add(e, "Image element added")
	s.log.Debug("image decoded", observability.String("format", format), observability.Int("width", b.Dx()), observability.Int("height", b.Dy()))
	return e, nil
}

// AddCircle places a circle shape; the toolbar only creates rectangles.
// The diameter must be a finite, non-negative number.
func (s *Session) AddCircle(x, y, diameter float64) (*Element, error) {
	if diameter < 0 || math.IsNaN(diameter) || math.IsInf(diameter, 0) {
		return nil, s.warn(invalid("diameter", "must be a non-negative number, got %v", diameter))
	}
	e := &Element{
		Kind:        KindShape,
		Shape:       ShapeCircle,
		X:           x,
		Y:           y,
		Width:       diameter,
		Height:      diameter,
		FillColor:   s.cfg.ShapeFill,
		BorderColor: s.cfg.ShapeBorder,
	}
	s.add(e, "Shape element added")
	return e, nil
}

func (s *Session) add(e *Element, msg string) {
	s.scene.Add(e)
	s.selectElement(e)
	s.ui.Notify(LevelSuccess, msg)
}

// ConvertRun replaces an existing text run with an editable text element
// and masks the run. A run can be converted once until its replacement is
// deleted.
func (s *Session) ConvertRun(runID string) error {
	if s.page == nil {
		return s.fail("No PDF loaded", ErrNoPage)
	}
	var run *TextRun
	for i := range s.page.runs {
		if s.page.runs[i].ID == runID {
			run = &s.page.runs[i]
			break
		}
	}
	if run == nil {
		return s.warn(&ValidationError{Field: "run", Reason: fmt.Sprintf("unknown run %q", runID), Err: ErrNoRun})
	}
	if s.scene.IsMasked(runID) {
		return s.warn(&ValidationError{Field: "run", Reason: fmt.Sprintf("run %q is already being edited", runID), Err: ErrRunMasked})
	}
	e := &Element{
		Kind:          KindText,
		X:             run.X,
		Y:             run.Y,
		Width:         run.Width,
		Height:        run.Height,
		Text:          run.Text,
		FontSize:      run.FontSize,
		Color:         "#000000",
		IsReplacement: true,
		ReplacesID:    runID,
	}
	s.scene.Add(e)
	s.scene.Mask(runID)
	s.SetTool(ToolSelect)
	s.selectElement(e)
	s.syncOverlay()
	s.ui.Notify(LevelSuccess, "Text converted to editable element")
	s.log.Debug("run converted", observability.String("run", runID), observability.Int64("element", e.ID))
	return nil
}

// DeleteSelected removes the selection, unmasking the run of a
// replacement.
func (s *Session) DeleteSelected() *Element {
	e := s.scene.DeleteSelected()
	if e == nil {
		return nil
	}
	s.clearSelection()
	s.syncOverlay()
	s.ui.Notify(LevelSuccess, "Element deleted")
	return e
}

func (s *Session) CopySelected() bool {
	if !s.scene.CopySelected() {
		return false
	}
	s.ui.Notify(LevelSuccess, "Element copied")
	return true
}

func (s *Session) Paste() *Element {
	e := s.scene.Paste()
	if e == nil {
		return nil
	}
	s.selectElement(e)
	s.ui.Notify(LevelSuccess, "Element pasted")
	return e
}

// ApplyProperties reads the properties panel into the selection. Nothing
// changes unless every field parses and validates.
func (s *Session) ApplyProperties() error {
	e := s.scene.Selected()
	if e == nil {
		return nil
	}
	p, err := s.readPatch(e)
	if err != nil {
		return s.warn(err)
	}
	if err := s.scene.ApplyProperties(p, s.cfg.Measurer, s.cfg.LineHeight); err != nil {
		return s.warn(err)
	}
	s.updatePanel()
	s.Redraw()
	s.ui.Notify(LevelSuccess, "Properties applied")
	return nil
}

func (s *Session) readPatch(e *Element) (Patch, error) {
	var p Patch
	var err error
	num := func(field string) *float64 {
		if err != nil {
			return nil
		}
		raw := strings.TrimSpace(s.ui.ReadField(field))
		v, perr := strconv.ParseFloat(raw, 64)
		if perr != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			err = &ValidationError{Field: field, Reason: fmt.Sprintf("not a number: %q", raw), Err: perr}
			return nil
		}
		return &v
	}
	str := func(field string) *string {
		v := s.ui.ReadField(field)
		return &v
	}
	p.X = num(FieldX)
	p.Y = num(FieldY)
	switch e.Kind {
	case KindText:
		p.Text = str(FieldText)
		p.FontSize = num(FieldFontSize)
		p.Color = str(FieldTextColor)
	case KindImage:
		p.Width = num(FieldImageWidth)
		p.Height = num(FieldImageHeight)
	case KindShape:
		p.Width = num(FieldShapeWidth)
		p.Height = num(FieldShapeHeight)
		p.FillColor = str(FieldShapeFill)
		p.BorderColor = str(FieldShapeBorder)
	}
	return p, err
}

// Save exports the scene into a fresh copy of the opened document, so
// saving twice never stacks the same drawing.
func (s *Session) Save(ctx context.Context) ([]byte, error) {
	if s.doc == nil {
		return nil, s.fail("No PDF loaded", ErrNoPage)
	}
	doc, err := document.LoadWithOptions(ctx, s.source, document.Options{Recovery: s.cfg.Recovery, Logger: s.log})
	if err != nil {
		return nil, s.fail("Error exporting PDF", err)
	}
	res, err := s.SaveTo(ctx, DocumentTarget{Doc: doc})
	if err != nil {
		return nil, err
	}
	return res.Data, nil
}

// SaveTo exports the scene of the loaded page into target.
func (s *Session) SaveTo(ctx context.Context, target PageTarget) (*ExportResult, error) {
	if s.page == nil {
		return nil, s.fail("No PDF loaded", ErrNoPage)
	}
	x := &Exporter{
		Space: s.page.space,
		Scene: s.scene,
		Runs:  s.page.runs,
		Options: ExportOptions{
			PageIndex:      s.page.number - 1,
			IncludeCircles: s.cfg.ExportCircles,
			IncludeImages:  s.cfg.ExportImages,
		},
		Logger: s.log,
	}
	res, err := x.Export(ctx, target)
	if err != nil {
		return nil, s.fail("Error exporting PDF", err)
	}
	s.ui.Notify(LevelSuccess, "PDF saved")
	return res, nil
}

func (s *Session) selectElement(e *Element) {
	s.scene.Select(e)
	s.updatePanel()
	s.Redraw()
}

func (s *Session) clearSelection() {
	s.scene.Select(nil)
	s.hidePanels()
	s.Redraw()
	if s.tool != ToolEditText {
		s.overlay.Clear()
	}
}

func (s *Session) hidePanels() {
	s.ui.ShowPanel(PanelProperties, false)
}

func (s *Session) updatePanel() {
	e := s.scene.Selected()
	if e == nil {
		s.hidePanels()
		return
	}
	s.ui.ShowPanel(PanelProperties, true)
	s.ui.ShowPanel(PanelText, e.Kind == KindText)
	s.ui.ShowPanel(PanelImage, e.Kind == KindImage)
	s.ui.ShowPanel(PanelShape, e.Kind == KindShape)
	switch e.Kind {
	case KindText:
		s.ui.SetField(FieldText, e.Text)
		s.ui.SetField(FieldFontSize, formatNum(e.FontSize))
		s.ui.SetField(FieldTextColor, e.Color)
	case KindImage:
		s.ui.SetField(FieldImageWidth, formatNum(e.Width))
		s.ui.SetField(FieldImageHeight, formatNum(e.Height))
	case KindShape:
		s.ui.SetField(FieldShapeWidth, formatNum(e.Width))
		s.ui.SetField(FieldShapeHeight, formatNum(e.Height))
		s.ui.SetField(FieldShapeFill, e.FillColor)
		s.ui.SetField(FieldShapeBorder, e.BorderColor)
	}
	s.ui.SetField(FieldX, formatNum(math.Round(e.X)))
	s.ui.SetField(FieldY, formatNum(math.Round(e.Y)))
}

func formatNum(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

// warn reports a validation problem to the user and returns it.
func (s *Session) warn(err error) error {
	s.log.Debug("rejected input", observability.Error("error", err))
	s.ui.Notify(LevelWarning, err.Error())
	return err
}

// fail reports an operation that could not complete.
func (s *Session) fail(msg string, err error) error {
	if IsValidation(err) {
		return s.warn(err)
	}
	level := LevelError
	if errors.Is(err, ErrNoPage) {
		level = LevelWarning
	}
	s.log.Error(strings.ToLower(msg), observability.Error("error", err))
	s.ui.Notify(level, msg)
	return err
}
