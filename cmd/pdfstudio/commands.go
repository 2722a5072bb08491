package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/wudi/pdfstudio/creator"
	"github.com/wudi/pdfstudio/editor"
	"github.com/wudi/pdfstudio/extractor"
	"github.com/wudi/pdfstudio/observability"
	"github.com/wudi/pdfstudio/render"
	"github.com/wudi/pdfstudio/scripting"
	"github.com/wudi/pdfstudio/tools"
)

func (e *env) tools() *tools.Tools {
	return e.toolsWith(false)
}

func (e *env) toolsWith(optimize bool) *tools.Tools {
	return tools.New(tools.Options{Recovery: e.recovery, Optimize: optimize, Logger: e.log})
}

func runCreate(ctx context.Context, e *env, args []string) error {
	fs := e.flagSet("create", "(-spec file.json | -markdown file.md | -html file.html)")
	specPath := fs.String("spec", "", "JSON document spec")
	mdPath := fs.String("markdown", "", "Markdown source to flow onto pages")
	htmlPath := fs.String("html", "", "HTML source to flow onto pages")
	title := fs.String("title", "", "Document title for -markdown and -html")
	fontSize := fs.Float64("font-size", 0, "Body font size for -markdown and -html")
	out := fs.String("o", "document.pdf", "Output path, - for stdout")
	if err := parse(fs, args); err != nil {
		return err
	}
	set := 0
	for _, p := range []string{*specPath, *mdPath, *htmlPath} {
		if p != "" {
			set++
		}
	}
	if set != 1 {
		return usagef("create: exactly one of -spec, -markdown or -html is required")
	}

	c := creator.New(creator.Options{Logger: e.log})
	flow := creator.FlowOptions{Title: *title, FontSize: *fontSize}
	var (
		data []byte
		err  error
	)
	switch {
	case *specPath != "":
		raw, rerr := readFile(*specPath)
		if rerr != nil {
			return rerr
		}
		spec, serr := loadCreateSpec(raw, filepath.Dir(*specPath))
		if serr != nil {
			return serr
		}
		data, err = c.Create(ctx, spec)
	case *mdPath != "":
		src, rerr := readFile(*mdPath)
		if rerr != nil {
			return rerr
		}
		data, err = c.FromMarkdown(ctx, string(src), flow)
	default:
		src, rerr := readFile(*htmlPath)
		if rerr != nil {
			return rerr
		}
		data, err = c.FromHTML(ctx, string(src), flow)
	}
	if err != nil {
		return err
	}
	return e.writeOutput(*out, data)
}

func runForm(ctx context.Context, e *env, args []string) error {
	fs := e.flagSet("form", "-spec form.json")
	specPath := fs.String("spec", "", "JSON form spec")
	out := fs.String("o", "form.pdf", "Output path, - for stdout")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *specPath == "" {
		return usagef("form: -spec is required")
	}
	raw, err := readFile(*specPath)
	if err != nil {
		return err
	}
	spec, err := loadFormSpec(raw)
	if err != nil {
		return err
	}
	data, err := creator.New(creator.Options{Logger: e.log}).CreateForm(ctx, spec)
	if err != nil {
		return err
	}
	return e.writeOutput(*out, data)
}

func runModify(ctx context.Context, e *env, args []string) error {
	fs := e.flagSet("modify", "[flags] <pdf>")
	text := fs.String("text", "", "Text to stamp")
	page := fs.Int("page", 1, "Page for -text (1-based)")
	x := fs.Float64("x", 100, "Text x position")
	y := fs.Float64("y", 100, "Text y position")
	size := fs.Float64("size", 12, "Text size")
	addPage := fs.Bool("add-page", false, "Append a blank A4 page")
	removePage := fs.Int("remove-page", 0, "Remove this page (1-based)")
	out := fs.String("o", "modified.pdf", "Output path, - for stdout")
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return usagef("modify: expected one input pdf")
	}
	if *text == "" && !*addPage && *removePage == 0 {
		return usagef("modify: nothing to do; use -text, -add-page or -remove-page")
	}
	data, err := readFile(fs.Arg(0))
	if err != nil {
		return err
	}
	doc, err := e.tools().Load(ctx, data)
	if err != nil {
		return err
	}
	if *text != "" {
		if err := tools.AddText(doc, tools.TextStamp{Page: *page, Text: *text, X: *x, Y: *y, Size: *size}); err != nil {
			return err
		}
	}
	if *removePage != 0 {
		if err := tools.RemovePage(doc, *removePage); err != nil {
			return err
		}
	}
	if *addPage {
		tools.AddPage(doc)
	}
	result, err := doc.Save(ctx)
	if err != nil {
		return err
	}
	return e.writeOutput(*out, result)
}

func runMerge(ctx context.Context, e *env, args []string) error {
	fs := e.flagSet("merge", "[flags] <pdf> <pdf> [pdf...]")
	out := fs.String("o", tools.MergedName, "Output path, - for stdout")
	optimize := fs.Bool("optimize", true, "Combine duplicate fonts, images and streams")
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() < 2 {
		return usageError{tools.ErrTooFewInputs}
	}
	inputs := make([][]byte, 0, fs.NArg())
	for _, p := range fs.Args() {
		data, err := readFile(p)
		if err != nil {
			return err
		}
		inputs = append(inputs, data)
	}
	data, err := e.toolsWith(*optimize).Merge(ctx, inputs)
	if err != nil {
		return err
	}
	return e.writeOutput(*out, data)
}

func runSplit(ctx context.Context, e *env, args []string) error {
	fs := e.flagSet("split", "-from N -to M <pdf>")
	from := fs.Int("from", 1, "First page (1-based)")
	to := fs.Int("to", 1, "Last page (inclusive)")
	out := fs.String("o", "", "Output path, - for stdout (default split-pages-FROM-TO.pdf)")
	optimize := fs.Bool("optimize", true, "Combine duplicate fonts, images and streams")
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return usagef("split: expected one input pdf")
	}
	data, err := readFile(fs.Arg(0))
	if err != nil {
		return err
	}
	result, err := e.toolsWith(*optimize).Split(ctx, data, *from, *to)
	if err != nil {
		return err
	}
	path := *out
	if path == "" {
		path = tools.SplitName(*from, *to)
	}
	return e.writeOutput(path, result)
}

func runInfo(ctx context.Context, e *env, args []string) error {
	fs := e.flagSet("info", "[-html] <pdf>")
	asHTML := fs.Bool("html", false, "Print an HTML report")
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return usagef("info: expected one input pdf")
	}
	path := fs.Arg(0)
	data, err := readFile(path)
	if err != nil {
		return err
	}
	info, err := e.tools().Info(ctx, filepath.Base(path), data)
	if err != nil {
		return err
	}
	if !*asHTML {
		_, err = fmt.Fprint(e.stdout, info.String())
		return err
	}
	report, err := tools.InfoReport(info)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(e.stdout, report)
	return err
}

type pageTextJSON struct {
	Page    int    `json:"page"`
	Content string `json:"content"`
}

type fontJSON struct {
	Resource  string `json:"resource"`
	Name      string `json:"name"`
	Subtype   string `json:"subtype"`
	Encoding  string `json:"encoding,omitempty"`
	ToUnicode bool   `json:"toUnicode"`
	Pages     []int  `json:"pages"`
}

func runText(ctx context.Context, e *env, args []string) error {
	fs := e.flagSet("text", "[-fonts] <pdf>")
	withFonts := fs.Bool("fonts", false, "Also report fonts")
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return usagef("text: expected one input pdf")
	}
	data, err := readFile(fs.Arg(0))
	if err != nil {
		return err
	}
	doc, err := e.tools().Load(ctx, data)
	if err != nil {
		return err
	}
	ext, err := extractor.New(doc, extractor.Config{Logger: e.log})
	if err != nil {
		return fmt.Errorf("new extractor: %w", err)
	}
	pages, err := ext.ExtractText(ctx)
	if err != nil {
		return fmt.Errorf("extract text: %w", err)
	}
	text := make([]pageTextJSON, 0, len(pages))
	for _, p := range pages {
		text = append(text, pageTextJSON{Page: p.Page + 1, Content: p.Content})
	}
	if err := e.emitSection("text", text); err != nil {
		return err
	}
	if *withFonts {
		var out []fontJSON
		for _, f := range ext.ExtractFonts() {
			pages := make([]int, 0, len(f.Pages))
			for _, p := range f.Pages {
				pages = append(pages, p+1)
			}
			out = append(out, fontJSON{
				Resource: f.ResourceName, Name: f.BaseFont, Subtype: f.Subtype,
				Encoding: f.Encoding, ToUnicode: f.HasToUnicode, Pages: pages,
			})
		}
		return e.emitSection("fonts", out)
	}
	return nil
}

func (e *env) emitSection(name string, payload any) error {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	_, err = fmt.Fprintf(e.stdout, "== %s ==\n%s\n", strings.ToUpper(name), data)
	return err
}

func runRender(ctx context.Context, e *env, args []string) error {
	fs := e.flagSet("render", "[-page N] [-scale S] <pdf>")
	page := fs.Int("page", 1, "Page to render (1-based)")
	scale := fs.Float64("scale", 1.5, "Pixels per point")
	out := fs.String("o", "page.png", "Output path, - for stdout")
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return usagef("render: expected one input pdf")
	}
	if *scale <= 0 {
		return usagef("render: -scale must be positive")
	}
	data, err := readFile(fs.Arg(0))
	if err != nil {
		return err
	}
	doc, err := render.Open(ctx, data, render.Options{Logger: e.log, Recovery: e.recovery})
	if err != nil {
		return err
	}
	p, err := doc.Page(*page)
	if err != nil {
		return err
	}
	vp := p.Viewport(*scale)
	c, err := doc.NewCanvas(vp)
	if err != nil {
		return err
	}
	if err := p.Render(ctx, c, vp); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, c.Image()); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return e.writeOutput(*out, buf.Bytes())
}

func runEdit(ctx context.Context, e *env, args []string) error {
	fs := e.flagSet("edit", "-script file.js [flags] <pdf>")
	scriptPath := fs.String("script", "", "Editor script to run")
	page := fs.Int("page", 1, "Page to load before the script runs (1-based)")
	scale := fs.Float64("scale", 1.5, "Canvas scale")
	ocrLang := fs.String("ocr-lang", "", "Comma-separated OCR languages for pages without text")
	ocrPSM := fs.Int("ocr-psm", 0, "Tesseract page segmentation mode (0 keeps the default)")
	circles := fs.Bool("export-circles", false, "Include circles in the saved PDF")
	images := fs.Bool("export-images", false, "Include images in the saved PDF")
	preview := fs.String("preview", "", "Also write the edited canvas as PNG")
	out := fs.String("o", "edited.pdf", "Output path, - for stdout")
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 || *scriptPath == "" {
		return usagef("edit: expected -script and one input pdf")
	}
	data, err := readFile(fs.Arg(0))
	if err != nil {
		return err
	}
	script, err := readFile(*scriptPath)
	if err != nil {
		return err
	}

	ui := editor.NewMemoryUI()
	ui.OnNotify = func(n editor.Notification) {
		fmt.Fprintf(e.stderr, "[%s] %s\n", n.Level, n.Message)
	}
	cfg := editor.Config{
		Scale:          *scale,
		ExportCircles:  *circles,
		ExportImages:   *images,
		OCRPageSegMode: *ocrPSM,
		Recovery:       e.recovery,
		Logger:         e.log,
	}
	if *ocrLang != "" {
		cfg.OCRLanguages = creator.SplitOptions(*ocrLang)
	}
	sess := editor.NewSession(cfg, ui)
	if err := sess.Open(ctx, data); err != nil {
		return err
	}
	if *page != 1 {
		if err := sess.LoadPage(ctx, *page); err != nil {
			return err
		}
	}

	eng := scripting.NewEngineWithOptions(scripting.Options{ReadFile: os.ReadFile, Logger: e.log})
	if err := eng.RegisterSession(sess); err != nil {
		return fmt.Errorf("register session: %w", err)
	}
	if _, err := eng.Execute(ctx, string(script)); err != nil {
		return err
	}
	e.log.Debug("script finished", observability.Int("elements", len(sess.Scene().Elements())))

	if *preview != "" {
		sess.Redraw()
		var buf bytes.Buffer
		if err := png.Encode(&buf, sess.Canvas().Image()); err != nil {
			return fmt.Errorf("encode preview: %w", err)
		}
		if err := e.writeOutput(*preview, buf.Bytes()); err != nil {
			return err
		}
	}

	result := eng.Saved()
	if result == nil {
		result, err = sess.Save(ctx)
		if err != nil {
			return err
		}
	}
	return e.writeOutput(*out, result)
}
