package creator

import (
	"context"
	"fmt"

	"github.com/wudi/pdfstudio/document"
	"github.com/wudi/pdfstudio/layout"
	"github.com/wudi/pdfstudio/observability"
)

// FlowOptions configures FromMarkdown and FromHTML. Zero values take the
// layout engine's defaults.
type FlowOptions struct {
	Title, Author, Subject string
	PageWidth, PageHeight  float64
	Font                   string
	FontSize               float64
	Margins                *layout.Margins
}

// FromMarkdown flows Markdown source onto as many pages as it needs.
func (c *Creator) FromMarkdown(ctx context.Context, source string, opts FlowOptions) ([]byte, error) {
	return c.flow(ctx, opts, "markdown", func(e *layout.Engine) error { return e.RenderMarkdown(source) })
}

// FromHTML flows the block elements of an HTML document.
func (c *Creator) FromHTML(ctx context.Context, source string, opts FlowOptions) ([]byte, error) {
	return c.flow(ctx, opts, "html", func(e *layout.Engine) error { return e.RenderHTML(source) })
}

func (c *Creator) flow(ctx context.Context, opts FlowOptions, kind string, render func(*layout.Engine) error) ([]byte, error) {
	doc := c.newDocument()
	now := c.opts.Now()
	doc.SetInfo(document.Info{
		Title:        or(opts.Title, DefaultTitle),
		Author:       or(opts.Author, DefaultAuthor),
		Subject:      or(opts.Subject, DefaultSubject),
		Creator:      DefaultAuthor,
		Producer:     DefaultAuthor,
		CreationDate: now,
		ModDate:      now,
	})

	var lopts []layout.Option
	if opts.PageWidth > 0 && opts.PageHeight > 0 {
		lopts = append(lopts, layout.WithPageSize(opts.PageWidth, opts.PageHeight))
	}
	if opts.Font != "" {
		lopts = append(lopts, layout.WithDefaultFont(opts.Font))
	}
	if opts.FontSize > 0 {
		lopts = append(lopts, layout.WithDefaultFontSize(opts.FontSize))
	}
	if opts.Margins != nil {
		lopts = append(lopts, layout.WithMargins(*opts.Margins))
	}
	engine := layout.NewEngine(layout.DocumentSurface{Doc: doc}, lopts...)
	if err := render(engine); err != nil {
		return nil, fmt.Errorf("%s: %w", kind, err)
	}
	if doc.PageCount() == 0 {
		doc.AddPage(opts.PageWidth, opts.PageHeight)
	}
	out, err := doc.Save(ctx)
	if err != nil {
		return nil, err
	}
	c.log.Info("document flowed", observability.String("source", kind), observability.Int("pages", doc.PageCount()))
	return out, nil
}
