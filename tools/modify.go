package tools

import (
	"fmt"
	"strings"

	"github.com/wudi/pdfstudio/document"
)

// TextStamp is text drawn onto an existing page.
type TextStamp struct {
	Page int // 1-based
	Text string
	X, Y float64
	Size float64 // default 12
}

// AddText draws stamp in black Helvetica.
func AddText(doc *document.Document, stamp TextStamp) error {
	if strings.TrimSpace(stamp.Text) == "" {
		return ErrEmptyText
	}
	page, err := doc.Page(stamp.Page - 1)
	if err != nil {
		return fmt.Errorf("%w: %d", ErrInvalidPage, stamp.Page)
	}
	font, err := doc.EmbedFont("Helvetica")
	if err != nil {
		return err
	}
	return page.DrawText(stamp.Text, document.TextOptions{
		X:     stamp.X,
		Y:     stamp.Y,
		Size:  stamp.Size,
		Font:  font,
		Color: document.RGB(0, 0, 0),
	})
}

// AddPage appends a blank A4 page.
func AddPage(doc *document.Document) *document.Page {
	return doc.AddPage(document.A4[0], document.A4[1])
}

// RemovePage drops page n (1-based). A document keeps at least one page.
func RemovePage(doc *document.Document, n int) error {
	count := doc.PageCount()
	if n < 1 || n > count {
		return fmt.Errorf("%w: %d of %d", ErrInvalidPage, n, count)
	}
	if count == 1 {
		return ErrLastPage
	}
	return doc.RemovePage(n - 1)
}
