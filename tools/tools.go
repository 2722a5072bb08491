// Package tools holds whole-document operations: merge, split, page
// insertion and removal, stamping text, and document information.
package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/wudi/pdfstudio/document"
	"github.com/wudi/pdfstudio/observability"
	"github.com/wudi/pdfstudio/optimize"
	"github.com/wudi/pdfstudio/recovery"
	"github.com/wudi/pdfstudio/writer"
)

var (
	ErrTooFewInputs = errors.New("at least 2 documents are needed to merge")
	ErrInvalidRange = errors.New("invalid page range")
	ErrInvalidPage  = errors.New("invalid page number")
	ErrLastPage     = errors.New("cannot remove the last page")
	ErrEmptyText    = errors.New("text is empty")
)

type Options struct {
	// Recovery is used when loading inputs. Nil is strict.
	Recovery recovery.Strategy
	Writer   writer.Config
	// Optimize combines duplicate streams and font resources in merge and
	// split results.
	Optimize bool
	Logger   observability.Logger
}

// Tools runs document operations over serialized PDFs.
type Tools struct {
	opts Options
	log  observability.Logger
}

func New(opts Options) *Tools {
	opts.Logger = observability.OrNop(opts.Logger)
	return &Tools{opts: opts, log: opts.Logger}
}

func (t *Tools) docOptions() document.Options {
	return document.Options{Recovery: t.opts.Recovery, Writer: t.opts.Writer, Logger: t.log}
}

// Load parses data with the configured recovery strategy.
func (t *Tools) Load(ctx context.Context, data []byte) (*document.Document, error) {
	return document.LoadWithOptions(ctx, data, t.docOptions())
}

// Merge concatenates every page of inputs, in input order, into a new
// document.
func (t *Tools) Merge(ctx context.Context, inputs [][]byte) ([]byte, error) {
	if len(inputs) < 2 {
		return nil, ErrTooFewInputs
	}
	dst := document.NewWithOptions(t.docOptions())
	for i, data := range inputs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		src, err := t.Load(ctx, data)
		if err != nil {
			return nil, fmt.Errorf("input %d: %w", i+1, err)
		}
		if err := appendPages(dst, src, src.PageIndices()); err != nil {
			return nil, fmt.Errorf("input %d: %w", i+1, err)
		}
		t.log.Debug("merged input", observability.Int("input", i+1), observability.Int("pages", src.PageCount()))
	}
	out, err := t.save(ctx, dst)
	if err != nil {
		return nil, err
	}
	t.log.Info("documents merged", observability.Int("inputs", len(inputs)), observability.Int("pages", dst.PageCount()))
	return out, nil
}

// Split extracts pages from..to, 1-based and inclusive, into a new
// document.
func (t *Tools) Split(ctx context.Context, data []byte, from, to int) ([]byte, error) {
	if from < 1 || to < 1 || from > to {
		return nil, fmt.Errorf("%w: %d-%d", ErrInvalidRange, from, to)
	}
	src, err := t.Load(ctx, data)
	if err != nil {
		return nil, err
	}
	if to > src.PageCount() {
		return nil, fmt.Errorf("%w: document has %d pages", ErrInvalidRange, src.PageCount())
	}
	indices := make([]int, 0, to-from+1)
	for i := from - 1; i < to; i++ {
		indices = append(indices, i)
	}
	dst := document.NewWithOptions(t.docOptions())
	if err := appendPages(dst, src, indices); err != nil {
		return nil, err
	}
	out, err := t.save(ctx, dst)
	if err != nil {
		return nil, err
	}
	t.log.Info("document split", observability.Int("from", from), observability.Int("to", to))
	return out, nil
}

func (t *Tools) save(ctx context.Context, doc *document.Document) ([]byte, error) {
	if t.opts.Optimize {
		cfg := optimize.DefaultConfig()
		cfg.Logger = t.log
		if _, err := optimize.New(cfg).Optimize(ctx, doc.Raw()); err != nil {
			return nil, fmt.Errorf("optimize: %w", err)
		}
	}
	return doc.Save(ctx)
}

func appendPages(dst, src *document.Document, indices []int) error {
	pages, err := dst.CopyPages(src, indices)
	if err != nil {
		return err
	}
	for _, p := range pages {
		if err := dst.InsertPage(dst.PageCount(), p); err != nil {
			return err
		}
	}
	return nil
}

// SplitName is the conventional file name for a split result.
func SplitName(from, to int) string {
	return fmt.Sprintf("split-pages-%d-%d.pdf", from, to)
}

// MergedName is the conventional file name for a merge result.
const MergedName = "merged-document.pdf"
