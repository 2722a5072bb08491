package ocr

import "context"

// ImageFormat identifies the content type of an OCR input image.
type ImageFormat string

const (
	ImageFormatPNG  ImageFormat = "image/png"
	ImageFormatJPEG ImageFormat = "image/jpeg"
)

// Region describes a rectangular area in pixel coordinates with the origin in
// the upper-left corner of the image.
type Region struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// IsEmpty reports whether the region has non-positive dimensions.
func (r Region) IsEmpty() bool { return r.Width <= 0 || r.Height <= 0 }

// Input encapsulates a single image submitted for OCR.
type Input struct {
	// ID is echoed back in the corresponding Result.
	ID string
	// Image is the encoded image payload in the format specified by Format.
	Image  []byte
	Format ImageFormat
	// PageIndex links the input back to the zero-based page it was
	// rendered from.
	PageIndex int
	// DPI carries the effective dots-per-inch for the image; zero means
	// unknown.
	DPI int
	// Languages are trained-data names such as "eng" or "deu".
	Languages []string
	// Region restricts recognition to part of the image. Nil means all of it.
	Region *Region
	// Metadata passes engine-specific variables through unchanged.
	Metadata map[string]string
}

// TextWord represents a single recognized token.
type TextWord struct {
	Text       string
	Bounds     Region
	Confidence float64
}

// TextLine groups words that share a baseline.
type TextLine struct {
	Text       string
	Bounds     Region
	Words      []TextWord
	Confidence float64
}

// TextBlock aggregates lines that form a logical block.
type TextBlock struct {
	Text       string
	Bounds     Region
	Lines      []TextLine
	Confidence float64
}

// Result captures OCR output for a single input image.
type Result struct {
	InputID   string
	PlainText string
	Blocks    []TextBlock
	Language  string
}

// Words flattens the result into its words, in reading order. Lines that
// carry no word boxes are returned as one word each.
func (r Result) Words() []TextWord {
	var out []TextWord
	for _, b := range r.Blocks {
		for _, l := range b.Lines {
			if len(l.Words) == 0 {
				if l.Text != "" && !l.Bounds.IsEmpty() {
					out = append(out, TextWord{Text: l.Text, Bounds: l.Bounds, Confidence: l.Confidence})
				}
				continue
			}
			out = append(out, l.Words...)
		}
	}
	return out
}

// Engine is the simplest OCR provider contract: one image in, one result out.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, input Input) (Result, error)
}

// BatchEngine handles multiple images in a single call.
type BatchEngine interface {
	Engine
	RecognizeBatch(ctx context.Context, inputs []Input) ([]Result, error)
}
