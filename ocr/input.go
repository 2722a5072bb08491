package ocr

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"strconv"
)

// InputOption adjusts an Input built by InputFromImage.
type InputOption func(*Input)

// Tesseract variable names carried in Input.Metadata.
const (
	VarPageSegMode   = "tessedit_pageseg_mode"
	VarCharWhitelist = "tessedit_char_whitelist"
)

// InputFromImage encodes a rendered page as PNG. The ID is derived from the
// zero-based page index so results can be matched back.
func InputFromImage(page int, img image.Image, opts ...InputOption) (Input, error) {
	if img == nil || img.Bounds().Empty() {
		return Input{}, fmt.Errorf("page %d: empty image", page)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return Input{}, fmt.Errorf("encode page %d: %w", page, err)
	}
	in := Input{
		ID:        "page-" + strconv.Itoa(page),
		Image:     buf.Bytes(),
		Format:    ImageFormatPNG,
		PageIndex: page,
	}
	for _, opt := range opts {
		opt(&in)
	}
	return in, nil
}

func WithLanguages(langs ...string) InputOption {
	return func(in *Input) { in.Languages = append([]string(nil), langs...) }
}

func WithDPI(dpi int) InputOption {
	return func(in *Input) { in.DPI = dpi }
}

// WithRegion limits recognition to r, in image pixels. An empty region
// clears any earlier one.
func WithRegion(r Region) InputOption {
	return func(in *Input) {
		in.Region = nil
		if !r.IsEmpty() {
			in.Region = &r
		}
	}
}

// WithVariable passes an engine variable through Metadata. An empty value
// is ignored.
func WithVariable(key, value string) InputOption {
	return func(in *Input) {
		if key == "" || value == "" {
			return
		}
		if in.Metadata == nil {
			in.Metadata = make(map[string]string)
		}
		in.Metadata[key] = value
	}
}

// WithPageSegMode sets the page segmentation mode. Zero or less leaves the
// engine default.
func WithPageSegMode(mode int) InputOption {
	if mode <= 0 {
		return func(*Input) {}
	}
	return WithVariable(VarPageSegMode, strconv.Itoa(mode))
}

// WithCharWhitelist restricts recognition to chars.
func WithCharWhitelist(chars string) InputOption {
	return WithVariable(VarCharWhitelist, chars)
}
