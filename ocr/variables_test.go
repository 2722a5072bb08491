package ocr

import (
	"image"
	"testing"
)

func TestEngineVariables(t *testing.T) {
	in, err := InputFromImage(2, image.NewGray(image.Rect(0, 0, 4, 4)),
		WithDPI(108), WithPageSegMode(6), WithCharWhitelist("ABC"), WithPageSegMode(0))
	if err != nil {
		t.Fatalf("input: %v", err)
	}
	if in.ID != "page-2" || in.PageIndex != 2 || in.DPI != 108 || in.Format != ImageFormatPNG {
		t.Fatalf("input = %+v", in)
	}
	if in.Metadata[VarPageSegMode] != "6" || in.Metadata[VarCharWhitelist] != "ABC" {
		t.Fatalf("metadata = %v", in.Metadata)
	}

	plain, err := InputFromImage(0, image.NewGray(image.Rect(0, 0, 1, 1)), WithCharWhitelist(""))
	if err != nil {
		t.Fatalf("input: %v", err)
	}
	if plain.Metadata != nil {
		t.Fatalf("metadata = %v", plain.Metadata)
	}
}
