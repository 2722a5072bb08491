//go:build tesseract

package main

// Pages without a text layer are recognised with Tesseract when built with
// -tags tesseract.
import _ "github.com/wudi/pdfstudio/ocr/tesseract"
