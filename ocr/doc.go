// Package ocr is the seam for OCR engines. The editor uses it to find text
// runs on pages that have no text layer, such as scans.
package ocr
