package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/wudi/pdfstudio/creator"
)

// createFile is the JSON shape read by `pdfstudio create -spec`.
type createFile struct {
	PageWidth  float64 `json:"pageWidth"`
	PageHeight float64 `json:"pageHeight"`
	Title      string  `json:"title"`
	Author     string  `json:"author"`
	Subject    string  `json:"subject"`
	Texts      []struct {
		Text  string  `json:"text"`
		X     float64 `json:"x"`
		Y     float64 `json:"y"`
		Size  float64 `json:"size"`
		Font  string  `json:"font"`
		Color string  `json:"color"`
	} `json:"texts"`
	Images []struct {
		Path   string  `json:"path"`
		X      float64 `json:"x"`
		Y      float64 `json:"y"`
		Width  float64 `json:"width"`
		Height float64 `json:"height"`
	} `json:"images"`
	Shapes []struct {
		Kind   string  `json:"type"`
		X      float64 `json:"x"`
		Y      float64 `json:"y"`
		Width  float64 `json:"width"`
		Height float64 `json:"height"`
		Fill   string  `json:"fill"`
		Border string  `json:"border"`
	} `json:"shapes"`
}

// loadCreateSpec decodes data. Image paths are relative to dir.
func loadCreateSpec(data []byte, dir string) (creator.Spec, error) {
	var f createFile
	if err := json.Unmarshal(data, &f); err != nil {
		return creator.Spec{}, fmt.Errorf("decode spec: %w", err)
	}
	spec := creator.Spec{
		PageWidth:  f.PageWidth,
		PageHeight: f.PageHeight,
		Title:      f.Title,
		Author:     f.Author,
		Subject:    f.Subject,
	}
	for _, t := range f.Texts {
		spec.Texts = append(spec.Texts, creator.Text{Text: t.Text, X: t.X, Y: t.Y, Size: t.Size, Font: t.Font, Color: t.Color})
	}
	for i, im := range f.Images {
		if im.Path == "" {
			return creator.Spec{}, fmt.Errorf("image %d: %w", i+1, creator.ErrNoImageSrc)
		}
		path := im.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		data, err := readFile(path)
		if err != nil {
			return creator.Spec{}, fmt.Errorf("image %d: %w", i+1, err)
		}
		spec.Images = append(spec.Images, creator.Image{Data: data, X: im.X, Y: im.Y, Width: im.Width, Height: im.Height})
	}
	for _, s := range f.Shapes {
		spec.Shapes = append(spec.Shapes, creator.Shape{
			Kind: creator.ShapeKind(s.Kind), X: s.X, Y: s.Y, Width: s.Width, Height: s.Height,
			Fill: s.Fill, Border: s.Border,
		})
	}
	return spec, nil
}

// formFile is the JSON shape read by `pdfstudio form -spec`. Options may
// be a list or a comma-separated string.
type formFile struct {
	Title  string `json:"title"`
	Fields []struct {
		Type        string          `json:"type"`
		Name        string          `json:"name"`
		Placeholder string          `json:"placeholder"`
		X           float64         `json:"x"`
		Y           float64         `json:"y"`
		Width       float64         `json:"width"`
		Height      float64         `json:"height"`
		Options     json.RawMessage `json:"options"`
	} `json:"fields"`
}

func loadFormSpec(data []byte) (creator.FormSpec, error) {
	var f formFile
	if err := json.Unmarshal(data, &f); err != nil {
		return creator.FormSpec{}, fmt.Errorf("decode form: %w", err)
	}
	spec := creator.FormSpec{Title: f.Title}
	for i, fd := range f.Fields {
		opts, err := decodeOptions(fd.Options)
		if err != nil {
			return creator.FormSpec{}, fmt.Errorf("field %d: %w", i+1, err)
		}
		spec.Fields = append(spec.Fields, creator.FormField{
			Kind:        creator.FieldKind(fd.Type),
			Name:        fd.Name,
			Placeholder: fd.Placeholder,
			X:           fd.X,
			Y:           fd.Y,
			Width:       fd.Width,
			Height:      fd.Height,
			Options:     opts,
		})
	}
	return spec, nil
}

func decodeOptions(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("options must be a list or a string")
	}
	return creator.SplitOptions(s), nil
}
