package tools

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// NotSet stands in for absent metadata.
const NotSet = "Not set"

const dateLayout = "2006-01-02 15:04:05 -07:00"

// Info summarises a document file.
type Info struct {
	FileName string
	FileSize int64
	Pages    int
	Title    string
	Author   string
	Subject  string
	Creator  string
	Producer string
	Created  time.Time
	Modified time.Time
}

// Info loads data and reads its page count and metadata. name is reported
// as the file name.
func (t *Tools) Info(ctx context.Context, name string, data []byte) (Info, error) {
	doc, err := t.Load(ctx, data)
	if err != nil {
		return Info{}, err
	}
	meta := doc.Info()
	return Info{
		FileName: name,
		FileSize: int64(len(data)),
		Pages:    doc.PageCount(),
		Title:    meta.Title,
		Author:   meta.Author,
		Subject:  meta.Subject,
		Creator:  meta.Creator,
		Producer: meta.Producer,
		Created:  meta.CreationDate,
		Modified: meta.ModDate,
	}, nil
}

// SizeMB formats the file size in megabytes with two decimals.
func (i Info) SizeMB() string {
	return fmt.Sprintf("%.2f MB", float64(i.FileSize)/1024/1024)
}

// Row is one label/value line of an info report.
type Row struct {
	Label, Value string
}

// Rows lists the report lines, with NotSet for absent values.
func (i Info) Rows() []Row {
	text := func(s string) string {
		if strings.TrimSpace(s) == "" {
			return NotSet
		}
		return s
	}
	date := func(t time.Time) string {
		if t.IsZero() {
			return NotSet
		}
		return t.Format(dateLayout)
	}
	return []Row{
		{"File Name:", text(i.FileName)},
		{"File Size:", i.SizeMB()},
		{"Pages:", strconv.Itoa(i.Pages)},
		{"Title:", text(i.Title)},
		{"Author:", text(i.Author)},
		{"Subject:", text(i.Subject)},
		{"Creator:", text(i.Creator)},
		{"Producer:", text(i.Producer)},
		{"Created:", date(i.Created)},
		{"Modified:", date(i.Modified)},
	}
}

// String renders the rows as aligned plain text.
func (i Info) String() string {
	rows := i.Rows()
	width := 0
	for _, r := range rows {
		if len(r.Label) > width {
			width = len(r.Label)
		}
	}
	var sb strings.Builder
	for _, r := range rows {
		fmt.Fprintf(&sb, "%-*s %s\n", width, r.Label, r.Value)
	}
	return sb.String()
}

const cellStyle = "padding: 8px; border: 1px solid #ddd;"

// InfoReport renders i as an HTML fragment: a heading and a two-column
// table. Values are escaped.
func InfoReport(i Info) (string, error) {
	root := element(atom.Div, attr("class", "pdf-info"))
	h := element(atom.H3)
	h.AppendChild(textNode("PDF Information"))
	root.AppendChild(h)

	table := element(atom.Table, attr("style", "width: 100%; border-collapse: collapse;"))
	body := element(atom.Tbody)
	for _, r := range i.Rows() {
		tr := element(atom.Tr)
		label := element(atom.Td, attr("style", cellStyle))
		strong := element(atom.Strong)
		strong.AppendChild(textNode(r.Label))
		label.AppendChild(strong)
		value := element(atom.Td, attr("style", cellStyle))
		value.AppendChild(textNode(r.Value))
		tr.AppendChild(label)
		tr.AppendChild(value)
		body.AppendChild(tr)
	}
	table.AppendChild(body)
	root.AppendChild(table)

	var buf bytes.Buffer
	if err := html.Render(&buf, root); err != nil {
		return "", fmt.Errorf("render info report: %w", err)
	}
	return buf.String(), nil
}

func element(a atom.Atom, attrs ...html.Attribute) *html.Node {
	return &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String(), Attr: attrs}
}

func textNode(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

func attr(key, val string) html.Attribute {
	return html.Attribute{Key: key, Val: val}
}
