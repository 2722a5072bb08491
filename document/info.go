package document

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/wudi/pdfstudio/fonts"
	"github.com/wudi/pdfstudio/ir/raw"
)

// Info is the document information dictionary. Zero fields are absent.
type Info struct {
	Title        string
	Author       string
	Subject      string
	Keywords     string
	Creator      string
	Producer     string
	CreationDate time.Time
	ModDate      time.Time
}

// Info reads the trailer's /Info dictionary.
func (d *Document) Info() Info {
	var info Info
	v, ok := d.raw.Trailer.Get("Info")
	if !ok {
		return info
	}
	dict, ok := d.raw.ResolveDict(v)
	if !ok {
		return info
	}
	text := func(key string) string {
		o, ok := dict.Get(key)
		if !ok {
			return ""
		}
		s, ok := d.raw.Resolve(o).(raw.StringObj)
		if !ok {
			return ""
		}
		return fonts.DecodePDFText(s.Bytes)
	}
	info.Title = text("Title")
	info.Author = text("Author")
	info.Subject = text("Subject")
	info.Keywords = text("Keywords")
	info.Creator = text("Creator")
	info.Producer = text("Producer")
	info.CreationDate, _ = ParseDate(text("CreationDate"))
	info.ModDate, _ = ParseDate(text("ModDate"))
	return info
}

// SetInfo replaces the information dictionary with info.
func (d *Document) SetInfo(info Info) {
	dict := raw.Dict()
	set := func(key, val string) {
		if val != "" {
			dict.Set(key, raw.Str(fonts.EncodePDFText(val)))
		}
	}
	set("Title", info.Title)
	set("Author", info.Author)
	set("Subject", info.Subject)
	set("Keywords", info.Keywords)
	set("Creator", info.Creator)
	set("Producer", info.Producer)
	if !info.CreationDate.IsZero() {
		set("CreationDate", FormatDate(info.CreationDate))
	}
	if !info.ModDate.IsZero() {
		set("ModDate", FormatDate(info.ModDate))
	}
	if v, ok := d.raw.Trailer.Get("Info"); ok {
		if r, ok := v.(raw.RefObj); ok {
			d.raw.Set(r.R, dict)
			return
		}
	}
	d.raw.Trailer.Set("Info", d.raw.Add(dict))
}

// Touch sets the modification date to now.
func (d *Document) Touch() {
	info := d.Info()
	info.ModDate = d.opts.Now()
	d.SetInfo(info)
}

// FormatDate renders t as a PDF date string, D:YYYYMMDDHHmmSS+HH'mm'.
func FormatDate(t time.Time) string {
	_, offset := t.Zone()
	s := "D:" + t.Format("20060102150405")
	if offset == 0 {
		return s + "Z"
	}
	sign := '+'
	if offset < 0 {
		sign = '-'
		offset = -offset
	}
	return fmt.Sprintf("%s%c%02d'%02d'", s, sign, offset/3600, offset%3600/60)
}

// ParseDate reads a PDF date string. Trailing components may be omitted.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "D:")
	if len(s) < 4 {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	fields := []int{0, 1, 1, 0, 0, 0}
	widths := []int{4, 2, 2, 2, 2, 2}
	pos := 0
	for i, w := range widths {
		if pos+w > len(s) || !isDigits(s[pos:pos+w]) {
			break
		}
		fields[i], _ = strconv.Atoi(s[pos : pos+w])
		pos += w
	}
	loc := time.UTC
	rest := s[pos:]
	if len(rest) > 0 && (rest[0] == '+' || rest[0] == '-') {
		tz := strings.ReplaceAll(rest[1:], "'", "")
		hh, mm := 0, 0
		if len(tz) >= 2 {
			hh, _ = strconv.Atoi(tz[:2])
		}
		if len(tz) >= 4 {
			mm, _ = strconv.Atoi(tz[2:4])
		}
		off := hh*3600 + mm*60
		if rest[0] == '-' {
			off = -off
		}
		loc = time.FixedZone("", off)
	}
	return time.Date(fields[0], time.Month(fields[1]), fields[2], fields[3], fields[4], fields[5], 0, loc), nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
