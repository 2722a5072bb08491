package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"

	"github.com/wudi/pdfstudio/cmm"
	"github.com/wudi/pdfstudio/coords"
	"github.com/wudi/pdfstudio/ir/raw"
	"github.com/wudi/pdfstudio/observability"
)

var errImageUnsupported = errors.New("image encoding not supported")

// decodeXObject turns an image XObject into pixels. DCT data goes through
// the JPEG decoder; other filters are undone by the stream pipeline and
// 8-bit samples are converted to sRGB, through the embedded profile for
// ICCBased spaces. An SMask becomes alpha.
func (d *Document) decodeXObject(ctx context.Context, stm *raw.StreamObj) (image.Image, error) {
	rd := d.doc.Raw()
	if isDCT(rd, stm) {
		img, err := jpeg.Decode(bytes.NewReader(stm.Data))
		if err != nil {
			return nil, fmt.Errorf("jpeg: %w", err)
		}
		return img, nil
	}
	w, _ := stm.Dict.Int("Width")
	h, _ := stm.Dict.Int("Height")
	bpc, _ := stm.Dict.Int("BitsPerComponent")
	if w <= 0 || h <= 0 || bpc != 8 {
		return nil, errImageUnsupported
	}
	conv, comps, err := d.colorConverter(ctx, rd.Resolve(getKey(stm.Dict, "ColorSpace")))
	if err != nil {
		return nil, err
	}
	data, err := d.pipe.DecodeStream(ctx, stm)
	if err != nil {
		return nil, err
	}
	if len(data) < int(w*h)*comps {
		return nil, fmt.Errorf("image data short: %d bytes for %dx%d", len(data), w, h)
	}
	var alpha []byte
	if sm, ok := rd.Resolve(getKey(stm.Dict, "SMask")).(*raw.StreamObj); ok {
		if a, err := d.pipe.DecodeStream(ctx, sm); err == nil && len(a) >= int(w*h) {
			alpha = a
		}
	}
	img := image.NewNRGBA(image.Rect(0, 0, int(w), int(h)))
	in := make([]float64, comps)
	for i := 0; i < int(w*h); i++ {
		c := color.NRGBA{A: 255}
		if conv == nil {
			if comps == 1 {
				c.R, c.G, c.B = data[i], data[i], data[i]
			} else {
				c.R, c.G, c.B = data[3*i], data[3*i+1], data[3*i+2]
			}
		} else {
			for k := range in {
				in[k] = float64(data[comps*i+k]) / 255
			}
			rgb := conv.ToSRGB(in)
			c.R, c.G, c.B = unit8(rgb[0]), unit8(rgb[1]), unit8(rgb[2])
		}
		if alpha != nil {
			c.A = alpha[i]
		}
		img.SetNRGBA(i%int(w), i/int(w), c)
	}
	return img, nil
}

// colorConverter picks the sample conversion for a colour space. A nil
// converter means the samples are already 8-bit Gray or RGB.
func (d *Document) colorConverter(ctx context.Context, cs raw.Object) (cmm.Converter, int, error) {
	switch v := cs.(type) {
	case raw.NameObj:
		switch v.Val {
		case "DeviceGray", "CalGray":
			return nil, 1, nil
		case "DeviceRGB", "CalRGB":
			return nil, 3, nil
		case "DeviceCMYK":
			conv, err := cmm.DeviceConverter(4)
			return conv, 4, err
		}
	case *raw.ArrayObj:
		if v.Len() == 2 {
			if n, ok := v.Items[0].(raw.NameObj); ok && n.Val == "ICCBased" {
				return d.iccConverter(ctx, v.Items[1])
			}
		}
	}
	return nil, 0, errImageUnsupported
}

// iccConverter uses the embedded profile when it parses, and otherwise the
// device space for its /N.
func (d *Document) iccConverter(ctx context.Context, ref raw.Object) (cmm.Converter, int, error) {
	stm, ok := d.doc.Raw().Resolve(ref).(*raw.StreamObj)
	if !ok {
		return nil, 0, errImageUnsupported
	}
	n, _ := stm.Dict.Int("N")
	if data, err := d.pipe.DecodeStream(ctx, stm); err == nil {
		if prof, err := cmm.ParseProfile(data); err == nil && (n == 0 || prof.Channels() == int(n)) {
			if conv, err := prof.Converter(); err == nil {
				d.log.Debug("icc profile", observability.String("space", prof.ColorSpace()),
					observability.String("desc", prof.Description()))
				return conv, prof.Channels(), nil
			}
		}
	}
	conv, err := cmm.DeviceConverter(int(n))
	if err != nil {
		return nil, 0, errImageUnsupported
	}
	return conv, int(n), nil
}

func unit8(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v*255 + 0.5)
}

func isDCT(rd *raw.Document, stm *raw.StreamObj) bool {
	switch f := rd.Resolve(getKey(stm.Dict, "Filter")).(type) {
	case raw.NameObj:
		return f.Val == "DCTDecode"
	case *raw.ArrayObj:
		// Only a lone DCT filter leaves the raw bytes as a JPEG file.
		if f.Len() == 1 {
			n, ok := rd.Resolve(f.Items[0]).(raw.NameObj)
			return ok && n.Val == "DCTDecode"
		}
	}
	return false
}

func getKey(d *raw.DictObj, key string) raw.Object {
	v, ok := d.Get(key)
	if !ok {
		return raw.NullObj{}
	}
	return v
}

// paintImages blits the page's image XObjects into their canvas boxes.
// Images that cannot be decoded are logged and skipped.
func (p *Page) paintImages(ctx context.Context, dst canvasTarget, m coords.Matrix) error {
	placements, err := p.doc.ext.Images(ctx, p.number-1)
	if err != nil {
		return err
	}
	for _, pl := range placements {
		img, err := p.doc.decodeXObject(ctx, pl.Stream)
		if err != nil {
			p.doc.log.Warn("image skipped", observability.String("name", pl.Name), observability.Error("err", err))
			continue
		}
		corners := [4]coords.Point{}
		for i, c := range []coords.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1}} {
			corners[i] = pl.CTM.Multiply(m).Transform(c)
		}
		x0 := min(corners[0].X, corners[1].X, corners[2].X, corners[3].X)
		x1 := max(corners[0].X, corners[1].X, corners[2].X, corners[3].X)
		y0 := min(corners[0].Y, corners[1].Y, corners[2].Y, corners[3].Y)
		y1 := max(corners[0].Y, corners[1].Y, corners[2].Y, corners[3].Y)
		dst.DrawImage(img, coords.Rect{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0})
	}
	return nil
}

type canvasTarget interface {
	DrawImage(src image.Image, r coords.Rect)
}
