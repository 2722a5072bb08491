package document

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"

	"golang.org/x/crypto/blake2b"

	"github.com/wudi/pdfstudio/filters"
	"github.com/wudi/pdfstudio/ir/raw"
)

// ImageFormat is the encoded format of embedded image data.
type ImageFormat string

const (
	FormatPNG  ImageFormat = "png"
	FormatJPEG ImageFormat = "jpeg"
)

// Image is a raster image embedded as an image XObject.
type Image struct {
	Width, Height int
	Format        ImageFormat
	doc           *Document
	ref           raw.RefObj
}

// Scale returns the image size multiplied by f.
func (img *Image) Scale(f float64) (float64, float64) {
	return float64(img.Width) * f, float64(img.Height) * f
}

// DetectImageFormat identifies PNG and JPEG data by signature.
func DetectImageFormat(data []byte) (ImageFormat, error) {
	switch {
	case len(data) >= 8 && bytes.Equal(data[:8], []byte("\x89PNG\r\n\x1a\n")):
		return FormatPNG, nil
	case len(data) >= 3 && data[0] == 0xff && data[1] == 0xd8 && data[2] == 0xff:
		return FormatJPEG, nil
	}
	return "", ErrUnsupportedImage
}

// EmbedImage embeds PNG or JPEG data. Identical data embeds once.
func (d *Document) EmbedImage(data []byte) (*Image, error) {
	format, err := DetectImageFormat(data)
	if err != nil {
		return nil, err
	}
	key := blake2b.Sum256(data)
	if img, ok := d.images[key]; ok {
		return img, nil
	}
	var stream *raw.StreamObj
	var w, h int
	switch format {
	case FormatJPEG:
		stream, w, h, err = jpegXObject(data)
	case FormatPNG:
		stream, w, h, err = d.pngXObject(data)
	}
	if err != nil {
		return nil, fmt.Errorf("embed %s: %w", format, err)
	}
	img := &Image{Width: w, Height: h, Format: format, doc: d, ref: d.raw.Add(stream)}
	d.images[key] = img
	return img, nil
}

// jpegXObject passes JPEG data through with DCTDecode.
func jpegXObject(data []byte) (*raw.StreamObj, int, int, error) {
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, 0, 0, err
	}
	cs := "DeviceRGB"
	switch cfg.ColorModel {
	case color.GrayModel:
		cs = "DeviceGray"
	case color.CMYKModel:
		cs = "DeviceCMYK"
	}
	dict := imageDict(cfg.Width, cfg.Height, cs)
	dict.Set("Filter", raw.NameLiteral("DCTDecode"))
	if cs == "DeviceCMYK" {
		// Adobe writes inverted CMYK JPEGs.
		dict.Set("Decode", raw.NewArray(raw.NumberInt(1), raw.NumberInt(0), raw.NumberInt(1), raw.NumberInt(0),
			raw.NumberInt(1), raw.NumberInt(0), raw.NumberInt(1), raw.NumberInt(0)))
	}
	return raw.NewStream(dict, append([]byte(nil), data...)), cfg.Width, cfg.Height, nil
}

// pngXObject decodes PNG data into flate-compressed RGB samples, with the
// alpha channel as a soft mask when any pixel is translucent.
func (d *Document) pngXObject(data []byte) (*raw.StreamObj, int, int, error) {
	src, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, 0, 0, err
	}
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	nrgba := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(nrgba, nrgba.Bounds(), src, b.Min, draw.Src)

	pixels := make([]byte, 0, w*h*3)
	alpha := make([]byte, 0, w*h)
	translucent := false
	for i := 0; i < w*h; i++ {
		o := i * 4
		pixels = append(pixels, nrgba.Pix[o], nrgba.Pix[o+1], nrgba.Pix[o+2])
		a := nrgba.Pix[o+3]
		alpha = append(alpha, a)
		if a < 255 {
			translucent = true
		}
	}

	dict := imageDict(w, h, "DeviceRGB")
	packed, err := filters.Flate(pixels)
	if err != nil {
		return nil, 0, 0, err
	}
	dict.Set("Filter", raw.NameLiteral("FlateDecode"))
	if translucent {
		mask := imageDict(w, h, "DeviceGray")
		packedAlpha, err := filters.Flate(alpha)
		if err != nil {
			return nil, 0, 0, err
		}
		mask.Set("Filter", raw.NameLiteral("FlateDecode"))
		dict.Set("SMask", d.raw.Add(raw.NewStream(mask, packedAlpha)))
	}
	return raw.NewStream(dict, packed), w, h, nil
}

func imageDict(w, h int, colorSpace string) *raw.DictObj {
	dict := raw.Dict()
	dict.Set("Type", raw.NameLiteral("XObject"))
	dict.Set("Subtype", raw.NameLiteral("Image"))
	dict.Set("Width", raw.NumberInt(int64(w)))
	dict.Set("Height", raw.NumberInt(int64(h)))
	dict.Set("ColorSpace", raw.NameLiteral(colorSpace))
	dict.Set("BitsPerComponent", raw.NumberInt(8))
	return dict
}
