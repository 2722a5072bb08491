package filters

import (
	"fmt"

	"github.com/wudi/pdfstudio/ir/raw"
)

func intParam(d *raw.DictObj, key string, def int) int {
	if v, ok := d.Int(key); ok {
		return int(v)
	}
	return def
}

// applyPredictor reverses TIFF (2) and PNG (10-15) predictors.
func applyPredictor(data []byte, params *raw.DictObj) ([]byte, error) {
	if params == nil {
		return data, nil
	}
	predictor := intParam(params, "Predictor", 1)
	if predictor <= 1 {
		return data, nil
	}
	colors := intParam(params, "Colors", 1)
	bpc := intParam(params, "BitsPerComponent", 8)
	columns := intParam(params, "Columns", 1)
	bpp := (colors*bpc + 7) / 8
	rowLen := (colors*bpc*columns + 7) / 8
	if rowLen <= 0 {
		return nil, fmt.Errorf("invalid predictor row length %d", rowLen)
	}

	if predictor == 2 {
		if bpc != 8 {
			return data, nil
		}
		out := append([]byte(nil), data...)
		for row := 0; row+rowLen <= len(out); row += rowLen {
			for i := bpp; i < rowLen; i++ {
				out[row+i] += out[row+i-bpp]
			}
		}
		return out, nil
	}

	stride := rowLen + 1
	out := make([]byte, 0, len(data)/stride*rowLen)
	prev := make([]byte, rowLen)
	for off := 0; off+stride <= len(data); off += stride {
		filter := data[off]
		cur := append([]byte(nil), data[off+1:off+stride]...)
		for i := range cur {
			var left, upLeft byte
			if i >= bpp {
				left = cur[i-bpp]
				upLeft = prev[i-bpp]
			}
			up := prev[i]
			switch filter {
			case 0:
			case 1:
				cur[i] += left
			case 2:
				cur[i] += up
			case 3:
				cur[i] += byte((int(left) + int(up)) / 2)
			case 4:
				cur[i] += paeth(left, up, upLeft)
			default:
				return nil, fmt.Errorf("unknown PNG filter type %d", filter)
			}
		}
		out = append(out, cur...)
		prev = cur
	}
	return out, nil
}

func paeth(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa, pb, pc := abs(p-int(a)), abs(p-int(b)), abs(p-int(c))
	if pa <= pb && pa <= pc {
		return a
	}
	if pb <= pc {
		return b
	}
	return c
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
