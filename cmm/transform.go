package cmm

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Converter maps one sample, components in 0..1, to sRGB in 0..1.
type Converter interface {
	ToSRGB(in []float64) [3]float64
}

// DeviceConverter handles uncalibrated Gray, RGB and CMYK samples.
func DeviceConverter(channels int) (Converter, error) {
	switch channels {
	case 1:
		return deviceGray{}, nil
	case 3:
		return deviceRGB{}, nil
	case 4:
		return deviceCMYK{}, nil
	}
	return nil, fmt.Errorf("no device space with %d components", channels)
}

type deviceGray struct{}

func (deviceGray) ToSRGB(in []float64) [3]float64 { return [3]float64{in[0], in[0], in[0]} }

type deviceRGB struct{}

func (deviceRGB) ToSRGB(in []float64) [3]float64 { return [3]float64{in[0], in[1], in[2]} }

type deviceCMYK struct{}

func (deviceCMYK) ToSRGB(in []float64) [3]float64 {
	c, m, y, k := in[0], in[1], in[2], in[3]
	return [3]float64{(1 - c) * (1 - k), (1 - m) * (1 - k), (1 - y) * (1 - k)}
}

// Converter returns a calibrated converter for matrix/TRC RGB profiles and
// TRC gray profiles. Other profiles get the device converter for their
// component count.
func (p *Profile) Converter() (Converter, error) {
	switch p.space {
	case SpaceRGB:
		if m, err := p.matrixTRC(); err == nil {
			return m, nil
		}
	case SpaceGray:
		if c, err := p.curveTag("kTRC"); err == nil {
			return grayTRC{c}, nil
		}
	}
	return DeviceConverter(p.Channels())
}

type matrixTRC struct {
	trc    [3]curve
	matrix [9]float64 // device RGB to PCS XYZ (D50), row major
}

func (p *Profile) matrixTRC() (*matrixTRC, error) {
	var t matrixTRC
	for i, ch := range []string{"r", "g", "b"} {
		xyz, err := p.xyzTag(ch + "XYZ")
		if err != nil {
			return nil, err
		}
		t.matrix[i], t.matrix[3+i], t.matrix[6+i] = xyz[0], xyz[1], xyz[2]
		c, err := p.curveTag(ch + "TRC")
		if err != nil {
			return nil, err
		}
		t.trc[i] = c
	}
	return &t, nil
}

func (t *matrixTRC) ToSRGB(in []float64) [3]float64 {
	r, g, b := t.trc[0].eval(in[0]), t.trc[1].eval(in[1]), t.trc[2].eval(in[2])
	m := t.matrix
	return xyzToSRGB(
		m[0]*r+m[1]*g+m[2]*b,
		m[3]*r+m[4]*g+m[5]*b,
		m[6]*r+m[7]*g+m[8]*b,
	)
}

type grayTRC struct{ c curve }

func (g grayTRC) ToSRGB(in []float64) [3]float64 {
	v := encodeSRGB(g.c.eval(in[0]))
	return [3]float64{v, v, v}
}

// xyzToSRGB takes D50 XYZ to gamma-encoded sRGB (Bradford-adapted matrix).
func xyzToSRGB(x, y, z float64) [3]float64 {
	r := 3.1338561*x - 1.6168667*y - 0.4906146*z
	g := -0.9787684*x + 1.9161415*y + 0.0334540*z
	b := 0.0719453*x - 0.2289914*y + 1.4052427*z
	return [3]float64{encodeSRGB(r), encodeSRGB(g), encodeSRGB(b)}
}

func encodeSRGB(v float64) float64 {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 1
	case v <= 0.0031308:
		return 12.92 * v
	}
	return 1.055*math.Pow(v, 1/2.4) - 0.055
}

// curve is a decoded curv or para tag.
type curve struct {
	gamma  float64
	table  []float64
	params []float64 // para: g, a, b, c, d, e, f as present
	kind   int
}

func (p *Profile) curveTag(sig string) (curve, error) {
	d, ok := p.tags[sig]
	if !ok {
		return curve{}, fmt.Errorf("tag %s not found", sig)
	}
	if len(d) < 12 {
		return curve{}, fmt.Errorf("tag %s too short", sig)
	}
	switch string(d[0:4]) {
	case "curv":
		n := int(binary.BigEndian.Uint32(d[8:12]))
		switch {
		case n == 0:
			return curve{gamma: 1}, nil
		case n == 1 && len(d) >= 14:
			return curve{gamma: float64(binary.BigEndian.Uint16(d[12:14])) / 256}, nil
		case len(d) >= 12+2*n:
			table := make([]float64, n)
			for i := range table {
				table[i] = float64(binary.BigEndian.Uint16(d[12+2*i:])) / 65535
			}
			return curve{table: table}, nil
		}
	case "para":
		kind := int(binary.BigEndian.Uint16(d[8:10]))
		want := [...]int{1, 3, 4, 5, 7}
		if kind < 0 || kind >= len(want) || len(d) < 12+4*want[kind] {
			break
		}
		params := make([]float64, want[kind])
		for i := range params {
			params[i] = s15Fixed16(d[12+4*i:])
		}
		return curve{kind: kind, params: params}, nil
	}
	return curve{}, fmt.Errorf("tag %s: unsupported curve", sig)
}

func (c curve) eval(x float64) float64 {
	x = math.Max(0, math.Min(1, x))
	switch {
	case c.table != nil:
		pos := x * float64(len(c.table)-1)
		i := int(pos)
		if i >= len(c.table)-1 {
			return c.table[len(c.table)-1]
		}
		frac := pos - float64(i)
		return c.table[i]*(1-frac) + c.table[i+1]*frac
	case c.params != nil:
		return c.parametric(x)
	}
	return math.Pow(x, c.gamma)
}

func (c curve) parametric(x float64) float64 {
	p := c.params
	g := p[0]
	switch c.kind {
	case 0:
		return math.Pow(x, g)
	case 1:
		if x >= -p[2]/p[1] {
			return math.Pow(p[1]*x+p[2], g)
		}
		return 0
	case 2:
		if x >= -p[2]/p[1] {
			return math.Pow(p[1]*x+p[2], g) + p[3]
		}
		return p[3]
	case 3:
		if x >= p[4] {
			return math.Pow(p[1]*x+p[2], g)
		}
		return p[3] * x
	default:
		if x >= p[4] {
			return math.Pow(p[1]*x+p[2], g) + p[5]
		}
		return p[3]*x + p[6]
	}
}
