// Package cmm converts image samples to sRGB. ICC profiles with a
// matrix/TRC model are honoured; anything else falls back to the device
// space implied by the component count.
package cmm

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var ErrProfile = errors.New("invalid ICC profile")

// Color space signatures from the profile header.
const (
	SpaceGray = "GRAY"
	SpaceRGB  = "RGB "
	SpaceCMYK = "CMYK"
	SpaceLab  = "Lab "
	SpaceXYZ  = "XYZ "
)

// Profile is the parsed header and tag table of an ICC profile.
type Profile struct {
	data  []byte
	class string
	space string
	pcs   string
	tags  map[string][]byte
}

// ParseProfile reads the header and tag directory. Tag payloads are
// decoded on demand.
func ParseProfile(data []byte) (*Profile, error) {
	if len(data) < 132 {
		return nil, fmt.Errorf("%w: %d bytes", ErrProfile, len(data))
	}
	if string(data[36:40]) != "acsp" {
		return nil, fmt.Errorf("%w: missing acsp signature", ErrProfile)
	}
	p := &Profile{
		data:  data,
		class: string(data[12:16]),
		space: string(data[16:20]),
		pcs:   string(data[20:24]),
		tags:  make(map[string][]byte),
	}
	count := int(binary.BigEndian.Uint32(data[128:132]))
	for i := 0; i < count; i++ {
		at := 132 + 12*i
		if at+12 > len(data) {
			return nil, fmt.Errorf("%w: tag table truncated", ErrProfile)
		}
		sig := string(data[at : at+4])
		off := int(binary.BigEndian.Uint32(data[at+4 : at+8]))
		size := int(binary.BigEndian.Uint32(data[at+8 : at+12]))
		if off < 0 || size < 0 || off+size > len(data) {
			continue
		}
		p.tags[sig] = data[off : off+size]
	}
	return p, nil
}

func (p *Profile) Class() string      { return p.class }
func (p *Profile) ColorSpace() string { return p.space }
func (p *Profile) PCS() string        { return p.pcs }

// Channels is the number of components of the profile's colour space.
func (p *Profile) Channels() int { return Channels(p.space) }

func Channels(space string) int {
	switch space {
	case SpaceGray:
		return 1
	case SpaceRGB, SpaceLab, SpaceXYZ:
		return 3
	case SpaceCMYK:
		return 4
	}
	return 0
}

// Description returns the 'desc' tag text, or "".
func (p *Profile) Description() string {
	d, ok := p.tags["desc"]
	if !ok || len(d) < 12 {
		return ""
	}
	switch string(d[0:4]) {
	case "desc":
		n := int(binary.BigEndian.Uint32(d[8:12]))
		if n <= 0 || 12+n > len(d) {
			return ""
		}
		s := d[12 : 12+n]
		if s[len(s)-1] == 0 {
			s = s[:len(s)-1]
		}
		return string(s)
	case "mluc":
		// First record only; strings are UTF-16BE.
		if len(d) < 28 {
			return ""
		}
		n := int(binary.BigEndian.Uint32(d[20:24]))
		off := int(binary.BigEndian.Uint32(d[24:28]))
		if off+n > len(d) {
			return ""
		}
		runes := make([]rune, 0, n/2)
		for i := off; i+1 < off+n; i += 2 {
			runes = append(runes, rune(binary.BigEndian.Uint16(d[i:i+2])))
		}
		return string(runes)
	}
	return ""
}

func s15Fixed16(b []byte) float64 {
	return float64(int32(binary.BigEndian.Uint32(b))) / 65536
}

func (p *Profile) xyzTag(sig string) ([3]float64, error) {
	d, ok := p.tags[sig]
	if !ok {
		return [3]float64{}, fmt.Errorf("tag %s not found", sig)
	}
	if len(d) < 20 || string(d[0:4]) != "XYZ " {
		return [3]float64{}, fmt.Errorf("tag %s is not XYZ", sig)
	}
	return [3]float64{s15Fixed16(d[8:12]), s15Fixed16(d[12:16]), s15Fixed16(d[16:20])}, nil
}
