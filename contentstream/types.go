package contentstream

// TextRenderMode matches PDF text rendering modes set via Tr operator.
type TextRenderMode int

const (
	TextFill TextRenderMode = iota
	TextStroke
	TextFillStroke
	TextInvisible
	TextFillClip
	TextStrokeClip
	TextFillStrokeClip
	TextClip
)

// Paints reports whether glyphs shown in mode m leave marks on the page.
func (m TextRenderMode) Paints() bool { return m != TextInvisible && m != TextClip }

// LineCap represents the line cap style (J operator).
type LineCap int

const (
	LineCapButt LineCap = iota
	LineCapRound
	LineCapSquare
)

// LineJoin represents the line join style (j operator).
type LineJoin int

const (
	LineJoinMiter LineJoin = iota
	LineJoinRound
	LineJoinBevel
)

// RGB is a colour with components in [0, 1].
type RGB struct{ R, G, B float64 }

var (
	Black = RGB{}
	White = RGB{1, 1, 1}
)
