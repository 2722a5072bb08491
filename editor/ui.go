package editor

import (
	"fmt"
	"sync"
)

// Level grades a user notification.
type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelWarning
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "info"
	case LevelSuccess:
		return "success"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// UI is everything the session needs from the shell hosting it.
type UI interface {
	ReadField(name string) string
	SetField(name, value string)
	ShowPanel(name string, visible bool)
	Notify(level Level, msg string)
}

// ImagePicker is implemented by shells that can ask the user for an image
// when the image tool is clicked.
type ImagePicker interface {
	PickImage() ([]byte, error)
}

// Properties panel fields.
const (
	FieldX           = "prop-x"
	FieldY           = "prop-y"
	FieldText        = "prop-text-content"
	FieldFontSize    = "prop-font-size"
	FieldTextColor   = "prop-text-color"
	FieldImageWidth  = "prop-image-width"
	FieldImageHeight = "prop-image-height"
	FieldShapeWidth  = "prop-shape-width"
	FieldShapeHeight = "prop-shape-height"
	FieldShapeFill   = "prop-shape-fill"
	FieldShapeBorder = "prop-shape-border"
)

// Panels.
const (
	PanelProperties = "properties-panel"
	PanelText       = "text-properties"
	PanelImage      = "image-properties"
	PanelShape      = "shape-properties"
)

// Notification is one message delivered through MemoryUI.
type Notification struct {
	Level   Level
	Message string
}

// MemoryUI keeps fields and panels in maps. It backs headless sessions
// and scripts.
type MemoryUI struct {
	mu     sync.Mutex
	fields map[string]string
	panels map[string]bool
	notes  []Notification
	// OnNotify, when set, sees every notification as it arrives.
	OnNotify func(Notification)
	// Images feeds PickImage in order.
	Images [][]byte
}

func NewMemoryUI() *MemoryUI {
	return &MemoryUI{fields: make(map[string]string), panels: make(map[string]bool)}
}

func (u *MemoryUI) ReadField(name string) string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.fields[name]
}

func (u *MemoryUI) SetField(name, value string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.fields[name] = value
}

func (u *MemoryUI) ShowPanel(name string, visible bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.panels[name] = visible
}

// PanelVisible reports the last visibility set for name.
func (u *MemoryUI) PanelVisible(name string) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.panels[name]
}

func (u *MemoryUI) Notify(level Level, msg string) {
	n := Notification{Level: level, Message: msg}
	u.mu.Lock()
	u.notes = append(u.notes, n)
	cb := u.OnNotify
	u.mu.Unlock()
	if cb != nil {
		cb(n)
	}
}

// Notifications returns everything notified so far.
func (u *MemoryUI) Notifications() []Notification {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]Notification(nil), u.notes...)
}

// Last returns the most recent notification.
func (u *MemoryUI) Last() (Notification, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if len(u.notes) == 0 {
		return Notification{}, false
	}
	return u.notes[len(u.notes)-1], true
}

func (u *MemoryUI) PickImage() ([]byte, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if len(u.Images) == 0 {
		return nil, fmt.Errorf("no image chosen")
	}
	data := u.Images[0]
	u.Images = u.Images[1:]
	return data, nil
}
