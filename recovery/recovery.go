// Package recovery decides what the parser does when it meets damaged input.
package recovery

import (
	"fmt"

	"github.com/wudi/pdfstudio/observability"
)

type Strategy interface {
	OnError(err error, location Location) Action
}

type Location struct {
	ByteOffset int64
	ObjectNum  int
	ObjectGen  int
	Component  string
}

func (l Location) String() string {
	if l.ObjectNum > 0 {
		return fmt.Sprintf("%s (object %d %d, offset %d)", l.Component, l.ObjectNum, l.ObjectGen, l.ByteOffset)
	}
	return fmt.Sprintf("%s (offset %d)", l.Component, l.ByteOffset)
}

type Action int

const (
	ActionFail Action = iota
	ActionSkip
	ActionFix
)

// StrictStrategy fails on the first problem.
type StrictStrategy struct{}

func NewStrictStrategy() *StrictStrategy { return &StrictStrategy{} }

func (*StrictStrategy) OnError(error, Location) Action { return ActionFail }

// LenientStrategy records every problem and asks the caller to carry on:
// a broken cross-reference table is rebuilt, an unreadable object is skipped.
type LenientStrategy struct {
	Errors []error
	Logger observability.Logger
}

func NewLenientStrategy(logger observability.Logger) *LenientStrategy {
	return &LenientStrategy{Logger: observability.OrNop(logger)}
}

func (s *LenientStrategy) OnError(err error, location Location) Action {
	s.Errors = append(s.Errors, fmt.Errorf("%s: %w", location, err))
	observability.OrNop(s.Logger).Warn("recovering from damaged input",
		observability.String("component", location.Component),
		observability.Int64("offset", location.ByteOffset),
		observability.Error("error", err))
	if location.Component == "xref" {
		return ActionFix
	}
	return ActionSkip
}

// Decide applies s to err, treating a nil strategy as strict.
func Decide(s Strategy, err error, location Location) Action {
	if s == nil {
		return ActionFail
	}
	return s.OnError(err, location)
}
