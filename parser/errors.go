package parser

import (
	"errors"
	"fmt"

	"github.com/robinvdvleuten/tally/warn"
)

// ErrUnknownDirective is wrapped by errors for lines that are neither a header,
// a metadata line nor a transfer.
var ErrUnknownDirective = errors.New("unknown directive")

// Position is a location in a source file.
type Position struct {
	Filename string
	Line     int // 1-indexed
	Column   int // 1-indexed
}

func (p Position) String() string {
	if p.Filename != "" {
		return fmt.Sprintf("%s:%d:%d", p.Filename, p.Line, p.Column)
	}
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// ParseError is a problem found in a year or price file. Class names the
// warning class that, when ignored, lets parsing degrade instead of failing.
type ParseError struct {
	Pos        Position
	Class      warn.Class
	Message    string
	Underlying error
}

func (e *ParseError) Error() string {
	location := fmt.Sprintf("%s:%d", e.Pos.Filename, e.Pos.Line)
	if e.Pos.Filename == "" {
		location = fmt.Sprintf("line %d", e.Pos.Line)
	}

	return fmt.Sprintf("%s: %s", location, e.Message)
}

func (e *ParseError) GetPosition() Position {
	return e.Pos
}

func (e *ParseError) Unwrap() error {
	return e.Underlying
}
