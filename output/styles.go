// Package output provides styling and alignment helpers for terminal output.
package output

import (
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/muesli/termenv"
)

// Styles colors report output. Colors are dropped automatically when the
// writer is not a terminal.
type Styles struct {
	output *termenv.Output
}

// NewStyles creates Styles for w.
func NewStyles(w io.Writer) *Styles {
	return &Styles{
		output: termenv.NewOutput(w),
	}
}

// Success returns green bold text.
func (s *Styles) Success(text string) string {
	return s.output.String(text).Foreground(s.output.Color("2")).Bold().String()
}

// Error returns red bold text.
func (s *Styles) Error(text string) string {
	return s.output.String(text).Foreground(s.output.Color("1")).Bold().String()
}

// FilePath returns cyan text.
func (s *Styles) FilePath(text string) string {
	return s.output.String(text).Foreground(s.output.Color("6")).String()
}

// Account returns yellow text.
func (s *Styles) Account(text string) string {
	return s.output.String(text).Foreground(s.output.Color("3")).String()
}

// Amount colors an amount by sign: red below zero, green above, dim at zero.
func (s *Styles) Amount(text string, sign int) string {
	switch {
	case sign < 0:
		return s.output.String(text).Foreground(s.output.Color("1")).String()
	case sign > 0:
		return s.output.String(text).Foreground(s.output.Color("2")).String()
	}
	return s.Dim(text)
}

// Date returns blue text.
func (s *Styles) Date(text string) string {
	return s.output.String(text).Foreground(s.output.Color("4")).String()
}

// Keyword returns bold text.
func (s *Styles) Keyword(text string) string {
	return s.output.String(text).Bold().String()
}

// Dim returns faint text.
func (s *Styles) Dim(text string) string {
	return s.output.String(text).Faint().String()
}

// Warning returns yellow bold text.
func (s *Styles) Warning(text string) string {
	return s.output.String(text).Foreground(s.output.Color("3")).Bold().String()
}

// Output returns the underlying termenv output.
func (s *Styles) Output() *termenv.Output {
	return s.output
}

// Width returns the number of terminal cells text occupies.
func Width(text string) int {
	return runewidth.StringWidth(text)
}

// PadRight pads text with spaces to width cells.
func PadRight(text string, width int) string {
	if w := Width(text); w < width {
		return text + strings.Repeat(" ", width-w)
	}
	return text
}

// PadLeft right-aligns text within width cells.
func PadLeft(text string, width int) string {
	if w := Width(text); w < width {
		return strings.Repeat(" ", width-w) + text
	}
	return text
}

// Truncate shortens text to width cells, ending with an ellipsis when cut.
func Truncate(text string, width int) string {
	return runewidth.Truncate(text, width, "…")
}
