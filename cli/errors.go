package cli

import (
	"errors"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/robinvdvleuten/tally/entry"
	"github.com/robinvdvleuten/tally/formatter"
	"github.com/robinvdvleuten/tally/parser"
)

var (
	errCaretStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#FF5F87", Dark: "#FF5F87"})
	errContextStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#808080", Dark: "#808080"})
)

// ErrorRenderer renders errors with terminal styling and source context.
type ErrorRenderer struct {
	source []byte
	lookup func(uuid string) (*entry.Entry, bool)
}

// NewErrorRenderer creates a renderer with source content for context. With
// nil source the file named by an error's position is read instead.
func NewErrorRenderer(source []byte) *ErrorRenderer {
	return &ErrorRenderer{source: source}
}

// WithEntries lets the renderer show the entry an imbalance error is about.
func (r *ErrorRenderer) WithEntries(lookup func(uuid string) (*entry.Entry, bool)) *ErrorRenderer {
	r.lookup = lookup
	return r
}

// Render formats a single error with styling and context.
func (r *ErrorRenderer) Render(err error) string {
	var perr *parser.ParseError
	if errors.As(err, &perr) {
		if source := r.sourceFor(perr.Pos); source != nil {
			return r.renderWithSourceContext(perr.Pos, perr.Error(), source)
		}
		return err.Error()
	}

	var ierr *entry.ImbalancedEntryError
	if errors.As(err, &ierr) && r.lookup != nil {
		if e, ok := r.lookup(ierr.UUID); ok {
			return r.renderWithEntry(e, err.Error())
		}
	}

	if e, ok := err.(interface {
		GetPosition() parser.Position
		Error() string
	}); ok {
		if source := r.sourceFor(e.GetPosition()); source != nil {
			return r.renderWithSourceContext(e.GetPosition(), e.Error(), source)
		}
	}

	return err.Error()
}

// RenderAll formats multiple errors, separating them with blank lines.
func (r *ErrorRenderer) RenderAll(errs []error) string {
	if len(errs) == 0 {
		return ""
	}

	var buf strings.Builder
	for i, err := range errs {
		buf.WriteString(r.Render(err))

		if i < len(errs)-1 {
			buf.WriteString("\n\n")
		}
	}

	return buf.String()
}

func (r *ErrorRenderer) sourceFor(pos parser.Position) []byte {
	if r.source != nil {
		return r.source
	}
	if pos.Filename == "" {
		return nil
	}
	data, err := os.ReadFile(pos.Filename)
	if err != nil {
		return nil
	}
	return data
}

func (r *ErrorRenderer) renderWithSourceContext(pos parser.Position, message string, sourceContent []byte) string {
	var buf strings.Builder

	buf.WriteString(errorStyle.Render(message))
	buf.WriteString("\n\n")

	sourceLines := strings.Split(string(sourceContent), "\n")

	startLine := pos.Line - 3
	endLine := pos.Line + 1

	if startLine < 0 {
		startLine = 0
	}
	if endLine >= len(sourceLines) {
		endLine = len(sourceLines) - 1
	}

	for i := startLine; i <= endLine; i++ {
		buf.WriteString("   ")
		buf.WriteString(errContextStyle.Render(expandTabs(sourceLines[i])))
		buf.WriteByte('\n')

		if i == pos.Line-1 && pos.Column > 0 {
			buf.WriteString("   ")
			buf.WriteString(strings.Repeat(" ", caretOffset(sourceLines[i], pos.Column)))
			buf.WriteString(errCaretStyle.Render("^"))
			buf.WriteByte('\n')
		}
	}

	return buf.String()
}

func (r *ErrorRenderer) renderWithEntry(e *entry.Entry, message string) string {
	var buf strings.Builder

	buf.WriteString(errorStyle.Render(message))
	buf.WriteString("\n\n")

	var text strings.Builder
	if err := formatter.New().Display(e, &text); err != nil {
		return message
	}
	for _, line := range strings.Split(strings.TrimRight(text.String(), "\n"), "\n") {
		buf.WriteString("   ")
		buf.WriteString(errContextStyle.Render(line))
		buf.WriteByte('\n')
	}

	return buf.String()
}

const tabWidth = 4

// expandTabs replaces tabs with spaces so the caret lines up under them.
func expandTabs(line string) string {
	if !strings.Contains(line, "\t") {
		return line
	}
	var b strings.Builder
	col := 0
	for _, r := range line {
		if r == '\t' {
			n := tabWidth - col%tabWidth
			b.WriteString(strings.Repeat(" ", n))
			col += n
			continue
		}
		b.WriteRune(r)
		col++
	}
	return b.String()
}

// caretOffset is the display offset of the 1-indexed rune column in line
// once tabs are expanded.
func caretOffset(line string, column int) int {
	col := 0
	for i, r := range []rune(line) {
		if i >= column-1 {
			break
		}
		if r == '\t' {
			col += tabWidth - col%tabWidth
			continue
		}
		col++
	}
	return col
}
