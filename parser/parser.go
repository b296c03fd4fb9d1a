// Package parser reads the line-oriented year files and price files a ledger
// is stored in.
//
// A year file holds entries in storage order:
//
//	2021-01-01 Coffee #aaaaaaaa
//	  ;payee:"Corner shop"
//	  	Expense.Coffee	3.50
//	  	Assets.Cash	-3.50
//
// Each entry starts with a header line (date, optional time, description and
// a trailing #uuid), followed by metadata lines (two spaces, a semicolon, a
// key and a JSON value) and transfer lines (two spaces, then memo, account and
// amount separated by tabs).
package parser

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/robinvdvleuten/tally/entry"
	"github.com/robinvdvleuten/tally/money"
	"github.com/robinvdvleuten/tally/telemetry"
	"github.com/robinvdvleuten/tally/warn"
)

const (
	// DateLayout is the layout of header dates.
	DateLayout = time.DateOnly
	// DateTimeLayout is the layout of header dates carrying a time of day.
	DateTimeLayout = "2006-01-02T15:04:05"

	maxLineSize = 1024 * 1024
)

var (
	headerRegex    = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})(?:T(\d{2}:\d{2}:\d{2}))?(?:[ \t]+(.*))?$`)
	uuidTokenRegex = regexp.MustCompile(`(?:^|\s)#(\S*)$`)
)

// Parser parses the files of one ledger. Options set the home currency for
// bare amounts and the warning policy that decides which problems are fatal.
type Parser struct {
	filename string
	home     string
	policy   *warn.Policy
	conv     money.Converter
	interner *Interner
}

// Option configures a Parser.
type Option func(*Parser)

// WithHome sets the currency of amounts written without one.
func WithHome(currency string) Option {
	return func(p *Parser) {
		p.home = currency
	}
}

// WithPolicy sets the warning policy. Without one every problem is fatal and
// imbalances are logged to slog.Default.
func WithPolicy(policy *warn.Policy) Option {
	return func(p *Parser) {
		p.policy = policy
	}
}

// WithConverter sets the rates that decide whether an entry spanning several
// currencies balances.
func WithConverter(conv money.Converter) Option {
	return func(p *Parser) {
		p.conv = conv
	}
}

// WithInterner shares account names with other parsers.
func WithInterner(i *Interner) Option {
	return func(p *Parser) {
		p.interner = i
	}
}

// New creates a Parser for filename, which is only used in error positions.
func New(filename string, opts ...Option) *Parser {
	p := &Parser{filename: filename}
	for _, opt := range opts {
		opt(p)
	}
	if p.interner == nil {
		p.interner = NewInterner(256)
	}
	return p
}

// Year is the parsed content of a year file.
type Year struct {
	Entries []*entry.Entry

	// Reassigned counts entries that received a fresh uuid because theirs was
	// missing, malformed or duplicated.
	Reassigned int

	// Dirty is set when the file needs rewriting to persist reassigned uuids.
	Dirty bool
}

// ParseYear parses a year file.
func ParseYear(ctx context.Context, filename string, r io.Reader, opts ...Option) (*Year, error) {
	return New(filename, opts...).ParseYear(ctx, r)
}

// ParseYear parses a year file. Every entry is balanced under the parser's
// policy before it is returned.
func (p *Parser) ParseYear(ctx context.Context, r io.Reader) (*Year, error) {
	timer := telemetry.StartTimer(ctx, "parser.year "+filepath.Base(p.filename))
	defer timer.End()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	year := &Year{}
	taken := make(map[string]bool)
	var current *entry.Entry
	var currentLine int

	finish := func() error {
		if current == nil {
			return nil
		}
		if err := current.Balance(p.policy, p.conv); err != nil {
			return &ParseError{
				Pos:        p.pos(currentLine, 1),
				Class:      warn.ImbalancedEntries,
				Message:    err.Error(),
				Underlying: err,
			}
		}
		year.Entries = append(year.Entries, current)
		current = nil
		return nil
	}

	line := 0
	for scanner.Scan() {
		line++
		if line%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		text := strings.TrimSuffix(scanner.Text(), "\r")

		switch {
		case len(text) > 0 && text[0] >= '0' && text[0] <= '9':
			if err := finish(); err != nil {
				return nil, err
			}
			e, err := p.parseHeader(text, line, taken, year)
			if err != nil {
				if err = p.degrade(err); err != nil {
					return nil, err
				}
				continue
			}
			current, currentLine = e, line

		case strings.HasPrefix(text, "  ;"):
			if current == nil {
				if err := p.degrade(p.unknown(text, line)); err != nil {
					return nil, err
				}
				continue
			}
			if err := p.degrade(p.parseMetadata(current, text, line)); err != nil {
				return nil, err
			}

		case strings.HasPrefix(text, "  "):
			if current == nil {
				if err := p.degrade(p.unknown(text, line)); err != nil {
					return nil, err
				}
				continue
			}
			if err := p.degrade(p.parseTransfer(current, text, line)); err != nil {
				return nil, err
			}

		default:
			if err := p.degrade(p.unknown(text, line)); err != nil {
				return nil, err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", p.filename, err)
	}
	if err := finish(); err != nil {
		return nil, err
	}

	return year, nil
}

// degrade swallows err when its class is ignored by the policy.
func (p *Parser) degrade(err error) error {
	var perr *ParseError
	if errors.As(err, &perr) && perr.Class != "" && p.policy.Ignored(perr.Class) {
		return nil
	}
	return err
}

func (p *Parser) pos(line, column int) Position {
	return Position{Filename: p.filename, Line: line, Column: column}
}

func (p *Parser) unknown(text string, line int) error {
	return &ParseError{
		Pos:        p.pos(line, 1),
		Class:      warn.UnknownDirectives,
		Message:    fmt.Sprintf("unknown directive %q", text),
		Underlying: ErrUnknownDirective,
	}
}

func (p *Parser) parseHeader(text string, line int, taken map[string]bool, year *Year) (*entry.Entry, error) {
	m := headerRegex.FindStringSubmatch(text)
	if m == nil {
		return nil, p.unknown(text, line)
	}

	t, err := parseTimestamp(m[1], m[2])
	if err != nil {
		return nil, &ParseError{
			Pos:        p.pos(line, 1),
			Class:      warn.UnknownDirectives,
			Message:    fmt.Sprintf("invalid date %q", strings.TrimSpace(m[1]+" "+m[2])),
			Underlying: errors.Join(ErrUnknownDirective, err),
		}
	}

	description := strings.TrimSpace(m[3])
	id := ""
	if loc := uuidTokenRegex.FindStringSubmatchIndex(description); loc != nil {
		token := description[loc[2]:loc[3]]
		if entry.ValidUUID(token) || token == "" || len(token) == entry.UUIDLength {
			description = strings.TrimSpace(description[:loc[0]])
			id = token
		}
	}

	if !entry.ValidUUID(id) || taken[id] {
		previous := id
		id = entry.NewUUID(func(s string) bool { return taken[s] })
		year.Reassigned++
		year.Dirty = true
		p.policy.Report(warn.ReassignedUUIDs, "assigned a new uuid",
			slog.String("file", p.filename),
			slog.Int("line", line),
			slog.String("previous", previous),
			slog.String("uuid", id),
		)
	}
	taken[id] = true

	return &entry.Entry{
		UUID:        id,
		Time:        t,
		Description: description,
		Metadata:    entry.Metadata{},
	}, nil
}

// parseTimestamp parses a header date with an optional time of day. Ledger
// times are wall-clock times and are kept in UTC.
func parseTimestamp(date, clock string) (time.Time, error) {
	if clock == "" {
		return time.ParseInLocation(DateLayout, date, time.UTC)
	}
	return time.ParseInLocation(DateTimeLayout, date+"T"+clock, time.UTC)
}

func (p *Parser) parseMetadata(e *entry.Entry, text string, line int) error {
	body := strings.TrimPrefix(text, "  ;")
	key, raw, ok := strings.Cut(body, ":")
	if !ok || key == "" {
		return &ParseError{
			Pos:        p.pos(line, 4),
			Class:      warn.InvalidMetadata,
			Message:    fmt.Sprintf("metadata line %q has no key", text),
			Underlying: entry.ErrInvalidValue,
		}
	}

	value, err := entry.ParseValue(raw)
	if err != nil {
		return &ParseError{
			Pos:        p.pos(line, 4+len(key)+1),
			Class:      warn.InvalidMetadata,
			Message:    fmt.Sprintf("invalid value for %q: %v", key, err),
			Underlying: err,
		}
	}

	if err := e.SetMeta(key, value); err != nil {
		return &ParseError{
			Pos:        p.pos(line, 4),
			Class:      warn.InvalidMetadata,
			Message:    err.Error(),
			Underlying: err,
		}
	}
	return nil
}

func (p *Parser) parseTransfer(e *entry.Entry, text string, line int) error {
	fields := strings.Split(strings.TrimPrefix(text, "  "), "\t")

	var memo, account, amountText string
	switch len(fields) {
	case 3:
		memo, account, amountText = fields[0], fields[1], fields[2]
	case 2:
		account, amountText = fields[0], fields[1]
	default:
		return p.unknown(text, line)
	}

	account = strings.TrimSpace(account)
	if account == "" || strings.ContainsAny(account, " \t") {
		return p.unknown(text, line)
	}

	amount, err := money.Parse(amountText, p.home, e.Time)
	if err != nil {
		column := len(text) - len(amountText) + 1
		perr := &ParseError{
			Pos:        p.pos(line, column),
			Class:      warn.MalformedAmounts,
			Message:    err.Error(),
			Underlying: err,
		}
		if !p.policy.Ignored(warn.MalformedAmounts) {
			return perr
		}
		amount = money.Money{Home: p.home, AsOf: e.Time}
	}

	e.Transfers = append(e.Transfers, entry.Transfer{
		Memo:    memo,
		Account: p.interner.Intern(account),
		Amount:  amount,
	})
	return nil
}
