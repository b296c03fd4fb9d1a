package parser

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/robinvdvleuten/tally/exchange"
	"github.com/robinvdvleuten/tally/money"
	"github.com/robinvdvleuten/tally/telemetry"
	"github.com/robinvdvleuten/tally/warn"
)

// Price is one P directive and where it was read from.
type Price struct {
	Pos Position
	exchange.Rate
}

// ParsePrices parses a price file.
func ParsePrices(ctx context.Context, filename string, r io.Reader, opts ...Option) ([]Price, error) {
	return New(filename, opts...).ParsePrices(ctx, r)
}

// ParsePrices parses a price file. Lines look like
//
//	P 2021-01-01 EUR 1.17 USD
//	P 2021-01-01 R $0.07
//
// Blank lines and lines starting with ';' are skipped.
func (p *Parser) ParsePrices(ctx context.Context, r io.Reader) ([]Price, error) {
	timer := telemetry.StartTimer(ctx, "parser.prices "+filepath.Base(p.filename))
	defer timer.End()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var prices []Price
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, ";") {
			continue
		}

		price, err := p.parsePrice(stripComment(text), line)
		if err != nil {
			if err = p.degrade(err); err != nil {
				return nil, err
			}
			continue
		}
		prices = append(prices, price)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", p.filename, err)
	}

	return prices, nil
}

// stripComment cuts text at the first semicolon that follows whitespace.
func stripComment(text string) string {
	for i := 1; i < len(text); i++ {
		if text[i] == ';' && (text[i-1] == ' ' || text[i-1] == '\t') {
			return strings.TrimSpace(text[:i])
		}
	}
	return text
}

func (p *Parser) parsePrice(text string, line int) (Price, error) {
	fields := strings.Fields(text)
	if len(fields) < 4 || fields[0] != "P" {
		return Price{}, p.unknown(text, line)
	}

	at, err := time.ParseInLocation(DateLayout, fields[1], time.UTC)
	if err != nil {
		return Price{}, &ParseError{
			Pos:        p.pos(line, 3),
			Class:      warn.UnknownDirectives,
			Message:    fmt.Sprintf("invalid date %q", fields[1]),
			Underlying: err,
		}
	}

	from := fields[2]
	amountText := strings.Join(fields[3:], " ")
	column := strings.Index(text, fields[3]) + 1

	amount, err := money.Parse(amountText, "", at)
	if err != nil {
		return Price{}, &ParseError{
			Pos:        p.pos(line, column),
			Class:      warn.MalformedAmounts,
			Message:    err.Error(),
			Underlying: err,
		}
	}

	currencies := amount.Currencies()
	if len(currencies) != 1 || currencies[0] == "" {
		return Price{}, &ParseError{
			Pos:        p.pos(line, column),
			Class:      warn.MalformedAmounts,
			Message:    fmt.Sprintf("price %q must be a single non-zero amount with a currency", amountText),
			Underlying: money.ErrInvalidAmount,
		}
	}
	to := currencies[0]
	if to == from {
		return Price{}, &ParseError{
			Pos:        p.pos(line, column),
			Class:      warn.MalformedAmounts,
			Message:    fmt.Sprintf("price of %s in itself", from),
			Underlying: money.ErrInvalidAmount,
		}
	}

	return Price{
		Pos: p.pos(line, 1),
		Rate: exchange.Rate{
			From: p.interner.Intern(from),
			To:   p.interner.Intern(to),
			Rate: amount.Amount(to),
			At:   at,
		},
	}, nil
}

// Rates strips positions from prices.
func Rates(prices []Price) []exchange.Rate {
	out := make([]exchange.Rate, len(prices))
	for i, p := range prices {
		out[i] = p.Rate
	}
	return out
}
