package money

import (
	"regexp"
	"strings"
	"time"
)

// amountRegex matches one currency/amount pair. The currency may precede or
// follow the number, with or without whitespace, and the sign may sit on either
// side of a prefix currency ("-$5", "$-5").
var amountRegex = regexp.MustCompile(
	`^([+-]?)\s*([^\s\d.,+-][^\s\d,+-]*)?\s*([+-]?)\s*(\d+(?:\.\d*)?|\.\d+)\s*([^\s\d.,+-][^\s\d,]*)?$`,
)

// Parse parses a comma-separated amount expression such as "12.3 EUR, 5 USD".
// Numbers without a currency are in home. Blank text is zero. Each currency
// records how many fractional digits were written for it.
func Parse(text, home string, asOf time.Time) (Money, error) {
	m := Money{Home: home, AsOf: asOf}
	if strings.TrimSpace(text) == "" {
		return m, nil
	}

	for _, part := range strings.Split(text, ",") {
		currency, amount, places, err := parsePair(part)
		if err != nil {
			return Money{}, err
		}
		if currency == "" {
			currency = home
		}
		m = m.with(currency, amount)
		if p, ok := m.precision[currency]; !ok || places > p {
			m.precision[currency] = places
		}
	}

	return m, nil
}

// MustParse parses text and panics on error.
func MustParse(text, home string) Money {
	m, err := Parse(text, home, time.Time{})
	if err != nil {
		panic(err)
	}
	return m
}

func parsePair(text string) (currency string, amount Decimal, places int, err error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return "", Zero, 0, &InvalidAmountError{Text: text, Reason: "empty amount"}
	}

	match := amountRegex.FindStringSubmatch(s)
	if match == nil {
		return "", Zero, 0, &InvalidAmountError{Text: text, Reason: "not an amount"}
	}

	outerSign, prefix, innerSign, number, suffix := match[1], match[2], match[3], match[4], match[5]
	if outerSign != "" && innerSign != "" {
		return "", Zero, 0, &InvalidAmountError{Text: text, Reason: "duplicate sign"}
	}
	if prefix != "" && suffix != "" {
		return "", Zero, 0, &InvalidAmountError{Text: text, Reason: "currency on both sides"}
	}
	amount, err = ParseDecimal(outerSign + innerSign + number)
	if err != nil {
		return "", Zero, 0, err
	}

	if i := strings.IndexByte(number, '.'); i >= 0 {
		places = len(number) - i - 1
	}

	return prefix + suffix, amount, places, nil
}
