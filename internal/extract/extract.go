// Package extract recovers structured transaction records from notification
// email text.
package extract

import (
	"fmt"
	"log/slog"
	"regexp"

	"github.com/shopspring/decimal"
)

// Transaction is one extracted bank transaction.
type Transaction struct {
	Amount    decimal.Decimal
	Reference string
}

// MarshalJSON renders the amount as an unquoted two-decimal number and the
// reference as a string. References can exceed float64 precision, so they
// must never be emitted as numbers.
func (t Transaction) MarshalJSON() ([]byte, error) {
	return fmt.Appendf(nil, `{"amount":%s,"utr":%q}`, t.Amount.StringFixed(2), t.Reference), nil
}

// Pattern holds the fixed phrases the extractor matches on. Zero-value
// fields fall back to the HDFC credit alert wording.
type Pattern struct {
	CurrencyMarker  string
	CreditPhrase    string
	ReferencePhrase string
}

// DefaultPattern returns the HDFC credit alert pattern.
func DefaultPattern() Pattern {
	return Pattern{
		CurrencyMarker:  "Rs.",
		CreditPhrase:    "is successfully credited",
		ReferencePhrase: "reference number is",
	}
}

// Extractor matches notification text against a compiled pattern.
type Extractor struct {
	re     *regexp.Regexp
	logger *slog.Logger
}

// New compiles p into an Extractor. The amount must carry exactly two
// decimal digits and may be separated from the reference phrase by any
// amount of text, including newlines.
func New(p Pattern, logger *slog.Logger) (*Extractor, error) {
	def := DefaultPattern()
	if p.CurrencyMarker == "" {
		p.CurrencyMarker = def.CurrencyMarker
	}
	if p.CreditPhrase == "" {
		p.CreditPhrase = def.CreditPhrase
	}
	if p.ReferencePhrase == "" {
		p.ReferencePhrase = def.ReferencePhrase
	}

	expr := `(?s)` +
		regexp.QuoteMeta(p.CurrencyMarker) +
		`(\d+\.\d{2})\s+` +
		regexp.QuoteMeta(p.CreditPhrase) +
		`.*?` +
		regexp.QuoteMeta(p.ReferencePhrase) +
		`\s+(\d+)`
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("compile pattern: %w", err)
	}
	return &Extractor{re: re, logger: logger}, nil
}

// Extract returns the transaction found in text, or false when the text
// does not match. Parse failures are logged and reported as no match; they
// never propagate.
func (e *Extractor) Extract(text string) (Transaction, bool) {
	m := e.re.FindStringSubmatch(text)
	if m == nil {
		return Transaction{}, false
	}

	amount, err := decimal.NewFromString(m[1])
	if err != nil {
		e.logger.Debug("amount parse failed", "raw", m[1], "error", err)
		return Transaction{}, false
	}

	return Transaction{
		Amount:    amount,
		Reference: m[2],
	}, true
}
