// Package tx implements transaction construction and signing: the
// transaction envelope, typed operations with the chain's [name, body]
// JSON encoding, the binary signing serialization, TaPoS reference
// computation, and broadcast shape validation.
package tx

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimeFormat is the chain's timestamp layout: ISO 8601 without
// milliseconds or zone suffix, always UTC.
const TimeFormat = "2006-01-02T15:04:05"

// Time wraps time.Time with the chain's JSON encoding.
type Time struct {
	time.Time
}

// NewTime creates a chain timestamp (truncated to whole seconds, UTC).
func NewTime(t time.Time) Time {
	return Time{t.UTC().Truncate(time.Second)}
}

// MarshalJSON implements json.Marshaler.
func (t Time) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.UTC().Format(TimeFormat) + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler. Accepts the chain layout and,
// for robustness at the request boundary, unix-seconds numbers.
func (t *Time) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		return nil
	}
	// Numeric expirations occasionally arrive embedded in operations;
	// normalize them to the chain layout.
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		t.Time = time.Unix(secs, 0).UTC()
		return nil
	}
	parsed, err := time.Parse(TimeFormat, s)
	if err != nil {
		// Tolerate a trailing Z or milliseconds from sloppy callers.
		parsed, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return fmt.Errorf("parse chain time %q: %w", s, err)
		}
	}
	t.Time = parsed.UTC()
	return nil
}

// Envelope is a transaction ready for signing and broadcast.
type Envelope struct {
	RefBlockNum    uint16            `json:"ref_block_num"`
	RefBlockPrefix uint32            `json:"ref_block_prefix"`
	Expiration     Time              `json:"expiration"`
	Operations     Operations        `json:"operations"`
	Extensions     []json.RawMessage `json:"extensions"`
	Signatures     []string          `json:"signatures"`
}

// NewEnvelope creates an envelope with the given TaPoS reference and expiry.
func NewEnvelope(ref RefBlock, expiry time.Time, ops ...Operation) *Envelope {
	return &Envelope{
		RefBlockNum:    ref.Num,
		RefBlockPrefix: ref.Prefix,
		Expiration:     NewTime(expiry),
		Operations:     ops,
		Extensions:     []json.RawMessage{},
		Signatures:     []string{},
	}
}

// Asset precision by symbol.
var assetPrecision = map[string]uint8{
	"HIVE":  3,
	"HBD":   3,
	"STEEM": 3,
	"SBD":   3,
	"TESTS": 3,
	"TBD":   3,
	"VESTS": 6,
}

// FormatAsset renders an "amount SYMBOL" string with the symbol's exact
// precision (e.g. "1.5", "STEEM" -> "1.500 STEEM").
func FormatAsset(amount, symbol string) (string, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	precision, ok := assetPrecision[symbol]
	if !ok {
		return "", fmt.Errorf("unknown asset symbol %q", symbol)
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(amount), 64)
	if err != nil {
		return "", fmt.Errorf("parse amount %q: %w", amount, err)
	}
	if value < 0 {
		return "", fmt.Errorf("amount must not be negative")
	}
	return strconv.FormatFloat(value, 'f', int(precision), 64) + " " + symbol, nil
}

// parseAsset splits an "amount SYMBOL" string into base units, precision
// and symbol for binary serialization.
func parseAsset(s string) (amount int64, precision uint8, symbol string, err error) {
	parts := strings.Fields(s)
	if len(parts) != 2 {
		return 0, 0, "", fmt.Errorf("asset %q must be \"amount SYMBOL\"", s)
	}
	symbol = strings.ToUpper(parts[1])
	precision, ok := assetPrecision[symbol]
	if !ok {
		return 0, 0, "", fmt.Errorf("unknown asset symbol %q", symbol)
	}

	intPart, fracPart, _ := strings.Cut(parts[0], ".")
	if len(fracPart) > int(precision) {
		return 0, 0, "", fmt.Errorf("asset %q exceeds precision %d", s, precision)
	}
	fracPart += strings.Repeat("0", int(precision)-len(fracPart))

	whole, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, 0, "", fmt.Errorf("parse asset %q: %w", s, err)
	}
	frac := int64(0)
	if fracPart != "" {
		frac, err = strconv.ParseInt(fracPart, 10, 64)
		if err != nil {
			return 0, 0, "", fmt.Errorf("parse asset %q: %w", s, err)
		}
	}

	scale := int64(1)
	for i := uint8(0); i < precision; i++ {
		scale *= 10
	}
	if whole < 0 {
		return whole*scale - frac, precision, symbol, nil
	}
	return whole*scale + frac, precision, symbol, nil
}
