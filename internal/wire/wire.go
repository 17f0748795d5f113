// Package wire holds the jx JSON codecs shared by the HTTP API and the
// storage layers. Money is written as a JSON number with two decimals and
// read from either a number or a string.
package wire

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// Decimal writes d as a JSON number.
func Decimal(e *jx.Encoder, d decimal.Decimal) {
	e.Num(jx.Num(d.StringFixed(2)))
}

// NullDecimal writes d, or null when it is not set.
func NullDecimal(e *jx.Encoder, d decimal.NullDecimal) {
	if !d.Valid {
		e.Null()
		return
	}
	Decimal(e, d.Decimal)
}

// DecodeDecimal reads a JSON number or numeric string.
func DecodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	var raw string
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		raw = s
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		raw = string(n)
	default:
		return decimal.Zero, errors.Errorf("expected number, got %v", d.Next())
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "parse decimal %q", raw)
	}
	return v, nil
}

// DecodeNullDecimal reads a number, numeric string or null.
func DecodeNullDecimal(d *jx.Decoder) (decimal.NullDecimal, error) {
	if d.Next() == jx.Null {
		return decimal.NullDecimal{}, d.Null()
	}
	v, err := DecodeDecimal(d)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(v), nil
}

// Strings writes s as an array, never null.
func Strings(e *jx.Encoder, s []string) {
	e.ArrStart()
	for _, v := range s {
		e.Str(v)
	}
	e.ArrEnd()
}

// DecodeStrings reads an array of strings. null decodes to nil.
func DecodeStrings(d *jx.Decoder) ([]string, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	var out []string
	err := d.Arr(func(d *jx.Decoder) error {
		s, err := d.Str()
		if err != nil {
			return err
		}
		out = append(out, s)
		return nil
	})
	return out, err
}
