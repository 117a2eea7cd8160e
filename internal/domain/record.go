package domain

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Record is one balance entry exactly as the API returned it.
// Numeric values are decimal.Decimal, never float64.
type Record map[string]any

// Balance field names used as the natural key and replication cursor.
const (
	FieldMarket         = "Market"
	FieldCurrency       = "Currency"
	FieldAccount        = "Account"
	FieldLastUpdateTime = "LastUpdateTime"
)

// String returns the field rendered as a string ("" if absent).
func (r Record) String(field string) string {
	v, ok := r[field]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case decimal.Decimal:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

// Decimal returns the field as a decimal when it holds one or a numeric string.
func (r Record) Decimal(field string) (decimal.Decimal, bool) {
	switch t := r[field].(type) {
	case decimal.Decimal:
		return t, true
	case string:
		d, err := decimal.NewFromString(t)
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	default:
		return decimal.Zero, false
	}
}

// NaturalKey joins the values of keys with "|".
func (r Record) NaturalKey(keys []string) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = r.String(k)
	}
	return strings.Join(parts, "|")
}

// Clone returns a shallow copy so hooks can edit fields freely.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// MarshalJSON writes decimals as JSON numbers so no precision is lost.
func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(PlainValue(map[string]any(r)))
}

// PlainValue converts decimals (at any depth) to json.Number.
func PlainValue(v any) any {
	switch t := v.(type) {
	case decimal.Decimal:
		return json.Number(t.String())
	case Record:
		return PlainValue(map[string]any(t))
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = PlainValue(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = PlainValue(e)
		}
		return out
	default:
		return v
	}
}
