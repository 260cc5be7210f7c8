package analytics

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Undefined is how an undefined profit factor is rendered.
const Undefined = "undefined"

// ProfitFactor is gross winning P&L over absolute gross losing P&L. It is
// undefined when there are no losses; that state is explicit so callers never
// see NaN or Inf.
type ProfitFactor struct {
	value   float64
	defined bool
}

// DefinedProfitFactor returns a defined profit factor.
func DefinedProfitFactor(v float64) ProfitFactor {
	return ProfitFactor{value: v, defined: true}
}

// UndefinedProfitFactor returns the undefined sentinel.
func UndefinedProfitFactor() ProfitFactor {
	return ProfitFactor{}
}

// Value returns the ratio and whether it is defined.
func (p ProfitFactor) Value() (float64, bool) {
	return p.value, p.defined
}

// Defined reports whether the ratio has a value.
func (p ProfitFactor) Defined() bool {
	return p.defined
}

// String formats the ratio with two decimals, or "undefined".
func (p ProfitFactor) String() string {
	if !p.defined {
		return Undefined
	}
	return strconv.FormatFloat(p.value, 'f', 2, 64)
}

// MarshalJSON encodes a number, or the string "undefined".
func (p ProfitFactor) MarshalJSON() ([]byte, error) {
	if !p.defined {
		return json.Marshal(Undefined)
	}
	return json.Marshal(p.value)
}

// UnmarshalJSON accepts a number or the "undefined" string.
func (p *ProfitFactor) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte(`"`+Undefined+`"`)) || bytes.Equal(data, []byte("null")) {
		*p = UndefinedProfitFactor()
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*p = DefinedProfitFactor(v)
	return nil
}
