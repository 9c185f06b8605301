package fulfillment

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// statusResponse is the provider's answer to action=status. Numeric fields arrive
// either as JSON strings or as numbers depending on the panel version.
type statusResponse struct {
	Charge     flexString `json:"charge"`
	StartCount flexString `json:"start_count"`
	Status     string     `json:"status"`
	Remains    flexString `json:"remains"`
	Currency   string     `json:"currency"`
	Error      string     `json:"error"`
}

// flexString accepts a JSON string, number or null
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// ParseDecimal safely parses a string to decimal, returning zero for blanks and garbage
func ParseDecimal(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// ParseCount parses an integer counter, returning zero for blanks and garbage
func ParseCount(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		// some panels send counts like "157.0"
		return ParseDecimal(s).IntPart()
	}
	return n
}
