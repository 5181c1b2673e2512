// Package checkout holds the pure order intake rules shared by every
// checkout entry point.
package checkout

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	MinQuantity        = 1
	MaxQuantity        = 100
	minCustomerNameLen = 2
	maxAddressLen      = 500
)

var phonePattern = regexp.MustCompile(`^(08|628)\d{8,12}$`)

// Line is one cart entry as sent by the client. Any client price is ignored.
type Line struct {
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id"`
	Quantity  int    `json:"quantity"`
}

// IntakeInput is the raw customer and cart data of a checkout request.
type IntakeInput struct {
	CustomerName    string
	CustomerPhone   string
	CustomerAddress *string
	PhoneRequired   bool
	Lines           []Line
}

// Intake is a request that passed every intake rule.
type Intake struct {
	CustomerName    string
	CustomerPhone   string
	CustomerAddress *string
	Lines           []Line
}

// Validate applies the intake rules in order: name, phone, cart, quantity.
// It performs no I/O.
func Validate(in IntakeInput) (*Intake, error) {
	name := strings.TrimSpace(in.CustomerName)
	if utf8.RuneCountInString(name) < minCustomerNameLen {
		return nil, ErrInvalidCustomer()
	}

	phone, err := normalizePhone(in.CustomerPhone, in.PhoneRequired)
	if err != nil {
		return nil, err
	}

	if len(in.Lines) == 0 {
		return nil, ErrEmptyCart()
	}
	for i, line := range in.Lines {
		if !ValidQuantity(line.Quantity) {
			return nil, ErrInvalidQuantity(fmt.Sprintf("item ke-%d", i+1))
		}
	}

	var address *string
	if in.CustomerAddress != nil {
		trimmed := strings.TrimSpace(*in.CustomerAddress)
		if utf8.RuneCountInString(trimmed) > maxAddressLen {
			return nil, ErrInvalidAddress()
		}
		if trimmed != "" {
			address = &trimmed
		}
	}

	lines := make([]Line, len(in.Lines))
	copy(lines, in.Lines)
	return &Intake{
		CustomerName:    name,
		CustomerPhone:   phone,
		CustomerAddress: address,
		Lines:           lines,
	}, nil
}

// ValidQuantity reports whether q is within the per-line bounds.
func ValidQuantity(q int) bool {
	return q >= MinQuantity && q <= MaxQuantity
}

// NormalizePhone strips whitespace and hyphens.
func NormalizePhone(raw string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '-' {
			return -1
		}
		return r
	}, raw)
}

func normalizePhone(raw string, required bool) (string, error) {
	phone := NormalizePhone(raw)
	if phone == "" {
		if required {
			return "", ErrInvalidPhone()
		}
		return "", nil
	}
	if !phonePattern.MatchString(phone) {
		return "", ErrInvalidPhone()
	}
	return phone, nil
}

type rawLine struct {
	ProductID string          `json:"product_id"`
	VariantID string          `json:"variant_id"`
	Quantity  json.RawMessage `json:"quantity"`
}

// ParseLines decodes the raw "items" field of a request body. A missing
// field, a non-array value or an empty array is an empty cart; a quantity
// that is not a whole number becomes an out-of-range quantity so Validate
// rejects it.
func ParseLines(raw json.RawMessage) ([]Line, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, ErrEmptyCart()
	}
	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil || len(items) == 0 {
		return nil, ErrEmptyCart()
	}

	lines := make([]Line, 0, len(items))
	for _, item := range items {
		var rl rawLine
		if err := json.Unmarshal(item, &rl); err != nil {
			lines = append(lines, Line{})
			continue
		}
		lines = append(lines, Line{
			ProductID: strings.TrimSpace(rl.ProductID),
			VariantID: strings.TrimSpace(rl.VariantID),
			Quantity:  parseQuantity(rl.Quantity),
		})
	}
	return lines, nil
}

func parseQuantity(raw json.RawMessage) int {
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0
	}
	if f != math.Trunc(f) || f < math.MinInt32 || f > math.MaxInt32 {
		return 0
	}
	return int(f)
}
