package validator

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Code classifies a field level validation failure.
type Code string

const (
	CodeInvalidPeriod Code = "invalid_period"
	CodeInvalidDate   Code = "invalid_date"
	CodeInvalidNumber Code = "invalid_number"
	CodeOutOfRange    Code = "out_of_range"
)

// MaxAbsAmount bounds every imported measure, inclusive.
var MaxAbsAmount = decimal.New(1, 12)

// MaxScale is the number of decimal places measure columns store.
const MaxScale = 6

// maxExponent rejects exponent notation far outside the accepted range
// before any comparison has to expand the value.
const maxExponent = 32

var (
	periodPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)
	datePattern   = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// ValidationError represents a single rejected field value.
type ValidationError struct {
	Field   string `json:"field"`
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Value   any    `json:"value,omitempty"`
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Period validates a monthly period key (YYYY-MM) and returns it trimmed.
func Period(field, raw string) (string, error) {
	value := strings.TrimSpace(raw)
	if !periodPattern.MatchString(value) {
		return "", &ValidationError{
			Field:   field,
			Code:    CodeInvalidPeriod,
			Message: fmt.Sprintf("expected period as YYYY-MM, got %q", raw),
			Value:   raw,
		}
	}
	return value, nil
}

// Date validates a calendar date written as YYYY-MM-DD.
func Date(field, raw string) (time.Time, error) {
	value := strings.TrimSpace(raw)
	invalid := &ValidationError{
		Field:   field,
		Code:    CodeInvalidDate,
		Message: fmt.Sprintf("expected date as YYYY-MM-DD, got %q", raw),
		Value:   raw,
	}
	if !datePattern.MatchString(value) {
		return time.Time{}, invalid
	}
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, invalid
	}
	return parsed, nil
}

// Amount parses a locale neutral decimal ("." separator, no grouping) and
// enforces the magnitude bound.
func Amount(field, raw string) (decimal.Decimal, error) {
	value := strings.TrimSpace(raw)
	if value == "" || strings.ContainsAny(value, ", ") {
		return decimal.Zero, &ValidationError{
			Field:   field,
			Code:    CodeInvalidNumber,
			Message: fmt.Sprintf("expected a number, got %q", raw),
			Value:   raw,
		}
	}
	amount, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, &ValidationError{
			Field:   field,
			Code:    CodeInvalidNumber,
			Message: fmt.Sprintf("expected a number, got %q", raw),
			Value:   raw,
		}
	}
	outOfRange := &ValidationError{
		Field:   field,
		Code:    CodeOutOfRange,
		Message: fmt.Sprintf("value %s exceeds the allowed magnitude of %s", value, MaxAbsAmount.String()),
		Value:   raw,
	}
	if amount.IsZero() {
		return decimal.Zero, nil
	}
	exp := amount.Exponent()
	if exp > maxExponent {
		return decimal.Zero, outOfRange
	}
	if exp < -MaxScale {
		if exp < -maxExponent || !amount.Equal(amount.Truncate(MaxScale)) {
			return decimal.Zero, &ValidationError{
				Field:   field,
				Code:    CodeInvalidNumber,
				Message: fmt.Sprintf("expected at most %d decimal places, got %q", MaxScale, raw),
				Value:   raw,
			}
		}
		amount = amount.Truncate(MaxScale)
	}
	if amount.Abs().GreaterThan(MaxAbsAmount) {
		return decimal.Zero, outOfRange
	}
	return amount, nil
}
