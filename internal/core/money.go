// Package core holds the typed domain model of the bookkeeping core.
//
// Money is stored as integer cents of whatever currency it denominates.
// Base-currency amounts always carry two decimal places of precision, so cents
// are exact; floats only appear at the API boundary and in rate arithmetic.
package core

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

type Money struct {
	Cents int64
}

// MoneyFromFloat converts a decimal amount to cents with half-up rounding.
func MoneyFromFloat(v float64) Money {
	if v >= 0 {
		return Money{Cents: int64(math.Floor(v*100 + 0.5))}
	}
	return Money{Cents: -int64(math.Floor(-v*100 + 0.5))}
}

// Float returns the decimal value for display and JSON. Use cents for
// comparisons and arithmetic.
func (m Money) Float() float64 {
	return float64(m.Cents) / 100.0
}

func (m Money) String() string {
	sign := ""
	c := m.Cents
	if c < 0 {
		sign = "-"
		c = -c
	}
	return fmt.Sprintf("%s%d.%02d", sign, c/100, c%100)
}

func (m Money) Add(other Money) Money {
	return Money{Cents: m.Cents + other.Cents}
}

func (m Money) IsZero() bool { return m.Cents == 0 }

// ParseDecimalToCents converts a non-negative decimal string to cents.
//
// Both dot and comma decimal separators are accepted; the third decimal place
// is rounded half-up. Signs are rejected.
func ParseDecimalToCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, ErrInvalidAmount
	}
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart + fracPart {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}
	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	const maxSafe = (1<<63 - 1) / 100
	if iv > maxSafe {
		return 0, ErrInvalidAmount
	}
	var fracCents int64
	if len(fracPart) > 0 {
		fracCents = int64(fracPart[0]-'0') * 10
		if len(fracPart) > 1 {
			fracCents += int64(fracPart[1] - '0')
			if len(fracPart) > 2 && fracPart[2] >= '5' {
				fracCents++
			}
		}
	}
	return iv*100 + fracCents, nil
}

// ParseSignedDecimalToCents is ParseDecimalToCents with an optional leading
// sign, used for savings deposits and withdrawals.
func ParseSignedDecimalToCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	neg := false
	switch {
	case strings.HasPrefix(s, "-"):
		neg = true
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	cents, err := ParseDecimalToCents(s)
	if err != nil {
		return 0, err
	}
	if neg {
		return -cents, nil
	}
	return cents, nil
}
