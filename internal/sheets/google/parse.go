package google

import (
	"fmt"
	"strconv"
	"strings"

	"finanzas/internal/core"
)

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

// parseCents accepts the formats people type into a spreadsheet: "12.34",
// "12,34", "1.234,56", "$ 12", "-5".
func parseCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}
	// "1.234,56" style: dot is a thousands separator, drop it.
	if strings.Contains(s, ".") && strings.Contains(s, ",") && strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
		s = strings.ReplaceAll(s, ".", "")
	}
	if cents, err := core.ParseSignedDecimalToCents(s); err == nil {
		return cents, nil
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return core.MoneyFromFloat(f).Cents, nil
}

func parseFloat(s string) (float64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" {
		return 0, fmt.Errorf("empty number")
	}
	return strconv.ParseFloat(s, 64)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// parseMilestones reads "25,50,75,100" tolerating spaces and "%" suffixes.
func parseMilestones(s string) []int {
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSuffix(strings.TrimSpace(part), "%")
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n <= 0 || n > 100 {
			continue
		}
		out = append(out, n)
	}
	return out
}

func formatMilestones(ms []int) string {
	parts := make([]string, len(ms))
	for i, m := range ms {
		parts[i] = strconv.Itoa(m)
	}
	return strings.Join(parts, ",")
}
