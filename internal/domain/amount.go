package domain

import (
	"regexp"
	"strconv"
	"strings"
)

var amountExpr = regexp.MustCompile(`(?i)(\d[\d,]*(?:\.\d+)?)\s*(billion|million|thousand|bn|mm|m|b|k)?\b`)

var amountMultipliers = map[string]float64{
	"k":        1e3,
	"thousand": 1e3,
	"m":        1e6,
	"mm":       1e6,
	"million":  1e6,
	"b":        1e9,
	"bn":       1e9,
	"billion":  1e9,
}

// ParseAmount reads the first monetary figure in free text such as
// "5000000", "$5M", "EUR 1.2 billion" or "5,000,000".
func ParseAmount(text string) (float64, bool) {
	match := amountExpr.FindStringSubmatch(strings.TrimSpace(text))
	if match == nil {
		return 0, false
	}
	value, err := strconv.ParseFloat(strings.ReplaceAll(match[1], ",", ""), 64)
	if err != nil {
		return 0, false
	}
	if mult, ok := amountMultipliers[strings.ToLower(match[2])]; ok {
		value *= mult
	}
	return value, true
}
