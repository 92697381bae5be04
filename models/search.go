package models

import (
	"regexp"
	"strings"
)

var monthAliases = map[string]int{
	"january": 1, "jan": 1,
	"february": 2, "feb": 2,
	"march": 3, "mar": 3,
	"april": 4, "apr": 4,
	"may":  5,
	"june": 6, "jun": 6,
	"july": 7, "jul": 7,
	"august": 8, "aug": 8,
	"september": 9, "sep": 9,
	"october": 10, "oct": 10,
	"november": 11, "nov": 11,
	"december": 12, "dec": 12,
}

var wordPattern = regexp.MustCompile(`[a-zA-Z]+`)
var yearPattern = regexp.MustCompile(`\d{4}(-\d{2})?`)

// MonthFromQuery returns the 1-based month when the query contains an
// English month name or its three-letter abbreviation, 0 otherwise.
func MonthFromQuery(query string) int {
	for _, word := range wordPattern.FindAllString(strings.ToLower(query), -1) {
		if m, ok := monthAliases[word]; ok {
			return m
		}
	}
	return 0
}

// YearFragmentFromQuery extracts a year, or year-range fragment like
// "2024-25", from the query so it can match the financial_year column.
func YearFragmentFromQuery(query string) string {
	return yearPattern.FindString(query)
}
