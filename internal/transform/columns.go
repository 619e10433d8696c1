package transform

import (
	"strings"

	apperrors "bankfx/internal/errors"
)

// assetTokens are the known markers for the asset-figure column. Source
// naming drifts across extraction runs ("Total assets (2025) (US$ billion)",
// "Market capitalization (US$ billion)", ...), so the column is discovered by
// substring rather than by fixed name.
var assetTokens = []string{"assets", "market cap"}

// FindAssetColumn locates the asset-figure column by case-insensitive
// substring match. Exactly one column must match; zero or several candidates
// leave no safe choice and fail the run.
func FindAssetColumn(columns []string) (int, error) {
	var candidates []string
	index := -1

	for i, column := range columns {
		lower := strings.ToLower(strings.TrimSpace(column))
		for _, token := range assetTokens {
			if strings.Contains(lower, token) {
				candidates = append(candidates, column)
				index = i
				break
			}
		}
	}

	if len(candidates) != 1 {
		return -1, apperrors.NewNoAssetColumnError(candidates, columns)
	}
	return index, nil
}

// FindNameColumn locates the bank-name column by the "name" token, falling
// back to the first column when nothing matches.
func FindNameColumn(columns []string) int {
	for i, column := range columns {
		if strings.Contains(strings.ToLower(column), "name") {
			return i
		}
	}
	return 0
}

// findRankColumn locates an optional rank column. Returns -1 when absent.
func findRankColumn(columns []string) int {
	for i, column := range columns {
		if strings.Contains(strings.ToLower(column), "rank") {
			return i
		}
	}
	return -1
}

// findColumn returns the index of an exactly named column, or -1.
func findColumn(columns []string, name string) int {
	for i, column := range columns {
		if column == name {
			return i
		}
	}
	return -1
}
