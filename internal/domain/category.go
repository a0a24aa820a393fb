package domain

import "strings"

// SameCategory сравнивает категории без учёта регистра.
func SameCategory(a, b string) bool {
	return strings.EqualFold(a, b)
}
