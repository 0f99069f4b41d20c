package domain

import "strings"

// NormalizeName is the matching key for medication names
func NormalizeName(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// ComposeFullName joins the four catalog parts into the display name
func ComposeFullName(commercialNom, forme, dosage, conditionnement string) string {
	full := strings.Join([]string{commercialNom, forme, dosage, conditionnement}, " ")
	return strings.ToUpper(strings.TrimSpace(full))
}

// SameName compares two names the way movements are matched to the catalog
func SameName(a, b string) bool {
	return strings.ToUpper(a) == strings.ToUpper(b)
}
