package languageutil

import (
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Title upper-cases the first letter of every word. Casers keep state, so
// each call builds its own.
func Title(value string) string {
	return cases.Title(language.English).String(value)
}

const DefaultItemName = "Style Item"

var whitespaceRule = regexp.MustCompile(`\s`)

// ItemNameFromFileName drops the last extension of an uploaded file name,
// falling back to DefaultItemName when nothing is left ("shirt.jpg" -> "shirt",
// "archive.tar.gz" -> "archive.tar", ".png" -> "Style Item").
func ItemNameFromFileName(fileName string) string {
	base := filepath.Base(strings.TrimSpace(fileName))
	if base == "." || base == string(filepath.Separator) {
		return DefaultItemName
	}
	if idx := strings.LastIndex(base, "."); idx >= 0 {
		base = base[:idx]
	} else {
		// names without an extension fall back as well
		base = ""
	}
	base = strings.TrimSpace(base)
	if base == "" {
		return DefaultItemName
	}
	return base
}

// PlaceholderText encodes a label for placeholder image services.
func PlaceholderText(label string) string {
	return whitespaceRule.ReplaceAllString(label, "+")
}
