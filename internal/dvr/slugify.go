// SPDX-License-Identifier: MIT

package dvr

import (
	"regexp"
	"strings"
	"unicode"
)

var dashRuns = regexp.MustCompile(`-+`)

// slugify converts a program title into a filesystem-safe, human-readable
// slug. Example: "Das Erste HD" → "das-erste-hd"
func slugify(name string) string {
	if name == "" {
		return "recording"
	}

	s := strings.ToLower(name)

	// Replace common German umlauts and special characters
	replacer := strings.NewReplacer(
		"ä", "ae",
		"ö", "oe",
		"ü", "ue",
		"ß", "ss",
		"à", "a",
		"á", "a",
		"â", "a",
		"è", "e",
		"é", "e",
		"ê", "e",
		"ì", "i",
		"í", "i",
		"î", "i",
		"ò", "o",
		"ó", "o",
		"ô", "o",
		"ù", "u",
		"ú", "u",
		"û", "u",
		"ç", "c",
		"ñ", "n",
	)
	s = replacer.Replace(s)

	// Keep only a-z and 0-9, collapsing everything else to single dashes
	var result strings.Builder
	lastWasDash := false
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			result.WriteRune(r)
			lastWasDash = false
		} else if !lastWasDash {
			result.WriteRune('-')
			lastWasDash = true
		}
	}

	slug := strings.Trim(result.String(), "-")
	slug = dashRuns.ReplaceAllString(slug, "-")

	// Limit length to reasonable size (max 50 chars for readability)
	if len(slug) > 50 {
		slug = slug[:50]
		slug = strings.TrimRight(slug, "-")
	}

	if slug == "" {
		return "recording"
	}
	return slug
}
