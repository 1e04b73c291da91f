// SPDX-License-Identifier: MIT

package profile

import "strings"

// Tokenize splits a command template into an argument vector. Whitespace
// separates tokens; double-quoted substrings stay intact with the quotes
// stripped, so paths and URLs containing spaces survive. Substituted values
// are never re-interpreted as multiple arguments unless the template author
// quoted them apart.
func Tokenize(command string) []string {
	var (
		tokens   []string
		current  strings.Builder
		inQuotes bool
		started  bool
	)

	flush := func() {
		if started {
			tokens = append(tokens, current.String())
			current.Reset()
			started = false
		}
	}

	for _, r := range command {
		switch {
		case r == '"':
			inQuotes = !inQuotes
			// an empty quoted pair still produces a token
			started = true
		case !inQuotes && (r == ' ' || r == '\t' || r == '\n' || r == '\r'):
			flush()
		default:
			current.WriteRune(r)
			started = true
		}
	}
	flush()

	return tokens
}
