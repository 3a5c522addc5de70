package tokenizer

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// nonAlphanumericRegex matches sequences of characters that are neither letters nor digits.
var nonAlphanumericRegex = regexp.MustCompile(`[^\p{L}\p{N}]+`)

// minFoldLength is the length a token must exceed before a trailing "s" is folded away.
const minFoldLength = 3

// Tokenize converts a string into an ordered slice of normalized tokens.
// It lowercases the string and splits it on non-alphanumeric boundaries.
func Tokenize(text string) []string {
	lowerText := strings.ToLower(text)

	split := nonAlphanumericRegex.Split(lowerText, -1)

	tokens := make([]string, 0, len(split)) // Initialize as empty slice, not nil
	for _, s := range split {
		if s != "" {
			tokens = append(tokens, s)
		}
	}
	return tokens
}

// Fold returns the canonical form of a token: tokens longer than three characters
// ending in a single trailing "s" lose it ("maps" -> "map"); everything else is unchanged.
// "class" keeps its "ss", "bus" is too short.
func Fold(token string) string {
	if utf8.RuneCountInString(token) <= minFoldLength {
		return token
	}
	if !strings.HasSuffix(token, "s") || strings.HasSuffix(token, "ss") {
		return token
	}
	return token[:len(token)-1]
}

// Forms returns the token itself plus its folded form when the two differ.
// The indexer registers every form, so a document containing "maps" is also posted under "map".
func Forms(token string) []string {
	folded := Fold(token)
	if folded == token {
		return []string{token}
	}
	return []string{token, folded}
}

// Terms tokenizes query text into distinct folded terms, in order of first appearance.
// "maps map" yields a single term because both words fold to "map".
func Terms(text string) []string {
	tokens := Tokenize(text)

	terms := make([]string, 0, len(tokens))
	seen := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		folded := Fold(token)
		if _, ok := seen[folded]; ok {
			continue
		}
		seen[folded] = struct{}{}
		terms = append(terms, folded)
	}
	return terms
}
