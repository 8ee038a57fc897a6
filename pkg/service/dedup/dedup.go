package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"unicode"
)

const (
	// hashPrefixLen bounds how much normalized content feeds the fingerprint
	hashPrefixLen = 500
	// minWordLen is the shortest word considered significant in a title.
	// Three letters keeps nouns like "car" or "dog" in play.
	minWordLen = 3
	// maxSignificantWords caps how many title words are compared
	maxSignificantWords = 3
	// minSharedWords is the overlap threshold that marks two titles duplicates
	minSharedWords = 2
)

// NormalizeContent lowercases the content, collapses all whitespace runs to
// single spaces, and truncates to the hash prefix length.
func NormalizeContent(content string) string {
	normalized := strings.ToLower(strings.TrimSpace(content))
	normalized = strings.Join(strings.Fields(normalized), " ")
	if len(normalized) > hashPrefixLen {
		normalized = normalized[:hashPrefixLen]
	}
	return normalized
}

// ContentHash computes the dedup fingerprint of story content
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(NormalizeContent(content)))
	return hex.EncodeToString(sum[:])
}

// SignificantWords extracts up to the 3 longest significant words from a
// title, lowercased. Ties keep original order.
func SignificantWords(title string) []string {
	words := splitWords(title)

	var significant []string
	for _, w := range words {
		if len(w) >= minWordLen {
			significant = append(significant, w)
		}
	}

	sort.SliceStable(significant, func(i, j int) bool {
		return len(significant[i]) > len(significant[j])
	})

	if len(significant) > maxSignificantWords {
		significant = significant[:maxSignificantWords]
	}
	return significant
}

// TitlesConflict reports whether an existing title shares at least 2 of the
// candidate's significant words, counting containment in either direction.
func TitlesConflict(candidateWords []string, existingTitle string) bool {
	existingWords := splitWords(existingTitle)

	shared := 0
	for _, w := range candidateWords {
		for _, e := range existingWords {
			if len(e) < minWordLen {
				continue
			}
			if strings.Contains(e, w) || strings.Contains(w, e) {
				shared++
				break
			}
		}
	}
	return shared >= minSharedWords
}

func splitWords(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
