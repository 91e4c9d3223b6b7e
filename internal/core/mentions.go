package core

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var mentionRe = regexp.MustCompile(`@([A-Za-z0-9][A-Za-z0-9_]*(?:[-\.][A-Za-z0-9_]+)*)`)

const allMention = "all"

// ExtractMentions returns the lowercased user ids mentioned in text, without the @,
// de-duplicated in order of first appearance. Addresses like a@b.com are skipped.
func ExtractMentions(text string) []string {
	matches := mentionRe.FindAllStringSubmatchIndex(text, -1)
	seen := make(map[string]struct{}, len(matches))
	mentions := make([]string, 0, len(matches))

	for _, match := range matches {
		start := match[0]
		if start > 0 {
			prev, _ := utf8.DecodeLastRuneInString(text[:start])
			if isAlphaNum(prev) {
				continue
			}
		}
		name := strings.ToLower(text[match[2]:match[3]])
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		mentions = append(mentions, name)
	}
	return mentions
}

// Mentions reports whether text mentions userID directly or through @all.
func Mentions(text, userID string) bool {
	userID = strings.ToLower(strings.TrimSpace(userID))
	if userID == "" {
		return false
	}
	for _, mention := range ExtractMentions(text) {
		if mention == userID || mention == allMention {
			return true
		}
	}
	return false
}

func isAlphaNum(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
