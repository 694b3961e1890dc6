// Package chatfilter is a deterministic profanity filter applied to display
// names, inbound chat, and generated agent chat before broadcast.
package chatfilter

import (
	"regexp"
	"strings"
)

// Word-set entries are obscured with a mask of equal length, which keeps
// the visible width of the message intact.
var filterWords = []string{
	"ass", "asshole", "bastard", "bitch", "cock", "cunt", "damn", "dick",
	"fag", "faggot", "fuck", "jerk", "nigger", "piss", "pussy",
	"shit", "slut", "twat", "whore",
}

// Pattern entries cover the categorical list; hits are replaced with a
// fixed four-star mask.
var filterPatterns = []string{
	"ass", "damn", "hell", "fuck", "shit",
	"bitch", "cunt", "dick", "pussy", "twat",
	"whore", "slut", "nigger", "spic", "chink",
	"kike", "fag", "retard", "idiot", "moron",
}

type wordFilter struct {
	re   *regexp.Regexp
	mask string
}

var (
	wordFilters    []wordFilter
	patternFilters []*regexp.Regexp
)

func init() {
	for _, w := range filterWords {
		wordFilters = append(wordFilters, wordFilter{
			re:   regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(w) + `\b`),
			mask: strings.Repeat("*", len(w)),
		})
	}
	for _, w := range filterPatterns {
		patternFilters = append(patternFilters, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(w)+`\b`))
	}
}

// Filter obscures banned words in text. Filtering an already-clean string
// is the identity function.
func Filter(text string) string {
	if text == "" {
		return text
	}
	for _, f := range wordFilters {
		if f.re.MatchString(text) {
			text = f.re.ReplaceAllString(text, f.mask)
		}
	}
	for _, re := range patternFilters {
		text = re.ReplaceAllString(text, "****")
	}
	return text
}

// IsProfane reports whether text contains a banned word.
func IsProfane(text string) bool {
	if text == "" {
		return false
	}
	for _, f := range wordFilters {
		if f.re.MatchString(text) {
			return true
		}
	}
	for _, re := range patternFilters {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}
