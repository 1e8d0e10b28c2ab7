package scanning

import (
	"regexp"
	"strings"
)

var (
	reDate     = regexp.MustCompile(`\b\d{1,4}[/.\-]\d{1,2}[/.\-]\d{2,4}\b`)
	reCurrency = regexp.MustCompile(`\b(eur|euros?|usd|gbp)\b|[$£€]`)
	reAmount   = regexp.MustCompile(`\b\d+[.,]\d{2}\b`)
)

// transcriptConfidence scores text from engines that report no confidence
// of their own, based on invoice artifacts found in it.
func transcriptConfidence(text string) int {
	lower := strings.ToLower(text)
	score := 20
	if reDate.MatchString(lower) {
		score += 20
	}
	if reCurrency.MatchString(lower) {
		score += 15
	}
	if reAmount.MatchString(lower) {
		score += 15
	}
	if len(text) > 120 {
		score += 10
	}
	return min(score, 100)
}
