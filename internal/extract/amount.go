package extract

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

const (
	amountTypicalBonus = 20
	amountCommaBonus   = 10
)

// amountRule is one tier of the amount rule table. The last submatch group
// always holds the figure.
type amountRule struct {
	ID      string
	Pattern *regexp.Regexp
	Base    int
}

// amountNumber matches "1080.00", "18,5", "42" and grouped thousands such
// as "1 080,00", "1.080,00" or "1,080.00".
const amountNumber = `(\d{1,3}(?:[.,\x{00A0}\x{202F} ]\d{3})+(?:[.,]\d{1,2})?|\d+(?:[.,]\d{1,2})?)`

// amountEnd rejects a figure that is cut short inside a longer number. A
// separator may still end a sentence.
const amountEnd = `(?:$|[^\d.,]|[.,](?:$|\D))`

const currency = `(?:€|eur(?:os?)?)`

// amountRules are evaluated in full; a figure may be reported by several
// tiers and arbitration keeps the strongest.
var amountRules = []amountRule{
	{
		ID:      "total-incl-tax",
		Pattern: regexp.MustCompile(`(?i)(?:total[ \t]*t\.?t\.?c\.?|total[ \t]+incl\.?[ \t]*(?:tax(?:es)?|vat)|total[ \t]+(?:à|a)[ \t]+payer|net[ \t]+(?:à|a)[ \t]+payer|net[ \t]+payable|grand[ \t]+total|montant[ \t]+t\.?t\.?c\.?|amount[ \t]+due)[ \t]*:?[ \t]*` + currency + `?[ \t]*` + amountNumber + amountEnd),
		Base:    70,
	},
	{
		ID:      "total",
		Pattern: regexp.MustCompile(`(?i)\btotal\b[ \t]*:?[ \t]*` + currency + `?[ \t]*` + amountNumber + amountEnd),
		Base:    60,
	},
	{
		ID:      "comma-currency",
		Pattern: regexp.MustCompile(`(?i)(?:^|[^\d.,])(\d{1,3}(?:[. \x{00A0}\x{202F}]\d{3})+,\d{2}|\d+,\d{2})[ \t]*` + currency),
		Base:    50,
	},
	{
		ID:      "integer-currency",
		Pattern: regexp.MustCompile(`(?i)(?:^|[^\d.,])(\d+)[ \t]*` + currency),
		Base:    40,
	},
	{
		ID:      "line-end",
		Pattern: regexp.MustCompile(`(?m)(?:^|[ \t:])(\d{1,3}(?:[.,\x{00A0}\x{202F}]\d{3})+[.,]\d{2}|\d+[.,]\d{2})[ \t]*$`),
		Base:    30,
	},
	{
		ID:      "labelled-amount",
		Pattern: regexp.MustCompile(`(?i)(?:amount|price|sum|montant|prix|somme)[ \t]*:?[ \t]*` + currency + `?[ \t]*` + amountNumber + amountEnd),
		Base:    20,
	},
}

var (
	groupSeparators = strings.NewReplacer(" ", "", "\u00a0", "", "\u202f", "")
	markSeparators  = strings.NewReplacer(".", "", ",", "")
)

// AmountCandidates returns every plausible monetary amount found in text.
func (e *Extractor) AmountCandidates(text string) []Candidate[float64] {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var out []Candidate[float64]
	for _, rule := range amountRules {
		for _, m := range rule.Pattern.FindAllStringSubmatchIndex(text, -1) {
			start, end := m[len(m)-2], m[len(m)-1]
			if start < 0 {
				continue
			}
			raw := text[start:end]
			amount, decimalComma, ok := e.parseAmount(raw)
			if !ok {
				continue
			}

			confidence := rule.Base
			if amount >= e.cfg.TypicalAmountMin && amount <= e.cfg.TypicalAmountMax {
				confidence += amountTypicalBonus
			}
			if decimalComma {
				confidence += amountCommaBonus
			}
			out = append(out, Candidate[float64]{
				Value:      amount,
				Confidence: clamp(confidence),
				Rule:       rule.ID,
				Position:   start,
			})
		}
	}
	return out
}

// parseAmount normalizes grouping and the decimal separator and enforces
// 0 < amount < ceiling. The last '.' or ',' is the decimal separator when at
// most two digits follow it; every other separator groups thousands.
func (e *Extractor) parseAmount(raw string) (float64, bool, bool) {
	compact := groupSeparators.Replace(raw)
	normalized := markSeparators.Replace(compact)
	decimalComma := false
	if i := strings.LastIndexAny(compact, ".,"); i >= 0 && len(compact)-i-1 <= 2 {
		normalized = markSeparators.Replace(compact[:i]) + "." + compact[i+1:]
		decimalComma = compact[i] == ','
	}

	amount, err := strconv.ParseFloat(normalized, 64)
	if err != nil || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0, false, false
	}
	if !e.cfg.PlausibleAmount(amount) {
		return 0, false, false
	}
	return math.Round(amount*100) / 100, decimalComma, true
}
