package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	dateBase          = 50
	dateTextualBonus  = 20
	dateRecentBonus   = 20
	dateKeywordBonus  = 15
	dateKeywordWindow = 40
)

// dateRule is one row of the date rule table. Order maps submatch positions
// onto year, month and day.
type dateRule struct {
	ID      string
	Pattern *regexp.Regexp
	Order   dateOrder
	Textual bool
}

type dateOrder int

const (
	orderDMY dateOrder = iota
	orderYMD
)

var monthNames = map[string]int{
	"janvier": 1, "janv": 1, "jan": 1, "january": 1,
	"fevrier": 2, "fevr": 2, "fev": 2, "feb": 2, "february": 2,
	"mars": 3, "mar": 3, "march": 3,
	"avril": 4, "avr": 4, "apr": 4, "april": 4,
	"mai": 5, "may": 5,
	"juin": 6, "jun": 6, "june": 6,
	"juillet": 7, "juil": 7, "jul": 7, "july": 7,
	"aout": 8, "aug": 8, "august": 8,
	"septembre": 9, "sept": 9, "sep": 9, "september": 9,
	"octobre": 10, "oct": 10, "october": 10,
	"novembre": 11, "nov": 11, "november": 11,
	"decembre": 12, "dec": 12, "december": 12,
}

const monthPattern = `janvier|janv|january|jan|f[ée]vrier|f[ée]vr|february|f[ée]v|feb|mars|march|mar|avril|avr|april|apr|mai|may|juin|june|jun|juillet|juil|july|jul|ao[uû]t|august|aug|septembre|september|sept|sep|octobre|october|oct|novembre|november|nov|d[ée]cembre|december|d[ée]c`

var dateRules = []dateRule{
	{ID: "dmy-slash", Pattern: regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4})\b`), Order: orderDMY},
	{ID: "dmy-dash", Pattern: regexp.MustCompile(`\b(\d{1,2})-(\d{1,2})-(\d{4})\b`), Order: orderDMY},
	{ID: "dmy-dot", Pattern: regexp.MustCompile(`\b(\d{1,2})\.(\d{1,2})\.(\d{4})\b`), Order: orderDMY},
	{ID: "iso", Pattern: regexp.MustCompile(`\b(\d{4})-(\d{1,2})-(\d{1,2})\b`), Order: orderYMD},
	{ID: "dmy-short-year", Pattern: regexp.MustCompile(`\b(\d{1,2})[/.\-](\d{1,2})[/.\-](\d{2})\b`), Order: orderDMY},
	{
		ID:      "textual-month",
		Pattern: regexp.MustCompile(`(?i)\b(\d{1,2})(?:er|st|nd|rd|th)?[ \t]+(` + monthPattern + `)\.?,?[ \t]+(\d{4})\b`),
		Order:   orderDMY,
		Textual: true,
	},
}

var (
	dateKeywords = []string{"date", "invoice", "issued", "of the", "facture", "émis", "emis"}
	accentFold   = strings.NewReplacer("é", "e", "É", "e", "è", "e", "û", "u", "Û", "u")
)

// DateCandidates returns every plausible date found in text. Values are
// midnight UTC.
func (e *Extractor) DateCandidates(text string) []Candidate[time.Time] {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	now := e.cfg.Now()

	var out []Candidate[time.Time]
	for _, rule := range dateRules {
		for _, m := range rule.Pattern.FindAllStringSubmatchIndex(text, -1) {
			parts := [3]string{text[m[2]:m[3]], text[m[4]:m[5]], text[m[6]:m[7]]}
			date, ok := e.resolveDate(rule, parts)
			if !ok {
				continue
			}

			confidence := dateBase
			if rule.Textual {
				confidence += dateTextualBonus
			}
			if within(date, now, e.cfg.RecentWindow) {
				confidence += dateRecentBonus
			}
			if hasDateKeyword(text, m[0]) {
				confidence += dateKeywordBonus
			}
			out = append(out, Candidate[time.Time]{
				Value:      date,
				Confidence: clamp(confidence),
				Rule:       rule.ID,
				Position:   m[0],
			})
		}
	}
	return out
}

func (e *Extractor) resolveDate(rule dateRule, parts [3]string) (time.Time, bool) {
	var dayStr, monthStr, yearStr string
	switch rule.Order {
	case orderYMD:
		yearStr, monthStr, dayStr = parts[0], parts[1], parts[2]
	default:
		dayStr, monthStr, yearStr = parts[0], parts[1], parts[2]
	}

	day, err := strconv.Atoi(dayStr)
	if err != nil {
		return time.Time{}, false
	}
	year, err := strconv.Atoi(yearStr)
	if err != nil {
		return time.Time{}, false
	}
	if len(yearStr) == 2 {
		year = pivotYear(year)
	}

	var month int
	if rule.Textual {
		month = monthNames[accentFold.Replace(strings.ToLower(monthStr))]
	} else if month, err = strconv.Atoi(monthStr); err != nil {
		return time.Time{}, false
	}

	if day < 1 || day > 31 || month < 1 || month > 12 {
		return time.Time{}, false
	}
	if !e.cfg.PlausibleYear(year) {
		return time.Time{}, false
	}
	date := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// Reject calendar overflow such as 31/02.
	if date.Day() != day {
		return time.Time{}, false
	}
	return date, true
}

// pivotYear maps a two-digit year: below 50 is 20xx, otherwise 19xx.
func pivotYear(yy int) int {
	if yy < 50 {
		return 2000 + yy
	}
	return 1900 + yy
}

func within(date, now time.Time, window time.Duration) bool {
	diff := now.Sub(date)
	if diff < 0 {
		diff = -diff
	}
	return diff <= window
}

func hasDateKeyword(text string, start int) bool {
	from := start - dateKeywordWindow
	if from < 0 {
		from = 0
	}
	preceding := strings.ToLower(text[from:start])
	for _, kw := range dateKeywords {
		if strings.Contains(preceding, kw) {
			return true
		}
	}
	return false
}
