package extract

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	companyBase           = 50
	invoiceKeywordBonus   = 15
	companyFirstLineBonus = 20
)

// companyRule is one row of the company-name rule table. Group selects the
// submatch holding the name; Canonical, when set, replaces the matched text.
type companyRule struct {
	ID        string
	Pattern   *regexp.Regexp
	Group     int
	Delta     int
	Canonical string
	// Filtered rules drop matches containing a stop word.
	Filtered bool
}

const (
	legalForms  = `SARL|SASU|SAS|EURL|SNC|SCI|SA|SELARL|INC|Inc|LTD|Ltd|LLC|GmbH|Corp|CORP`
	nameWord    = `[\p{L}\p{N}&'’\-]+`
	capitalWord = `\p{Lu}[\p{L}\p{N}&'’\-]*`
)

// brands is the known-brand lexicon: canonical name and a case-insensitive
// pattern tolerant of common OCR spacing.
var brands = []struct {
	Name    string
	Pattern string
}{
	{"McDonald's", `mc ?donald['’]?s`},
	{"Burger King", `burger ?king`},
	{"Starbucks", `starbucks`},
	{"KFC", `kfc`},
	{"Carrefour", `carrefour`},
	{"Leclerc", `(?:e\.? ?)?leclerc`},
	{"Auchan", `auchan`},
	{"Lidl", `lidl`},
	{"Monoprix", `monoprix`},
	{"Franprix", `franprix`},
	{"Intermarché", `intermarch[eé]`},
	{"Picard", `picard`},
	{"Decathlon", `decathlon`},
	{"Fnac", `fnac`},
	{"Darty", `darty`},
	{"Ikea", `ikea`},
	{"Leroy Merlin", `leroy ?merlin`},
	{"Castorama", `castorama`},
	{"Amazon", `amazon`},
	{"Apple", `apple`},
	{"Google", `google`},
	{"Microsoft", `microsoft`},
	{"SNCF", `sncf`},
	{"Air France", `air ?france`},
	{"Uber", `uber`},
	{"EDF", `edf`},
	{"Engie", `engie`},
	{"SFR", `sfr`},
	{"Bouygues Telecom", `bouygues ?t[eé]l[eé]com`},
	{"La Poste", `la ?poste`},
	{"Shell", `shell`},
	{"Esso", `esso`},
}

// companyStopWords are tokens that never belong to a vendor name; person-name
// and fallback matches containing one are discarded.
var companyStopWords = map[string]struct{}{
	"total": {}, "net": {}, "ttc": {}, "ht": {}, "tva": {}, "vat": {}, "date": {},
	"facture": {}, "invoice": {}, "ticket": {}, "receipt": {}, "recu": {}, "reçu": {},
	"montant": {}, "amount": {}, "prix": {}, "price": {}, "page": {}, "tel": {},
	"client": {}, "ref": {}, "merci": {}, "thank": {}, "carte": {}, "cb": {},
	"visa": {}, "eur": {}, "euros": {}, "sarl": {}, "sas": {}, "eurl": {}, "sa": {},
	"siret": {}, "siren": {}, "rcs": {}, "caisse": {}, "subtotal": {}, "qty": {},
}

var (
	companyRules    = buildCompanyRules()
	invoiceKeywords = regexp.MustCompile(`(?i)facture|invoice|receipt|re[çc]u|ticket|note d'honoraires|bon de commande`)
	companyStrip    = regexp.MustCompile(`[^\p{L}\p{N} &'\-]`)
	whitespaceRun   = regexp.MustCompile(`\s+`)
)

func buildCompanyRules() []companyRule {
	rules := []companyRule{
		{
			ID:      "legal-form-suffix",
			Pattern: regexp.MustCompile(capitalWord + `(?:[ \t]+` + nameWord + `){0,4}[ \t]+(?:` + legalForms + `)(?:[^\p{L}]|$)`),
			Delta:   30,
		},
		{
			ID:      "legal-form-prefix",
			Pattern: regexp.MustCompile(`(?:^|[^\p{L}])((?:` + legalForms + `)[ \t]+` + capitalWord + `(?:[ \t]+` + nameWord + `){0,4})`),
			Group:   1,
			Delta:   30,
		},
	}
	for _, b := range brands {
		rules = append(rules, companyRule{
			ID:        "known-brand",
			Pattern:   regexp.MustCompile(`(?i)(?:^|[^\p{L}])(` + b.Pattern + `)(?:[^\p{L}]|$)`),
			Group:     1,
			Delta:     25,
			Canonical: b.Name,
		})
	}
	rules = append(rules,
		companyRule{
			ID:      "explicit-prefix",
			Pattern: regexp.MustCompile(`(?i:company|organi[sz]ation|soci[ée]t[ée]|entreprise|raison sociale|vendor|fournisseur)[ \t]*[:\-]?[ \t]*([\p{L}\p{N}][\p{L}\p{N}&'’\- ]{1,48})`),
			Group:   1,
		},
		companyRule{
			ID:       "person-name",
			Pattern:  regexp.MustCompile(`(?:^|[^\p{L}])(\p{Lu}\p{Ll}+[ \t]+\p{Lu}{2,}(?:-\p{Lu}{2,})?)(?:[^\p{L}]|$)`),
			Group:    1,
			Delta:    20,
			Filtered: true,
		},
		companyRule{
			ID:       "capitalized-line",
			Pattern:  regexp.MustCompile(`(?m)^[ \t]*(` + capitalWord + `(?:[ \t]+(?:&|` + capitalWord + `)){0,4})[ \t]*$`),
			Group:    1,
			Filtered: true,
		},
	)
	return rules
}

// CompanyCandidates returns every company-name candidate found in text.
func (e *Extractor) CompanyCandidates(text string) []Candidate[string] {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	docBonus := 0
	if invoiceKeywords.MatchString(text) {
		docBonus = invoiceKeywordBonus
	}
	lineStart, lineEnd := firstLine(text)

	var out []Candidate[string]
	for _, rule := range companyRules {
		for _, m := range rule.Pattern.FindAllStringSubmatchIndex(text, -1) {
			start, end := m[2*rule.Group], m[2*rule.Group+1]
			if start < 0 {
				continue
			}
			raw := text[start:end]
			if rule.Canonical != "" {
				raw = rule.Canonical
			}
			value := SanitizeCompanyName(raw)
			if !plausibleCompany(value, rule.Filtered) {
				continue
			}

			confidence := companyBase + rule.Delta + docBonus
			if start >= lineStart && start < lineEnd {
				confidence += companyFirstLineBonus
			}
			out = append(out, Candidate[string]{
				Value:      value,
				Confidence: clamp(confidence),
				Rule:       rule.ID,
				Position:   start,
			})
		}
	}
	return out
}

// SanitizeCompanyName keeps letters, digits, space, '&', '\'' and '-',
// collapses whitespace and title-cases each word.
func SanitizeCompanyName(name string) string {
	name = strings.ReplaceAll(name, "’", "'")
	name = whitespaceRun.ReplaceAllString(name, " ")
	name = companyStrip.ReplaceAllString(name, "")
	name = strings.TrimSpace(whitespaceRun.ReplaceAllString(name, " "))
	if name == "" {
		return ""
	}
	// Casers carry state and are not shared between goroutines.
	return cases.Title(language.French).String(name)
}

func plausibleCompany(value string, filtered bool) bool {
	letters := 0
	for _, r := range value {
		if r >= '0' && r <= '9' || r == ' ' || r == '&' || r == '\'' || r == '-' {
			continue
		}
		letters++
	}
	if letters < 2 {
		return false
	}
	if !filtered {
		return true
	}
	for _, word := range strings.Fields(strings.ToLower(value)) {
		if _, stop := companyStopWords[word]; stop {
			return false
		}
	}
	return true
}

// firstLine returns the byte span of the first non-blank line.
func firstLine(text string) (int, int) {
	start := strings.IndexFunc(text, func(r rune) bool {
		return r != ' ' && r != '\t' && r != '\n' && r != '\r'
	})
	if start < 0 {
		return 0, 0
	}
	end := strings.IndexByte(text[start:], '\n')
	if end < 0 {
		return start, len(text)
	}
	return start, start + end
}
