package scanning

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	maxSlugLength = 20
	defaultSlug   = "document"
)

var (
	fileNamePrefixes = map[DocumentType]string{
		Purchase: "Ach_",
		Sale:     "Vte_",
	}

	nonSlugChars = regexp.MustCompile(`[^A-Za-z0-9\s]`)
	whitespace   = regexp.MustCompile(`\s+`)
)

// GenerateFileName builds "<prefix><slug>.pdf" where the prefix is Ach_ for
// purchases and Vte_ for sales, and the slug is the accent-folded,
// lowercased company name limited to 20 characters. An empty name yields
// the "document" slug. Unknown types use the purchase prefix.
func GenerateFileName(docType DocumentType, companyName string) string {
	prefix, ok := fileNamePrefixes[docType]
	if !ok {
		prefix = fileNamePrefixes[Purchase]
	}
	return prefix + slugify(companyName) + ".pdf"
}

func slugify(name string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), name)
	if err != nil {
		folded = name
	}

	slug := nonSlugChars.ReplaceAllString(folded, "")
	slug = whitespace.ReplaceAllString(strings.TrimSpace(slug), "_")
	slug = strings.ToLower(slug)
	if len(slug) > maxSlugLength {
		slug = slug[:maxSlugLength]
	}
	if slug == "" {
		return defaultSlug
	}
	return slug
}
