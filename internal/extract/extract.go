// Package extract turns recognized invoice text into ranked field candidates.
//
// Every extractor is a pure function of its input text and the Config it was
// built with: the same text always yields the same candidates in the same
// order with the same confidences.
package extract

import (
	"time"
)

// Config holds the tunable constants used by the extractors.
type Config struct {
	// AmountCeiling is the exclusive upper bound for a plausible amount.
	AmountCeiling float64
	// TypicalAmountMin and TypicalAmountMax bound the range that earns the
	// typical-invoice bonus (inclusive).
	TypicalAmountMin float64
	TypicalAmountMax float64
	// MinYear and MaxYear bound the plausible date window (inclusive).
	MinYear int
	MaxYear int
	// RecentWindow is the distance from Now that earns the recency bonus.
	RecentWindow time.Duration
	// Now returns the reference time for recency scoring.
	Now func() time.Time
}

// DefaultConfig returns the default extractor constants.
func DefaultConfig() Config {
	return Config{
		AmountCeiling:    1_000_000,
		TypicalAmountMin: 5,
		TypicalAmountMax: 1000,
		MinYear:          2020,
		MaxYear:          2030,
		RecentWindow:     365 * 24 * time.Hour,
		Now:              time.Now,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.AmountCeiling <= 0 {
		c.AmountCeiling = d.AmountCeiling
	}
	if c.TypicalAmountMin <= 0 {
		c.TypicalAmountMin = d.TypicalAmountMin
	}
	if c.TypicalAmountMax <= 0 {
		c.TypicalAmountMax = d.TypicalAmountMax
	}
	if c.MinYear == 0 {
		c.MinYear = d.MinYear
	}
	if c.MaxYear == 0 {
		c.MaxYear = d.MaxYear
	}
	if c.RecentWindow <= 0 {
		c.RecentWindow = d.RecentWindow
	}
	if c.Now == nil {
		c.Now = d.Now
	}
	return c
}

// PlausibleAmount reports whether 0 < amount < AmountCeiling.
func (c Config) PlausibleAmount(amount float64) bool {
	return amount > 0 && amount < c.withDefaults().AmountCeiling
}

// PlausibleYear reports whether year lies inside the date window.
func (c Config) PlausibleYear(year int) bool {
	c = c.withDefaults()
	return year >= c.MinYear && year <= c.MaxYear
}

// Candidate is a provisional field value produced by one rule.
type Candidate[T any] struct {
	Value      T
	Confidence int
	Rule       string
	// Position is the byte offset of the match in the source text.
	Position int
}

// Best selects the candidate with the strictly highest confidence, breaking
// ties by earliest position. It reports false when there are no candidates.
func Best[T any](candidates []Candidate[T]) (Candidate[T], bool) {
	var best Candidate[T]
	if len(candidates) == 0 {
		return best, false
	}
	best = candidates[0]
	for _, c := range candidates[1:] {
		if c.Confidence > best.Confidence ||
			(c.Confidence == best.Confidence && c.Position < best.Position) {
			best = c
		}
	}
	return best, true
}

// Extractor runs the company, date and amount rule tables.
type Extractor struct {
	cfg Config
}

// New creates an Extractor. Zero fields in cfg take their default values.
func New(cfg Config) *Extractor {
	return &Extractor{cfg: cfg.withDefaults()}
}

// Config returns the effective configuration.
func (e *Extractor) Config() Config {
	return e.cfg
}

func clamp(confidence int) int {
	if confidence < 0 {
		return 0
	}
	if confidence > 100 {
		return 100
	}
	return confidence
}
