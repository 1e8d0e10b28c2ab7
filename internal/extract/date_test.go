package extract

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("DateCandidates", func() {
	var (
		text       string
		candidates []Candidate[time.Time]
		best       Candidate[time.Time]
		found      bool
	)

	day := func(y int, m time.Month, d int) time.Time {
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}

	JustBeforeEach(func() {
		candidates = newTestExtractor().DateCandidates(text)
		best, found = Best(candidates)
	})

	When("the text has no dates", func() {
		BeforeEach(func() {
			text = "Total TTC: 18.50€"
		})

		It("reports absence", func() {
			Expect(found).To(BeFalse())
		})
	})

	DescribeTable("numeric formats",
		func(input string, expected time.Time, rule string) {
			candidates := newTestExtractor().DateCandidates(input)
			Expect(candidates).To(HaveLen(1))
			Expect(candidates[0].Value).To(Equal(expected))
			Expect(candidates[0].Rule).To(Equal(rule))
		},
		Entry("slash", "le 03/02/2025 a", day(2025, time.February, 3), "dmy-slash"),
		Entry("dash", "x 3-2-2025 x", day(2025, time.February, 3), "dmy-dash"),
		Entry("dot", "x 03.02.2025 x", day(2025, time.February, 3), "dmy-dot"),
		Entry("iso", "x 2025-02-03 x", day(2025, time.February, 3), "iso"),
		Entry("two-digit year", "x 03/02/25 x", day(2025, time.February, 3), "dmy-short-year"),
	)

	When("a recent numeric date follows a keyword", func() {
		BeforeEach(func() {
			text = "Date de facture : 01/10/2026"
		})

		It("adds the recency and keyword bonuses", func() {
			Expect(best.Value).To(Equal(day(2026, time.October, 1)))
			Expect(best.Confidence).To(Equal(85))
		})
	})

	When("an old numeric date stands alone", func() {
		BeforeEach(func() {
			text = "ref 15/01/2021"
		})

		It("keeps the base confidence", func() {
			Expect(best.Confidence).To(Equal(50))
		})
	})

	When("the month is written out", func() {
		BeforeEach(func() {
			text = "Paris, le 1er février 2026"
		})

		It("parses the textual month", func() {
			Expect(found).To(BeTrue())
			Expect(best.Value).To(Equal(day(2026, time.February, 1)))
			Expect(best.Rule).To(Equal("textual-month"))
		})

		It("adds the textual and recency bonuses", func() {
			Expect(best.Confidence).To(Equal(90))
		})
	})

	When("an English textual date is present", func() {
		BeforeEach(func() {
			text = "Invoice issued 5 March 2024"
		})

		It("parses it", func() {
			Expect(best.Value).To(Equal(day(2024, time.March, 5)))
			Expect(best.Confidence).To(Equal(85))
		})
	})

	When("a textual date competes with a numeric one", func() {
		BeforeEach(func() {
			text = "12/03/2024\n12 mars 2024"
		})

		It("prefers the textual month", func() {
			Expect(best.Rule).To(Equal("textual-month"))
		})
	})

	When("the year is outside the plausible window", func() {
		BeforeEach(func() {
			text = "12/03/2019 and 12/03/2031 and 12/03/99"
		})

		It("rejects every match", func() {
			Expect(candidates).To(BeEmpty())
		})
	})

	When("day or month are out of range", func() {
		BeforeEach(func() {
			text = "32/01/2025 15/13/2025 31/02/2025 00/01/2025"
		})

		It("rejects every match", func() {
			Expect(candidates).To(BeEmpty())
		})
	})

	It("pivots two-digit years at 50", func() {
		Expect(pivotYear(49)).To(Equal(2049))
		Expect(pivotYear(50)).To(Equal(1950))
		Expect(pivotYear(0)).To(Equal(2000))
	})
})
