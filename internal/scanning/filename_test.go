package scanning

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("GenerateFileName", func() {
	DescribeTable("builds a prefixed slug",
		func(docType DocumentType, company, expected string) {
			Expect(GenerateFileName(docType, company)).To(Equal(expected))
		},
		Entry("purchase from a brand", Purchase, "McDonald's", "Ach_mcdonalds.pdf"),
		Entry("sale with accents", Sale, "Société Générale", "Vte_societe_generale.pdf"),
		Entry("ampersand is dropped", Purchase, "Sarl Dupont & Fils", "Ach_sarl_dupont_fils.pdf"),
		Entry("long names are truncated", Purchase, "Boulangerie Patisserie du Centre", "Ach_boulangerie_patisser.pdf"),
		Entry("empty name", Purchase, "", "Ach_document.pdf"),
		Entry("name with no usable characters", Sale, "!!! ***", "Vte_document.pdf"),
		Entry("unknown type falls back to purchase", DocumentType("other"), "Acme", "Ach_acme.pdf"),
	)

	It("always matches the published file name shape", func() {
		for _, name := range []string{"Ça coûte 12€ / TTC", "  ", "ÆØÅ Corp", "x\ty\nz"} {
			Expect(GenerateFileName(Sale, name)).To(MatchRegexp(`^(Ach_|Vte_)[a-z0-9_]*\.pdf$`))
		}
	})

	It("is idempotent on an already-sanitized slug", func() {
		Expect(GenerateFileName(Purchase, "mcdonalds")).To(Equal(GenerateFileName(Purchase, "McDonald's")))
	})
})

var _ = Describe("ParseDocumentType", func() {
	It("accepts purchase and sale in any case", func() {
		t, err := ParseDocumentType(" Sale ")
		Expect(err).NotTo(HaveOccurred())
		Expect(t).To(Equal(Sale))
	})

	It("rejects anything else", func() {
		_, err := ParseDocumentType("refund")
		Expect(err).To(HaveOccurred())
	})
})
