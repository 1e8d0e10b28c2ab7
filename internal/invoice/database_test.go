package invoice

import (
	"errors"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/invoice-scanner/internal/scanning"
)

var _ = Describe("BoltDB", func() {
	var (
		dbPath string
		db     *BoltDB
	)

	newInvoice := func(id string, created time.Time) *Invoice {
		return &Invoice{
			ID:          id,
			Type:        scanning.Purchase,
			StoredFile:  id + "_scan.pdf",
			ContentType: "application/pdf",
			Result: scanning.ExtractionResult{
				CompanyName: "Acme",
				Date:        "2024-01-15",
				Amount:      18.5,
				FileName:    "Ach_acme.pdf",
				Confidence:  scanning.Confidence{CompanyName: 80, Date: 85, Amount: 90},
			},
			CreatedAt: created,
			UpdatedAt: created,
		}
	}

	BeforeEach(func() {
		dbPath = filepath.Join(GinkgoT().TempDir(), "test.db")
		var err error
		db, err = NewBoltDB(dbPath)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if db != nil {
			db.Close()
		}
	})

	Describe("SaveInvoice and GetInvoice", func() {
		It("round-trips the extraction result", func() {
			saved := newInvoice("inv-1", time.Date(2024, 1, 16, 10, 0, 0, 0, time.UTC))
			Expect(db.SaveInvoice(saved)).To(Succeed())

			loaded, err := db.GetInvoice("inv-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.Result).To(Equal(saved.Result))
			Expect(loaded.Type).To(Equal(scanning.Purchase))
			Expect(loaded.CreatedAt.Equal(saved.CreatedAt)).To(BeTrue())
		})

		It("replaces an existing invoice", func() {
			inv := newInvoice("inv-1", time.Now())
			Expect(db.SaveInvoice(inv)).To(Succeed())
			inv.Corrected = true
			Expect(db.SaveInvoice(inv)).To(Succeed())

			loaded, err := db.GetInvoice("inv-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.Corrected).To(BeTrue())
		})
	})

	Describe("GetInvoice", func() {
		It("returns ErrNotFound for a missing ID", func() {
			_, err := db.GetInvoice("missing")
			Expect(errors.Is(err, ErrNotFound)).To(BeTrue())
		})
	})

	Describe("ListInvoices", func() {
		It("returns an empty slice when there are none", func() {
			invoices, err := db.ListInvoices()
			Expect(err).NotTo(HaveOccurred())
			Expect(invoices).NotTo(BeNil())
			Expect(invoices).To(BeEmpty())
		})

		It("orders invoices newest first", func() {
			base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
			Expect(db.SaveInvoice(newInvoice("a", base))).To(Succeed())
			Expect(db.SaveInvoice(newInvoice("b", base.Add(2*time.Hour)))).To(Succeed())
			Expect(db.SaveInvoice(newInvoice("c", base.Add(time.Hour)))).To(Succeed())

			invoices, err := db.ListInvoices()
			Expect(err).NotTo(HaveOccurred())
			ids := []string{}
			for _, inv := range invoices {
				ids = append(ids, inv.ID)
			}
			Expect(ids).To(Equal([]string{"b", "c", "a"}))
		})
	})

	Describe("DeleteInvoice", func() {
		It("removes the invoice", func() {
			Expect(db.SaveInvoice(newInvoice("inv-1", time.Now()))).To(Succeed())
			Expect(db.DeleteInvoice("inv-1")).To(Succeed())

			_, err := db.GetInvoice("inv-1")
			Expect(errors.Is(err, ErrNotFound)).To(BeTrue())
		})

		It("returns ErrNotFound for a missing ID", func() {
			Expect(errors.Is(db.DeleteInvoice("missing"), ErrNotFound)).To(BeTrue())
		})
	})

	It("persists across reopen", func() {
		Expect(db.SaveInvoice(newInvoice("inv-1", time.Now()))).To(Succeed())
		Expect(db.Close()).To(Succeed())

		var err error
		db, err = NewBoltDB(dbPath)
		Expect(err).NotTo(HaveOccurred())
		_, err = db.GetInvoice("inv-1")
		Expect(err).NotTo(HaveOccurred())
	})
})
