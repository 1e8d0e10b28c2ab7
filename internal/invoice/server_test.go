package invoice

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"regexp"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/zombor/invoice-scanner/internal/scanning"
)

var _ = Describe("Server", func() {
	var (
		db          *mockDB
		storage     *mockStorage
		analyzer    *mockAnalyzer
		auth        BasicAuth
		maxUpload   int64
		ghttpServer *ghttp.Server
	)

	BeforeEach(func() {
		db = newMockDB()
		storage = newMockStorage()
		analyzer = newMockAnalyzer()
		auth = BasicAuth{}
		maxUpload = 50 << 20
	})

	JustBeforeEach(func() {
		service := NewServiceWithDeps(db, analyzer, storage,
			&mockIDGenerator{ids: []string{"inv-1"}},
			&mockTimeSource{now: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)})
		server := NewServerWithMux(service, auth, maxUpload, http.NewServeMux())

		ghttpServer = ghttp.NewServer()
		all := regexp.MustCompile(`.*`)
		for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions} {
			ghttpServer.RouteToHandler(method, all, server.ServeHTTP)
		}
	})

	AfterEach(func() {
		ghttpServer.Close()
	})

	do := func(method, path, contentType string, body io.Reader) *http.Response {
		req, err := http.NewRequest(method, ghttpServer.URL()+path, body)
		Expect(err).NotTo(HaveOccurred())
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		resp, err := http.DefaultClient.Do(req)
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	upload := func(filename, docType string, data []byte) *http.Response {
		var b bytes.Buffer
		writer := multipart.NewWriter(&b)
		if docType != "" {
			Expect(writer.WriteField("type", docType)).To(Succeed())
		}
		if filename != "" {
			part, err := writer.CreateFormFile("file", filename)
			Expect(err).NotTo(HaveOccurred())
			part.Write(data)
		}
		Expect(writer.Close()).To(Succeed())
		return do(http.MethodPost, "/api/invoices", writer.FormDataContentType(), &b)
	}

	decodeError := func(resp *http.Response) string {
		defer resp.Body.Close()
		var body map[string]string
		Expect(json.NewDecoder(resp.Body).Decode(&body)).To(Succeed())
		return body["error"]
	}

	Describe("POST /api/invoices", func() {
		When("upload succeeds", func() {
			It("returns the created invoice", func() {
				resp := upload("scan.pdf", "purchase", []byte("%PDF-1.7"))
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusCreated))
				Expect(resp.Header.Get("Content-Type")).To(Equal("application/json"))

				var inv Invoice
				Expect(json.NewDecoder(resp.Body).Decode(&inv)).To(Succeed())
				Expect(inv.ID).To(Equal("inv-1"))
				Expect(inv.Result.FileName).To(Equal("Ach_acme.pdf"))
				Expect(analyzer.lastDoc.MediaType).To(Equal("application/pdf"))
			})
		})

		When("the type is missing or invalid", func() {
			It("returns Bad Request", func() {
				resp := upload("scan.pdf", "refund", []byte("%PDF-1.7"))
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				Expect(decodeError(resp)).To(ContainSubstring("purchase"))
				Expect(analyzer.calls).To(Equal(0))
			})
		})

		When("no file is provided", func() {
			It("returns Bad Request", func() {
				resp := upload("", "sale", nil)
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				Expect(decodeError(resp)).To(ContainSubstring("No file was selected"))
			})
		})

		When("preflight rejects the document", func() {
			BeforeEach(func() {
				analyzer.preflightErr = scanning.NewError(scanning.KindPreflight, "file size exceeds limit", nil)
			})

			It("returns Request Entity Too Large", func() {
				resp := upload("scan.pdf", "sale", []byte("%PDF-1.7"))
				Expect(resp.StatusCode).To(Equal(http.StatusRequestEntityTooLarge))
				Expect(decodeError(resp)).To(Equal(scanning.UserMessage(analyzer.preflightErr)))
			})
		})

		When("the body exceeds the upload limit", func() {
			BeforeEach(func() {
				maxUpload = 16
			})

			It("returns Request Entity Too Large", func() {
				resp := upload("scan.pdf", "sale", bytes.Repeat([]byte("x"), 2<<20))
				Expect(resp.StatusCode).To(Equal(http.StatusRequestEntityTooLarge))
				resp.Body.Close()
			})
		})
	})

	Describe("GET /api/invoices", func() {
		It("returns an empty array when there are none", func() {
			resp := do(http.MethodGet, "/api/invoices", "", nil)
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(strings.TrimSpace(string(body))).To(Equal("[]"))
		})

		When("the database fails", func() {
			BeforeEach(func() {
				db.listErr = errors.New("db error")
			})

			It("returns Internal Server Error", func() {
				resp := do(http.MethodGet, "/api/invoices", "", nil)
				Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
				Expect(decodeError(resp)).To(Equal("Internal server error"))
			})
		})
	})

	Describe("GET /api/invoices/{id}", func() {
		It("returns Not Found for an unknown invoice", func() {
			resp := do(http.MethodGet, "/api/invoices/missing", "", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			resp.Body.Close()
		})

		It("returns a stored invoice", func() {
			db.invoices["inv-9"] = &Invoice{ID: "inv-9", Type: scanning.Sale}
			resp := do(http.MethodGet, "/api/invoices/inv-9", "", nil)
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var inv Invoice
			Expect(json.NewDecoder(resp.Body).Decode(&inv)).To(Succeed())
			Expect(inv.Type).To(Equal(scanning.Sale))
		})
	})

	Describe("GET /api/invoices/{id}/file", func() {
		BeforeEach(func() {
			db.invoices["inv-9"] = &Invoice{
				ID:          "inv-9",
				StoredFile:  "inv-9_scan.pdf",
				ContentType: "application/pdf",
				Result:      scanning.ExtractionResult{FileName: "Ach_acme.pdf"},
			}
			storage.files["inv-9_scan.pdf"] = []byte("%PDF-1.7")
		})

		It("serves the file as an attachment under the generated name", func() {
			resp := do(http.MethodGet, "/api/invoices/inv-9/file", "", nil)
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal("application/pdf"))
			Expect(resp.Header.Get("Content-Disposition")).To(Equal(`attachment; filename=Ach_acme.pdf`))
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(body).To(Equal([]byte("%PDF-1.7")))
		})
	})

	Describe("PATCH /api/invoices/{id}", func() {
		BeforeEach(func() {
			db.invoices["inv-9"] = &Invoice{ID: "inv-9", Type: scanning.Purchase}
		})

		It("applies the correction", func() {
			resp := do(http.MethodPatch, "/api/invoices/inv-9", "application/json", strings.NewReader(`{"companyName":"Carrefour","amount":42.1}`))
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var inv Invoice
			Expect(json.NewDecoder(resp.Body).Decode(&inv)).To(Succeed())
			Expect(inv.Result.FileName).To(Equal("Ach_carrefour.pdf"))
			Expect(inv.Result.Confidence.Amount).To(Equal(100))
		})

		It("rejects a malformed body", func() {
			resp := do(http.MethodPatch, "/api/invoices/inv-9", "application/json", strings.NewReader(`{`))
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			resp.Body.Close()
		})

		It("rejects an amount at the ceiling", func() {
			resp := do(http.MethodPatch, "/api/invoices/inv-9", "application/json", strings.NewReader(`{"amount":1000000}`))
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			resp.Body.Close()
		})

		It("rejects a malformed date", func() {
			resp := do(http.MethodPatch, "/api/invoices/inv-9", "application/json", strings.NewReader(`{"date":"yesterday"}`))
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			resp.Body.Close()
		})
	})

	Describe("DELETE /api/invoices/{id}", func() {
		It("returns No Content", func() {
			db.invoices["inv-9"] = &Invoice{ID: "inv-9", StoredFile: "inv-9_a.pdf"}
			resp := do(http.MethodDelete, "/api/invoices/inv-9", "", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			resp.Body.Close()
			Expect(db.invoices).To(BeEmpty())
		})

		It("returns Not Found for an unknown invoice", func() {
			resp := do(http.MethodDelete, "/api/invoices/missing", "", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			resp.Body.Close()
		})
	})

	Describe("CORS", func() {
		It("answers preflight requests", func() {
			resp := do(http.MethodOptions, "/api/invoices", "", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			Expect(resp.Header.Get("Access-Control-Allow-Methods")).To(ContainSubstring("PATCH"))
			resp.Body.Close()
		})
	})

	Describe("basic auth", func() {
		BeforeEach(func() {
			auth = BasicAuth{Username: "admin", Password: "secret"}
		})

		It("rejects requests without credentials", func() {
			resp := do(http.MethodGet, "/api/invoices", "", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
			Expect(resp.Header.Get("WWW-Authenticate")).To(ContainSubstring("Basic"))
			resp.Body.Close()
		})

		It("accepts valid credentials", func() {
			req, err := http.NewRequest(http.MethodGet, ghttpServer.URL()+"/api/invoices", nil)
			Expect(err).NotTo(HaveOccurred())
			req.SetBasicAuth("admin", "secret")
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			resp.Body.Close()
		})

		It("leaves the health check open", func() {
			resp := do(http.MethodGet, "/healthz", "", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			resp.Body.Close()
		})
	})
})
