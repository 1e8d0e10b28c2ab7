package invoice

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/zombor/invoice-scanner/internal/scanning"
)

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// writeJSON writes v with the given status
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// writeError writes a JSON error body
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// statusFor maps service errors onto HTTP statuses
func statusFor(err error) (int, string) {
	switch {
	case scanning.IsPreflight(err):
		return http.StatusRequestEntityTooLarge, scanning.UserMessage(err)
	case errors.Is(err, ErrInvalidDocumentType):
		return http.StatusBadRequest, "Document type must be 'purchase' or 'sale'."
	case errors.Is(err, ErrInvalidCorrection):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, "Invoice not found"
	}
	return http.StatusInternalServerError, scanning.UserMessage(err)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleListInvoices returns a list of all invoices
func (s *Server) handleListInvoices(w http.ResponseWriter, r *http.Request) {
	invoices, err := s.service.ListInvoices()
	if err != nil {
		slog.Error("Error listing invoices", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if invoices == nil {
		invoices = []*Invoice{}
	}
	writeJSON(w, http.StatusOK, invoices)
}

// handleUploadInvoice accepts a multipart form with a "file" and a "type"
func (s *Server) handleUploadInvoice(w http.ResponseWriter, r *http.Request) {
	if s.maxUploadSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadSize+multipartOverhead)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("File is too large. Maximum size is %dMB.", s.maxUploadSize>>20))
			return
		}
		slog.Error("Error parsing multipart form", "error", err)
		writeError(w, http.StatusBadRequest, "Error parsing form")
		return
	}

	docType, err := scanning.ParseDocumentType(r.FormValue("type"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Document type must be 'purchase' or 'sale'.")
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		errorMsg := "No file provided"
		if errors.Is(err, http.ErrMissingFile) {
			errorMsg = "No file was selected. Please choose a file to upload."
		}
		writeError(w, http.StatusBadRequest, errorMsg)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		writeError(w, http.StatusInternalServerError, "Error reading file. Please try again.")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = scanning.MediaTypeFromFilename(header.Filename)
	}
	contentType = strings.ToLower(strings.TrimSpace(contentType))

	invoice, err := s.service.ProcessInvoice(r.Context(), header.Filename, data, contentType, docType)
	if err != nil {
		slog.Error("Error processing invoice", "filename", header.Filename, "error", err)
		status, message := statusFor(err)
		writeError(w, status, message)
		return
	}

	writeJSON(w, http.StatusCreated, invoice)
}

// handleGetInvoice returns a single invoice
func (s *Server) handleGetInvoice(w http.ResponseWriter, r *http.Request) {
	invoice, err := s.service.GetInvoice(r.PathValue("id"))
	if err != nil {
		status, message := statusFor(err)
		writeError(w, status, message)
		return
	}
	writeJSON(w, http.StatusOK, invoice)
}

// handleGetInvoiceFile returns the source document under its generated name
func (s *Server) handleGetInvoiceFile(w http.ResponseWriter, r *http.Request) {
	file, err := s.service.GetInvoiceFile(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "File not found")
		return
	}

	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": file.Name}))
	w.Write(file.Data)
}

// handleCorrectInvoice applies user-confirmed field values
func (s *Server) handleCorrectInvoice(w http.ResponseWriter, r *http.Request) {
	var correction Correction
	if err := json.NewDecoder(r.Body).Decode(&correction); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	invoice, err := s.service.CorrectInvoice(r.PathValue("id"), correction)
	if err != nil {
		slog.Error("Error correcting invoice", "id", r.PathValue("id"), "error", err)
		status, message := statusFor(err)
		writeError(w, status, message)
		return
	}
	writeJSON(w, http.StatusOK, invoice)
}

// handleDeleteInvoice deletes an invoice
func (s *Server) handleDeleteInvoice(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteInvoice(r.PathValue("id")); err != nil {
		status, message := statusFor(err)
		if status == http.StatusInternalServerError {
			message = "Error deleting invoice"
		}
		writeError(w, status, message)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
