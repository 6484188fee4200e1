// Package handlers provides HTTP handlers for the invoice parser API.
package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/Bogdan-Cristian-Burci/InvoiceParser/internal/cache"
	"github.com/Bogdan-Cristian-Burci/InvoiceParser/internal/config"
	"github.com/Bogdan-Cristian-Burci/InvoiceParser/internal/domain"
	"github.com/Bogdan-Cristian-Burci/InvoiceParser/internal/extract"
	"github.com/Bogdan-Cristian-Burci/InvoiceParser/internal/layout"
	"github.com/Bogdan-Cristian-Burci/InvoiceParser/internal/observability"
	"github.com/Bogdan-Cristian-Burci/InvoiceParser/internal/pipeline"
)

// ParseHandler handles invoice parsing requests.
type ParseHandler struct {
	logger  *observability.Logger
	cfg     *config.Config
	results *cache.ResultCache
}

// NewParseHandler creates a new parse handler.
func NewParseHandler(logger *observability.Logger, cfg *config.Config, results *cache.ResultCache) *ParseHandler {
	return &ParseHandler{
		logger:  logger,
		cfg:     cfg,
		results: results,
	}
}

// envelope is the response wrapper shared by all parsing endpoints.
type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message"`
}

// coordinateDataDTO is the payload of the coordinate-based endpoint.
type coordinateDataDTO struct {
	ExtractionMethod string                  `json:"extraction_method"`
	Products         []domain.ProductRecord  `json:"products"`
	ParsingErrors    []string                `json:"parsing_errors"`
	DebugInfo        extract.CoordinateDebug `json:"debug_info"`
}

// ParseInvoice handles POST /parse-invoice: the full pipeline over one
// uploaded document.
func (h *ParseHandler) ParseInvoice(w http.ResponseWriter, r *http.Request) {
	log := h.logger.WithRequest(chimiddleware.GetReqID(r.Context()))

	content, filename, ok := h.readUpload(w, r, log)
	if !ok {
		return
	}

	key := cache.DocumentKey(content, h.cfg.Snapshot().TableExtractionFlavor)
	if cached, err := h.results.Get(r.Context(), key); err == nil {
		log.Info().Str("file", filename).Msg("serving cached result")
		h.writeJSON(w, http.StatusOK, envelope{
			Success: cached.Success,
			Data:    cached,
			Message: cached.Message,
		})
		return
	}

	doc, cleanup, err := h.openDocument(content, filename)
	if err != nil {
		log.Error().Err(err).Str("file", filename).Msg("cannot open document")
		h.writeJSON(w, http.StatusOK, envelope{
			Success: false,
			Error:   err.Error(),
			Message: "Invoice processing failed",
		})
		return
	}
	defer cleanup()

	p := pipeline.New(h.cfg.Snapshot(), log)
	result, err := p.Run(r.Context(), doc, filename)
	if err != nil {
		log.Error().Err(err).Str("file", filename).Msg("pipeline failed")
		h.writeJSON(w, http.StatusOK, envelope{
			Success: false,
			Error:   err.Error(),
			Message: "Invoice processing failed",
		})
		return
	}

	if err := h.results.Set(r.Context(), key, &result); err != nil {
		log.Warn().Err(err).Msg("failed to cache result")
	}

	h.writeJSON(w, http.StatusOK, envelope{
		Success: result.Success,
		Data:    result,
		Message: result.Message,
	})
}

// ParseInvoiceStats handles POST /parse-invoice/stats: same pipeline,
// returns only the run statistics.
func (h *ParseHandler) ParseInvoiceStats(w http.ResponseWriter, r *http.Request) {
	log := h.logger.WithRequest(chimiddleware.GetReqID(r.Context()))

	content, filename, ok := h.readUpload(w, r, log)
	if !ok {
		return
	}

	doc, cleanup, err := h.openDocument(content, filename)
	if err != nil {
		h.writeJSON(w, http.StatusOK, envelope{Success: false, Error: err.Error(), Message: "Invoice processing failed"})
		return
	}
	defer cleanup()

	p := pipeline.New(h.cfg.Snapshot(), log)
	result, err := p.Run(r.Context(), doc, filename)
	if err != nil {
		h.writeJSON(w, http.StatusOK, envelope{Success: false, Error: err.Error(), Message: "Invoice processing failed"})
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": result.Success,
		"stats":   result.Stats,
		"message": result.Message,
	})
}

// ParseCoordinate handles POST /parse-invoice-coordinate-based: only the
// marker-bounded strategy. A missing table is a reported condition with
// success=true, not a failure.
func (h *ParseHandler) ParseCoordinate(w http.ResponseWriter, r *http.Request) {
	log := h.logger.WithRequest(chimiddleware.GetReqID(r.Context()))

	content, filename, ok := h.readUpload(w, r, log)
	if !ok {
		return
	}

	doc, cleanup, err := h.openDocument(content, filename)
	if err != nil {
		log.Error().Err(err).Str("file", filename).Msg("cannot open document")
		h.writeJSON(w, http.StatusOK, envelope{
			Success: false,
			Error:   err.Error(),
			Message: "Invoice processing failed",
		})
		return
	}
	defer cleanup()

	p := pipeline.New(h.cfg.Snapshot(), log)
	result, err := p.RunCoordinate(r.Context(), doc)
	if err != nil {
		h.writeJSON(w, http.StatusOK, envelope{Success: false, Error: err.Error(), Message: "Invoice processing failed"})
		return
	}

	products := result.Products
	if products == nil {
		products = []domain.ProductRecord{}
	}
	parsingErrors := result.ParsingErrors
	if parsingErrors == nil {
		parsingErrors = []string{}
	}

	h.writeJSON(w, http.StatusOK, envelope{
		Success: true,
		Data: coordinateDataDTO{
			ExtractionMethod: "coordinate_based",
			Products:         products,
			ParsingErrors:    parsingErrors,
			DebugInfo:        result.Debug,
		},
		Message: fmt.Sprintf("Coordinate-based extraction completed. Extracted %d products from table.", len(products)),
	})
}

// readUpload pulls the uploaded document out of the multipart form. The
// upload key is "file"; PDF and layout-service JSON documents are
// accepted.
func (h *ParseHandler) readUpload(w http.ResponseWriter, r *http.Request, log *observability.Logger) ([]byte, string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.Server.MaxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		log.Warn().Err(err).Msg("no file part in request")
		h.writeJSON(w, http.StatusBadRequest, envelope{
			Success: false,
			Error:   "No file uploaded",
			Message: `Please ensure the POST request includes a file with key "file".`,
		})
		return nil, "", false
	}
	defer file.Close()

	filename := header.Filename
	ext := strings.ToLower(filepath.Ext(filename))
	if ext != ".pdf" && ext != ".json" {
		log.Warn().Str("file", filename).Msg("invalid file type")
		h.writeJSON(w, http.StatusBadRequest, envelope{
			Success: false,
			Error:   "Invalid file type",
			Message: "Only PDF and layout JSON files are supported. Received: " + filename,
		})
		return nil, "", false
	}

	content, err := io.ReadAll(file)
	if err != nil {
		log.Error().Err(err).Msg("failed to read upload")
		h.writeJSON(w, http.StatusBadRequest, envelope{
			Success: false,
			Error:   "Failed to read upload",
			Message: err.Error(),
		})
		return nil, "", false
	}
	if len(content) == 0 {
		h.writeJSON(w, http.StatusBadRequest, envelope{
			Success: false,
			Error:   "No file selected",
			Message: "Please select a PDF file to upload.",
		})
		return nil, "", false
	}
	return content, filename, true
}

// openDocument materializes a layout document from the uploaded bytes.
// PDFs go through a temp file for the native reader; JSON layouts decode
// directly.
func (h *ParseHandler) openDocument(content []byte, filename string) (layout.Document, func(), error) {
	if strings.EqualFold(filepath.Ext(filename), ".json") {
		doc, err := layout.ReadJSON(bytes.NewReader(content))
		if err != nil {
			return nil, nil, err
		}
		return doc, func() { _ = doc.Close() }, nil
	}

	tmpPath := filepath.Join(os.TempDir(), "invoice-"+uuid.NewString()+".pdf")
	if err := os.WriteFile(tmpPath, content, 0o600); err != nil {
		return nil, nil, fmt.Errorf("%w: write temp file: %v", domain.ErrParseFailure, err)
	}

	doc, err := layout.OpenPDF(tmpPath)
	if err != nil {
		_ = os.Remove(tmpPath)
		return nil, nil, err
	}
	cleanup := func() {
		_ = doc.Close()
		_ = os.Remove(tmpPath)
	}
	return doc, cleanup, nil
}

func (h *ParseHandler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode response")
	}
}
