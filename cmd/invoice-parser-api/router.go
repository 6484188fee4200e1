// Package main provides the API router setup.
package main

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/Bogdan-Cristian-Burci/InvoiceParser/cmd/invoice-parser-api/handlers"
	"github.com/Bogdan-Cristian-Burci/InvoiceParser/cmd/invoice-parser-api/middleware"
	"github.com/Bogdan-Cristian-Burci/InvoiceParser/internal/cache"
	"github.com/Bogdan-Cristian-Burci/InvoiceParser/internal/config"
	"github.com/Bogdan-Cristian-Burci/InvoiceParser/internal/observability"
)

// NewRouter creates the main API router with all routes configured.
func NewRouter(logger *observability.Logger, cfg *config.Config) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS([]string{"*"}))
	r.Use(chimiddleware.Timeout(cfg.Server.ReadTimeout))

	// Health check (unauthenticated)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"healthy","service":"invoice-parser"}`))
	})

	// Current processing configuration, for debugging.
	r.Get("/config", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"ocr_validation_enabled":   cfg.Processing.EnableOCRValidation,
			"ocr_confidence_threshold": cfg.Processing.OCRConfidenceThreshold,
			"table_extraction_flavor":  cfg.Processing.TableExtractionFlavor,
			"max_pages_to_process":     cfg.Processing.MaxPagesToProcess,
			"validate_checksums":       cfg.Processing.ValidateChecksums,
			"max_concurrent_pages":     cfg.Processing.MaxConcurrentPages,
		})
	})

	// Create service dependencies
	var cacheClient cache.Client
	if cfg.Cache.Driver == "redis" {
		redisClient, err := cache.NewRedisClient(cache.RedisConfig{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
			PoolSize: cfg.Cache.Redis.PoolSize,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("Redis unavailable, falling back to memory cache")
			cacheClient = cache.NewMemoryClient(cfg.Cache.MaxEntries)
		} else {
			cacheClient = redisClient
		}
	} else {
		cacheClient = cache.NewMemoryClient(cfg.Cache.MaxEntries)
	}
	results := cache.NewResultCache(cacheClient, cfg.Cache.TTL)

	// Initialize handlers
	parseHandler := handlers.NewParseHandler(logger, cfg, results)

	r.Post("/parse-invoice", parseHandler.ParseInvoice)
	r.Post("/parse-invoice/stats", parseHandler.ParseInvoiceStats)
	r.Post("/parse-invoice-coordinate-based", parseHandler.ParseCoordinate)

	return r
}
