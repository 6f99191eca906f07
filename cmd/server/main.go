package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/karpator/docfusion/internal/assets"
	"github.com/karpator/docfusion/internal/config"
	"github.com/karpator/docfusion/internal/gcpclient"
	"github.com/karpator/docfusion/internal/model"
	"github.com/karpator/docfusion/internal/retrieval"
	"github.com/karpator/docfusion/internal/searchstore"
)

const Version = "0.1.0"

// app holds the composition root's wired dependencies, injected into the
// handlers that need them rather than reached for as globals.
type app struct {
	cfg      *config.Config
	searcher retrieval.Searcher
	embedder *gcpclient.EmbeddingAdapter
	assets   *assets.Resolver
}

func newRouter(a *app) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"ok","version":"%s"}`, Version)
	})

	r.Handle("/metrics", promhttp.Handler())

	if a != nil {
		r.Post("/v1/retrieve", a.handleRetrieve)
		r.Get("/v1/assets", a.handleAssets)
	}

	return r
}

type retrieveRequest struct {
	Query        string   `json:"query"`
	Keywords     []string `json:"keywords"`
	Indices      []string `json:"indices"`
	VectorFields []string `json:"vector_fields"`
}

// handleRetrieve is a debug/manual-testing surface, not the MCP/JSON-RPC
// tool protocol this pipeline is ultimately called through; it exists
// because every service in this codebase is directly curl-able.
func (a *app) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	var req retrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if len(req.Indices) == 0 {
		http.Error(w, "indices must be non-empty", http.StatusBadRequest)
		return
	}

	ctx := r.Context()

	vectors := map[string][]float32{}
	if req.Query != "" && len(req.VectorFields) > 0 {
		embeddings, err := a.embedder.Embed(ctx, []string{req.Query})
		if err != nil {
			slog.Error("[SERVER] embedding failed, continuing with lexical-only search", "error", err.Error())
		} else if len(embeddings) > 0 {
			for _, field := range req.VectorFields {
				vectors[field] = embeddings[0]
			}
		}
	}

	search := model.DefaultSearchConfig()
	search.Indices = req.Indices
	search.MaxConcurrent = a.cfg.SearchMaxConcurrent
	search.ResultsPerIndex = a.cfg.SearchResultsPerIndex
	search.MinLexicalScore = a.cfg.SearchMinLexicalScore

	rrf := buildRRFConfig(a.cfg)
	pipeline := retrieval.NewPipeline(a.searcher, search, rrf, a.cfg.MaxContextTokens, a.cfg.InitialPadding, a.cfg.TopN)

	results := pipeline.Retrieve(ctx, req.Keywords, vectors)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(results); err != nil {
		slog.Error("[SERVER] failed encoding retrieve response", "error", err.Error())
	}
}

func (a *app) handleAssets(w http.ResponseWriter, r *http.Request) {
	uri := r.URL.Query().Get("uri")
	if uri == "" {
		http.Error(w, "uri query parameter is required", http.StatusBadRequest)
		return
	}

	url, err := a.assets.SignedDownloadURL(r.Context(), uri, a.cfg.GCSSignedURLExpiry)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to sign asset url: %v", err), http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"url": url})
}

func buildRRFConfig(cfg *config.Config) model.RRFConfig {
	rrf := model.DefaultRRFConfig()
	rrf.K = cfg.RRFK
	rrf.AgreementBoost = cfg.RRFAgreementBoost
	rrf.QueryOverlapWeight = cfg.RRFQueryOverlapWeight
	rrf.MinOverlapThreshold = cfg.RRFMinOverlapThreshold
	rrf.FuzzyThreshold = cfg.RRFFuzzyThreshold
	rrf.MinTokenCoverage = cfg.RRFMinTokenCoverage
	rrf.TemporalWeight = cfg.RRFTemporalWeight
	rrf.TemporalStrategy = model.TemporalStrategy(cfg.RRFTemporalStrategy)
	return rrf
}

func getPort() string {
	if port := os.Getenv("PORT"); port != "" {
		return port
	}
	return "8080"
}

func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	store, err := searchstore.New(searchstore.Config{
		Addresses: cfg.SearchStoreAddresses,
		APIKey:    cfg.SearchStoreAPIKey,
		ProxyURL:  cfg.SearchStoreProxyURL,
	})
	if err != nil {
		return nil, fmt.Errorf("buildApp: %w", err)
	}

	embedder, err := gcpclient.NewEmbeddingAdapter(ctx, cfg.GCPProject, cfg.EmbeddingLocation, cfg.EmbeddingModel)
	if err != nil {
		return nil, fmt.Errorf("buildApp: %w", err)
	}

	assetResolver, err := assets.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("buildApp: %w", err)
	}

	return &app{
		cfg:      cfg,
		searcher: store,
		embedder: embedder,
		assets:   assetResolver,
	}, nil
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx := context.Background()
	a, err := buildApp(ctx, cfg)
	if err != nil {
		return fmt.Errorf("wiring dependencies: %w", err)
	}
	defer a.assets.Close()

	router := newRouter(a)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("docfusion v%s starting on port %d", Version, cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Printf("received signal %s, shutting down gracefully", sig)
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	log.Println("server stopped")
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
