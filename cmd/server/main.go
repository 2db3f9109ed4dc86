package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/liamcoop/csvetl/catalog"
	"github.com/liamcoop/csvetl/convert"
	"github.com/liamcoop/csvetl/csvsource"
	"github.com/liamcoop/csvetl/internal/config"
	"github.com/liamcoop/csvetl/internal/logger"
	"github.com/liamcoop/csvetl/rules"
	"github.com/liamcoop/csvetl/serialize"
	_ "github.com/lib/pq"
)

type Server struct {
	db      *sql.DB // nil when rule sets are kept in memory
	catalog *catalog.Catalog
	cfg     *config.Config
	router  *chi.Mux
}

func NewServer(cfg *config.Config) (*Server, error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set, rule sets are kept in memory")
		return newServer(cfg, nil, catalog.NewInMemoryStore())
	}

	// Connect to database
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return NewServerWithDB(cfg, db)
}

// NewServerWithDB creates a server whose rule sets are stored in db
func NewServerWithDB(cfg *config.Config, db *sql.DB) (*Server, error) {
	return newServer(cfg, db, catalog.NewPostgresStore(db))
}

func newServer(cfg *config.Config, db *sql.DB, store catalog.Store) (*Server, error) {
	cat, err := catalog.New(store)
	if err != nil {
		return nil, err
	}

	if cfg.RulesetDir != "" {
		n, err := cat.LoadDir(cfg.RulesetDir)
		if err != nil {
			return nil, fmt.Errorf("failed to load rule sets: %w", err)
		}
		logger.Info("loaded rule sets from directory", "dir", cfg.RulesetDir, "count", n)
	}

	s := &Server{
		db:      db,
		catalog: cat,
		cfg:     cfg,
	}

	s.setupRoutes()

	return s, nil
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check
	r.Get("/api/v1/health", s.handleHealth)

	// Rule set management
	r.Route("/api/v1/rulesets", func(r chi.Router) {
		r.Get("/", s.handleListRuleSets)
		r.Post("/", s.handleCreateRuleSet)

		r.Route("/{name}", func(r chi.Router) {
			r.Get("/", s.handleGetRuleSet)
			r.Put("/", s.handleUpdateRuleSet)
			r.Delete("/", s.handleDeleteRuleSet)

			// Conversion
			r.Post("/convert", s.handleConvert)
		})
	})

	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Health check handler
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.PingContext(r.Context()); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
	}

	docs, err := s.catalog.ListActive()
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "failed to list rule sets", err)
		return
	}

	respondJSON(w, http.StatusOK, HealthResponse{
		Status:         "healthy",
		RuleSetsLoaded: len(docs),
		Diagnostics:    logger.TotalDiagnostics.Load(),
	})
}

// List rule sets handler
func (s *Server) handleListRuleSets(w http.ResponseWriter, r *http.Request) {
	docs, err := s.catalog.ListActive()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list rule sets", err)
		return
	}

	resp := RuleSetsListResponse{RuleSets: make([]RuleSetResponse, 0, len(docs))}
	for _, doc := range docs {
		resp.RuleSets = append(resp.RuleSets, newRuleSetResponse(doc))
	}

	respondJSON(w, http.StatusOK, resp)
}

// Create rule set handler. The body is a rule-set document in YAML or JSON.
func (s *Server) handleCreateRuleSet(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		respondError(w, http.StatusBadRequest, "name is required", nil)
		return
	}

	doc, ok := s.readDocument(w, r, name)
	if !ok {
		return
	}

	if err := s.catalog.Add(doc); err != nil {
		respondError(w, statusFor(err), "failed to add rule set", err)
		return
	}

	respondJSON(w, http.StatusCreated, newRuleSetResponse(doc))
}

// Get rule set handler. ?format=yaml returns the document itself.
func (s *Server) handleGetRuleSet(w http.ResponseWriter, r *http.Request) {
	doc, err := s.catalog.Get(chi.URLParam(r, "name"))
	if err != nil {
		respondError(w, statusFor(err), "rule set not found", err)
		return
	}

	if r.URL.Query().Get("format") == "yaml" {
		data, err := rules.MarshalDefinitions(doc.Rules)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "failed to encode rule set", err)
			return
		}
		w.Header().Set("Content-Type", "application/yaml")
		w.WriteHeader(http.StatusOK)
		w.Write(data) //nolint:errcheck
		return
	}

	respondJSON(w, http.StatusOK, newRuleSetResponse(doc))
}

// Update rule set handler
func (s *Server) handleUpdateRuleSet(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.readDocument(w, r, chi.URLParam(r, "name"))
	if !ok {
		return
	}

	if err := s.catalog.Update(doc); err != nil {
		respondError(w, statusFor(err), "failed to update rule set", err)
		return
	}

	respondJSON(w, http.StatusOK, newRuleSetResponse(doc))
}

// Delete rule set handler
func (s *Server) handleDeleteRuleSet(w http.ResponseWriter, r *http.Request) {
	if err := s.catalog.Delete(chi.URLParam(r, "name")); err != nil {
		respondError(w, statusFor(err), "failed to delete rule set", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Convert handler. The body is CSV with a header line.
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}
	if _, err := serialize.Get(format); err != nil {
		respondError(w, http.StatusBadRequest, "unsupported format", err)
		return
	}

	rs, err := s.catalog.RuleSet(name)
	if err != nil {
		respondError(w, statusFor(err), "rule set not available", err)
		return
	}

	body := http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	src, err := csvsource.NewReader(body)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid CSV body", err)
		return
	}

	startTime := time.Now()
	collector := &convert.Collector{}
	out, err := convert.New(rs).ConvertWith(src, convert.Options{Format: format}, collector)
	if err != nil {
		respondError(w, http.StatusBadRequest, "conversion failed", err)
		return
	}

	resp := ConvertResponse{
		RunID:          out.Stats.RunID.String(),
		RuleSet:        name,
		Format:         out.Format,
		Rows:           out.Stats.Rows,
		Failures:       out.Stats.Failures,
		ConversionTime: time.Since(startTime).String(),
		Diagnostics:    make([]DiagnosticResponse, 0, out.Stats.Failures),
	}
	if format == "json" {
		resp.Result = json.RawMessage(out.Encoded)
	} else {
		resp.Result = string(out.Encoded)
	}
	for _, d := range collector.Diagnostics() {
		resp.Diagnostics = append(resp.Diagnostics, newDiagnosticResponse(d))
	}

	respondJSON(w, http.StatusOK, resp)
}

// readDocument decodes the rule-set document in the request body. ?active=false stores it inactive.
func (s *Server) readDocument(w http.ResponseWriter, r *http.Request, name string) (*catalog.Document, bool) {
	active := true
	if v := r.URL.Query().Get("active"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "active must be a boolean", err)
			return nil, false
		}
		active = b
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read request body", err)
		return nil, false
	}

	defs, err := rules.ParseDefinitions(data)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid rule set document", err)
		return nil, false
	}

	return &catalog.Document{
		Name:   name,
		Rules:  defs,
		Active: active,
	}, true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, catalog.ErrExists), errors.Is(err, catalog.ErrInactive):
		return http.StatusConflict
	case errors.Is(err, catalog.ErrInvalid), errors.Is(err, rules.ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Helper functions
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data) //nolint:errcheck
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	response := ErrorResponse{Error: message}
	if err != nil {
		response.Details = err.Error()
	}

	switch {
	case status >= 500:
		logger.ErrorHttp5xx()
		logger.Error(message, "status", status, "error", response.Details)
	case status >= 400:
		logger.WarnHttp4xx()
	}

	respondJSON(w, status, response)
}

// loadConfig layers the dotenv file under getenv, then builds the logger and
// the server settings from the combined lookup.
func loadConfig(dotenv string, getenv func(string) string) (*config.Config, error) {
	getenv, err := config.WithDotEnv(dotenv, getenv)
	if err != nil {
		return nil, err
	}
	logger.Configure(getenv, os.Stderr)
	return config.FromEnv(getenv)
}

func main() {
	cfg, err := loadConfig(".env", os.Getenv)
	if err != nil {
		logger.Fatal("invalid configuration", "error", err)
	}

	// Create server
	server, err := NewServer(cfg)
	if err != nil {
		logger.Fatal("failed to create server", "error", err)
	}
	if server.db != nil {
		defer server.db.Close()
	}

	httpServer := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      server,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown handling
	go func() {
		logger.Info("server starting", "addr", cfg.Addr())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed to start", "error", err)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("server stopped",
		"diagnostics", logger.TotalDiagnostics.Load(),
		"http_5xx", logger.Total5xxErrors.Load(),
		"http_4xx", logger.Total4xxErrors.Load(),
	)
	if err := logger.Shutdown(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "logger shutdown error: %v\n", err)
	}
}
