// Package server exposes a read-only HTTP view of the submission ledger, for
// the finance team to check statuses without touching the ledger file or
// database. It never submits anything.
package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/OsamaASidd/Sage-Nigeria-E-Invoicing/internal/ledger"
)

// Config holds server configuration
type Config struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Debug        bool
}

// Server represents the status API server
type Server struct {
	config *Config
	router *gin.Engine
	store  ledger.Store
	log    zerolog.Logger
}

// NewServer creates the status API over a ledger store.
func NewServer(config *Config, store ledger.Store, log zerolog.Logger) *Server {
	if !config.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if config.Debug {
		router.Use(gin.Logger())
	}

	s := &Server{
		config: config,
		router: router,
		store:  store,
		log:    log,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/invoices", s.handleListInvoices)
		v1.GET("/invoices/:number", s.handleGetInvoice)
		v1.GET("/summary", s.handleSummary)
	}
}

// Run starts the HTTP server
func (s *Server) Run() error {
	srv := &http.Server{
		Addr:         s.config.Address,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
	s.log.Info().Str("address", s.config.Address).Msg("status API listening")
	return srv.ListenAndServe()
}

// Handler returns the http.Handler for use with custom servers
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleListInvoices(c *gin.Context) {
	status := ledger.Status(c.Query("status"))
	switch status {
	case "", ledger.StatusPending, ledger.StatusSubmitted, ledger.StatusFailed:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status filter"})
		return
	}

	entries, err := s.store.List(c.Request.Context(), status)
	if err != nil {
		s.log.Error().Err(err).Msg("ledger list failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ledger unavailable"})
		return
	}

	c.JSON(http.StatusOK, ListResponse{
		Count:    len(entries),
		Invoices: entries,
	})
}

func (s *Server) handleGetInvoice(c *gin.Context) {
	number := c.Param("number")

	entry, err := s.store.Lookup(c.Request.Context(), number)
	if err != nil {
		s.log.Error().Err(err).Str("invoice", number).Msg("ledger lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ledger unavailable"})
		return
	}
	if entry == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "invoice not found"})
		return
	}

	c.JSON(http.StatusOK, entry)
}

func (s *Server) handleSummary(c *gin.Context) {
	entries, err := s.store.List(c.Request.Context(), "")
	if err != nil {
		s.log.Error().Err(err).Msg("ledger list failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ledger unavailable"})
		return
	}

	summary := SummaryResponse{Total: len(entries)}
	for _, entry := range entries {
		switch entry.Status {
		case ledger.StatusPending:
			summary.Pending++
		case ledger.StatusSubmitted:
			summary.Submitted++
			summary.SubmittedAmount = summary.SubmittedAmount.Add(entry.Amount)
		case ledger.StatusFailed:
			summary.Failed++
			if entry.Ambiguous {
				summary.Ambiguous++
			}
		}
	}

	c.JSON(http.StatusOK, summary)
}
