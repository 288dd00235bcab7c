package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/rezonia/isdoc-export/internal/export"
	"github.com/rezonia/isdoc-export/internal/isdoc"
	"github.com/rezonia/isdoc-export/internal/logger"
	"github.com/rezonia/isdoc-export/internal/metrics"
	"github.com/rezonia/isdoc-export/internal/model"
	"github.com/rezonia/isdoc-export/internal/validator"
)

// Config holds server configuration
type Config struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Debug        bool
}

// Option configures a Server
type Option func(*Server)

// WithExporter sets the export service
func WithExporter(e *export.Exporter) Option {
	return func(s *Server) {
		s.exporter = e
	}
}

// WithSchemaValidator enables ?schema=true on the validate endpoint
func WithSchemaValidator(v validator.Validator) Option {
	return func(s *Server) {
		s.schema = v
	}
}

// WithMetrics sets the collectors exposed on /metrics
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithLogger sets the request logger
func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger.WithComponent(l, "server")
	}
}

// Server represents the HTTP API server
type Server struct {
	config     *Config
	router     *gin.Engine
	httpServer *http.Server

	exporter   *export.Exporter
	structural *validator.Structural
	schema     validator.Validator
	metrics    *metrics.Metrics
	logger     zerolog.Logger
}

// NewServer creates a new API server
func NewServer(config *Config, opts ...Option) *Server {
	if !config.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		config:     config,
		structural: validator.NewStructural(),
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}
	if s.exporter == nil {
		s.exporter = export.New(export.WithMetrics(s.metrics), export.WithLogger(s.logger))
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestID())
	router.Use(requestLogger(s.logger, config.Debug))
	router.Use(requestMetrics(s.metrics))
	s.router = router

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         config.Address,
		Handler:      router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{})))

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/export", s.handleExport)
		v1.POST("/export/batch", s.handleExportBatch)
		v1.POST("/validate", s.handleValidate)
		v1.POST("/info", s.handleInfo)
	}
}

// Run starts the HTTP server and blocks until it stops
func (s *Server) Run() error {
	s.logger.Info().Str("address", s.config.Address).Msg("Starting API server")

	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops a running server, waiting for in-flight requests until ctx ends
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the http.Handler for use with custom servers
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": isdoc.Version,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleExport(c *gin.Context) {
	var req ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Details: err.Error()})
		return
	}

	res, err := s.exporter.Export(c.Request.Context(), req.Transaction, req.Profile)
	if err != nil {
		s.exportError(c, res, err)
		return
	}

	if c.Query("download") == "true" || c.GetHeader("Accept") == "application/xml" {
		c.Header("Content-Disposition", `attachment; filename="`+res.File.FileName+`"`)
		c.Data(http.StatusOK, "application/xml; charset=utf-8", res.File.Content)
		return
	}

	c.JSON(http.StatusOK, ExportResponse{
		FileName:      res.File.FileName,
		TransactionID: res.File.TransactionID,
		InvoiceID:     res.File.InvoiceID,
		Content:       string(res.File.Content),
		Validation:    res.Validation,
		Warnings:      res.Warnings,
	})
}

func (s *Server) exportError(c *gin.Context, res *export.Result, err error) {
	var precondition *model.PreconditionError
	var violation *model.StructuralViolation

	switch {
	case errors.As(err, &precondition):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.As(err, &violation):
		resp := ErrorResponse{Error: "generated document failed validation", Details: err.Error()}
		if res != nil {
			resp.Warnings = res.Warnings
		}
		c.JSON(http.StatusUnprocessableEntity, resp)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "request cancelled"})
	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "export failed", Details: err.Error()})
	}
}

func (s *Server) handleExportBatch(c *gin.Context) {
	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Details: err.Error()})
		return
	}

	res, err := s.exporter.ExportBatch(c.Request.Context(), req.Transactions, req.Profile)
	var precondition *model.PreconditionError
	switch {
	case errors.Is(err, model.ErrNoTransactions), errors.As(err, &precondition):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	case errors.Is(err, model.ErrNoExports):
		c.JSON(http.StatusUnprocessableEntity, newBatchResponse(res))
		return
	case err != nil:
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, newBatchResponse(res))
}

func (s *Server) handleValidate(c *gin.Context) {
	body, ok := rawBody(c)
	if !ok {
		return
	}

	var v validator.Validator = s.structural
	if c.Query("schema") == "true" {
		if s.schema == nil {
			c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "schema validation is not enabled"})
			return
		}
		v = validator.NewChain(s.structural, s.schema)
	}

	result, err := v.Validate(c.Request.Context(), body)
	if err != nil {
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: "validation unavailable", Details: err.Error()})
		return
	}

	c.JSON(http.StatusOK, ValidationResponse{
		Valid:     result.Valid,
		Errors:    result.Errors,
		Validator: result.Validator,
	})
}

func (s *Server) handleInfo(c *gin.Context) {
	body, ok := rawBody(c)
	if !ok {
		return
	}

	summary, err := isdoc.Inspect(body)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, InfoResponse{Summary: summary, Size: len(body)})
}

func rawBody(c *gin.Context) ([]byte, bool) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "failed to read request body"})
		return nil, false
	}
	if len(body) == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "empty request body"})
		return nil, false
	}
	return body, true
}
