// Package httpapi serves the crm JSON API over HTTP.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/acksell/crm"
	"github.com/acksell/crm/customers"
	"github.com/acksell/crm/metrics"
	"github.com/acksell/crm/notes"
	"github.com/acksell/crm/objectstore"
)

// CustomerService is implemented by *customers.Service.
type CustomerService interface {
	Create(ctx context.Context, in customers.CreateInput) (crm.Customer, error)
	Get(ctx context.Context, id string) (crm.Customer, error)
	ListAll(ctx context.Context) ([]crm.Customer, error)
	Delete(ctx context.Context, id string) (int, error)
}

// NoteService is implemented by *notes.Service.
type NoteService interface {
	Create(ctx context.Context, customerID string, in notes.CreateInput) (notes.Result, error)
	List(ctx context.Context, customerID string) ([]crm.Note, error)
	Get(ctx context.Context, customerID, noteID string) (crm.Note, error)
	Update(ctx context.Context, customerID, noteID string, in notes.UpdateInput) (notes.Result, error)
	Delete(ctx context.Context, customerID, noteID string) error
	AttachmentDownloadURL(ctx context.Context, customerID, noteID string) (objectstore.URL, error)
}

var (
	_ CustomerService = &customers.Service{}
	_ NoteService     = &notes.Service{}
)

type ServerConfig struct {
	Addr            string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

type Server struct {
	config     ServerConfig
	router     *gin.Engine
	httpServer *http.Server
	logger     *slog.Logger
}

func NewServer(config ServerConfig, cs CustomerService, ns NoteService, rec *metrics.Recorder, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 5 * time.Second
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = 5 * time.Second
	}

	router := gin.New()
	router.Use(
		recoveryMiddleware(logger),
		corsMiddleware(),
		requestIDMiddleware(),
		loggingMiddleware(logger),
		timeoutMiddleware(config.RequestTimeout),
	)
	router.HandleMethodNotAllowed = true

	h := &handlers{customers: cs, notes: ns, logger: logger}
	h.register(router)
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if rec != nil {
		router.GET("/metrics", gin.WrapH(rec.Handler()))
	}

	return &Server{
		config: config,
		router: router,
		logger: logger,
	}
}

// Handler exposes the router, e.g. for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then drains in-flight requests for at
// most the shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", slog.String("addr", s.config.Addr))
		if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve %s: %w", s.config.Addr, err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}
