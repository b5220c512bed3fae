package health

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/systmms/tierup/internal/logging"
)

// MetricsServerConfig holds configuration for the metrics HTTP server.
type MetricsServerConfig struct {
	// Addr is the listen address, e.g. ":9090". Empty disables the server.
	Addr string

	// Path is the path to serve metrics on.
	Path string

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout time.Duration

	// WriteTimeout is the maximum duration before timing out writes of the response.
	WriteTimeout time.Duration
}

// DefaultMetricsServerConfig returns the default metrics server configuration.
func DefaultMetricsServerConfig(addr string) MetricsServerConfig {
	return MetricsServerConfig{
		Addr:         addr,
		Path:         "/metrics",
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// MetricsServer provides an HTTP server for Prometheus metrics.
type MetricsServer struct {
	config   MetricsServerConfig
	logger   *logging.Logger
	server   *http.Server
	listener net.Listener
}

// NewMetricsServer creates a new metrics server.
func NewMetricsServer(config MetricsServerConfig, logger *logging.Logger) *MetricsServer {
	return &MetricsServer{
		config: config,
		logger: logger,
	}
}

// Start binds the listen address and serves in the background. Bind errors
// are returned; serve errors are logged.
func (s *MetricsServer) Start() error {
	if s.config.Addr == "" {
		return nil
	}

	InitMetrics()

	mux := http.NewServeMux()
	mux.Handle(s.config.Path, promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return err
	}
	s.listener = ln
	s.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Warn("metrics server error: %v", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the metrics server.
func (s *MetricsServer) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Addr returns the bound address, or "" when the server is not running.
func (s *MetricsServer) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}
