package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"k8s.io/klog/v2"

	"github.com/cinelist/watchlist/internal/binding"
	"github.com/cinelist/watchlist/internal/envelope"
	"github.com/cinelist/watchlist/pkg/config"
	"github.com/cinelist/watchlist/pkg/logs"
)

const readHeaderTimeout = 10 * time.Second

// Server serves the watchlist API. Every route under /api is wrapped by the envelope binding: sealed requests are
// opened before they reach a handler and JSON responses are sealed for the browser client.
type Server struct {
	cfg     config.Config
	codec   *envelope.Codec
	routes  []func(*mux.Router)
	reg     prometheus.Registerer
	gather  prometheus.Gatherer
	handler http.Handler
}

// Option configures a Server.
type Option func(*Server)

// WithRoutes registers application routes. fn receives the /api subrouter, so every route it adds is covered by the
// envelope binding.
func WithRoutes(fn func(api *mux.Router)) Option {
	return func(s *Server) {
		s.routes = append(s.routes, fn)
	}
}

// WithRegisterer sets where metrics are registered. If reg is also a prometheus.Gatherer it is used to serve
// /metrics. Defaults to the global prometheus registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(s *Server) {
		s.reg = reg
		if g, ok := reg.(prometheus.Gatherer); ok {
			s.gather = g
		}
	}
}

// New creates a Server. The codec holds the server's key material and is shared by every request.
func New(cfg config.Config, codec *envelope.Codec, opts ...Option) (*Server, error) {
	if codec == nil {
		return nil, fmt.Errorf("%w: server requires a codec", envelope.ErrConfig)
	}

	s := &Server{
		cfg:    cfg,
		codec:  codec,
		reg:    prometheus.DefaultRegisterer,
		gather: prometheus.DefaultGatherer,
	}
	for _, opt := range opts {
		opt(s)
	}

	if cfg.EnableMetrics {
		if err := binding.RegisterMetrics(s.reg); err != nil {
			return nil, fmt.Errorf("while registering metrics: %w", err)
		}
	}

	publicKeyPEM, err := envelope.PublicKeyPEM(&codec.Keys().PrivateKey.PublicKey)
	if err != nil {
		return nil, err
	}

	router := mux.NewRouter()
	router.HandleFunc("/healthz", healthzHandler).Methods(http.MethodGet)
	if cfg.EnableMetrics {
		router.Handle("/metrics", promhttp.HandlerFor(s.gather, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	var bindingOpts []binding.Option
	if cfg.MaxBodyBytes > 0 {
		bindingOpts = append(bindingOpts, binding.WithMaxBodyBytes(cfg.MaxBodyBytes))
	}
	if cfg.ReplayWindow > 0 {
		bindingOpts = append(bindingOpts, binding.WithReplayGuard(binding.NewReplayGuard(cfg.ReplayWindow)))
	}

	api := router.PathPrefix("/api").Subrouter()
	api.Use(binding.DecryptRequests(codec, bindingOpts...), binding.EncryptResponses(codec))
	api.HandleFunc("/envelope/public-key", publicKeyHandler(publicKeyPEM)).Methods(http.MethodGet)
	api.HandleFunc("/echo", echoHandler).Methods(http.MethodPost)
	for _, fn := range s.routes {
		fn(api)
	}

	s.handler = router
	if len(cfg.AllowedOrigins) > 0 {
		s.handler = cors.New(
			cors.Options{
				AllowedOrigins: cfg.AllowedOrigins,
				AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodHead},
				AllowedHeaders: []string{"Origin", "Accept", "Content-Type", "X-Requested-With", "Authorization", binding.HeaderName},
				ExposedHeaders: []string{binding.HeaderName},
			},
		).Handler(router)
	}

	return s, nil
}

// Handler returns the server's root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run listens on the configured address and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.ListenAddress, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully, waiting up to the configured shutdown
// timeout for in-flight requests.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	log := klog.FromContext(ctx).WithName("server")

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ErrorLog:          logs.NewStdLogger("http-server"),
		// requests carry the server's logger, but aren't cancelled when shutdown starts
		BaseContext: func(net.Listener) context.Context {
			return context.WithoutCancel(ctx)
		},
	}

	tlsEnabled := s.cfg.TLS.CertFile != "" && s.cfg.TLS.KeyFile != ""

	serveErr := make(chan error, 1)
	go func() {
		log.Info("Starting server", "address", ln.Addr().String(), "tls", tlsEnabled)
		if tlsEnabled {
			serveErr <- srv.ServeTLS(ln, s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			serveErr <- srv.Serve(ln)
		}
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server stopped: %w", err)
	case <-ctx.Done():
	}

	log.Info("Shutting down server", "timeout", s.cfg.ShutdownTimeout)

	shutdownCtx := context.WithoutCancel(ctx)
	if s.cfg.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		shutdownCtx, cancel = context.WithTimeout(shutdownCtx, s.cfg.ShutdownTimeout)
		defer cancel()
	}

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}

	if err := <-serveErr; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server stopped: %w", err)
	}

	log.Info("Server stopped")
	return nil
}

func healthzHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, `{"status":"ok"}`)
}

func publicKeyHandler(publicKeyPEM []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/x-pem-file")
		_, _ = w.Write(publicKeyPEM)
	}
}

type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(errorResponse{Success: false, Message: message})
}
