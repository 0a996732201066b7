// Package server assembles the HTTP surface: routing, rate limiting and
// graceful shutdown around the handler set.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/aigoflow/proof-service/internal/handlers"
	"github.com/aigoflow/proof-service/internal/ratelimit"
)

// Handlers is the full handler set the server mounts. Every field is
// required; optional behavior lives inside the handlers themselves.
type Handlers struct {
	Prove   *handlers.ProveHandler
	Receipt *handlers.ReceiptHandler
	Verify  *handlers.VerifyHandler
	Badge   *handlers.BadgeHandler
	Models  *handlers.ModelsHandler
	Upload  *handlers.UploadHandler
	Convert *handlers.ConvertHandler
	OpenAPI *handlers.OpenAPIHandler
	Health  *handlers.HealthHandler
}

type Server struct {
	httpAddr string
	limiter  *ratelimit.Limiter
	h        Handlers
	srv      *http.Server
}

func NewServer(httpAddr string, limiter *ratelimit.Limiter, h Handlers) *Server {
	return &Server{httpAddr: httpAddr, limiter: limiter, h: h}
}

// Start serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	s.h.Receipt.RegisterRoutes(mux)
	s.h.Verify.RegisterRoutes(mux)
	s.h.Badge.RegisterRoutes(mux)
	s.h.Models.RegisterRoutes(mux)
	s.h.Convert.RegisterRoutes(mux)
	s.h.OpenAPI.RegisterRoutes(mux)
	s.h.Health.RegisterRoutes(mux)

	// The expensive write paths sit behind per-client rate limits; the
	// read side stays unlimited.
	limited := http.NewServeMux()
	s.h.Prove.RegisterRoutes(limited)
	s.h.Upload.RegisterRoutes(limited)
	mux.Handle("POST /prove", s.limit(ratelimit.ClassProve, limited))
	mux.Handle("POST /prove/batch", s.limit(ratelimit.ClassBatch, limited))
	mux.Handle("POST /models/upload", s.limit(ratelimit.ClassUpload, limited))

	s.srv = &http.Server{
		Addr:              s.httpAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server starting", "addr", s.httpAddr)
		if err := s.srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		slog.Info("HTTP server shutting down")
		return s.srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) limit(class ratelimit.Class, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := s.limiter.Allow(clientIP(r), class); err != nil {
			handlers.WriteError(w, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP identifies the caller for rate limiting: the first entry of
// X-Forwarded-For when a proxy set it, otherwise the connection address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
