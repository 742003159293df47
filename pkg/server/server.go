package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/solorad/blog-api/pkg"
	gw "github.com/solorad/blog-api/pkg/api/v1"
	"github.com/solorad/blog-api/pkg/blog"
	"github.com/solorad/blog-api/pkg/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// Server serves the REST API and the gRPC health service on one listener
type Server struct {
	store      pkg.PostStore
	grpcServer *grpc.Server
	health     *health.Server
	handler    http.Handler
	httpServer *http.Server
}

// New wires the blog service around store. The store stays owned by the caller.
func New(store pkg.PostStore) *Server {
	var opts []grpc.ServerOption
	s := grpc.NewServer(opts...)
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(s, hs)
	// Register reflection service on gRPC server.
	reflection.Register(s)

	mux := gw.NewServeMux()
	gw.RegisterBlogServiceHandler(mux, blog.NewBlogService(store))

	return &Server{
		store:      store,
		grpcServer: s,
		health:     hs,
		handler:    grpcHandlerFunc(s, RequestLogging(mux)),
	}
}

// Handler returns the combined gRPC and REST handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Ready pings the store and flips the health status accordingly
func (s *Server) Ready(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		s.health.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
		return err
	}
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	return nil
}

// ListenAndServe listens on addr and serves until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, lis, shutdownTimeout)
}

// Serve serves on lis until ctx is cancelled, then shuts down gracefully
func (s *Server) Serve(ctx context.Context, lis net.Listener, shutdownTimeout time.Duration) error {
	if err := s.Ready(ctx); err != nil {
		_ = lis.Close()
		return err
	}
	s.httpServer = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("REST and gRPC server started on %v", lis.Addr())
		errCh <- s.httpServer.Serve(lis)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		if shutdownErr := s.shutdownWithin(shutdownTimeout); shutdownErr != nil {
			log.Errorf("Error shutting down after serve failure: %v", shutdownErr)
		}
		return err
	case <-ctx.Done():
	}
	return s.shutdownWithin(shutdownTimeout)
}

func (s *Server) shutdownWithin(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.Shutdown(ctx)
}

// Shutdown stops accepting requests and marks the service NOT_SERVING
func (s *Server) Shutdown(ctx context.Context) error {
	log.Infof("Shutting down server")
	s.health.Shutdown()
	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}
	// gRPC runs through ServeHTTP, whose transports cannot be drained, so
	// GracefulStop is not an option here.
	s.grpcServer.Stop()
	return err
}

// grpcHandlerFunc routes gRPC calls to grpcServer and everything else to otherHandler
func grpcHandlerFunc(grpcServer *grpc.Server, otherHandler http.Handler) http.Handler {
	return h2c.NewHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ProtoMajor == 2 && strings.HasPrefix(r.Header.Get("Content-Type"), "application/grpc") {
			grpcServer.ServeHTTP(w, r)
		} else {
			otherHandler.ServeHTTP(w, r)
		}
	}), &http2.Server{})
}
