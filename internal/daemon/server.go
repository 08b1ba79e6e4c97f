package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/matheus3301/storechat/internal/api"
	"github.com/matheus3301/storechat/internal/hub"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

// Server owns the two chatd listeners: the gRPC backend and the HTTP
// endpoint hosting the live channel.
type Server struct {
	grpcServer *grpc.Server
	grpcLis    net.Listener
	httpServer *http.Server
	httpLis    net.Listener
	logger     *zap.Logger
}

// NewServer binds both listeners. Ports of 0 pick a free port, which tests
// read back through GRPCAddr and HTTPAddr.
func NewServer(p Params, logger *zap.Logger, svc *api.BackendService, h *hub.Hub) (*Server, error) {
	grpcLis, err := net.Listen("tcp", p.ListenGRPC)
	if err != nil {
		return nil, fmt.Errorf("listen grpc %s: %w", p.ListenGRPC, err)
	}
	httpLis, err := net.Listen("tcp", p.ListenHTTP)
	if err != nil {
		_ = grpcLis.Close()
		return nil, fmt.Errorf("listen http %s: %w", p.ListenHTTP, err)
	}

	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(api.LoggingInterceptor(logger.Named("rpc"))))
	api.RegisterBackendServer(grpcServer, svc)

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(logger.Named("http")))
	h.Register(engine)

	return &Server{
		grpcServer: grpcServer,
		grpcLis:    grpcLis,
		httpServer: &http.Server{Handler: engine, ReadHeaderTimeout: 10 * time.Second},
		httpLis:    httpLis,
		logger:     logger,
	}, nil
}

// GRPCAddr returns the bound backend address.
func (s *Server) GRPCAddr() string { return s.grpcLis.Addr().String() }

// HTTPAddr returns the bound live channel address.
func (s *Server) HTTPAddr() string { return s.httpLis.Addr().String() }

// Start serves both listeners in the background.
func (s *Server) Start() {
	s.logger.Info("gRPC server starting", zap.String("addr", s.GRPCAddr()))
	go func() {
		if err := s.grpcServer.Serve(s.grpcLis); err != nil {
			s.logger.Error("gRPC server error", zap.Error(err))
		}
	}()

	s.logger.Info("live channel starting", zap.String("addr", s.HTTPAddr()))
	go func() {
		if err := s.httpServer.Serve(s.httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", zap.Error(err))
		}
	}()
}

// Stop shuts both servers down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("servers stopping")
	err := s.httpServer.Shutdown(ctx)

	stopped := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-ctx.Done():
		s.grpcServer.Stop()
		err = multierr.Append(err, ctx.Err())
	}
	return err
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)))
	}
}
