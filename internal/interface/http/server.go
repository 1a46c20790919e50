package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jinford/srt-generator/internal/platform/container"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	engine *gin.Engine
	addr   string
	logger *slog.Logger
}

// NewServer はコンテナの依存関係で API サーバを組み立てる。port が 0 以下なら設定値を使う。
func NewServer(c *container.ServiceContainer, port int) *Server {
	gin.SetMode(gin.ReleaseMode)

	cfg := c.Config()
	if port <= 0 {
		port = cfg.HTTP.Port
	}
	logger := c.Logger()

	return &Server{
		engine: newEngine(c, cfg.HTTP.SessionTTL, int64(cfg.HTTP.MaxUploadMB)<<20, cfg.HTTP.AllowOrigins),
		addr:   fmt.Sprintf(":%d", port),
		logger: logger,
	}
}

func newEngine(c *container.ServiceContainer, sessionTTL time.Duration, maxBody int64, origins []string) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(RequestLogger(c.Logger()))
	engine.Use(MaxBodySize(maxBody))
	engine.Use(CORS(origins))

	sessions := newSessionStore(sessionTTL, c.NewSession)
	api := NewAPI(c, sessions)
	registerRoutes(engine, api)
	return engine
}

// Handler はルーティング済みのハンドラを返す
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run は ctx が終了するまで待ち受け、終了時にグレースフルシャットダウンする
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
