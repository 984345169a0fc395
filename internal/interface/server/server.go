// Package server はスクレイピングジョブと保存済み結果を公開するHTTP APIです。
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	readTimeout = 15 * time.Second
	// 直近いいね取得は同期実行のため書き込みタイムアウトを長めに取る
	writeTimeout = 10 * time.Minute
	idleTimeout  = 60 * time.Second
)

// Config はHTTPサーバの設定
type Config struct {
	Host        string
	Port        int
	APIKeys     []string
	AuthHeader  string
	PublicPaths []string
	RecentLikes RecentLikesDefaults
}

// Server はHTTPサーバとルーティングを管理します
type Server struct {
	cfg      Config
	deps     Dependencies
	validate *validator.Validate
	now      func() time.Time
	log      *slog.Logger

	router *http.ServeMux
	server *http.Server
}

// New は新しいServerを作成します
func New(cfg Config, deps Dependencies, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	if cfg.AuthHeader == "" {
		cfg.AuthHeader = "X-API-Key"
	}

	s := &Server{
		cfg:      cfg,
		deps:     deps,
		validate: validator.New(),
		now:      time.Now,
		log:      log,
	}
	s.router = s.setupRoutes()
	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.Handler(),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}
	return s
}

// Handler はミドルウェアを適用したハンドラを返します
func (s *Server) Handler() http.Handler {
	return s.withMiddleware(s.router)
}

// Start はHTTPサーバを起動し、停止されるまでブロックします
func (s *Server) Start() error {
	s.log.Info("HTTP server starting", "address", s.server.Addr, "authHeader", s.cfg.AuthHeader, "apiKeys", len(s.cfg.APIKeys))

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown はHTTPサーバをグレースフルに停止します
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down HTTP server")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.log.Info("HTTP server stopped")
	return nil
}
