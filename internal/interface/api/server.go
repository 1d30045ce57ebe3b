package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// ServerConfig は API サーバーの構成
type ServerConfig struct {
	Logger      *slog.Logger
	Retrieval   RetrievalService  // 必須
	Preferences PreferenceService // 必須
	Sources     SourceLister      // 必須
}

// Server はナレッジベース検索の JSON API サーバー
type Server struct {
	mux    *http.ServeMux
	logger *slog.Logger
}

// NewServer はルート設定済みのサーバーを作成する
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Retrieval == nil {
		return nil, errors.New("retrieval service is required")
	}
	if cfg.Preferences == nil {
		return nil, errors.New("preference service is required")
	}
	if cfg.Sources == nil {
		return nil, errors.New("source lister is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	qh := &queryHandler{
		logger:      logger,
		retrieval:   cfg.Retrieval,
		preferences: cfg.Preferences,
	}
	ph := &preferenceHandler{
		logger:      logger,
		preferences: cfg.Preferences,
	}
	sh := &sourceHandler{
		logger:  logger,
		sources: cfg.Sources,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.HandleFunc("GET /api/sources", sh.list)
	mux.HandleFunc("POST /api/query", qh.query)
	mux.HandleFunc("GET /api/preferences/{userID}", ph.get)
	mux.HandleFunc("PUT /api/preferences/{userID}", ph.put)

	return &Server{mux: mux, logger: logger}, nil
}

// Handler はルーティング済みのハンドラを返す
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run は指定ポートでサーバーを起動し、ctx のキャンセルで
// グレースフルシャットダウンする。
func (s *Server) Run(ctx context.Context, port int) error {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("APIサーバーを起動", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("APIサーバーの起動に失敗: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("APIサーバーを停止します")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("APIサーバーの停止に失敗: %w", err)
	}
	return nil
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
