package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/eznarratives/protocol-kb/internal/core/knowledge"
	"github.com/eznarratives/protocol-kb/internal/core/preference"
	"github.com/eznarratives/protocol-kb/internal/core/retrieval"
)

// maskedQueryError は検索パスの内部エラーをクライアントへ返す際の定型文。
// プロバイダ由来のエラー詳細は漏らさない。
const maskedQueryError = "failed to retrieve protocol information"

// RetrievalService は類似検索のユースケース。
// テスト時のモック用に消費者側で定義する。
type RetrievalService interface {
	Query(ctx context.Context, question string, sources []string, topK int) ([]*retrieval.Snippet, error)
}

// PreferenceService はユーザー設定のユースケース
type PreferenceService interface {
	Get(ctx context.Context, userID string) (*preference.Preference, error)
	Set(ctx context.Context, userID string, selectedSources []string, useWebSearch bool) (*preference.Preference, error)
	ResolveMode(ctx context.Context, userID string) (*preference.Resolution, error)
}

// SourceLister はソース一覧の参照
type SourceLister interface {
	ListSources(ctx context.Context) ([]*knowledge.Source, error)
}

type queryHandler struct {
	logger      *slog.Logger
	retrieval   RetrievalService
	preferences PreferenceService
}

type queryRequest struct {
	Question string   `json:"question"`
	Sources  []string `json:"sources"`
	TopK     int      `json:"topK"`
	UserID   string   `json:"user_id"`
}

type snippetResponse struct {
	ID         string  `json:"id"`
	ContentID  string  `json:"content_id"`
	Title      string  `json:"title"`
	Content    string  `json:"content"`
	Source     string  `json:"source"`
	Similarity float64 `json:"similarity"`
}

type queryResponse struct {
	Question string            `json:"question"`
	Mode     string            `json:"mode"`
	Snippets []snippetResponse `json:"snippets"`
}

// query は質問に対する関連スニペットを返す。
// sources が明示されていればそれを使い、代わりに user_id が
// 指定されていればユーザー設定から検索モードを解決する。
func (h *queryHandler) query(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	sources := req.Sources
	mode := preference.ModeGrounded
	if len(sources) == 0 && req.UserID != "" {
		resolution, err := h.preferences.ResolveMode(r.Context(), req.UserID)
		if err != nil {
			h.logger.Error("検索モードの解決に失敗", "userID", req.UserID, "error", err)
			writeError(w, http.StatusInternalServerError, maskedQueryError)
			return
		}
		mode = resolution.Mode
		sources = resolution.Sources
	}

	if mode == preference.ModeGrounded && len(sources) == 0 {
		writeError(w, http.StatusBadRequest, "at least one source must be selected")
		return
	}

	resp := queryResponse{
		Question: req.Question,
		Mode:     mode.String(),
		Snippets: []snippetResponse{},
	}

	if mode == preference.ModeGrounded {
		snippets, err := h.retrieval.Query(r.Context(), req.Question, sources, req.TopK)
		if err != nil {
			h.logger.Error("類似検索に失敗", "error", err)
			writeError(w, http.StatusInternalServerError, maskedQueryError)
			return
		}
		for _, s := range snippets {
			resp.Snippets = append(resp.Snippets, snippetResponse{
				ID:         s.ID,
				ContentID:  s.ContentID,
				Title:      s.Title,
				Content:    s.Content,
				Source:     s.Source,
				Similarity: s.Similarity,
			})
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

type preferenceHandler struct {
	logger      *slog.Logger
	preferences PreferenceService
}

type preferenceRequest struct {
	SelectedSources []string `json:"selected_sources"`
	UseWebSearch    bool     `json:"use_web_search"`
}

type preferenceResponse struct {
	UserID          string   `json:"user_id"`
	SelectedSources []string `json:"selected_sources"`
	UseWebSearch    bool     `json:"use_web_search"`
}

func (h *preferenceHandler) get(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userID")

	pref, err := h.preferences.Get(r.Context(), userID)
	if err != nil {
		h.logger.Error("ユーザー設定の取得に失敗", "userID", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load preferences")
		return
	}

	writeJSON(w, http.StatusOK, preferenceResponse{
		UserID:          pref.UserID,
		SelectedSources: pref.SelectedSources,
		UseWebSearch:    pref.UseWebSearch,
	})
}

func (h *preferenceHandler) put(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userID")

	var req preferenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	pref, err := h.preferences.Set(r.Context(), userID, req.SelectedSources, req.UseWebSearch)
	if err != nil {
		h.logger.Error("ユーザー設定の保存に失敗", "userID", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save preferences")
		return
	}

	writeJSON(w, http.StatusOK, preferenceResponse{
		UserID:          pref.UserID,
		SelectedSources: pref.SelectedSources,
		UseWebSearch:    pref.UseWebSearch,
	})
}

type sourceHandler struct {
	logger  *slog.Logger
	sources SourceLister
}

type sourceResponse struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	IsEnabled   bool    `json:"is_enabled"`
}

func (h *sourceHandler) list(w http.ResponseWriter, r *http.Request) {
	sources, err := h.sources.ListSources(r.Context())
	if err != nil {
		h.logger.Error("ソース一覧の取得に失敗", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list sources")
		return
	}

	resp := make([]sourceResponse, 0, len(sources))
	for _, s := range sources {
		resp = append(resp, sourceResponse{
			ID:          s.ID,
			Name:        s.Name,
			Description: s.Description,
			IsEnabled:   s.IsEnabled,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
