package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"saga-web/internal/grimoire"

	"github.com/go-chi/chi/v5"
)

// ListScrolls は公開記事の一覧を返します。
func (h *Handler) ListScrolls(w http.ResponseWriter, r *http.Request) {
	scrolls, err := h.container.Grimoire.ListScrolls(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "記事一覧の取得に失敗しました", "error", err)
		respondError(w, http.StatusBadGateway, "記事の取得に失敗しました")
		return
	}
	respondJSON(w, http.StatusOK, scrolls)
}

// GetScroll は slug 指定で記事を一件返します。
func (h *Handler) GetScroll(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	scroll, err := h.container.Grimoire.GetScroll(r.Context(), slug)
	if err != nil {
		if errors.Is(err, grimoire.ErrNotFound) {
			respondError(w, http.StatusNotFound, "記事が見つかりません")
			return
		}
		slog.ErrorContext(r.Context(), "記事の取得に失敗しました", "slug", slug, "error", err)
		respondError(w, http.StatusBadGateway, "記事の取得に失敗しました")
		return
	}
	respondJSON(w, http.StatusOK, scroll)
}

// InscribeScroll は新しい記事を作成します。管理キーが必要です。
func (h *Handler) InscribeScroll(w http.ResponseWriter, r *http.Request) {
	draft, ok := h.decodeDraft(w, r)
	if !ok {
		return
	}

	scroll, err := h.container.Grimoire.Inscribe(r.Context(), h.adminKey(r), draft)
	if err != nil {
		h.respondAdminError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, scroll)
}

// UpdateScroll は id 指定で記事を更新します。管理キーが必要です。
func (h *Handler) UpdateScroll(w http.ResponseWriter, r *http.Request) {
	draft, ok := h.decodeDraft(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "slug")
	scroll, err := h.container.Grimoire.UpdateScroll(r.Context(), h.adminKey(r), id, draft)
	if err != nil {
		h.respondAdminError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, scroll)
}

// DeleteScroll は id 指定で記事を削除します。管理キーが必要です。
func (h *Handler) DeleteScroll(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "slug")
	if err := h.container.Grimoire.DeleteScroll(r.Context(), h.adminKey(r), id); err != nil {
		h.respondAdminError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- 内部ヘルパー ---

// adminKey はリクエストヘッダーの管理キーを優先し、無ければ設定値を使用します。
// キーはオペレーターが入力して端末側に保持されるもので、ローテーションはありません。
func (h *Handler) adminKey(r *http.Request) string {
	if key := r.Header.Get(grimoire.AdminKeyHeader); key != "" {
		return key
	}
	return h.cfg.GrimoireAdminKey
}

func (h *Handler) decodeDraft(w http.ResponseWriter, r *http.Request) (grimoire.Draft, bool) {
	var draft grimoire.Draft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		slog.WarnContext(r.Context(), "記事ボディの解析に失敗しました", "error", err)
		respondError(w, http.StatusBadRequest, "リクエストの解析に失敗しました")
		return draft, false
	}
	if draft.Title == "" || draft.Body == "" {
		respondError(w, http.StatusBadRequest, "title と body は必須項目です")
		return draft, false
	}
	return draft, true
}

func (h *Handler) respondAdminError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, grimoire.ErrAdminKeyRequired):
		respondError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, grimoire.ErrNotFound):
		respondError(w, http.StatusNotFound, "記事が見つかりません")
	default:
		slog.ErrorContext(r.Context(), "記事管理の操作に失敗しました", "error", err)
		respondError(w, http.StatusBadGateway, "記事管理の操作に失敗しました")
	}
}
