package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"saga-web/internal/session"
	"saga-web/internal/workflow"
)

// respondJSON は JSON レスポンスを書き込みます。エンコードは書き込み前に完了させ、
// 失敗時に安全な 500 を返せるようにします。
func respondJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("レスポンスのエンコードに失敗しました", "error", err)
		http.Error(w, "システムエラーが発生しました", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.Error("レスポンスの書き込みに失敗しました", "error", err)
	}
}

// respondError はエラーメッセージを JSON で返します。
func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

// respondFlowError はワークフローの遷移エラーを HTTP ステータスへ写像します。
// どのエラーもフローを対話可能な状態に残すため、致命的な扱いはしません。
func respondFlowError(w http.ResponseWriter, err error) {
	var validationErr *workflow.ValidationError

	switch {
	case errors.Is(err, workflow.ErrBusy):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, workflow.ErrSessionRequired), errors.Is(err, session.ErrNotReady):
		respondError(w, http.StatusServiceUnavailable, workflow.ErrSessionRequired.Error())
	case errors.As(err, &validationErr):
		respondError(w, http.StatusBadRequest, validationErr.Error())
	case errors.Is(err, workflow.ErrInvalidTransition):
		respondError(w, http.StatusConflict, err.Error())
	default:
		respondError(w, http.StatusBadGateway, err.Error())
	}
}
