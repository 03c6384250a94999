package handlers

import (
	"context"
	"errors"
	"net/http"

	"saga-web/internal/session"
)

type contextKey string

const sessionIDKey contextKey = "saga_session_id"

// SessionMiddleware はリクエストのセッション識別子を解決し、コンテキストへ載せます。
// バックエンドが識別子を発行できない場合でもリクエスト自体は通し、
// 送信系ハンドラーが明確なメッセージでブロックできるよう空の識別子を載せます。
func (h *Handler) SessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := h.container.SessionProvider.SessionID(w, r)
		if err != nil && !errors.Is(err, session.ErrNotReady) {
			respondError(w, http.StatusInternalServerError, "セッションの解決に失敗しました")
			return
		}

		ctx := context.WithValue(r.Context(), sessionIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// sessionIDFrom はコンテキストからセッション識別子を取り出します。未確定なら空文字列です。
func sessionIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(sessionIDKey).(string)
	return id
}
