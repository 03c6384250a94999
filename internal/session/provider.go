// Package session は匿名セッション識別子の取得と永続化を担います。
//
// 識別子はブラウザごとに一度だけバックエンドから発行され、Cookie に永続化されて
// 以後のすべての生成リクエストに付与されます。リロードをまたいで生存するのは
// この識別子と生成回数カウンターだけです。
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
)

// ErrNotReady はセッション識別子が未確定であることを示します。
// 依存する送信処理は空の識別子を送る代わりに、このエラーで明確にブロックします。
var ErrNotReady = errors.New("セッションの準備ができていません")

// Creator はバックエンドでの識別子発行を抽象化します。本番では prophesy.Client が実装します。
type Creator interface {
	CreateSession(ctx context.Context) (string, error)
}

// Store は識別子の永続化層を抽象化します。本番では Cookie ベースの CookieStore が実装します。
type Store interface {
	Load(r *http.Request) (string, bool)
	Save(w http.ResponseWriter, r *http.Request, id string) error
}

// Provider はブラウザ単位で安定したセッション識別子を返します。
type Provider struct {
	creator Creator
	store   Store
}

// NewProvider は新しいプロバイダーを生成します。
func NewProvider(creator Creator, store Store) *Provider {
	return &Provider{
		creator: creator,
		store:   store,
	}
}

// SessionID は永続化済みの識別子を返します。未発行の場合はバックエンドへ
// 発行を依頼し、永続化してから返します。発行に失敗した場合は空文字列と
// ErrNotReady を返し、呼び出し側が送信を明確にブロックできるようにします。
func (p *Provider) SessionID(w http.ResponseWriter, r *http.Request) (string, error) {
	if id, ok := p.store.Load(r); ok {
		return id, nil
	}

	id, err := p.creator.CreateSession(r.Context())
	if err != nil {
		slog.WarnContext(r.Context(), "セッション発行に失敗しました", "error", err)
		return "", fmt.Errorf("%w: %v", ErrNotReady, err)
	}

	if err := p.store.Save(w, r, id); err != nil {
		// 永続化に失敗しても識別子自体は有効なので、このリクエストでは使用を続けます。
		slog.WarnContext(r.Context(), "セッションの永続化に失敗しました", "error", err)
	}

	slog.InfoContext(r.Context(), "新しいセッションを発行しました", "session_id", id)
	return id, nil
}
