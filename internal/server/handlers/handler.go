package handlers

import (
	"saga-web/internal/app"
	"saga-web/internal/config"
)

// Handler はフロー・記事・プローブの各エンドポイントを提供します。
// 状態はすべて Container 側のコンポーネントが保持し、ハンドラー自身は無状態です。
type Handler struct {
	cfg       *config.Config
	container *app.Container
}

// NewHandler は指定された依存関係に基づいて新しいハンドラーを初期化します。
func NewHandler(container *app.Container) *Handler {
	return &Handler{
		cfg:       container.Config,
		container: container,
	}
}
