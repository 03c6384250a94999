package builder

import (
	"saga-web/internal/app"
	"saga-web/internal/server/handlers"
)

// BuildHandlers は HTTP ハンドラーの依存関係を組み立てます。
func BuildHandlers(container *app.Container) *handlers.Handler {
	return handlers.NewHandler(container)
}
