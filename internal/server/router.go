package server

import (
	"net/http"
	"time"

	"saga-web/internal/config"
	"saga-web/internal/server/handlers"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
)

// NewRouter は、ミドルウェアとルーティングを統合した http.Handler を構築します。
func NewRouter(cfg *config.Config, h *handlers.Handler) http.Handler {
	r := chi.NewRouter()

	setupCommonMiddleware(r, cfg)
	setupRoutes(r, h)

	return r
}

func setupCommonMiddleware(r *chi.Mux, cfg *config.Config) {
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.CleanPath)
	r.Use(httprate.LimitByIP(cfg.RateLimit, time.Minute))
}

func setupRoutes(r chi.Router, h *handlers.Handler) {
	// --- ワークフロー（セッション解決が必要なルート） ---
	r.Group(func(r chi.Router) {
		r.Use(h.SessionMiddleware)

		r.Route("/flows/{stack}", func(r chi.Router) {
			r.Get("/", h.GetFlow)
			r.Post("/begin", h.BeginFlow)
			r.Post("/input", h.InputFlow)
			r.Post("/submit", h.SubmitFlow)
			r.Post("/regenerate", h.RegenerateFlow)
			r.Post("/reset", h.ResetFlow)
		})
	})

	// --- 公開記事 ---
	r.Route("/grimoire", func(r chi.Router) {
		r.Get("/scrolls", h.ListScrolls)
		r.Get("/scrolls/{slug}", h.GetScroll)

		// 管理キーで保護された記事管理ルート
		// 更新・削除は id を受け取りますが、chi の制約で同一セグメントの
		// パラメータ名は読み取りルートと揃えています。
		r.Post("/inscribe", h.InscribeScroll)
		r.Put("/scrolls/{slug}", h.UpdateScroll)
		r.Delete("/scrolls/{slug}", h.DeleteScroll)
	})

	// --- 能力プローブ ---
	r.Get("/probe", h.GetProbe)
}
