package app

import (
	"saga-web/internal/adapters"
	"saga-web/internal/config"
	"saga-web/internal/grimoire"
	"saga-web/internal/probe"
	"saga-web/internal/prophesy"
	"saga-web/internal/session"
	"saga-web/internal/workflow"

	"github.com/shouni/go-http-kit/httpkit"
)

// Container はアプリケーションの依存関係（DIコンテナ）を保持します。
// 各フィールドをインターフェースで定義することで、将来的なモック利用を容易にします。
type Container struct {
	Config *config.Config

	// Backend clients
	Prophesy *prophesy.Client
	Grimoire *grimoire.Client

	// Session identity
	SessionStore    *session.CookieStore
	SessionProvider *session.Provider

	// Workflow state machines (per-session)
	Flows *workflow.Registry

	// Capability probe
	Probe *probe.Detector

	// External Adapters
	HTTPClient    httpkit.HTTPClient
	SlackNotifier adapters.SlackNotifier
}

// Close は、Container が保持するすべての外部接続リソースを安全に解放します。
// 進行中のポーリングはここですべて停止されます。
func (c *Container) Close() {
	if c.Flows != nil {
		c.Flows.Close()
	}
}
