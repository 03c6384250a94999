package builder

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"saga-web/internal/adapters"
	"saga-web/internal/app"
	"saga-web/internal/config"
	"saga-web/internal/domain"
	"saga-web/internal/grimoire"
	"saga-web/internal/poller"
	"saga-web/internal/probe"
	"saga-web/internal/prophesy"
	"saga-web/internal/session"
	"saga-web/internal/workflow"

	"github.com/google/uuid"
	"github.com/shouni/go-http-kit/httpkit"
)

// BuildContainer は外部サービスとの接続を確立し、依存関係を組み立てます。
func BuildContainer(ctx context.Context, cfg *config.Config) (*app.Container, error) {
	// 1. 基盤クライアントの初期化
	httpClient := httpkit.New(cfg.HTTPTimeout)

	prophesyClient := prophesy.NewClient(cfg.ProphesyBaseURL, cfg.ProphesyToken, cfg.HTTPTimeout)
	grimoireClient := grimoire.NewClient(cfg.ProphesyBaseURL, cfg.HTTPTimeout)

	// 2. セッション識別子の永続化層とプロバイダー
	isSecure := httpClient.IsSecureServiceURL(cfg.ServiceURL)
	store := session.NewCookieStore(cfg.SessionSecret, cfg.SessionEncryptKey, isSecure)
	provider := session.NewProvider(prophesyClient, store)

	// 3. アダプターの初期化
	slack, err := adapters.NewSlackAdapter(httpClient, cfg.SlackWebhookURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Slack adapter: %w", err)
	}

	// 4. ワークフロー状態機械のファクトリー
	registry, err := buildFlowRegistry(cfg, prophesyClient, slack)
	if err != nil {
		return nil, fmt.Errorf("failed to build flow registry: %w", err)
	}

	// 5. 能力プローブ
	detector := probe.NewDetector(
		&probe.HTTPFetcher{Client: &http.Client{Timeout: cfg.HTTPTimeout}},
		nil, // サーバー環境では描画シグナルは使用しません
		cfg.ProbeDecoyURL,
		cfg.ProbeDelay,
	)

	return &app.Container{
		Config:          cfg,
		Prophesy:        prophesyClient,
		Grimoire:        grimoireClient,
		SessionStore:    store,
		SessionProvider: provider,
		Flows:           registry,
		Probe:           detector,
		HTTPClient:      httpClient,
		SlackNotifier:   slack,
	}, nil
}

// buildFlowRegistry は全スタックのディスパッチ先を束ね、セッション単位の
// 状態機械レジストリを組み立てます。
func buildFlowRegistry(cfg *config.Config, client *prophesy.Client, slack adapters.SlackNotifier) (*workflow.Registry, error) {
	endpoints := map[string]string{
		workflow.StackStrategy:  prophesy.EndpointGrandStrategy,
		workflow.StackContent:   prophesy.EndpointContentIdeas,
		workflow.StackCommerce:  prophesy.EndpointCommerce,
		workflow.StackMarketing: prophesy.EndpointMarketingAsset,
		workflow.StackTribute:   prophesy.EndpointTribute,
	}

	dispatchers := make(map[string]workflow.Dispatcher, len(endpoints))
	for name, endpoint := range endpoints {
		dispatchers[name] = newDispatcher(client, endpoint)
	}
	if len(dispatchers) != len(workflow.StackNames()) {
		return nil, fmt.Errorf("dispatcher wiring is incomplete: got %d, want %d", len(dispatchers), len(workflow.StackNames()))
	}

	factory := &workflow.SetFactory{
		Poller:      poller.New(client, cfg.PollInterval),
		Dispatchers: dispatchers,
		Options: []workflow.Option{
			workflow.WithEntryDelay(cfg.EntryDelay),
			workflow.WithEvents(buildFlowEvents(slack)),
		},
	}
	return workflow.NewRegistry(factory), nil
}

// newDispatcher はブリーフをリクエストペイロードへ変換し、ジョブを投入するクロージャです。
// 全フィールドに加えてセッション識別子と相関用のリクエストIDを付与します。
func newDispatcher(client *prophesy.Client, endpoint string) workflow.Dispatcher {
	return workflow.DispatcherFunc(func(ctx context.Context, sessionID string, brief domain.Brief) (string, error) {
		payload := make(map[string]any, len(brief)+2)
		for k, v := range brief {
			payload[k] = v
		}
		payload["session_id"] = sessionID
		payload["request_id"] = uuid.NewString()

		return client.Dispatch(ctx, endpoint, payload)
	})
}

// buildFlowEvents は終端遷移を Slack 通知へ橋渡しします。
// 通知自体の失敗はフローの成否に影響させません。
func buildFlowEvents(slack adapters.SlackNotifier) workflow.Events {
	return workflow.Events{
		OnRevealed: func(stack string, brief domain.Brief, result domain.WorkflowResult) {
			ctx := context.Background()
			summary, _ := result.Get("summary")
			text, _ := summary.(string)
			req := domain.NotificationRequest{
				Stack:    stack,
				Interest: brief["interest"],
			}
			if err := slack.Notify(ctx, text, req); err != nil {
				slog.Error("完了通知の送信に失敗しました", "stack", stack, "error", err)
			}
		},
		OnFailed: func(stack string, brief domain.Brief, failure error) {
			req := domain.NotificationRequest{
				Stack:    stack,
				Interest: brief["interest"],
			}
			if err := slack.NotifyError(context.Background(), failure, req); err != nil {
				slog.Error("エラー通知の送信に失敗しました", "stack", stack, "error", err)
			}
		},
	}
}
