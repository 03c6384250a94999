package adapters

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"saga-web/internal/domain"

	"github.com/shouni/go-http-kit/httpkit"
	"github.com/shouni/go-notifier/pkg/factory"
	"github.com/shouni/go-notifier/pkg/slack"
)

// --- インターフェース定義 ---

type SlackNotifier interface {
	Notify(ctx context.Context, summary string, req domain.NotificationRequest) error
	NotifyError(ctx context.Context, errDetail error, req domain.NotificationRequest) error
}

// --- 具象アダプター ---

type SlackAdapter struct {
	httpClient  httpkit.HTTPClient
	webhookURL  string
	slackClient *slack.Client
}

func NewSlackAdapter(httpClient httpkit.HTTPClient, webhookURL string) (*SlackAdapter, error) {
	if webhookURL == "" {
		return &SlackAdapter{webhookURL: webhookURL}, nil
	}
	client, err := factory.GetSlackClient(httpClient)
	if err != nil {
		return nil, fmt.Errorf("Slackクライアントの初期化に失敗したのだ: %w", err)
	}

	return &SlackAdapter{
		httpClient:  httpClient,
		webhookURL:  webhookURL,
		slackClient: client,
	}, nil
}

// Notify ワークフロー完了時のSlack通知送信。
func (a *SlackAdapter) Notify(ctx context.Context, summary string, req domain.NotificationRequest) error {
	if a.slackClient == nil {
		slog.Info("Slackクライアントが初期化されていないため、通知をスキップします。", "stack", req.Stack)
		return nil
	}

	// スタックに応じた絵文字の出し分けをすると可愛いのだ！
	icon := "🔮"
	switch req.Stack {
	case "commerce":
		icon = "🛒"
	case "marketing":
		icon = "📣"
	case "tribute":
		icon = "👕"
	case "content":
		icon = "✍️"
	}

	title := fmt.Sprintf("%s 生成フローが完了しました！", icon)
	content := a.buildSlackContent(summary, req)

	if err := a.slackClient.SendTextWithHeader(ctx, title, content); err != nil {
		return fmt.Errorf("Slackへの投稿に失敗しました: %w", err)
	}

	slog.Info("Slack に完了通知を送信しました。", "stack", req.Stack)
	return nil
}

// NotifyError エラー詳細と実行メタデータを含むSlackエラー通知の送信。
func (a *SlackAdapter) NotifyError(ctx context.Context, errDetail error, req domain.NotificationRequest) error {
	if a.slackClient == nil {
		slog.Info("Slackクライアントが初期化されていないため、エラー通知をスキップします。", "error", errDetail)
		return nil
	}

	title := "❌ 生成フローでエラーが発生しました"

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("*スタック:* `%s`\n", req.Stack))
	sb.WriteString(fmt.Sprintf("*関心領域:* `%s`\n", orNA(req.Interest)))
	sb.WriteString(fmt.Sprintf("*セッション:* `%s`\n\n", orNA(req.SessionID)))

	// エラー詳細をコードブロックで囲むことで、可読性を向上させます。
	sb.WriteString("*エラー内容:*\n")
	sb.WriteString(fmt.Sprintf("```\n%v\n```\n", errDetail))

	if req.TaskID != "" {
		sb.WriteString(fmt.Sprintf("\n📍 *タスクID:* `%s`", req.TaskID))
	}

	if err := a.slackClient.SendTextWithHeader(ctx, title, sb.String()); err != nil {
		return fmt.Errorf("Slackへのエラー通知に失敗しました: %w", err)
	}

	slog.Info("Slack にエラー通知を送信しました。", "error", errDetail)
	return nil
}

// buildSlackContent 結果サマリと通知リクエストに基づき、Slack メッセージの内容を生成します。
func (a *SlackAdapter) buildSlackContent(summary string, req domain.NotificationRequest) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("**スタック:** `%s`\n", req.Stack))
	sb.WriteString(fmt.Sprintf("**関心領域:** `%s`\n", orNA(req.Interest)))
	sb.WriteString(fmt.Sprintf("**セッション:** `%s`\n\n", orNA(req.SessionID)))

	if summary != "" {
		sb.WriteString("📜 **結果サマリ:**\n")
		sb.WriteString(fmt.Sprintf("> %s\n", summary))
	}

	return sb.String()
}

func orNA(s string) string {
	if s == "" {
		return domain.CategoryNotAvailable
	}
	return s
}
