package domain

const CategoryNotAvailable = "N/A"

// NotificationRequest は Slack 等の通知コンポーネントで共有されるデータ構造です。
// 完了・失敗したワークフローのメタデータを通知先に伝えるために使用します。
type NotificationRequest struct {
	// Stack は、実行されたワークフローの種別です。(例: "strategy", "commerce")
	Stack string `json:"stack"`

	// SessionID は、リクエストを発行した匿名セッションの識別子です。
	SessionID string `json:"session_id"`

	// Interest は、ブリーフの主題フィールドです。(例: "fitness")
	Interest string `json:"interest"`

	// TaskID は、バックエンドが発行したジョブ識別子です。(終了後の調査用)
	TaskID string `json:"task_id"`
}
