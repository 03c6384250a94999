package domain

import "encoding/json"

// TaskStatus はバックエンドのジョブ状態を表す閉じた列挙型です。
// 自由な文字列比較によるタイポを防ぎ、switch での網羅的な分岐を可能にします。
type TaskStatus string

const (
	// TaskStatusPending はジョブがキューに積まれ、まだ開始されていない状態です。
	TaskStatusPending TaskStatus = "PENDING"
	// TaskStatusStarted はワーカーがジョブの処理を開始した状態です。
	TaskStatusStarted TaskStatus = "STARTED"
	// TaskStatusSuccess はジョブが正常に完了した状態です。
	TaskStatusSuccess TaskStatus = "SUCCESS"
	// TaskStatusFailure はジョブが失敗して終了した状態です。
	TaskStatusFailure TaskStatus = "FAILURE"
)

// IsValid はステータスが定義済みのいずれかであるか判定します。
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusPending, TaskStatusStarted, TaskStatusSuccess, TaskStatusFailure:
		return true
	default:
		return false
	}
}

// IsTerminal はこれ以上状態遷移しない最終状態かどうかを判定します。
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusSuccess || s == TaskStatusFailure
}

// DispatchResponse は生成ジョブ投入時にバックエンドが返すレスポンスです。
// task_id はポーリングの相関にのみ使用し、終了後は破棄します。
type DispatchResponse struct {
	TaskID string `json:"task_id"`
}

// StatusResponse は /prophesy/status/{task_id} のレスポンスです。
type StatusResponse struct {
	Status TaskStatus      `json:"status"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// WorkflowResult はバックエンドが返した生成結果です。
// クライアント側では不透明な構造化データとして扱い、存在チェック以上の検証は行いません。
type WorkflowResult struct {
	Fields map[string]any
}

// ParseWorkflowResult は result ペイロードをデコードします。
// オブジェクト以外（文字列や配列）のペイロードは "data" キーに包んで保持します。
func ParseWorkflowResult(raw json.RawMessage) WorkflowResult {
	if len(raw) == 0 {
		return WorkflowResult{Fields: map[string]any{}}
	}

	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return WorkflowResult{Fields: map[string]any{}}
		}
		return WorkflowResult{Fields: map[string]any{"data": v}}
	}
	return WorkflowResult{Fields: fields}
}

// EmbeddedError は SUCCESS ステータスであっても result 内に埋め込まれた
// エラーマーカーを返します。存在しない場合は空文字列です。
func (r WorkflowResult) EmbeddedError() string {
	if r.Fields == nil {
		return ""
	}
	if msg, ok := r.Fields["error"].(string); ok && msg != "" {
		return msg
	}
	return ""
}

// Get は結果フィールドを名前で参照します。表示側の存在チェック用です。
func (r WorkflowResult) Get(key string) (any, bool) {
	v, ok := r.Fields[key]
	return v, ok
}
