package workflow

// Stage はワークフローの進行段階を表す閉じた列挙型です。
// 旧実装の自由な文字列ステータスを置き換え、不正な状態を表現不可能にします。
type Stage string

const (
	// StageIdle は開始前の初期状態です。
	StageIdle Stage = "idle"
	// StageEntry はウィザードの導入画面に相当する状態です。
	StageEntry Stage = "entry"
	// StageCollecting は入力ステップを順に収集している状態です。
	StageCollecting Stage = "collecting"
	// StageSubmitting はジョブ投入リクエストが飛行中の状態です。
	StageSubmitting Stage = "submitting"
	// StagePolling はジョブの完了をポーリングで待っている状態です。
	StagePolling Stage = "polling"
	// StageRevealed は生成結果が確定し表示可能になった状態です。
	StageRevealed Stage = "revealed"
)

// IsValid はステージが定義済みのいずれかであるか判定します。
func (s Stage) IsValid() bool {
	switch s {
	case StageIdle, StageEntry, StageCollecting, StageSubmitting, StagePolling, StageRevealed:
		return true
	default:
		return false
	}
}

// InFlight はジョブが処理中（submitting / polling）かどうかを判定します。
// この間の再送信は拒否されます。
func (s Stage) InFlight() bool {
	return s == StageSubmitting || s == StagePolling
}

// Interactive はユーザー操作を受け付ける状態かどうかを判定します。
// エラーは常にこのいずれかの状態へ回復するため、致命的な状態は存在しません。
func (s Stage) Interactive() bool {
	switch s {
	case StageIdle, StageEntry, StageCollecting, StageRevealed:
		return true
	default:
		return false
	}
}
