// Package workflow は多段ウィザード型の生成フローを駆動する状態機械を提供します。
//
// 各スタック（戦略・コンテンツ・コマース・マーケティング・トリビュート）は
// 共通の Machine を入力ステップ定義とディスパッチ先だけ差し替えて共有します。
// Machine はセッションごとに明示的に生成される単飛行（single-flight）の機械であり、
// モジュールレベルの共有状態は持ちません。
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"saga-web/internal/domain"
	"saga-web/internal/poller"
)

var (
	// ErrBusy はジョブ飛行中の再送信を拒否したことを示します。
	ErrBusy = errors.New("生成ジョブが進行中のため、新しい送信は受け付けられません")
	// ErrSessionRequired はセッション識別子が未確定のまま送信されたことを示します。
	ErrSessionRequired = errors.New("セッションの準備ができていません。しばらく待ってから再度お試しください")
	// ErrInvalidTransition は現在のステージで許可されていない遷移を示します。
	ErrInvalidTransition = errors.New("現在の状態ではその操作は実行できません")
)

// ValidationError は送信前のクライアント側バリデーション失敗を表します。
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("必須項目が入力されていません: %s", strings.Join(e.Missing, ", "))
}

// Step はウィザードの一入力ステップと、そのステップで必須となるフィールドを定義します。
type Step struct {
	Name     string
	Required []string
}

// Dispatcher は完成したブリーフを生成ジョブとしてバックエンドへ投入し、
// task_id を返す責務を抽象化します。本番では prophesy.Client を包むクロージャが実装します。
type Dispatcher interface {
	Dispatch(ctx context.Context, sessionID string, brief domain.Brief) (taskID string, err error)
}

// DispatcherFunc は関数を Dispatcher として扱うためのアダプターです。
type DispatcherFunc func(ctx context.Context, sessionID string, brief domain.Brief) (string, error)

func (f DispatcherFunc) Dispatch(ctx context.Context, sessionID string, brief domain.Brief) (string, error) {
	return f(ctx, sessionID, brief)
}

// Events は終端遷移を外部（Slack 通知など）へ伝えるためのフックです。すべて任意です。
type Events struct {
	OnRevealed func(stack string, brief domain.Brief, result domain.WorkflowResult)
	OnFailed   func(stack string, brief domain.Brief, err error)
}

// Stack はワークフロー一種類分の定義（名前・入力ステップ・ディスパッチ先）です。
type Stack struct {
	Name       string
	Steps      []Step
	Dispatcher Dispatcher
}

// Snapshot は Machine の現在状態の読み取り専用コピーです。ハンドラーはこれだけを参照します。
type Snapshot struct {
	Stack         string                `json:"stack"`
	Stage         Stage                 `json:"stage"`
	StepIndex     int                   `json:"step_index"`
	StepName      string                `json:"step_name,omitempty"`
	InputComplete bool                  `json:"input_complete"`
	Brief         domain.Brief          `json:"brief"`
	Result        domain.WorkflowResult `json:"-"`
	ResultFields  map[string]any        `json:"result,omitempty"`
	Error         string                `json:"error,omitempty"`
}

// Machine は一つのワークフローを駆動する有限状態機械です。
// 遷移メソッド以外から状態が変更されることはありません。
type Machine struct {
	mu sync.Mutex

	stack      Stack
	poller     *poller.Poller
	entryDelay time.Duration
	events     Events

	stage      Stage
	stepIdx    int
	brief      domain.Brief
	lastBrief  domain.Brief // Regenerate 用に保持する直近の送信ペイロード
	result     domain.WorkflowResult
	errMsg     string
	taskID     string
	cancelPoll poller.CancelFunc
}

// Option は Machine の生成時オプションです。
type Option func(*Machine)

// WithEntryDelay は Begin 時の演出用ディレイを設定します（UX ペーシング、機能要件ではない）。
func WithEntryDelay(d time.Duration) Option {
	return func(m *Machine) { m.entryDelay = d }
}

// WithEvents は終端遷移フックを設定します。
func WithEvents(e Events) Option {
	return func(m *Machine) { m.events = e }
}

// NewMachine はアイドル状態の新しい状態機械を生成します。
func NewMachine(stack Stack, p *poller.Poller, opts ...Option) *Machine {
	m := &Machine{
		stack:  stack,
		poller: p,
		stage:  StageIdle,
		brief:  domain.Brief{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Begin は idle → entry の遷移です。演出用ディレイが設定されている場合、
// ctx のキャンセルを尊重しながら待機します。
func (m *Machine) Begin(ctx context.Context) error {
	m.mu.Lock()
	if m.stage != StageIdle {
		m.mu.Unlock()
		return fmt.Errorf("%w: begin は idle からのみ可能です (現在: %s)", ErrInvalidTransition, m.stage)
	}
	delay := m.entryDelay
	m.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stage != StageIdle {
		// 待機中に Reset 以外で動いた場合は何もしません。
		return nil
	}
	m.stage = StageEntry
	return nil
}

// ProvideInput は現在の入力ステップへフィールドを統合し、次のステップへ進めます。
// 現在ステップの必須フィールドが欠けている場合は ValidationError を返し、状態は進みません。
func (m *Machine) ProvideInput(fields map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stage != StageEntry && m.stage != StageCollecting {
		return fmt.Errorf("%w: 入力は entry / collecting でのみ可能です (現在: %s)", ErrInvalidTransition, m.stage)
	}
	if m.stepIdx >= len(m.stack.Steps) {
		return fmt.Errorf("%w: 入力ステップはすべて完了しています", ErrInvalidTransition)
	}

	m.brief.Merge(fields)

	step := m.stack.Steps[m.stepIdx]
	if missing := m.brief.MissingFields(step.Required); len(missing) > 0 {
		m.stage = StageCollecting
		return &ValidationError{Missing: missing}
	}

	m.stepIdx++
	m.stage = StageCollecting
	m.errMsg = ""
	return nil
}

// Submit は完成したブリーフを生成ジョブとして投入し、polling へ遷移します。
//
// ガード（順に評価）:
//  1. 飛行中 (submitting / polling) の再送信は ErrBusy で拒否し、HTTP は発行しません。
//  2. セッション未確定なら ErrSessionRequired。
//  3. 全ステップの必須フィールドが揃っていなければ ValidationError。
//
// ディスパッチ失敗時は直前の入力ステップへ戻り、エラーメッセージを保持します。
func (m *Machine) Submit(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	if m.stage.InFlight() {
		m.mu.Unlock()
		return ErrBusy
	}
	if m.stage != StageCollecting || m.stepIdx < len(m.stack.Steps) {
		m.mu.Unlock()
		return fmt.Errorf("%w: 入力が完了していません", ErrInvalidTransition)
	}
	if sessionID == "" {
		m.mu.Unlock()
		return ErrSessionRequired
	}
	if missing := m.brief.MissingFields(m.requiredFields()); len(missing) > 0 {
		m.mu.Unlock()
		return &ValidationError{Missing: missing}
	}

	payload := m.brief.Clone()
	m.stage = StageSubmitting
	m.errMsg = ""
	m.mu.Unlock()

	return m.dispatch(ctx, sessionID, payload)
}

// Regenerate は revealed からのみ有効で、直近の送信ペイロードでジョブを再投入します。
// それ以外の状態では状態を変更せず nil を返します（no-op）。
func (m *Machine) Regenerate(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	if m.stage != StageRevealed {
		m.mu.Unlock()
		return nil
	}
	if sessionID == "" {
		m.mu.Unlock()
		return ErrSessionRequired
	}

	payload := m.lastBrief.Clone()
	m.stage = StageSubmitting
	m.errMsg = ""
	m.mu.Unlock()

	return m.dispatch(ctx, sessionID, payload)
}

// Reset は任意の状態から idle へ戻り、ブリーフ・結果・エラーを消去します。
// 進行中のポーリングがあればキャンセルします。
func (m *Machine) Reset() {
	m.mu.Lock()
	cancel := m.cancelPoll
	m.cancelPoll = nil
	m.stage = StageIdle
	m.stepIdx = 0
	m.brief = domain.Brief{}
	m.lastBrief = nil
	m.result = domain.WorkflowResult{}
	m.errMsg = ""
	m.taskID = ""
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Snapshot は現在状態の読み取り専用コピーを返します。
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Snapshot{
		Stack:         m.stack.Name,
		Stage:         m.stage,
		StepIndex:     m.stepIdx,
		InputComplete: m.stepIdx >= len(m.stack.Steps),
		Brief:         m.brief.Clone(),
		Result:        m.result,
		ResultFields:  m.result.Fields,
		Error:         m.errMsg,
	}
	if m.stepIdx < len(m.stack.Steps) {
		snap.StepName = m.stack.Steps[m.stepIdx].Name
	}
	return snap
}

// --- 内部遷移 ---

// dispatch はジョブ投入とポーラー登録を行います。呼び出し時点で stage は submitting です。
func (m *Machine) dispatch(ctx context.Context, sessionID string, payload domain.Brief) error {
	taskID, err := m.stack.Dispatcher.Dispatch(ctx, sessionID, payload)

	m.mu.Lock()
	if m.stage != StageSubmitting {
		// 飛行中に Reset された場合は結果を破棄します。
		m.mu.Unlock()
		return nil
	}

	if err != nil {
		m.revertToInputLocked(fmt.Sprintf("ジョブの投入に失敗しました: %v", err))
		m.mu.Unlock()
		slog.Warn("ジョブ投入に失敗しました", "stack", m.stack.Name, "error", err)
		return fmt.Errorf("dispatch failed: %w", err)
	}

	m.taskID = taskID
	m.lastBrief = payload
	m.stage = StagePolling
	m.mu.Unlock()

	// ポーラーはバックグラウンドで動くため、リクエストスコープの ctx ではなく
	// 独立したコンテキストに紐付け、CancelFunc で寿命を管理します。
	cancel, err := m.poller.Watch(context.Background(), taskID, m.onPollComplete, m.onPollError)
	if err != nil {
		m.mu.Lock()
		m.revertToInputLocked(fmt.Sprintf("ポーリングの開始に失敗しました: %v", err))
		m.mu.Unlock()
		return err
	}

	m.mu.Lock()
	if m.stage == StagePolling {
		m.cancelPoll = cancel
	} else {
		// 登録前に終端へ到達していた場合、監視は既に不要です。
		cancel()
	}
	m.mu.Unlock()

	slog.Info("ジョブを投入しました", "stack", m.stack.Name, "task_id", taskID)
	return nil
}

// onPollComplete はポーラーの成功コールバックです。polling → revealed。
func (m *Machine) onPollComplete(result domain.WorkflowResult) {
	m.mu.Lock()
	if m.stage != StagePolling {
		m.mu.Unlock()
		return
	}
	m.stage = StageRevealed
	m.result = result
	m.taskID = ""
	m.cancelPoll = nil
	brief := m.lastBrief.Clone()
	hook := m.events.OnRevealed
	m.mu.Unlock()

	slog.Info("生成結果が確定しました", "stack", m.stack.Name)
	if hook != nil {
		hook(m.stack.Name, brief, result)
	}
}

// onPollError はポーラーの失敗コールバックです。polling → 直前の入力ステップ。
func (m *Machine) onPollError(err error) {
	m.mu.Lock()
	if m.stage != StagePolling {
		m.mu.Unlock()
		return
	}
	m.revertToInputLocked(err.Error())
	brief := m.lastBrief.Clone()
	hook := m.events.OnFailed
	m.mu.Unlock()

	slog.Warn("生成ジョブが失敗しました", "stack", m.stack.Name, "error", err)
	if hook != nil {
		hook(m.stack.Name, brief, err)
	}
}

// revertToInputLocked はエラー回復エッジです。直前の入力ステップへ戻します。
// 呼び出し側が m.mu を保持している必要があります。
func (m *Machine) revertToInputLocked(msg string) {
	m.stage = StageCollecting
	m.errMsg = msg
	m.taskID = ""
	m.cancelPoll = nil
	if m.stepIdx > len(m.stack.Steps) {
		m.stepIdx = len(m.stack.Steps)
	}
}

func (m *Machine) requiredFields() []string {
	var required []string
	for _, step := range m.stack.Steps {
		required = append(required, step.Required...)
	}
	return required
}
