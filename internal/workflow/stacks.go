package workflow

import "saga-web/internal/poller"

// スタック名。ルーティングおよび通知で使用します。
const (
	StackStrategy  = "strategy"
	StackContent   = "content"
	StackCommerce  = "commerce"
	StackMarketing = "marketing"
	StackTribute   = "tribute"
)

// StackNames は対応している全スタック名を返します。
func StackNames() []string {
	return []string{StackStrategy, StackContent, StackCommerce, StackMarketing, StackTribute}
}

// StackDef はスタック一種類分のステップ定義です。ディスパッチ先とは独立しています。
var stackSteps = map[string][]Step{
	// 戦略生成: 関心領域 → トーン見本 → ターゲット（地域含む）
	StackStrategy: {
		{Name: "interest", Required: []string{"interest"}},
		{Name: "tone", Required: []string{"tone_sample"}},
		{Name: "audience", Required: []string{"target_audience", "geo_target"}},
	},
	// コンテンツ案出し: 主題 → 配信プラットフォーム → トーン
	StackContent: {
		{Name: "topic", Required: []string{"interest"}},
		{Name: "platform", Required: []string{"platform"}},
		{Name: "tone", Required: []string{"tone_sample"}},
	},
	// コマース監査: ストア URL → 商品カテゴリ → ターゲット
	StackCommerce: {
		{Name: "store", Required: []string{"store_url"}},
		{Name: "category", Required: []string{"product_category"}},
		{Name: "audience", Required: []string{"target_audience"}},
	},
	// マーケティング素材: 素材種別 → 商品説明 → 声のトーンとターゲット
	StackMarketing: {
		{Name: "asset", Required: []string{"asset_type"}},
		{Name: "product", Required: []string{"product_description"}},
		{Name: "voice", Required: []string{"tone_sample", "target_audience"}},
	},
	// トリビュート（プリントオンデマンド）: モチーフ → 商品種別 → スタイル
	StackTribute: {
		{Name: "motif", Required: []string{"motif"}},
		{Name: "product", Required: []string{"product_type"}},
		{Name: "style", Required: []string{"style"}},
	},
}

// NewStack は名前付きスタック定義を生成します。未知の名前は ok=false を返します。
func NewStack(name string, dispatcher Dispatcher) (Stack, bool) {
	steps, ok := stackSteps[name]
	if !ok {
		return Stack{}, false
	}
	return Stack{
		Name:       name,
		Steps:      steps,
		Dispatcher: dispatcher,
	}, true
}

// Set はセッション一つ分の全スタックの状態機械です。
type Set map[string]*Machine

// Machine は指定スタックの状態機械を返します。未知のスタックは nil です。
func (s Set) Machine(stack string) *Machine {
	return s[stack]
}

// ResetAll は保持するすべての機械をリセットし、進行中のポーリングを止めます。
func (s Set) ResetAll() {
	for _, m := range s {
		m.Reset()
	}
}

// SetFactory はセッションごとの Set を組み立てます。
// ディスパッチ先の解決は builder 側から注入されます。
type SetFactory struct {
	Poller      *poller.Poller
	Dispatchers map[string]Dispatcher
	Options     []Option
}

// New はすべてのスタックの状態機械を持つ新しい Set を生成します。
func (f *SetFactory) New() Set {
	set := make(Set, len(stackSteps))
	for _, name := range StackNames() {
		stack, _ := NewStack(name, f.Dispatchers[name])
		set[name] = NewMachine(stack, f.Poller, f.Options...)
	}
	return set
}
