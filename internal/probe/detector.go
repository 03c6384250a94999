// Package probe は広告ブロッカーの検知を行うワンショットの能力プローブです。
//
// 二つの独立したシグナル（おとりスクリプトの取得失敗・おとり要素の高さ潰れ）の
// いずれかが立てば「ブロックあり」と判定します。あくまでヒューリスティックであり、
// 偽陽性・偽陰性は起こり得ます。初回判定後の再チェックは行いません。
package probe

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Signal は検知の根拠を表します。
type Signal string

const (
	// SignalNone はブロックが検知されなかったことを示します。
	SignalNone Signal = "none"
	// SignalDecoyFetch はおとりリソースの取得失敗による検知です。
	SignalDecoyFetch Signal = "decoy_fetch"
	// SignalBaitCollapse はおとり要素の描画高さ潰れによる検知です。
	SignalBaitCollapse Signal = "bait_collapse"
)

// Result はプローブの判定結果です。
type Result struct {
	Blocked bool   `json:"blocked"`
	Signal  Signal `json:"signal"`
}

// ResourceFetcher はおとりスクリプトリソースの取得を抽象化します。
// 取得の失敗（エラーまたは非 2xx）がシグナル (a) です。
type ResourceFetcher interface {
	FetchDecoy(ctx context.Context, url string) error
}

// BaitMeasurer はおとり要素の描画結果の計測を抽象化します。
// 短い固定ディレイの後に高さが 0 に潰れていればシグナル (b) です。
type BaitMeasurer interface {
	BaitHeight(ctx context.Context) (int, error)
}

// HTTPFetcher は http.Client による ResourceFetcher の実装です。
type HTTPFetcher struct {
	Client *http.Client
}

// FetchDecoy はおとり URL へ GET を発行し、取得できなければエラーを返します。
func (f *HTTPFetcher) FetchDecoy(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &decoyStatusError{status: resp.StatusCode}
	}
	return nil
}

type decoyStatusError struct {
	status int
}

func (e *decoyStatusError) Error() string {
	return http.StatusText(e.status)
}

// Detector はワンショットの広告ブロック検知器です。
type Detector struct {
	fetcher  ResourceFetcher
	measurer BaitMeasurer
	decoyURL string
	delay    time.Duration

	once   sync.Once
	mu     sync.Mutex
	result Result
}

// NewDetector は新しい検知器を生成します。measurer は nil を許容します
// （描画環境を持たないデプロイではシグナル (a) のみで判定します）。
func NewDetector(fetcher ResourceFetcher, measurer BaitMeasurer, decoyURL string, delay time.Duration) *Detector {
	return &Detector{
		fetcher:  fetcher,
		measurer: measurer,
		decoyURL: decoyURL,
		delay:    delay,
	}
}

// Run はプローブを一度だけ実行し、判定結果を返します。
// 二回目以降の呼び出しは初回の結果をそのまま返します。
func (d *Detector) Run(ctx context.Context) Result {
	d.once.Do(func() {
		result := d.probe(ctx)
		d.mu.Lock()
		d.result = result
		d.mu.Unlock()

		if result.Blocked {
			slog.Warn("広告ブロックを検知しました", "signal", result.Signal)
		} else {
			slog.Info("広告ブロックは検知されませんでした")
		}
	})

	d.mu.Lock()
	defer d.mu.Unlock()
	return d.result
}

// Current は実行済みであれば判定結果を返します。未実行なら ok=false です。
func (d *Detector) Current() (Result, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.result, d.result.Signal != ""
}

func (d *Detector) probe(ctx context.Context) Result {
	// シグナル (a): おとりスクリプトの取得
	if err := d.fetcher.FetchDecoy(ctx, d.decoyURL); err != nil {
		return Result{Blocked: true, Signal: SignalDecoyFetch}
	}

	// シグナル (b): おとり要素の高さ計測（固定ディレイ後）
	if d.measurer != nil {
		timer := time.NewTimer(d.delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return Result{Blocked: false, Signal: SignalNone}
		}

		height, err := d.measurer.BaitHeight(ctx)
		if err == nil && height == 0 {
			return Result{Blocked: true, Signal: SignalBaitCollapse}
		}
	}

	return Result{Blocked: false, Signal: SignalNone}
}
