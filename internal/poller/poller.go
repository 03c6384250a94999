// Package poller は生成ジョブの状態を固定間隔で監視する汎用ポーラーを提供します。
//
// 終端状態（SUCCESS / FAILURE）に到達するか、監視がキャンセルされるまで
// ステータスエンドポイントへの問い合わせを繰り返します。コールバックは
// 高々一度しか呼ばれず、終端到達後の tick は発生しません。
package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"saga-web/internal/domain"
)

// ErrNetwork はポーリング中の通信・トランスポート障害を示すマーカーです。
// tick 単位のリトライは行わず、即座に onError へ伝播します。
var ErrNetwork = errors.New("ステータスの取得中に通信エラーが発生しました")

// defaultFailureMessage はバックエンドがエラー詳細を返さなかった場合の既定メッセージです。
const defaultFailureMessage = "生成ジョブが失敗しました。時間をおいて再度お試しください"

// StatusSource はジョブ状態の取得元を抽象化します。本番では prophesy.Client が実装します。
type StatusSource interface {
	TaskStatus(ctx context.Context, taskID string) (domain.StatusResponse, error)
}

// CancelFunc は進行中の監視を停止します。複数回呼んでも安全です。
// ページ遷移などでポーリングが孤児化しないよう、呼び出し側は必ず破棄時に実行してください。
type CancelFunc func()

// Poller は固定間隔のジョブ状態監視を行います。
type Poller struct {
	source   StatusSource
	interval time.Duration
}

// New は新しい Poller を生成します。interval が 0 以下の場合は 3 秒を使用します。
func New(source StatusSource, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	return &Poller{
		source:   source,
		interval: interval,
	}
}

// Watch は task id の監視を開始し、停止用の CancelFunc を返します。
//
// 挙動:
//   - SUCCESS: result をデコードして onComplete。ただし result 自体がエラーマーカーを
//     含む場合は onError に切り替えます。
//   - FAILURE: バックエンドのエラーメッセージ（無ければ既定文言）で onError。
//   - PENDING / STARTED: 次の tick まで待機。
//   - 通信エラー: その場で監視を打ち切り、ErrNetwork を包んで onError。
func (p *Poller) Watch(ctx context.Context, taskID string, onComplete func(domain.WorkflowResult), onError func(error)) (CancelFunc, error) {
	if taskID == "" {
		return nil, fmt.Errorf("task id is required")
	}

	watchCtx, cancel := context.WithCancel(ctx)

	var once sync.Once
	done := func(fn func()) {
		once.Do(func() {
			cancel()
			fn()
		})
	}

	go func() {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-watchCtx.Done():
				// キャンセルはコールバックなしで静かに終了します。
				return
			case <-ticker.C:
			}

			resp, err := p.source.TaskStatus(watchCtx, taskID)
			if err != nil {
				if watchCtx.Err() != nil {
					return
				}
				slog.Warn("ステータス問い合わせに失敗しました", "task_id", taskID, "error", err)
				done(func() { onError(fmt.Errorf("%w: %v", ErrNetwork, err)) })
				return
			}

			switch resp.Status {
			case domain.TaskStatusSuccess:
				result := domain.ParseWorkflowResult(resp.Result)
				if msg := result.EmbeddedError(); msg != "" {
					done(func() { onError(errors.New(msg)) })
					return
				}
				done(func() { onComplete(result) })
				return

			case domain.TaskStatusFailure:
				msg := resp.Error
				if msg == "" {
					if embedded := domain.ParseWorkflowResult(resp.Result).EmbeddedError(); embedded != "" {
						msg = embedded
					} else {
						msg = defaultFailureMessage
					}
				}
				done(func() { onError(errors.New(msg)) })
				return

			case domain.TaskStatusPending, domain.TaskStatusStarted:
				// 継続。次の tick を待ちます。
			}
		}
	}()

	return func() { cancel() }, nil
}
