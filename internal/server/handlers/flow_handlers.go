package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"saga-web/internal/workflow"

	"github.com/go-chi/chi/v5"
)

// flowInputRequest は入力ステップのリクエストボディです。
type flowInputRequest struct {
	Fields map[string]string `json:"fields"`
}

// machine はパスパラメータとセッションから対象の状態機械を解決します。
// 解決できない場合はレスポンスを書き込み済みで ok=false を返します。
func (h *Handler) machine(w http.ResponseWriter, r *http.Request) (*workflow.Machine, bool) {
	sessionID := sessionIDFrom(r.Context())
	if sessionID == "" {
		respondError(w, http.StatusServiceUnavailable, workflow.ErrSessionRequired.Error())
		return nil, false
	}

	stack := chi.URLParam(r, "stack")
	m := h.container.Flows.Set(sessionID).Machine(stack)
	if m == nil {
		respondError(w, http.StatusNotFound, "未知のワークフローです: "+stack)
		return nil, false
	}
	return m, true
}

// GetFlow は現在のフロー状態のスナップショットを返します。
func (h *Handler) GetFlow(w http.ResponseWriter, r *http.Request) {
	m, ok := h.machine(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, m.Snapshot())
}

// BeginFlow は idle → entry の遷移を行います。
func (h *Handler) BeginFlow(w http.ResponseWriter, r *http.Request) {
	m, ok := h.machine(w, r)
	if !ok {
		return
	}

	if err := m.Begin(r.Context()); err != nil {
		respondFlowError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, m.Snapshot())
}

// InputFlow は現在の入力ステップへフィールドを統合します。
func (h *Handler) InputFlow(w http.ResponseWriter, r *http.Request) {
	m, ok := h.machine(w, r)
	if !ok {
		return
	}

	var req flowInputRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.WarnContext(r.Context(), "入力ボディの解析に失敗しました", "error", err)
		respondError(w, http.StatusBadRequest, "リクエストの解析に失敗しました")
		return
	}
	if len(req.Fields) == 0 {
		respondError(w, http.StatusBadRequest, "fields は必須項目です")
		return
	}

	if err := m.ProvideInput(req.Fields); err != nil {
		respondFlowError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, m.Snapshot())
}

// SubmitFlow は生成ジョブを投入します。広告ブロック検知・セッション・
// 日次クォータのガードを通過した場合のみディスパッチが発生します。
func (h *Handler) SubmitFlow(w http.ResponseWriter, r *http.Request) {
	m, ok := h.machine(w, r)
	if !ok {
		return
	}
	if !h.guardGeneration(w, r) {
		return
	}

	if err := m.Submit(r.Context(), sessionIDFrom(r.Context())); err != nil {
		respondFlowError(w, err)
		return
	}

	h.consumeQuota(w, r)
	respondJSON(w, http.StatusAccepted, m.Snapshot())
}

// RegenerateFlow は revealed からの再生成を行います。それ以外の状態では
// 状態を変更せず現在のスナップショットを返します。
func (h *Handler) RegenerateFlow(w http.ResponseWriter, r *http.Request) {
	m, ok := h.machine(w, r)
	if !ok {
		return
	}

	// revealed 以外では no-op のため、ガードもクォータ消費も行いません。
	if m.Snapshot().Stage != workflow.StageRevealed {
		respondJSON(w, http.StatusOK, m.Snapshot())
		return
	}

	if !h.guardGeneration(w, r) {
		return
	}

	if err := m.Regenerate(r.Context(), sessionIDFrom(r.Context())); err != nil {
		respondFlowError(w, err)
		return
	}

	h.consumeQuota(w, r)
	respondJSON(w, http.StatusAccepted, m.Snapshot())
}

// ResetFlow は任意の状態から初期状態へ戻します。
func (h *Handler) ResetFlow(w http.ResponseWriter, r *http.Request) {
	m, ok := h.machine(w, r)
	if !ok {
		return
	}
	m.Reset()
	respondJSON(w, http.StatusOK, m.Snapshot())
}

// guardGeneration は有償の生成機能に共通するガードです。
// 広告ブロック検知時は全面的にブロックし、日次クォータ超過時は 429 を返します。
func (h *Handler) guardGeneration(w http.ResponseWriter, r *http.Request) bool {
	if result, ok := h.container.Probe.Current(); ok && result.Blocked {
		respondError(w, http.StatusForbidden,
			"広告ブロッカーが検知されたため、生成機能はご利用いただけません。無効化してから再読み込みしてください")
		return false
	}

	used := h.container.SessionStore.QuotaUsed(r, time.Now())
	if used >= h.cfg.DailyQuota {
		respondError(w, http.StatusTooManyRequests, "本日の生成回数の上限に達しました。また明日お試しください")
		return false
	}
	return true
}

// consumeQuota は日次カウンターを進めます。失敗してもフロー自体は継続します。
func (h *Handler) consumeQuota(w http.ResponseWriter, r *http.Request) {
	if _, err := h.container.SessionStore.IncrementQuota(w, r, time.Now()); err != nil {
		slog.WarnContext(r.Context(), "クォータカウンターの更新に失敗しました", "error", err)
	}
}
