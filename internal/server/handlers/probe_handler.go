package handlers

import "net/http"

// GetProbe は広告ブロック検知の判定結果を返します。
// 起動時のプローブが未完了の場合はその場で実行します（Run は一度きりです）。
func (h *Handler) GetProbe(w http.ResponseWriter, r *http.Request) {
	result, ok := h.container.Probe.Current()
	if !ok {
		result = h.container.Probe.Run(r.Context())
	}
	respondJSON(w, http.StatusOK, result)
}
