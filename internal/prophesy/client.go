package prophesy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"saga-web/internal/domain"
)

// ジョブ投入エンドポイント。各スタックのディスパッチ先です。
const (
	EndpointGrandStrategy  = "/prophesy/grand-strategy"
	EndpointCommerce       = "/prophesy/commerce"
	EndpointMarketingAsset = "/prophesy/marketing/asset"
	EndpointTribute        = "/prophesy/tribute"
	EndpointContentIdeas   = "/content-stack/ideas"

	endpointSessionCreate = "/session/create"
	endpointStatus        = "/prophesy/status/"
)

// APIError はバックエンドが返した非 2xx レスポンスを表します。
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("prophesy API error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("prophesy API error: status %d: %s", e.StatusCode, e.Message)
}

// Client は生成バックエンド (prophesy API) への REST クライアントです。
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient は新しいバックエンドクライアントを生成します。
// token が空の場合、Authorization ヘッダーは付与されません。
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// CreateSession は匿名セッション識別子をバックエンドから発行してもらいます。
func (c *Client) CreateSession(ctx context.Context) (string, error) {
	var resp struct {
		ID string `json:"_id"`
	}
	if err := c.post(ctx, endpointSessionCreate, nil, &resp); err != nil {
		return "", fmt.Errorf("セッションの発行に失敗しました: %w", err)
	}
	if resp.ID == "" {
		return "", fmt.Errorf("セッションレスポンスに _id が含まれていません")
	}
	return resp.ID, nil
}

// Dispatch は生成ジョブを指定エンドポイントへ投入し、発行された task_id を返します。
func (c *Client) Dispatch(ctx context.Context, endpoint string, payload any) (string, error) {
	var resp domain.DispatchResponse
	if err := c.post(ctx, endpoint, payload, &resp); err != nil {
		return "", err
	}
	if resp.TaskID == "" {
		return "", fmt.Errorf("ジョブレスポンスに task_id が含まれていません")
	}
	return resp.TaskID, nil
}

// TaskStatus はジョブの現在状態を問い合わせます。
func (c *Client) TaskStatus(ctx context.Context, taskID string) (domain.StatusResponse, error) {
	var resp domain.StatusResponse
	if taskID == "" {
		return resp, fmt.Errorf("task id is empty")
	}

	statusURL := c.baseURL + endpointStatus + url.PathEscape(taskID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, statusURL, nil)
	if err != nil {
		return resp, fmt.Errorf("failed to build status request: %w", err)
	}
	c.setHeaders(req)

	if err := c.do(req, &resp); err != nil {
		return domain.StatusResponse{}, err
	}
	if !resp.Status.IsValid() {
		return domain.StatusResponse{}, fmt.Errorf("unknown task status: %q", resp.Status)
	}
	return resp, nil
}

// --- 内部ヘルパー ---

func (c *Client) post(ctx context.Context, endpoint string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	c.setHeaders(req)

	return c.do(req, out)
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("prophesy request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    extractErrorMessage(respBody),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

// extractErrorMessage はエラーレスポンスから人間向けのメッセージを取り出します。
// JSON でない場合は本文の先頭を切り詰めてそのまま返します。
func extractErrorMessage(body []byte) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
		Detail  string `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		switch {
		case payload.Error != "":
			return payload.Error
		case payload.Message != "":
			return payload.Message
		case payload.Detail != "":
			return payload.Detail
		}
	}

	const maxLen = 200
	text := strings.TrimSpace(string(body))
	if len(text) > maxLen {
		text = text[:maxLen]
	}
	return text
}
