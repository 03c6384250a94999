// Package grimoire は公開記事（scrolls）の読み取りと、管理キーで保護された
// 記事管理エンドポイントへのアクセスを提供します。
package grimoire

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// AdminKeyHeader は管理エンドポイントで要求される静的シークレットのヘッダー名です。
// ローテーションや有効期限の仕組みはありません。
const AdminKeyHeader = "X-Admin-Key"

// ErrAdminKeyRequired は管理キーなしで管理操作が呼ばれたことを示します。
var ErrAdminKeyRequired = errors.New("管理キーが指定されていません")

// ErrNotFound は指定された記事が存在しないことを示します。
var ErrNotFound = errors.New("記事が見つかりません")

// Scroll は公開記事です。
type Scroll struct {
	ID          string    `json:"id"`
	Slug        string    `json:"slug"`
	Title       string    `json:"title"`
	Summary     string    `json:"summary,omitempty"`
	Body        string    `json:"body,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	PublishedAt time.Time `json:"published_at,omitzero"`
}

// Draft は記事の作成・更新ペイロードです。
type Draft struct {
	Slug    string   `json:"slug"`
	Title   string   `json:"title"`
	Summary string   `json:"summary,omitempty"`
	Body    string   `json:"body"`
	Tags    []string `json:"tags,omitempty"`
}

// Client は grimoire API への REST クライアントです。
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient は新しいクライアントを生成します。
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// ListScrolls は公開中の記事一覧を取得します。
func (c *Client) ListScrolls(ctx context.Context) ([]Scroll, error) {
	var scrolls []Scroll
	if err := c.request(ctx, http.MethodGet, "/grimoire/scrolls", "", nil, &scrolls); err != nil {
		return nil, err
	}
	return scrolls, nil
}

// GetScroll は slug 指定で記事を一件取得します。
func (c *Client) GetScroll(ctx context.Context, slug string) (Scroll, error) {
	var scroll Scroll
	path := "/grimoire/scrolls/" + url.PathEscape(slug)
	if err := c.request(ctx, http.MethodGet, path, "", nil, &scroll); err != nil {
		return Scroll{}, err
	}
	return scroll, nil
}

// Inscribe は新しい記事を作成します。管理キーが必須です。
func (c *Client) Inscribe(ctx context.Context, adminKey string, draft Draft) (Scroll, error) {
	var scroll Scroll
	if adminKey == "" {
		return scroll, ErrAdminKeyRequired
	}
	if err := c.request(ctx, http.MethodPost, "/grimoire/inscribe", adminKey, draft, &scroll); err != nil {
		return Scroll{}, err
	}
	return scroll, nil
}

// UpdateScroll は id 指定で記事を更新します。管理キーが必須です。
func (c *Client) UpdateScroll(ctx context.Context, adminKey, id string, draft Draft) (Scroll, error) {
	var scroll Scroll
	if adminKey == "" {
		return scroll, ErrAdminKeyRequired
	}
	path := "/grimoire/scrolls/" + url.PathEscape(id)
	if err := c.request(ctx, http.MethodPut, path, adminKey, draft, &scroll); err != nil {
		return Scroll{}, err
	}
	return scroll, nil
}

// DeleteScroll は id 指定で記事を削除します。管理キーが必須です。
func (c *Client) DeleteScroll(ctx context.Context, adminKey, id string) error {
	if adminKey == "" {
		return ErrAdminKeyRequired
	}
	path := "/grimoire/scrolls/" + url.PathEscape(id)
	return c.request(ctx, http.MethodDelete, path, adminKey, nil, nil)
}

// --- 内部ヘルパー ---

func (c *Client) request(ctx context.Context, method, path, adminKey string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if adminKey != "" {
		req.Header.Set(AdminKeyHeader, adminKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("grimoire request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("grimoire API error: status %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
