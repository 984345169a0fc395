package browserless

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/jinford/profile-scraper/internal/module/automation/domain"
)

const (
	// DefaultTimeout はHTTPクライアントのデフォルトタイムアウト
	DefaultTimeout = 60 * time.Second

	// DefaultMaxAttempts はデフォルトの最大試行回数
	DefaultMaxAttempts = 3

	// DefaultBackoff は線形バックオフの基底時間
	DefaultBackoff = 2 * time.Second

	// minBackoff はバックオフ基底時間の下限
	minBackoff = 100 * time.Millisecond

	// bodyExcerptLimit はエラーに含めるレスポンスボディの最大長
	bodyExcerptLimit = 600

	// timeoutHeadroom はバックエンド側のタイムアウトに上乗せする待ち時間
	// バックエンドがタイムアウトを応答する前にこちらが切断しないようにする
	timeoutHeadroom = 15 * time.Second
)

const (
	endpointScreenshot = "/screenshot"
	endpointContent    = "/content"
	endpointExecute    = "/execute"
	endpointPDF        = "/pdf"
	endpointHealth     = "/health"
)

// 各エンドポイントでスキーマ交渉の対象となるフィールド
var (
	screenshotNegotiable = []string{"fullPage", "timeout", "cookies", "userAgent"}
	contentNegotiable    = []string{"timeout", "cookies", "userAgent"}
	executeNegotiable    = []string{"timeout"}
	pdfNegotiable        = []string{"timeout"}
)

// Config はBrowserlessクライアントの設定
type Config struct {
	Host              string
	Token             string
	Timeout           time.Duration
	MaxAttempts       int
	Backoff           time.Duration
	MaxConcurrency    int
	RequestsPerSecond float64
}

// Sleeper はバックオフ待機を行う関数です
type Sleeper func(ctx context.Context, d time.Duration) error

// Client はBrowserless APIを使用した domain.Client 実装
type Client struct {
	host        string
	token       string
	httpClient  *http.Client
	timeout     time.Duration
	maxAttempts int
	backoff     time.Duration
	limiter     *Limiter
	pacer       *rate.Limiter
	sleep       Sleeper
	log         *slog.Logger
}

// Option はClient構築時のオプション
type Option func(*Client)

// WithLimiter は同時実行リミッタを差し替える（プロセス内で共有する場合に使用）
func WithLimiter(l *Limiter) Option {
	return func(c *Client) {
		c.limiter = l
	}
}

// WithHTTPClient はHTTPクライアントを差し替える
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithSleeper はバックオフ待機の実装を差し替える
func WithSleeper(s Sleeper) Option {
	return func(c *Client) {
		c.sleep = s
	}
}

// NewClient は新しいClientを作成します
func NewClient(cfg Config, log *slog.Logger, opts ...Option) *Client {
	if log == nil {
		log = slog.Default()
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	backoff := cfg.Backoff
	if backoff < minBackoff {
		backoff = minBackoff
	}

	c := &Client{
		host:        strings.TrimRight(cfg.Host, "/"),
		token:       cfg.Token,
		httpClient:  &http.Client{},
		timeout:     timeout,
		maxAttempts: maxAttempts,
		backoff:     backoff,
		sleep:       sleepContext,
		log:         log,
	}
	if cfg.RequestsPerSecond > 0 {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		c.pacer = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	for _, opt := range opts {
		opt(c)
	}
	if c.limiter == nil {
		c.limiter = NewLimiter(cfg.MaxConcurrency)
	}

	return c
}

// Limiter は使用中の同時実行リミッタを返します
func (c *Client) Limiter() *Limiter {
	return c.limiter
}

// Screenshot はページのスクリーンショットをbase64文字列で返します
func (c *Client) Screenshot(ctx context.Context, url string, opts domain.CaptureOptions) (string, error) {
	payload := capturePayload(url, opts)
	if opts.FullPage != nil {
		payload["fullPage"] = *opts.FullPage
	}

	resp, err := c.postWithRetry(ctx, endpointScreenshot, payload, url, screenshotNegotiable)
	if err != nil {
		c.log.Error("Failed to capture screenshot", "url", url, "error", err)
		return "", err
	}

	// JSONエンベロープでbase64を返すデプロイと、画像バイト列を直接返すデプロイがある
	if resp.isJSON() {
		var envelope struct {
			Data string `json:"data"`
		}
		if err := json.Unmarshal(resp.body, &envelope); err != nil {
			return "", fmt.Errorf("failed to decode screenshot envelope: %w", err)
		}
		c.log.Debug("Screenshot captured", "url", url)
		return envelope.Data, nil
	}

	c.log.Debug("Screenshot captured", "url", url, "bytes", len(resp.body))
	return base64.StdEncoding.EncodeToString(resp.body), nil
}

// GetContent はレンダリング後のHTMLを返します
func (c *Client) GetContent(ctx context.Context, url string, opts domain.CaptureOptions) (string, error) {
	payload := capturePayload(url, opts)

	resp, err := c.postWithRetry(ctx, endpointContent, payload, url, contentNegotiable)
	if err != nil {
		c.log.Error("Failed to get content", "url", url, "error", err)
		return "", err
	}

	if resp.isJSON() {
		var envelope struct {
			Data string `json:"data"`
		}
		if err := json.Unmarshal(resp.body, &envelope); err == nil {
			return envelope.Data, nil
		}
	}

	c.log.Debug("Content fetched", "url", url, "bytes", len(resp.body))
	return string(resp.body), nil
}

// ExecuteScript はページ上でスクリプトを実行し、結果の生データを返します
// テキストで返された結果はJSON文字列として返します
func (c *Client) ExecuteScript(ctx context.Context, url string, script string, timeout time.Duration) (json.RawMessage, error) {
	payload := map[string]any{
		"url":  url,
		"code": script,
	}
	if timeout > 0 {
		payload["timeout"] = timeout.Milliseconds()
	}

	resp, err := c.postWithRetry(ctx, endpointExecute, payload, url, executeNegotiable)
	if err != nil {
		c.log.Error("Failed to execute script", "url", url, "error", err)
		return nil, err
	}

	if resp.isJSON() && json.Valid(resp.body) {
		var envelope struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(resp.body, &envelope); err == nil && len(envelope.Data) > 0 {
			return envelope.Data, nil
		}
		return json.RawMessage(resp.body), nil
	}

	text, err := json.Marshal(string(resp.body))
	if err != nil {
		return nil, fmt.Errorf("failed to encode script result: %w", err)
	}
	return text, nil
}

// ExportPDF はページをPDFとして出力します
func (c *Client) ExportPDF(ctx context.Context, url string, timeout time.Duration) ([]byte, error) {
	payload := map[string]any{"url": url}
	if timeout > 0 {
		payload["timeout"] = timeout.Milliseconds()
	}

	resp, err := c.postWithRetry(ctx, endpointPDF, payload, url, pdfNegotiable)
	if err != nil {
		c.log.Error("Failed to export PDF", "url", url, "error", err)
		return nil, err
	}

	c.log.Debug("PDF exported", "url", url, "bytes", len(resp.body))
	return resp.body, nil
}

// HealthCheck はバックエンドが応答可能かを返します
func (c *Client) HealthCheck(ctx context.Context) bool {
	if err := c.limiter.Acquire(ctx); err != nil {
		return false
	}
	defer c.limiter.Release()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.host+endpointHealth, nil)
	if err != nil {
		c.log.Error("Failed to build health request", "error", err)
		return false
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Error("Automation backend health check failed", "error", err)
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	healthy := resp.StatusCode == http.StatusOK
	c.log.Info("Automation backend health", "healthy", healthy, "statusCode", resp.StatusCode)
	return healthy
}

// postWithRetry はリトライ・スキーマ交渉付きでPOSTリクエストを送信します
func (c *Client) postWithRetry(ctx context.Context, endpoint string, payload map[string]any, targetURL string, negotiable []string) (*response, error) {
	negotiated := false

	for attempt := 1; ; attempt++ {
		resp, err := c.send(ctx, endpoint, payload)

		// 400 "field" is not allowed はフィールドを除去して即座に1回だけ再送する（試行回数は消費しない）
		if err == nil && !resp.ok() && !negotiated {
			if fields := rejectedFields(resp, negotiable); len(fields) > 0 {
				negotiated = true
				payload = stripFields(payload, fields)
				c.log.Info("Retrying without unsupported fields",
					"endpoint", endpoint,
					"url", targetURL,
					"fields", fields,
				)
				resp, err = c.send(ctx, endpoint, payload)
			}
		}

		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, &domain.OperationError{Endpoint: endpoint, URL: targetURL, Err: ctxErr}
			}
			if attempt >= c.maxAttempts {
				return nil, &domain.OperationError{Endpoint: endpoint, URL: targetURL, Err: err}
			}
			if err := c.backoffWait(ctx, endpoint, targetURL, attempt, 0, err); err != nil {
				return nil, &domain.OperationError{Endpoint: endpoint, URL: targetURL, Err: err}
			}
			continue
		}

		if resp.ok() {
			return resp, nil
		}

		if isRetriableStatus(resp.status) && attempt < c.maxAttempts {
			if err := c.backoffWait(ctx, endpoint, targetURL, attempt, resp.status, nil); err != nil {
				return nil, &domain.OperationError{Endpoint: endpoint, URL: targetURL, StatusCode: resp.status, Err: err}
			}
			continue
		}

		return nil, &domain.OperationError{
			Endpoint:   endpoint,
			URL:        targetURL,
			StatusCode: resp.status,
			Body:       excerpt(resp.body, bodyExcerptLimit),
		}
	}
}

// backoffWait は backoff × attempt だけ待機します（上限なし）
func (c *Client) backoffWait(ctx context.Context, endpoint, targetURL string, attempt, status int, cause error) error {
	delay := c.backoff * time.Duration(attempt)
	c.log.Warn("Retrying automation request",
		"endpoint", endpoint,
		"url", targetURL,
		"attempt", attempt,
		"statusCode", status,
		"backoff", delay,
		"error", cause,
	)
	return c.sleep(ctx, delay)
}

// send はリミッタのスロットを確保してリクエストを1回送信します
func (c *Client) send(ctx context.Context, endpoint string, payload map[string]any) (*response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	if c.pacer != nil {
		if err := c.pacer.Wait(ctx); err != nil {
			return nil, err
		}
	}

	if err := c.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer c.limiter.Release()

	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout(payload))
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	c.setHeaders(req)

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &response{
		status:      httpResp.StatusCode,
		contentType: strings.ToLower(httpResp.Header.Get("Content-Type")),
		body:        respBody,
	}, nil
}

// requestTimeout は1回のリクエストに許す時間を返します
// ペイロードにバックエンド側のタイムアウトがある場合はそれより長く待ちます
func (c *Client) requestTimeout(payload map[string]any) time.Duration {
	ms, ok := payload["timeout"].(int64)
	if !ok || ms <= 0 {
		return c.timeout
	}
	return max(c.timeout, time.Duration(ms)*time.Millisecond+timeoutHeadroom)
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
}

// capturePayload はキャプチャ系エンドポイント共通のペイロードを組み立てます
func capturePayload(url string, opts domain.CaptureOptions) map[string]any {
	payload := map[string]any{"url": url}
	if opts.Timeout > 0 {
		payload["timeout"] = opts.Timeout.Milliseconds()
	}
	if opts.WaitFor != "" {
		payload["waitFor"] = opts.WaitFor
	}
	if len(opts.Cookies) > 0 {
		payload["cookies"] = opts.Cookies
	}
	if opts.UserAgent != "" {
		payload["userAgent"] = opts.UserAgent
	}
	return payload
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var _ domain.Client = (*Client)(nil)
