package domain

import (
	"context"
	"encoding/json"
	"time"
)

// Cookie はブラウザセッションのクッキーを表します
// JSON形式はブラウザ自動化バックエンドのcookiesフィールドと互換です
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain,omitempty"`
	Path     string  `json:"path,omitempty"`
	Expires  float64 `json:"expires,omitempty"`
	HTTPOnly bool    `json:"httpOnly,omitempty"`
	Secure   bool    `json:"secure,omitempty"`
	SameSite string  `json:"sameSite,omitempty"`
}

// CaptureOptions はキャプチャ系操作のオプションです
// ゼロ値のフィールドはペイロードから省略され、バックエンドのデフォルトが適用されます
type CaptureOptions struct {
	FullPage  *bool
	WaitFor   string
	Timeout   time.Duration
	Cookies   []Cookie
	UserAgent string
}

// Client はブラウザ自動化バックエンドへのポートです
type Client interface {
	// Screenshot はページのスクリーンショットをbase64文字列で返します
	Screenshot(ctx context.Context, url string, opts CaptureOptions) (string, error)

	// GetContent はレンダリング後のHTMLを返します
	GetContent(ctx context.Context, url string, opts CaptureOptions) (string, error)

	// ExecuteScript はページ上でスクリプトを実行し、結果の生データを返します
	ExecuteScript(ctx context.Context, url string, script string, timeout time.Duration) (json.RawMessage, error)

	// ExportPDF はページをPDFとして出力します
	ExportPDF(ctx context.Context, url string, timeout time.Duration) ([]byte, error)

	// HealthCheck はバックエンドが応答可能かを返します
	HealthCheck(ctx context.Context) bool
}

// Bool はCaptureOptions用のboolポインタを返します
func Bool(v bool) *bool {
	return &v
}
