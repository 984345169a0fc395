// Package session は再利用可能なブラウザセッション（storage state）を提供します。
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	automation "github.com/jinford/profile-scraper/internal/module/automation/domain"
	"github.com/jinford/profile-scraper/internal/module/scraping/domain"
)

// DefaultName はストアに保存するセッション状態の名前
const DefaultName = "instagram"

// Provider はストア、storage stateファイルの順にセッションを探すSessionProvider実装です
// どちらにも無い場合は匿名（nil）で動作します
type Provider struct {
	name  string
	path  string
	log   *slog.Logger
	clock func() time.Time
}

// Option はProviderのオプション
type Option func(*Provider)

// WithClock はクッキーの有効期限判定に使う時計を差し替えます
func WithClock(clock func() time.Time) Option {
	return func(p *Provider) {
		p.clock = clock
	}
}

// NewProvider は新しいProviderを作成します
// path が空の場合はファイルからの読み込みを行いません
func NewProvider(name, path string, log *slog.Logger, opts ...Option) *Provider {
	if name == "" {
		name = DefaultName
	}
	if log == nil {
		log = slog.Default()
	}
	p := &Provider{name: name, path: path, log: log, clock: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

var _ domain.SessionProvider = (*Provider)(nil)

// EnsureSession はセッション状態を取得します
// ファイルから読み込んだ状態はストアがあれば保存し、次回以降はストアから再利用します
func (p *Provider) EnsureSession(ctx context.Context, store domain.SessionStore) (*domain.StorageState, error) {
	if store != nil {
		saved, err := store.LoadSessionState(ctx, p.name)
		if err != nil {
			return nil, fmt.Errorf("failed to load session state: %w", err)
		}
		if raw, ok := saved.Get(); ok {
			state, err := decodeState(raw)
			if err == nil {
				p.log.Debug("Session loaded from store", "name", p.name, "cookies", len(state.Cookies))
				return state, nil
			}
			p.log.Warn("Stored session state is invalid, ignoring", "name", p.name, "error", err)
		}
	}

	if p.path == "" {
		p.log.Debug("No session configured, running anonymously")
		return nil, nil
	}

	raw, err := os.ReadFile(p.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			p.log.Warn("Session state file not found, running anonymously", "path", p.path)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read session state file: %w", err)
	}
	state, err := decodeState(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid session state file %s: %w", p.path, err)
	}

	if store != nil {
		normalized, err := json.Marshal(state)
		if err != nil {
			return nil, fmt.Errorf("failed to encode session state: %w", err)
		}
		if err := store.SaveSessionState(ctx, p.name, normalized); err != nil {
			return nil, fmt.Errorf("failed to save session state: %w", err)
		}
	}

	p.log.Info("Session loaded from file", "path", p.path, "cookies", len(state.Cookies))
	return state, nil
}

// Cookies はセッションから有効期限内のクッキーを返します
func (p *Provider) Cookies(state *domain.StorageState) []automation.Cookie {
	if state == nil {
		return nil
	}
	now := float64(p.clock().Unix())
	cookies := make([]automation.Cookie, 0, len(state.Cookies))
	for _, c := range state.Cookies {
		// expires <= 0 はセッションクッキー
		if c.Expires > 0 && c.Expires < now {
			continue
		}
		cookies = append(cookies, c)
	}
	return cookies
}

func decodeState(raw []byte) (*domain.StorageState, error) {
	var state domain.StorageState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, err
	}
	if state.Cookies == nil {
		state.Cookies = []automation.Cookie{}
	}
	return &state, nil
}
