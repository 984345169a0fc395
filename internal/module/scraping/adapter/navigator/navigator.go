// Package navigator はブラウザ自動化バックエンド上でページスクリプトを実行し、
// プロフィールの投稿といいねユーザーを列挙します。
package navigator

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"text/template"
	"time"

	automation "github.com/jinford/profile-scraper/internal/module/automation/domain"
	"github.com/jinford/profile-scraper/internal/module/scraping/domain"
)

// DefaultScriptTimeout はスクリプト実行のデフォルトタイムアウト
const DefaultScriptTimeout = 120 * time.Second

//go:embed scripts/*.js.tmpl
var scriptFS embed.FS

var scripts = template.Must(template.ParseFS(scriptFS, "scripts/*.js.tmpl"))

// scriptParams はスクリプトテンプレートに埋め込む値（いずれもJSONリテラル）
type scriptParams struct {
	Cookies string
	URL     string
	Limit   int
}

// ScriptNavigator はautomation.ClientのExecuteScriptでページを巡回するNavigator実装です
type ScriptNavigator struct {
	client  automation.Client
	timeout time.Duration
	log     *slog.Logger
}

// NewScriptNavigator は新しいScriptNavigatorを作成します
func NewScriptNavigator(client automation.Client, timeout time.Duration, log *slog.Logger) *ScriptNavigator {
	if timeout <= 0 {
		timeout = DefaultScriptTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &ScriptNavigator{client: client, timeout: timeout, log: log}
}

var _ domain.Navigator = (*ScriptNavigator)(nil)

// ScrapeProfilePosts はプロフィールの直近の投稿を最大 maxPosts 件列挙します
// 構造化できない結果は parse_failed として生データとともに返します
func (n *ScriptNavigator) ScrapeProfilePosts(ctx context.Context, profileURL string, state *domain.StorageState, maxPosts int) (*domain.PostsResult, error) {
	script, err := render("profile_posts.js.tmpl", profileURL, state, maxPosts)
	if err != nil {
		return nil, err
	}

	raw, err := n.client.ExecuteScript(ctx, profileURL, script, n.timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to navigate profile posts: %w", err)
	}

	var result domain.PostsResult
	if text, ok := decodeInto(raw, &result); !ok {
		n.log.Warn("Navigator returned unstructured posts result", "url", profileURL, "bytes", len(text))
		return &domain.PostsResult{Posts: []domain.PostData{}, Error: string(domain.SoftParseFailed), RawResult: text}, nil
	}
	if result.Posts == nil {
		result.Posts = []domain.PostData{}
	}
	if len(result.Posts) > maxPosts && maxPosts > 0 {
		result.Posts = result.Posts[:maxPosts]
	}

	n.log.Debug("Profile posts navigated", "url", profileURL, "posts", len(result.Posts), "error", result.Error)
	return &result, nil
}

// ScrapePostLikeUsers は投稿にいいねしたユーザーのプロフィールURLを最大 maxUsers 件列挙します
func (n *ScriptNavigator) ScrapePostLikeUsers(ctx context.Context, postURL string, state *domain.StorageState, maxUsers int) (*domain.LikeUsersResult, error) {
	script, err := render("like_users.js.tmpl", postURL, state, maxUsers)
	if err != nil {
		return nil, err
	}

	raw, err := n.client.ExecuteScript(ctx, postURL, script, n.timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to navigate like users: %w", err)
	}

	var result domain.LikeUsersResult
	if _, ok := decodeInto(raw, &result); !ok {
		n.log.Warn("Navigator returned unstructured like users result", "url", postURL)
		return &domain.LikeUsersResult{LikeUsers: []string{}, Error: string(domain.SoftParseFailed)}, nil
	}

	users := make([]string, 0, len(result.LikeUsers))
	for _, u := range result.LikeUsers {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		if !strings.HasPrefix(u, "http") {
			normalized, err := domain.NormalizeProfileURL(u)
			if err != nil {
				continue
			}
			u = normalized
		}
		users = append(users, u)
		if maxUsers > 0 && len(users) >= maxUsers {
			break
		}
	}
	result.LikeUsers = users

	n.log.Debug("Like users navigated", "url", postURL, "users", len(users), "accessible", result.LikesAccessible)
	return &result, nil
}

func render(name, targetURL string, state *domain.StorageState, limit int) (string, error) {
	cookies := []automation.Cookie{}
	if state != nil && state.Cookies != nil {
		cookies = state.Cookies
	}
	cookiesJSON, err := json.Marshal(cookies)
	if err != nil {
		return "", fmt.Errorf("failed to encode cookies: %w", err)
	}
	urlJSON, err := json.Marshal(targetURL)
	if err != nil {
		return "", fmt.Errorf("failed to encode url: %w", err)
	}

	var buf bytes.Buffer
	if err := scripts.ExecuteTemplate(&buf, name, scriptParams{
		Cookies: string(cookiesJSON),
		URL:     string(urlJSON),
		Limit:   limit,
	}); err != nil {
		return "", fmt.Errorf("failed to render script %s: %w", name, err)
	}
	return buf.String(), nil
}

// decodeInto はスクリプト結果をdestにデコードします
// 結果がJSON文字列の場合はその中身をデコードし、失敗した場合は生テキストと false を返します
func decodeInto(raw json.RawMessage, dest any) (string, bool) {
	text := strings.TrimSpace(string(raw))
	var inner string
	if err := json.Unmarshal(raw, &inner); err == nil {
		text = strings.TrimSpace(inner)
	}
	if text == "" || text == "null" || !strings.HasPrefix(text, "{") {
		return text, false
	}
	if err := json.Unmarshal([]byte(text), dest); err != nil {
		return text, false
	}
	return text, true
}
