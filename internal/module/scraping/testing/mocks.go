package testing

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	automation "github.com/jinford/profile-scraper/internal/module/automation/domain"
	"github.com/jinford/profile-scraper/internal/module/scraping/domain"
)

// MockAutomationClient はテスト用のモック automation.Client です
// Func が未設定の場合は固定の成功値を返します
type MockAutomationClient struct {
	ScreenshotFunc    func(ctx context.Context, url string, opts automation.CaptureOptions) (string, error)
	GetContentFunc    func(ctx context.Context, url string, opts automation.CaptureOptions) (string, error)
	ExecuteScriptFunc func(ctx context.Context, url string, script string, timeout time.Duration) (json.RawMessage, error)
	ExportPDFFunc     func(ctx context.Context, url string, timeout time.Duration) ([]byte, error)
	HealthCheckFunc   func(ctx context.Context) bool

	mu    sync.Mutex
	calls []string
}

func (m *MockAutomationClient) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
}

// Calls は呼び出された操作を "<操作> <URL>" 形式で返します
func (m *MockAutomationClient) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *MockAutomationClient) Screenshot(ctx context.Context, url string, opts automation.CaptureOptions) (string, error) {
	m.record("screenshot " + url)
	if m.ScreenshotFunc != nil {
		return m.ScreenshotFunc(ctx, url, opts)
	}
	return "c2NyZWVuc2hvdA==", nil
}

func (m *MockAutomationClient) GetContent(ctx context.Context, url string, opts automation.CaptureOptions) (string, error) {
	m.record("content " + url)
	if m.GetContentFunc != nil {
		return m.GetContentFunc(ctx, url, opts)
	}
	return "<html></html>", nil
}

func (m *MockAutomationClient) ExecuteScript(ctx context.Context, url string, script string, timeout time.Duration) (json.RawMessage, error) {
	m.record("execute " + url)
	if m.ExecuteScriptFunc != nil {
		return m.ExecuteScriptFunc(ctx, url, script, timeout)
	}
	return json.RawMessage(`null`), nil
}

func (m *MockAutomationClient) ExportPDF(ctx context.Context, url string, timeout time.Duration) ([]byte, error) {
	m.record("pdf " + url)
	if m.ExportPDFFunc != nil {
		return m.ExportPDFFunc(ctx, url, timeout)
	}
	return []byte("%PDF"), nil
}

func (m *MockAutomationClient) HealthCheck(ctx context.Context) bool {
	if m.HealthCheckFunc != nil {
		return m.HealthCheckFunc(ctx)
	}
	return true
}

// MockContentExtractor はテスト用のモック ContentExtractor です
type MockContentExtractor struct {
	ExtractProfileInfoFunc func(ctx context.Context, screenshot, html string) (*domain.ProfileInfo, error)
	ExtractCommentsFunc    func(ctx context.Context, screenshot string) ([]domain.Comment, error)
	ExtractUserInfoFunc    func(ctx context.Context, screenshot, html, username string) (*domain.UserInfo, error)
}

func (m *MockContentExtractor) ExtractProfileInfo(ctx context.Context, screenshot, html string) (*domain.ProfileInfo, error) {
	if m.ExtractProfileInfoFunc != nil {
		return m.ExtractProfileInfoFunc(ctx, screenshot, html)
	}
	return &domain.ProfileInfo{}, nil
}

func (m *MockContentExtractor) ExtractComments(ctx context.Context, screenshot string) ([]domain.Comment, error) {
	if m.ExtractCommentsFunc != nil {
		return m.ExtractCommentsFunc(ctx, screenshot)
	}
	return nil, nil
}

func (m *MockContentExtractor) ExtractUserInfo(ctx context.Context, screenshot, html, username string) (*domain.UserInfo, error) {
	if m.ExtractUserInfoFunc != nil {
		return m.ExtractUserInfoFunc(ctx, screenshot, html, username)
	}
	return &domain.UserInfo{}, nil
}

// MockNavigator はテスト用のモック Navigator です
type MockNavigator struct {
	ScrapeProfilePostsFunc  func(ctx context.Context, profileURL string, state *domain.StorageState, maxPosts int) (*domain.PostsResult, error)
	ScrapePostLikeUsersFunc func(ctx context.Context, postURL string, state *domain.StorageState, maxUsers int) (*domain.LikeUsersResult, error)
}

func (m *MockNavigator) ScrapeProfilePosts(ctx context.Context, profileURL string, state *domain.StorageState, maxPosts int) (*domain.PostsResult, error) {
	if m.ScrapeProfilePostsFunc != nil {
		return m.ScrapeProfilePostsFunc(ctx, profileURL, state, maxPosts)
	}
	return &domain.PostsResult{}, nil
}

func (m *MockNavigator) ScrapePostLikeUsers(ctx context.Context, postURL string, state *domain.StorageState, maxUsers int) (*domain.LikeUsersResult, error) {
	if m.ScrapePostLikeUsersFunc != nil {
		return m.ScrapePostLikeUsersFunc(ctx, postURL, state, maxUsers)
	}
	return &domain.LikeUsersResult{}, nil
}

// MockSessionProvider はテスト用のモック SessionProvider です
type MockSessionProvider struct {
	EnsureSessionFunc func(ctx context.Context, store domain.SessionStore) (*domain.StorageState, error)
	CookiesFunc       func(state *domain.StorageState) []automation.Cookie
}

func (m *MockSessionProvider) EnsureSession(ctx context.Context, store domain.SessionStore) (*domain.StorageState, error) {
	if m.EnsureSessionFunc != nil {
		return m.EnsureSessionFunc(ctx, store)
	}
	return nil, nil
}

func (m *MockSessionProvider) Cookies(state *domain.StorageState) []automation.Cookie {
	if m.CookiesFunc != nil {
		return m.CookiesFunc(state)
	}
	if state == nil {
		return nil
	}
	return state.Cookies
}

var (
	_ automation.Client       = (*MockAutomationClient)(nil)
	_ domain.ContentExtractor = (*MockContentExtractor)(nil)
	_ domain.Navigator        = (*MockNavigator)(nil)
	_ domain.SessionProvider  = (*MockSessionProvider)(nil)
)
