package application_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	automation "github.com/jinford/profile-scraper/internal/module/automation/domain"
	"github.com/jinford/profile-scraper/internal/module/scraping/application"
	"github.com/jinford/profile-scraper/internal/module/scraping/domain"
	scrapingtesting "github.com/jinford/profile-scraper/internal/module/scraping/testing"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

type orchestratorFixture struct {
	client    *scrapingtesting.MockAutomationClient
	extractor *scrapingtesting.MockContentExtractor
	navigator *scrapingtesting.MockNavigator
	sessions  *scrapingtesting.MockSessionProvider
	memory    *scrapingtesting.MemoryStore
	store     *application.Persister
}

func newOrchestratorFixture(username string, posts []domain.PostData) *orchestratorFixture {
	memory := scrapingtesting.NewMemoryStore()
	return &orchestratorFixture{
		client: &scrapingtesting.MockAutomationClient{},
		extractor: &scrapingtesting.MockContentExtractor{
			ExtractProfileInfoFunc: func(ctx context.Context, screenshot, html string) (*domain.ProfileInfo, error) {
				return scrapingtesting.NewTestProfileInfo(username), nil
			},
			ExtractCommentsFunc: func(ctx context.Context, screenshot string) ([]domain.Comment, error) {
				return []domain.Comment{scrapingtesting.NewTestComment("bob", "nice")}, nil
			},
		},
		navigator: &scrapingtesting.MockNavigator{
			ScrapeProfilePostsFunc: func(ctx context.Context, profileURL string, state *domain.StorageState, maxPosts int) (*domain.PostsResult, error) {
				return &domain.PostsResult{Posts: posts}, nil
			},
		},
		sessions: &scrapingtesting.MockSessionProvider{},
		memory:   memory,
		store:    application.NewPersister(memory, memory, testLogger()),
	}
}

func (f *orchestratorFixture) orchestrator() *application.Orchestrator {
	return application.NewOrchestrator(
		f.client,
		f.extractor,
		f.navigator,
		f.sessions,
		domain.NoDelay{},
		application.DefaultConfig(),
		testLogger(),
		application.WithClock(func() time.Time { return fixedNow }),
	)
}

func countByType(interactions []*domain.Interaction, t domain.InteractionType) int {
	n := 0
	for _, i := range interactions {
		if i.Type == t {
			n++
		}
	}
	return n
}

func TestOrchestrator_ScrapeProfile_EndToEnd(t *testing.T) {
	// Setup
	f := newOrchestratorFixture("alice", scrapingtesting.NewTestPosts("alice", 2))
	o := f.orchestrator()

	// Execute
	result, err := o.ScrapeProfile(context.Background(), "https://instagram.com/alice", 5, f.store)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "alice", result.Profile.Username)
	assert.Equal(t, "https://instagram.com/alice", result.Profile.ProfileURL)
	assert.Equal(t, 2, result.Summary.TotalPosts)
	// コメント1件 + いいね集計1件 が投稿ごとに作られる
	assert.Equal(t, 4, result.Summary.TotalInteractions)
	assert.Equal(t, fixedNow, result.Summary.ScrapedAt)
	assert.Empty(t, result.Conditions)

	profiles := f.memory.Profiles()
	require.Len(t, profiles, 1)
	assert.Equal(t, "alice", profiles[0].Username)
	require.NotNil(t, profiles[0].Bio)
	assert.Equal(t, "hi", *profiles[0].Bio)
	require.NotNil(t, profiles[0].LastScrapedAt)

	assert.Len(t, f.memory.Posts(), 2)
	interactions := f.memory.Interactions()
	assert.Equal(t, 2, countByType(interactions, domain.InteractionTypeComment))
	assert.Equal(t, 2, countByType(interactions, domain.InteractionTypeLike))

	// スクリーンショットはプロフィール1回 + 投稿2回
	calls := f.client.Calls()
	assert.Equal(t, []string{
		"screenshot https://instagram.com/alice",
		"content https://instagram.com/alice",
		"screenshot https://instagram.com/p/alice-1/",
		"screenshot https://instagram.com/p/alice-2/",
	}, calls)
}

func TestOrchestrator_ScrapeProfile_Idempotent(t *testing.T) {
	// Setup
	f := newOrchestratorFixture("alice", scrapingtesting.NewTestPosts("alice", 2))
	o := f.orchestrator()
	ctx := context.Background()

	_, err := o.ScrapeProfile(ctx, "alice", 5, f.store)
	require.NoError(t, err)

	f.extractor.ExtractProfileInfoFunc = func(ctx context.Context, screenshot, html string) (*domain.ProfileInfo, error) {
		info := scrapingtesting.NewTestProfileInfo("alice")
		info.Bio = scrapingtesting.StrPtr("updated")
		info.FollowerCount = scrapingtesting.IntPtr(99)
		return info, nil
	}

	// Execute
	_, err = o.ScrapeProfile(ctx, "alice", 5, f.store)

	// Assert
	require.NoError(t, err)

	profiles := f.memory.Profiles()
	require.Len(t, profiles, 1)
	assert.Equal(t, "updated", *profiles[0].Bio)
	assert.Equal(t, 99, *profiles[0].FollowerCount)

	assert.Len(t, f.memory.Posts(), 2)
	interactions := f.memory.Interactions()
	assert.Equal(t, 2, countByType(interactions, domain.InteractionTypeComment), "comments must not be duplicated")
	// いいね集計行は追記される
	assert.Equal(t, 4, countByType(interactions, domain.InteractionTypeLike))
}

func TestOrchestrator_ScrapeProfile_SoftConditions(t *testing.T) {
	tests := []struct {
		name          string
		postsResult   *domain.PostsResult
		maxPosts      int
		wantPosts     []string
		wantCondition domain.SoftCode
	}{
		{
			name:          "非公開プロフィールは投稿0件で継続する",
			postsResult:   &domain.PostsResult{Error: "private_profile"},
			maxPosts:      5,
			wantPosts:     []string{},
			wantCondition: domain.SoftPrivateProfile,
		},
		{
			name: "parse_failedは生結果から投稿を復旧する",
			postsResult: &domain.PostsResult{
				Error:     "parse_failed",
				RawResult: `console noise {"posts":[{"post_url":"https://instagram.com/p/x/","like_count":0}]} trailing`,
			},
			maxPosts:      5,
			wantPosts:     []string{"https://instagram.com/p/x/"},
			wantCondition: domain.SoftParseFailed,
		},
		{
			name:          "復旧できないparse_failedは投稿0件で継続する",
			postsResult:   &domain.PostsResult{Error: "parse_failed", RawResult: "not json at all"},
			maxPosts:      5,
			wantPosts:     []string{},
			wantCondition: domain.SoftParseFailed,
		},
		{
			name: "最大件数とURLなしの投稿を除外する",
			postsResult: &domain.PostsResult{Posts: append(
				[]domain.PostData{{PostURL: ""}},
				scrapingtesting.NewTestPosts("alice", 4)...,
			)},
			maxPosts:  2,
			wantPosts: []string{"https://instagram.com/p/alice-1/", "https://instagram.com/p/alice-2/"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Setup
			f := newOrchestratorFixture("alice", nil)
			f.navigator.ScrapeProfilePostsFunc = func(ctx context.Context, profileURL string, state *domain.StorageState, maxPosts int) (*domain.PostsResult, error) {
				return tt.postsResult, nil
			}
			o := f.orchestrator()

			// Execute
			result, err := o.ScrapeProfile(context.Background(), "alice", tt.maxPosts, f.store)

			// Assert
			require.NoError(t, err)
			urls := make([]string, 0, len(result.Posts))
			for _, p := range result.Posts {
				urls = append(urls, p.PostURL)
			}
			assert.Equal(t, tt.wantPosts, urls)
			assert.Len(t, f.memory.Profiles(), 1)

			if tt.wantCondition == "" {
				assert.Empty(t, result.Conditions)
				return
			}
			require.Len(t, result.Conditions, 1)
			assert.Equal(t, tt.wantCondition, result.Conditions[0].Code)
			assert.Equal(t, "posts", result.Conditions[0].Phase)
		})
	}
}

func TestOrchestrator_ScrapeProfile_HardFailures(t *testing.T) {
	errBackend := errors.New("backend down")

	tests := []struct {
		name         string
		setup        func(f *orchestratorFixture)
		wantProfiles int
		wantPosts    int
	}{
		{
			name: "プロフィールのキャプチャ失敗は何も保存しない",
			setup: func(f *orchestratorFixture) {
				f.client.ScreenshotFunc = func(ctx context.Context, url string, opts automation.CaptureOptions) (string, error) {
					return "", errBackend
				}
			},
			wantProfiles: 0,
			wantPosts:    0,
		},
		{
			name: "投稿列挙の失敗はプロフィールのみ保存済み",
			setup: func(f *orchestratorFixture) {
				f.navigator.ScrapeProfilePostsFunc = func(ctx context.Context, profileURL string, state *domain.StorageState, maxPosts int) (*domain.PostsResult, error) {
					return nil, errBackend
				}
			},
			wantProfiles: 1,
			wantPosts:    0,
		},
		{
			name: "コメント抽出の失敗は投稿を保存しない",
			setup: func(f *orchestratorFixture) {
				f.extractor.ExtractCommentsFunc = func(ctx context.Context, screenshot string) ([]domain.Comment, error) {
					return nil, errBackend
				}
			},
			wantProfiles: 1,
			wantPosts:    0,
		},
		{
			name: "インタラクション保存の失敗は投稿もロールバックされる",
			setup: func(f *orchestratorFixture) {
				f.memory.FailOnCreateInteraction = errBackend
			},
			wantProfiles: 1,
			wantPosts:    0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Setup
			f := newOrchestratorFixture("alice", scrapingtesting.NewTestPosts("alice", 2))
			tt.setup(f)
			o := f.orchestrator()

			// Execute
			result, err := o.ScrapeProfile(context.Background(), "alice", 5, f.store)

			// Assert
			require.Error(t, err)
			assert.ErrorIs(t, err, errBackend)
			assert.Nil(t, result)
			assert.Len(t, f.memory.Profiles(), tt.wantProfiles)
			assert.Len(t, f.memory.Posts(), tt.wantPosts)
			assert.Empty(t, f.memory.Interactions())
		})
	}
}

func TestOrchestrator_ScrapeProfile_InvalidURL(t *testing.T) {
	// Setup
	f := newOrchestratorFixture("alice", nil)
	o := f.orchestrator()

	// Execute
	_, err := o.ScrapeProfile(context.Background(), "  ", 5, f.store)

	// Assert
	assert.ErrorIs(t, err, domain.ErrInvalidProfileURL)
	assert.Empty(t, f.client.Calls())
}

func TestOrchestrator_ScrapeProfile_WithoutStore(t *testing.T) {
	// Setup
	f := newOrchestratorFixture("alice", scrapingtesting.NewTestPosts("alice", 1))
	sessionCalled := false
	f.sessions.EnsureSessionFunc = func(ctx context.Context, store domain.SessionStore) (*domain.StorageState, error) {
		sessionCalled = true
		return nil, nil
	}
	o := f.orchestrator()

	// Execute
	result, err := o.ScrapeProfile(context.Background(), "alice", 5, nil)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 1, result.Summary.TotalPosts)
	assert.False(t, sessionCalled)
	assert.Empty(t, f.memory.Profiles())
}

func TestOrchestrator_ScrapeProfile_CaptureOptions(t *testing.T) {
	// Setup
	f := newOrchestratorFixture("alice", nil)
	cookie := automation.Cookie{Name: "sessionid", Value: "abc", Domain: ".instagram.com"}
	f.sessions.EnsureSessionFunc = func(ctx context.Context, store domain.SessionStore) (*domain.StorageState, error) {
		return &domain.StorageState{Cookies: []automation.Cookie{cookie}}, nil
	}

	var captured automation.CaptureOptions
	f.client.ScreenshotFunc = func(ctx context.Context, url string, opts automation.CaptureOptions) (string, error) {
		captured = opts
		return "aW1n", nil
	}
	var receivedState *domain.StorageState
	f.navigator.ScrapeProfilePostsFunc = func(ctx context.Context, profileURL string, state *domain.StorageState, maxPosts int) (*domain.PostsResult, error) {
		receivedState = state
		return &domain.PostsResult{}, nil
	}

	cfg := application.DefaultConfig()
	cfg.UserAgents = []string{"test-agent"}
	o := application.NewOrchestrator(f.client, f.extractor, f.navigator, f.sessions, domain.NoDelay{}, cfg, testLogger())

	// Execute
	_, err := o.ScrapeProfile(context.Background(), "alice", 5, f.store)

	// Assert
	require.NoError(t, err)
	require.NotNil(t, captured.FullPage)
	assert.True(t, *captured.FullPage)
	assert.Equal(t, application.DefaultCaptureTimeout, captured.Timeout)
	assert.Equal(t, "test-agent", captured.UserAgent)
	assert.Equal(t, []automation.Cookie{cookie}, captured.Cookies)
	require.NotNil(t, receivedState)
	assert.Equal(t, "sessionid", receivedState.Cookies[0].Name)
}

func TestOrchestrator_ScrapeProfile_UsernameFallback(t *testing.T) {
	// Setup
	f := newOrchestratorFixture("", nil)
	f.extractor.ExtractProfileInfoFunc = func(ctx context.Context, screenshot, html string) (*domain.ProfileInfo, error) {
		return nil, nil
	}
	o := f.orchestrator()

	// Execute
	result, err := o.ScrapeProfile(context.Background(), "https://instagram.com/carol/", 5, f.store)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "carol", result.Profile.Username)
	require.Len(t, f.memory.Profiles(), 1)
	assert.Equal(t, "carol", f.memory.Profiles()[0].Username)
}
