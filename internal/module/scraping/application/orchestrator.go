package application

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	automation "github.com/jinford/profile-scraper/internal/module/automation/domain"
	"github.com/jinford/profile-scraper/internal/module/scraping/domain"
	"github.com/jinford/profile-scraper/internal/shared/lenientjson"
)

const (
	// DefaultCaptureTimeout はキャプチャ系操作のバックエンド側タイムアウト
	DefaultCaptureTimeout = 30 * time.Second

	phasePosts = "posts"
	phaseLikes = "likes"
)

// Config はOrchestratorの設定
type Config struct {
	// ProfileDelay はプロフィール取得前に挿入する待機時間の範囲
	ProfileDelay domain.DelayBounds
	// PostDelay は投稿ごとのコメント取得前に挿入する待機時間の範囲
	PostDelay domain.DelayBounds
	// UserAgents はキャプチャ時にランダムに選ぶUser-Agent（空ならバックエンドのデフォルト）
	UserAgents []string
	// CaptureTimeout はキャプチャ系操作のバックエンド側タイムアウト
	CaptureTimeout time.Duration
	// RecoveryScanLimit は生結果から投稿一覧を復旧する際の走査上限（バイト）
	RecoveryScanLimit int
}

// DefaultConfig はデフォルトの設定を返します
func DefaultConfig() Config {
	return Config{
		ProfileDelay:      domain.DelayBounds{Min: time.Second, Max: 5 * time.Second},
		PostDelay:         domain.DelayBounds{Min: 2 * time.Second, Max: 5 * time.Second},
		CaptureTimeout:    DefaultCaptureTimeout,
		RecoveryScanLimit: lenientjson.DefaultMaxScan,
	}
}

// Orchestrator はプロフィール単位のスクレイピングパイプラインを実行します
// フェーズは厳密に逐次実行され、ハードエラーは呼び出し元に伝播します
type Orchestrator struct {
	client    automation.Client
	extractor domain.ContentExtractor
	navigator domain.Navigator
	sessions  domain.SessionProvider
	delayer   domain.Delayer
	recency   domain.RecencyClassifier
	cfg       Config
	now       func() time.Time
	log       *slog.Logger
}

// OrchestratorOption はOrchestrator構築時のオプション
type OrchestratorOption func(*Orchestrator)

// WithClock は現在時刻の取得方法を差し替える
func WithClock(now func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) {
		o.now = now
		o.recency = domain.RecencyClassifier{Now: now}
	}
}

// NewOrchestrator は新しいOrchestratorを作成します
func NewOrchestrator(
	client automation.Client,
	extractor domain.ContentExtractor,
	navigator domain.Navigator,
	sessions domain.SessionProvider,
	delayer domain.Delayer,
	cfg Config,
	log *slog.Logger,
	opts ...OrchestratorOption,
) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	if delayer == nil {
		delayer = domain.RandomDelayer{}
	}
	if cfg.CaptureTimeout <= 0 {
		cfg.CaptureTimeout = DefaultCaptureTimeout
	}
	if cfg.RecoveryScanLimit <= 0 {
		cfg.RecoveryScanLimit = lenientjson.DefaultMaxScan
	}

	o := &Orchestrator{
		client:    client,
		extractor: extractor,
		navigator: navigator,
		sessions:  sessions,
		delayer:   delayer,
		recency:   domain.NewRecencyClassifier(),
		cfg:       cfg,
		now:       time.Now,
		log:       log,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ScrapeProfile はプロフィール・投稿・インタラクションを取得します
// store が nil の場合はセッション取得と永続化を行いません
func (o *Orchestrator) ScrapeProfile(ctx context.Context, profileURL string, maxPosts int, store domain.Store) (*domain.ScrapeResult, error) {
	profileURL, err := domain.NormalizeProfileURL(profileURL)
	if err != nil {
		return nil, err
	}
	username := domain.UsernameFromURL(profileURL)
	log := o.log.With("profileURL", profileURL)
	log.Info("Starting profile scrape", "maxPosts", maxPosts)

	// 1. セッション
	state, cookies, err := o.acquireSession(ctx, store)
	if err != nil {
		return nil, err
	}

	// 2. プロフィールのキャプチャ
	if err := o.delayer.Wait(ctx, o.cfg.ProfileDelay); err != nil {
		return nil, err
	}
	screenshot, html, err := o.capturePage(ctx, profileURL, cookies)
	if err != nil {
		return nil, err
	}

	// 3. プロフィール情報の抽出
	info, err := o.extractor.ExtractProfileInfo(ctx, screenshot, html)
	if err != nil {
		return nil, fmt.Errorf("failed to extract profile info: %w", err)
	}
	if info == nil {
		info = &domain.ProfileInfo{}
	}
	if info.Username == "" {
		info.Username = username
	}

	// 4. プロフィールの保存
	var profile *domain.Profile
	if store != nil {
		profile, err = store.SaveProfile(ctx, profileURL, *info)
		if err != nil {
			return nil, fmt.Errorf("failed to save profile: %w", err)
		}
	}

	// 5. 投稿の列挙
	var conditions []domain.SoftCondition
	postsOutcome := o.enumeratePosts(ctx, profileURL, state, maxPosts)
	posts, err := postsOutcome.Unwrap()
	if err != nil {
		return nil, err
	}
	if condition, ok := postsOutcome.Condition(phasePosts, profileURL); ok {
		log.Warn("Post enumeration reported a soft condition", "code", condition.Code, "detail", condition.Message)
		conditions = append(conditions, condition)
	}

	// 6. 投稿ごとのインタラクション
	var interactions []domain.InteractionData
	for _, post := range posts {
		postInteractions, err := o.capturePostInteractions(ctx, post, cookies)
		if err != nil {
			return nil, err
		}
		interactions = append(interactions, postInteractions...)
	}

	// 7. 投稿とインタラクションの保存
	if store != nil && profile != nil {
		if _, err := store.SavePostsAndInteractions(ctx, profile, posts, interactions); err != nil {
			return nil, fmt.Errorf("failed to save posts and interactions: %w", err)
		}
	}

	result := &domain.ScrapeResult{
		Profile: domain.ProfileSummary{
			Username:      info.Username,
			ProfileURL:    profileURL,
			Bio:           info.Bio,
			IsPrivate:     info.IsPrivate,
			FollowerCount: info.FollowerCount,
			Verified:      info.Verified,
		},
		Posts:        nonNil(posts),
		Interactions: nonNil(interactions),
		Conditions:   conditions,
		Summary: domain.ScrapeSummary{
			TotalPosts:        len(posts),
			TotalInteractions: len(interactions),
			ScrapedAt:         o.now().UTC(),
		},
	}

	log.Info("Profile scrape completed",
		"username", info.Username,
		"posts", result.Summary.TotalPosts,
		"interactions", result.Summary.TotalInteractions,
	)
	return result, nil
}

// acquireSession はセッションとクッキーを取得します（store が nil の場合は匿名）
func (o *Orchestrator) acquireSession(ctx context.Context, store domain.Store) (*domain.StorageState, []automation.Cookie, error) {
	if store == nil || o.sessions == nil {
		return nil, nil, nil
	}
	state, err := o.sessions.EnsureSession(ctx, store)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to ensure session: %w", err)
	}
	return state, o.sessions.Cookies(state), nil
}

// capturePage はスクリーンショットとHTMLを取得します
func (o *Orchestrator) capturePage(ctx context.Context, url string, cookies []automation.Cookie) (string, string, error) {
	opts := o.captureOptions(cookies)

	screenshot, err := o.client.Screenshot(ctx, url, opts)
	if err != nil {
		return "", "", fmt.Errorf("failed to capture screenshot: %w", err)
	}
	html, err := o.client.GetContent(ctx, url, opts)
	if err != nil {
		return "", "", fmt.Errorf("failed to get page content: %w", err)
	}
	return screenshot, html, nil
}

func (o *Orchestrator) captureOptions(cookies []automation.Cookie) automation.CaptureOptions {
	opts := automation.CaptureOptions{
		FullPage: automation.Bool(true),
		Timeout:  o.cfg.CaptureTimeout,
		Cookies:  cookies,
	}
	if n := len(o.cfg.UserAgents); n > 0 {
		opts.UserAgent = o.cfg.UserAgents[rand.IntN(n)]
	}
	return opts
}

// enumeratePosts は投稿を列挙します
// private_profile や parse_failed はSoftとして扱い、parse_failed の場合は生結果からの復旧を試みます
func (o *Orchestrator) enumeratePosts(ctx context.Context, profileURL string, state *domain.StorageState, maxPosts int) domain.Outcome[[]domain.PostData] {
	res, err := o.navigator.ScrapeProfilePosts(ctx, profileURL, state, maxPosts)
	if err != nil {
		return domain.Failure[[]domain.PostData](fmt.Errorf("failed to scrape posts: %w", err))
	}
	if res == nil {
		return domain.Ok[[]domain.PostData](nil)
	}

	posts := res.Posts
	code := domain.SoftCode(res.Error)

	switch code {
	case "":
		return domain.Ok(limitPosts(posts, maxPosts))
	case domain.SoftParseFailed:
		recovered, ok := lenientjson.FindList[domain.PostData](res.RawResult, "posts", o.cfg.RecoveryScanLimit)
		if ok && len(recovered) > 0 {
			o.log.Info("Recovered posts from raw result", "profileURL", profileURL, "count", len(recovered))
			return domain.Soft(code, limitPosts(recovered, maxPosts), fmt.Sprintf("recovered %d posts from raw result", len(recovered)))
		}
		return domain.Soft(code, limitPosts(posts, maxPosts), "raw result could not be recovered")
	default:
		return domain.Soft(code, limitPosts(posts, maxPosts), "")
	}
}

// capturePostInteractions は投稿のコメントを取得し、いいね数があれば集計行を追加します
func (o *Orchestrator) capturePostInteractions(ctx context.Context, post domain.PostData, cookies []automation.Cookie) ([]domain.InteractionData, error) {
	if err := o.delayer.Wait(ctx, o.cfg.PostDelay); err != nil {
		return nil, err
	}

	screenshot, err := o.client.Screenshot(ctx, post.PostURL, o.captureOptions(cookies))
	if err != nil {
		return nil, fmt.Errorf("failed to capture post %s: %w", post.PostURL, err)
	}

	comments, err := o.extractor.ExtractComments(ctx, screenshot)
	if err != nil {
		return nil, fmt.Errorf("failed to extract comments for %s: %w", post.PostURL, err)
	}

	interactions := make([]domain.InteractionData, 0, len(comments)+1)
	for _, c := range comments {
		text := c.CommentText
		interactions = append(interactions, domain.InteractionData{
			PostURL:        post.PostURL,
			Type:           domain.InteractionTypeComment,
			UserURL:        c.UserURL,
			UserUsername:   c.UserUsername,
			CommentText:    &text,
			CommentLikes:   c.CommentLikes,
			CommentReplies: c.CommentReplies,
		})
	}

	if post.LikeCount > 0 {
		count := post.LikeCount
		interactions = append(interactions, domain.InteractionData{
			PostURL: post.PostURL,
			Type:    domain.InteractionTypeLike,
			Count:   &count,
		})
	}

	o.log.Debug("Post interactions captured", "postURL", post.PostURL, "count", len(interactions))
	return interactions, nil
}

// limitPosts はURLの無い投稿を除外し、最大件数に切り詰めます
func limitPosts(posts []domain.PostData, maxPosts int) []domain.PostData {
	filtered := make([]domain.PostData, 0, len(posts))
	for _, p := range posts {
		if p.PostURL == "" {
			continue
		}
		filtered = append(filtered, p)
		if maxPosts > 0 && len(filtered) >= maxPosts {
			break
		}
	}
	return filtered
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
