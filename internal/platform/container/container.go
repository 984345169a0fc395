package container

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jinford/profile-scraper/internal/module/automation/adapter/browserless"
	automation "github.com/jinford/profile-scraper/internal/module/automation/domain"
	jobpg "github.com/jinford/profile-scraper/internal/module/job/adapter/pg"
	jobapp "github.com/jinford/profile-scraper/internal/module/job/application"
	"github.com/jinford/profile-scraper/internal/module/scraping/adapter/extractor"
	"github.com/jinford/profile-scraper/internal/module/scraping/adapter/navigator"
	scrapingpg "github.com/jinford/profile-scraper/internal/module/scraping/adapter/pg"
	"github.com/jinford/profile-scraper/internal/module/scraping/adapter/session"
	scrapingapp "github.com/jinford/profile-scraper/internal/module/scraping/application"
	scraping "github.com/jinford/profile-scraper/internal/module/scraping/domain"
	"github.com/jinford/profile-scraper/internal/platform/config"
	"github.com/jinford/profile-scraper/internal/platform/database"
)

// Container はアプリケーション全体の依存関係を保持する。
// ブラウザ自動化の同時実行リミッタはここで1つだけ生成され、全ての呼び出しで共有される。
type Container struct {
	Config   *config.Config
	Logger   *slog.Logger
	Database *database.Database

	Automation   automation.Client
	Orchestrator *scrapingapp.Orchestrator
	Results      *scrapingapp.ResultService
	Jobs         *jobapp.Service
	Scheduler    *jobapp.Scheduler

	transactions *database.TransactionProvider
	sessions     *scrapingpg.Repository
}

type containerOptions struct {
	automation automation.Client
	extractor  scraping.ContentExtractor
	navigator  scraping.Navigator
	delayer    scraping.Delayer
}

// ContainerOption は Container 構築時のオプション
type ContainerOption func(*containerOptions)

// WithAutomationClient はブラウザ自動化クライアントを差し替える
func WithAutomationClient(client automation.Client) ContainerOption {
	return func(opts *containerOptions) {
		opts.automation = client
	}
}

// WithExtractor は ContentExtractor を差し替える
func WithExtractor(e scraping.ContentExtractor) ContainerOption {
	return func(opts *containerOptions) {
		opts.extractor = e
	}
}

// WithNavigator は Navigator を差し替える
func WithNavigator(n scraping.Navigator) ContainerOption {
	return func(opts *containerOptions) {
		opts.navigator = n
	}
}

// WithDelayer は待機ポリシーを差し替える
func WithDelayer(d scraping.Delayer) ContainerOption {
	return func(opts *containerOptions) {
		opts.delayer = d
	}
}

// New は設定とロガーからコンテナを生成する。
func New(ctx context.Context, logger *slog.Logger, cfg *config.Config, opts ...ContainerOption) (*Container, error) {
	db, err := database.New(ctx, database.ConnectionParams{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		return nil, fmt.Errorf("データベース初期化に失敗しました: %w", err)
	}

	c, err := NewWithDB(logger, cfg, db, opts...)
	if err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

// NewWithDB は既存の Database を受け取りコンテナを生成する。
func NewWithDB(logger *slog.Logger, cfg *config.Config, db *database.Database, opts ...ContainerOption) (*Container, error) {
	if logger == nil {
		logger = slog.Default()
	}
	options := containerOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	// ブラウザ自動化バックエンド
	client := options.automation
	if client == nil {
		client = browserless.NewClient(browserless.Config{
			Host:              cfg.Browserless.Host,
			Token:             cfg.Browserless.Token,
			Timeout:           cfg.Browserless.RequestTimeout,
			MaxAttempts:       cfg.Browserless.MaxAttempts,
			Backoff:           cfg.Browserless.Backoff(),
			MaxConcurrency:    cfg.Browserless.MaxConcurrency,
			RequestsPerSecond: cfg.Browserless.RequestsPerSecond,
		}, logger.With("component", "browserless"))
	}

	// 画面からの情報抽出
	contentExtractor := options.extractor
	if contentExtractor == nil {
		var err error
		contentExtractor, err = newExtractor(cfg.OpenAI, logger)
		if err != nil {
			return nil, err
		}
	}

	nav := options.navigator
	if nav == nil {
		nav = navigator.NewScriptNavigator(client, cfg.Browserless.ScriptTimeout, logger.With("component", "navigator"))
	}

	delayer := options.delayer
	if delayer == nil {
		delayer = scraping.RandomDelayer{}
	}

	orchestrator := scrapingapp.NewOrchestrator(
		client,
		contentExtractor,
		nav,
		session.NewProvider(session.DefaultName, cfg.Scraper.SessionStatePath, logger.With("component", "session")),
		delayer,
		scrapingapp.Config{
			ProfileDelay:   scraping.SecondsBounds(cfg.Scraper.ProfileDelayMin, cfg.Scraper.ProfileDelayMax),
			PostDelay:      scraping.SecondsBounds(cfg.Scraper.PostDelayMin, cfg.Scraper.PostDelayMax),
			UserAgents:     cfg.Scraper.UserAgents,
			CaptureTimeout: scrapingapp.DefaultCaptureTimeout,
		},
		logger,
	)

	repo := scrapingpg.NewRepository(db.Pool)
	results := scrapingapp.NewResultService(repo)

	c := &Container{
		Config:       cfg,
		Logger:       logger,
		Database:     db,
		Automation:   client,
		Orchestrator: orchestrator,
		Results:      results,
		transactions: database.NewTransactionProvider(db.Pool),
		sessions:     repo,
	}

	c.Jobs = jobapp.NewService(
		jobpg.NewJobRepository(db.Pool),
		orchestrator,
		c.NewStore,
		results,
		jobapp.Config{MaxPosts: cfg.Scraper.MaxPosts},
		logger,
	)
	c.Scheduler = jobapp.NewScheduler(c.Jobs, cfg.Scraper.ScheduleCron, cfg.Scraper.ScheduleProfiles, logger.With("component", "scheduler"))

	return c, nil
}

// NewStore はパイプライン実行ごとに専有される永続化ハンドルを作成する。
func (c *Container) NewStore(ctx context.Context) (scraping.Store, error) {
	return scrapingapp.NewPersister(database.NewScrapeUnitOfWork(c.transactions), c.sessions, c.Logger), nil
}

// RecentLikesOptions は設定値から直近いいね取得のオプションを作成する。
func (c *Container) RecentLikesOptions() scraping.RecentLikesOptions {
	rl := c.Config.Scraper.RecentLikes
	return scraping.RecentLikesOptions{
		MaxPosts:             rl.MaxPosts,
		WindowHours:          rl.WindowHours,
		MaxLikeUsersPerPost:  rl.MaxUsersPerPost,
		CollectLikerProfiles: rl.Enrich,
	}
}

// Close は内部リソースを解放する。
func (c *Container) Close() {
	if c != nil && c.Database != nil {
		c.Database.Close()
	}
}

// newExtractor はAPIキーがあれば画像解析を優先し、失敗時にHTMLから推定する抽出器を作る。
func newExtractor(cfg config.OpenAIConfig, logger *slog.Logger) (scraping.ContentExtractor, error) {
	htmlExtractor := extractor.NewHTMLExtractor()
	if cfg.APIKey == "" {
		logger.Warn("OpenAI API key not set, using HTML-only extraction")
		return htmlExtractor, nil
	}

	vision, err := extractor.NewOpenAIVisionClient(extractor.OpenAIConfig{
		APIKey:     cfg.APIKey,
		Model:      cfg.Model,
		Timeout:    cfg.Timeout,
		MaxRetries: cfg.MaxRetries,
	})
	if err != nil {
		return nil, fmt.Errorf("OpenAIクライアント初期化に失敗しました: %w", err)
	}

	return extractor.NewFallbackExtractor(
		extractor.NewAIExtractor(vision, logger.With("component", "extractor")),
		htmlExtractor,
		logger,
	), nil
}
