package server

import (
	"context"

	"github.com/google/uuid"

	jobapp "github.com/jinford/profile-scraper/internal/module/job/application"
	jobdomain "github.com/jinford/profile-scraper/internal/module/job/domain"
	scraping "github.com/jinford/profile-scraper/internal/module/scraping/domain"
)

// JobService はジョブの登録と参照を行うサービス
type JobService interface {
	Submit(ctx context.Context, profileURL string) (*jobdomain.Job, error)
	Status(ctx context.Context, id uuid.UUID) (*jobdomain.Job, error)
	Results(ctx context.Context, id uuid.UUID) (*jobapp.Result, error)
}

// ProfileQuery は保存済みプロフィールの参照サービス
type ProfileQuery interface {
	Profile(ctx context.Context, username string) (*scraping.Profile, error)
	ProfilePosts(ctx context.Context, username string, page scraping.Page) ([]*scraping.Post, error)
	ProfileInteractions(ctx context.Context, username string, page scraping.Page) ([]*scraping.Interaction, error)
}

// RecentLikesScraper は直近いいね取得フローを実行します
type RecentLikesScraper interface {
	ScrapeRecentLikes(ctx context.Context, profileURL string, opts scraping.RecentLikesOptions, store scraping.Store) (*scraping.RecentLikesResult, error)
}

// RecentLikesDefaults はリクエストで省略された場合の直近いいね取得の既定値
type RecentLikesDefaults struct {
	MaxPosts        int
	WindowHours     int
	MaxUsersPerPost int
	Enrich          bool
}

// Dependencies はハンドラが使用するサービス群
type Dependencies struct {
	Jobs        JobService
	Profiles    ProfileQuery
	RecentLikes RecentLikesScraper
	// Stores は直近いいね取得で結果を保存する場合の永続化ハンドルを作成します
	Stores jobapp.StoreFactory
}
