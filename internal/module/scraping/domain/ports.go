package domain

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/samber/mo"

	automation "github.com/jinford/profile-scraper/internal/module/automation/domain"
)

// StorageState は認証済みブラウザセッションを表す記述子です
// Playwright の storage state 形式（cookies / origins）と互換です
type StorageState struct {
	Cookies []automation.Cookie `json:"cookies"`
	Origins []json.RawMessage   `json:"origins,omitempty"`
}

// ContentExtractor はスクリーンショットとHTMLから構造化情報を抽出するポートです
type ContentExtractor interface {
	ExtractProfileInfo(ctx context.Context, screenshot, html string) (*ProfileInfo, error)
	ExtractComments(ctx context.Context, screenshot string) ([]Comment, error)
	ExtractUserInfo(ctx context.Context, screenshot, html, username string) (*UserInfo, error)
}

// SessionProvider は再利用可能なセッションを提供するポートです
type SessionProvider interface {
	// EnsureSession はセッションを取得します。nil はセッションなし（匿名）を表します
	EnsureSession(ctx context.Context, store SessionStore) (*StorageState, error)
	// Cookies はセッションからクッキーを導出します
	Cookies(state *StorageState) []automation.Cookie
}

// PostsResult は投稿列挙の結果です
// Error にはドメイン固有のコード（private_profile, parse_failed など）が入ります
type PostsResult struct {
	Posts     []PostData `json:"posts"`
	Error     string     `json:"error,omitempty"`
	RawResult string     `json:"raw_result,omitempty"`
}

// LikeUsersResult はいいねユーザー列挙の結果です
type LikeUsersResult struct {
	LikeUsers       []string `json:"like_users"`
	LikesAccessible bool     `json:"likes_accessible"`
	Error           string   `json:"error,omitempty"`
}

// Navigator はセッションを使ってページを巡回するポートです
type Navigator interface {
	ScrapeProfilePosts(ctx context.Context, profileURL string, state *StorageState, maxPosts int) (*PostsResult, error)
	ScrapePostLikeUsers(ctx context.Context, postURL string, state *StorageState, maxUsers int) (*LikeUsersResult, error)
}

// SessionStore はセッション状態の保存先です
type SessionStore interface {
	LoadSessionState(ctx context.Context, name string) (mo.Option[[]byte], error)
	SaveSessionState(ctx context.Context, name string, state []byte) error
}

// Store はパイプライン実行ごとに専有される永続化ハンドルです
type Store interface {
	SessionStore

	// SaveProfile はusernameをキーにプロフィールをupsertします
	SaveProfile(ctx context.Context, profileURL string, info ProfileInfo) (*Profile, error)

	// EnsureProfile は既存プロフィールを変更せずに返し、無ければ最小限の情報で作成します
	EnsureProfile(ctx context.Context, profileURL, username string) (*Profile, error)

	// SavePostsAndInteractions は投稿とインタラクションを1トランザクションで保存します
	SavePostsAndInteractions(ctx context.Context, profile *Profile, posts []PostData, interactions []InteractionData) (*SaveStats, error)
}

// ScrapeRepository はトランザクション内で使用する永続化プリミティブです
type ScrapeRepository interface {
	// LockProfile はトランザクション終了までプロフィール単位の排他ロックを取得します
	LockProfile(ctx context.Context, username string) error

	FindProfileByUsername(ctx context.Context, username string) (mo.Option[*Profile], error)
	CreateProfile(ctx context.Context, profile *Profile) error
	UpdateProfile(ctx context.Context, profile *Profile) error

	FindPostByURL(ctx context.Context, postURL string) (mo.Option[*Post], error)
	CreatePost(ctx context.Context, post *Post) error

	FindInteraction(ctx context.Context, postID uuid.UUID, userURL string, interactionType InteractionType) (mo.Option[*Interaction], error)
	CreateInteraction(ctx context.Context, interaction *Interaction) error
}

// UnitOfWork はScrapeRepositoryを1トランザクションで実行します
// fn がエラーを返した場合は全ての書き込みがロールバックされます
type UnitOfWork interface {
	Do(ctx context.Context, fn func(repo ScrapeRepository) error) error
}

// Page はページングのパラメータです。Limit が 0 の場合は全件です
type Page struct {
	Offset int
	Limit  int
}

// ResultReader は保存済みスクレイピング結果の読み取りポートです
type ResultReader interface {
	FindProfileByURL(ctx context.Context, url string) (mo.Option[*Profile], error)
	FindProfileByUsername(ctx context.Context, username string) (mo.Option[*Profile], error)
	ListPostsByProfile(ctx context.Context, profileID uuid.UUID, page Page) ([]*Post, error)
	ListInteractionsByProfile(ctx context.Context, profileID uuid.UUID, page Page) ([]*Interaction, error)
}
