package pg

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/mo"

	"github.com/jinford/profile-scraper/internal/module/scraping/domain"
)

// DBTX はプールとトランザクションの両方を受け付けるクエリ実行インターフェースです
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository はプロフィール・投稿・インタラクションの永続化アダプターです
type Repository struct {
	db DBTX
}

// NewRepository は新しいRepositoryを作成します
func NewRepository(db DBTX) *Repository {
	return &Repository{db: db}
}

var (
	_ domain.ScrapeRepository = (*Repository)(nil)
	_ domain.ResultReader     = (*Repository)(nil)
	_ domain.SessionStore     = (*Repository)(nil)
)

const profileColumns = `id, username, profile_url, bio, is_private, follower_count, following_count, post_count,
	verified, last_scraped_at, created_at, updated_at`

const postColumns = `id, profile_id, post_url, caption, like_count, comment_count, share_count, save_count,
	posted_at, created_at, updated_at`

const interactionColumns = `id, post_id, profile_id, interaction_type, user_username, user_url, user_bio,
	user_is_private, comment_text, comment_likes, comment_replies, aggregate_count, created_at`

// === プロフィール ===

// FindProfileByUsername はusernameでプロフィールを検索します
func (r *Repository) FindProfileByUsername(ctx context.Context, username string) (mo.Option[*domain.Profile], error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE username = $1`
	return r.findProfile(ctx, query, username)
}

// FindProfileByURL はプロフィールURLでプロフィールを検索します
func (r *Repository) FindProfileByURL(ctx context.Context, url string) (mo.Option[*domain.Profile], error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE profile_url = $1 ORDER BY updated_at DESC LIMIT 1`
	return r.findProfile(ctx, query, url)
}

func (r *Repository) findProfile(ctx context.Context, query string, arg any) (mo.Option[*domain.Profile], error) {
	profile, err := scanProfile(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return mo.None[*domain.Profile](), nil
		}
		return mo.None[*domain.Profile](), fmt.Errorf("failed to get profile: %w", err)
	}
	return mo.Some(profile), nil
}

// CreateProfile はプロフィールを作成します
func (r *Repository) CreateProfile(ctx context.Context, profile *domain.Profile) error {
	if profile.ID == uuid.Nil {
		profile.ID = uuid.New()
	}

	query := `
		INSERT INTO profiles (id, username, profile_url, bio, is_private, follower_count, following_count,
			post_count, verified, last_scraped_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query,
		profile.ID,
		profile.Username,
		profile.URL,
		profile.Bio,
		profile.IsPrivate,
		profile.FollowerCount,
		profile.FollowingCount,
		profile.PostCount,
		profile.Verified,
		profile.LastScrapedAt,
	).Scan(&profile.CreatedAt, &profile.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}
	return nil
}

// UpdateProfile はプロフィールの可変フィールドを更新します
func (r *Repository) UpdateProfile(ctx context.Context, profile *domain.Profile) error {
	query := `
		UPDATE profiles
		SET profile_url = $2, bio = $3, is_private = $4, follower_count = $5, following_count = $6,
			post_count = $7, verified = $8, last_scraped_at = $9, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query,
		profile.ID,
		profile.URL,
		profile.Bio,
		profile.IsPrivate,
		profile.FollowerCount,
		profile.FollowingCount,
		profile.PostCount,
		profile.Verified,
		profile.LastScrapedAt,
	).Scan(&profile.CreatedAt, &profile.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: %s", domain.ErrProfileNotFound, profile.ID)
		}
		return fmt.Errorf("failed to update profile: %w", err)
	}
	return nil
}

// === 投稿 ===

// FindPostByURL はpost_urlで投稿を検索します
func (r *Repository) FindPostByURL(ctx context.Context, postURL string) (mo.Option[*domain.Post], error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE post_url = $1`

	post, err := scanPost(r.db.QueryRow(ctx, query, postURL))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return mo.None[*domain.Post](), nil
		}
		return mo.None[*domain.Post](), fmt.Errorf("failed to get post: %w", err)
	}
	return mo.Some(post), nil
}

// CreatePost は投稿を作成します
func (r *Repository) CreatePost(ctx context.Context, post *domain.Post) error {
	if post.ID == uuid.Nil {
		post.ID = uuid.New()
	}

	query := `
		INSERT INTO posts (id, profile_id, post_url, caption, like_count, comment_count, share_count, save_count, posted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query,
		post.ID,
		post.ProfileID,
		post.PostURL,
		post.Caption,
		post.LikeCount,
		post.CommentCount,
		post.ShareCount,
		post.SaveCount,
		post.PostedAt,
	).Scan(&post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create post: %w", err)
	}
	return nil
}

// ListPostsByProfile はプロフィールの投稿を作成順に返します
func (r *Repository) ListPostsByProfile(ctx context.Context, profileID uuid.UUID, page domain.Page) ([]*domain.Post, error) {
	query := `
		SELECT ` + postColumns + `
		FROM posts
		WHERE profile_id = $1
		ORDER BY created_at, id
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, profileID, limitArg(page), page.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	defer rows.Close()

	posts := make([]*domain.Post, 0)
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate posts: %w", err)
	}
	return posts, nil
}

// === インタラクション ===

// FindInteraction は (投稿, user_url, 種別) でユーザー単位のインタラクションを検索します
// いいね集計行は対象外です
func (r *Repository) FindInteraction(ctx context.Context, postID uuid.UUID, userURL string, interactionType domain.InteractionType) (mo.Option[*domain.Interaction], error) {
	query := `
		SELECT ` + interactionColumns + `
		FROM interactions
		WHERE post_id = $1 AND user_url = $2 AND interaction_type = $3 AND aggregate_count IS NULL
		LIMIT 1
	`

	interaction, err := scanInteraction(r.db.QueryRow(ctx, query, postID, userURL, string(interactionType)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return mo.None[*domain.Interaction](), nil
		}
		return mo.None[*domain.Interaction](), fmt.Errorf("failed to get interaction: %w", err)
	}
	return mo.Some(interaction), nil
}

// CreateInteraction はインタラクションを作成します
func (r *Repository) CreateInteraction(ctx context.Context, interaction *domain.Interaction) error {
	if interaction.ID == uuid.Nil {
		interaction.ID = uuid.New()
	}

	query := `
		INSERT INTO interactions (id, post_id, profile_id, interaction_type, user_username, user_url, user_bio,
			user_is_private, comment_text, comment_likes, comment_replies, aggregate_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at
	`

	err := r.db.QueryRow(ctx, query,
		interaction.ID,
		interaction.PostID,
		interaction.ProfileID,
		string(interaction.Type),
		interaction.UserUsername,
		interaction.UserURL,
		interaction.UserBio,
		interaction.UserIsPrivate,
		interaction.CommentText,
		interaction.CommentLikes,
		interaction.CommentReplies,
		interaction.AggregateCount,
	).Scan(&interaction.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create interaction: %w", err)
	}
	return nil
}

// ListInteractionsByProfile はプロフィールのインタラクションを作成順に返します
func (r *Repository) ListInteractionsByProfile(ctx context.Context, profileID uuid.UUID, page domain.Page) ([]*domain.Interaction, error) {
	query := `
		SELECT ` + interactionColumns + `
		FROM interactions
		WHERE profile_id = $1
		ORDER BY created_at, id
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, profileID, limitArg(page), page.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list interactions: %w", err)
	}
	defer rows.Close()

	interactions := make([]*domain.Interaction, 0)
	for rows.Next() {
		interaction, err := scanInteraction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan interaction: %w", err)
		}
		interactions = append(interactions, interaction)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate interactions: %w", err)
	}
	return interactions, nil
}

// === セッション状態 ===

// LoadSessionState は保存済みのセッション状態を返します
func (r *Repository) LoadSessionState(ctx context.Context, name string) (mo.Option[[]byte], error) {
	var state []byte
	err := r.db.QueryRow(ctx, `SELECT state FROM session_states WHERE name = $1`, name).Scan(&state)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return mo.None[[]byte](), nil
		}
		return mo.None[[]byte](), fmt.Errorf("failed to load session state: %w", err)
	}
	return mo.Some(state), nil
}

// SaveSessionState はセッション状態を保存します
func (r *Repository) SaveSessionState(ctx context.Context, name string, state []byte) error {
	query := `
		INSERT INTO session_states (name, state)
		VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET
			state = EXCLUDED.state,
			updated_at = CURRENT_TIMESTAMP
	`
	if _, err := r.db.Exec(ctx, query, name, string(state)); err != nil {
		return fmt.Errorf("failed to save session state: %w", err)
	}
	return nil
}
