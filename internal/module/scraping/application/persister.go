package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/samber/mo"

	"github.com/jinford/profile-scraper/internal/module/scraping/domain"
)

// Persister は UnitOfWork 上でプロフィール・投稿・インタラクションを冪等に保存する domain.Store 実装です
//   - プロフィールは username をキーに upsert
//   - 投稿は post_url をキーに、既存があればその ID を再利用
//   - コメント等のユーザー単位のインタラクションは (投稿, user_url, 種別) で重複排除
//   - いいね集計行は重複排除せず追記
type Persister struct {
	uow      domain.UnitOfWork
	sessions domain.SessionStore
	now      func() time.Time
	log      *slog.Logger
}

// NewPersister は新しいPersisterを作成します
// sessions が nil の場合、セッション状態は保存されません
func NewPersister(uow domain.UnitOfWork, sessions domain.SessionStore, log *slog.Logger) *Persister {
	if log == nil {
		log = slog.Default()
	}
	return &Persister{
		uow:      uow,
		sessions: sessions,
		now:      time.Now,
		log:      log,
	}
}

// SaveProfile はusernameをキーにプロフィールをupsertします
// 抽出結果にusernameが無い場合はURLから導出します
func (p *Persister) SaveProfile(ctx context.Context, profileURL string, info domain.ProfileInfo) (*domain.Profile, error) {
	username := info.Username
	if username == "" {
		username = domain.UsernameFromURL(profileURL)
	}
	if username == "" {
		return nil, domain.ErrMissingUsername
	}

	var saved *domain.Profile
	err := p.uow.Do(ctx, func(repo domain.ScrapeRepository) error {
		if err := repo.LockProfile(ctx, username); err != nil {
			return fmt.Errorf("failed to lock profile: %w", err)
		}
		existing, err := repo.FindProfileByUsername(ctx, username)
		if err != nil {
			return fmt.Errorf("failed to find profile: %w", err)
		}

		scrapedAt := p.now().UTC()

		if profile, ok := existing.Get(); ok {
			applyProfileInfo(profile, info)
			profile.URL = profileURL
			profile.LastScrapedAt = &scrapedAt
			if err := repo.UpdateProfile(ctx, profile); err != nil {
				return fmt.Errorf("failed to update profile: %w", err)
			}
			p.log.Info("Profile updated", "username", username, "profileID", profile.ID)
			saved = profile
			return nil
		}

		profile := &domain.Profile{
			ID:            uuid.New(),
			Username:      username,
			URL:           profileURL,
			LastScrapedAt: &scrapedAt,
		}
		applyProfileInfo(profile, info)
		if err := repo.CreateProfile(ctx, profile); err != nil {
			return fmt.Errorf("failed to create profile: %w", err)
		}
		p.log.Info("Profile created", "username", username, "profileID", profile.ID)
		saved = profile
		return nil
	})
	if err != nil {
		return nil, err
	}

	return saved, nil
}

// EnsureProfile は既存プロフィールをそのまま返し、無ければ作成します
func (p *Persister) EnsureProfile(ctx context.Context, profileURL, username string) (*domain.Profile, error) {
	if username == "" {
		username = domain.UsernameFromURL(profileURL)
	}
	if username == "" {
		return nil, domain.ErrMissingUsername
	}

	var saved *domain.Profile
	err := p.uow.Do(ctx, func(repo domain.ScrapeRepository) error {
		if err := repo.LockProfile(ctx, username); err != nil {
			return fmt.Errorf("failed to lock profile: %w", err)
		}
		existing, err := repo.FindProfileByUsername(ctx, username)
		if err != nil {
			return fmt.Errorf("failed to find profile: %w", err)
		}
		if profile, ok := existing.Get(); ok {
			saved = profile
			return nil
		}

		profile := &domain.Profile{
			ID:       uuid.New(),
			Username: username,
			URL:      profileURL,
		}
		if err := repo.CreateProfile(ctx, profile); err != nil {
			return fmt.Errorf("failed to create profile: %w", err)
		}
		saved = profile
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

func applyProfileInfo(profile *domain.Profile, info domain.ProfileInfo) {
	profile.Bio = info.Bio
	profile.IsPrivate = info.IsPrivate
	profile.FollowerCount = info.FollowerCount
	profile.FollowingCount = info.FollowingCount
	profile.PostCount = info.PostCount
	profile.Verified = info.Verified
}

// SavePostsAndInteractions は投稿とインタラクションを1トランザクションで保存します
// インタラクションは PostURL が一致する投稿にのみ関連付けられます
func (p *Persister) SavePostsAndInteractions(ctx context.Context, profile *domain.Profile, posts []domain.PostData, interactions []domain.InteractionData) (*domain.SaveStats, error) {
	if profile == nil {
		return nil, domain.ErrProfileNotFound
	}

	var stats domain.SaveStats
	err := p.uow.Do(ctx, func(repo domain.ScrapeRepository) error {
		stats = domain.SaveStats{}
		if err := repo.LockProfile(ctx, profile.Username); err != nil {
			return fmt.Errorf("failed to lock profile: %w", err)
		}
		postIDs := make(map[string]uuid.UUID, len(posts))

		for _, data := range posts {
			if data.PostURL == "" {
				continue
			}
			if _, seen := postIDs[data.PostURL]; seen {
				continue
			}

			id, created, err := p.upsertPost(ctx, repo, profile.ID, data)
			if err != nil {
				return err
			}
			postIDs[data.PostURL] = id
			if created {
				stats.PostsCreated++
			} else {
				stats.PostsReused++
			}
		}

		for _, data := range interactions {
			postID, ok := postIDs[data.PostURL]
			if !ok {
				p.log.Debug("Skipping interaction without matching post", "postURL", data.PostURL, "type", data.Type)
				stats.InteractionsSkipped++
				continue
			}

			created, err := p.saveInteraction(ctx, repo, profile.ID, postID, data)
			if err != nil {
				return err
			}
			if created {
				stats.InteractionsCreated++
			} else {
				stats.InteractionsSkipped++
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	p.log.Info("Posts and interactions saved",
		"profileID", profile.ID,
		"postsCreated", stats.PostsCreated,
		"postsReused", stats.PostsReused,
		"interactionsCreated", stats.InteractionsCreated,
		"interactionsSkipped", stats.InteractionsSkipped,
	)
	return &stats, nil
}

func (p *Persister) upsertPost(ctx context.Context, repo domain.ScrapeRepository, profileID uuid.UUID, data domain.PostData) (uuid.UUID, bool, error) {
	existing, err := repo.FindPostByURL(ctx, data.PostURL)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("failed to find post: %w", err)
	}
	if post, ok := existing.Get(); ok {
		return post.ID, false, nil
	}

	post := &domain.Post{
		ID:           uuid.New(),
		ProfileID:    profileID,
		PostURL:      data.PostURL,
		Caption:      data.Caption,
		LikeCount:    data.LikeCount,
		CommentCount: data.CommentCount,
		ShareCount:   data.ShareCount,
		SaveCount:    data.SaveCount,
		PostedAt:     data.PostedAt,
	}
	if err := repo.CreatePost(ctx, post); err != nil {
		return uuid.Nil, false, fmt.Errorf("failed to create post: %w", err)
	}
	return post.ID, true, nil
}

func (p *Persister) saveInteraction(ctx context.Context, repo domain.ScrapeRepository, profileID, postID uuid.UUID, data domain.InteractionData) (bool, error) {
	if !data.Type.IsValid() {
		return false, nil
	}

	interaction := &domain.Interaction{
		ID:            uuid.New(),
		PostID:        postID,
		ProfileID:     profileID,
		Type:          data.Type,
		UserUsername:  data.UserUsername,
		UserURL:       data.UserURL,
		UserBio:       data.UserBio,
		UserIsPrivate: data.UserIsPrivate,
	}

	// いいね集計行は追記のみ
	if data.Type == domain.InteractionTypeLike && data.Count != nil {
		interaction.AggregateCount = data.Count
		if err := repo.CreateInteraction(ctx, interaction); err != nil {
			return false, fmt.Errorf("failed to create like aggregate: %w", err)
		}
		return true, nil
	}

	existing, err := repo.FindInteraction(ctx, postID, data.UserURL, data.Type)
	if err != nil {
		return false, fmt.Errorf("failed to find interaction: %w", err)
	}
	if existing.IsPresent() {
		return false, nil
	}

	if data.Type == domain.InteractionTypeComment {
		interaction.CommentText = data.CommentText
		interaction.CommentLikes = &data.CommentLikes
		interaction.CommentReplies = &data.CommentReplies
	}

	if err := repo.CreateInteraction(ctx, interaction); err != nil {
		return false, fmt.Errorf("failed to create interaction: %w", err)
	}
	return true, nil
}

// LoadSessionState は保存済みのセッション状態を返します
func (p *Persister) LoadSessionState(ctx context.Context, name string) (mo.Option[[]byte], error) {
	if p.sessions == nil {
		return mo.None[[]byte](), nil
	}
	return p.sessions.LoadSessionState(ctx, name)
}

// SaveSessionState はセッション状態を保存します
func (p *Persister) SaveSessionState(ctx context.Context, name string, state []byte) error {
	if p.sessions == nil {
		return nil
	}
	return p.sessions.SaveSessionState(ctx, name, state)
}

var _ domain.Store = (*Persister)(nil)
