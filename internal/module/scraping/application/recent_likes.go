package application

import (
	"context"
	"fmt"

	automation "github.com/jinford/profile-scraper/internal/module/automation/domain"
	"github.com/jinford/profile-scraper/internal/module/scraping/domain"
)

// ScrapeRecentLikes は直近の投稿について、時間枠内のものだけいいねしたユーザーを列挙します
// CollectLikerProfiles が true の場合は各ユーザーのプロフィールも抽出し、失敗はユーザーごとに記録します
func (o *Orchestrator) ScrapeRecentLikes(ctx context.Context, profileURL string, opts domain.RecentLikesOptions, store domain.Store) (*domain.RecentLikesResult, error) {
	profileURL, err := domain.NormalizeProfileURL(profileURL)
	if err != nil {
		return nil, err
	}
	username := domain.UsernameFromURL(profileURL)
	log := o.log.With("profileURL", profileURL, "flow", "recent_likes")
	log.Info("Starting recent likes scrape",
		"maxPosts", opts.MaxPosts,
		"windowHours", opts.WindowHours,
		"maxLikeUsersPerPost", opts.MaxLikeUsersPerPost,
	)

	state, cookies, err := o.acquireSession(ctx, store)
	if err != nil {
		return nil, err
	}

	var conditions []domain.SoftCondition
	postsOutcome := o.enumeratePosts(ctx, profileURL, state, opts.MaxPosts)
	posts, err := postsOutcome.Unwrap()
	if err != nil {
		return nil, err
	}
	if condition, ok := postsOutcome.Condition(phasePosts, profileURL); ok {
		log.Warn("Post enumeration reported a soft condition", "code", condition.Code, "detail", condition.Message)
		conditions = append(conditions, condition)
	}

	var (
		recentPosts    = make([]domain.RecentPost, 0, len(posts))
		totalRecent    int
		totalLikeUsers int
	)

	for _, post := range posts {
		isRecent := o.recency.IsRecentPost(post.PostedAt, opts.WindowHours)
		if isRecent {
			totalRecent++
		}

		payload := domain.RecentPost{
			PostURL:       post.PostURL,
			Caption:       post.Caption,
			LikeCount:     post.LikeCount,
			CommentCount:  post.CommentCount,
			PostedAt:      post.PostedAt,
			IsRecent:      isRecent,
			LikeUsers:     []string{},
			LikeUsersData: []domain.LikerProfile{},
		}

		if !isRecent {
			payload.Error = string(domain.SoftOutOfWindow)
			recentPosts = append(recentPosts, payload)
			continue
		}

		likes, err := o.navigator.ScrapePostLikeUsers(ctx, post.PostURL, state, opts.MaxLikeUsersPerPost)
		if err != nil {
			return nil, fmt.Errorf("failed to scrape like users for %s: %w", post.PostURL, err)
		}
		if likes != nil {
			payload.LikesAccessible = likes.LikesAccessible
			payload.Error = likes.Error
			payload.LikeUsers = dedupLikers(likes.LikeUsers, opts.MaxLikeUsersPerPost)
			if condition, ok := likesCondition(likes).Condition(phaseLikes, post.PostURL); ok {
				conditions = append(conditions, condition)
			}
		}
		totalLikeUsers += len(payload.LikeUsers)

		if opts.CollectLikerProfiles {
			for _, userURL := range payload.LikeUsers {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				payload.LikeUsersData = append(payload.LikeUsersData, o.enrichLiker(ctx, userURL, cookies))
			}
		}

		recentPosts = append(recentPosts, payload)
	}

	if opts.PersistLikers && store != nil {
		if err := o.persistLikers(ctx, store, profileURL, username, posts, recentPosts); err != nil {
			return nil, err
		}
	}

	result := &domain.RecentLikesResult{
		Profile: domain.ProfileSummary{
			Username:   username,
			ProfileURL: profileURL,
		},
		Posts:      recentPosts,
		Conditions: conditions,
		Summary: domain.RecentLikesSummary{
			TotalPosts:     len(recentPosts),
			RecentPosts:    totalRecent,
			TotalLikeUsers: totalLikeUsers,
			ScrapedAt:      o.now().UTC(),
		},
	}

	log.Info("Recent likes scrape completed",
		"posts", result.Summary.TotalPosts,
		"recentPosts", totalRecent,
		"likeUsers", totalLikeUsers,
	)
	return result, nil
}

// likesCondition はいいね一覧の取得結果をOutcomeに変換します
func likesCondition(res *domain.LikeUsersResult) domain.Outcome[[]string] {
	switch {
	case res.Error != "":
		return domain.Soft(domain.SoftCode(res.Error), res.LikeUsers, "")
	case !res.LikesAccessible:
		return domain.Soft(domain.SoftLikesUnavailable, res.LikeUsers, "like list is not accessible")
	default:
		return domain.Ok(res.LikeUsers)
	}
}

// dedupLikers は初出順を保って重複と空文字を除き、最大件数で切り詰めます
func dedupLikers(users []string, maxUsers int) []string {
	seen := make(map[string]struct{}, len(users))
	deduped := make([]string, 0, len(users))
	for _, u := range users {
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		deduped = append(deduped, u)
		if maxUsers > 0 && len(deduped) >= maxUsers {
			break
		}
	}
	return deduped
}

// enrichLiker はユーザーのプロフィールをキャプチャして情報を抽出します
// 失敗した場合もエラーを返さず、LikerProfile.Error に記録します
func (o *Orchestrator) enrichLiker(ctx context.Context, userURL string, cookies []automation.Cookie) domain.LikerProfile {
	liker := domain.LikerProfile{
		UserURL:      userURL,
		UserUsername: domain.UsernameFromURL(userURL),
	}

	screenshot, html, err := o.capturePage(ctx, userURL, cookies)
	if err != nil {
		o.log.Warn("Failed to enrich liker profile", "userURL", userURL, "error", err)
		liker.Error = err.Error()
		return liker
	}

	info, err := o.extractor.ExtractUserInfo(ctx, screenshot, html, liker.UserUsername)
	if err != nil {
		o.log.Warn("Failed to enrich liker profile", "userURL", userURL, "error", err)
		liker.Error = err.Error()
		return liker
	}
	if info != nil {
		liker.Bio = info.Bio
		liker.IsPrivate = info.IsPrivate
		liker.FollowerCount = info.FollowerCount
		liker.Verified = info.Verified
		liker.Confidence = info.Confidence
	}
	return liker
}

// persistLikers は列挙した投稿といいねユーザーを保存します
func (o *Orchestrator) persistLikers(ctx context.Context, store domain.Store, profileURL, username string, posts []domain.PostData, recentPosts []domain.RecentPost) error {
	profile, err := store.EnsureProfile(ctx, profileURL, username)
	if err != nil {
		return fmt.Errorf("failed to ensure profile: %w", err)
	}

	var interactions []domain.InteractionData
	for _, rp := range recentPosts {
		enriched := make(map[string]domain.LikerProfile, len(rp.LikeUsersData))
		for _, data := range rp.LikeUsersData {
			enriched[data.UserURL] = data
		}

		for _, userURL := range rp.LikeUsers {
			interaction := domain.InteractionData{
				PostURL:      rp.PostURL,
				Type:         domain.InteractionTypeLike,
				UserURL:      userURL,
				UserUsername: domain.UsernameFromURL(userURL),
			}
			if data, ok := enriched[userURL]; ok && data.Error == "" {
				interaction.UserBio = data.Bio
				interaction.UserIsPrivate = data.IsPrivate
			}
			interactions = append(interactions, interaction)
		}
	}

	if _, err := store.SavePostsAndInteractions(ctx, profile, posts, interactions); err != nil {
		return fmt.Errorf("failed to save like users: %w", err)
	}
	return nil
}
