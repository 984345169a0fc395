package server

import (
	"time"

	jobapp "github.com/jinford/profile-scraper/internal/module/job/application"
	jobdomain "github.com/jinford/profile-scraper/internal/module/job/domain"
	scraping "github.com/jinford/profile-scraper/internal/module/scraping/domain"
)

// ScrapeRequest はジョブ登録のリクエスト
type ScrapeRequest struct {
	ProfileURL string `json:"profile_url" validate:"required"`
}

// RecentLikesRequest は直近いいね取得のリクエスト
// 省略された値はサーバの既定値を使用します
type RecentLikesRequest struct {
	ProfileURL           string `json:"profile_url" validate:"required"`
	MaxPosts             int    `json:"max_posts" validate:"omitempty,gte=1,lte=50"`
	WindowHours          int    `json:"window_hours" validate:"omitempty,gte=1,lte=720"`
	MaxLikeUsersPerPost  int    `json:"max_like_users_per_post" validate:"omitempty,gte=1,lte=500"`
	CollectLikerProfiles *bool  `json:"collect_liker_profiles"`
	Persist              bool   `json:"persist"`
}

// JobResponse はジョブの状態
type JobResponse struct {
	ID                  string     `json:"id"`
	ProfileURL          string     `json:"profile_url"`
	Status              string     `json:"status"`
	StartedAt           *time.Time `json:"started_at"`
	CompletedAt         *time.Time `json:"completed_at"`
	ErrorMessage        *string    `json:"error_message"`
	PostsScraped        int        `json:"posts_scraped"`
	InteractionsScraped int        `json:"interactions_scraped"`
	CreatedAt           time.Time  `json:"created_at"`
}

func newJobResponse(job *jobdomain.Job) JobResponse {
	return JobResponse{
		ID:                  job.ID.String(),
		ProfileURL:          job.ProfileURL,
		Status:              string(job.Status),
		StartedAt:           job.StartedAt,
		CompletedAt:         job.CompletedAt,
		ErrorMessage:        job.ErrorMessage,
		PostsScraped:        job.PostsScraped,
		InteractionsScraped: job.InteractionsScraped,
		CreatedAt:           job.CreatedAt,
	}
}

// ResultInteraction は結果ツリー内のインタラクション
type ResultInteraction struct {
	Type         string  `json:"type"`
	UserURL      string  `json:"user_url"`
	UserUsername string  `json:"user_username"`
	UserBio      *string `json:"user_bio"`
	IsPrivate    bool    `json:"is_private"`
	CommentText  *string `json:"comment_text"`
	Count        *int    `json:"count,omitempty"`
}

// ResultPost は結果ツリー内の投稿
type ResultPost struct {
	PostURL      string              `json:"post_url"`
	Caption      *string             `json:"caption"`
	LikeCount    int                 `json:"like_count"`
	CommentCount int                 `json:"comment_count"`
	Interactions []ResultInteraction `json:"interactions"`
}

// ResultProfile は結果ツリーのルート
type ResultProfile struct {
	Username      string       `json:"username"`
	ProfileURL    string       `json:"profile_url"`
	Bio           *string      `json:"bio"`
	IsPrivate     bool         `json:"is_private"`
	FollowerCount *int         `json:"follower_count"`
	Posts         []ResultPost `json:"posts"`
}

// ScrapeResultsResponse は完了したジョブの結果
type ScrapeResultsResponse struct {
	JobID             string        `json:"job_id"`
	Status            string        `json:"status"`
	Profile           ResultProfile `json:"profile"`
	TotalPosts        int           `json:"total_posts"`
	TotalInteractions int           `json:"total_interactions"`
	ErrorMessage      *string       `json:"error_message"`
	CompletedAt       *time.Time    `json:"completed_at"`
}

func newScrapeResultsResponse(result *jobapp.Result) ScrapeResultsResponse {
	tree := result.Tree
	profile := ResultProfile{
		Username:      tree.Profile.Username,
		ProfileURL:    tree.Profile.URL,
		Bio:           tree.Profile.Bio,
		IsPrivate:     tree.Profile.IsPrivate,
		FollowerCount: tree.Profile.FollowerCount,
		Posts:         make([]ResultPost, 0, len(tree.Posts)),
	}
	for _, p := range tree.Posts {
		post := ResultPost{
			PostURL:      p.Post.PostURL,
			Caption:      p.Post.Caption,
			LikeCount:    p.Post.LikeCount,
			CommentCount: p.Post.CommentCount,
			Interactions: make([]ResultInteraction, 0, len(p.Interactions)),
		}
		for _, i := range p.Interactions {
			post.Interactions = append(post.Interactions, ResultInteraction{
				Type:         string(i.Type),
				UserURL:      i.UserURL,
				UserUsername: i.UserUsername,
				UserBio:      i.UserBio,
				IsPrivate:    i.UserIsPrivate != nil && *i.UserIsPrivate,
				CommentText:  i.CommentText,
				Count:        i.AggregateCount,
			})
		}
		profile.Posts = append(profile.Posts, post)
	}

	return ScrapeResultsResponse{
		JobID:             result.Job.ID.String(),
		Status:            string(result.Job.Status),
		Profile:           profile,
		TotalPosts:        tree.TotalPosts,
		TotalInteractions: tree.TotalInteractions,
		ErrorMessage:      result.Job.ErrorMessage,
		CompletedAt:       result.Job.CompletedAt,
	}
}

// ProfileResponse は保存済みプロフィール
type ProfileResponse struct {
	ID             string     `json:"id"`
	Username       string     `json:"instagram_username"`
	URL            string     `json:"instagram_url"`
	Bio            *string    `json:"bio"`
	IsPrivate      bool       `json:"is_private"`
	FollowerCount  *int       `json:"follower_count"`
	FollowingCount *int       `json:"following_count"`
	PostCount      *int       `json:"post_count"`
	Verified       bool       `json:"verified"`
	LastScrapedAt  *time.Time `json:"last_scraped_at"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func newProfileResponse(p *scraping.Profile) ProfileResponse {
	return ProfileResponse{
		ID:             p.ID.String(),
		Username:       p.Username,
		URL:            p.URL,
		Bio:            p.Bio,
		IsPrivate:      p.IsPrivate,
		FollowerCount:  p.FollowerCount,
		FollowingCount: p.FollowingCount,
		PostCount:      p.PostCount,
		Verified:       p.Verified,
		LastScrapedAt:  p.LastScrapedAt,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

// PostResponse は保存済み投稿
type PostResponse struct {
	ID           string    `json:"id"`
	ProfileID    string    `json:"profile_id"`
	PostURL      string    `json:"post_url"`
	Caption      *string   `json:"caption"`
	LikeCount    int       `json:"like_count"`
	CommentCount int       `json:"comment_count"`
	ShareCount   int       `json:"share_count"`
	SaveCount    int       `json:"save_count"`
	PostedAt     *string   `json:"posted_at"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func newPostResponse(p *scraping.Post) PostResponse {
	return PostResponse{
		ID:           p.ID.String(),
		ProfileID:    p.ProfileID.String(),
		PostURL:      p.PostURL,
		Caption:      p.Caption,
		LikeCount:    p.LikeCount,
		CommentCount: p.CommentCount,
		ShareCount:   p.ShareCount,
		SaveCount:    p.SaveCount,
		PostedAt:     p.PostedAt,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

// InteractionResponse は保存済みインタラクション
type InteractionResponse struct {
	ID              string    `json:"id"`
	PostID          string    `json:"post_id"`
	ProfileID       string    `json:"profile_id"`
	InteractionType string    `json:"interaction_type"`
	UserUsername    string    `json:"user_username"`
	UserURL         string    `json:"user_url"`
	UserBio         *string   `json:"user_bio"`
	UserIsPrivate   bool      `json:"user_is_private"`
	CommentText     *string   `json:"comment_text"`
	CommentLikes    *int      `json:"comment_likes"`
	CommentReplies  *int      `json:"comment_replies"`
	AggregateCount  *int      `json:"aggregate_count,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

func newInteractionResponse(i *scraping.Interaction) InteractionResponse {
	return InteractionResponse{
		ID:              i.ID.String(),
		PostID:          i.PostID.String(),
		ProfileID:       i.ProfileID.String(),
		InteractionType: string(i.Type),
		UserUsername:    i.UserUsername,
		UserURL:         i.UserURL,
		UserBio:         i.UserBio,
		UserIsPrivate:   i.UserIsPrivate != nil && *i.UserIsPrivate,
		CommentText:     i.CommentText,
		CommentLikes:    i.CommentLikes,
		CommentReplies:  i.CommentReplies,
		AggregateCount:  i.AggregateCount,
		CreatedAt:       i.CreatedAt,
	}
}
