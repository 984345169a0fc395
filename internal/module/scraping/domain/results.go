package domain

import "time"

// ProfileInfo は画面から抽出されたプロフィール情報
type ProfileInfo struct {
	Username       string  `json:"username"`
	Bio            *string `json:"bio"`
	IsPrivate      bool    `json:"is_private"`
	FollowerCount  *int    `json:"follower_count"`
	FollowingCount *int    `json:"following_count"`
	PostCount      *int    `json:"post_count"`
	Verified       bool    `json:"verified"`
}

// Comment は投稿画面から抽出されたコメント
type Comment struct {
	UserURL        string `json:"user_url"`
	UserUsername   string `json:"user_username"`
	CommentText    string `json:"comment_text"`
	CommentLikes   int    `json:"comment_likes"`
	CommentReplies int    `json:"comment_replies"`
}

// UserInfo はいいねしたユーザーのプロフィール画面から抽出された情報
type UserInfo struct {
	Bio           *string  `json:"bio"`
	IsPrivate     *bool    `json:"is_private"`
	FollowerCount *int     `json:"follower_count"`
	Verified      *bool    `json:"verified"`
	Confidence    *float64 `json:"confidence"`
}

// PostData はナビゲーションで列挙された投稿
type PostData struct {
	PostURL      string  `json:"post_url"`
	Caption      *string `json:"caption,omitempty"`
	LikeCount    int     `json:"like_count"`
	CommentCount int     `json:"comment_count"`
	ShareCount   int     `json:"share_count,omitempty"`
	SaveCount    int     `json:"save_count,omitempty"`
	PostedAt     *string `json:"posted_at,omitempty"`
}

// InteractionData はスクレイピング結果に含まれるインタラクション
// PostURL で所属する投稿を示します
type InteractionData struct {
	PostURL        string          `json:"post_url"`
	Type           InteractionType `json:"type"`
	UserURL        string          `json:"user_url,omitempty"`
	UserUsername   string          `json:"user_username,omitempty"`
	UserBio        *string         `json:"user_bio,omitempty"`
	UserIsPrivate  *bool           `json:"user_is_private,omitempty"`
	CommentText    *string         `json:"comment_text,omitempty"`
	CommentLikes   int             `json:"comment_likes,omitempty"`
	CommentReplies int             `json:"comment_replies,omitempty"`
	// Count はいいね集計行の件数
	Count *int `json:"count,omitempty"`
}

// ProfileSummary は結果に含めるプロフィールの要約
type ProfileSummary struct {
	Username      string  `json:"username"`
	ProfileURL    string  `json:"profile_url"`
	Bio           *string `json:"bio,omitempty"`
	IsPrivate     bool    `json:"is_private"`
	FollowerCount *int    `json:"follower_count,omitempty"`
	Verified      bool    `json:"verified"`
}

// ScrapeSummary はスクレイピング結果の集計
type ScrapeSummary struct {
	TotalPosts        int       `json:"total_posts"`
	TotalInteractions int       `json:"total_interactions"`
	ScrapedAt         time.Time `json:"scraped_at"`
}

// ScrapeResult はプロフィールスクレイピングの結果
type ScrapeResult struct {
	Profile      ProfileSummary    `json:"profile"`
	Posts        []PostData        `json:"posts"`
	Interactions []InteractionData `json:"interactions"`
	Conditions   []SoftCondition   `json:"conditions,omitempty"`
	Summary      ScrapeSummary     `json:"summary"`
}

// SaveStats は永続化の結果件数
type SaveStats struct {
	PostsCreated        int
	PostsReused         int
	InteractionsCreated int
	InteractionsSkipped int
}

// RecentLikesOptions は直近いいね取得フローのオプション
type RecentLikesOptions struct {
	MaxPosts             int
	WindowHours          int
	MaxLikeUsersPerPost  int
	CollectLikerProfiles bool
	// PersistLikers が true でストアがある場合、列挙したユーザーをいいね行として保存します
	PersistLikers bool
}

// LikerProfile はいいねしたユーザーの付加情報
type LikerProfile struct {
	UserURL       string   `json:"user_url"`
	UserUsername  string   `json:"user_username"`
	Bio           *string  `json:"bio,omitempty"`
	IsPrivate     *bool    `json:"is_private,omitempty"`
	FollowerCount *int     `json:"follower_count,omitempty"`
	Verified      *bool    `json:"verified,omitempty"`
	Confidence    *float64 `json:"confidence,omitempty"`
	Error         string   `json:"error,omitempty"`
}

// RecentPost は直近いいね取得フローにおける投稿ごとの結果
type RecentPost struct {
	PostURL         string         `json:"post_url"`
	Caption         *string        `json:"caption,omitempty"`
	LikeCount       int            `json:"like_count"`
	CommentCount    int            `json:"comment_count"`
	PostedAt        *string        `json:"posted_at,omitempty"`
	IsRecent        bool           `json:"is_recent"`
	LikesAccessible bool           `json:"likes_accessible"`
	LikeUsers       []string       `json:"like_users"`
	LikeUsersData   []LikerProfile `json:"like_users_data"`
	Error           string         `json:"error,omitempty"`
}

// RecentLikesSummary は直近いいね取得フローの集計
type RecentLikesSummary struct {
	TotalPosts     int       `json:"total_posts"`
	RecentPosts    int       `json:"recent_posts"`
	TotalLikeUsers int       `json:"total_like_users"`
	ScrapedAt      time.Time `json:"scraped_at"`
}

// RecentLikesResult は直近いいね取得フローの結果
type RecentLikesResult struct {
	Profile    ProfileSummary     `json:"profile"`
	Posts      []RecentPost       `json:"posts"`
	Conditions []SoftCondition    `json:"conditions,omitempty"`
	Summary    RecentLikesSummary `json:"summary"`
}
