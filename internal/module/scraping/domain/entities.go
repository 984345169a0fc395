package domain

import (
	"time"

	"github.com/google/uuid"
)

// InteractionType は投稿に対するインタラクションの種別
type InteractionType string

const (
	InteractionTypeLike    InteractionType = "like"
	InteractionTypeComment InteractionType = "comment"
	InteractionTypeShare   InteractionType = "share"
	InteractionTypeSave    InteractionType = "save"
)

// IsValid は既知の種別かどうかを返します
func (t InteractionType) IsValid() bool {
	switch t {
	case InteractionTypeLike, InteractionTypeComment, InteractionTypeShare, InteractionTypeSave:
		return true
	default:
		return false
	}
}

// Profile はスクレイピング対象のプロフィールを表します
// username で一意であり、再取得時は同じ行が更新されます
type Profile struct {
	ID             uuid.UUID
	Username       string
	URL            string
	Bio            *string
	IsPrivate      bool
	FollowerCount  *int
	FollowingCount *int
	PostCount      *int
	Verified       bool
	LastScrapedAt  *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Post はプロフィールに属する投稿を表します
// post_url で一意です
type Post struct {
	ID           uuid.UUID
	ProfileID    uuid.UUID
	PostURL      string
	Caption      *string
	LikeCount    int
	CommentCount int
	ShareCount   int
	SaveCount    int
	// PostedAt は取得元により相対時刻文字列またはタイムスタンプ文字列
	PostedAt  *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Interaction は投稿に対するユーザーのインタラクションを表します
type Interaction struct {
	ID             uuid.UUID
	PostID         uuid.UUID
	ProfileID      uuid.UUID
	Type           InteractionType
	UserUsername   string
	UserURL        string
	UserBio        *string
	UserIsPrivate  *bool
	CommentText    *string
	CommentLikes   *int
	CommentReplies *int
	// AggregateCount は件数のみを記録するいいね集計行で設定されます
	AggregateCount *int
	CreatedAt      time.Time
}

// IsAggregate は件数のみの集計行かどうかを返します
func (i *Interaction) IsAggregate() bool {
	return i.AggregateCount != nil
}
