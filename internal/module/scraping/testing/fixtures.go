package testing

import (
	"fmt"

	"github.com/jinford/profile-scraper/internal/module/scraping/domain"
)

// StrPtr は文字列ポインタを返します
func StrPtr(s string) *string { return &s }

// IntPtr は整数ポインタを返します
func IntPtr(i int) *int { return &i }

// BoolPtr は真偽値ポインタを返します
func BoolPtr(b bool) *bool { return &b }

// NewTestProfileInfo はテスト用のプロフィール抽出結果を作成します
func NewTestProfileInfo(username string) *domain.ProfileInfo {
	return &domain.ProfileInfo{
		Username:      username,
		Bio:           StrPtr("hi"),
		IsPrivate:     false,
		FollowerCount: IntPtr(10),
	}
}

// NewTestPosts はテスト用の投稿を n 件作成します
func NewTestPosts(username string, n int) []domain.PostData {
	posts := make([]domain.PostData, 0, n)
	for i := 1; i <= n; i++ {
		posts = append(posts, domain.PostData{
			PostURL:      fmt.Sprintf("https://instagram.com/p/%s-%d/", username, i),
			Caption:      StrPtr(fmt.Sprintf("post %d", i)),
			LikeCount:    i * 10,
			CommentCount: i,
			PostedAt:     StrPtr(fmt.Sprintf("%d hours ago", i)),
		})
	}
	return posts
}

// NewTestComment はテスト用のコメントを作成します
func NewTestComment(username, text string) domain.Comment {
	return domain.Comment{
		UserURL:      "https://instagram.com/" + username,
		UserUsername: username,
		CommentText:  text,
		CommentLikes: 1,
	}
}
