package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jinford/profile-scraper/internal/module/scraping/domain"
	"github.com/jinford/profile-scraper/internal/shared/lenientjson"
)

const profileBaseURL = "https://instagram.com/"

// AIExtractor はスクリーンショットを画像解析モデルで読み取るContentExtractorです
type AIExtractor struct {
	vision VisionClient
	log    *slog.Logger
}

// NewAIExtractor は新しいAIExtractorを作成します
func NewAIExtractor(vision VisionClient, log *slog.Logger) *AIExtractor {
	if log == nil {
		log = slog.Default()
	}
	return &AIExtractor{vision: vision, log: log}
}

var _ domain.ContentExtractor = (*AIExtractor)(nil)

// ExtractProfileInfo はプロフィール画面からプロフィール情報を抽出します
func (e *AIExtractor) ExtractProfileInfo(ctx context.Context, screenshot, html string) (*domain.ProfileInfo, error) {
	var info domain.ProfileInfo
	if err := e.analyze(ctx, profileInfoPrompt, screenshot, "", &info); err != nil {
		return nil, fmt.Errorf("failed to extract profile info: %w", err)
	}
	info.Username = strings.TrimPrefix(strings.TrimSpace(info.Username), "@")
	return &info, nil
}

// ExtractComments は投稿画面からコメントを抽出します
// ユーザー名の無いコメントは除外し、URLが無い場合はユーザー名から補完します
func (e *AIExtractor) ExtractComments(ctx context.Context, screenshot string) ([]domain.Comment, error) {
	var payload struct {
		Comments []struct {
			UserUsername   string  `json:"user_username"`
			UserURL        *string `json:"user_url"`
			CommentText    string  `json:"comment_text"`
			CommentLikes   int     `json:"comment_likes"`
			CommentReplies int     `json:"comment_replies"`
		} `json:"comments"`
	}
	if err := e.analyze(ctx, commentsPrompt, screenshot, "comments", &payload); err != nil {
		return nil, fmt.Errorf("failed to extract comments: %w", err)
	}

	comments := make([]domain.Comment, 0, len(payload.Comments))
	for _, c := range payload.Comments {
		username := strings.TrimPrefix(strings.TrimSpace(c.UserUsername), "@")
		if username == "" {
			continue
		}
		userURL := profileBaseURL + username
		if c.UserURL != nil && strings.HasPrefix(*c.UserURL, "http") {
			userURL = *c.UserURL
		}
		comments = append(comments, domain.Comment{
			UserURL:        userURL,
			UserUsername:   username,
			CommentText:    c.CommentText,
			CommentLikes:   c.CommentLikes,
			CommentReplies: c.CommentReplies,
		})
	}
	return comments, nil
}

// ExtractUserInfo はユーザーのプロフィール画面から付加情報を抽出します
func (e *AIExtractor) ExtractUserInfo(ctx context.Context, screenshot, html, username string) (*domain.UserInfo, error) {
	var info domain.UserInfo
	if err := e.analyze(ctx, fmt.Sprintf(userInfoPrompt, username), screenshot, "", &info); err != nil {
		return nil, fmt.Errorf("failed to extract user info for %s: %w", username, err)
	}
	return &info, nil
}

// analyze は画像解析を実行し、応答をdestにデコードします
// 応答が前後に余分なテキストを含む場合は listKey を手がかりにJSONオブジェクトを探します
func (e *AIExtractor) analyze(ctx context.Context, prompt, screenshot, listKey string, dest any) error {
	if screenshot == "" {
		return fmt.Errorf("empty screenshot")
	}

	content, err := e.vision.AnalyzeImage(ctx, prompt, screenshot)
	if err != nil {
		return err
	}

	content = stripCodeFence(content)
	if err := json.Unmarshal([]byte(content), dest); err == nil {
		return nil
	}

	if listKey != "" {
		if obj, ok := lenientjson.FindObject(content, listKey, lenientjson.DefaultMaxScan); ok {
			if err := json.Unmarshal(obj, dest); err == nil {
				e.log.Debug("Recovered JSON object from model output", "key", listKey)
				return nil
			}
		}
	}

	return fmt.Errorf("model returned non-JSON output: %q", excerpt(content, 200))
}

// stripCodeFence はMarkdownのコードブロックで囲まれた応答から中身を取り出します
func stripCodeFence(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return content
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimPrefix(trimmed, "json")
	trimmed = strings.TrimSuffix(trimmed, "```")
	return strings.TrimSpace(trimmed)
}

func excerpt(s string, limit int) string {
	s = strings.TrimSpace(s)
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
