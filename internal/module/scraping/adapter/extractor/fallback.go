package extractor

import (
	"context"
	"log/slog"

	"github.com/jinford/profile-scraper/internal/module/scraping/domain"
)

// FallbackExtractor は primary が失敗した場合に secondary で抽出をやり直すContentExtractorです
type FallbackExtractor struct {
	primary   domain.ContentExtractor
	secondary domain.ContentExtractor
	log       *slog.Logger
}

// NewFallbackExtractor は新しいFallbackExtractorを作成します
func NewFallbackExtractor(primary, secondary domain.ContentExtractor, log *slog.Logger) *FallbackExtractor {
	if log == nil {
		log = slog.Default()
	}
	return &FallbackExtractor{primary: primary, secondary: secondary, log: log}
}

var _ domain.ContentExtractor = (*FallbackExtractor)(nil)

func (e *FallbackExtractor) ExtractProfileInfo(ctx context.Context, screenshot, html string) (*domain.ProfileInfo, error) {
	info, err := e.primary.ExtractProfileInfo(ctx, screenshot, html)
	if err == nil {
		return info, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}
	e.log.Warn("Primary extractor failed, falling back", "operation", "profile_info", "error", err)
	return e.secondary.ExtractProfileInfo(ctx, screenshot, html)
}

func (e *FallbackExtractor) ExtractComments(ctx context.Context, screenshot string) ([]domain.Comment, error) {
	comments, err := e.primary.ExtractComments(ctx, screenshot)
	if err == nil {
		return comments, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}
	e.log.Warn("Primary extractor failed, falling back", "operation", "comments", "error", err)
	return e.secondary.ExtractComments(ctx, screenshot)
}

func (e *FallbackExtractor) ExtractUserInfo(ctx context.Context, screenshot, html, username string) (*domain.UserInfo, error) {
	info, err := e.primary.ExtractUserInfo(ctx, screenshot, html, username)
	if err == nil {
		return info, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}
	e.log.Warn("Primary extractor failed, falling back", "operation", "user_info", "username", username, "error", err)
	return e.secondary.ExtractUserInfo(ctx, screenshot, html, username)
}
