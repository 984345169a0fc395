package extractor_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/profile-scraper/internal/module/scraping/adapter/extractor"
	"github.com/jinford/profile-scraper/internal/module/scraping/domain"
	scrapingtesting "github.com/jinford/profile-scraper/internal/module/scraping/testing"
)

func TestFallbackExtractor(t *testing.T) {
	tests := []struct {
		name         string
		primaryErr   error
		wantUsername string
	}{
		{
			name:         "primaryが成功すればそのまま返す",
			wantUsername: "from-primary",
		},
		{
			name:         "primaryが失敗すればsecondaryを使う",
			primaryErr:   errors.New("vision unavailable"),
			wantUsername: "from-secondary",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Setup
			primary := &scrapingtesting.MockContentExtractor{
				ExtractProfileInfoFunc: func(ctx context.Context, screenshot, html string) (*domain.ProfileInfo, error) {
					if tt.primaryErr != nil {
						return nil, tt.primaryErr
					}
					return &domain.ProfileInfo{Username: "from-primary"}, nil
				},
			}
			secondary := &scrapingtesting.MockContentExtractor{
				ExtractProfileInfoFunc: func(ctx context.Context, screenshot, html string) (*domain.ProfileInfo, error) {
					return &domain.ProfileInfo{Username: "from-secondary"}, nil
				},
			}
			e := extractor.NewFallbackExtractor(primary, secondary, testLogger())

			// Execute
			info, err := e.ExtractProfileInfo(context.Background(), "aW1n", "")

			// Assert
			require.NoError(t, err)
			assert.Equal(t, tt.wantUsername, info.Username)
		})
	}
}

func TestFallbackExtractor_CancelledContext(t *testing.T) {
	// Setup
	errPrimary := errors.New("cancelled")
	secondaryCalled := false
	primary := &scrapingtesting.MockContentExtractor{
		ExtractCommentsFunc: func(ctx context.Context, screenshot string) ([]domain.Comment, error) {
			return nil, errPrimary
		},
	}
	secondary := &scrapingtesting.MockContentExtractor{
		ExtractCommentsFunc: func(ctx context.Context, screenshot string) ([]domain.Comment, error) {
			secondaryCalled = true
			return nil, nil
		},
	}
	e := extractor.NewFallbackExtractor(primary, secondary, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Execute
	_, err := e.ExtractComments(ctx, "aW1n")

	// Assert
	assert.ErrorIs(t, err, errPrimary)
	assert.False(t, secondaryCalled)
}
