package application_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/profile-scraper/internal/module/scraping/application"
	"github.com/jinford/profile-scraper/internal/module/scraping/domain"
	scrapingtesting "github.com/jinford/profile-scraper/internal/module/scraping/testing"
)

func TestPersister_SaveProfile(t *testing.T) {
	tests := []struct {
		name         string
		profileURL   string
		info         domain.ProfileInfo
		wantUsername string
		wantErr      error
	}{
		{
			name:         "抽出結果のusernameを使う",
			profileURL:   "https://instagram.com/alice",
			info:         domain.ProfileInfo{Username: "alice"},
			wantUsername: "alice",
		},
		{
			name:         "usernameが無ければURLから導出する",
			profileURL:   "https://instagram.com/bob/",
			info:         domain.ProfileInfo{},
			wantUsername: "bob",
		},
		{
			name:       "usernameを導出できない場合はエラー",
			profileURL: "",
			info:       domain.ProfileInfo{},
			wantErr:    domain.ErrMissingUsername,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Setup
			memory := scrapingtesting.NewMemoryStore()
			p := application.NewPersister(memory, nil, testLogger())

			// Execute
			profile, err := p.SaveProfile(context.Background(), tt.profileURL, tt.info)

			// Assert
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, memory.Profiles())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantUsername, profile.Username)
			assert.Equal(t, tt.profileURL, profile.URL)
			assert.Len(t, memory.Profiles(), 1)
		})
	}
}

func TestPersister_SaveProfile_Upsert(t *testing.T) {
	// Setup
	memory := scrapingtesting.NewMemoryStore()
	p := application.NewPersister(memory, nil, testLogger())
	ctx := context.Background()

	first, err := p.SaveProfile(ctx, "https://instagram.com/alice", domain.ProfileInfo{
		Username:      "alice",
		Bio:           scrapingtesting.StrPtr("first"),
		FollowerCount: scrapingtesting.IntPtr(1),
	})
	require.NoError(t, err)

	// Execute
	second, err := p.SaveProfile(ctx, "https://www.instagram.com/alice/", domain.ProfileInfo{
		Username:  "alice",
		Bio:       scrapingtesting.StrPtr("second"),
		IsPrivate: true,
	})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	profiles := memory.Profiles()
	require.Len(t, profiles, 1)
	assert.Equal(t, "second", *profiles[0].Bio)
	assert.True(t, profiles[0].IsPrivate)
	assert.Nil(t, profiles[0].FollowerCount)
	assert.Equal(t, "https://www.instagram.com/alice/", profiles[0].URL)
}

func TestPersister_EnsureProfile(t *testing.T) {
	// Setup
	memory := scrapingtesting.NewMemoryStore()
	p := application.NewPersister(memory, nil, testLogger())
	ctx := context.Background()

	// Execute
	created, err := p.EnsureProfile(ctx, "https://instagram.com/alice", "")
	require.NoError(t, err)
	again, err := p.EnsureProfile(ctx, "https://instagram.com/alice", "alice")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "alice", created.Username)
	assert.Equal(t, created.ID, again.ID)
	assert.Nil(t, created.LastScrapedAt)
	assert.Len(t, memory.Profiles(), 1)
}

func TestPersister_SavePostsAndInteractions(t *testing.T) {
	// Setup
	memory := scrapingtesting.NewMemoryStore()
	p := application.NewPersister(memory, nil, testLogger())
	ctx := context.Background()

	profile, err := p.SaveProfile(ctx, "https://instagram.com/alice", domain.ProfileInfo{Username: "alice"})
	require.NoError(t, err)

	posts := scrapingtesting.NewTestPosts("alice", 2)
	posts = append(posts, posts[0], domain.PostData{PostURL: ""})
	interactions := []domain.InteractionData{
		{
			PostURL:      posts[0].PostURL,
			Type:         domain.InteractionTypeComment,
			UserURL:      "https://instagram.com/bob",
			UserUsername: "bob",
			CommentText:  scrapingtesting.StrPtr("nice"),
			CommentLikes: 2,
		},
		{
			PostURL:      posts[0].PostURL,
			Type:         domain.InteractionTypeComment,
			UserURL:      "https://instagram.com/bob",
			UserUsername: "bob",
			CommentText:  scrapingtesting.StrPtr("duplicate"),
		},
		{PostURL: posts[1].PostURL, Type: domain.InteractionTypeLike, Count: scrapingtesting.IntPtr(20)},
		{PostURL: "https://instagram.com/p/unknown/", Type: domain.InteractionTypeComment, UserURL: "x"},
		{PostURL: posts[1].PostURL, Type: domain.InteractionType("bogus"), UserURL: "y"},
	}

	// Execute
	stats, err := p.SavePostsAndInteractions(ctx, profile, posts, interactions)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 2, stats.PostsCreated)
	assert.Equal(t, 0, stats.PostsReused)
	assert.Equal(t, 2, stats.InteractionsCreated)
	assert.Equal(t, 3, stats.InteractionsSkipped)

	saved := memory.Interactions()
	require.Len(t, saved, 2)

	comment := saved[0]
	assert.Equal(t, domain.InteractionTypeComment, comment.Type)
	assert.Equal(t, "nice", *comment.CommentText)
	assert.Equal(t, 2, *comment.CommentLikes)
	assert.Equal(t, profile.ID, comment.ProfileID)

	aggregate := saved[1]
	assert.True(t, aggregate.IsAggregate())
	assert.Equal(t, 20, *aggregate.AggregateCount)
	assert.Nil(t, aggregate.CommentText)

	// 2回目は投稿を再利用する
	stats, err = p.SavePostsAndInteractions(ctx, profile, posts[:2], nil)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.PostsCreated)
	assert.Equal(t, 2, stats.PostsReused)
	assert.Len(t, memory.Posts(), 2)
}

func TestPersister_SavePostsAndInteractions_NilProfile(t *testing.T) {
	// Setup
	memory := scrapingtesting.NewMemoryStore()
	p := application.NewPersister(memory, nil, testLogger())

	// Execute
	_, err := p.SavePostsAndInteractions(context.Background(), nil, nil, nil)

	// Assert
	assert.ErrorIs(t, err, domain.ErrProfileNotFound)
}

func TestPersister_SessionState(t *testing.T) {
	// Setup
	memory := scrapingtesting.NewMemoryStore()
	withStore := application.NewPersister(memory, memory, testLogger())
	withoutStore := application.NewPersister(memory, nil, testLogger())
	ctx := context.Background()

	// Execute
	require.NoError(t, withStore.SaveSessionState(ctx, "instagram", []byte(`{"cookies":[]}`)))
	loaded, err := withStore.LoadSessionState(ctx, "instagram")
	require.NoError(t, err)
	missing, err := withoutStore.LoadSessionState(ctx, "instagram")
	require.NoError(t, err)

	// Assert
	state, ok := loaded.Get()
	require.True(t, ok)
	assert.JSONEq(t, `{"cookies":[]}`, string(state))
	assert.True(t, missing.IsAbsent())
	assert.NoError(t, withoutStore.SaveSessionState(ctx, "instagram", []byte("{}")))
}
