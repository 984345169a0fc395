package extractor_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/profile-scraper/internal/module/scraping/adapter/extractor"
)

const publicProfileHTML = `<html><head>
<title>Alice (@alice) • Instagram photos and videos</title>
<meta property="og:title" content="Alice (@alice) • Instagram photos and videos">
<meta property="og:description" content="1.2K Followers, 345 Following, 67 Posts - See Instagram photos and videos from Alice (@alice) on Instagram: &quot;travel and coffee&quot;">
<meta property="og:url" content="https://www.instagram.com/alice/">
</head><body><main>posts</main></body></html>`

const privateProfileHTML = `<html><head>
<meta property="og:url" content="https://www.instagram.com/bob/">
<meta property="og:description" content="2,345 Followers, 10 Following, 5 Posts - See Instagram photos and videos from Bob (@bob)">
</head><body><h2>This account is private</h2></body></html>`

func TestHTMLExtractor_ExtractProfileInfo(t *testing.T) {
	tests := []struct {
		name          string
		html          string
		wantUsername  string
		wantFollowers int
		wantPosts     int
		wantPrivate   bool
		wantBio       string
	}{
		{
			name:          "公開プロフィール",
			html:          publicProfileHTML,
			wantUsername:  "alice",
			wantFollowers: 1200,
			wantPosts:     67,
			wantBio:       "travel and coffee",
		},
		{
			name:          "非公開プロフィール",
			html:          privateProfileHTML,
			wantUsername:  "bob",
			wantFollowers: 2345,
			wantPosts:     5,
			wantPrivate:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Setup
			e := extractor.NewHTMLExtractor()

			// Execute
			info, err := e.ExtractProfileInfo(context.Background(), "", tt.html)

			// Assert
			require.NoError(t, err)
			assert.Equal(t, tt.wantUsername, info.Username)
			require.NotNil(t, info.FollowerCount)
			assert.Equal(t, tt.wantFollowers, *info.FollowerCount)
			require.NotNil(t, info.PostCount)
			assert.Equal(t, tt.wantPosts, *info.PostCount)
			assert.Equal(t, tt.wantPrivate, info.IsPrivate)
			if tt.wantBio == "" {
				assert.Nil(t, info.Bio)
			} else {
				require.NotNil(t, info.Bio)
				assert.Equal(t, tt.wantBio, *info.Bio)
			}
		})
	}
}

func TestHTMLExtractor_EmptyPage(t *testing.T) {
	// Setup
	e := extractor.NewHTMLExtractor()

	// Execute
	info, err := e.ExtractProfileInfo(context.Background(), "", "<html></html>")
	comments, commentsErr := e.ExtractComments(context.Background(), "aW1n")

	// Assert
	require.NoError(t, err)
	assert.Empty(t, info.Username)
	assert.Nil(t, info.FollowerCount)
	require.NoError(t, commentsErr)
	assert.Empty(t, comments)
}

func TestHTMLExtractor_ExtractUserInfo(t *testing.T) {
	// Setup
	e := extractor.NewHTMLExtractor()

	// Execute
	info, err := e.ExtractUserInfo(context.Background(), "", privateProfileHTML, "bob")

	// Assert
	require.NoError(t, err)
	require.NotNil(t, info.IsPrivate)
	assert.True(t, *info.IsPrivate)
	require.NotNil(t, info.FollowerCount)
	assert.Equal(t, 2345, *info.FollowerCount)
	require.NotNil(t, info.Confidence)
}

func TestParseCount(t *testing.T) {
	tests := []struct {
		input  string
		want   int
		wantOK bool
	}{
		{input: "1,234", want: 1234, wantOK: true},
		{input: "1.2K", want: 1200, wantOK: true},
		{input: "3M", want: 3000000, wantOK: true},
		{input: "1,5M", want: 1500000, wantOK: true},
		{input: "42", want: 42, wantOK: true},
		{input: "", wantOK: false},
		{input: "abc", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := extractor.ParseCount(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}
