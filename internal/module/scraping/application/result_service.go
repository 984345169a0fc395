package application

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jinford/profile-scraper/internal/module/scraping/domain"
)

// PostTree は投稿と、その投稿に属するインタラクション
type PostTree struct {
	Post         *domain.Post
	Interactions []*domain.Interaction
}

// ProfileTree はプロフィール配下の投稿とインタラクションをまとめた読み取りモデル
type ProfileTree struct {
	Profile           *domain.Profile
	Posts             []PostTree
	TotalPosts        int
	TotalInteractions int
}

// ResultService は保存済みスクレイピング結果の参照を提供します
type ResultService struct {
	reader domain.ResultReader
}

// NewResultService は新しいResultServiceを作成します
func NewResultService(reader domain.ResultReader) *ResultService {
	return &ResultService{reader: reader}
}

// ProfileTree はプロフィールURLに対応する結果ツリーを返します
// URLで見つからない場合はURLから導出したユーザー名で検索します
func (s *ResultService) ProfileTree(ctx context.Context, profileURL string) (*ProfileTree, error) {
	profile, err := s.findProfile(ctx, profileURL)
	if err != nil {
		return nil, err
	}

	posts, err := s.reader.ListPostsByProfile(ctx, profile.ID, domain.Page{})
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	interactions, err := s.reader.ListInteractionsByProfile(ctx, profile.ID, domain.Page{})
	if err != nil {
		return nil, fmt.Errorf("failed to list interactions: %w", err)
	}

	byPost := make(map[uuid.UUID][]*domain.Interaction, len(posts))
	for _, i := range interactions {
		byPost[i.PostID] = append(byPost[i.PostID], i)
	}

	tree := &ProfileTree{
		Profile:           profile,
		Posts:             make([]PostTree, 0, len(posts)),
		TotalPosts:        len(posts),
		TotalInteractions: len(interactions),
	}
	for _, post := range posts {
		tree.Posts = append(tree.Posts, PostTree{
			Post:         post,
			Interactions: byPost[post.ID],
		})
	}
	return tree, nil
}

// Profile はユーザー名でプロフィールを返します
func (s *ResultService) Profile(ctx context.Context, username string) (*domain.Profile, error) {
	found, err := s.reader.FindProfileByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to find profile: %w", err)
	}
	profile, ok := found.Get()
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrProfileNotFound, username)
	}
	return profile, nil
}

// ProfilePosts はユーザー名に対応するプロフィールの投稿を返します
func (s *ResultService) ProfilePosts(ctx context.Context, username string, page domain.Page) ([]*domain.Post, error) {
	profile, err := s.Profile(ctx, username)
	if err != nil {
		return nil, err
	}
	posts, err := s.reader.ListPostsByProfile(ctx, profile.ID, page)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	return posts, nil
}

// ProfileInteractions はユーザー名に対応するプロフィールのインタラクションを返します
func (s *ResultService) ProfileInteractions(ctx context.Context, username string, page domain.Page) ([]*domain.Interaction, error) {
	profile, err := s.Profile(ctx, username)
	if err != nil {
		return nil, err
	}
	interactions, err := s.reader.ListInteractionsByProfile(ctx, profile.ID, page)
	if err != nil {
		return nil, fmt.Errorf("failed to list interactions: %w", err)
	}
	return interactions, nil
}

func (s *ResultService) findProfile(ctx context.Context, profileURL string) (*domain.Profile, error) {
	found, err := s.reader.FindProfileByURL(ctx, profileURL)
	if err != nil {
		return nil, fmt.Errorf("failed to find profile: %w", err)
	}
	if profile, ok := found.Get(); ok {
		return profile, nil
	}

	username := domain.UsernameFromURL(profileURL)
	if username == "" {
		return nil, fmt.Errorf("%w: %s", domain.ErrProfileNotFound, profileURL)
	}
	return s.Profile(ctx, username)
}
