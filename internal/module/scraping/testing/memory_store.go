package testing

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/mo"

	"github.com/jinford/profile-scraper/internal/module/scraping/domain"
)

// MemoryStore はテスト用のインメモリ永続化です
// UnitOfWork / ResultReader / SessionStore を実装し、Do はコピーに対して実行して成功時のみ反映します
type MemoryStore struct {
	mu    sync.Mutex
	state memoryState

	// FailOnCreateInteraction が設定されている場合、インタラクション作成時にそのエラーを返します
	FailOnCreateInteraction error
}

type memoryState struct {
	profiles     map[uuid.UUID]*domain.Profile
	posts        map[uuid.UUID]*domain.Post
	interactions map[uuid.UUID]*domain.Interaction
	sessions     map[string][]byte
	seq          int
}

// NewMemoryStore は空のMemoryStoreを作成します
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		state: memoryState{
			profiles:     map[uuid.UUID]*domain.Profile{},
			posts:        map[uuid.UUID]*domain.Post{},
			interactions: map[uuid.UUID]*domain.Interaction{},
			sessions:     map[string][]byte{},
		},
	}
}

func (s memoryState) clone() memoryState {
	cloned := memoryState{
		profiles:     make(map[uuid.UUID]*domain.Profile, len(s.profiles)),
		posts:        make(map[uuid.UUID]*domain.Post, len(s.posts)),
		interactions: make(map[uuid.UUID]*domain.Interaction, len(s.interactions)),
		sessions:     maps.Clone(s.sessions),
		seq:          s.seq,
	}
	for id, p := range s.profiles {
		copied := *p
		cloned.profiles[id] = &copied
	}
	for id, p := range s.posts {
		copied := *p
		cloned.posts[id] = &copied
	}
	for id, i := range s.interactions {
		copied := *i
		cloned.interactions[id] = &copied
	}
	return cloned
}

// Do はトランザクションを模倣して fn を実行します
func (s *MemoryStore) Do(ctx context.Context, fn func(repo domain.ScrapeRepository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.state.clone()
	repo := &memoryRepository{state: &working, failOnCreateInteraction: s.FailOnCreateInteraction}
	if err := fn(repo); err != nil {
		return err
	}
	s.state = working
	return nil
}

// Profiles は保存済みのプロフィールを返します
func (s *MemoryStore) Profiles() []*domain.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedValues(s.state.profiles, func(p *domain.Profile) time.Time { return p.CreatedAt })
}

// Posts は保存済みの投稿を返します
func (s *MemoryStore) Posts() []*domain.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedValues(s.state.posts, func(p *domain.Post) time.Time { return p.CreatedAt })
}

// Interactions は保存済みのインタラクションを返します
func (s *MemoryStore) Interactions() []*domain.Interaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedValues(s.state.interactions, func(i *domain.Interaction) time.Time { return i.CreatedAt })
}

func (s *MemoryStore) FindProfileByURL(ctx context.Context, url string) (mo.Option[*domain.Profile], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.state.profiles {
		if p.URL == url {
			copied := *p
			return mo.Some(&copied), nil
		}
	}
	return mo.None[*domain.Profile](), nil
}

func (s *MemoryStore) FindProfileByUsername(ctx context.Context, username string) (mo.Option[*domain.Profile], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	repo := &memoryRepository{state: &s.state}
	return repo.FindProfileByUsername(ctx, username)
}

func (s *MemoryStore) ListPostsByProfile(ctx context.Context, profileID uuid.UUID, page domain.Page) ([]*domain.Post, error) {
	var posts []*domain.Post
	for _, p := range s.Posts() {
		if p.ProfileID == profileID {
			posts = append(posts, p)
		}
	}
	return paginate(posts, page), nil
}

func (s *MemoryStore) ListInteractionsByProfile(ctx context.Context, profileID uuid.UUID, page domain.Page) ([]*domain.Interaction, error) {
	var interactions []*domain.Interaction
	for _, i := range s.Interactions() {
		if i.ProfileID == profileID {
			interactions = append(interactions, i)
		}
	}
	return paginate(interactions, page), nil
}

func (s *MemoryStore) LoadSessionState(ctx context.Context, name string) (mo.Option[[]byte], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state, ok := s.state.sessions[name]; ok {
		return mo.Some(append([]byte(nil), state...)), nil
	}
	return mo.None[[]byte](), nil
}

func (s *MemoryStore) SaveSessionState(ctx context.Context, name string, state []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.sessions[name] = append([]byte(nil), state...)
	return nil
}

// memoryRepository はトランザクション内のScrapeRepository実装です
type memoryRepository struct {
	state                   *memoryState
	failOnCreateInteraction error
}

// tick は挿入順を保つための単調増加時刻を返します
func (r *memoryRepository) tick() time.Time {
	r.state.seq++
	return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(r.state.seq) * time.Millisecond)
}

// LockProfile はDoがストア全体を排他するため何もしません
func (r *memoryRepository) LockProfile(ctx context.Context, username string) error {
	return nil
}

func (r *memoryRepository) FindProfileByUsername(ctx context.Context, username string) (mo.Option[*domain.Profile], error) {
	for _, p := range r.state.profiles {
		if p.Username == username {
			copied := *p
			return mo.Some(&copied), nil
		}
	}
	return mo.None[*domain.Profile](), nil
}

func (r *memoryRepository) CreateProfile(ctx context.Context, profile *domain.Profile) error {
	if profile.ID == uuid.Nil {
		profile.ID = uuid.New()
	}
	now := r.tick()
	profile.CreatedAt, profile.UpdatedAt = now, now
	copied := *profile
	r.state.profiles[profile.ID] = &copied
	return nil
}

func (r *memoryRepository) UpdateProfile(ctx context.Context, profile *domain.Profile) error {
	existing, ok := r.state.profiles[profile.ID]
	if !ok {
		return domain.ErrProfileNotFound
	}
	profile.CreatedAt = existing.CreatedAt
	profile.UpdatedAt = r.tick()
	copied := *profile
	r.state.profiles[profile.ID] = &copied
	return nil
}

func (r *memoryRepository) FindPostByURL(ctx context.Context, postURL string) (mo.Option[*domain.Post], error) {
	for _, p := range r.state.posts {
		if p.PostURL == postURL {
			copied := *p
			return mo.Some(&copied), nil
		}
	}
	return mo.None[*domain.Post](), nil
}

func (r *memoryRepository) CreatePost(ctx context.Context, post *domain.Post) error {
	if post.ID == uuid.Nil {
		post.ID = uuid.New()
	}
	now := r.tick()
	post.CreatedAt, post.UpdatedAt = now, now
	copied := *post
	r.state.posts[post.ID] = &copied
	return nil
}

func (r *memoryRepository) FindInteraction(ctx context.Context, postID uuid.UUID, userURL string, interactionType domain.InteractionType) (mo.Option[*domain.Interaction], error) {
	for _, i := range r.state.interactions {
		if i.PostID == postID && i.UserURL == userURL && i.Type == interactionType && !i.IsAggregate() {
			copied := *i
			return mo.Some(&copied), nil
		}
	}
	return mo.None[*domain.Interaction](), nil
}

func (r *memoryRepository) CreateInteraction(ctx context.Context, interaction *domain.Interaction) error {
	if r.failOnCreateInteraction != nil {
		return r.failOnCreateInteraction
	}
	if interaction.ID == uuid.Nil {
		interaction.ID = uuid.New()
	}
	interaction.CreatedAt = r.tick()
	copied := *interaction
	r.state.interactions[interaction.ID] = &copied
	return nil
}

func sortedValues[T any](m map[uuid.UUID]*T, key func(*T) time.Time) []*T {
	values := make([]*T, 0, len(m))
	for _, v := range m {
		copied := *v
		values = append(values, &copied)
	}
	sort.Slice(values, func(i, j int) bool { return key(values[i]).Before(key(values[j])) })
	return values
}

func paginate[T any](items []T, page domain.Page) []T {
	if page.Offset >= len(items) {
		return []T{}
	}
	items = items[page.Offset:]
	if page.Limit > 0 && page.Limit < len(items) {
		items = items[:page.Limit]
	}
	return items
}

var (
	_ domain.UnitOfWork   = (*MemoryStore)(nil)
	_ domain.ResultReader = (*MemoryStore)(nil)
	_ domain.SessionStore = (*MemoryStore)(nil)
)
