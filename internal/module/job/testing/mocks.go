package testing

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/jinford/profile-scraper/internal/module/job/domain"
	scrapingapp "github.com/jinford/profile-scraper/internal/module/scraping/application"
	scraping "github.com/jinford/profile-scraper/internal/module/scraping/domain"
)

// MemoryJobRepository はテスト用のインメモリ domain.Repository です
// 状態遷移の履歴を記録し、Update は保存済みの状態との比較後に反映します
type MemoryJobRepository struct {
	mu      sync.Mutex
	jobs    map[uuid.UUID]domain.Job
	history map[uuid.UUID][]domain.Status

	// UpdateFunc が設定されている場合、Update の前に呼ばれ、エラーを返すと保存しません
	UpdateFunc func(ctx context.Context, job *domain.Job) error
}

// NewMemoryJobRepository は空のリポジトリを作成します
func NewMemoryJobRepository() *MemoryJobRepository {
	return &MemoryJobRepository{
		jobs:    map[uuid.UUID]domain.Job{},
		history: map[uuid.UUID][]domain.Status{},
	}
}

func (r *MemoryJobRepository) Create(ctx context.Context, job *domain.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[job.ID]; ok {
		return fmt.Errorf("job already exists: %s", job.ID)
	}
	r.jobs[job.ID] = *job
	r.history[job.ID] = []domain.Status{job.Status}
	return nil
}

func (r *MemoryJobRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrJobNotFound, id)
	}
	return &job, nil
}

func (r *MemoryJobRepository) Update(ctx context.Context, job *domain.Job, from domain.Status) error {
	if r.UpdateFunc != nil {
		if err := r.UpdateFunc(ctx, job); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.jobs[job.ID]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrJobNotFound, job.ID)
	}
	if stored.Status != from {
		return fmt.Errorf("%w: %s -> %s (job %s, expected %s)", domain.ErrInvalidTransition, stored.Status, job.Status, job.ID, from)
	}
	r.jobs[job.ID] = *job
	r.history[job.ID] = append(r.history[job.ID], job.Status)
	return nil
}

func (r *MemoryJobRepository) List(ctx context.Context, limit int) ([]*domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	jobs := make([]*domain.Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		copied := job
		jobs = append(jobs, &copied)
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].CreatedAt.After(jobs[j].CreatedAt) })
	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

// History は保存された状態の履歴を返します
func (r *MemoryJobRepository) History(id uuid.UUID) []domain.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Status(nil), r.history[id]...)
}

// MockPipeline はテスト用のモック Pipeline です
type MockPipeline struct {
	ScrapeProfileFunc func(ctx context.Context, profileURL string, maxPosts int, store scraping.Store) (*scraping.ScrapeResult, error)
}

func (m *MockPipeline) ScrapeProfile(ctx context.Context, profileURL string, maxPosts int, store scraping.Store) (*scraping.ScrapeResult, error) {
	if m.ScrapeProfileFunc != nil {
		return m.ScrapeProfileFunc(ctx, profileURL, maxPosts, store)
	}
	return &scraping.ScrapeResult{}, nil
}

// MockResultProvider はテスト用のモック ResultProvider です
type MockResultProvider struct {
	ProfileTreeFunc func(ctx context.Context, profileURL string) (*scrapingapp.ProfileTree, error)
}

func (m *MockResultProvider) ProfileTree(ctx context.Context, profileURL string) (*scrapingapp.ProfileTree, error) {
	if m.ProfileTreeFunc != nil {
		return m.ProfileTreeFunc(ctx, profileURL)
	}
	return &scrapingapp.ProfileTree{}, nil
}

// MockSubmitter はテスト用のモック Submitter です
type MockSubmitter struct {
	SubmitFunc func(ctx context.Context, profileURL string) (*domain.Job, error)

	mu        sync.Mutex
	submitted []string
}

func (m *MockSubmitter) Submit(ctx context.Context, profileURL string) (*domain.Job, error) {
	m.mu.Lock()
	m.submitted = append(m.submitted, profileURL)
	m.mu.Unlock()
	if m.SubmitFunc != nil {
		return m.SubmitFunc(ctx, profileURL)
	}
	return &domain.Job{ID: uuid.New(), ProfileURL: profileURL, Status: domain.StatusPending}, nil
}

// Submitted は投入されたプロフィールURLを返します
func (m *MockSubmitter) Submitted() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.submitted...)
}

var _ domain.Repository = (*MemoryJobRepository)(nil)
