package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jinford/profile-scraper/internal/module/job/domain"
	scrapingapp "github.com/jinford/profile-scraper/internal/module/scraping/application"
	scraping "github.com/jinford/profile-scraper/internal/module/scraping/domain"
)

// DefaultMaxPosts はジョブ1件で取得する投稿数の既定値
const DefaultMaxPosts = 5

// Pipeline はジョブから呼び出すスクレイピングパイプラインです
type Pipeline interface {
	ScrapeProfile(ctx context.Context, profileURL string, maxPosts int, store scraping.Store) (*scraping.ScrapeResult, error)
}

// StoreFactory はジョブ実行ごとに専有される永続化ハンドルを作成します
type StoreFactory func(ctx context.Context) (scraping.Store, error)

// ResultProvider は保存済み結果ツリーを返します
type ResultProvider interface {
	ProfileTree(ctx context.Context, profileURL string) (*scrapingapp.ProfileTree, error)
}

// Result は完了したジョブとその結果ツリー
type Result struct {
	Job  *domain.Job
	Tree *scrapingapp.ProfileTree
}

// Config はServiceの設定
type Config struct {
	MaxPosts int
}

// Service はジョブのライフサイクルを管理します
// 各ジョブは独立したゴルーチンで実行され、必ず終端状態に到達します
type Service struct {
	repo     domain.Repository
	pipeline Pipeline
	stores   StoreFactory
	results  ResultProvider
	cfg      Config
	now      func() time.Time
	log      *slog.Logger

	wg sync.WaitGroup
}

// ServiceOption はService構築時のオプション
type ServiceOption func(*Service)

// WithClock は現在時刻の取得方法を差し替える
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// NewService は新しいServiceを作成します
func NewService(
	repo domain.Repository,
	pipeline Pipeline,
	stores StoreFactory,
	results ResultProvider,
	cfg Config,
	log *slog.Logger,
	opts ...ServiceOption,
) *Service {
	if log == nil {
		log = slog.Default()
	}
	if cfg.MaxPosts <= 0 {
		cfg.MaxPosts = DefaultMaxPosts
	}
	s := &Service{
		repo:     repo,
		pipeline: pipeline,
		stores:   stores,
		results:  results,
		cfg:      cfg,
		now:      time.Now,
		log:      log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create は pending 状態のジョブを登録します（実行はしません）
func (s *Service) Create(ctx context.Context, profileURL string) (*domain.Job, error) {
	normalized, err := scraping.NormalizeProfileURL(profileURL)
	if err != nil {
		return nil, err
	}

	job := domain.NewJob(normalized, s.now().UTC())
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	s.log.Info("Job created", "jobID", job.ID, "profileURL", normalized)
	return job, nil
}

// Submit はジョブを登録し、バックグラウンドで実行を開始します
// 返されるジョブは pending 状態です
func (s *Service) Submit(ctx context.Context, profileURL string) (*domain.Job, error) {
	job, err := s.Create(ctx, profileURL)
	if err != nil {
		return nil, err
	}
	submitted := *job

	// 呼び出し元のリクエスト終了でジョブが中断されないようにする
	runCtx := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.Run(runCtx, job.ID); err != nil {
			s.log.Error("Job run failed", "jobID", job.ID, "error", err)
		}
	}()

	return &submitted, nil
}

// Run はジョブを running → completed | failed まで実行します
// パイプラインのエラーとパニックはジョブの失敗として記録され、戻り値には含まれません
// 戻り値のエラーはジョブの状態を記録できなかった場合のみです
func (s *Service) Run(ctx context.Context, id uuid.UUID) error {
	job, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	log := s.log.With("jobID", job.ID, "profileURL", job.ProfileURL)

	if err := job.Start(s.now().UTC()); err != nil {
		return err
	}
	// 他の実行者が先に開始していた場合はここで失敗し、パイプラインは実行しない
	if err := s.repo.Update(ctx, job, domain.StatusPending); err != nil {
		return fmt.Errorf("failed to mark job running: %w", err)
	}
	log.Info("Job started")

	result, runErr := s.execute(ctx, job)
	if runErr != nil {
		if err := job.Fail(s.now().UTC(), runErr); err != nil {
			return err
		}
		log.Error("Job failed", "error", runErr)
	} else {
		if err := job.Complete(s.now().UTC(), result.Summary.TotalPosts, result.Summary.TotalInteractions); err != nil {
			return err
		}
		log.Info("Job completed",
			"postsScraped", job.PostsScraped,
			"interactionsScraped", job.InteractionsScraped,
		)
	}

	if err := s.repo.Update(ctx, job, domain.StatusRunning); err != nil {
		return fmt.Errorf("failed to record job outcome: %w", err)
	}
	return nil
}

// execute はパイプラインを実行し、パニックをエラーに変換します
func (s *Service) execute(ctx context.Context, job *domain.Job) (result *scraping.ScrapeResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("Recovered from panic in job", "jobID", job.ID, "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	store, err := s.stores(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire store: %w", err)
	}

	result, err = s.pipeline.ScrapeProfile(ctx, job.ProfileURL, s.cfg.MaxPosts, store)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, errors.New("pipeline returned no result")
	}
	return result, nil
}

// Status はジョブの現在の状態を返します
func (s *Service) Status(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	return s.repo.Get(ctx, id)
}

// Results は完了したジョブの結果ツリーを返します
// 完了前の場合は ErrJobNotCompleted を返します
func (s *Service) Results(ctx context.Context, id uuid.UUID) (*Result, error) {
	job, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status != domain.StatusCompleted {
		return nil, fmt.Errorf("%w: status=%s", domain.ErrJobNotCompleted, job.Status)
	}

	tree, err := s.results.ProfileTree(ctx, job.ProfileURL)
	if err != nil {
		return nil, err
	}
	return &Result{Job: job, Tree: tree}, nil
}

// List は最近のジョブを返します
func (s *Service) List(ctx context.Context, limit int) ([]*domain.Job, error) {
	jobs, err := s.repo.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return jobs, nil
}

// Wait はバックグラウンドで実行中のジョブがすべて終わるか、ctx が終了するまで待機します
func (s *Service) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
