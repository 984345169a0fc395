package application

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/jinford/profile-scraper/internal/module/job/domain"
)

// Submitter はジョブを投入するインターフェースです
type Submitter interface {
	Submit(ctx context.Context, profileURL string) (*domain.Job, error)
}

// Scheduler は設定されたプロフィールのジョブを定期的に投入します
type Scheduler struct {
	submitter Submitter
	schedule  string
	profiles  []string
	cron      *cron.Cron
	log       *slog.Logger

	mu      sync.Mutex
	running bool
}

// NewScheduler は新しいSchedulerを作成します
func NewScheduler(submitter Submitter, schedule string, profiles []string, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		submitter: submitter,
		schedule:  schedule,
		profiles:  profiles,
		log:       log,
	}
}

// Start はcron式に従って定期投入を開始します
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}
	if len(s.profiles) == 0 {
		return fmt.Errorf("no profiles configured for schedule")
	}

	// 停止後の再開で登録が重複しないよう、開始ごとに新しいcronを作る
	c := cron.New()
	if _, err := c.AddFunc(s.schedule, func() {
		s.RunOnce(ctx)
	}); err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	c.Start()
	s.cron = c
	s.running = true
	s.log.Info("Scheduler started", "schedule", s.schedule, "profiles", len(s.profiles))
	return nil
}

// RunOnce は全プロフィールのジョブを1回ずつ投入します
// 個別の投入失敗はログに記録して次のプロフィールへ進みます
func (s *Scheduler) RunOnce(ctx context.Context) []*domain.Job {
	jobs := make([]*domain.Job, 0, len(s.profiles))
	for _, profileURL := range s.profiles {
		if ctx.Err() != nil {
			break
		}
		job, err := s.submitter.Submit(ctx, profileURL)
		if err != nil {
			s.log.Warn("Failed to submit scheduled job", "profileURL", profileURL, "error", err)
			continue
		}
		s.log.Info("Scheduled job submitted", "jobID", job.ID, "profileURL", job.ProfileURL)
		jobs = append(jobs, job)
	}
	return jobs
}

// Stop は定期投入を停止し、実行中のcron関数の終了を待つためのコンテキストを返します
func (s *Scheduler) Stop() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.running = false
	if s.cron == nil {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}
	return s.cron.Stop()
}
