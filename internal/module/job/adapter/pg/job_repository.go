package pg

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jinford/profile-scraper/internal/module/job/domain"
)

// DBTX はプールとトランザクションの両方を受け付けるクエリ実行インターフェースです
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// JobRepository はジョブの永続化アダプターです
type JobRepository struct {
	db DBTX
}

// NewJobRepository は新しいJobRepositoryを作成します
func NewJobRepository(db DBTX) *JobRepository {
	return &JobRepository{db: db}
}

var _ domain.Repository = (*JobRepository)(nil)

const jobColumns = `id, profile_url, status, started_at, completed_at, error_message, posts_scraped,
	interactions_scraped, created_at`

// Create はジョブを作成します
func (r *JobRepository) Create(ctx context.Context, job *domain.Job) error {
	query := `
		INSERT INTO scraping_jobs (id, profile_url, status, started_at, completed_at, error_message,
			posts_scraped, interactions_scraped, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.Exec(ctx, query,
		job.ID,
		job.ProfileURL,
		string(job.Status),
		job.StartedAt,
		job.CompletedAt,
		job.ErrorMessage,
		job.PostsScraped,
		job.InteractionsScraped,
		job.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

// Get はIDでジョブを取得します
func (r *JobRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM scraping_jobs WHERE id = $1`

	job, err := scanJob(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", domain.ErrJobNotFound, id)
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

// Update は保存済みの状態が from の場合に限りジョブの状態を更新します
// 同じジョブを並行して実行した場合でも、先に遷移した側だけが更新に成功します
func (r *JobRepository) Update(ctx context.Context, job *domain.Job, from domain.Status) error {
	query := `
		UPDATE scraping_jobs
		SET status = $2, started_at = $3, completed_at = $4, error_message = $5,
			posts_scraped = $6, interactions_scraped = $7
		WHERE id = $1 AND status = $8
	`

	tag, err := r.db.Exec(ctx, query,
		job.ID,
		string(job.Status),
		job.StartedAt,
		job.CompletedAt,
		job.ErrorMessage,
		job.PostsScraped,
		job.InteractionsScraped,
		string(from),
	)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var current string
	if err := r.db.QueryRow(ctx, `SELECT status FROM scraping_jobs WHERE id = $1`, job.ID).Scan(&current); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: %s", domain.ErrJobNotFound, job.ID)
		}
		return fmt.Errorf("failed to get job status: %w", err)
	}
	return fmt.Errorf("%w: %s -> %s (job %s, expected %s)", domain.ErrInvalidTransition, current, job.Status, job.ID, from)
}

// List は作成日時の新しい順にジョブを返します
func (r *JobRepository) List(ctx context.Context, limit int) ([]*domain.Job, error) {
	var limitArg any
	if limit > 0 {
		limitArg = limit
	}

	query := `
		SELECT ` + jobColumns + `
		FROM scraping_jobs
		ORDER BY created_at DESC, id
		LIMIT $1
	`

	rows, err := r.db.Query(ctx, query, limitArg)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	jobs := make([]*domain.Job, 0)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate jobs: %w", err)
	}
	return jobs, nil
}

func scanJob(row pgx.Row) (*domain.Job, error) {
	var (
		job    domain.Job
		status string
	)
	err := row.Scan(
		&job.ID,
		&job.ProfileURL,
		&status,
		&job.StartedAt,
		&job.CompletedAt,
		&job.ErrorMessage,
		&job.PostsScraped,
		&job.InteractionsScraped,
		&job.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	job.Status = domain.Status(status)
	return &job, nil
}
