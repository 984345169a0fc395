package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	jobpg "github.com/jinford/profile-scraper/internal/module/job/adapter/pg"
	scrapingpg "github.com/jinford/profile-scraper/internal/module/scraping/adapter/pg"
	scraping "github.com/jinford/profile-scraper/internal/module/scraping/domain"
)

// TransactionProvider follows the pattern described in https://threedots.tech/post/database-transactions-in-go/
// It hides pgx transactions behind a callback that receives data-access adapters.
type TransactionProvider struct {
	pool *pgxpool.Pool
}

// NewTransactionProvider は新しいTransactionProviderを作成します
func NewTransactionProvider(pool *pgxpool.Pool) *TransactionProvider {
	return &TransactionProvider{pool: pool}
}

// Adapter bundles repository adapters that operate inside a single transaction.
type Adapter struct {
	Scrape *scrapingpg.Repository
	Jobs   *jobpg.JobRepository
}

func newAdapter(tx pgx.Tx) *Adapter {
	return &Adapter{
		Scrape: scrapingpg.NewRepository(tx),
		Jobs:   jobpg.NewJobRepository(tx),
	}
}

// Transact opens a transaction, builds adapters, and passes them to fn.
func Transact[T any](ctx context.Context, p *TransactionProvider, fn func(*Adapter) (T, error)) (T, error) {
	var zero T
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return zero, fmt.Errorf("failed to begin transaction: %w", err)
	}

	adapters := newAdapter(tx)

	result, err := fn(adapters)
	if err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return zero, fmt.Errorf("tx rollback failed: %v (original err: %w)", rbErr, err)
		}
		return zero, err
	}

	if err := tx.Commit(ctx); err != nil {
		return zero, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return result, nil
}

// ScrapeUnitOfWork は scraping の UnitOfWork をトランザクションで実装します
type ScrapeUnitOfWork struct {
	provider *TransactionProvider
}

// NewScrapeUnitOfWork は新しいScrapeUnitOfWorkを作成します
func NewScrapeUnitOfWork(provider *TransactionProvider) *ScrapeUnitOfWork {
	return &ScrapeUnitOfWork{provider: provider}
}

var _ scraping.UnitOfWork = (*ScrapeUnitOfWork)(nil)

// Do は fn を1トランザクションで実行し、エラー時はロールバックします
func (u *ScrapeUnitOfWork) Do(ctx context.Context, fn func(repo scraping.ScrapeRepository) error) error {
	_, err := Transact(ctx, u.provider, func(a *Adapter) (struct{}, error) {
		return struct{}{}, fn(a.Scrape)
	})
	return err
}
