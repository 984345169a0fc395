package domain

import (
	"context"

	"github.com/google/uuid"
)

// Repository はジョブの永続化ポートです
type Repository interface {
	Create(ctx context.Context, job *Job) error
	// Get はジョブを返します。存在しない場合は ErrJobNotFound を返します
	Get(ctx context.Context, id uuid.UUID) (*Job, error)
	// Update は保存済みの状態が from の場合に限りジョブを更新します
	// 状態が一致しない場合は ErrInvalidTransition、存在しない場合は ErrJobNotFound を返します
	Update(ctx context.Context, job *Job, from Status) error
	// List は作成日時の新しい順にジョブを返します
	List(ctx context.Context, limit int) ([]*Job, error)
}
