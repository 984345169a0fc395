package domain

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// MaxErrorMessageLength はジョブに記録するエラーメッセージの最大文字数
const MaxErrorMessageLength = 1000

// Status はジョブの状態
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// IsTerminal は終端状態かどうかを返します
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// IsValid は既知の状態かどうかを返します
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusCompleted, StatusFailed:
		return true
	default:
		return false
	}
}

// Job は1プロフィール分のスクレイピング実行を表します
// 状態は pending → running → completed | failed の一方向にのみ遷移します
type Job struct {
	ID                  uuid.UUID
	ProfileURL          string
	Status              Status
	StartedAt           *time.Time
	CompletedAt         *time.Time
	ErrorMessage        *string
	PostsScraped        int
	InteractionsScraped int
	CreatedAt           time.Time
}

// NewJob は pending 状態のジョブを作成します
func NewJob(profileURL string, now time.Time) *Job {
	return &Job{
		ID:         uuid.New(),
		ProfileURL: profileURL,
		Status:     StatusPending,
		CreatedAt:  now,
	}
}

// Start は running に遷移し、開始時刻を記録します
func (j *Job) Start(now time.Time) error {
	if j.Status != StatusPending {
		return j.invalidTransition(StatusRunning)
	}
	j.Status = StatusRunning
	j.StartedAt = &now
	return nil
}

// Complete は completed に遷移し、結果の件数と完了時刻を記録します
func (j *Job) Complete(now time.Time, posts, interactions int) error {
	if j.Status != StatusRunning {
		return j.invalidTransition(StatusCompleted)
	}
	j.Status = StatusCompleted
	j.CompletedAt = &now
	j.PostsScraped = posts
	j.InteractionsScraped = interactions
	return nil
}

// Fail は failed に遷移し、エラー内容と完了時刻を記録します
// pending からの失敗も許可します（開始前に中断された場合）
func (j *Job) Fail(now time.Time, cause error) error {
	if j.Status.IsTerminal() {
		return j.invalidTransition(StatusFailed)
	}
	message := "unknown error"
	if cause != nil && cause.Error() != "" {
		message = cause.Error()
	}
	message = TruncateMessage(message, MaxErrorMessageLength)

	j.Status = StatusFailed
	j.CompletedAt = &now
	j.ErrorMessage = &message
	return nil
}

func (j *Job) invalidTransition(to Status) error {
	return fmt.Errorf("%w: %s -> %s (job %s)", ErrInvalidTransition, j.Status, to, j.ID)
}

// TruncateMessage はメッセージを最大文字数（ルーン単位）に切り詰めます
func TruncateMessage(message string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(message) <= limit {
		return message
	}
	runes := []rune(message)
	return string(runes[:limit])
}
