package domain

import "errors"

var (
	// ErrJobNotFound はジョブが存在しない場合のエラー
	ErrJobNotFound = errors.New("job not found")

	// ErrJobNotCompleted は完了前のジョブの結果を参照した場合のエラー
	ErrJobNotCompleted = errors.New("job not completed yet")

	// ErrInvalidTransition は許可されていない状態遷移のエラー
	ErrInvalidTransition = errors.New("invalid job status transition")
)
