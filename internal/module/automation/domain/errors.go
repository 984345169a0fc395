package domain

import (
	"errors"
	"fmt"
)

// ErrRequestFailed はバックエンド呼び出しが最終的に失敗したことを表します
var ErrRequestFailed = errors.New("automation backend request failed")

// OperationError はバックエンド操作の失敗を表します
// StatusCode が 0 の場合はトランスポート層のエラーです
type OperationError struct {
	Endpoint   string
	URL        string
	StatusCode int
	Body       string
	Err        error
}

func (e *OperationError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("automation %s failed for %s: %v", e.Endpoint, e.URL, e.Err)
	}
	return fmt.Sprintf("automation %s failed for %s (status=%d, body=%s)", e.Endpoint, e.URL, e.StatusCode, e.Body)
}

// Unwrap は原因となったエラーを返します
func (e *OperationError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrRequestFailed
}

// Is は errors.Is(err, ErrRequestFailed) を常に成立させます
func (e *OperationError) Is(target error) bool {
	return target == ErrRequestFailed
}
