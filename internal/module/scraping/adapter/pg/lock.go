package pg

import (
	"context"
	"crypto/sha256"
	"fmt"
)

// GenerateLockID は文字列からアドバイザリロックIDを生成します
func GenerateLockID(parts ...string) int64 {
	h := sha256.New()
	for _, part := range parts {
		h.Write([]byte(part))
	}
	hash := h.Sum(nil)

	// ハッシュの最初の8バイトをint64として使用
	var id int64
	for i := range 8 {
		id = (id << 8) | int64(hash[i])
	}

	return id
}

// LockProfile はプロフィール単位のアドバイザリロックを取得します
// pg_advisory_xact_lock を使用するため、トランザクション終了時に自動で解放されます
func (r *Repository) LockProfile(ctx context.Context, username string) error {
	if _, err := r.db.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", GenerateLockID("profile", username)); err != nil {
		return fmt.Errorf("failed to acquire advisory lock: %w", err)
	}
	return nil
}
