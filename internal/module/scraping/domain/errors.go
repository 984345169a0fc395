package domain

import "errors"

var (
	// ErrInvalidProfileURL はプロフィールURLまたはハンドルが不正な場合のエラー
	ErrInvalidProfileURL = errors.New("invalid profile url")

	// ErrProfileNotFound はプロフィールが保存されていない場合のエラー
	ErrProfileNotFound = errors.New("profile not found")

	// ErrMissingUsername は抽出結果とURLのどちらからもユーザー名を得られない場合のエラー
	ErrMissingUsername = errors.New("username could not be determined")
)
