package domain

import (
	"fmt"
	"net/url"
	"strings"
)

const profileBaseURL = "https://instagram.com/"

// NormalizeProfileURL はハンドルのみの入力を完全なプロフィールURLに変換します
// http(s) で始まる入力はそのまま返します
func NormalizeProfileURL(input string) (string, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty input", ErrInvalidProfileURL)
	}

	if strings.HasPrefix(trimmed, "http") {
		parsed, err := url.Parse(trimmed)
		if err != nil || parsed.Host == "" {
			return "", fmt.Errorf("%w: %s", ErrInvalidProfileURL, trimmed)
		}
		return trimmed, nil
	}

	handle := strings.Trim(strings.TrimPrefix(trimmed, "@"), "/")
	if handle == "" || strings.ContainsAny(handle, " /?#") {
		return "", fmt.Errorf("%w: %s", ErrInvalidProfileURL, trimmed)
	}
	return profileBaseURL + handle, nil
}

// UsernameFromURL はプロフィールURLの最後のパス要素をユーザー名として返します
func UsernameFromURL(profileURL string) string {
	trimmed := strings.TrimRight(strings.TrimSpace(profileURL), "/")
	if parsed, err := url.Parse(trimmed); err == nil && parsed.Host != "" {
		trimmed = strings.TrimRight(parsed.Path, "/")
	}
	if idx := strings.LastIndex(trimmed, "/"); idx >= 0 {
		return trimmed[idx+1:]
	}
	return trimmed
}
