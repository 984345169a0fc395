package browserless

import (
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"
)

// response は読み取り済みのHTTPレスポンスです
type response struct {
	status      int
	contentType string
	body        []byte
}

func (r *response) ok() bool {
	return r.status >= 200 && r.status < 300
}

func (r *response) isJSON() bool {
	return strings.Contains(r.contentType, "application/json")
}

// retriableStatuses はリトライ対象のステータスコード
var retriableStatuses = map[int]struct{}{
	http.StatusRequestTimeout:      {},
	http.StatusTooManyRequests:     {},
	http.StatusInternalServerError: {},
	http.StatusBadGateway:          {},
	http.StatusServiceUnavailable:  {},
	http.StatusGatewayTimeout:      {},
}

func isRetriableStatus(status int) bool {
	_, ok := retriableStatuses[status]
	return ok
}

// rejectedFields は 400 レスポンスのボディから拒否されたフィールドを抽出します
// 交渉対象のフィールドのうち `"<field>" is not allowed` と明示されたものだけを返します
func rejectedFields(r *response, negotiable []string) []string {
	if r.status != http.StatusBadRequest {
		return nil
	}
	message := string(r.body)
	if !strings.Contains(message, "not allowed") {
		return nil
	}

	var fields []string
	for _, field := range negotiable {
		if strings.Contains(message, fmt.Sprintf("%q is not allowed", field)) {
			fields = append(fields, field)
		}
	}
	return fields
}

// stripFields は指定フィールドを除いたペイロードのコピーを返します
func stripFields(payload map[string]any, fields []string) map[string]any {
	stripped := make(map[string]any, len(payload))
	for key, value := range payload {
		stripped[key] = value
	}
	for _, field := range fields {
		delete(stripped, field)
	}
	return stripped
}

// excerpt はボディの先頭 limit バイト以内を返します
// マルチバイト文字の途中では切りません
func excerpt(body []byte, limit int) string {
	text := strings.TrimSpace(string(body))
	if len(text) <= limit {
		return text
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}
