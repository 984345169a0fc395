package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	scraping "github.com/jinford/profile-scraper/internal/module/scraping/domain"
)

// maxPageLimit はページングで指定できる件数の上限
const maxPageLimit = 500

// WriteJSON は指定したステータスコードでJSONを書き込みます
func WriteJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}

// WriteError は {"detail": message} 形式のエラーを書き込みます
func WriteError(w http.ResponseWriter, statusCode int, message string) error {
	return WriteJSON(w, statusCode, map[string]string{"detail": message})
}

// pageParams は skip / limit クエリを読み取ります
func pageParams(r *http.Request, defaultLimit int) (scraping.Page, bool) {
	page := scraping.Page{Offset: 0, Limit: defaultLimit}

	if raw := r.URL.Query().Get("skip"); raw != "" {
		skip, err := strconv.Atoi(raw)
		if err != nil || skip < 0 {
			return page, false
		}
		page.Offset = skip
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > maxPageLimit {
			return page, false
		}
		page.Limit = limit
	}
	return page, true
}
