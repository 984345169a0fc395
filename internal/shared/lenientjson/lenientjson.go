// Package lenientjson は前後に余分なテキストを含む文字列から
// JSONオブジェクトを取り出すためのユーティリティです。
package lenientjson

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
)

// DefaultMaxScan は走査するバイト数のデフォルト上限
const DefaultMaxScan = 64 * 1024

// FindObject は raw の先頭 maxScan バイト以内で始まるJSONオブジェクトのうち、
// デコードに成功し key に配列を持つ最初のものを返します。
// key は gjson のパス表記です。
func FindObject(raw string, key string, maxScan int) (json.RawMessage, bool) {
	if raw == "" {
		return nil, false
	}
	if maxScan <= 0 {
		maxScan = DefaultMaxScan
	}
	limit := min(len(raw), maxScan)

	for idx := 0; idx < limit; idx++ {
		next := strings.IndexByte(raw[idx:limit], '{')
		if next < 0 {
			return nil, false
		}
		idx += next

		dec := json.NewDecoder(strings.NewReader(raw[idx:]))
		var obj json.RawMessage
		if err := dec.Decode(&obj); err != nil {
			continue
		}
		obj = bytes.TrimSpace(obj)
		if len(obj) == 0 || obj[0] != '{' {
			continue
		}
		if gjson.GetBytes(obj, key).IsArray() {
			return obj, true
		}
	}
	return nil, false
}

// FindList は FindObject で見つけたオブジェクトの key 配列を out にデコードします。
// 見つからない、またはデコードできない場合は false を返します。
func FindList[T any](raw string, key string, maxScan int) ([]T, bool) {
	obj, ok := FindObject(raw, key, maxScan)
	if !ok {
		return nil, false
	}

	var items []T
	if err := json.Unmarshal([]byte(gjson.GetBytes(obj, key).Raw), &items); err != nil {
		return nil, false
	}
	return items, true
}
