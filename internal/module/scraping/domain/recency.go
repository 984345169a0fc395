package domain

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	magnitudePattern = regexp.MustCompile(`\d+`)
	unitPattern      = regexp.MustCompile(`\p{L}+`)
)

// 即時扱いの表現
var immediateTokens = map[string]struct{}{
	"now":         {},
	"just now":    {},
	"agora":       {},
	"agora mesmo": {},
}

// 単位トークンは単語単位で照合する（"5m" のような短縮形は数字を除いた "m" で照合される）
var (
	secondTokens = tokenSet("s", "sec", "secs", "second", "seconds", "segundo", "segundos")
	minuteTokens = tokenSet("m", "min", "mins", "minute", "minutes", "minuto", "minutos")
	hourTokens   = tokenSet("h", "hr", "hrs", "hour", "hours", "hora", "horas")
	dayTokens    = tokenSet("d", "day", "days", "dia", "dias", "yesterday", "ontem")
	weekTokens   = tokenSet("w", "wk", "week", "weeks", "semana", "semanas")
)

// 日時として解釈を試みるレイアウト（ゾーン指定のないものはUTCとみなす）
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// RecencyClassifier は投稿日時が直近の時間枠に入るかを判定します
type RecencyClassifier struct {
	Now func() time.Time
}

// NewRecencyClassifier は現在時刻を基準とするRecencyClassifierを作成します
func NewRecencyClassifier() RecencyClassifier {
	return RecencyClassifier{Now: time.Now}
}

func (c RecencyClassifier) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

// IsRecentTime は時刻が windowHours 時間以内かを返します
func (c RecencyClassifier) IsRecentTime(t time.Time, windowHours int) bool {
	window := time.Duration(windowHours) * time.Hour
	return c.now().Sub(t) <= window
}

// IsRecentPost は投稿日時の表現（タイムスタンプまたは相対時刻テキスト）を判定します
// 日・週単位の相対表現は時間枠に関わらず直近ではないとみなします
func (c RecencyClassifier) IsRecentPost(postedAt *string, windowHours int) bool {
	if postedAt == nil {
		return false
	}

	text := strings.TrimSpace(*postedAt)
	if text == "" {
		return false
	}
	lower := strings.ToLower(text)

	if _, ok := immediateTokens[lower]; ok {
		return true
	}

	if ts, ok := parseTimestamp(text); ok {
		return c.IsRecentTime(ts, windowHours)
	}

	magnitude, hasMagnitude := firstMagnitude(lower)
	units := unitPattern.FindAllString(lower, -1)

	switch {
	case containsAny(units, secondTokens), containsAny(units, minuteTokens):
		return true
	case containsAny(units, hourTokens):
		return hasMagnitude && magnitude <= windowHours
	case containsAny(units, dayTokens), containsAny(units, weekTokens):
		return false
	default:
		return false
	}
}

func parseTimestamp(text string) (time.Time, bool) {
	candidate := strings.ToUpper(text)
	for _, layout := range timestampLayouts {
		if ts, err := time.ParseInLocation(layout, candidate, time.UTC); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

func firstMagnitude(text string) (int, bool) {
	match := magnitudePattern.FindString(text)
	if match == "" {
		return 0, false
	}
	value, err := strconv.Atoi(match)
	if err != nil {
		return 0, false
	}
	return value, true
}

func tokenSet(tokens ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		set[token] = struct{}{}
	}
	return set
}

func containsAny(words []string, set map[string]struct{}) bool {
	for _, word := range words {
		if _, ok := set[word]; ok {
			return true
		}
	}
	return false
}
