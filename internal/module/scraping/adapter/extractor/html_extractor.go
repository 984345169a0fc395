package extractor

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jinford/profile-scraper/internal/module/scraping/domain"
)

var (
	// "1,234 Followers, 56 Following, 78 Posts - See Instagram photos and videos from Alice (@alice)"
	followersPattern = regexp.MustCompile(`(?i)([\d.,]+\s*[KMB]?)\s+(?:followers|seguidores)`)
	followingPattern = regexp.MustCompile(`(?i)([\d.,]+\s*[KMB]?)\s+(?:following|seguindo)`)
	postsPattern     = regexp.MustCompile(`(?i)([\d.,]+\s*[KMB]?)\s+(?:posts|publicações|publicacoes)`)
	handlePattern    = regexp.MustCompile(`\(@([A-Za-z0-9._]+)\)`)
	bioPattern       = regexp.MustCompile(`(?s)on Instagram:\s*"(.+)"\s*$`)
)

var privateMarkers = []string{
	"this account is private",
	"esta conta é privada",
	"essa conta é privada",
}

// HTMLExtractor はレンダリング後のHTMLのメタ情報からプロフィール情報を推定するContentExtractorです
// 画像解析が使えない場合の代替であり、コメントは抽出できません
type HTMLExtractor struct{}

// NewHTMLExtractor は新しいHTMLExtractorを作成します
func NewHTMLExtractor() *HTMLExtractor {
	return &HTMLExtractor{}
}

var _ domain.ContentExtractor = (*HTMLExtractor)(nil)

// pageMeta はHTMLから読み取ったメタ情報
type pageMeta struct {
	title       string
	description string
	url         string
	bodyText    string
}

func parsePageMeta(html string) (*pageMeta, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}

	meta := &pageMeta{
		title:       metaContent(doc, `meta[property="og:title"]`),
		description: metaContent(doc, `meta[property="og:description"]`),
		url:         metaContent(doc, `meta[property="og:url"]`),
		bodyText:    strings.ToLower(doc.Find("body").Text()),
	}
	if meta.description == "" {
		meta.description = metaContent(doc, `meta[name="description"]`)
	}
	if meta.title == "" {
		meta.title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	return meta, nil
}

func metaContent(doc *goquery.Document, selector string) string {
	content, _ := doc.Find(selector).First().Attr("content")
	return strings.TrimSpace(content)
}

// ExtractProfileInfo はog:description等からプロフィール情報を推定します
func (e *HTMLExtractor) ExtractProfileInfo(ctx context.Context, screenshot, html string) (*domain.ProfileInfo, error) {
	meta, err := parsePageMeta(html)
	if err != nil {
		return nil, err
	}

	info := &domain.ProfileInfo{
		Username:       meta.username(),
		Bio:            meta.bio(),
		IsPrivate:      meta.isPrivate(),
		FollowerCount:  parseCount(followersPattern, meta.description),
		FollowingCount: parseCount(followingPattern, meta.description),
		PostCount:      parseCount(postsPattern, meta.description),
	}
	return info, nil
}

// ExtractComments はHTMLからは抽出できないため常に空を返します
func (e *HTMLExtractor) ExtractComments(ctx context.Context, screenshot string) ([]domain.Comment, error) {
	return []domain.Comment{}, nil
}

// ExtractUserInfo はユーザーのプロフィールHTMLから付加情報を推定します
func (e *HTMLExtractor) ExtractUserInfo(ctx context.Context, screenshot, html, username string) (*domain.UserInfo, error) {
	meta, err := parsePageMeta(html)
	if err != nil {
		return nil, err
	}

	private := meta.isPrivate()
	confidence := 0.3
	if meta.description != "" {
		confidence = 0.6
	}
	return &domain.UserInfo{
		Bio:           meta.bio(),
		IsPrivate:     &private,
		FollowerCount: parseCount(followersPattern, meta.description),
		Confidence:    &confidence,
	}, nil
}

func (m *pageMeta) username() string {
	for _, text := range []string{m.title, m.description} {
		if match := handlePattern.FindStringSubmatch(text); match != nil {
			return match[1]
		}
	}
	if m.url != "" {
		return domain.UsernameFromURL(m.url)
	}
	return ""
}

func (m *pageMeta) bio() *string {
	match := bioPattern.FindStringSubmatch(m.description)
	if match == nil {
		return nil
	}
	bio := strings.TrimSpace(match[1])
	if bio == "" {
		return nil
	}
	return &bio
}

func (m *pageMeta) isPrivate() bool {
	for _, marker := range privateMarkers {
		if strings.Contains(m.bodyText, marker) {
			return true
		}
	}
	return false
}

// parseCount はパターンに一致した件数表記を整数に変換します
func parseCount(pattern *regexp.Regexp, text string) *int {
	match := pattern.FindStringSubmatch(text)
	if match == nil {
		return nil
	}
	n, ok := ParseCount(match[1])
	if !ok {
		return nil
	}
	return &n
}

// ParseCount は "1,234" "1.2K" "3M" のような件数表記を整数に変換します
func ParseCount(text string) (int, bool) {
	s := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(text), " ", ""))
	if s == "" {
		return 0, false
	}

	multiplier := 1.0
	switch s[len(s)-1] {
	case 'K':
		multiplier = 1e3
		s = s[:len(s)-1]
	case 'M':
		multiplier = 1e6
		s = s[:len(s)-1]
	case 'B':
		multiplier = 1e9
		s = s[:len(s)-1]
	}

	if multiplier == 1 {
		// 区切り文字のみの整数表記
		s = strings.NewReplacer(",", "", ".", "").Replace(s)
	} else {
		s = strings.ReplaceAll(s, ",", ".")
	}

	value, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return int(value*multiplier + 0.5), true
}
