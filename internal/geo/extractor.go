package geo

import (
	"regexp"
	"strings"
)

// Matcher はテキストから地名候補を抽出する戦略のインターフェース。
// 抽出器は順序付きのMatcher列を先頭から適用し、最初にマッチした候補を採用する。
// 正規表現ベース以外の戦略（辞書ベース等）への差し替えを想定している。
type Matcher interface {
	// Match はテキストから地名候補を抽出する。見つからない場合はfalseを返す。
	Match(text string) (string, bool)
}

// patternMatcher は正規表現による地名抽出の実装。
type patternMatcher struct {
	re    *regexp.Regexp
	group int // 採用するキャプチャグループ番号
}

// Match は正規表現で地名候補を抽出する。
func (m *patternMatcher) Match(text string) (string, bool) {
	matches := m.re.FindStringSubmatch(text)
	if matches == nil || len(matches) <= m.group {
		return "", false
	}
	place := strings.TrimSpace(matches[m.group])
	if place == "" {
		return "", false
	}
	return place, true
}

// capitalized は「大文字始まりの単語（複合語可）」の部分パターン。
const capitalized = `[A-Z][\p{L}'-]+(?:\s+[A-Z][\p{L}'-]+)*`

// DefaultMatchers は既定の地名抽出戦略を優先順に返す。
//  1. "City, Country" 形式の大文字始まり単語のペア
//  2. "in <Place>" 形式
//  3. "at <Place>" 形式
//
// ヒューリスティックであり、誤検出・取りこぼしは許容される。
func DefaultMatchers() []Matcher {
	return []Matcher{
		// "Kyiv, Ukraine" のような「地名, 国名」ペア
		&patternMatcher{
			re:    regexp.MustCompile(`\b(` + capitalized + `,\s+` + capitalized + `)\b`),
			group: 1,
		},
		// "in Mogadishu" のような前置詞パターン。前置詞は除去して返す。
		&patternMatcher{
			re:    regexp.MustCompile(`\bin\s+(` + capitalized + `)`),
			group: 1,
		},
		&patternMatcher{
			re:    regexp.MustCompile(`\bat\s+(` + capitalized + `)`),
			group: 1,
		},
	}
}

// Extractor は記事テキストからの地名抽出器。
// タイトルを優先し、見つからない場合は本文（説明文）にフォールバックする。
type Extractor struct {
	matchers []Matcher
}

// NewExtractor は指定したMatcher列を使用するExtractorを生成する。
// matchersが空の場合はDefaultMatchersを使用する。
func NewExtractor(matchers ...Matcher) *Extractor {
	if len(matchers) == 0 {
		matchers = DefaultMatchers()
	}
	return &Extractor{matchers: matchers}
}

// Extract はタイトル、次に説明文から地名候補を抽出する。
// 各テキストに対してMatcher列を順に適用し、最初のマッチを返す。
// 見つからない場合は空文字列を返す。
func (e *Extractor) Extract(title, description string) string {
	for _, text := range []string{title, description} {
		if text == "" {
			continue
		}
		for _, m := range e.matchers {
			if place, ok := m.Match(text); ok {
				return place
			}
		}
	}
	return ""
}
