package security

import (
	"strings"
	"testing"
)

func TestContentSanitizer_RemovesScriptTags(t *testing.T) {
	s := NewContentSanitizer()

	got := s.Sanitize(`<p>hello</p><script>alert('xss')</script>`)

	if strings.Contains(got, "<script") || strings.Contains(got, "alert") {
		t.Errorf("scriptタグは除去されるべき: got %q", got)
	}
	if !strings.Contains(got, "<p>hello</p>") {
		t.Errorf("許可タグは保持されるべき: got %q", got)
	}
}

func TestContentSanitizer_RemovesIframeAndStyle(t *testing.T) {
	s := NewContentSanitizer()

	got := s.Sanitize(`<iframe src="https://evil.example"></iframe><style>body{}</style><p>ok</p>`)

	if strings.Contains(got, "<iframe") || strings.Contains(got, "<style") {
		t.Errorf("iframe/styleタグは除去されるべき: got %q", got)
	}
}

func TestContentSanitizer_RemovesEventAttributes(t *testing.T) {
	s := NewContentSanitizer()

	got := s.Sanitize(`<p onclick="alert(1)">click me</p>`)

	if strings.Contains(got, "onclick") {
		t.Errorf("on*イベント属性は除去されるべき: got %q", got)
	}
	if !strings.Contains(got, "click me") {
		t.Errorf("テキスト内容は保持されるべき: got %q", got)
	}
}

func TestContentSanitizer_KeepsAllowedFormatting(t *testing.T) {
	s := NewContentSanitizer()

	input := `<p>text with <strong>bold</strong> and <em>italic</em></p><ul><li>one</li></ul><pre><code>x := 1</code></pre>`
	got := s.Sanitize(input)

	for _, tag := range []string{"<strong>", "<em>", "<ul>", "<li>", "<pre>", "<code>"} {
		if !strings.Contains(got, tag) {
			t.Errorf("許可タグ %s は保持されるべき: got %q", tag, got)
		}
	}
}

func TestContentSanitizer_LinksGetSafeRel(t *testing.T) {
	s := NewContentSanitizer()

	got := s.Sanitize(`<a href="https://example.com/article">read</a>`)

	if !strings.Contains(got, `href="https://example.com/article"`) {
		t.Errorf("httpsリンクのhrefは保持されるべき: got %q", got)
	}
	if !strings.Contains(got, "noreferrer") {
		t.Errorf("外部リンクにはnoreferrerが付与されるべき: got %q", got)
	}
}

func TestContentSanitizer_EmptyInput(t *testing.T) {
	s := NewContentSanitizer()

	if got := s.Sanitize(""); got != "" {
		t.Errorf("空入力には空文字列を返すべき: got %q", got)
	}
}

func TestContentSanitizer_Idempotent(t *testing.T) {
	s := NewContentSanitizer()

	input := `<p>safe <strong>content</strong></p><script>bad()</script>`
	once := s.Sanitize(input)
	twice := s.Sanitize(once)

	if once != twice {
		t.Errorf("サニタイズは冪等であるべき: 1回目 %q, 2回目 %q", once, twice)
	}
}

func TestContentSanitizer_PlainTextPassesThrough(t *testing.T) {
	s := NewContentSanitizer()

	input := "A strong earthquake was reported near the coast."
	if got := s.Sanitize(input); got != input {
		t.Errorf("プレーンテキストは変更されるべきでない: got %q", got)
	}
}
