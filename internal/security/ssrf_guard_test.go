package security

import (
	"testing"
	"time"
)

func TestSSRFGuard_ValidateURL_AllowsPublicURLs(t *testing.T) {
	g := NewSSRFGuard()

	urls := []string{
		"https://example.com/feed.xml",
		"http://feeds.bbci.co.uk/news/rss.xml",
		"https://8.8.8.8/feed",
	}

	for _, u := range urls {
		if err := g.ValidateURL(u); err != nil {
			t.Errorf("ValidateURL(%q) がエラーを返した: %v", u, err)
		}
	}
}

func TestSSRFGuard_ValidateURL_BlocksDangerousURLs(t *testing.T) {
	g := NewSSRFGuard()

	tests := []struct {
		name string
		url  string
	}{
		{"空URL", ""},
		{"未対応スキーム", "ftp://example.com/feed.xml"},
		{"fileスキーム", "file:///etc/passwd"},
		{"ホストなし", "https://"},
		{"localhost", "http://localhost/feed.xml"},
		{"localhost大文字", "http://LOCALHOST/feed.xml"},
		{"ループバックIP", "http://127.0.0.1/feed.xml"},
		{"プライベートIP 10系", "http://10.0.0.5/feed.xml"},
		{"プライベートIP 172系", "http://172.16.0.1/feed.xml"},
		{"プライベートIP 192系", "http://192.168.1.1/feed.xml"},
		{"メタデータIP", "http://169.254.169.254/latest/meta-data/"},
		{"IPv6ループバック", "http://[::1]/feed.xml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := g.ValidateURL(tt.url); err == nil {
				t.Errorf("ValidateURL(%q) はブロックされるべき", tt.url)
			}
		})
	}
}

func TestSSRFGuard_NewSafeClient(t *testing.T) {
	g := NewSSRFGuard()

	client := g.NewSafeClient(5*time.Second, 3)
	if client == nil {
		t.Fatal("クライアントが生成されるべき")
	}
	if client.CheckRedirect == nil {
		t.Error("リダイレクト制限が設定されるべき")
	}
}
