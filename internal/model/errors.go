// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, feed, item, authz, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidURL             = "INVALID_URL"
	ErrCodeSSRFBlocked            = "SSRF_BLOCKED"
	ErrCodeFetchFailed            = "FETCH_FAILED"
	ErrCodeParseFailed            = "PARSE_FAILED"
	ErrCodeFeedNotFound           = "FEED_NOT_FOUND"
	ErrCodeItemNotFound           = "ITEM_NOT_FOUND"
	ErrCodeForbidden              = "FORBIDDEN"
	ErrCodeInvalidFeedType        = "INVALID_FEED_TYPE"
	ErrCodeInvalidRefreshInterval = "INVALID_REFRESH_INTERVAL"
	ErrCodeInvalidRequest         = "INVALID_REQUEST"
	ErrCodeInvalidFilter          = "INVALID_FILTER"
)

// NewInvalidURLError は無効なURLエラーを生成する。
func NewInvalidURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidURL,
		Message:  fmt.Sprintf("無効なURLです: %s", reason),
		Category: "validation",
		Action:   "正しいURL形式（http:// または https:// で始まるURL）を入力してください。",
	}
}

// NewSSRFBlockedError はSSRFブロックエラーを生成する。
func NewSSRFBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodeSSRFBlocked,
		Message:  "セキュリティポリシーにより、指定されたURLへのアクセスがブロックされました。",
		Category: "validation",
		Action:   "公開されているWebサイトのURLを入力してください。ローカルネットワークやプライベートIPへのアクセスは許可されていません。",
	}
}

// NewFetchFailedError はフェッチ失敗エラーを生成する。
func NewFetchFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeFetchFailed,
		Message:  fmt.Sprintf("フィードの取得に失敗しました: %s", reason),
		Category: "feed",
		Action:   "URLが正しいか確認し、しばらく待ってから再度お試しください。",
	}
}

// NewParseFailedError はパース失敗エラーを生成する。
// フィード登録時のURL検証と更新サイクルの両方で使用される。
func NewParseFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeParseFailed,
		Message:  fmt.Sprintf("フィードの解析に失敗しました: %s", reason),
		Category: "feed",
		Action:   "有効なRSS/Atomフィードかどうか確認してください。",
	}
}

// NewFeedNotFoundError はフィード未検出エラーを生成する。
func NewFeedNotFoundError(feedID string) *APIError {
	return &APIError{
		Code:     ErrCodeFeedNotFound,
		Message:  fmt.Sprintf("指定されたフィードが見つかりません: %s", feedID),
		Category: "feed",
		Action:   "フィードIDを確認してください。",
	}
}

// NewItemNotFoundError は記事未検出エラーを生成する。
func NewItemNotFoundError(itemID string) *APIError {
	return &APIError{
		Code:     ErrCodeItemNotFound,
		Message:  fmt.Sprintf("指定された記事が見つかりません: %s", itemID),
		Category: "item",
		Action:   "記事IDを確認してください。",
	}
}

// NewForbiddenError はスコープ外のフィード・記事への参照エラーを生成する。
// 未検出（404）とは区別され、認可エラー（403）としてAPI層に伝播する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "このリソースへのアクセス権限がありません。",
		Category: "authz",
		Action:   "自分が所有するフィード・記事のみ操作できます。",
	}
}

// NewInvalidFilterError は解釈できないフィルタ値のエラーを生成する。
func NewInvalidFilterError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidFilter,
		Message:  fmt.Sprintf("無効なフィルタ値です: %s", reason),
		Category: "validation",
		Action:   "フィルタパラメータの形式を確認してください。",
	}
}

// NewInvalidFeedTypeError は未定義のフィードタイプエラーを生成する。
func NewInvalidFeedTypeError(t string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidFeedType,
		Message:  fmt.Sprintf("無効なフィードタイプです: %s", t),
		Category: "validation",
		Action:   "news, security, disaster, maritime, aviation, conflict, economics, science, health, custom のいずれかを指定してください。",
	}
}

// NewInvalidRefreshIntervalError は更新間隔が下限未満の場合のエラーを生成する。
func NewInvalidRefreshIntervalError(minutes int) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRefreshInterval,
		Message:  fmt.Sprintf("無効な更新間隔です: %d分", minutes),
		Category: "validation",
		Action:   fmt.Sprintf("更新間隔は%d分以上で指定してください。", MinRefreshIntervalMinutes),
	}
}
