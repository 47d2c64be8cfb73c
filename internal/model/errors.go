package model

import (
	"errors"
	"fmt"
)

// 同期ポリシーの失敗分類。errors.Isで判定できるようセンチネルとして定義する。
var (
	// ErrStorageUnavailable はローカルストレージが利用できないことを示す。
	// アプリはオフラインサポートなしのネットワーク専用モードに縮退する。
	ErrStorageUnavailable = errors.New("ローカルストレージが利用できません")

	// ErrNoCachedData は読み取りフォールバックで有効なキャッシュが
	// 見つからなかったことを示す。一覧読み取りではリポジトリ境界で
	// 空コレクションに縮退し、単一エンティティ読み取りでは表面化する。
	ErrNoCachedData = errors.New("利用可能なキャッシュデータがありません")

	// ErrOfflineWriteRejected はオフライン中の書き込みが拒否されたことを示す。
	// 書き込みはキューイングも再実行もされない。
	ErrOfflineWriteRejected = errors.New("オフラインのため書き込みが拒否されました")

	// ErrNotFoundOffline はキャッシュにもストアにもエンティティが
	// 存在しないことを示す。
	ErrNotFoundOffline = errors.New("オフラインでエンティティが見つかりません")
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, sync, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeStorageUnavailable   = "STORAGE_UNAVAILABLE"
	ErrCodeNoCachedData         = "NO_CACHED_DATA"
	ErrCodeOfflineWriteRejected = "OFFLINE_WRITE_REJECTED"
	ErrCodeNotFoundOffline      = "NOT_FOUND_OFFLINE"
	ErrCodeUpstreamFailed       = "UPSTREAM_FAILED"
	ErrCodeInvalidRequest       = "INVALID_REQUEST"
	ErrCodeUnauthorized         = "UNAUTHORIZED"
)

// NewOfflineWriteRejectedError はオフライン書き込み拒否エラーを生成する。
func NewOfflineWriteRejectedError() *APIError {
	return &APIError{
		Code:     ErrCodeOfflineWriteRejected,
		Message:  "インターネット接続がないため、変更を保存できませんでした。",
		Category: "sync",
		Action:   "接続が回復してから再度お試しください。オフライン中の変更は保存されません。",
	}
}

// NewNotFoundOfflineError はオフライン未検出エラーを生成する。
func NewNotFoundOfflineError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeNotFoundOffline,
		Message:  fmt.Sprintf("指定されたデータが見つかりません: %s", id),
		Category: "sync",
		Action:   "接続が回復してから再度お試しください。",
	}
}

// NewStorageUnavailableError はストレージ利用不可エラーを生成する。
func NewStorageUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeStorageUnavailable,
		Message:  "ローカルストレージにアクセスできません。",
		Category: "system",
		Action:   "オフラインサポートなしで継続します。ストレージの空き容量と権限を確認してください。",
	}
}

// NewUpstreamFailedError はリモートサービス呼び出し失敗エラーを生成する。
func NewUpstreamFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeUpstreamFailed,
		Message:  fmt.Sprintf("サーバーとの通信に失敗しました: %s", reason),
		Category: "sync",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewInvalidRequestError は無効なリクエストエラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("無効なリクエストです: %s", reason),
		Category: "validation",
		Action:   "リクエスト内容を確認してください。",
	}
}

// NewUnauthorizedError は認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}
