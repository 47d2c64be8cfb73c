// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/misaki/caresync/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// tokenContextKey はリクエストコンテキストにベアラートークンを格納するためのキー。
var tokenContextKey = contextKey("bearer_token")

// NewTokenMiddleware はAuthorizationヘッダーのベアラートークンを
// リクエストコンテキストに注入するミドルウェアを返す。
//
// ゲートウェイはトークンの中身を検証せず、不透明な値として
// リモートサービスへそのまま転送する（認証の真正性はリモートサービス側が
// 判断する）。オフライン時にリモート検証が不可能でも、トークンを提示した
// リクエストのキャッシュ読み取りを拒否しないためである。
// トークンの有無の強制はNewRequireTokenMiddlewareが行う。
func NewTokenMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			ctx := context.WithValue(r.Context(), tokenContextKey, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// NewRequireTokenMiddleware はベアラートークンのないリクエストに
// 401を返すミドルウェアを返す。/api/* 配下に適用する。
// NewTokenMiddlewareの後に配置する。
func NewRequireTokenMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if TokenFromContext(r.Context()) == "" {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// extractBearerToken はAuthorizationヘッダーからベアラートークンを取り出す。
// 形式が不正な場合は空文字列を返す。
func extractBearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

// TokenFromContext はリクエストコンテキストからベアラートークンを取得する。
// トークンがない場合は空文字列を返す。
func TokenFromContext(ctx context.Context) string {
	token, ok := ctx.Value(tokenContextKey).(string)
	if !ok {
		return ""
	}
	return token
}

// ContextWithToken はコンテキストにベアラートークンを注入する。
// テストおよびミドルウェア以外のコンテキスト生成で使用する。
func ContextWithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenContextKey, token)
}

// ClientKey はレート制限用のクライアント識別キーを返す。
// ベアラートークンがあればそれを、なければリモートアドレスのホスト部を使う。
func ClientKey(r *http.Request) string {
	if token := TokenFromContext(r.Context()); token != "" {
		return token
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
