package middleware

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ContextKeyUsername は認証済みユーザー名をGinコンテキストに格納するキー。
const ContextKeyUsername = "username"

// contextKeyToken はCookieから取り出したトークンをステージ間で受け渡すキー。
const contextKeyToken = "guard.token"

// LoginPath は認証失敗時のリダイレクト先。
const LoginPath = "/login"

// decisionKind はステージ判定の種類。
type decisionKind int

const (
	// decisionContinue は次のステージへ進むことを表す。
	decisionContinue decisionKind = iota
	// decisionAdmit は残りのステージを飛ばしてリクエストを通すことを表す。
	decisionAdmit
	// decisionDeny はリクエストを拒否してリダイレクトすることを表す。
	decisionDeny
)

// Decision はガードの各ステージが返す判定結果。
type Decision struct {
	// kind は判定の種類。
	kind decisionKind
	// location は拒否時のリダイレクト先。
	location string
}

// Continue は次のステージへ判定を委ねる。
func Continue() Decision {
	return Decision{kind: decisionContinue}
}

// Admit はリクエストを即座に通す。
func Admit() Decision {
	return Decision{kind: decisionAdmit}
}

// Deny はリクエストを拒否し、locationへリダイレクトする。
func Deny(location string) Decision {
	return Decision{kind: decisionDeny, location: location}
}

// Stage はガードパイプラインの1段階。
type Stage func(c *gin.Context) Decision

// Guard はステージを順に評価するGinミドルウェアを返す。
// いずれかのステージが Admit または Deny を返した時点で評価を打ち切る。
// すべてのステージが Continue を返した場合はリクエストを通す。
func Guard(stages ...Stage) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, stage := range stages {
			d := stage(c)
			switch d.kind {
			case decisionAdmit:
				c.Next()
				return
			case decisionDeny:
				c.Redirect(http.StatusFound, d.location)
				c.Abort()
				return
			}
		}
		c.Next()
	}
}

// PublicPaths は認証不要なパスを判定するステージを返す。
// pathsは完全一致、prefixesは前方一致で評価する。
func PublicPaths(paths, prefixes []string) Stage {
	exact := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		exact[p] = struct{}{}
	}

	return func(c *gin.Context) Decision {
		path := c.Request.URL.Path
		if _, ok := exact[path]; ok {
			return Admit()
		}
		for _, prefix := range prefixes {
			if strings.HasPrefix(path, prefix) {
				return Admit()
			}
		}
		return Continue()
	}
}

// CookieToken は指定された名前のCookieからトークンを取り出すステージを返す。
// Cookieがない場合はログイン画面へリダイレクトする。
func CookieToken(name string) Stage {
	return func(c *gin.Context) Decision {
		tokenString, err := c.Cookie(name)
		if err != nil || tokenString == "" {
			return Deny(LoginPath)
		}
		c.Set(contextKeyToken, tokenString)
		return Continue()
	}
}

// Verification はトークン検証の結果。
type Verification struct {
	// Valid はトークンが有効かどうか。
	Valid bool
	// Username は有効な場合のユーザー名。
	Username string
}

// Verifier はトークンを検証する認証サービスのクライアント。
type Verifier interface {
	// Verify はトークンを検証する。無効なトークンはエラーではなく Valid=false で返す。
	Verify(ctx context.Context, token string) (Verification, error)
}

// VerifyToken は認証サービスでトークンを検証するステージを返す。
// リクエストごとに1回だけVerifierを呼び出し、有効な場合はユーザー名をコンテキストに設定する。
func VerifyToken(verifier Verifier) Stage {
	return func(c *gin.Context) Decision {
		tokenString := c.GetString(contextKeyToken)
		if tokenString == "" {
			return Deny(LoginPath)
		}

		result, err := verifier.Verify(c.Request.Context(), tokenString)
		if err != nil {
			log.Printf("トークン検証に失敗: path=%s, error=%v", c.Request.URL.Path, err)
			return Deny(LoginPath)
		}
		if !result.Valid || result.Username == "" {
			return Deny(LoginPath)
		}

		c.Set(ContextKeyUsername, result.Username)
		return Continue()
	}
}

// GetUsername はGinコンテキストから認証済みユーザー名を取得する。
// VerifyTokenステージが事前に適用されている必要がある。
func GetUsername(c *gin.Context) string {
	return c.GetString(ContextKeyUsername)
}
