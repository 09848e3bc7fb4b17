package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeVerifier はテスト用のVerifier実装。呼び出し回数を記録する。
type fakeVerifier struct {
	// calls はVerifyの呼び出し回数。
	calls atomic.Int32
	// valid は有効と判定するトークンとユーザー名の対応。
	valid map[string]string
	// err はVerifyが返すエラー。
	err error
}

// Verify はトークンを検証する。
func (f *fakeVerifier) Verify(_ context.Context, token string) (Verification, error) {
	f.calls.Add(1)
	if f.err != nil {
		return Verification{}, f.err
	}
	username, ok := f.valid[token]
	if !ok {
		return Verification{Valid: false}, nil
	}
	return Verification{Valid: true, Username: username}, nil
}

// newGuardedRouter はテスト用にガードを適用したルーターを生成する。
// 保護されたハンドラに到達したユーザー名をreachedに記録する。
func newGuardedRouter(verifier Verifier, reached *atomic.Value) *gin.Engine {
	router := gin.New()
	router.Use(Guard(
		PublicPaths([]string{"/login", "/register"}, []string{"/public/"}),
		CookieToken("jwt"),
		VerifyToken(verifier),
	))
	handler := func(c *gin.Context) {
		reached.Store(GetUsername(c))
		c.String(http.StatusOK, "ok")
	}
	router.GET("/login", handler)
	router.GET("/public/app.css", handler)
	router.GET("/", handler)
	router.GET("/history", handler)
	return router
}

// TestGuard はガードパイプラインを検証する。
func TestGuard(t *testing.T) {
	t.Parallel()

	t.Run("公開パスはトークンなしで許可されること", func(t *testing.T) {
		t.Parallel()

		verifier := &fakeVerifier{}
		var reached atomic.Value
		router := newGuardedRouter(verifier, &reached)

		for _, path := range []string{"/login", "/public/app.css"} {
			req := httptest.NewRequest(http.MethodGet, path, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != http.StatusOK {
				t.Errorf("%s: ステータスコード = %d, want %d", path, w.Code, http.StatusOK)
			}
		}
		if got := verifier.calls.Load(); got != 0 {
			t.Errorf("Verify呼び出し回数 = %d, want 0", got)
		}
	})

	t.Run("Cookieがない場合はログイン画面へリダイレクトされること", func(t *testing.T) {
		t.Parallel()

		verifier := &fakeVerifier{}
		var reached atomic.Value
		router := newGuardedRouter(verifier, &reached)

		req := httptest.NewRequest(http.MethodGet, "/history", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusFound {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusFound)
		}
		if got := w.Header().Get("Location"); got != LoginPath {
			t.Errorf("Location = %q, want %q", got, LoginPath)
		}
		if reached.Load() != nil {
			t.Error("保護されたハンドラが呼び出された")
		}
		if got := verifier.calls.Load(); got != 0 {
			t.Errorf("Verify呼び出し回数 = %d, want 0", got)
		}
	})

	t.Run("有効なトークンでは1回だけ検証されてユーザー名が設定されること", func(t *testing.T) {
		t.Parallel()

		verifier := &fakeVerifier{valid: map[string]string{"good-token": "alice"}}
		var reached atomic.Value
		router := newGuardedRouter(verifier, &reached)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: "jwt", Value: "good-token"})
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}
		if got, _ := reached.Load().(string); got != "alice" {
			t.Errorf("username = %q, want %q", got, "alice")
		}
		if got := verifier.calls.Load(); got != 1 {
			t.Errorf("Verify呼び出し回数 = %d, want 1", got)
		}
	})

	t.Run("無効なトークンではログイン画面へリダイレクトされること", func(t *testing.T) {
		t.Parallel()

		verifier := &fakeVerifier{valid: map[string]string{"good-token": "alice"}}
		var reached atomic.Value
		router := newGuardedRouter(verifier, &reached)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: "jwt", Value: "expired-token"})
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusFound {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusFound)
		}
		if got := w.Header().Get("Location"); got != LoginPath {
			t.Errorf("Location = %q, want %q", got, LoginPath)
		}
		if reached.Load() != nil {
			t.Error("保護されたハンドラが呼び出された")
		}
	})

	t.Run("認証サービスとの通信に失敗した場合もリダイレクトされること", func(t *testing.T) {
		t.Parallel()

		verifier := &fakeVerifier{err: errors.New("connection refused")}
		var reached atomic.Value
		router := newGuardedRouter(verifier, &reached)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: "jwt", Value: "good-token"})
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusFound {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusFound)
		}
		if reached.Load() != nil {
			t.Error("保護されたハンドラが呼び出された")
		}
	})

	t.Run("公開パスの前方一致はプレフィックス外のパスに適用されないこと", func(t *testing.T) {
		t.Parallel()

		router := gin.New()
		router.Use(Guard(PublicPaths(nil, []string{"/public/"}), CookieToken("jwt")))
		router.GET("/publicity", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

		req := httptest.NewRequest(http.MethodGet, "/publicity", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusFound {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusFound)
		}
	})
}

// TestGuardWithoutStages はステージが空の場合の挙動を検証する。
func TestGuardWithoutStages(t *testing.T) {
	t.Parallel()

	router := gin.New()
	router.Use(Guard())
	router.GET("/", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
	}
}

// TestVerifyTokenWithoutCookieStage はトークン未取得のまま検証ステージに到達した場合を検証する。
func TestVerifyTokenWithoutCookieStage(t *testing.T) {
	t.Parallel()

	verifier := &fakeVerifier{}
	router := gin.New()
	router.Use(Guard(VerifyToken(verifier)))
	router.GET("/", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusFound {
		t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusFound)
	}
	if got := verifier.calls.Load(); got != 0 {
		t.Errorf("Verify呼び出し回数 = %d, want 0", got)
	}
}
