package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// credentialPayload はテスト用のリクエストペイロード。
type credentialPayload struct {
	// Username はユーザー名。
	Username string `json:"username"`
	// Password はパスワード。
	Password string `json:"password"`
}

// tokenPayload はテスト用のレスポンスペイロード。
type tokenPayload struct {
	// Token は発行されたトークン。
	Token string `json:"token"`
}

// TestNew はNew関数でクライアントが正しく生成されることを検証する。
func TestNew(t *testing.T) {
	t.Parallel()

	client := New("http://auth-service")
	if client.baseURL != "http://auth-service" {
		t.Errorf("baseURL = %q, want %q", client.baseURL, "http://auth-service")
	}
	if client.httpClient.Timeout.Seconds() != 30 {
		t.Errorf("Timeout = %v, want 30s", client.httpClient.Timeout)
	}
}

// TestPostJSON はPostJSON関数を検証する。
func TestPostJSON(t *testing.T) {
	t.Parallel()

	t.Run("JSONボディを送信してレスポンスを取得できること", func(t *testing.T) {
		t.Parallel()

		var (
			gotMethod, gotPath, gotContentType string
			gotBody                            credentialPayload
		)
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotMethod = r.Method
			gotPath = r.URL.Path
			gotContentType = r.Header.Get("Content-Type")
			_ = json.NewDecoder(r.Body).Decode(&gotBody)

			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(tokenPayload{Token: "signed-token"})
		}))
		defer ts.Close()

		var result tokenPayload
		err := New(ts.URL).PostJSON(context.Background(), "/login", credentialPayload{Username: "alice", Password: "s3cret"}, &result)
		if err != nil {
			t.Fatalf("PostJSON()でエラーが発生: %v", err)
		}

		if gotMethod != http.MethodPost {
			t.Errorf("Method = %q, want %q", gotMethod, http.MethodPost)
		}
		if gotPath != "/login" {
			t.Errorf("Path = %q, want %q", gotPath, "/login")
		}
		if gotContentType != "application/json" {
			t.Errorf("Content-Type = %q, want %q", gotContentType, "application/json")
		}
		if gotBody.Username != "alice" || gotBody.Password != "s3cret" {
			t.Errorf("送信ボディ = %+v", gotBody)
		}
		if result.Token != "signed-token" {
			t.Errorf("result.Token = %q, want %q", result.Token, "signed-token")
		}
	})

	t.Run("2xx以外のステータスはStatusErrorとして返ること", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"valid":false}`))
		}))
		defer ts.Close()

		err := New(ts.URL).PostJSON(context.Background(), "/verify", map[string]string{"token": "x"}, nil)

		var statusErr *StatusError
		if !errors.As(err, &statusErr) {
			t.Fatalf("err = %v, want *StatusError", err)
		}
		if statusErr.StatusCode != http.StatusForbidden {
			t.Errorf("StatusCode = %d, want %d", statusErr.StatusCode, http.StatusForbidden)
		}
		if !strings.Contains(statusErr.Body, `"valid":false`) {
			t.Errorf("Body = %q", statusErr.Body)
		}
	})

	t.Run("エラー時のボディは上限までしか読み取られないこと", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(strings.Repeat("x", maxErrorBodySize*2)))
		}))
		defer ts.Close()

		err := New(ts.URL).PostJSON(context.Background(), "/register", nil, nil)

		var statusErr *StatusError
		if !errors.As(err, &statusErr) {
			t.Fatalf("err = %v, want *StatusError", err)
		}
		if len(statusErr.Body) != maxErrorBodySize {
			t.Errorf("len(Body) = %d, want %d", len(statusErr.Body), maxErrorBodySize)
		}
	})

	t.Run("resultがnilの場合でもエラーにならないこと", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"message":"created"}`))
		}))
		defer ts.Close()

		if err := New(ts.URL).PostJSON(context.Background(), "/register", credentialPayload{Username: "bob", Password: "pw"}, nil); err != nil {
			t.Fatalf("PostJSON()でエラーが発生: %v", err)
		}
	})

	t.Run("キャンセルされたコンテキストでエラーが返ること", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer ts.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if err := New(ts.URL).PostJSON(ctx, "/verify", map[string]string{"token": "x"}, nil); err == nil {
			t.Fatal("PostJSON()がエラーを返すべきだが、nilが返った")
		}
	})
}

// TestGetJSON はGetJSON関数を検証する。
func TestGetJSON(t *testing.T) {
	t.Parallel()

	t.Run("クエリ付きのGETリクエストでレスポンスを取得できること", func(t *testing.T) {
		t.Parallel()

		var gotQuery string
		var gotBody []byte
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotQuery = r.URL.RawQuery
			gotBody, _ = io.ReadAll(r.Body)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"videos":[{"_id":"v1","name":"intro.mp4"}]}`))
		}))
		defer ts.Close()

		var result struct {
			Videos []struct {
				ID   string `json:"_id"`
				Name string `json:"name"`
			} `json:"videos"`
		}
		if err := New(ts.URL).GetJSON(context.Background(), "/videos?page=1", &result); err != nil {
			t.Fatalf("GetJSON()でエラーが発生: %v", err)
		}

		if gotQuery != "page=1" {
			t.Errorf("RawQuery = %q, want %q", gotQuery, "page=1")
		}
		if len(gotBody) != 0 {
			t.Errorf("GETリクエストにボディが含まれている: %q", gotBody)
		}
		if len(result.Videos) != 1 || result.Videos[0].Name != "intro.mp4" {
			t.Errorf("result = %+v", result)
		}
	})

	t.Run("不正なJSONレスポンスでエラーが返ること", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{invalid json}`))
		}))
		defer ts.Close()

		var result map[string]any
		if err := New(ts.URL).GetJSON(context.Background(), "/history", &result); err == nil {
			t.Fatal("GetJSON()がエラーを返すべきだが、nilが返った")
		}
	})

	t.Run("接続できないサーバーに対してエラーが返ること", func(t *testing.T) {
		t.Parallel()

		var result map[string]any
		err := New("http://127.0.0.1:1").GetJSON(context.Background(), "/history", &result)
		if err == nil {
			t.Fatal("GetJSON()がエラーを返すべきだが、nilが返った")
		}
		var statusErr *StatusError
		if errors.As(err, &statusErr) {
			t.Errorf("接続エラーがStatusErrorとして返った: %v", err)
		}
	})
}

// TestWithUsername はWithUsername関数を検証する。
func TestWithUsername(t *testing.T) {
	t.Parallel()

	t.Run("コンテキストのユーザー名がヘッダーで伝播されること", func(t *testing.T) {
		t.Parallel()

		var got string
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = r.Header.Get("X-Username")
			_, _ = w.Write([]byte(`{}`))
		}))
		defer ts.Close()

		ctx := WithUsername(context.Background(), "alice")
		var result map[string]any
		if err := New(ts.URL).GetJSON(ctx, "/history", &result); err != nil {
			t.Fatalf("GetJSON()でエラーが発生: %v", err)
		}
		if got != "alice" {
			t.Errorf("X-Username = %q, want %q", got, "alice")
		}
	})

	t.Run("ユーザー名が設定されていない場合はヘッダーが付与されないこと", func(t *testing.T) {
		t.Parallel()

		var present bool
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, present = r.Header["X-Username"]
			_, _ = w.Write([]byte(`{}`))
		}))
		defer ts.Close()

		var result map[string]any
		if err := New(ts.URL).GetJSON(context.Background(), "/history", &result); err != nil {
			t.Fatalf("GetJSON()でエラーが発生: %v", err)
		}
		if present {
			t.Error("X-Usernameヘッダーが付与されている")
		}
	})
}
