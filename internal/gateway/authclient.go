package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/nao1215/streamgate/pkg/httpclient"
	"github.com/nao1215/streamgate/pkg/middleware"
)

// authClient は認証サービスのHTTPクライアント。
// middleware.Verifier を実装し、ガードから呼び出される。
type authClient struct {
	// client は認証サービスへのHTTPクライアント。
	client *httpclient.Client
}

// newAuthClient は新しい認証サービスクライアントを生成する。
func newAuthClient(baseURL string) *authClient {
	return &authClient{client: httpclient.New(baseURL)}
}

// credentials は登録・ログイン時に認証サービスへ送る資格情報。
type credentials struct {
	// Username はユーザー名。
	Username string `json:"username" form:"username"`
	// Password はパスワード。
	Password string `json:"password" form:"password"`
}

// loginResponse は認証サービスのログインレスポンス。
type loginResponse struct {
	// Token は発行されたトークン。
	Token string `json:"token"`
}

// verifyRequest は認証サービスへのトークン検証リクエスト。
type verifyRequest struct {
	// Token は検証するトークン。
	Token string `json:"token"`
}

// verifyResponse は認証サービスのトークン検証レスポンス。
type verifyResponse struct {
	// Valid はトークンが有効かどうか。
	Valid bool `json:"valid"`
	// Username は有効な場合のユーザー名。
	Username string `json:"username"`
}

// Register は認証サービスにユーザー登録を依頼する。
func (a *authClient) Register(ctx context.Context, creds credentials) error {
	if err := a.client.PostJSON(ctx, "/register", creds, nil); err != nil {
		return fmt.Errorf("ユーザー登録に失敗: %w", err)
	}
	return nil
}

// Login は認証サービスにログインし、発行されたトークンを返す。
func (a *authClient) Login(ctx context.Context, creds credentials) (string, error) {
	var resp loginResponse
	if err := a.client.PostJSON(ctx, "/login", creds, &resp); err != nil {
		return "", fmt.Errorf("ログインに失敗: %w", err)
	}
	if resp.Token == "" {
		return "", errors.New("認証サービスがトークンを返しませんでした")
	}
	return resp.Token, nil
}

// Verify は認証サービスでトークンを検証する。
// 認証サービスが400/403を返した場合は無効なトークンとして扱い、エラーにはしない。
func (a *authClient) Verify(ctx context.Context, token string) (middleware.Verification, error) {
	var resp verifyResponse
	err := a.client.PostJSON(ctx, "/verify", verifyRequest{Token: token}, &resp)

	var statusErr *httpclient.StatusError
	if errors.As(err, &statusErr) &&
		(statusErr.StatusCode == http.StatusBadRequest || statusErr.StatusCode == http.StatusForbidden) {
		return middleware.Verification{Valid: false}, nil
	}
	if err != nil {
		return middleware.Verification{}, fmt.Errorf("トークン検証の呼び出しに失敗: %w", err)
	}

	return middleware.Verification{Valid: resp.Valid, Username: resp.Username}, nil
}
