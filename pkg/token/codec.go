package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTTL はトークンの有効期間。
const DefaultTTL = time.Hour

// ErrInvalid はトークンが無効であることを表す。
// 署名不一致・構造不正・期限切れのいずれであっても同じエラーを返す。
var ErrInvalid = errors.New("トークンが無効です")

// Secret はトークン署名用の秘密鍵。
// 生成後は変更されず、複数のゴルーチンから同時に参照してよい。
type Secret struct {
	key []byte
}

// NewSecret は文字列から秘密鍵を生成する。
// 前後の空白と改行は取り除く（シークレットファイル末尾の改行対策）。
func NewSecret(raw string) (*Secret, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, errors.New("JWT署名用の秘密鍵が空です")
	}
	return &Secret{key: []byte(trimmed)}, nil
}

// String は秘密鍵の内容を出力しない。ログへの誤出力を防ぐ。
func (s *Secret) String() string {
	return "[REDACTED]"
}

// Claim はトークンに含まれるユーザー情報。
type Claim struct {
	// Username は認証済みユーザー名。
	Username string
	// IssuedAt は発行日時。
	IssuedAt time.Time
	// ExpiresAt は有効期限。
	ExpiresAt time.Time
}

// claims はJWTのペイロード表現。
type claims struct {
	jwt.RegisteredClaims
	// Username は認証済みユーザー名。
	Username string `json:"username"`
}

// Codec はトークンの署名と検証を行う。
type Codec struct {
	// secret は署名用の秘密鍵。
	secret *Secret
	// now は現在時刻を返す関数。テストで差し替える。
	now func() time.Time
}

// Option はCodecの設定を変更する関数。
type Option func(*Codec)

// WithClock は現在時刻の取得方法を差し替える。
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		c.now = now
	}
}

// NewCodec は新しいCodecを生成する。
func NewCodec(secret *Secret, opts ...Option) *Codec {
	c := &Codec{
		secret: secret,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Sign はユーザー名に署名し、ttl後に失効するトークンを生成する。
// 署名はペイロード全体を対象とするため、ユーザー名や有効期限を改ざんすると検証に失敗する。
func (c *Codec) Sign(username string, ttl time.Duration) (string, error) {
	if username == "" {
		return "", errors.New("ユーザー名が空です")
	}

	issuedAt := c.now()
	cl := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
		},
		Username: username,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, cl).SignedString(c.secret.key)
	if err != nil {
		return "", fmt.Errorf("JWTトークンの署名に失敗: %w", err)
	}
	return signed, nil
}

// Verify はトークンの署名と有効期限を検証し、含まれるClaimを返す。
// 検証に失敗した場合は理由によらず ErrInvalid を返す。
func (c *Codec) Verify(tokenString string) (*Claim, error) {
	cl := &claims{}
	parsed, err := jwt.ParseWithClaims(tokenString, cl, func(_ *jwt.Token) (any, error) {
		return c.secret.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil || !parsed.Valid || cl.Username == "" {
		return nil, ErrInvalid
	}

	claim := &Claim{
		Username:  cl.Username,
		ExpiresAt: cl.ExpiresAt.Time,
	}
	if cl.IssuedAt != nil {
		claim.IssuedAt = cl.IssuedAt.Time
	}
	return claim, nil
}

// Sign は現在時刻を基準にトークンを生成する。
func Sign(username string, secret *Secret, ttl time.Duration) (string, error) {
	return NewCodec(secret).Sign(username, ttl)
}

// Verify は現在時刻を基準にトークンを検証する。
func Verify(tokenString string, secret *Secret) (*Claim, error) {
	return NewCodec(secret).Verify(tokenString)
}
