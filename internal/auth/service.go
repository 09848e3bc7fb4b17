package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/nao1215/streamgate/pkg/token"
)

// BcryptCost はパスワードハッシュの計算コスト。
const BcryptCost = 10

var (
	// ErrInvalidInput はユーザー名またはパスワードが未入力であることを表す。
	ErrInvalidInput = errors.New("ユーザー名とパスワードは必須です")
	// ErrConflict は同じユーザー名が既に登録されていることを表す。
	ErrConflict = errors.New("ユーザーは既に存在します")
	// ErrNotFound はユーザーが見つからないことを表す。
	ErrNotFound = errors.New("ユーザーが見つかりません")
	// ErrInvalidCredentials はパスワードが一致しないことを表す。
	ErrInvalidCredentials = errors.New("パスワードが正しくありません")
)

// VerifyResult はトークン検証の結果。
type VerifyResult struct {
	// Valid はトークンが有効かどうか。
	Valid bool
	// Username は有効な場合のユーザー名。
	Username string
}

// Service は登録・ログイン・トークン検証を提供する認証サービス。
type Service struct {
	// store は資格情報ストア。
	store Store
	// codec はトークンの署名と検証を行う。
	codec *token.Codec
	// ttl は発行するトークンの有効期間。
	ttl time.Duration
	// now は現在時刻を返す関数。
	now func() time.Time
}

// NewService は新しい認証サービスを生成する。
func NewService(store Store, codec *token.Codec) *Service {
	return &Service{
		store: store,
		codec: codec,
		ttl:   token.DefaultTTL,
		now:   time.Now,
	}
}

// Register はユーザーを登録する。
// 既存ユーザーの確認で1回読み取り、登録で1回書き込む。
func (s *Service) Register(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return ErrInvalidInput
	}

	_, err := s.store.FindByUsername(ctx, username)
	if err == nil {
		return ErrConflict
	}
	if !errors.Is(err, errIdentityNotFound) {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return ErrInvalidInput
	}
	if err != nil {
		return fmt.Errorf("パスワードのハッシュ化に失敗: %w", err)
	}

	err = s.store.Create(ctx, &Identity{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    s.now().UTC(),
	})
	if errors.Is(err, errDuplicateUsername) {
		// 確認から登録までの間に同じユーザー名が登録された
		return ErrConflict
	}
	return err
}

// Login はパスワードを照合し、成功した場合にトークンを発行する。
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	identity, err := s.store.FindByUsername(ctx, username)
	if errors.Is(err, errIdentityNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(identity.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	signed, err := s.codec.Sign(identity.Username, s.ttl)
	if err != nil {
		return "", fmt.Errorf("トークンの発行に失敗: %w", err)
	}
	return signed, nil
}

// Verify はトークンの署名と有効期限を検証する。
// 資格情報ストアにはアクセスしない。無効なトークンはエラーではなく Valid=false で返す。
func (s *Service) Verify(tokenString string) VerifyResult {
	claim, err := s.codec.Verify(tokenString)
	if err != nil {
		return VerifyResult{Valid: false}
	}
	return VerifyResult{Valid: true, Username: claim.Username}
}
