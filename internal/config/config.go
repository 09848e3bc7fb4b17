// Package config は各サービスの起動時設定を環境変数から読み込む。
//
// 必須の値が欠けている場合はエラーを返し、呼び出し側（main）でプロセスを終了させる。
// 起動時の設定不備だけはリクエスト単位ではなくプロセス全体の失敗として扱う。
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/nao1215/streamgate/pkg/migration"
	"github.com/nao1215/streamgate/pkg/token"
)

// envProduction は本番環境を表すAPP_ENVの値。
const envProduction = "production"

// defaultSecretFile は本番環境でJWT署名用の秘密鍵を読み込むファイル。
const defaultSecretFile = "/mnt/secrets-store/jwt-secret"

// defaultSQLiteDSN はSQLite使用時のデフォルト接続文字列。
const defaultSQLiteDSN = "/data/auth.db?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"

// ErrPortRequired はPORTが設定されていないことを表す。
var ErrPortRequired = errors.New("環境変数PORTでHTTPサーバーのポート番号を指定してください")

// Auth は認証サービスの設定。
type Auth struct {
	// Port はHTTPサーバーのリッスンポート。
	Port string
	// Env は実行環境（production など）。
	Env string
	// Dialect は資格情報ストアのSQL方言（ドライバ名と同じ）。
	Dialect migration.Dialect
	// DSN はデータベース接続文字列。
	DSN string
	// Secret はJWT署名用の秘密鍵。
	Secret *token.Secret
}

// Gateway はGatewayサービスの設定。
type Gateway struct {
	// Port はHTTPサーバーのリッスンポート。
	Port string
	// Env は実行環境（production など）。
	Env string
	// AuthURL は認証サービスのURL。
	AuthURL string
	// MetadataURL は動画メタデータサービスのURL。
	MetadataURL string
	// HistoryURL は視聴履歴サービスのURL。
	HistoryURL string
	// VideoStreamingURL は動画配信サービスのURL。
	VideoStreamingURL string
	// VideoUploadURL は動画アップロードサービスのURL。
	VideoUploadURL string
	// PublicDir は静的ファイルのディレクトリ。
	PublicDir string
}

// Production は本番環境で動作しているかを返す。
func (g *Gateway) Production() bool {
	return g.Env == envProduction
}

// source は環境変数とファイルの読み込み元。テストで差し替える。
type source struct {
	// lookup は環境変数を取得する。
	lookup func(key string) (string, bool)
	// readFile はファイルを読み込む。
	readFile func(name string) ([]byte, error)
}

// osSource は実際の環境変数とファイルシステムを参照する。
var osSource = source{lookup: os.LookupEnv, readFile: os.ReadFile}

// LoadAuth は環境変数から認証サービスの設定を読み込む。
func LoadAuth() (*Auth, error) {
	return loadAuth(osSource)
}

// LoadGateway は環境変数からGatewayサービスの設定を読み込む。
func LoadGateway() (*Gateway, error) {
	return loadGateway(osSource)
}

func loadAuth(src source) (*Auth, error) {
	port := src.getEnvOr("PORT", "")
	if port == "" {
		return nil, ErrPortRequired
	}

	dialect, err := migration.ParseDialect(src.getEnvOr("DB_DRIVER", string(migration.DialectSQLite)))
	if err != nil {
		return nil, fmt.Errorf("DB_DRIVERが不正です: %w", err)
	}

	dsn := src.getEnvOr("DB_DSN", "")
	if dsn == "" {
		if dialect == migration.DialectPostgres {
			return nil, errors.New("PostgreSQLを使用する場合は環境変数DB_DSNを指定してください")
		}
		dsn = defaultSQLiteDSN
	}

	env := src.getEnvOr("APP_ENV", "development")
	secret, err := src.loadSecret(env)
	if err != nil {
		return nil, err
	}

	return &Auth{
		Port:    port,
		Env:     env,
		Dialect: dialect,
		DSN:     dsn,
		Secret:  secret,
	}, nil
}

func loadGateway(src source) (*Gateway, error) {
	port := src.getEnvOr("PORT", "")
	if port == "" {
		return nil, ErrPortRequired
	}

	return &Gateway{
		Port:              port,
		Env:               src.getEnvOr("APP_ENV", "development"),
		AuthURL:           src.getEnvOr("AUTH_URL", "http://auth-service"),
		MetadataURL:       src.getEnvOr("METADATA_URL", "http://metadata"),
		HistoryURL:        src.getEnvOr("HISTORY_URL", "http://history"),
		VideoStreamingURL: src.getEnvOr("VIDEO_STREAMING_URL", "http://video-streaming"),
		VideoUploadURL:    src.getEnvOr("VIDEO_UPLOAD_URL", "http://video-upload"),
		PublicDir:         src.getEnvOr("PUBLIC_DIR", "public"),
	}, nil
}

// loadSecret はJWT署名用の秘密鍵を読み込む。
// 本番環境ではシークレットストアのファイルから、それ以外では環境変数JWT_SECRETから読み込む。
func (src source) loadSecret(env string) (*token.Secret, error) {
	if env == envProduction {
		path := src.getEnvOr("JWT_SECRET_FILE", defaultSecretFile)
		raw, err := src.readFile(path)
		if err != nil {
			return nil, fmt.Errorf("JWT秘密鍵ファイルの読み込みに失敗: path=%s: %w", path, err)
		}
		secret, err := token.NewSecret(string(raw))
		if err != nil {
			return nil, fmt.Errorf("JWT秘密鍵ファイルが不正です: path=%s: %w", path, err)
		}
		return secret, nil
	}

	secret, err := token.NewSecret(src.getEnvOr("JWT_SECRET", ""))
	if err != nil {
		return nil, fmt.Errorf("環境変数JWT_SECRETでJWT署名用の秘密鍵を指定してください: %w", err)
	}
	return secret, nil
}

// getEnvOr は環境変数を取得し、設定されていない場合はデフォルト値を返す。
func (src source) getEnvOr(key, defaultValue string) string {
	if v, ok := src.lookup(key); ok && v != "" {
		return v
	}
	return defaultValue
}
