package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/nao1215/streamgate/pkg/migration"
)

// pgUniqueViolation はPostgreSQLの一意制約違反のSQLSTATE。
const pgUniqueViolation = "23505"

// errDuplicateUsername はユーザー名の一意制約に違反したことを表す。
var errDuplicateUsername = errors.New("ユーザー名が重複しています")

// errIdentityNotFound はユーザーが存在しないことを表す。
var errIdentityNotFound = errors.New("ユーザーが存在しません")

// Identity は資格情報ストアに保存されるユーザー。
// 登録後に変更・削除されることはない。
type Identity struct {
	// ID はユーザーの一意識別子（UUID）。
	ID string
	// Username はユーザー名。大文字小文字を区別する。
	Username string
	// PasswordHash はbcryptでハッシュ化したパスワード。
	PasswordHash string
	// CreatedAt は登録日時。
	CreatedAt time.Time
}

// Store は資格情報ストア。
type Store interface {
	// FindByUsername はユーザー名でユーザーを検索する。存在しない場合は errIdentityNotFound を返す。
	FindByUsername(ctx context.Context, username string) (*Identity, error)
	// Create はユーザーを保存する。ユーザー名が重複する場合は errDuplicateUsername を返す。
	Create(ctx context.Context, identity *Identity) error
}

// SQLStore はdatabase/sqlによる資格情報ストアの実装。
// SQLiteとPostgreSQLのどちらでも動作する。
type SQLStore struct {
	// db はデータベース接続。
	db *sql.DB
	// findQuery はユーザー名検索のSQL。
	findQuery string
	// insertQuery はユーザー登録のSQL。
	insertQuery string
}

// NewSQLStore は新しいSQLStoreを生成する。
func NewSQLStore(db *sql.DB, dialect migration.Dialect) *SQLStore {
	p := dialect.Placeholder
	return &SQLStore{
		db: db,
		findQuery: "SELECT id, username, password_hash, created_at FROM users WHERE username = " +
			p(1),
		insertQuery: fmt.Sprintf(
			"INSERT INTO users (id, username, password_hash, created_at) VALUES (%s, %s, %s, %s)",
			p(1), p(2), p(3), p(4),
		),
	}
}

// FindByUsername はユーザー名でユーザーを検索する。
func (s *SQLStore) FindByUsername(ctx context.Context, username string) (*Identity, error) {
	var identity Identity
	err := s.db.QueryRowContext(ctx, s.findQuery, username).Scan(
		&identity.ID,
		&identity.Username,
		&identity.PasswordHash,
		&identity.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errIdentityNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗: %w", err)
	}
	return &identity, nil
}

// Create はユーザーを保存する。
// 単一行のINSERTであり、一意制約による重複判定はストレージ側に任せる。
func (s *SQLStore) Create(ctx context.Context, identity *Identity) error {
	_, err := s.db.ExecContext(ctx, s.insertQuery,
		identity.ID,
		identity.Username,
		identity.PasswordHash,
		identity.CreatedAt,
	)
	if isUniqueViolation(err) {
		return errDuplicateUsername
	}
	if err != nil {
		return fmt.Errorf("ユーザーの保存に失敗: %w", err)
	}
	return nil
}

// isUniqueViolation はエラーが一意制約違反かどうかを判定する。
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}

	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}
