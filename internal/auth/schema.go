package auth

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/nao1215/streamgate/pkg/migration"
)

// migrations は資格情報ストアのスキーマ定義。
//
//go:embed migrations/*.sql
var migrations embed.FS

// initSchema はデータベースにスキーマを適用する。
func initSchema(db *sql.DB, dialect migration.Dialect) error {
	if err := migration.Run(db, dialect, migrations, "migrations"); err != nil {
		return fmt.Errorf("スキーマの適用に失敗: %w", err)
	}
	return nil
}
