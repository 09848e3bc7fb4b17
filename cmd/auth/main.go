// 認証サービスのエントリポイント。
// ユーザー登録、ログイン時のトークン発行、トークン検証を担当する。
package main

import (
	"log"

	"github.com/nao1215/streamgate/internal/auth"
	"github.com/nao1215/streamgate/internal/config"
)

func main() {
	cfg, err := config.LoadAuth()
	if err != nil {
		log.Fatalf("設定の読み込みに失敗: %v", err)
	}

	server, err := auth.NewServer(cfg)
	if err != nil {
		log.Fatalf("認証サーバーの初期化に失敗: %v", err)
	}
	defer server.Close()

	log.Printf("認証サービスを起動します: :%s (db=%s)", cfg.Port, cfg.Dialect)
	if err := server.Run(); err != nil {
		log.Fatalf("認証サービスの起動に失敗: %v", err)
	}
}
