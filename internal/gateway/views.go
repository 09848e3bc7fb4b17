package gateway

import (
	"embed"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

// loadTemplates は埋め込みテンプレートを読み込む。
// テンプレート名はファイル名（例: login.html）になる。
func loadTemplates() (*template.Template, error) {
	return template.ParseFS(templateFS, "templates/*.html")
}

// video は動画メタデータサービスが返す動画情報。
type video struct {
	// ID は動画ID。
	ID string `json:"_id"`
	// Name は動画の名前。
	Name string `json:"name"`
}

// videoListResponse は GET /videos のレスポンス。
type videoListResponse struct {
	Videos []video `json:"videos"`
}

// videoResponse は GET /video のレスポンス。
type videoResponse struct {
	Video video `json:"video"`
}

// historyResponse は視聴履歴サービスの GET /history のレスポンス。
type historyResponse struct {
	History []video `json:"history"`
}

// playback は再生ページに渡す動画情報。
type playback struct {
	// Metadata は動画のメタデータ。
	Metadata video
	// URL はブラウザが動画を取得するゲートウェイ上のURL。
	URL string
}
