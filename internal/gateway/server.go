package gateway

import (
	"fmt"
	"log"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/streamgate/internal/config"
	"github.com/nao1215/streamgate/pkg/httpclient"
	"github.com/nao1215/streamgate/pkg/middleware"
)

// cookieName はトークンを保持するCookieの名前。
const cookieName = "jwt"

// cookieMaxAge はCookieの有効期間（秒）。トークン自体の有効期限は1時間。
const cookieMaxAge = 24 * 60 * 60

// Server はGatewayサービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// cfg はGatewayの設定。
	cfg *config.Gateway
	// auth は認証サービスのクライアント。
	auth *authClient
	// metadata は動画メタデータサービスのクライアント。
	metadata *httpclient.Client
	// history は視聴履歴サービスのクライアント。
	history *httpclient.Client
	// proxy は動画の配信・アップロードを中継するストリーミングプロキシ。
	proxy *streamProxy
}

// NewServer は新しいGatewayサーバーを生成する。
func NewServer(cfg *config.Gateway) (*Server, error) {
	return newServer(cfg, gin.Logger())
}

// newServer はルーティング設定済みのサーバーを生成する。
// middlewaresはリカバリーの直後、認証ガードの前に登録される。
func newServer(cfg *config.Gateway, middlewares ...gin.HandlerFunc) (*Server, error) {
	tmpl, err := loadTemplates()
	if err != nil {
		return nil, fmt.Errorf("テンプレートの読み込みに失敗: %w", err)
	}

	router := gin.New()
	router.SetHTMLTemplate(tmpl)
	router.Use(middleware.Recovery())
	router.Use(middlewares...)

	s := &Server{
		router:   router,
		cfg:      cfg,
		auth:     newAuthClient(cfg.AuthURL),
		metadata: httpclient.New(cfg.MetadataURL),
		history:  httpclient.New(cfg.HistoryURL),
		proxy:    newStreamProxy(),
	}

	router.Use(middleware.Guard(
		middleware.PublicPaths([]string{"/login", "/register", "/health"}, []string{"/public/"}),
		middleware.CookieToken(cookieName),
		middleware.VerifyToken(s.auth),
	))
	s.setupRoutes()

	return s, nil
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf(":%s", s.cfg.Port))
}

// Handler はHTTPハンドラを返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes はルーティングを設定する。
func (s *Server) setupRoutes() {
	// 認証不要
	s.router.GET("/login", s.handlePage("login.html"))
	s.router.POST("/login", s.handleLogin())
	s.router.GET("/register", s.handlePage("register.html"))
	s.router.POST("/register", s.handleRegister())
	s.router.Static("/public", s.cfg.PublicDir)

	// 画面
	s.router.GET("/", s.handleVideoList())
	s.router.GET("/video", s.handlePlayVideo())
	s.router.GET("/upload", s.handleUploadPage())
	s.router.GET("/history", s.handleHistory())

	// 動画の配信・アップロード（ストリーミング）
	s.router.GET("/api/video", s.handleStreamVideo())
	s.router.POST("/api/upload", s.handleUploadVideo())

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "gateway"})
	})
}

// handlePage は静的なフォーム画面を表示するハンドラを返す。
func (s *Server) handlePage(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.HTML(http.StatusOK, name, nil)
	}
}

// handleRegister はユーザー登録を認証サービスへ転送するハンドラを返す。
// フォーム送信とJSONの両方を受け付ける。
func (s *Server) handleRegister() gin.HandlerFunc {
	return func(c *gin.Context) {
		var creds credentials
		if err := c.ShouldBind(&creds); err != nil {
			c.String(http.StatusBadRequest, "Registration failed")
			return
		}

		if err := s.auth.Register(c.Request.Context(), creds); err != nil {
			log.Printf("ユーザー登録エラー: username=%s, error=%v", creds.Username, err)
			c.String(http.StatusBadRequest, "Registration failed")
			return
		}

		c.Redirect(http.StatusFound, middleware.LoginPath)
	}
}

// handleLogin はログインを認証サービスへ転送し、トークンをCookieに保存するハンドラを返す。
func (s *Server) handleLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		var creds credentials
		if err := c.ShouldBind(&creds); err != nil {
			c.String(http.StatusBadRequest, "Login failed")
			return
		}

		signed, err := s.auth.Login(c.Request.Context(), creds)
		if err != nil {
			log.Printf("ログインエラー: username=%s, error=%v", creds.Username, err)
			c.String(http.StatusBadRequest, "Login failed")
			return
		}

		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(cookieName, signed, cookieMaxAge, "/", "", s.cfg.Production(), true)
		c.Redirect(http.StatusFound, "/")
	}
}

// handleVideoList は動画一覧画面を表示するハンドラを返す。
func (s *Server) handleVideoList() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := httpclient.WithUsername(c.Request.Context(), middleware.GetUsername(c))

		var resp videoListResponse
		if err := s.metadata.GetJSON(ctx, "/videos", &resp); err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": "動画一覧の取得に失敗しました"})
			log.Printf("動画一覧取得エラー: %v", err)
			return
		}

		c.HTML(http.StatusOK, "video-list.html", gin.H{"Videos": resp.Videos})
	}
}

// handlePlayVideo は動画再生画面を表示するハンドラを返す。
func (s *Server) handlePlayVideo() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := httpclient.WithUsername(c.Request.Context(), middleware.GetUsername(c))
		query := url.Values{"id": {c.Query("id")}}.Encode()

		var resp videoResponse
		if err := s.metadata.GetJSON(ctx, "/video?"+query, &resp); err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": "動画情報の取得に失敗しました"})
			log.Printf("動画情報取得エラー: id=%s, error=%v", c.Query("id"), err)
			return
		}

		c.HTML(http.StatusOK, "play-video.html", gin.H{
			"Video": playback{Metadata: resp.Video, URL: "/api/video?" + query},
		})
	}
}

// handleUploadPage はアップロード画面を表示するハンドラを返す。
func (s *Server) handleUploadPage() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.HTML(http.StatusOK, "upload-video.html", gin.H{"User": middleware.GetUsername(c)})
	}
}

// handleHistory は視聴履歴画面を表示するハンドラを返す。
func (s *Server) handleHistory() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := httpclient.WithUsername(c.Request.Context(), middleware.GetUsername(c))

		var resp historyResponse
		if err := s.history.GetJSON(ctx, "/history", &resp); err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": "視聴履歴の取得に失敗しました"})
			log.Printf("視聴履歴取得エラー: %v", err)
			return
		}

		c.HTML(http.StatusOK, "history.html", gin.H{"Videos": resp.History})
	}
}

// handleStreamVideo は動画配信サービスからの動画をストリーミングで返すハンドラを返す。
func (s *Server) handleStreamVideo() gin.HandlerFunc {
	return func(c *gin.Context) {
		target := s.cfg.VideoStreamingURL + "/video?" + url.Values{"id": {c.Query("id")}}.Encode()
		s.proxy.forward(c, http.MethodGet, target, "Range")
	}
}

// handleUploadVideo はアップロードされた動画を動画アップロードサービスへストリーミングで転送するハンドラを返す。
func (s *Server) handleUploadVideo() gin.HandlerFunc {
	return func(c *gin.Context) {
		s.proxy.forward(c, http.MethodPost, s.cfg.VideoUploadURL+"/upload", "Content-Type", "File-Name")
	}
}
