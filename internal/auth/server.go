package auth

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/nao1215/streamgate/internal/config"
	"github.com/nao1215/streamgate/pkg/middleware"
	"github.com/nao1215/streamgate/pkg/token"
)

// Server は認証サービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// db はデータベース接続。テスト用サーバーではnil。
	db *sql.DB
	// service は認証処理の本体。
	service *Service
}

// NewServer は新しい認証サーバーを生成する。
// データベース接続とスキーマ適用を行う。
func NewServer(cfg *config.Auth) (*Server, error) {
	sqlDB, err := sql.Open(string(cfg.Dialect), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("データベースへの疎通確認に失敗: %w", err)
	}

	if err := initSchema(sqlDB, cfg.Dialect); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}

	service := NewService(NewSQLStore(sqlDB, cfg.Dialect), token.NewCodec(cfg.Secret))
	s := newServer(cfg.Port, service)
	s.router.Use(gin.Logger())
	s.db = sqlDB
	return s, nil
}

// newServer はルーティング設定済みのサーバーを生成する。
func newServer(port string, service *Service) *Server {
	router := gin.New()
	router.Use(middleware.Recovery())

	s := &Server{
		router:  router,
		port:    port,
		service: service,
	}
	s.setupRoutes()
	return s
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf(":%s", s.port))
}

// Close はデータベース接続を閉じる。
func (s *Server) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Handler はHTTPハンドラを返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	s.router.POST("/register", s.handleRegister())
	s.router.POST("/login", s.handleLogin())
	s.router.POST("/verify", s.handleVerify())

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "auth"})
	})
}

// credentialRequest は登録・ログインリクエストのJSON構造。
type credentialRequest struct {
	// Username はユーザー名。
	Username string `json:"username"`
	// Password はパスワード。
	Password string `json:"password"`
}

// verifyRequest はトークン検証リクエストのJSON構造。
type verifyRequest struct {
	// Token は検証するトークン。
	Token string `json:"token"`
}

// handleRegister はユーザー登録を処理するハンドラを返す。
func (s *Server) handleRegister() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req credentialRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": ErrInvalidInput.Error()})
			return
		}

		err := s.service.Register(c.Request.Context(), req.Username, req.Password)
		switch {
		case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrConflict):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		case err != nil:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ユーザー登録に失敗しました"})
			log.Printf("ユーザー登録エラー: username=%s, error=%v", req.Username, err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{"message": "ユーザーを登録しました"})
	}
}

// handleLogin はログインを処理するハンドラを返す。
// 認証に成功した場合、1時間有効なトークンを返す。
func (s *Server) handleLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req credentialRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": ErrInvalidInput.Error()})
			return
		}

		signed, err := s.service.Login(c.Request.Context(), req.Username, req.Password)
		switch {
		case errors.Is(err, ErrNotFound), errors.Is(err, ErrInvalidCredentials):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		case err != nil:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ログインに失敗しました"})
			log.Printf("ログインエラー: username=%s, error=%v", req.Username, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"token": signed})
	}
}

// handleVerify はトークン検証を処理するハンドラを返す。
// トークンがない場合は400、無効な場合は403を返す。
func (s *Server) handleVerify() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req verifyRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.Token == "" {
			c.JSON(http.StatusBadRequest, gin.H{"valid": false, "error": "トークンが指定されていません"})
			return
		}

		result := s.service.Verify(req.Token)
		if !result.Valid {
			c.JSON(http.StatusForbidden, gin.H{"valid": false, "error": token.ErrInvalid.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{"valid": true, "username": result.Username})
	}
}
