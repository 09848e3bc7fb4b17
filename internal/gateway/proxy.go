package gateway

import (
	"io"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
)

// copyBufferSize はボディ転送に使うバッファのサイズ。
// 転送中のメモリ使用量はペイロードの大きさによらずこの値で抑えられる。
const copyBufferSize = 32 << 10

// hopByHopHeaders は転送してはならない接続単位のヘッダー。
var hopByHopHeaders = map[string]struct{}{
	"Connection":          {},
	"Keep-Alive":          {},
	"Proxy-Authenticate":  {},
	"Proxy-Authorization": {},
	"Te":                  {},
	"Trailer":             {},
	"Transfer-Encoding":   {},
	"Upgrade":             {},
}

// streamProxy はリクエストとレスポンスのボディをバッファリングせずに転送するプロキシ。
type streamProxy struct {
	// client はバックエンドへのHTTPクライアント。
	// 動画の転送は長時間に及ぶため全体のタイムアウトは設定しない。
	client *http.Client
	// buffers は転送用バッファのプール。
	buffers sync.Pool
}

// newStreamProxy は新しいストリーミングプロキシを生成する。
func newStreamProxy() *streamProxy {
	return &streamProxy{
		client: &http.Client{
			// バックエンドのリダイレクトはそのままクライアントに返す
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		buffers: sync.Pool{
			New: func() any {
				buf := make([]byte, copyBufferSize)
				return &buf
			},
		},
	}
}

// forward はリクエストをtargetへ転送し、レスポンスをそのままクライアントへ返す。
// forwardHeadersに指定したリクエストヘッダーだけをバックエンドへ渡す。
// バックエンドへのリクエストは受信リクエストのコンテキストに紐づくため、
// クライアントが切断するとバックエンドからの読み取りも中断される。
func (p *streamProxy) forward(c *gin.Context, method, target string, forwardHeaders ...string) {
	ctx := c.Request.Context()

	var body io.Reader
	if c.Request.Body != nil && c.Request.Body != http.NoBody && c.Request.ContentLength != 0 {
		body = c.Request.Body
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "プロキシリクエストの作成に失敗しました"})
		log.Printf("プロキシリクエスト作成エラー: url=%s, error=%v", target, err)
		return
	}
	if body != nil {
		// -1（不明）の場合はchunkedで転送される
		req.ContentLength = c.Request.ContentLength
	}
	for _, key := range forwardHeaders {
		if v := c.GetHeader(key); v != "" {
			req.Header.Set(key, v)
		}
	}

	resp, err := p.client.Do(req)
	if err != nil {
		log.Printf("プロキシエラー: url=%s, error=%v", target, err)
		if ctx.Err() != nil {
			// クライアントが切断済みのため応答しない
			c.Abort()
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": "内部サービスとの通信に失敗しました"})
		return
	}
	defer resp.Body.Close()

	copyResponseHeader(c.Writer.Header(), resp.Header)
	c.Status(resp.StatusCode)
	c.Writer.WriteHeaderNow()

	bufp := p.buffers.Get().(*[]byte)
	defer p.buffers.Put(bufp)

	if _, err := io.CopyBuffer(c.Writer, resp.Body, *bufp); err != nil {
		log.Printf("プロキシのレスポンス転送が中断されました: url=%s, error=%v", target, err)
		if ctx.Err() == nil {
			// ヘッダー送信済みのため、接続を切断して中断をクライアントに伝える
			panic(http.ErrAbortHandler)
		}
	}
}

// copyResponseHeader はバックエンドのレスポンスヘッダーをdstへ複製する。
// ホップバイホップヘッダーと、Connectionヘッダーに列挙されたヘッダーは除く。
func copyResponseHeader(dst, src http.Header) {
	listed := make(map[string]struct{})
	for _, v := range src.Values("Connection") {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				listed[http.CanonicalHeaderKey(name)] = struct{}{}
			}
		}
	}

	for key, values := range src {
		key = http.CanonicalHeaderKey(key)
		if _, hop := hopByHopHeaders[key]; hop {
			continue
		}
		if _, ok := listed[key]; ok {
			continue
		}
		for _, v := range values {
			dst.Add(key, v)
		}
	}
}
