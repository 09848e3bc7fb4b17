package middleware

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Recovery はパニックからの回復を行うGinミドルウェアを返す。
// パニックしたリクエストだけを500で終了させ、他の処理中リクエストには影響させない。
// レスポンスの送信が始まっている場合（ストリーミング中など）はステータスを書き換えられないため、
// http.ErrAbortHandler でパニックし直して接続を打ち切る。
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			if r == http.ErrAbortHandler {
				// 意図的な中断。net/httpに接続を切断させる
				panic(r)
			}

			log.Printf("[PANIC] %s %s: %v", c.Request.Method, c.Request.URL.Path, r)
			if c.Writer.Written() {
				panic(http.ErrAbortHandler)
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "内部サーバーエラーが発生しました",
			})
		}()
		c.Next()
	}
}
