// Package middleware はGinベースのHTTPサーバーで使用する共通ミドルウェアを提供する。
//
// Cookieに格納されたトークンを認証サービスで検証するガードパイプラインと、
// パニックリカバリを含む。ガードは判定ステージを順に評価し、
// 各ステージが「続行」「許可」「拒否（リダイレクト）」のいずれかを返す。
package middleware
