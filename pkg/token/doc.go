// Package token は署名付きトークン（JWT）の発行と検証を提供する。
//
// トークンはユーザー名・発行日時・有効期限を含む自己完結型のアサーションであり、
// サーバー側に状態を持たない。検証は署名と有効期限のみで判定する。
// 署名用の秘密鍵はプロセス起動時に一度だけ生成した Secret を参照で受け渡す。
package token
