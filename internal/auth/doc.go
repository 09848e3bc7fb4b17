// Package auth は認証サービスの内部実装を提供する。
//
// ユーザー登録、パスワード照合、トークン発行、トークン検証を担当する。
// 資格情報ストア（usersテーブル）への書き込みはこのパッケージだけが行う。
// パスワードはbcryptでハッシュ化して保存し、平文を保存・ログ出力することはない。
package auth
