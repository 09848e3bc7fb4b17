// Package httpclient はサービス間のHTTP通信を行うクライアントを提供する。
//
// Gatewayが認証サービスやメタデータ・視聴履歴サービスのJSON APIを呼び出す際に使用する。
// 2xx以外の応答は StatusError として返すため、呼び出し側でステータスごとに扱いを分けられる。
package httpclient
