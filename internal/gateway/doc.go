// Package gateway はGatewayサービスの内部実装を提供する。
//
// 外部からアクセス可能な唯一のサービスであり、Cookieのトークンを認証サービスで
// 検証してから画面の表示や内部サービスへの中継を行う。動画の配信とアップロードは
// ボディをメモリに溜めずにストリーミングで転送する。
package gateway
