package app

import "context"

// Component 是由 App 管理的長生命週期元件（HTTP server、WalkRuntime）。
//
// Run 阻塞到元件停止；Shutdown 要求優雅關閉並須尊重 ctx 期限，重複呼叫必須安全。
type Component interface {
	Run() error
	Shutdown(ctx context.Context) error
}
