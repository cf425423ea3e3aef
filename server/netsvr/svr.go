package netsvr

import (
	"net/http"

	"github.com/zintix-labs/lerwlab/server/app"
)

// NetSvr 是可交給 app.App 管理的 HTTP 服務：路由註冊加上 Run/Shutdown。
//
// 只有 server 組裝層（server.RunWithSvr）持有 NetSvr；API 註冊只拿到 NetRouter。
type NetSvr interface {
	NetRouter
	app.Component
}

// NetRouter 是不含啟停控制的路由介面，Group 回呼也只會拿到 NetRouter。
type NetRouter interface {
	Use(middleware func(http.Handler) http.Handler)

	Get(path string, h http.HandlerFunc)
	Post(path string, h http.HandlerFunc)
	Handle(path string, h http.Handler)

	Group(path string, fn func(NetRouter))
}
