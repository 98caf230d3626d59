package websocket

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// 前后端同域部署（HandleDir 托管前端），跨域校验暂不收紧
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// 心跳参数要明显短于断线重连窗口，
// 保证掉线座位在重连计时器到期前就已被挂起
const (
	PING_INTERVAL = 30 * time.Second
	PONG_TIMEOUT  = 45 * time.Second
)

// keepAlivePongHandler 每收到一次 pong 就顺延读超时
func keepAlivePongHandler(conn *websocket.Conn) func(string) error {
	return func(string) error {
		conn.SetReadDeadline(time.Now().Add(PONG_TIMEOUT))
		return nil
	}
}
