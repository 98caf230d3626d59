package websocket

import (
	"encoding/json"
	"time"

	"avalon-be/internal/service/game"
	"avalon-be/internal/state"

	"github.com/gorilla/websocket"
	"github.com/kataras/iris/v12"
	"go.uber.org/zap"
)

func JoinRoom(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		conn, err := upgrader.Upgrade(
			ctx.ResponseWriter(),
			ctx.Request(),
			nil,
		)
		if err != nil {
			zap.L().Error("升级到WebSocket失败", zap.Error(err))
			ctx.StatusCode(iris.StatusBadRequest)
			return
		}

		defer conn.Close()

		conn.SetReadDeadline(time.Now().Add(PONG_TIMEOUT))
		conn.SetPongHandler(keepAlivePongHandler(conn))

		// 缓冲响应通道，避免状态机广播被慢连接阻塞
		respCh := make(chan game.ResponseWrapper, 64)

		// 读取首次请求，获取必要的参数
		_, msg, err := conn.ReadMessage()
		if err != nil {
			zap.L().Error(
				"读取首次请求失败",
				zap.String("client_ip", ctx.RemoteAddr()),
				zap.Error(err),
			)
			return
		}

		var wrapper game.RequestWrapper

		if err := json.Unmarshal(msg, &wrapper); err != nil {
			zap.L().Error(
				"解析首次请求失败",
				zap.String("client_ip", ctx.RemoteAddr()),
				zap.Error(err),
			)

			return
		}

		req := game.TryUnwrapJoinRoomRequest(wrapper)
		if req == nil {
			zap.L().Error(
				"首次请求不是JoinRoom类型",
				zap.String("client_ip", ctx.RemoteAddr()),
				zap.Any("wrapper", wrapper),
			)

			return
		}

		// 先把加入请求投递给房间状态机，获取状态机的请求通道
		reqCh, err := appState.RoomSvc.JoinRoom(req, respCh)
		if err != nil {
			zap.L().Error(
				"加入房间失败",
				zap.String("client_ip", ctx.RemoteAddr()),
				zap.Error(err),
			)

			conn.WriteJSON(game.WrapErrResponse(err.Error()))
			return
		}

		// 等待并读取加入确认响应，获取玩家ID
		var playerID string
		var playerName string

		select {
		case joinResp, ok := <-respCh:
			if !ok {
				zap.L().Info(
					"加入被拒绝，响应通道已关闭",
					zap.String("client_ip", ctx.RemoteAddr()),
				)
				return
			}

			if joinResp.RespType == game.RESP_ERROR {
				// 加入被状态机拒绝（房间已满、游戏已开始等）
				conn.WriteJSON(joinResp)
				return
			}

			if joinResp.RespType == game.RESP_JOIN_ROOM {
				// 提取玩家ID
				if respData, ok := joinResp.Data.(game.JoinRoomResponse); ok {
					playerID = respData.Joiner.ID
					playerName = respData.Joiner.Name
				}

				// 将响应放回通道供写协程发送
				select {
				case respCh <- joinResp:
				default:
					zap.L().Warn("无法回放加入响应")
				}
			}
		case <-time.After(3 * time.Second):
			zap.L().Error("等待加入响应超时", zap.String("client_ip", ctx.RemoteAddr()))
			return
		}

		if playerID == "" {
			zap.L().Error("未能获取玩家ID", zap.String("client_ip", ctx.RemoteAddr()))
			return
		}

		zap.L().Info(
			"玩家成功加入房间",
			zap.String("client_ip", ctx.RemoteAddr()),
			zap.String("player_id", playerID),
			zap.String("player_name", playerName),
		)

		// 写协程的退出信号
		writeDoneCh := make(chan struct{})
		defer close(writeDoneCh)

		clientIP := ctx.RemoteAddr()

		// 写入协程
		go func() {
			ticker := time.NewTicker(PING_INTERVAL)
			defer ticker.Stop()

			for {
				select {
				case <-writeDoneCh:
					zap.L().Info(
						"WebSocket写入协程退出",
						zap.String("client_ip", clientIP),
					)
					return

				case <-ticker.C:
					if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
						zap.L().Error(
							"发送心跳失败",
							zap.String("client_ip", clientIP),
							zap.Error(err),
						)
						return
					}

					conn.SetWriteDeadline(time.Now().Add(PONG_TIMEOUT))

					zap.L().Debug(
						"发送心跳",
						zap.String("client_ip", clientIP),
					)

				case resp, ok := <-respCh:
					// 通道已关闭：座位被移除或连接被新连接顶替
					if !ok {
						zap.L().Info(
							"响应通道已关闭，退出写协程",
							zap.String("client_ip", clientIP),
						)
						conn.Close()
						return
					}

					if err := conn.WriteJSON(resp); err != nil {
						zap.L().Error(
							"发送消息失败",
							zap.String("client_ip", clientIP),
							zap.Error(err),
						)
						return
					}

					zap.L().Debug(
						"发送消息",
						zap.String("client_ip", clientIP),
						zap.String("resp_type", resp.RespType),
					)
				}
			}
		}()

		// 读取协程（主协程）
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(
					err,
					websocket.CloseGoingAway,
					websocket.CloseAbnormalClosure,
				) {
					zap.L().Error(
						"读取消息失败",
						zap.String("client_ip", clientIP),
						zap.Error(err),
					)
				}

				break
			}

			// 解析消息
			var wrapper game.RequestWrapper

			if err := json.Unmarshal(msg, &wrapper); err != nil {
				zap.L().Error(
					"解析消息失败",
					zap.String("client_ip", clientIP),
					zap.Error(err),
				)

				respCh <- game.WrapErrResponse("无效的请求格式")

				continue
			}

			// 由服务端盖章发送者身份，客户端无法伪造
			wrapper.SenderID = playerID

			// 将解析后的请求发送到游戏状态机
			select {
			case reqCh <- wrapper:
				zap.L().Debug(
					"发送请求到游戏状态机",
					zap.String("client_ip", clientIP),
					zap.String("req_type", wrapper.ReqType),
				)
			default:
				zap.L().Error(
					"发送请求到游戏状态机失败：请求通道已满",
					zap.String("client_ip", clientIP),
				)

				respCh <- game.WrapErrResponse("房间繁忙，请稍后再试")
			}
		}

		// 读循环退出，表示客户端断开连接。
		// 发送非主动的退出请求：游戏中状态机会挂起座位等待重连
		zap.L().Info(
			"客户端连接断开，发送退出请求",
			zap.String("client_ip", clientIP),
			zap.String("player_id", playerID),
		)

		exitReq := game.ExitGameRequest{
			PlayerID: playerID,
			Explicit: false,
			RespCh:   respCh,
		}

		exitWrapper := game.RequestWrapper{
			ReqType:    game.REQ_EXIT_GAME,
			SenderID:   playerID,
			NativeData: &exitReq,
		}

		// 发送退出请求
		select {
		case reqCh <- exitWrapper:
			zap.L().Debug(
				"发送退出请求成功",
				zap.String("player_id", playerID),
			)
		default:
			zap.L().Warn(
				"发送退出请求失败：请求通道已满",
				zap.String("player_id", playerID),
			)
		}

		// 等待状态机关闭响应通道（挂起或移除座位时都会关闭）
		select {
		case _, ok := <-respCh:
			if !ok {
				zap.L().Info(
					"响应通道已关闭，连接清理完成",
					zap.String("player_id", playerID),
				)
			}
		case <-time.After(3 * time.Second):
			zap.L().Warn(
				"等待退出确认超时，强制退出",
				zap.String("player_id", playerID),
			)
		}

		zap.L().Info(
			"WebSocket连接处理完成",
			zap.String("client_ip", clientIP),
			zap.String("player_id", playerID),
		)
	}
}
