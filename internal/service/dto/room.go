package dto

// 创建房间只登记房间号并启动状态机，
// 创建者随后通过 WebSocket 作为第一名玩家加入并成为房主。
// RoomCode 由客户端自选（4 位数字），留空时由服务端随机分配
type CreateRoomRequest struct {
	RoomName    string `json:"room_name"`
	RoomCode    string `json:"room_code,omitempty"`
	CreatorName string `json:"creator_name"`
}

type CreateRoomResponse struct {
	RoomCode string `json:"room_code"`
	RoomName string `json:"room_name"`
}

// 连接前的探活查询
type RoomInfoResponse struct {
	RoomCode string `json:"room_code"`
	RoomName string `json:"room_name"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Rooms   int    `json:"rooms"`
	Players int    `json:"players"`
}
