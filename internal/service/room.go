package service

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"avalon-be/internal/service/dto"
	"avalon-be/internal/service/game"

	"go.uber.org/zap"
)

// 创建后一直无人加入的房间在此时限后被回收
const IDLE_ROOM_TTL = 10 * time.Minute

type RoomService struct {
	state *roomServiceState

	timing game.TimingConfig
}

type roomServiceState struct {
	mu sync.RWMutex

	// 从房间号到房间实体的映射
	rooms map[string]*roomEntry

	cleanUpDone chan struct{}
}

// roomEntry 聚合一个房间的状态机与其关闭信号
type roomEntry struct {
	name    string
	machine *game.GameMachine
	doneCh  chan struct{}
}

func NewRoomService(timing game.TimingConfig) *RoomService {
	state := &roomServiceState{
		rooms:       make(map[string]*roomEntry),
		cleanUpDone: make(chan struct{}),
	}

	// 启动一个 goroutine 定期清理过期的房间
	go startCleanupLoop(state)

	return &RoomService{
		state:  state,
		timing: timing,
	}
}

// startCleanupLoop 兜底清理从未有人加入的房间；
// 曾有人加入的房间在人走光时由状态机回调同步销毁
func startCleanupLoop(state *roomServiceState) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-state.cleanUpDone:
			return

		case <-ticker.C:
			state.mu.Lock()

			for roomCode, entry := range state.rooms {
				if entry.machine.EverJoined() {
					continue
				}
				if time.Since(entry.machine.CreatedAt()) < IDLE_ROOM_TTL {
					continue
				}

				zap.S().Infof("房间 %s 创建后无人加入，开始清理", roomCode)

				close(entry.doneCh)
				delete(state.rooms, roomCode)
			}

			state.mu.Unlock()
		}
	}
}

func (rs *RoomService) Close() {
	close(rs.state.cleanUpDone)

	rs.state.mu.Lock()
	defer rs.state.mu.Unlock()

	for roomCode, entry := range rs.state.rooms {
		close(entry.doneCh)
		delete(rs.state.rooms, roomCode)
	}
}

var ErrDuplicateRoomCode = errors.New("房间号已被占用")

func (rs *RoomService) CreateRoom(req dto.CreateRoomRequest) (dto.CreateRoomResponse, error) {
	if req.CreatorName == "" {
		return dto.CreateRoomResponse{}, errors.New("创建者名称不能为空")
	}
	if req.RoomCode != "" && !isValidRoomCode(req.RoomCode) {
		return dto.CreateRoomResponse{}, errors.New("房间号必须是 4 位数字")
	}

	roomName := req.RoomName
	if roomName == "" {
		roomName = fmt.Sprintf("%s 的房间", req.CreatorName)
	}

	rs.state.mu.Lock()
	defer rs.state.mu.Unlock()

	// 客户端自选房间号优先，已被占用时报错；未指定则随机分配
	roomCode := req.RoomCode
	if roomCode != "" {
		if _, taken := rs.state.rooms[roomCode]; taken {
			return dto.CreateRoomResponse{}, ErrDuplicateRoomCode
		}
	} else {
		allocated, err := rs.allocRoomCode()
		if err != nil {
			return dto.CreateRoomResponse{}, err
		}
		roomCode = allocated
	}

	doneCh := make(chan struct{})
	machine := game.NewGameMachine(roomCode, rs.timing, doneCh)

	entry := &roomEntry{
		name:    roomName,
		machine: machine,
		doneCh:  doneCh,
	}
	rs.state.rooms[roomCode] = entry

	// 人走光时由状态机回调移除房间
	machine.SetOnEmpty(func() {
		rs.removeRoom(roomCode)
	})

	go machine.Start()

	zap.S().Infof("房间 %s(%s) 由 %s 创建", roomCode, roomName, req.CreatorName)

	return dto.CreateRoomResponse{
		RoomCode: roomCode,
		RoomName: roomName,
	}, nil
}

func (rs *RoomService) GetRoomInfo(roomCode string) (dto.RoomInfoResponse, error) {
	rs.state.mu.RLock()
	defer rs.state.mu.RUnlock()

	entry := rs.state.rooms[roomCode]
	if entry == nil {
		return dto.RoomInfoResponse{}, errors.New("房间不存在")
	}

	return dto.RoomInfoResponse{
		RoomCode: roomCode,
		RoomName: entry.name,
	}, nil
}

// JoinRoom 把首帧加入请求投递给房间状态机，并返回该状态机的请求通道。
// 加入的结果（成功或拒绝）由状态机通过 respCh 异步送达
func (rs *RoomService) JoinRoom(
	req *game.JoinRoomRequest,
	respCh chan game.ResponseWrapper,
) (chan game.RequestWrapper, error) {
	if req.RoomCode == "" {
		return nil, errors.New("房间号不能为空")
	}
	if req.JoinerName == "" {
		return nil, errors.New("加入者名称不能为空")
	}

	rs.state.mu.RLock()
	entry := rs.state.rooms[req.RoomCode]
	rs.state.mu.RUnlock()

	if entry == nil {
		return nil, errors.New("房间不存在")
	}

	req.RespCh = respCh

	wrapper := game.RequestWrapper{
		ReqType:    game.REQ_JOIN_ROOM,
		NativeData: req,
	}

	reqCh := entry.machine.GetReqCh()

	zap.S().Debugf("房间 %s 收到加入请求：%s", req.RoomCode, req.JoinerName)

	reqTimer := time.NewTimer(5 * time.Second)
	defer reqTimer.Stop()

	select {
	case reqCh <- wrapper:
		return reqCh, nil

	case <-reqTimer.C:
		zap.S().Warnf("房间 %s 无法及时处理加入请求，%s 发送失败", req.RoomCode, req.JoinerName)
		return nil, errors.New("加入房间失败")
	}
}

// Stats 统计当前房间数和座位总数，供健康检查使用
func (rs *RoomService) Stats() dto.HealthResponse {
	rs.state.mu.RLock()
	defer rs.state.mu.RUnlock()

	players := 0
	for _, entry := range rs.state.rooms {
		players += entry.machine.PlayerCount()
	}

	return dto.HealthResponse{
		Status:  "ok",
		Rooms:   len(rs.state.rooms),
		Players: players,
	}
}

func (rs *RoomService) removeRoom(roomCode string) {
	rs.state.mu.Lock()
	defer rs.state.mu.Unlock()

	entry := rs.state.rooms[roomCode]
	if entry == nil {
		return
	}

	delete(rs.state.rooms, roomCode)

	zap.S().Infof("房间 %s 已移除", roomCode)
}

func isValidRoomCode(code string) bool {
	if len(code) != 4 {
		return false
	}
	for _, c := range code {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// allocRoomCode 分配未被占用的 4 位数字房间号，调用方持有写锁
func (rs *RoomService) allocRoomCode() (string, error) {
	for i := 0; i < 100; i++ {
		code := fmt.Sprintf("%04d", rand.IntN(10000))
		if _, taken := rs.state.rooms[code]; !taken {
			return code, nil
		}
	}

	return "", errors.New("房间号已耗尽，请稍后再试")
}
