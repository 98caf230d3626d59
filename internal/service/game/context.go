package game

import (
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// VariantFlags 是开局时由房主确定的可选规则
type VariantFlags struct {
	EnableLakeLady    bool `json:"enable_lake_lady"`
	RevealEvilRoles   bool `json:"reveal_evil_roles"`
	AssassinByMorgana bool `json:"assassin_by_morgana"`
}

// TimingConfig 房间相关的时间参数，由外层配置注入
type TimingConfig struct {
	// 断线座位保留的重连窗口
	ReconnectWindow time.Duration
	// 湖中女神查验结果展示后的自动确认延迟
	LakeLadyConfirm time.Duration
}

func DefaultTimingConfig() TimingConfig {
	return TimingConfig{
		ReconnectWindow: 3 * time.Minute,
		LakeLadyConfirm: 30 * time.Second,
	}
}

// GameContext 汇总一个房间的全部可变状态。
// 只在房间自己的 goroutine 上读写，因此不需要锁
type GameContext struct {
	RoomID    string
	GameStage string
	Players   map[string]*Player
	// 大厅座位顺序（加入顺序，开局前房主可调整）
	LobbyOrder []string
	HostID     string

	Timing TimingConfig

	// 以下字段仅在一局游戏进行中有效，重开时整体清空
	Cfg      RoleConfig
	Variants VariantFlags
	// 开局时固定的围桌座位顺序，决定队长与湖中女神的轮换
	PlayersOrder       []string
	CurrentMission     int
	CurrentLeaderID    string
	ProposedTeam       []string
	MissionResults     []bool
	ConsecutiveRejects int
	RoleConfirmed      map[string]bool
	Ballot             *Ballot
	LakeLady           *LakeLadyTracker
	Result             *GameResult

	// 洗牌用的随机源，为空时使用全局随机源；测试注入固定种子
	Rng *rand.Rand

	// 定时器事件回灌通道
	TmoCh chan RequestWrapper

	stageTimer *time.Timer
	stageSeq   int
	// key: 座位 ID
	reconnectTimers map[string]*time.Timer
	// 座位加入的序号，ResetPlayerOrder 时按此恢复
	nextJoinSeq int
}

// GameResult 在切换到结束阶段前写入，由结束阶段广播。
// Aborted 表示本局因人数不足被中止，没有胜方
type GameResult struct {
	GoodWins bool
	Aborted  bool
	Message  string
}

// ResetGameData 丢弃一局游戏的数据，房间回到等待阶段的状态
func (gc *GameContext) ResetGameData() {
	gc.Cfg = RoleConfig{}
	gc.Variants = VariantFlags{}
	gc.PlayersOrder = nil
	gc.CurrentMission = 0
	gc.CurrentLeaderID = ""
	gc.ProposedTeam = nil
	gc.MissionResults = nil
	gc.ConsecutiveRejects = 0
	gc.RoleConfirmed = nil
	gc.Ballot = nil
	gc.LakeLady = nil
	gc.Result = nil

	for _, p := range gc.Players {
		p.Role = ROLE_UNSET
	}
}

func (gc *GameContext) GetHost() *Player {
	return gc.Players[gc.HostID]
}

func (gc *GameContext) FindByName(name string) *Player {
	for _, p := range gc.Players {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// OrderedPlayers 按给定座位序列返回玩家，跳过已离场的座位
func (gc *GameContext) OrderedPlayers(order []string) []*Player {
	out := make([]*Player, 0, len(order))
	for _, id := range order {
		if p, ok := gc.Players[id]; ok {
			out = append(out, p)
		}
	}
	return out
}

// PlayersSnapshot 返回公开版本的玩家列表（大厅顺序）
func (gc *GameContext) PlayersSnapshot() []Player {
	out := make([]Player, 0, len(gc.Players))
	for _, p := range gc.OrderedPlayers(gc.LobbyOrder) {
		out = append(out, sanitizePlayer(p))
	}
	return out
}

// NextInOrder 返回座位序列上 seatID 的后一位
func (gc *GameContext) NextInOrder(seatID string) string {
	for i, id := range gc.PlayersOrder {
		if id == seatID {
			return gc.PlayersOrder[(i+1)%len(gc.PlayersOrder)]
		}
	}
	if len(gc.PlayersOrder) > 0 {
		return gc.PlayersOrder[0]
	}
	return ""
}

// CurrentTeamSize 当前任务需要的队伍人数
func (gc *GameContext) CurrentTeamSize() int {
	return MissionTeamSize(len(gc.PlayersOrder), gc.CurrentMission)
}

// PublicState 组装广播用的公开游戏进度
func (gc *GameContext) PublicState() PublicGameState {
	state := PublicGameState{
		CurrentPhase:       gc.GameStage,
		CurrentMission:     gc.CurrentMission,
		CurrentLeader:      gc.CurrentLeaderID,
		TeamSize:           gc.CurrentTeamSize(),
		PlayersOrder:       append([]string{}, gc.PlayersOrder...),
		MissionResults:     append([]bool{}, gc.MissionResults...),
		ConsecutiveRejects: gc.ConsecutiveRejects,
	}

	if leader, ok := gc.Players[gc.CurrentLeaderID]; ok {
		state.LeaderName = leader.Name
	}
	if gc.LakeLady != nil && gc.LakeLady.Enabled {
		if holder, ok := gc.Players[gc.LakeLady.HolderID]; ok {
			state.LakeLadyHolderName = holder.Name
		}
	}

	return state
}

func (gc *GameContext) BroadcastResp(resp ResponseWrapper) {
	for _, p := range gc.Players {
		if p.RespCh == nil {
			continue
		}

		select {
		case p.RespCh <- resp:
		default:
			zap.L().Warn(
				"发送广播响应失败：玩家响应通道已满",
				zap.String("room_id", gc.RoomID),
				zap.String("player_id", p.ID),
			)
		}
	}
}

func (gc *GameContext) UnicastResp(playerID string, resp ResponseWrapper) {
	player, ok := gc.Players[playerID]
	if !ok || player.RespCh == nil {
		zap.L().Warn(
			"无法找到在线玩家进行单播",
			zap.String("room_id", gc.RoomID),
			zap.String("player_id", playerID),
		)
		return
	}

	select {
	case player.RespCh <- resp:
	default:
		zap.L().Warn(
			"发送单播响应失败：玩家响应通道已满",
			zap.String("room_id", gc.RoomID),
			zap.String("player_id", playerID),
		)
	}
}

// SetStageTimeout 设置当前阶段的超时，到期后以请求的形式回灌到房间循环。
// 代次号用于丢弃已被清除却抢先入队的过期事件
func (gc *GameContext) SetStageTimeout(d time.Duration) {
	gc.ClearStageTimeout()

	gc.stageSeq++
	seq := gc.stageSeq
	stage := gc.GameStage

	gc.stageTimer = time.AfterFunc(d, func() {
		req := RequestWrapper{
			ReqType: REQ_TIMEOUT,
			NativeData: &TimeoutRequest{
				Kind:  TMO_STAGE,
				Stage: stage,
				Seq:   seq,
			},
		}

		select {
		case gc.TmoCh <- req:
		default:
			zap.L().Warn(
				"超时事件入队失败：通道已满",
				zap.String("room_id", gc.RoomID),
				zap.String("stage", stage),
			)
		}
	})
}

func (gc *GameContext) ClearStageTimeout() {
	if gc.stageTimer != nil {
		gc.stageTimer.Stop()
		gc.stageTimer = nil
	}
}

// IsStaleStageTimeout 判断一个阶段超时事件是否已经过期
func (gc *GameContext) IsStaleStageTimeout(req *TimeoutRequest) bool {
	return req.Stage != gc.GameStage || req.Seq != gc.stageSeq
}

// ArmReconnectTimer 为断线座位启动重连窗口计时
func (gc *GameContext) ArmReconnectTimer(seatID string) {
	gc.CancelReconnectTimer(seatID)

	if gc.reconnectTimers == nil {
		gc.reconnectTimers = make(map[string]*time.Timer)
	}

	gc.reconnectTimers[seatID] = time.AfterFunc(gc.Timing.ReconnectWindow, func() {
		req := RequestWrapper{
			ReqType: REQ_TIMEOUT,
			NativeData: &TimeoutRequest{
				Kind:   TMO_RECONNECT,
				SeatID: seatID,
			},
		}

		select {
		case gc.TmoCh <- req:
		default:
			zap.L().Warn(
				"重连超时事件入队失败：通道已满",
				zap.String("room_id", gc.RoomID),
				zap.String("seat_id", seatID),
			)
		}
	})
}

func (gc *GameContext) CancelReconnectTimer(seatID string) {
	if timer, ok := gc.reconnectTimers[seatID]; ok {
		timer.Stop()
		delete(gc.reconnectTimers, seatID)
	}
}

// StopAllTimers 房间销毁前回收全部定时器
func (gc *GameContext) StopAllTimers() {
	gc.ClearStageTimeout()
	for id, timer := range gc.reconnectTimers {
		timer.Stop()
		delete(gc.reconnectTimers, id)
	}
}
