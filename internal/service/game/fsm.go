package game

import (
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// GameMachine 是每个房间独占的状态机：所有事件在房间自己的
// goroutine 上串行处理，GameData 不存在并发写
type GameMachine struct {
	ctx     *GameContext
	handler StageHandler
	// 所有客户端请求汇总的通道
	reqCh chan RequestWrapper
	// 结束通道，用于通知状态机退出事件循环
	doneCh chan struct{}
	// 房间人去楼空时回调注册表摘除本房间
	onEmpty func()

	// 是否曾经有玩家加入过，用于区分"刚创建还没人来"和"人走光了"。
	// 注册表的清理协程也会读取，因此用原子量
	everJoined atomic.Bool

	// 当前座位数的只读快照，供健康检查在房间协程外读取
	playerCount atomic.Int64

	createdAt time.Time
}

func NewGameMachine(roomID string, timing TimingConfig, doneCh chan struct{}) *GameMachine {
	ctx := &GameContext{
		RoomID:  roomID,
		Players: make(map[string]*Player),
		Timing:  timing,
		TmoCh:   make(chan RequestWrapper, 64),
	}

	gm := &GameMachine{
		ctx:       ctx,
		handler:   NewWaitStageHandler(),
		reqCh:     make(chan RequestWrapper, 64),
		doneCh:    doneCh,
		createdAt: time.Now(),
	}

	gm.handler.SetOnSwitch(func(nextStage string) {
		gm.ctx.GameStage = nextStage
	})

	return gm
}

func (gm *GameMachine) GetReqCh() chan RequestWrapper {
	return gm.reqCh
}

func (gm *GameMachine) SetOnEmpty(onEmpty func()) {
	gm.onEmpty = onEmpty
}

func (gm *GameMachine) Start() {
	defer gm.ctx.StopAllTimers()

	// 执行初始 handler 的 OnEnter
	gm.handler.OnEnter(gm.ctx)

	for {
		var req RequestWrapper

		select {
		case req = <-gm.reqCh:
			zap.L().Debug(
				"接收到客户端请求",
				zap.String("room_id", gm.ctx.RoomID),
				zap.String("req_type", req.ReqType),
			)
		case req = <-gm.ctx.TmoCh:
			zap.L().Debug(
				"接收到超时事件",
				zap.String("room_id", gm.ctx.RoomID),
			)
		case <-gm.doneCh:
			zap.L().Info(
				"收到退出信号，结束游戏状态机",
				zap.String("room_id", gm.ctx.RoomID),
			)
			return
		}

		err := gm.handler.OnHandle(gm.ctx, req)
		if err != nil {
			zap.L().Debug(
				"处理请求失败",
				zap.Error(err),
				zap.String("room_id", gm.ctx.RoomID),
				zap.String("stage", gm.handler.Stage()),
				zap.String("req_type", req.ReqType),
			)

			// 错误只回给发送者，不影响房间状态
			if req.SenderID != "" {
				gm.ctx.UnicastResp(req.SenderID, WrapErrResponse(err.Error()))
			}
		}

		gm.playerCount.Store(int64(len(gm.ctx.Players)))
		if len(gm.ctx.Players) > 0 {
			gm.everJoined.Store(true)
		}

		// 人走光了就销毁房间
		if gm.everJoined.Load() && len(gm.ctx.Players) == 0 {
			zap.L().Info(
				"房间已无玩家，状态机退出",
				zap.String("room_id", gm.ctx.RoomID),
			)
			if gm.onEmpty != nil {
				gm.onEmpty()
			}
			return
		}

		// 状态发生变化时切换 handler，可能连续级联多次
		for gm.ctx.GameStage != gm.handler.Stage() {
			gm.switchStage()
			gm.handler.OnEnter(gm.ctx)
		}
	}
}

func (gm *GameMachine) switchStage() {
	gm.handler.OnExit(gm.ctx)

	var newHandler StageHandler

	switch gm.ctx.GameStage {
	case STAGE_WAITING:
		newHandler = NewWaitStageHandler()
	case STAGE_ROLE_REVEAL:
		newHandler = NewRoleRevealStageHandler()
	case STAGE_LEADER_SELECTION:
		newHandler = NewLeaderSelectionStageHandler()
	case STAGE_TEAM_SELECTION:
		newHandler = NewTeamSelectionStageHandler()
	case STAGE_TEAM_VOTE:
		newHandler = NewTeamVoteStageHandler()
	case STAGE_MISSION_VOTE:
		newHandler = NewMissionVoteStageHandler()
	case STAGE_LAKE_LADY:
		newHandler = NewLakeLadyStageHandler()
	case STAGE_ASSASSINATION:
		newHandler = NewAssassinationStageHandler()
	case STAGE_FINISHED:
		newHandler = NewFinishStageHandler()
	default:
		zap.L().Error(
			"未知的游戏阶段",
			zap.String("room_id", gm.ctx.RoomID),
			zap.String("stage", gm.ctx.GameStage),
		)
		gm.ctx.GameStage = gm.handler.Stage()
		return
	}

	newHandler.SetOnSwitch(func(nextStage string) {
		gm.ctx.GameStage = nextStage
	})

	gm.handler = newHandler
}

func (gm *GameMachine) CreatedAt() time.Time {
	return gm.createdAt
}

func (gm *GameMachine) EverJoined() bool {
	return gm.everJoined.Load()
}

func (gm *GameMachine) PlayerCount() int {
	return int(gm.playerCount.Load())
}
