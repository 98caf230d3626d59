package game

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// 湖中女神阶段持有者查验一名玩家的阵营，查验结果只有持有者可见。
// 超时未确认则按已选目标强制结算，连目标都没选则放弃本轮查验
type lakeLadyStageHandler struct {
	onSwitch func(string)
}

func NewLakeLadyStageHandler() *lakeLadyStageHandler {
	return &lakeLadyStageHandler{}
}

func (llh *lakeLadyStageHandler) Stage() string {
	return STAGE_LAKE_LADY
}

func (llh *lakeLadyStageHandler) OnEnter(ctx *GameContext) {
	holder := ctx.Players[ctx.LakeLady.HolderID]
	targets := ctx.LakeLady.AvailableTargets(ctx.PlayersOrder)

	if holder == nil || len(targets) == 0 {
		// 没有可查验的目标，直接跳过本轮
		ctx.BroadcastResp(WrapResponse(
			RESP_LAKE_LADY_UNAVAILABLE,
			LakeLadyUnavailableResponse{Reason: "没有可查验的目标，跳过本轮查验"},
		))
		advanceAfterMissionVote(ctx, llh.onSwitch, false)
		return
	}

	ctx.BroadcastResp(WrapResponse(
		RESP_LAKE_LADY_START,
		LakeLadyStartResponse{
			HolderID:         holder.ID,
			HolderName:       holder.Name,
			AvailableTargets: seatNames(ctx, targets),
		},
	))

	ctx.SetStageTimeout(ctx.Timing.LakeLadyConfirm)
}

func (llh *lakeLadyStageHandler) OnHandle(ctx *GameContext, req RequestWrapper) error {
	if handled, err := tryHandleLifecycle(ctx, req, llh.onSwitch); handled {
		return err
	}

	if sreq := TryUnwrapLakeLadySelectRequest(req); sreq != nil {
		if req.SenderID != ctx.LakeLady.HolderID {
			return errors.New("无法查验：只有湖中女神持有者可以查验")
		}

		target := ctx.FindByName(sreq.TargetName)
		if target == nil {
			return fmt.Errorf("无法查验：找不到玩家 %s", sreq.TargetName)
		}

		if err := ctx.LakeLady.Select(ctx.CurrentMission, target.ID); err != nil {
			return fmt.Errorf("无法查验：%w", err)
		}

		holder := ctx.Players[ctx.LakeLady.HolderID]

		// 全房间只知道谁被查验了，阵营结果单独发给持有者
		ctx.BroadcastResp(WrapResponse(
			RESP_LAKE_LADY_RESULT,
			LakeLadyResultResponse{
				HolderName: holder.Name,
				TargetName: target.Name,
			},
		))

		isEvil := target.IsEvil()
		ctx.UnicastResp(holder.ID, WrapResponse(
			RESP_LAKE_LADY_RESULT,
			LakeLadyResultResponse{
				HolderName: holder.Name,
				TargetName: target.Name,
				IsEvil:     &isEvil,
			},
		))

		zap.L().Info(
			"湖中女神查验",
			zap.String("room_id", ctx.RoomID),
			zap.String("holder_name", holder.Name),
			zap.String("target_name", target.Name),
		)

		// 选定目标后重置确认窗口
		ctx.SetStageTimeout(ctx.Timing.LakeLadyConfirm)

		return nil
	}

	if creq := TryUnwrapLakeLadyConfirmRequest(req); creq != nil {
		if req.SenderID != ctx.LakeLady.HolderID {
			return errors.New("无法确认查验：只有湖中女神持有者可以确认")
		}

		llh.settle(ctx)

		return nil
	}

	if treq := TryUnwrapTimeoutRequest(req); treq != nil && treq.Kind == TMO_STAGE {
		if ctx.IsStaleStageTimeout(treq) {
			return nil
		}

		zap.L().Info(
			"湖中女神确认超时，强制结算",
			zap.String("room_id", ctx.RoomID),
		)
		llh.settle(ctx)

		return nil
	}

	return errors.New("湖中女神阶段无法处理此请求")
}

// settle 结算查验：已选目标则标记使用并转移令牌，否则放弃本轮
func (llh *lakeLadyStageHandler) settle(ctx *GameContext) {
	ctx.ClearStageTimeout()

	if ctx.LakeLady.PendingTarget() == "" {
		ctx.BroadcastResp(WrapResponse(
			RESP_LAKE_LADY_UNAVAILABLE,
			LakeLadyUnavailableResponse{Reason: "持有者未选择目标，本轮查验作废"},
		))
		advanceAfterMissionVote(ctx, llh.onSwitch, false)
		return
	}

	newHolderID, err := ctx.LakeLady.Confirm(ctx.CurrentMission)
	if err != nil {
		zap.L().Error(
			"湖中女神结算失败",
			zap.Error(err),
			zap.String("room_id", ctx.RoomID),
		)
		advanceAfterMissionVote(ctx, llh.onSwitch, false)
		return
	}

	zap.L().Info(
		"湖中女神令牌转移",
		zap.String("room_id", ctx.RoomID),
		zap.String("new_holder_id", newHolderID),
	)

	advanceAfterMissionVote(ctx, llh.onSwitch, false)
}

func (llh *lakeLadyStageHandler) OnExit(ctx *GameContext) {
	ctx.ClearStageTimeout()
}

func (llh *lakeLadyStageHandler) SetOnSwitch(onSwitch func(string)) {
	llh.onSwitch = onSwitch
}

// 刺杀阶段：好人三胜后刺客指认梅林，指认成功则坏人翻盘
type assassinationStageHandler struct {
	onSwitch func(string)
}

func NewAssassinationStageHandler() *assassinationStageHandler {
	return &assassinationStageHandler{}
}

func (ash *assassinationStageHandler) Stage() string {
	return STAGE_ASSASSINATION
}

func (ash *assassinationStageHandler) OnEnter(ctx *GameContext) {
	assassin := findAssassinSeat(ctx)
	if assassin == nil {
		// 本局没有刺客角色，好人直接获胜
		ctx.Result = &GameResult{
			GoodWins: true,
			Message:  "三次任务成功，好人阵营胜利！",
		}
		ash.onSwitch(STAGE_FINISHED)
		return
	}

	ctx.BroadcastResp(WrapResponse(
		RESP_WAITING_FOR_ASSASSINATE,
		WaitingForAssassinationResponse{AssassinName: assassin.Name},
	))

	// 可刺杀目标是所有好人阵营的座位
	targets := make([]TargetSeat, 0, len(ctx.PlayersOrder))
	for _, seat := range ctx.OrderedPlayers(ctx.PlayersOrder) {
		if seat.IsEvil() {
			continue
		}
		targets = append(targets, TargetSeat{ID: seat.ID, Name: seat.Name})
	}

	ctx.UnicastResp(assassin.ID, WrapResponse(
		RESP_ASSASSINATION_START,
		AssassinationStartResponse{Targets: targets},
	))
}

func (ash *assassinationStageHandler) OnHandle(ctx *GameContext, req RequestWrapper) error {
	if handled, err := tryHandleLifecycle(ctx, req, ash.onSwitch); handled {
		return err
	}

	if areq := TryUnwrapAssassinateRequest(req); areq != nil {
		assassin := findAssassinSeat(ctx)
		if assassin == nil || req.SenderID != assassin.ID {
			return errors.New("无法刺杀：只有刺客可以执行刺杀")
		}

		target, exists := ctx.Players[areq.TargetID]
		if !exists {
			return errors.New("无法刺杀：目标不在本局游戏中")
		}
		if target.IsEvil() {
			return errors.New("无法刺杀：只能刺杀好人阵营的玩家")
		}

		hit := target.Role == ROLE_MERLIN

		zap.L().Info(
			"刺客执行刺杀",
			zap.String("room_id", ctx.RoomID),
			zap.String("assassin_name", assassin.Name),
			zap.String("target_name", target.Name),
			zap.Bool("hit_merlin", hit),
		)

		if hit {
			ctx.Result = &GameResult{
				GoodWins: false,
				Message:  fmt.Sprintf("刺客成功刺杀了梅林（%s），坏人阵营胜利！", target.Name),
			}
		} else {
			ctx.Result = &GameResult{
				GoodWins: true,
				Message:  fmt.Sprintf("刺客刺杀了 %s，但梅林另有其人，好人阵营胜利！", target.Name),
			}
		}

		ash.onSwitch(STAGE_FINISHED)

		return nil
	}

	return errors.New("刺杀阶段无法处理此请求")
}

func (ash *assassinationStageHandler) OnExit(_ *GameContext) {}

func (ash *assassinationStageHandler) SetOnSwitch(onSwitch func(string)) {
	ash.onSwitch = onSwitch
}

// findAssassinSeat 找出执行刺杀的座位：默认为刺客，
// 启用莫甘娜刺杀变体时改为莫甘娜
func findAssassinSeat(ctx *GameContext) *Player {
	role := ROLE_ASSASSIN
	if ctx.Variants.AssassinByMorgana {
		role = ROLE_MORGANA
	}

	for _, seat := range ctx.Players {
		if seat.Role == role {
			return seat
		}
	}
	return nil
}

// 结束阶段公布结果与全部身份，房主可以带着原班人马重开一局
type finishStageHandler struct {
	onSwitch func(string)
}

func NewFinishStageHandler() *finishStageHandler {
	return &finishStageHandler{}
}

func (fsh *finishStageHandler) Stage() string {
	return STAGE_FINISHED
}

func (fsh *finishStageHandler) OnEnter(ctx *GameContext) {
	result := ctx.Result
	if result == nil {
		result = &GameResult{Message: "游戏结束"}
	}

	reveals := make([]RoleReveal, 0, len(ctx.PlayersOrder))
	for _, seat := range ctx.OrderedPlayers(ctx.PlayersOrder) {
		reveals = append(reveals, RoleReveal{
			Name:    seat.Name,
			Role:    seat.Role,
			Faction: seat.Faction(),
		})
	}

	zap.L().Info(
		"游戏结束",
		zap.String("room_id", ctx.RoomID),
		zap.Bool("good_wins", result.GoodWins),
		zap.String("message", result.Message),
	)

	ctx.BroadcastResp(WrapResponse(
		RESP_GAME_ENDED,
		GameEndedResponse{
			GoodWins: result.GoodWins,
			Aborted:  result.Aborted,
			Message:  result.Message,
			Roles:    reveals,
		},
	))
}

func (fsh *finishStageHandler) OnHandle(ctx *GameContext, req RequestWrapper) error {
	// 结束阶段的断开直接移除座位，不再挂起等待重连
	if jreq := TryUnwrapJoinRoomRequest(req); jreq != nil {
		if err := onPlayerReconnect(ctx, jreq); err != nil {
			rejectJoin(jreq, err)
		}
		return nil
	}

	if ereq := TryUnwrapExitGameRequest(req); ereq != nil {
		onPlayerExit(ctx, ereq, fsh.onSwitch)
		return nil
	}

	// 对局中挂起的座位可能在结束阶段才到达重连窗口期限
	if treq := TryUnwrapTimeoutRequest(req); treq != nil && treq.Kind == TMO_RECONNECT {
		onReconnectExpired(ctx, treq.SeatID, fsh.onSwitch)
		return nil
	}

	if rreq := TryUnwrapRestartGameRequest(req); rreq != nil {
		if req.SenderID != ctx.HostID {
			return errors.New("无法重开游戏：只有房主可以重开")
		}

		zap.L().Info(
			"房主重开游戏",
			zap.String("room_id", ctx.RoomID),
			zap.Int("player_count", len(ctx.Players)),
		)

		ctx.ResetGameData()

		ctx.BroadcastResp(WrapResponse(
			RESP_GAME_RESTARTED,
			GameRestartedResponse{Players: ctx.PlayersSnapshot()},
		))

		fsh.onSwitch(STAGE_WAITING)

		return nil
	}

	return errors.New("结束阶段无法处理此请求")
}

func (fsh *finishStageHandler) OnExit(_ *GameContext) {}

func (fsh *finishStageHandler) SetOnSwitch(onSwitch func(string)) {
	fsh.onSwitch = onSwitch
}
