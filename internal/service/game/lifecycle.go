package game

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// 房间人数上限由桌游规则决定：12 人局是最大配置
const NAME_MAX_LEN = 20

// tryHandleLifecycle 处理所有游戏阶段都要响应的生命周期事件：
// 断线重连、连接断开、重连窗口超时。返回是否已消费该请求。
// 等待阶段的加入/退出有自己的逻辑，不走这里
func tryHandleLifecycle(ctx *GameContext, req RequestWrapper, onSwitch func(string)) (bool, error) {
	if jreq := TryUnwrapJoinRoomRequest(req); jreq != nil {
		if err := onPlayerReconnect(ctx, jreq); err != nil {
			rejectJoin(jreq, err)
		}
		return true, nil
	}

	if ereq := TryUnwrapExitGameRequest(req); ereq != nil {
		onPlayerExit(ctx, ereq, onSwitch)
		return true, nil
	}

	if treq := TryUnwrapTimeoutRequest(req); treq != nil {
		if treq.Kind == TMO_RECONNECT {
			onReconnectExpired(ctx, treq.SeatID, onSwitch)
			return true, nil
		}

		// 换了阶段之后才入队的过期阶段超时，直接丢弃
		if treq.Kind == TMO_STAGE && ctx.IsStaleStageTimeout(treq) {
			return true, nil
		}
	}

	return false, nil
}

// rejectJoin 加入失败时座位尚不存在，错误直接写回连接并关闭通道，
// 写协程据此断开该连接
func rejectJoin(req *JoinRoomRequest, err error) {
	if req.RespCh == nil {
		return
	}

	select {
	case req.RespCh <- WrapErrResponse(err.Error()):
	default:
	}
	close(req.RespCh)
}

// onPlayerJoin 等待阶段的新玩家加入，名字在房间内必须唯一
func onPlayerJoin(ctx *GameContext, req *JoinRoomRequest) error {
	if req.JoinerName == "" {
		return errors.New("玩家名称不能为空")
	}
	if len([]rune(req.JoinerName)) > NAME_MAX_LEN {
		return fmt.Errorf("玩家名称过长，最多 %d 个字符", NAME_MAX_LEN)
	}
	if existing := ctx.FindByName(req.JoinerName); existing != nil {
		// 名字只在座位断线时可以取回，在线座位不允许被顶替
		if existing.Connected {
			return fmt.Errorf("名字 %s 已被使用", req.JoinerName)
		}
		return rebindSeat(ctx, existing, req)
	}
	if len(ctx.Players) >= MAX_PLAYERS {
		return fmt.Errorf("房间已满（最多 %d 人）", MAX_PLAYERS)
	}

	player := &Player{
		ID:        ShortID(),
		Name:      req.JoinerName,
		Connected: true,
		RespCh:    req.RespCh,
		joinSeq:   ctx.nextJoinSeq,
	}
	ctx.nextJoinSeq++

	// 第一个加入的玩家成为房主
	if len(ctx.Players) == 0 {
		player.IsHost = true
		ctx.HostID = player.ID
	}

	ctx.Players[player.ID] = player
	ctx.LobbyOrder = append(ctx.LobbyOrder, player.ID)

	zap.L().Info(
		"玩家加入房间",
		zap.String("room_id", ctx.RoomID),
		zap.String("player_id", player.ID),
		zap.String("player_name", player.Name),
	)

	ctx.BroadcastResp(WrapResponse(
		RESP_JOIN_ROOM,
		JoinRoomResponse{
			RoomCode: ctx.RoomID,
			Stage:    ctx.GameStage,
			Joiner:   sanitizePlayer(player),
			Players:  ctx.PlayersSnapshot(),
			HostID:   ctx.HostID,
		},
	))

	return nil
}

// onPlayerReconnect 游戏进行中的加入只允许断线重连：
// 名字必须命中一个现有座位，否则拒绝
func onPlayerReconnect(ctx *GameContext, req *JoinRoomRequest) error {
	seat := ctx.FindByName(req.JoinerName)
	if seat == nil {
		return errors.New("游戏已开始，无法加入")
	}

	return rebindSeat(ctx, seat, req)
}

// rebindSeat 把座位换绑到新连接上，并重放该座位当前应见的视图。
// 对已在线座位的重复重连是幂等的：旧连接被顶替，状态不变
func rebindSeat(ctx *GameContext, seat *Player, req *JoinRoomRequest) error {
	// 没带新连接（或就是当前连接）的重复加入不做任何换绑，
	// 否则会把在线座位的通道关掉
	if seat.Connected && (req.RespCh == nil || req.RespCh == seat.RespCh) {
		return nil
	}

	ctx.CancelReconnectTimer(seat.ID)

	// 关闭旧连接的响应通道，让旧的写协程退出
	if seat.RespCh != nil {
		close(seat.RespCh)
	}

	seat.RespCh = req.RespCh
	seat.Connected = true

	// 先给重连者单播私有快照（含角色与未投的选票）
	ctx.UnicastResp(seat.ID, WrapResponse(
		RESP_JOIN_ROOM,
		JoinRoomResponse{
			RoomCode:    ctx.RoomID,
			Stage:       ctx.GameStage,
			Joiner:      *seat,
			Players:     ctx.PlayersSnapshot(),
			HostID:      ctx.HostID,
			Reconnected: true,
			Snapshot:    buildSeatSnapshot(ctx, seat),
		},
	))

	// 再向全房间广播公开版本
	ctx.BroadcastResp(WrapResponse(
		RESP_JOIN_ROOM,
		JoinRoomResponse{
			RoomCode:    ctx.RoomID,
			Stage:       ctx.GameStage,
			Joiner:      sanitizePlayer(seat),
			Players:     ctx.PlayersSnapshot(),
			HostID:      ctx.HostID,
			Reconnected: true,
		},
	))

	zap.L().Info(
		"断线重连成功",
		zap.String("room_id", ctx.RoomID),
		zap.String("player_id", seat.ID),
		zap.String("player_name", seat.Name),
	)

	return nil
}

// buildSeatSnapshot 组装断线座位当前阶段应当看到的私有视图
func buildSeatSnapshot(ctx *GameContext, seat *Player) *SeatSnapshot {
	snapshot := &SeatSnapshot{}

	if ctx.GameStage != STAGE_WAITING && seat.Role != ROLE_UNSET && seat.Role != "" {
		snapshot.Role = seat.Role
		snapshot.Faction = seat.Faction()

		view := ComputeKnowledge(
			seat,
			ctx.OrderedPlayers(ctx.PlayersOrder),
			ctx.Variants.RevealEvilRoles,
		)
		snapshot.Knowledge = &view

		state := ctx.PublicState()
		snapshot.Game = &state
	}

	// 尚未投出的选票：重连后客户端据此重新弹出投票界面
	if b := ctx.Ballot; b != nil && !b.IsComplete() {
		if _, voted := b.Votes()[seat.ID]; !voted {
			if err := probeEligible(b, seat.ID); err == nil {
				snapshot.PendingVote = b.Kind()
			}
		}
	}

	return snapshot
}

// probeEligible 只检查资格，不落票
func probeEligible(b *Ballot, seatID string) error {
	if !b.eligible[seatID] {
		return ErrNotEligible
	}
	return nil
}

// onPlayerExit 处理连接断开或主动离开。
// 等待/结束阶段直接移除座位；游戏中断开则挂起座位等待重连
func onPlayerExit(ctx *GameContext, req *ExitGameRequest, onSwitch func(string)) {
	seat, exists := ctx.Players[req.PlayerID]
	if !exists {
		return
	}

	// 通道不匹配说明这是已被顶替的旧连接在退出，座位不动
	if req.RespCh != nil && seat.RespCh != req.RespCh {
		zap.L().Debug(
			"旧连接退出（已被顶替），不影响座位",
			zap.String("room_id", ctx.RoomID),
			zap.String("player_id", req.PlayerID),
		)
		return
	}

	inGame := ctx.GameStage != STAGE_WAITING && ctx.GameStage != STAGE_FINISHED

	if inGame && !req.Explicit {
		suspendSeat(ctx, seat)
		return
	}

	removeSeat(ctx, seat.ID, onSwitch)
}

// suspendSeat 挂起断线座位：保留座位与游戏上下文，启动重连窗口
func suspendSeat(ctx *GameContext, seat *Player) {
	if seat.RespCh != nil {
		close(seat.RespCh)
		seat.RespCh = nil
	}
	seat.Connected = false

	ctx.ArmReconnectTimer(seat.ID)

	zap.L().Info(
		"玩家断线，座位挂起等待重连",
		zap.String("room_id", ctx.RoomID),
		zap.String("player_id", seat.ID),
		zap.String("player_name", seat.Name),
	)

	ctx.BroadcastResp(WrapResponse(
		RESP_EXIT_GAME,
		ExitGameResponse{
			LeftPlayerID:   seat.ID,
			LeftPlayerName: seat.Name,
			Suspended:      true,
			Players:        ctx.PlayersSnapshot(),
		},
	))
}

// onReconnectExpired 重连窗口到期，按正式离开处理
func onReconnectExpired(ctx *GameContext, seatID string, onSwitch func(string)) {
	seat, exists := ctx.Players[seatID]
	if !exists || seat.Connected {
		// 座位已移除或已重连，过期事件作废
		return
	}

	zap.L().Info(
		"重连窗口到期，座位正式离场",
		zap.String("room_id", ctx.RoomID),
		zap.String("player_id", seatID),
		zap.String("player_name", seat.Name),
	)

	removeSeat(ctx, seatID, onSwitch)
}

// removeSeat 把座位从房间中彻底移除，并对游戏状态做全部善后：
// 房主移交、队长顺延、湖中女神令牌转移、选票名单收缩，
// 以及因人员变化而满足的阶段推进条件
func removeSeat(ctx *GameContext, seatID string, onSwitch func(string)) {
	seat, exists := ctx.Players[seatID]
	if !exists {
		return
	}

	ctx.CancelReconnectTimer(seatID)

	if seat.RespCh != nil {
		close(seat.RespCh)
		seat.RespCh = nil
	}

	wasHost := ctx.HostID == seatID
	wasLakeLadyHolder := ctx.LakeLady != nil && ctx.LakeLady.HolderID == seatID

	// 游戏中的座位序列善后要在摘除之前做，轮换需要知道它原来的位置
	if ctx.LakeLady != nil {
		ctx.LakeLady.OnSeatRemoved(seatID, ctx.PlayersOrder)
	}
	if ctx.CurrentLeaderID == seatID {
		ctx.CurrentLeaderID = ctx.NextInOrder(seatID)
	}

	delete(ctx.Players, seatID)
	ctx.LobbyOrder = removeFromSlice(ctx.LobbyOrder, seatID)
	ctx.PlayersOrder = removeFromSlice(ctx.PlayersOrder, seatID)
	ctx.ProposedTeam = removeFromSlice(ctx.ProposedTeam, seatID)
	delete(ctx.RoleConfirmed, seatID)

	if ctx.Ballot != nil {
		ctx.Ballot.RemoveEligible(seatID)
	}

	zap.L().Info(
		"玩家离开房间",
		zap.String("room_id", ctx.RoomID),
		zap.String("player_id", seatID),
		zap.String("player_name", seat.Name),
	)

	ctx.BroadcastResp(WrapResponse(
		RESP_EXIT_GAME,
		ExitGameResponse{
			LeftPlayerID:   seatID,
			LeftPlayerName: seat.Name,
			Players:        ctx.PlayersSnapshot(),
		},
	))

	if len(ctx.Players) == 0 {
		// 状态机主循环会检测到空房间并退出
		return
	}

	if wasHost {
		reassignHost(ctx)
	}

	switch ctx.GameStage {
	case STAGE_WAITING, STAGE_FINISHED:
		return
	}

	// 刺杀阶段刺客离场有明确的结局判定，优先于人数中止
	if ctx.GameStage == STAGE_ASSASSINATION && findAssassinSeat(ctx) == nil {
		ctx.Result = &GameResult{
			GoodWins: true,
			Message:  "刺客已离开游戏，好人阵营胜利！",
		}
		onSwitch(STAGE_FINISHED)
		return
	}

	// 桌面配置以开局人数为准，人数跌破下限后队伍规模表不再成立，
	// 游戏无法继续，直接中止本局
	if len(ctx.PlayersOrder) < MIN_PLAYERS {
		ctx.Result = &GameResult{
			Aborted: true,
			Message: fmt.Sprintf("在场人数不足 %d 人，本局中止", MIN_PLAYERS),
		}
		onSwitch(STAGE_FINISHED)
		return
	}

	switch ctx.GameStage {
	case STAGE_ROLE_REVEAL:
		checkAllRolesConfirmed(ctx, onSwitch)

	case STAGE_TEAM_SELECTION:
		broadcastState(ctx)

	case STAGE_TEAM_VOTE:
		if ctx.Ballot.IsComplete() {
			resolveTeamBallot(ctx, onSwitch)
		}

	case STAGE_MISSION_VOTE:
		// 队员离场可能让任务队伍缺员，此时废弃本次提案重新选队
		if len(ctx.ProposedTeam) < ctx.CurrentTeamSize() {
			ctx.Ballot = nil
			ctx.ProposedTeam = nil
			onSwitch(STAGE_TEAM_SELECTION)
			return
		}
		if ctx.Ballot.IsComplete() {
			resolveMissionBallot(ctx, onSwitch)
		}

	case STAGE_LAKE_LADY:
		if wasLakeLadyHolder {
			// 持有者离场则放弃本轮查验
			ctx.BroadcastResp(WrapResponse(
				RESP_LAKE_LADY_UNAVAILABLE,
				LakeLadyUnavailableResponse{Reason: "持有者已离开，本轮查验取消"},
			))
			advanceAfterMissionVote(ctx, onSwitch, false)
		}
	}
}

// reassignHost 把房主移交给大厅顺序中最早的剩余座位
func reassignHost(ctx *GameContext) {
	if len(ctx.LobbyOrder) == 0 {
		return
	}

	newHost := ctx.Players[ctx.LobbyOrder[0]]
	if newHost == nil {
		return
	}

	newHost.IsHost = true
	ctx.HostID = newHost.ID

	zap.L().Info(
		"房主移交",
		zap.String("room_id", ctx.RoomID),
		zap.String("new_host_id", newHost.ID),
		zap.String("new_host_name", newHost.Name),
	)

	ctx.BroadcastResp(WrapResponse(
		RESP_HOST_CHANGED,
		HostChangedResponse{
			NewHostID:   newHost.ID,
			NewHostName: newHost.Name,
		},
	))
}

func broadcastState(ctx *GameContext) {
	ctx.BroadcastResp(WrapResponse(RESP_GAME_STATE_UPDATE, ctx.PublicState()))
}
