package game

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"

	"go.uber.org/zap"
)

// 游戏总体分为 9 个阶段，分别是：
// 1. 等待阶段（waiting）：玩家加入房间，房主调整座次并开始游戏
// 2. 亮牌阶段（roleReveal）：角色发放，每个玩家查看并确认自己的身份
// 3. 定首领阶段（leaderSelection）：房主指定第一任队长
// 4. 组队阶段（teamSelection）：队长挑选本轮任务的出征队伍
// 5. 队伍表决阶段（teamVote）：全员对出征队伍举手表决
// 6. 任务执行阶段（missionVote）：队员秘密投出成功/失败票
// 7. 湖中女神阶段（lakeLady）：持有者查验一名玩家的阵营
// 8. 刺杀阶段（assassination）：好人三胜后刺客指认梅林
// 9. 结束阶段（finished）：公布结果，房主可重开一局
const (
	STAGE_WAITING          = "waiting"
	STAGE_ROLE_REVEAL      = "roleReveal"
	STAGE_LEADER_SELECTION = "leaderSelection"
	STAGE_TEAM_SELECTION   = "teamSelection"
	STAGE_TEAM_VOTE        = "teamVote"
	STAGE_MISSION_VOTE     = "missionVote"
	STAGE_LAKE_LADY        = "lakeLady"
	STAGE_ASSASSINATION    = "assassination"
	STAGE_FINISHED         = "finished"
)

type StageHandler interface {
	Stage() string

	OnEnter(ctx *GameContext)
	OnHandle(ctx *GameContext, req RequestWrapper) error
	OnExit(ctx *GameContext)

	SetOnSwitch(func(nextStage string))
}

// 等待阶段是整个游戏最初始的阶段
type waitStageHandler struct {
	onSwitch func(string)
}

func NewWaitStageHandler() *waitStageHandler {
	return &waitStageHandler{}
}

func (wsh *waitStageHandler) Stage() string {
	return STAGE_WAITING
}

func (wsh *waitStageHandler) OnEnter(ctx *GameContext) {
	ctx.GameStage = STAGE_WAITING
	ctx.ResetGameData()
}

func (wsh *waitStageHandler) OnHandle(ctx *GameContext, req RequestWrapper) error {
	// 等待阶段处理 JoinRoom、ExitGame、KickPlayer、
	// UpdatePlayerOrder、ResetPlayerOrder 和 StartGame 请求
	if req := TryUnwrapJoinRoomRequest(req); req != nil {
		if err := onPlayerJoin(ctx, req); err != nil {
			rejectJoin(req, err)
		}
		return nil
	}

	if req := TryUnwrapExitGameRequest(req); req != nil {
		onPlayerExit(ctx, req, wsh.onSwitch)
		return nil
	}

	// 残留的重连窗口到期事件（上一局挂起的座位在重开后到期）
	if treq := TryUnwrapTimeoutRequest(req); treq != nil && treq.Kind == TMO_RECONNECT {
		onReconnectExpired(ctx, treq.SeatID, wsh.onSwitch)
		return nil
	}

	if kreq := TryUnwrapKickPlayerRequest(req); kreq != nil {
		if req.SenderID != ctx.HostID {
			return errors.New("无法踢出玩家：只有房主可以踢人")
		}

		target := ctx.FindByName(kreq.TargetName)
		if target == nil {
			return fmt.Errorf("无法踢出玩家：找不到玩家 %s", kreq.TargetName)
		}
		if target.ID == ctx.HostID {
			return errors.New("无法踢出玩家：房主不能踢出自己")
		}

		removeSeat(ctx, target.ID, wsh.onSwitch)

		return nil
	}

	if oreq := TryUnwrapUpdateOrderRequest(req); oreq != nil {
		if req.SenderID != ctx.HostID {
			return errors.New("无法调整座次：只有房主可以调整座次")
		}
		if err := validateOrder(ctx, oreq.NewOrder); err != nil {
			return err
		}

		ctx.LobbyOrder = slices.Clone(oreq.NewOrder)
		broadcastOrder(ctx)

		return nil
	}

	if rreq := TryUnwrapResetOrderRequest(req); rreq != nil {
		if req.SenderID != ctx.HostID {
			return errors.New("无法调整座次：只有房主可以调整座次")
		}

		// 恢复为加入顺序
		order := ctx.LobbyOrder
		slices.SortFunc(order, func(a, b string) int {
			return ctx.Players[a].joinSeq - ctx.Players[b].joinSeq
		})
		ctx.LobbyOrder = order
		broadcastOrder(ctx)

		return nil
	}

	if sreq := TryUnwrapStartGameRequest(req); sreq != nil {
		return onStartGame(ctx, req.SenderID, sreq, wsh.onSwitch)
	}

	return errors.New("等待阶段无法处理此请求")
}

func (wsh *waitStageHandler) OnExit(_ *GameContext) {}

func (wsh *waitStageHandler) SetOnSwitch(onSwitch func(string)) {
	wsh.onSwitch = onSwitch
}

func validateOrder(ctx *GameContext, newOrder []string) error {
	if len(newOrder) != len(ctx.LobbyOrder) {
		return errors.New("无法调整座次：座次人数与房间人数不符")
	}
	seen := make(map[string]bool, len(newOrder))
	for _, id := range newOrder {
		if _, exists := ctx.Players[id]; !exists {
			return fmt.Errorf("无法调整座次：玩家 %s 不在房间中", id)
		}
		if seen[id] {
			return fmt.Errorf("无法调整座次：玩家 %s 重复出现", id)
		}
		seen[id] = true
	}
	return nil
}

func broadcastOrder(ctx *GameContext) {
	ctx.BroadcastResp(WrapResponse(
		RESP_PLAYER_ORDER_UPDATE,
		PlayerOrderUpdateResponse{
			Order:   slices.Clone(ctx.LobbyOrder),
			Players: ctx.PlayersSnapshot(),
		},
	))
}

func onStartGame(ctx *GameContext, senderID string, req *StartGameRequest, onSwitch func(string)) error {
	if senderID != ctx.HostID {
		return errors.New("无法开始游戏：只有房主可以开始游戏")
	}

	rosterSize := len(ctx.Players)
	if rosterSize < MIN_PLAYERS {
		return fmt.Errorf("无法开始游戏：至少需要 %d 名玩家（当前 %d 名）", MIN_PLAYERS, rosterSize)
	}
	if rosterSize > MAX_PLAYERS {
		return fmt.Errorf("无法开始游戏：最多支持 %d 名玩家（当前 %d 名）", MAX_PLAYERS, rosterSize)
	}

	var cfg RoleConfig
	if req.UseDefaultRoles || len(req.CustomRoles) == 0 {
		defCfg, err := DefaultRoleConfig(rosterSize)
		if err != nil {
			return err
		}
		cfg = defCfg
	} else {
		defCfg, err := DefaultRoleConfig(rosterSize)
		if err != nil {
			return err
		}
		cfg = RoleConfig{
			Counts:        req.CustomRoles,
			FailsRequired: defCfg.FailsRequired,
		}
		if err := ValidateRoleConfig(cfg, rosterSize); err != nil {
			return err
		}
	}

	variants := VariantFlags{
		EnableLakeLady:    true,
		RevealEvilRoles:   req.RevealEvilRoles,
		AssassinByMorgana: req.AssassinByMorgana,
	}
	if req.EnableLakeLady != nil {
		variants.EnableLakeLady = *req.EnableLakeLady
	}

	ctx.Cfg = cfg
	ctx.Variants = variants
	ctx.PlayersOrder = slices.Clone(ctx.LobbyOrder)

	zap.L().Info(
		"游戏开始",
		zap.String("room_id", ctx.RoomID),
		zap.Int("player_count", rosterSize),
		zap.Bool("lake_lady", variants.EnableLakeLady),
	)

	onSwitch(STAGE_ROLE_REVEAL)

	return nil
}

// 亮牌阶段发放角色，等待所有玩家确认看过自己的身份
type roleRevealStageHandler struct {
	onSwitch func(string)
}

func NewRoleRevealStageHandler() *roleRevealStageHandler {
	return &roleRevealStageHandler{}
}

func (rsh *roleRevealStageHandler) Stage() string {
	return STAGE_ROLE_REVEAL
}

func (rsh *roleRevealStageHandler) OnEnter(ctx *GameContext) {
	if ctx.Rng == nil {
		ctx.Rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	roles, err := AssignRoles(ctx.Cfg, len(ctx.PlayersOrder), ctx.Rng)
	if err != nil {
		// 人数与配置在开始时已校验过，这里理应不会出错
		zap.L().Error(
			"角色发放失败",
			zap.Error(err),
			zap.String("room_id", ctx.RoomID),
		)
		return
	}

	for i, seatID := range ctx.PlayersOrder {
		ctx.Players[seatID].Role = roles[i]
	}

	ctx.RoleConfirmed = make(map[string]bool, len(ctx.PlayersOrder))

	order := ctx.OrderedPlayers(ctx.PlayersOrder)
	state := ctx.PublicState()
	allPlayers := ctx.PlayersSnapshot()

	// 每个座位单播各自的角色与知识视图
	for _, seat := range order {
		view := ComputeKnowledge(seat, order, ctx.Variants.RevealEvilRoles)

		ctx.UnicastResp(seat.ID, WrapResponse(
			RESP_GAME_STARTED,
			GameStartedResponse{
				PlayerInfo: SeatRoleInfo{
					Name:      seat.Name,
					Role:      seat.Role,
					Faction:   seat.Faction(),
					Knowledge: view,
				},
				GameData:   state,
				AllPlayers: allPlayers,
			},
		))
	}
}

func (rsh *roleRevealStageHandler) OnHandle(ctx *GameContext, req RequestWrapper) error {
	if handled, err := tryHandleLifecycle(ctx, req, rsh.onSwitch); handled {
		return err
	}

	if creq := TryUnwrapRoleConfirmedRequest(req); creq != nil {
		if _, exists := ctx.Players[req.SenderID]; !exists {
			return errors.New("无法确认身份：玩家不在本局游戏中")
		}

		// 重复确认是幂等的
		ctx.RoleConfirmed[req.SenderID] = true
		checkAllRolesConfirmed(ctx, rsh.onSwitch)

		return nil
	}

	return errors.New("亮牌阶段无法处理此请求")
}

func (rsh *roleRevealStageHandler) OnExit(_ *GameContext) {}

func (rsh *roleRevealStageHandler) SetOnSwitch(onSwitch func(string)) {
	rsh.onSwitch = onSwitch
}

func checkAllRolesConfirmed(ctx *GameContext, onSwitch func(string)) {
	for _, seatID := range ctx.PlayersOrder {
		if !ctx.RoleConfirmed[seatID] {
			return
		}
	}

	onSwitch(STAGE_LEADER_SELECTION)
}

// 定首领阶段由房主指定第一任队长
type leaderSelectionStageHandler struct {
	onSwitch func(string)
}

func NewLeaderSelectionStageHandler() *leaderSelectionStageHandler {
	return &leaderSelectionStageHandler{}
}

func (lsh *leaderSelectionStageHandler) Stage() string {
	return STAGE_LEADER_SELECTION
}

func (lsh *leaderSelectionStageHandler) OnEnter(ctx *GameContext) {
	host := ctx.GetHost()
	hostName := ""
	if host != nil {
		hostName = host.Name
	}

	ctx.BroadcastResp(WrapResponse(
		RESP_START_LEADER_SELECTION,
		StartLeaderSelectionResponse{
			HostID:   ctx.HostID,
			HostName: hostName,
		},
	))
}

func (lsh *leaderSelectionStageHandler) OnHandle(ctx *GameContext, req RequestWrapper) error {
	if handled, err := tryHandleLifecycle(ctx, req, lsh.onSwitch); handled {
		return err
	}

	if creq := TryUnwrapConfirmLeaderRequest(req); creq != nil {
		if req.SenderID != ctx.HostID {
			return errors.New("无法指定队长：只有房主可以指定首任队长")
		}

		leader, exists := ctx.Players[creq.LeaderID]
		if !exists || !slices.Contains(ctx.PlayersOrder, creq.LeaderID) {
			return errors.New("无法指定队长：该玩家不在本局游戏中")
		}

		ctx.CurrentMission = 1
		ctx.CurrentLeaderID = leader.ID
		ctx.ConsecutiveRejects = 0

		if ctx.Variants.EnableLakeLady {
			ctx.LakeLady = NewLakeLadyTracker(true)
			ctx.LakeLady.InitHolder(ctx.PlayersOrder, leader.ID)
		}

		holderName := ""
		if ctx.LakeLady != nil {
			if holder := ctx.Players[ctx.LakeLady.HolderID]; holder != nil {
				holderName = holder.Name
			}
		}

		zap.L().Info(
			"首任队长确定",
			zap.String("room_id", ctx.RoomID),
			zap.String("leader_id", leader.ID),
			zap.String("leader_name", leader.Name),
		)

		ctx.BroadcastResp(WrapResponse(
			RESP_LEADER_SELECTED,
			LeaderSelectedResponse{
				LeaderID:           leader.ID,
				LeaderName:         leader.Name,
				CurrentMission:     ctx.CurrentMission,
				TeamSize:           ctx.CurrentTeamSize(),
				LakeLadyHolderName: holderName,
			},
		))

		lsh.onSwitch(STAGE_TEAM_SELECTION)

		return nil
	}

	return errors.New("定首领阶段无法处理此请求")
}

func (lsh *leaderSelectionStageHandler) OnExit(_ *GameContext) {}

func (lsh *leaderSelectionStageHandler) SetOnSwitch(onSwitch func(string)) {
	lsh.onSwitch = onSwitch
}
