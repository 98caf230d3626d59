package game

import (
	"math/rand/v2"
	"testing"
	"time"
)

// stageDriver 在测试中复刻状态机的级联切换：
// 每次处理请求后按 GameStage 重建对应的阶段 handler 并执行 OnEnter
type stageDriver struct {
	ctx     *GameContext
	handler StageHandler
}

func newStageDriver() *stageDriver {
	ctx := &GameContext{
		RoomID:  "0001",
		Players: make(map[string]*Player),
		Timing:  TimingConfig{ReconnectWindow: time.Hour, LakeLadyConfirm: time.Hour},
		Rng:     rand.New(rand.NewPCG(11, 7)),
		TmoCh:   make(chan RequestWrapper, 16),
	}

	d := &stageDriver{ctx: ctx, handler: NewWaitStageHandler()}
	d.handler.SetOnSwitch(func(next string) { ctx.GameStage = next })
	d.handler.OnEnter(ctx)

	return d
}

func (d *stageDriver) handlerFor(stage string) StageHandler {
	switch stage {
	case STAGE_WAITING:
		return NewWaitStageHandler()
	case STAGE_ROLE_REVEAL:
		return NewRoleRevealStageHandler()
	case STAGE_LEADER_SELECTION:
		return NewLeaderSelectionStageHandler()
	case STAGE_TEAM_SELECTION:
		return NewTeamSelectionStageHandler()
	case STAGE_TEAM_VOTE:
		return NewTeamVoteStageHandler()
	case STAGE_MISSION_VOTE:
		return NewMissionVoteStageHandler()
	case STAGE_LAKE_LADY:
		return NewLakeLadyStageHandler()
	case STAGE_ASSASSINATION:
		return NewAssassinationStageHandler()
	case STAGE_FINISHED:
		return NewFinishStageHandler()
	}
	return nil
}

func (d *stageDriver) handle(t *testing.T, req RequestWrapper) {
	t.Helper()

	if err := d.handler.OnHandle(d.ctx, req); err != nil {
		t.Fatalf("stage %s handling %s failed: %v", d.handler.Stage(), req.ReqType, err)
	}

	for d.ctx.GameStage != d.handler.Stage() {
		d.handler.OnExit(d.ctx)
		d.handler = d.handlerFor(d.ctx.GameStage)
		if d.handler == nil {
			t.Fatalf("no handler for stage %s", d.ctx.GameStage)
		}
		d.handler.SetOnSwitch(func(next string) { d.ctx.GameStage = next })
		d.handler.OnEnter(d.ctx)
	}
}

func (d *stageDriver) join(t *testing.T, name string) {
	t.Helper()

	d.handle(t, RequestWrapper{
		ReqType: REQ_JOIN_ROOM,
		NativeData: &JoinRoomRequest{
			RoomCode:   d.ctx.RoomID,
			JoinerName: name,
			RespCh:     make(chan ResponseWrapper, 64),
		},
	})
}

func TestGameFlow_FullMissionRound(t *testing.T) {
	d := newStageDriver()
	ctx := d.ctx

	for _, name := range []string{"A", "B", "C", "D", "E", "F"} {
		d.join(t, name)
	}
	if len(ctx.Players) != 6 {
		t.Fatalf("want 6 players, got %d", len(ctx.Players))
	}

	host := ctx.GetHost()
	if host == nil || host.Name != "A" {
		t.Fatalf("first joiner should be host, got %+v", host)
	}

	// 开始游戏
	d.handle(t, RequestWrapper{
		ReqType:  REQ_START_GAME,
		SenderID: host.ID,
		Data:     mustMarshal(StartGameRequest{UseDefaultRoles: true}),
	})

	if ctx.GameStage != STAGE_ROLE_REVEAL {
		t.Fatalf("game should enter role reveal, stage is %s", ctx.GameStage)
	}
	for _, id := range ctx.PlayersOrder {
		if ctx.Players[id].Role == ROLE_UNSET || ctx.Players[id].Role == "" {
			t.Fatalf("player %s has no role after reveal", id)
		}
	}

	// 全员确认身份
	for _, id := range ctx.PlayersOrder {
		d.handle(t, RequestWrapper{
			ReqType:  REQ_ROLE_CONFIRMED,
			SenderID: id,
			Data:     mustMarshal(RoleConfirmedRequest{}),
		})
	}
	if ctx.GameStage != STAGE_LEADER_SELECTION {
		t.Fatalf("all roles confirmed should enter leader selection, stage is %s", ctx.GameStage)
	}

	// 房主指定首任队长
	leaderID := ctx.PlayersOrder[0]
	d.handle(t, RequestWrapper{
		ReqType:  REQ_CONFIRM_LEADER,
		SenderID: host.ID,
		Data:     mustMarshal(ConfirmLeaderRequest{LeaderID: leaderID}),
	})

	if ctx.GameStage != STAGE_TEAM_SELECTION {
		t.Fatalf("leader selection should enter team selection, stage is %s", ctx.GameStage)
	}
	if ctx.CurrentMission != 1 || ctx.CurrentLeaderID != leaderID {
		t.Fatalf("mission/leader not initialized: mission %d leader %s", ctx.CurrentMission, ctx.CurrentLeaderID)
	}
	if ctx.LakeLady == nil {
		t.Fatalf("lake lady should be enabled by default")
	}
	// 令牌从首任队长的前一位开始
	wantHolder := ctx.PlayersOrder[len(ctx.PlayersOrder)-1]
	if ctx.LakeLady.HolderID != wantHolder {
		t.Fatalf("lake lady holder should be %s, got %s", wantHolder, ctx.LakeLady.HolderID)
	}

	// 队长组队：第一轮任务 2 人
	team := []string{ctx.PlayersOrder[0], ctx.PlayersOrder[1]}
	d.handle(t, RequestWrapper{
		ReqType:  REQ_CONFIRM_TEAM,
		SenderID: leaderID,
		Data:     mustMarshal(ConfirmTeamRequest{TeamMembers: team}),
	})
	if ctx.GameStage != STAGE_TEAM_VOTE {
		t.Fatalf("confirmed team should enter team vote, stage is %s", ctx.GameStage)
	}

	// 全票通过
	for _, id := range ctx.PlayersOrder {
		d.handle(t, RequestWrapper{
			ReqType:  REQ_TEAM_VOTE,
			SenderID: id,
			Data:     mustMarshal(TeamVoteRequest{Vote: true}),
		})
	}
	if ctx.GameStage != STAGE_MISSION_VOTE {
		t.Fatalf("approved team should enter mission vote, stage is %s", ctx.GameStage)
	}

	// 队员全投成功
	for _, id := range team {
		d.handle(t, RequestWrapper{
			ReqType:  REQ_MISSION_VOTE,
			SenderID: id,
			Data:     mustMarshal(MissionVoteRequest{Vote: true}),
		})
	}

	if len(ctx.MissionResults) != 1 || !ctx.MissionResults[0] {
		t.Fatalf("first mission should succeed, results %v", ctx.MissionResults)
	}
	// 第一轮任务后没有湖中女神查验，直接进入下一轮组队
	if ctx.GameStage != STAGE_TEAM_SELECTION {
		t.Fatalf("want team selection for mission 2, stage is %s", ctx.GameStage)
	}
	if ctx.CurrentMission != 2 {
		t.Fatalf("mission counter should be 2, got %d", ctx.CurrentMission)
	}
	if ctx.CurrentLeaderID != ctx.PlayersOrder[1] {
		t.Fatalf("leader should rotate, got %s", ctx.CurrentLeaderID)
	}
}

func TestGameFlow_SecondMissionTriggersLakeLady(t *testing.T) {
	d := newStageDriver()
	ctx := d.ctx

	for _, name := range []string{"A", "B", "C", "D", "E", "F"} {
		d.join(t, name)
	}
	host := ctx.GetHost()

	d.handle(t, RequestWrapper{
		ReqType:  REQ_START_GAME,
		SenderID: host.ID,
		Data:     mustMarshal(StartGameRequest{UseDefaultRoles: true}),
	})
	for _, id := range ctx.PlayersOrder {
		d.handle(t, RequestWrapper{
			ReqType:  REQ_ROLE_CONFIRMED,
			SenderID: id,
			Data:     mustMarshal(RoleConfirmedRequest{}),
		})
	}
	d.handle(t, RequestWrapper{
		ReqType:  REQ_CONFIRM_LEADER,
		SenderID: host.ID,
		Data:     mustMarshal(ConfirmLeaderRequest{LeaderID: ctx.PlayersOrder[0]}),
	})

	// 连打两轮任务，队伍全票通过、队员全投成功
	for mission := 1; mission <= 2; mission++ {
		teamSize := ctx.CurrentTeamSize()
		team := ctx.PlayersOrder[:teamSize]

		d.handle(t, RequestWrapper{
			ReqType:  REQ_CONFIRM_TEAM,
			SenderID: ctx.CurrentLeaderID,
			Data:     mustMarshal(ConfirmTeamRequest{TeamMembers: team}),
		})
		for _, id := range ctx.PlayersOrder {
			d.handle(t, RequestWrapper{
				ReqType:  REQ_TEAM_VOTE,
				SenderID: id,
				Data:     mustMarshal(TeamVoteRequest{Vote: true}),
			})
		}
		for _, id := range team {
			d.handle(t, RequestWrapper{
				ReqType:  REQ_MISSION_VOTE,
				SenderID: id,
				Data:     mustMarshal(MissionVoteRequest{Vote: true}),
			})
		}
	}

	// 第二轮任务结束后进入湖中女神查验
	if ctx.GameStage != STAGE_LAKE_LADY {
		t.Fatalf("second mission should trigger lake lady, stage is %s", ctx.GameStage)
	}

	holder := ctx.Players[ctx.LakeLady.HolderID]
	target := ""
	for _, id := range ctx.PlayersOrder {
		if id != holder.ID {
			target = id
			break
		}
	}

	d.handle(t, RequestWrapper{
		ReqType:  REQ_LAKE_LADY_SELECT,
		SenderID: holder.ID,
		Data:     mustMarshal(LakeLadySelectRequest{TargetName: ctx.Players[target].Name}),
	})
	d.handle(t, RequestWrapper{
		ReqType:  REQ_LAKE_LADY_CONFIRM,
		SenderID: holder.ID,
		Data:     mustMarshal(LakeLadyConfirmRequest{}),
	})

	// 确认后令牌转移，游戏推进到第三轮组队
	if ctx.LakeLady.HolderID != target {
		t.Fatalf("token should move to the inspected seat, got %s", ctx.LakeLady.HolderID)
	}
	if ctx.GameStage != STAGE_TEAM_SELECTION || ctx.CurrentMission != 3 {
		t.Fatalf("want team selection for mission 3, stage %s mission %d", ctx.GameStage, ctx.CurrentMission)
	}
}

func TestAssassinationStage_MerlinHitAndMiss(t *testing.T) {
	build := func() (*GameContext, *assassinationStageHandler) {
		ctx := lifecycleTestContext()
		ctx.GameStage = STAGE_ASSASSINATION
		ctx.MissionResults = []bool{true, true, true}

		ash := NewAssassinationStageHandler()
		ash.SetOnSwitch(func(next string) { ctx.GameStage = next })
		ash.OnEnter(ctx)
		return ctx, ash
	}

	// 刺中梅林：坏人胜
	ctx, ash := build()
	err := ash.OnHandle(ctx, RequestWrapper{
		ReqType:  REQ_ASSASSINATE,
		SenderID: "p4",
		Data:     mustMarshal(AssassinateRequest{TargetID: "p1"}),
	})
	if err != nil {
		t.Fatalf("assassinate failed: %v", err)
	}
	if ctx.GameStage != STAGE_FINISHED || ctx.Result == nil || ctx.Result.GoodWins {
		t.Fatalf("hitting merlin should hand evil the win, stage %s result %+v", ctx.GameStage, ctx.Result)
	}

	// 刺错人：好人胜
	ctx, ash = build()
	err = ash.OnHandle(ctx, RequestWrapper{
		ReqType:  REQ_ASSASSINATE,
		SenderID: "p4",
		Data:     mustMarshal(AssassinateRequest{TargetID: "p3"}),
	})
	if err != nil {
		t.Fatalf("assassinate failed: %v", err)
	}
	if ctx.GameStage != STAGE_FINISHED || ctx.Result == nil || !ctx.Result.GoodWins {
		t.Fatalf("missing merlin should hand good the win, stage %s result %+v", ctx.GameStage, ctx.Result)
	}

	// 非刺客不能刺杀
	ctx, ash = build()
	err = ash.OnHandle(ctx, RequestWrapper{
		ReqType:  REQ_ASSASSINATE,
		SenderID: "p1",
		Data:     mustMarshal(AssassinateRequest{TargetID: "p3"}),
	})
	if err == nil {
		t.Fatalf("non-assassin assassinate should be rejected")
	}
}

func TestFinishStage_HostRestartKeepsRoster(t *testing.T) {
	ctx := lifecycleTestContext()
	defer ctx.StopAllTimers()
	ctx.GameStage = STAGE_FINISHED
	ctx.Result = &GameResult{GoodWins: true, Message: "好人阵营胜利"}

	fsh := NewFinishStageHandler()
	fsh.SetOnSwitch(func(next string) { ctx.GameStage = next })

	err := fsh.OnHandle(ctx, RequestWrapper{
		ReqType:  REQ_RESTART_GAME,
		SenderID: "p1",
		Data:     mustMarshal(RestartGameRequest{}),
	})
	if err != nil {
		t.Fatalf("restart failed: %v", err)
	}

	if ctx.GameStage != STAGE_WAITING {
		t.Fatalf("restart should return to waiting, stage is %s", ctx.GameStage)
	}
	if len(ctx.Players) != 6 {
		t.Fatalf("restart must keep the roster, got %d players", len(ctx.Players))
	}
	if ctx.Result != nil || len(ctx.MissionResults) != 0 {
		t.Fatalf("restart must wipe game data")
	}
	for _, p := range ctx.Players {
		if p.Role != ROLE_UNSET {
			t.Fatalf("roles must be cleared on restart, %s still %s", p.ID, p.Role)
		}
	}
}
