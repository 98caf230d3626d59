package game

import (
	"testing"
	"time"
)

func lifecycleTestContext() *GameContext {
	order := []string{"p1", "p2", "p3", "p4", "p5", "p6"}
	players := make(map[string]*Player, len(order))
	roles := []string{
		ROLE_MERLIN, ROLE_PERCIVAL, ROLE_SERVANT,
		ROLE_ASSASSIN, ROLE_MORDRED, ROLE_MINION,
	}
	for i, id := range order {
		players[id] = &Player{
			ID:        id,
			Name:      "N" + id,
			Role:      roles[i],
			Connected: true,
			RespCh:    make(chan ResponseWrapper, 16),
		}
	}
	players["p1"].IsHost = true

	cfg, err := DefaultRoleConfig(len(order))
	if err != nil {
		panic(err)
	}

	return &GameContext{
		RoomID:          "0001",
		GameStage:       STAGE_TEAM_SELECTION,
		Players:         players,
		LobbyOrder:      append([]string(nil), order...),
		HostID:          "p1",
		Timing:          TimingConfig{ReconnectWindow: time.Hour, LakeLadyConfirm: time.Hour},
		Cfg:             cfg,
		PlayersOrder:    append([]string(nil), order...),
		CurrentMission:  1,
		CurrentLeaderID: "p2",
		TmoCh:           make(chan RequestWrapper, 16),
	}
}

func noSwitch(t *testing.T, ctx *GameContext) func(string) {
	return func(next string) {
		t.Helper()
		ctx.GameStage = next
	}
}

func TestOnPlayerExit_DisconnectSuspendsSeat(t *testing.T) {
	ctx := lifecycleTestContext()
	defer ctx.StopAllTimers()

	seat := ctx.Players["p3"]
	exitReq := &ExitGameRequest{PlayerID: "p3", Explicit: false, RespCh: seat.RespCh}

	onPlayerExit(ctx, exitReq, noSwitch(t, ctx))

	if _, exists := ctx.Players["p3"]; !exists {
		t.Fatalf("disconnect during game must keep the seat")
	}
	if seat.Connected {
		t.Fatalf("suspended seat should be marked disconnected")
	}
	if seat.RespCh != nil {
		t.Fatalf("suspended seat should have no response channel")
	}
	if len(ctx.PlayersOrder) != 6 {
		t.Fatalf("suspension must not shrink the seat order")
	}
}

func TestOnPlayerExit_ExplicitLeaveRemovesSeat(t *testing.T) {
	ctx := lifecycleTestContext()
	defer ctx.StopAllTimers()

	seat := ctx.Players["p3"]
	exitReq := &ExitGameRequest{PlayerID: "p3", Explicit: true, RespCh: seat.RespCh}

	onPlayerExit(ctx, exitReq, noSwitch(t, ctx))

	if _, exists := ctx.Players["p3"]; exists {
		t.Fatalf("explicit leave must remove the seat")
	}
	if len(ctx.PlayersOrder) != 5 {
		t.Fatalf("seat order should shrink to 5, got %d", len(ctx.PlayersOrder))
	}
}

func TestOnPlayerExit_StaleConnectionIgnored(t *testing.T) {
	ctx := lifecycleTestContext()
	defer ctx.StopAllTimers()

	staleCh := make(chan ResponseWrapper, 1)
	exitReq := &ExitGameRequest{PlayerID: "p3", Explicit: false, RespCh: staleCh}

	onPlayerExit(ctx, exitReq, noSwitch(t, ctx))

	if !ctx.Players["p3"].Connected {
		t.Fatalf("exit from a superseded connection must not touch the seat")
	}
}

func TestOnPlayerReconnect_RebindsSeat(t *testing.T) {
	ctx := lifecycleTestContext()
	defer ctx.StopAllTimers()

	seat := ctx.Players["p3"]
	suspendSeat(ctx, seat)

	newCh := make(chan ResponseWrapper, 16)
	joinReq := &JoinRoomRequest{RoomCode: "0001", JoinerName: "Np3", RespCh: newCh}

	if err := onPlayerReconnect(ctx, joinReq); err != nil {
		t.Fatalf("reconnect should succeed, got: %v", err)
	}

	if !seat.Connected || seat.RespCh != newCh {
		t.Fatalf("reconnect must rebind the seat to the new connection")
	}

	// 重连者收到的第一帧是含有私有快照的单播加入响应
	select {
	case resp := <-newCh:
		if resp.RespType != RESP_JOIN_ROOM {
			t.Fatalf("want %s, got %s", RESP_JOIN_ROOM, resp.RespType)
		}
		data, ok := resp.Data.(JoinRoomResponse)
		if !ok {
			t.Fatalf("unexpected join response payload %T", resp.Data)
		}
		if !data.Reconnected || data.Snapshot == nil {
			t.Fatalf("reconnect response must carry a seat snapshot")
		}
		if data.Snapshot.Role != ROLE_SERVANT {
			t.Fatalf("snapshot should replay the seat role, got %q", data.Snapshot.Role)
		}
	default:
		t.Fatalf("no join response delivered to the reconnected seat")
	}
}

func TestOnPlayerReconnect_DuplicateJoinKeepsLiveConnection(t *testing.T) {
	ctx := lifecycleTestContext()
	defer ctx.StopAllTimers()

	seat := ctx.Players["p3"]
	liveCh := seat.RespCh

	// 经由 JSON 解码的重复加入请求不携带连接通道
	if err := onPlayerReconnect(ctx, &JoinRoomRequest{RoomCode: "0001", JoinerName: "Np3"}); err != nil {
		t.Fatalf("duplicate join should be a no-op, got: %v", err)
	}

	if seat.RespCh != liveCh {
		t.Fatalf("duplicate join must not rebind a connected seat")
	}

	select {
	case _, ok := <-liveCh:
		if !ok {
			t.Fatalf("live channel must not be closed by a duplicate join")
		}
	default:
	}
}

func TestOnPlayerReconnect_UnknownNameRejected(t *testing.T) {
	ctx := lifecycleTestContext()
	defer ctx.StopAllTimers()

	joinReq := &JoinRoomRequest{RoomCode: "0001", JoinerName: "stranger", RespCh: make(chan ResponseWrapper, 1)}

	if err := onPlayerReconnect(ctx, joinReq); err == nil {
		t.Fatalf("joining a running game with an unknown name must fail")
	}
}

func TestOnPlayerJoin_NameTakenByConnectedSeat(t *testing.T) {
	ctx := lifecycleTestContext()
	defer ctx.StopAllTimers()
	ctx.GameStage = STAGE_WAITING

	newCh := make(chan ResponseWrapper, 1)
	err := onPlayerJoin(ctx, &JoinRoomRequest{RoomCode: "0001", JoinerName: "Np3", RespCh: newCh})
	if err == nil {
		t.Fatalf("joining with a name held by a connected seat must fail")
	}
	if ctx.Players["p3"].RespCh == newCh {
		t.Fatalf("connected seat must not be handed to the newcomer")
	}
}

func TestReconnectExpired_RemovesSeat(t *testing.T) {
	ctx := lifecycleTestContext()
	defer ctx.StopAllTimers()

	suspendSeat(ctx, ctx.Players["p3"])
	onReconnectExpired(ctx, "p3", noSwitch(t, ctx))

	if _, exists := ctx.Players["p3"]; exists {
		t.Fatalf("expired reconnect window must remove the seat")
	}
}

func TestReconnectExpired_IgnoredAfterReconnect(t *testing.T) {
	ctx := lifecycleTestContext()
	defer ctx.StopAllTimers()

	seat := ctx.Players["p3"]
	suspendSeat(ctx, seat)

	newCh := make(chan ResponseWrapper, 16)
	if err := onPlayerReconnect(ctx, &JoinRoomRequest{JoinerName: "Np3", RespCh: newCh}); err != nil {
		t.Fatalf("reconnect failed: %v", err)
	}

	// 迟到的过期事件不得移除已重连的座位
	onReconnectExpired(ctx, "p3", noSwitch(t, ctx))

	if _, exists := ctx.Players["p3"]; !exists {
		t.Fatalf("late expiry event must not remove a reconnected seat")
	}
}

func TestRemoveSeat_ReassignsHost(t *testing.T) {
	ctx := lifecycleTestContext()
	defer ctx.StopAllTimers()

	removeSeat(ctx, "p1", noSwitch(t, ctx))

	if ctx.HostID != "p2" {
		t.Fatalf("host should pass to the next seat in lobby order, got %s", ctx.HostID)
	}
	if !ctx.Players["p2"].IsHost {
		t.Fatalf("new host flag not set")
	}
}

func TestRemoveSeat_RotatesLeader(t *testing.T) {
	ctx := lifecycleTestContext()
	defer ctx.StopAllTimers()

	removeSeat(ctx, "p2", noSwitch(t, ctx))

	if ctx.CurrentLeaderID != "p3" {
		t.Fatalf("leader should rotate to p3, got %s", ctx.CurrentLeaderID)
	}
}

func TestRemoveSeat_RosterBelowMinimumAbortsGame(t *testing.T) {
	ctx := lifecycleTestContext()
	defer ctx.StopAllTimers()

	// 6 人局少一人后队伍规模表不再有对应配置，游戏只能中止
	removeSeat(ctx, "p3", noSwitch(t, ctx))

	if ctx.GameStage != STAGE_FINISHED {
		t.Fatalf("game must end when seats drop below %d, stage is %s", MIN_PLAYERS, ctx.GameStage)
	}
	if ctx.Result == nil || !ctx.Result.Aborted {
		t.Fatalf("result should mark the game aborted, got %+v", ctx.Result)
	}
}

func TestRemoveSeat_AssassinLeaveDuringAssassination(t *testing.T) {
	ctx := lifecycleTestContext()
	defer ctx.StopAllTimers()
	ctx.GameStage = STAGE_ASSASSINATION

	removeSeat(ctx, "p4", noSwitch(t, ctx)) // 刺客

	if ctx.GameStage != STAGE_FINISHED {
		t.Fatalf("assassin leaving during assassination should end the game, stage is %s", ctx.GameStage)
	}
	if ctx.Result == nil || !ctx.Result.GoodWins {
		t.Fatalf("good should win by forfeit, got %+v", ctx.Result)
	}
}
