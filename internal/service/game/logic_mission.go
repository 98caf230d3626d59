package game

import (
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"
)

// 组队阶段由当前队长挑选出征队伍
type teamSelectionStageHandler struct {
	onSwitch func(string)
}

func NewTeamSelectionStageHandler() *teamSelectionStageHandler {
	return &teamSelectionStageHandler{}
}

func (tsh *teamSelectionStageHandler) Stage() string {
	return STAGE_TEAM_SELECTION
}

func (tsh *teamSelectionStageHandler) OnEnter(ctx *GameContext) {
	ctx.ProposedTeam = nil
	ctx.Ballot = nil

	broadcastState(ctx)
}

func (tsh *teamSelectionStageHandler) OnHandle(ctx *GameContext, req RequestWrapper) error {
	if handled, err := tryHandleLifecycle(ctx, req, tsh.onSwitch); handled {
		return err
	}

	if creq := TryUnwrapConfirmTeamRequest(req); creq != nil {
		if req.SenderID != ctx.CurrentLeaderID {
			return errors.New("无法确认队伍：只有当前队长可以组队")
		}

		teamSize := ctx.CurrentTeamSize()
		if len(creq.TeamMembers) != teamSize {
			return fmt.Errorf("无法确认队伍：本轮任务需要 %d 名队员（已选 %d 名）", teamSize, len(creq.TeamMembers))
		}

		seen := make(map[string]bool, teamSize)
		for _, id := range creq.TeamMembers {
			if !slices.Contains(ctx.PlayersOrder, id) {
				return fmt.Errorf("无法确认队伍：玩家 %s 不在本局游戏中", id)
			}
			if seen[id] {
				return errors.New("无法确认队伍：队员不能重复")
			}
			seen[id] = true
		}

		ctx.ProposedTeam = slices.Clone(creq.TeamMembers)

		zap.L().Info(
			"队伍提案确定",
			zap.String("room_id", ctx.RoomID),
			zap.Int("mission", ctx.CurrentMission),
			zap.Strings("team", ctx.ProposedTeam),
		)

		tsh.onSwitch(STAGE_TEAM_VOTE)

		return nil
	}

	return errors.New("组队阶段无法处理此请求")
}

func (tsh *teamSelectionStageHandler) OnExit(_ *GameContext) {}

func (tsh *teamSelectionStageHandler) SetOnSwitch(onSwitch func(string)) {
	tsh.onSwitch = onSwitch
}

// 队伍表决阶段全员对出征队伍举手表决，结果公开
type teamVoteStageHandler struct {
	onSwitch func(string)
}

func NewTeamVoteStageHandler() *teamVoteStageHandler {
	return &teamVoteStageHandler{}
}

func (tvh *teamVoteStageHandler) Stage() string {
	return STAGE_TEAM_VOTE
}

func (tvh *teamVoteStageHandler) OnEnter(ctx *GameContext) {
	ctx.Ballot = NewBallot(BALLOT_TEAM, ctx.PlayersOrder)

	ctx.BroadcastResp(WrapResponse(
		RESP_TEAM_VOTING_START,
		TeamVotingStartResponse{
			TeamMemberIDs:      slices.Clone(ctx.ProposedTeam),
			TeamMembers:        seatNames(ctx, ctx.ProposedTeam),
			ConsecutiveRejects: ctx.ConsecutiveRejects,
		},
	))
}

func (tvh *teamVoteStageHandler) OnHandle(ctx *GameContext, req RequestWrapper) error {
	if handled, err := tryHandleLifecycle(ctx, req, tvh.onSwitch); handled {
		return err
	}

	if vreq := TryUnwrapTeamVoteRequest(req); vreq != nil {
		if err := ctx.Ballot.Submit(req.SenderID, vreq.Vote); err != nil {
			return fmt.Errorf("无法投票：%w", err)
		}

		ctx.BroadcastResp(WrapResponse(
			RESP_VOTE_UPDATE,
			VoteUpdateResponse{
				VoteType:     BALLOT_TEAM,
				CurrentCount: ctx.Ballot.VoteCount(),
				TotalCount:   ctx.Ballot.EligibleCount(),
			},
		))

		if ctx.Ballot.IsComplete() {
			resolveTeamBallot(ctx, tvh.onSwitch)
		}

		return nil
	}

	return errors.New("队伍表决阶段无法处理此请求")
}

func (tvh *teamVoteStageHandler) OnExit(_ *GameContext) {}

func (tvh *teamVoteStageHandler) SetOnSwitch(onSwitch func(string)) {
	tvh.onSwitch = onSwitch
}

// resolveTeamBallot 结算队伍表决：严格多数同意则出征，
// 否则队长顺延；连续五次流局判坏人直接获胜
func resolveTeamBallot(ctx *GameContext, onSwitch func(string)) {
	approved, err := ctx.Ballot.ResolveTeam(len(ctx.PlayersOrder))
	if err != nil {
		zap.L().Error(
			"队伍表决结算失败",
			zap.Error(err),
			zap.String("room_id", ctx.RoomID),
		)
		return
	}

	approveCount := ctx.Ballot.ApproveCount()
	rejectCount := ctx.Ballot.VoteCount() - approveCount
	detail := ctx.Ballot.Votes()

	message := fmt.Sprintf("队伍提案未通过（%d 同意 / %d 反对）", approveCount, rejectCount)
	if approved {
		message = fmt.Sprintf("队伍提案通过（%d 同意 / %d 反对），任务开始", approveCount, rejectCount)
	}

	ctx.BroadcastResp(WrapResponse(
		RESP_VOTE_RESULT,
		VoteResultResponse{
			VoteType:     BALLOT_TEAM,
			Outcome:      approved,
			ApproveCount: approveCount,
			RejectCount:  rejectCount,
			Message:      message,
			Detail:       detail,
		},
	))

	zap.L().Info(
		"队伍表决结算",
		zap.String("room_id", ctx.RoomID),
		zap.Int("mission", ctx.CurrentMission),
		zap.Bool("approved", approved),
		zap.Int("approve_count", approveCount),
		zap.Int("reject_count", rejectCount),
	)

	if approved {
		ctx.ConsecutiveRejects = 0
		onSwitch(STAGE_MISSION_VOTE)
		return
	}

	ctx.ConsecutiveRejects++
	if ctx.ConsecutiveRejects >= 5 {
		ctx.Result = &GameResult{
			GoodWins: false,
			Message:  "连续五次队伍提案被否决，坏人阵营胜利！",
		}
		onSwitch(STAGE_FINISHED)
		return
	}

	// 队长顺延，重新组队
	ctx.CurrentLeaderID = ctx.NextInOrder(ctx.CurrentLeaderID)
	ctx.ProposedTeam = nil
	ctx.Ballot = nil
	onSwitch(STAGE_TEAM_SELECTION)
}

// 任务执行阶段只有出征队员投票，票面保密
type missionVoteStageHandler struct {
	onSwitch func(string)
}

func NewMissionVoteStageHandler() *missionVoteStageHandler {
	return &missionVoteStageHandler{}
}

func (mvh *missionVoteStageHandler) Stage() string {
	return STAGE_MISSION_VOTE
}

func (mvh *missionVoteStageHandler) OnEnter(ctx *GameContext) {
	ctx.Ballot = NewBallot(BALLOT_MISSION, ctx.ProposedTeam)

	ctx.BroadcastResp(WrapResponse(
		RESP_MISSION_VOTING_START,
		MissionVotingStartResponse{
			TeamMemberIDs: slices.Clone(ctx.ProposedTeam),
			TeamMembers:   seatNames(ctx, ctx.ProposedTeam),
		},
	))
}

func (mvh *missionVoteStageHandler) OnHandle(ctx *GameContext, req RequestWrapper) error {
	if handled, err := tryHandleLifecycle(ctx, req, mvh.onSwitch); handled {
		return err
	}

	if vreq := TryUnwrapMissionVoteRequest(req); vreq != nil {
		// 好人阵营不能破坏任务
		if seat := ctx.Players[req.SenderID]; seat != nil && !seat.IsEvil() && !vreq.Vote {
			return errors.New("无法投票：好人阵营只能投任务成功")
		}

		if err := ctx.Ballot.Submit(req.SenderID, vreq.Vote); err != nil {
			return fmt.Errorf("无法投票：%w", err)
		}

		ctx.BroadcastResp(WrapResponse(
			RESP_VOTE_UPDATE,
			VoteUpdateResponse{
				VoteType:     BALLOT_MISSION,
				CurrentCount: ctx.Ballot.VoteCount(),
				TotalCount:   ctx.Ballot.EligibleCount(),
			},
		))

		if ctx.Ballot.IsComplete() {
			resolveMissionBallot(ctx, mvh.onSwitch)
		}

		return nil
	}

	return errors.New("任务执行阶段无法处理此请求")
}

func (mvh *missionVoteStageHandler) OnExit(_ *GameContext) {}

func (mvh *missionVoteStageHandler) SetOnSwitch(onSwitch func(string)) {
	mvh.onSwitch = onSwitch
}

// resolveMissionBallot 结算任务：失败票达到本轮阈值则任务失败。
// 只公布失败票数，不公布谁投了失败
func resolveMissionBallot(ctx *GameContext, onSwitch func(string)) {
	requiredFails := ctx.Cfg.FailsRequired[ctx.CurrentMission-1]

	success, err := ctx.Ballot.ResolveMission(requiredFails)
	if err != nil {
		zap.L().Error(
			"任务结算失败",
			zap.Error(err),
			zap.String("room_id", ctx.RoomID),
		)
		return
	}

	failCount := ctx.Ballot.FailCount()
	ctx.MissionResults = append(ctx.MissionResults, success)

	message := fmt.Sprintf("任务失败（%d 张失败票）", failCount)
	if success {
		message = fmt.Sprintf("任务成功（%d 张失败票，需要 %d 张才会失败）", failCount, requiredFails)
	}

	ctx.BroadcastResp(WrapResponse(
		RESP_VOTE_RESULT,
		VoteResultResponse{
			VoteType: BALLOT_MISSION,
			Outcome:  success,
			FailCount: failCount,
			Message:   message,
		},
	))
	ctx.BroadcastResp(WrapResponse(
		RESP_MISSION_UPDATE,
		MissionUpdateResponse{MissionResults: slices.Clone(ctx.MissionResults)},
	))

	zap.L().Info(
		"任务结算",
		zap.String("room_id", ctx.RoomID),
		zap.Int("mission", ctx.CurrentMission),
		zap.Bool("success", success),
		zap.Int("fail_count", failCount),
	)

	advanceAfterMissionVote(ctx, onSwitch, true)
}

// advanceAfterMissionVote 任务结算后决定下一个阶段：
// 三次成功进入刺杀，三次失败坏人直接获胜，
// 否则视情况进入湖中女神查验或直接开始下一轮任务。
// allowLakeLady 为 false 时跳过查验（用于持有者离场等放弃场景）
func advanceAfterMissionVote(ctx *GameContext, onSwitch func(string), allowLakeLady bool) {
	successes, fails := 0, 0
	for _, r := range ctx.MissionResults {
		if r {
			successes++
		} else {
			fails++
		}
	}

	if successes >= 3 {
		onSwitch(STAGE_ASSASSINATION)
		return
	}
	if fails >= 3 {
		ctx.Result = &GameResult{
			GoodWins: false,
			Message:  "三次任务失败，坏人阵营胜利！",
		}
		onSwitch(STAGE_FINISHED)
		return
	}

	if allowLakeLady && ctx.LakeLady != nil && ctx.LakeLady.AvailableFor(ctx.CurrentMission) {
		onSwitch(STAGE_LAKE_LADY)
		return
	}

	// 第 1 轮任务后本就没有查验，不必通知
	if ctx.LakeLady != nil && allowLakeLady && ctx.CurrentMission >= LAKE_LADY_MIN_MISSION {
		ctx.BroadcastResp(WrapResponse(
			RESP_LAKE_LADY_UNAVAILABLE,
			LakeLadyUnavailableResponse{Reason: "本轮没有可用的湖中女神查验"},
		))
	}

	nextMission(ctx)
	onSwitch(STAGE_TEAM_SELECTION)
}

// nextMission 推进到下一轮任务：轮次加一，队长顺延
func nextMission(ctx *GameContext) {
	ctx.CurrentMission++
	ctx.CurrentLeaderID = ctx.NextInOrder(ctx.CurrentLeaderID)
	ctx.ProposedTeam = nil
	ctx.Ballot = nil
}

func seatNames(ctx *GameContext, ids []string) []string {
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		if p := ctx.Players[id]; p != nil {
			names = append(names, p.Name)
		}
	}
	return names
}
