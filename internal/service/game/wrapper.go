package game

import (
	"encoding/json"

	"go.uber.org/zap"
)

// 请求类型
const (
	REQ_JOIN_ROOM         = "JoinRoom"
	REQ_EXIT_GAME         = "ExitGame"
	REQ_START_GAME        = "StartGame"
	REQ_ROLE_CONFIRMED    = "RoleConfirmed"
	REQ_CONFIRM_LEADER    = "ConfirmLeader"
	REQ_CONFIRM_TEAM      = "ConfirmTeam"
	REQ_TEAM_VOTE         = "TeamVote"
	REQ_MISSION_VOTE      = "MissionVote"
	REQ_LAKE_LADY_SELECT  = "LakeLadySelect"
	REQ_LAKE_LADY_CONFIRM = "LakeLadyConfirm"
	REQ_ASSASSINATE       = "Assassinate"
	REQ_KICK_PLAYER       = "KickPlayer"
	REQ_UPDATE_ORDER      = "UpdatePlayerOrder"
	REQ_RESET_ORDER       = "ResetPlayerOrder"
	REQ_RESTART_GAME      = "HostRestartGame"
	// 仅限进程内使用，由定时器回灌到房间循环
	REQ_TIMEOUT = "Timeout"
)

type RequestWrapper struct {
	ReqType string          `json:"request_type"`
	Data    json.RawMessage `json:"data"`

	// 发送者座位 ID，由 WS 层在转发前盖章，客户端自报的值不可信
	SenderID string `json:"-"`
	// 进程内请求直接携带已构造好的负载，绕过 JSON 解码
	NativeData any `json:"-"`
}

// tryUnwrap 按类型解包请求负载；进程内请求优先走 NativeData
func tryUnwrap[T any](wrapper RequestWrapper, reqType string) *T {
	if wrapper.ReqType != reqType {
		return nil
	}

	if wrapper.NativeData != nil {
		if native, ok := wrapper.NativeData.(*T); ok {
			return native
		}
		return nil
	}

	var payload T
	if err := json.Unmarshal(wrapper.Data, &payload); err != nil {
		zap.L().Error(
			"解包请求负载失败",
			zap.String("req_type", reqType),
			zap.Error(err),
		)
		return nil
	}

	return &payload
}

func TryUnwrapJoinRoomRequest(w RequestWrapper) *JoinRoomRequest {
	return tryUnwrap[JoinRoomRequest](w, REQ_JOIN_ROOM)
}

func TryUnwrapExitGameRequest(w RequestWrapper) *ExitGameRequest {
	return tryUnwrap[ExitGameRequest](w, REQ_EXIT_GAME)
}

func TryUnwrapStartGameRequest(w RequestWrapper) *StartGameRequest {
	return tryUnwrap[StartGameRequest](w, REQ_START_GAME)
}

func TryUnwrapRoleConfirmedRequest(w RequestWrapper) *RoleConfirmedRequest {
	return tryUnwrap[RoleConfirmedRequest](w, REQ_ROLE_CONFIRMED)
}

func TryUnwrapConfirmLeaderRequest(w RequestWrapper) *ConfirmLeaderRequest {
	return tryUnwrap[ConfirmLeaderRequest](w, REQ_CONFIRM_LEADER)
}

func TryUnwrapConfirmTeamRequest(w RequestWrapper) *ConfirmTeamRequest {
	return tryUnwrap[ConfirmTeamRequest](w, REQ_CONFIRM_TEAM)
}

func TryUnwrapTeamVoteRequest(w RequestWrapper) *TeamVoteRequest {
	return tryUnwrap[TeamVoteRequest](w, REQ_TEAM_VOTE)
}

func TryUnwrapMissionVoteRequest(w RequestWrapper) *MissionVoteRequest {
	return tryUnwrap[MissionVoteRequest](w, REQ_MISSION_VOTE)
}

func TryUnwrapLakeLadySelectRequest(w RequestWrapper) *LakeLadySelectRequest {
	return tryUnwrap[LakeLadySelectRequest](w, REQ_LAKE_LADY_SELECT)
}

func TryUnwrapLakeLadyConfirmRequest(w RequestWrapper) *LakeLadyConfirmRequest {
	return tryUnwrap[LakeLadyConfirmRequest](w, REQ_LAKE_LADY_CONFIRM)
}

func TryUnwrapAssassinateRequest(w RequestWrapper) *AssassinateRequest {
	return tryUnwrap[AssassinateRequest](w, REQ_ASSASSINATE)
}

func TryUnwrapKickPlayerRequest(w RequestWrapper) *KickPlayerRequest {
	return tryUnwrap[KickPlayerRequest](w, REQ_KICK_PLAYER)
}

func TryUnwrapUpdateOrderRequest(w RequestWrapper) *UpdateOrderRequest {
	return tryUnwrap[UpdateOrderRequest](w, REQ_UPDATE_ORDER)
}

func TryUnwrapResetOrderRequest(w RequestWrapper) *ResetOrderRequest {
	return tryUnwrap[ResetOrderRequest](w, REQ_RESET_ORDER)
}

func TryUnwrapRestartGameRequest(w RequestWrapper) *RestartGameRequest {
	return tryUnwrap[RestartGameRequest](w, REQ_RESTART_GAME)
}

func TryUnwrapTimeoutRequest(w RequestWrapper) *TimeoutRequest {
	return tryUnwrap[TimeoutRequest](w, REQ_TIMEOUT)
}

// 响应类型
const (
	RESP_ERROR = "Error"

	RESP_JOIN_ROOM               = "JoinRoom"
	RESP_EXIT_GAME               = "ExitGame"
	RESP_HOST_CHANGED            = "HostChanged"
	RESP_PLAYER_ORDER_UPDATE     = "PlayerOrderUpdate"
	RESP_GAME_STARTED            = "GameStarted"
	RESP_START_LEADER_SELECTION  = "StartLeaderSelection"
	RESP_LEADER_SELECTED         = "LeaderSelected"
	RESP_GAME_STATE_UPDATE       = "GameStateUpdate"
	RESP_TEAM_VOTING_START       = "TeamVotingStart"
	RESP_MISSION_VOTING_START    = "MissionVotingStart"
	RESP_VOTE_UPDATE             = "VoteUpdate"
	RESP_VOTE_RESULT             = "VoteResult"
	RESP_MISSION_UPDATE          = "MissionUpdate"
	RESP_LAKE_LADY_START         = "LakeLadyStart"
	RESP_LAKE_LADY_RESULT        = "LakeLadyResult"
	RESP_LAKE_LADY_UNAVAILABLE   = "LakeLadyUnavailable"
	RESP_WAITING_FOR_ASSASSINATE = "WaitingForAssassination"
	RESP_ASSASSINATION_START     = "AssassinationStart"
	RESP_GAME_ENDED              = "GameEnded"
	RESP_GAME_RESTARTED          = "GameRestarted"
)

type ResponseWrapper struct {
	RespType string `json:"response_type"`
	Data     any    `json:"data,omitempty"`
	ErrMsg   string `json:"error_message,omitempty"`
}

func WrapResponse(respType string, data any) ResponseWrapper {
	return ResponseWrapper{
		RespType: respType,
		Data:     data,
	}
}

func WrapErrResponse(errMsg string) ResponseWrapper {
	return ResponseWrapper{
		RespType: RESP_ERROR,
		ErrMsg:   errMsg,
	}
}
