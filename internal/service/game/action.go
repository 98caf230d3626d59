package game

// 加入是一种特别的请求：作为 WS 连接的首帧到达，
// 并且在游戏进行中会被解释为断线重连
type JoinRoomRequest struct {
	RoomCode   string `json:"room_code"`
	JoinerName string `json:"joiner_name"`

	RespCh chan ResponseWrapper `json:"-"`
}

type JoinRoomResponse struct {
	RoomCode string   `json:"room_code"`
	Stage    string   `json:"stage"`
	Joiner   Player   `json:"joiner"`
	Players  []Player `json:"players"`
	HostID   string   `json:"host_id"`
	// 是否为断线重连
	Reconnected bool `json:"reconnected,omitempty"`
	// 重连时单播给本座位的私有快照，广播版本中为空
	Snapshot *SeatSnapshot `json:"snapshot,omitempty"`
}

// SeatSnapshot 重放断线座位在当前阶段应当看到的一切
type SeatSnapshot struct {
	Role      string           `json:"role,omitempty"`
	Faction   string           `json:"faction,omitempty"`
	Knowledge *KnowledgeView   `json:"knowledge,omitempty"`
	Game      *PublicGameState `json:"game,omitempty"`
	// 尚未投出的选票类型（team / mission），没有则为空
	PendingVote string `json:"pending_vote,omitempty"`
}

// Explicit 为 true 表示玩家主动离开（立即移除座位），
// 为 false 表示连接断开（游戏中挂起座位等待重连）
type ExitGameRequest struct {
	PlayerID string `json:"player_id"`
	Explicit bool   `json:"explicit"`

	RespCh chan ResponseWrapper `json:"-"`
}

type ExitGameResponse struct {
	LeftPlayerID   string   `json:"left_player_id"`
	LeftPlayerName string   `json:"left_player_name"`
	// 座位是否只是挂起等待重连
	Suspended bool     `json:"suspended,omitempty"`
	Players   []Player `json:"players"`
}

type HostChangedResponse struct {
	NewHostID   string `json:"new_host_id"`
	NewHostName string `json:"new_host_name"`
}

type StartGameRequest struct {
	UseDefaultRoles bool           `json:"use_default_roles"`
	CustomRoles     map[string]int `json:"custom_roles,omitempty"`
	// 为空时使用默认值：启用湖中女神
	EnableLakeLady    *bool `json:"enable_lake_lady,omitempty"`
	RevealEvilRoles   bool  `json:"reveal_evil_roles,omitempty"`
	AssassinByMorgana bool  `json:"assassin_by_morgana,omitempty"`
}

// GameStartedResponse 按座位单播：PlayerInfo 含各自的角色与知识视图
type GameStartedResponse struct {
	PlayerInfo SeatRoleInfo    `json:"player_info"`
	GameData   PublicGameState `json:"game_data"`
	AllPlayers []Player        `json:"all_players"`
}

type SeatRoleInfo struct {
	Name      string        `json:"name"`
	Role      string        `json:"role"`
	Faction   string        `json:"faction"`
	Knowledge KnowledgeView `json:"knowledge"`
}

// PublicGameState 是对全房间可见的游戏进度
type PublicGameState struct {
	CurrentPhase       string   `json:"current_phase"`
	CurrentMission     int      `json:"current_mission"`
	CurrentLeader      string   `json:"current_leader,omitempty"`
	LeaderName         string   `json:"leader_name,omitempty"`
	TeamSize           int      `json:"team_size,omitempty"`
	PlayersOrder       []string `json:"players_order"`
	MissionResults     []bool   `json:"mission_results"`
	ConsecutiveRejects int      `json:"consecutive_rejects"`
	LakeLadyHolderName string   `json:"lake_lady_holder_name,omitempty"`
}

type RoleConfirmedRequest struct{}

type StartLeaderSelectionResponse struct {
	HostID   string `json:"host_id"`
	HostName string `json:"host_name"`
}

type ConfirmLeaderRequest struct {
	LeaderID string `json:"leader_id"`
}

type LeaderSelectedResponse struct {
	LeaderID           string `json:"leader_id"`
	LeaderName         string `json:"leader_name"`
	CurrentMission     int    `json:"current_mission"`
	TeamSize           int    `json:"team_size"`
	LakeLadyHolderName string `json:"lake_lady_holder_name,omitempty"`
}

type ConfirmTeamRequest struct {
	TeamMembers []string `json:"team_members"`
}

type TeamVotingStartResponse struct {
	TeamMemberIDs      []string `json:"team_member_ids"`
	TeamMembers        []string `json:"team_members"`
	ConsecutiveRejects int      `json:"consecutive_rejects"`
}

type TeamVoteRequest struct {
	Vote bool `json:"vote"`
}

type MissionVotingStartResponse struct {
	TeamMemberIDs []string `json:"team_member_ids"`
	TeamMembers   []string `json:"team_members"`
}

type MissionVoteRequest struct {
	Vote bool `json:"vote"`
}

type VoteUpdateResponse struct {
	VoteType     string `json:"vote_type"`
	CurrentCount int    `json:"current_count"`
	TotalCount   int    `json:"total_count"`
}

type VoteResultResponse struct {
	VoteType string `json:"vote_type"`
	// 队伍票为是否通过，任务票为是否成功
	Outcome      bool   `json:"outcome"`
	ApproveCount int    `json:"approve_count,omitempty"`
	RejectCount  int    `json:"reject_count,omitempty"`
	FailCount    int    `json:"fail_count"`
	Message      string `json:"message"`
	// 队伍表决公开每人的选票；任务表决只公开票数
	Detail map[string]bool `json:"detail,omitempty"`
}

type MissionUpdateResponse struct {
	MissionResults []bool `json:"mission_results"`
}

type LakeLadyStartResponse struct {
	HolderID         string   `json:"holder_id"`
	HolderName       string   `json:"holder_name"`
	AvailableTargets []string `json:"available_targets"`
}

type LakeLadySelectRequest struct {
	TargetName string `json:"target_name"`
}

type LakeLadyConfirmRequest struct{}

// IsEvil 只在单播给持有者时有值，广播版本为 null
type LakeLadyResultResponse struct {
	HolderName string `json:"holder_name"`
	TargetName string `json:"target_name"`
	IsEvil     *bool  `json:"is_evil"`
}

type LakeLadyUnavailableResponse struct {
	Reason string `json:"reason"`
}

type WaitingForAssassinationResponse struct {
	AssassinName string `json:"assassin_name"`
}

type AssassinationStartResponse struct {
	Targets []TargetSeat `json:"targets"`
}

type TargetSeat struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type AssassinateRequest struct {
	TargetID string `json:"target_id"`
}

type GameEndedResponse struct {
	GoodWins bool         `json:"good_wins"`
	Aborted  bool         `json:"aborted"`
	Message  string       `json:"message"`
	Roles    []RoleReveal `json:"roles"`
}

type RoleReveal struct {
	Name    string `json:"name"`
	Role    string `json:"role"`
	Faction string `json:"faction"`
}

type KickPlayerRequest struct {
	TargetName string `json:"target_name"`
}

type UpdateOrderRequest struct {
	NewOrder []string `json:"new_order"`
}

type ResetOrderRequest struct{}

type PlayerOrderUpdateResponse struct {
	Order   []string `json:"order"`
	Players []Player `json:"players"`
}

type RestartGameRequest struct{}

type GameRestartedResponse struct {
	Players []Player `json:"players"`
}

// 超时事件种类
const (
	TMO_STAGE     = "stage"
	TMO_RECONNECT = "reconnect"
)

// TimeoutRequest 由定时器以 NativeData 形式回灌，不经过 JSON
type TimeoutRequest struct {
	Kind  string
	Stage string
	// 阶段超时的代次，用于丢弃已过期的定时器事件
	Seq int
	// 重连窗口超时对应的座位
	SeatID string
}
