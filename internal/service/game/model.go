package game

// 玩家角色
const (
	ROLE_UNSET    = "Unset"
	ROLE_MERLIN   = "Merlin"
	ROLE_PERCIVAL = "Percival"
	ROLE_SERVANT  = "LoyalServant"
	ROLE_ASSASSIN = "Assassin"
	ROLE_MORDRED  = "Mordred"
	ROLE_MORGANA  = "Morgana"
	ROLE_OBERON   = "Oberon"
	ROLE_MINION   = "Minion"
)

// 阵营
const (
	FACTION_GOOD = "good"
	FACTION_EVIL = "evil"
)

// 角色到阵营的映射，未登记的角色视为未知角色
var roleFactions = map[string]string{
	ROLE_MERLIN:   FACTION_GOOD,
	ROLE_PERCIVAL: FACTION_GOOD,
	ROLE_SERVANT:  FACTION_GOOD,
	ROLE_ASSASSIN: FACTION_EVIL,
	ROLE_MORDRED:  FACTION_EVIL,
	ROLE_MORGANA:  FACTION_EVIL,
	ROLE_OBERON:   FACTION_EVIL,
	ROLE_MINION:   FACTION_EVIL,
}

func IsKnownRole(role string) bool {
	_, ok := roleFactions[role]
	return ok
}

func IsEvilRole(role string) bool {
	return roleFactions[role] == FACTION_EVIL
}

func FactionOf(role string) string {
	return roleFactions[role]
}

// 角色的中文显示名，用于面向玩家的消息文本
var roleDisplayNames = map[string]string{
	ROLE_MERLIN:   "梅林",
	ROLE_PERCIVAL: "派西维尔",
	ROLE_SERVANT:  "亚瑟的忠臣",
	ROLE_ASSASSIN: "刺客",
	ROLE_MORDRED:  "莫德雷德",
	ROLE_MORGANA:  "莫甘娜",
	ROLE_OBERON:   "奥伯伦",
	ROLE_MINION:   "爪牙",
}

func RoleDisplayName(role string) string {
	if name, ok := roleDisplayNames[role]; ok {
		return name
	}
	return role
}

// Player 是房间中的一个座位，与底层连接解耦：
// 断线后座位会保留一段时间，重连时只需换绑 RespCh
type Player struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	IsHost bool   `json:"is_host"`
	Role   string `json:"role,omitempty"`

	// 连接是否在线，断线挂起期间为 false
	Connected bool `json:"connected"`

	RespCh chan ResponseWrapper `json:"-"`

	// 加入序号，重置座位顺序时按它恢复
	joinSeq int
}

func (p *Player) Faction() string {
	return FactionOf(p.Role)
}

func (p *Player) IsEvil() bool {
	return IsEvilRole(p.Role)
}

// 公开视图：抹去角色等敏感字段
func sanitizePlayer(p *Player) Player {
	return Player{
		ID:        p.ID,
		Name:      p.Name,
		IsHost:    p.IsHost,
		Connected: p.Connected,
	}
}
