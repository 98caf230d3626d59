package game

import (
	"errors"
	"fmt"
	"math/rand/v2"
)

// RoleConfig 描述一局游戏的角色构成与每轮任务的失败票阈值
type RoleConfig struct {
	// key: 角色常量, value: 数量
	Counts map[string]int `json:"counts"`
	// 每轮任务需要的失败票数，长度固定为 5
	FailsRequired [5]int `json:"fails_required"`
}

// 6~12 人的标准配置，来自桌游原版规则
var defaultConfigs = map[int]RoleConfig{
	6: {
		Counts: map[string]int{
			ROLE_MERLIN: 1, ROLE_MORDRED: 1, ROLE_PERCIVAL: 1,
			ROLE_ASSASSIN: 1, ROLE_MINION: 1, ROLE_SERVANT: 1,
		},
		FailsRequired: [5]int{1, 1, 1, 1, 1},
	},
	7: {
		Counts: map[string]int{
			ROLE_MERLIN: 1, ROLE_MORDRED: 1, ROLE_PERCIVAL: 1,
			ROLE_ASSASSIN: 1, ROLE_MINION: 1, ROLE_SERVANT: 2,
		},
		FailsRequired: [5]int{1, 1, 1, 1, 1},
	},
	8: {
		Counts: map[string]int{
			ROLE_MERLIN: 1, ROLE_MORDRED: 1, ROLE_PERCIVAL: 1,
			ROLE_ASSASSIN: 1, ROLE_MINION: 2, ROLE_SERVANT: 2,
		},
		FailsRequired: [5]int{1, 1, 1, 2, 1},
	},
	9: {
		Counts: map[string]int{
			ROLE_MERLIN: 1, ROLE_MORDRED: 1, ROLE_PERCIVAL: 1,
			ROLE_ASSASSIN: 1, ROLE_MINION: 2, ROLE_SERVANT: 3,
		},
		FailsRequired: [5]int{1, 1, 1, 2, 1},
	},
	10: {
		Counts: map[string]int{
			ROLE_MERLIN: 1, ROLE_MORDRED: 1, ROLE_PERCIVAL: 1,
			ROLE_ASSASSIN: 1, ROLE_MINION: 3, ROLE_SERVANT: 3,
		},
		FailsRequired: [5]int{1, 1, 1, 2, 1},
	},
	11: {
		Counts: map[string]int{
			ROLE_MERLIN: 1, ROLE_MORDRED: 1, ROLE_PERCIVAL: 1,
			ROLE_ASSASSIN: 1, ROLE_MORGANA: 1, ROLE_MINION: 2, ROLE_SERVANT: 4,
		},
		FailsRequired: [5]int{1, 1, 1, 2, 1},
	},
	12: {
		Counts: map[string]int{
			ROLE_MERLIN: 1, ROLE_MORDRED: 1, ROLE_PERCIVAL: 1,
			ROLE_ASSASSIN: 1, ROLE_MORGANA: 1, ROLE_OBERON: 1,
			ROLE_MINION: 2, ROLE_SERVANT: 4,
		},
		FailsRequired: [5]int{1, 1, 1, 2, 1},
	},
}

// 每轮任务的队伍人数，key 为房间总人数
var missionTeamSizes = map[int][5]int{
	6:  {2, 3, 4, 3, 4},
	7:  {2, 3, 3, 4, 4},
	8:  {3, 4, 4, 5, 5},
	9:  {3, 4, 4, 5, 5},
	10: {3, 4, 4, 5, 5},
	11: {3, 4, 4, 5, 5},
	12: {3, 4, 4, 5, 5},
}

const (
	MIN_PLAYERS = 6
	MAX_PLAYERS = 12
)

// DefaultRoleConfig 返回对应人数的标准配置
func DefaultRoleConfig(rosterSize int) (RoleConfig, error) {
	cfg, ok := defaultConfigs[rosterSize]
	if !ok {
		return RoleConfig{}, fmt.Errorf("不支持的玩家人数：%d（仅支持 %d~%d 人）", rosterSize, MIN_PLAYERS, MAX_PLAYERS)
	}
	return cfg, nil
}

// MissionTeamSize 返回指定人数下第 mission 轮任务的队伍人数
func MissionTeamSize(rosterSize, mission int) int {
	sizes, ok := missionTeamSizes[rosterSize]
	if !ok || mission < 1 || mission > 5 {
		return 0
	}
	return sizes[mission-1]
}

// ValidateRoleConfig 校验自定义角色配置：
// 所有角色必须已知、两个阵营都不能为空、阵营人数差不超过 3、
// 刺客依赖梅林、莫甘娜依赖派西维尔，且总数必须等于房间人数
func ValidateRoleConfig(cfg RoleConfig, rosterSize int) error {
	total := 0
	goodCount := 0
	evilCount := 0

	for role, count := range cfg.Counts {
		if !IsKnownRole(role) {
			return fmt.Errorf("未知角色：%s", role)
		}
		if count < 0 {
			return fmt.Errorf("角色 %s 的数量不能为负数", role)
		}

		total += count
		if IsEvilRole(role) {
			evilCount += count
		} else {
			goodCount += count
		}
	}

	if total != rosterSize {
		return fmt.Errorf("角色总数 %d 与玩家人数 %d 不一致", total, rosterSize)
	}
	if goodCount < 1 || evilCount < 1 {
		return errors.New("好人阵营和邪恶阵营都至少需要一名玩家")
	}
	if diff := goodCount - evilCount; diff > 3 || diff < -3 {
		return errors.New("两个阵营的人数差不能超过 3")
	}
	if cfg.Counts[ROLE_ASSASSIN] > 0 && cfg.Counts[ROLE_MERLIN] == 0 {
		return errors.New("选择刺客时必须同时选择梅林")
	}
	if cfg.Counts[ROLE_MORGANA] > 0 && cfg.Counts[ROLE_PERCIVAL] == 0 {
		return errors.New("选择莫甘娜时必须同时选择派西维尔")
	}

	return nil
}

// AssignRoles 按配置组装角色牌堆并洗牌，返回与座位顺序对齐的角色序列。
// rng 可注入以便测试获得确定性的结果
func AssignRoles(cfg RoleConfig, rosterSize int, rng *rand.Rand) ([]string, error) {
	if err := ValidateRoleConfig(cfg, rosterSize); err != nil {
		return nil, err
	}

	deck := make([]string, 0, rosterSize)

	// 固定顺序组装，洗牌前的顺序不影响结果，但便于测试断言
	for _, role := range []string{
		ROLE_MERLIN, ROLE_ASSASSIN, ROLE_MORDRED, ROLE_PERCIVAL,
		ROLE_MORGANA, ROLE_OBERON, ROLE_MINION, ROLE_SERVANT,
	} {
		for i := 0; i < cfg.Counts[role]; i++ {
			deck = append(deck, role)
		}
	}

	// Fisher-Yates 洗牌
	shuffle := rand.Shuffle
	if rng != nil {
		shuffle = rng.Shuffle
	}
	shuffle(len(deck), func(i, j int) {
		deck[i], deck[j] = deck[j], deck[i]
	})

	return deck, nil
}

// VisibleSeat 表示知识视图中的一个可见座位
type VisibleSeat struct {
	SeatID string `json:"seat_id"`
	Name   string `json:"name"`
	// 可见的原因：evil / magician / evil-partner
	Reason string `json:"reason"`
	// 仅在 revealEvilRoles 开启时回传具体角色名
	Role string `json:"role,omitempty"`
}

const (
	REASON_EVIL         = "evil"
	REASON_MAGICIAN     = "magician"
	REASON_EVIL_PARTNER = "evil-partner"
)

// KnowledgeView 是发牌时单播给每个座位的非对称信息
type KnowledgeView struct {
	Visible []VisibleSeat `json:"visible"`
	Note    string        `json:"note,omitempty"`
	Hint    string        `json:"hint"`
}

var roleHints = map[string]string{
	ROLE_MERLIN:   "你知道大部分邪恶角色，但必须隐藏身份，避免被刺客发现",
	ROLE_PERCIVAL: "你看到的两人中有一个是真正的梅林，保护好他",
	ROLE_SERVANT:  "没有特殊能力，通过观察发言和投票找出邪恶角色",
	ROLE_ASSASSIN: "破坏任务；如果好人完成三个任务，你还可以刺杀梅林翻盘",
	ROLE_MORDRED:  "梅林看不到你，利用隐身优势伪装成好人",
	ROLE_MORGANA:  "派西维尔会把你看成梅林，混淆他的判断",
	ROLE_OBERON:   "你与其他邪恶角色互不相识，独立作战",
	ROLE_MINION:   "协助破坏任务，掩护关键的邪恶角色",
}

// ComputeKnowledge 计算座位 seat 在 order 座位序列下能看到的信息。
// 规则固定：
//   - 梅林看到除莫德雷德以外的所有邪恶座位
//   - 派西维尔看到梅林与莫甘娜组成的无标注集合
//   - 普通邪恶角色互相可见，但奥伯伦不可见他人也不被看见
//   - 忠臣看不到任何人
func ComputeKnowledge(seat *Player, order []*Player, revealEvilRoles bool) KnowledgeView {
	view := KnowledgeView{
		Visible: make([]VisibleSeat, 0),
		Hint:    roleHints[seat.Role],
	}

	switch seat.Role {
	case ROLE_MERLIN:
		for _, p := range order {
			if p.ID == seat.ID {
				continue
			}
			if p.IsEvil() && p.Role != ROLE_MORDRED {
				view.Visible = append(view.Visible, VisibleSeat{
					SeatID: p.ID,
					Name:   p.Name,
					Reason: REASON_EVIL,
				})
			}
		}
		view.Note = "以下玩家属于邪恶阵营（莫德雷德除外）"

	case ROLE_PERCIVAL:
		for _, p := range order {
			if p.Role == ROLE_MERLIN || p.Role == ROLE_MORGANA {
				view.Visible = append(view.Visible, VisibleSeat{
					SeatID: p.ID,
					Name:   p.Name,
					Reason: REASON_MAGICIAN,
				})
			}
		}
		view.Note = "以下玩家中有一人是梅林，但你无法分辨"

	case ROLE_ASSASSIN, ROLE_MORDRED, ROLE_MORGANA, ROLE_MINION:
		for _, p := range order {
			if p.ID == seat.ID {
				continue
			}
			if p.IsEvil() && p.Role != ROLE_OBERON {
				vs := VisibleSeat{
					SeatID: p.ID,
					Name:   p.Name,
					Reason: REASON_EVIL_PARTNER,
				}
				if revealEvilRoles {
					vs.Role = p.Role
				}
				view.Visible = append(view.Visible, vs)
			}
		}
		view.Note = "以下玩家是你的邪恶同伴（奥伯伦除外）"

	default:
		// 忠臣和奥伯伦看不到任何人
	}

	return view
}
